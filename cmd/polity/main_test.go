package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/talgya/polity/internal/engine"
	"github.com/talgya/polity/internal/persistence"
)

func batchOptions(dbPath string) options {
	return options{Steps: 12, DBPath: dbPath, FlushEvery: 5, ReportEvery: 4}
}

func TestRunBatchClosesDatabase(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "runs.db")
	var out bytes.Buffer
	if err := run(t.Context(), engine.SmallTestConfig(), batchOptions(dbPath), &out); err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(out.String(), "12 ticks") {
		t.Fatalf("summary = %q", out.String())
	}

	db, err := persistence.Open(dbPath)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer db.Close()
	runs, err := db.RecentRuns(1)
	if err != nil || len(runs) != 1 {
		t.Fatalf("runs = %+v, err = %v", runs, err)
	}
	rows, err := db.LoadStatsHistory(runs[0].RunID, 0, 0, 0)
	if err != nil {
		t.Fatalf("LoadStatsHistory: %v", err)
	}
	if len(rows) != 13 {
		t.Fatalf("stored %d rows, want 13 (initial + 12 ticks)", len(rows))
	}
}

func TestRunReturnsErrors(t *testing.T) {
	bad := engine.SmallTestConfig()
	bad.Width = 0
	if err := run(t.Context(), bad, batchOptions(""), &bytes.Buffer{}); !errors.Is(err, engine.ErrInvalidConfig) {
		t.Fatalf("err = %v, want ErrInvalidConfig", err)
	}

	if err := run(t.Context(), engine.SmallTestConfig(), options{}, &bytes.Buffer{}); err == nil {
		t.Fatalf("batch mode without steps should fail")
	}

	// A regular file where the database directory should go.
	blocker := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(blocker, nil, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	err := run(t.Context(), engine.SmallTestConfig(), batchOptions(filepath.Join(blocker, "sub", "runs.db")), &bytes.Buffer{})
	if err == nil || !strings.Contains(err.Error(), "create database directory") {
		t.Fatalf("err = %v, want a directory error", err)
	}
}
