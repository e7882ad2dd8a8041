// Package persistence stores run metadata and per-tick metrics in SQLite.
package persistence

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/talgya/polity/internal/engine"
)

// DB wraps a SQLite connection for metrics storage.
type DB struct {
	conn *sqlx.DB
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		run_id TEXT PRIMARY KEY,
		seed INTEGER NOT NULL,
		width INTEGER NOT NULL,
		height INTEGER NOT NULL,
		config_json TEXT NOT NULL,
		started_at INTEGER NOT NULL,
		last_tick INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS stats (
		run_id TEXT NOT NULL,
		tick INTEGER NOT NULL,
		persons INTEGER NOT NULL,
		influencers INTEGER NOT NULL,
		republican INTEGER NOT NULL,
		democrat INTEGER NOT NULL,
		none INTEGER NOT NULL,
		republican_spaces INTEGER NOT NULL,
		democrat_spaces INTEGER NOT NULL,
		births INTEGER NOT NULL,
		deaths INTEGER NOT NULL,
		PRIMARY KEY (run_id, tick)
	);

	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// Run is a stored run header.
type Run struct {
	RunID      string `db:"run_id" json:"run_id"`
	Seed       int64  `db:"seed" json:"seed"`
	Width      int    `db:"width" json:"width"`
	Height     int    `db:"height" json:"height"`
	ConfigJSON string `db:"config_json" json:"-"`
	StartedAt  int64  `db:"started_at" json:"started_at"`
	LastTick   uint64 `db:"last_tick" json:"last_tick"`
}

// Config decodes the stored configuration.
func (r Run) Config() (engine.Config, error) {
	var cfg engine.Config
	if err := json.Unmarshal([]byte(r.ConfigJSON), &cfg); err != nil {
		return cfg, fmt.Errorf("decode config of run %s: %w", r.RunID, err)
	}
	return cfg, nil
}

// SaveRun records the start of a run.
func (db *DB) SaveRun(runID string, cfg engine.Config, started time.Time) error {
	cfgJSON, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	_, err = db.conn.Exec(
		`INSERT OR REPLACE INTO runs (run_id, seed, width, height, config_json, started_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		runID, cfg.Seed, cfg.Width, cfg.Height, string(cfgJSON), started.Unix(),
	)
	return err
}

// SaveMetrics appends a batch of per-tick metrics and advances the run's
// last tick. Re-saving a tick replaces it.
func (db *DB) SaveMetrics(runID string, batch []engine.Metrics) error {
	if len(batch) == 0 {
		return nil
	}

	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Preparex(`INSERT OR REPLACE INTO stats
		(run_id, tick, persons, influencers, republican, democrat, none,
		 republican_spaces, democrat_spaces, births, deaths)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	last := uint64(0)
	for _, m := range batch {
		_, err := stmt.Exec(
			runID, m.Tick, m.Persons, m.Influencers,
			m.Republican, m.Democrat, m.None,
			m.RepublicanSpaces, m.DemocratSpaces, m.Births, m.Deaths,
		)
		if err != nil {
			return fmt.Errorf("insert stats tick %d: %w", m.Tick, err)
		}
		last = max(last, m.Tick)
	}

	if _, err := tx.Exec("UPDATE runs SET last_tick = MAX(last_tick, ?) WHERE run_id = ?", last, runID); err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	return tx.Commit()
}

// LoadStatsHistory returns the stored metrics of a run with from <= tick <= to,
// oldest first. A zero to means no upper bound; limit <= 0 means no limit.
func (db *DB) LoadStatsHistory(runID string, from, to uint64, limit int) ([]engine.Metrics, error) {
	query := `SELECT tick, persons, influencers, republican, democrat, none,
		republican_spaces, democrat_spaces, births, deaths
		FROM stats WHERE run_id = ? AND tick >= ?`
	args := []any{runID, from}
	if to > 0 {
		query += " AND tick <= ?"
		args = append(args, to)
	}
	query += " ORDER BY tick"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	var rows []engine.Metrics
	if err := db.conn.Select(&rows, query, args...); err != nil {
		return nil, fmt.Errorf("load stats of run %s: %w", runID, err)
	}
	return rows, nil
}

// GetRun returns the stored header of a run.
func (db *DB) GetRun(runID string) (Run, error) {
	var r Run
	err := db.conn.Get(&r, "SELECT * FROM runs WHERE run_id = ?", runID)
	return r, err
}

// RecentRuns returns the most recently started runs, newest first.
func (db *DB) RecentRuns(limit int) ([]Run, error) {
	var runs []Run
	err := db.conn.Select(&runs,
		"SELECT * FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?",
		limit,
	)
	return runs, err
}

// Recorder buffers a simulation's metrics and flushes them in batches.
type Recorder struct {
	db      *DB
	sim     *engine.Simulation
	every   int
	pending []engine.Metrics
}

// NewRecorder registers sim's run and returns a recorder flushing every
// `every` ticks.
func NewRecorder(db *DB, sim *engine.Simulation, every int) (*Recorder, error) {
	if err := db.SaveRun(sim.RunID, sim.Config, time.Now()); err != nil {
		return nil, fmt.Errorf("save run: %w", err)
	}
	r := &Recorder{db: db, sim: sim, every: max(every, 1)}
	r.pending = append(r.pending, sim.LatestMetrics())
	return r, nil
}

// Record queues the latest metrics; it fits engine.Engine.OnTick.
func (r *Recorder) Record(tick uint64) error {
	r.pending = append(r.pending, r.sim.LatestMetrics())
	if len(r.pending) < r.every {
		return nil
	}
	return r.Flush()
}

// Flush writes any queued metrics.
func (r *Recorder) Flush() error {
	if len(r.pending) == 0 {
		return nil
	}
	if err := r.db.SaveMetrics(r.sim.RunID, r.pending); err != nil {
		return err
	}
	slog.Debug("metrics flushed", "run_id", r.sim.RunID, "rows", len(r.pending))
	r.pending = r.pending[:0]
	return nil
}
