// Command polity runs the political opinion diffusion simulation, either as
// a batch job or as a paced, observable server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/talgya/polity/internal/api"
	"github.com/talgya/polity/internal/engine"
	"github.com/talgya/polity/internal/persistence"
)

// options holds the command-line settings outside the simulation config.
type options struct {
	Steps       uint64
	DBPath      string
	Addr        string
	AdminKey    string
	Interval    time.Duration
	ReportEvery uint64
	FlushEvery  int
}

func main() {
	cfg := engine.DefaultConfig()
	fs := flag.NewFlagSet("polity", flag.ExitOnError)
	cfg.Bind(fs)

	opts := options{AdminKey: os.Getenv("POLITY_ADMIN_KEY")}
	fs.Uint64Var(&opts.Steps, "steps", 100, "ticks to run (0 = until interrupted; serve mode only)")
	fs.StringVar(&opts.DBPath, "db", os.Getenv("POLITY_DB"), "SQLite file for run metrics (empty = none)")
	fs.StringVar(&opts.Addr, "addr", "", "serve the observation API on this address (empty = batch mode)")
	fs.DurationVar(&opts.Interval, "interval", 200*time.Millisecond, "tick interval in serve mode")
	fs.Uint64Var(&opts.ReportEvery, "report-every", 10, "log a progress line every N ticks (0 = never)")
	fs.IntVar(&opts.FlushEvery, "flush-every", 50, "metrics rows buffered before a database write")
	logLevel := fs.String("log-level", "info", "log level: debug, info, warn, error")
	fs.Parse(os.Args[1:])

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLevel(*logLevel),
	}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := run(ctx, cfg, opts, os.Stdout)
	stop()
	if err != nil {
		slog.Error("polity failed", "error", err)
		os.Exit(1)
	}
}

// run builds and drives one simulation until it finishes, fails or ctx is
// cancelled. Every resource it opens is closed before it returns.
func run(ctx context.Context, cfg engine.Config, opts options, out io.Writer) error {
	if opts.Addr == "" && opts.Steps == 0 {
		return errors.New("batch mode needs -steps > 0")
	}

	// ── Simulation ────────────────────────────────────────────────────
	sim, err := engine.New(cfg)
	if err != nil {
		return err
	}

	// ── Database ──────────────────────────────────────────────────────
	var db *persistence.DB
	var rec *persistence.Recorder
	if opts.DBPath != "" {
		if dir := filepath.Dir(opts.DBPath); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				slog.Error("failed to create database directory", "dir", dir, "error", err)
				return fmt.Errorf("create database directory: %w", err)
			}
		}
		db, err = persistence.Open(opts.DBPath)
		if err != nil {
			return err
		}
		defer db.Close()

		rec, err = persistence.NewRecorder(db, sim, opts.FlushEvery)
		if err != nil {
			return fmt.Errorf("register run: %w", err)
		}
		slog.Info("database opened", "path", opts.DBPath, "run_id", sim.RunID)
	}

	// ── Engine ────────────────────────────────────────────────────────
	eng := engine.NewEngine(sim.Step, opts.Interval)
	eng.MaxTicks = opts.Steps
	eng.ReportEvery = opts.ReportEvery
	eng.OnReport = func(tick uint64) {
		m := sim.LatestMetrics()
		slog.Info("progress",
			"tick", humanize.Comma(int64(tick)),
			"persons", humanize.Comma(int64(m.Persons)),
			"influencers", humanize.Comma(int64(m.Influencers)),
			"republican", m.Republican,
			"democrat", m.Democrat,
			"republican_spaces", m.RepublicanSpaces,
			"democrat_spaces", m.DemocratSpaces,
		)
	}
	if rec != nil {
		eng.OnTick = rec.Record
	}

	// ── HTTP API ──────────────────────────────────────────────────────
	if opts.Addr != "" {
		if opts.AdminKey == "" {
			slog.Warn("POLITY_ADMIN_KEY not set, admin POST endpoints will be disabled")
		}

		sim.Feed = engine.NewFeed()
		apiServer := &api.Server{
			Sim:      sim,
			Eng:      eng,
			DB:       db,
			AdminKey: opts.AdminKey,
		}
		srv := apiServer.Start(opts.Addr)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()
		fmt.Fprintf(out, "API: http://%s/api/v1/status\n", displayAddr(opts.Addr))
	} else {
		eng.Interval = 0
	}

	// ── Run ───────────────────────────────────────────────────────────
	started := time.Now()
	runErr := eng.Run(ctx)

	if rec != nil {
		if err := rec.Flush(); err != nil {
			slog.Error("final metrics flush failed", "error", err)
			runErr = errors.Join(runErr, err)
		}
	}

	report := sim.Report()
	report.Log(slog.Default())
	fmt.Fprintf(out, "\n%s ticks in %s: %s persons, %s influencers (%s born, %s died).\n",
		humanize.Comma(int64(report.Ticks)),
		time.Since(started).Round(time.Millisecond),
		humanize.Comma(int64(report.Final.Persons)),
		humanize.Comma(int64(report.Final.Influencers)),
		humanize.Comma(int64(report.Totals.Births)),
		humanize.Comma(int64(report.Totals.Deaths)),
	)

	if runErr != nil {
		return fmt.Errorf("simulation stopped at tick %d: %w", report.Ticks, runErr)
	}
	return nil
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// displayAddr turns a listen address like ":8080" into a browsable one.
func displayAddr(addr string) string {
	if strings.HasPrefix(addr, ":") {
		return "localhost" + addr
	}
	return addr
}
