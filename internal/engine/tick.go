package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Engine paces a stepping function in real time.
type Engine struct {
	Interval time.Duration // Base tick interval; 0 runs flat out
	MaxTicks uint64        // Stop after this many ticks; 0 runs until stopped

	// Step advances the simulation by one tick.
	Step func() error

	// Callbacks, populated during setup.
	OnTick      func(tick uint64) error // After every tick; an error stops the engine
	OnReport    func(tick uint64)       // Every ReportEvery ticks
	ReportEvery uint64

	mu      sync.Mutex
	tick    uint64
	speed   float64 // Multiplier: 1.0 = real-time, 0 = paused
	running bool
	cancel  context.CancelFunc
}

// NewEngine creates an engine stepping fn at one tick per interval.
func NewEngine(fn func() error, interval time.Duration) *Engine {
	return &Engine{
		Step:     fn,
		Interval: interval,
		speed:    1.0,
	}
}

// pausePoll is how often a paused engine checks whether it may resume.
const pausePoll = 100 * time.Millisecond

// Run steps until ctx is cancelled, Stop is called, MaxTicks is reached,
// or a step or callback fails. A stop is not an error.
func (e *Engine) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return fmt.Errorf("engine already running")
	}
	e.running = true
	e.cancel = cancel
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.running = false
		e.cancel = nil
		e.mu.Unlock()
	}()

	slog.Info("simulation engine started", "tick", e.Tick(), "speed", e.Speed(), "interval", e.Interval)
	defer func() { slog.Info("simulation engine stopped", "tick", e.Tick()) }()

	for {
		if ctx.Err() != nil {
			return nil
		}
		if e.MaxTicks > 0 && e.Tick() >= e.MaxTicks {
			return nil
		}

		speed := e.Speed()
		if speed <= 0 {
			if !sleep(ctx, pausePoll) {
				return nil
			}
			continue
		}

		start := time.Now()
		if err := e.step(); err != nil {
			return err
		}

		if e.Interval > 0 {
			target := time.Duration(float64(e.Interval) / speed)
			if elapsed := time.Since(start); elapsed < target {
				if !sleep(ctx, target-elapsed) {
					return nil
				}
			}
		}
	}
}

// step advances one tick and fires the callbacks.
func (e *Engine) step() error {
	if err := e.Step(); err != nil {
		return err
	}

	e.mu.Lock()
	e.tick++
	tick := e.tick
	e.mu.Unlock()

	if e.OnTick != nil {
		if err := e.OnTick(tick); err != nil {
			return fmt.Errorf("tick %d callback: %w", tick, err)
		}
	}
	if e.ReportEvery > 0 && tick%e.ReportEvery == 0 && e.OnReport != nil {
		e.OnReport(tick)
	}
	return nil
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// Stop halts a running engine. It is safe to call at any time.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cancel != nil {
		e.cancel()
	}
}

// Tick returns the number of ticks this engine has run.
func (e *Engine) Tick() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tick
}

// Speed returns the current speed multiplier.
func (e *Engine) Speed() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.speed
}

// SetSpeed changes the speed multiplier. 0 pauses; negative values are
// treated as 0.
func (e *Engine) SetSpeed(speed float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.speed = max(speed, 0)
}

// Running reports whether Run is in progress.
func (e *Engine) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}
