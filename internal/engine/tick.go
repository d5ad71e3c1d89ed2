// Package engine provides the tick-based simulation loop and the Simulation
// that runs every agent once per tick.
package engine

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Engine drives the simulation forward.
type Engine struct {
	Tick         uint64        // Current tick counter (monotonic, never resets)
	Interval     time.Duration // Base tick interval (default 1 second)
	DayLength    uint64        // Ticks per sim-day
	SeasonLength uint64        // Ticks per season; 0 disables OnSeason

	// Callbacks for each tick layer, set during setup.
	OnTick   func(tick uint64) // Every tick
	OnDay    func(tick uint64) // Every DayLength ticks
	OnSeason func(tick uint64) // Every SeasonLength ticks

	mu      sync.Mutex
	speed   float64 // Multiplier: 1.0 = real-time, 0 = paused
	running atomic.Bool
}

// NewEngine creates a simulation engine with default settings.
func NewEngine(dayLength, seasonLength uint64) *Engine {
	if dayLength == 0 {
		dayLength = 48
	}
	return &Engine{
		Interval:     time.Second,
		DayLength:    dayLength,
		SeasonLength: seasonLength,
		speed:        1.0,
	}
}

// Speed returns the current speed multiplier.
func (e *Engine) Speed() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.speed
}

// SetSpeed changes the speed multiplier. Zero pauses; negative values are
// rejected.
func (e *Engine) SetSpeed(v float64) error {
	if v < 0 {
		return fmt.Errorf("speed %v: must be >= 0", v)
	}
	e.mu.Lock()
	e.speed = v
	e.mu.Unlock()
	slog.Info("engine speed changed", "speed", v)
	return nil
}

// Running reports whether Run or RunFor is active.
func (e *Engine) Running() bool {
	return e.running.Load()
}

// Run starts the simulation loop. Blocks until Stop() is called.
func (e *Engine) Run() {
	e.running.Store(true)
	slog.Info("simulation engine started", "tick", e.Tick, "speed", e.Speed())

	for e.running.Load() {
		speed := e.Speed()
		if speed <= 0 {
			// Paused: sleep briefly and check again.
			time.Sleep(100 * time.Millisecond)
			continue
		}

		start := time.Now()

		e.step()

		// Sleep for the remainder of the tick interval, adjusted for speed.
		elapsed := time.Since(start)
		target := time.Duration(float64(e.Interval) / speed)
		if elapsed < target {
			time.Sleep(target - elapsed)
		}
	}

	slog.Info("simulation engine stopped", "tick", e.Tick)
}

// RunFor advances n ticks as fast as possible, ignoring interval and speed.
// Stop ends it early.
func (e *Engine) RunFor(n uint64) {
	e.running.Store(true)
	slog.Info("batch run started", "tick", e.Tick, "ticks", n)

	for i := uint64(0); i < n && e.running.Load(); i++ {
		e.step()
	}

	e.running.Store(false)
	slog.Info("batch run finished", "tick", e.Tick)
}

// Stop halts the simulation loop.
func (e *Engine) Stop() {
	e.running.Store(false)
}

// step advances the simulation by one tick.
func (e *Engine) step() {
	e.Tick++

	if e.OnTick != nil {
		e.OnTick(e.Tick)
	}

	// Every sim-day: daily report and auto-save.
	if e.Tick%e.DayLength == 0 && e.OnDay != nil {
		e.OnDay(e.Tick)
	}

	if e.SeasonLength > 0 && e.Tick%e.SeasonLength == 0 && e.OnSeason != nil {
		e.OnSeason(e.Tick)
	}
}

// SimTime returns a human-readable simulation time string from a tick number.
func SimTime(tick, dayLength uint64) string {
	if dayLength == 0 {
		dayLength = 48
	}
	day := tick/dayLength + 1
	minutes := (tick % dayLength) * 1440 / dayLength
	return fmt.Sprintf("Day %d, %d:%02d", day, minutes/60, minutes%60)
}
