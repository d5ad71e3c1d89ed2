// Command villagesim runs the village simulation.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/talgya/ssd-village/internal/agents"
	"github.com/talgya/ssd-village/internal/api"
	"github.com/talgya/ssd-village/internal/config"
	"github.com/talgya/ssd-village/internal/engine"
	"github.com/talgya/ssd-village/internal/entropy"
	"github.com/talgya/ssd-village/internal/persistence"
	"github.com/talgya/ssd-village/internal/telemetry"
	"github.com/talgya/ssd-village/internal/world"
)

func main() {
	configPath := flag.String("config", "", "YAML config file merged over the built-in defaults")
	ticks := flag.Uint64("ticks", 0, "ticks to run as fast as possible (0 = config value; run until signal if both are 0)")
	seed := flag.Int64("seed", 0, "random seed (0 = config value, random if that is 0 too)")
	resume := flag.Bool("resume", false, "continue the run saved in the database or snapshot")
	flag.Parse()

	if err := run(*configPath, *ticks, *seed, *resume); err != nil {
		slog.Error("villagesim failed", "error", err)
		os.Exit(1)
	}
}

func run(configPath string, ticks uint64, seed int64, resume bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.Sim.Level(),
	}))
	slog.SetDefault(logger)

	if ticks == 0 {
		ticks = cfg.Sim.Ticks
	}
	if seed == 0 {
		seed = cfg.Sim.Seed
	}

	// ── Database ──────────────────────────────────────────────────────
	if err := os.MkdirAll(filepath.Dir(cfg.Storage.DBPath), 0o755); err != nil {
		return fmt.Errorf("data dir: %w", err)
	}
	db, err := persistence.Open(cfg.Storage.DBPath)
	if err != nil {
		return err
	}
	defer db.Close()
	slog.Info("database opened", "path", cfg.Storage.DBPath)

	// ── Load or generate the village ─────────────────────────────────
	params := cfg.Agents
	state, err := loadState(cfg, db, &params, resume)
	if err != nil {
		return err
	}
	if state == nil {
		if seed == 0 {
			seed = entropy.CryptoSeed()
		}
		if state, err = freshState(cfg, &params, seed); err != nil {
			return err
		}
	}

	sim := engine.NewSimulation(engine.Options{
		Seed:    state.seed,
		RunID:   state.runID,
		Params:  &params,
		Presets: cfg.Presets,
		Map:     state.m,
		Cycle:   cfg.World.CycleConfig(),
		Debug:   cfg.Sim.Debug,
	}, state.population)
	sim.Resume(state.resume)

	// ── Telemetry ────────────────────────────────────────────────────
	tw := telemetry.NewJSONLZstdWriter(cfg.Storage.TelemetryDir, "telemetry-"+sim.RunID.String(), cfg.Storage.TelemetryTicksPerFile)
	defer func() {
		if err := tw.Close(); err != nil {
			slog.Error("telemetry close failed", "error", err)
		}
	}()
	sim.AddSink(tw)

	berries, zones := state.m.NodeCount()
	slog.Info("village ready",
		"run_id", sim.RunID,
		"seed", sim.Seed,
		"agents", sim.Roster.Len(),
		"berry_patches", berries,
		"hunt_zones", zones,
		"tick", state.resume.Tick,
	)

	// ── Engine ───────────────────────────────────────────────────────
	eng := engine.NewEngine(uint64(cfg.World.DayLength), uint64(cfg.World.SeasonLength))
	eng.Tick = state.resume.Tick
	eng.Interval = cfg.Sim.TickInterval
	if err := eng.SetSpeed(cfg.Sim.Speed); err != nil {
		return err
	}

	save := func(reason string) {
		if err := db.SaveWorldState(sim); err != nil {
			slog.Error("save failed", "reason", reason, "error", err)
		}
		if cfg.Storage.SnapshotPath != "" {
			if err := persistence.WriteSnapshot(cfg.Storage.SnapshotPath, persistence.TakeSnapshot(sim)); err != nil {
				slog.Error("snapshot failed", "reason", reason, "error", err)
			}
		}
		if err := tw.Flush(); err != nil {
			slog.Error("telemetry flush failed", "error", err)
		}
	}

	eng.OnTick = sim.Tick
	eng.OnDay = func(tick uint64) {
		sim.TickDay(tick)
		save("daily")
	}
	eng.OnSeason = sim.TickSeason

	// ── API ──────────────────────────────────────────────────────────
	adminKey := cfg.API.AdminKey()
	if adminKey == "" {
		slog.Warn("admin key not set, admin POST endpoints disabled", "env", cfg.API.AdminKeyEnv)
	}
	apiServer := &api.Server{
		Sim:          sim,
		Eng:          eng,
		DB:           db,
		SnapshotPath: cfg.Storage.SnapshotPath,
		Port:         cfg.API.Port,
		AdminKey:     adminKey,
		StreamLimit:  cfg.API.StreamPerMinute,
	}
	srv := apiServer.Start()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("received signal, shutting down", "signal", sig)
		eng.Stop()
	}()

	fmt.Printf("\nThe village is alive: %d agents on a %dx%d map.\n",
		sim.Roster.Len(), state.m.Bounds.Width, state.m.Bounds.Height)
	fmt.Printf("API: http://localhost:%d/api/v1/status\n", cfg.API.Port)
	if state.resume.Tick > 0 {
		fmt.Printf("Resuming from tick %d (%s)\n", state.resume.Tick, engine.SimTime(state.resume.Tick, uint64(cfg.World.DayLength)))
	}

	if ticks > 0 {
		eng.RunFor(ticks)
	} else {
		fmt.Println("Starting simulation... (Ctrl+C to stop)")
		eng.Run()
	}

	slog.Info("final save...")
	save("shutdown")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("HTTP shutdown failed", "error", err)
	}

	st := sim.Snapshot()
	fmt.Printf("Simulation stopped at tick %d: %d alive, %d dead. World state saved.\n",
		sim.CurrentTick(), st.Alive, st.Dead)
	return nil
}

// startState is everything needed to build the Simulation.
type startState struct {
	seed       int64
	runID      uuid.UUID
	m          *world.Map
	population []*agents.Agent
	resume     engine.ResumePoint
}

// loadState restores a saved run. It returns nil when there is nothing to
// resume or resuming was not requested.
func loadState(cfg config.Config, db *persistence.DB, p *agents.Params, resume bool) (*startState, error) {
	if !resume {
		return nil, nil
	}

	if db.HasWorldState() {
		meta, err := db.LoadMeta()
		if err != nil {
			return nil, fmt.Errorf("load meta: %w", err)
		}
		pop, err := db.LoadAgents(p)
		if err != nil {
			return nil, err
		}
		st, err := restoredState(cfg, meta.Seed, meta.RunID, meta.Nodes, pop, meta.Resume)
		if err != nil {
			return nil, err
		}
		slog.Info("world state restored from database", "agents", len(pop), "tick", meta.Resume.Tick)
		return st, nil
	}

	if cfg.Storage.SnapshotPath != "" {
		snap, err := persistence.ReadSnapshot(cfg.Storage.SnapshotPath)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("read snapshot: %w", err)
		}
		if err == nil {
			st, err := restoredState(cfg, snap.Seed, snap.Header.RunID, snap.Nodes, snap.Restored(p), snap.Resume)
			if err != nil {
				return nil, err
			}
			slog.Info("world state restored from snapshot", "agents", len(snap.Agents), "tick", snap.Resume.Tick)
			return st, nil
		}
	}

	slog.Warn("no saved state found, starting a new run")
	return nil, nil
}

func restoredState(cfg config.Config, seed int64, runID string, nodes world.NodeState, pop []*agents.Agent, rp engine.ResumePoint) (*startState, error) {
	id, err := uuid.Parse(runID)
	if err != nil {
		return nil, fmt.Errorf("run id %q: %w", runID, err)
	}
	// The map regenerates from the seed; node state then overrides it.
	m := world.Generate(cfg.World.GenConfig(seed))
	if err := m.Restore(nodes); err != nil {
		return nil, fmt.Errorf("restore nodes: %w", err)
	}
	return &startState{seed: seed, runID: id, m: m, population: pop, resume: rp}, nil
}

func freshState(cfg config.Config, p *agents.Params, seed int64) (*startState, error) {
	slog.Info("generating village", "seed", seed, "width", cfg.World.Width, "height", cfg.World.Height)
	m := world.Generate(cfg.World.GenConfig(seed))

	// A separate spawner keeps roster construction off the simulation's own
	// spawner stream, which serves immigrants.
	spawner := agents.NewSpawner(entropy.Derive(seed, 400), cfg.Presets, p)
	st := &startState{seed: seed, m: m}
	if len(cfg.Roster) == 0 {
		st.population = spawner.SpawnRandom(cfg.World.RandomAgents, m.Bounds)
		return st, nil
	}
	pop, err := spawner.SpawnAll(cfg.Roster, m.Bounds)
	if err != nil {
		return nil, fmt.Errorf("roster: %w", err)
	}
	st.population = pop
	return st, nil
}
