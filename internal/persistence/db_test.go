package persistence

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/talgya/ssd-village/internal/agents"
	"github.com/talgya/ssd-village/internal/engine"
	"github.com/talgya/ssd-village/internal/weather"
	"github.com/talgya/ssd-village/internal/world"
)

const testSeed = 7

func testOptions(m *world.Map) engine.Options {
	p := agents.DefaultParams()
	return engine.Options{
		Seed:   testSeed,
		Params: &p,
		Map:    m,
		Cycle:  weather.DefaultCycleConfig(),
	}
}

func newTestSim(t *testing.T) *engine.Simulation {
	t.Helper()
	m := world.Generate(world.SmallTestConfig())
	opts := testOptions(m)
	pop := agents.NewSpawner(testSeed, nil, opts.Params).SpawnRandom(10, m.Bounds)
	return engine.NewSimulation(opts, pop)
}

func run(s *engine.Simulation, from, to uint64) {
	for tick := from; tick <= to; tick++ {
		s.Tick(tick)
	}
}

func agentJSON(t *testing.T, list []*agents.Agent) []byte {
	t.Helper()
	b, err := json.Marshal(list)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return b
}

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "village.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestFreshDatabaseHasNoState(t *testing.T) {
	db := openTestDB(t)
	if db.HasWorldState() {
		t.Fatal("expected no world state in a fresh database")
	}
	if _, err := db.LoadMeta(); err == nil {
		t.Fatal("expected error loading meta from a fresh database")
	}
}

func TestMetaRoundTrip(t *testing.T) {
	db := openTestDB(t)
	if err := db.SetMeta("k", "v1"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := db.SetMeta("k", "v2"); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	got, err := db.GetMeta("k")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != "v2" {
		t.Fatalf("expected v2, got %q", got)
	}
}

func TestSaveAndLoadAgents(t *testing.T) {
	db := openTestDB(t)
	sim := newTestSim(t)
	run(sim, 1, 300)

	if err := db.SaveWorldState(sim); err != nil {
		t.Fatalf("save: %v", err)
	}
	if !db.HasWorldState() {
		t.Fatal("expected world state after save")
	}

	loaded, err := db.LoadAgents(sim.Params)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if want, got := agentJSON(t, sim.Roster.All()), agentJSON(t, loaded); !bytes.Equal(want, got) {
		t.Fatalf("expected identical agents\nwant %s\ngot  %s", want, got)
	}

	meta, err := db.LoadMeta()
	if err != nil {
		t.Fatalf("load meta: %v", err)
	}
	if meta.Resume.Tick != 300 || meta.Seed != testSeed || meta.RunID != sim.RunID.String() {
		t.Fatalf("expected tick 300 seed %d run %s, got %+v", testSeed, sim.RunID, meta)
	}
	if meta.Resume.Draws != sim.Draws {
		t.Fatalf("expected %d draws, got %d", sim.Draws, meta.Resume.Draws)
	}
}

func TestStoreResumeMatchesUninterruptedRun(t *testing.T) {
	db := openTestDB(t)

	full := newTestSim(t)
	run(full, 1, 240)

	half := newTestSim(t)
	run(half, 1, 120)
	if err := db.SaveWorldState(half); err != nil {
		t.Fatalf("save: %v", err)
	}

	meta, err := db.LoadMeta()
	if err != nil {
		t.Fatalf("load meta: %v", err)
	}
	m := world.Generate(world.SmallTestConfig())
	if err := m.Restore(meta.Nodes); err != nil {
		t.Fatalf("restore nodes: %v", err)
	}
	opts := testOptions(m)
	loaded, err := db.LoadAgents(opts.Params)
	if err != nil {
		t.Fatalf("load agents: %v", err)
	}
	resumed := engine.NewSimulation(opts, loaded)
	resumed.Resume(meta.Resume)
	run(resumed, 121, 240)

	if want, got := agentJSON(t, full.Roster.All()), agentJSON(t, resumed.Roster.All()); !bytes.Equal(want, got) {
		t.Fatal("expected resumed run to match the uninterrupted run")
	}
}

func TestEventsAreSavedOnce(t *testing.T) {
	db := openTestDB(t)
	sim := newTestSim(t)
	if _, err := sim.ProvisionNode(sim.Map.NodePositions(world.NodeBerry)[0], 1); err != nil {
		t.Fatalf("provision: %v", err)
	}

	if err := db.SaveWorldState(sim); err != nil {
		t.Fatalf("first save: %v", err)
	}
	if err := db.SaveWorldState(sim); err != nil {
		t.Fatalf("second save: %v", err)
	}

	events, err := db.RecentEvents(10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 stored event, got %d", len(events))
	}
	if events[0].Category != "admin" || events[0].Seq != 1 {
		t.Fatalf("expected admin event with seq 1, got %+v", events[0])
	}
	if events[0].Meta["pos"] == nil {
		t.Fatal("expected event meta to survive storage")
	}
}
