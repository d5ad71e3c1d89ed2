package engine

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/talgya/ssd-village/internal/agents"
	"github.com/talgya/ssd-village/internal/telemetry"
	"github.com/talgya/ssd-village/internal/weather"
	"github.com/talgya/ssd-village/internal/world"
)

const testSeed = 99

func testOptions(m *world.Map) Options {
	p := agents.DefaultParams()
	return Options{
		Seed:   testSeed,
		Params: &p,
		Map:    m,
		Cycle:  weather.DefaultCycleConfig(),
		Debug:  true,
	}
}

func newTestSim(t *testing.T) *Simulation {
	t.Helper()
	m := world.Generate(world.SmallTestConfig())
	opts := testOptions(m)
	pop := agents.NewSpawner(testSeed, nil, opts.Params).SpawnRandom(8, m.Bounds)
	if len(pop) != 8 {
		t.Fatalf("expected 8 agents, got %d", len(pop))
	}
	return NewSimulation(opts, pop)
}

func runSim(s *Simulation, from, to uint64) {
	for tick := from; tick <= to; tick++ {
		s.Tick(tick)
	}
}

func fingerprint(t *testing.T, s *Simulation) []byte {
	t.Helper()
	s.RLock()
	defer s.RUnlock()
	b, err := json.Marshal(struct {
		Agents []*agents.Agent
		Nodes  world.NodeState
	}{s.Roster.All(), s.Map.State()})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return b
}

func TestSameSeedSameRun(t *testing.T) {
	a := newTestSim(t)
	b := newTestSim(t)
	runSim(a, 1, 150)
	runSim(b, 1, 150)

	if !bytes.Equal(fingerprint(t, a), fingerprint(t, b)) {
		t.Fatal("expected identical worlds for the same seed")
	}
	if a.Draws != b.Draws {
		t.Fatalf("expected equal draw counts, got %d and %d", a.Draws, b.Draws)
	}
	if a.Draws == 0 {
		t.Fatal("expected random draws to be counted")
	}
}

func TestResumeMatchesUninterruptedRun(t *testing.T) {
	full := newTestSim(t)
	runSim(full, 1, 200)

	half := newTestSim(t)
	runSim(half, 1, 100)

	// Persist the way the store does: agents as JSON, nodes as state.
	agentJSON, err := json.Marshal(half.Roster.All())
	if err != nil {
		t.Fatalf("marshal agents: %v", err)
	}
	nodes := half.Map.State()

	var restored []*agents.Agent
	if err := json.Unmarshal(agentJSON, &restored); err != nil {
		t.Fatalf("unmarshal agents: %v", err)
	}
	m := world.Generate(world.SmallTestConfig())
	if err := m.Restore(nodes); err != nil {
		t.Fatalf("restore nodes: %v", err)
	}
	resumed := NewSimulation(testOptions(m), restored)
	resumed.Resume(ResumePoint{Tick: 100, Draws: half.Draws, EventSeq: half.EventSeq})
	runSim(resumed, 101, 200)

	if !bytes.Equal(fingerprint(t, full), fingerprint(t, resumed)) {
		t.Fatal("expected resumed run to match the uninterrupted run")
	}
	if full.Draws != resumed.Draws {
		t.Fatalf("expected %d draws, got %d", full.Draws, resumed.Draws)
	}
}

func TestStatsTrackPopulation(t *testing.T) {
	s := newTestSim(t)
	runSim(s, 1, 50)

	st := s.Snapshot()
	if st.Alive+st.Dead != 8 {
		t.Fatalf("expected 8 agents counted, got %d alive + %d dead", st.Alive, st.Dead)
	}
	deaths := 0
	for _, n := range st.DeathsByCause {
		deaths += n
	}
	if deaths != st.Dead {
		t.Fatalf("expected causes to sum to %d, got %d", st.Dead, deaths)
	}
	states := 0
	for _, n := range st.States {
		states += n
	}
	if states != 8 {
		t.Fatalf("expected 8 states counted, got %d", states)
	}
}

func TestEmitBuildsEventsAndFeedsSinks(t *testing.T) {
	mem := telemetry.NewMemory()
	m := world.Generate(world.SmallTestConfig())
	opts := testOptions(m)
	opts.Sinks = []telemetry.Sink{mem}
	s := NewSimulation(opts, nil)

	id, ch := s.Subscribe()
	defer s.Unsubscribe(id)

	s.Emit(telemetry.Record{Tick: 3, AgentID: 1, Agent: "Forager_A", Kind: "death", Detail: agents.CauseStarvation})
	s.Emit(telemetry.Record{Tick: 4, AgentID: 2, Agent: "Guardian_D", Kind: "territory_chased", Target: "5", Amount: 0.8})
	s.Emit(telemetry.Record{Tick: 4, AgentID: 2, Agent: "Guardian_D", Kind: "forage"})

	if n := len(mem.Records()); n != 3 {
		t.Fatalf("expected 3 records in sink, got %d", n)
	}
	events := s.RecentEvents(10)
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].Category != "death" || events[1].Category != "territory" {
		t.Fatalf("expected death then territory, got %s then %s", events[0].Category, events[1].Category)
	}
	if len(ch) != 3 {
		t.Fatalf("expected 3 records queued for subscriber, got %d", len(ch))
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	s := NewSimulation(testOptions(world.Generate(world.SmallTestConfig())), nil)
	id, ch := s.Subscribe()
	s.Unsubscribe(id)
	if _, ok := <-ch; ok {
		t.Fatal("expected closed channel")
	}
	// A second unsubscribe is a no-op.
	s.Unsubscribe(id)
}

func TestEventRingIsBounded(t *testing.T) {
	s := NewSimulation(testOptions(world.Generate(world.SmallTestConfig())), nil)
	for i := 0; i < maxEvents+50; i++ {
		s.Emit(telemetry.Record{Tick: uint64(i), Kind: "help_start"})
	}
	if len(s.Events) != maxEvents {
		t.Fatalf("expected %d events, got %d", maxEvents, len(s.Events))
	}
	if s.Events[0].Seq != 51 {
		t.Fatalf("expected oldest seq 51, got %d", s.Events[0].Seq)
	}
	if got := s.EventsSince(uint64(maxEvents + 45)); len(got) != 5 {
		t.Fatalf("expected 5 events since seq %d, got %d", maxEvents+45, len(got))
	}
	if s.Events[0].Tick != 50 {
		t.Fatalf("expected oldest tick 50, got %d", s.Events[0].Tick)
	}
	if got := s.RecentEvents(5); len(got) != 5 || got[4].Tick != uint64(maxEvents+49) {
		t.Fatalf("expected newest 5 events, got %d", len(got))
	}
}

func TestProvisionNode(t *testing.T) {
	s := newTestSim(t)
	pos := s.Map.NodePositions(world.NodeBerry)[0]
	s.Map.Berry(pos).Abundance = 0.1

	if _, err := s.ProvisionNode(pos, 0.9); err != nil {
		t.Fatalf("provision: %v", err)
	}
	if got := s.Map.Berry(pos).Abundance; got != 0.9 {
		t.Fatalf("expected abundance 0.9, got %v", got)
	}
	if _, err := s.ProvisionNode(world.Pos{X: -1, Y: -1}, 0.5); err == nil {
		t.Fatal("expected error for missing patch")
	}
	if _, err := s.ProvisionNode(pos, 1.5); err == nil {
		t.Fatal("expected error for abundance above 1")
	}
}

func TestImmigrateAssignsFreshID(t *testing.T) {
	s := newTestSim(t)
	maxID := s.Roster.MaxID()

	a, err := s.Immigrate(agents.Spec{Preset: agents.PresetMediator, Start: world.Pos{X: 2, Y: 2}})
	if err != nil {
		t.Fatalf("immigrate: %v", err)
	}
	if a.ID != maxID+1 {
		t.Fatalf("expected id %d, got %d", maxID+1, a.ID)
	}
	if s.Stats.Alive+s.Stats.Dead != 9 {
		t.Fatalf("expected 9 agents after immigration, got %d", s.Stats.Alive+s.Stats.Dead)
	}
	if _, err := s.Immigrate(agents.Spec{Preset: "nobody", Start: world.Pos{X: 2, Y: 2}}); err == nil {
		t.Fatal("expected error for unknown preset")
	}
}

func TestAgentCopiesAreIndependent(t *testing.T) {
	s := newTestSim(t)
	runSim(s, 1, 30)
	copies := s.AgentCopies()
	copies[0].Relationships[12345] = 1
	if s.Roster.All()[0].Rel(12345) != 0 {
		t.Fatal("expected copy to be detached from the live agent")
	}
}
