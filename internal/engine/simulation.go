// Simulation ties together the roster, environment and day cycle and runs
// them each tick.
package engine

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"github.com/talgya/ssd-village/internal/agents"
	"github.com/talgya/ssd-village/internal/entropy"
	"github.com/talgya/ssd-village/internal/telemetry"
	"github.com/talgya/ssd-village/internal/weather"
	"github.com/talgya/ssd-village/internal/world"
)

// Random sub-stream offsets.
const (
	streamAgents  = 0
	streamEnv     = 200
	maxEvents     = 1000
	reportEvents  = 20
	subscriberBuf = 256
)

// Options configure a new Simulation.
type Options struct {
	Seed    int64
	RunID   uuid.UUID // uuid.Nil picks a fresh id
	Params  *agents.Params
	Presets agents.Presets
	Map     *world.Map
	Cycle   weather.CycleConfig
	Debug   bool             // validate every agent after every tick
	Sinks   []telemetry.Sink // extra telemetry consumers
}

// Simulation holds the complete world state and wires systems together.
// The engine goroutine holds the write lock for a whole tick; readers take
// the read lock.
type Simulation struct {
	mu sync.RWMutex

	Params  *agents.Params
	Map     *world.Map
	Env     *world.Environment
	Cycle   *weather.Cycle
	Roster  *agents.Roster
	Spawner *agents.Spawner

	Seed      int64
	RunID     uuid.UUID
	LastTick  uint64 // Most recent tick processed
	Draws     uint64 // Random values consumed so far
	Debug     bool
	StartedAt time.Time

	Events   []Event // Recent events, oldest first, capped at maxEvents
	EventSeq uint64  // Seq of the newest event
	Stats    SimStats

	sinks   telemetry.Fanout
	subMu   sync.Mutex
	subs    map[int]chan telemetry.Record
	nextSub int
}

// Event is a notable occurrence in the world.
type Event struct {
	Seq         uint64         `json:"seq"`
	Tick        uint64         `json:"tick"`
	AgentID     uint64         `json:"agent_id,omitempty"`
	Description string         `json:"description"`
	Category    string         `json:"category"` // "death", "social", "territory", "season", "admin"
	Meta        map[string]any `json:"meta,omitempty"`
}

// NewSimulation creates a Simulation from a generated map and a population.
func NewSimulation(opts Options, population []*agents.Agent) *Simulation {
	if opts.Params == nil {
		p := agents.DefaultParams()
		opts.Params = &p
	}
	if opts.RunID == uuid.Nil {
		opts.RunID = uuid.New()
	}

	cycle := weather.NewCycle(opts.Cycle)
	roster := agents.NewRoster()
	for _, a := range population {
		a.Bind(opts.Params)
		roster.Add(a)
	}
	spawner := agents.NewSpawner(opts.Seed, opts.Presets, opts.Params)
	spawner.SetNextID(roster.MaxID() + 1)

	sim := &Simulation{
		Params:    opts.Params,
		Map:       opts.Map,
		Env:       world.NewEnvironment(opts.Map, entropy.Stream(opts.Seed, streamEnv, 0), cycle),
		Cycle:     cycle,
		Roster:    roster,
		Spawner:   spawner,
		Seed:      opts.Seed,
		RunID:     opts.RunID,
		Debug:     opts.Debug,
		StartedAt: time.Now(),
		sinks:     telemetry.Fanout(opts.Sinks),
		subs:      make(map[int]chan telemetry.Record),
	}
	sim.updateStats()
	return sim
}

// AddSink attaches another telemetry consumer.
func (s *Simulation) AddSink(sink telemetry.Sink) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sinks = append(s.sinks, sink)
}

// RLock takes the read lock for a consistent view of the world.
func (s *Simulation) RLock() { s.mu.RLock() }

// RUnlock releases the read lock.
func (s *Simulation) RUnlock() { s.mu.RUnlock() }

// CurrentTick returns the most recently processed tick number.
func (s *Simulation) CurrentTick() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.LastTick
}

// ResumePoint is the counter state a restored run continues from.
type ResumePoint struct {
	Tick     uint64
	Draws    uint64
	EventSeq uint64
}

// Resume positions a restored simulation at rp.
func (s *Simulation) Resume(rp ResumePoint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.LastTick = rp.Tick
	s.Draws = rp.Draws
	s.EventSeq = rp.EventSeq
	s.Cycle.SetTick(rp.Tick)
	s.updateStats()
}

// Tick runs one tick: every live agent in roster order, then the environment.
// Each tick draws from its own streams so a resumed run replays exactly.
func (s *Simulation) Tick(tick uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.LastTick = tick
	s.Cycle.SetTick(tick)

	rng := entropy.Stream(s.Seed, streamAgents, tick)
	envRng := entropy.Stream(s.Seed, streamEnv, tick)
	s.Env.Reseed(envRng)
	s.Roster.RebuildIndex()

	ctx := &agents.Context{
		Tick:  tick,
		World: s.Roster,
		Env:   s.Env,
		Cond:  s.Cycle,
		Rand:  rng,
		Sink:  s,
	}
	for _, a := range s.Roster.All() {
		a.Step(ctx)
	}
	s.Env.Step()
	s.Draws += rng.Draws() + envRng.Draws()

	if s.Debug {
		s.validate(tick)
	}
	s.updateStats()
}

// validate logs every invariant violation. It never stops the run.
func (s *Simulation) validate(tick uint64) {
	for _, a := range s.Roster.All() {
		if err := a.Validate(); err != nil {
			slog.Error("invariant violation", "tick", tick, "agent", a.Name, "error", err)
		}
	}
}

// Emit implements telemetry.Sink. Agents call it from inside Tick, so the
// write lock is already held.
func (s *Simulation) Emit(r telemetry.Record) {
	if ev, ok := eventFor(r); ok {
		s.appendEvent(ev)
	}
	s.sinks.Emit(r)
	s.broadcast(r)
}

// appendEvent records an event. Callers hold the write lock.
func (s *Simulation) appendEvent(ev Event) {
	s.EventSeq++
	ev.Seq = s.EventSeq
	s.Events = append(s.Events, ev)
	if len(s.Events) > maxEvents {
		s.Events = s.Events[len(s.Events)-maxEvents:]
	}
}

// RecentEvents returns up to n of the newest events, oldest first.
func (s *Simulation) RecentEvents(n int) []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	start := 0
	if n > 0 && len(s.Events) > n {
		start = len(s.Events) - n
	}
	out := make([]Event, len(s.Events)-start)
	copy(out, s.Events[start:])
	return out
}

// EventsSince returns the retained events with Seq above seq.
func (s *Simulation) EventsSince(seq uint64) []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.eventsSince(seq)
}

func (s *Simulation) eventsSince(seq uint64) []Event {
	i := sort.Search(len(s.Events), func(i int) bool { return s.Events[i].Seq > seq })
	out := make([]Event, len(s.Events)-i)
	copy(out, s.Events[i:])
	return out
}

// eventFor turns the notable telemetry records into events.
func eventFor(r telemetry.Record) (Event, bool) {
	ev := Event{Tick: r.Tick, AgentID: r.AgentID}
	switch {
	case r.Kind == "death":
		ev.Category = "death"
		ev.Description = fmt.Sprintf("%s died of %s", r.Agent, r.Detail)
	case r.Kind == "help_start":
		ev.Category = "social"
		ev.Description = fmt.Sprintf("%s started to help agent %s (%s)", r.Agent, r.Target, r.Detail)
	case r.Kind == "territory_claimed":
		ev.Category = "territory"
		ev.Description = fmt.Sprintf("%s claimed a territory at %s", r.Agent, r.Target)
	case strings.HasPrefix(r.Kind, "territory_"):
		ev.Category = "territory"
		ev.Description = fmt.Sprintf("%s %s intruder %s (threat %.2f)", r.Agent, strings.TrimPrefix(r.Kind, "territory_"), r.Target, r.Amount)
	default:
		return Event{}, false
	}
	return ev, true
}

// Subscribe registers a live telemetry consumer. Records are dropped for a
// subscriber whose buffer is full.
func (s *Simulation) Subscribe() (int, <-chan telemetry.Record) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	id := s.nextSub
	s.nextSub++
	ch := make(chan telemetry.Record, subscriberBuf)
	s.subs[id] = ch
	return id, ch
}

// Unsubscribe removes a consumer and closes its channel.
func (s *Simulation) Unsubscribe(id int) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	if ch, ok := s.subs[id]; ok {
		delete(s.subs, id)
		close(ch)
	}
}

func (s *Simulation) broadcast(r telemetry.Record) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- r:
		default:
		}
	}
}

// TickDay runs every sim-day: statistics and the daily report.
func (s *Simulation) TickDay(tick uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	// Count events by category since the previous report.
	dayStart := uint64(0)
	if dl := uint64(s.Cycle.DayLength()); tick >= dl {
		dayStart = tick - dl
	}
	eventCounts := make(map[string]int)
	for _, e := range s.Events {
		if e.Tick > dayStart {
			eventCounts[e.Category]++
		}
	}

	st := s.Stats
	slog.Info("daily report",
		"tick", humanize.Comma(int64(tick)),
		"time", SimTime(tick, uint64(s.Cycle.DayLength())),
		"season", s.Cycle.Season().Name,
		"alive", st.Alive,
		"dead", st.Dead,
		"territories", st.Territories,
		"avg_hunger", fmt.Sprintf("%.1f", st.AvgHunger),
		"avg_fatigue", fmt.Sprintf("%.1f", st.AvgFatigue),
		"avg_heat", fmt.Sprintf("%.3f", st.AvgHeat),
		"avg_temperature", fmt.Sprintf("%.3f", st.AvgTemperature),
		"bonds", st.Social.Bonds,
		"rivalries", st.Social.Rivalries,
		"events_death", eventCounts["death"],
		"events_social", eventCounts["social"],
		"events_territory", eventCounts["territory"],
		"draws", humanize.Comma(int64(s.Draws)),
		"started", humanize.Time(s.StartedAt),
	)

	// Log recent notable events.
	recentStart := 0
	if len(s.Events) > reportEvents {
		recentStart = len(s.Events) - reportEvents
	}
	for _, e := range s.Events[recentStart:] {
		if e.Tick > dayStart && (e.Category == "death" || e.Category == "territory") {
			slog.Info("event", "category", e.Category, "description", e.Description)
		}
	}
}
