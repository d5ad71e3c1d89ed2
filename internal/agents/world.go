package agents

import (
	"sort"

	"github.com/talgya/ssd-village/internal/entropy"
	"github.com/talgya/ssd-village/internal/telemetry"
	"github.com/talgya/ssd-village/internal/world"
)

// World is the explicit context an agent sees of its peers. Nearby is
// read-only; Relocate and Apply are the only ways a step changes positions
// or another agent's state.
type World interface {
	// Nearby returns the live agents other than a within Manhattan radius,
	// in roster order.
	Nearby(a *Agent, radius int) []*Agent
	// Relocate moves a to the given cell and keeps the spatial index current.
	Relocate(a *Agent, to world.Pos)
	// Apply mutates another agent. Effects on dead or unknown agents are dropped.
	Apply(target AgentID, fx Effect)
}

// Effect is a change one agent applies to another. Stat and heat fields are
// deltas; Rel and Debt adjust the target's view of Source.
type Effect struct {
	Source  AgentID
	Hunger  float64
	Fatigue float64
	Injury  float64
	Heat    float64
	Rel     float64 // target's affinity toward Source
	Debt    float64 // target's help debt toward Source
}

// apply folds fx into a, clamping stats and heat.
func (a *Agent) apply(fx Effect) {
	a.Stats.Hunger += fx.Hunger
	a.Stats.Fatigue += fx.Fatigue
	a.Stats.Injury += fx.Injury
	a.clampStats()
	if fx.Heat != 0 {
		a.addHeat(fx.Heat)
	}
	if fx.Rel != 0 {
		a.AdjustRel(fx.Source, fx.Rel)
	}
	if fx.Debt != 0 {
		a.HelpDebt[fx.Source] += fx.Debt
	}
}

// Environment is what an agent forages and hunts in.
type Environment interface {
	Forage(pos, node world.Pos) (world.Outcome, error)
	Hunt(pos, node world.Pos, injuryFactor, coopBonus float64) (world.Outcome, error)
	NearestNodes(pos world.Pos, kind world.NodeKind, k int) []world.Pos
	Bounds() world.Bounds
}

// Conditions are the time-of-day signals a step reads. The forage-success
// modifier reaches the environment directly through world.Modifiers.
type Conditions interface {
	ActivityCost() float64  // drift multiplier, ≥1
	SleepPressure() float64 // 0–1, peaks mid-night
}

type neutralConditions struct{}

func (neutralConditions) ActivityCost() float64  { return 1 }
func (neutralConditions) SleepPressure() float64 { return 0 }

// Context carries everything one tick of one agent needs besides the agent.
type Context struct {
	Tick  uint64
	World World
	Env   Environment
	Cond  Conditions // nil means constant daylight
	Rand  entropy.Source
	Sink  telemetry.Sink // nil drops records
}

func (c *Context) conditions() Conditions {
	if c.Cond == nil {
		return neutralConditions{}
	}
	return c.Cond
}

func (c *Context) emit(r telemetry.Record) {
	if c.Sink != nil {
		c.Sink.Emit(r)
	}
}

const cellSize = 4

type cellKey struct{ cx, cy int }

func keyFor(p world.Pos) cellKey {
	return cellKey{floorDiv(p.X, cellSize), floorDiv(p.Y, cellSize)}
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

// Roster owns the agents of a run in processing order and implements World
// with a grid spatial index.
type Roster struct {
	agents []*Agent
	byID   map[AgentID]*Agent
	order  map[AgentID]int
	grid   map[cellKey][]*Agent
}

// NewRoster creates an empty roster.
func NewRoster() *Roster {
	return &Roster{
		byID:  make(map[AgentID]*Agent),
		order: make(map[AgentID]int),
		grid:  make(map[cellKey][]*Agent),
	}
}

// Add appends an agent to the processing order. Adding a known id replaces
// nothing and reports false.
func (r *Roster) Add(a *Agent) bool {
	if _, ok := r.byID[a.ID]; ok {
		return false
	}
	r.order[a.ID] = len(r.agents)
	r.agents = append(r.agents, a)
	r.byID[a.ID] = a
	if a.Alive {
		r.insert(a)
	}
	return true
}

// Get returns the agent with the given id, or nil.
func (r *Roster) Get(id AgentID) *Agent {
	return r.byID[id]
}

// All returns every agent, dead included, in roster order.
func (r *Roster) All() []*Agent {
	return r.agents
}

// Alive returns the live agents in roster order.
func (r *Roster) Alive() []*Agent {
	out := make([]*Agent, 0, len(r.agents))
	for _, a := range r.agents {
		if a.Alive {
			out = append(out, a)
		}
	}
	return out
}

// Len returns the number of agents, dead included.
func (r *Roster) Len() int {
	return len(r.agents)
}

// MaxID returns the highest agent id in the roster.
func (r *Roster) MaxID() AgentID {
	var max AgentID
	for _, a := range r.agents {
		if a.ID > max {
			max = a.ID
		}
	}
	return max
}

// RebuildIndex recomputes the spatial index from the live agents. Called at
// the start of every tick.
func (r *Roster) RebuildIndex() {
	for k := range r.grid {
		delete(r.grid, k)
	}
	for _, a := range r.agents {
		if a.Alive {
			r.insert(a)
		}
	}
}

func (r *Roster) insert(a *Agent) {
	k := keyFor(a.Position)
	r.grid[k] = append(r.grid[k], a)
}

func (r *Roster) remove(a *Agent) {
	k := keyFor(a.Position)
	cell := r.grid[k]
	for i, o := range cell {
		if o == a {
			cell = append(cell[:i], cell[i+1:]...)
			break
		}
	}
	if len(cell) == 0 {
		delete(r.grid, k)
	} else {
		r.grid[k] = cell
	}
}

// Nearby implements World.
func (r *Roster) Nearby(a *Agent, radius int) []*Agent {
	if radius < 0 {
		return nil
	}
	lo := keyFor(a.Position.Add(-radius, -radius))
	hi := keyFor(a.Position.Add(radius, radius))

	var out []*Agent
	for cy := lo.cy; cy <= hi.cy; cy++ {
		for cx := lo.cx; cx <= hi.cx; cx++ {
			for _, o := range r.grid[cellKey{cx, cy}] {
				if o == a || !o.Alive {
					continue
				}
				if world.Distance(a.Position, o.Position) <= radius {
					out = append(out, o)
				}
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return r.order[out[i].ID] < r.order[out[j].ID]
	})
	return out
}

// Relocate implements World.
func (r *Roster) Relocate(a *Agent, to world.Pos) {
	if a.Position == to {
		return
	}
	if _, ok := r.byID[a.ID]; !ok || !a.Alive {
		a.Position = to
		return
	}
	r.remove(a)
	a.Position = to
	r.insert(a)
}

// Apply implements World.
func (r *Roster) Apply(target AgentID, fx Effect) {
	t := r.byID[target]
	if t == nil || !t.Alive {
		return
	}
	t.apply(fx)
}
