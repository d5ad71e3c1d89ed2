package agents

import (
	"fmt"

	"github.com/talgya/ssd-village/internal/entropy"
	"github.com/talgya/ssd-village/internal/telemetry"
	"github.com/talgya/ssd-village/internal/world"
)

// scripted replays fixed draws, then repeats fallback.
type scripted struct {
	floats   []float64
	fallback float64
	draws    int
}

func (s *scripted) Float64() float64 {
	s.draws++
	if len(s.floats) == 0 {
		return s.fallback
	}
	v := s.floats[0]
	s.floats = s.floats[1:]
	return v
}

func (s *scripted) Intn(n int) int       { return 0 }
func (s *scripted) NormFloat64() float64 { return 0 }

// fakeEnv has fixed nodes and resolves every attempt with its own stream.
type fakeEnv struct {
	bounds  world.Bounds
	berries []world.Pos
	zones   []world.Pos
	rng     entropy.Source
	success float64 // probability of success
	food    float64
	risk    float64
}

func newFakeEnv(seed int64) *fakeEnv {
	return &fakeEnv{
		bounds:  world.Bounds{Width: 20, Height: 20},
		berries: []world.Pos{{X: 3, Y: 3}, {X: 15, Y: 12}},
		zones:   []world.Pos{{X: 10, Y: 16}},
		rng:     entropy.NewSeeded(seed),
		success: 0.6,
		food:    18,
		risk:    0.3,
	}
}

func (e *fakeEnv) Bounds() world.Bounds { return e.bounds }

func (e *fakeEnv) Forage(pos, node world.Pos) (world.Outcome, error) {
	return e.resolve(node, e.berries)
}

func (e *fakeEnv) Hunt(pos, node world.Pos, injuryFactor, coop float64) (world.Outcome, error) {
	return e.resolve(node, e.zones)
}

func (e *fakeEnv) resolve(node world.Pos, nodes []world.Pos) (world.Outcome, error) {
	for _, n := range nodes {
		if n == node {
			out := world.Outcome{Risk: e.risk, Probability: e.success}
			if e.rng.Float64() < e.success {
				out.Success = true
				out.Amount = e.food
			}
			return out, nil
		}
	}
	return world.Outcome{}, fmt.Errorf("node %s: %w", node, world.ErrInvalidTarget)
}

func (e *fakeEnv) NearestNodes(pos world.Pos, kind world.NodeKind, k int) []world.Pos {
	nodes := e.berries
	if kind == world.NodeHunt {
		nodes = e.zones
	}
	best := -1
	for i, n := range nodes {
		if best < 0 || world.Distance(pos, n) < world.Distance(pos, nodes[best]) {
			best = i
		}
	}
	if best < 0 {
		return nil
	}
	return []world.Pos{nodes[best]}
}

func testParams() *Params {
	p := DefaultParams()
	return &p
}

func newTestAgent(id AgentID, preset string, pos world.Pos, p *Params) *Agent {
	traits, err := DefaultPresets().Lookup(preset)
	if err != nil {
		panic(err)
	}
	return NewAgent(id, fmt.Sprintf("%s_%d", preset, id), preset, traits, pos, p)
}

func newTestContext(r *Roster, env Environment, rng entropy.Source) (*Context, *telemetry.Memory) {
	mem := telemetry.NewMemory()
	return &Context{World: r, Env: env, Rand: rng, Sink: mem}, mem
}

// runTicks steps every live agent in roster order for n ticks.
func runTicks(ctx *Context, r *Roster, n int, check func(tick uint64)) {
	for i := 0; i < n; i++ {
		ctx.Tick++
		r.RebuildIndex()
		for _, a := range r.All() {
			a.Step(ctx)
		}
		if check != nil {
			check(ctx.Tick)
		}
	}
}
