package world

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/talgya/ssd-village/internal/entropy"
)

// ErrInvalidTarget is returned when a node can no longer be resolved.
var ErrInvalidTarget = errors.New("invalid target")

// Outcome is the result of a forage or hunt attempt.
type Outcome struct {
	Success     bool    `json:"success"`
	Amount      float64 `json:"amount"`      // food gained
	Risk        float64 `json:"risk"`        // injury exposure, scaled by the agent's risk tolerance
	Probability float64 `json:"probability"` // success chance that was rolled against
}

// Modifiers are the time-of-day and season multipliers the environment consults.
type Modifiers interface {
	ForageModifier() float64       // multiplies forage success, 0.3–1.0
	BerryRegenMultiplier() float64 // multiplies berry regrowth
	PreyActivity() float64         // multiplies hunt base success
}

type neutralModifiers struct{}

func (neutralModifiers) ForageModifier() float64       { return 1 }
func (neutralModifiers) BerryRegenMultiplier() float64 { return 1 }
func (neutralModifiers) PreyActivity() float64         { return 1 }

// Environment resolves forage and hunt attempts against the node map.
// It owns its own random stream so node rolls never perturb agent decisions.
type Environment struct {
	Map  *Map
	rng  entropy.Source
	mods Modifiers
	tick uint64
}

// NewEnvironment wraps a map. mods may be nil for a constant environment.
func NewEnvironment(m *Map, rng entropy.Source, mods Modifiers) *Environment {
	if mods == nil {
		mods = neutralModifiers{}
	}
	return &Environment{Map: m, rng: rng, mods: mods}
}

// Reseed replaces the environment's random stream.
func (e *Environment) Reseed(rng entropy.Source) {
	e.rng = rng
}

// Bounds returns the world extent.
func (e *Environment) Bounds() Bounds {
	return e.Map.Bounds
}

// Forage attempts to gather from the berry patch at node.
func (e *Environment) Forage(pos, node Pos) (Outcome, error) {
	patch := e.Map.Berry(node)
	if patch == nil {
		return Outcome{}, fmt.Errorf("forage at %s: %w", node, ErrInvalidTarget)
	}

	abundance := patch.Abundance
	dist := float64(Distance(pos, node))
	p := 0.6*abundance + 0.2*math.Max(0, 1-dist/12)
	p *= e.mods.ForageModifier()

	out := Outcome{Risk: 0.05, Probability: p}
	if e.rng.Float64() < p {
		out.Success = true
		patch.Abundance = math.Max(0, patch.Abundance-entropy.Uniform(e.rng, 0.2, 0.4))
		out.Amount = entropy.Uniform(e.rng, 10, 20) * (0.5 + abundance/2)
	}
	return out, nil
}

// Hunt attempts a hunt in the zone at node. injuryFactor (0–1) and coopBonus
// (≥0) come from the hunter's condition and nearby allies.
func (e *Environment) Hunt(pos, node Pos, injuryFactor, coopBonus float64) (Outcome, error) {
	zone := e.Map.Zone(node)
	if zone == nil {
		return Outcome{}, fmt.Errorf("hunt at %s: %w", node, ErrInvalidTarget)
	}

	base := zone.BaseSuccess * e.mods.PreyActivity()
	dist := float64(Distance(pos, node))
	p := base * math.Max(0.15, 1-dist/14)
	p *= injuryFactor
	p *= 1 + coopBonus
	p = clamp(p, 0.01, 0.95)

	out := Outcome{
		Risk:        zone.Danger * (0.9 + dist/18),
		Probability: p,
	}
	if e.rng.Float64() < p {
		out.Success = true
		out.Amount = entropy.Uniform(e.rng, 20, 45) * (0.5 + base/2) * (1 + 0.25*coopBonus)
	}
	return out, nil
}

// NearestNodes returns up to k node cells of a kind ordered by distance from
// pos. Ties break on (y, x) so the order is stable across runs.
func (e *Environment) NearestNodes(pos Pos, kind NodeKind, k int) []Pos {
	nodes := e.Map.NodePositions(kind)
	sort.SliceStable(nodes, func(i, j int) bool {
		return Distance(pos, nodes[i]) < Distance(pos, nodes[j])
	})
	if k > 0 && len(nodes) > k {
		nodes = nodes[:k]
	}
	return nodes
}

// Step regrows berries and drifts hunt zone success rates by one tick.
func (e *Environment) Step() {
	regen := e.mods.BerryRegenMultiplier()
	for _, p := range e.Map.NodePositions(NodeBerry) {
		b := e.Map.Berries[p]
		b.Abundance = math.Min(1, b.Abundance+b.Regen*regen*(1-b.Abundance))
	}
	for _, p := range e.Map.NodePositions(NodeHunt) {
		z := e.Map.HuntZones[p]
		z.BaseSuccess = clamp(z.BaseSuccess+e.rng.NormFloat64()*0.01, 0.03, 0.8)
	}
	e.tick++
}

// Ticks returns how many times Step has run.
func (e *Environment) Ticks() uint64 {
	return e.tick
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
