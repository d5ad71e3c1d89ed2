// Package agents provides the agent data model and the per-agent cognitive
// engine: need pressure, coherence inertia (κ), heat (E), exploration
// temperature (T), the leap gate, cooperation, territory and the behavior
// state machine that ties them together each tick.
package agents

import (
	"errors"
	"fmt"
	"math"

	"github.com/talgya/ssd-village/internal/world"
)

// AgentID is a unique identifier for an agent.
type AgentID uint64

// ErrInvariantViolation marks a state that clamping should have made impossible.
var ErrInvariantViolation = errors.New("invariant violation")

// Traits are the personality vector fixed at construction. All 0.0–1.0.
type Traits struct {
	RiskTolerance float64 `json:"risk_tolerance" yaml:"risk_tolerance"`
	Curiosity     float64 `json:"curiosity" yaml:"curiosity"`
	Avoidance     float64 `json:"avoidance" yaml:"avoidance"`
	Stamina       float64 `json:"stamina" yaml:"stamina"`
	Empathy       float64 `json:"empathy" yaml:"empathy"`
}

// TerritorialAggression is how hard the agent defends its ground, 0.3–0.7.
func (t Traits) TerritorialAggression() float64 {
	return 0.3 + (1-t.Empathy)*0.4
}

// GroupLoyalty weights help toward agents inside the own territory, 0.5–0.8.
func (t Traits) GroupLoyalty() float64 {
	return 0.5 + t.Empathy*0.3
}

// Stats are the physiological needs. Each is clamped to [0, StatCap].
type Stats struct {
	Hunger  float64 `json:"hunger"`
	Fatigue float64 `json:"fatigue"`
	Injury  float64 `json:"injury"`
	Thirst  float64 `json:"thirst"`
	Boredom float64 `json:"boredom"`
}

// BaselineStats are the stats every agent starts with.
func BaselineStats() Stats {
	return Stats{Hunger: 50, Fatigue: 30, Injury: 0, Thirst: 20, Boredom: 0}
}

// Agent is one simulated NPC.
type Agent struct {
	ID     AgentID `json:"id"`
	Name   string  `json:"name"`
	Preset string  `json:"preset"`
	Traits Traits  `json:"traits"`

	Position world.Pos `json:"position"`
	Stats    Stats     `json:"stats"`
	State    State     `json:"state"`

	// Cognition.
	Kappa       Kappa   `json:"kappa"`
	Heat        float64 `json:"heat"`        // E, 0–EMax
	Temperature float64 `json:"temperature"` // T, 0.1–1.0

	// Social. Relationships are this agent's affinity toward others;
	// HelpDebt is what this agent owes others for help received.
	Relationships map[AgentID]float64 `json:"relationships,omitempty"`
	HelpDebt      map[AgentID]float64 `json:"help_debt,omitempty"`

	Territory  *Territory `json:"territory,omitempty"`
	RestAnchor world.Pos  `json:"rest_anchor"`
	RestStreak int        `json:"rest_streak"`

	Alive      bool   `json:"alive"`
	DeathTick  uint64 `json:"death_tick,omitempty"`
	DeathCause string `json:"death_cause,omitempty"`

	params *Params
}

// NewAgent creates a live agent with baseline stats and default κ.
func NewAgent(id AgentID, name, preset string, traits Traits, pos world.Pos, p *Params) *Agent {
	a := &Agent{
		ID:            id,
		Name:          name,
		Preset:        preset,
		Traits:        traits,
		Position:      pos,
		Stats:         BaselineStats(),
		State:         Idle(),
		Kappa:         DefaultKappa(),
		Temperature:   p.T0,
		Relationships: make(map[AgentID]float64),
		HelpDebt:      make(map[AgentID]float64),
		RestAnchor:    pos,
		Alive:         true,
		params:        p,
	}
	return a
}

// Bind attaches the shared parameters to an agent restored from storage.
// Maps that were omitted from the serialized form are re-created.
func (a *Agent) Bind(p *Params) {
	a.params = p
	if a.Relationships == nil {
		a.Relationships = make(map[AgentID]float64)
	}
	if a.HelpDebt == nil {
		a.HelpDebt = make(map[AgentID]float64)
	}
	if a.Territory != nil && a.Territory.Guests == nil {
		a.Territory.Guests = make(map[AgentID]bool)
	}
}

// Clone returns a copy that shares no maps with a.
func (a *Agent) Clone() Agent {
	c := *a
	c.Relationships = make(map[AgentID]float64, len(a.Relationships))
	for k, v := range a.Relationships {
		c.Relationships[k] = v
	}
	c.HelpDebt = make(map[AgentID]float64, len(a.HelpDebt))
	for k, v := range a.HelpDebt {
		c.HelpDebt[k] = v
	}
	if a.State.Move != nil {
		m := *a.State.Move
		c.State.Move = &m
	}
	if a.Territory != nil {
		t := *a.Territory
		t.Memory = make(map[string]int, len(a.Territory.Memory))
		for k, v := range a.Territory.Memory {
			t.Memory[k] = v
		}
		t.Guests = make(map[AgentID]bool, len(a.Territory.Guests))
		for k, v := range a.Territory.Guests {
			t.Guests[k] = v
		}
		c.Territory = &t
	}
	return c
}

// Params returns the parameters the agent runs with.
func (a *Agent) Params() *Params {
	return a.params
}

// Rel returns this agent's affinity toward other (0 when unknown).
func (a *Agent) Rel(other AgentID) float64 {
	return a.Relationships[other]
}

// AdjustRel adds delta to the affinity toward other.
func (a *Agent) AdjustRel(other AgentID, delta float64) {
	a.Relationships[other] += delta
}

// Owes returns the help debt this agent carries toward other.
func (a *Agent) Owes(other AgentID) float64 {
	return a.HelpDebt[other]
}

// AtHome reports whether the agent stands inside its own territory.
func (a *Agent) AtHome() bool {
	return a.Territory != nil && a.Territory.Contains(a.Position)
}

// Validate checks the model invariants. A non-nil error is a defect.
func (a *Agent) Validate() error {
	p := a.params
	for k, v := range a.Kappa {
		if v < p.KappaMin || math.IsNaN(v) {
			return fmt.Errorf("%s: kappa[%s]=%v below %v: %w", a.Name, ActionKind(k), v, p.KappaMin, ErrInvariantViolation)
		}
	}
	if a.Heat < 0 || a.Heat > p.EMax || math.IsNaN(a.Heat) {
		return fmt.Errorf("%s: heat %v outside [0,%v]: %w", a.Name, a.Heat, p.EMax, ErrInvariantViolation)
	}
	if a.Temperature < p.TMin || a.Temperature > p.TMax || math.IsNaN(a.Temperature) {
		return fmt.Errorf("%s: temperature %v outside [%v,%v]: %w", a.Name, a.Temperature, p.TMin, p.TMax, ErrInvariantViolation)
	}
	for name, v := range map[string]float64{
		"hunger":  a.Stats.Hunger,
		"fatigue": a.Stats.Fatigue,
		"injury":  a.Stats.Injury,
		"thirst":  a.Stats.Thirst,
		"boredom": a.Stats.Boredom,
	} {
		if v < 0 || v > p.StatCap || math.IsNaN(v) {
			return fmt.Errorf("%s: %s %v outside [0,%v]: %w", a.Name, name, v, p.StatCap, ErrInvariantViolation)
		}
	}
	if !a.State.Kind.Valid() {
		return fmt.Errorf("%s: unknown state %d: %w", a.Name, a.State.Kind, ErrInvariantViolation)
	}
	if a.Alive == (a.State.Kind == StateDead) {
		return fmt.Errorf("%s: alive=%v in state %s: %w", a.Name, a.Alive, a.State.Kind, ErrInvariantViolation)
	}
	if a.Territory != nil && a.Territory.Radius <= 0 {
		return fmt.Errorf("%s: territory radius %v: %w", a.Name, a.Territory.Radius, ErrInvariantViolation)
	}
	return nil
}

// clampStats pulls every stat back into [0, StatCap].
func (a *Agent) clampStats() {
	c := a.params.StatCap
	a.Stats.Hunger = clamp(a.Stats.Hunger, 0, c)
	a.Stats.Fatigue = clamp(a.Stats.Fatigue, 0, c)
	a.Stats.Injury = clamp(a.Stats.Injury, 0, c)
	a.Stats.Thirst = clamp(a.Stats.Thirst, 0, c)
	a.Stats.Boredom = clamp(a.Stats.Boredom, 0, c)
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
