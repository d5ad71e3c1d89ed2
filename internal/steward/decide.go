package steward

import (
	"fmt"

	"github.com/talgya/ssd-village/internal/agents"
	"github.com/talgya/ssd-village/internal/world"
)

// Actions the steward can take.
const (
	ActionNone      = "none"
	ActionProvision = "provision"
	ActionImmigrate = "immigrate"
)

// DefaultImmigrants are the presets newcomers rotate through.
var DefaultImmigrants = []string{agents.PresetForager, agents.PresetGuardian, agents.PresetTracker}

// Decision is the outcome of one cycle's deliberation.
type Decision struct {
	Action       string
	Rationale    string
	Intervention *Intervention
}

// Intervention is the payload for POST /api/v1/intervention.
type Intervention struct {
	Type      string     `json:"type"`
	Pos       *world.Pos `json:"pos,omitempty"`
	Abundance float64    `json:"abundance,omitempty"`
	Name      string     `json:"name,omitempty"`
	Preset    string     `json:"preset,omitempty"`
}

// Target describes where the intervention lands.
func (iv *Intervention) Target() string {
	if iv == nil || iv.Pos == nil {
		return ""
	}
	return iv.Pos.String()
}

// Decider turns a Health reading into at most one intervention.
type Decider struct {
	Rules      Rules
	Immigrants []string
	Bounds     world.Bounds
}

// Decide picks the lightest intervention that answers the crisis level, or
// none. An action that ran within the cooldown window is not repeated.
func (d *Decider) Decide(h *Health, mem *CycleMemory) Decision {
	switch h.CrisisLevel {
	case LevelCritical:
		if d.cooling(mem, ActionImmigrate) {
			return Decision{Action: ActionNone, Rationale: "population critical, immigration cooling down"}
		}
		pos := world.Pos{X: d.Bounds.Width / 2, Y: d.Bounds.Height / 2}
		if h.Richest != nil {
			pos = h.Richest.Pos
		}
		preset := agents.PresetForager
		if len(d.Immigrants) > 0 {
			preset = d.Immigrants[mem.Count(ActionImmigrate)%len(d.Immigrants)]
		}
		return Decision{
			Action:    ActionImmigrate,
			Rationale: fmt.Sprintf("%d alive, below %d", h.Alive, d.Rules.MinPopulation),
			Intervention: &Intervention{
				Type:   ActionImmigrate,
				Pos:    &pos,
				Preset: preset,
			},
		}

	case LevelWarning:
		if len(h.Depleted) == 0 || d.cooling(mem, ActionProvision) {
			return Decision{Action: ActionNone, Rationale: "food scarce, provisioning cooling down"}
		}
		worst := h.Depleted[0]
		return Decision{
			Action: ActionProvision,
			Rationale: fmt.Sprintf("avg hunger %.1f with %.0f%% of patches depleted",
				h.AvgHunger, h.DepletedRate*100),
			Intervention: &Intervention{
				Type:      ActionProvision,
				Pos:       &worst.Pos,
				Abundance: d.Rules.ProvisionTo,
			},
		}
	}
	return Decision{Action: ActionNone, Rationale: "village is " + h.CrisisLevel}
}

func (d *Decider) cooling(mem *CycleMemory, action string) bool {
	n := mem.CyclesSince(action)
	return n >= 0 && n < d.Rules.Cooldown
}
