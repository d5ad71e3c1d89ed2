// Personality presets: named trait vectors an agent is built from.
// Each preset biases risk appetite, exploration, territoriality, endurance
// and willingness to help.
package agents

import (
	"fmt"
	"sort"
	"strings"
)

// Preset names.
const (
	PresetForager   = "FORAGER"
	PresetTracker   = "TRACKER"
	PresetPioneer   = "PIONEER"
	PresetGuardian  = "GUARDIAN"
	PresetScavenger = "SCAVENGER"
	PresetNomad     = "NOMAD"
	PresetMediator  = "MEDIATOR"
	PresetHermit    = "HERMIT"
	PresetAggressor = "AGGRESSOR"
	PresetCollector = "COLLECTOR"
	PresetHunter    = "HUNTER"
)

// Presets maps a preset name to its traits. Config may add more.
type Presets map[string]Traits

var builtinPresets = Presets{
	PresetForager:   {RiskTolerance: 0.2, Curiosity: 0.3, Avoidance: 0.8, Stamina: 0.6, Empathy: 0.8},
	PresetTracker:   {RiskTolerance: 0.6, Curiosity: 0.5, Avoidance: 0.2, Stamina: 0.8, Empathy: 0.6},
	PresetPioneer:   {RiskTolerance: 0.5, Curiosity: 0.9, Avoidance: 0.3, Stamina: 0.7, Empathy: 0.5},
	PresetGuardian:  {RiskTolerance: 0.4, Curiosity: 0.4, Avoidance: 0.6, Stamina: 0.9, Empathy: 0.9}, // Best helper
	PresetScavenger: {RiskTolerance: 0.3, Curiosity: 0.6, Avoidance: 0.7, Stamina: 0.5, Empathy: 0.5},
	PresetNomad:     {RiskTolerance: 0.7, Curiosity: 0.8, Avoidance: 0.1, Stamina: 0.6, Empathy: 0.4}, // Small territory
	PresetMediator:  {RiskTolerance: 0.3, Curiosity: 0.5, Avoidance: 0.5, Stamina: 0.7, Empathy: 1.0},
	PresetHermit:    {RiskTolerance: 0.2, Curiosity: 0.3, Avoidance: 0.9, Stamina: 0.8, Empathy: 0.3}, // Large territory
	PresetAggressor: {RiskTolerance: 0.8, Curiosity: 0.4, Avoidance: 0.1, Stamina: 0.9, Empathy: 0.2},
	PresetCollector: {RiskTolerance: 0.4, Curiosity: 0.7, Avoidance: 0.6, Stamina: 0.6, Empathy: 0.7},
	PresetHunter:    {RiskTolerance: 0.8, Curiosity: 0.4, Avoidance: 0.3, Stamina: 0.7, Empathy: 0.5},
}

// DefaultPresets returns a copy of the built-in preset table.
func DefaultPresets() Presets {
	out := make(Presets, len(builtinPresets))
	for k, v := range builtinPresets {
		out[k] = v
	}
	return out
}

// Lookup finds a preset by name, case-insensitively.
func (p Presets) Lookup(name string) (Traits, error) {
	if t, ok := p[strings.ToUpper(name)]; ok {
		return t, nil
	}
	return Traits{}, fmt.Errorf("unknown preset %q", name)
}

// Names returns the preset names in sorted order.
func (p Presets) Names() []string {
	names := make([]string, 0, len(p))
	for k := range p {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Validate checks that every trait lies in [0,1].
func (t Traits) Validate() error {
	for name, v := range map[string]float64{
		"risk_tolerance": t.RiskTolerance,
		"curiosity":      t.Curiosity,
		"avoidance":      t.Avoidance,
		"stamina":        t.Stamina,
		"empathy":        t.Empathy,
	} {
		if v < 0 || v > 1 {
			return fmt.Errorf("trait %s=%v outside [0,1]", name, v)
		}
	}
	return nil
}
