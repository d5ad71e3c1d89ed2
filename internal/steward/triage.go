package steward

import (
	"sort"

	"github.com/talgya/ssd-village/internal/world"
)

// Crisis levels, most severe first.
const (
	LevelCritical = "CRITICAL"
	LevelWarning  = "WARNING"
	LevelWatch    = "WATCH"
	LevelHealthy  = "HEALTHY"
)

// Rules are the thresholds the steward grades a village against.
type Rules struct {
	MinPopulation int     // fewer living agents than this is a collapse
	HungerAlarm   float64 // average hunger that counts as a food crisis
	DepletedBelow float64 // berry abundance under which a patch counts as depleted
	ScarceShare   float64 // share of depleted patches that counts as scarcity
	ProvisionTo   float64 // abundance a provisioned patch is raised to
	Cooldown      int     // cycles before the same action may repeat
}

// DefaultRules returns the stock thresholds.
func DefaultRules() Rules {
	return Rules{
		MinPopulation: 4,
		HungerAlarm:   70,
		DepletedBelow: 0.15,
		ScarceShare:   0.5,
		ProvisionTo:   0.7,
		Cooldown:      2,
	}
}

// Health holds the signals derived from one Observation.
type Health struct {
	Tick         uint64
	Alive        int
	AvgHunger    float64
	Depleted     []world.BerryPatch // most depleted first
	DepletedRate float64
	Richest      *world.BerryPatch
	CrisisLevel  string
}

// Triage grades an observation. It is pure and deterministic.
func Triage(obs *Observation, r Rules) *Health {
	h := &Health{
		Tick:      obs.Status.Tick,
		Alive:     obs.Stats.Alive,
		AvgHunger: obs.Stats.AvgHunger,
	}

	for i := range obs.Nodes.Berries {
		b := obs.Nodes.Berries[i]
		if b.Abundance < r.DepletedBelow {
			h.Depleted = append(h.Depleted, b)
		}
		if h.Richest == nil || b.Abundance > h.Richest.Abundance {
			h.Richest = &b
		}
	}
	sort.Slice(h.Depleted, func(i, j int) bool {
		a, b := h.Depleted[i], h.Depleted[j]
		if a.Abundance != b.Abundance {
			return a.Abundance < b.Abundance
		}
		if a.Pos.Y != b.Pos.Y {
			return a.Pos.Y < b.Pos.Y
		}
		return a.Pos.X < b.Pos.X
	})
	if n := len(obs.Nodes.Berries); n > 0 {
		h.DepletedRate = float64(len(h.Depleted)) / float64(n)
	}

	hungry := h.AvgHunger > r.HungerAlarm
	scarce := len(h.Depleted) > 0 && h.DepletedRate >= r.ScarceShare

	switch {
	case h.Alive < r.MinPopulation:
		h.CrisisLevel = LevelCritical
	case hungry && scarce:
		h.CrisisLevel = LevelWarning
	case hungry || scarce:
		h.CrisisLevel = LevelWatch
	default:
		h.CrisisLevel = LevelHealthy
	}
	return h
}
