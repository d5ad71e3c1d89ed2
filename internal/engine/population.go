// Population statistics, recomputed after every tick.
package engine

import (
	"github.com/talgya/ssd-village/internal/agents"
)

// SimStats summarizes the population after the most recent tick.
type SimStats struct {
	Alive          int            `json:"alive"`
	Dead           int            `json:"dead"`
	DeathsByCause  map[string]int `json:"deaths_by_cause"`
	Territories    int            `json:"territories"`
	AvgHunger      float64        `json:"avg_hunger"`
	AvgFatigue     float64        `json:"avg_fatigue"`
	AvgInjury      float64        `json:"avg_injury"`
	AvgHeat        float64        `json:"avg_heat"`
	AvgTemperature float64        `json:"avg_temperature"`
	AvgKappa       float64        `json:"avg_kappa"`
	States         map[string]int `json:"states"`
	Social         SocialStats    `json:"social"`
}

// updateStats recomputes the statistics. Callers hold the write lock.
func (s *Simulation) updateStats() {
	st := SimStats{
		DeathsByCause: make(map[string]int),
		States:        make(map[string]int),
	}
	for _, a := range s.Roster.All() {
		st.States[a.State.Kind.String()]++
		if !a.Alive {
			st.Dead++
			st.DeathsByCause[a.DeathCause]++
			continue
		}
		st.Alive++
		if a.Territory != nil {
			st.Territories++
		}
		st.AvgHunger += a.Stats.Hunger
		st.AvgFatigue += a.Stats.Fatigue
		st.AvgInjury += a.Stats.Injury
		st.AvgHeat += a.Heat
		st.AvgTemperature += a.Temperature
		st.AvgKappa += a.Kappa.Mean()
	}
	if st.Alive > 0 {
		n := float64(st.Alive)
		st.AvgHunger /= n
		st.AvgFatigue /= n
		st.AvgInjury /= n
		st.AvgHeat /= n
		st.AvgTemperature /= n
		st.AvgKappa /= n
	}
	st.Social = socialStats(s.Roster.Alive())
	s.Stats = st
}

// Snapshot returns a copy of the statistics.
func (s *Simulation) Snapshot() SimStats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Stats
}

// AgentCopies returns deep-enough copies of every agent for readers outside
// the lock. Maps and territory are cloned.
func (s *Simulation) AgentCopies() []agents.Agent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]agents.Agent, 0, s.Roster.Len())
	for _, a := range s.Roster.All() {
		out = append(out, a.Clone())
	}
	return out
}
