// Relationship summaries across the live population.
package engine

import (
	"math"
	"sort"

	"github.com/talgya/ssd-village/internal/agents"
)

// Affinity levels counted as a bond or a rivalry.
const (
	bondLevel    = 0.3
	rivalryLevel = -0.3
)

// SocialStats summarizes relationships among living agents.
type SocialStats struct {
	Bonds     int     `json:"bonds"`      // directed affinities above bondLevel
	Rivalries int     `json:"rivalries"`  // directed affinities below rivalryLevel
	Guests    int     `json:"guests"`     // invitations across all territories
	TotalDebt float64 `json:"total_debt"` // outstanding help debt
	Helping   int     `json:"helping"`    // agents currently committed to a helpee
}

func socialStats(alive []*agents.Agent) SocialStats {
	var st SocialStats
	for _, a := range alive {
		for _, v := range a.Relationships {
			switch {
			case v > bondLevel:
				st.Bonds++
			case v < rivalryLevel:
				st.Rivalries++
			}
		}
		for _, d := range a.HelpDebt {
			st.TotalDebt += d
		}
		if a.Territory != nil {
			st.Guests += len(a.Territory.Guests)
		}
		if a.State.Kind == agents.StateHelping {
			st.Helping++
		}
	}
	return st
}

// Relation is one directed affinity with the debt owed along it.
type Relation struct {
	Other    agents.AgentID `json:"other"`
	Affinity float64        `json:"affinity"`
	Debt     float64        `json:"debt"`
}

// Relations returns a's relations, strongest first by absolute affinity with
// ties broken by id.
func Relations(a *agents.Agent) []Relation {
	seen := make(map[agents.AgentID]bool)
	var out []Relation
	for id, v := range a.Relationships {
		seen[id] = true
		out = append(out, Relation{Other: id, Affinity: v, Debt: a.Owes(id)})
	}
	for id, d := range a.HelpDebt {
		if !seen[id] {
			out = append(out, Relation{Other: id, Debt: d})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		ai, aj := math.Abs(out[i].Affinity), math.Abs(out[j].Affinity)
		if ai != aj {
			return ai > aj
		}
		return out[i].Other < out[j].Other
	})
	return out
}
