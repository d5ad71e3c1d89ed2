package agents

import (
	"math"

	"github.com/talgya/ssd-village/internal/entropy"
)

// Death causes recorded on the agent.
const (
	CauseStarvation = "starvation"
	CauseInjury     = "injury"
	CauseExhaustion = "exhaustion"
	CauseLeap       = "leap"
)

// LeapResult describes one crisis evaluation.
type LeapResult struct {
	Evaluated   bool    `json:"evaluated"`   // a crisis threshold was crossed
	Theta       float64 `json:"theta"`       // crisis resistance Θ
	Rate        float64 `json:"rate"`        // jump rate h
	Probability float64 `json:"probability"` // 1−exp(−h) after the death-risk factor
	Leapt       bool    `json:"leapt"`       // the Bernoulli draw fired
	Fatal       bool    `json:"fatal"`
	Cause       string  `json:"cause,omitempty"`
}

// InCrisis reports whether any stat has crossed a leap trigger level.
func (a *Agent) InCrisis() bool {
	c := a.params.Crisis
	return a.Stats.Hunger >= c.Hunger || a.Stats.Injury >= c.Injury || a.Stats.Fatigue >= c.Fatigue
}

// DeathRiskFactor amplifies the leap probability once fatigue passes the
// risk level: 1 + max(0, (fatigue−RiskFatigue)/RiskScale).
func (a *Agent) DeathRiskFactor() float64 {
	c := a.params.Crisis
	return 1 + math.Max(0, (a.Stats.Fatigue-c.RiskFatigue)/c.RiskScale)
}

// EvaluateLeap runs the crisis gate. Outside a crisis it draws nothing and
// returns a zero result. In a crisis it always consumes exactly one draw, so
// the random stream stays aligned whether or not a ceiling was hit.
func EvaluateLeap(a *Agent, rng entropy.Source) LeapResult {
	if !a.InCrisis() {
		return LeapResult{}
	}
	p := a.params

	theta := p.Theta0 + p.A1*a.Kappa.Mean() - p.A2*(a.Stats.Fatigue/100)
	h := p.H0 * math.Exp((a.Heat-theta)/p.Gamma)
	prob := math.Min(1, (1-math.Exp(-h))*a.DeathRiskFactor())

	res := LeapResult{
		Evaluated:   true,
		Theta:       theta,
		Rate:        h,
		Probability: prob,
		Leapt:       rng.Float64() < prob,
	}

	c := p.Crisis
	switch {
	case a.Stats.Hunger >= c.CeilingHunger:
		res.Fatal, res.Cause = true, CauseStarvation
	case a.Stats.Injury >= c.CeilingInjury:
		res.Fatal, res.Cause = true, CauseInjury
	case a.Stats.Fatigue >= c.CeilingFatigue:
		res.Fatal, res.Cause = true, CauseExhaustion
	case res.Leapt:
		res.Fatal, res.Cause = true, CauseLeap
	}
	return res
}
