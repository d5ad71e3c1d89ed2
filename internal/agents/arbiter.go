package agents

import (
	"errors"
	"math"

	"github.com/talgya/ssd-village/internal/entropy"
)

// ErrNoEligibleCandidate is returned when an action has nothing to act on:
// no resource node of the needed kind, or nobody worth helping.
var ErrNoEligibleCandidate = errors.New("no eligible candidate")

// Utilities scores every action against the current pressures. Each score
// is boosted by the action's κ: u × (1 + κ×g).
func Utilities(pr Pressure, k Kappa, t Traits, p *Params) [NumActions]float64 {
	var u [NumActions]float64
	u[ActionRest] = 1.5*pr.Fatigue + 0.5*pr.Injury
	u[ActionForage] = 1.2 * pr.Hunger * (1 - t.RiskTolerance)
	u[ActionHunt] = 1.2 * pr.Hunger * t.RiskTolerance
	u[ActionHelp] = 1.1 * pr.Help
	u[ActionPatrol] = 0.8*pr.Boredom + p.PatrolBaseline
	for i := range u {
		u[i] *= 1 + k[i]*p.G
	}
	return u
}

// Softmax converts utilities into a probability distribution at
// temperature temp, floored at floor. Shifting by the max keeps exp finite.
func Softmax(u [NumActions]float64, temp, floor float64) [NumActions]float64 {
	temp = math.Max(temp, floor)
	max := u[0]
	for _, v := range u[1:] {
		if v > max {
			max = v
		}
	}

	var probs [NumActions]float64
	var sum float64
	for i, v := range u {
		probs[i] = math.Exp((v - max) / temp)
		sum += probs[i]
	}
	for i := range probs {
		probs[i] /= sum
	}
	return probs
}

// Sample picks one action with a single uniform draw over the cumulative
// distribution in candidate order.
func Sample(probs [NumActions]float64, rng entropy.Source) ActionKind {
	r := rng.Float64()
	var acc float64
	for i, p := range probs {
		acc += p
		if r < acc {
			return ActionKind(i)
		}
	}
	// Rounding left r at or above the final sum.
	for i := NumActions - 1; i >= 0; i-- {
		if probs[i] > 0 {
			return ActionKind(i)
		}
	}
	return ActionRest
}

// Decision is one arbitration with its inputs, kept for telemetry.
type Decision struct {
	Pressure  Pressure
	Utilities [NumActions]float64
	Probs     [NumActions]float64
	Chosen    ActionKind
}

// Arbitrate scores, normalizes and samples the next action for a.
func Arbitrate(a *Agent, w World, rng entropy.Source) Decision {
	pr := a.Pressures(w)
	u := Utilities(pr, a.Kappa, a.Traits, a.params)
	probs := Softmax(u, a.Temperature, a.params.TFloor)
	return Decision{
		Pressure:  pr,
		Utilities: u,
		Probs:     probs,
		Chosen:    Sample(probs, rng),
	}
}
