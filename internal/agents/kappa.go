package agents

import (
	"encoding/json"
	"fmt"
	"math"
)

// ActionKind enumerates the arbitrated actions. The order is also the
// sampling order of the arbiter.
type ActionKind uint8

const (
	ActionRest ActionKind = iota
	ActionForage
	ActionHunt
	ActionHelp
	ActionPatrol
)

// NumActions is the size of the closed action vocabulary.
const NumActions = 5

var actionNames = [NumActions]string{"rest", "forage", "hunt", "help", "patrol"}

func (k ActionKind) String() string {
	if int(k) < NumActions {
		return actionNames[k]
	}
	return "unknown"
}

// MarshalText encodes the action by name.
func (k ActionKind) MarshalText() ([]byte, error) {
	if int(k) >= NumActions {
		return nil, fmt.Errorf("action %d: %w", k, ErrInvariantViolation)
	}
	return []byte(k.String()), nil
}

// UnmarshalText decodes an action name.
func (k *ActionKind) UnmarshalText(b []byte) error {
	a, ok := ParseAction(string(b))
	if !ok {
		return fmt.Errorf("unknown action %q", b)
	}
	*k = a
	return nil
}

// ParseAction looks an action up by name.
func ParseAction(s string) (ActionKind, bool) {
	for i, n := range actionNames {
		if n == s {
			return ActionKind(i), true
		}
	}
	return 0, false
}

// Kappa is the coherence inertia per action: learned mastery that grows with
// success, shrinks with failure and is slowly forgotten when unused.
type Kappa [NumActions]float64

// DefaultKappa is the starting habit profile: rest and foraging come easy,
// helping and patrolling have to be learned.
func DefaultKappa() Kappa {
	return Kappa{
		ActionRest:   1.0,
		ActionForage: 0.8,
		ActionHunt:   0.6,
		ActionHelp:   0.1,
		ActionPatrol: 0.1,
	}
}

// Update applies one learning step for the chosen action and decays the rest.
func (k *Kappa) Update(chosen ActionKind, success bool, reward float64, p *Params) {
	for i := range k {
		if ActionKind(i) != chosen {
			k[i] = math.Max(p.KappaMin, k[i]-p.ForgetOther)
		}
	}

	cur := k[chosen]
	var work float64
	if success {
		work = p.Eta * reward
	} else {
		work = -p.Rho * cur * cur
	}
	decay := p.Forget * (cur - p.KappaMin)
	k[chosen] = math.Max(p.KappaMin, cur+work-decay)
}

// Mean returns the average κ.
func (k Kappa) Mean() float64 {
	var sum float64
	for _, v := range k {
		sum += v
	}
	return sum / NumActions
}

// Spread returns the population standard deviation of κ, the diversity term
// of the temperature.
func (k Kappa) Spread() float64 {
	return stddev(k[:])
}

// stddev is the population standard deviation; fewer than two values count
// as maximally undecided (0.5).
func stddev(vals []float64) float64 {
	if len(vals) < 2 {
		return 0.5
	}
	var mean float64
	for _, v := range vals {
		mean += v
	}
	mean /= float64(len(vals))
	var ss float64
	for _, v := range vals {
		d := v - mean
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(vals)))
}

// AlignmentFlow is how much pressure an action with inertia kappa can process.
func AlignmentFlow(p *Params, kappa, pressure float64) float64 {
	return (p.G0 + p.G*kappa) * pressure
}

// MarshalJSON encodes κ as an action-name keyed object.
func (k Kappa) MarshalJSON() ([]byte, error) {
	m := make(map[string]float64, NumActions)
	for i, v := range k {
		m[actionNames[i]] = v
	}
	return json.Marshal(m)
}

// UnmarshalJSON decodes an action-name keyed object. Missing actions keep
// their default value.
func (k *Kappa) UnmarshalJSON(b []byte) error {
	var m map[string]float64
	if err := json.Unmarshal(b, &m); err != nil {
		return err
	}
	*k = DefaultKappa()
	for name, v := range m {
		a, ok := ParseAction(name)
		if !ok {
			return fmt.Errorf("kappa: unknown action %q", name)
		}
		k[a] = v
	}
	return nil
}
