package agents

import (
	"math"
	"testing"
)

func TestSoftmaxIsDistribution(t *testing.T) {
	u := [NumActions]float64{0.9, 0.2, 0.4, 0, 0.05}
	for _, temp := range []float64{0.1, 0.3, 1, 5} {
		probs := Softmax(u, temp, 0.01)
		var sum float64
		for i, p := range probs {
			if p <= 0 || p > 1 {
				t.Fatalf("T=%v: expected p[%d] in (0,1], got %v", temp, i, p)
			}
			sum += p
		}
		if math.Abs(sum-1) > 1e-9 {
			t.Fatalf("T=%v: expected sum 1, got %v", temp, sum)
		}
	}
}

func TestSoftmaxLimits(t *testing.T) {
	u := [NumActions]float64{0.2, 0.9, 0.4, 0.1, 0.05}

	cold := Softmax(u, 0, 0.01)
	if cold[ActionForage] < 0.999 {
		t.Fatalf("expected argmax to dominate at the floor, got %v", cold)
	}

	hot := Softmax(u, 1e6, 0.01)
	for i, p := range hot {
		if math.Abs(p-1.0/NumActions) > 1e-4 {
			t.Fatalf("expected uniform at high T, p[%d]=%v", i, p)
		}
	}
}

func TestSampleCumulative(t *testing.T) {
	probs := [NumActions]float64{0.1, 0.2, 0.3, 0.25, 0.15}
	cases := []struct {
		draw float64
		want ActionKind
	}{
		{0.05, ActionRest},
		{0.1, ActionForage},
		{0.29, ActionForage},
		{0.31, ActionHunt},
		{0.7, ActionHelp},
		{0.99, ActionPatrol},
	}
	for _, c := range cases {
		rng := &scripted{floats: []float64{c.draw}}
		if got := Sample(probs, rng); got != c.want {
			t.Fatalf("draw %v: expected %s, got %s", c.draw, c.want, got)
		}
		if rng.draws != 1 {
			t.Fatalf("expected exactly one draw, got %d", rng.draws)
		}
	}
}

func TestUtilitiesKappaBoost(t *testing.T) {
	p := testParams()
	pr := Pressure{Hunger: 0.5, Fatigue: 0.2, Boredom: 0}
	traits := Traits{RiskTolerance: 0.25}
	k := DefaultKappa()

	u := Utilities(pr, k, traits, p)
	wantForage := 1.2 * 0.5 * 0.75 * (1 + 0.8*0.05)
	if math.Abs(u[ActionForage]-wantForage) > 1e-12 {
		t.Fatalf("expected forage utility %v, got %v", wantForage, u[ActionForage])
	}
	wantPatrol := 0.05 * (1 + 0.1*0.05)
	if math.Abs(u[ActionPatrol]-wantPatrol) > 1e-12 {
		t.Fatalf("expected patrol baseline %v, got %v", wantPatrol, u[ActionPatrol])
	}
	if u[ActionHelp] != 0 {
		t.Fatalf("expected no help utility without help pressure, got %v", u[ActionHelp])
	}
}
