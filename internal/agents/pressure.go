package agents

// Pressure is the meaning pressure per need: how far each stat sits above its
// comfort threshold, normalized so the pressure cap maps to 1.0.
type Pressure struct {
	Hunger  float64 `json:"hunger"`
	Fatigue float64 `json:"fatigue"`
	Injury  float64 `json:"injury"`
	Thirst  float64 `json:"thirst"`
	Boredom float64 `json:"boredom"`
	Help    float64 `json:"help"`
}

// Sum returns the total pressure across all needs.
func (p Pressure) Sum() float64 {
	return p.Hunger + p.Fatigue + p.Injury + p.Thirst + p.Boredom + p.Help
}

// NeedPressure normalizes one stat: max(0, (stat−th)/(cap−th)).
func NeedPressure(stat, threshold, cap float64) float64 {
	if cap <= threshold {
		return 0
	}
	v := (stat - threshold) / (cap - threshold)
	if v < 0 {
		return 0
	}
	return v
}

// NeedPressures computes the physiological pressures from stats alone.
func NeedPressures(s Stats, p *Params) Pressure {
	th := p.Thresholds
	return Pressure{
		Hunger:  NeedPressure(s.Hunger, th.Hunger, p.PressureCap),
		Fatigue: NeedPressure(s.Fatigue, th.Fatigue, p.PressureCap),
		Injury:  NeedPressure(s.Injury, th.Injury, p.PressureCap),
		Thirst:  NeedPressure(s.Thirst, th.Thirst, p.PressureCap),
		Boredom: NeedPressure(s.Boredom, th.Boredom, p.PressureCap),
	}
}

// Pressures computes every pressure including help, which is twice the best
// help utility among nearby live agents. Reads only; never mutates.
func (a *Agent) Pressures(w World) Pressure {
	pr := NeedPressures(a.Stats, a.params)

	best := 0.0
	for _, o := range w.Nearby(a, a.params.HelpRadius) {
		if u := HelpUtility(a, o); u > best {
			best = u
		}
	}
	pr.Help = 2 * best
	return pr
}
