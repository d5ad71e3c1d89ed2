package agents

import "math"

// updateHeat integrates pressure the last action failed to process:
// E = max(0, E + α·max(0, pressure−processed) − β·E), capped at EMax.
func (a *Agent) updateHeat(pressure, processed float64) {
	p := a.params
	unprocessed := math.Max(0, pressure-processed)
	a.Heat = clamp(a.Heat+p.Alpha*unprocessed-p.Beta*a.Heat, 0, p.EMax)
}

// addHeat applies a direct heat change from a territorial encounter.
func (a *Agent) addHeat(delta float64) {
	a.Heat = clamp(a.Heat+delta, 0, a.params.EMax)
}

// Temperature derives T from heat and κ diversity:
// clamp(T0 + c1·E − c2·stddev(κ), TMin, TMax).
func Temperature(p *Params, heat float64, k Kappa) float64 {
	return clamp(p.T0+p.C1*heat-p.C2*k.Spread(), p.TMin, p.TMax)
}

func (a *Agent) updateTemperature() {
	a.Temperature = Temperature(a.params, a.Heat, a.Kappa)
}
