// Package weather provides the day/night and season cycle.
// It maps the current tick to the multipliers agents and the environment
// consult: activity cost, forage success, sleep pressure, berry regrowth and
// prey activity. The cycle owns the clock; consumers only read it.
package weather

import "math"

// CycleConfig holds the shape of a day and a year.
type CycleConfig struct {
	DayLength    int     // Ticks per day
	NightStart   float64 // Fraction of the day when night begins
	NightEnd     float64 // Fraction of the day when the dawn ramp begins
	SeasonLength int     // Ticks per season; 0 disables seasons
}

// DefaultCycleConfig returns a 48-tick day with night at 60–90% of it.
func DefaultCycleConfig() CycleConfig {
	return CycleConfig{
		DayLength:    48,
		NightStart:   0.6,
		NightEnd:     0.9,
		SeasonLength: 200,
	}
}

// Cycle tracks time of day and season.
type Cycle struct {
	cfg  CycleConfig
	tick uint64
}

// NewCycle creates a cycle starting at tick 0.
func NewCycle(cfg CycleConfig) *Cycle {
	if cfg.DayLength <= 0 {
		cfg.DayLength = 48
	}
	return &Cycle{cfg: cfg}
}

// Advance moves the clock one tick forward.
func (c *Cycle) Advance() {
	c.tick++
}

// SetTick moves the clock to tick (used when resuming a saved run).
func (c *Cycle) SetTick(tick uint64) {
	c.tick = tick
}

// Tick returns the cycle's current tick.
func (c *Cycle) Tick() uint64 {
	return c.tick
}

// DayLength returns the ticks per day.
func (c *Cycle) DayLength() int { return c.cfg.DayLength }

// SeasonLength returns the ticks per season, 0 when seasons are disabled.
func (c *Cycle) SeasonLength() int { return c.cfg.SeasonLength }

// TimeOfDay returns the fraction of the current day elapsed, 0.0–1.0.
func (c *Cycle) TimeOfDay() float64 {
	day := uint64(c.cfg.DayLength)
	return float64(c.tick%day) / float64(day)
}

// IsNight reports whether the clock is between night start and the end of day.
func (c *Cycle) IsNight() bool {
	return c.TimeOfDay() >= c.cfg.NightStart
}

// LightLevel returns ambient light, 0.0–1.0. Daylight follows a sine ramp,
// night is a flat 0.1, and the pre-dawn ramp climbs to 0.3.
func (c *Cycle) LightLevel() float64 {
	t := c.TimeOfDay()
	switch {
	case t < c.cfg.NightStart:
		progress := t / c.cfg.NightStart
		return (math.Sin((progress-0.5)*math.Pi) + 1) / 2
	case t < c.cfg.NightEnd:
		return 0.1
	default:
		progress := (t - c.cfg.NightEnd) / (1.0 - c.cfg.NightEnd)
		return progress * 0.3
	}
}

// SleepPressure returns the environmental pull toward sleep, 0.1–1.0,
// peaking in the middle of the night.
func (c *Cycle) SleepPressure() float64 {
	t := c.TimeOfDay()
	if t < c.cfg.NightStart || t >= c.cfg.NightEnd {
		return 0.1
	}
	center := (c.cfg.NightStart + c.cfg.NightEnd) / 2
	maxDist := (c.cfg.NightEnd - c.cfg.NightStart) / 2
	return 1.0 - (math.Abs(t-center)/maxDist)*0.5
}

// ActivityCost multiplies metabolic drift: darkness and temperature stress
// make everything more tiring.
func (c *Cycle) ActivityCost() float64 {
	return (1.0 + (1.0 - c.LightLevel())) * (1 + 0.25*c.Season().TemperatureStress)
}

// ForageModifier multiplies forage success, 0.3 in darkness to 1.0 at noon.
func (c *Cycle) ForageModifier() float64 {
	return 0.3 + c.LightLevel()*0.7
}

// BerryRegenMultiplier multiplies berry regrowth by the season's abundance.
func (c *Cycle) BerryRegenMultiplier() float64 {
	return c.Season().BerryAbundance
}

// PreyActivity multiplies hunt base success.
func (c *Cycle) PreyActivity() float64 {
	return c.Season().PreyActivity
}

// Conditions is a point-in-time view of the cycle for reports and the API.
type Conditions struct {
	Tick          uint64  `json:"tick"`
	TimeOfDay     float64 `json:"time_of_day"`
	Night         bool    `json:"night"`
	Light         float64 `json:"light"`
	SleepPressure float64 `json:"sleep_pressure"`
	ActivityCost  float64 `json:"activity_cost"`
	Season        string  `json:"season"`
}

// Snapshot captures the current conditions.
func (c *Cycle) Snapshot() Conditions {
	s := c.Season()
	return Conditions{
		Tick:          c.tick,
		TimeOfDay:     c.TimeOfDay(),
		Night:         c.IsNight(),
		Light:         c.LightLevel(),
		SleepPressure: c.SleepPressure(),
		ActivityCost:  c.ActivityCost(),
		Season:        s.Name,
	}
}
