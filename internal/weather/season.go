package weather

import "math"

// Season constants.
const (
	SeasonSpring = 0
	SeasonSummer = 1
	SeasonAutumn = 2
	SeasonWinter = 3
)

// SeasonName returns a human-readable season name.
func SeasonName(season uint8) string {
	switch season {
	case SeasonSpring:
		return "Spring"
	case SeasonSummer:
		return "Summer"
	case SeasonAutumn:
		return "Autumn"
	case SeasonWinter:
		return "Winter"
	default:
		return "Unknown"
	}
}

// SeasonMods are the seasonal multipliers at a point in the year.
type SeasonMods struct {
	Name              string  `json:"name"`
	Index             uint8   `json:"index"`
	Progress          float64 `json:"progress"`           // 0.0–1.0 through the season
	BerryAbundance    float64 `json:"berry_abundance"`    // regrowth multiplier
	PreyActivity      float64 `json:"prey_activity"`      // hunt success multiplier
	TemperatureStress float64 `json:"temperature_stress"` // 0.0–0.7
}

// Season returns the modifiers for the current tick. With seasons disabled
// every multiplier is neutral.
func (c *Cycle) Season() SeasonMods {
	if c.cfg.SeasonLength <= 0 {
		return SeasonMods{Name: "None", BerryAbundance: 1, PreyActivity: 1}
	}
	length := uint64(c.cfg.SeasonLength)
	yearTick := c.tick % (length * 4)
	idx := uint8(yearTick / length)
	progress := float64(yearTick%length) / float64(length)
	return seasonMods(idx, progress)
}

func seasonMods(idx uint8, progress float64) SeasonMods {
	m := SeasonMods{Name: SeasonName(idx), Index: idx, Progress: progress}
	switch idx {
	case SeasonSpring:
		m.BerryAbundance = 1.0 + progress*0.8
		m.PreyActivity = 1.0 + progress*0.6
	case SeasonSummer:
		m.BerryAbundance = 1.8 - progress*0.3
		m.PreyActivity = 1.4
		m.TemperatureStress = progress * 0.3
	case SeasonAutumn:
		m.BerryAbundance = 1.2 - progress*0.7
		m.PreyActivity = 1.0 - progress*0.3
		m.TemperatureStress = 0.1
	default:
		m.BerryAbundance = 0.2 + math.Sin(progress*math.Pi)*0.1
		m.PreyActivity = 0.4
		m.TemperatureStress = 0.4 + progress*0.3
	}
	return m
}
