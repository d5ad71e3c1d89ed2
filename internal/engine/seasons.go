// Season transitions.
package engine

import (
	"fmt"
	"log/slog"
)

// TickSeason runs at every season boundary.
func (s *Simulation) TickSeason(tick uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	season := s.Cycle.Season()
	berries, zones := s.Map.NodeCount()
	var abundance float64
	for _, b := range s.Map.Berries {
		abundance += b.Abundance
	}
	if berries > 0 {
		abundance /= float64(berries)
	}

	s.appendEvent(Event{
		Tick:        tick,
		Description: fmt.Sprintf("%s begins", season.Name),
		Category:    "season",
		Meta: map[string]any{
			"season":          season.Name,
			"berry_abundance": season.BerryAbundance,
			"prey_activity":   season.PreyActivity,
		},
	})
	slog.Info("season changed",
		"tick", tick,
		"season", season.Name,
		"berry_regen", season.BerryAbundance,
		"prey_activity", season.PreyActivity,
		"berry_patches", berries,
		"hunt_zones", zones,
		"avg_abundance", fmt.Sprintf("%.2f", abundance),
	)
}
