package engine

import (
	"fmt"
	"log/slog"

	"github.com/talgya/ssd-village/internal/agents"
	"github.com/talgya/ssd-village/internal/world"
)

// ProvisionNode tops up the berry patch at pos to abundance.
func (s *Simulation) ProvisionNode(pos world.Pos, abundance float64) (string, error) {
	if abundance < 0 || abundance > 1 {
		return "", fmt.Errorf("abundance %.2f outside [0,1]: %w", abundance, world.ErrInvalidTarget)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	b := s.Map.Berry(pos)
	if b == nil {
		return "", fmt.Errorf("no berry patch at %s: %w", pos, world.ErrInvalidTarget)
	}
	before := b.Abundance
	if abundance > b.Abundance {
		b.Abundance = abundance
	}
	desc := fmt.Sprintf("The berry patch at %s flourishes (%.2f → %.2f)", pos, before, b.Abundance)
	s.appendEvent(Event{
		Tick:        s.LastTick,
		Description: desc,
		Category:    "admin",
		Meta: map[string]any{
			"pos":       pos.String(),
			"abundance": b.Abundance,
		},
	})
	slog.Info("provision intervention", "pos", pos, "before", before, "after", b.Abundance)
	return desc, nil
}

// Immigrate adds a new agent built from spec. It joins from the next tick.
func (s *Simulation) Immigrate(spec agents.Spec) (*agents.Agent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, err := s.Spawner.Spawn(spec, s.Map.Bounds)
	if err != nil {
		return nil, err
	}
	if !s.Roster.Add(a) {
		return nil, fmt.Errorf("agent %d already present", a.ID)
	}
	s.appendEvent(Event{
		Tick:        s.LastTick,
		AgentID:     uint64(a.ID),
		Description: fmt.Sprintf("%s (%s) arrives at %s", a.Name, a.Preset, a.Position),
		Category:    "admin",
	})
	s.updateStats()
	slog.Info("immigration intervention", "agent", a.Name, "preset", a.Preset, "pos", a.Position)
	return a, nil
}
