package steward

import (
	"context"
	"fmt"
	"log/slog"
)

// Steward runs observe, triage, decide and act cycles against one village.
type Steward struct {
	Observer *Observer
	Actor    *Actor
	Decider  *Decider
	Memory   *CycleMemory
}

// New wires a steward for the API at baseURL.
func New(baseURL, adminKey string, rules Rules, mem *CycleMemory) *Steward {
	return &Steward{
		Observer: NewObserver(baseURL),
		Actor:    NewActor(baseURL, adminKey),
		Decider:  &Decider{Rules: rules, Immigrants: DefaultImmigrants},
		Memory:   mem,
	}
}

// RunCycle executes one cycle and records it. A failed intervention is
// returned as an error and recorded as no action.
func (s *Steward) RunCycle(ctx context.Context) (Decision, error) {
	obs, err := s.Observer.Observe(ctx)
	if err != nil {
		return Decision{}, err
	}
	s.Decider.Bounds = obs.Nodes.Bounds

	h := Triage(obs, s.Decider.Rules)
	slog.Info("steward observation",
		"tick", h.Tick,
		"alive", h.Alive,
		"avg_hunger", fmt.Sprintf("%.1f", h.AvgHunger),
		"depleted", len(h.Depleted),
		"level", h.CrisisLevel,
	)

	dec := s.Decider.Decide(h, s.Memory)
	rec := CycleRecord{
		Tick:        h.Tick,
		Action:      dec.Action,
		CrisisLevel: h.CrisisLevel,
		Alive:       h.Alive,
		AvgHunger:   h.AvgHunger,
		Target:      dec.Intervention.Target(),
		Rationale:   dec.Rationale,
	}

	var actErr error
	if dec.Intervention != nil {
		res, err := s.Actor.Act(ctx, dec.Intervention)
		if err != nil {
			actErr = fmt.Errorf("act %s: %w", dec.Action, err)
			rec.Action = ActionNone
		} else {
			slog.Info("steward intervention", "type", dec.Action, "target", rec.Target, "details", res.Details)
		}
	}

	s.Memory.Record(rec)
	if err := s.Memory.Save(); err != nil {
		slog.Error("steward memory save failed", "error", err)
	}
	return dec, actErr
}
