package world

import (
	"errors"
	"math"
	"testing"

	"github.com/talgya/ssd-village/internal/entropy"
)

func TestGenerateIsDeterministic(t *testing.T) {
	cfg := SmallTestConfig()
	a := Generate(cfg)
	b := Generate(cfg)

	if len(a.Berries) != cfg.Berries || len(a.HuntZones) != cfg.HuntZones {
		t.Fatalf("expected %d berries and %d zones, got %d and %d",
			cfg.Berries, cfg.HuntZones, len(a.Berries), len(a.HuntZones))
	}
	for p, ba := range a.Berries {
		bb := b.Berries[p]
		if bb == nil || *ba != *bb {
			t.Fatalf("berry at %s differs between runs", p)
		}
		if !a.Bounds.Contains(p) {
			t.Fatalf("berry at %s is out of bounds", p)
		}
	}
	for p := range a.HuntZones {
		if a.Berries[p] != nil {
			t.Fatalf("cell %s holds both a berry patch and a hunt zone", p)
		}
	}
}

func TestGenerateFillsFullGrid(t *testing.T) {
	cfg := GenConfig{Width: 4, Height: 4, Berries: 12, HuntZones: 10, Seed: 7}
	m := Generate(cfg)

	if len(m.Berries) != 12 {
		t.Fatalf("expected 12 berries, got %d", len(m.Berries))
	}
	if len(m.HuntZones) != 4 {
		t.Fatalf("expected the 4 remaining cells as hunt zones, got %d", len(m.HuntZones))
	}
	for p := range m.HuntZones {
		if m.Berries[p] != nil {
			t.Fatalf("cell %s holds both a berry patch and a hunt zone", p)
		}
	}
}

func TestNearestNodesOrder(t *testing.T) {
	m := NewMap(Bounds{Width: 10, Height: 10})
	for _, p := range []Pos{{X: 9, Y: 9}, {X: 1, Y: 0}, {X: 0, Y: 1}, {X: 5, Y: 5}} {
		m.Berries[p] = &BerryPatch{Pos: p, Abundance: 0.5}
	}
	env := NewEnvironment(m, entropy.NewSeeded(1), nil)

	got := env.NearestNodes(Pos{}, NodeBerry, 3)
	want := []Pos{{X: 1, Y: 0}, {X: 0, Y: 1}, {X: 5, Y: 5}}
	if len(got) != len(want) {
		t.Fatalf("expected %d nodes, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("node %d: expected %s, got %s", i, want[i], got[i])
		}
	}
	if n := env.NearestNodes(Pos{}, NodeHunt, 1); len(n) != 0 {
		t.Fatalf("expected no hunt zones, got %v", n)
	}
}

func TestForageConsumesAbundance(t *testing.T) {
	m := NewMap(Bounds{Width: 5, Height: 5})
	node := Pos{X: 2, Y: 2}
	m.Berries[node] = &BerryPatch{Pos: node, Abundance: 1.0}
	env := NewEnvironment(m, entropy.NewSeeded(3), nil)

	var successes int
	for i := 0; i < 50; i++ {
		m.Berries[node].Abundance = 1.0
		out, err := env.Forage(node, node)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if math.Abs(out.Probability-0.8) > 1e-9 {
			t.Fatalf("expected probability 0.8 at full abundance, got %v", out.Probability)
		}
		if out.Success {
			successes++
			if out.Amount < 10 || out.Amount >= 20 {
				t.Fatalf("expected food in [10,20), got %v", out.Amount)
			}
			if m.Berries[node].Abundance > 0.8 {
				t.Fatalf("expected abundance to drop, got %v", m.Berries[node].Abundance)
			}
		}
	}
	if successes == 0 {
		t.Fatal("expected at least one success at p=0.8")
	}
}

func TestInvalidTarget(t *testing.T) {
	env := NewEnvironment(NewMap(Bounds{Width: 3, Height: 3}), entropy.NewSeeded(1), nil)
	if _, err := env.Forage(Pos{}, Pos{X: 1}); !errors.Is(err, ErrInvalidTarget) {
		t.Fatalf("expected ErrInvalidTarget, got %v", err)
	}
	if _, err := env.Hunt(Pos{}, Pos{X: 1}, 1, 0); !errors.Is(err, ErrInvalidTarget) {
		t.Fatalf("expected ErrInvalidTarget, got %v", err)
	}
}

func TestHuntProbabilityClipped(t *testing.T) {
	m := NewMap(Bounds{Width: 3, Height: 3})
	node := Pos{X: 1, Y: 1}
	m.HuntZones[node] = &HuntZone{Pos: node, BaseSuccess: 0.8, Danger: 0.5}
	env := NewEnvironment(m, entropy.NewSeeded(1), nil)

	out, err := env.Hunt(node, node, 1, 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Probability != 0.95 {
		t.Fatalf("expected probability clipped to 0.95, got %v", out.Probability)
	}
	if math.Abs(out.Risk-0.45) > 1e-9 {
		t.Fatalf("expected risk 0.45, got %v", out.Risk)
	}
}

func TestStepRegrowsBerries(t *testing.T) {
	m := NewMap(Bounds{Width: 3, Height: 3})
	node := Pos{}
	m.Berries[node] = &BerryPatch{Pos: node, Abundance: 0.5, Regen: 0.1}
	env := NewEnvironment(m, entropy.NewSeeded(1), nil)
	env.Step()
	if got := m.Berries[node].Abundance; math.Abs(got-0.55) > 1e-9 {
		t.Fatalf("expected abundance 0.55, got %v", got)
	}
}

func TestBoundsClamp(t *testing.T) {
	b := Bounds{Width: 4, Height: 3}
	if got := b.Clamp(Pos{X: -2, Y: 9}); got != (Pos{X: 0, Y: 2}) {
		t.Fatalf("expected (0,2), got %s", got)
	}
	if Distance(Pos{X: 1, Y: 1}, Pos{X: 4, Y: -1}) != 5 {
		t.Fatal("expected manhattan distance 5")
	}
}

func TestNodeStateRestore(t *testing.T) {
	a := Generate(SmallTestConfig())
	b := Generate(SmallTestConfig())

	for _, p := range a.NodePositions(NodeBerry) {
		a.Berries[p].Abundance = 0.01
	}
	if err := b.Restore(a.State()); err != nil {
		t.Fatalf("restore: %v", err)
	}
	for _, p := range b.NodePositions(NodeBerry) {
		if b.Berries[p].Abundance != 0.01 {
			t.Fatalf("expected restored abundance at %s, got %v", p, b.Berries[p].Abundance)
		}
	}

	other := SmallTestConfig()
	other.Seed = 7
	c := Generate(other)
	if err := c.Restore(a.State()); err == nil {
		t.Fatal("expected a layout mismatch to fail")
	}
}
