package agents

import (
	"testing"

	"github.com/talgya/ssd-village/internal/world"
)

func TestRosterNearbyOrderAndRadius(t *testing.T) {
	p := testParams()
	r := NewRoster()
	center := newTestAgent(1, PresetForager, world.Pos{X: 8, Y: 8}, p)
	far := newTestAgent(2, PresetForager, world.Pos{X: 8, Y: 11}, p)
	near := newTestAgent(3, PresetForager, world.Pos{X: 7, Y: 7}, p)
	edge := newTestAgent(4, PresetForager, world.Pos{X: 10, Y: 8}, p)
	for _, a := range []*Agent{center, far, near, edge} {
		r.Add(a)
	}

	got := r.Nearby(center, 2)
	if len(got) != 2 || got[0] != near || got[1] != edge {
		t.Fatalf("expected [near edge] in roster order, got %v", names(got))
	}
	if got := r.Nearby(center, 3); len(got) != 3 || got[0] != far {
		t.Fatalf("expected far first at radius 3, got %v", names(got))
	}
}

func TestRosterRelocateKeepsIndex(t *testing.T) {
	p := testParams()
	r := NewRoster()
	a := newTestAgent(1, PresetForager, world.Pos{X: 3, Y: 3}, p)
	b := newTestAgent(2, PresetForager, world.Pos{X: 20, Y: 20}, p)
	r.Add(a)
	r.Add(b)

	if len(r.Nearby(a, 2)) != 0 {
		t.Fatal("expected nobody near a")
	}
	// Cross several cells.
	for _, step := range []world.Pos{{X: 19, Y: 20}, {X: 19, Y: 19}, {X: 4, Y: 3}} {
		r.Relocate(b, step)
	}
	if got := r.Nearby(a, 1); len(got) != 1 || got[0] != b {
		t.Fatalf("expected b next to a after relocation, got %v", names(got))
	}
	if len(r.Nearby(a, 0)) != 0 {
		t.Fatal("expected radius 0 to exclude neighbours")
	}
}

func TestRosterAddRejectsDuplicates(t *testing.T) {
	p := testParams()
	r := NewRoster()
	a := newTestAgent(1, PresetForager, world.Pos{}, p)
	if !r.Add(a) || r.Add(a) {
		t.Fatal("expected the second Add of the same id to fail")
	}
	if r.Len() != 1 || r.MaxID() != 1 || r.Get(1) != a {
		t.Fatalf("expected one agent with id 1, got len %d max %d", r.Len(), r.MaxID())
	}
}

func names(as []*Agent) []string {
	out := make([]string, len(as))
	for i, a := range as {
		out[i] = a.Name
	}
	return out
}
