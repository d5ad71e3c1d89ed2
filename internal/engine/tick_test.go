package engine

import "testing"

func TestSimTime(t *testing.T) {
	cases := []struct {
		tick uint64
		want string
	}{
		{0, "Day 1, 0:00"},
		{24, "Day 1, 12:00"},
		{47, "Day 1, 23:30"},
		{48, "Day 2, 0:00"},
	}
	for _, c := range cases {
		if got := SimTime(c.tick, 48); got != c.want {
			t.Fatalf("tick %d: expected %q, got %q", c.tick, c.want, got)
		}
	}
}

func TestRunForFiresCallbacks(t *testing.T) {
	e := NewEngine(10, 25)
	var ticks, days, seasons int
	e.OnTick = func(uint64) { ticks++ }
	e.OnDay = func(uint64) { days++ }
	e.OnSeason = func(uint64) { seasons++ }

	e.RunFor(100)

	if ticks != 100 || days != 10 || seasons != 4 {
		t.Fatalf("expected 100/10/4 callbacks, got %d/%d/%d", ticks, days, seasons)
	}
	if e.Tick != 100 {
		t.Fatalf("expected tick 100, got %d", e.Tick)
	}
	if e.Running() {
		t.Fatal("expected engine stopped after batch run")
	}
}

func TestRunForStopsEarly(t *testing.T) {
	e := NewEngine(10, 0)
	e.OnTick = func(tick uint64) {
		if tick == 7 {
			e.Stop()
		}
	}
	e.RunFor(100)
	if e.Tick != 7 {
		t.Fatalf("expected stop at tick 7, got %d", e.Tick)
	}
}

func TestSetSpeed(t *testing.T) {
	e := NewEngine(0, 0)
	if err := e.SetSpeed(-1); err == nil {
		t.Fatal("expected error for negative speed")
	}
	if err := e.SetSpeed(0); err != nil {
		t.Fatalf("pause: %v", err)
	}
	if e.Speed() != 0 {
		t.Fatalf("expected speed 0, got %v", e.Speed())
	}
	if e.DayLength != 48 {
		t.Fatalf("expected default day length 48, got %d", e.DayLength)
	}
}
