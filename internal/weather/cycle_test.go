package weather

import (
	"math"
	"testing"
)

func TestLightLevelShape(t *testing.T) {
	c := NewCycle(CycleConfig{DayLength: 48, NightStart: 0.6, NightEnd: 0.9})

	// 14/48 is just under halfway through the light phase.
	c.SetTick(14)
	if l := c.LightLevel(); l < 0.4 || l > 0.6 {
		t.Fatalf("expected mid-morning light near 0.5, got %v", l)
	}

	c.SetTick(36) // 0.75, deep night
	if l := c.LightLevel(); l != 0.1 {
		t.Fatalf("expected night light 0.1, got %v", l)
	}
	if !c.IsNight() {
		t.Fatal("expected night at 0.75 of the day")
	}
	if p := c.SleepPressure(); math.Abs(p-1.0) > 1e-9 {
		t.Fatalf("expected peak sleep pressure at mid-night, got %v", p)
	}
	if cost := c.ActivityCost(); math.Abs(cost-1.9) > 1e-9 {
		t.Fatalf("expected night activity cost 1.9, got %v", cost)
	}
	if m := c.ForageModifier(); math.Abs(m-0.37) > 1e-9 {
		t.Fatalf("expected night forage modifier 0.37, got %v", m)
	}

	c.SetTick(0)
	if p := c.SleepPressure(); p != 0.1 {
		t.Fatalf("expected daytime sleep pressure 0.1, got %v", p)
	}
}

func TestSeasonsRotate(t *testing.T) {
	c := NewCycle(CycleConfig{DayLength: 48, NightStart: 0.6, NightEnd: 0.9, SeasonLength: 10})
	names := []string{"Spring", "Summer", "Autumn", "Winter", "Spring"}
	for i, want := range names {
		c.SetTick(uint64(i * 10))
		if got := c.Season().Name; got != want {
			t.Fatalf("tick %d: expected %s, got %s", i*10, want, got)
		}
	}

	c.SetTick(30) // start of winter
	if c.PreyActivity() != 0.4 {
		t.Fatalf("expected winter prey activity 0.4, got %v", c.PreyActivity())
	}
}

func TestSeasonsDisabled(t *testing.T) {
	c := NewCycle(CycleConfig{DayLength: 48, NightStart: 0.6, NightEnd: 0.9})
	c.SetTick(1000)
	if c.BerryRegenMultiplier() != 1 || c.PreyActivity() != 1 {
		t.Fatal("expected neutral multipliers with seasons disabled")
	}
}
