package agents

// Params are the tunable constants of the cognitive model. One Params value is
// shared by every agent in a run; it is never mutated after construction.
type Params struct {
	// Physiology.
	StatCap     float64    `yaml:"stat_cap" json:"stat_cap"`         // hard clamp for every stat
	PressureCap float64    `yaml:"pressure_cap" json:"pressure_cap"` // stat value at which pressure reaches 1.0
	Thresholds  Thresholds `yaml:"thresholds" json:"thresholds"`
	Drift       Drift      `yaml:"drift" json:"drift"`
	MoveFatigue float64    `yaml:"move_fatigue" json:"move_fatigue"`

	// Coherence inertia (κ).
	KappaMin    float64 `yaml:"kappa_min" json:"kappa_min"`
	G0          float64 `yaml:"g0" json:"g0"`
	G           float64 `yaml:"g" json:"g"`
	Eta         float64 `yaml:"eta" json:"eta"`                   // success efficiency
	Rho         float64 `yaml:"rho" json:"rho"`                   // failure penalty
	Forget      float64 `yaml:"forget" json:"forget"`             // decay of the chosen action
	ForgetOther float64 `yaml:"forget_other" json:"forget_other"` // decay of every other action

	// Heat (E) and temperature (T).
	Alpha  float64 `yaml:"alpha" json:"alpha"`
	Beta   float64 `yaml:"beta" json:"beta"`
	EMax   float64 `yaml:"e_max" json:"e_max"`
	T0     float64 `yaml:"t0" json:"t0"`
	C1     float64 `yaml:"c1" json:"c1"`
	C2     float64 `yaml:"c2" json:"c2"`
	TMin   float64 `yaml:"t_min" json:"t_min"`
	TMax   float64 `yaml:"t_max" json:"t_max"`
	TFloor float64 `yaml:"t_floor" json:"t_floor"` // softmax divisor floor

	// Leap.
	Theta0 float64 `yaml:"theta0" json:"theta0"`
	A1     float64 `yaml:"a1" json:"a1"`
	A2     float64 `yaml:"a2" json:"a2"`
	H0     float64 `yaml:"h0" json:"h0"`
	Gamma  float64 `yaml:"gamma" json:"gamma"`
	Crisis Crisis  `yaml:"crisis" json:"crisis"`

	// Cooperation and territory.
	HelpRadius     int     `yaml:"help_radius" json:"help_radius"`
	HelpThreshold  float64 `yaml:"help_threshold" json:"help_threshold"`
	PatrolBaseline float64 `yaml:"patrol_baseline" json:"patrol_baseline"`
	ClaimThreshold float64 `yaml:"claim_threshold" json:"claim_threshold"`
}

// Thresholds are the comfort levels above which a need starts to press.
type Thresholds struct {
	Hunger  float64 `yaml:"hunger" json:"hunger"`
	Fatigue float64 `yaml:"fatigue" json:"fatigue"`
	Injury  float64 `yaml:"injury" json:"injury"`
	Thirst  float64 `yaml:"thirst" json:"thirst"`
	Boredom float64 `yaml:"boredom" json:"boredom"`
}

// Drift is the per-tick metabolic increase before the activity-cost multiplier.
type Drift struct {
	Hunger           float64 `yaml:"hunger" json:"hunger"`
	Fatigue          float64 `yaml:"fatigue" json:"fatigue"`
	Thirst           float64 `yaml:"thirst" json:"thirst"`
	Boredom          float64 `yaml:"boredom" json:"boredom"`
	InjuryPerFatigue float64 `yaml:"injury_per_fatigue" json:"injury_per_fatigue"` // injury += this × fatigue/100
}

// Crisis holds the leap trigger levels and the absolute ceilings.
type Crisis struct {
	Hunger         float64 `yaml:"hunger" json:"hunger"`
	Injury         float64 `yaml:"injury" json:"injury"`
	Fatigue        float64 `yaml:"fatigue" json:"fatigue"`
	CeilingHunger  float64 `yaml:"ceiling_hunger" json:"ceiling_hunger"`
	CeilingInjury  float64 `yaml:"ceiling_injury" json:"ceiling_injury"`
	CeilingFatigue float64 `yaml:"ceiling_fatigue" json:"ceiling_fatigue"`
	RiskFatigue    float64 `yaml:"risk_fatigue" json:"risk_fatigue"` // fatigue above which death risk amplifies
	RiskScale      float64 `yaml:"risk_scale" json:"risk_scale"`
}

// DefaultParams returns the reference parameter set.
func DefaultParams() Params {
	return Params{
		StatCap:     120,
		PressureCap: 100,
		Thresholds: Thresholds{
			Hunger:  55,
			Fatigue: 70,
			Injury:  40,
			Thirst:  60,
			Boredom: 60,
		},
		Drift: Drift{
			Hunger:           1.8,
			Fatigue:          0.8,
			Thirst:           0.5,
			Boredom:          0.1,
			InjuryPerFatigue: 0.02,
		},
		MoveFatigue: 0.2,

		KappaMin:    0.05,
		G0:          0.1,
		G:           0.05,
		Eta:         0.2,
		Rho:         0.05,
		Forget:      0.02,
		ForgetOther: 0.002,

		Alpha:  0.6,
		Beta:   0.15,
		EMax:   5.0,
		T0:     0.3,
		C1:     0.7,
		C2:     0.6,
		TMin:   0.1,
		TMax:   1.0,
		TFloor: 0.01,

		Theta0: 1.0,
		A1:     0.5,
		A2:     0.4,
		H0:     0.2,
		Gamma:  0.8,
		Crisis: Crisis{
			Hunger:         100,
			Injury:         100,
			Fatigue:        120,
			CeilingHunger:  110,
			CeilingInjury:  110,
			CeilingFatigue: 120,
			RiskFatigue:    100,
			RiskScale:      20,
		},

		HelpRadius:     2,
		HelpThreshold:  0.06,
		PatrolBaseline: 0.05,
		ClaimThreshold: 0.55,
	}
}
