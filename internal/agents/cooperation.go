package agents

import (
	"math"
	"strconv"

	"github.com/talgya/ssd-village/internal/telemetry"
)

// Help sub-action levels.
const (
	shareHelperMax   = 85.0 // helper must be below this hunger to share
	shareTargetMin   = 75.0 // target must be above this hunger to receive
	escortInjuryMin  = 30.0
	escortFatigueMin = 85.0
	helperHungerCap  = 100.0
	helperFatigueCap = 100.0
)

// Need scores how badly x needs help:
// max(0,(hunger−55)/40) + max(0,(injury−15)/50) + max(0,(fatigue−70)/50).
func Need(x *Agent) float64 {
	return math.Max(0, (x.Stats.Hunger-55)/40) +
		math.Max(0, (x.Stats.Injury-15)/50) +
		math.Max(0, (x.Stats.Fatigue-70)/50)
}

// HelpUtility is how much self wants to help other. It grows with other's
// need, self's empathy, affinity and the debt self owes other, and shrinks
// with self's own need.
func HelpUtility(self, other *Agent) float64 {
	base := 0.35*self.Traits.Empathy + 0.4*self.Rel(other.ID) + 0.35*self.Owes(other.ID)
	return Need(other)*base - 0.4*Need(self)
}

// territorialHelpUtility adds the loyalty bonus for agents on self's ground
// and the guest bonus for invited agents.
func territorialHelpUtility(self, other *Agent) float64 {
	u := HelpUtility(self, other)
	if t := self.Territory; t != nil {
		if t.Contains(other.Position) {
			u += 0.3 * self.Traits.GroupLoyalty()
		}
		if t.Guests[other.ID] {
			u += 0.2
		}
	}
	return u
}

// SelectHelpTarget returns the best help candidate within the help radius
// whose utility clears the activation threshold, or ErrNoEligibleCandidate.
// Candidates already helping someone are skipped; ties keep roster order.
func SelectHelpTarget(a *Agent, w World) (*Agent, error) {
	var best *Agent
	bestU := 0.0
	for _, o := range w.Nearby(a, a.params.HelpRadius) {
		if o.State.Kind == StateHelping {
			continue
		}
		if u := territorialHelpUtility(a, o); u > bestU {
			best, bestU = o, u
		}
	}
	if best == nil || bestU <= a.params.HelpThreshold {
		return nil, ErrNoEligibleCandidate
	}
	return best, nil
}

type helpKind uint8

const (
	helpNone helpKind = iota
	helpShare
	helpEscort
)

func (k helpKind) String() string {
	switch k {
	case helpShare:
		return "share_food"
	case helpEscort:
		return "escort_rest"
	}
	return "none"
}

// helpFor picks the sub-action for the current needs of helper and target.
func helpFor(helper, target *Agent) helpKind {
	switch {
	case helper.Stats.Hunger < shareHelperMax && target.Stats.Hunger > shareTargetMin:
		return helpShare
	case target.Stats.Injury > escortInjuryMin || target.Stats.Fatigue > escortFatigueMin:
		return helpEscort
	}
	return helpNone
}

// helpDose is one application of a sub-action. The start dose is larger
// than each continuation dose.
type helpDose struct {
	food          float64 // hunger taken off the target
	helperHunger  float64
	relieve       float64 // escort fatigue relief before the stamina bonus
	staminaBonus  float64
	injuryRelief  float64
	helperFatigue float64
	relOut        float64 // helper → target
	relIn         float64 // target → helper
	debt          float64
	reward        float64
}

var (
	shareStart    = helpDose{food: 25, helperHunger: 6, relOut: 0.08, relIn: 0.04, debt: 0.2, reward: 12.5}
	shareContinue = helpDose{food: 15, helperHunger: 3, relOut: 0.04, relIn: 0.02, debt: 0.1, reward: 3}
	escortStart   = helpDose{relieve: 28, staminaBonus: 0.2, injuryRelief: 7, helperFatigue: 6, relOut: 0.1, relIn: 0.05, debt: 0.25, reward: 20}
	escortCont    = helpDose{relieve: 14, staminaBonus: 0.1, injuryRelief: 3, helperFatigue: 3, relOut: 0.05, relIn: 0.02, debt: 0.1, reward: 10}
)

// give applies one dose from a to target through the world and returns the
// food transferred (0 for escorts).
func (a *Agent) give(ctx *Context, target *Agent, kind helpKind, d helpDose) float64 {
	fx := Effect{Source: a.ID, Rel: d.relIn, Debt: d.debt}
	amount := 0.0
	switch kind {
	case helpShare:
		amount = d.food
		fx.Hunger = -d.food
		a.Stats.Hunger = math.Min(helperHungerCap, a.Stats.Hunger+d.helperHunger)
	case helpEscort:
		fx.Fatigue = -d.relieve * (1 + d.staminaBonus*a.Traits.Stamina)
		fx.Injury = -d.injuryRelief
		if a.Stats.Fatigue < helperFatigueCap {
			a.Stats.Fatigue = math.Min(helperFatigueCap, a.Stats.Fatigue+d.helperFatigue)
		}
	}
	a.clampStats()
	ctx.World.Apply(target.ID, fx)
	a.AdjustRel(target.ID, d.relOut)
	a.Kappa.Update(ActionHelp, true, d.reward, a.params)

	if a.AtHome() {
		a.Territory.RecordPositive(MemoryHelpedHere)
	}
	return amount
}

// startHelp begins helping the best candidate. It reports false when nobody
// qualifies or the chosen target needs nothing this agent can give; the
// caller then falls back to idling.
func (a *Agent) startHelp(ctx *Context) bool {
	target, err := SelectHelpTarget(a, ctx.World)
	if err != nil {
		return false
	}

	kind := helpFor(a, target)
	dose := shareStart
	switch kind {
	case helpShare:
	case helpEscort:
		dose = escortStart
	default:
		a.State = Idle()
		return false
	}

	a.State = Helping(target.ID)
	amount := a.give(ctx, target, kind, dose)
	a.record(ctx, "help_start", ActionHelp, func(r *telemetry.Record) {
		r.Target = strconv.FormatUint(uint64(target.ID), 10)
		r.Success = true
		r.Amount = amount
		r.Detail = kind.String()
	})
	return true
}

// continueHelp gives another dose to the committed target. target is nil
// when the helpee died or left the help radius. It reports false and goes
// Idle when there is nobody to help or nothing left to give.
func (a *Agent) continueHelp(ctx *Context, target *Agent) bool {
	if target == nil {
		a.State = Idle()
		return false
	}

	kind := helpFor(a, target)
	dose := shareContinue
	switch kind {
	case helpShare:
	case helpEscort:
		dose = escortCont
	default:
		a.State = Idle()
		return false
	}

	amount := a.give(ctx, target, kind, dose)
	if kind == helpEscort && !needsEscort(target) && target.Stats.Hunger <= shareTargetMin {
		a.State = Idle()
	}
	a.record(ctx, "help_continue", ActionHelp, func(r *telemetry.Record) {
		r.Target = strconv.FormatUint(uint64(target.ID), 10)
		r.Success = true
		r.Amount = amount
		r.Detail = kind.String()
	})
	return true
}

func needsEscort(t *Agent) bool {
	return t.Stats.Injury > escortInjuryMin || t.Stats.Fatigue > escortFatigueMin
}
