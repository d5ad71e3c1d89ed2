// Per-tick behavior: the pipeline every live agent runs once per tick and
// the resolution of multi-tick actions.
package agents

import (
	"errors"
	"math"

	"github.com/talgya/ssd-village/internal/telemetry"
	"github.com/talgya/ssd-village/internal/world"
)

// Step advances a by one tick. Dead agents are never touched.
//
// Order: metabolic drift, crisis gate, temperature, territory drift, then
// either the continuation of a Moving/Helping action or a territorial check
// followed by arbitration of a fresh action.
func (a *Agent) Step(ctx *Context) {
	if !a.Alive {
		return
	}

	a.drift(ctx)
	if a.checkCrisis(ctx) {
		return
	}
	a.updateTemperature()
	if a.Territory != nil {
		a.Territory.Drift(a.Position)
	}

	switch a.State.Kind {
	case StateMoving:
		a.continueMove(ctx)
		return
	case StateHelping:
		if a.continueHelp(ctx, a.helpee(ctx)) {
			return
		}
	case StateForaging, StateHunting, StateResting:
		// Single-tick states never survive a tick; treat a restored one as Idle.
		a.State = Idle()
	}

	if a.Territory != nil && a.defendTerritory(ctx) {
		return
	}
	a.act(ctx)
}

// drift applies one tick of metabolism.
func (a *Agent) drift(ctx *Context) {
	p := a.params
	cost := ctx.conditions().ActivityCost() * a.awayCost()

	a.Stats.Hunger += p.Drift.Hunger * cost
	a.Stats.Fatigue += p.Drift.Fatigue * cost
	a.Stats.Thirst += p.Drift.Thirst * cost
	a.Stats.Boredom += p.Drift.Boredom * cost
	a.clampStats()
	a.Stats.Injury += p.Drift.InjuryPerFatigue * a.Stats.Fatigue / 100
	a.clampStats()

	if _, _, relief := a.HomeBonus(); relief > 0 {
		a.addHeat(-relief)
	}
}

// checkCrisis runs the leap gate and kills the agent on a fatal result.
func (a *Agent) checkCrisis(ctx *Context) bool {
	res := EvaluateLeap(a, ctx.Rand)
	if !res.Fatal {
		return false
	}
	a.die(ctx, res)
	return true
}

func (a *Agent) die(ctx *Context, res LeapResult) {
	a.Alive = false
	a.State = Dead()
	a.DeathTick = ctx.Tick
	a.DeathCause = res.Cause
	a.recordState(ctx, "death", func(r *telemetry.Record) {
		r.Amount = res.Probability
		r.Detail = res.Cause
	})
}

// act arbitrates a fresh action and begins executing it this tick.
func (a *Agent) act(ctx *Context) {
	dec := Arbitrate(a, ctx.World, ctx.Rand)

	var err error
	switch dec.Chosen {
	case ActionRest:
		a.rest(ctx, dec.Pressure)
		return
	case ActionPatrol:
		a.patrol(ctx, dec.Pressure)
		return
	case ActionForage:
		err = a.startGather(ctx, world.NodeBerry, ActionForage, 10)
	case ActionHunt:
		err = a.startGather(ctx, world.NodeHunt, ActionHunt, 15)
	case ActionHelp:
		if !a.startHelp(ctx) {
			err = ErrNoEligibleCandidate
		}
	}
	if errors.Is(err, ErrNoEligibleCandidate) {
		a.idle(ctx, dec.Pressure)
	}
}

// idle is the fallback when the chosen action had nothing to act on: all of
// the pressure goes unprocessed.
func (a *Agent) idle(ctx *Context, pr Pressure) {
	a.State = Idle()
	a.updateHeat(pr.Sum(), 0)
	a.recordState(ctx, "idle", nil)
}

// startGather heads for the nearest node of kind and takes the first step.
func (a *Agent) startGather(ctx *Context, kind world.NodeKind, action ActionKind, boredomRelief float64) error {
	nodes := ctx.Env.NearestNodes(a.Position, kind, 1)
	if len(nodes) == 0 {
		return ErrNoEligibleCandidate
	}
	a.State = Moving(action, nodes[0])
	a.Stats.Boredom = math.Max(0, a.Stats.Boredom-boredomRelief)
	a.record(ctx, action.String()+"_start", action, func(r *telemetry.Record) {
		r.Target = nodes[0].String()
		r.Amount = float64(world.Distance(a.Position, nodes[0]))
	})
	a.continueMove(ctx)
	return nil
}

// continueMove takes one step toward the move target, resolving forage and
// hunt when the agent already stands on the node.
func (a *Agent) continueMove(ctx *Context) {
	order, ok := a.State.Order()
	if !ok {
		a.State = Idle()
		return
	}

	switch order.Action {
	case ActionForage, ActionHunt:
		if a.Position == order.Target {
			a.resolveGather(ctx, order)
			return
		}
		a.stepToward(ctx, order.Target)
	default:
		if a.stepToward(ctx, order.Target) {
			a.State = Idle()
		}
	}
	a.record(ctx, "move", order.Action, func(r *telemetry.Record) {
		r.Target = order.Target.String()
		r.Amount = float64(world.Distance(a.Position, order.Target))
	})
}

// stepToward moves one orthogonal cell toward target. When both axes differ
// the axis is picked at random. Reports arrival.
func (a *Agent) stepToward(ctx *Context, target world.Pos) bool {
	dx := sign(target.X - a.Position.X)
	dy := sign(target.Y - a.Position.Y)
	if dx != 0 && dy != 0 {
		if ctx.Rand.Float64() < 0.5 {
			dy = 0
		} else {
			dx = 0
		}
	}
	next := ctx.Env.Bounds().Clamp(a.Position.Add(dx, dy))
	ctx.World.Relocate(a, next)

	a.Stats.Fatigue += a.params.MoveFatigue
	a.clampStats()
	return a.Position == target
}

// resolveGather forages or hunts at the node the agent stands on.
func (a *Agent) resolveGather(ctx *Context, order MoveOrder) {
	p := a.params
	pHunger := NeedPressure(a.Stats.Hunger, p.Thresholds.Hunger, p.PressureCap)
	flow := AlignmentFlow(p, a.Kappa[order.Action], pHunger)

	var (
		out world.Outcome
		err error
	)
	if order.Action == ActionHunt {
		a.State = Hunting()
		allies := len(ctx.World.Nearby(a, 1))
		coop := float64(allies) * 0.15 * (1 + a.Traits.Empathy)
		injuryFactor := math.Max(0, 1-a.Stats.Injury/100)
		out, err = ctx.Env.Hunt(a.Position, order.Target, injuryFactor, coop)
	} else {
		a.State = Foraging()
		out, err = ctx.Env.Forage(a.Position, order.Target)
	}
	if err != nil {
		a.State = Idle()
		a.record(ctx, "invalid_target", order.Action, func(r *telemetry.Record) {
			r.Target = order.Target.String()
			r.Detail = err.Error()
		})
		return
	}

	switch {
	case out.Success && order.Action == ActionHunt:
		a.Stats.Hunger -= out.Amount
		a.Stats.Fatigue += 5
		a.Stats.Injury += 2 * out.Risk * a.Traits.RiskTolerance
	case out.Success:
		a.Stats.Hunger -= out.Amount
		a.Stats.Thirst -= out.Amount / 2
		a.Stats.Fatigue++
	case order.Action == ActionHunt:
		a.Stats.Fatigue += 10
		a.Stats.Injury += 5 * out.Risk * a.Traits.RiskTolerance
	default:
		a.Stats.Fatigue += 2
	}
	a.clampStats()

	if out.Success {
		a.Kappa.Update(order.Action, true, out.Amount, p)
		a.updateHeat(pHunger, flow)
		if a.AtHome() {
			a.Territory.RecordPositive(MemoryFoodFound)
		}
	} else {
		a.Kappa.Update(order.Action, false, 0, p)
		a.updateHeat(pHunger, 0)
	}

	a.record(ctx, order.Action.String(), order.Action, func(r *telemetry.Record) {
		r.Target = order.Target.String()
		r.Success = out.Success
		r.Amount = out.Amount
	})
	a.State = Idle()
}

// rest recovers in place for one tick.
func (a *Agent) rest(ctx *Context, pr Pressure) {
	p := a.params
	a.State = Resting()

	homeRecovery, sleepQuality, _ := a.HomeBonus()
	sleepFactor := 1 + 0.5*ctx.conditions().SleepPressure()*sleepQuality
	recovery := 30 * (1 + 0.25*a.Traits.Stamina) * homeRecovery * sleepFactor

	a.Stats.Fatigue -= recovery
	a.Stats.Injury -= 4 * (1 + 0.1*a.Traits.Stamina) * homeRecovery
	a.Stats.Boredom = math.Min(100, a.Stats.Boredom+5)
	a.clampStats()

	a.Kappa.Update(ActionRest, true, 0.6*recovery, p)
	a.updateHeat(pr.Fatigue, recovery/30)
	if a.AtHome() {
		a.Territory.RecordPositive(MemoryRested)
	}

	a.record(ctx, "rest", ActionRest, func(r *telemetry.Record) {
		r.Success = true
		r.Amount = recovery
	})
	a.noteRest(ctx)
	a.State = Idle()
}

// patrol picks a wander target and takes the first step. Owners circle
// their territory; everyone else wanders within a temperature-scaled box.
func (a *Agent) patrol(ctx *Context, pr Pressure) {
	var target world.Pos
	if t := a.Territory; t != nil {
		angle := ctx.Rand.Float64() * 2 * math.Pi
		r := 0.7 * t.Radius
		target = world.Pos{
			X: int(t.CenterX + r*math.Cos(angle)),
			Y: int(t.CenterY + r*math.Sin(angle)),
		}
	} else {
		reach := int(1 + 4*a.Temperature)
		target = a.Position.Add(
			ctx.Rand.Intn(2*reach+1)-reach,
			ctx.Rand.Intn(2*reach+1)-reach,
		)
	}
	target = ctx.Env.Bounds().Clamp(target)

	a.State = Moving(ActionPatrol, target)
	a.Stats.Boredom = math.Max(0, a.Stats.Boredom-20)
	a.updateHeat(pr.Boredom, 0.1)
	a.record(ctx, "patrol_start", ActionPatrol, func(r *telemetry.Record) {
		r.Target = target.String()
	})

	if a.stepToward(ctx, target) {
		a.State = Idle()
	}
}

// helpee finds the committed help target among the agents still in reach.
func (a *Agent) helpee(ctx *Context) *Agent {
	id, ok := a.State.Target()
	if !ok {
		return nil
	}
	for _, o := range ctx.World.Nearby(a, a.params.HelpRadius) {
		if o.ID == id {
			return o
		}
	}
	return nil
}

// record emits a telemetry record for an action, carrying the action's κ.
func (a *Agent) record(ctx *Context, kind string, action ActionKind, fill func(*telemetry.Record)) {
	a.recordState(ctx, kind, func(r *telemetry.Record) {
		r.Action = action.String()
		r.Kappa = a.Kappa[action]
		if fill != nil {
			fill(r)
		}
	})
}

// recordState emits a telemetry record not tied to one action.
func (a *Agent) recordState(ctx *Context, kind string, fill func(*telemetry.Record)) {
	if ctx.Sink == nil {
		return
	}
	r := telemetry.Record{
		Tick:        ctx.Tick,
		AgentID:     uint64(a.ID),
		Agent:       a.Name,
		Kind:        kind,
		State:       a.State.Kind.String(),
		Hunger:      a.Stats.Hunger,
		Fatigue:     a.Stats.Fatigue,
		Injury:      a.Stats.Injury,
		Heat:        a.Heat,
		Temperature: a.Temperature,
	}
	if fill != nil {
		fill(&r)
	}
	ctx.emit(r)
}

func sign(v int) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}
