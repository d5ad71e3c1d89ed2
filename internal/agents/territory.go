package agents

import (
	"math"
	"strconv"

	"github.com/talgya/ssd-village/internal/telemetry"
	"github.com/talgya/ssd-village/internal/world"
)

// Territory memory counters.
const (
	MemoryFoodFound  = "food_found"
	MemoryHelpedHere = "helped_here"
	MemoryThreatened = "threatened"
	MemoryRested     = "rested"
)

// Territory is the ground an agent has claimed. The radius is fixed at
// creation; the center drifts toward wherever the owner spends its time.
type Territory struct {
	Owner      AgentID          `json:"owner"`
	CenterX    float64          `json:"center_x"`
	CenterY    float64          `json:"center_y"`
	Radius     float64          `json:"radius"`     // 5 + 3×avoidance
	Attachment float64          `json:"attachment"` // 0.1–1.0
	Memory     map[string]int   `json:"memory"`
	Guests     map[AgentID]bool `json:"guests,omitempty"`
	ClaimedAt  uint64           `json:"claimed_at"`
}

const (
	initialAttachment = 0.3
	attachmentStep    = 0.05
	maxAttachment     = 1.0
	centerSmoothing   = 0.95
)

// NewTerritory claims ground centered on pos.
func NewTerritory(owner AgentID, pos world.Pos, avoidance float64, tick uint64) *Territory {
	return &Territory{
		Owner:      owner,
		CenterX:    float64(pos.X),
		CenterY:    float64(pos.Y),
		Radius:     5 + 3*avoidance,
		Attachment: initialAttachment,
		Memory: map[string]int{
			MemoryFoodFound:  0,
			MemoryHelpedHere: 0,
			MemoryThreatened: 0,
			MemoryRested:     0,
		},
		Guests:    make(map[AgentID]bool),
		ClaimedAt: tick,
	}
}

// Contains reports whether p lies within the Euclidean radius of the center.
func (t *Territory) Contains(p world.Pos) bool {
	dx := float64(p.X) - t.CenterX
	dy := float64(p.Y) - t.CenterY
	return dx*dx+dy*dy <= t.Radius*t.Radius
}

// Drift moves the center 5% of the way toward p.
func (t *Territory) Drift(p world.Pos) {
	t.CenterX = centerSmoothing*t.CenterX + (1-centerSmoothing)*float64(p.X)
	t.CenterY = centerSmoothing*t.CenterY + (1-centerSmoothing)*float64(p.Y)
}

// RecordPositive counts a good event at home and strengthens attachment.
func (t *Territory) RecordPositive(event string) {
	if t.Memory == nil {
		t.Memory = make(map[string]int)
	}
	t.Memory[event]++
	t.Attachment = math.Min(maxAttachment, t.Attachment+attachmentStep)
}

// RecordThreat counts a threat. Attachment is left alone.
func (t *Territory) RecordThreat() {
	if t.Memory == nil {
		t.Memory = make(map[string]int)
	}
	t.Memory[MemoryThreatened]++
}

// Invite admits id as a permanent guest.
func (t *Territory) Invite(id AgentID) {
	if t.Guests == nil {
		t.Guests = make(map[AgentID]bool)
	}
	t.Guests[id] = true
}

// Away-from-home modifiers for owners outside their territory.
const (
	awayRecovery     = 0.8
	awaySleepQuality = 0.9
	awayActivityCost = 1.2
)

// HomeBonus returns the recovery, sleep-quality and heat-relief modifiers.
// An owner at home gains with attachment, an owner away from home recovers
// and sleeps worse, and an agent without territory is neutral.
func (a *Agent) HomeBonus() (recovery, sleepQuality, heatRelief float64) {
	switch {
	case a.Territory == nil:
		return 1, 1, 0
	case !a.AtHome():
		return awayRecovery, awaySleepQuality, 0
	}
	att := a.Territory.Attachment
	return 1 + 0.5*att, 1 + 0.3*att, 0.1 * att
}

// awayCost is the activity-cost factor for an owner outside its territory.
func (a *Agent) awayCost() float64 {
	if a.Territory != nil && !a.AtHome() {
		return awayActivityCost
	}
	return 1
}

// Threat rates how threatening other is to the owner, 0–1.
func Threat(owner, other *Agent) float64 {
	threat := 0.3
	rel := owner.Rel(other.ID)
	if rel < 0 {
		threat += math.Abs(rel) * 0.5
	} else if rel > 0.5 {
		threat -= 0.3
	}
	threat += other.Traits.TerritorialAggression() * 0.3
	if owner.Stats.Hunger > 70 && other.Stats.Hunger > 70 {
		threat += 0.4
	}
	return clamp(threat, 0, 1)
}

// Intruders returns the non-guest agents standing inside a's territory, in
// roster order.
func Intruders(a *Agent, w World) []*Agent {
	t := a.Territory
	if t == nil {
		return nil
	}
	var out []*Agent
	for _, o := range w.Nearby(a, int(t.Radius)) {
		if t.Guests[o.ID] {
			continue
		}
		if t.Contains(o.Position) {
			out = append(out, o)
		}
	}
	return out
}

// Reaction is what an owner did about an intruder.
type Reaction uint8

const (
	ReactIgnored Reaction = iota
	ReactInvited
	ReactWarned
	ReactChased
	ReactRetreated
)

var reactionNames = [...]string{"ignored", "invited", "warned", "chased", "retreated"}

func (r Reaction) String() string {
	if int(r) < len(reactionNames) {
		return reactionNames[r]
	}
	return "unknown"
}

// endsTick reports whether the reaction consumes the owner's tick.
func (r Reaction) endsTick() bool {
	return r == ReactChased || r == ReactRetreated
}

const (
	lowThreat     = 0.3
	mediumThreat  = 0.6
	inviteChance  = 0.3
	inviteEmpathy = 0.7
)

// react handles one intruder.
func (a *Agent) react(ctx *Context, other *Agent) Reaction {
	t := a.Territory
	threat := Threat(a, other)
	if threat >= lowThreat {
		t.RecordThreat()
	}

	var r Reaction
	switch {
	case threat < lowThreat:
		if a.Traits.Empathy > inviteEmpathy && ctx.Rand.Float64() < inviteChance {
			t.Invite(other.ID)
			a.AdjustRel(other.ID, 0.1)
			ctx.World.Apply(other.ID, Effect{Source: a.ID, Rel: 0.1})
			r = ReactInvited
		}
	case threat < mediumThreat:
		edge := world.Pos{
			X: int(t.CenterX + t.Radius*0.8),
			Y: int(t.CenterY),
		}
		a.stepToward(ctx, ctx.Env.Bounds().Clamp(edge))
		a.AdjustRel(other.ID, -0.05)
		r = ReactWarned
	case a.Traits.TerritorialAggression() > other.Traits.TerritorialAggression():
		ctx.World.Apply(other.ID, Effect{Source: a.ID, Heat: 0.5, Rel: -0.15})
		a.AdjustRel(other.ID, -0.1)
		r = ReactChased
	default:
		escape := world.Pos{
			X: int(t.CenterX - (float64(other.Position.X) - t.CenterX)),
			Y: int(t.CenterY - (float64(other.Position.Y) - t.CenterY)),
		}
		a.stepToward(ctx, ctx.Env.Bounds().Clamp(escape))
		a.addHeat(0.3)
		r = ReactRetreated
	}

	if r != ReactIgnored {
		a.recordState(ctx, "territory_"+r.String(), func(rec *telemetry.Record) {
			rec.Target = strconv.FormatUint(uint64(other.ID), 10)
			rec.Amount = threat
		})
	}
	return r
}

// defendTerritory reacts to every intruder in order. It reports true when a
// chase or retreat ended the tick.
func (a *Agent) defendTerritory(ctx *Context) bool {
	for _, o := range Intruders(a, ctx.World) {
		if a.react(ctx, o).endsTick() {
			return true
		}
	}
	return false
}

// Claim tuning.
const (
	claimBase          = 0.105
	claimAnchorRadius  = 2
	claimStreakFull    = 3.0
	claimAllyRadius    = 5
	claimAllyWeight    = 0.2
	claimAllyCap       = 0.8
	claimEmpathyWeight = 0.5
	claimEmpathyCap    = 0.4
)

// ClaimSafety scores how safe the current rest spot feels.
func ClaimSafety(streak, allies int, empathy float64) float64 {
	return claimBase +
		0.4*math.Min(1, float64(streak)/claimStreakFull) +
		0.25*math.Min(claimAllyCap, claimAllyWeight*float64(allies)) +
		0.2*math.Min(claimEmpathyCap, claimEmpathyWeight*empathy)
}

// noteRest updates the rest anchor after a rest and claims a territory once
// the spot feels safe enough. It reports whether a claim happened.
func (a *Agent) noteRest(ctx *Context) bool {
	if a.Territory != nil {
		return false
	}
	if world.Distance(a.Position, a.RestAnchor) <= claimAnchorRadius && a.RestStreak > 0 {
		a.RestStreak++
	} else {
		a.RestAnchor = a.Position
		a.RestStreak = 1
	}

	allies := len(ctx.World.Nearby(a, claimAllyRadius))
	safety := ClaimSafety(a.RestStreak, allies, a.Traits.Empathy)
	if safety < a.params.ClaimThreshold {
		return false
	}

	a.Territory = NewTerritory(a.ID, a.Position, a.Traits.Avoidance, ctx.Tick)
	a.recordState(ctx, "territory_claimed", func(r *telemetry.Record) {
		r.Amount = safety
		r.Target = a.Position.String()
	})
	return true
}
