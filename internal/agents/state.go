package agents

import (
	"fmt"

	"github.com/talgya/ssd-village/internal/world"
)

// StateKind enumerates the behavior states.
type StateKind uint8

const (
	StateIdle     StateKind = iota // Ready to arbitrate
	StateMoving                    // Walking toward Move.Target
	StateForaging                  // Resolving a forage at the node
	StateHunting                   // Resolving a hunt at the node
	StateHelping                   // Committed to Helpee
	StateResting                   // Single-tick recovery
	StateDead                      // Terminal
	numStates
)

var stateNames = [numStates]string{"Idle", "Moving", "Foraging", "Hunting", "Helping", "Resting", "Dead"}

func (k StateKind) String() string {
	if k < numStates {
		return stateNames[k]
	}
	return "Unknown"
}

// Valid reports whether k is a known state.
func (k StateKind) Valid() bool {
	return k < numStates
}

// MarshalText encodes the state by name.
func (k StateKind) MarshalText() ([]byte, error) {
	if !k.Valid() {
		return nil, fmt.Errorf("state %d: %w", k, ErrInvariantViolation)
	}
	return []byte(k.String()), nil
}

// UnmarshalText decodes a state name.
func (k *StateKind) UnmarshalText(b []byte) error {
	for i, n := range stateNames {
		if n == string(b) {
			*k = StateKind(i)
			return nil
		}
	}
	return fmt.Errorf("unknown state %q", b)
}

// MoveOrder is an in-progress walk. For forage and hunt the target is the
// resource node's cell; for patrol it is an arbitrary cell.
type MoveOrder struct {
	Action ActionKind `json:"action"`
	Target world.Pos  `json:"target"`
}

// State is the behavior state. Payload fields are only set for the kinds
// that use them; build values with the constructors below.
type State struct {
	Kind   StateKind  `json:"kind"`
	Move   *MoveOrder `json:"move,omitempty"`   // StateMoving only
	Helpee AgentID    `json:"helpee,omitempty"` // StateHelping only
}

// Idle is the resting default.
func Idle() State { return State{Kind: StateIdle} }

// Moving walks toward target to perform action on arrival.
func Moving(action ActionKind, target world.Pos) State {
	return State{Kind: StateMoving, Move: &MoveOrder{Action: action, Target: target}}
}

// Foraging is entered for the tick a forage resolves.
func Foraging() State { return State{Kind: StateForaging} }

// Hunting is entered for the tick a hunt resolves.
func Hunting() State { return State{Kind: StateHunting} }

// Helping commits to a target across ticks.
func Helping(target AgentID) State { return State{Kind: StateHelping, Helpee: target} }

// Resting is entered for the tick a rest resolves.
func Resting() State { return State{Kind: StateResting} }

// Dead is terminal.
func Dead() State { return State{Kind: StateDead} }

// Order returns the move order when the state is Moving.
func (s State) Order() (MoveOrder, bool) {
	if s.Kind != StateMoving || s.Move == nil {
		return MoveOrder{}, false
	}
	return *s.Move, true
}

// Target returns the helpee when the state is Helping.
func (s State) Target() (AgentID, bool) {
	if s.Kind != StateHelping {
		return 0, false
	}
	return s.Helpee, true
}

func (s State) String() string {
	switch s.Kind {
	case StateMoving:
		if s.Move != nil {
			return fmt.Sprintf("Moving{%s→%s}", s.Move.Action, s.Move.Target)
		}
	case StateHelping:
		return fmt.Sprintf("Helping{%d}", s.Helpee)
	}
	return s.Kind.String()
}
