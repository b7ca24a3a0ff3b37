package engine

import "fmt"

// TableState is the hand lifecycle phase. Transitions are strictly ordered;
// the only skips are short-circuits when fewer than two contenders remain.
type TableState int

const (
	StateWaiting TableState = iota
	StateDealing
	StatePreflop
	StateFlop
	StateTurn
	StateRiver
	StateShowdown
	StateCleanup
)

func (s TableState) String() string {
	switch s {
	case StateWaiting:
		return "waiting"
	case StateDealing:
		return "dealing"
	case StatePreflop:
		return "preflop"
	case StateFlop:
		return "flop"
	case StateTurn:
		return "turn"
	case StateRiver:
		return "river"
	case StateShowdown:
		return "showdown"
	case StateCleanup:
		return "cleanup"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// BettingStreet reports whether players act in this state.
func (s TableState) BettingStreet() bool {
	return s >= StatePreflop && s <= StateRiver
}

func nextStreet(s TableState) TableState {
	switch s {
	case StatePreflop:
		return StateFlop
	case StateFlop:
		return StateTurn
	case StateTurn:
		return StateRiver
	default:
		return StateShowdown
	}
}

// ActionKind is the closed set of player actions.
type ActionKind int

const (
	ActionFold ActionKind = iota
	ActionCheck
	ActionCall
	ActionBet
	ActionRaise
	ActionAllIn
)

func (a ActionKind) String() string {
	switch a {
	case ActionFold:
		return "fold"
	case ActionCheck:
		return "check"
	case ActionCall:
		return "call"
	case ActionBet:
		return "bet"
	case ActionRaise:
		return "raise"
	case ActionAllIn:
		return "allin"
	}
	return fmt.Sprintf("action(%d)", int(a))
}

// ParseActionKind maps the wire form onto the enum.
func ParseActionKind(s string) (ActionKind, error) {
	switch s {
	case "fold":
		return ActionFold, nil
	case "check":
		return ActionCheck, nil
	case "call":
		return ActionCall, nil
	case "bet":
		return ActionBet, nil
	case "raise":
		return ActionRaise, nil
	case "allin", "all_in", "all-in":
		return ActionAllIn, nil
	}
	return 0, fmt.Errorf("engine: unknown action %q", s)
}

// PlayerStatus is a player's standing at the table.
type PlayerStatus int

const (
	StatusSitting PlayerStatus = iota // seated, not in the current hand
	StatusActive                      // in the hand and able to act
	StatusFolded
	StatusAllIn
	StatusLeft
	StatusDisconnected
)

func (s PlayerStatus) String() string {
	switch s {
	case StatusSitting:
		return "sitting"
	case StatusActive:
		return "active"
	case StatusFolded:
		return "folded"
	case StatusAllIn:
		return "allin"
	case StatusLeft:
		return "left"
	case StatusDisconnected:
		return "disconnected"
	}
	return fmt.Sprintf("status(%d)", int(s))
}
