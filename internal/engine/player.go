package engine

import (
	"github.com/cardroom/holdemd/internal/ledger"
	"github.com/cardroom/holdemd/poker"
)

// Player is a seat-scoped identity with its chip stack. Chips move only
// through the ledger; the engine never touches the count directly.
type Player struct {
	ID   string
	Name string
	Seat int

	Stack  *ledger.ChipStack
	Status PlayerStatus

	HoleCards [2]poker.Card
	HasCards  bool

	StreetBet     int64 // committed on the current street
	TotalBet      int64 // committed across the whole hand
	Acted         bool  // has acted on the current street
	TimeBanksUsed int
}

// InHand reports whether the player still contends for the pot.
func (p *Player) InHand() bool {
	return p.Status == StatusActive || p.Status == StatusAllIn
}

// Actionable reports whether the player can still make betting decisions.
func (p *Player) Actionable() bool {
	return p.Status == StatusActive && p.Stack.Chips() > 0
}

// resetForHand clears per-hand state before the deal.
func (p *Player) resetForHand() {
	p.HoleCards = [2]poker.Card{}
	p.HasCards = false
	p.StreetBet = 0
	p.TotalBet = 0
	p.Acted = false
	p.TimeBanksUsed = 0
}
