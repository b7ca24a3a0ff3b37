package engine

import "errors"

// Rejection reasons surfaced to the caller. All of these are local to the
// single requested operation: the table keeps running and no state was
// mutated when one of them is returned.
var (
	ErrTableFull        = errors.New("engine: table is full")
	ErrUnknownPlayer    = errors.New("engine: player not found at table")
	ErrNotYourTurn      = errors.New("engine: not your turn to act")
	ErrPlayerNotActive  = errors.New("engine: player is not active in the hand")
	ErrNoActiveHand     = errors.New("engine: no hand in progress")
	ErrHandInProgress   = errors.New("engine: a hand is already in progress")
	ErrNotEnoughPlayers = errors.New("engine: at least 2 players with chips required")
	ErrBuyInOutOfRange  = errors.New("engine: buy-in outside table limits")
	ErrCannotCheck      = errors.New("engine: cannot check when facing a bet")
	ErrNothingToCall    = errors.New("engine: nothing to call")
	ErrBetExists        = errors.New("engine: a bet already exists, raise instead")
	ErrRaiseTooSmall    = errors.New("engine: raise below minimum")
	ErrInvalidAmount    = errors.New("engine: amount must be positive")
	ErrNoTimeBank       = errors.New("engine: no time bank extensions left")
)
