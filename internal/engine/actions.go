package engine

import (
	"time"

	"github.com/cardroom/holdemd/poker"
)

// Apply validates and executes one player action. A rejected action leaves
// the table completely unchanged.
func (t *Table) Apply(playerID string, kind ActionKind, amount int64) error {
	if !t.state.BettingStreet() {
		return ErrNoActiveHand
	}
	p, ok := t.players[playerID]
	if !ok {
		return ErrUnknownPlayer
	}
	if p.Seat != t.toAct {
		return ErrNotYourTurn
	}
	if p.Status != StatusActive {
		return ErrPlayerNotActive
	}

	toCall := t.currentBet - p.StreetBet

	switch kind {
	case ActionFold:
		p.Status = StatusFolded
		p.Acted = true

	case ActionCheck:
		if toCall > 0 {
			return ErrCannotCheck
		}
		p.Acted = true

	case ActionCall:
		if toCall <= 0 {
			return ErrNothingToCall
		}
		t.invest(p, toCall)
		p.Acted = true

	case ActionBet:
		if t.currentBet > 0 {
			return ErrBetExists
		}
		if amount <= 0 {
			return ErrInvalidAmount
		}
		t.invest(p, amount)
		t.currentBet = p.StreetBet
		p.Acted = true
		t.reopenAction(p)

	case ActionRaise:
		if t.currentBet == 0 {
			// A raise with no bet to raise is an opening bet.
			return t.Apply(playerID, ActionBet, amount)
		}
		if amount <= 0 {
			return ErrInvalidAmount
		}
		needed := amount - p.StreetBet
		if needed <= 0 {
			return ErrInvalidAmount
		}
		chips := p.Stack.Chips()
		if needed < chips {
			// Not all-in: the raise must at least double the bet.
			if amount < 2*t.currentBet {
				return ErrRaiseTooSmall
			}
		}
		t.invest(p, needed)
		if p.StreetBet > t.currentBet {
			t.currentBet = p.StreetBet
			t.reopenAction(p)
		}
		p.Acted = true

	case ActionAllIn:
		if p.Stack.Chips() <= 0 {
			return ErrInvalidAmount
		}
		t.invest(p, p.Stack.Chips())
		if p.StreetBet > t.currentBet {
			t.currentBet = p.StreetBet
			t.reopenAction(p)
		}
		p.Acted = true

	default:
		return ErrInvalidAmount
	}

	t.logger.Debug("action applied", "player", p.Name, "action", kind, "amount", amount,
		"streetBet", p.StreetBet, "currentBet", t.currentBet)

	t.progress(p.Seat)
	return nil
}

// reopenAction marks every other live player as owing a response to a bet
// or raise.
func (t *Table) reopenAction(raiser *Player) {
	for _, p := range t.seats {
		if p == nil || p == raiser {
			continue
		}
		if p.Status == StatusActive {
			p.Acted = false
		}
	}
}

// progress decides what the table owes next after an action from the given
// seat: the next player's turn, a street transition, or settlement.
func (t *Table) progress(actedSeat int) {
	inHand := t.playersInHand()
	if len(inHand) <= 1 {
		var winner *Player
		if len(inHand) == 1 {
			winner = inHand[0]
		}
		t.settleUncontested(winner)
		return
	}

	if t.streetCompleted() || t.shouldSkipBetting() {
		if t.state == StateRiver {
			t.schedulePending(StateShowdown)
		} else {
			t.schedulePending(nextStreet(t.state))
		}
		return
	}

	next := t.nextActionableSeat(actedSeat)
	if next < 0 {
		t.schedulePending(nextStreet(t.state))
		return
	}
	t.toAct = next
	t.setDue(DueAction, next)
}

// streetCompleted reports whether every live player has acted and matched
// the current bet.
func (t *Table) streetCompleted() bool {
	for _, p := range t.actionablePlayers() {
		if !p.Acted || p.StreetBet != t.currentBet {
			return false
		}
	}
	return true
}

// shouldSkipBetting reports whether the street has no meaningful action
// left: fewer than two players can act, and any lone actionable player has
// already matched the street's high bet.
func (t *Table) shouldSkipBetting() bool {
	actionable := t.actionablePlayers()
	switch len(actionable) {
	case 0:
		return true
	case 1:
		// With everyone else all-in or folded a lone matched player has
		// no one left to bet against.
		return actionable[0].StreetBet >= t.currentBet
	default:
		return false
	}
}

// AdvanceStreet fires the pending street transition: dealing community
// cards and opening the next betting round, or running the showdown. The
// scheduler calls it after the street delay elapses. A deck error is
// unrecoverable for the table.
func (t *Table) AdvanceStreet(now time.Time) error {
	if !t.hasPending {
		return nil
	}
	target := t.pendingStreet
	t.hasPending = false

	if target == StateShowdown {
		return t.showdown(now)
	}

	deck := t.hand.Deck
	switch target {
	case StateFlop:
		flop, err := deck.DealFlop()
		if err != nil {
			return err
		}
		t.hand.Board = append(t.hand.Board, flop[:]...)
	case StateTurn:
		card, err := deck.DealTurn()
		if err != nil {
			return err
		}
		t.hand.Board = append(t.hand.Board, card)
	case StateRiver:
		card, err := deck.DealRiver()
		if err != nil {
			return err
		}
		t.hand.Board = append(t.hand.Board, card)
	}
	t.state = target
	t.logger.Debug("street dealt", "street", target, "board", t.hand.Board)

	t.currentBet = 0
	for _, p := range t.allPlayers() {
		p.StreetBet = 0
		if p.Status == StatusActive {
			p.Acted = false
		}
	}

	if t.shouldSkipBetting() {
		if target == StateRiver {
			t.schedulePending(StateShowdown)
		} else {
			t.schedulePending(nextStreet(target))
		}
		return nil
	}

	t.toAct = t.nextActionableSeat(t.button)
	if t.toAct < 0 {
		t.schedulePending(nextStreet(target))
		return nil
	}
	t.setDue(DueAction, t.toAct)
	return nil
}

// showdown evaluates every contender's best five-card hand, slices the pot
// and pays the winners.
func (t *Table) showdown(now time.Time) error {
	contenders := t.playersInHand()
	handRanks := make(map[string]poker.HandRank, len(contenders))
	seatOf := make(map[string]int, len(contenders))
	for _, p := range contenders {
		seven := append([]poker.Card{}, p.HoleCards[:]...)
		seven = append(seven, t.hand.Board...)
		rank, err := poker.EvaluateSeven(seven)
		if err != nil {
			return err
		}
		handRanks[p.ID] = rank
		seatOf[p.ID] = p.Seat
	}

	players := t.allPlayers()
	pots := BuildPots(players)
	t.hand.Pots = pots
	t.hand.Ranks = handRanks

	contested := len(contenders) >= 2
	dists, rake := DistributePots(pots, handRanks, seatOf, t.cfg.Rake, contested)
	for _, d := range dists {
		if p, ok := t.players[d.PlayerID]; ok {
			if err := p.Stack.Add(d.Amount); err != nil {
				return err
			}
		}
	}
	t.hand.Distributions = dists
	t.hand.RakeTaken = rake
	t.recordSettlement(now)

	t.logger.Info("showdown settled", "hand", t.hand.ID, "pot", PotTotal(pots),
		"rake", rake, "winners", len(dists))

	t.state = StateShowdown
	t.toAct = -1
	t.setDue(DueHandEnd, -1)
	return nil
}

// settleUncontested pays the whole pot to the last player standing. The
// board is not completed, hole cards stay hidden and no rake is taken.
func (t *Table) settleUncontested(winner *Player) {
	pots := BuildPots(t.allPlayers())
	t.hand.Pots = pots
	total := PotTotal(pots)
	if winner != nil && total > 0 {
		if err := winner.Stack.Add(total); err != nil {
			t.logger.Error("uncontested payout failed", "player", winner.Name, "error", err)
		}
		t.hand.Distributions = []Distribution{{
			PlayerID: winner.ID,
			Seat:     winner.Seat,
			Amount:   total,
			Reason:   "uncontested",
		}}
		t.logger.Info("hand won uncontested", "hand", t.hand.ID, "player", winner.Name, "pot", total)
	}
	t.recordSettlement(t.clock.Now())

	t.state = StateShowdown
	t.hasPending = false
	t.toAct = -1
	t.setDue(DueHandEnd, -1)
}

func (t *Table) recordSettlement(now time.Time) {
	t.lastSettlement = &SettlementRecord{
		HandID:        t.hand.ID,
		TableID:       t.ID,
		CompletedAt:   now,
		RakeTaken:     t.hand.RakeTaken,
		Distributions: t.hand.Distributions,
	}
}

// ForceTimeout resolves an expired action clock for the given seat: the
// player checks if nothing is owed, otherwise folds. A stale seat is
// ignored.
func (t *Table) ForceTimeout(seat int) {
	if !t.state.BettingStreet() || seat != t.toAct {
		return
	}
	p := t.seats[seat]
	if p == nil || p.Status != StatusActive {
		return
	}
	if t.currentBet > p.StreetBet {
		t.logger.Info("action clock expired, folding", "player", p.Name)
		p.Status = StatusFolded
	} else {
		t.logger.Info("action clock expired, checking", "player", p.Name)
	}
	p.Acted = true
	t.progress(seat)
}

// forceFold folds a player out of turn, used when they leave mid-hand.
func (t *Table) forceFold(p *Player) {
	p.Status = StatusFolded
	p.Acted = true
	if t.toAct == p.Seat {
		t.progress(p.Seat)
	} else if len(t.playersInHand()) <= 1 {
		var winner *Player
		if in := t.playersInHand(); len(in) == 1 {
			winner = in[0]
		}
		t.settleUncontested(winner)
	}
}

// FinishHand tears down a settled hand and returns the table to the
// waiting state: departed players are unseated, everyone else sits out
// until the next deal.
func (t *Table) FinishHand() {
	if t.state != StateShowdown {
		return
	}
	t.state = StateCleanup
	for _, p := range t.allPlayers() {
		p.HasCards = false
		p.StreetBet = 0
		p.TotalBet = 0
		p.Acted = false
		switch p.Status {
		case StatusLeft:
			t.unseat(p)
		case StatusDisconnected:
			// stays seated, skipped by the next deal
		default:
			p.Status = StatusSitting
		}
	}
	t.hand = nil
	t.currentBet = 0
	t.toAct = -1
	t.hasPending = false
	t.state = StateWaiting
	t.setDue(DueNone, -1)
}
