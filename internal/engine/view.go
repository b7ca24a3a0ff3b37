package engine

import (
	"time"
)

// SeatView is one seat as a viewer sees it.
type SeatView struct {
	Seat      int    `json:"seat"`
	PlayerID  string `json:"playerId"`
	Name      string `json:"name"`
	Stack     int64  `json:"stack"`
	Status    string `json:"status"`
	StreetBet int64  `json:"streetBet"`
	TotalBet  int64  `json:"totalBet"`
	HasCards  bool   `json:"hasCards"`
	// HoleCards is empty unless the viewer is entitled to see them.
	HoleCards []string `json:"holeCards,omitempty"`
}

// PotView is one pot slice with the amount currently in it.
type PotView struct {
	Seq      int      `json:"seq"`
	Amount   int64    `json:"amount"`
	Eligible []string `json:"eligible"`
}

// PayoutView is one settled distribution.
type PayoutView struct {
	PlayerID string `json:"playerId"`
	Seat     int    `json:"seat"`
	Amount   int64  `json:"amount"`
	Reason   string `json:"reason"`
}

// TableView is a complete, redacted snapshot of the table for one viewer.
// It carries no references into live table state.
type TableView struct {
	TableID    string       `json:"tableId"`
	Name       string       `json:"name"`
	State      string       `json:"state"`
	HandID     string       `json:"handId,omitempty"`
	Board      []string     `json:"board"`
	Pots       []PotView    `json:"pots"`
	TotalPot   int64        `json:"totalPot"`
	CurrentBet int64        `json:"currentBet"`
	Button     int          `json:"button"`
	MaxPlayers int          `json:"maxPlayers"`
	SmallBlind int64        `json:"smallBlind"`
	BigBlind   int64        `json:"bigBlind"`
	ToActSeat  int          `json:"toActSeat"`
	Deadline   time.Time    `json:"deadline,omitempty"`
	Seats      []SeatView   `json:"seats"`
	Payouts    []PayoutView `json:"payouts,omitempty"`
}

// View builds the table snapshot visible to viewerID. A viewer always sees
// their own hole cards; other players' cards are revealed only at a
// contested showdown, and only for players still in the hand. An empty
// viewerID produces a spectator view with no hole cards.
func (t *Table) View(viewerID string, deadline time.Time) TableView {
	v := TableView{
		TableID:    t.ID,
		Name:       t.Name,
		State:      t.state.String(),
		Board:      []string{},
		Pots:       []PotView{},
		CurrentBet: t.currentBet,
		Button:     t.button,
		MaxPlayers: t.cfg.MaxPlayers,
		SmallBlind: t.cfg.SmallBlind,
		BigBlind:   t.cfg.BigBlind,
		ToActSeat:  t.toAct,
		Deadline:   deadline,
	}

	showdownReveal := false
	if t.hand != nil {
		v.HandID = t.hand.ID
		for _, c := range t.hand.Board {
			v.Board = append(v.Board, c.String())
		}
		pots := BuildPots(t.allPlayers())
		for _, slice := range pots {
			v.Pots = append(v.Pots, PotView{
				Seq:      slice.Seq,
				Amount:   slice.Amount,
				Eligible: append([]string{}, slice.Eligible...),
			})
			v.TotalPot += slice.Amount
		}
		showdownReveal = t.state == StateShowdown && len(t.playersInHand()) >= 2
		for _, d := range t.hand.Distributions {
			v.Payouts = append(v.Payouts, PayoutView{
				PlayerID: d.PlayerID,
				Seat:     d.Seat,
				Amount:   d.Amount,
				Reason:   d.Reason,
			})
		}
	}

	for _, p := range t.seats {
		if p == nil {
			continue
		}
		sv := SeatView{
			Seat:      p.Seat,
			PlayerID:  p.ID,
			Name:      p.Name,
			Stack:     p.Stack.Chips(),
			Status:    p.Status.String(),
			StreetBet: p.StreetBet,
			TotalBet:  p.TotalBet,
			HasCards:  p.HasCards,
		}
		if p.HasCards {
			ownCards := viewerID != "" && p.ID == viewerID
			revealed := showdownReveal && p.InHand()
			if ownCards || revealed {
				sv.HoleCards = []string{p.HoleCards[0].String(), p.HoleCards[1].String()}
			}
		}
		v.Seats = append(v.Seats, sv)
	}
	return v
}
