package poker

import (
	crand "crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	mrand "math/rand/v2"
)

// ErrDeckExhausted is returned when a deal would draw past the end of the
// deck. With 52 cards this can only happen through a dealing bug (at most
// 9 players x 2 hole cards + 5 board + 4 burns = 27 cards), so callers must
// treat it as fatal for the hand in progress.
var ErrDeckExhausted = errors.New("poker: deck exhausted")

// Deck is a standard 52-card deck with a fixed shuffle order. Deals consume
// cards front to back; the full order is exposed for persistence so that a
// hand can be replayed byte-for-byte during recovery.
type Deck struct {
	cards [52]Card
	next  int
}

func fill(d *Deck) {
	i := 0
	for suit := Spades; suit <= Clubs; suit++ {
		for rank := Two; rank <= Ace; rank++ {
			d.cards[i] = Card{Suit: suit, Rank: rank}
			i++
		}
	}
}

// NewDeck returns a deck shuffled with a Fisher-Yates permutation driven by
// crypto/rand.
func NewDeck() *Deck {
	d := &Deck{}
	fill(d)
	for i := len(d.cards) - 1; i > 0; i-- {
		j := cryptoIntN(i + 1)
		d.cards[i], d.cards[j] = d.cards[j], d.cards[i]
	}
	return d
}

// NewSeededDeck returns a deck shuffled deterministically from seed. Only
// for tests and simulations; live hands use NewDeck.
func NewSeededDeck(seed uint64) *Deck {
	d := &Deck{}
	fill(d)
	rng := mrand.New(mrand.NewPCG(splitmix(seed), splitmix(seed+0x9e3779b97f4a7c15)))
	for i := len(d.cards) - 1; i > 0; i-- {
		j := rng.IntN(i + 1)
		d.cards[i], d.cards[j] = d.cards[j], d.cards[i]
	}
	return d
}

// NewDeckFromOrder reconstructs a deck from a persisted shuffle order and a
// count of cards already dealt. The order must be a permutation of all 52
// cards; anything else means the persisted record is corrupt.
func NewDeckFromOrder(order []Card, dealt int) (*Deck, error) {
	if len(order) != 52 {
		return nil, fmt.Errorf("poker: deck order has %d cards, want 52", len(order))
	}
	if dealt < 0 || dealt > 52 {
		return nil, fmt.Errorf("poker: invalid dealt count %d", dealt)
	}
	var seen uint64
	d := &Deck{next: dealt}
	for i, c := range order {
		if !c.Valid() {
			return nil, fmt.Errorf("poker: invalid card %v at position %d", c, i)
		}
		bit := uint64(1) << c.Encode()
		if seen&bit != 0 {
			return nil, fmt.Errorf("poker: duplicate card %v in deck order", c)
		}
		seen |= bit
		d.cards[i] = c
	}
	return d, nil
}

// Order returns a copy of the full shuffle order for persistence/audit.
func (d *Deck) Order() []Card {
	out := make([]Card, 52)
	copy(out[:], d.cards[:])
	return out
}

// Dealt returns how many cards have been consumed, burns included.
func (d *Deck) Dealt() int { return d.next }

// Remaining returns the number of undealt cards.
func (d *Deck) Remaining() int { return len(d.cards) - d.next }

func (d *Deck) draw() (Card, error) {
	if d.next >= len(d.cards) {
		return Card{}, ErrDeckExhausted
	}
	c := d.cards[d.next]
	d.next++
	return c, nil
}

func (d *Deck) burn() error {
	_, err := d.draw()
	return err
}

// DealHole deals the two hole cards for one player.
func (d *Deck) DealHole() ([2]Card, error) {
	var hole [2]Card
	for i := range hole {
		c, err := d.draw()
		if err != nil {
			return hole, err
		}
		hole[i] = c
	}
	return hole, nil
}

// DealFlop burns one card and reveals three.
func (d *Deck) DealFlop() ([3]Card, error) {
	var flop [3]Card
	if err := d.burn(); err != nil {
		return flop, err
	}
	for i := range flop {
		c, err := d.draw()
		if err != nil {
			return flop, err
		}
		flop[i] = c
	}
	return flop, nil
}

// DealTurn burns one card and reveals one.
func (d *Deck) DealTurn() (Card, error) {
	if err := d.burn(); err != nil {
		return Card{}, err
	}
	return d.draw()
}

// DealRiver burns one card and reveals one.
func (d *Deck) DealRiver() (Card, error) {
	return d.DealTurn()
}

// cryptoIntN returns a uniform value in [0, n) from crypto/rand using
// rejection sampling, so the shuffle permutation stays unbiased.
func cryptoIntN(n int) int {
	max := uint64(n)
	limit := (^uint64(0) / max) * max
	var buf [8]byte
	for {
		if _, err := crand.Read(buf[:]); err != nil {
			// crypto/rand never fails on supported platforms; a failure
			// here means the OS entropy source is gone.
			panic(fmt.Sprintf("poker: crypto/rand failed: %v", err))
		}
		v := binary.LittleEndian.Uint64(buf[:])
		if v < limit {
			return int(v % max)
		}
	}
}

func splitmix(x uint64) uint64 {
	x ^= x >> 30
	x *= 0xbf58476d1ce4e5b9
	x ^= x >> 27
	x *= 0x94d049bb133111eb
	x ^= x >> 31
	return x
}
