package poker

import (
	"fmt"
	"strings"
)

// Suit is one of the four card suits.
type Suit uint8

const (
	Spades Suit = iota
	Hearts
	Diamonds
	Clubs
)

func (s Suit) String() string {
	switch s {
	case Spades:
		return "s"
	case Hearts:
		return "h"
	case Diamonds:
		return "d"
	case Clubs:
		return "c"
	}
	return "?"
}

// Rank is a card rank from Two (2) through Ace (14). Aces are high; the
// evaluator handles the wheel straight separately.
type Rank uint8

const (
	Two Rank = iota + 2
	Three
	Four
	Five
	Six
	Seven
	Eight
	Nine
	Ten
	Jack
	Queen
	King
	Ace
)

const rankSymbols = "23456789TJQKA"

func (r Rank) String() string {
	if r < Two || r > Ace {
		return "?"
	}
	return string(rankSymbols[r-Two])
}

// Card is an immutable (suit, rank) pair. The zero Card is invalid and is
// used to represent "no card".
type Card struct {
	Suit Suit
	Rank Rank
}

// NewCard creates a card, validating suit and rank.
func NewCard(suit Suit, rank Rank) (Card, error) {
	if suit > Clubs {
		return Card{}, fmt.Errorf("poker: invalid suit %d", suit)
	}
	if rank < Two || rank > Ace {
		return Card{}, fmt.Errorf("poker: invalid rank %d", rank)
	}
	return Card{Suit: suit, Rank: rank}, nil
}

// Valid reports whether the card holds a legal suit and rank.
func (c Card) Valid() bool {
	return c.Suit <= Clubs && c.Rank >= Two && c.Rank <= Ace
}

// Encode packs the card into 6 bits: 2 bits of suit above 4 bits of rank
// offset. Decode is the exact inverse.
func (c Card) Encode() uint8 {
	return uint8(c.Suit)<<4 | uint8(c.Rank-Two)
}

// Decode unpacks a card previously produced by Encode.
func Decode(encoded uint8) (Card, error) {
	suit := Suit(encoded>>4) & 0x3
	rank := Rank(encoded&0xF) + Two
	if encoded&0xC0 != 0 || rank > Ace {
		return Card{}, fmt.Errorf("poker: invalid card encoding %#x", encoded)
	}
	return Card{Suit: suit, Rank: rank}, nil
}

// String renders the card as rank then suit, e.g. "As" or "Td".
func (c Card) String() string {
	if !c.Valid() {
		return "??"
	}
	return c.Rank.String() + c.Suit.String()
}

// ParseCard parses the two-character form produced by String.
func ParseCard(s string) (Card, error) {
	if len(s) != 2 {
		return Card{}, fmt.Errorf("poker: invalid card %q", s)
	}
	ri := strings.IndexByte(rankSymbols, s[0])
	if ri < 0 {
		return Card{}, fmt.Errorf("poker: invalid rank in %q", s)
	}
	var suit Suit
	switch s[1] {
	case 's':
		suit = Spades
	case 'h':
		suit = Hearts
	case 'd':
		suit = Diamonds
	case 'c':
		suit = Clubs
	default:
		return Card{}, fmt.Errorf("poker: invalid suit in %q", s)
	}
	return Card{Suit: suit, Rank: Rank(ri) + Two}, nil
}

// MustParseCard is ParseCard for tests and fixtures; it panics on bad input.
func MustParseCard(s string) Card {
	c, err := ParseCard(s)
	if err != nil {
		panic(err)
	}
	return c
}

// ParseCards parses a space-separated list of cards.
func ParseCards(s string) ([]Card, error) {
	fields := strings.Fields(s)
	cards := make([]Card, 0, len(fields))
	for _, f := range fields {
		c, err := ParseCard(f)
		if err != nil {
			return nil, err
		}
		cards = append(cards, c)
	}
	return cards, nil
}
