package poker

import (
	"fmt"
	"sort"
)

// HandCategory enumerates the nine hand categories from weakest to strongest.
type HandCategory uint8

const (
	HighCard HandCategory = iota
	Pair
	TwoPair
	ThreeOfAKind
	Straight
	Flush
	FullHouse
	FourOfAKind
	StraightFlush
)

func (c HandCategory) String() string {
	switch c {
	case HighCard:
		return "High Card"
	case Pair:
		return "Pair"
	case TwoPair:
		return "Two Pair"
	case ThreeOfAKind:
		return "Three of a Kind"
	case Straight:
		return "Straight"
	case Flush:
		return "Flush"
	case FullHouse:
		return "Full House"
	case FourOfAKind:
		return "Four of a Kind"
	case StraightFlush:
		return "Straight Flush"
	}
	return "Unknown"
}

// HandRank is a totally ordered hand strength. Higher values are stronger,
// uniformly across all categories. Two equal HandRanks are an exact tie and
// split the pot. Comparison is plain integer comparison; the cards are never
// re-evaluated.
//
// Layout: bits 20-23 hold the category, below that five 4-bit tie-break
// ranks ordered most significant first (group ranks by multiplicity
// descending then rank descending, kickers descending).
type HandRank uint32

// Category extracts the hand category from a rank.
func (r HandRank) Category() HandCategory {
	return HandCategory(r >> 20)
}

func (r HandRank) String() string {
	return r.Category().String()
}

func makeRank(cat HandCategory, tiebreaks ...Rank) HandRank {
	r := HandRank(cat) << 20
	shift := 16
	for _, t := range tiebreaks {
		r |= HandRank(t) << shift
		shift -= 4
	}
	return r
}

// EvaluateSeven returns the rank of the best 5-card hand contained in
// exactly seven distinct cards. Inputs of the wrong length, with invalid
// cards, or with duplicates are rejected; they indicate a dealing bug and
// must never be coerced.
func EvaluateSeven(cards []Card) (HandRank, error) {
	if len(cards) != 7 {
		return 0, fmt.Errorf("poker: evaluate requires 7 cards, got %d", len(cards))
	}
	var seen uint64
	for _, c := range cards {
		if !c.Valid() {
			return 0, fmt.Errorf("poker: invalid card %v in hand", c)
		}
		bit := uint64(1) << c.Encode()
		if seen&bit != 0 {
			return 0, fmt.Errorf("poker: duplicate card %v in hand", c)
		}
		seen |= bit
	}

	// All C(7,5)=21 subsets. Short-circuiting on category alone is wrong:
	// kickers can differ between subsets of the same category.
	var best HandRank
	var five [5]Card
	for drop1 := 0; drop1 < 6; drop1++ {
		for drop2 := drop1 + 1; drop2 < 7; drop2++ {
			k := 0
			for i, c := range cards {
				if i == drop1 || i == drop2 {
					continue
				}
				five[k] = c
				k++
			}
			if r := evaluateFive(five); r > best {
				best = r
			}
		}
	}
	return best, nil
}

// evaluateFive classifies exactly five distinct valid cards.
func evaluateFive(cards [5]Card) HandRank {
	var rankCounts [15]uint8
	suited := true
	for i, c := range cards {
		rankCounts[c.Rank]++
		if i > 0 && c.Suit != cards[0].Suit {
			suited = false
		}
	}

	straightHigh := straightHighRank(rankCounts)

	if straightHigh != 0 && suited {
		return makeRank(StraightFlush, straightHigh)
	}

	// Group the ranks by multiplicity descending, then rank descending.
	// The resulting tuple is the category tie-break in order.
	type group struct {
		rank  Rank
		count uint8
	}
	groups := make([]group, 0, 5)
	for r := Ace; r >= Two; r-- {
		if n := rankCounts[r]; n > 0 {
			groups = append(groups, group{rank: r, count: n})
		}
	}
	sort.SliceStable(groups, func(i, j int) bool {
		return groups[i].count > groups[j].count
	})

	switch {
	case groups[0].count == 4:
		return makeRank(FourOfAKind, groups[0].rank, groups[1].rank)
	case groups[0].count == 3 && groups[1].count == 2:
		return makeRank(FullHouse, groups[0].rank, groups[1].rank)
	case suited:
		return makeRank(Flush, groups[0].rank, groups[1].rank, groups[2].rank, groups[3].rank, groups[4].rank)
	case straightHigh != 0:
		return makeRank(Straight, straightHigh)
	case groups[0].count == 3:
		return makeRank(ThreeOfAKind, groups[0].rank, groups[1].rank, groups[2].rank)
	case groups[0].count == 2 && groups[1].count == 2:
		return makeRank(TwoPair, groups[0].rank, groups[1].rank, groups[2].rank)
	case groups[0].count == 2:
		return makeRank(Pair, groups[0].rank, groups[1].rank, groups[2].rank, groups[3].rank)
	default:
		return makeRank(HighCard, groups[0].rank, groups[1].rank, groups[2].rank, groups[3].rank, groups[4].rank)
	}
}

// straightHighRank returns the high card of a five-card straight, or 0.
// The wheel A-2-3-4-5 is a straight headed at Five, not at Ace.
func straightHighRank(rankCounts [15]uint8) Rank {
	run := 0
	for r := Two; r <= Ace; r++ {
		if rankCounts[r] == 0 {
			run = 0
			continue
		}
		run++
		if run == 5 {
			return r
		}
	}
	if rankCounts[Ace] > 0 && rankCounts[Two] > 0 && rankCounts[Three] > 0 &&
		rankCounts[Four] > 0 && rankCounts[Five] > 0 {
		return Five
	}
	return 0
}
