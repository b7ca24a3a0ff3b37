package engine

import (
	"sort"

	"github.com/thoas/go-funk"

	"github.com/cardroom/holdemd/poker"
)

// PotSlice is one layer of the pot. Seq 0 is the main pot; higher sequences
// are side pots with progressively narrower eligibility.
type PotSlice struct {
	Seq      int
	Amount   int64
	Eligible []string // player IDs still able to win this slice
}

// Distribution is one player's share of the settled pot.
type Distribution struct {
	PlayerID string
	Seat     int
	Amount   int64
	Reason   string
}

// RakeConfig controls the house cut. Rake applies to the main slice only
// and is capped per hand.
type RakeConfig struct {
	Percent float64
	Cap     int64
}

type contribution struct {
	playerID string
	total    int64
	folded   bool
}

// BuildPots derives the layered pots from each player's cumulative hand
// contribution. Distinct contribution levels ascending; each layer's amount
// is (level - previous) x contributors-at-level; eligibility is everyone who
// contributed at least the level and has not folded or left. An empty
// contributor set yields no slices.
func BuildPots(players []*Player) []PotSlice {
	var contribs []contribution
	for _, p := range players {
		if p == nil || p.TotalBet <= 0 {
			continue
		}
		folded := p.Status == StatusFolded || p.Status == StatusLeft
		contribs = append(contribs, contribution{playerID: p.ID, total: p.TotalBet, folded: folded})
	}
	if len(contribs) == 0 {
		return nil
	}

	levels := make([]int64, 0, len(contribs))
	for _, c := range contribs {
		if !funk.ContainsInt64(levels, c.total) {
			levels = append(levels, c.total)
		}
	}
	sort.Slice(levels, func(i, j int) bool { return levels[i] < levels[j] })

	var slices []PotSlice
	var previous int64
	for _, level := range levels {
		increment := level - previous
		previous = level
		if increment <= 0 {
			continue
		}

		var amount int64
		var eligible []string
		for _, c := range contribs {
			if c.total < level {
				continue
			}
			amount += increment
			if !c.folded {
				eligible = append(eligible, c.playerID)
			}
		}
		if amount <= 0 {
			continue
		}
		slices = append(slices, PotSlice{Seq: len(slices), Amount: amount, Eligible: eligible})
	}
	return slices
}

// PotTotal sums all slice amounts.
func PotTotal(slices []PotSlice) int64 {
	var total int64
	for _, s := range slices {
		total += s.Amount
	}
	return total
}

// DistributePots settles every slice independently against the contenders'
// hand ranks and returns the resulting payouts plus the rake taken. Ties
// inside one slice split as evenly as integer division allows; remainder
// chips go one at a time to winners in ascending seat order. Rake comes off
// the main slice before distribution and only when the hand was contested.
func DistributePots(slices []PotSlice, ranks map[string]poker.HandRank, seatOf map[string]int, rake RakeConfig, contested bool) ([]Distribution, int64) {
	var out []Distribution
	var rakeTaken int64

	for _, slice := range slices {
		amount := slice.Amount
		if slice.Seq == 0 && contested && rake.Percent > 0 {
			r := int64(float64(amount) * rake.Percent)
			if rake.Cap > 0 && r > rake.Cap {
				r = rake.Cap
			}
			if r > amount {
				r = amount
			}
			rakeTaken = r
			amount -= r
		}
		if amount <= 0 {
			continue
		}

		best := poker.HandRank(0)
		var winners []string
		for _, id := range slice.Eligible {
			rank, ok := ranks[id]
			if !ok {
				continue
			}
			switch {
			case len(winners) == 0 || rank > best:
				best = rank
				winners = []string{id}
			case rank == best:
				winners = append(winners, id)
			}
		}
		if len(winners) == 0 {
			continue
		}

		sort.Slice(winners, func(i, j int) bool {
			return seatOf[winners[i]] < seatOf[winners[j]]
		})

		share := amount / int64(len(winners))
		remainder := amount % int64(len(winners))
		for i, id := range winners {
			won := share
			if int64(i) < remainder {
				won++
			}
			if won <= 0 {
				continue
			}
			reason := "side pot"
			if slice.Seq == 0 {
				reason = "main pot"
			}
			if len(winners) > 1 {
				reason += " (split)"
			}
			out = append(out, Distribution{PlayerID: id, Seat: seatOf[id], Amount: won, Reason: reason})
		}
	}
	return out, rakeTaken
}
