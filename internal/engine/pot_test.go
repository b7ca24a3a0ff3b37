package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardroom/holdemd/poker"
)

func contributor(id string, seat int, total int64, status PlayerStatus) *Player {
	return &Player{ID: id, Seat: seat, TotalBet: total, Status: status}
}

func TestBuildPotsSingleLevel(t *testing.T) {
	t.Parallel()

	players := []*Player{
		contributor("a", 0, 100, StatusActive),
		contributor("b", 1, 100, StatusActive),
		contributor("c", 2, 100, StatusFolded),
	}
	pots := BuildPots(players)
	require.Len(t, pots, 1)
	assert.Equal(t, int64(300), pots[0].Amount)
	assert.ElementsMatch(t, []string{"a", "b"}, pots[0].Eligible)
}

func TestBuildPotsSidePots(t *testing.T) {
	t.Parallel()

	// Short stack all-in for 50, two others continue to 200.
	players := []*Player{
		contributor("short", 0, 50, StatusAllIn),
		contributor("mid", 1, 200, StatusActive),
		contributor("big", 2, 200, StatusActive),
	}
	pots := BuildPots(players)
	require.Len(t, pots, 2)

	assert.Equal(t, int64(150), pots[0].Amount)
	assert.ElementsMatch(t, []string{"short", "mid", "big"}, pots[0].Eligible)

	assert.Equal(t, int64(300), pots[1].Amount)
	assert.ElementsMatch(t, []string{"mid", "big"}, pots[1].Eligible)
}

func TestBuildPotsFoldedChipsStayInPot(t *testing.T) {
	t.Parallel()

	players := []*Player{
		contributor("a", 0, 80, StatusActive),
		contributor("b", 1, 80, StatusActive),
		contributor("quitter", 2, 30, StatusFolded),
	}
	pots := BuildPots(players)

	// The folded 30 is still money: level 30 counts three contributors,
	// level 80 two.
	assert.Equal(t, int64(190), PotTotal(pots))
	for _, slice := range pots {
		assert.NotContains(t, slice.Eligible, "quitter")
	}
}

func TestBuildPotsEmpty(t *testing.T) {
	t.Parallel()

	assert.Empty(t, BuildPots(nil))
	assert.Empty(t, BuildPots([]*Player{contributor("a", 0, 0, StatusActive)}))
}

func TestDistributePotsWinnerTakesAll(t *testing.T) {
	t.Parallel()

	pots := []PotSlice{{Seq: 0, Amount: 300, Eligible: []string{"a", "b"}}}
	ranks := map[string]poker.HandRank{"a": 5000, "b": 4000}
	seats := map[string]int{"a": 0, "b": 1}

	dists, rake := DistributePots(pots, ranks, seats, RakeConfig{}, true)
	require.Len(t, dists, 1)
	assert.Equal(t, "a", dists[0].PlayerID)
	assert.Equal(t, int64(300), dists[0].Amount)
	assert.Zero(t, rake)
}

func TestDistributePotsSplitWithRemainder(t *testing.T) {
	t.Parallel()

	// 305 split two ways: the odd chip goes to the lower seat.
	pots := []PotSlice{{Seq: 0, Amount: 305, Eligible: []string{"a", "b"}}}
	ranks := map[string]poker.HandRank{"a": 7000, "b": 7000}
	seats := map[string]int{"a": 3, "b": 1}

	dists, _ := DistributePots(pots, ranks, seats, RakeConfig{}, true)
	require.Len(t, dists, 2)

	byID := map[string]int64{}
	for _, d := range dists {
		byID[d.PlayerID] = d.Amount
	}
	assert.Equal(t, int64(153), byID["b"]) // seat 1 takes the remainder
	assert.Equal(t, int64(152), byID["a"])
}

func TestDistributePotsSideAwardedSeparately(t *testing.T) {
	t.Parallel()

	pots := []PotSlice{
		{Seq: 0, Amount: 150, Eligible: []string{"short", "big"}},
		{Seq: 1, Amount: 300, Eligible: []string{"big", "mid"}},
	}
	// Short stack has the best hand but only wins the main pot.
	ranks := map[string]poker.HandRank{"short": 9000, "big": 2000, "mid": 3000}
	seats := map[string]int{"short": 0, "big": 1, "mid": 2}

	dists, _ := DistributePots(pots, ranks, seats, RakeConfig{}, true)
	byID := map[string]int64{}
	for _, d := range dists {
		byID[d.PlayerID] += d.Amount
	}
	assert.Equal(t, int64(150), byID["short"])
	assert.Equal(t, int64(300), byID["mid"])
	assert.Zero(t, byID["big"])
}

func TestDistributePotsRakeMainPotOnlyWithCap(t *testing.T) {
	t.Parallel()

	pots := []PotSlice{
		{Seq: 0, Amount: 1000, Eligible: []string{"a", "b"}},
		{Seq: 1, Amount: 400, Eligible: []string{"a"}},
	}
	ranks := map[string]poker.HandRank{"a": 8000, "b": 1000}
	seats := map[string]int{"a": 0, "b": 1}
	rakeCfg := RakeConfig{Percent: 0.05, Cap: 30}

	dists, rake := DistributePots(pots, ranks, seats, rakeCfg, true)
	assert.Equal(t, int64(30), rake) // 5% of 1000 capped at 30, side pot untouched

	var total int64
	for _, d := range dists {
		total += d.Amount
	}
	assert.Equal(t, int64(1370), total)
}

func TestDistributePotsNoRakeUncontested(t *testing.T) {
	t.Parallel()

	pots := []PotSlice{{Seq: 0, Amount: 500, Eligible: []string{"a"}}}
	ranks := map[string]poker.HandRank{"a": 100}
	seats := map[string]int{"a": 0}

	dists, rake := DistributePots(pots, ranks, seats, RakeConfig{Percent: 0.1, Cap: 100}, false)
	require.Len(t, dists, 1)
	assert.Equal(t, int64(500), dists[0].Amount)
	assert.Zero(t, rake)
}

func TestDistributePotsConservation(t *testing.T) {
	t.Parallel()

	pots := []PotSlice{
		{Seq: 0, Amount: 333, Eligible: []string{"a", "b", "c"}},
		{Seq: 1, Amount: 101, Eligible: []string{"b", "c"}},
	}
	ranks := map[string]poker.HandRank{"a": 5000, "b": 5000, "c": 5000}
	seats := map[string]int{"a": 0, "b": 1, "c": 2}
	rakeCfg := RakeConfig{Percent: 0.05, Cap: 50}

	dists, rake := DistributePots(pots, ranks, seats, rakeCfg, true)
	var paid int64
	for _, d := range dists {
		paid += d.Amount
	}
	assert.Equal(t, PotTotal(pots), paid+rake)
}
