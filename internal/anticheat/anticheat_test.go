package anticheat

import (
	"io"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newGuard(t *testing.T, banned []string, maxPerAddr int) (*Guard, *quartz.Mock) {
	t.Helper()
	mockClock := quartz.NewMock(t)
	return New(log.New(io.Discard), mockClock, banned, maxPerAddr), mockClock
}

func TestBannedAddressRejected(t *testing.T) {
	t.Parallel()
	g, _ := newGuard(t, []string{"10.0.0.1"}, 0)

	assert.ErrorIs(t, g.CheckJoin("p1", "10.0.0.1:51234"), ErrAddressBanned)
	assert.NoError(t, g.CheckJoin("p1", "10.0.0.2:51234"))
}

func TestBanUnban(t *testing.T) {
	t.Parallel()
	g, _ := newGuard(t, nil, 0)

	require.NoError(t, g.CheckJoin("p1", "172.16.0.9:1000"))
	g.Ban("172.16.0.9")
	assert.ErrorIs(t, g.CheckJoin("p1", "172.16.0.9:1001"), ErrAddressBanned)
	g.Unban("172.16.0.9")
	assert.NoError(t, g.CheckJoin("p1", "172.16.0.9:1002"))
}

func TestAccountCapPerAddress(t *testing.T) {
	t.Parallel()
	g, _ := newGuard(t, nil, 2)

	require.NoError(t, g.CheckJoin("p1", "10.1.1.1:1"))
	require.NoError(t, g.CheckJoin("p2", "10.1.1.1:2"))
	assert.ErrorIs(t, g.CheckJoin("p3", "10.1.1.1:3"), ErrTooManyAccounts)

	// Known accounts keep working, other addresses are unaffected.
	assert.NoError(t, g.CheckJoin("p1", "10.1.1.1:4"))
	assert.NoError(t, g.CheckJoin("p3", "10.2.2.2:1"))
}

func TestEmptyAddressAllowed(t *testing.T) {
	t.Parallel()
	g, _ := newGuard(t, []string{"10.0.0.1"}, 1)
	assert.NoError(t, g.CheckJoin("p1", ""))
}

func TestRapidActionsFlagPlayer(t *testing.T) {
	t.Parallel()
	g, mockClock := newGuard(t, nil, 0)

	for i := 0; i <= rapidActionLimit; i++ {
		g.ObserveAction("speedy", "call")
		mockClock.Advance(100 * time.Millisecond)
	}
	assert.True(t, g.Flagged("speedy"))
}

func TestHumanPaceNotFlagged(t *testing.T) {
	t.Parallel()
	g, mockClock := newGuard(t, nil, 0)

	for i := 0; i < 3*rapidActionLimit; i++ {
		g.ObserveAction("steady", "call")
		mockClock.Advance(2 * time.Second)
	}
	assert.False(t, g.Flagged("steady"))
}

func TestAllInStreakFlagsPlayer(t *testing.T) {
	t.Parallel()
	g, mockClock := newGuard(t, nil, 0)

	for i := 0; i < allInStreakLimit-1; i++ {
		g.ObserveAction("shover", "allin")
		mockClock.Advance(time.Minute)
	}
	assert.False(t, g.Flagged("shover"))

	// A normal action resets the streak.
	g.ObserveAction("shover", "call")
	mockClock.Advance(time.Minute)
	for i := 0; i < allInStreakLimit; i++ {
		g.ObserveAction("shover", "allin")
		mockClock.Advance(time.Minute)
	}
	assert.True(t, g.Flagged("shover"))
}
