package service

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardroom/holdemd/internal/engine"
)

type fakeRecorder struct {
	mu   sync.Mutex
	recs []*engine.SettlementRecord
}

func (f *fakeRecorder) RecordSettlement(_ context.Context, rec *engine.SettlementRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recs = append(f.recs, rec)
	return nil
}

func (f *fakeRecorder) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.recs)
}

type fakeGuard struct {
	blocked string
}

var errBlocked = errors.New("address blocked")

func (g *fakeGuard) CheckJoin(_, remoteAddr string) error {
	if remoteAddr == g.blocked {
		return errBlocked
	}
	return nil
}

func (g *fakeGuard) ObserveAction(string, string) {}

func serviceConfig() engine.Config {
	return engine.Config{
		MaxPlayers:       6,
		SmallBlind:       5,
		BigBlind:         10,
		MinBuyIn:         200,
		MaxBuyIn:         2000,
		ActionTimeout:    30 * time.Second,
		TimeBankDuration: 20 * time.Second,
		TimeBanksPerHand: 3,
		StreetDelay:      500 * time.Millisecond,
		NextHandDelay:    2 * time.Second,
	}
}

func newTestService(t *testing.T) (*Service, *quartz.Mock, *fakeRecorder) {
	t.Helper()
	mockClock := quartz.NewMock(t)
	rec := &fakeRecorder{}
	svc := NewService(log.New(io.Discard), mockClock, rec, nil, nil)
	t.Cleanup(svc.Close)
	return svc, mockClock, rec
}

// advanceTicks marches the mock clock forward in scheduler-tick steps so
// the runner observes every deadline it is waiting on.
func advanceTicks(ctx context.Context, mockClock *quartz.Mock, total time.Duration) {
	for elapsed := time.Duration(0); elapsed < total; elapsed += schedulerTick {
		mockClock.Advance(schedulerTick).MustWait(ctx)
	}
}

func waitForState(t *testing.T, svc *Service, tableID, state string) engine.TableView {
	t.Helper()
	var view engine.TableView
	require.Eventually(t, func() bool {
		var err error
		view, err = svc.View(context.Background(), tableID, "")
		return err == nil && view.State == state
	}, 2*time.Second, 5*time.Millisecond, "table never reached %s", state)
	return view
}

func TestUnknownTable(t *testing.T) {
	t.Parallel()
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	err := svc.JoinTable(ctx, "nope", "p1", "alice", "1.2.3.4", 500)
	assert.ErrorIs(t, err, ErrUnknownTable)
	_, err = svc.View(ctx, "nope", "p1")
	assert.ErrorIs(t, err, ErrUnknownTable)
}

func TestGuardBlocksJoin(t *testing.T) {
	t.Parallel()
	mockClock := quartz.NewMock(t)
	svc := NewService(log.New(io.Discard), mockClock, &fakeRecorder{}, nil, &fakeGuard{blocked: "10.0.0.1"})
	t.Cleanup(svc.Close)

	tableID, err := svc.CreateTable("main", serviceConfig())
	require.NoError(t, err)

	ctx := context.Background()
	err = svc.JoinTable(ctx, tableID, "p1", "alice", "10.0.0.1", 500)
	assert.ErrorIs(t, err, errBlocked)
	require.NoError(t, svc.JoinTable(ctx, tableID, "p1", "alice", "10.0.0.2", 500))
}

func TestHandStartsWhenTwoSeated(t *testing.T) {
	t.Parallel()
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	tableID, err := svc.CreateTable("main", serviceConfig())
	require.NoError(t, err)
	require.NoError(t, svc.JoinTable(ctx, tableID, "p1", "alice", "", 1000))

	view, err := svc.View(ctx, tableID, "p1")
	require.NoError(t, err)
	assert.Equal(t, "waiting", view.State)

	require.NoError(t, svc.JoinTable(ctx, tableID, "p2", "bob", "", 1000))
	view = waitForState(t, svc, tableID, "preflop")
	assert.NotEmpty(t, view.HandID)
	assert.Equal(t, int64(15), view.TotalPot)
	assert.False(t, view.Deadline.IsZero())
}

func TestHandPlaysThroughAndRestarts(t *testing.T) {
	t.Parallel()
	svc, mockClock, rec := newTestService(t)
	ctx := context.Background()

	tableID, err := svc.CreateTable("main", serviceConfig())
	require.NoError(t, err)
	require.NoError(t, svc.JoinTable(ctx, tableID, "p1", "alice", "", 1000))
	require.NoError(t, svc.JoinTable(ctx, tableID, "p2", "bob", "", 1000))

	view := waitForState(t, svc, tableID, "preflop")
	firstHand := view.HandID

	// Button completes the small blind, big blind checks.
	require.NoError(t, svc.SubmitAction(ctx, tableID, "p1", engine.ActionCall, 0))
	require.NoError(t, svc.SubmitAction(ctx, tableID, "p2", engine.ActionCheck, 0))

	// Check every street down to showdown, advancing through the reveal
	// delays.
	for _, street := range []string{"flop", "turn", "river"} {
		advanceTicks(ctx, mockClock, serviceConfig().StreetDelay)
		view = waitForState(t, svc, tableID, street)
		require.NoError(t, svc.SubmitAction(ctx, tableID, "p2", engine.ActionCheck, 0))
		require.NoError(t, svc.SubmitAction(ctx, tableID, "p1", engine.ActionCheck, 0))
	}
	advanceTicks(ctx, mockClock, serviceConfig().StreetDelay)
	view = waitForState(t, svc, tableID, "showdown")
	assert.Len(t, view.Board, 5)
	assert.NotEmpty(t, view.Payouts)

	require.Eventually(t, func() bool { return rec.count() == 1 }, 2*time.Second, 5*time.Millisecond)

	// After the inter-hand pause a fresh hand deals itself.
	advanceTicks(ctx, mockClock, serviceConfig().NextHandDelay)
	view = waitForState(t, svc, tableID, "preflop")
	assert.NotEqual(t, firstHand, view.HandID)
}

func TestAllInRunoutPacesReveals(t *testing.T) {
	t.Parallel()
	svc, mockClock, _ := newTestService(t)
	ctx := context.Background()

	tableID, err := svc.CreateTable("main", serviceConfig())
	require.NoError(t, err)
	require.NoError(t, svc.JoinTable(ctx, tableID, "p1", "alice", "", 500))
	require.NoError(t, svc.JoinTable(ctx, tableID, "p2", "bob", "", 1000))
	waitForState(t, svc, tableID, "preflop")

	// Button shoves, big blind calls. No action remains, so the runner owns
	// the rest of the hand and must reveal each street a full StreetDelay
	// after the previous one, not on every scheduler tick.
	require.NoError(t, svc.SubmitAction(ctx, tableID, "p1", engine.ActionAllIn, 0))
	require.NoError(t, svc.SubmitAction(ctx, tableID, "p2", engine.ActionCall, 0))

	boardAt := func(state string) int {
		view, err := svc.View(ctx, tableID, "")
		require.NoError(t, err)
		require.Equal(t, state, view.State)
		return len(view.Board)
	}

	advanceTicks(ctx, mockClock, serviceConfig().StreetDelay)
	require.Equal(t, 3, boardAt("flop"))

	// Half a delay later the turn must not have leaked out early.
	advanceTicks(ctx, mockClock, schedulerTick)
	require.Equal(t, 3, boardAt("flop"))

	advanceTicks(ctx, mockClock, schedulerTick)
	require.Equal(t, 4, boardAt("turn"))

	advanceTicks(ctx, mockClock, serviceConfig().StreetDelay)
	require.Equal(t, 5, boardAt("river"))

	advanceTicks(ctx, mockClock, serviceConfig().StreetDelay)
	view := waitForState(t, svc, tableID, "showdown")
	assert.Len(t, view.Board, 5)
	assert.NotEmpty(t, view.Payouts)
}

func TestActionTimeoutFoldsPlayer(t *testing.T) {
	t.Parallel()
	mockClock := quartz.NewMock(t)
	rec := &fakeRecorder{}
	svc := NewService(log.New(io.Discard), mockClock, rec, nil, nil)
	t.Cleanup(svc.Close)
	ctx := context.Background()

	cfg := serviceConfig()
	cfg.ActionTimeout = 1 * time.Second
	tableID, err := svc.CreateTable("main", cfg)
	require.NoError(t, err)
	require.NoError(t, svc.JoinTable(ctx, tableID, "p1", "alice", "", 1000))
	require.NoError(t, svc.JoinTable(ctx, tableID, "p2", "bob", "", 1000))
	waitForState(t, svc, tableID, "preflop")

	// The button never acts: the shot clock folds them and the big blind
	// wins the blinds uncontested.
	advanceTicks(ctx, mockClock, cfg.ActionTimeout)
	view := waitForState(t, svc, tableID, "showdown")
	require.Len(t, view.Payouts, 1)
	assert.Equal(t, "p2", view.Payouts[0].PlayerID)
	assert.Equal(t, int64(15), view.Payouts[0].Amount)
}

func TestTimeBankExtendsClock(t *testing.T) {
	t.Parallel()
	mockClock := quartz.NewMock(t)
	svc := NewService(log.New(io.Discard), mockClock, &fakeRecorder{}, nil, nil)
	t.Cleanup(svc.Close)
	ctx := context.Background()

	cfg := serviceConfig()
	cfg.ActionTimeout = 1 * time.Second
	cfg.TimeBankDuration = 2 * time.Second
	tableID, err := svc.CreateTable("main", cfg)
	require.NoError(t, err)
	require.NoError(t, svc.JoinTable(ctx, tableID, "p1", "alice", "", 1000))
	require.NoError(t, svc.JoinTable(ctx, tableID, "p2", "bob", "", 1000))
	view := waitForState(t, svc, tableID, "preflop")

	acting := view.Seats[view.ToActSeat].PlayerID
	require.NoError(t, svc.UseTimeBank(ctx, tableID, acting))

	// Past the base timeout but inside the extension: still their turn.
	advanceTicks(ctx, mockClock, 1500*time.Millisecond)
	view, err = svc.View(ctx, tableID, "")
	require.NoError(t, err)
	assert.Equal(t, "preflop", view.State)

	advanceTicks(ctx, mockClock, 2*time.Second)
	waitForState(t, svc, tableID, "showdown")
}

func TestLeaveDuringHandSettles(t *testing.T) {
	t.Parallel()
	svc, _, rec := newTestService(t)
	ctx := context.Background()

	tableID, err := svc.CreateTable("main", serviceConfig())
	require.NoError(t, err)
	require.NoError(t, svc.JoinTable(ctx, tableID, "p1", "alice", "", 1000))
	require.NoError(t, svc.JoinTable(ctx, tableID, "p2", "bob", "", 1000))
	waitForState(t, svc, tableID, "preflop")

	require.NoError(t, svc.Leave(ctx, tableID, "p1"))
	view := waitForState(t, svc, tableID, "showdown")
	require.Len(t, view.Payouts, 1)
	assert.Equal(t, "p2", view.Payouts[0].PlayerID)
	require.Eventually(t, func() bool { return rec.count() == 1 }, 2*time.Second, 5*time.Millisecond)
}

func TestCloseRejectsFurtherWork(t *testing.T) {
	t.Parallel()
	mockClock := quartz.NewMock(t)
	svc := NewService(log.New(io.Discard), mockClock, &fakeRecorder{}, nil, nil)

	tableID, err := svc.CreateTable("main", serviceConfig())
	require.NoError(t, err)
	svc.Close()

	err = svc.JoinTable(context.Background(), tableID, "p1", "alice", "", 500)
	assert.ErrorIs(t, err, ErrTableClosed)
	_, err = svc.CreateTable("other", serviceConfig())
	assert.ErrorIs(t, err, ErrTableClosed)
}
