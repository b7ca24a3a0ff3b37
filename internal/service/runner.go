package service

import (
	"context"
	"time"

	"github.com/cardroom/holdemd/internal/engine"
)

// schedulerTick is how often a runner checks its street and next-hand
// deadlines. Player shot clocks fire through the action timer instead and
// do not wait for a tick.
const schedulerTick = 250 * time.Millisecond

// tableRunner serializes all access to one table. Operations arrive on the
// ops channel and run one at a time; the ticker drives the delayed street
// reveals and the pause between hands.
type tableRunner struct {
	svc   *Service
	table *engine.Table
	timer *engine.ActionTimer
	ops   chan func()
	done  chan struct{}

	streetDueAt time.Time
	handResetAt time.Time
	lastDue     engine.Due
	faulted     bool
}

func newTableRunner(svc *Service, table *engine.Table) *tableRunner {
	return &tableRunner{
		svc:   svc,
		table: table,
		timer: engine.NewActionTimer(svc.clock),
		ops:   make(chan func(), 64),
		done:  make(chan struct{}),
	}
}

func (r *tableRunner) run(ctx context.Context) {
	defer close(r.done)
	defer r.timer.Cancel()

	ticker := r.svc.clock.NewTicker(schedulerTick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case op := <-r.ops:
			op()
			r.afterMutation()
		case <-ticker.C:
			r.onTick()
		}
	}
}

// do runs fn on the runner goroutine and returns its error.
func (r *tableRunner) do(ctx context.Context, fn func() error) error {
	reply := make(chan error, 1)
	select {
	case r.ops <- func() { reply <- fn() }:
	case <-r.done:
		return ErrTableClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-reply:
		return err
	case <-r.done:
		return ErrTableClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// afterMutation reconciles the runner's clocks with what the table says it
// is waiting on, and pushes a change notification.
func (r *tableRunner) afterMutation() {
	if r.faulted {
		return
	}
	cfg := r.table.Config()

	// A waiting table with enough players deals straight away.
	if r.table.State() == engine.StateWaiting && r.table.CanStartHand() {
		if err := r.table.StartHand(r.svc.clock.Now()); err != nil {
			r.svc.logger.Error("hand start failed", "table", r.table.Name, "error", err)
		}
	}

	due := r.table.Due()
	if due != r.lastDue {
		switch due.Kind {
		case engine.DueAction:
			seat := due.Seat
			r.timer.Arm(cfg.ActionTimeout, func() {
				// Runs on the clock goroutine; hand the fold back to the
				// runner so the single-writer rule holds.
				select {
				case r.ops <- func() { r.table.ForceTimeout(seat) }:
				case <-r.done:
				}
			})
		case engine.DueStreet:
			r.timer.Cancel()
			r.streetDueAt = r.svc.clock.Now().Add(cfg.StreetDelay)
		case engine.DueHandEnd:
			r.timer.Cancel()
			r.handResetAt = r.svc.clock.Now().Add(cfg.NextHandDelay)
		default:
			r.timer.Cancel()
		}
		r.lastDue = due
	}

	if rec := r.table.TakeSettlement(); rec != nil {
		go r.svc.record(rec)
	}
	r.svc.notify(r.table.ID)
}

func (r *tableRunner) onTick() {
	if r.faulted {
		return
	}
	now := r.svc.clock.Now()
	due := r.table.Due()

	switch due.Kind {
	case engine.DueStreet:
		if !now.Before(r.streetDueAt) {
			if err := r.table.AdvanceStreet(now); err != nil {
				// A dealing failure mid-hand cannot be repaired; freeze
				// the table rather than settle a corrupt pot.
				r.svc.logger.Error("table faulted", "table", r.table.Name, "error", err)
				r.faulted = true
				return
			}
			r.afterMutation()
		}
	case engine.DueHandEnd:
		if !now.Before(r.handResetAt) {
			r.table.FinishHand()
			r.afterMutation()
		}
	}
}
