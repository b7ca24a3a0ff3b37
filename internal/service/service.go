// Package service hosts the table runners. All game state mutations for a
// table happen on its single runner goroutine; the outside world talks to
// a table by enqueueing operations and waiting for the reply.
package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"

	"github.com/cardroom/holdemd/internal/engine"
)

var (
	ErrUnknownTable = errors.New("service: unknown table")
	ErrTableClosed  = errors.New("service: table closed")
)

// Recorder persists completed-hand settlements.
type Recorder interface {
	RecordSettlement(ctx context.Context, rec *engine.SettlementRecord) error
}

// Notifier learns when a table's visible state changed so it can push
// fresh views to subscribers.
type Notifier interface {
	TableChanged(tableID string)
}

// Guard screens players before they are seated and watches the accepted
// action stream.
type Guard interface {
	CheckJoin(playerID, remoteAddr string) error
	ObserveAction(playerID, kind string)
}

// nopNotifier and nopGuard keep the collaborators optional.
type nopNotifier struct{}

func (nopNotifier) TableChanged(string) {}

type nopGuard struct{}

func (nopGuard) CheckJoin(string, string) error { return nil }
func (nopGuard) ObserveAction(string, string)   {}

// Service owns every table in the process.
type Service struct {
	logger   *log.Logger
	clock    quartz.Clock
	recorder Recorder
	notifier Notifier
	guard    Guard

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.RWMutex
	tables  map[string]*tableRunner
	closing bool
	wg      sync.WaitGroup
}

// NewService creates the table host. recorder is required; notifier and
// guard may be nil.
func NewService(logger *log.Logger, clock quartz.Clock, recorder Recorder, notifier Notifier, guard Guard) *Service {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	if guard == nil {
		guard = nopGuard{}
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		logger:   logger.WithPrefix("service"),
		clock:    clock,
		recorder: recorder,
		notifier: notifier,
		guard:    guard,
		ctx:      ctx,
		cancel:   cancel,
		tables:   make(map[string]*tableRunner),
	}
}

// SetNotifier installs the change listener. Install it before creating
// tables so no update is missed.
func (s *Service) SetNotifier(n Notifier) {
	if n == nil {
		n = nopNotifier{}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifier = n
}

func (s *Service) notify(tableID string) {
	s.mu.RLock()
	n := s.notifier
	s.mu.RUnlock()
	n.TableChanged(tableID)
}

// CreateTable builds a table from cfg and starts its runner. It returns
// the new table's ID.
func (s *Service) CreateTable(name string, cfg engine.Config) (string, error) {
	table, err := engine.NewTable(name, cfg, s.logger, engine.WithClock(s.clock))
	if err != nil {
		return "", err
	}
	r := newTableRunner(s, table)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closing {
		return "", ErrTableClosed
	}
	s.tables[table.ID] = r
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		r.run(s.ctx)
	}()
	s.logger.Info("table created", "table", name, "id", table.ID)
	return table.ID, nil
}

// Tables returns the IDs of every live table.
func (s *Service) Tables() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.tables))
	for id := range s.tables {
		out = append(out, id)
	}
	return out
}

func (s *Service) runner(tableID string) (*tableRunner, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.tables[tableID]
	if !ok {
		return nil, ErrUnknownTable
	}
	return r, nil
}

// JoinTable seats a player, screening them through the guard first.
func (s *Service) JoinTable(ctx context.Context, tableID, playerID, name, remoteAddr string, buyIn int64) error {
	if err := s.guard.CheckJoin(playerID, remoteAddr); err != nil {
		return err
	}
	r, err := s.runner(tableID)
	if err != nil {
		return err
	}
	return r.do(ctx, func() error {
		_, err := r.table.Join(playerID, name, buyIn)
		return err
	})
}

// Leave removes a player from the table, folding them first if a hand is
// running.
func (s *Service) Leave(ctx context.Context, tableID, playerID string) error {
	r, err := s.runner(tableID)
	if err != nil {
		return err
	}
	return r.do(ctx, func() error {
		return r.table.Leave(playerID)
	})
}

// SubmitAction plays one action for the player.
func (s *Service) SubmitAction(ctx context.Context, tableID, playerID string, kind engine.ActionKind, amount int64) error {
	r, err := s.runner(tableID)
	if err != nil {
		return err
	}
	return r.do(ctx, func() error {
		if err := r.table.Apply(playerID, kind, amount); err != nil {
			return err
		}
		s.guard.ObserveAction(playerID, kind.String())
		return nil
	})
}

// Rebuy tops up a player's stack between hands.
func (s *Service) Rebuy(ctx context.Context, tableID, playerID string, amount int64) error {
	r, err := s.runner(tableID)
	if err != nil {
		return err
	}
	return r.do(ctx, func() error {
		return r.table.Rebuy(playerID, amount)
	})
}

// UseTimeBank extends the acting player's shot clock by the configured
// time-bank duration.
func (s *Service) UseTimeBank(ctx context.Context, tableID, playerID string) error {
	r, err := s.runner(tableID)
	if err != nil {
		return err
	}
	return r.do(ctx, func() error {
		if err := r.table.UseTimeBank(playerID); err != nil {
			return err
		}
		r.timer.Extend(r.table.Config().TimeBankDuration)
		return nil
	})
}

// SetConnected flips a player's connected flag.
func (s *Service) SetConnected(ctx context.Context, tableID, playerID string, connected bool) error {
	r, err := s.runner(tableID)
	if err != nil {
		return err
	}
	return r.do(ctx, func() error {
		r.table.SetConnected(playerID, connected)
		return nil
	})
}

// View returns the table as seen by viewerID.
func (s *Service) View(ctx context.Context, tableID, viewerID string) (engine.TableView, error) {
	r, err := s.runner(tableID)
	if err != nil {
		return engine.TableView{}, err
	}
	var view engine.TableView
	err = r.do(ctx, func() error {
		view = r.table.View(viewerID, r.timer.Deadline())
		return nil
	})
	return view, err
}

// Close stops every runner and waits for them to drain.
func (s *Service) Close() {
	s.mu.Lock()
	s.closing = true
	s.mu.Unlock()
	s.cancel()
	s.wg.Wait()
}

func (s *Service) record(rec *engine.SettlementRecord) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.recorder.RecordSettlement(ctx, rec); err != nil {
		s.logger.Error("settlement record failed", "hand", rec.HandID, "error", err)
	}
}
