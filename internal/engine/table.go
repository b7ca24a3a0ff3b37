package engine

import (
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/google/uuid"

	"github.com/cardroom/holdemd/internal/ledger"
	"github.com/cardroom/holdemd/poker"
)

// Config holds the per-table game parameters. Money amounts are in the
// smallest chip unit.
type Config struct {
	MaxPlayers int
	SmallBlind int64
	BigBlind   int64
	MinBuyIn   int64
	MaxBuyIn   int64
	Rake       RakeConfig

	ActionTimeout    time.Duration
	TimeBankDuration time.Duration
	TimeBanksPerHand int
	StreetDelay      time.Duration
	NextHandDelay    time.Duration
}

// Validate rejects configurations the engine cannot run with.
func (c Config) Validate() error {
	if c.MaxPlayers < 2 || c.MaxPlayers > 9 {
		return fmt.Errorf("engine: max players must be 2-9, got %d", c.MaxPlayers)
	}
	if c.SmallBlind <= 0 || c.BigBlind <= c.SmallBlind {
		return fmt.Errorf("engine: blinds must satisfy 0 < small < big")
	}
	if c.MinBuyIn <= 0 || c.MaxBuyIn < c.MinBuyIn {
		return fmt.Errorf("engine: buy-in bounds must satisfy 0 < min <= max")
	}
	if c.Rake.Percent < 0 || c.Rake.Percent >= 1 {
		return fmt.Errorf("engine: rake percent must be in [0, 1)")
	}
	return nil
}

// DueKind tells the scheduler what the table is waiting on after the last
// mutation.
type DueKind int

const (
	DueNone    DueKind = iota
	DueAction          // the seat in Due.Seat owes an action
	DueStreet          // a pending street transition should fire after StreetDelay
	DueHandEnd         // hand settled; reset after NextHandDelay
)

// Due describes the table's next scheduled obligation. Seq increases on
// every schedule, so two consecutive obligations of the same kind (an
// all-in runout pends one street after another) still compare unequal and
// the scheduler re-arms its deadline for each.
type Due struct {
	Kind DueKind
	Seat int
	Seq  uint64
}

// Table owns one game's seats and drives the hand state machine. It is not
// safe for concurrent use: the service serializes all mutations through a
// single per-table worker, which is the engine's single-writer guarantee.
type Table struct {
	ID   string
	Name string

	cfg     Config
	seats   []*Player
	players map[string]*Player

	state      TableState
	button     int
	sbSeat     int
	bbSeat     int
	hand       *Hand
	currentBet int64
	toAct      int

	pendingStreet  TableState
	hasPending     bool
	due            Due
	dueSeq         uint64
	lastSettlement *SettlementRecord

	clock   quartz.Clock
	newDeck func() *poker.Deck
	logger  *log.Logger
}

// Option customizes table construction.
type Option func(*Table)

// WithDeckFactory overrides the deck source, used by tests to force a
// deterministic shuffle.
func WithDeckFactory(f func() *poker.Deck) Option {
	return func(t *Table) { t.newDeck = f }
}

// WithClock overrides the table's time source.
func WithClock(clock quartz.Clock) Option {
	return func(t *Table) { t.clock = clock }
}

// NewTable creates an empty table in the waiting state.
func NewTable(name string, cfg Config, logger *log.Logger, opts ...Option) (*Table, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	t := &Table{
		ID:      uuid.NewString(),
		Name:    name,
		cfg:     cfg,
		seats:   make([]*Player, cfg.MaxPlayers),
		players: make(map[string]*Player),
		state:   StateWaiting,
		button:  -1,
		sbSeat:  -1,
		bbSeat:  -1,
		toAct:   -1,
		clock:   quartz.NewReal(),
		newDeck: poker.NewDeck,
		logger:  logger.WithPrefix("table").With("table", name),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// Config returns the table configuration.
func (t *Table) Config() Config { return t.cfg }

// State returns the current lifecycle phase.
func (t *Table) State() TableState { return t.state }

// Due returns what the table is waiting on.
func (t *Table) Due() Due { return t.due }

// ToAct returns the seat owed an action, or -1.
func (t *Table) ToAct() int { return t.toAct }

// TakeSettlement returns and clears the last completed hand's settlement
// record, if any. The service forwards it to the persistence collaborator.
func (t *Table) TakeSettlement() *SettlementRecord {
	rec := t.lastSettlement
	t.lastSettlement = nil
	return rec
}

// Player returns the seated player with the given ID.
func (t *Table) Player(playerID string) (*Player, bool) {
	p, ok := t.players[playerID]
	return p, ok
}

// Join seats a player with the given buy-in. Joining again while already
// seated returns the existing seat unchanged.
func (t *Table) Join(playerID, name string, buyIn int64) (*Player, error) {
	if existing, ok := t.players[playerID]; ok {
		return existing, nil
	}
	if buyIn < t.cfg.MinBuyIn || buyIn > t.cfg.MaxBuyIn {
		return nil, ErrBuyInOutOfRange
	}
	seat := -1
	for i, p := range t.seats {
		if p == nil {
			seat = i
			break
		}
	}
	if seat < 0 {
		return nil, ErrTableFull
	}
	stack, err := ledger.New(buyIn)
	if err != nil {
		return nil, err
	}
	p := &Player{
		ID:     playerID,
		Name:   name,
		Seat:   seat,
		Stack:  stack,
		Status: StatusSitting,
	}
	t.seats[seat] = p
	t.players[playerID] = p
	t.logger.Info("player joined", "player", name, "seat", seat, "buyIn", buyIn)
	return p, nil
}

// Leave marks a player as departed. Mid-hand this folds them first; the
// seat is freed at the next cleanup.
func (t *Table) Leave(playerID string) error {
	p, ok := t.players[playerID]
	if !ok {
		return ErrUnknownPlayer
	}
	if p.Status == StatusActive && t.state.BettingStreet() {
		t.forceFold(p)
	}
	p.Status = StatusLeft
	if !t.state.BettingStreet() && t.state != StateDealing {
		t.unseat(p)
	}
	t.logger.Info("player left", "player", p.Name)
	return nil
}

// SetConnected flips a seated player between connected and disconnected.
// Disconnected players are excluded from new hands; a disconnected player
// in a running hand is folded by the action timer as usual.
func (t *Table) SetConnected(playerID string, connected bool) {
	p, ok := t.players[playerID]
	if !ok {
		return
	}
	if connected && p.Status == StatusDisconnected {
		p.Status = StatusSitting
	} else if !connected && (p.Status == StatusSitting || (p.Status == StatusActive && !t.state.BettingStreet())) {
		p.Status = StatusDisconnected
	}
}

// Rebuy tops up a player's stack between hands, capped at the table's
// maximum buy-in.
func (t *Table) Rebuy(playerID string, amount int64) error {
	if t.state.BettingStreet() || t.state == StateDealing {
		return ErrHandInProgress
	}
	p, ok := t.players[playerID]
	if !ok {
		return ErrUnknownPlayer
	}
	if amount <= 0 {
		return ErrInvalidAmount
	}
	if p.Stack.Chips()+amount > t.cfg.MaxBuyIn {
		return ErrBuyInOutOfRange
	}
	return p.Stack.Add(amount)
}

// UseTimeBank consumes one of the acting player's time-bank extensions for
// this hand. The caller extends the shot clock on success.
func (t *Table) UseTimeBank(playerID string) error {
	p, ok := t.players[playerID]
	if !ok {
		return ErrUnknownPlayer
	}
	if !t.state.BettingStreet() || p.Seat != t.toAct {
		return ErrNotYourTurn
	}
	if p.TimeBanksUsed >= t.cfg.TimeBanksPerHand {
		return ErrNoTimeBank
	}
	p.TimeBanksUsed++
	return nil
}

// CanStartHand reports whether a new hand can be dealt.
func (t *Table) CanStartHand() bool {
	if t.state != StateWaiting {
		return false
	}
	return len(t.participants()) >= 2
}

// participants returns the seated players eligible for the next hand, in
// seat order.
func (t *Table) participants() []*Player {
	var out []*Player
	for _, p := range t.seats {
		if p == nil {
			continue
		}
		if p.Status == StatusLeft || p.Status == StatusDisconnected {
			continue
		}
		if p.Stack.Chips() > 0 {
			out = append(out, p)
		}
	}
	return out
}

// StartHand shuffles, assigns the button and blinds, deals hole cards and
// opens the preflop betting round.
func (t *Table) StartHand(now time.Time) error {
	if t.state != StateWaiting {
		return ErrHandInProgress
	}
	participants := t.participants()
	if len(participants) < 2 {
		return ErrNotEnoughPlayers
	}

	t.state = StateDealing
	for _, p := range participants {
		p.resetForHand()
		p.Status = StatusActive
	}

	t.assignButtonAndBlinds(participants)

	deck := t.newDeck()
	hand := &Hand{
		ID:        uuid.NewString(),
		TableID:   t.ID,
		StartedAt: now,
		Deck:      deck,
	}
	for _, p := range participants {
		hole, err := deck.DealHole()
		if err != nil {
			t.state = StateWaiting
			return err
		}
		p.HoleCards = hole
		p.HasCards = true
	}
	t.hand = hand

	t.state = StatePreflop
	t.currentBet = 0
	t.postBlinds()

	t.logger.Info("hand started", "hand", hand.ID, "players", len(participants),
		"button", t.button, "sb", t.sbSeat, "bb", t.bbSeat)

	if t.shouldSkipBetting() {
		t.schedulePending(nextStreet(t.state))
		return nil
	}
	t.toAct = t.firstToActPreflop()
	t.setDue(DueAction, t.toAct)
	return nil
}

// assignButtonAndBlinds rotates the button to the next occupied seat and
// derives the blind seats. Heads-up, the button posts the small blind.
func (t *Table) assignButtonAndBlinds(participants []*Player) {
	t.button = t.nextParticipantSeat(t.button, participants)
	if len(participants) == 2 {
		t.sbSeat = t.button
		t.bbSeat = t.nextParticipantSeat(t.button, participants)
	} else {
		t.sbSeat = t.nextParticipantSeat(t.button, participants)
		t.bbSeat = t.nextParticipantSeat(t.sbSeat, participants)
	}
}

func (t *Table) nextParticipantSeat(from int, participants []*Player) int {
	n := len(t.seats)
	for i := 1; i <= n; i++ {
		seat := ((from + i) % n + n) % n
		for _, p := range participants {
			if p.Seat == seat {
				return seat
			}
		}
	}
	return -1
}

// postBlinds takes the forced bets. A short stack posts what it can and is
// all-in for it.
func (t *Table) postBlinds() {
	if sb := t.seats[t.sbSeat]; sb != nil && sb.Status == StatusActive {
		t.invest(sb, t.cfg.SmallBlind)
	}
	if bb := t.seats[t.bbSeat]; bb != nil && bb.Status == StatusActive {
		t.invest(bb, t.cfg.BigBlind)
	}
	t.currentBet = 0
	for _, seat := range []int{t.sbSeat, t.bbSeat} {
		if p := t.seats[seat]; p != nil && p.StreetBet > t.currentBet {
			t.currentBet = p.StreetBet
		}
	}
}

// invest moves up to requested chips from the player's stack into the pot,
// clamping at the stack (an all-in for less). Returns the amount moved.
func (t *Table) invest(p *Player, requested int64) int64 {
	amount := requested
	if chips := p.Stack.Chips(); amount > chips {
		amount = chips
	}
	if amount <= 0 {
		return 0
	}
	if err := p.Stack.Deduct(amount); err != nil {
		// The clamp above makes this unreachable unless the ledger is
		// mutated behind the table's back.
		t.logger.Error("ledger deduct failed", "player", p.Name, "error", err)
		return 0
	}
	p.StreetBet += amount
	p.TotalBet += amount
	if p.Stack.Chips() == 0 {
		p.Status = StatusAllIn
	}
	return amount
}

func (t *Table) firstToActPreflop() int {
	inHand := t.playersInHand()
	if len(inHand) == 2 {
		if p := t.seats[t.sbSeat]; p != nil && p.Actionable() {
			return t.sbSeat
		}
	}
	return t.nextActionableSeat(t.bbSeat)
}

// nextActionableSeat scans clockwise from the seat after from, skipping
// folded and all-in players.
func (t *Table) nextActionableSeat(from int) int {
	n := len(t.seats)
	for i := 1; i <= n; i++ {
		seat := ((from + i) % n + n) % n
		if p := t.seats[seat]; p != nil && p.Actionable() {
			return seat
		}
	}
	return -1
}

func (t *Table) playersInHand() []*Player {
	var out []*Player
	for _, p := range t.seats {
		if p != nil && p.InHand() {
			out = append(out, p)
		}
	}
	return out
}

func (t *Table) actionablePlayers() []*Player {
	var out []*Player
	for _, p := range t.seats {
		if p != nil && p.Actionable() {
			out = append(out, p)
		}
	}
	return out
}

func (t *Table) allPlayers() []*Player {
	var out []*Player
	for _, p := range t.seats {
		if p != nil {
			out = append(out, p)
		}
	}
	return out
}

func (t *Table) unseat(p *Player) {
	if t.seats[p.Seat] == p {
		t.seats[p.Seat] = nil
	}
	delete(t.players, p.ID)
}

func (t *Table) setDue(kind DueKind, seat int) {
	t.dueSeq++
	t.due = Due{Kind: kind, Seat: seat, Seq: t.dueSeq}
}

func (t *Table) schedulePending(target TableState) {
	t.pendingStreet = target
	t.hasPending = true
	t.toAct = -1
	t.setDue(DueStreet, -1)
}
