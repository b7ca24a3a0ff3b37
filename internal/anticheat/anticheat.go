// Package anticheat screens players and watches their action stream. It
// keeps an address blacklist, a cap on how many accounts may play from the
// same address (the cheapest collusion signal a cash game has), and
// per-player behavior counters that flag bot-like play. It never touches
// chips; flagged players are surfaced for an operator to act on.
package anticheat

import (
	"errors"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
)

var (
	ErrAddressBanned   = errors.New("anticheat: address banned")
	ErrTooManyAccounts = errors.New("anticheat: too many accounts from address")
)

// Behavior thresholds. Actions faster than minActionInterval count toward
// the rapid-fire streak; either streak crossing its limit flags the player.
const (
	minActionInterval = 500 * time.Millisecond
	rapidActionLimit  = 10
	allInStreakLimit  = 5
)

type behavior struct {
	lastAction  time.Time
	rapidStreak int
	allInStreak int
	flagged     bool
}

// Guard is safe for concurrent use.
type Guard struct {
	logger     *log.Logger
	clock      quartz.Clock
	maxPerAddr int

	mu       sync.RWMutex
	banned   map[string]struct{}
	byAddr   map[string]map[string]struct{}
	byPlayer map[string]*behavior
}

// New builds a guard with an initial blacklist. maxPerAddr of zero
// disables the per-address account cap.
func New(logger *log.Logger, clock quartz.Clock, bannedAddrs []string, maxPerAddr int) *Guard {
	g := &Guard{
		logger:     logger.WithPrefix("anticheat"),
		clock:      clock,
		maxPerAddr: maxPerAddr,
		banned:     make(map[string]struct{}, len(bannedAddrs)),
		byAddr:     make(map[string]map[string]struct{}),
		byPlayer:   make(map[string]*behavior),
	}
	for _, addr := range bannedAddrs {
		g.banned[normalizeAddr(addr)] = struct{}{}
	}
	return g
}

// CheckJoin decides whether playerID may sit from remoteAddr. An empty
// address is allowed, which covers in-process callers.
func (g *Guard) CheckJoin(playerID, remoteAddr string) error {
	if remoteAddr == "" {
		return nil
	}
	addr := normalizeAddr(remoteAddr)

	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.banned[addr]; ok {
		g.logger.Warn("join rejected, banned address", "player", playerID, "addr", addr)
		return ErrAddressBanned
	}
	players := g.byAddr[addr]
	if players == nil {
		players = make(map[string]struct{})
		g.byAddr[addr] = players
	}
	if _, known := players[playerID]; !known && g.maxPerAddr > 0 && len(players) >= g.maxPerAddr {
		g.logger.Warn("join rejected, account cap", "player", playerID, "addr", addr, "accounts", len(players))
		return ErrTooManyAccounts
	}
	players[playerID] = struct{}{}
	return nil
}

// ObserveAction feeds one accepted action into the behavior counters.
func (g *Guard) ObserveAction(playerID, kind string) {
	now := g.clock.Now()

	g.mu.Lock()
	defer g.mu.Unlock()
	b := g.byPlayer[playerID]
	if b == nil {
		b = &behavior{}
		g.byPlayer[playerID] = b
	}

	if !b.lastAction.IsZero() && now.Sub(b.lastAction) < minActionInterval {
		b.rapidStreak++
	} else {
		b.rapidStreak = 0
	}
	b.lastAction = now

	if kind == "allin" {
		b.allInStreak++
	} else {
		b.allInStreak = 0
	}

	if !b.flagged && (b.rapidStreak >= rapidActionLimit || b.allInStreak >= allInStreakLimit) {
		b.flagged = true
		g.logger.Warn("player flagged", "player", playerID,
			"rapidStreak", b.rapidStreak, "allInStreak", b.allInStreak)
	}
}

// Flagged reports whether the behavior checks have flagged the player.
func (g *Guard) Flagged(playerID string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	b := g.byPlayer[playerID]
	return b != nil && b.flagged
}

// Ban adds an address to the blacklist.
func (g *Guard) Ban(addr string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.banned[normalizeAddr(addr)] = struct{}{}
}

// Unban removes an address from the blacklist.
func (g *Guard) Unban(addr string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.banned, normalizeAddr(addr))
}

// normalizeAddr strips any port so bans apply to the host alone.
func normalizeAddr(addr string) string {
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return strings.TrimSpace(addr)
}
