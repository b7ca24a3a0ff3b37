// Package ledger provides concurrency-safe chip custody for a single player.
// Chips can only move through Deduct and Add; nothing here creates or
// destroys money on its own.
package ledger

import (
	"errors"
	"sync"
)

var (
	// ErrInsufficientChips is returned when a deduction exceeds the stack.
	// The stack is left untouched; the amount is never truncated.
	ErrInsufficientChips = errors.New("ledger: insufficient chips")

	// ErrInvalidAmount is returned for negative amounts.
	ErrInvalidAmount = errors.New("ledger: amount must not be negative")
)

// ChipStack is a player's in-play chip count. All mutations are atomic with
// respect to concurrent callers; two deductions never both succeed if their
// sum exceeds the stack. Every successful mutation bumps a monotonically
// increasing version so external callers can detect concurrent modification.
type ChipStack struct {
	mu      sync.Mutex
	chips   int64
	version uint64
}

// New creates a stack with an initial chip count.
func New(initial int64) (*ChipStack, error) {
	if initial < 0 {
		return nil, ErrInvalidAmount
	}
	return &ChipStack{chips: initial}, nil
}

// Chips returns the current chip count.
func (s *ChipStack) Chips() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.chips
}

// Version returns the mutation counter.
func (s *ChipStack) Version() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.version
}

// Snapshot returns the chip count and version as one consistent pair.
func (s *ChipStack) Snapshot() (chips int64, version uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.chips, s.version
}

// Deduct removes amount from the stack. It fails without mutating anything
// if amount is negative or exceeds the current stack.
func (s *ChipStack) Deduct(amount int64) error {
	if amount < 0 {
		return ErrInvalidAmount
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if amount > s.chips {
		return ErrInsufficientChips
	}
	s.chips -= amount
	s.version++
	return nil
}

// Add credits amount to the stack. Negative amounts are rejected; removing
// chips must go through Deduct so the overdraw check cannot be bypassed.
func (s *ChipStack) Add(amount int64) error {
	if amount < 0 {
		return ErrInvalidAmount
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chips += amount
	s.version++
	return nil
}
