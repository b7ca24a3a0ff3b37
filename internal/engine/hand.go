package engine

import (
	"time"

	"github.com/cardroom/holdemd/poker"
)

// Hand is one played-out round. It is created at the deal and logically
// destroyed when the table resets; it never outlives its table generation.
type Hand struct {
	ID        string
	TableID   string
	StartedAt time.Time

	Deck  *poker.Deck
	Board []poker.Card // 0, 3, 4 or 5 revealed

	Pots          []PotSlice
	Distributions []Distribution
	RakeTaken     int64
	Ranks         map[string]poker.HandRank
}

// SettlementRecord is the fire-and-forget summary handed to the persistence
// collaborator once per completed hand.
type SettlementRecord struct {
	HandID        string
	TableID       string
	CompletedAt   time.Time
	RakeTaken     int64
	Distributions []Distribution
}
