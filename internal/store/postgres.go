// Package store persists completed-hand settlements.
package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/charmbracelet/log"
	_ "github.com/lib/pq"

	"github.com/cardroom/holdemd/internal/engine"
)

const schema = `
CREATE TABLE IF NOT EXISTS settlements (
	hand_id      TEXT PRIMARY KEY,
	table_id     TEXT NOT NULL,
	completed_at TIMESTAMPTZ NOT NULL,
	rake         BIGINT NOT NULL
);
CREATE TABLE IF NOT EXISTS settlement_payouts (
	hand_id   TEXT NOT NULL REFERENCES settlements(hand_id),
	player_id TEXT NOT NULL,
	seat      INT NOT NULL,
	amount    BIGINT NOT NULL,
	reason    TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS settlement_payouts_player ON settlement_payouts (player_id);
`

// PostgresRecorder writes settlements to Postgres. One hand is one
// transaction, so a crash never leaves a settlement half written.
type PostgresRecorder struct {
	db     *sql.DB
	logger *log.Logger
}

// OpenPostgres connects, verifies the connection and ensures the schema.
func OpenPostgres(ctx context.Context, dsn string, logger *log.Logger) (*PostgresRecorder, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: ping postgres: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: ensure schema: %w", err)
	}
	return &PostgresRecorder{db: db, logger: logger.WithPrefix("store")}, nil
}

// RecordSettlement stores one hand's outcome.
func (r *PostgresRecorder) RecordSettlement(ctx context.Context, rec *engine.SettlementRecord) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO settlements (hand_id, table_id, completed_at, rake) VALUES ($1, $2, $3, $4)`,
		rec.HandID, rec.TableID, rec.CompletedAt, rec.RakeTaken,
	); err != nil {
		return fmt.Errorf("store: insert settlement %s: %w", rec.HandID, err)
	}
	for _, d := range rec.Distributions {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO settlement_payouts (hand_id, player_id, seat, amount, reason) VALUES ($1, $2, $3, $4, $5)`,
			rec.HandID, d.PlayerID, d.Seat, d.Amount, d.Reason,
		); err != nil {
			return fmt.Errorf("store: insert payout %s/%s: %w", rec.HandID, d.PlayerID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit %s: %w", rec.HandID, err)
	}
	r.logger.Debug("settlement stored", "hand", rec.HandID, "payouts", len(rec.Distributions))
	return nil
}

// Close releases the connection pool.
func (r *PostgresRecorder) Close() error {
	return r.db.Close()
}

// NopRecorder discards settlements, for tables that run without
// persistence.
type NopRecorder struct{}

func (NopRecorder) RecordSettlement(context.Context, *engine.SettlementRecord) error { return nil }
