package server

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Ledger is the external stake collaborator. Calls are fire-and-forget
// from the core's perspective: a failure becomes a room warning, never a
// crashed match.
type Ledger interface {
	Reserve(ctx context.Context, matchID string, playerIDs []string, stake int64) error
	Settle(ctx context.Context, matchID, winnerID string) error
	Refund(ctx context.Context, matchID string) error
}

// SQLLedger journals stake operations; the actual wallet debit/credit is
// applied downstream by the wallet service reading this journal.
type SQLLedger struct {
	db *sql.DB
}

func NewSQLLedger(db *sql.DB) *SQLLedger {
	return &SQLLedger{db: db}
}

func (l *SQLLedger) record(ctx context.Context, matchID, playerID, op string, stake int64) error {
	query := `
		INSERT INTO ledger_entries (match_id, player_id, operation, stake, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	if _, err := l.db.ExecContext(ctx, query, matchID, playerID, op, stake, time.Now()); err != nil {
		return fmt.Errorf("failed to record ledger %s for match %s: %w", op, matchID, err)
	}
	return nil
}

func (l *SQLLedger) Reserve(ctx context.Context, matchID string, playerIDs []string, stake int64) error {
	for _, playerID := range playerIDs {
		if err := l.record(ctx, matchID, playerID, "reserve", stake); err != nil {
			return err
		}
	}
	return nil
}

func (l *SQLLedger) Settle(ctx context.Context, matchID, winnerID string) error {
	return l.record(ctx, matchID, winnerID, "settle", 0)
}

func (l *SQLLedger) Refund(ctx context.Context, matchID string) error {
	return l.record(ctx, matchID, "", "refund", 0)
}
