package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"bisca-server/internal/bisca"
)

// ResultsStore finalizes match and game results. It is an external
// collaborator: the core fires the writes and forgets them. A failure
// is logged and surfaced as a room warning, never a crashed match.
type ResultsStore struct {
	db *sql.DB
}

func NewResultsStore(db *sql.DB) *ResultsStore {
	return &ResultsStore{db: db}
}

// SaveGameResult records one finished game of a match.
func (rs *ResultsStore) SaveGameResult(ctx context.Context, m *bisca.Match, result *bisca.PlayResult) error {
	query := `
		INSERT INTO game_results (match_id, game_number, points_a, points_b, winner_seat, tier, marks_awarded, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (match_id, game_number) DO NOTHING
	`

	winner := int(result.GameWinner)
	if result.Draw {
		winner = -1
	}
	tier, marks := "", 0
	if result.GameResult != nil {
		tier = result.GameResult.Tier
		marks = result.GameResult.Marks
	}

	_, err := rs.db.ExecContext(ctx, query,
		m.ID, m.GameNumber, m.Points[bisca.SeatA], m.Points[bisca.SeatB],
		winner, tier, marks, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("failed to save game result for match %s: %w", m.ID, err)
	}
	return nil
}

// SaveMatchResult records the overall outcome once a match finalizes.
func (rs *ResultsStore) SaveMatchResult(ctx context.Context, m *bisca.Match, winner bisca.Seat) error {
	query := `
		INSERT INTO match_results (match_id, player_a, player_b, marks_a, marks_b, winner_id, games_played, created_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (match_id) DO NOTHING
	`

	_, err := rs.db.ExecContext(ctx, query,
		m.ID, m.Players[bisca.SeatA].ID, m.Players[bisca.SeatB].ID,
		m.Marks[bisca.SeatA], m.Marks[bisca.SeatB],
		m.Players[winner].ID, m.GameNumber, m.CreatedAt, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("failed to save match result for %s: %w", m.ID, err)
	}
	return nil
}

// PGSnapshotStore is the durable backing for RecoveryLayer snapshots, so
// a restarted process can pick up in-flight matches.
type PGSnapshotStore struct {
	db *sql.DB
}

func NewPGSnapshotStore(db *sql.DB) *PGSnapshotStore {
	return &PGSnapshotStore{db: db}
}

func (ps *PGSnapshotStore) Put(ctx context.Context, matchID string, snap *bisca.Snapshot, ttl time.Duration) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to serialize snapshot for match %s: %w", matchID, err)
	}

	query := `
		INSERT INTO match_snapshots (match_id, snapshot, taken_at, expires_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (match_id) DO UPDATE
		SET snapshot = EXCLUDED.snapshot, taken_at = EXCLUDED.taken_at, expires_at = EXCLUDED.expires_at
	`

	_, err = ps.db.ExecContext(ctx, query, matchID, data, snap.TakenAt, time.Now().Add(ttl))
	if err != nil {
		return fmt.Errorf("failed to store snapshot for match %s: %w", matchID, err)
	}
	return nil
}

func (ps *PGSnapshotStore) Get(ctx context.Context, matchID string) (*bisca.Snapshot, error) {
	query := `
		SELECT snapshot FROM match_snapshots
		WHERE match_id = $1 AND expires_at > $2
	`

	var data []byte
	err := ps.db.QueryRowContext(ctx, query, matchID, time.Now()).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, errors.New("SNAPSHOT_NOT_FOUND: no live snapshot for match")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot for match %s: %w", matchID, err)
	}

	var snap bisca.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to deserialize snapshot for match %s: %w", matchID, err)
	}
	return &snap, nil
}

// Heartbeat extends a snapshot's expiry without rewriting its payload.
func (ps *PGSnapshotStore) Heartbeat(ctx context.Context, matchID string) error {
	query := `
		UPDATE match_snapshots
		SET expires_at = GREATEST(expires_at, $2)
		WHERE match_id = $1
	`

	_, err := ps.db.ExecContext(ctx, query, matchID, time.Now().Add(time.Minute))
	if err != nil {
		return fmt.Errorf("failed to heartbeat snapshot for match %s: %w", matchID, err)
	}
	return nil
}

// ListActive returns the match ids with unexpired snapshots.
func (ps *PGSnapshotStore) ListActive(ctx context.Context) ([]string, error) {
	query := `SELECT match_id FROM match_snapshots WHERE expires_at > $1`

	rows, err := ps.db.QueryContext(ctx, query, time.Now())
	if err != nil {
		return nil, fmt.Errorf("failed to query active snapshots: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot row: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating snapshot rows: %w", err)
	}
	return ids, nil
}

// CleanupExpired deletes dead snapshot rows. The server runs this on the
// same cadence as in-memory eviction.
func (ps *PGSnapshotStore) CleanupExpired(ctx context.Context) (int64, error) {
	result, err := ps.db.ExecContext(ctx, `DELETE FROM match_snapshots WHERE expires_at <= $1`, time.Now())
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup expired snapshots: %w", err)
	}
	return result.RowsAffected()
}
