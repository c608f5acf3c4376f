package server

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"bisca-server/internal/bisca"
)

type RecoveryOutcome string

const (
	// OutcomeResumed: the operation applied normally (or was a clean
	// validation rejection).
	OutcomeResumed RecoveryOutcome = "resumed"
	// OutcomeRecovered: the operation failed and the match was rebuilt
	// from the latest snapshot.
	OutcomeRecovered RecoveryOutcome = "recovered"
	// OutcomeFallback: no usable snapshot; a conservative forced action
	// kept the match alive.
	OutcomeFallback RecoveryOutcome = "fallback"
	// OutcomeAborted: a fatal invariant violation; the caller must
	// terminate the match and tear the room down.
	OutcomeAborted RecoveryOutcome = "aborted"
)

// SnapshotStore optionally backs snapshots across process restarts.
type SnapshotStore interface {
	Put(ctx context.Context, matchID string, snap *bisca.Snapshot, ttl time.Duration) error
	Get(ctx context.Context, matchID string) (*bisca.Snapshot, error)
	Heartbeat(ctx context.Context, matchID string) error
	ListActive(ctx context.Context) ([]string, error)
}

// RecoveryNotice tells the room how a protected operation ended.
type RecoveryNotice struct {
	MatchID string          `json:"matchId"`
	Outcome RecoveryOutcome `json:"outcome"`
	Detail  string          `json:"detail,omitempty"`
}

// RecoveryLayer wraps every state-mutating match operation with snapshot
// capture, failure detection and state reconstruction. Snapshot, attempt
// and recovery run strictly sequentially per match: the caller already
// holds the match lock, and announces the outcome after releasing it.
type RecoveryLayer struct {
	mu        sync.RWMutex
	snapshots map[string]*bisca.Snapshot // latest snapshot per match id
	freshness time.Duration
	ttl       time.Duration
	store     SnapshotStore // optional, may be nil
}

func NewRecoveryLayer(store SnapshotStore, freshness, ttl time.Duration) *RecoveryLayer {
	return &RecoveryLayer{
		snapshots: make(map[string]*bisca.Snapshot),
		freshness: freshness,
		ttl:       ttl,
		store:     store,
	}
}

// Protect snapshots the match, applies op, and on failure reconstructs or
// degrades so the match continues rather than stalling. On a fallback the
// forced play is returned so the caller can account for the card. The
// original error is returned alongside the outcome so callers can still
// report it.
func (rl *RecoveryLayer) Protect(m *bisca.Match, op func() error) (outcome RecoveryOutcome, forced *bisca.PlayResult, opErr error) {
	snap := m.Snapshot()
	rl.mu.Lock()
	rl.snapshots[m.ID] = snap
	rl.mu.Unlock()

	if rl.store != nil {
		// Durable write is fire-and-forget; the in-memory copy is
		// authoritative for this process.
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := rl.store.Put(ctx, m.ID, snap, rl.ttl); err != nil {
				log.Printf("Snapshot store put failed for match %s: %v", m.ID, err)
			}
		}()
	}

	opErr = rl.run(op)
	if opErr == nil {
		return OutcomeResumed, nil, nil
	}
	if bisca.IsValidation(opErr) {
		// Rejected plays never mutate state; nothing to recover.
		return OutcomeResumed, nil, opErr
	}

	log.Printf("Protected operation failed for match %s: %v", m.ID, opErr)

	if bisca.IsFatal(opErr) {
		// An invariant violation is beyond snapshot repair: the same
		// logic would corrupt the state again. The match terminates.
		return OutcomeAborted, nil, opErr
	}

	if restored := rl.restore(m); restored {
		return OutcomeRecovered, nil, opErr
	}

	// No usable snapshot: force the trivial action so the match proceeds.
	if m.State == bisca.StateInProgress {
		result, err := m.ForceLowestPlay(m.Turn)
		if err != nil {
			log.Printf("Fallback play failed for match %s: %v", m.ID, err)
		} else {
			forced = result
		}
	}
	return OutcomeFallback, forced, opErr
}

// run applies op, converting a panic into an error so a handler crash
// cannot take the process down with the match.
func (rl *RecoveryLayer) run(op func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("operation panicked: %v", r)
		}
	}()
	return op()
}

// restore rebuilds the match from the freshest snapshot within the
// freshness bound.
func (rl *RecoveryLayer) restore(m *bisca.Match) bool {
	rl.mu.RLock()
	snap := rl.snapshots[m.ID]
	rl.mu.RUnlock()

	if snap == nil || time.Since(snap.TakenAt) > rl.freshness {
		return false
	}
	if err := m.Restore(snap); err != nil {
		log.Printf("Snapshot restore failed for match %s: %v", m.ID, err)
		return false
	}
	return true
}

// Latest returns the newest snapshot held for a match.
func (rl *RecoveryLayer) Latest(matchID string) (*bisca.Snapshot, bool) {
	rl.mu.RLock()
	defer rl.mu.RUnlock()
	snap, ok := rl.snapshots[matchID]
	return snap, ok
}

// Drop discards a match's snapshots; called on match removal.
func (rl *RecoveryLayer) Drop(matchID string) {
	rl.mu.Lock()
	delete(rl.snapshots, matchID)
	rl.mu.Unlock()
}

// Evict removes snapshots older than the TTL. The server runs this
// periodically.
func (rl *RecoveryLayer) Evict() int {
	cutoff := time.Now().Add(-rl.ttl)

	rl.mu.Lock()
	defer rl.mu.Unlock()

	evicted := 0
	for id, snap := range rl.snapshots {
		if snap.TakenAt.Before(cutoff) {
			delete(rl.snapshots, id)
			evicted++
		}
	}
	return evicted
}

// Heartbeat refreshes the durable store's liveness records for the given
// matches.
func (rl *RecoveryLayer) Heartbeat(matchIDs []string) {
	if rl.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	for _, id := range matchIDs {
		if err := rl.store.Heartbeat(ctx, id); err != nil {
			log.Printf("Snapshot heartbeat failed for match %s: %v", id, err)
		}
	}
}
