package server

import (
	"log"
	"sync"
	"time"
)

// BotStatusEvent announces bot progress to the room.
type BotStatusEvent struct {
	MatchID string `json:"matchId"`
	Status  string `json:"status"` // retrying, failed
	Attempt int    `json:"attempt"`
	Reason  string `json:"reason,omitempty"`
}

// BotScheduler drives the synthetic participant's turns: an immediate
// attempt, then bounded exponential-backoff retries, then a declared
// failure that hands the move to the recovery fallback.
type BotScheduler struct {
	mu          sync.Mutex
	scheduler   Scheduler
	broadcaster Broadcaster
	maxAttempts int
	backoffBase time.Duration
	attempt     func(matchID string) error
	onExhausted func(matchID string)
	runs        map[string]*botRun
	gen         uint64
}

type botRun struct {
	gen    uint64
	handle Handle
}

func NewBotScheduler(scheduler Scheduler, broadcaster Broadcaster, maxAttempts int, backoffBase time.Duration) *BotScheduler {
	return &BotScheduler{
		scheduler:   scheduler,
		broadcaster: broadcaster,
		maxAttempts: maxAttempts,
		backoffBase: backoffBase,
		runs:        make(map[string]*botRun),
	}
}

// OnAttempt installs the single-move callback; it runs under the match
// lock and returns nil once a move is recorded.
func (bs *BotScheduler) OnAttempt(fn func(matchID string) error) {
	bs.attempt = fn
}

// OnExhausted installs the bot-failure callback.
func (bs *BotScheduler) OnExhausted(fn func(matchID string)) {
	bs.onExhausted = fn
}

// Trigger starts a bot turn for the match. Any run already in flight is
// superseded.
func (bs *BotScheduler) Trigger(matchID string) {
	bs.mu.Lock()
	bs.cancelLocked(matchID)
	bs.gen++
	gen := bs.gen
	bs.runs[matchID] = &botRun{gen: gen}
	bs.mu.Unlock()

	bs.try(matchID, gen, 1)
}

// Cancel aborts the match's bot run, if any.
func (bs *BotScheduler) Cancel(matchID string) {
	bs.mu.Lock()
	bs.cancelLocked(matchID)
	bs.mu.Unlock()
}

func (bs *BotScheduler) cancelLocked(matchID string) {
	if run, ok := bs.runs[matchID]; ok {
		if run.handle != nil {
			run.handle.Cancel()
		}
		delete(bs.runs, matchID)
	}
}

func (bs *BotScheduler) try(matchID string, gen uint64, attemptNo int) {
	bs.mu.Lock()
	run, ok := bs.runs[matchID]
	if !ok || run.gen != gen {
		bs.mu.Unlock()
		return
	}
	bs.mu.Unlock()

	err := bs.attempt(matchID)
	if err == nil {
		bs.mu.Lock()
		if run, ok := bs.runs[matchID]; ok && run.gen == gen {
			delete(bs.runs, matchID)
		}
		bs.mu.Unlock()
		return
	}

	if attemptNo >= bs.maxAttempts {
		log.Printf("Bot failed for match %s after %d attempts: %v", matchID, attemptNo, err)
		bs.mu.Lock()
		bs.cancelLocked(matchID)
		bs.mu.Unlock()

		bs.broadcaster.Publish(matchID, "bot_status", BotStatusEvent{
			MatchID: matchID,
			Status:  "failed",
			Attempt: attemptNo,
			Reason:  err.Error(),
		})
		bs.onExhausted(matchID)
		return
	}

	backoff := bs.backoffBase << (attemptNo - 1)
	log.Printf("Bot attempt %d for match %s failed, retrying in %s: %v", attemptNo, matchID, backoff, err)
	bs.broadcaster.Publish(matchID, "bot_status", BotStatusEvent{
		MatchID: matchID,
		Status:  "retrying",
		Attempt: attemptNo,
		Reason:  err.Error(),
	})

	bs.mu.Lock()
	if run, ok := bs.runs[matchID]; ok && run.gen == gen {
		run.handle = bs.scheduler.Schedule(backoff, func() {
			bs.try(matchID, gen, attemptNo+1)
		})
	}
	bs.mu.Unlock()
}
