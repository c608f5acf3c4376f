package server

import (
	"sync"
	"time"

	"bisca-server/internal/bisca"
)

// TurnTimerEvent is the payload for turn_timer_started and
// turn_timer_update.
type TurnTimerEvent struct {
	MatchID     string     `json:"matchId"`
	Seat        bisca.Seat `json:"seat"`
	RemainingMS int64      `json:"remainingMs"`
}

// TurnScheduler arms one timer per active match. Starting a new timer
// implicitly cancels the previous one, and a generation counter keeps a
// stale timer from firing against already-advanced state.
//
// Timeout policy: the timed-out participant's lowest-ranked card is
// auto-played and the match continues. The forfeit variant is not
// implemented.
type TurnScheduler struct {
	mu          sync.Mutex
	scheduler   Scheduler
	broadcaster Broadcaster
	timeout     time.Duration
	tick        time.Duration
	onTimeout   func(matchID string, seat bisca.Seat)
	timers      map[string]*turnTimer
	gen         uint64
}

type turnTimer struct {
	seat          bisca.Seat
	gen           uint64
	deadline      time.Time
	timeoutHandle Handle
	tickHandle    Handle
}

func NewTurnScheduler(scheduler Scheduler, broadcaster Broadcaster, timeout, tick time.Duration) *TurnScheduler {
	return &TurnScheduler{
		scheduler:   scheduler,
		broadcaster: broadcaster,
		timeout:     timeout,
		tick:        tick,
		timers:      make(map[string]*turnTimer),
	}
}

// OnTimeout installs the expiry policy. Must be set before any Start.
func (ts *TurnScheduler) OnTimeout(fn func(matchID string, seat bisca.Seat)) {
	ts.onTimeout = fn
}

// Start arms the deadline for the participant now on turn.
func (ts *TurnScheduler) Start(matchID string, seat bisca.Seat) {
	ts.mu.Lock()
	ts.cancelLocked(matchID)

	ts.gen++
	gen := ts.gen
	timer := &turnTimer{
		seat:     seat,
		gen:      gen,
		deadline: time.Now().Add(ts.timeout),
	}
	timer.timeoutHandle = ts.scheduler.Schedule(ts.timeout, func() {
		ts.fire(matchID, gen)
	})
	timer.tickHandle = ts.scheduler.ScheduleRepeating(ts.tick, func() {
		ts.progress(matchID, gen)
	})
	ts.timers[matchID] = timer
	ts.mu.Unlock()

	ts.broadcaster.Publish(matchID, "turn_timer_started", TurnTimerEvent{
		MatchID:     matchID,
		Seat:        seat,
		RemainingMS: ts.timeout.Milliseconds(),
	})
}

// Cancel stops the match's timer; called on every valid play and on match
// removal.
func (ts *TurnScheduler) Cancel(matchID string) {
	ts.mu.Lock()
	ts.cancelLocked(matchID)
	ts.mu.Unlock()
}

func (ts *TurnScheduler) cancelLocked(matchID string) {
	if timer, ok := ts.timers[matchID]; ok {
		timer.timeoutHandle.Cancel()
		timer.tickHandle.Cancel()
		delete(ts.timers, matchID)
	}
}

func (ts *TurnScheduler) fire(matchID string, gen uint64) {
	ts.mu.Lock()
	timer, ok := ts.timers[matchID]
	if !ok || timer.gen != gen {
		// Superseded by a valid play or a newer timer.
		ts.mu.Unlock()
		return
	}
	seat := timer.seat
	ts.cancelLocked(matchID)
	ts.mu.Unlock()

	ts.onTimeout(matchID, seat)
}

func (ts *TurnScheduler) progress(matchID string, gen uint64) {
	ts.mu.Lock()
	timer, ok := ts.timers[matchID]
	if !ok || timer.gen != gen {
		ts.mu.Unlock()
		return
	}
	event := TurnTimerEvent{
		MatchID:     matchID,
		Seat:        timer.seat,
		RemainingMS: time.Until(timer.deadline).Milliseconds(),
	}
	ts.mu.Unlock()

	ts.broadcaster.Publish(matchID, "turn_timer_update", event)
}
