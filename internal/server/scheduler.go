package server

import (
	"sync"
	"time"
)

// Handle cancels a scheduled callback. Cancel is safe to call more than
// once and after the callback has fired.
type Handle interface {
	Cancel()
}

// Scheduler abstracts timer creation so tests can substitute a
// deterministic fake clock. Timers are the only source of state re-entry
// outside direct participant actions.
type Scheduler interface {
	Schedule(delay time.Duration, fn func()) Handle
	ScheduleRepeating(interval time.Duration, fn func()) Handle
}

type clockScheduler struct{}

// NewClockScheduler returns the production Scheduler backed by the real
// clock.
func NewClockScheduler() Scheduler {
	return clockScheduler{}
}

type timerHandle struct {
	timer *time.Timer
}

func (h *timerHandle) Cancel() {
	h.timer.Stop()
}

func (clockScheduler) Schedule(delay time.Duration, fn func()) Handle {
	return &timerHandle{timer: time.AfterFunc(delay, fn)}
}

type tickerHandle struct {
	stop chan struct{}
	once sync.Once
}

func (h *tickerHandle) Cancel() {
	h.once.Do(func() { close(h.stop) })
}

func (clockScheduler) ScheduleRepeating(interval time.Duration, fn func()) Handle {
	h := &tickerHandle{stop: make(chan struct{})}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				fn()
			case <-h.stop:
				return
			}
		}
	}()
	return h
}
