package server

import (
	"context"
	"errors"
	"sync"
	"time"

	"bisca-server/internal/bisca"
)

// fakeScheduler is a deterministic clock: nothing fires until the test
// advances time.
type fakeScheduler struct {
	mu    sync.Mutex
	now   time.Duration
	seq   int
	tasks map[int]*fakeTask
}

type fakeTask struct {
	due      time.Duration
	interval time.Duration // zero for one-shot
	fn       func()
}

func newFakeScheduler() *fakeScheduler {
	return &fakeScheduler{tasks: make(map[int]*fakeTask)}
}

type fakeHandle struct {
	s  *fakeScheduler
	id int
}

func (h *fakeHandle) Cancel() {
	h.s.mu.Lock()
	delete(h.s.tasks, h.id)
	h.s.mu.Unlock()
}

func (s *fakeScheduler) add(delay, interval time.Duration, fn func()) Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	s.tasks[s.seq] = &fakeTask{due: s.now + delay, interval: interval, fn: fn}
	return &fakeHandle{s: s, id: s.seq}
}

func (s *fakeScheduler) Schedule(delay time.Duration, fn func()) Handle {
	return s.add(delay, 0, fn)
}

func (s *fakeScheduler) ScheduleRepeating(interval time.Duration, fn func()) Handle {
	return s.add(interval, interval, fn)
}

// Advance moves the clock forward, running due tasks in time order.
func (s *fakeScheduler) Advance(d time.Duration) {
	target := s.now + d
	for {
		s.mu.Lock()
		var next *fakeTask
		nextID := 0
		for id, t := range s.tasks {
			if t.due <= target && (next == nil || t.due < next.due) {
				next, nextID = t, id
			}
		}
		if next == nil {
			s.now = target
			s.mu.Unlock()
			return
		}
		s.now = next.due
		fn := next.fn
		if next.interval > 0 {
			next.due += next.interval
		} else {
			delete(s.tasks, nextID)
		}
		s.mu.Unlock()

		fn()
	}
}

func (s *fakeScheduler) pendingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

// fakeSnapshotStore is an in-memory stand-in for the durable store.
type fakeSnapshotStore struct {
	mu    sync.Mutex
	snaps map[string]*bisca.Snapshot
}

func newFakeSnapshotStore() *fakeSnapshotStore {
	return &fakeSnapshotStore{snaps: make(map[string]*bisca.Snapshot)}
}

func (f *fakeSnapshotStore) Put(_ context.Context, matchID string, snap *bisca.Snapshot, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snaps[matchID] = snap
	return nil
}

func (f *fakeSnapshotStore) Get(_ context.Context, matchID string) (*bisca.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	snap, ok := f.snaps[matchID]
	if !ok {
		return nil, errors.New("SNAPSHOT_NOT_FOUND: no live snapshot for match")
	}
	return snap, nil
}

func (f *fakeSnapshotStore) Heartbeat(_ context.Context, _ string) error {
	return nil
}

func (f *fakeSnapshotStore) ListActive(_ context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := make([]string, 0, len(f.snaps))
	for id := range f.snaps {
		ids = append(ids, id)
	}
	return ids, nil
}

// capturedEvent is one broadcast seen by captureBroadcaster.
type capturedEvent struct {
	RoomID  string
	Event   string
	Payload any
}

type captureBroadcaster struct {
	mu     sync.Mutex
	events []capturedEvent
}

func (b *captureBroadcaster) Publish(roomID, event string, payload any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, capturedEvent{RoomID: roomID, Event: event, Payload: payload})
}

func (b *captureBroadcaster) ofType(event string) []capturedEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []capturedEvent
	for _, e := range b.events {
		if e.Event == event {
			out = append(out, e)
		}
	}
	return out
}
