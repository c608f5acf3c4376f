package server

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

const (
	botAttempts = 4
	botBackoff  = 250 * time.Millisecond
)

func newBotScheduler() (*BotScheduler, *fakeScheduler, *captureBroadcaster) {
	clock := newFakeScheduler()
	events := &captureBroadcaster{}
	bs := NewBotScheduler(clock, events, botAttempts, botBackoff)
	return bs, clock, events
}

func TestBotScheduler_FirstAttemptSucceeds(t *testing.T) {
	assert := assert.New(t)
	bs, clock, events := newBotScheduler()

	attempts := 0
	bs.OnAttempt(func(matchID string) error {
		attempts++
		return nil
	})
	bs.OnExhausted(func(string) { t.Fatal("should not exhaust") })

	bs.Trigger("match-1")
	clock.Advance(time.Minute)

	assert.Equal(1, attempts)
	assert.Empty(events.ofType("bot_status"))
}

func TestBotScheduler_RetriesWithGrowingBackoff(t *testing.T) {
	assert := assert.New(t)
	bs, clock, events := newBotScheduler()

	attempts := 0
	bs.OnAttempt(func(matchID string) error {
		attempts++
		if attempts < 3 {
			return errors.New("transient")
		}
		return nil
	})
	bs.OnExhausted(func(string) { t.Fatal("should not exhaust") })

	bs.Trigger("match-1")
	assert.Equal(1, attempts)

	// Second attempt after the base backoff.
	clock.Advance(botBackoff)
	assert.Equal(2, attempts)

	// Third after double the base.
	clock.Advance(2 * botBackoff)
	assert.Equal(3, attempts)

	retrying := events.ofType("bot_status")
	assert.Len(retrying, 2)
	assert.Equal("retrying", retrying[0].Payload.(BotStatusEvent).Status)
	assert.Equal(1, retrying[0].Payload.(BotStatusEvent).Attempt)
	assert.Equal(2, retrying[1].Payload.(BotStatusEvent).Attempt)
}

func TestBotScheduler_ExhaustionDeclaresFailure(t *testing.T) {
	assert := assert.New(t)
	bs, clock, events := newBotScheduler()

	attempts := 0
	bs.OnAttempt(func(matchID string) error {
		attempts++
		return errors.New("broken heuristic")
	})

	exhausted := ""
	bs.OnExhausted(func(matchID string) { exhausted = matchID })

	bs.Trigger("match-1")
	clock.Advance(time.Minute)

	assert.Equal(botAttempts, attempts)
	assert.Equal("match-1", exhausted)

	statuses := events.ofType("bot_status")
	last := statuses[len(statuses)-1].Payload.(BotStatusEvent)
	assert.Equal("failed", last.Status)
	assert.Equal(botAttempts, last.Attempt)
	assert.Contains(last.Reason, "broken heuristic")

	// No further retries are scheduled.
	clock.Advance(time.Minute)
	assert.Equal(botAttempts, attempts)
}

func TestBotScheduler_CancelStopsRetries(t *testing.T) {
	assert := assert.New(t)
	bs, clock, _ := newBotScheduler()

	attempts := 0
	bs.OnAttempt(func(matchID string) error {
		attempts++
		return errors.New("transient")
	})
	bs.OnExhausted(func(string) { t.Fatal("should not exhaust") })

	bs.Trigger("match-1")
	assert.Equal(1, attempts)

	bs.Cancel("match-1")
	clock.Advance(time.Minute)
	assert.Equal(1, attempts)
}

func TestBotScheduler_TriggerSupersedesRunInFlight(t *testing.T) {
	assert := assert.New(t)
	bs, clock, _ := newBotScheduler()

	attempts := 0
	bs.OnAttempt(func(matchID string) error {
		attempts++
		if attempts == 1 {
			return errors.New("transient")
		}
		return nil
	})
	bs.OnExhausted(func(string) { t.Fatal("should not exhaust") })

	bs.Trigger("match-1")
	assert.Equal(1, attempts)

	// New trigger before the retry fires; the old run's retry is dropped.
	bs.Trigger("match-1")
	assert.Equal(2, attempts)

	clock.Advance(time.Minute)
	assert.Equal(2, attempts)
}
