package server

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateLimiter_Allow(t *testing.T) {
	limiter := NewRateLimiter(10, time.Second)
	connID := "test-conn-1"

	for i := 0; i < 10; i++ {
		assert.True(t, limiter.Allow(connID), "request %d should be allowed", i+1)
	}

	assert.False(t, limiter.Allow(connID), "11th request should be denied")
}

func TestRateLimiter_WindowReset(t *testing.T) {
	limiter := NewRateLimiter(2, 50*time.Millisecond)
	connID := "test-conn-2"

	assert.True(t, limiter.Allow(connID))
	assert.True(t, limiter.Allow(connID))
	assert.False(t, limiter.Allow(connID))

	time.Sleep(60 * time.Millisecond)

	assert.True(t, limiter.Allow(connID), "request after window should be allowed")
}

func TestRateLimiter_PerConnection(t *testing.T) {
	limiter := NewRateLimiter(1, time.Second)

	assert.True(t, limiter.Allow("conn-a"))
	assert.False(t, limiter.Allow("conn-a"))

	// A different connection has its own budget.
	assert.True(t, limiter.Allow("conn-b"))
}

func TestRateLimiter_RemoveConnection(t *testing.T) {
	limiter := NewRateLimiter(1, time.Second)
	connID := "test-conn-3"

	assert.True(t, limiter.Allow(connID))
	assert.False(t, limiter.Allow(connID))

	limiter.RemoveConnection(connID)

	assert.True(t, limiter.Allow(connID), "fresh budget after removal")
}

func TestValidateMessageType(t *testing.T) {
	valid := []string{
		"ping", "authenticate", "create_game", "join_game",
		"spectate_game", "reconnect", "play_card", "leave_game", "list_rooms",
	}
	for _, msgType := range valid {
		assert.NoError(t, ValidateMessageType(msgType), "type %s should be valid", msgType)
	}

	invalid := []string{"", "pong", "execute_move", "PLAY_CARD", "play card"}
	for _, msgType := range invalid {
		err := ValidateMessageType(msgType)
		assert.Error(t, err, "type %s should be invalid", msgType)
		assert.Contains(t, err.Error(), "INVALID_MESSAGE_TYPE")
	}
}

func TestValidateUsername(t *testing.T) {
	assert.NoError(t, ValidateUsername("alice"))
	assert.NoError(t, ValidateUsername("Maria das Dores"))

	assert.Error(t, ValidateUsername(""))
	assert.Error(t, ValidateUsername("   "))
	assert.Error(t, ValidateUsername("this-username-is-way-too-long-to-accept"))
}
