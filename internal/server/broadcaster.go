package server

import (
	"context"
	"log"
)

// Broadcaster publishes an event to every participant and spectator of a
// room. The transport collaborator implements it; components hold the
// capability, never the sockets.
type Broadcaster interface {
	Publish(roomID, event string, payload any)
}

// wsBroadcaster fans events out over the live websocket connections. Room
// membership is resolved late so the directory can change between
// publishes.
type wsBroadcaster struct {
	conns   *ConnectionManager
	members func(roomID string) []string // participant ids
}

func NewBroadcaster(conns *ConnectionManager, members func(roomID string) []string) Broadcaster {
	return &wsBroadcaster{conns: conns, members: members}
}

func (b *wsBroadcaster) Publish(roomID, event string, payload any) {
	msg := ServerMessage{Type: event, Payload: payload}

	for _, participantID := range b.members(roomID) {
		conn := b.conns.ConnectionFor(participantID)
		if conn == nil {
			continue // player not connected
		}
		if err := sendMessage(conn, context.Background(), msg); err != nil {
			log.Printf("Failed to broadcast %s to %s: %v", event, participantID, err)
		}
	}
}

// funcBroadcaster adapts a bare function; tests use it to capture events.
type funcBroadcaster func(roomID, event string, payload any)

func (f funcBroadcaster) Publish(roomID, event string, payload any) {
	f(roomID, event, payload)
}
