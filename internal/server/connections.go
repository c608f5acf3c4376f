package server

import (
	"sync"

	"github.com/coder/websocket"
)

// ConnectionManager tracks live sockets and their participant bindings.
// A participant has at most one live connection; binding a second one
// evicts the first.
type ConnectionManager struct {
	connections   map[string]*websocket.Conn // connectionID -> socket
	participants  map[string]string          // connectionID -> participantID
	byParticipant map[string]string          // participantID -> connectionID
	mu            sync.RWMutex
}

func NewConnectionManager() *ConnectionManager {
	return &ConnectionManager{
		connections:   make(map[string]*websocket.Conn),
		participants:  make(map[string]string),
		byParticipant: make(map[string]string),
	}
}

func (cm *ConnectionManager) AddConnection(id string, conn *websocket.Conn) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.connections[id] = conn
}

func (cm *ConnectionManager) RemoveConnection(id string) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	if participantID, ok := cm.participants[id]; ok {
		if cm.byParticipant[participantID] == id {
			delete(cm.byParticipant, participantID)
		}
	}
	delete(cm.connections, id)
	delete(cm.participants, id)
}

// BindParticipant maps a participant identity onto a connection and
// returns the previously bound connection id, if any. The caller decides
// what to do with the evicted connection.
func (cm *ConnectionManager) BindParticipant(connectionID, participantID string) (oldConnectionID string) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	old := cm.byParticipant[participantID]
	if old == connectionID {
		old = ""
	}

	cm.participants[connectionID] = participantID
	cm.byParticipant[participantID] = connectionID
	return old
}

// ParticipantFor returns the identity bound to a connection, or "".
func (cm *ConnectionManager) ParticipantFor(connectionID string) string {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.participants[connectionID]
}

// ConnectionFor returns the live socket for a participant, or nil.
func (cm *ConnectionManager) ConnectionFor(participantID string) *websocket.Conn {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	connID, ok := cm.byParticipant[participantID]
	if !ok {
		return nil
	}
	return cm.connections[connID]
}

// GetConnection returns the socket for a connection id.
func (cm *ConnectionManager) GetConnection(connectionID string) *websocket.Conn {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.connections[connectionID]
}
