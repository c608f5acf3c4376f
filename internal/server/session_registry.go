package server

import (
	"errors"
	"log"
	"sync"
	"time"
)

// Session binds a participant identity to a live connection. A
// disconnected session lingers in the pending-reconnection set until the
// grace window runs out.
type Session struct {
	ParticipantID  string
	ConnectionID   string
	Username       string
	MatchID        string
	ConnectedAt    time.Time
	DisconnectedAt time.Time // zero while live
	Deadline       time.Time // reconnection deadline while pending
}

type pendingSession struct {
	session *Session
	handle  Handle
}

// SessionRegistry owns connection-identity bindings and the disconnect
// grace window. It never decides match outcomes: on expiry it signals the
// directory's abandonment policy through onExpire.
type SessionRegistry struct {
	mu        sync.Mutex
	scheduler Scheduler
	grace     time.Duration
	live      map[string]*Session        // participantID -> session
	byConn    map[string]string          // connectionID -> participantID
	pending   map[string]*pendingSession // participantID -> pending entry
	onExpire  func(participantID, matchID string)
}

func NewSessionRegistry(scheduler Scheduler, grace time.Duration) *SessionRegistry {
	return &SessionRegistry{
		scheduler: scheduler,
		grace:     grace,
		live:      make(map[string]*Session),
		byConn:    make(map[string]string),
		pending:   make(map[string]*pendingSession),
	}
}

// OnExpire installs the grace-window expiry callback. Must be set before
// traffic arrives.
func (sr *SessionRegistry) OnExpire(fn func(participantID, matchID string)) {
	sr.onExpire = fn
}

// Register binds an identity to a connection. A second live binding for
// the same identity is rejected; a pending one is silently resumed, which
// covers a client that reconnects with a fresh handshake instead of an
// explicit reconnect message.
func (sr *SessionRegistry) Register(connectionID, participantID, username string) (*Session, error) {
	sr.mu.Lock()
	defer sr.mu.Unlock()

	if _, exists := sr.live[participantID]; exists {
		return nil, errors.New("DUPLICATE_SESSION: identity already has a live connection")
	}

	if entry, ok := sr.pending[participantID]; ok {
		entry.handle.Cancel()
		delete(sr.pending, participantID)
		return sr.bindLocked(entry.session, connectionID), nil
	}

	session := &Session{
		ParticipantID: participantID,
		Username:      username,
	}
	return sr.bindLocked(session, connectionID), nil
}

func (sr *SessionRegistry) bindLocked(session *Session, connectionID string) *Session {
	session.ConnectionID = connectionID
	session.ConnectedAt = time.Now()
	session.DisconnectedAt = time.Time{}
	session.Deadline = time.Time{}
	sr.live[session.ParticipantID] = session
	sr.byConn[connectionID] = session.ParticipantID
	return session
}

// AttachMatch records which match the identity is part of.
func (sr *SessionRegistry) AttachMatch(participantID, matchID string) {
	sr.mu.Lock()
	defer sr.mu.Unlock()
	if session, ok := sr.live[participantID]; ok {
		session.MatchID = matchID
	}
}

// DetachMatch clears the match binding on explicit leave.
func (sr *SessionRegistry) DetachMatch(participantID string) {
	sr.mu.Lock()
	defer sr.mu.Unlock()
	if session, ok := sr.live[participantID]; ok {
		session.MatchID = ""
	}
}

// Get returns the live session for an identity.
func (sr *SessionRegistry) Get(participantID string) (*Session, bool) {
	sr.mu.Lock()
	defer sr.mu.Unlock()
	session, ok := sr.live[participantID]
	return session, ok
}

// SessionForConnection resolves the identity bound to a connection.
func (sr *SessionRegistry) SessionForConnection(connectionID string) (*Session, bool) {
	sr.mu.Lock()
	defer sr.mu.Unlock()
	participantID, ok := sr.byConn[connectionID]
	if !ok {
		return nil, false
	}
	session, ok := sr.live[participantID]
	return session, ok
}

// Disconnect moves a live session into the pending-reconnection set and
// arms the grace timer. Match state is left untouched; the opponent may
// keep playing. Returns the session so the caller can notify
// co-participants, and false when the connection had no binding.
func (sr *SessionRegistry) Disconnect(connectionID string) (*Session, bool) {
	sr.mu.Lock()
	defer sr.mu.Unlock()

	participantID, ok := sr.byConn[connectionID]
	if !ok {
		return nil, false
	}
	session, ok := sr.live[participantID]
	if !ok || session.ConnectionID != connectionID {
		return nil, false
	}

	delete(sr.byConn, connectionID)
	delete(sr.live, participantID)

	now := time.Now()
	session.DisconnectedAt = now
	session.Deadline = now.Add(sr.grace)
	session.ConnectionID = ""

	entry := &pendingSession{session: session}
	entry.handle = sr.scheduler.Schedule(sr.grace, func() {
		sr.expire(participantID)
	})
	sr.pending[participantID] = entry

	return session, true
}

// Reconnect rebinds a pending identity to a new connection within the
// grace window. Outside the window there is nothing to resume.
func (sr *SessionRegistry) Reconnect(connectionID, participantID string) (*Session, error) {
	sr.mu.Lock()
	defer sr.mu.Unlock()

	if _, exists := sr.live[participantID]; exists {
		return nil, errors.New("DUPLICATE_SESSION: identity already has a live connection")
	}

	entry, ok := sr.pending[participantID]
	if !ok {
		return nil, errors.New("NO_PENDING_SESSION: nothing to reconnect to")
	}
	if time.Now().After(entry.session.Deadline) {
		// The expiry timer will clean up; treat as gone already.
		return nil, errors.New("NO_PENDING_SESSION: grace window expired")
	}

	entry.handle.Cancel()
	delete(sr.pending, participantID)
	return sr.bindLocked(entry.session, connectionID), nil
}

// Remove drops an identity entirely, live or pending. Used on explicit
// leave.
func (sr *SessionRegistry) Remove(participantID string) {
	sr.mu.Lock()
	defer sr.mu.Unlock()

	if session, ok := sr.live[participantID]; ok {
		delete(sr.byConn, session.ConnectionID)
		delete(sr.live, participantID)
	}
	if entry, ok := sr.pending[participantID]; ok {
		entry.handle.Cancel()
		delete(sr.pending, participantID)
	}
}

func (sr *SessionRegistry) expire(participantID string) {
	sr.mu.Lock()
	entry, ok := sr.pending[participantID]
	if !ok {
		sr.mu.Unlock()
		return
	}
	delete(sr.pending, participantID)
	matchID := entry.session.MatchID
	sr.mu.Unlock()

	log.Printf("Session for %s expired after grace window", participantID)
	if sr.onExpire != nil {
		sr.onExpire(participantID, matchID)
	}
}
