package server

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"bisca-server/internal/bisca"
)

func (s *Server) RegisterRoutes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", s.healthHandler)
	mux.HandleFunc("/websocket", s.websocketHandler)

	return s.corsMiddleware(mux)
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Authorization, Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	resp, err := json.Marshal(s.db.Health())
	if err != nil {
		http.Error(w, "Failed to marshal health check response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if _, err := w.Write(resp); err != nil {
		log.Printf("Failed to write response: %v", err)
	}
}

func (s *Server) websocketHandler(w http.ResponseWriter, r *http.Request) {
	socket, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"}, // TODO: make environment-specific
	})
	if err != nil {
		http.Error(w, "Failed to open websocket", http.StatusInternalServerError)
		return
	}
	defer socket.Close(websocket.StatusGoingAway, "Server closing")

	ctx := r.Context()

	connectionID := uuid.New().String()
	log.Printf("New connection: %s", connectionID)
	s.connections.AddConnection(connectionID, socket)

	defer func() {
		s.limiter.RemoveConnection(connectionID)
		session, pending := s.sessions.Disconnect(connectionID)
		s.connections.RemoveConnection(connectionID)
		log.Printf("Connection closed: %s", connectionID)

		if !pending || session.MatchID == "" {
			return
		}
		room, err := s.directory.Get(session.MatchID)
		if err != nil {
			return
		}

		room.Mu.Lock()
		seat, seated := room.Match.SeatOf(session.ParticipantID)
		room.Mu.Unlock()
		if !seated {
			return
		}

		log.Printf("Player %s disconnected from match %s, reconnect window until %s",
			session.Username, session.MatchID, session.Deadline.Format(time.RFC3339))
		s.broadcaster.Publish(session.MatchID, "player_disconnected", PlayerStatusNotification{
			Seat:      int(seat),
			Username:  session.Username,
			Connected: false,
			Deadline:  session.Deadline.UnixMilli(),
		})
	}()

	for {
		msgType, data, err := socket.Read(ctx)
		if err != nil {
			log.Printf("Connection %s read error: %v", connectionID, err)
			return
		}

		if msgType != websocket.MessageText {
			log.Printf("Non-text input from %s", connectionID)
			continue
		}

		if !s.limiter.Allow(connectionID) {
			s.sendError(socket, ctx, "RATE_LIMITED: too many messages, slow down")
			continue
		}

		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			log.Printf("Invalid JSON from %s: %v", connectionID, err)
			s.sendError(socket, ctx, "Invalid JSON")
			continue
		}

		if err := ValidateMessageType(msg.Type); err != nil {
			log.Printf("Unknown message type '%s' from %s", msg.Type, connectionID)
			s.sendError(socket, ctx, err.Error())
			continue
		}

		log.Printf("Message Type '%s' from %s", msg.Type, connectionID)

		switch msg.Type {
		case "ping":
			s.handlePing(socket, ctx, connectionID)

		case "authenticate":
			s.handleAuthenticate(socket, ctx, connectionID, msg.Payload)

		case "create_game":
			s.handleCreateGame(socket, ctx, connectionID, msg.Payload)

		case "join_game":
			s.handleJoinGame(socket, ctx, connectionID, msg.Payload)

		case "spectate_game":
			s.handleSpectateGame(socket, ctx, connectionID, msg.Payload)

		case "reconnect":
			s.handleReconnect(socket, ctx, connectionID, msg.Payload)

		case "play_card":
			s.handlePlayCard(socket, ctx, connectionID, msg.Payload)

		case "leave_game":
			s.handleLeaveGame(socket, ctx, connectionID)

		case "list_rooms":
			s.handleListRooms(socket, ctx)
		}
	}
}

func (s *Server) handlePing(socket *websocket.Conn, ctx context.Context, connectionID string) {
	response := ServerMessage{
		Type:    "pong",
		Payload: struct{}{},
	}
	if err := sendMessage(socket, ctx, response); err != nil {
		log.Printf("Failed to send pong to %s: %v", connectionID, err)
	}
}

func (s *Server) sendError(socket *websocket.Conn, ctx context.Context, msg string) {
	response := ServerMessage{
		Type: "error",
		Payload: ErrorMessage{
			Message: msg,
		},
	}
	if err := sendMessage(socket, ctx, response); err != nil {
		log.Printf("Failed to send error message: %v", err)
	}
}

// requireSession resolves the authenticated identity for a connection.
func (s *Server) requireSession(socket *websocket.Conn, ctx context.Context, connectionID string) (*Session, bool) {
	session, ok := s.sessions.SessionForConnection(connectionID)
	if !ok {
		s.sendError(socket, ctx, "NOT_AUTHENTICATED: authenticate first")
		return nil, false
	}
	return session, true
}

func (s *Server) handleAuthenticate(socket *websocket.Conn, ctx context.Context, connectionID string, payload json.RawMessage) {
	var req AuthenticateRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		s.sendError(socket, ctx, "Invalid authenticate payload")
		return
	}
	if err := ValidateUsername(req.Username); err != nil {
		s.sendError(socket, ctx, err.Error())
		return
	}

	participantID := req.ParticipantID
	if participantID == "" {
		participantID = uuid.New().String()
	}

	session, err := s.sessions.Register(connectionID, participantID, req.Username)
	if err != nil {
		s.sendError(socket, ctx, err.Error())
		return
	}
	s.evictPreviousConnection(s.connections.BindParticipant(connectionID, participantID))

	response := ServerMessage{
		Type: "authenticated",
		Payload: AuthenticateResponse{
			ParticipantID: participantID,
			Username:      session.Username,
		},
	}
	if err := sendMessage(socket, ctx, response); err != nil {
		log.Printf("Failed to send authenticated to %s: %v", connectionID, err)
		return
	}

	// A fresh handshake from a player inside the grace window resumes
	// their match without an explicit reconnect message. After a process
	// restart the directory may hold a restored match for this identity
	// before the registry does.
	if session.MatchID == "" {
		if room, err := s.directory.RoomFor(session.ParticipantID); err == nil {
			s.sessions.AttachMatch(session.ParticipantID, room.Match.ID)
		}
	}
	if session.MatchID != "" {
		s.resumeMatch(socket, ctx, session)
	}
}

// evictPreviousConnection closes the socket an identity was bound to
// before connecting again from elsewhere.
func (s *Server) evictPreviousConnection(oldConnectionID string) {
	if oldConnectionID == "" {
		return
	}
	if oldConn := s.connections.GetConnection(oldConnectionID); oldConn != nil {
		sendMessage(oldConn, context.Background(), ServerMessage{
			Type: "disconnected_elsewhere",
			Payload: struct {
				Message string `json:"message"`
			}{
				Message: "You connected on another device",
			},
		})
		oldConn.Close(websocket.StatusNormalClosure, "Connected from another device")
	}
	s.connections.RemoveConnection(oldConnectionID)
}

// resumeMatch pushes the current state to a returning player and tells
// the room they are back.
func (s *Server) resumeMatch(socket *websocket.Conn, ctx context.Context, session *Session) {
	room, err := s.directory.Get(session.MatchID)
	if err != nil {
		return
	}

	room.Mu.Lock()
	seat, seated := room.Match.SeatOf(session.ParticipantID)
	state := s.matchStateLocked(room, session.ParticipantID)
	room.Mu.Unlock()

	if err := sendMessage(socket, ctx, ServerMessage{Type: "match_state", Payload: state}); err != nil {
		log.Printf("Failed to send match_state to %s: %v", session.ParticipantID, err)
	}
	if seated {
		s.broadcaster.Publish(session.MatchID, "player_reconnected", PlayerStatusNotification{
			Seat:      int(seat),
			Username:  session.Username,
			Connected: true,
		})
		s.wakeRoom(room)
	}
}

// wakeRoom arms the turn machinery for a room restored from a durable
// snapshot, the first time one of its players comes back. Rooms that were
// never dormant are untouched.
func (s *Server) wakeRoom(room *Room) {
	room.Mu.Lock()
	dormant := room.Dormant
	room.Dormant = false
	room.Mu.Unlock()

	if dormant {
		s.scheduleNext(room)
	}
}

func (s *Server) handleCreateGame(socket *websocket.Conn, ctx context.Context, connectionID string, payload json.RawMessage) {
	var req CreateGameRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		s.sendError(socket, ctx, "Invalid create_game payload")
		return
	}
	session, ok := s.requireSession(socket, ctx, connectionID)
	if !ok {
		return
	}

	cfg := bisca.Config{
		HandSize:   req.HandSize,
		WinsNeeded: req.WinsNeeded,
	}
	if cfg.HandSize == 0 {
		cfg.HandSize = 3
	}
	if cfg.WinsNeeded == 0 {
		cfg.WinsNeeded = s.cfg.DefaultWinsNeeded
	}

	opts := RoomOptions{
		Name:       req.Name,
		Visibility: Visibility(req.Visibility),
		Passphrase: req.Passphrase,
		Stake:      req.Stake,
	}
	if opts.Visibility != VisibilityPrivate {
		opts.Visibility = VisibilityPublic
	}

	initiator := bisca.Participant{ID: session.ParticipantID, Name: session.Username}
	var opponent *bisca.Participant
	if !req.AgainstBot {
		// Open seat; a nil opponent would attach the bot.
		opponent = &bisca.Participant{}
	}

	room, err := s.directory.CreateGame(initiator, opponent, cfg, opts)
	if err != nil {
		s.sendError(socket, ctx, err.Error())
		return
	}
	s.sessions.AttachMatch(session.ParticipantID, room.Match.ID)

	response := ServerMessage{
		Type: "game_created",
		Payload: CreateGameResponse{
			MatchID:  room.Match.ID,
			JoinCode: room.Code,
			Seat:     int(bisca.SeatA),
		},
	}
	if err := sendMessage(socket, ctx, response); err != nil {
		log.Printf("Failed to send game_created: %v", err)
		return
	}

	if req.AgainstBot {
		s.beginMatch(room)
	}
}

func (s *Server) handleJoinGame(socket *websocket.Conn, ctx context.Context, connectionID string, payload json.RawMessage) {
	var req JoinGameRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		s.sendError(socket, ctx, "Invalid join_game payload")
		return
	}
	session, ok := s.requireSession(socket, ctx, connectionID)
	if !ok {
		return
	}

	joiner := bisca.Participant{ID: session.ParticipantID, Name: session.Username}
	room, seat, err := s.directory.JoinGame(req.Room, joiner, req.Passphrase)
	if err != nil {
		s.sendError(socket, ctx, err.Error())
		return
	}
	s.sessions.AttachMatch(session.ParticipantID, room.Match.ID)

	response := ServerMessage{
		Type: "game_joined",
		Payload: JoinGameResponse{
			MatchID: room.Match.ID,
			Seat:    int(seat),
		},
	}
	if err := sendMessage(socket, ctx, response); err != nil {
		log.Printf("Failed to send game_joined: %v", err)
		return
	}

	// Two seated players: the match starts immediately.
	s.beginMatch(room)
}

func (s *Server) handleSpectateGame(socket *websocket.Conn, ctx context.Context, connectionID string, payload json.RawMessage) {
	var req SpectateGameRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		s.sendError(socket, ctx, "Invalid spectate_game payload")
		return
	}
	session, ok := s.requireSession(socket, ctx, connectionID)
	if !ok {
		return
	}

	room, err := s.directory.Spectate(req.Room, session.ParticipantID, session.Username, req.Passphrase)
	if err != nil {
		s.sendError(socket, ctx, err.Error())
		return
	}
	s.sessions.AttachMatch(session.ParticipantID, room.Match.ID)

	room.Mu.Lock()
	state := s.matchStateLocked(room, session.ParticipantID)
	room.Mu.Unlock()

	if err := sendMessage(socket, ctx, ServerMessage{Type: "match_state", Payload: state}); err != nil {
		log.Printf("Failed to send match_state to spectator: %v", err)
	}
}

func (s *Server) handleReconnect(socket *websocket.Conn, ctx context.Context, connectionID string, payload json.RawMessage) {
	var req ReconnectRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		s.sendError(socket, ctx, "Invalid reconnect payload")
		return
	}

	session, err := s.sessions.Reconnect(connectionID, req.ParticipantID)
	if err != nil {
		s.sendError(socket, ctx, err.Error())
		return
	}
	s.evictPreviousConnection(s.connections.BindParticipant(connectionID, req.ParticipantID))

	seat := -1
	if session.MatchID != "" {
		if room, err := s.directory.Get(session.MatchID); err == nil {
			room.Mu.Lock()
			if st, seated := room.Match.SeatOf(session.ParticipantID); seated {
				seat = int(st)
			}
			room.Mu.Unlock()
		}
	}

	response := ServerMessage{
		Type: "reconnected",
		Payload: ReconnectResponse{
			MatchID: session.MatchID,
			Seat:    seat,
			Message: "Successfully reconnected",
		},
	}
	if err := sendMessage(socket, ctx, response); err != nil {
		log.Printf("Failed to send reconnected response: %v", err)
	}

	if session.MatchID != "" {
		s.resumeMatch(socket, ctx, session)
	}
}

func (s *Server) handlePlayCard(socket *websocket.Conn, ctx context.Context, connectionID string, payload json.RawMessage) {
	var req PlayCardRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		s.sendError(socket, ctx, "Invalid play_card payload")
		return
	}
	session, ok := s.requireSession(socket, ctx, connectionID)
	if !ok {
		return
	}

	room, err := s.directory.RoomFor(session.ParticipantID)
	if err != nil {
		s.sendError(socket, ctx, err.Error())
		return
	}

	room.Mu.Lock()
	seat, seated := room.Match.SeatOf(session.ParticipantID)
	room.Mu.Unlock()
	if !seated {
		s.sendError(socket, ctx, "SPECTATOR_CANNOT_PLAY: spectators only watch")
		return
	}

	if err := s.applyPlay(room, seat, req.Card, false); err != nil {
		s.sendError(socket, ctx, err.Error())
	}
}

func (s *Server) handleLeaveGame(socket *websocket.Conn, ctx context.Context, connectionID string) {
	session, ok := s.requireSession(socket, ctx, connectionID)
	if !ok {
		return
	}

	room, err := s.directory.RoomFor(session.ParticipantID)
	if err != nil {
		s.sendError(socket, ctx, err.Error())
		return
	}
	matchID := room.Match.ID

	room.Mu.Lock()
	seat, seated := room.Match.SeatOf(session.ParticipantID)
	var abandonWinner bisca.Seat
	abandoned := false
	if seated && room.Match.State != bisca.StateInit && !room.Match.Finished {
		if winner, err := room.Match.Abandon(seat); err == nil {
			abandonWinner = winner
			abandoned = true
		}
	}
	room.Mu.Unlock()

	_, empty, leaveErr := s.directory.Leave(matchID, session.ParticipantID)
	s.sessions.DetachMatch(session.ParticipantID)

	response := ServerMessage{
		Type: "game_left",
		Payload: struct {
			MatchID string `json:"matchId"`
		}{MatchID: matchID},
	}
	if err := sendMessage(socket, ctx, response); err != nil {
		log.Printf("Failed to send game_left: %v", err)
	}

	if abandoned {
		log.Printf("Player %s forfeited match %s", session.Username, matchID)
		s.finishMatch(room, abandonWinner, "forfeit")
		return
	}
	if leaveErr == nil {
		seatIdx := -1
		if seated {
			seatIdx = int(seat)
		}
		s.broadcaster.Publish(matchID, "player_left", PlayerStatusNotification{
			Seat:      seatIdx,
			Username:  session.Username,
			Connected: false,
		})
		if empty {
			s.directory.RemoveGame(matchID)
		}
	}
}

func (s *Server) handleListRooms(socket *websocket.Conn, ctx context.Context) {
	response := ServerMessage{
		Type: "rooms_list",
		Payload: ListRoomsResponse{
			Rooms: s.directory.ListRooms(),
		},
	}
	if err := sendMessage(socket, ctx, response); err != nil {
		log.Printf("Failed to send rooms_list: %v", err)
	}
}

// beginMatch deals the first game and kicks off the turn machinery. A
// second call is a no-op because Start rejects non-init state.
func (s *Server) beginMatch(room *Room) {
	room.Mu.Lock()
	err := room.Match.Start()
	matchID := room.Match.ID
	stake := room.Options.Stake
	var playerIDs []string
	for _, p := range room.Match.Players {
		if p.ID != "" && !p.Bot {
			playerIDs = append(playerIDs, p.ID)
		}
	}
	room.Mu.Unlock()

	if err != nil {
		return
	}
	log.Printf("Match %s started", matchID)

	if stake > 0 {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := s.ledger.Reserve(ctx, matchID, playerIDs, stake); err != nil {
				log.Printf("Ledger reserve failed for match %s: %v", matchID, err)
				s.warnRoom(matchID, "Stake reservation failed; the match continues unstaked")
			}
		}()
	}

	s.broadcastMatchState(room)
	s.scheduleNext(room)
}

// applyPlay is the single mutation path for plays: player messages, turn
// timeouts and bot moves all come through here. It holds the room lock
// for the mutation only; every broadcast happens after release.
func (s *Server) applyPlay(room *Room, seat bisca.Seat, face string, forced bool) error {
	m := room.Match
	matchID := m.ID

	room.Mu.Lock()

	var result *bisca.PlayResult
	outcome, fallback, opErr := s.recovery.Protect(m, func() error {
		var perr error
		if forced {
			result, perr = m.ForceLowestPlay(seat)
		} else {
			result, perr = m.PlayCard(seat, face)
		}
		return perr
	})

	if opErr != nil && outcome == OutcomeResumed {
		// Clean rejection; nothing changed.
		room.Mu.Unlock()
		return opErr
	}

	if room.Brain != nil {
		switch {
		case outcome == OutcomeResumed && result != nil:
			room.Brain.Observe(result.Played.Card)
		case outcome == OutcomeFallback && fallback != nil:
			room.Brain.Observe(fallback.Played.Card)
		}
	}
	room.UpdatedAt = time.Now()

	mcopy := *m
	room.Mu.Unlock()

	if outcome == OutcomeAborted {
		s.abortMatch(room, opErr)
		return opErr
	}

	if outcome != OutcomeResumed {
		s.broadcaster.Publish(matchID, "match_recovery", RecoveryNotice{
			MatchID: matchID,
			Outcome: outcome,
			Detail:  opErr.Error(),
		})
		s.broadcastMatchState(room)
		s.scheduleNext(room)
		return nil
	}

	s.broadcaster.Publish(matchID, "card_played", CardPlayedNotification{
		MatchID: matchID,
		Seat:    int(result.Played.Seat),
		Card:    result.Played.Card.Face(),
		Forced:  forced,
		Next:    int(mcopy.Turn),
	})

	if result.TrickDone {
		s.broadcaster.Publish(matchID, "trick_resolved", TrickResolvedNotification{
			MatchID: matchID,
			Winner:  int(result.TrickWinner),
			Points:  result.TrickPoints,
			Totals:  mcopy.Points,
		})
	}

	if result.GameOver {
		s.announceGameOver(room, &mcopy, result)
	}

	s.broadcastMatchState(room)

	if result.MatchOver {
		s.finishMatch(room, result.MatchWinner, "")
		return nil
	}
	if result.GameOver {
		// Pause between games, then re-deal.
		s.turnTimers.Cancel(matchID)
		s.bots.Cancel(matchID)
		s.scheduler.Schedule(s.cfg.NextGameDelay, func() {
			s.startNextGame(matchID)
		})
		return nil
	}

	s.scheduleNext(room)
	return nil
}

func (s *Server) announceGameOver(room *Room, mcopy *bisca.Match, result *bisca.PlayResult) {
	winner := -1
	tier, marks := "", 0
	if result.GameResult != nil {
		tier = result.GameResult.Tier
		marks = result.GameResult.Marks
	}
	if !result.Draw {
		winner = int(result.GameWinner)
	}

	s.broadcaster.Publish(mcopy.ID, "game_ended", GameEndedNotification{
		MatchID:    mcopy.ID,
		GameNumber: mcopy.GameNumber,
		Winner:     winner,
		Draw:       result.Draw,
		Tier:       tier,
		Marks:      marks,
		Totals:     mcopy.Points,
		MarkTotals: mcopy.Marks,
		Continues:  !result.MatchOver,
	})

	if s.results == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.results.SaveGameResult(ctx, mcopy, result); err != nil {
			log.Printf("Failed to persist game result for match %s: %v", mcopy.ID, err)
			s.warnRoom(mcopy.ID, "Game result could not be saved")
		}
	}()
}

// abortMatch terminates a match whose state is beyond repair. The room
// gets an explicit abnormal-termination notice, stakes are refunded, and
// the directory entry is removed.
func (s *Server) abortMatch(room *Room, cause error) {
	matchID := room.Match.ID
	log.Printf("Match %s terminated abnormally: %v", matchID, cause)

	s.broadcaster.Publish(matchID, "match_aborted", MatchAbortedNotification{
		MatchID: matchID,
		Reason:  cause.Error(),
	})

	if s.ledger != nil {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := s.ledger.Refund(ctx, matchID); err != nil {
				log.Printf("Ledger refund failed for aborted match %s: %v", matchID, err)
			}
		}()
	}

	for _, id := range s.directory.MemberIDs(matchID) {
		s.sessions.DetachMatch(id)
	}
	s.directory.RemoveGame(matchID)
}

// finishMatch settles and tears the room down. Reason is blank for a
// played-out match.
func (s *Server) finishMatch(room *Room, winner bisca.Seat, reason string) {
	matchID := room.Match.ID

	room.Mu.Lock()
	mcopy := *room.Match
	room.Mu.Unlock()

	winnerName := mcopy.Players[winner].Name
	winnerID := mcopy.Players[winner].ID
	log.Printf("Match %s over, winner %s (marks %d-%d)",
		matchID, winnerName, mcopy.Marks[bisca.SeatA], mcopy.Marks[bisca.SeatB])

	s.broadcaster.Publish(matchID, "match_ended", MatchEndedNotification{
		MatchID:    matchID,
		Winner:     int(winner),
		WinnerName: winnerName,
		MarkTotals: mcopy.Marks,
		Reason:     reason,
	})

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if s.results != nil {
			if err := s.results.SaveMatchResult(ctx, &mcopy, winner); err != nil {
				log.Printf("Failed to persist match result for %s: %v", matchID, err)
			}
		}
		if s.ledger == nil {
			return
		}
		if mcopy.Players[winner].Bot || winnerID == "" {
			if err := s.ledger.Refund(ctx, matchID); err != nil {
				log.Printf("Ledger refund failed for match %s: %v", matchID, err)
			}
			return
		}
		if err := s.ledger.Settle(ctx, matchID, winnerID); err != nil {
			log.Printf("Ledger settle failed for match %s: %v", matchID, err)
		}
	}()

	for _, id := range s.directory.MemberIDs(matchID) {
		s.sessions.DetachMatch(id)
	}
	s.directory.RemoveGame(matchID)
}

// startNextGame re-deals after the between-games pause.
func (s *Server) startNextGame(matchID string) {
	room, err := s.directory.Get(matchID)
	if err != nil {
		return
	}

	room.Mu.Lock()
	err = room.Match.StartNewGame()
	if err == nil && room.Brain != nil {
		room.Brain.Reset()
	}
	gameNumber := room.Match.GameNumber
	room.Mu.Unlock()

	if err != nil {
		return
	}
	log.Printf("Match %s: game %d dealt", matchID, gameNumber)

	s.broadcastMatchState(room)
	s.scheduleNext(room)
}

// scheduleNext arms whichever actor owns the new turn: the bot scheduler
// for a synthetic seat, the turn timer for a human.
func (s *Server) scheduleNext(room *Room) {
	matchID := room.Match.ID

	room.Mu.Lock()
	state := room.Match.State
	turn := room.Match.Turn
	botSeat, hasBot := room.Match.BotSeat()
	room.Mu.Unlock()

	if state != bisca.StateInProgress {
		s.turnTimers.Cancel(matchID)
		s.bots.Cancel(matchID)
		return
	}

	if hasBot && turn == botSeat {
		s.turnTimers.Cancel(matchID)
		s.bots.Trigger(matchID)
		return
	}

	s.bots.Cancel(matchID)
	s.turnTimers.Start(matchID, turn)
}

func (s *Server) warnRoom(matchID, message string) {
	s.broadcaster.Publish(matchID, "room_warning", RoomWarningNotification{
		Message: message,
	})
}

// matchStateLocked builds the personalized projection: your own hand face
// up, everyone else's as counts. Caller holds the room lock.
func (s *Server) matchStateLocked(room *Room, forParticipant string) MatchStateMessage {
	m := room.Match

	yourSeat := -1
	var hand []string
	if seat, seated := m.SeatOf(forParticipant); seated {
		yourSeat = int(seat)
		hand = make([]string, 0, len(m.Hands[seat]))
		for _, c := range m.Hands[seat] {
			hand = append(hand, c.Face())
		}
	}

	trump := ""
	deckCount := 0
	if m.State != bisca.StateInit {
		trump = m.Trump.Face()
		deckCount = m.Deck.Count()
	}

	trick := make([]TrickEntry, 0, len(m.Trick))
	for _, p := range m.Trick {
		trick = append(trick, TrickEntry{Seat: int(p.Seat), Card: p.Card.Face()})
	}

	var players [2]SeatInfo
	for i, p := range m.Players {
		connected := p.Bot
		if !p.Bot && p.ID != "" {
			_, connected = s.sessions.Get(p.ID)
		}
		players[i] = SeatInfo{
			Username:  p.Name,
			Bot:       p.Bot,
			Connected: connected,
		}
	}

	return MatchStateMessage{
		MatchID:    m.ID,
		State:      string(m.State),
		GameNumber: m.GameNumber,
		YourSeat:   yourSeat,
		Turn:       int(m.Turn),
		Trump:      trump,
		DeckCount:  deckCount,
		Hand:       hand,
		HandCounts: [2]int{len(m.Hands[bisca.SeatA]), len(m.Hands[bisca.SeatB])},
		Trick:      trick,
		Points:     m.Points,
		Marks:      m.Marks,
		Players:    players,
	}
}

// broadcastMatchState sends each member their own projection.
func (s *Server) broadcastMatchState(room *Room) {
	ids := s.directory.MemberIDs(room.Match.ID)

	room.Mu.Lock()
	states := make(map[string]MatchStateMessage, len(ids))
	for _, id := range ids {
		states[id] = s.matchStateLocked(room, id)
	}
	room.Mu.Unlock()

	for id, state := range states {
		conn := s.connections.ConnectionFor(id)
		if conn == nil {
			continue
		}
		msg := ServerMessage{Type: "match_state", Payload: state}
		if err := sendMessage(conn, context.Background(), msg); err != nil {
			log.Printf("Failed to send match_state to %s: %v", id, err)
		}
	}
}
