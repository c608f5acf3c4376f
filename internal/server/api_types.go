package server

// ============================================================================
// ERROR RESPONSES
// ============================================================================
// tygo:generate
type ErrorMessage struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// ============================================================================
// AUTHENTICATE (authenticate)
// ============================================================================
// tygo:generate
type AuthenticateRequest struct {
	Username      string `json:"username"`
	ParticipantID string `json:"participantId,omitempty"` // blank on first connect
}

// tygo:generate
type AuthenticateResponse struct {
	ParticipantID string `json:"participantId"`
	Username      string `json:"username"`
}

// ============================================================================
// CREATE GAME (create_game)
// ============================================================================
// tygo:generate
type CreateGameRequest struct {
	Name       string `json:"name,omitempty"`
	Visibility string `json:"visibility,omitempty"` // public (default) or private
	Passphrase string `json:"passphrase,omitempty"`
	HandSize   int    `json:"handSize,omitempty"` // 3 (default) or 9
	WinsNeeded int    `json:"winsNeeded,omitempty"`
	Stake      int64  `json:"stake,omitempty"`
	AgainstBot bool   `json:"againstBot"`
}

// tygo:generate
type CreateGameResponse struct {
	MatchID  string `json:"matchId"`
	JoinCode string `json:"joinCode"`
	Seat     int    `json:"seat"`
}

// ============================================================================
// JOIN GAME (join_game)
// ============================================================================
// tygo:generate
type JoinGameRequest struct {
	Room       string `json:"room"` // match id or join code
	Passphrase string `json:"passphrase,omitempty"`
}

// tygo:generate
type JoinGameResponse struct {
	MatchID string `json:"matchId"`
	Seat    int    `json:"seat"`
}

// ============================================================================
// SPECTATE GAME (spectate_game)
// ============================================================================
// tygo:generate
type SpectateGameRequest struct {
	Room       string `json:"room"`
	Passphrase string `json:"passphrase,omitempty"`
}

// ============================================================================
// RECONNECT (reconnect)
// ============================================================================
// tygo:generate
type ReconnectRequest struct {
	ParticipantID string `json:"participantId"`
}

// tygo:generate
type ReconnectResponse struct {
	MatchID string `json:"matchId,omitempty"`
	Seat    int    `json:"seat"`
	Message string `json:"message,omitempty"`
}

// ============================================================================
// PLAY CARD (play_card)
// ============================================================================
// tygo:generate
type PlayCardRequest struct {
	Card string `json:"card"` // face notation, e.g. "AH"
}

// ============================================================================
// LIST ROOMS (list_rooms)
// ============================================================================
// tygo:generate
type ListRoomsResponse struct {
	Rooms []RoomSummary `json:"rooms"`
}

// ============================================================================
// MATCH STATE (match_state)
// ============================================================================
// Personalized per recipient: only your own hand is dealt face up.
// tygo:generate
type MatchStateMessage struct {
	MatchID       string       `json:"matchId"`
	State         string       `json:"state"`
	GameNumber    int          `json:"gameNumber"`
	YourSeat      int          `json:"yourSeat"` // -1 for spectators
	Turn          int          `json:"turn"`
	Trump         string       `json:"trump"`
	DeckCount     int          `json:"deckCount"`
	Hand          []string     `json:"hand"`
	HandCounts    [2]int       `json:"handCounts"`
	Trick         []TrickEntry `json:"trick"`
	Points        [2]int       `json:"points"`
	Marks         [2]int       `json:"marks"`
	Players       [2]SeatInfo  `json:"players"`
}

// tygo:generate
type SeatInfo struct {
	Username  string `json:"username"`
	Bot       bool   `json:"bot"`
	Connected bool   `json:"connected"`
}

// tygo:generate
type TrickEntry struct {
	Seat int    `json:"seat"`
	Card string `json:"card"`
}

// ============================================================================
// PLAY NOTIFICATIONS
// ============================================================================
// tygo:generate
type CardPlayedNotification struct {
	MatchID string `json:"matchId"`
	Seat    int    `json:"seat"`
	Card    string `json:"card"`
	Forced  bool   `json:"forced,omitempty"`
	Next    int    `json:"next"`
}

// tygo:generate
type TrickResolvedNotification struct {
	MatchID string `json:"matchId"`
	Winner  int    `json:"winner"`
	Points  int    `json:"points"`
	Totals  [2]int `json:"totals"`
}

// tygo:generate
type GameEndedNotification struct {
	MatchID    string `json:"matchId"`
	GameNumber int    `json:"gameNumber"`
	Winner     int    `json:"winner"` // -1 on a draw
	Draw       bool   `json:"draw"`
	Tier       string `json:"tier"`
	Marks      int    `json:"marks"`
	Totals     [2]int `json:"totals"`
	MarkTotals [2]int `json:"markTotals"`
	Continues  bool   `json:"continues"` // false when match_ended follows
}

// tygo:generate
type MatchEndedNotification struct {
	MatchID    string `json:"matchId"`
	Winner     int    `json:"winner"`
	WinnerName string `json:"winnerName"`
	MarkTotals [2]int `json:"markTotals"`
	Reason     string `json:"reason,omitempty"` // blank for a played-out match
}

// tygo:generate
type MatchAbortedNotification struct {
	MatchID string `json:"matchId"`
	Reason  string `json:"reason"`
}

// ============================================================================
// PRESENCE NOTIFICATIONS
// ============================================================================
// tygo:generate
type PlayerStatusNotification struct {
	Seat      int    `json:"seat"`
	Username  string `json:"username"`
	Connected bool   `json:"connected"`
	Deadline  int64  `json:"deadline,omitempty"` // unix ms, set while disconnected
}

// tygo:generate
type RoomWarningNotification struct {
	Message string `json:"message"`
}
