package server

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"bisca-server/internal/bisca"
)

type Visibility string

const (
	VisibilityPublic  Visibility = "public"
	VisibilityPrivate Visibility = "private"
)

type RoomOptions struct {
	Name       string
	Visibility Visibility
	Passphrase string
	Capacity   int   // total occupants: players plus spectators
	Stake      int64 // per-player stake reserved at match start
}

const defaultRoomCapacity = 10

// Room wraps one match with its multiplayer metadata. The mutex is the
// single-writer discipline for the match: every mutating path (player
// event, turn timeout, bot attempt, recovery) holds it, so events for one
// match are processed one at a time while distinct matches run in
// parallel.
type Room struct {
	Mu         sync.Mutex
	Code       string
	Match      *bisca.Match
	Options    RoomOptions
	Host       string // participant id; creator by default
	Spectators map[string]string
	Brain      *bisca.Brain // bot card memory, nil in pvp matches
	Dormant    bool         // restored from a snapshot, timers unarmed until a player returns
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (r *Room) playerCount() int {
	count := 0
	for _, p := range r.Match.Players {
		if p.ID != "" && !p.Bot {
			count++
		}
	}
	return count
}

func (r *Room) occupants() int {
	return r.playerCount() + len(r.Spectators)
}

// GameDirectory owns match creation, lookup and removal, the
// player-to-match mapping, and room membership.
type GameDirectory struct {
	mu        sync.RWMutex
	rooms     map[string]*Room  // matchID -> room
	byCode    map[string]string // join code -> matchID
	byPlayer  map[string]string // participantID -> matchID
	usedCodes map[string]bool
	onRemove  func(matchID string) // cancels the match's timers
}

func NewGameDirectory() *GameDirectory {
	return &GameDirectory{
		rooms:     make(map[string]*Room),
		byCode:    make(map[string]string),
		byPlayer:  make(map[string]string),
		usedCodes: make(map[string]bool),
	}
}

// OnRemove installs the removal hook. Must be set before traffic arrives.
func (gd *GameDirectory) OnRemove(fn func(matchID string)) {
	gd.onRemove = fn
}

// CreateGame allocates a match with a fresh id. A nil opponent attaches
// the synthetic bot participant.
func (gd *GameDirectory) CreateGame(initiator bisca.Participant, opponent *bisca.Participant, cfg bisca.Config, opts RoomOptions) (*Room, error) {
	if initiator.ID == "" {
		return nil, errors.New("INVALID_PARTICIPANT: initiator has no identity")
	}

	gd.mu.Lock()
	defer gd.mu.Unlock()

	if _, busy := gd.byPlayer[initiator.ID]; busy {
		return nil, errors.New("ALREADY_IN_GAME: leave the current game first")
	}

	var second bisca.Participant
	var brain *bisca.Brain
	if opponent != nil {
		second = *opponent
	} else {
		second = bisca.Participant{
			ID:   "bot:" + uuid.New().String(),
			Name: "Bisca Bot",
			Bot:  true,
		}
		brain = bisca.NewBrain()
	}

	match, err := bisca.NewMatch(uuid.New().String(), initiator, second, cfg)
	if err != nil {
		return nil, err
	}

	if opts.Capacity <= 0 {
		opts.Capacity = defaultRoomCapacity
	}
	if opts.Visibility == "" {
		opts.Visibility = VisibilityPublic
	}

	code := GenerateJoinCode(gd.usedCodes)
	gd.usedCodes[code] = true

	now := time.Now()
	room := &Room{
		Code:       code,
		Match:      match,
		Options:    opts,
		Host:       initiator.ID,
		Spectators: make(map[string]string),
		Brain:      brain,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	gd.rooms[match.ID] = room
	gd.byCode[code] = match.ID
	gd.byPlayer[initiator.ID] = match.ID
	return room, nil
}

// AdoptGame registers a match rebuilt from a durable snapshot. The room
// starts dormant: no timers are armed until one of its players returns.
// The bot's card memory is reseeded from the cards already out of play.
func (gd *GameDirectory) AdoptGame(m *bisca.Match, opts RoomOptions) (*Room, error) {
	gd.mu.Lock()
	defer gd.mu.Unlock()

	if _, exists := gd.rooms[m.ID]; exists {
		return nil, errors.New("DUPLICATE_GAME: match already registered")
	}

	if opts.Capacity <= 0 {
		opts.Capacity = defaultRoomCapacity
	}
	if opts.Visibility == "" {
		opts.Visibility = VisibilityPublic
	}

	var brain *bisca.Brain
	host := ""
	for _, p := range m.Players {
		if p.Bot {
			brain = bisca.NewBrain()
		} else if p.ID != "" {
			if host == "" {
				host = p.ID
			}
			gd.byPlayer[p.ID] = m.ID
		}
	}
	if brain != nil {
		for _, pile := range m.Captured {
			for _, c := range pile {
				brain.Observe(c)
			}
		}
		for _, p := range m.Trick {
			brain.Observe(p.Card)
		}
	}

	code := GenerateJoinCode(gd.usedCodes)
	gd.usedCodes[code] = true

	now := time.Now()
	room := &Room{
		Code:       code,
		Match:      m,
		Options:    opts,
		Host:       host,
		Spectators: make(map[string]string),
		Brain:      brain,
		Dormant:    true,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	gd.rooms[m.ID] = room
	gd.byCode[code] = m.ID
	return room, nil
}

// resolve accepts either a match id or a join code.
func (gd *GameDirectory) resolve(idOrCode string) (*Room, error) {
	if LooksLikeJoinCode(idOrCode) {
		if matchID, ok := gd.byCode[NormalizeJoinCode(idOrCode)]; ok {
			idOrCode = matchID
		}
	}
	room, ok := gd.rooms[idOrCode]
	if !ok {
		return nil, errors.New("ROOM_NOT_FOUND: game not found")
	}
	return room, nil
}

func (gd *GameDirectory) Get(idOrCode string) (*Room, error) {
	gd.mu.RLock()
	defer gd.mu.RUnlock()
	return gd.resolve(idOrCode)
}

// RoomFor returns the room a participant plays or spectates in.
func (gd *GameDirectory) RoomFor(participantID string) (*Room, error) {
	gd.mu.RLock()
	defer gd.mu.RUnlock()

	matchID, ok := gd.byPlayer[participantID]
	if !ok {
		return nil, errors.New("NOT_IN_GAME: no active game for this identity")
	}
	room, ok := gd.rooms[matchID]
	if !ok {
		return nil, errors.New("ROOM_NOT_FOUND: game not found")
	}
	return room, nil
}

// JoinGame seats a participant into the open seat. Only possible before
// the match starts; duplicates and full rooms are rejected.
func (gd *GameDirectory) JoinGame(idOrCode string, p bisca.Participant, passphrase string) (*Room, bisca.Seat, error) {
	gd.mu.Lock()
	defer gd.mu.Unlock()

	room, err := gd.resolve(idOrCode)
	if err != nil {
		return nil, 0, err
	}
	if _, busy := gd.byPlayer[p.ID]; busy {
		return nil, 0, errors.New("ALREADY_IN_GAME: leave the current game first")
	}
	if err := room.checkPassphrase(passphrase); err != nil {
		return nil, 0, err
	}

	room.Mu.Lock()
	defer room.Mu.Unlock()

	if room.Match.State != bisca.StateInit {
		return nil, 0, errors.New("GAME_ALREADY_STARTED: cannot join a game in progress")
	}
	if _, seated := room.Match.SeatOf(p.ID); seated {
		return nil, 0, errors.New("DUPLICATE_JOIN: already seated in this game")
	}

	seat := bisca.Seat(-1)
	for i, existing := range room.Match.Players {
		if existing.ID == "" {
			seat = bisca.Seat(i)
			break
		}
	}
	if seat == bisca.Seat(-1) {
		return nil, 0, errors.New("ROOM_FULL: no open seat")
	}
	if room.occupants() >= room.Options.Capacity {
		return nil, 0, errors.New("ROOM_FULL: room is at capacity")
	}

	room.Match.Players[seat] = p
	room.UpdatedAt = time.Now()
	gd.byPlayer[p.ID] = room.Match.ID
	return room, seat, nil
}

// Spectate adds a read-only observer. Allowed at any match stage, within
// capacity.
func (gd *GameDirectory) Spectate(idOrCode, participantID, name, passphrase string) (*Room, error) {
	gd.mu.Lock()
	defer gd.mu.Unlock()

	room, err := gd.resolve(idOrCode)
	if err != nil {
		return nil, err
	}
	if err := room.checkPassphrase(passphrase); err != nil {
		return nil, err
	}

	room.Mu.Lock()
	defer room.Mu.Unlock()

	if _, seated := room.Match.SeatOf(participantID); seated {
		return nil, errors.New("DUPLICATE_JOIN: players cannot spectate their own game")
	}
	if _, watching := room.Spectators[participantID]; watching {
		return nil, errors.New("DUPLICATE_JOIN: already spectating")
	}
	if room.occupants() >= room.Options.Capacity {
		return nil, errors.New("ROOM_FULL: room is at capacity")
	}

	room.Spectators[participantID] = name
	room.UpdatedAt = time.Now()
	gd.byPlayer[participantID] = room.Match.ID
	return room, nil
}

func (r *Room) checkPassphrase(passphrase string) error {
	if r.Options.Visibility == VisibilityPrivate && r.Options.Passphrase != passphrase {
		return errors.New("BAD_PASSPHRASE: wrong passphrase for private room")
	}
	return nil
}

// Leave removes a participant from the room's membership. It reports
// whether the departure empties the room of players; deciding a match
// outcome for mid-game departure belongs to the caller. Host departure
// migrates the host role to the next remaining participant.
func (gd *GameDirectory) Leave(matchID, participantID string) (hostChanged bool, empty bool, err error) {
	gd.mu.Lock()
	defer gd.mu.Unlock()

	room, ok := gd.rooms[matchID]
	if !ok {
		return false, false, errors.New("ROOM_NOT_FOUND: game not found")
	}

	room.Mu.Lock()
	defer room.Mu.Unlock()

	delete(gd.byPlayer, participantID)

	if _, watching := room.Spectators[participantID]; watching {
		delete(room.Spectators, participantID)
	} else if seat, seated := room.Match.SeatOf(participantID); seated {
		if room.Match.State == bisca.StateInit {
			// Pre-start: free the seat.
			room.Match.Players[seat] = bisca.Participant{}
		}
	} else {
		return false, false, errors.New("NOT_IN_GAME: not a member of this room")
	}

	if room.Host == participantID {
		room.Host = ""
		for _, p := range room.Match.Players {
			if p.ID != "" && p.ID != participantID && !p.Bot {
				room.Host = p.ID
				hostChanged = true
				break
			}
		}
		if room.Host == "" {
			for id := range room.Spectators {
				room.Host = id
				hostChanged = true
				break
			}
		}
	}

	room.UpdatedAt = time.Now()
	return hostChanged, room.playerCount() == 0, nil
}

// RemoveGame deletes the match and all its mappings. Idempotent: removing
// twice is a no-op the second time.
func (gd *GameDirectory) RemoveGame(matchID string) bool {
	gd.mu.Lock()

	room, ok := gd.rooms[matchID]
	if !ok {
		gd.mu.Unlock()
		return false
	}

	delete(gd.rooms, matchID)
	delete(gd.byCode, room.Code)
	delete(gd.usedCodes, room.Code)
	for _, p := range room.Match.Players {
		if p.ID != "" && gd.byPlayer[p.ID] == matchID {
			delete(gd.byPlayer, p.ID)
		}
	}
	for id := range room.Spectators {
		if gd.byPlayer[id] == matchID {
			delete(gd.byPlayer, id)
		}
	}
	gd.mu.Unlock()

	// Removal cancels all of the match's timers.
	if gd.onRemove != nil {
		gd.onRemove(matchID)
	}
	return true
}

// MemberIDs lists the human participants and spectators of a match, for
// broadcast fan-out.
func (gd *GameDirectory) MemberIDs(matchID string) []string {
	gd.mu.RLock()
	defer gd.mu.RUnlock()

	room, ok := gd.rooms[matchID]
	if !ok {
		return nil
	}

	ids := make([]string, 0, 2+len(room.Spectators))
	for _, p := range room.Match.Players {
		if p.ID != "" && !p.Bot {
			ids = append(ids, p.ID)
		}
	}
	for id := range room.Spectators {
		ids = append(ids, id)
	}
	return ids
}

type RoomSummary struct {
	MatchID    string `json:"matchId"`
	Code       string `json:"code"`
	Name       string `json:"name"`
	Players    int    `json:"players"`
	Spectators int    `json:"spectators"`
	State      string `json:"state"`
	Private    bool   `json:"private"`
}

// ListRooms returns summaries of the public rooms for the lobby view.
func (gd *GameDirectory) ListRooms() []RoomSummary {
	gd.mu.RLock()
	defer gd.mu.RUnlock()

	out := make([]RoomSummary, 0, len(gd.rooms))
	for id, room := range gd.rooms {
		if room.Options.Visibility == VisibilityPrivate {
			continue
		}
		name := room.Options.Name
		if name == "" {
			name = strings.TrimSpace(room.Match.Players[0].Name + "'s game")
		}
		out = append(out, RoomSummary{
			MatchID:    id,
			Code:       room.Code,
			Name:       name,
			Players:    room.playerCount(),
			Spectators: len(room.Spectators),
			State:      string(room.Match.State),
			Private:    false,
		})
	}
	return out
}

// Rooms snapshots all rooms; the shutdown path uses it to persist state.
func (gd *GameDirectory) Rooms() []*Room {
	gd.mu.RLock()
	defer gd.mu.RUnlock()

	out := make([]*Room, 0, len(gd.rooms))
	for _, room := range gd.rooms {
		out = append(out, room)
	}
	return out
}
