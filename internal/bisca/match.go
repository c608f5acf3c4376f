package bisca

import (
	"time"
)

type State string

const (
	StateInit       State = "init"
	StateDealing    State = "dealing"
	StateInProgress State = "in_progress"
	StateGameOver   State = "game_over"
	StateMatchOver  State = "match_over"
)

type Seat int

const (
	SeatA Seat = iota
	SeatB
)

func (s Seat) Other() Seat {
	if s == SeatA {
		return SeatB
	}
	return SeatA
}

func (s Seat) String() string {
	if s == SeatA {
		return "A"
	}
	return "B"
}

type Participant struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Bot  bool   `json:"bot"`
}

type PlayedCard struct {
	Seat Seat `json:"seat"`
	Card Card `json:"card"`
}

type DealtCard struct {
	Seat Seat `json:"seat"`
	Card Card `json:"card"`
}

type Config struct {
	HandSize   int `json:"handSize"`   // 3 or 9
	WinsNeeded int `json:"winsNeeded"` // marks required to take the match
}

func (c Config) validate() error {
	if c.HandSize != 3 && c.HandSize != 9 {
		return validationError("INVALID_CONFIG", "hand size must be 3 or 9, got %d", c.HandSize)
	}
	if c.WinsNeeded < 1 {
		return validationError("INVALID_CONFIG", "winsNeeded must be positive, got %d", c.WinsNeeded)
	}
	return nil
}

// Match is the per-match state machine. It carries no locks; the server
// serializes all access per match id.
type Match struct {
	ID         string         `json:"id"`
	Players    [2]Participant `json:"players"`
	State      State          `json:"state"`
	Deck       *Deck          `json:"deck"`
	Hands      [2][]Card      `json:"hands"`
	Trick      []PlayedCard   `json:"trick"`
	Captured   [2][]Card      `json:"captured"`
	Trump      Card           `json:"trump"`
	Turn       Seat           `json:"turn"`
	Points     [2]int         `json:"points"`
	Marks      [2]int         `json:"marks"`
	GameNumber int            `json:"gameNumber"`
	Finished   bool           `json:"finished"`
	HandSize   int            `json:"handSize"`
	WinsNeeded int            `json:"winsNeeded"`
	CreatedAt  time.Time      `json:"createdAt"`

	scored   bool // guards the one ScoreGame call per game
	nextLead Seat // leader for the next game
}

func NewMatch(id string, a, b Participant, cfg Config) (*Match, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &Match{
		ID:         id,
		Players:    [2]Participant{a, b},
		State:      StateInit,
		HandSize:   cfg.HandSize,
		WinsNeeded: cfg.WinsNeeded,
		CreatedAt:  time.Now(),
	}, nil
}

// Start shuffles, deals the initial hands, reveals the trump from the deck
// bottom and sets the first turn.
func (m *Match) Start() error {
	if m.State != StateInit {
		return validationError("INVALID_STATUS", "match already started")
	}
	m.GameNumber = 1
	m.nextLead = SeatA
	m.deal()
	return nil
}

// StartNewGame re-deals for the next game of the match. Marks persist;
// points reset. The winner of the previous game leads.
func (m *Match) StartNewGame() error {
	if m.Finished {
		return validationError("MATCH_FINISHED", "match is over")
	}
	if m.State != StateGameOver {
		return validationError("INVALID_STATUS", "current game still in progress")
	}
	m.GameNumber++
	m.deal()
	return nil
}

func (m *Match) deal() {
	m.State = StateDealing

	m.Deck = NewDeck()
	m.Deck.Shuffle()
	m.Hands = [2][]Card{{}, {}}
	m.Captured = [2][]Card{{}, {}}
	m.Trick = nil
	m.Points = [2]int{}
	m.scored = false

	for range m.HandSize {
		for _, seat := range []Seat{m.nextLead, m.nextLead.Other()} {
			card, _ := m.Deck.Draw()
			m.Hands[seat] = append(m.Hands[seat], card)
		}
	}

	// The bottom card is the face-up trump; it stays in the deck and is
	// dealt last.
	m.Trump, _ = m.Deck.Bottom()
	m.Turn = m.nextLead
	m.State = StateInProgress
}

// SeatOf maps a participant id to a seat.
func (m *Match) SeatOf(participantID string) (Seat, bool) {
	for i, p := range m.Players {
		if p.ID == participantID {
			return Seat(i), true
		}
	}
	return 0, false
}

// BotSeat returns the synthetic participant's seat, if the match has one.
func (m *Match) BotSeat() (Seat, bool) {
	for i, p := range m.Players {
		if p.Bot {
			return Seat(i), true
		}
	}
	return 0, false
}

// PlayResult describes everything a single accepted play caused, so the
// caller can broadcast without re-deriving state transitions.
type PlayResult struct {
	Played       PlayedCard  `json:"played"`
	TrickDone    bool        `json:"trickDone"`
	TrickWinner  Seat        `json:"trickWinner"`
	TrickPoints  int         `json:"trickPoints"`
	Replacements []DealtCard `json:"replacements,omitempty"`
	GameOver     bool        `json:"gameOver"`
	GameWinner   Seat        `json:"gameWinner"`
	Draw         bool        `json:"draw"`
	GameResult   *GameResult `json:"gameResult,omitempty"`
	MatchOver    bool        `json:"matchOver"`
	MatchWinner  Seat        `json:"matchWinner"`
}

// PlayCard validates ownership and turn order only; this variant never
// enforces suit-following. Rejected plays return a ValidationError and
// leave the match untouched.
func (m *Match) PlayCard(seat Seat, face string) (*PlayResult, error) {
	if m.State != StateInProgress {
		return nil, validationError("GAME_NOT_IN_PROGRESS", "no game in progress (state %s)", m.State)
	}
	if m.Turn != seat {
		return nil, validationError("NOT_YOUR_TURN", "it is %s's turn", m.Players[m.Turn].Name)
	}

	card, err := ParseFace(face)
	if err != nil {
		return nil, err
	}

	idx := -1
	for i, held := range m.Hands[seat] {
		if held == card {
			idx = i
			break
		}
	}
	if idx == -1 {
		return nil, validationError("CARD_NOT_HELD", "%s is not in hand", card)
	}

	// Validation passed; from here on every step mutates.
	m.Hands[seat] = append(m.Hands[seat][:idx], m.Hands[seat][idx+1:]...)
	m.Trick = append(m.Trick, PlayedCard{Seat: seat, Card: card})
	m.Turn = seat.Other()

	result := &PlayResult{Played: PlayedCard{Seat: seat, Card: card}}

	if len(m.Trick) == 2 {
		m.resolveTrick(result)
		if m.IsGameFinished() {
			m.finishGame(result)
		}
	}

	if err := m.checkInvariants(); err != nil {
		return nil, err
	}
	return result, nil
}

// ForceLowestPlay plays the seat's lowest-ranked card. Used by the turn
// timeout policy and as the recovery fallback; it goes through the normal
// play path so every invariant still applies.
func (m *Match) ForceLowestPlay(seat Seat) (*PlayResult, error) {
	card, ok := m.LowestCard(seat)
	if !ok {
		return nil, validationError("EMPTY_HAND", "no card to force for seat %s", seat)
	}
	return m.PlayCard(seat, card.Face())
}

// LowestCard returns the lowest-ranked card in the seat's hand, suit order
// breaking ties for determinism.
func (m *Match) LowestCard(seat Seat) (Card, bool) {
	if len(m.Hands[seat]) == 0 {
		return Card{}, false
	}
	lowest := m.Hands[seat][0]
	for _, c := range m.Hands[seat][1:] {
		if c.Rank < lowest.Rank || (c.Rank == lowest.Rank && c.Suit < lowest.Suit) {
			lowest = c
		}
	}
	return lowest, true
}

func (m *Match) resolveTrick(result *PlayResult) {
	lead, response := m.Trick[0], m.Trick[1]

	winner := response.Seat
	if LeadWins(lead.Card, response.Card, m.Trump.Suit) {
		winner = lead.Seat
	}

	points := lead.Card.Value() + response.Card.Value()
	m.Points[winner] += points
	m.Captured[winner] = append(m.Captured[winner], lead.Card, response.Card)
	m.Trick = nil

	result.TrickDone = true
	result.TrickWinner = winner
	result.TrickPoints = points

	// Winner draws first, then the loser.
	for _, seat := range []Seat{winner, winner.Other()} {
		card, ok := m.Deck.Draw()
		if !ok {
			break
		}
		m.Hands[seat] = append(m.Hands[seat], card)
		result.Replacements = append(result.Replacements, DealtCard{Seat: seat, Card: card})
	}

	m.Turn = winner
}

// IsGameFinished reports whether the current game has been played out.
func (m *Match) IsGameFinished() bool {
	return len(m.Hands[SeatA]) == 0 && len(m.Hands[SeatB]) == 0 && m.Deck.Count() == 0 && len(m.Trick) == 0
}

func (m *Match) finishGame(result *PlayResult) {
	if m.scored {
		return
	}
	m.scored = true
	m.State = StateGameOver

	result.GameOver = true

	if m.Points[SeatA] == m.Points[SeatB] {
		// 60-60: no marks, previous leader keeps the lead.
		result.Draw = true
		draw := ScoreGame(m.Points[SeatA])
		result.GameResult = &draw
		return
	}

	winner := SeatA
	if m.Points[SeatB] > m.Points[SeatA] {
		winner = SeatB
	}
	game := ScoreGame(m.Points[winner])
	m.Marks[winner] += game.Marks
	m.nextLead = winner

	result.GameWinner = winner
	result.GameResult = &game

	// A bandeira ends the match immediately, regardless of winsNeeded.
	if game.EndsMatch || m.Marks[winner] >= m.WinsNeeded {
		m.finalize(winner, result)
	}
}

// Abandon ends the match against the given seat, for departures and
// expired reconnection windows. The other seat takes the match.
func (m *Match) Abandon(loser Seat) (Seat, error) {
	if m.Finished {
		return 0, validationError("MATCH_FINISHED", "match is over")
	}
	winner := loser.Other()
	result := &PlayResult{}
	m.finalize(winner, result)
	return winner, nil
}

// finalize runs at most once per match.
func (m *Match) finalize(winner Seat, result *PlayResult) {
	if m.Finished {
		return
	}
	m.Finished = true
	m.State = StateMatchOver
	result.MatchOver = true
	result.MatchWinner = winner
}

// checkInvariants verifies the card conservation rules after a mutation.
// A violation is beyond tolerance: the caller must terminate the match.
func (m *Match) checkInvariants() error {
	total := len(m.Hands[SeatA]) + len(m.Hands[SeatB]) + m.Deck.Count() +
		len(m.Trick) + len(m.Captured[SeatA]) + len(m.Captured[SeatB])
	if total != 40 {
		return fatalError("card count mismatch: %d cards in play, want 40", total)
	}

	if m.State == StateInProgress {
		diff := len(m.Hands[SeatA]) - len(m.Hands[SeatB])
		if diff < -1 || diff > 1 {
			return fatalError("hand imbalance: %d vs %d cards", len(m.Hands[SeatA]), len(m.Hands[SeatB]))
		}
	}
	return nil
}
