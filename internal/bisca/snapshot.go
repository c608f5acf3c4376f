package bisca

import (
	"fmt"
	"time"
)

// Snapshot is a timestamped, serializable copy of a match's mutable fields.
// Cards are stored as wire faces and rehydrated through ParseFace, so a
// restored match is pointwise equal to the original.
type Snapshot struct {
	MatchID string    `json:"matchId"`
	TakenAt time.Time `json:"takenAt"`

	// Participants and configuration ride along so a fresh process can
	// rebuild the whole match, not just patch an existing one.
	Players    [2]Participant `json:"players"`
	HandSize   int            `json:"handSize"`
	WinsNeeded int            `json:"winsNeeded"`

	State      State       `json:"state"`
	GameNumber int         `json:"gameNumber"`
	Turn       Seat        `json:"turn"`
	NextLead   Seat        `json:"nextLead"`
	TrumpFace  string      `json:"trumpFace"`
	DeckFaces  []string    `json:"deckFaces"`
	HandFaces  [2][]string `json:"handFaces"`
	Captured   [2][]string `json:"captured"`
	Trick      []TrickPlay `json:"trick,omitempty"`
	Points     [2]int      `json:"points"`
	Marks      [2]int      `json:"marks"`
	Finished   bool        `json:"finished"`
	Scored     bool        `json:"scored"`
}

type TrickPlay struct {
	Seat Seat   `json:"seat"`
	Face string `json:"face"`
}

func faces(cards []Card) []string {
	out := make([]string, len(cards))
	for i, c := range cards {
		out[i] = c.Face()
	}
	return out
}

func cards(faceList []string) ([]Card, error) {
	out := make([]Card, len(faceList))
	for i, f := range faceList {
		c, err := ParseFace(f)
		if err != nil {
			return nil, fmt.Errorf("rehydrate card %d: %w", i, err)
		}
		out[i] = c
	}
	return out, nil
}

// Snapshot captures the match's mutable fields.
func (m *Match) Snapshot() *Snapshot {
	s := &Snapshot{
		MatchID:    m.ID,
		TakenAt:    time.Now(),
		Players:    m.Players,
		HandSize:   m.HandSize,
		WinsNeeded: m.WinsNeeded,
		State:      m.State,
		GameNumber: m.GameNumber,
		Turn:       m.Turn,
		NextLead:   m.nextLead,
		Points:     m.Points,
		Marks:      m.Marks,
		Finished:   m.Finished,
		Scored:     m.scored,
	}
	if m.Deck != nil {
		s.DeckFaces = faces(m.Deck.Cards)
		s.TrumpFace = m.Trump.Face()
	}
	for i := range m.Hands {
		s.HandFaces[i] = faces(m.Hands[i])
		s.Captured[i] = faces(m.Captured[i])
	}
	for _, p := range m.Trick {
		s.Trick = append(s.Trick, TrickPlay{Seat: p.Seat, Face: p.Card.Face()})
	}
	return s
}

// MatchFromSnapshot rebuilds a complete match from a durable snapshot,
// for resuming play after a process restart.
func MatchFromSnapshot(s *Snapshot) (*Match, error) {
	m, err := NewMatch(s.MatchID, s.Players[0], s.Players[1],
		Config{HandSize: s.HandSize, WinsNeeded: s.WinsNeeded})
	if err != nil {
		return nil, err
	}
	if err := m.Restore(s); err != nil {
		return nil, err
	}
	return m, nil
}

// Restore reconstructs the match's mutable fields from a snapshot.
// Participants and configuration are immutable and kept as-is.
func (m *Match) Restore(s *Snapshot) error {
	if s.MatchID != m.ID {
		return fmt.Errorf("snapshot belongs to match %s, not %s", s.MatchID, m.ID)
	}

	deckCards, err := cards(s.DeckFaces)
	if err != nil {
		return err
	}
	var hands [2][]Card
	var captured [2][]Card
	for i := range hands {
		if hands[i], err = cards(s.HandFaces[i]); err != nil {
			return err
		}
		if captured[i], err = cards(s.Captured[i]); err != nil {
			return err
		}
	}
	var trick []PlayedCard
	for _, p := range s.Trick {
		c, err := ParseFace(p.Face)
		if err != nil {
			return err
		}
		trick = append(trick, PlayedCard{Seat: p.Seat, Card: c})
	}
	var trump Card
	if s.TrumpFace != "" {
		if trump, err = ParseFace(s.TrumpFace); err != nil {
			return err
		}
	}

	m.State = s.State
	m.GameNumber = s.GameNumber
	m.Turn = s.Turn
	m.nextLead = s.NextLead
	m.Deck = &Deck{Cards: deckCards}
	m.Hands = hands
	m.Captured = captured
	m.Trick = trick
	m.Trump = trump
	m.Points = s.Points
	m.Marks = s.Marks
	m.Finished = s.Finished
	m.scored = s.Scored
	return nil
}
