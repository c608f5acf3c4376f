package bisca

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func newTestMatch(t *testing.T, handSize int) *Match {
	t.Helper()
	m, err := NewMatch("m1",
		Participant{ID: "p1", Name: "Alice"},
		Participant{ID: "p2", Name: "Bisca Bot", Bot: true},
		Config{HandSize: handSize, WinsNeeded: 4},
	)
	assert.NoError(t, err)
	return m
}

// fixedMatch builds an in-progress match with known hands for deterministic
// trick assertions.
func fixedMatch(handA, handB []Card, deck []Card, trump Card, turn Seat) *Match {
	m := &Match{
		ID:         "m1",
		Players:    [2]Participant{{ID: "p1", Name: "Alice"}, {ID: "p2", Name: "Bob"}},
		State:      StateInProgress,
		Deck:       &Deck{Cards: deck},
		Hands:      [2][]Card{handA, handB},
		Captured:   [2][]Card{{}, {}},
		Trump:      trump,
		Turn:       turn,
		GameNumber: 1,
		HandSize:   3,
		WinsNeeded: 4,
	}
	// Pad the captured pile so the card-conservation invariant holds for
	// partial fixtures.
	pad := 40 - (len(handA) + len(handB) + len(deck))
	m.Captured[SeatA] = append(m.Captured[SeatA], NewDeck().Cards[:pad]...)
	return m
}

func cardCount(m *Match) int {
	return len(m.Hands[SeatA]) + len(m.Hands[SeatB]) + m.Deck.Count() +
		len(m.Trick) + len(m.Captured[SeatA]) + len(m.Captured[SeatB])
}

func TestNewMatch_InvalidConfig(t *testing.T) {
	assert := assert.New(t)

	_, err := NewMatch("m1", Participant{ID: "a"}, Participant{ID: "b"}, Config{HandSize: 5, WinsNeeded: 4})
	assert.Error(err)
	assert.True(IsValidation(err))

	_, err = NewMatch("m1", Participant{ID: "a"}, Participant{ID: "b"}, Config{HandSize: 3, WinsNeeded: 0})
	assert.Error(err)
}

func TestMatch_StartDeals(t *testing.T) {
	assert := assert.New(t)

	m := newTestMatch(t, 3)
	assert.Equal(StateInit, m.State)

	assert.NoError(m.Start())

	assert.Equal(StateInProgress, m.State)
	assert.Equal(1, m.GameNumber)
	assert.Equal(3, len(m.Hands[SeatA]))
	assert.Equal(3, len(m.Hands[SeatB]))
	assert.Equal(34, m.Deck.Count())

	// Trump stays in the deck, at the bottom.
	bottom, ok := m.Deck.Bottom()
	assert.True(ok)
	assert.Equal(m.Trump, bottom)

	// Starting twice is rejected.
	assert.Error(m.Start())
}

func TestMatch_PlayValidation(t *testing.T) {
	assert := assert.New(t)

	m := fixedMatch(
		[]Card{{Hearts, Ace}, {Clubs, Two}},
		[]Card{{Spades, King}, {Diamonds, Four}},
		[]Card{},
		Card{Spades, Three}, SeatA,
	)

	// Not your turn: no state change.
	_, err := m.PlayCard(SeatB, "KS")
	assert.Error(err)
	assert.True(IsValidation(err))
	assert.Equal(2, len(m.Hands[SeatB]))
	assert.Empty(m.Trick)

	// Card not held.
	_, err = m.PlayCard(SeatA, "KS")
	assert.Error(err)
	assert.True(IsValidation(err))
	assert.Equal(2, len(m.Hands[SeatA]))

	// Garbage face.
	_, err = m.PlayCard(SeatA, "??")
	assert.Error(err)

	// Valid play mutates: card leaves hand, enters trick, turn flips.
	result, err := m.PlayCard(SeatA, "AH")
	assert.NoError(err)
	assert.False(result.TrickDone)
	assert.Equal(1, len(m.Hands[SeatA]))
	assert.Equal(1, len(m.Trick))
	assert.Equal(SeatB, m.Turn)
}

func TestMatch_TrickResolution(t *testing.T) {
	assert := assert.New(t)

	// Deck top is the end of the slice: winner draws 7D, loser 2C.
	m := fixedMatch(
		[]Card{{Hearts, Ace}, {Hearts, Two}},
		[]Card{{Hearts, King}, {Diamonds, Four}},
		[]Card{{Clubs, Two}, {Diamonds, Seven}},
		Card{Spades, Three}, SeatA,
	)

	_, err := m.PlayCard(SeatA, "AH")
	assert.NoError(err)
	result, err := m.PlayCard(SeatB, "KH")
	assert.NoError(err)

	assert.True(result.TrickDone)
	assert.Equal(SeatA, result.TrickWinner)
	assert.Equal(15, result.TrickPoints) // Ace 11 + King 4
	assert.Equal(15, m.Points[SeatA])

	// Winner draws first.
	assert.Equal([]DealtCard{
		{Seat: SeatA, Card: Card{Diamonds, Seven}},
		{Seat: SeatB, Card: Card{Clubs, Two}},
	}, result.Replacements)

	assert.Empty(m.Trick)
	assert.Equal(SeatA, m.Turn, "trick winner leads next")
	assert.Equal(0, m.Deck.Count())
}

func TestMatch_TrumpBeatsAce(t *testing.T) {
	assert := assert.New(t)

	m := fixedMatch(
		[]Card{{Hearts, Ace}},
		[]Card{{Spades, Two}},
		[]Card{},
		Card{Spades, Seven}, SeatA,
	)

	_, err := m.PlayCard(SeatA, "AH")
	assert.NoError(err)
	result, err := m.PlayCard(SeatB, "2S")
	assert.NoError(err)

	assert.Equal(SeatB, result.TrickWinner, "trump two beats non-trump ace")
}

func TestMatch_FullPlaythrough(t *testing.T) {
	assert := assert.New(t)

	m := newTestMatch(t, 3)
	assert.NoError(m.Start())

	tricks := 0
	gameOvers := 0
	plays := 0

	for m.State == StateInProgress {
		plays++
		assert.Less(plays, 100, "playthrough did not terminate")

		seat := m.Turn
		card := m.Hands[seat][0]
		result, err := m.PlayCard(seat, card.Face())
		assert.NoError(err)

		// Card conservation holds in every reachable state.
		assert.Equal(40, cardCount(m))
		diff := len(m.Hands[SeatA]) - len(m.Hands[SeatB])
		if diff < 0 {
			diff = -diff
		}
		assert.LessOrEqual(diff, 1, "hands out of balance")

		if result.TrickDone {
			tricks++
		}
		if result.GameOver {
			gameOvers++
		}
	}

	assert.Equal(20, tricks, "40 cards make 20 tricks")
	assert.Equal(1, gameOvers, "game finishes exactly once")
	assert.True(m.IsGameFinished())
	assert.Equal(120, m.Points[SeatA]+m.Points[SeatB], "points partition the deck")
}

func TestMatch_MarksPersistAcrossGames(t *testing.T) {
	assert := assert.New(t)

	m := newTestMatch(t, 3)
	assert.NoError(m.Start())

	// StartNewGame is rejected while the game runs.
	assert.Error(m.StartNewGame())

	playOut(t, m)

	if m.State == StateMatchOver {
		// A first-game bandeira is possible but vanishingly rare with
		// random deals; nothing more to assert here.
		return
	}

	assert.Equal(StateGameOver, m.State)
	marksBefore := [2]int{m.Marks[SeatA], m.Marks[SeatB]}
	assert.GreaterOrEqual(marksBefore[0]+marksBefore[1], 0)

	assert.NoError(m.StartNewGame())
	assert.Equal(2, m.GameNumber)
	assert.Equal(StateInProgress, m.State)
	assert.Equal(marksBefore, m.Marks, "marks persist into the next game")
	assert.Equal([2]int{0, 0}, m.Points, "points reset for the next game")
	assert.Equal(40, cardCount(m))
}

func TestMatch_BandeiraEndsMatchImmediately(t *testing.T) {
	assert := assert.New(t)

	// Last trick of a 120-0 sweep: A has taken everything so far.
	m := fixedMatch(
		[]Card{{Hearts, Ace}},
		[]Card{{Hearts, King}},
		[]Card{},
		Card{Spades, Three}, SeatA,
	)
	m.WinsNeeded = 10
	m.Points = [2]int{105, 0}

	_, err := m.PlayCard(SeatA, "AH")
	assert.NoError(err)
	result, err := m.PlayCard(SeatB, "KH")
	assert.NoError(err)

	assert.True(result.GameOver)
	assert.Equal(TierBandeira, result.GameResult.Tier)
	assert.Equal(4, result.GameResult.Marks)
	assert.True(result.MatchOver, "bandeira overrides winsNeeded")
	assert.Equal(SeatA, result.MatchWinner)
	assert.True(m.Finished)
	assert.Equal(StateMatchOver, m.State)

	// StartNewGame after the match is over is rejected.
	assert.Error(m.StartNewGame())
}

func TestMatch_ForceLowestPlay(t *testing.T) {
	assert := assert.New(t)

	m := fixedMatch(
		[]Card{{Hearts, Ace}, {Clubs, Two}, {Diamonds, Queen}},
		[]Card{{Spades, King}, {Diamonds, Four}, {Hearts, Six}},
		[]Card{{Clubs, Five}, {Spades, Six}},
		Card{Spades, Three}, SeatA,
	)

	result, err := m.ForceLowestPlay(SeatA)
	assert.NoError(err)
	assert.Equal(Card{Clubs, Two}, result.Played.Card)
	assert.Equal(SeatB, m.Turn)
}

func TestMatch_Abandon(t *testing.T) {
	assert := assert.New(t)

	m := newTestMatch(t, 3)
	assert.NoError(m.Start())

	winner, err := m.Abandon(SeatA)
	assert.NoError(err)
	assert.Equal(SeatB, winner)
	assert.True(m.Finished)
	assert.Equal(StateMatchOver, m.State)

	_, err = m.Abandon(SeatB)
	assert.Error(err, "a finished match cannot be abandoned again")
}

// playOut plays the current game to completion with a trivial strategy.
func playOut(t *testing.T, m *Match) {
	t.Helper()
	for m.State == StateInProgress {
		seat := m.Turn
		_, err := m.PlayCard(seat, m.Hands[seat][0].Face())
		assert.NoError(t, err)
	}
}
