package bisca

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewDeck_Composition(t *testing.T) {
	assert := assert.New(t)

	deck := NewDeck()

	assert.Equal(40, deck.Count())

	// Every face is unique and the point values partition exactly 120.
	seen := make(map[string]bool)
	total := 0
	for _, card := range deck.Cards {
		assert.False(seen[card.Face()], "duplicate face %s", card.Face())
		seen[card.Face()] = true
		total += card.Value()
	}
	assert.Equal(120, total)
}

func TestCard_Values(t *testing.T) {
	assert := assert.New(t)

	assert.Equal(11, Card{Hearts, Ace}.Value())
	assert.Equal(10, Card{Clubs, Seven}.Value())
	assert.Equal(4, Card{Spades, King}.Value())
	assert.Equal(3, Card{Diamonds, Jack}.Value())
	assert.Equal(2, Card{Hearts, Queen}.Value())
	assert.Equal(0, Card{Hearts, Two}.Value())
	assert.Equal(0, Card{Hearts, Six}.Value())
}

func TestRank_StrengthOrder(t *testing.T) {
	assert := assert.New(t)

	// Bisca order, not face order: 2 < 3 < 4 < 5 < 6 < Q < J < K < 7 < A.
	order := []Rank{Two, Three, Four, Five, Six, Queen, Jack, King, Seven, Ace}
	for i := 1; i < len(order); i++ {
		assert.Less(order[i-1], order[i], "%s should rank below %s", order[i-1], order[i])
	}
}

func TestParseFace_RoundTrip(t *testing.T) {
	assert := assert.New(t)

	for _, card := range NewDeck().Cards {
		parsed, err := ParseFace(card.Face())
		assert.NoError(err)
		assert.Equal(card, parsed)
	}
}

func TestParseFace_Invalid(t *testing.T) {
	assert := assert.New(t)

	for _, face := range []string{"", "A", "AHX", "1H", "AZ", "XX", "ZZ"} {
		_, err := ParseFace(face)
		assert.Error(err, "face %q should be rejected", face)
		assert.True(IsValidation(err), "face %q must reject as bad input, not a failure", face)
	}
}

func TestDeck_DrawAndBottom(t *testing.T) {
	assert := assert.New(t)

	deck := NewDeck()
	bottom, ok := deck.Bottom()
	assert.True(ok)

	// Bottom card is drawn last.
	var last Card
	for deck.Count() > 0 {
		last, _ = deck.Draw()
	}
	assert.Equal(bottom, last)

	_, ok = deck.Draw()
	assert.False(ok)
}
