package bisca

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLeadWins_Table(t *testing.T) {
	tests := []struct {
		name     string
		lead     Card
		response Card
		trump    Suit
		leadWins bool
	}{
		{
			name:     "lone trump response wins",
			lead:     Card{Hearts, Ace},
			response: Card{Spades, Two},
			trump:    Spades,
			leadWins: false,
		},
		{
			name:     "lone trump lead wins",
			lead:     Card{Spades, Two},
			response: Card{Hearts, Ace},
			trump:    Spades,
			leadWins: true,
		},
		{
			name:     "both trump, higher rank wins",
			lead:     Card{Spades, King},
			response: Card{Spades, Seven},
			trump:    Spades,
			leadWins: false,
		},
		{
			name:     "same suit, higher rank wins",
			lead:     Card{Hearts, Seven},
			response: Card{Hearts, King},
			trump:    Spades,
			leadWins: true,
		},
		{
			name:     "off-suit ace loses to the lead king",
			lead:     Card{Clubs, King},
			response: Card{Hearts, Ace},
			trump:    Spades,
			leadWins: true,
		},
		{
			name:     "off-suit two still loses to lead",
			lead:     Card{Diamonds, Three},
			response: Card{Clubs, Ace},
			trump:    Hearts,
			leadWins: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.leadWins, LeadWins(tt.lead, tt.response, tt.trump))
		})
	}
}

func TestScoreGame_Boundaries(t *testing.T) {
	tests := []struct {
		winnerPoints int
		marks        int
		tier         string
		endsMatch    bool
	}{
		{61, 1, TierRisca, false},
		{90, 1, TierRisca, false},
		{91, 2, TierCapote, false},
		{119, 2, TierCapote, false},
		{120, 4, TierBandeira, true},
		{60, 0, TierDraw, false},
	}

	for _, tt := range tests {
		result := ScoreGame(tt.winnerPoints)
		assert.Equal(t, tt.marks, result.Marks, "points=%d", tt.winnerPoints)
		assert.Equal(t, tt.tier, result.Tier, "points=%d", tt.winnerPoints)
		assert.Equal(t, tt.endsMatch, result.EndsMatch, "points=%d", tt.winnerPoints)
	}
}
