package bisca

// LeadWins resolves a trick: it reports whether the first-played card beats
// the response. A lone trump wins; within the same suit the higher rank
// wins; when suits differ and neither is trump, the lead wins regardless
// of rank.
func LeadWins(lead, response Card, trump Suit) bool {
	if lead.Suit == response.Suit {
		return lead.Rank > response.Rank
	}
	if lead.Suit == trump {
		return true
	}
	if response.Suit == trump {
		return false
	}
	// Off-suit response never takes the trick.
	return true
}

// Outcome tiers for a single game within a match.
const (
	TierDraw     = "draw"
	TierRisca    = "risca"
	TierCapote   = "capote"
	TierBandeira = "bandeira"
)

// GameResult is the mark award for one finished game.
type GameResult struct {
	Marks     int    `json:"marks"`
	Tier      string `json:"tier"`
	EndsMatch bool   `json:"endsMatch"`
}

// ScoreGame converts the winner's point total into marks. A 120-0 sweep
// (bandeira) awards four marks and ends the match outright, overriding the
// configured marks-to-win threshold. A 60-60 split awards nothing.
func ScoreGame(winnerPoints int) GameResult {
	switch {
	case winnerPoints == 120:
		return GameResult{Marks: 4, Tier: TierBandeira, EndsMatch: true}
	case winnerPoints >= 91:
		return GameResult{Marks: 2, Tier: TierCapote}
	case winnerPoints > 60:
		return GameResult{Marks: 1, Tier: TierRisca}
	default:
		return GameResult{Marks: 0, Tier: TierDraw}
	}
}
