package bisca

import "errors"

// Brain stores the bot's private view of the game: which cards it has seen
// leave play. Knowledge is limited to previously-played cards; the deck
// remainder is never consulted.
type Brain struct {
	played [4][10]bool // [suit][rank]
}

func NewBrain() *Brain {
	return &Brain{}
}

// Reset clears the memory for a new game.
func (b *Brain) Reset() {
	b.played = [4][10]bool{}
}

// Observe records a card that has hit the table.
func (b *Brain) Observe(c Card) {
	b.played[c.Suit][c.Rank] = true
}

// outstandingHigher counts cards of c's suit that outrank c and are neither
// played nor in the bot's own hand. Zero means nothing left can beat c
// within its suit.
func (b *Brain) outstandingHigher(c Card, hand []Card) int {
	count := 0
	for rank := c.Rank + 1; rank <= Ace; rank++ {
		if b.played[c.Suit][rank] {
			continue
		}
		held := false
		for _, h := range hand {
			if h.Suit == c.Suit && h.Rank == rank {
				held = true
				break
			}
		}
		if !held {
			count++
		}
	}
	return count
}

// ChooseCard picks the bot's card deterministically for the current trick.
func ChooseCard(m *Match, seat Seat, brain *Brain) (Card, error) {
	hand := m.Hands[seat]
	if len(hand) == 0 {
		return Card{}, errors.New("bot has no cards to play")
	}

	if len(m.Trick) == 0 {
		return chooseLead(m, seat, brain), nil
	}
	return chooseResponse(m, seat, brain), nil
}

func chooseLead(m *Match, seat Seat, brain *Brain) Card {
	hand := m.Hands[seat]
	trump := m.Trump.Suit
	behind := m.Points[seat] < m.Points[seat.Other()]

	// Behind on points: lead a card nothing outstanding can beat,
	// taking the most valuable such card.
	if behind {
		var best Card
		found := false
		for _, c := range hand {
			if brain.outstandingHigher(c, hand) > 0 {
				continue
			}
			if !found || c.Value() > best.Value() || (c.Value() == best.Value() && c.Rank > best.Rank) {
				best = c
				found = true
			}
		}
		if found {
			return best
		}
	}

	// Lead cheap: lowest non-trump.
	if c, ok := lowestWhere(hand, func(c Card) bool { return c.Suit != trump }); ok {
		return c
	}

	// Only trump left: lead the highest worthless one.
	var best Card
	found := false
	for _, c := range hand {
		if c.Value() != 0 {
			continue
		}
		if !found || c.Rank > best.Rank {
			best = c
			found = true
		}
	}
	if found {
		return best
	}

	c, _ := lowestWhere(hand, func(Card) bool { return true })
	return c
}

func chooseResponse(m *Match, seat Seat, brain *Brain) Card {
	hand := m.Hands[seat]
	trump := m.Trump.Suit
	led := m.Trick[0].Card
	behind := m.Points[seat] < m.Points[seat.Other()]

	if led.Suit == trump {
		// Beat a led trump with the smallest winning trump.
		if c, ok := lowestWhere(hand, func(c Card) bool {
			return c.Suit == trump && c.Rank > led.Rank
		}); ok {
			return c
		}
	} else {
		// Beat a led non-trump with the highest same-suit card.
		var best Card
		found := false
		for _, c := range hand {
			if c.Suit == led.Suit && c.Rank > led.Rank && (!found || c.Rank > best.Rank) {
				best = c
				found = true
			}
		}
		if found {
			return best
		}
	}

	// Can't win. Behind: shed the lowest card of the led suit.
	if behind {
		if c, ok := lowestWhere(hand, func(c Card) bool { return c.Suit == led.Suit }); ok {
			return c
		}
	}

	// Discard the cheapest non-trump, the lowest trump only when forced.
	var best Card
	found := false
	for _, c := range hand {
		if c.Suit == trump {
			continue
		}
		if !found || c.Value() < best.Value() || (c.Value() == best.Value() && c.Rank < best.Rank) {
			best = c
			found = true
		}
	}
	if found {
		return best
	}

	c, _ := lowestWhere(hand, func(Card) bool { return true })
	return c
}

// lowestWhere returns the lowest-ranked card satisfying the predicate,
// suit order breaking ties.
func lowestWhere(hand []Card, keep func(Card) bool) (Card, bool) {
	var best Card
	found := false
	for _, c := range hand {
		if !keep(c) {
			continue
		}
		if !found || c.Rank < best.Rank || (c.Rank == best.Rank && c.Suit < best.Suit) {
			best = c
			found = true
		}
	}
	return best, found
}
