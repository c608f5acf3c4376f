package bisca

import (
	"fmt"
	"math/rand"
)

type Suit int

const (
	Hearts Suit = iota
	Diamonds
	Clubs
	Spades
)

var suitString = map[Suit]string{
	Hearts:   "Hearts",
	Diamonds: "Diamonds",
	Clubs:    "Clubs",
	Spades:   "Spades",
}

var suitLetter = map[Suit]byte{
	Hearts:   'H',
	Diamonds: 'D',
	Clubs:    'C',
	Spades:   'S',
}

func (s Suit) String() string {
	return suitString[s]
}

// Rank order is bisca strength order, not face order: 2 is the weakest
// card and the Ace the strongest. Comparing Rank values directly answers
// "which card is higher".
type Rank int

const (
	Two Rank = iota
	Three
	Four
	Five
	Six
	Queen
	Jack
	King
	Seven
	Ace
)

var rankString = map[Rank]string{
	Two:   "Two",
	Three: "Three",
	Four:  "Four",
	Five:  "Five",
	Six:   "Six",
	Queen: "Queen",
	Jack:  "Jack",
	King:  "King",
	Seven: "Seven",
	Ace:   "Ace",
}

var rankSymbol = map[Rank]byte{
	Two:   '2',
	Three: '3',
	Four:  '4',
	Five:  '5',
	Six:   '6',
	Queen: 'Q',
	Jack:  'J',
	King:  'K',
	Seven: '7',
	Ace:   'A',
}

// Point values sum to 120 across the deck.
var pointValues = map[Rank]int{
	Ace:   11,
	Seven: 10,
	King:  4,
	Jack:  3,
	Queen: 2,
}

func (r Rank) String() string {
	return rankString[r]
}

type Card struct {
	Suit Suit `json:"suit"`
	Rank Rank `json:"rank"`
}

func (c Card) Value() int {
	return pointValues[c.Rank]
}

// Face is the wire-level card reference, e.g. "AH" for the Ace of Hearts.
// Unique within the 40-card deck.
func (c Card) Face() string {
	return string([]byte{rankSymbol[c.Rank], suitLetter[c.Suit]})
}

func (c Card) String() string {
	return fmt.Sprintf("%s of %s", c.Rank.String(), c.Suit.String())
}

// ParseFace is the pure deserializer for wire card references. Reconstructed
// cards are indistinguishable from live ones. A malformed face is a
// ValidationError: bad client input, rejected to the sender, never a
// failure of the match itself.
func ParseFace(face string) (Card, error) {
	if len(face) != 2 {
		return Card{}, validationError("INVALID_CARD", "face must be two characters, got %q", face)
	}

	var card Card
	foundRank := false
	for rank, sym := range rankSymbol {
		if sym == face[0] {
			card.Rank = rank
			foundRank = true
			break
		}
	}
	if !foundRank {
		return Card{}, validationError("INVALID_CARD", "unknown rank %q", face[0])
	}

	foundSuit := false
	for suit, letter := range suitLetter {
		if letter == face[1] {
			card.Suit = suit
			foundSuit = true
			break
		}
	}
	if !foundSuit {
		return Card{}, validationError("INVALID_CARD", "unknown suit %q", face[1])
	}

	return card, nil
}

type Deck struct {
	Cards []Card `json:"cards"`
}

func NewDeck() *Deck {
	deck := make([]Card, 0, 40)
	ranks := []Rank{Two, Three, Four, Five, Six, Queen, Jack, King, Seven, Ace}
	suits := []Suit{Hearts, Diamonds, Clubs, Spades}

	for _, suit := range suits {
		for _, rank := range ranks {
			deck = append(deck, Card{suit, rank})
		}
	}

	return &Deck{deck}
}

func (d Deck) Count() int {
	return len(d.Cards)
}

// Draw removes and returns the top card. The top is the end of the slice,
// so the bottom card (index 0) is the last one dealt.
func (d *Deck) Draw() (Card, bool) {
	if len(d.Cards) == 0 {
		return Card{}, false
	}
	card := d.Cards[len(d.Cards)-1]
	d.Cards = d.Cards[:len(d.Cards)-1]
	return card, true
}

// Bottom returns the face-up trump card without removing it. It stays in
// the deck and is dealt last.
func (d Deck) Bottom() (Card, bool) {
	if len(d.Cards) == 0 {
		return Card{}, false
	}
	return d.Cards[0], true
}

func (d *Deck) Shuffle() {
	rand.Shuffle(d.Count(), func(i, j int) {
		d.Cards[i], d.Cards[j] = d.Cards[j], d.Cards[i]
	})
}
