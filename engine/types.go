package engine

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Suit is one of the four French suits.
type Suit uint8

const (
	SuitClubs    Suit = 0
	SuitDiamonds Suit = 1
	SuitHearts   Suit = 2
	SuitSpades   Suit = 3
)

// Rank constants. Ace is low.
const (
	RankAce   uint8 = 1
	RankJack  uint8 = 11
	RankQueen uint8 = 12
	RankKing  uint8 = 13
)

// Color groups suits for squeak-stack alternation.
type Color uint8

const (
	Black Color = 0
	Red   Color = 1
)

var suitLetters = [4]string{"C", "D", "H", "S"}

// Card is an immutable, comparable playing card.
type Card struct {
	Suit Suit
	Rank uint8 // 1 (Ace) .. 13 (King)
}

// NewCard constructs a Card from suit and rank.
func NewCard(suit Suit, rank uint8) Card {
	return Card{Suit: suit, Rank: rank}
}

// Color returns Red for diamonds and hearts, Black otherwise.
func (c Card) Color() Color {
	if c.Suit == SuitDiamonds || c.Suit == SuitHearts {
		return Red
	}
	return Black
}

// Valid reports whether the card is a real member of a 52-card deck.
func (c Card) Valid() bool {
	return c.Suit <= SuitSpades && c.Rank >= RankAce && c.Rank <= RankKing
}

// SuitString returns the single-letter suit code.
func (c Card) SuitString() string {
	if c.Suit > SuitSpades {
		return "?"
	}
	return suitLetters[c.Suit]
}

// ValueString returns the face value: A, 2..10, J, Q, K.
func (c Card) ValueString() string {
	switch c.Rank {
	case RankAce:
		return "A"
	case RankJack:
		return "J"
	case RankQueen:
		return "Q"
	case RankKing:
		return "K"
	}
	if c.Rank >= 2 && c.Rank <= 10 {
		return fmt.Sprintf("%d", c.Rank)
	}
	return "?"
}

// String renders the card as value+suit, e.g. "10H".
func (c Card) String() string {
	return c.ValueString() + c.SuitString()
}

// ParseCard parses a suit letter and face value into a Card.
func ParseCard(suit, value string) (Card, error) {
	var c Card
	switch strings.ToUpper(suit) {
	case "C":
		c.Suit = SuitClubs
	case "D":
		c.Suit = SuitDiamonds
	case "H":
		c.Suit = SuitHearts
	case "S":
		c.Suit = SuitSpades
	default:
		return Card{}, fmt.Errorf("unknown suit %q", suit)
	}
	switch strings.ToUpper(value) {
	case "A":
		c.Rank = RankAce
	case "J":
		c.Rank = RankJack
	case "Q":
		c.Rank = RankQueen
	case "K":
		c.Rank = RankKing
	default:
		n, err := strconv.ParseUint(value, 10, 8)
		if err != nil || n < 2 || n > 10 {
			return Card{}, fmt.Errorf("unknown card value %q", value)
		}
		c.Rank = uint8(n)
	}
	return c, nil
}

// MustParseCard is ParseCard for literals in tests and fixtures.
// "10H" and "AS" style strings are accepted.
func MustParseCard(s string) Card {
	if len(s) < 2 {
		panic(fmt.Sprintf("bad card literal %q", s))
	}
	c, err := ParseCard(s[len(s)-1:], s[:len(s)-1])
	if err != nil {
		panic(err)
	}
	return c
}

type cardJSON struct {
	Suit  string `json:"suit"`
	Value string `json:"value"`
}

// MarshalJSON encodes the card as {"suit":"H","value":"10"}.
func (c Card) MarshalJSON() ([]byte, error) {
	return json.Marshal(cardJSON{Suit: c.SuitString(), Value: c.ValueString()})
}

// UnmarshalJSON decodes the {"suit","value"} form.
func (c *Card) UnmarshalJSON(data []byte) error {
	var raw cardJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParseCard(raw.Suit, raw.Value)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// ---------------------------------------------------------------------------
// Deck construction and shuffling
// ---------------------------------------------------------------------------

const (
	DeckSize       = 52
	SqueakDeckSize = 13
	SqueakStacks   = 4
	BoardRows      = 4
	BoardCols      = 5
	DrawCount      = 3
	MinPlayers     = 2
	MaxPlayers     = 5
)

// NewDeck returns an ordered 52-card deck.
func NewDeck() []Card {
	deck := make([]Card, 0, DeckSize)
	for s := SuitClubs; s <= SuitSpades; s++ {
		for r := RankAce; r <= RankKing; r++ {
			deck = append(deck, NewCard(s, r))
		}
	}
	return deck
}

// rng is an xorshift64 generator; deterministic per seed.
type rng struct{ state uint64 }

func newRNG(seed uint64) *rng {
	if seed == 0 {
		seed = 1 // xorshift can't start at 0
	}
	return &rng{state: seed}
}

func (r *rng) next() uint64 {
	x := r.state
	x ^= x << 13
	x ^= x >> 7
	x ^= x << 17
	r.state = x
	return x
}

// Shuffle performs an in-place Fisher-Yates shuffle seeded by seed.
func Shuffle(deck []Card, seed uint64) {
	r := newRNG(seed)
	for i := len(deck) - 1; i > 0; i-- {
		j := int(r.next() % uint64(i+1))
		deck[i], deck[j] = deck[j], deck[i]
	}
}
