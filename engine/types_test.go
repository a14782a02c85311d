package engine

import (
	"encoding/json"
	"testing"
)

// TestNewDeckHas52UniqueCards verifies the ordered deck covers every suit and rank once.
func TestNewDeckHas52UniqueCards(t *testing.T) {
	deck := NewDeck()
	if len(deck) != DeckSize {
		t.Fatalf("len(deck) = %d, want %d", len(deck), DeckSize)
	}
	seen := make(map[Card]bool)
	for i, c := range deck {
		if !c.Valid() {
			t.Errorf("deck[%d] = %v is not a valid card", i, c)
		}
		if seen[c] {
			t.Errorf("duplicate card %v at index %d", c, i)
		}
		seen[c] = true
	}
}

// TestShuffleDeterministic verifies a seed fully determines the permutation.
func TestShuffleDeterministic(t *testing.T) {
	a, b, c := NewDeck(), NewDeck(), NewDeck()
	Shuffle(a, 42)
	Shuffle(b, 42)
	Shuffle(c, 43)

	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("same seed diverged at index %d: %v vs %v", i, a[i], b[i])
		}
	}
	same := true
	for i := range a {
		if a[i] != c[i] {
			same = false
			break
		}
	}
	if same {
		t.Error("different seeds produced the same order")
	}

	seen := make(map[Card]bool)
	for _, card := range a {
		seen[card] = true
	}
	if len(seen) != DeckSize {
		t.Errorf("shuffle lost cards: %d unique, want %d", len(seen), DeckSize)
	}
}

// TestShuffleSeedZero verifies seed 0 still shuffles instead of locking the generator.
func TestShuffleSeedZero(t *testing.T) {
	deck := NewDeck()
	Shuffle(deck, 0)
	ordered := NewDeck()
	moved := 0
	for i := range deck {
		if deck[i] != ordered[i] {
			moved++
		}
	}
	if moved == 0 {
		t.Error("seed 0 left the deck in order")
	}
}

func TestCardColor(t *testing.T) {
	tests := []struct {
		card string
		want Color
	}{
		{"AC", Black},
		{"7S", Black},
		{"10D", Red},
		{"KH", Red},
	}
	for _, tt := range tests {
		if got := MustParseCard(tt.card).Color(); got != tt.want {
			t.Errorf("%s.Color() = %d, want %d", tt.card, got, tt.want)
		}
	}
}

func TestCardStringRoundTrip(t *testing.T) {
	for _, c := range NewDeck() {
		if got := MustParseCard(c.String()); got != c {
			t.Errorf("MustParseCard(%q) = %v, want %v", c.String(), got, c)
		}
	}
}

func TestParseCardRejectsGarbage(t *testing.T) {
	tests := []struct{ suit, value string }{
		{"X", "A"},
		{"H", "1"},
		{"H", "11"},
		{"S", "Z"},
		{"H", "7x"},
		{"H", "+7"},
		{"D", " 9"},
		{"", ""},
	}
	for _, tt := range tests {
		if _, err := ParseCard(tt.suit, tt.value); err == nil {
			t.Errorf("ParseCard(%q, %q) succeeded, want error", tt.suit, tt.value)
		}
	}
}

// TestCardJSONWireForm verifies the {"suit","value"} encoding clients rely on.
func TestCardJSONWireForm(t *testing.T) {
	data, err := json.Marshal(MustParseCard("10H"))
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if string(data) != `{"suit":"H","value":"10"}` {
		t.Errorf("Marshal = %s", data)
	}

	var c Card
	if err := json.Unmarshal([]byte(`{"suit":"H","value":"7x"}`), &c); err == nil {
		t.Errorf("Unmarshal accepted a trailing-junk value as %v", c)
	}
	if err := json.Unmarshal([]byte(`{"suit":"S","value":"Q"}`), &c); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if c != NewCard(SuitSpades, RankQueen) {
		t.Errorf("Unmarshal = %v, want QS", c)
	}
	if err := json.Unmarshal([]byte(`{"suit":"S","value":"0"}`), &c); err == nil {
		t.Error("Unmarshal accepted value 0")
	}
}
