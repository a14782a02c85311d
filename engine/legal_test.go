package engine

import "testing"

// cards parses a list of card literals.
func cards(ss ...string) []Card {
	out := make([]Card, len(ss))
	for i, s := range ss {
		out[i] = MustParseCard(s)
	}
	return out
}

func pile(owner PlayerID, ss ...string) BoardPile {
	var p BoardPile
	for _, c := range cards(ss...) {
		p = append(p, PlacedCard{Card: c, Owner: owner})
	}
	return p
}

func TestIsLegalBoardPlacement(t *testing.T) {
	tests := []struct {
		name string
		pile BoardPile
		card string
		want bool
	}{
		{"ace on empty", nil, "AH", true},
		{"two on empty", nil, "2H", false},
		{"king on empty", nil, "KS", false},
		{"next rank same suit", pile("a", "AH"), "2H", true},
		{"next rank other suit", pile("a", "AH"), "2D", false},
		{"skip a rank", pile("a", "AH"), "3H", false},
		{"same rank", pile("a", "AH", "2H"), "2H", false},
		{"queen to king", pile("a", "AC", "2C", "3C", "4C", "5C", "6C", "7C", "8C", "9C", "10C", "JC", "QC"), "KC", true},
		{"nothing on king", pile("a", "AC", "2C", "3C", "4C", "5C", "6C", "7C", "8C", "9C", "10C", "JC", "QC", "KC"), "AC", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsLegalBoardPlacement(tt.pile, MustParseCard(tt.card)); got != tt.want {
				t.Errorf("IsLegalBoardPlacement(%s) = %v, want %v", tt.card, got, tt.want)
			}
		})
	}
}

func TestIsLegalSqueakPlacement(t *testing.T) {
	top := func(s string) *Card {
		c := MustParseCard(s)
		return &c
	}
	tests := []struct {
		name string
		top  *Card
		card string
		want bool
	}{
		{"empty stack", nil, "KH", false},
		{"black on red", top("5H"), "4S", true},
		{"black club on red", top("5H"), "4C", true},
		{"red on black", top("9C"), "8D", true},
		{"same colour", top("5H"), "4D", false},
		{"ascending", top("5H"), "6S", false},
		{"same rank", top("5H"), "5S", false},
		{"ace on two", top("2D"), "AS", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsLegalSqueakPlacement(tt.top, MustParseCard(tt.card)); got != tt.want {
				t.Errorf("IsLegalSqueakPlacement(%s) = %v, want %v", tt.card, got, tt.want)
			}
		})
	}
}

func TestIsValidSqueakRun(t *testing.T) {
	tests := []struct {
		run  []Card
		want bool
	}{
		{nil, true},
		{cards("KH"), true},
		{cards("9S", "8H", "7C"), true},
		{cards("9S", "8S"), false},
		{cards("9S", "8H", "6C"), false},
		{cards("7C", "8H"), false},
	}
	for _, tt := range tests {
		if got := IsValidSqueakRun(tt.run); got != tt.want {
			t.Errorf("IsValidSqueakRun(%v) = %v, want %v", tt.run, got, tt.want)
		}
	}
}

func TestIsValidBoardPile(t *testing.T) {
	if !IsValidBoardPile(pile("a", "AD", "2D", "3D")) {
		t.Error("AD 2D 3D should be valid")
	}
	if IsValidBoardPile(pile("a", "2D", "3D")) {
		t.Error("pile without an Ace base should be invalid")
	}
	if IsValidBoardPile(pile("a", "AD", "2H")) {
		t.Error("mixed suits should be invalid")
	}
}

func TestCoordValid(t *testing.T) {
	valid := []Coord{{0, 0}, {3, 4}, {2, 1}}
	invalid := []Coord{{-1, 0}, {4, 0}, {0, 5}, {0, -1}}
	for _, c := range valid {
		if !c.Valid() {
			t.Errorf("%v should be valid", c)
		}
	}
	for _, c := range invalid {
		if c.Valid() {
			t.Errorf("%v should be invalid", c)
		}
	}
}
