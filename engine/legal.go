package engine

// PlacedCard is a card on the shared board together with the player who placed it.
type PlacedCard struct {
	Card  Card     `json:"card"`
	Owner PlayerID `json:"owner"`
}

// BoardPile is an ascending same-suit pile built from an Ace.
type BoardPile []PlacedCard

// Top returns the last placed card, or nil for an empty pile.
func (p BoardPile) Top() *Card {
	if len(p) == 0 {
		return nil
	}
	c := p[len(p)-1].Card
	return &c
}

// Coord addresses a board cell.
type Coord struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

// Valid reports whether the coordinate is inside the 4x5 grid.
func (c Coord) Valid() bool {
	return c.Row >= 0 && c.Row < BoardRows && c.Col >= 0 && c.Col < BoardCols
}

// Board is the shared grid of piles.
type Board [BoardRows][BoardCols]BoardPile

// Pile returns the pile at coord. Caller must have validated the coordinate.
func (b *Board) Pile(at Coord) BoardPile {
	return b[at.Row][at.Col]
}

// Clone deep-copies the board.
func (b *Board) Clone() Board {
	var out Board
	for r := range b {
		for c := range b[r] {
			if len(b[r][c]) > 0 {
				out[r][c] = append(BoardPile(nil), b[r][c]...)
			}
		}
	}
	return out
}

// SqueakStack is one of a player's four visible descending, alternating-colour stacks.
// Index 0 is the bottom; the last element is the only card playable to the board.
type SqueakStack []Card

// Top returns the last-added card, or nil when empty.
func (s SqueakStack) Top() *Card {
	if len(s) == 0 {
		return nil
	}
	c := s[len(s)-1]
	return &c
}

// IndexOf returns the position of card within the stack, or -1.
func (s SqueakStack) IndexOf(card Card) int {
	for i, c := range s {
		if c == card {
			return i
		}
	}
	return -1
}

// ---------------------------------------------------------------------------
// Placement predicates
// ---------------------------------------------------------------------------

// IsLegalBoardPlacement reports whether card may be placed on pile.
// An empty pile takes only an Ace; otherwise the top must share the suit and be one rank lower.
func IsLegalBoardPlacement(pile BoardPile, card Card) bool {
	top := pile.Top()
	if top == nil {
		return card.Rank == RankAce
	}
	return top.Suit == card.Suit && top.Rank+1 == card.Rank
}

// IsLegalSqueakPlacement reports whether card may be placed onto a squeak stack whose
// top is stackTop. Empty stacks are only seeded at deal time, never during play.
func IsLegalSqueakPlacement(stackTop *Card, card Card) bool {
	if stackTop == nil {
		return false
	}
	return card.Color() != stackTop.Color() && card.Rank+1 == stackTop.Rank
}

// IsValidSqueakRun reports whether every adjacent pair in cards descends by one rank
// with alternating colour.
func IsValidSqueakRun(cards []Card) bool {
	for i := 1; i < len(cards); i++ {
		below := cards[i-1]
		if !IsLegalSqueakPlacement(&below, cards[i]) {
			return false
		}
	}
	return true
}

// IsValidBoardPile reports whether every adjacent pair is same-suit, rank+1, starting from an Ace.
func IsValidBoardPile(pile BoardPile) bool {
	for i := range pile {
		if !IsLegalBoardPlacement(pile[:i], pile[i].Card) {
			return false
		}
	}
	return true
}
