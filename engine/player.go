package engine

// PlayerID identifies a player inside the engine. The service layer uses UUID strings.
type PlayerID string

// PlayerState holds one player's cards for the current round plus their running score.
type PlayerState struct {
	ID PlayerID

	// Deck is the player's draw pile. Cards [0, DeckCursor) have been flipped; the card at
	// DeckCursor-1 is the playable hand top.
	Deck       []Card
	DeckCursor int

	// SqueakDeck is the hidden reserve; the last element is the next card revealed.
	SqueakDeck []Card
	SqueakHand [SqueakStacks]SqueakStack

	Score       int    // cumulative over rounds
	CardsPlaced []Card // board placements this round
	Squeaked    bool
	Connected   bool
}

// NewPlayerState returns a connected player with no cards dealt.
func NewPlayerState(id PlayerID) *PlayerState {
	return &PlayerState{ID: id, Connected: true}
}

// deal shuffles a fresh 52-card deck: 13 to the squeak deck, 39 to the deck, then the top
// four deck cards seed the squeak stacks.
func (p *PlayerState) deal(seed uint64) {
	cards := NewDeck()
	Shuffle(cards, seed)

	p.SqueakDeck = append([]Card(nil), cards[:SqueakDeckSize]...)
	p.Deck = append([]Card(nil), cards[SqueakDeckSize:]...)
	p.DeckCursor = 0
	for i := range p.SqueakHand {
		top := p.Deck[len(p.Deck)-1]
		p.Deck = p.Deck[:len(p.Deck)-1]
		p.SqueakHand[i] = SqueakStack{top}
	}
	p.CardsPlaced = nil
	p.Squeaked = false
}

// HandTop returns the playable top of the flipped hand, or nil.
func (p *PlayerState) HandTop() *Card {
	if p.DeckCursor <= 0 || p.DeckCursor > len(p.Deck) {
		return nil
	}
	c := p.Deck[p.DeckCursor-1]
	return &c
}

// TopCardsInDeck returns the visible draw window, oldest first; the last card is playable.
func (p *PlayerState) TopCardsInDeck() []Card {
	if p.DeckCursor <= 0 {
		return nil
	}
	start := p.DeckCursor - DrawCount
	if start < 0 {
		start = 0
	}
	return append([]Card(nil), p.Deck[start:p.DeckCursor]...)
}

// Draw flips the next three cards. At the end of the deck the hand is turned back over and
// the draw starts again from the beginning in the same action.
// It returns the newly playable card (nil when the deck is empty) and whether it recycled.
func (p *PlayerState) Draw() (*Card, bool) {
	if len(p.Deck) == 0 {
		return nil, false
	}
	recycled := false
	if p.DeckCursor >= len(p.Deck) {
		p.DeckCursor = 0
		recycled = true
	}
	p.DeckCursor += DrawCount
	if p.DeckCursor > len(p.Deck) {
		p.DeckCursor = len(p.Deck)
	}
	return p.HandTop(), recycled
}

// takeHandTop removes the hand top; the previous flipped card becomes playable.
func (p *PlayerState) takeHandTop() Card {
	idx := p.DeckCursor - 1
	c := p.Deck[idx]
	p.Deck = append(p.Deck[:idx], p.Deck[idx+1:]...)
	p.DeckCursor--
	return c
}

// refillStack moves the top squeak-deck card onto an emptied squeak stack.
// It reports the revealed card, if any.
func (p *PlayerState) refillStack(i int) *Card {
	if len(p.SqueakHand[i]) > 0 || len(p.SqueakDeck) == 0 {
		return nil
	}
	c := p.SqueakDeck[len(p.SqueakDeck)-1]
	p.SqueakDeck = p.SqueakDeck[:len(p.SqueakDeck)-1]
	p.SqueakHand[i] = SqueakStack{c}
	return &c
}

// rotate moves the first deck card to the bottom so the draw window surfaces different cards.
func (p *PlayerState) rotate() {
	if len(p.Deck) < 2 {
		return
	}
	first := p.Deck[0]
	copy(p.Deck, p.Deck[1:])
	p.Deck[len(p.Deck)-1] = first
}

// SqueakHandCount is the number of cards in the four visible squeak stacks.
func (p *PlayerState) SqueakHandCount() int {
	n := 0
	for _, s := range p.SqueakHand {
		n += len(s)
	}
	return n
}

// OwnedCardCount counts every card of this player's deck still in play, including board
// contributions. It is 52 for the whole round.
func (p *PlayerState) OwnedCardCount(b *Board) int {
	n := len(p.Deck) + len(p.SqueakDeck) + p.SqueakHandCount()
	for r := range b {
		for c := range b[r] {
			for _, pc := range b[r][c] {
				if pc.Owner == p.ID {
					n++
				}
			}
		}
	}
	return n
}

// reachableHandCards lists deck positions that can become the playable hand top during a
// full draw cycle, continuing from the current cursor and from a fresh cycle.
func (p *PlayerState) reachableHandCards() []int {
	n := len(p.Deck)
	if n == 0 {
		return nil
	}
	seen := make(map[int]bool)
	var out []int
	add := func(pos int) {
		if pos >= 0 && pos < n && !seen[pos] {
			seen[pos] = true
			out = append(out, pos)
		}
	}
	if p.DeckCursor > 0 {
		add(p.DeckCursor - 1)
	}
	for c := p.DeckCursor; c < n; {
		c += DrawCount
		if c > n {
			c = n
		}
		add(c - 1)
	}
	for c := 0; c < n; {
		c += DrawCount
		if c > n {
			c = n
		}
		add(c - 1)
	}
	return out
}

// Clone deep-copies the player state.
func (p *PlayerState) Clone() *PlayerState {
	cp := *p
	cp.Deck = append([]Card(nil), p.Deck...)
	cp.SqueakDeck = append([]Card(nil), p.SqueakDeck...)
	cp.CardsPlaced = append([]Card(nil), p.CardsPlaced...)
	for i := range p.SqueakHand {
		cp.SqueakHand[i] = append(SqueakStack(nil), p.SqueakHand[i]...)
	}
	return &cp
}
