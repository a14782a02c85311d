package engine

// LegalMoves enumerates the productive moves currently open to a player: hand top or
// squeak tops to the board, hand top onto an own squeak stack, and squeak slides that empty
// their source stack or expose a board-playable card.
func (g *Game) LegalMoves(id PlayerID) []MoveProposal {
	if g.Phase != PhasePlaying {
		return nil
	}
	p := g.Players[id]
	if p == nil {
		return nil
	}
	var moves []MoveProposal

	if top := p.HandTop(); top != nil {
		hand := Origin{Kind: OriginDeckHand}
		moves = append(moves, g.boardMovesFor(id, *top, hand)...)
		for i := range p.SqueakHand {
			if IsLegalSqueakPlacement(p.SqueakHand[i].Top(), *top) {
				moves = append(moves, MoveProposal{
					PlayerID: id, Card: *top, Origin: hand,
					Dest: Destination{Kind: DestSqueakStack, Index: i, Owner: id},
				})
			}
		}
	}

	for i, stack := range p.SqueakHand {
		if len(stack) == 0 {
			continue
		}
		origin := Origin{Kind: OriginSqueakStack, Index: i}
		moves = append(moves, g.boardMovesFor(id, stack[len(stack)-1], origin)...)

		for j := range stack {
			if !IsValidSqueakRun(stack[j:]) {
				continue
			}
			if !g.slideIsProductive(p, i, j) {
				continue
			}
			for k := range p.SqueakHand {
				if k == i || !IsLegalSqueakPlacement(p.SqueakHand[k].Top(), stack[j]) {
					continue
				}
				moves = append(moves, MoveProposal{
					PlayerID: id, Card: stack[j], Origin: origin,
					Dest: Destination{Kind: DestSqueakStack, Index: k, Owner: id},
				})
			}
		}
	}
	return moves
}

func (g *Game) boardMovesFor(id PlayerID, card Card, origin Origin) []MoveProposal {
	var moves []MoveProposal
	for r := 0; r < BoardRows; r++ {
		for c := 0; c < BoardCols; c++ {
			if IsLegalBoardPlacement(g.Board[r][c], card) {
				moves = append(moves, MoveProposal{
					PlayerID: id, Card: card, Origin: origin,
					Dest: Destination{Kind: DestBoard, Coord: Coord{Row: r, Col: c}},
				})
				if card.Rank == RankAce {
					// Every empty cell is equivalent for an Ace.
					return moves
				}
			}
		}
	}
	return moves
}

// slideIsProductive reports whether moving stack[j:] off stack i makes progress.
func (g *Game) slideIsProductive(p *PlayerState, i, j int) bool {
	if j == 0 {
		return len(p.SqueakDeck) > 0
	}
	return g.canPlayOnBoard(p.SqueakHand[i][j-1])
}

func (g *Game) canPlayOnBoard(card Card) bool {
	for r := 0; r < BoardRows; r++ {
		for c := 0; c < BoardCols; c++ {
			if IsLegalBoardPlacement(g.Board[r][c], card) {
				return true
			}
		}
	}
	return false
}

// hasProductiveMove includes hand cards reachable by drawing, not only the current top. A
// player with an empty squeak deck can always squeak.
func (g *Game) hasProductiveMove(p *PlayerState) bool {
	if len(p.SqueakDeck) == 0 {
		return true
	}
	if len(g.LegalMoves(p.ID)) > 0 {
		return true
	}
	for _, pos := range p.reachableHandCards() {
		card := p.Deck[pos]
		if g.canPlayOnBoard(card) {
			return true
		}
		for _, stack := range p.SqueakHand {
			if IsLegalSqueakPlacement(stack.Top(), card) {
				return true
			}
		}
	}
	return false
}

// IsDeadlocked reports whether no connected player has any productive move, considering
// every hand card that can surface through drawing.
func (g *Game) IsDeadlocked() bool {
	if g.Phase != PhasePlaying {
		return false
	}
	connected := g.ConnectedPlayers()
	if len(connected) == 0 {
		return false
	}
	for _, id := range connected {
		if g.hasProductiveMove(g.Players[id]) {
			return false
		}
	}
	return true
}

// RotateDecks moves the first card of every player's deck to the bottom so the draw window
// surfaces different cards.
func (g *Game) RotateDecks() error {
	if g.Phase != PhasePlaying {
		return ErrWrongPhase
	}
	for _, id := range g.Standings {
		g.Players[id].rotate()
	}
	return nil
}

// DefaultRotationCeiling bounds consecutive automatic deadlock rotations.
const DefaultRotationCeiling = 52

// RotationCycle is the number of rotations after which every deck card has passed through
// a reachable draw position. A deadlock that survives this many rotations in a row cannot
// be broken by rotating alone.
const RotationCycle = DrawCount

// RotateForDeadlock performs an automatic deadlock rotation. Once ceiling rotations have
// happened without a move being applied in between, the round is ended without a squeaker
// instead, and the scoreboard is returned.
func (g *Game) RotateForDeadlock(ceiling int) (*Scoreboard, error) {
	if ceiling <= 0 {
		ceiling = DefaultRotationCeiling
	}
	if g.DeadlockRotations >= ceiling {
		return g.EndRound("")
	}
	if err := g.RotateDecks(); err != nil {
		return nil, err
	}
	g.DeadlockRotations++
	return nil, nil
}
