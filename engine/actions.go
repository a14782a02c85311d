package engine

// OriginKind names where a proposed card comes from.
type OriginKind string

const (
	OriginDeckHand    OriginKind = "deckHand"
	OriginSqueakStack OriginKind = "squeakStack"
)

// DestKind names where a proposed card goes.
type DestKind string

const (
	DestBoard       DestKind = "board"
	DestSqueakStack DestKind = "squeakStack"
)

// Origin locates the source of a proposal. Index is the squeak stack (0-3) when Kind is
// OriginSqueakStack.
type Origin struct {
	Kind  OriginKind `json:"kind"`
	Index int        `json:"index,omitempty"`
}

// Destination locates the target of a proposal. Coord applies to the board; Index and the
// optional Owner apply to squeak stacks.
type Destination struct {
	Kind  DestKind `json:"kind"`
	Coord Coord    `json:"coord"`
	Index int      `json:"index,omitempty"`
	Owner PlayerID `json:"owner,omitempty"`
}

// MoveProposal is one player's request to move a card. ClientTimestamp is informational
// only; arbitration order is the order proposals reach the room.
type MoveProposal struct {
	PlayerID        PlayerID    `json:"playerId"`
	Card            Card        `json:"card"`
	Origin          Origin      `json:"origin"`
	Dest            Destination `json:"destination"`
	ClientTimestamp int64       `json:"clientTimestamp,omitempty"`
}

// MoveResult describes an applied move.
type MoveResult struct {
	Proposal MoveProposal
	Moved    []Card // the card, or the run for a squeak slide

	// RevealedHandTop is the new playable hand card after a hand play.
	RevealedHandTop *Card
	// RefilledStack is the squeak stack refilled from the squeak deck, or -1.
	RefilledStack int
	RefilledCard  *Card
}

// ApplyMove validates a proposal against the current state and applies it atomically.
// A denied proposal returns a *MoveError and leaves the game unchanged.
func (g *Game) ApplyMove(p MoveProposal) (*MoveResult, error) {
	run, err := g.validate(p)
	if err != nil {
		return nil, err
	}

	player := g.Players[p.PlayerID]
	res := &MoveResult{Proposal: p, Moved: run, RefilledStack: -1}

	switch p.Origin.Kind {
	case OriginDeckHand:
		player.takeHandTop()
		res.RevealedHandTop = player.HandTop()
	case OriginSqueakStack:
		src := p.Origin.Index
		player.SqueakHand[src] = player.SqueakHand[src][:len(player.SqueakHand[src])-len(run)]
		if c := player.refillStack(src); c != nil {
			res.RefilledStack = src
			res.RefilledCard = c
		}
	}

	switch p.Dest.Kind {
	case DestBoard:
		at := p.Dest.Coord
		g.Board[at.Row][at.Col] = append(g.Board[at.Row][at.Col], PlacedCard{Card: p.Card, Owner: p.PlayerID})
		player.CardsPlaced = append(player.CardsPlaced, p.Card)
	case DestSqueakStack:
		dst := p.Dest.Index
		player.SqueakHand[dst] = append(player.SqueakHand[dst], run...)
	}
	g.DeadlockRotations = 0
	return res, nil
}

// validate returns the cards that would move.
func (g *Game) validate(p MoveProposal) ([]Card, error) {
	if g.Phase != PhasePlaying {
		return nil, deny(DenyWrongPhase)
	}
	player := g.Players[p.PlayerID]
	if player == nil {
		return nil, deny(DenyUnknownPlayer)
	}

	var run []Card
	switch p.Origin.Kind {
	case OriginDeckHand:
		top := player.HandTop()
		if top == nil {
			return nil, deny(DenyBadOrigin)
		}
		if *top != p.Card {
			return nil, deny(DenyCardMismatch)
		}
		run = []Card{p.Card}
	case OriginSqueakStack:
		if p.Origin.Index < 0 || p.Origin.Index >= SqueakStacks {
			return nil, deny(DenyBadOrigin)
		}
		stack := player.SqueakHand[p.Origin.Index]
		if len(stack) == 0 {
			return nil, deny(DenyBadOrigin)
		}
		j := stack.IndexOf(p.Card)
		if j < 0 {
			return nil, deny(DenyCardMismatch)
		}
		if p.Dest.Kind == DestBoard && j != len(stack)-1 {
			return nil, deny(DenyNotLastCard)
		}
		run = append([]Card(nil), stack[j:]...)
		if !IsValidSqueakRun(run) {
			return nil, deny(DenyInvalidRun)
		}
	default:
		return nil, deny(DenyBadOrigin)
	}

	switch p.Dest.Kind {
	case DestBoard:
		if !p.Dest.Coord.Valid() {
			return nil, deny(DenyBadDestination)
		}
		if len(run) != 1 {
			return nil, deny(DenyNotLastCard)
		}
		if !IsLegalBoardPlacement(g.Board.Pile(p.Dest.Coord), p.Card) {
			return nil, deny(DenyIllegalBoard)
		}
	case DestSqueakStack:
		if p.Dest.Owner != "" && p.Dest.Owner != p.PlayerID {
			return nil, deny(DenyForeignStack)
		}
		if p.Dest.Index < 0 || p.Dest.Index >= SqueakStacks {
			return nil, deny(DenyBadDestination)
		}
		if p.Origin.Kind == OriginSqueakStack && p.Origin.Index == p.Dest.Index {
			return nil, deny(DenySameStack)
		}
		dest := player.SqueakHand[p.Dest.Index]
		if !IsLegalSqueakPlacement(dest.Top(), run[0]) {
			return nil, deny(DenyIllegalSqueak)
		}
		joined := append(append([]Card(nil), dest...), run...)
		if !IsValidSqueakRun(joined[len(dest)-1:]) {
			return nil, deny(DenyInvalidRun)
		}
	default:
		return nil, deny(DenyBadDestination)
	}
	return run, nil
}
