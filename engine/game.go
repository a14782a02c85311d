// Package engine implements the Squeak card game rules.
//
// Everything here is deterministic and free of I/O: the service layer owns one Game per
// room and is responsible for serializing access to it. Proposals, draws, votes and round
// resolution are plain method calls that either mutate the game and return a result, or
// return an error and leave the game untouched.
package engine

import "fmt"

// Phase is the lifecycle stage of a game.
type Phase string

const (
	PhaseLobby     Phase = "lobby"
	PhasePlaying   Phase = "playing"
	PhaseRoundOver Phase = "roundOver"
	PhaseGameOver  Phase = "gameOver"
)

// Game is the authoritative state shared by the players of one room.
type Game struct {
	Board   Board
	Players map[PlayerID]*PlayerState

	// Standings is the current rank order, best first. New players are appended, so before
	// the first round it is the join order.
	Standings []PlayerID

	Round             int
	// DeadlockRotations counts automatic rotations since the last applied move.
	DeadlockRotations int
	PointsToWin       int
	Phase             Phase
	Winner            PlayerID

	seed uint64
}

// NewGame creates an empty game in the lobby phase.
func NewGame(seed uint64, pointsToWin int) *Game {
	if pointsToWin <= 0 {
		pointsToWin = DefaultPointsToWin
	}
	return &Game{
		Players:     make(map[PlayerID]*PlayerState),
		PointsToWin: pointsToWin,
		Phase:       PhaseLobby,
		seed:        seed,
	}
}

// DefaultPointsToWin is used when a room is created without a target.
const DefaultPointsToWin = 100

// AddPlayer seats a new player. Only allowed before the first round.
func (g *Game) AddPlayer(id PlayerID) error {
	if g.Phase != PhaseLobby {
		return fmt.Errorf("add player %s: %w", id, ErrWrongPhase)
	}
	if _, ok := g.Players[id]; ok {
		return fmt.Errorf("add player %s: %w", id, ErrPlayerExists)
	}
	if len(g.Players) >= MaxPlayers {
		return ErrRoomFull
	}
	g.Players[id] = NewPlayerState(id)
	g.Standings = append(g.Standings, id)
	return nil
}

// RemovePlayer drops a player from the lobby. Once cards are dealt a player's cards stay in
// play, so removal is refused outside the lobby.
func (g *Game) RemovePlayer(id PlayerID) error {
	if _, ok := g.Players[id]; !ok {
		return ErrUnknownPlayer
	}
	if g.Phase != PhaseLobby && g.Phase != PhaseGameOver {
		return fmt.Errorf("remove player %s: %w", id, ErrWrongPhase)
	}
	delete(g.Players, id)
	for i, pid := range g.Standings {
		if pid == id {
			g.Standings = append(g.Standings[:i], g.Standings[i+1:]...)
			break
		}
	}
	return nil
}

// Player returns the state for id or nil.
func (g *Game) Player(id PlayerID) *PlayerState {
	return g.Players[id]
}

// SetConnected records a player's connection status.
func (g *Game) SetConnected(id PlayerID, connected bool) error {
	p := g.Players[id]
	if p == nil {
		return ErrUnknownPlayer
	}
	p.Connected = connected
	return nil
}

// ConnectedPlayers returns connected players in standings order.
func (g *Game) ConnectedPlayers() []PlayerID {
	var out []PlayerID
	for _, id := range g.Standings {
		if p := g.Players[id]; p != nil && p.Connected {
			out = append(out, id)
		}
	}
	return out
}

// StartRound deals a new round to every seated player and clears the board.
func (g *Game) StartRound() error {
	if g.Phase != PhaseLobby && g.Phase != PhaseRoundOver {
		return fmt.Errorf("start round: %w", ErrWrongPhase)
	}
	if len(g.Players) < MinPlayers {
		return ErrNotEnoughPlayers
	}
	g.Round++
	g.Board = Board{}
	g.DeadlockRotations = 0
	for i, id := range g.Standings {
		g.Players[id].deal(g.roundSeed(i))
	}
	g.Phase = PhasePlaying
	return nil
}

func (g *Game) roundSeed(seat int) uint64 {
	// Spread seeds so players never share a shuffle in the same round.
	return g.seed ^ (uint64(g.Round) * 0x9E3779B97F4A7C15) ^ (uint64(seat+1) * 0xBF58476D1CE4E5B9)
}

// Draw flips the next three cards of a player's deck.
func (g *Game) Draw(id PlayerID) (*Card, bool, error) {
	if g.Phase != PhasePlaying {
		return nil, false, fmt.Errorf("draw: %w", ErrWrongPhase)
	}
	p := g.Players[id]
	if p == nil {
		return nil, false, ErrUnknownPlayer
	}
	card, recycled := p.Draw()
	return card, recycled, nil
}

// Clone deep-copies the game for read-only snapshots.
func (g *Game) Clone() *Game {
	cp := *g
	cp.Board = g.Board.Clone()
	cp.Standings = append([]PlayerID(nil), g.Standings...)
	cp.Players = make(map[PlayerID]*PlayerState, len(g.Players))
	for id, p := range g.Players {
		cp.Players[id] = p.Clone()
	}
	return &cp
}
