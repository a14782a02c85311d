// internal/game/sync_state.go
package game

import (
	"time"

	"github.com/google/uuid"

	engine "github.com/michaelongaro/Squeak-sub000/engine"
	"github.com/michaelongaro/Squeak-sub000/internal/models"
)

// PlayerView is one seat as seen by a particular observer.
type PlayerView struct {
	PlayerID        uuid.UUID            `json:"playerId"`
	Username        string               `json:"username"`
	IsBot           bool                 `json:"isBot"`
	IsHost          bool                 `json:"isHost"`
	Connected       bool                 `json:"connected"`
	Score           int                  `json:"score"`
	Rank            int                  `json:"rank"`
	HandTop         *engine.Card         `json:"handTop,omitempty"`
	DeckRemaining   int                  `json:"deckRemaining"`
	SqueakDeckCount int                  `json:"squeakDeckCount"`
	SqueakStacks    []engine.SqueakStack `json:"squeakStacks"`
	CardsPlaced     int                  `json:"cardsPlaced"`
	// TopCardsInDeck is only filled in for the observer's own seat.
	TopCardsInDeck []engine.Card `json:"topCardsInDeck,omitempty"`
}

// RoomView is the full snapshot sent in syncState events.
type RoomView struct {
	RoomID            uuid.UUID          `json:"roomId"`
	Code              string             `json:"code"`
	Seq               uint64             `json:"seq"`
	Phase             engine.Phase       `json:"phase"`
	Round             int                `json:"round"`
	PointsToWin       int                `json:"pointsToWin"`
	HostID            uuid.UUID          `json:"hostId"`
	Board             engine.Board       `json:"board"`
	Players           []PlayerView       `json:"players"`
	Vote              *engine.VoteTally  `json:"vote,omitempty"`
	VoteLockoutUntil  time.Time          `json:"voteLockoutUntil,omitempty"`
	DeadlockRotations int                `json:"deadlockRotations"`
	LastScoreboard    *engine.Scoreboard `json:"lastScoreboard,omitempty"`
}

// GetRoomView builds a snapshot tailored to forUser. Pass uuid.Nil for a spectator view.
// Worker only.
func (r *Room) GetRoomView(forUser uuid.UUID) RoomView {
	view := RoomView{
		RoomID:            r.ID,
		Code:              r.Code,
		Seq:               r.seq,
		Phase:             r.game.Phase,
		Round:             r.game.Round,
		PointsToWin:       r.game.PointsToWin,
		HostID:            r.hostID,
		Board:             r.game.Board.Clone(),
		DeadlockRotations: r.game.DeadlockRotations,
		LastScoreboard:    r.lastScoreboard,
	}
	if r.votes.Active != nil {
		v := r.votes.Active
		ballots := make(map[engine.PlayerID]engine.Ballot, len(v.Ballots))
		for k, b := range v.Ballots {
			ballots[k] = b
		}
		view.Vote = &engine.VoteTally{
			VoteID:    v.ID,
			Type:      v.Type,
			Initiator: v.Initiator,
			Ballots:   ballots,
			Needed:    len(r.game.ConnectedPlayers()),
			Outcome:   engine.VotePending,
			ExpiresAt: v.ExpiresAt,
		}
	}
	if r.votes.LockedOut(r.now()) {
		view.VoteLockoutUntil = r.votes.LockoutUntil
	}
	for _, p := range r.players {
		view.Players = append(view.Players, r.playerView(p, forUser))
	}
	return view
}

func (r *Room) playerView(p *models.Player, forUser uuid.UUID) PlayerView {
	pv := PlayerView{
		PlayerID:  p.ID,
		Username:  p.Username(),
		IsBot:     p.IsBot(),
		IsHost:    p.ID == r.hostID,
		Connected: p.Connected,
	}
	id := pid(p.ID)
	for i, s := range r.game.Standings {
		if s == id {
			pv.Rank = i + 1
			break
		}
	}
	ps := r.game.Player(id)
	if ps == nil {
		return pv
	}
	pv.Score = ps.Score
	pv.CardsPlaced = len(ps.CardsPlaced)
	if r.game.Phase == engine.PhaseLobby {
		return pv
	}
	pv.HandTop = ps.HandTop()
	pv.DeckRemaining = len(ps.Deck) - ps.DeckCursor
	pv.SqueakDeckCount = len(ps.SqueakDeck)
	pv.SqueakStacks = make([]engine.SqueakStack, len(ps.SqueakHand))
	for i, s := range ps.SqueakHand {
		pv.SqueakStacks[i] = append(engine.SqueakStack(nil), s...)
	}
	if p.ID == forUser {
		pv.TopCardsInDeck = ps.TopCardsInDeck()
	}
	return pv
}
