// internal/game/events.go
package game

import (
	"github.com/google/uuid"
)

// GameEventType names an outbound event.
type GameEventType string

// Outbound events. Broadcast events advance the room timestamp; private ones carry the
// current value without advancing it.
const (
	EventCardDropApproved GameEventType = "cardDropApproved" // Public: a proposal was applied.
	EventCardDropDenied   GameEventType = "cardDropDenied"   // Private: the proposer's move was rejected.
	EventDeckDrawn        GameEventType = "deckDrawn"        // Public: a player flipped their deck.
	EventDecksRotated     GameEventType = "decksRotated"     // Public: every deck rotated by one card.
	EventVoteUpdated      GameEventType = "voteUpdated"      // Public: vote started, ballot cast, or resolved.
	EventRoundOver        GameEventType = "roundOver"        // Public: scoreboard for the finished round.
	EventGameOver         GameEventType = "gameOver"         // Public: a player reached the target.
	EventSyncState        GameEventType = "syncState"        // Private: full snapshot for one player.
	EventPlayerJoined     GameEventType = "playerJoined"     // Public.
	EventPlayerLeft       GameEventType = "playerLeft"       // Public.
	EventPlayerConnection GameEventType = "playerConnection" // Public: connected flag changed.
	EventHostChanged      GameEventType = "hostChanged"      // Public.
	EventRoundStarted     GameEventType = "roundStarted"     // Public.
	EventRoomClosed       GameEventType = "roomClosed"       // Public: the room is being torn down.
	EventError            GameEventType = "error"            // Private: a request was refused.
)

// Inbound action types, carried in models.GameAction.ActionType.
const (
	ActionProposeCardDrop = "proposeCardDrop"
	ActionDrawFromDeck    = "drawFromDeck"
	ActionSqueakPressed   = "squeakPressed"
	ActionStartVote       = "startVote"
	ActionCastVote        = "castVote"
	ActionStartGame       = "startGame"
	ActionAddBot          = "addBot"
	ActionRequestResync   = "requestResync"
	ActionLeaveRoom       = "leaveRoom"
)

// EventUser identifies the player an event is about.
type EventUser struct {
	ID       uuid.UUID `json:"id"`
	Username string    `json:"username,omitempty"`
}

// GameEvent is the outbound envelope. Seq is the room timestamp clients order by.
type GameEvent struct {
	Type    GameEventType          `json:"type"`
	Seq     uint64                 `json:"seq"`
	User    *EventUser             `json:"user,omitempty"`
	Payload map[string]interface{} `json:"payload,omitempty"`
	State   *RoomView              `json:"state,omitempty"` // Only on syncState.
}

// Public reports whether the event type advances the room timestamp.
func (t GameEventType) Public() bool {
	switch t {
	case EventCardDropDenied, EventSyncState, EventError:
		return false
	}
	return true
}
