// internal/game/events_test.go
package game

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	engine "github.com/michaelongaro/Squeak-sub000/engine"
)

func TestEventVisibility(t *testing.T) {
	public := []GameEventType{
		EventCardDropApproved, EventDeckDrawn, EventDecksRotated, EventVoteUpdated,
		EventRoundOver, EventGameOver, EventPlayerJoined, EventPlayerLeft,
		EventPlayerConnection, EventHostChanged, EventRoundStarted, EventRoomClosed,
	}
	private := []GameEventType{EventCardDropDenied, EventSyncState, EventError}

	for _, ev := range public {
		assert.True(t, ev.Public(), "%s should advance the room timestamp", ev)
	}
	for _, ev := range private {
		assert.False(t, ev.Public(), "%s should not advance the room timestamp", ev)
	}
}

// TestFullRoundEmitsOnlyDeclaredEvents plays a round to its scoreboard and checks every
// broadcast is one of the declared public events.
func TestFullRoundEmitsOnlyDeclaredEvents(t *testing.T) {
	s := testSettings()
	s.RoundIntermission = time.Hour
	r, users, mb := startedRoom(t, 2, s)
	for _, u := range users {
		_, err := r.DrawFromDeck(u.ID)
		assert.NoError(t, err)
	}
	_, err := r.StartVote(users[0].ID, engine.VoteFinishRound)
	assert.NoError(t, err)
	_, err = r.CastVote(users[1].ID, engine.BallotAgree)
	assert.NoError(t, err)

	declared := map[GameEventType]bool{}
	for _, ev := range []GameEventType{
		EventCardDropApproved, EventDeckDrawn, EventDecksRotated, EventVoteUpdated,
		EventRoundOver, EventGameOver, EventPlayerJoined, EventPlayerLeft,
		EventPlayerConnection, EventHostChanged, EventRoundStarted, EventRoomClosed,
	} {
		declared[ev] = true
	}
	mb.mu.Lock()
	defer mb.mu.Unlock()
	assert.NotEmpty(t, mb.allEvents)
	for _, ev := range mb.allEvents {
		assert.True(t, declared[ev.Type], "undeclared broadcast %q", ev.Type)
	}
}
