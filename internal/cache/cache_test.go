// internal/cache/cache_test.go
package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishWithoutRedis(t *testing.T) {
	Rdb = nil
	err := PublishGameAction(context.Background(), GameActionRecord{GameID: uuid.New()})
	assert.ErrorIs(t, err, ErrNotConnected)

	_, err = GameActions(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestActionListKey(t *testing.T) {
	id := uuid.MustParse("6f1c2d4e-0000-4000-8000-000000000001")
	assert.Equal(t, "squeak:game:6f1c2d4e-0000-4000-8000-000000000001:actions", ActionListKey(id))
}

func TestDecodeActionsOrdersByIndex(t *testing.T) {
	raw := []string{
		`{"actionIndex":3,"actionType":"deck_draw"}`,
		`{"actionIndex":1,"actionType":"player_join"}`,
		`{"actionIndex":2,"actionType":"round_start"}`,
	}
	recs, err := decodeActions(raw)
	require.NoError(t, err)
	require.Len(t, recs, 3)
	for i, rec := range recs {
		assert.Equal(t, i+1, rec.ActionIndex)
	}
	assert.Equal(t, "player_join", recs[0].ActionType)

	_, err = decodeActions([]string{"not json"})
	assert.Error(t, err)
}

// TestPublishRoundTrip runs against a real Redis when REDIS_ADDR is set.
func TestPublishRoundTrip(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, Connect(ctx, addr, 0))
	t.Cleanup(Close)

	gameID := uuid.New()
	t.Cleanup(func() { Rdb.Del(context.Background(), ActionListKey(gameID)) })

	sub := Rdb.Subscribe(ctx, ActionChannel)
	defer sub.Close()
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	for i := 1; i <= 3; i++ {
		require.NoError(t, PublishGameAction(ctx, GameActionRecord{
			GameID:        gameID,
			ActionIndex:   i,
			ActionType:    "card_drop",
			ActionPayload: map[string]interface{}{"n": i},
			Timestamp:     time.Now().UnixMilli(),
		}))
	}

	msg, err := sub.ReceiveMessage(ctx)
	require.NoError(t, err)
	assert.Contains(t, msg.Payload, gameID.String())

	recs, err := GameActions(ctx, gameID)
	require.NoError(t, err)
	require.Len(t, recs, 3)
	for i, rec := range recs {
		assert.Equal(t, i+1, rec.ActionIndex)
	}
}
