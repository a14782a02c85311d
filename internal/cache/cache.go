// internal/cache/cache.go
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

// Rdb is the shared Redis client. Nil when no Redis address is configured; callers check
// before publishing.
var Rdb *redis.Client

// ActionChannel is the pub/sub channel every action record is published on.
const ActionChannel = "squeak:actions"

// ErrNotConnected is returned when Redis has not been initialized.
var ErrNotConnected = errors.New("redis not connected")

// GameActionRecord is one entry in a room's action history.
type GameActionRecord struct {
	GameID        uuid.UUID              `json:"gameId"`
	ActionIndex   int                    `json:"actionIndex"`
	ActorUserID   uuid.UUID              `json:"actorUserId"` // uuid.Nil for room events.
	ActionType    string                 `json:"actionType"`
	ActionPayload map[string]interface{} `json:"actionPayload"`
	Timestamp     int64                  `json:"timestamp"` // Unix millis.
}

// Connect dials Redis and verifies the connection with PING.
func Connect(ctx context.Context, addr string, db int) error {
	client := redis.NewClient(&redis.Options{
		Addr:        addr,
		DB:          db,
		DialTimeout: 5 * time.Second,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return fmt.Errorf("redis ping %s: %w", addr, err)
	}
	Rdb = client
	log.Infof("Connected to Redis at %s (db %d).", addr, db)
	return nil
}

// Close releases the shared client.
func Close() {
	if Rdb == nil {
		return
	}
	if err := Rdb.Close(); err != nil {
		log.Warnf("Closing Redis client: %v", err)
	}
	Rdb = nil
}

// ActionListKey is the list holding a room's ordered history.
func ActionListKey(gameID uuid.UUID) string {
	return "squeak:game:" + gameID.String() + ":actions"
}

// PublishGameAction appends the record to the room's history list and announces it on
// ActionChannel in a single round trip.
func PublishGameAction(ctx context.Context, rec GameActionRecord) error {
	if Rdb == nil {
		return ErrNotConnected
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal action %d: %w", rec.ActionIndex, err)
	}
	pipe := Rdb.TxPipeline()
	pipe.RPush(ctx, ActionListKey(rec.GameID), data)
	pipe.Expire(ctx, ActionListKey(rec.GameID), 24*time.Hour)
	pipe.Publish(ctx, ActionChannel, data)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("publish action %d for game %s: %w", rec.ActionIndex, rec.GameID, err)
	}
	return nil
}

// GameActions returns a room's recorded history ordered by ActionIndex. Records are pushed
// concurrently, so list order alone is not reliable.
func GameActions(ctx context.Context, gameID uuid.UUID) ([]GameActionRecord, error) {
	if Rdb == nil {
		return nil, ErrNotConnected
	}
	raw, err := Rdb.LRange(ctx, ActionListKey(gameID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("read actions for game %s: %w", gameID, err)
	}
	out, err := decodeActions(raw)
	if err != nil {
		return nil, fmt.Errorf("game %s: %w", gameID, err)
	}
	return out, nil
}

func decodeActions(raw []string) ([]GameActionRecord, error) {
	out := make([]GameActionRecord, 0, len(raw))
	for i, s := range raw {
		var rec GameActionRecord
		if err := json.Unmarshal([]byte(s), &rec); err != nil {
			return nil, fmt.Errorf("decode action %d: %w", i, err)
		}
		out = append(out, rec)
	}
	sort.SliceStable(out, func(a, b int) bool { return out[a].ActionIndex < out[b].ActionIndex })
	return out, nil
}
