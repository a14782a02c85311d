// internal/database/database.go
package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"

	engine "github.com/michaelongaro/Squeak-sub000/engine"
)

// DB is the shared connection pool. Nil when no database URL is configured.
var DB *pgxpool.Pool

// ErrNotConnected is returned when the pool has not been initialized.
var ErrNotConnected = errors.New("database not connected")

const schema = `
CREATE TABLE IF NOT EXISTS squeak_rounds (
	room_id     UUID        NOT NULL,
	round       INT         NOT NULL,
	squeaker_id UUID,
	scoreboard  JSONB       NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (room_id, round)
);
CREATE TABLE IF NOT EXISTS squeak_games (
	room_id     UUID        PRIMARY KEY,
	winner_id   UUID,
	rounds      INT         NOT NULL,
	scores      JSONB       NOT NULL,
	finished_at TIMESTAMPTZ NOT NULL DEFAULT now()
);`

// Connect opens the pool and ensures the schema exists.
func Connect(ctx context.Context, url string) error {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return fmt.Errorf("parse database url: %w", err)
	}
	cfg.MaxConnIdleTime = 5 * time.Minute
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return fmt.Errorf("ping database: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return fmt.Errorf("apply schema: %w", err)
	}
	DB = pool
	log.Info("Connected to Postgres.")
	return nil
}

// Close releases the pool.
func Close() {
	if DB != nil {
		DB.Close()
		DB = nil
	}
}

// RoundRecord is the persisted form of one round's scoreboard.
type RoundRecord struct {
	RoomID     uuid.UUID
	Round      int
	SqueakerID uuid.UUID // uuid.Nil when the round ended without a squeak.
	Scoreboard *engine.Scoreboard
}

// StoreRoundResult upserts a round's scoreboard.
func StoreRoundResult(ctx context.Context, rec RoundRecord) error {
	if DB == nil {
		return ErrNotConnected
	}
	board, err := json.Marshal(rec.Scoreboard)
	if err != nil {
		return fmt.Errorf("marshal scoreboard: %w", err)
	}
	_, err = DB.Exec(ctx, `
		INSERT INTO squeak_rounds (room_id, round, squeaker_id, scoreboard)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (room_id, round) DO UPDATE SET squeaker_id = EXCLUDED.squeaker_id, scoreboard = EXCLUDED.scoreboard`,
		rec.RoomID, rec.Round, nullableUUID(rec.SqueakerID), board)
	if err != nil {
		return fmt.Errorf("store round %d for room %s: %w", rec.Round, rec.RoomID, err)
	}
	return nil
}

// StoreGameResult records the winner and final totals of a finished game.
func StoreGameResult(ctx context.Context, roomID, winnerID uuid.UUID, rounds int, scores map[uuid.UUID]int) error {
	if DB == nil {
		return ErrNotConnected
	}
	data, err := json.Marshal(scoresByString(scores))
	if err != nil {
		return fmt.Errorf("marshal scores: %w", err)
	}
	_, err = DB.Exec(ctx, `
		INSERT INTO squeak_games (room_id, winner_id, rounds, scores)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (room_id) DO UPDATE SET winner_id = EXCLUDED.winner_id, rounds = EXCLUDED.rounds, scores = EXCLUDED.scores, finished_at = now()`,
		roomID, nullableUUID(winnerID), rounds, data)
	if err != nil {
		return fmt.Errorf("store game result for room %s: %w", roomID, err)
	}
	return nil
}

// RoundResults loads every stored round for a room in order.
func RoundResults(ctx context.Context, roomID uuid.UUID) ([]RoundRecord, error) {
	if DB == nil {
		return nil, ErrNotConnected
	}
	rows, err := DB.Query(ctx, `
		SELECT round, squeaker_id, scoreboard FROM squeak_rounds WHERE room_id = $1 ORDER BY round`, roomID)
	if err != nil {
		return nil, fmt.Errorf("query rounds for room %s: %w", roomID, err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (RoundRecord, error) {
		rec := RoundRecord{RoomID: roomID}
		var squeaker *uuid.UUID
		var board []byte
		if err := row.Scan(&rec.Round, &squeaker, &board); err != nil {
			return rec, err
		}
		if squeaker != nil {
			rec.SqueakerID = *squeaker
		}
		rec.Scoreboard = &engine.Scoreboard{}
		if err := json.Unmarshal(board, rec.Scoreboard); err != nil {
			return rec, fmt.Errorf("decode round %d: %w", rec.Round, err)
		}
		return rec, nil
	})
}

func nullableUUID(id uuid.UUID) *uuid.UUID {
	if id == uuid.Nil {
		return nil
	}
	return &id
}

func scoresByString(scores map[uuid.UUID]int) map[string]int {
	out := make(map[string]int, len(scores))
	for id, s := range scores {
		out[id.String()] = s
	}
	return out
}
