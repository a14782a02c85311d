// internal/models/models.go
package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// User is an authenticated identity. Guests and bots get a fresh ID per session.
type User struct {
	ID       uuid.UUID `json:"id"`
	Username string    `json:"username"`
	IsGuest  bool      `json:"isGuest"`
	IsBot    bool      `json:"isBot"`
}

// Player is a user seated in a room.
type Player struct {
	ID        uuid.UUID // Same as User.ID.
	User      *User
	Connected bool
	JoinedAt  time.Time // Orders host migration.
	LeftAt    time.Time // Zero while connected; start of the reconnect grace window.
}

// IsBot reports whether the seat is driven by a server-side bot.
func (p *Player) IsBot() bool {
	return p.User != nil && p.User.IsBot
}

// Username returns the display name, or an empty string for a player without a user record.
func (p *Player) Username() string {
	if p.User == nil {
		return ""
	}
	return p.User.Username
}

// GameAction is an inbound client message: {"type": "...", "payload": {...}}.
type GameAction struct {
	ActionType string          `json:"type"`
	Payload    json.RawMessage `json:"payload,omitempty"`
}
