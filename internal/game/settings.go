// internal/game/settings.go
package game

import (
	"time"

	engine "github.com/michaelongaro/Squeak-sub000/engine"
)

// Settings holds the tunable timings and limits applied to every room a Hub creates.
type Settings struct {
	MaxPlayers        int           // Seats per room, 2..5.
	PointsToWin       int           // Default target when a room is created without one.
	VoteTimeout       time.Duration // How long a vote stays open.
	VoteLockout       time.Duration // Cooldown after a vote resolves.
	RotationCeiling   int           // Automatic deadlock rotations before a round is forced to end.
	ReconnectGrace    time.Duration // How long a disconnected seat is held.
	RoundIntermission time.Duration // Pause between a scoreboard and the next deal.
	InboxSize         int           // Buffered commands per room worker.
}

// DefaultSettings returns the settings used when nothing is configured.
func DefaultSettings() Settings {
	return Settings{
		MaxPlayers:        engine.MaxPlayers,
		PointsToWin:       engine.DefaultPointsToWin,
		VoteTimeout:       engine.DefaultVoteTimeout,
		VoteLockout:       engine.DefaultVoteLockout,
		RotationCeiling:   engine.DefaultRotationCeiling,
		ReconnectGrace:    60 * time.Second,
		RoundIntermission: 10 * time.Second,
		InboxSize:         64,
	}
}

// normalize clamps out-of-range values back to defaults.
func (s Settings) normalize() Settings {
	d := DefaultSettings()
	if s.MaxPlayers < engine.MinPlayers || s.MaxPlayers > engine.MaxPlayers {
		s.MaxPlayers = d.MaxPlayers
	}
	if s.PointsToWin <= 0 {
		s.PointsToWin = d.PointsToWin
	}
	if s.VoteTimeout <= 0 {
		s.VoteTimeout = d.VoteTimeout
	}
	if s.VoteLockout < 0 {
		s.VoteLockout = d.VoteLockout
	}
	if s.RotationCeiling <= 0 {
		s.RotationCeiling = d.RotationCeiling
	}
	if s.ReconnectGrace < 0 {
		s.ReconnectGrace = d.ReconnectGrace
	}
	if s.RoundIntermission < 0 {
		s.RoundIntermission = d.RoundIntermission
	}
	if s.InboxSize <= 0 {
		s.InboxSize = d.InboxSize
	}
	return s
}
