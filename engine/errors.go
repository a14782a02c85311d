package engine

import "errors"

var (
	ErrWrongPhase       = errors.New("action not allowed in current phase")
	ErrUnknownPlayer    = errors.New("unknown player")
	ErrPlayerExists     = errors.New("player already seated")
	ErrRoomFull         = errors.New("room is full")
	ErrNotEnoughPlayers = errors.New("not enough players")
	ErrInvalidMove      = errors.New("invalid move")
	ErrSqueakNotReady   = errors.New("squeak deck is not empty")
	ErrVoteConflict     = errors.New("vote conflict")
	ErrVoteLockedOut    = errors.New("voting is locked out")
	ErrNotEligible      = errors.New("player is not eligible to vote")
	ErrNoActiveVote     = errors.New("no active vote")
)

// DenyReason is the machine-readable cause attached to a denied card drop.
type DenyReason string

const (
	DenyWrongPhase     DenyReason = "wrong_phase"
	DenyUnknownPlayer  DenyReason = "unknown_player"
	DenyBadOrigin      DenyReason = "bad_origin"
	DenyCardMismatch   DenyReason = "card_mismatch"
	DenyBadDestination DenyReason = "bad_destination"
	DenyIllegalBoard   DenyReason = "illegal_board_placement"
	DenyIllegalSqueak  DenyReason = "illegal_squeak_placement"
	DenyInvalidRun     DenyReason = "invalid_run"
	DenyNotLastCard    DenyReason = "not_last_card"
	DenyForeignStack   DenyReason = "foreign_stack"
	DenySameStack      DenyReason = "same_stack"
)

// MoveError reports why a proposal was denied. It matches ErrInvalidMove with errors.Is.
type MoveError struct {
	Reason DenyReason
}

func (e *MoveError) Error() string { return "invalid move: " + string(e.Reason) }

func (e *MoveError) Is(target error) bool { return target == ErrInvalidMove }

func deny(reason DenyReason) error { return &MoveError{Reason: reason} }

// ReasonOf extracts the DenyReason from err, or "" if err is not a MoveError.
func ReasonOf(err error) DenyReason {
	var me *MoveError
	if errors.As(err, &me) {
		return me.Reason
	}
	return ""
}
