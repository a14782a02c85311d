package engine

import (
	"fmt"
	"time"
)

// VoteType is what a vote decides.
type VoteType string

const (
	VoteRotateDecks VoteType = "rotateDecks"
	VoteFinishRound VoteType = "finishRound"
)

// Valid reports whether t is a known vote type.
func (t VoteType) Valid() bool { return t == VoteRotateDecks || t == VoteFinishRound }

// Ballot is a single player's answer.
type Ballot string

const (
	BallotAgree    Ballot = "agree"
	BallotDisagree Ballot = "disagree"
)

// VoteOutcome is the state of a vote after a tally.
type VoteOutcome string

const (
	VotePending   VoteOutcome = "pending"
	VotePassed    VoteOutcome = "passed"
	VoteRejected  VoteOutcome = "rejected"
	// VoteCancelled marks a vote dropped because a deadlock rotation made it moot.
	VoteCancelled VoteOutcome = "cancelled"
)

// Default vote timings. Rooms override them from configuration.
const (
	DefaultVoteTimeout = 30 * time.Second
	DefaultVoteLockout = 30 * time.Second
)

// Vote is an in-progress unanimous vote.
type Vote struct {
	ID        uint64
	Type      VoteType
	Initiator PlayerID
	Ballots   map[PlayerID]Ballot
	StartedAt time.Time
	ExpiresAt time.Time
}

// VoteTally summarises a vote for broadcasting.
type VoteTally struct {
	VoteID       uint64              `json:"voteId"`
	Type         VoteType            `json:"type"`
	Initiator    PlayerID            `json:"initiator"`
	Ballots      map[PlayerID]Ballot `json:"ballots"`
	Needed       int                 `json:"needed"`
	Outcome      VoteOutcome         `json:"outcome"`
	ExpiresAt    time.Time           `json:"expiresAt"`
	LockoutUntil time.Time           `json:"lockoutUntil,omitempty"`
}

// VoteBox runs the Idle -> Proposed -> Resolved -> LockedOut -> Idle machine for one room.
// Callers supply the electorate (currently connected players) and the clock on every call.
type VoteBox struct {
	Active       *Vote
	LockoutUntil time.Time
	Timeout      time.Duration
	Lockout      time.Duration

	nextID uint64
}

// NewVoteBox returns an idle box. A non-positive timeout or a negative lockout falls back
// to the defaults; a zero lockout disables it.
func NewVoteBox(timeout, lockout time.Duration) *VoteBox {
	if timeout <= 0 {
		timeout = DefaultVoteTimeout
	}
	if lockout < 0 {
		lockout = DefaultVoteLockout
	}
	return &VoteBox{Timeout: timeout, Lockout: lockout}
}

// LockedOut reports whether new votes are blocked at now.
func (b *VoteBox) LockedOut(now time.Time) bool {
	return now.Before(b.LockoutUntil)
}

// Start opens a vote. The initiator's ballot counts as agree.
func (b *VoteBox) Start(t VoteType, initiator PlayerID, electorate []PlayerID, now time.Time) (VoteTally, error) {
	if !t.Valid() {
		return VoteTally{}, fmt.Errorf("unknown vote type %q: %w", t, ErrVoteConflict)
	}
	if b.Active != nil {
		return VoteTally{}, fmt.Errorf("vote %d already active: %w", b.Active.ID, ErrVoteConflict)
	}
	if b.LockedOut(now) {
		return VoteTally{}, ErrVoteLockedOut
	}
	if !contains(electorate, initiator) {
		return VoteTally{}, ErrNotEligible
	}
	b.nextID++
	b.Active = &Vote{
		ID:        b.nextID,
		Type:      t,
		Initiator: initiator,
		Ballots:   map[PlayerID]Ballot{initiator: BallotAgree},
		StartedAt: now,
		ExpiresAt: now.Add(b.Timeout),
	}
	return b.settle(electorate, now), nil
}

// Cast records a ballot and re-tallies.
func (b *VoteBox) Cast(voter PlayerID, ballot Ballot, electorate []PlayerID, now time.Time) (VoteTally, error) {
	if b.Active == nil {
		return VoteTally{}, ErrNoActiveVote
	}
	if ballot != BallotAgree && ballot != BallotDisagree {
		return VoteTally{}, fmt.Errorf("unknown ballot %q: %w", ballot, ErrVoteConflict)
	}
	if !contains(electorate, voter) {
		return VoteTally{}, ErrNotEligible
	}
	if _, voted := b.Active.Ballots[voter]; voted {
		return VoteTally{}, fmt.Errorf("player %s already voted: %w", voter, ErrVoteConflict)
	}
	b.Active.Ballots[voter] = ballot
	return b.settle(electorate, now), nil
}

// Reevaluate re-tallies after the electorate changed, e.g. on a disconnect.
func (b *VoteBox) Reevaluate(electorate []PlayerID, now time.Time) (VoteTally, bool) {
	if b.Active == nil {
		return VoteTally{}, false
	}
	return b.settle(electorate, now), true
}

// Expire rejects the vote identified by id if it is still the active one. A stale id is a
// no-op, which is what keeps a late timer from touching a newer vote.
func (b *VoteBox) Expire(id uint64, electorate []PlayerID, now time.Time) (VoteTally, bool) {
	if b.Active == nil || b.Active.ID != id {
		return VoteTally{}, false
	}
	t := b.tally(electorate)
	t.Outcome = VoteRejected
	b.resolve(now)
	t.LockoutUntil = b.LockoutUntil
	return t, true
}

// Cancel drops any active vote and clears the lockout. Used when a deadlock rotation
// happens automatically.
func (b *VoteBox) Cancel() (*Vote, bool) {
	v := b.Active
	b.Active = nil
	b.LockoutUntil = time.Time{}
	return v, v != nil
}

// Reset returns the box to idle between rounds.
func (b *VoteBox) Reset() {
	b.Active = nil
	b.LockoutUntil = time.Time{}
}

func (b *VoteBox) settle(electorate []PlayerID, now time.Time) VoteTally {
	t := b.tally(electorate)
	if t.Outcome != VotePending {
		b.resolve(now)
		t.LockoutUntil = b.LockoutUntil
	}
	return t
}

func (b *VoteBox) resolve(now time.Time) {
	b.Active = nil
	b.LockoutUntil = now.Add(b.Lockout)
}

// tally computes the outcome among the electorate: unanimous agree passes, any disagree
// rejects. Ballots from players who left the electorate no longer count.
func (b *VoteBox) tally(electorate []PlayerID) VoteTally {
	v := b.Active
	t := VoteTally{
		VoteID:    v.ID,
		Type:      v.Type,
		Initiator: v.Initiator,
		Ballots:   make(map[PlayerID]Ballot, len(v.Ballots)),
		Needed:    len(electorate),
		Outcome:   VotePending,
		ExpiresAt: v.ExpiresAt,
	}
	for id, ballot := range v.Ballots {
		t.Ballots[id] = ballot
	}
	agree := 0
	for _, id := range electorate {
		switch v.Ballots[id] {
		case BallotDisagree:
			t.Outcome = VoteRejected
			return t
		case BallotAgree:
			agree++
		}
	}
	if agree == len(electorate) && agree > 0 {
		t.Outcome = VotePassed
	}
	return t
}

func contains(ids []PlayerID, id PlayerID) bool {
	for _, x := range ids {
		if x == id {
			return true
		}
	}
	return false
}
