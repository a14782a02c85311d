package reconcile

import (
	"errors"
	"fmt"
	"time"

	engine "github.com/michaelongaro/Squeak-sub000/engine"
)

var (
	ErrInFlight   = errors.New("card already in flight")
	ErrNotPending = errors.New("card is not waiting on the server")
	ErrUnknown    = errors.New("card is not tracked")
)

// FlightState is where an optimistic move stands.
type FlightState int

const (
	Pending  FlightState = iota // Proposed; no answer yet.
	Approved                    // The server applied it; animation may still be running.
	Denied                      // The server refused it; the card animates back.
	Settled                     // Finished. Settled flights are dropped from the tracker.
)

func (s FlightState) String() string {
	switch s {
	case Pending:
		return "pending"
	case Approved:
		return "approved"
	case Denied:
		return "denied"
	case Settled:
		return "settled"
	}
	return fmt.Sprintf("FlightState(%d)", int(s))
}

// Flight is one card moved optimistically.
type Flight struct {
	Proposal engine.MoveProposal
	State    FlightState
	Since    time.Time // When State was entered.
}

// Tracker runs the pending -> approved|denied -> settled machine for every card the local
// player has moved. While any flight is unsettled the reconciliation queue stays blocked.
type Tracker struct {
	flights map[engine.Card]*Flight
}

// NewTracker returns an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{flights: make(map[engine.Card]*Flight)}
}

// Propose records a move sent to the server.
func (t *Tracker) Propose(p engine.MoveProposal, now time.Time) error {
	if _, ok := t.flights[p.Card]; ok {
		return fmt.Errorf("%s: %w", p.Card, ErrInFlight)
	}
	t.flights[p.Card] = &Flight{Proposal: p, State: Pending, Since: now}
	return nil
}

// Resolve applies the server's answer for card.
func (t *Tracker) Resolve(card engine.Card, approved bool, now time.Time) error {
	f, ok := t.flights[card]
	if !ok {
		return fmt.Errorf("%s: %w", card, ErrUnknown)
	}
	if f.State != Pending {
		return fmt.Errorf("%s is %s: %w", card, f.State, ErrNotPending)
	}
	f.State = Denied
	if approved {
		f.State = Approved
	}
	f.Since = now
	return nil
}

// Settle ends a resolved flight once its animation has finished.
func (t *Tracker) Settle(card engine.Card) error {
	f, ok := t.flights[card]
	if !ok {
		return fmt.Errorf("%s: %w", card, ErrUnknown)
	}
	if f.State == Pending {
		return fmt.Errorf("%s: still pending", card)
	}
	f.State = Settled
	delete(t.flights, card)
	return nil
}

// SettleOlderThan settles resolved flights whose animation window has passed and returns
// them. Pending flights older than the window are treated as lost and settled as denied.
func (t *Tracker) SettleOlderThan(now time.Time, window time.Duration) []Flight {
	var out []Flight
	for card, f := range t.flights {
		if now.Sub(f.Since) < window {
			continue
		}
		if f.State == Pending {
			f.State = Denied
		}
		done := *f
		done.State = Settled
		out = append(out, done)
		delete(t.flights, card)
	}
	return out
}

// State returns the flight state of card.
func (t *Tracker) State(card engine.Card) (FlightState, bool) {
	f, ok := t.flights[card]
	if !ok {
		return Settled, false
	}
	return f.State, true
}

// Busy reports whether any flight is unsettled.
func (t *Tracker) Busy() bool { return len(t.flights) > 0 }

// Reset drops every flight, e.g. after a full resync.
func (t *Tracker) Reset() {
	t.flights = make(map[engine.Card]*Flight)
}
