package reconcile

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	engine "github.com/michaelongaro/Squeak-sub000/engine"
)

var t0 = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func TestQueueAppliesOutOfOrderArrivalsInOrder(t *testing.T) {
	q := NewQueue[string](0)

	require.True(t, q.Push(1, "T1"))
	got, resync := q.Ready(t0, false)
	assert.Equal(t, []string{"T1"}, got)
	assert.False(t, resync)

	require.True(t, q.Push(3, "T3"))
	got, _ = q.Ready(t0, false)
	assert.Empty(t, got, "T3 waits for T2")

	require.True(t, q.Push(2, "T2"))
	got, _ = q.Ready(t0, false)
	assert.Equal(t, []string{"T2", "T3"}, got)
	assert.Equal(t, uint64(3), q.Applied())
	assert.Zero(t, q.Len())
}

func TestQueueDropsStaleAndDuplicates(t *testing.T) {
	q := NewQueue[int](0)
	q.Reset(5)
	assert.False(t, q.Push(4, 4), "older than the applied timestamp")
	assert.False(t, q.Push(5, 5), "equal to the applied timestamp")
	assert.True(t, q.Push(7, 7))
	assert.False(t, q.Push(7, 7), "duplicate")
	assert.Equal(t, 1, q.Len())
}

func TestQueueBlockedWhileAnimating(t *testing.T) {
	q := NewQueue[int](0)
	q.Push(1, 1)
	got, _ := q.Ready(t0, true)
	assert.Empty(t, got)
	got, _ = q.Ready(t0, false)
	assert.Equal(t, []int{1}, got)
}

func TestQueueGapRequestsResync(t *testing.T) {
	q := NewQueue[int](time.Second)
	q.Push(2, 2)

	_, resync := q.Ready(t0, false)
	assert.False(t, resync)
	_, resync = q.Ready(t0.Add(500*time.Millisecond), false)
	assert.False(t, resync)
	_, resync = q.Ready(t0.Add(time.Second), false)
	assert.True(t, resync)

	// A snapshot covering the gap clears it.
	q.Reset(1)
	got, resync := q.Ready(t0.Add(2*time.Second), false)
	assert.Equal(t, []int{2}, got)
	assert.False(t, resync)
}

func TestQueueResetDropsCoveredEvents(t *testing.T) {
	q := NewQueue[int](0)
	for _, s := range []uint64{3, 4, 6} {
		q.Push(s, int(s))
	}
	q.Reset(4)
	assert.Equal(t, 1, q.Len())
	got, _ := q.Ready(t0, false)
	assert.Empty(t, got, "6 still waits for 5")
	q.Push(5, 5)
	got, _ = q.Ready(t0, false)
	assert.Equal(t, []int{5, 6}, got)
}

func TestTrackerLifecycle(t *testing.T) {
	tr := NewTracker()
	ah := engine.MustParseCard("AH")
	p := engine.MoveProposal{Card: ah}

	require.NoError(t, tr.Propose(p, t0))
	assert.True(t, tr.Busy())
	assert.ErrorIs(t, tr.Propose(p, t0), ErrInFlight)
	assert.Error(t, tr.Settle(ah), "pending flights cannot settle")

	require.NoError(t, tr.Resolve(ah, true, t0))
	st, ok := tr.State(ah)
	require.True(t, ok)
	assert.Equal(t, Approved, st)
	assert.ErrorIs(t, tr.Resolve(ah, false, t0), ErrNotPending)

	require.NoError(t, tr.Settle(ah))
	assert.False(t, tr.Busy())
	assert.ErrorIs(t, tr.Settle(ah), ErrUnknown)
}

func TestTrackerDenied(t *testing.T) {
	tr := NewTracker()
	c := engine.MustParseCard("5D")
	require.NoError(t, tr.Propose(engine.MoveProposal{Card: c}, t0))
	require.NoError(t, tr.Resolve(c, false, t0))
	st, _ := tr.State(c)
	assert.Equal(t, Denied, st)
	assert.Equal(t, "denied", st.String())
}

func TestTrackerSettleOlderThan(t *testing.T) {
	tr := NewTracker()
	lost := engine.MustParseCard("2C")
	done := engine.MustParseCard("3C")
	fresh := engine.MustParseCard("4C")
	require.NoError(t, tr.Propose(engine.MoveProposal{Card: lost}, t0))
	require.NoError(t, tr.Propose(engine.MoveProposal{Card: done}, t0))
	require.NoError(t, tr.Resolve(done, true, t0))
	require.NoError(t, tr.Propose(engine.MoveProposal{Card: fresh}, t0.Add(time.Second)))

	settled := tr.SettleOlderThan(t0.Add(time.Second), time.Second)
	assert.Len(t, settled, 2)
	for _, f := range settled {
		assert.Equal(t, Settled, f.State)
	}
	assert.True(t, tr.Busy())
	st, ok := tr.State(fresh)
	require.True(t, ok)
	assert.Equal(t, Pending, st)
}
