// Package reconcile is the client side of the room protocol: it orders broadcast events by
// room timestamp and tracks cards whose moves are still waiting on the server.
package reconcile

import (
	"sort"
	"time"
)

// DefaultGapTimeout is how long a missing timestamp may hold up the queue before the
// client should ask for a full resync.
const DefaultGapTimeout = 2 * time.Second

type entry[T any] struct {
	seq uint64
	val T
}

// Queue buffers timestamped events and releases them in ascending, gap-free order. An
// event at or below the last applied timestamp is stale and dropped.
type Queue[T any] struct {
	GapTimeout time.Duration

	items    []entry[T] // Sorted by seq, no duplicates.
	applied  uint64
	gapSince time.Time
}

// NewQueue returns an empty queue. A non-positive gapTimeout uses DefaultGapTimeout.
func NewQueue[T any](gapTimeout time.Duration) *Queue[T] {
	if gapTimeout <= 0 {
		gapTimeout = DefaultGapTimeout
	}
	return &Queue[T]{GapTimeout: gapTimeout}
}

// Push inserts v at its sorted position. It reports false when the event is stale or a
// duplicate of one already buffered.
func (q *Queue[T]) Push(seq uint64, v T) bool {
	if seq <= q.applied {
		return false
	}
	i := sort.Search(len(q.items), func(i int) bool { return q.items[i].seq >= seq })
	if i < len(q.items) && q.items[i].seq == seq {
		return false
	}
	q.items = append(q.items, entry[T]{})
	copy(q.items[i+1:], q.items[i:])
	q.items[i] = entry[T]{seq: seq, val: v}
	return true
}

// Ready pops every event that can be applied now. Nothing is released while blocked, which
// callers set while a local move animation is still running. resync reports that the next
// timestamp has been missing for longer than GapTimeout.
func (q *Queue[T]) Ready(now time.Time, blocked bool) (out []T, resync bool) {
	if blocked {
		return nil, false
	}
	for len(q.items) > 0 && q.items[0].seq == q.applied+1 {
		out = append(out, q.items[0].val)
		q.applied = q.items[0].seq
		q.items = q.items[1:]
	}
	if len(q.items) == 0 {
		q.gapSince = time.Time{}
		return out, false
	}
	if len(out) > 0 || q.gapSince.IsZero() {
		q.gapSince = now
	}
	return out, now.Sub(q.gapSince) >= q.GapTimeout
}

// Reset jumps to seq, typically after a full snapshot, dropping everything it covers.
func (q *Queue[T]) Reset(seq uint64) {
	q.applied = seq
	i := sort.Search(len(q.items), func(i int) bool { return q.items[i].seq > seq })
	q.items = q.items[i:]
	q.gapSince = time.Time{}
}

// Applied returns the last applied timestamp.
func (q *Queue[T]) Applied() uint64 { return q.applied }

// Len returns the number of buffered events.
func (q *Queue[T]) Len() int { return len(q.items) }
