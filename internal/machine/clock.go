package machine

import "sync/atomic"

// Clock is a monotonic logical clock for history record ordering.
//
// Every record the engine appends is stamped with a strictly increasing seq
// from this clock. Ordering by seq (never wall time) keeps traces
// deterministic: the same input sequence produces the same record order
// regardless of when or how fast it runs.
//
// Thread-safety: safe for concurrent use (atomic operations), though the
// engine's single-session design means one goroutine typically calls Next.
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// Next returns the next sequence number and increments the clock.
// Each call returns a unique, increasing value.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the current sequence number without incrementing.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
