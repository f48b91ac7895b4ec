package engine

import "sync/atomic"

// Clock is a monotonic logical clock. Compiled artifacts and recorded
// invocations are stamped with its sequence numbers instead of wall-clock
// time, so two identical runs produce identical logs.
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a clock at 0. The first Next returns 1.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a clock that continues after start, e.g. the highest
// seq already present in a run log.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.seq.Store(start)
	return c
}

// Next increments and returns the sequence number.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the sequence number without incrementing.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
