package state

import (
	"fmt"
	"sync"
	"time"
)

// Clock reports ledger time in unix seconds.
type Clock interface {
	Now() uint64
}

// SystemClock reads the wall clock.
type SystemClock struct{}

func (SystemClock) Now() uint64 {
	return uint64(time.Now().Unix())
}

// ManualClock is a monotonic clock advanced explicitly, used by tests and
// scenario replays.
type ManualClock struct {
	mu  sync.Mutex
	now uint64
}

func NewManualClock(start uint64) *ManualClock {
	return &ManualClock{now: start}
}

func (c *ManualClock) Now() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by seconds.
func (c *ManualClock) Advance(seconds uint64) {
	c.mu.Lock()
	c.now += seconds
	c.mu.Unlock()
}

// Set jumps to ts. Time never moves backwards.
func (c *ManualClock) Set(ts uint64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ts < c.now {
		return fmt.Errorf("clock cannot move backwards: %d < %d", ts, c.now)
	}
	c.now = ts
	return nil
}
