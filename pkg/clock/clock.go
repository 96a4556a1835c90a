// ABOUTME: Monotonic clock used to stamp and age audio packets
// ABOUTME: Provides a process-wide monotonic source plus a fake for tests
// Package clock provides the time source used for packet timestamps and
// latency measurement.
//
// Timestamps are float64 seconds. Monotonic anchors its zero at the Unix
// epoch using the wall clock read once at construction, then advances only by
// Go's monotonic clock reading. Within a process it never goes backwards, and
// readings taken on two hosts with NTP-synced wall clocks are comparable, so
// one-way latency can be computed from a sender timestamp.
package clock

import (
	"sync"
	"time"
)

// Clock returns the current time in seconds
type Clock interface {
	Now() float64
}

// MonotonicClock is a Clock backed by the runtime monotonic clock
type MonotonicClock struct {
	start time.Time
	epoch float64
}

// Monotonic creates a monotonic clock anchored at the current wall time
func Monotonic() *MonotonicClock {
	start := time.Now()
	return &MonotonicClock{
		start: start,
		epoch: float64(start.UnixNano()) / 1e9,
	}
}

// Now returns seconds since the Unix epoch, advanced monotonically
func (c *MonotonicClock) Now() float64 {
	return c.epoch + time.Since(c.start).Seconds()
}

// Fake is a manually driven clock for tests
type Fake struct {
	mu  sync.Mutex
	now float64
}

// NewFake creates a fake clock reading now seconds
func NewFake(now float64) *Fake {
	return &Fake{now: now}
}

// Now returns the current fake reading
func (f *Fake) Now() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// Advance moves the fake clock forward by d
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now += d.Seconds()
}

// Set moves the fake clock to an absolute reading
func (f *Fake) Set(now float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = now
}
