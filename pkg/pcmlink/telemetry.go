// ABOUTME: Receiver counters and recent-history rings
// ABOUTME: Written by the receiver loop, read through snapshots
package pcmlink

import (
	"sync"

	"github.com/gammazero/deque"
	"go.uber.org/atomic"
)

// HistorySize is the number of recent latencies and sequence numbers kept
const HistorySize = 100

// Telemetry holds receive statistics. Writers update counters and history
// under one mutex so snapshots are consistent; the counters are atomic so
// Received and Dropped can be read without it.
type Telemetry struct {
	received      atomic.Uint64
	networkLoss   atomic.Uint64
	overflowDrops atomic.Uint64

	mu        sync.Mutex
	latencies deque.Deque[float64]
	sequences deque.Deque[uint64]
}

// TelemetrySnapshot is a point-in-time copy of Telemetry
type TelemetrySnapshot struct {
	Received      uint64
	Dropped       uint64
	NetworkLoss   uint64
	OverflowDrops uint64
	Latencies     []float64 // oldest first, milliseconds
	Sequences     []uint64  // oldest first
}

// NewTelemetry creates empty telemetry
func NewTelemetry() *Telemetry {
	return &Telemetry{}
}

// RecordPacket counts a received packet with its one-way latency
func (t *Telemetry) RecordPacket(seq uint64, latencyMs float64) {
	t.mu.Lock()
	pushBounded(&t.latencies, latencyMs)
	pushBounded(&t.sequences, seq)
	t.received.Inc()
	t.mu.Unlock()
}

// AddNetworkLoss counts packets skipped in the sequence
func (t *Telemetry) AddNetworkLoss(n uint64) {
	t.mu.Lock()
	t.networkLoss.Add(n)
	t.mu.Unlock()
}

// AddOverflowDrop counts a frame evicted from a full jitter buffer
func (t *Telemetry) AddOverflowDrop() {
	t.mu.Lock()
	t.overflowDrops.Inc()
	t.mu.Unlock()
}

// Received returns the number of decoded packets
func (t *Telemetry) Received() uint64 {
	return t.received.Load()
}

// Dropped returns network loss plus overflow drops
func (t *Telemetry) Dropped() uint64 {
	return t.networkLoss.Load() + t.overflowDrops.Load()
}

// Snapshot copies the current counters and history
func (t *Telemetry) Snapshot() TelemetrySnapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	latencies := make([]float64, t.latencies.Len())
	for i := range latencies {
		latencies[i] = t.latencies.At(i)
	}
	sequences := make([]uint64, t.sequences.Len())
	for i := range sequences {
		sequences[i] = t.sequences.At(i)
	}

	networkLoss := t.networkLoss.Load()
	overflowDrops := t.overflowDrops.Load()

	return TelemetrySnapshot{
		Received:      t.received.Load(),
		Dropped:       networkLoss + overflowDrops,
		NetworkLoss:   networkLoss,
		OverflowDrops: overflowDrops,
		Latencies:     latencies,
		Sequences:     sequences,
	}
}

// LossRate returns dropped / (received + dropped), or 0 before any traffic
func (s TelemetrySnapshot) LossRate() float64 {
	total := s.Received + s.Dropped
	if total == 0 {
		return 0
	}
	return float64(s.Dropped) / float64(total)
}

// MeanLatency returns the mean of the recent latencies in milliseconds, or 0
// when none were recorded
func (s TelemetrySnapshot) MeanLatency() float64 {
	if len(s.Latencies) == 0 {
		return 0
	}
	var sum float64
	for _, l := range s.Latencies {
		sum += l
	}
	return sum / float64(len(s.Latencies))
}

// LastSequence returns the most recently received sequence number
func (s TelemetrySnapshot) LastSequence() (uint64, bool) {
	if len(s.Sequences) == 0 {
		return 0, false
	}
	return s.Sequences[len(s.Sequences)-1], true
}

func pushBounded[T any](d *deque.Deque[T], v T) {
	if d.Len() >= HistorySize {
		d.PopFront()
	}
	d.PushBack(v)
}
