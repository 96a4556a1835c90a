// ABOUTME: Tests for telemetry and the reporter
// ABOUTME: Covers loss rate, latency means, history bounds and report emission
package pcmlink

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLossRateEmpty(t *testing.T) {
	snap := NewTelemetry().Snapshot()

	assert.Equal(t, 0.0, snap.LossRate())
	assert.Equal(t, 0.0, snap.MeanLatency())

	_, ok := snap.LastSequence()
	assert.False(t, ok)
}

func TestLossRate(t *testing.T) {
	tel := NewTelemetry()
	for i := 0; i < 5; i++ {
		tel.RecordPacket(uint64(i), 1)
	}
	tel.AddNetworkLoss(3)
	tel.AddOverflowDrop()

	snap := tel.Snapshot()
	assert.Equal(t, uint64(5), snap.Received)
	assert.Equal(t, uint64(4), snap.Dropped)
	assert.Equal(t, uint64(3), snap.NetworkLoss)
	assert.Equal(t, uint64(1), snap.OverflowDrops)
	assert.InDelta(t, 4.0/9.0, snap.LossRate(), 1e-9)
	assert.Equal(t, uint64(4), tel.Dropped())
}

func TestHistoryIsBounded(t *testing.T) {
	tel := NewTelemetry()
	for i := 0; i < 250; i++ {
		tel.RecordPacket(uint64(i), float64(i))
	}

	snap := tel.Snapshot()
	require.Len(t, snap.Latencies, HistorySize)
	require.Len(t, snap.Sequences, HistorySize)
	assert.Equal(t, uint64(150), snap.Sequences[0])

	last, ok := snap.LastSequence()
	assert.True(t, ok)
	assert.Equal(t, uint64(249), last)

	// mean of 150..249
	assert.InDelta(t, 199.5, snap.MeanLatency(), 1e-9)
}

func TestSnapshotIsACopy(t *testing.T) {
	tel := NewTelemetry()
	tel.RecordPacket(1, 2)

	snap := tel.Snapshot()
	tel.RecordPacket(2, 4)

	assert.Len(t, snap.Latencies, 1)
	assert.Equal(t, uint64(1), snap.Received)
}

func TestSnapshotConsistentUnderWrites(t *testing.T) {
	tel := NewTelemetry()
	const total = 5000

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < total; i++ {
			tel.RecordPacket(uint64(i), 1)
		}
	}()

	for running := true; running; {
		select {
		case <-done:
			running = false
		default:
		}
		snap := tel.Snapshot()
		expected := min(snap.Received, uint64(HistorySize))
		require.Equal(t, int(expected), len(snap.Latencies))
		require.Equal(t, int(expected), len(snap.Sequences))
	}

	assert.Equal(t, uint64(total), tel.Received())
}

func TestReporterSnapshot(t *testing.T) {
	tel := NewTelemetry()
	buf := NewJitterBuffer(20)
	_, _ = buf.Push([]byte("a"))
	tel.RecordPacket(7, 3)
	tel.RecordPacket(8, 5)

	reporter := NewReporter(tel, buf, 0)
	report := reporter.Snapshot()

	assert.Equal(t, uint64(2), report.Received)
	assert.Equal(t, 4.0, report.MeanLatencyMs)
	assert.Equal(t, 1, report.Occupancy)
	assert.Equal(t, 20, report.Capacity)
	assert.Equal(t, uint64(8), report.LastSequence)
	assert.Empty(t, report.State)

	line := report.String()
	assert.True(t, strings.HasPrefix(line, "received=2 dropped=0"), line)
	assert.Contains(t, line, "buffer=1/20")

	// reading does not change anything
	assert.Equal(t, uint64(2), tel.Received())
	assert.Equal(t, 1, buf.Len())
}

func TestReporterIncludesPlayback(t *testing.T) {
	buf := NewJitterBuffer(4)
	engine := NewPlaybackEngine(buf, &recordingSink{}, PlaybackConfig{})

	reporter := NewReporter(NewTelemetry(), buf, time.Second)
	reporter.AttachPlayback(engine)

	report := reporter.Snapshot()
	assert.Equal(t, "waiting", report.State)
	assert.Contains(t, report.String(), "state=waiting")
}

func TestReporterRunEmitsOnInterval(t *testing.T) {
	reporter := NewReporter(NewTelemetry(), NewJitterBuffer(4), 10*time.Millisecond)

	var mu sync.Mutex
	var reports []Report
	reporter.OnReport(func(r Report) {
		mu.Lock()
		reports = append(reports, r)
		mu.Unlock()
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- reporter.Run(ctx) }()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(reports) >= 3
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	require.NoError(t, <-done)

	final := reporter.Emit(true)
	assert.True(t, final.Final)
}
