// ABOUTME: Tests for the receiver socket loop
// ABOUTME: Covers datagram handling, loss accounting and socket shutdown
package pcmlink

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Resonate-Protocol/pcmlink/pkg/clock"
	"github.com/Resonate-Protocol/pcmlink/pkg/protocol"
)

func newTestReceiver(t *testing.T, capacity int, clk clock.Clock) (*Receiver, *JitterBuffer, *Telemetry) {
	t.Helper()

	conn, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	buf := NewJitterBuffer(capacity)
	tel := NewTelemetry()
	r := NewReceiver(conn, buf, tel, ReceiverConfig{ReadTimeout: 20 * time.Millisecond, Clock: clk})
	return r, buf, tel
}

func TestReceiverHandleCountsGaps(t *testing.T) {
	r, buf, tel := newTestReceiver(t, 10, clock.NewFake(100))

	for _, seq := range []uint64{0, 1, 2, 5, 6} {
		r.handle(protocol.Encode(seq, 100, []byte{byte(seq)}))
	}

	snap := tel.Snapshot()
	assert.Equal(t, uint64(5), snap.Received)
	assert.Equal(t, uint64(2), snap.Dropped)
	assert.Equal(t, uint64(2), snap.NetworkLoss)
	assert.Equal(t, []uint64{0, 1, 2, 5, 6}, snap.Sequences)
	assert.Equal(t, 5, buf.Len())
}

func TestReceiverHandleLatency(t *testing.T) {
	clk := clock.NewFake(10.0)
	r, _, tel := newTestReceiver(t, 10, clk)

	clk.Advance(25 * time.Millisecond)
	r.handle(protocol.Encode(0, 10.0, nil))

	snap := tel.Snapshot()
	require.Len(t, snap.Latencies, 1)
	assert.InDelta(t, 25.0, snap.Latencies[0], 1e-6)
}

func TestReceiverHandleOverflow(t *testing.T) {
	r, buf, tel := newTestReceiver(t, 3, clock.NewFake(0))

	for seq := uint64(0); seq < 4; seq++ {
		r.handle(protocol.Encode(seq, 0, []byte{byte('A' + seq)}))
	}

	snap := tel.Snapshot()
	assert.Equal(t, uint64(4), snap.Received)
	assert.Equal(t, uint64(1), snap.Dropped)
	assert.Equal(t, uint64(1), snap.OverflowDrops)
	assert.Equal(t, uint64(0), snap.NetworkLoss)

	frame, err := buf.Pop(time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, "B", string(frame))
}

func TestReceiverHandleTruncated(t *testing.T) {
	r, buf, tel := newTestReceiver(t, 3, clock.NewFake(0))

	r.handle(make([]byte, protocol.HeaderSize-1))
	r.handle(nil)

	snap := tel.Snapshot()
	assert.Equal(t, uint64(0), snap.Received)
	assert.Equal(t, uint64(0), snap.Dropped)
	assert.Equal(t, 0, buf.Len())

	_, ok := r.tracker.Expected()
	assert.False(t, ok)
}

func TestReceiverHandleAfterEndOfStream(t *testing.T) {
	r, buf, tel := newTestReceiver(t, 3, clock.NewFake(0))
	buf.EndOfStream()

	assert.NotPanics(t, func() {
		r.handle(protocol.Encode(0, 0, []byte("x")))
	})
	assert.Equal(t, 0, buf.Len())

	snap := tel.Snapshot()
	assert.Equal(t, uint64(0), snap.Received)
	assert.Equal(t, uint64(0), snap.Dropped)
	assert.Empty(t, snap.Latencies)
	assert.Empty(t, snap.Sequences)

	_, ok := r.tracker.Expected()
	assert.False(t, ok)
}

func TestReceiverRunOverUDP(t *testing.T) {
	r, buf, tel := newTestReceiver(t, 10, clock.NewFake(0))

	reporter := NewReporter(tel, buf, time.Hour)
	var final Report
	reporter.OnReport(func(rep Report) { final = rep })
	r.SetReporter(reporter)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	out, err := net.Dial("udp", r.conn.LocalAddr().String())
	require.NoError(t, err)
	defer out.Close()

	for seq := uint64(0); seq < 3; seq++ {
		_, err := out.Write(protocol.Encode(seq, 0, []byte("pcm")))
		require.NoError(t, err)
	}

	require.Eventually(t, func() bool {
		return tel.Received() == 3
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("receiver did not observe cancellation")
	}

	assert.True(t, final.Final)
	assert.Equal(t, uint64(3), final.Received)
	assert.Equal(t, 3, buf.Len())
}

func TestReceiverRunStopsOnClosedSocket(t *testing.T) {
	r, _, _ := newTestReceiver(t, 10, clock.NewFake(0))

	done := make(chan error, 1)
	go func() { done <- r.Run(context.Background()) }()

	time.Sleep(10 * time.Millisecond)
	require.NoError(t, r.conn.Close())

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("receiver did not stop after close")
	}
}
