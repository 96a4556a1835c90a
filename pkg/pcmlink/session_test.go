// ABOUTME: End-to-end tests for the receive session
// ABOUTME: Streams over loopback UDP and checks the shutdown sequence
package pcmlink

import (
	"context"
	"encoding/binary"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Resonate-Protocol/pcmlink/pkg/clock"
)

func testSessionConfig(clk clock.Clock) SessionConfig {
	cfg := DefaultSessionConfig()
	cfg.Listen = "127.0.0.1:0"
	cfg.ReadTimeout = 20 * time.Millisecond
	cfg.PopTimeout = 20 * time.Millisecond
	cfg.ReportInterval = time.Hour
	cfg.Clock = clk
	return cfg
}

func TestSessionEndToEnd(t *testing.T) {
	clk := clock.NewFake(1000)
	sink := &recordingSink{}

	session, err := NewSession(testSessionConfig(clk), sink)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- session.Run(ctx) }()

	const total = 1000
	src := &countingSource{total: total, interval: 2 * time.Millisecond}
	sender, err := Dial(session.Addr().String(), src, SenderConfig{FrameSize: 64, Clock: clk})
	require.NoError(t, err)
	defer sender.Close()

	require.NoError(t, sender.Run(context.Background()))

	require.Eventually(t, func() bool {
		return session.Telemetry().Received() == total
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("session did not shut down")
	}

	snap := session.Telemetry().Snapshot()
	assert.Equal(t, uint64(total), snap.Received)
	assert.Equal(t, uint64(0), snap.Dropped)
	assert.Equal(t, 0, session.Buffer().Len())
	assert.Equal(t, StateStopped, session.Playback().State())

	frames := sink.Frames()
	require.Len(t, frames, total)
	for i, frame := range frames {
		assert.Equal(t, uint16(i), binary.LittleEndian.Uint16(frame))
	}

	flushed, closed := sink.Counts()
	assert.Equal(t, 1, flushed)
	assert.Equal(t, 1, closed)
}

func TestSessionShutdownBeforeTraffic(t *testing.T) {
	sink := &recordingSink{}
	session, err := NewSession(testSessionConfig(clock.NewFake(0)), sink)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- session.Run(ctx) }()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("session did not shut down")
	}

	assert.Equal(t, StateStopped, session.Playback().State())
	_, closed := sink.Counts()
	assert.Equal(t, 1, closed)
}

func TestSessionJoinTimeout(t *testing.T) {
	clk := clock.NewFake(0)
	// a sink slower than the join timeout allows
	sink := &recordingSink{delay: 50 * time.Millisecond}

	cfg := testSessionConfig(clk)
	cfg.InitialBuffer = 1
	cfg.JoinTimeout = 100 * time.Millisecond

	session, err := NewSession(cfg, sink)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- session.Run(ctx) }()

	sender, err := Dial(session.Addr().String(), &countingSource{total: 20}, SenderConfig{FrameSize: 16, Clock: clk})
	require.NoError(t, err)
	defer sender.Close()
	require.NoError(t, sender.Run(context.Background()))

	require.Eventually(t, func() bool {
		return session.Telemetry().Received() == 20
	}, 2*time.Second, 5*time.Millisecond)

	start := time.Now()
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("session did not shut down")
	}

	assert.Less(t, time.Since(start), time.Second)
	assert.Less(t, len(sink.Frames()), 20)
	assert.Equal(t, StateStopped, session.Playback().State())
}

func TestSessionReleasesSocketWhenSinkIsStuck(t *testing.T) {
	clk := clock.NewFake(0)
	sink := newBlockingSink()
	defer close(sink.release)

	cfg := testSessionConfig(clk)
	cfg.InitialBuffer = 1
	cfg.JoinTimeout = 100 * time.Millisecond

	session, err := NewSession(cfg, sink)
	require.NoError(t, err)
	addr := session.Addr().String()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- session.Run(ctx) }()

	sender, err := Dial(addr, &countingSource{total: 5}, SenderConfig{FrameSize: 16, Clock: clk})
	require.NoError(t, err)
	defer sender.Close()
	require.NoError(t, sender.Run(context.Background()))

	select {
	case <-sink.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("playback never reached the sink")
	}

	start := time.Now()
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("session stayed blocked on a stuck sink")
	}
	assert.Less(t, time.Since(start), time.Second)

	// the port is free again
	conn, err := net.ListenPacket("udp", addr)
	require.NoError(t, err)
	_ = conn.Close()
}

func TestSessionBindFailure(t *testing.T) {
	taken, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	defer taken.Close()

	cfg := testSessionConfig(clock.NewFake(0))
	cfg.Listen = taken.LocalAddr().String()

	_, err = NewSession(cfg, &recordingSink{})
	assert.Error(t, err)
}

func TestSessionRejectsInitialAboveQueue(t *testing.T) {
	cfg := testSessionConfig(clock.NewFake(0))
	cfg.QueueSize = 3
	cfg.InitialBuffer = 4

	_, err := NewSession(cfg, &recordingSink{})
	assert.Error(t, err)
}
