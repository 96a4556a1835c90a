// ABOUTME: Tests for the sender pipeline
// ABOUTME: Covers sequencing, timestamps, end of source and capture errors
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

func listenUDP(t *testing.T) net.PacketConn {
	t.Helper()
	conn, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readPacket(t *testing.T, conn net.PacketConn) protocol.Packet {
	t.Helper()
	buf := make([]byte, protocol.MaxDatagramSize)
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	n, _, err := conn.ReadFrom(buf)
	require.NoError(t, err)

	pkt, err := protocol.Decode(buf[:n])
	require.NoError(t, err)
	return pkt
}

func TestSenderSequencesFrames(t *testing.T) {
	listener := listenUDP(t)
	clk := clock.NewFake(42.5)

	src := &countingSource{total: 3}
	sender, err := Dial(listener.LocalAddr().String(), src, SenderConfig{FrameSize: 64, Clock: clk})
	require.NoError(t, err)
	defer sender.Close()

	require.NoError(t, sender.Run(context.Background()))

	for seq := uint64(0); seq < 3; seq++ {
		pkt := readPacket(t, listener)
		assert.Equal(t, seq, pkt.Sequence)
		assert.Equal(t, 42.5, pkt.SentAt)
		assert.Len(t, pkt.Payload, testFormat.FrameBytes(64))
		assert.Equal(t, byte(seq), pkt.Payload[0])
	}

	stats := sender.Stats()
	assert.Equal(t, uint64(3), stats.FramesSent)
	assert.Equal(t, uint64(0), stats.SendErrors)
	assert.Equal(t, uint64(3), stats.NextSequence)
}

func TestSenderSequenceAdvancesOnSendError(t *testing.T) {
	listener := listenUDP(t)

	sender, err := Dial(listener.LocalAddr().String(), &countingSource{}, SenderConfig{Clock: clock.NewFake(0)})
	require.NoError(t, err)
	require.NoError(t, sender.Close())

	assert.Error(t, sender.SendFrame([]byte("x")))
	assert.Error(t, sender.SendFrame([]byte("y")))

	stats := sender.Stats()
	assert.Equal(t, uint64(2), stats.NextSequence)
	assert.Equal(t, uint64(2), stats.SendErrors)
	assert.Equal(t, uint64(0), stats.FramesSent)
}

func TestSenderReturnsCaptureError(t *testing.T) {
	listener := listenUDP(t)

	sender, err := Dial(listener.LocalAddr().String(), &countingSource{err: errDevice}, SenderConfig{})
	require.NoError(t, err)
	defer sender.Close()

	err = sender.Run(context.Background())
	assert.ErrorIs(t, err, errDevice)
}

func TestSenderStopsOnCancel(t *testing.T) {
	listener := listenUDP(t)

	sender, err := Dial(listener.LocalAddr().String(), &countingSource{total: 1 << 30, interval: time.Millisecond}, SenderConfig{})
	require.NoError(t, err)
	defer sender.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sender.Run(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("sender did not stop")
	}
}

func TestDialInvalidDestination(t *testing.T) {
	_, err := Dial("not-an-address", &countingSource{}, SenderConfig{})
	assert.Error(t, err)
}
