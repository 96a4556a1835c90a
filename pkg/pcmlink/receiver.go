// ABOUTME: Receiver socket loop
// ABOUTME: Decodes datagrams, accounts for loss and feeds the jitter buffer
package pcmlink

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Resonate-Protocol/pcmlink/pkg/clock"
	"github.com/Resonate-Protocol/pcmlink/pkg/protocol"
)

// ReceiverConfig tunes the socket loop
type ReceiverConfig struct {
	// ReadTimeout is the read deadline used to re-check for shutdown
	// (default: 250ms)
	ReadTimeout time.Duration

	// Clock stamps arrivals; it must match the sender's clock domain
	Clock clock.Clock
}

// Receiver owns the UDP socket on the receive side
type Receiver struct {
	conn      net.PacketConn
	buffer    *JitterBuffer
	telemetry *Telemetry
	tracker   SequenceTracker
	config    ReceiverConfig
	reporter  *Reporter
	log       *logrus.Entry
}

// NewReceiver creates a receiver reading from conn
func NewReceiver(conn net.PacketConn, buffer *JitterBuffer, telemetry *Telemetry, config ReceiverConfig) *Receiver {
	if config.ReadTimeout <= 0 {
		config.ReadTimeout = 250 * time.Millisecond
	}
	if config.Clock == nil {
		config.Clock = clock.Monotonic()
	}

	return &Receiver{
		conn:      conn,
		buffer:    buffer,
		telemetry: telemetry,
		config:    config,
		log:       logrus.WithField("component", "receiver"),
	}
}

// SetReporter sets the reporter used for the final flush on exit
func (r *Receiver) SetReporter(reporter *Reporter) {
	r.reporter = reporter
}

// Run reads datagrams until ctx is cancelled or the socket is closed
func (r *Receiver) Run(ctx context.Context) error {
	defer r.flush()

	buf := make([]byte, protocol.MaxDatagramSize)

	r.log.Infof("Listening on %s", r.conn.LocalAddr())

	for ctx.Err() == nil {
		if err := r.conn.SetReadDeadline(time.Now().Add(r.config.ReadTimeout)); err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			r.log.Warnf("Failed to set read deadline: %v", err)
		}

		n, _, err := r.conn.ReadFrom(buf)
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			r.log.Warnf("Read error: %v", err)
			continue
		}

		r.handle(buf[:n])
	}

	return nil
}

// handle processes one datagram
func (r *Receiver) handle(datagram []byte) {
	pkt, err := protocol.Decode(datagram)
	if err != nil {
		r.log.Debugf("Dropping malformed datagram: %v", err)
		return
	}

	latencyMs := (r.config.Clock.Now() - pkt.SentAt) * 1000

	evicted, err := r.buffer.Push(pkt.Payload)
	if err != nil {
		// after end of stream the packet is dropped without being counted
		r.log.Debugf("Dropping packet %d: %v", pkt.Sequence, err)
		return
	}

	if lost := r.tracker.Observe(pkt.Sequence); lost > 0 {
		r.telemetry.AddNetworkLoss(lost)
		r.log.Debugf("Sequence gap before %d: %d packets lost", pkt.Sequence, lost)
	}

	r.telemetry.RecordPacket(pkt.Sequence, latencyMs)
	r.log.Debugf("Packet %d: %d bytes, latency %.2fms", pkt.Sequence, len(pkt.Payload), latencyMs)

	if evicted {
		r.telemetry.AddOverflowDrop()
		r.log.Debugf("Jitter buffer full: dropped oldest frame")
	}
}

func (r *Receiver) flush() {
	if r.reporter != nil {
		r.reporter.Emit(true)
	}
}
