// ABOUTME: Sender pipeline
// ABOUTME: Reads frames from a capture source, stamps, sequences and transmits them
package pcmlink

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/sirupsen/logrus"
	"go.uber.org/atomic"

	"github.com/Resonate-Protocol/pcmlink/pkg/audio/capture"
	"github.com/Resonate-Protocol/pcmlink/pkg/clock"
	"github.com/Resonate-Protocol/pcmlink/pkg/protocol"
)

// SenderConfig tunes the sender
type SenderConfig struct {
	// FrameSize is the number of samples per channel in each packet
	// (default: 512)
	FrameSize int

	// WriteTimeout bounds each datagram write (default: 100ms)
	WriteTimeout time.Duration

	// Clock stamps packets just before transmit
	Clock clock.Clock
}

// SenderStats holds sender counters
type SenderStats struct {
	FramesSent   uint64
	SendErrors   uint64
	NextSequence uint64
}

// Sender streams frames from a capture source to one destination
type Sender struct {
	conn   net.Conn
	source capture.Source
	config SenderConfig

	seq        atomic.Uint64
	framesSent atomic.Uint64
	sendErrors atomic.Uint64

	buf []byte
	log *logrus.Entry
}

// Dial connects a UDP socket to destination and creates a sender on it
func Dial(destination string, source capture.Source, config SenderConfig) (*Sender, error) {
	conn, err := net.Dial("udp", destination)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", destination, err)
	}
	return NewSender(conn, source, config), nil
}

// NewSender creates a sender writing to conn
func NewSender(conn net.Conn, source capture.Source, config SenderConfig) *Sender {
	if config.FrameSize <= 0 {
		config.FrameSize = 512
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = 100 * time.Millisecond
	}
	if config.Clock == nil {
		config.Clock = clock.Monotonic()
	}

	return &Sender{
		conn:   conn,
		source: source,
		config: config,
		log:    logrus.WithField("component", "sender"),
	}
}

// Run sends one packet per captured frame until ctx is cancelled or the
// source reports io.EOF. Capture errors other than io.EOF are returned.
func (s *Sender) Run(ctx context.Context) error {
	format := s.source.Format()
	s.log.Infof("Streaming %s, %d samples per frame (%v) to %s",
		format, s.config.FrameSize, format.FrameDuration(s.config.FrameSize), s.conn.RemoteAddr())

	for ctx.Err() == nil {
		frame, err := s.source.ReadFrame(s.config.FrameSize)
		if errors.Is(err, io.EOF) {
			s.log.Info("Capture source ended")
			return nil
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("capture read failed: %w", err)
		}

		if err := s.SendFrame(frame); err != nil {
			if s.sendErrors.Load() == 1 {
				s.log.Warnf("Send failed: %v", err)
			} else {
				s.log.Debugf("Send failed: %v", err)
			}
		}
	}

	return nil
}

// SendFrame transmits one frame with the next sequence number. The sequence
// advances whether or not the write succeeds. It must not be called
// concurrently with Run.
func (s *Sender) SendFrame(frame []byte) error {
	seq := s.seq.Inc() - 1

	if err := s.conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout)); err != nil {
		s.sendErrors.Inc()
		return fmt.Errorf("failed to set write deadline: %w", err)
	}

	s.buf = protocol.AppendEncode(s.buf[:0], seq, s.config.Clock.Now(), frame)
	if _, err := s.conn.Write(s.buf); err != nil {
		s.sendErrors.Inc()
		return fmt.Errorf("packet %d: %w", seq, err)
	}

	s.framesSent.Inc()
	return nil
}

// Stats returns the sender counters
func (s *Sender) Stats() SenderStats {
	return SenderStats{
		FramesSent:   s.framesSent.Load(),
		SendErrors:   s.sendErrors.Load(),
		NextSequence: s.seq.Load(),
	}
}

// Close closes the socket. The capture source is owned by the caller.
func (s *Sender) Close() error {
	return s.conn.Close()
}
