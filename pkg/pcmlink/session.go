// ABOUTME: Receive-side lifecycle controller
// ABOUTME: Binds the socket, runs receiver, playback and reporter, and drains on shutdown
package pcmlink

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/Resonate-Protocol/pcmlink/pkg/audio/output"
	"github.com/Resonate-Protocol/pcmlink/pkg/clock"
)

// SessionConfig configures a receive session
type SessionConfig struct {
	// Listen is the UDP address to bind (default: 0.0.0.0:5005)
	Listen string

	// QueueSize is the jitter buffer capacity in frames
	QueueSize int

	// InitialBuffer is the occupancy required before playback starts
	InitialBuffer int

	PopTimeout     time.Duration
	ReadTimeout    time.Duration
	ReportInterval time.Duration

	// JoinTimeout bounds the wait for playback to drain at shutdown
	JoinTimeout time.Duration

	Clock clock.Clock
}

// DefaultSessionConfig returns the default receive configuration
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		Listen:         "0.0.0.0:5005",
		QueueSize:      20,
		InitialBuffer:  5,
		PopTimeout:     100 * time.Millisecond,
		ReadTimeout:    250 * time.Millisecond,
		ReportInterval: 5 * time.Second,
		JoinTimeout:    2 * time.Second,
	}
}

// Session is a running receiver: socket loop, playback engine and reporter
type Session struct {
	config    SessionConfig
	conn      net.PacketConn
	buffer    *JitterBuffer
	telemetry *Telemetry
	receiver  *Receiver
	playback  *PlaybackEngine
	reporter  *Reporter

	closeOnce sync.Once
	log       *logrus.Entry
}

// NewSession binds the socket and builds the pipeline feeding sink. Bind
// failures are returned as-is for the caller to treat as fatal.
func NewSession(config SessionConfig, sink output.Sink) (*Session, error) {
	defaults := DefaultSessionConfig()
	if config.Listen == "" {
		config.Listen = defaults.Listen
	}
	if config.QueueSize <= 0 {
		config.QueueSize = defaults.QueueSize
	}
	if config.InitialBuffer <= 0 {
		config.InitialBuffer = defaults.InitialBuffer
	}
	if config.InitialBuffer > config.QueueSize {
		return nil, fmt.Errorf("initial buffer %d exceeds queue size %d", config.InitialBuffer, config.QueueSize)
	}
	if config.JoinTimeout <= 0 {
		config.JoinTimeout = defaults.JoinTimeout
	}
	if config.Clock == nil {
		config.Clock = clock.Monotonic()
	}

	conn, err := net.ListenPacket("udp", config.Listen)
	if err != nil {
		return nil, fmt.Errorf("failed to bind %s: %w", config.Listen, err)
	}

	buffer := NewJitterBuffer(config.QueueSize)
	telemetry := NewTelemetry()

	receiver := NewReceiver(conn, buffer, telemetry, ReceiverConfig{
		ReadTimeout: config.ReadTimeout,
		Clock:       config.Clock,
	})
	playback := NewPlaybackEngine(buffer, sink, PlaybackConfig{
		InitialBuffer: config.InitialBuffer,
		PopTimeout:    config.PopTimeout,
	})
	reporter := NewReporter(telemetry, buffer, config.ReportInterval)
	reporter.AttachPlayback(playback)
	receiver.SetReporter(reporter)

	return &Session{
		config:    config,
		conn:      conn,
		buffer:    buffer,
		telemetry: telemetry,
		receiver:  receiver,
		playback:  playback,
		reporter:  reporter,
		log:       logrus.WithField("component", "session"),
	}, nil
}

// Addr returns the bound local address
func (s *Session) Addr() net.Addr {
	return s.conn.LocalAddr()
}

// Buffer returns the jitter buffer
func (s *Session) Buffer() *JitterBuffer {
	return s.buffer
}

// Telemetry returns the receive counters
func (s *Session) Telemetry() *Telemetry {
	return s.telemetry
}

// Playback returns the playback engine
func (s *Session) Playback() *PlaybackEngine {
	return s.playback
}

// Reporter returns the telemetry reporter
func (s *Session) Reporter() *Reporter {
	return s.reporter
}

// Run starts playback, then the socket loop and reporter, and blocks until
// ctx is cancelled. Shutdown stops reading, marks end of stream, waits up to
// JoinTimeout for playback to drain, cancels it and waits up to JoinTimeout
// again, and closes the socket.
func (s *Session) Run(ctx context.Context) error {
	defer s.Close()

	// Playback outlives ctx so it can drain after the receiver stops
	playCtx, playCancel := context.WithCancel(context.Background())
	defer playCancel()

	playDone := make(chan error, 1)
	go func() {
		playDone <- s.playback.Run(playCtx)
	}()

	s.log.Infof("Session started on %s (queue=%d, initial=%d)", s.Addr(), s.config.QueueSize, s.config.InitialBuffer)

	// the reporter stops with the receiver, even if the socket was closed
	runCtx, stopRun := context.WithCancel(ctx)
	defer stopRun()

	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error {
		defer stopRun()
		return s.receiver.Run(gctx)
	})
	g.Go(func() error {
		return s.reporter.Run(gctx)
	})
	err := g.Wait()

	s.log.Info("Shutting down: draining playback")
	s.buffer.EndOfStream()

	if !waitDone(playDone, s.config.JoinTimeout) {
		s.log.Warnf("Playback did not drain within %v, stopping", s.config.JoinTimeout)
		playCancel()

		// a sink blocked inside WriteFrame never sees the cancel
		if !waitDone(playDone, s.config.JoinTimeout) {
			s.log.Errorf("Playback still blocked in the sink after %v, abandoning it", s.config.JoinTimeout)
		}
	}

	s.log.Info("Session stopped")
	return err
}

func waitDone(done <-chan error, timeout time.Duration) bool {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-done:
		return true
	case <-timer.C:
		return false
	}
}

// Close releases the socket. It is safe to call more than once.
func (s *Session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		err = s.conn.Close()
	})
	return err
}
