// ABOUTME: Playback state machine consuming the jitter buffer
// ABOUTME: Primes the buffer, plays frames to a sink, drains and stops
package pcmlink

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"go.uber.org/atomic"

	"github.com/Resonate-Protocol/pcmlink/pkg/audio/output"
)

// PlaybackState is the state of a PlaybackEngine
type PlaybackState int32

const (
	StateWaitingForPrimed PlaybackState = iota
	StatePlaying
	StateDraining
	StateStopped
)

func (s PlaybackState) String() string {
	switch s {
	case StateWaitingForPrimed:
		return "waiting"
	case StatePlaying:
		return "playing"
	case StateDraining:
		return "draining"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// PlaybackConfig tunes the playback engine
type PlaybackConfig struct {
	// InitialBuffer is the occupancy required before playback starts
	InitialBuffer int

	// PopTimeout bounds each wait for a frame (default: 100ms)
	PopTimeout time.Duration

	// PollInterval is the occupancy check period while priming (default: 10ms)
	PollInterval time.Duration
}

// PlaybackEngine moves frames from a JitterBuffer to an output.Sink
type PlaybackEngine struct {
	buffer *JitterBuffer
	sink   output.Sink
	config PlaybackConfig

	state       atomic.Int32
	played      atomic.Uint64
	writeErrors atomic.Uint64

	onStateChange func(PlaybackState)
	log           *logrus.Entry
}

// NewPlaybackEngine creates an engine in the WaitingForPrimed state
func NewPlaybackEngine(buffer *JitterBuffer, sink output.Sink, config PlaybackConfig) *PlaybackEngine {
	if config.InitialBuffer < 1 {
		config.InitialBuffer = 1
	}
	if config.PopTimeout <= 0 {
		config.PopTimeout = 100 * time.Millisecond
	}
	if config.PollInterval <= 0 {
		config.PollInterval = 10 * time.Millisecond
	}

	return &PlaybackEngine{
		buffer: buffer,
		sink:   sink,
		config: config,
		log:    logrus.WithField("component", "playback"),
	}
}

// OnStateChange registers a callback invoked from the playback goroutine on
// every transition. It must be set before Run and must not block.
func (p *PlaybackEngine) OnStateChange(fn func(PlaybackState)) {
	p.onStateChange = fn
}

// State returns the current state
func (p *PlaybackEngine) State() PlaybackState {
	return PlaybackState(p.state.Load())
}

// Played returns the number of frames handed to the sink
func (p *PlaybackEngine) Played() uint64 {
	return p.played.Load()
}

// WriteErrors returns the number of failed sink writes
func (p *PlaybackEngine) WriteErrors() uint64 {
	return p.writeErrors.Load()
}

// Run executes the state machine until Stopped. It returns once the buffer
// has reached end of stream and been drained, or ctx is cancelled. The sink
// is closed before Run returns.
func (p *PlaybackEngine) Run(ctx context.Context) error {
	defer p.stop()

	if !p.waitPrimed(ctx) {
		p.log.Info("Stream ended before playback was primed")
		return nil
	}

	p.setState(StatePlaying)
	p.log.Infof("Startup buffering complete: %d frames ready", p.buffer.Len())

	for ctx.Err() == nil {
		frame, err := p.buffer.Pop(p.config.PopTimeout)
		if errors.Is(err, ErrPopTimeout) {
			continue
		}
		if err != nil {
			break
		}

		if err := p.sink.WriteFrame(frame); err != nil {
			if p.writeErrors.Inc() == 1 {
				p.log.Warnf("Sink write failed: %v", err)
			} else {
				p.log.Debugf("Sink write failed: %v", err)
			}
			continue
		}
		p.played.Inc()
	}

	if ctx.Err() != nil {
		p.log.Warnf("Playback cancelled with %d frames queued", p.buffer.Len())
	}

	p.setState(StateDraining)
	if err := p.sink.Flush(); err != nil {
		p.log.Warnf("Sink flush failed: %v", err)
	}

	return nil
}

// waitPrimed polls occupancy without consuming until the initial threshold is
// reached. It returns false if the stream ends or ctx is cancelled first.
func (p *PlaybackEngine) waitPrimed(ctx context.Context) bool {
	p.setState(StateWaitingForPrimed)

	ticker := time.NewTicker(p.config.PollInterval)
	defer ticker.Stop()

	for {
		if p.buffer.Len() >= p.config.InitialBuffer {
			return true
		}
		if p.buffer.Ended() {
			return false
		}

		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
		}
	}
}

func (p *PlaybackEngine) stop() {
	p.setState(StateStopped)
	if err := p.sink.Close(); err != nil {
		p.log.Warnf("Sink close failed: %v", err)
	}
	p.log.Infof("Playback stopped: %d frames played, %d write errors", p.Played(), p.WriteErrors())
}

func (p *PlaybackEngine) setState(state PlaybackState) {
	if PlaybackState(p.state.Swap(int32(state))) == state {
		return
	}
	p.log.Debugf("State: %s", state)
	if p.onStateChange != nil {
		p.onStateChange(state)
	}
}
