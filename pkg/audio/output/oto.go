// ABOUTME: Oto-based audio output implementation
// ABOUTME: Handles PCM playback with software volume control using oto library
package output

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
	"github.com/sirupsen/logrus"

	"github.com/Resonate-Protocol/pcmlink/pkg/audio"
)

// drainPoll is how often Flush checks the device backlog
const drainPoll = 5 * time.Millisecond

// Oto output implementation using oto library
type Oto struct {
	*volumeState

	otoCtx     *oto.Context
	player     *oto.Player
	pipeReader *io.PipeReader
	pipeWriter *io.PipeWriter
	format     audio.Format

	// FlushTimeout bounds how long Flush waits for the device backlog
	FlushTimeout time.Duration

	mu     sync.Mutex
	closed bool
}

// NewOto initializes oto for format. oto allows one context per process, so
// a receiver opens a single Oto sink for its lifetime.
func NewOto(format audio.Format) (*Oto, error) {
	op := &oto.NewContextOptions{
		SampleRate:   format.SampleRate,
		ChannelCount: format.Channels,
		Format:       oto.FormatSignedInt16LE,
	}

	otoCtx, readyChan, err := oto.NewContext(op)
	if err != nil {
		return nil, fmt.Errorf("failed to create oto context: %w", err)
	}

	<-readyChan

	o := &Oto{
		volumeState:  newVolumeState(),
		otoCtx:       otoCtx,
		format:       format,
		FlushTimeout: 2 * time.Second,
	}

	// Create pipe for continuous streaming
	o.pipeReader, o.pipeWriter = io.Pipe()

	// Create persistent player that reads from the pipe
	o.player = o.otoCtx.NewPlayer(o.pipeReader)
	o.player.Play()

	logrus.WithField("component", "output").Infof("Audio output initialized: %s (oto)", format)

	return o, nil
}

// WriteFrame outputs a frame (blocks until the player has taken it)
func (o *Oto) WriteFrame(frame []byte) error {
	o.mu.Lock()
	closed := o.closed
	o.mu.Unlock()
	if closed {
		return io.ErrClosedPipe
	}

	if _, err := o.pipeWriter.Write(o.apply(frame)); err != nil {
		return fmt.Errorf("pipe write failed: %w", err)
	}

	return nil
}

// Flush waits until the player backlog has drained or FlushTimeout passes
func (o *Oto) Flush() error {
	deadline := time.Now().Add(o.FlushTimeout)
	for o.player.BufferedSize() > 0 {
		if time.Now().After(deadline) {
			return fmt.Errorf("flush timed out with %d bytes buffered", o.player.BufferedSize())
		}
		time.Sleep(drainPoll)
	}
	return nil
}

// Close releases output resources
func (o *Oto) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return nil
	}
	o.closed = true

	_ = o.pipeWriter.Close()
	if err := o.player.Close(); err != nil {
		logrus.WithField("component", "output").Warnf("player close error: %v", err)
	}
	_ = o.pipeReader.Close()

	return o.otoCtx.Suspend()
}
