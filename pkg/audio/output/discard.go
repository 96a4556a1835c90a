// ABOUTME: Headless output that drops audio
// ABOUTME: Optionally consumes frames at real-time rate for devices-free receivers
package output

import (
	"sync"
	"time"

	"go.uber.org/atomic"

	"github.com/Resonate-Protocol/pcmlink/pkg/audio"
)

// Discard is a sink that plays nothing. When paced, WriteFrame returns at the
// rate a real device would consume frames.
type Discard struct {
	*volumeState

	format audio.Format
	paced  bool

	frames atomic.Uint64
	bytes  atomic.Uint64
	closed atomic.Bool

	mu    sync.Mutex
	start time.Time
	due   time.Duration
	now   func() time.Time
	sleep func(time.Duration)
}

// NewDiscard creates a headless sink
func NewDiscard(format audio.Format, paced bool) *Discard {
	return &Discard{
		volumeState: newVolumeState(),
		format:      format,
		paced:       paced,
		now:         time.Now,
		sleep:       time.Sleep,
	}
}

// WriteFrame counts the frame and drops it
func (d *Discard) WriteFrame(frame []byte) error {
	if d.closed.Load() {
		return ErrSinkClosed
	}

	d.frames.Inc()
	d.bytes.Add(uint64(len(frame)))

	if !d.paced || d.format.Channels <= 0 {
		return nil
	}

	d.mu.Lock()
	if d.start.IsZero() {
		d.start = d.now()
	}
	d.due += d.format.FrameDuration(audio.Frame(frame).Samples(d.format.Channels))
	wait := d.start.Add(d.due).Sub(d.now())
	d.mu.Unlock()

	if wait > 0 {
		d.sleep(wait)
	}
	return nil
}

// Flush is a no-op
func (d *Discard) Flush() error {
	return nil
}

// Close marks the sink closed
func (d *Discard) Close() error {
	d.closed.Store(true)
	return nil
}

// Frames returns the number of frames written
func (d *Discard) Frames() uint64 {
	return d.frames.Load()
}

// Bytes returns the number of bytes written
func (d *Discard) Bytes() uint64 {
	return d.bytes.Load()
}
