// ABOUTME: Capture source abstraction and factory
// ABOUTME: Defines Source, the Paced wrapper and Open for CLI selection
package capture

import (
	"fmt"
	"time"

	"github.com/Resonate-Protocol/pcmlink/pkg/audio"
)

// Source kinds accepted by Open
const (
	KindTone   = "tone"
	KindFile   = "file"
	KindDevice = "device"
)

// Source provides fixed-size PCM frames for streaming
type Source interface {
	// ReadFrame blocks until samplesPerChannel samples for every channel are
	// available and returns them as interleaved little-endian int16 bytes.
	// io.EOF signals the end of the stream.
	ReadFrame(samplesPerChannel int) ([]byte, error)

	// Format returns the format of the frames produced
	Format() audio.Format

	// Close releases the source
	Close() error
}

// Options selects and configures a source
type Options struct {
	Kind   string
	Format audio.Format

	// File sources
	Path string
	Loop bool

	// Tone sources
	ToneHz float64
}

// Open creates the source described by opts. Synthetic and file sources are
// paced to real time.
func Open(opts Options) (Source, error) {
	if err := opts.Format.Validate(); err != nil {
		return nil, err
	}

	switch opts.Kind {
	case KindTone, "":
		return Paced(NewTone(opts.Format, opts.ToneHz)), nil
	case KindFile:
		src, err := OpenFile(opts.Path, opts.Format, opts.Loop)
		if err != nil {
			return nil, err
		}
		return Paced(src), nil
	case KindDevice:
		return OpenDevice(opts.Format)
	default:
		return nil, fmt.Errorf("unknown capture source: %q (supported: tone, file, device)", opts.Kind)
	}
}

// PacedSource delays frames from a non-blocking source so that they are
// handed out no faster than real time
type PacedSource struct {
	Source

	start   time.Time
	samples uint64 // samples per channel handed out so far
	now     func() time.Time
	sleep   func(time.Duration)
}

// Paced wraps src so ReadFrame returns at the cadence of a live device
func Paced(src Source) *PacedSource {
	return &PacedSource{
		Source: src,
		now:    time.Now,
		sleep:  time.Sleep,
	}
}

// ReadFrame reads from the wrapped source and waits until the frame is due
func (p *PacedSource) ReadFrame(samplesPerChannel int) ([]byte, error) {
	frame, err := p.Source.ReadFrame(samplesPerChannel)
	if err != nil {
		return frame, err
	}

	if p.start.IsZero() {
		p.start = p.now()
	}

	due := p.start.Add(p.Format().FrameDuration(int(p.samples)))
	p.samples += uint64(samplesPerChannel)

	if wait := due.Sub(p.now()); wait > 0 {
		p.sleep(wait)
	}

	return frame, nil
}
