// ABOUTME: Audio output interface definition
// ABOUTME: Common Sink interface and backend factory for playback
package output

import (
	"fmt"

	"github.com/Resonate-Protocol/pcmlink/pkg/audio"
)

// Sink kinds accepted by Open
const (
	KindOto   = "oto"
	KindMalgo = "malgo"
	KindNone  = "none"
)

// Sink represents a playback device
type Sink interface {
	// WriteFrame queues interleaved int16 PCM for playback
	WriteFrame(frame []byte) error

	// Flush blocks until queued audio has been played
	Flush() error

	// Close releases output resources
	Close() error
}

// VolumeControl is implemented by sinks with software volume
type VolumeControl interface {
	SetVolume(volume int)
	SetMuted(muted bool)
	Volume() int
	Muted() bool
}

// Open creates and initializes the sink backend named by kind
func Open(kind string, format audio.Format) (Sink, error) {
	if err := format.Validate(); err != nil {
		return nil, err
	}

	switch kind {
	case KindOto, "":
		return NewOto(format)
	case KindMalgo:
		return NewMalgo(format)
	case KindNone:
		return NewDiscard(format, true), nil
	default:
		return nil, fmt.Errorf("unknown output: %q (supported: oto, malgo, none)", kind)
	}
}
