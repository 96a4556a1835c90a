// ABOUTME: Test tone generator for audio capture
// ABOUTME: Generates a sine wave on every channel
package capture

import (
	"math"
	"sync"

	"github.com/Resonate-Protocol/pcmlink/pkg/audio"
)

// DefaultToneHz is the A4 reference pitch
const DefaultToneHz = 440.0

// Tone generates a sine test tone
type Tone struct {
	sampleIndex uint64
	sampleMu    sync.Mutex
	frequency   float64
	format      audio.Format
}

// NewTone creates a tone generator. A non-positive frequency selects 440Hz.
func NewTone(format audio.Format, frequency float64) *Tone {
	if frequency <= 0 {
		frequency = DefaultToneHz
	}

	return &Tone{
		frequency: frequency,
		format:    format,
	}
}

// ReadFrame generates the next samplesPerChannel samples
func (s *Tone) ReadFrame(samplesPerChannel int) ([]byte, error) {
	s.sampleMu.Lock()
	defer s.sampleMu.Unlock()

	channels := s.format.Channels
	samples := make([]int16, samplesPerChannel*channels)

	for i := 0; i < samplesPerChannel; i++ {
		t := float64(s.sampleIndex+uint64(i)) / float64(s.format.SampleRate)
		sample := math.Sin(2 * math.Pi * s.frequency * t)

		// 50% volume to avoid clipping
		pcmValue := int16(sample * audio.MaxInt16 * 0.5)

		for ch := 0; ch < channels; ch++ {
			samples[i*channels+ch] = pcmValue
		}
	}

	s.sampleIndex += uint64(samplesPerChannel)

	return audio.SamplesToBytes(samples), nil
}

func (s *Tone) Format() audio.Format { return s.format }
func (s *Tone) Close() error         { return nil }
