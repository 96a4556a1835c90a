// ABOUTME: Channel remixing and rate conversion for decoded sources
// ABOUTME: Adapts native file PCM to the configured stream format
package capture

import (
	"github.com/Resonate-Protocol/pcmlink/pkg/audio/resample"
)

// converter maps interleaved samples from a native rate/channel layout to the
// stream layout
type converter struct {
	inChannels  int
	outChannels int
	resampler   *resample.Resampler
}

func newConverter(inRate, inChannels, outRate, outChannels int) *converter {
	c := &converter{
		inChannels:  inChannels,
		outChannels: outChannels,
	}
	if inRate != outRate {
		c.resampler = resample.New(inRate, outRate, outChannels)
	}
	return c
}

// convert remixes then resamples a chunk of native samples
func (c *converter) convert(in []int16) []int16 {
	out := remix(in, c.inChannels, c.outChannels)
	if c.resampler != nil {
		out = c.resampler.Resample(out)
	}
	return out
}

func (c *converter) reset() {
	if c.resampler != nil {
		c.resampler.Reset()
	}
}

// remix converts between channel counts. Mono is produced by averaging;
// other layouts map output channel n to input channel n modulo the input
// channel count.
func remix(in []int16, inChannels, outChannels int) []int16 {
	if inChannels == outChannels {
		return in
	}

	frames := len(in) / inChannels
	out := make([]int16, frames*outChannels)

	for i := 0; i < frames; i++ {
		frame := in[i*inChannels : (i+1)*inChannels]

		if outChannels == 1 {
			var sum int64
			for _, s := range frame {
				sum += int64(s)
			}
			out[i] = int16(sum / int64(inChannels))
			continue
		}

		for ch := 0; ch < outChannels; ch++ {
			out[i*outChannels+ch] = frame[ch%inChannels]
		}
	}

	return out
}
