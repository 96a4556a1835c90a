// ABOUTME: Simple linear resampler for converting audio sample rates
// ABOUTME: Used by capture sources whose native rate differs from the stream rate
package resample

import "math"

// Resampler performs linear interpolation to convert between sample rates
type Resampler struct {
	inputRate  int
	outputRate int
	channels   int
	ratio      float64
	position   float64 // read position in input frames, relative to the carried frame
	last       []int16 // last input frame of the previous call, one sample per channel
}

// New creates a new resampler
func New(inputRate, outputRate, channels int) *Resampler {
	return &Resampler{
		inputRate:  inputRate,
		outputRate: outputRate,
		channels:   channels,
		ratio:      float64(inputRate) / float64(outputRate),
	}
}

// Resample converts interleaved input samples at inputRate to interleaved
// samples at outputRate. Output lags input by one frame because the final
// input frame is held back to interpolate against the next chunk.
func (r *Resampler) Resample(input []int16) []int16 {
	ch := r.channels
	frames := len(input) / ch
	if frames == 0 {
		return nil
	}

	src := input[:frames*ch]
	if r.last != nil {
		joined := make([]int16, 0, len(r.last)+len(src))
		joined = append(joined, r.last...)
		src = append(joined, src...)
	}
	total := len(src) / ch

	out := make([]int16, 0, (int(float64(total)/r.ratio)+2)*ch)
	for {
		idx := int(r.position)
		if idx+1 >= total {
			break
		}

		frac := r.position - float64(idx)
		for c := 0; c < ch; c++ {
			s1 := float64(src[idx*ch+c])
			s2 := float64(src[(idx+1)*ch+c])
			out = append(out, int16(math.Round(s1*(1.0-frac)+s2*frac)))
		}

		r.position += r.ratio
	}

	// Rebase onto the frame we carry into the next call
	r.position -= float64(total - 1)
	r.last = append(r.last[:0], src[(total-1)*ch:]...)

	return out
}

// Reset resets the resampler state
func (r *Resampler) Reset() {
	r.position = 0
	r.last = nil
}

// Ratio returns input frames consumed per output frame
func (r *Resampler) Ratio() float64 {
	return r.ratio
}

// OutputSamplesNeeded estimates how many output samples inputSamples produce
func (r *Resampler) OutputSamplesNeeded(inputSamples int) int {
	inputFrames := inputSamples / r.channels
	outputFrames := int(float64(inputFrames) / r.ratio)
	return outputFrames * r.channels
}

// InputSamplesNeeded estimates how many input samples produce outputSamples
func (r *Resampler) InputSamplesNeeded(outputSamples int) int {
	outputFrames := outputSamples / r.channels
	inputFrames := int(math.Ceil(float64(outputFrames) * r.ratio))
	return inputFrames * r.channels
}
