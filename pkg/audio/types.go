// ABOUTME: Audio type definitions
// ABOUTME: Defines PCM formats, frames and int16 sample conversions
package audio

import (
	"encoding/binary"
	"fmt"
	"time"
)

const (
	// BytesPerSample is the size of one signed 16-bit sample
	BytesPerSample = 2

	// 16-bit audio range constants
	MaxInt16 = 32767
	MinInt16 = -32768
)

// Format describes a raw PCM stream. Only 16-bit samples are carried on the
// wire; BitDepth is kept for device negotiation.
type Format struct {
	SampleRate int
	Channels   int
	BitDepth   int
}

// Frame is one block of interleaved little-endian int16 PCM bytes.
// Ownership moves from stage to stage; a stage must not keep a reference
// after handing a frame on.
type Frame []byte

// Validate checks that the format can be streamed
func (f Format) Validate() error {
	if f.SampleRate <= 0 {
		return fmt.Errorf("invalid sample rate: %d", f.SampleRate)
	}
	if f.Channels <= 0 {
		return fmt.Errorf("invalid channel count: %d", f.Channels)
	}
	if f.BitDepth != 0 && f.BitDepth != 16 {
		return fmt.Errorf("unsupported bit depth: %d (supported: 16)", f.BitDepth)
	}
	return nil
}

// FrameBytes returns the byte length of a frame holding samplesPerChannel
// samples for every channel
func (f Format) FrameBytes(samplesPerChannel int) int {
	return samplesPerChannel * f.Channels * BytesPerSample
}

// FrameDuration returns how long a frame of samplesPerChannel samples plays
func (f Format) FrameDuration(samplesPerChannel int) time.Duration {
	if f.SampleRate <= 0 {
		return 0
	}
	return time.Duration(samplesPerChannel) * time.Second / time.Duration(f.SampleRate)
}

func (f Format) String() string {
	return fmt.Sprintf("%dHz/%dch/16bit", f.SampleRate, f.Channels)
}

// Samples returns the number of samples per channel contained in the frame
func (fr Frame) Samples(channels int) int {
	if channels <= 0 {
		return 0
	}
	return len(fr) / (channels * BytesPerSample)
}

// BytesToSamples decodes little-endian int16 samples. A trailing odd byte is
// ignored.
func BytesToSamples(data []byte) []int16 {
	samples := make([]int16, len(data)/BytesPerSample)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(data[i*2:]))
	}
	return samples
}

// SamplesToBytes encodes int16 samples as little-endian bytes
func SamplesToBytes(samples []int16) []byte {
	out := make([]byte, len(samples)*BytesPerSample)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
	}
	return out
}

// ClampInt16 saturates a wider sample into the int16 range
func ClampInt16(v int64) int16 {
	if v > MaxInt16 {
		return MaxInt16
	}
	if v < MinInt16 {
		return MinInt16
	}
	return int16(v)
}

// SampleFromInt32 converts a sample of the given bit depth to int16
func SampleFromInt32(sample int32, bitDepth int) int16 {
	switch {
	case bitDepth == 16:
		return int16(sample)
	case bitDepth > 16:
		return int16(sample >> (bitDepth - 16))
	case bitDepth > 0:
		return int16(sample << (16 - bitDepth))
	default:
		return 0
	}
}
