// ABOUTME: Audio resampling package using linear interpolation
// ABOUTME: Converts interleaved int16 PCM between sample rates
// Package resample provides streaming sample rate conversion.
//
// Uses linear interpolation and carries the last input frame across calls,
// so a stream can be converted chunk by chunk without clicks at chunk
// boundaries. Handles both upsampling and downsampling.
//
// Example:
//
//	r := resample.New(48000, 44100, 2)
//	out := r.Resample(chunk)
package resample
