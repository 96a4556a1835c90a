// ABOUTME: Audio fundamentals package providing core types and utilities
// ABOUTME: Defines Format, Frame types and PCM sample conversion functions
// Package audio provides the fundamental audio types shared by the pcmlink
// sender and receiver.
//
// This package defines:
//   - Format: describes a raw PCM stream (sample rate, channels, bit depth)
//   - Frame: one captured block of interleaved little-endian int16 samples
//
// It also provides helpers for converting between packed bytes and int16
// samples and for sizing frames.
//
// Example:
//
//	format := audio.Format{
//	    SampleRate: 44100,
//	    Channels:   2,
//	    BitDepth:   16,
//	}
//
//	// Bytes in one 512-sample frame
//	n := format.FrameBytes(512)
package audio
