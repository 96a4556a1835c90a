// ABOUTME: Audio output package for playing received audio
// ABOUTME: Provides the Sink interface with oto, malgo and discard backends
// Package output provides the playback side collaborators of a pcmlink
// receiver.
//
// A Sink accepts interleaved little-endian int16 frames. WriteFrame may block
// while the device buffer is full, Flush waits until everything written has
// been played, and Close releases the device.
//
// Backends:
//   - Oto: ebitengine/oto persistent player fed through a pipe
//   - Malgo: miniaudio device drained from a ring buffer
//   - Discard: headless sink, optionally paced to real time
//
// Example:
//
//	sink, err := output.Open(output.KindOto, format)
//	err = sink.WriteFrame(frame)
//	err = sink.Flush()
//	err = sink.Close()
package output
