// ABOUTME: Raw PCM over UDP streaming library
// ABOUTME: Provides the sender, receiver loop, jitter buffer and playback engine
// Package pcmlink streams live raw PCM audio from a sender to a receiver over
// UDP.
//
// The receive side is built from three goroutines sharing a JitterBuffer and
// a Telemetry value:
//   - Receiver: owns the socket, decodes packets, accounts for sequence gaps
//   - PlaybackEngine: primes the buffer, then feeds frames to an output.Sink
//   - Reporter: logs periodic telemetry snapshots
//
// Session wires them together and implements the shutdown sequence.
//
// Example receiver:
//
//	sink, err := output.Open(output.KindOto, format)
//	session, err := pcmlink.NewSession(pcmlink.DefaultSessionConfig(), sink)
//	err = session.Run(ctx)
//
// Example sender:
//
//	src, err := capture.Open(capture.Options{Kind: capture.KindTone, Format: format})
//	sender, err := pcmlink.Dial("192.168.1.20:5005", src, pcmlink.SenderConfig{FrameSize: 512})
//	err = sender.Run(ctx)
package pcmlink
