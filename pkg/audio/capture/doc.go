// ABOUTME: Audio capture package supplying frames to the sender
// ABOUTME: Provides the Source interface plus tone, file and device sources
// Package capture provides the capture side collaborators of a pcmlink
// sender.
//
// A Source hands out fixed-size frames of interleaved int16 PCM. ReadFrame
// blocks until a frame is available, which is what paces the sender:
//   - Device: a live input device via miniaudio (malgo)
//   - FileSource: MP3, FLAC or raw s16le files, remixed and resampled to the
//     stream format
//   - Tone: a sine generator
//
// Synthetic and file sources are wrapped with Paced so they deliver frames at
// the rate a device would.
//
// Example:
//
//	src, err := capture.Open(capture.Options{
//	    Kind:   capture.KindTone,
//	    Format: audio.Format{SampleRate: 44100, Channels: 2, BitDepth: 16},
//	})
//	frame, err := src.ReadFrame(512)
package capture
