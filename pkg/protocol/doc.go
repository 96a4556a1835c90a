// ABOUTME: pcmlink wire protocol package
// ABOUTME: Defines the UDP datagram layout for audio packets
// Package protocol implements the pcmlink wire format.
//
// Every UDP datagram carries one audio frame behind a fixed 16-byte header:
//
//	offset 0  uint64  sequence number (little-endian)
//	offset 8  float64 sender monotonic clock, seconds (IEEE-754, little-endian)
//	offset 16 raw interleaved int16 PCM, any length
//
// Sample rate, channel count and sample format are agreed out of band and are
// not carried in the header.
//
// Example:
//
//	datagram := protocol.Encode(seq, clk.Now(), frame)
//	pkt, err := protocol.Decode(datagram)
package protocol
