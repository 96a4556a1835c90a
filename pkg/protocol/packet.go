// ABOUTME: Binary framing for pcmlink audio datagrams
// ABOUTME: Encodes and decodes the sequence/timestamp header plus PCM payload
package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

const (
	// HeaderSize is the fixed length of the datagram header
	HeaderSize = 16

	// MaxDatagramSize bounds receive buffers; larger UDP payloads are not
	// produced by any supported frame configuration.
	MaxDatagramSize = 65507
)

// ErrTruncated is returned by Decode when the datagram is shorter than the header
var ErrTruncated = errors.New("packet truncated")

// Packet is a decoded audio datagram
type Packet struct {
	Sequence uint64
	SentAt   float64 // sender monotonic clock, seconds
	Payload  []byte
}

// Encode builds a datagram for the given sequence number, send timestamp and
// PCM payload
func Encode(sequence uint64, sentAt float64, payload []byte) []byte {
	return AppendEncode(make([]byte, 0, HeaderSize+len(payload)), sequence, sentAt, payload)
}

// AppendEncode appends the encoded datagram to dst and returns the extended slice
func AppendEncode(dst []byte, sequence uint64, sentAt float64, payload []byte) []byte {
	dst = binary.LittleEndian.AppendUint64(dst, sequence)
	dst = binary.LittleEndian.AppendUint64(dst, math.Float64bits(sentAt))
	return append(dst, payload...)
}

// Decode parses a datagram. The payload length is not validated against any
// frame size. The returned payload is a copy and does not alias data.
func Decode(data []byte) (Packet, error) {
	if len(data) < HeaderSize {
		return Packet{}, fmt.Errorf("%w: %d bytes, need %d", ErrTruncated, len(data), HeaderSize)
	}

	payload := make([]byte, len(data)-HeaderSize)
	copy(payload, data[HeaderSize:])

	return Packet{
		Sequence: binary.LittleEndian.Uint64(data[0:8]),
		SentAt:   math.Float64frombits(binary.LittleEndian.Uint64(data[8:16])),
		Payload:  payload,
	}, nil
}
