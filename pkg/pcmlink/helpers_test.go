// ABOUTME: Shared test fakes for pcmlink
// ABOUTME: Provides a recording sink and a scripted capture source
package pcmlink

import (
	"errors"
	"io"
	"sync"
	"time"

	"github.com/Resonate-Protocol/pcmlink/pkg/audio"
)

var testFormat = audio.Format{SampleRate: 44100, Channels: 2, BitDepth: 16}

// recordingSink stores every written frame
type recordingSink struct {
	mu       sync.Mutex
	frames   [][]byte
	flushed  int
	closed   int
	writeErr error
	delay    time.Duration
}

func (s *recordingSink) WriteFrame(frame []byte) error {
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writeErr != nil {
		return s.writeErr
	}
	s.frames = append(s.frames, frame)
	return nil
}

func (s *recordingSink) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flushed++
	return nil
}

func (s *recordingSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed++
	return nil
}

func (s *recordingSink) Frames() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]byte(nil), s.frames...)
}

func (s *recordingSink) Counts() (flushed, closed int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flushed, s.closed
}

// blockingSink blocks in WriteFrame until release is closed, like a device
// pipe nobody reads
type blockingSink struct {
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func newBlockingSink() *blockingSink {
	return &blockingSink{entered: make(chan struct{}), release: make(chan struct{})}
}

func (s *blockingSink) WriteFrame(frame []byte) error {
	s.once.Do(func() { close(s.entered) })
	<-s.release
	return nil
}

func (s *blockingSink) Flush() error { return nil }
func (s *blockingSink) Close() error { return nil }

// countingSource produces total frames whose first byte is the frame index,
// then io.EOF
type countingSource struct {
	total    int
	interval time.Duration
	produced int
	err      error
}

func (c *countingSource) ReadFrame(samplesPerChannel int) ([]byte, error) {
	if c.err != nil {
		return nil, c.err
	}
	if c.produced >= c.total {
		return nil, io.EOF
	}
	if c.interval > 0 {
		time.Sleep(c.interval)
	}
	frame := make([]byte, testFormat.FrameBytes(samplesPerChannel))
	frame[0] = byte(c.produced)
	frame[1] = byte(c.produced >> 8)
	c.produced++
	return frame, nil
}

func (c *countingSource) Format() audio.Format {
	return testFormat
}

func (c *countingSource) Close() error {
	return nil
}

var errDevice = errors.New("device unplugged")
