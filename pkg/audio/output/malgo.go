// ABOUTME: Malgo-based audio output implementation
// ABOUTME: Uses miniaudio via malgo with a ring buffer drained by the device callback
package output

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gen2brain/malgo"
	"github.com/sirupsen/logrus"

	"github.com/Resonate-Protocol/pcmlink/pkg/audio"
)

// ErrSinkClosed is returned when writing to a closed sink
var ErrSinkClosed = errors.New("output closed")

// Malgo output implementation using malgo/miniaudio library
type Malgo struct {
	*volumeState

	malgoCtx *malgo.AllocatedContext
	device   *malgo.Device
	format   audio.Format

	// Ring buffer for callback-based playback
	ringBuffer *RingBuffer

	// FlushTimeout bounds how long Flush waits for the ring to empty
	FlushTimeout time.Duration

	mu     sync.Mutex
	closed bool
}

// RingBuffer provides thread-safe circular buffer for audio samples
type RingBuffer struct {
	buffer   []int16
	readPos  int
	writePos int
	size     int
	count    int // Number of samples currently in buffer
	mu       sync.Mutex
}

// NewRingBuffer creates a ring buffer with given capacity (in samples)
func NewRingBuffer(capacity int) *RingBuffer {
	return &RingBuffer{
		buffer: make([]int16, capacity),
		size:   capacity,
	}
}

// Write adds samples to the ring buffer and returns how many fit
func (rb *RingBuffer) Write(samples []int16) int {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	written := 0
	for i := 0; i < len(samples) && rb.count < rb.size; i++ {
		rb.buffer[rb.writePos] = samples[i]
		rb.writePos = (rb.writePos + 1) % rb.size
		rb.count++
		written++
	}
	return written
}

// Read retrieves samples from the ring buffer
func (rb *RingBuffer) Read(samples []int16) int {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	read := 0
	for i := 0; i < len(samples) && rb.count > 0; i++ {
		samples[i] = rb.buffer[rb.readPos]
		rb.readPos = (rb.readPos + 1) % rb.size
		rb.count--
		read++
	}

	// Zero-fill remaining if underrun
	for i := read; i < len(samples); i++ {
		samples[i] = 0
	}

	return read
}

// Available returns the number of samples available to read
func (rb *RingBuffer) Available() int {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return rb.count
}

// Free returns the number of free slots in the buffer
func (rb *RingBuffer) Free() int {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return rb.size - rb.count
}

// NewMalgo initializes a miniaudio playback device for format
func NewMalgo(format audio.Format) (*Malgo, error) {
	malgoCtx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize malgo context: %w", err)
	}

	m := &Malgo{
		volumeState:  newVolumeState(),
		malgoCtx:     malgoCtx,
		format:       format,
		FlushTimeout: 2 * time.Second,
		// 500ms capacity
		ringBuffer: NewRingBuffer(format.SampleRate * format.Channels / 2),
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Playback)
	deviceConfig.Playback.Format = malgo.FormatS16
	deviceConfig.Playback.Channels = uint32(format.Channels)
	deviceConfig.SampleRate = uint32(format.SampleRate)
	deviceConfig.Alsa.NoMMap = 1

	deviceCallbacks := malgo.DeviceCallbacks{
		Data: func(pOutputSample, pInputSamples []byte, frameCount uint32) {
			m.dataCallback(pOutputSample, frameCount)
		},
	}

	device, err := malgo.InitDevice(malgoCtx.Context, deviceConfig, deviceCallbacks)
	if err != nil {
		m.releaseContext()
		return nil, fmt.Errorf("failed to initialize playback device: %w", err)
	}

	if err := device.Start(); err != nil {
		device.Uninit()
		m.releaseContext()
		return nil, fmt.Errorf("failed to start device: %w", err)
	}
	m.device = device

	logrus.WithField("component", "output").Infof("Audio output initialized: %s (malgo)", format)

	return m, nil
}

// WriteFrame queues a frame, blocking while the ring is full so the caller
// is paced by the device
func (m *Malgo) WriteFrame(frame []byte) error {
	samples := audio.BytesToSamples(m.apply(frame))

	written := 0
	for written < len(samples) {
		if m.isClosed() {
			return ErrSinkClosed
		}

		n := m.ringBuffer.Write(samples[written:])
		written += n

		// Buffer is full; the callback drains it continuously
		if n == 0 {
			time.Sleep(drainPoll)
		}
	}

	return nil
}

// Flush waits until the device callback has consumed the ring
func (m *Malgo) Flush() error {
	deadline := time.Now().Add(m.FlushTimeout)
	for m.ringBuffer.Available() > 0 {
		if m.isClosed() {
			return ErrSinkClosed
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("flush timed out with %d samples buffered", m.ringBuffer.Available())
		}
		time.Sleep(drainPoll)
	}
	return nil
}

// dataCallback is called by malgo to fill the audio output buffer
func (m *Malgo) dataCallback(pOutput []byte, frameCount uint32) {
	samples := make([]int16, int(frameCount)*m.format.Channels)
	m.ringBuffer.Read(samples)

	for i, sample := range samples {
		pOutput[i*2] = byte(sample)
		pOutput[i*2+1] = byte(sample >> 8)
	}
}

func (m *Malgo) isClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// Close releases output resources
func (m *Malgo) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}
	m.closed = true

	if err := m.device.Stop(); err != nil {
		logrus.WithField("component", "output").Warnf("device stop error: %v", err)
	}
	m.device.Uninit()
	m.releaseContext()

	return nil
}

func (m *Malgo) releaseContext() {
	if err := m.malgoCtx.Uninit(); err != nil {
		logrus.WithField("component", "output").Warnf("malgo context uninit error: %v", err)
	}
	m.malgoCtx.Free()
}
