// ABOUTME: Live input device capture using malgo (miniaudio)
// ABOUTME: Buffers device callbacks and hands out blocking fixed-size frames
package capture

import (
	"fmt"
	"io"
	"sync"

	"github.com/gen2brain/malgo"
	"github.com/sirupsen/logrus"
	"go.uber.org/atomic"

	"github.com/Resonate-Protocol/pcmlink/pkg/audio"
)

// deviceQueueDepth bounds the callback chunks waiting for ReadFrame
const deviceQueueDepth = 64

// Device captures from the default input device
type Device struct {
	format   audio.Format
	malgoCtx *malgo.AllocatedContext
	device   *malgo.Device

	chunks  chan []byte
	pending []byte
	closed  chan struct{}
	once    sync.Once

	overruns atomic.Uint64
	log      *logrus.Entry
}

// OpenDevice opens and starts the default capture device in format
func OpenDevice(format audio.Format) (*Device, error) {
	d := &Device{
		format: format,
		chunks: make(chan []byte, deviceQueueDepth),
		closed: make(chan struct{}),
		log:    logrus.WithField("component", "capture"),
	}

	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize malgo context: %w", err)
	}
	d.malgoCtx = ctx

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatS16
	deviceConfig.Capture.Channels = uint32(format.Channels)
	deviceConfig.SampleRate = uint32(format.SampleRate)
	deviceConfig.Alsa.NoMMap = 1

	callbacks := malgo.DeviceCallbacks{
		Data: func(pOutputSample, pInputSamples []byte, frameCount uint32) {
			d.onSamples(pInputSamples)
		},
	}

	device, err := malgo.InitDevice(ctx.Context, deviceConfig, callbacks)
	if err != nil {
		d.freeContext()
		return nil, fmt.Errorf("failed to initialize capture device: %w", err)
	}

	if err := device.Start(); err != nil {
		device.Uninit()
		d.freeContext()
		return nil, fmt.Errorf("failed to start capture device: %w", err)
	}
	d.device = device

	d.log.WithField("format", format.String()).Info("Capture device started")

	return d, nil
}

// onSamples runs on the audio thread and must not block. When the reader
// falls behind the chunk is discarded, like an input overflow on the device.
func (d *Device) onSamples(in []byte) {
	chunk := make([]byte, len(in))
	copy(chunk, in)

	select {
	case d.chunks <- chunk:
	default:
		if d.overruns.Inc()%100 == 1 {
			d.log.WithField("overruns", d.overruns.Load()).Warn("Capture overrun, dropping input")
		}
	}
}

// ReadFrame blocks until a full frame has been captured
func (d *Device) ReadFrame(samplesPerChannel int) ([]byte, error) {
	need := d.format.FrameBytes(samplesPerChannel)

	for len(d.pending) < need {
		select {
		case chunk := <-d.chunks:
			d.pending = append(d.pending, chunk...)
		case <-d.closed:
			return nil, io.EOF
		}
	}

	frame := make([]byte, need)
	copy(frame, d.pending)
	d.pending = append(d.pending[:0], d.pending[need:]...)

	return frame, nil
}

// Overruns returns the number of device chunks dropped because the reader was slow
func (d *Device) Overruns() uint64 {
	return d.overruns.Load()
}

func (d *Device) Format() audio.Format { return d.format }

// Close stops the device. A blocked ReadFrame returns io.EOF.
func (d *Device) Close() error {
	d.once.Do(func() {
		close(d.closed)
		if d.device != nil {
			d.device.Uninit()
		}
		d.freeContext()
	})
	return nil
}

func (d *Device) freeContext() {
	if d.malgoCtx == nil {
		return
	}
	if err := d.malgoCtx.Uninit(); err != nil {
		d.log.WithError(err).Warn("Failed to uninit malgo context")
	}
	d.malgoCtx.Free()
	d.malgoCtx = nil
}
