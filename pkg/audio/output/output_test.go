// ABOUTME: Output backend tests
// ABOUTME: Tests volume scaling, the ring buffer and the discard sink
package output

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Resonate-Protocol/pcmlink/pkg/audio"
)

var cdStereo = audio.Format{SampleRate: 44100, Channels: 2, BitDepth: 16}

func TestSinksImplementInterfaces(t *testing.T) {
	var _ Sink = (*Oto)(nil)
	var _ Sink = (*Malgo)(nil)
	var _ Sink = (*Discard)(nil)

	var _ VolumeControl = (*Oto)(nil)
	var _ VolumeControl = (*Malgo)(nil)
	var _ VolumeControl = (*Discard)(nil)
}

func TestGetVolumeMultiplier(t *testing.T) {
	tests := []struct {
		name     string
		volume   int
		muted    bool
		expected float64
	}{
		{"full", 100, false, 1.0},
		{"half", 50, false, 0.5},
		{"zero", 0, false, 0.0},
		{"muted", 100, true, 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, getVolumeMultiplier(tt.volume, tt.muted), 1e-9)
		})
	}
}

func TestApplyVolume(t *testing.T) {
	samples := []int16{1000, -1000, audio.MaxInt16, audio.MinInt16}

	half := applyVolume(samples, 50, false)
	assert.Equal(t, []int16{500, -500, 16383, -16384}, half)

	muted := applyVolume(samples, 100, true)
	assert.Equal(t, []int16{0, 0, 0, 0}, muted)

	// input is not modified
	assert.Equal(t, int16(1000), samples[0])
}

func TestVolumeStateClamps(t *testing.T) {
	v := newVolumeState()
	assert.Equal(t, 100, v.Volume())

	v.SetVolume(150)
	assert.Equal(t, 100, v.Volume())

	v.SetVolume(-5)
	assert.Equal(t, 0, v.Volume())

	v.SetMuted(true)
	assert.True(t, v.Muted())
}

func TestVolumeStateApplyPassThrough(t *testing.T) {
	v := newVolumeState()
	frame := audio.SamplesToBytes([]int16{1, 2, 3})

	out := v.apply(frame)
	assert.Equal(t, &frame[0], &out[0], "full volume should not copy")

	v.SetVolume(0)
	assert.Equal(t, []int16{0, 0, 0}, audio.BytesToSamples(v.apply(frame)))
}

func TestRingBuffer(t *testing.T) {
	rb := NewRingBuffer(4)

	assert.Equal(t, 3, rb.Write([]int16{1, 2, 3}))
	assert.Equal(t, 3, rb.Available())
	assert.Equal(t, 1, rb.Free())

	// only one slot left
	assert.Equal(t, 1, rb.Write([]int16{4, 5}))
	assert.Equal(t, 0, rb.Free())

	out := make([]int16, 2)
	assert.Equal(t, 2, rb.Read(out))
	assert.Equal(t, []int16{1, 2}, out)

	// wraps around
	assert.Equal(t, 2, rb.Write([]int16{6, 7}))

	out = make([]int16, 6)
	assert.Equal(t, 4, rb.Read(out))
	assert.Equal(t, []int16{3, 4, 6, 7, 0, 0}, out, "underrun is zero filled")
}

func TestDiscardCounts(t *testing.T) {
	d := NewDiscard(cdStereo, false)

	require.NoError(t, d.WriteFrame(make([]byte, cdStereo.FrameBytes(512))))
	require.NoError(t, d.WriteFrame(make([]byte, cdStereo.FrameBytes(512))))
	require.NoError(t, d.Flush())

	assert.Equal(t, uint64(2), d.Frames())
	assert.Equal(t, uint64(2*2048), d.Bytes())

	require.NoError(t, d.Close())
	assert.ErrorIs(t, d.WriteFrame([]byte{0, 0}), ErrSinkClosed)
}

func TestDiscardPaced(t *testing.T) {
	d := NewDiscard(audio.Format{SampleRate: 1000, Channels: 1}, true)

	now := time.Unix(0, 0)
	var slept []time.Duration
	d.now = func() time.Time { return now }
	d.sleep = func(dur time.Duration) {
		slept = append(slept, dur)
		now = now.Add(dur)
	}

	// 100 samples at 1kHz is 100ms per frame
	for i := 0; i < 3; i++ {
		require.NoError(t, d.WriteFrame(make([]byte, 200)))
	}

	assert.Equal(t, []time.Duration{100 * time.Millisecond, 100 * time.Millisecond, 100 * time.Millisecond}, slept)
}

func TestOpenRejectsUnknown(t *testing.T) {
	_, err := Open("speakers", cdStereo)
	assert.Error(t, err)

	_, err = Open(KindNone, audio.Format{})
	assert.Error(t, err)

	sink, err := Open(KindNone, cdStereo)
	require.NoError(t, err)
	assert.IsType(t, &Discard{}, sink)
}
