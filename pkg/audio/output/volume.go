// ABOUTME: Software volume and mute shared by output backends
// ABOUTME: Scales int16 PCM with clipping protection
package output

import (
	"github.com/sirupsen/logrus"
	"go.uber.org/atomic"

	"github.com/Resonate-Protocol/pcmlink/pkg/audio"
)

// volumeState holds volume (0-100) and mute; safe for concurrent use since
// the TUI changes it while the playback goroutine reads it
type volumeState struct {
	volume atomic.Int32
	muted  atomic.Bool
}

func newVolumeState() *volumeState {
	v := &volumeState{}
	v.volume.Store(100)
	return v
}

// SetVolume sets the volume (0-100)
func (v *volumeState) SetVolume(volume int) {
	if volume < 0 {
		volume = 0
	}
	if volume > 100 {
		volume = 100
	}
	v.volume.Store(int32(volume))
	logrus.WithField("component", "output").Debugf("Volume set to %d", volume)
}

// SetMuted sets mute state
func (v *volumeState) SetMuted(muted bool) {
	v.muted.Store(muted)
	logrus.WithField("component", "output").Debugf("Muted: %v", muted)
}

// Volume returns current volume
func (v *volumeState) Volume() int {
	return int(v.volume.Load())
}

// Muted returns mute state
func (v *volumeState) Muted() bool {
	return v.muted.Load()
}

// apply scales a frame, returning it unchanged at full volume
func (v *volumeState) apply(frame []byte) []byte {
	volume, muted := v.Volume(), v.Muted()
	if volume == 100 && !muted {
		return frame
	}
	return audio.SamplesToBytes(applyVolume(audio.BytesToSamples(frame), volume, muted))
}

// applyVolume applies volume and mute to samples with clipping protection
func applyVolume(samples []int16, volume int, muted bool) []int16 {
	multiplier := getVolumeMultiplier(volume, muted)

	result := make([]int16, len(samples))
	for i, sample := range samples {
		result[i] = audio.ClampInt16(int64(float64(sample) * multiplier))
	}

	return result
}

// getVolumeMultiplier calculates volume multiplier
func getVolumeMultiplier(volume int, muted bool) float64 {
	if muted {
		return 0.0
	}
	return float64(volume) / 100.0
}
