// SPDX-License-Identifier: MIT
package audio

import (
	"math"
	"sync"
)

// minGain is the smallest non-zero gain; any audible volume maps at least
// this high.
const minGain = 1e-4

// GainForVolume maps a linear volume in [0, 1] onto a perceptual gain:
// 0 stays 0, anything else is max(minGain, sqrt(v)). Out of range volumes are
// clamped first and NaN counts as 0.
func GainForVolume(v float64) float64 {
	v = clampVolume(v)
	if v == 0 {
		return 0
	}
	return math.Max(minGain, math.Sqrt(v))
}

func clampVolume(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// VolumeController is the gain stage between the analyser and the output.
// A muted controller (used for the microphone) always has gain 0, so a
// capture is never played back.
type VolumeController struct {
	mu     sync.RWMutex
	volume float64
	gain   float64
	muted  bool
}

// NewVolumeController returns a controller at the given volume.
func NewVolumeController(volume float64, muted bool) *VolumeController {
	vc := &VolumeController{muted: muted}
	vc.SetVolume(volume)
	return vc
}

// SetVolume clamps v to [0, 1] and updates the gain. It returns the gain
// now in effect.
func (vc *VolumeController) SetVolume(v float64) float64 {
	vc.mu.Lock()
	defer vc.mu.Unlock()

	vc.volume = clampVolume(v)
	if vc.muted {
		vc.gain = 0
	} else {
		vc.gain = GainForVolume(vc.volume)
	}
	return vc.gain
}

// Volume returns the last requested volume after clamping.
func (vc *VolumeController) Volume() float64 {
	vc.mu.RLock()
	defer vc.mu.RUnlock()
	return vc.volume
}

// Gain returns the gain currently applied.
func (vc *VolumeController) Gain() float64 {
	vc.mu.RLock()
	defer vc.mu.RUnlock()
	return vc.gain
}

// Muted reports whether the controller is force-muted.
func (vc *VolumeController) Muted() bool {
	return vc.muted
}

// Apply scales samples in place by the current gain.
func (vc *VolumeController) Apply(samples []float32) {
	vc.mu.RLock()
	g := vc.gain
	vc.mu.RUnlock()

	switch g {
	case 1:
		return
	case 0:
		clear(samples)
		return
	}
	g32 := float32(g)
	for i := range samples {
		samples[i] *= g32
	}
}
