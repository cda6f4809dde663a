// SPDX-License-Identifier: MIT
package audio

import (
	"math"
	"sync/atomic"
)

// Gate is a noise gate for capture buffers: a buffer whose peak amplitude is
// at or below the threshold reaches the analyser as silence.
type Gate struct {
	threshold atomic.Uint32 // math.Float32bits of the threshold
	enabled   atomic.Bool
}

// NewGate returns a gate with the given threshold. A threshold of 0 leaves
// the gate disabled.
func NewGate(threshold float64) *Gate {
	g := &Gate{}
	g.SetThreshold(threshold)
	if g.Threshold() > 0 {
		g.Enable()
	}
	return g
}

func (g *Gate) Enable() {
	g.enabled.Store(true)
}

func (g *Gate) Disable() {
	g.enabled.Store(false)
}

func (g *Gate) Enabled() bool {
	return g.enabled.Load()
}

// SetThreshold adjusts the gate threshold.
// The value is in the range of 0.0-1.0 where 0=always open, 1=always closed.
func (g *Gate) SetThreshold(threshold float64) {
	if threshold < 0.0 || math.IsNaN(threshold) {
		threshold = 0.0
	}
	if threshold > 1.0 {
		threshold = 1.0
	}
	g.threshold.Store(math.Float32bits(float32(threshold)))
}

// Threshold returns the current threshold in [0, 1].
func (g *Gate) Threshold() float64 {
	return float64(math.Float32frombits(g.threshold.Load()))
}

// Process silences buf in place when the gate is closed and reports whether
// the signal passed.
func (g *Gate) Process(buf []float32) bool {
	if g == nil || !g.enabled.Load() {
		return true
	}
	threshold := math.Float32frombits(g.threshold.Load())

	var peak float32
	for _, s := range buf {
		if s < 0 {
			s = -s
		}
		if s > peak {
			peak = s
		}
	}
	if peak > threshold {
		return true
	}
	clear(buf)
	return false
}
