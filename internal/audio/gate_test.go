// SPDX-License-Identifier: MIT
package audio

import (
	"fmt"
	"testing"
)

func TestGateEnableDisable(t *testing.T) {
	g := NewGate(0)
	if g.Enabled() {
		t.Error("Gate with zero threshold should start disabled")
	}

	g.Enable()
	g.Enable() // Multiple calls should be idempotent
	if !g.Enabled() {
		t.Error("Gate should be enabled after Enable()")
	}

	g.Disable()
	g.Disable()
	if g.Enabled() {
		t.Error("Gate should be disabled after Disable()")
	}

	if !NewGate(0.2).Enabled() {
		t.Error("Gate with a threshold should start enabled")
	}
}

func TestGateThresholdBoundaries(t *testing.T) {
	tests := []struct {
		input    float64
		expected float64
	}{
		{-0.1, 0.0}, // Below min
		{0.0, 0.0},  // Minimum
		{0.5, 0.5},  // Middle
		{1.0, 1.0},  // Maximum
		{1.5, 1.0},  // Above max
	}

	g := NewGate(0)
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%.2f", tt.input), func(t *testing.T) {
			g.SetThreshold(tt.input)
			if got := g.Threshold(); got != tt.expected {
				t.Errorf("SetThreshold(%v) -> %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestGateProcess(t *testing.T) {
	tests := []struct {
		name      string
		threshold float64
		buf       []float32
		pass      bool
	}{
		{"loud passes", 0.1, []float32{0.01, -0.5, 0.02}, true},
		{"negative peak passes", 0.1, []float32{0, -0.2}, true},
		{"quiet closes", 0.1, []float32{0.05, -0.05}, false},
		{"at threshold closes", 0.5, []float32{0.5}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewGate(tt.threshold)
			buf := append([]float32(nil), tt.buf...)
			if got := g.Process(buf); got != tt.pass {
				t.Errorf("Process() = %v, want %v", got, tt.pass)
			}
			for i, s := range buf {
				want := tt.buf[i]
				if !tt.pass {
					want = 0
				}
				if s != want {
					t.Errorf("sample %d = %v, want %v", i, s, want)
				}
			}
		})
	}
}

func TestNilGatePasses(t *testing.T) {
	var g *Gate
	if !g.Process([]float32{0}) {
		t.Error("nil gate should pass everything")
	}
}

func TestGateProcessZeroAllocs(t *testing.T) {
	g := NewGate(0.1)
	buf := make([]float32, 1024)
	for i := range buf {
		buf[i] = float32(i%100) / 100
	}
	allocs := testing.AllocsPerRun(100, func() {
		g.Process(buf)
	})
	if allocs > 0 {
		t.Errorf("Expected zero allocations in gate hot path, got %.1f", allocs)
	}
}
