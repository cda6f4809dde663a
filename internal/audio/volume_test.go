// SPDX-License-Identifier: MIT
package audio

import (
	"math"
	"testing"
)

func TestGainForVolume(t *testing.T) {
	tests := []struct {
		volume float64
		want   float64
	}{
		{0, 0},
		{-0.5, 0},
		{math.NaN(), 0},
		{1e-12, minGain},
		{1e-8, minGain},
		{0.25, 0.5},
		{0.5, math.Sqrt(0.5)},
		{1, 1},
		{4, 1},
	}

	for _, tt := range tests {
		if got := GainForVolume(tt.volume); math.Abs(got-tt.want) > 1e-12 {
			t.Errorf("GainForVolume(%v) = %v, want %v", tt.volume, got, tt.want)
		}
	}
}

func TestGainIsMonotonic(t *testing.T) {
	prev := 0.0
	for i := 1; i <= 1000; i++ {
		g := GainForVolume(float64(i) / 1000)
		if g < prev {
			t.Fatalf("gain decreased at volume %v: %v < %v", float64(i)/1000, g, prev)
		}
		prev = g
	}
}

func TestVolumeControllerGainIsExact(t *testing.T) {
	for _, v := range []float64{1e-9, 0.1, 0.5, 0.7, 1} {
		vc := NewVolumeController(v, false)
		if got, want := vc.Gain(), GainForVolume(v); got != want {
			t.Errorf("Gain() at volume %v = %v, want %v", v, got, want)
		}
		if got := vc.SetVolume(v); got != GainForVolume(v) {
			t.Errorf("SetVolume(%v) = %v, want %v", v, got, GainForVolume(v))
		}
	}
}

func TestVolumeControllerApply(t *testing.T) {
	vc := NewVolumeController(0.25, false)
	buf := []float32{1, -1, 0.5}
	vc.Apply(buf)

	want := []float32{0.5, -0.5, 0.25}
	for i := range want {
		if buf[i] != want[i] {
			t.Fatalf("Apply() = %v, want %v", buf, want)
		}
	}

	vc.SetVolume(0)
	vc.Apply(buf)
	for i, s := range buf {
		if s != 0 {
			t.Errorf("sample %d = %v at volume 0", i, s)
		}
	}
}

func TestMutedControllerIgnoresVolume(t *testing.T) {
	vc := NewVolumeController(1, true)
	for _, v := range []float64{0, 0.01, 0.5, 1, 10} {
		if g := vc.SetVolume(v); g != 0 {
			t.Errorf("muted SetVolume(%v) gain = %v, want 0", v, g)
		}
	}
	if !vc.Muted() {
		t.Error("Muted() = false")
	}
	if got := vc.Volume(); got != 1 {
		t.Errorf("Volume() = %v, want the clamped request 1", got)
	}

	buf := []float32{0.9, -0.9}
	vc.Apply(buf)
	if buf[0] != 0 || buf[1] != 0 {
		t.Errorf("muted Apply() = %v", buf)
	}
}

func TestApplyZeroAllocs(t *testing.T) {
	vc := NewVolumeController(0.5, false)
	buf := make([]float32, 1024)
	allocs := testing.AllocsPerRun(100, func() {
		vc.Apply(buf)
	})
	if allocs > 0 {
		t.Errorf("Expected zero allocations in Apply, got %.1f", allocs)
	}
}
