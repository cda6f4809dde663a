// SPDX-License-Identifier: MIT
package analysis

import "math"

// FrequencyBand defines the name and frequency range for an energy band.
type FrequencyBand struct {
	Name   string
	LowHz  float64
	HighHz float64
}

// DefaultBands covers the audible range in six bands. The last band is
// open-ended and stops at Nyquist.
var DefaultBands = []FrequencyBand{
	{Name: "sub", LowHz: 20, HighHz: 60},
	{Name: "bass", LowHz: 60, HighHz: 250},
	{Name: "lowMid", LowHz: 250, HighHz: 500},
	{Name: "mid", LowHz: 500, HighHz: 2000},
	{Name: "highMid", LowHz: 2000, HighHz: 4000},
	{Name: "treble", LowHz: 4000, HighHz: math.Inf(1)},
}

// BandLevel is the summary of one band for a single frame.
type BandLevel struct {
	Name    string
	Level   float64 // RMS linear magnitude across the band
	Decibel float64
	bins    int
}

// Bands summarizes a dB spectrum (as returned by SampleFrequency) into the
// given bands. Energy is averaged in the linear domain. Bands with no bins at
// this resolution report FloorDecibels. dst is reused when large enough.
func Bands(dst []BandLevel, spectrum []float64, sampleRate float64, transformSize int, bands []FrequencyBand) []BandLevel {
	if cap(dst) < len(bands) {
		dst = make([]BandLevel, len(bands))
	}
	dst = dst[:len(bands)]
	for i, b := range bands {
		dst[i] = BandLevel{Name: b.Name}
	}
	if sampleRate <= 0 || transformSize <= 0 {
		for i := range dst {
			dst[i].Decibel = FloorDecibels
		}
		return dst
	}

	binWidth := sampleRate / float64(transformSize)
	nyquist := sampleRate / 2
	for k, db := range spectrum {
		freq := float64(k) * binWidth
		for i, b := range bands {
			high := math.Min(b.HighHz, nyquist+binWidth)
			if freq >= b.LowHz && freq < high {
				mag := math.Pow(10, db/20)
				dst[i].Level += mag * mag // Sum energy (magnitude squared)
				dst[i].bins++
				break
			}
		}
	}

	for i := range dst {
		if dst[i].bins == 0 {
			dst[i].Level = 0
			dst[i].Decibel = FloorDecibels
			continue
		}
		rms := math.Sqrt(dst[i].Level / float64(dst[i].bins))
		dst[i].Level = rms
		if rms < magnitudeFloor {
			dst[i].Decibel = FloorDecibels
		} else {
			dst[i].Decibel = 20 * math.Log10(rms)
		}
	}
	return dst
}
