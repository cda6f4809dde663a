// SPDX-License-Identifier: MIT

/*
Package normalize converts raw analysis samples into the 8-bit unsigned
representation carried by every frame the bridge emits.

Two transforms are provided:
  - Frequency: decibel magnitudes, clamped to [Levels.Min, Levels.Max] and
    mapped linearly onto 0..255 with rounding.
  - TimeDomain: linear amplitudes in [-1, 1], mapped onto 0..255 with
    flooring (silence lands on 127).

Both are pure and total: every float64 input, including NaN and the
infinities, produces a byte in range. Nothing here allocates unless the
caller passes a destination slice that is too small.
*/
package normalize

import "math"

// Default decibel window. Narrower than the analyser's full range so that
// typical program material spreads over the whole 0..255 output.
const (
	DefaultMinLevel = -100.0
	DefaultMaxLevel = -30.0
)

// Levels holds the decibel clamp bounds for frequency normalization.
type Levels struct {
	Min float64 // dB value mapped to 0
	Max float64 // dB value mapped to 255
}

// DefaultLevels returns the {-100, -30} dB window.
func DefaultLevels() Levels {
	return Levels{Min: DefaultMinLevel, Max: DefaultMaxLevel}
}

// Valid reports whether the window is finite and non-empty.
func (l Levels) Valid() bool {
	return !math.IsNaN(l.Min) && !math.IsNaN(l.Max) &&
		!math.IsInf(l.Min, 0) && !math.IsInf(l.Max, 0) &&
		l.Min < l.Max
}

// Frequency maps one dB magnitude onto 0..255.
//
//	byte = round(255 * (clamp(d) - min) / (max - min))
//
// NaN maps to 0. A degenerate window (max <= min) acts as a step at Max.
func Frequency(d float64, l Levels) byte {
	if math.IsNaN(d) {
		return 0
	}
	if !l.Valid() {
		if d >= l.Max {
			return 255
		}
		return 0
	}
	if d <= l.Min {
		return 0
	}
	if d >= l.Max {
		return 255
	}
	v := math.Round(255 * (d - l.Min) / (l.Max - l.Min))
	return clampByte(v)
}

// TimeDomain maps one linear sample in [-1, 1] onto 0..255.
//
//	byte = floor(255 * clamp((s + 1) / 2, 0, 1))
//
// NaN is treated as silence.
func TimeDomain(s float64) byte {
	if math.IsNaN(s) {
		s = 0
	}
	u := (s + 1) / 2
	if u <= 0 {
		return 0
	}
	if u >= 1 {
		return 255
	}
	return clampByte(math.Floor(255 * u))
}

// FrequencyInto normalizes src into dst, growing dst only when it is too
// short, and returns dst resliced to len(src).
func FrequencyInto(dst []byte, src []float64, l Levels) []byte {
	dst = ensure(dst, len(src))
	for i, d := range src {
		dst[i] = Frequency(d, l)
	}
	return dst
}

// TimeDomainInto normalizes src into dst with the same sizing rules as
// FrequencyInto.
func TimeDomainInto(dst []byte, src []float64) []byte {
	dst = ensure(dst, len(src))
	for i, s := range src {
		dst[i] = TimeDomain(s)
	}
	return dst
}

// Decibels maps a normalized frequency byte back to the centre of the dB
// range it represents. It is the inverse of Frequency up to quantization.
func Decibels(b byte, l Levels) float64 {
	return l.Min + float64(b)/255*(l.Max-l.Min)
}

// DecibelsInto converts a whole channel with the same sizing rules as
// FrequencyInto.
func DecibelsInto(dst []float64, src []byte, l Levels) []float64 {
	if cap(dst) < len(src) {
		dst = make([]float64, len(src))
	}
	dst = dst[:len(src)]
	for i, b := range src {
		dst[i] = Decibels(b, l)
	}
	return dst
}

func ensure(dst []byte, n int) []byte {
	if cap(dst) < n {
		return make([]byte, n)
	}
	return dst[:n]
}

func clampByte(v float64) byte {
	if v <= 0 {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return byte(v)
}
