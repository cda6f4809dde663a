// SPDX-License-Identifier: MIT
package analysis

import (
	"errors"
	"fmt"
	"math"

	"audioviz/internal/normalize"
	"audioviz/pkg/bitint"
)

// Transform size bounds and defaults.
const (
	MinTransformSize     = 32
	MaxTransformSize     = 32768
	DefaultTransformSize = 2048
	DefaultSmoothing     = 0.8
)

// ErrInvalidConfig is returned when a Config cannot be used to build a Device.
var ErrInvalidConfig = errors.New("invalid analysis config")

// Config is immutable once a Device is built from it; changing it goes
// through Device.Reconfigure, which reallocates every buffer.
type Config struct {
	TransformSize int        // FFT window length, power of two in [32, 32768]
	Smoothing     float64    // Temporal smoothing factor in [0, 1]
	MinLevel      float64    // dB mapped to 0 by frequency normalization
	MaxLevel      float64    // dB mapped to 255 by frequency normalization
	Window        WindowFunc // Window applied before the transform
}

// DefaultConfig returns the configuration used when nothing else is given.
func DefaultConfig() Config {
	return Config{
		TransformSize: DefaultTransformSize,
		Smoothing:     DefaultSmoothing,
		MinLevel:      normalize.DefaultMinLevel,
		MaxLevel:      normalize.DefaultMaxLevel,
		Window:        Blackman,
	}
}

// Validate checks every field. There is no silent coercion: a bad transform
// size is an error, with the nearest usable size as a hint.
func (c Config) Validate() error {
	if !bitint.IsPowerOfTwo(c.TransformSize) {
		return fmt.Errorf("%w: transform size %d is not a power of two (next: %d)",
			ErrInvalidConfig, c.TransformSize, bitint.NextPowerOfTwo(c.TransformSize))
	}
	if c.TransformSize < MinTransformSize || c.TransformSize > MaxTransformSize {
		return fmt.Errorf("%w: transform size %d outside [%d, %d]",
			ErrInvalidConfig, c.TransformSize, MinTransformSize, MaxTransformSize)
	}
	if math.IsNaN(c.Smoothing) || c.Smoothing < 0 || c.Smoothing > 1 {
		return fmt.Errorf("%w: smoothing %v outside [0, 1]", ErrInvalidConfig, c.Smoothing)
	}
	if !c.Levels().Valid() {
		return fmt.Errorf("%w: level window [%v, %v] dB is empty or not finite",
			ErrInvalidConfig, c.MinLevel, c.MaxLevel)
	}
	if c.Window < BartlettHann || c.Window > Nuttall {
		return fmt.Errorf("%w: unknown window function %d", ErrInvalidConfig, c.Window)
	}
	return nil
}

// Bins is the length of both sample channels: TransformSize/2.
func (c Config) Bins() int {
	return c.TransformSize / 2
}

// Levels returns the dB window for frequency normalization.
func (c Config) Levels() normalize.Levels {
	return normalize.Levels{Min: c.MinLevel, Max: c.MaxLevel}
}
