// SPDX-License-Identifier: MIT
package audio

import (
	"math/rand/v2"
	"time"

	"audioviz/internal/decode"
)

// Synthetic test signal parameters.
const (
	SyntheticSampleRate = 44100
	SyntheticDuration   = 2 * time.Second
	SyntheticAmplitude  = 0.5

	// DefaultSyntheticSeed makes the test signal identical across runs.
	DefaultSyntheticSeed uint64 = 0x5eed
)

// SyntheticBuffer returns the mono noise loop played by the synthetic
// source. The same seed always yields the same samples.
func SyntheticBuffer(seed uint64) *decode.Buffer {
	frames := int(SyntheticDuration.Seconds() * SyntheticSampleRate)
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))

	samples := make([]float32, frames)
	for i := range samples {
		samples[i] = float32((rng.Float64()*2 - 1) * SyntheticAmplitude)
	}
	return &decode.Buffer{
		Format:  decode.Format{SampleRate: SyntheticSampleRate, Channels: 1},
		Samples: samples,
	}
}
