// SPDX-License-Identifier: MIT
package audio

import (
	"context"

	"audioviz/internal/decode"
)

// Source is an acquired signal source. The engine owns it from the moment
// the acquisition resolves until Stop returns.
type Source interface {
	ID() string
	Kind() SourceKind
	// Format returns the sample rate and interleaved channel count written
	// to the sink.
	Format() (sampleRate float64, channels int)
	// Start begins delivering samples to dst.
	Start(dst sink) error
	// Stop releases every exclusive handle. It is idempotent and, once it
	// returns, nothing more is written to the sink.
	Stop() error
}

// Pausable is implemented by sources with a playback position.
type Pausable interface {
	Play() error
	Pause() error
	Position() PlaybackPosition
}

// sink receives interleaved samples from a running source.
type sink interface {
	Write(samples []float32)
}

// Capture is an open microphone stream.
type Capture interface {
	SampleRate() float64
	Channels() int
	// Start delivers captured buffers to fn. fn must not retain the slice.
	Start(fn func(samples []float32)) error
	Close() error
}

// Output plays samples on an audio device.
type Output interface {
	Write(samples []float32) error
	Close() error
}

// OutputFactory opens an Output for the given format.
type OutputFactory func(sampleRate float64, channels int) (Output, error)

// Acquirer provides the exclusive resources behind each source kind. Every
// method may block; all of them honour ctx.
type Acquirer interface {
	RequestMicrophone(ctx context.Context) (Capture, error)
	Decode(ctx context.Context, data []byte) (*decode.Buffer, error)
	FetchStream(ctx context.Context, url string) (decode.Stream, error)
}

// DiscardOutput drops everything written to it.
type DiscardOutput struct{}

func (DiscardOutput) Write([]float32) error { return nil }
func (DiscardOutput) Close() error          { return nil }

// DiscardOutputs is an OutputFactory for running without a playback device.
func DiscardOutputs(float64, int) (Output, error) {
	return DiscardOutput{}, nil
}
