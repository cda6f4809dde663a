// SPDX-License-Identifier: MIT

/*
Package analysis implements the Analysis Device: a frequency-domain view over
whichever signal source is currently attached.

Sources push interleaved float32 samples through an Input; the device mixes
them to mono into a ring holding the most recent TransformSize samples. The
bridge pulls two channels from it once per tick:

	SampleFrequency()  -> dB magnitude per bin, length TransformSize/2
	SampleTimeDomain() -> linear samples in [-1, 1], length TransformSize/2

Both return views over buffers owned by the device; the next call (or a
Reconfigure) overwrites them.

Thread Safety:
  - Inputs are written from source goroutines or audio callbacks.
  - Samples are pulled from the bridge goroutine.
  - A single mutex guards the workspace; the critical sections are
    allocation-free.
*/
package analysis

import (
	"errors"
	"fmt"
	"math"
	"math/cmplx"
	"sync"

	applog "audioviz/internal/log"

	"gonum.org/v1/gonum/dsp/fourier"
)

// ErrInputAttached is returned by Attach while another source is connected.
var ErrInputAttached = errors.New("analysis device already has an attached input")

// Magnitudes below this floor are reported as FloorDecibels instead of -Inf.
const (
	magnitudeFloor = 1e-12
	FloorDecibels  = -240.0
)

var logger = applog.For("Analysis")

// Pre-allocated buffers for FFT calculations.
type workspace struct {
	ring       []float64    // Most recent TransformSize mono samples.
	pos        int          // Next write index into ring (oldest sample).
	input      []float64    // Windowed chronological copy of ring.
	fftOutput  []complex128 // FFT complex results (N/2 + 1).
	smoothed   []float64    // Smoothed linear magnitudes (N/2).
	frequency  []float64    // dB view handed to callers (N/2).
	timeDomain []float64    // Time-domain view handed to callers (N/2).
	window     []float64    // Pre-calculated window coefficients.
}

func newWorkspace(cfg Config) workspace {
	n := cfg.TransformSize
	bins := cfg.Bins()
	return workspace{
		ring:       make([]float64, n),
		input:      make([]float64, n),
		fftOutput:  make([]complex128, n/2+1),
		smoothed:   make([]float64, bins),
		frequency:  make([]float64, bins),
		timeDomain: make([]float64, bins),
		window:     windowCoefficients(n, cfg.Window),
	}
}

func (w *workspace) reset() {
	clear(w.ring)
	clear(w.smoothed)
	w.pos = 0
}

// Device is the Analysis Device. At most one Input is attached at a time.
type Device struct {
	mu         sync.Mutex
	cfg        Config
	fft        *fourier.FFT
	ws         workspace
	input      *Input
	sampleRate float64
	attaches   uint64
}

// Input is the write side handed to the attached source. Writes through an
// Input that has been detached are discarded.
type Input struct {
	dev      *Device
	sourceID string
	seq      uint64
}

// New builds a Device. The config is validated; an invalid one returns an
// error wrapping ErrInvalidConfig.
func New(cfg Config) (*Device, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger.Debugf("Initializing device (Size: %d, Smoothing: %.2f, Levels: [%.1f, %.1f] dB, Window: %v)",
		cfg.TransformSize, cfg.Smoothing, cfg.MinLevel, cfg.MaxLevel, cfg.Window)

	return &Device{
		cfg: cfg,
		fft: fourier.NewFFT(cfg.TransformSize),
		ws:  newWorkspace(cfg),
	}, nil
}

// Config returns the active configuration.
func (d *Device) Config() Config {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cfg
}

// Bins returns the length of both sample channels.
func (d *Device) Bins() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cfg.Bins()
}

// Attach connects a source. It fails with ErrInputAttached if another source
// is still connected; the caller must Detach first.
func (d *Device) Attach(sourceID string, sampleRate float64) (*Input, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %f", sampleRate)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.input != nil {
		return nil, fmt.Errorf("%w (connected: %s, rejected: %s)", ErrInputAttached, d.input.sourceID, sourceID)
	}

	d.attaches++
	d.input = &Input{dev: d, sourceID: sourceID, seq: d.attaches}
	d.sampleRate = sampleRate
	d.ws.reset()

	logger.Debugf("Attached source %s (%.0f Hz)", sourceID, sampleRate)
	return d.input, nil
}

// Detach disconnects the current source and clears all sample history so the
// next source never sees stale data. It reports whether a source was attached.
func (d *Device) Detach() bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.input == nil {
		return false
	}
	logger.Debugf("Detached source %s", d.input.sourceID)
	d.input = nil
	d.sampleRate = 0
	d.ws.reset()
	return true
}

// Connected reports whether a source is attached.
func (d *Device) Connected() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.input != nil
}

// SourceID returns the attached source id, or "" when detached.
func (d *Device) SourceID() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.input == nil {
		return ""
	}
	return d.input.sourceID
}

// Reconfigure rebuilds the transform and every buffer. An attached input
// stays attached; its history starts over. Views returned before this call
// are stale.
func (d *Device) Reconfigure(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if cfg.TransformSize != d.cfg.TransformSize {
		d.fft = fourier.NewFFT(cfg.TransformSize)
	}
	d.cfg = cfg
	d.ws = newWorkspace(cfg)

	logger.Debugf("Reconfigured (Size: %d, Smoothing: %.2f, Window: %v)", cfg.TransformSize, cfg.Smoothing, cfg.Window)
	return nil
}

// Write mixes interleaved samples down to mono and appends them to the ring.
// It returns the number of frames accepted: 0 when this input is detached.
func (in *Input) Write(samples []float32, channels int) int {
	if channels < 1 {
		channels = 1
	}
	d := in.dev

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.input != in {
		return 0
	}

	frames := len(samples) / channels
	n := len(d.ws.ring)
	scale := 1.0 / float64(channels)
	for f := range frames {
		var sum float64
		for c := range channels {
			sum += float64(samples[f*channels+c])
		}
		d.ws.ring[d.ws.pos] = sum * scale
		d.ws.pos++
		if d.ws.pos == n {
			d.ws.pos = 0
		}
	}
	return frames
}

// SourceID returns the id this input was attached with.
func (in *Input) SourceID() string {
	return in.sourceID
}

// Detached reports whether the device has moved on from this input.
func (in *Input) Detached() bool {
	in.dev.mu.Lock()
	defer in.dev.mu.Unlock()
	return in.dev.input != in
}

// SampleFrequency runs the transform over the current window and returns the
// smoothed magnitude per bin in dB. It returns nil when no source is attached.
func (d *Device) SampleFrequency() []float64 {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.input == nil {
		return nil
	}

	// --- 1. Window the chronological copy of the ring ---
	ws := &d.ws
	n := len(ws.ring)
	for i := range n {
		j := ws.pos + i
		if j >= n {
			j -= n
		}
		ws.input[i] = ws.ring[j] * ws.window[i]
	}

	// --- 2. Perform FFT ---
	d.fft.Coefficients(ws.fftOutput, ws.input)

	// --- 3. Smooth magnitudes and convert to dB ---
	tau := d.cfg.Smoothing
	norm := 1.0 / float64(n)
	for k := range ws.smoothed {
		mag := cmplx.Abs(ws.fftOutput[k]) * norm
		s := tau*ws.smoothed[k] + (1-tau)*mag
		if math.IsNaN(s) || math.IsInf(s, 0) {
			s = 0
		}
		ws.smoothed[k] = s
		if s < magnitudeFloor {
			ws.frequency[k] = FloorDecibels
		} else {
			ws.frequency[k] = 20 * math.Log10(s)
		}
	}
	return ws.frequency
}

// SampleTimeDomain returns the most recent TransformSize/2 samples in
// chronological order. It returns nil when no source is attached.
func (d *Device) SampleTimeDomain() []float64 {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.input == nil {
		return nil
	}

	ws := &d.ws
	n := len(ws.ring)
	half := len(ws.timeDomain)
	start := ws.pos - half
	if start < 0 {
		start += n
	}
	for i := range half {
		j := start + i
		if j >= n {
			j -= n
		}
		ws.timeDomain[i] = ws.ring[j]
	}
	return ws.timeDomain
}

// FrequencyForBin returns the center frequency (Hz) for a bin index, or 0
// when the index is out of range or no source is attached.
func (d *Device) FrequencyForBin(binIndex int) float64 {
	d.mu.Lock()
	defer d.mu.Unlock()

	if binIndex < 0 || binIndex >= d.cfg.Bins() || d.sampleRate == 0 {
		return 0
	}
	return float64(binIndex) * d.sampleRate / float64(d.cfg.TransformSize)
}

// SampleRate returns the attached source's sample rate, or 0.
func (d *Device) SampleRate() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.sampleRate
}
