// SPDX-License-Identifier: MIT
/*
Package audio implements the source state machine that feeds the analyser:
- Exactly one source (microphone, file, network stream, synthetic) at a time
- Asynchronous acquisition with last-call-wins generations
- Per-source routing through a volume controller to the playback output
- WAV recording of the active source

Thread Safety:
- A transition lock serializes teardown and install
- Acquisition runs outside the lock with a cancellable context
- Acquisitions that resolve after a newer request are released, never installed
*/
package audio

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"audioviz/internal/analysis"
	applog "audioviz/internal/log"
)

var logger = applog.For("Engine")

// Options configures an Engine.
type Options struct {
	Analysis      analysis.Config
	Acquirer      Acquirer
	Outputs       OutputFactory // nil plays nothing
	Clock         Clock         // nil uses the system clock
	Volume        float64       // Initial requested volume in [0, 1]
	GateThreshold float64       // Microphone noise gate, 0 disables
	FrameDuration time.Duration // Chunk length pushed by file, stream and synthetic sources
	SyntheticSeed uint64
	Metrics       *Metrics
}

// Engine is the source state machine. It exclusively owns the current
// source, its route, the analysis device and the volume controller.
type Engine struct {
	analyser *analysis.Device
	acquirer Acquirer
	outputs  OutputFactory
	clock    Clock
	gate     *Gate
	interval time.Duration
	seed     uint64
	metrics  *Metrics

	mu      sync.Mutex // Transition lock; guards every field below.
	state   SourceKind
	source  Source
	route   *route
	release context.CancelFunc // Ends the installed source's acquisition context.
	volume  float64
	gen     uint64
	pending context.CancelFunc // Cancels the in-flight acquisition, if any.
}

// NewEngine validates the analysis config and builds an Idle engine.
func NewEngine(opts Options) (*Engine, error) {
	analyser, err := analysis.New(opts.Analysis)
	if err != nil {
		return nil, err
	}
	if opts.Acquirer == nil {
		return nil, errors.New("engine requires an acquirer")
	}
	if opts.Outputs == nil {
		opts.Outputs = DiscardOutputs
	}
	if opts.Clock == nil {
		opts.Clock = systemClock{}
	}
	if opts.FrameDuration <= 0 {
		opts.FrameDuration = DefaultFrameDuration
	}
	if opts.SyntheticSeed == 0 {
		opts.SyntheticSeed = DefaultSyntheticSeed
	}

	e := &Engine{
		analyser: analyser,
		acquirer: opts.Acquirer,
		outputs:  opts.Outputs,
		clock:    opts.Clock,
		gate:     NewGate(opts.GateThreshold),
		interval: opts.FrameDuration,
		seed:     opts.SyntheticSeed,
		metrics:  opts.Metrics,
		volume:   clampVolume(opts.Volume),
	}
	e.metrics.setState(Idle)
	return e, nil
}

// State returns the current source kind.
func (e *Engine) State() SourceKind {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// AttachMicrophone replaces the current source with the microphone. The
// capture is routed through a force-muted controller so it is never heard.
func (e *Engine) AttachMicrophone(ctx context.Context) error {
	return e.attach(ctx, Microphone, func(ctx context.Context) (Source, error) {
		c, err := e.acquirer.RequestMicrophone(ctx)
		if err != nil {
			return nil, err
		}
		return newMicrophoneSource(c), nil
	})
}

// AttachFile decodes data and starts playing it immediately.
func (e *Engine) AttachFile(ctx context.Context, data []byte) error {
	return e.attach(ctx, File, func(ctx context.Context) (Source, error) {
		buf, err := e.acquirer.Decode(ctx, data)
		if err != nil {
			return nil, err
		}
		return newBufferSource(File, buf, false, e.clock, e.interval), nil
	})
}

// AttachNetworkStream fetches url and waits for its header. Playback does
// not start until Play is called.
func (e *Engine) AttachNetworkStream(ctx context.Context, url string) error {
	return e.attach(ctx, NetworkStream, func(ctx context.Context) (Source, error) {
		s, err := e.acquirer.FetchStream(ctx, url)
		if err != nil {
			return nil, err
		}
		return newStreamSource(s, e.clock, e.interval), nil
	})
}

// AttachSynthetic installs the looping test signal. It completes
// synchronously and never fails; without a usable output device the signal
// is analysed but not played.
func (e *Engine) AttachSynthetic() error {
	return e.attach(context.Background(), Synthetic, func(context.Context) (Source, error) {
		return newBufferSource(Synthetic, SyntheticBuffer(e.seed), true, e.clock, e.interval), nil
	})
}

// Stop tears down the current source and supersedes any in-flight
// acquisition. It is valid, and idempotent, in every state.
func (e *Engine) Stop() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.supersedeLocked()
	if e.state != Idle {
		logger.Infof("Stopping %s source", e.state)
	}
	e.teardownLocked()
	return nil
}

// Close stops the engine.
func (e *Engine) Close() error {
	return e.Stop()
}

// attach runs one transition. The previous source is torn down before
// acquiring, acquisition happens without the lock, and the result is only
// installed if no newer transition started meanwhile.
func (e *Engine) attach(ctx context.Context, kind SourceKind, acquire func(context.Context) (Source, error)) error {
	const op = "attach"

	// The acquisition context outlives ctx once installed: a network
	// stream keeps reading its body until the source is stopped.
	actx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	unlink := context.AfterFunc(ctx, cancel)

	e.mu.Lock()
	gen := e.supersedeLocked()
	e.pending = cancel
	e.teardownLocked()
	e.mu.Unlock()

	logger.Debugf("Acquiring %s source (generation %d)", kind, gen)
	started := time.Now()
	src, err := acquire(actx)
	unlink()
	if cerr := ctx.Err(); cerr != nil {
		if err == nil {
			src.Stop()
		}
		src, err = nil, cerr
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if gen != e.gen {
		if src != nil {
			src.Stop()
		}
		cancel()
		e.metrics.transition(op, kind, "superseded")
		logger.Debugf("Discarding %s source from superseded generation %d", kind, gen)
		return &TransitionError{Op: op, Kind: kind, Err: ErrSuperseded}
	}
	e.pending = nil

	if err != nil {
		cancel()
		return e.failLocked(op, kind, err)
	}
	e.metrics.acquired(kind, time.Since(started).Seconds())

	r, err := e.newRouteLocked(src)
	if err != nil {
		src.Stop()
		cancel()
		return e.failLocked(op, kind, err)
	}
	if err := src.Start(r); err != nil {
		src.Stop()
		e.closeRouteLocked(r)
		cancel()
		return e.failLocked(op, kind, err)
	}

	e.source = src
	e.route = r
	e.release = cancel
	e.setStateLocked(kind)
	e.metrics.transition(op, kind, "ok")

	rate, ch := src.Format()
	logger.Infof("Attached %s source %s (%.0f Hz, %d channels)", kind, src.ID(), rate, ch)
	return nil
}

// supersedeLocked starts a new generation and cancels the acquisition of
// the previous one.
func (e *Engine) supersedeLocked() uint64 {
	e.gen++
	if e.pending != nil {
		e.pending()
		e.pending = nil
	}
	return e.gen
}

func (e *Engine) failLocked(op string, kind SourceKind, err error) error {
	e.setStateLocked(Idle)
	e.metrics.transition(op, kind, "error")
	logger.Warnf("Failed to attach %s source: %v", kind, err)
	return &TransitionError{Op: op, Kind: kind, Err: err}
}

// teardownLocked stops the source, detaches it from the analyser, closes the
// route and returns to Idle. Calling it in Idle does nothing.
func (e *Engine) teardownLocked() {
	if e.source != nil {
		if err := e.source.Stop(); err != nil {
			logger.Debugf("Stopping source %s: %v", e.source.ID(), err)
		}
		e.source = nil
	}
	if e.route != nil {
		e.closeRouteLocked(e.route)
		e.route = nil
	}
	if e.release != nil {
		e.release()
		e.release = nil
	}
	e.setStateLocked(Idle)
}

func (e *Engine) closeRouteLocked(r *route) {
	if rec := r.takeRecorder(); rec != nil {
		if err := rec.Close(); err != nil {
			logger.Warnf("Closing recording %s: %v", rec.Path(), err)
		} else {
			logger.Infof("Recording saved to %s (%d frames)", rec.Path(), rec.Frames())
		}
	}
	if err := r.close(); err != nil {
		logger.Debugf("Closing output: %v", err)
	}
	e.analyser.Detach()
}

func (e *Engine) newRouteLocked(src Source) (*route, error) {
	kind := src.Kind()
	rate, channels := src.Format()

	input, err := e.analyser.Attach(src.ID(), rate)
	if err != nil {
		return nil, err
	}

	out, err := e.outputs(rate, channels)
	if err != nil {
		// The microphone is muted and the synthetic signal is only a test
		// pattern, so both can run without a playback device.
		if kind != Synthetic && kind != Microphone {
			e.analyser.Detach()
			if !errors.Is(err, ErrDeviceUnavailable) && !errors.Is(err, ErrPermissionDenied) {
				err = fmt.Errorf("%w: %w", ErrDeviceUnavailable, err)
			}
			return nil, err
		}
		logger.Warnf("No output for %s source, analysing only: %v", kind, err)
		out = DiscardOutput{}
	}

	r := &route{
		kind:     kind,
		channels: channels,
		input:    input,
		volume:   NewVolumeController(e.volume, kind == Microphone),
		output:   out,
		metrics:  e.metrics,
	}
	if kind == Microphone {
		r.gate = e.gate
	}
	e.metrics.setGain(r.volume.Gain())
	return r, nil
}

func (e *Engine) setStateLocked(kind SourceKind) {
	if e.state == kind {
		return
	}
	logger.Debugf("State %s -> %s", e.state, kind)
	e.state = kind
	e.metrics.setState(kind)
	if kind == Idle {
		e.metrics.setGain(0)
	}
}

// Play resumes a File or NetworkStream source. It is a no-op for the
// microphone and the synthetic signal, and invalid when Idle.
func (e *Engine) Play() error {
	return e.playback("play", Pausable.Play)
}

// Pause suspends a File or NetworkStream source, keeping its position.
func (e *Engine) Pause() error {
	return e.playback("pause", Pausable.Pause)
}

func (e *Engine) playback(op string, fn func(Pausable) error) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state == Idle {
		e.metrics.transition(op, Idle, "invalid")
		return &TransitionError{Op: op, Kind: Idle, Err: ErrInvalidStateTransition}
	}
	p, ok := e.source.(Pausable)
	if !ok || !e.state.Pausable() {
		return nil
	}
	if err := fn(p); err != nil {
		e.metrics.transition(op, e.state, "error")
		return &TransitionError{Op: op, Kind: e.state, Err: err}
	}
	e.metrics.transition(op, e.state, "ok")
	return nil
}

// Position returns the playback position of a File or NetworkStream source.
func (e *Engine) Position() (PlaybackPosition, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	p, ok := e.source.(Pausable)
	if !ok || !e.state.Pausable() {
		return PlaybackPosition{}, false
	}
	return p.Position(), true
}

// Elapsed returns the current playback position as a duration.
func (e *Engine) Elapsed() (time.Duration, bool) {
	pos, ok := e.Position()
	if !ok {
		return 0, false
	}
	return pos.Elapsed(e.clock.Now()), true
}

// SetVolume records the requested volume and applies it to the active
// controller. It returns the gain in effect, which is always 0 for the
// microphone.
func (e *Engine) SetVolume(v float64) float64 {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.volume = clampVolume(v)
	if e.route == nil {
		return 0
	}
	g := e.route.volume.SetVolume(e.volume)
	e.metrics.setGain(g)
	return g
}

// Volume returns the requested volume.
func (e *Engine) Volume() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.volume
}

// Gain returns the gain of the active controller, 0 when Idle.
func (e *Engine) Gain() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.route == nil {
		return 0
	}
	return e.route.volume.Gain()
}

// Sampler returns the analysis device while a source is connected to it.
func (e *Engine) Sampler() (*analysis.Device, bool) {
	if !e.analyser.Connected() {
		return nil, false
	}
	return e.analyser, true
}

// Analyser returns the analysis device regardless of state.
func (e *Engine) Analyser() *analysis.Device {
	return e.analyser
}

// Gate returns the microphone noise gate.
func (e *Engine) Gate() *Gate {
	return e.gate
}

// Reconfigure rebuilds the analysis device buffers. Sample views obtained
// before the call are stale afterwards.
func (e *Engine) Reconfigure(cfg analysis.Config) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.analyser.Reconfigure(cfg)
}

// StartRecording writes the active source to a WAV file at path until
// StopRecording is called or the source is torn down.
func (e *Engine) StartRecording(path string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.route == nil {
		return &TransitionError{Op: "record", Kind: Idle, Err: ErrInvalidStateTransition}
	}
	if e.route.recording() {
		return ErrAlreadyRecording
	}

	rate, channels := e.source.Format()
	rec, err := NewRecorder(path, int(rate), channels)
	if err != nil {
		return err
	}
	e.route.setRecorder(rec)
	logger.Infof("Recording %s source to %s", e.state, path)
	return nil
}

// StopRecording finalizes the current recording. It does nothing when not
// recording.
func (e *Engine) StopRecording() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.route == nil {
		return nil
	}
	rec := e.route.takeRecorder()
	if rec == nil {
		return nil
	}
	if err := rec.Close(); err != nil {
		return fmt.Errorf("closing recording: %w", err)
	}
	logger.Infof("Recording saved to %s (%d frames)", rec.Path(), rec.Frames())
	return nil
}

// Recording reports whether the active source is being recorded.
func (e *Engine) Recording() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.route != nil && e.route.recording()
}
