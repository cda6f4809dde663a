// SPDX-License-Identifier: MIT
package audio

import (
	"sync"

	"audioviz/internal/analysis"
)

// route is the signal path of the active source:
//
//	source -> gate (microphone only) -> analyser input -> recorder
//	       -> volume controller -> output
//
// Every stage is owned by the route and released by close.
type route struct {
	mu       sync.Mutex
	closed   bool
	kind     SourceKind
	channels int
	input    *analysis.Input
	gate     *Gate
	volume   *VolumeController
	output   Output
	recorder *Recorder
	metrics  *Metrics
	scratch  []float32
}

// Write implements sink.
func (r *route) Write(samples []float32) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed || len(samples) == 0 {
		return
	}

	if cap(r.scratch) < len(samples) {
		r.scratch = make([]float32, len(samples))
	}
	buf := r.scratch[:len(samples)]
	copy(buf, samples)

	r.gate.Process(buf)
	r.input.Write(buf, r.channels)

	if r.recorder != nil {
		if err := r.recorder.Write(buf); err != nil {
			logger.Warnf("Recording write failed, stopping recording: %v", err)
			r.recorder.Close()
			r.recorder = nil
		}
	}

	r.volume.Apply(buf)
	if err := r.output.Write(buf); err != nil {
		r.metrics.outputError(r.kind)
		logger.Debugf("Output write failed: %v", err)
	}
	r.metrics.samplesRouted(r.kind, len(buf)/r.channels)
}

func (r *route) setRecorder(rec *Recorder) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recorder = rec
}

// takeRecorder detaches and returns the recorder, if any.
func (r *route) takeRecorder() *Recorder {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec := r.recorder
	r.recorder = nil
	return rec
}

func (r *route) recording() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.recorder != nil
}

// close stops all further writes and closes the output. The analyser input
// is detached by the engine.
func (r *route) close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true
	return r.output.Close()
}
