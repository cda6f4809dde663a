// SPDX-License-Identifier: MIT
package audio

import (
	"context"
	"io"
	"sync"
	"sync/atomic"

	"audioviz/internal/decode"
)

// handleCounter tracks exclusive handles (captures, streams) held open.
type handleCounter struct {
	open   atomic.Int64
	opened atomic.Int64
}

func (h *handleCounter) acquire() { h.open.Add(1); h.opened.Add(1) }
func (h *handleCounter) release() { h.open.Add(-1) }

type fakeCapture struct {
	rate     float64
	channels int
	counter  *handleCounter

	mu     sync.Mutex
	fn     func([]float32)
	closed bool
}

func (c *fakeCapture) SampleRate() float64 { return c.rate }
func (c *fakeCapture) Channels() int       { return c.channels }

func (c *fakeCapture) Start(fn func([]float32)) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fn = fn
	return nil
}

func (c *fakeCapture) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		c.counter.release()
	}
	return nil
}

// Push delivers a buffer as the capture callback would.
func (c *fakeCapture) Push(samples []float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.fn == nil {
		return
	}
	c.fn(samples)
}

func (c *fakeCapture) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

type fakeStream struct {
	format  decode.Format
	counter *handleCounter

	// stall, when set, makes Read block once the samples run out until
	// the stream is closed, like a live connection that stops sending.
	stall   chan struct{}
	stalled chan struct{}

	mu      sync.Mutex
	samples []float32
	reads   int
	closed  bool
}

func (s *fakeStream) Format() decode.Format { return s.format }

func (s *fakeStream) Read(dst []float32) (int, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return 0, io.ErrClosedPipe
	}
	s.reads++
	if len(s.samples) == 0 {
		stall := s.stall
		s.mu.Unlock()
		if stall == nil {
			return 0, io.EOF
		}
		select {
		case s.stalled <- struct{}{}:
		default:
		}
		<-stall
		return 0, io.ErrClosedPipe
	}
	n := copy(dst, s.samples)
	s.samples = s.samples[n:]
	s.mu.Unlock()
	return n, nil
}

func (s *fakeStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		if s.stall != nil {
			close(s.stall)
		}
		s.counter.release()
	}
	return nil
}

func (s *fakeStream) Reads() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reads
}

func (s *fakeStream) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// fakeAcquirer hands out fake captures and streams and counts them.
type fakeAcquirer struct {
	counter handleCounter
	decoder *DefaultAcquirer

	micErr    error
	micGate   chan struct{} // When set, RequestMicrophone waits for it.
	ignoreCtx bool          // Keep waiting on micGate after ctx is cancelled.

	streamErr     error
	streamSamples int
	streamStall   bool

	mu       sync.Mutex
	captures []*fakeCapture
	streams  []*fakeStream
}

func newFakeAcquirer() *fakeAcquirer {
	return &fakeAcquirer{decoder: NewAcquirer(nil, nil), streamSamples: 8000}
}

func (a *fakeAcquirer) RequestMicrophone(ctx context.Context) (Capture, error) {
	if a.micGate != nil {
		if a.ignoreCtx {
			<-a.micGate
		} else {
			select {
			case <-a.micGate:
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}
	if a.micErr != nil {
		return nil, a.micErr
	}

	c := &fakeCapture{rate: 48000, channels: 1, counter: &a.counter}
	a.counter.acquire()
	a.mu.Lock()
	a.captures = append(a.captures, c)
	a.mu.Unlock()
	return c, nil
}

func (a *fakeAcquirer) Decode(ctx context.Context, data []byte) (*decode.Buffer, error) {
	return a.decoder.Decode(ctx, data)
}

func (a *fakeAcquirer) FetchStream(ctx context.Context, url string) (decode.Stream, error) {
	if a.streamErr != nil {
		return nil, a.streamErr
	}
	s := &fakeStream{
		format:  decode.Format{SampleRate: 8000, Channels: 1, Codec: decode.WAV},
		counter: &a.counter,
		samples: make([]float32, a.streamSamples),
	}
	if a.streamStall {
		s.stall = make(chan struct{})
		s.stalled = make(chan struct{}, 1)
	}
	for i := range s.samples {
		s.samples[i] = 0.25
	}
	a.counter.acquire()
	a.mu.Lock()
	a.streams = append(a.streams, s)
	a.mu.Unlock()
	return s, nil
}

func (a *fakeAcquirer) lastCapture() *fakeCapture {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.captures) == 0 {
		return nil
	}
	return a.captures[len(a.captures)-1]
}

func (a *fakeAcquirer) lastStream() *fakeStream {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.streams) == 0 {
		return nil
	}
	return a.streams[len(a.streams)-1]
}

type fakeOutput struct {
	mu      sync.Mutex
	written []float32
	closed  bool
}

func (o *fakeOutput) Write(samples []float32) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.written = append(o.written, samples...)
	return nil
}

func (o *fakeOutput) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.closed = true
	return nil
}

func (o *fakeOutput) Written() []float32 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]float32(nil), o.written...)
}

func (o *fakeOutput) Closed() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.closed
}

// outputRecorder is an OutputFactory remembering every output it opened.
type outputRecorder struct {
	mu      sync.Mutex
	err     error
	outputs []*fakeOutput
}

func (r *outputRecorder) open(float64, int) (Output, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	o := &fakeOutput{}
	r.outputs = append(r.outputs, o)
	return o, nil
}

func (r *outputRecorder) last() *fakeOutput {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.outputs) == 0 {
		return nil
	}
	return r.outputs[len(r.outputs)-1]
}

func (r *outputRecorder) openCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, o := range r.outputs {
		if !o.Closed() {
			n++
		}
	}
	return n
}
