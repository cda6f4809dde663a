// SPDX-License-Identifier: MIT

/*
Package bridge moves analyser output to the renderer side.

Once per tick the bridge pulls both sample channels from the current
sampler, normalizes them into a fresh SampleFrame and offers it to every
subscriber without blocking: a subscriber whose single-slot channel is still
full misses that frame. Slow consumers therefore never stall the audio side.
*/
package bridge

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"audioviz/internal/analysis"
	applog "audioviz/internal/log"
	"audioviz/internal/normalize"
)

// DefaultInterval is one animation frame at ~60 Hz.
const DefaultInterval = 16 * time.Millisecond

const toggleBuffer = 16

var logger = applog.For("Bridge")

// Sampler is the analyser interface the bridge pulls from. Only the bridge
// goroutine may call it: the returned slices are reused on the next call.
type Sampler interface {
	SampleFrequency() []float64
	SampleTimeDomain() []float64
	Config() analysis.Config
}

// Provider yields the sampler while a source is connected.
type Provider interface {
	Sampler() (Sampler, bool)
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc func() (Sampler, bool)

func (f ProviderFunc) Sampler() (Sampler, bool) { return f() }

// Options configures a Bridge.
type Options struct {
	Interval time.Duration
	Now      func() time.Time
	Metrics  *Metrics
}

// Subscription receives frames and toggles from a Bridge.
type Subscription struct {
	name    string
	frames  chan SampleFrame
	toggles chan ToggleMessage
	dropped atomic.Uint64
}

// Name returns the subscriber name given to Subscribe.
func (s *Subscription) Name() string { return s.name }

// Frames delivers at most one pending frame.
func (s *Subscription) Frames() <-chan SampleFrame { return s.frames }

// Toggles delivers renderer toggles.
func (s *Subscription) Toggles() <-chan ToggleMessage { return s.toggles }

// Dropped returns how many frames this subscriber missed.
func (s *Subscription) Dropped() uint64 { return s.dropped.Load() }

// Bridge is the Data Bridge.
type Bridge struct {
	provider Provider
	interval time.Duration
	now      func() time.Time
	metrics  *Metrics
	sequence atomic.Uint64

	subMu sync.RWMutex
	subs  []*Subscription

	ticker   *time.Ticker   // Ticker that triggers sampling.
	doneChan chan struct{}  // Signals the loop goroutine to stop.
	stopOnce sync.Once      // Ensures the stop logic runs only once per Start/Stop cycle.
	wg       sync.WaitGroup // Waits for the loop goroutine during Stop.
	mu       sync.Mutex     // Protects ticker and doneChan during Start/Stop.
}

// New creates a Bridge pulling from provider. An interval <= 0 defaults to
// DefaultInterval.
func New(provider Provider, opts Options) *Bridge {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Bridge{
		provider: provider,
		interval: opts.Interval,
		now:      opts.Now,
		metrics:  opts.Metrics,
	}
}

// Interval returns the tick interval.
func (b *Bridge) Interval() time.Duration {
	return b.interval
}

// Subscribe registers a consumer.
func (b *Bridge) Subscribe(name string) *Subscription {
	s := &Subscription{
		name:    name,
		frames:  make(chan SampleFrame, 1),
		toggles: make(chan ToggleMessage, toggleBuffer),
	}
	b.subMu.Lock()
	b.subs = append(b.subs, s)
	b.subMu.Unlock()
	logger.Debugf("Subscriber %s added", name)
	return s
}

// Unsubscribe removes a consumer. Its channels are not closed.
func (b *Bridge) Unsubscribe(s *Subscription) {
	b.subMu.Lock()
	defer b.subMu.Unlock()
	for i, sub := range b.subs {
		if sub == s {
			b.subs = append(b.subs[:i], b.subs[i+1:]...)
			logger.Debugf("Subscriber %s removed (%d frames dropped)", s.name, s.Dropped())
			return
		}
	}
}

// Tick samples once. It reports false, and emits nothing, when no source is
// connected.
func (b *Bridge) Tick() (SampleFrame, bool) {
	s, ok := b.provider.Sampler()
	if !ok || s == nil {
		return SampleFrame{}, false
	}

	freq := s.SampleFrequency()
	td := s.SampleTimeDomain()
	if freq == nil || td == nil {
		return SampleFrame{}, false
	}
	levels := s.Config().Levels()

	frame := SampleFrame{
		Frequency:  normalize.FrequencyInto(make([]byte, len(freq)), freq, levels),
		TimeDomain: normalize.TimeDomainInto(make([]byte, len(td)), td),
		Sequence:   b.sequence.Add(1),
		Timestamp:  b.now(),
	}
	b.publish(frame)
	return frame, true
}

func (b *Bridge) publish(frame SampleFrame) {
	b.metrics.produced()

	b.subMu.RLock()
	defer b.subMu.RUnlock()
	for _, s := range b.subs {
		select {
		case s.frames <- frame:
		default:
			s.dropped.Add(1)
			b.metrics.dropped(s.name)
		}
	}
}

// Toggle asks every subscriber to show or hide a renderer element. Toggles
// are dropped for subscribers that are not keeping up.
func (b *Bridge) Toggle(element string, visible bool) {
	msg := NewToggle(element, visible)

	b.subMu.RLock()
	defer b.subMu.RUnlock()
	for _, s := range b.subs {
		select {
		case s.toggles <- msg:
		default:
			logger.Debugf("Subscriber %s missed toggle %s", s.name, element)
		}
	}
}

// Start begins ticking until Stop is called or ctx is cancelled. It is safe
// to call Start multiple times; subsequent calls are no-ops while running.
func (b *Bridge) Start(ctx context.Context) {
	b.mu.Lock()
	if b.ticker != nil {
		b.mu.Unlock()
		logger.Warnf("Start called but already running.")
		return
	}

	b.ticker = time.NewTicker(b.interval)
	b.doneChan = make(chan struct{})
	b.stopOnce = sync.Once{}

	ticker := b.ticker
	doneChan := b.doneChan
	b.mu.Unlock()

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		logger.Infof("Sampling started (Interval: %s)", b.interval)
		for {
			select {
			case <-ticker.C:
				b.Tick()
			case <-doneChan:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop ends ticking and waits for the loop to exit. It is safe to call
// Stop multiple times.
func (b *Bridge) Stop() {
	b.mu.Lock()
	if b.ticker == nil {
		b.mu.Unlock()
		return
	}
	b.stopOnce.Do(func() {
		close(b.doneChan)
		b.ticker.Stop()
		b.ticker = nil
	})
	b.mu.Unlock()

	b.wg.Wait()
	logger.Infof("Sampling stopped after %d frames.", b.sequence.Load())
}

// Run ticks until ctx is cancelled.
func (b *Bridge) Run(ctx context.Context) error {
	b.Start(ctx)
	<-ctx.Done()
	b.Stop()
	return nil
}
