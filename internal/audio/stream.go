// SPDX-License-Identifier: MIT
package audio

import (
	"context"
	"errors"
	"io"
	"slices"
	"sync"
	"time"

	"audioviz/internal/decode"

	"github.com/google/uuid"
)

// streamSource plays a network stream. Its metadata is known once the
// stream is open, but playback waits for an explicit Play. Pausing stops
// reading; resuming continues from wherever the reader is.
//
// A paused reader may still be blocked in Read on a stalled connection, so
// Pause never waits for it. Reads are serialized by readMu and whatever a
// cancelled reader receives is kept in pending for the next one.
type streamSource struct {
	id       string
	stream   decode.Stream
	clock    Clock
	interval time.Duration
	frames   int

	mu      sync.Mutex
	dst     sink
	node    *playbackNode
	pos     PlaybackPosition
	stopped bool

	readMu  sync.Mutex
	pending []float32

	// emitMu is held from the cancellation check until the chunk is
	// written, so nothing reaches the sink once Pause returns.
	emitMu  sync.Mutex
	readers sync.WaitGroup

	closeOnce sync.Once
	closeErr  error
}

func newStreamSource(s decode.Stream, clock Clock, interval time.Duration) *streamSource {
	f := s.Format()
	return &streamSource{
		id:       uuid.NewString(),
		stream:   s,
		clock:    clock,
		interval: interval,
		frames:   framesPer(interval, float64(f.SampleRate)) * f.Channels,
	}
}

func (s *streamSource) ID() string       { return s.id }
func (s *streamSource) Kind() SourceKind { return NetworkStream }

func (s *streamSource) Format() (float64, int) {
	f := s.stream.Format()
	return float64(f.SampleRate), f.Channels
}

// Start connects the sink without starting playback.
func (s *streamSource) Start(dst sink) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dst = dst
	return nil
}

func (s *streamSource) Play() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return ErrInvalidStateTransition
	}
	if s.node != nil || s.dst == nil {
		return nil
	}

	offset := s.pos.PauseOffset
	s.pos = PlaybackPosition{StartTime: s.clock.Now().Add(-offset), PauseOffset: offset, Playing: true}

	dst := s.dst
	node := newPlaybackNode()
	s.node = node
	s.readers.Add(1)
	node.start(func(ctx context.Context) {
		defer s.readers.Done()
		if s.run(ctx, dst) {
			s.ended(node)
		}
	})
	return nil
}

// Pause cancels the reader without waiting for a Read in progress.
func (s *streamSource) Pause() error {
	s.mu.Lock()
	node := s.node
	if node == nil {
		s.mu.Unlock()
		return nil
	}
	s.node = nil
	s.pos.PauseOffset = s.clock.Now().Sub(s.pos.StartTime)
	s.pos.Playing = false
	s.mu.Unlock()

	node.cancel()
	// Wait out a write in progress.
	s.emitMu.Lock()
	s.emitMu.Unlock()
	return nil
}

func (s *streamSource) Position() PlaybackPosition {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pos
}

// Stop closes the stream first so a read blocked on the network returns,
// then waits for every reader, including those left behind by Pause.
func (s *streamSource) Stop() error {
	s.mu.Lock()
	node := s.node
	s.node = nil
	s.stopped = true
	s.pos = PlaybackPosition{}
	s.mu.Unlock()

	s.closeOnce.Do(func() {
		s.closeErr = s.stream.Close()
	})
	if node != nil {
		node.cancel()
	}
	s.readers.Wait()
	return s.closeErr
}

func (s *streamSource) run(ctx context.Context, dst sink) bool {
	chunk := make([]float32, s.frames)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
		}

		more, ok := s.step(ctx, dst, chunk)
		if !ok {
			return false
		}
		if !more {
			return true
		}
	}
}

// step reads one chunk and writes it to dst. ok is false when ctx was
// cancelled, in which case the chunk is kept for the next reader.
func (s *streamSource) step(ctx context.Context, dst sink, chunk []float32) (more, ok bool) {
	s.readMu.Lock()
	defer s.readMu.Unlock()

	if ctx.Err() != nil {
		return false, false
	}

	var (
		n   int
		err error
	)
	if len(s.pending) > 0 {
		n = copy(chunk, s.pending)
		s.pending = s.pending[n:]
	} else {
		n, err = s.stream.Read(chunk)
	}

	s.emitMu.Lock()
	defer s.emitMu.Unlock()
	if ctx.Err() != nil {
		s.pending = append(slices.Clone(chunk[:n]), s.pending...)
		return false, false
	}
	if n > 0 {
		dst.Write(chunk[:n])
	}
	if err != nil {
		if !errors.Is(err, io.EOF) {
			logger.Warnf("Stream %s read failed: %v", s.id, err)
		}
		return false, true
	}
	return true, true
}

func (s *streamSource) ended(node *playbackNode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.node != node {
		return
	}
	s.node = nil
	s.pos.PauseOffset = s.clock.Now().Sub(s.pos.StartTime)
	s.pos.Playing = false
}
