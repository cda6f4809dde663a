// SPDX-License-Identifier: MIT
package audio

import (
	"context"
	"sync"
	"time"

	"audioviz/internal/decode"

	"github.com/google/uuid"
)

// bufferSource plays a fully decoded buffer. File sources play once and
// rewind to the start when they run out; synthetic sources loop.
type bufferSource struct {
	id       string
	kind     SourceKind
	buf      *decode.Buffer
	loop     bool
	clock    Clock
	interval time.Duration

	mu      sync.Mutex
	dst     sink
	node    *playbackNode
	pos     PlaybackPosition
	nodes   int
	stopped bool
}

func newBufferSource(kind SourceKind, buf *decode.Buffer, loop bool, clock Clock, interval time.Duration) *bufferSource {
	return &bufferSource{
		id:       uuid.NewString(),
		kind:     kind,
		buf:      buf,
		loop:     loop,
		clock:    clock,
		interval: interval,
	}
}

func (s *bufferSource) ID() string       { return s.id }
func (s *bufferSource) Kind() SourceKind { return s.kind }

func (s *bufferSource) Format() (float64, int) {
	return float64(s.buf.Format.SampleRate), s.buf.Format.Channels
}

// Duration returns the length of the buffer.
func (s *bufferSource) Duration() time.Duration {
	return time.Duration(float64(s.buf.Frames()) / float64(s.buf.Format.SampleRate) * float64(time.Second))
}

// Start begins playback immediately.
func (s *bufferSource) Start(dst sink) error {
	s.mu.Lock()
	s.dst = dst
	s.mu.Unlock()
	return s.Play()
}

// Play creates a new playback node starting at the pause offset. It is a
// no-op while already playing.
func (s *bufferSource) Play() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return ErrInvalidStateTransition
	}
	if s.node != nil || s.dst == nil {
		return nil
	}

	offset := s.pos.PauseOffset
	start := s.frameAt(offset)
	s.pos = PlaybackPosition{StartTime: s.clock.Now().Add(-offset), PauseOffset: offset, Playing: true}
	s.nodes++

	dst := s.dst
	node := newPlaybackNode()
	s.node = node
	node.start(func(ctx context.Context) {
		if s.run(ctx, dst, start) {
			s.ended(node)
		}
	})
	return nil
}

// Pause records the offset and discards the current node.
func (s *bufferSource) Pause() error {
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

	node.stop()
	return nil
}

func (s *bufferSource) Position() PlaybackPosition {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pos
}

func (s *bufferSource) Stop() error {
	s.mu.Lock()
	node := s.node
	s.node = nil
	s.stopped = true
	s.pos = PlaybackPosition{}
	s.mu.Unlock()

	if node != nil {
		node.stop()
	}
	return nil
}

// frameAt maps an offset onto a frame index. Offsets past the end wrap for
// looping sources and clamp to the end otherwise.
func (s *bufferSource) frameAt(offset time.Duration) int {
	frames := s.buf.Frames()
	f := int(offset.Seconds() * float64(s.buf.Format.SampleRate))
	if f < 0 {
		return 0
	}
	if s.loop && frames > 0 {
		return f % frames
	}
	return min(f, frames)
}

// run pushes the buffer from frame start and reports whether it ran out.
func (s *bufferSource) run(ctx context.Context, dst sink, start int) bool {
	ch := s.buf.Format.Channels
	frames := s.buf.Frames()
	chunk := framesPer(s.interval, float64(s.buf.Format.SampleRate))
	pos := start

	return pace(ctx, s.interval, dst, func() ([]float32, bool) {
		if pos >= frames {
			if !s.loop || frames == 0 {
				return nil, false
			}
			pos = 0
		}
		end := min(pos+chunk, frames)
		out := s.buf.Samples[pos*ch : end*ch]
		pos = end
		return out, s.loop || pos < frames
	})
}

// ended resets the position after a natural end, unless the node has
// already been replaced.
func (s *bufferSource) ended(node *playbackNode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.node != node {
		return
	}
	s.node = nil
	s.pos = PlaybackPosition{}
}
