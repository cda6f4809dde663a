// SPDX-License-Identifier: MIT
package audio

import (
	"context"
	"time"
)

// DefaultFrameDuration is the chunk length sources push per tick.
const DefaultFrameDuration = 20 * time.Millisecond

// playbackNode is a single-use playback run: once stopped it is discarded
// and a new one is created on resume.
type playbackNode struct {
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

func newPlaybackNode() *playbackNode {
	ctx, cancel := context.WithCancel(context.Background())
	return &playbackNode{ctx: ctx, cancel: cancel, done: make(chan struct{})}
}

// start runs fn on its own goroutine under the node's context.
func (n *playbackNode) start(fn func(ctx context.Context)) {
	go func() {
		defer close(n.done)
		fn(n.ctx)
	}()
}

// stop cancels the node and waits for its goroutine to exit.
func (n *playbackNode) stop() {
	n.cancel()
	<-n.done
}

// pace calls next once per tick and writes the returned chunk to dst until
// next reports there is nothing more or ctx is cancelled. It returns true
// when the signal ran out.
func pace(ctx context.Context, interval time.Duration, dst sink, next func() ([]float32, bool)) bool {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
		}

		chunk, more := next()
		if len(chunk) > 0 {
			dst.Write(chunk)
		}
		if !more {
			return true
		}
	}
}

// framesPer returns how many frames at sampleRate fit in d, at least one.
func framesPer(d time.Duration, sampleRate float64) int {
	return max(1, int(d.Seconds()*sampleRate))
}
