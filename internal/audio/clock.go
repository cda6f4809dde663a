// SPDX-License-Identifier: MIT
package audio

import "time"

// Clock supplies the time used for playback positions.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// PlaybackPosition tracks where a File or NetworkStream source is. While
// playing, the position is now - StartTime; while paused it is PauseOffset.
type PlaybackPosition struct {
	StartTime   time.Time
	PauseOffset time.Duration
	Playing     bool
}

// Elapsed returns the playback position at now.
func (p PlaybackPosition) Elapsed(now time.Time) time.Duration {
	if p.Playing {
		return now.Sub(p.StartTime)
	}
	return p.PauseOffset
}
