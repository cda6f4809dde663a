// SPDX-License-Identifier: MIT
package audio

import (
	"errors"
	"fmt"

	"audioviz/internal/analysis"
)

var (
	ErrPermissionDenied       = errors.New("microphone permission denied")
	ErrDeviceUnavailable      = errors.New("audio device unavailable")
	ErrDecode                 = errors.New("audio decode failed")
	ErrFetch                  = errors.New("stream fetch failed")
	ErrInvalidStateTransition = errors.New("invalid state transition")
	ErrInvalidConfig          = analysis.ErrInvalidConfig

	// ErrSuperseded is returned by a transition whose acquisition finished
	// after a newer transition was requested. Its resources were released.
	ErrSuperseded = errors.New("transition superseded by a newer request")

	ErrAlreadyRecording = errors.New("already recording")
)

// TransitionError reports a failed state machine transition. A failed
// attach leaves the engine Idle; a failed play or pause leaves the current
// source in place.
type TransitionError struct {
	Op   string     // "attach", "play", "pause", ...
	Kind SourceKind // Source kind the transition targeted
	Err  error
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("audio: %s %s: %v", e.Op, e.Kind, e.Err)
}

func (e *TransitionError) Unwrap() error {
	return e.Err
}
