// SPDX-License-Identifier: MIT
package hardware

import (
	"errors"
	"fmt"

	"audioviz/internal/audio"

	"github.com/gordonklaus/portaudio"
)

var errUnavailable = audio.ErrDeviceUnavailable

// mapError classifies PortAudio failures into the engine's sentinels so the
// state machine can report them. Host errors are what the OS returns when
// capture access is refused.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	var paErr portaudio.Error
	if errors.As(err, &paErr) {
		switch paErr {
		case portaudio.UnanticipatedHostError:
			return fmt.Errorf("%w: %w", audio.ErrPermissionDenied, err)
		case portaudio.DeviceUnavailable, portaudio.InvalidDevice,
			portaudio.InvalidChannelCount, portaudio.InvalidSampleRate, portaudio.NotInitialized:
			return fmt.Errorf("%w: %w", audio.ErrDeviceUnavailable, err)
		}
	}
	return fmt.Errorf("%w: %w", audio.ErrDeviceUnavailable, err)
}
