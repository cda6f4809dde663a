// SPDX-License-Identifier: MIT
package bridge

import (
	"context"

	"audioviz/internal/transport"
)

// Forward sends every frame and toggle from sub through t as wire messages
// until ctx is cancelled. Send errors are logged and do not stop
// forwarding.
func Forward(ctx context.Context, sub *Subscription, t transport.Transport) error {
	var failures uint64
	send := func(msg any) {
		if err := t.Send(msg); err != nil {
			failures++
			// Log the first failure and then every 600th (~10 s at 60 Hz).
			if failures%600 == 1 {
				logger.Warnf("Forwarding to %s failed (%d so far): %v", sub.name, failures, err)
			}
		}
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case frame := <-sub.frames:
			freq, td := frame.Messages()
			send(freq)
			send(td)
		case msg := <-sub.toggles:
			send(msg)
		}
	}
}

var (
	_ transport.Typed = DataMessage{}
	_ transport.Typed = ToggleMessage{}
)
