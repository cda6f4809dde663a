// SPDX-License-Identifier: MIT
package audio

import (
	"sync"

	"github.com/google/uuid"
)

// microphoneSource wraps a live capture. It has no playback position.
type microphoneSource struct {
	id      string
	capture Capture
	once    sync.Once
	err     error
}

func newMicrophoneSource(c Capture) *microphoneSource {
	return &microphoneSource{id: uuid.NewString(), capture: c}
}

func (m *microphoneSource) ID() string       { return m.id }
func (m *microphoneSource) Kind() SourceKind { return Microphone }

func (m *microphoneSource) Format() (float64, int) {
	return m.capture.SampleRate(), m.capture.Channels()
}

func (m *microphoneSource) Start(dst sink) error {
	return m.capture.Start(dst.Write)
}

func (m *microphoneSource) Stop() error {
	m.once.Do(func() {
		m.err = m.capture.Close()
	})
	return m.err
}
