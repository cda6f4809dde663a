// SPDX-License-Identifier: MIT
package bridge

import (
	"strconv"
	"time"
)

// Wire message types understood by the renderer.
const (
	TypeFrequencyData  = "frequencyData"
	TypeTimeDomainData = "timeDomainData"
	TypeToggle         = "toggle"
)

// SampleFrame is one tick of normalized analyser output. Both slices have
// TransformSize/2 entries and are freshly allocated for every frame; they
// are shared by all subscribers and must not be modified.
type SampleFrame struct {
	Frequency  []byte
	TimeDomain []byte
	Sequence   uint64
	Timestamp  time.Time
}

// Bytes is a byte sequence encoded as a JSON array of numbers rather than
// base64.
type Bytes []byte

func (b Bytes) MarshalJSON() ([]byte, error) {
	if b == nil {
		return []byte("[]"), nil
	}
	out := make([]byte, 0, 2+len(b)*4)
	out = append(out, '[')
	for i, v := range b {
		if i > 0 {
			out = append(out, ',')
		}
		out = strconv.AppendUint(out, uint64(v), 10)
	}
	return append(out, ']'), nil
}

// DataMessage carries one normalized channel.
type DataMessage struct {
	Type string `json:"type"`
	Data Bytes  `json:"data"`
}

// ToggleMessage shows or hides a renderer element.
type ToggleMessage struct {
	Type    string `json:"type"`
	Element string `json:"element"`
	Visible bool   `json:"visible"`
}

// Messages converts a frame into its two wire messages.
func (f SampleFrame) Messages() (frequency, timeDomain DataMessage) {
	return DataMessage{Type: TypeFrequencyData, Data: f.Frequency},
		DataMessage{Type: TypeTimeDomainData, Data: f.TimeDomain}
}

// NewToggle builds a toggle message.
func NewToggle(element string, visible bool) ToggleMessage {
	return ToggleMessage{Type: TypeToggle, Element: element, Visible: visible}
}

func (m DataMessage) MessageType() string   { return m.Type }
func (m ToggleMessage) MessageType() string { return m.Type }
