// SPDX-License-Identifier: MIT
package audio

import (
	"fmt"
	"strings"
)

// SourceKind tags the active signal source. It doubles as the engine state.
type SourceKind int

const (
	Idle SourceKind = iota
	Microphone
	File
	NetworkStream
	Synthetic
)

var kindNames = [...]string{"idle", "microphone", "file", "stream", "synthetic"}

func (k SourceKind) String() string {
	if k < Idle || k > Synthetic {
		return fmt.Sprintf("kind(%d)", int(k))
	}
	return kindNames[k]
}

// ParseSourceKind accepts the names printed by String plus "mic".
func ParseSourceKind(name string) (SourceKind, error) {
	switch n := strings.ToLower(strings.TrimSpace(name)); n {
	case "", "idle", "none":
		return Idle, nil
	case "mic":
		return Microphone, nil
	default:
		for i, k := range kindNames {
			if k == n {
				return SourceKind(i), nil
			}
		}
	}
	return Idle, fmt.Errorf("unknown source kind: '%s'", name)
}

// Pausable reports whether Play and Pause act on sources of this kind.
func (k SourceKind) Pausable() bool {
	return k == File || k == NetworkStream
}
