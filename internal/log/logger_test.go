// SPDX-License-Identifier: MIT
package log

import (
	"bytes"
	"os"
	"strings"
	"testing"
)

func TestMain(m *testing.M) {
	code := m.Run()
	SetOutput(os.Stderr)
	SetLevel(LevelInfo)
	os.Exit(code)
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in       string
		expected LogLevel
		ok       bool
	}{
		{"debug", LevelDebug, true},
		{"INFO", LevelInfo, true},
		{"Warning", LevelWarn, true},
		{" error ", LevelError, true},
		{"fatal", LevelFatal, true},
		{"verbose", LevelInfo, false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseLevel(tt.in)
			if got != tt.expected || ok != tt.ok {
				t.Errorf("ParseLevel(%q) = (%v, %v), expected (%v, %v)", tt.in, got, ok, tt.expected, tt.ok)
			}
		})
	}
}

func TestConfigureDebugWins(t *testing.T) {
	if err := Configure("error", true); err != nil {
		t.Fatalf("Configure returned error: %v", err)
	}
	if GetLevel() != LevelDebug {
		t.Errorf("expected debug mode to force LevelDebug, got %v", GetLevel())
	}

	if err := Configure("bogus", false); err == nil {
		t.Error("expected error for unknown level name")
	}
	if GetLevel() != LevelInfo {
		t.Errorf("expected fallback to LevelInfo, got %v", GetLevel())
	}
}

func TestComponentPrefixAndFiltering(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	SetLevel(LevelWarn)

	l := For("Bridge")
	l.Infof("hidden %d", 1)
	l.Warnf("dropped %d frames", 3)

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info message written at warn level: %q", out)
	}
	if !strings.Contains(out, "[WARN]  Bridge: dropped 3 frames") {
		t.Errorf("unexpected output: %q", out)
	}
}
