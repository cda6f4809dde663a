// SPDX-License-Identifier: MIT
package testutil

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/aiff"
	"github.com/go-audio/wav"
)

// toIntBuffer quantizes interleaved float samples to 16-bit PCM.
func toIntBuffer(samples []float32, sampleRate, channels int) *goaudio.IntBuffer {
	data := make([]int, len(samples))
	for i, s := range samples {
		v := math.Round(float64(s) * 32767)
		data[i] = int(max(-32768, min(32767, v)))
	}
	return &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: channels, SampleRate: sampleRate},
		Data:           data,
		SourceBitDepth: 16,
	}
}

// WriteWAV encodes samples as a 16-bit PCM WAV file at path.
func WriteWAV(tb testing.TB, path string, samples []float32, sampleRate, channels int) {
	tb.Helper()
	f, err := os.Create(path)
	if err != nil {
		tb.Fatalf("creating %s: %v", path, err)
	}
	defer f.Close()

	enc := wav.NewEncoder(f, sampleRate, 16, channels, 1)
	if err := enc.Write(toIntBuffer(samples, sampleRate, channels)); err != nil {
		tb.Fatalf("encoding wav: %v", err)
	}
	if err := enc.Close(); err != nil {
		tb.Fatalf("closing wav encoder: %v", err)
	}
}

// WAVBytes returns samples encoded as a 16-bit PCM WAV file.
func WAVBytes(tb testing.TB, samples []float32, sampleRate, channels int) []byte {
	tb.Helper()
	path := filepath.Join(tb.TempDir(), "fixture.wav")
	WriteWAV(tb, path, samples, sampleRate, channels)
	data, err := os.ReadFile(path)
	if err != nil {
		tb.Fatalf("reading %s: %v", path, err)
	}
	return data
}

// AIFFBytes returns samples encoded as a 16-bit AIFF file.
func AIFFBytes(tb testing.TB, samples []float32, sampleRate, channels int) []byte {
	tb.Helper()
	path := filepath.Join(tb.TempDir(), "fixture.aiff")
	f, err := os.Create(path)
	if err != nil {
		tb.Fatalf("creating %s: %v", path, err)
	}

	enc := aiff.NewEncoder(f, sampleRate, 16, channels)
	if err := enc.Write(toIntBuffer(samples, sampleRate, channels)); err != nil {
		f.Close()
		tb.Fatalf("encoding aiff: %v", err)
	}
	if err := enc.Close(); err != nil {
		f.Close()
		tb.Fatalf("closing aiff encoder: %v", err)
	}
	f.Close()

	data, err := os.ReadFile(path)
	if err != nil {
		tb.Fatalf("reading %s: %v", path, err)
	}
	return data
}
