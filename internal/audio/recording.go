// SPDX-License-Identifier: MIT
package audio

import (
	"fmt"
	"math"
	"os"
	"sync"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const recordingBitDepth = 16

// Recorder writes what the analyser sees to a 16-bit PCM WAV file.
type Recorder struct {
	mu         sync.Mutex
	path       string
	file       *os.File
	wavEncoder *wav.Encoder
	sampleBuf  *goaudio.IntBuffer // Reusable buffer for format conversion
	channels   int
	frames     int
}

// NewRecorder creates the file at path and prepares the encoder.
func NewRecorder(path string, sampleRate, channels int) (*Recorder, error) {
	if sampleRate <= 0 || channels <= 0 {
		return nil, fmt.Errorf("invalid recording format: %d Hz, %d channels", sampleRate, channels)
	}

	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("creating recording file: %w", err)
	}

	return &Recorder{
		path:       path,
		file:       file,
		wavEncoder: wav.NewEncoder(file, sampleRate, recordingBitDepth, channels, 1),
		sampleBuf: &goaudio.IntBuffer{
			Format:         &goaudio.Format{NumChannels: channels, SampleRate: sampleRate},
			SourceBitDepth: recordingBitDepth,
		},
		channels: channels,
	}, nil
}

// Write appends interleaved samples. Values outside [-1, 1] are clipped.
func (r *Recorder) Write(samples []float32) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.wavEncoder == nil {
		return fmt.Errorf("recording %s is closed", r.path)
	}

	if cap(r.sampleBuf.Data) < len(samples) {
		r.sampleBuf.Data = make([]int, len(samples))
	}
	r.sampleBuf.Data = r.sampleBuf.Data[:len(samples)]
	for i, s := range samples {
		v := math.Round(float64(s) * math.MaxInt16)
		r.sampleBuf.Data[i] = int(max(math.MinInt16, min(math.MaxInt16, v)))
	}

	if err := r.wavEncoder.Write(r.sampleBuf); err != nil {
		return fmt.Errorf("writing recording: %w", err)
	}
	r.frames += len(samples) / r.channels
	return nil
}

// Close finalizes the WAV header and closes the file. It is idempotent.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.wavEncoder != nil {
		if err := r.wavEncoder.Close(); err != nil {
			r.file.Close()
			r.wavEncoder, r.file = nil, nil
			return err
		}
		r.wavEncoder = nil
	}

	if r.file != nil {
		if err := r.file.Close(); err != nil {
			return err
		}
		r.file = nil
	}

	return nil
}

// Path returns the file being written.
func (r *Recorder) Path() string {
	return r.path
}

// Frames returns the number of frames written so far.
func (r *Recorder) Frames() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.frames
}
