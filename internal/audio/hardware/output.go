// SPDX-License-Identifier: MIT
package hardware

import (
	"sync"

	"audioviz/internal/audio"

	"github.com/gordonklaus/portaudio"
)

// outputBufferSeconds bounds how far writers may run ahead of playback.
const outputBufferSeconds = 0.5

// output is a PortAudio playback stream implementing audio.Output. Writes
// never block: they queue into a bounded FIFO drained by the callback, which
// plays silence on underflow. Overflow drops the oldest samples.
type output struct {
	stream *portaudio.Stream

	mu      sync.Mutex
	fifo    []float32
	limit   int
	dropped int
	closed  bool
}

// Outputs returns an audio.OutputFactory opening streams on the configured
// output device.
func Outputs(cfg Config) audio.OutputFactory {
	return func(sampleRate float64, channels int) (audio.Output, error) {
		return newOutput(cfg, sampleRate, channels)
	}
}

func newOutput(cfg Config, sampleRate float64, channels int) (*output, error) {
	device, err := OutputDevice(cfg.OutputDevice)
	if err != nil {
		return nil, err
	}

	latency := device.DefaultHighOutputLatency
	if cfg.LowLatency {
		latency = device.DefaultLowOutputLatency
	}

	o := &output{limit: int(sampleRate*outputBufferSeconds) * channels}
	params := portaudio.StreamParameters{
		Output: portaudio.StreamDeviceParameters{
			Device:   device,
			Channels: channels,
			Latency:  latency,
		},
		FramesPerBuffer: cfg.FramesPerBuffer,
		SampleRate:      sampleRate,
	}

	stream, err := portaudio.OpenStream(params, o.process)
	if err != nil {
		return nil, mapError(err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return nil, mapError(err)
	}
	o.stream = stream

	logger.Debugf("Opened output on %s (%.0f Hz, %d channels)", device.Name, sampleRate, channels)
	return o, nil
}

func (o *output) Write(samples []float32) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return nil
	}
	o.fifo = append(o.fifo, samples...)
	if over := len(o.fifo) - o.limit; over > 0 {
		o.dropped += over
		o.fifo = append(o.fifo[:0], o.fifo[over:]...)
	}
	return nil
}

// process is the PortAudio output callback.
func (o *output) process(out []float32) {
	o.mu.Lock()
	n := copy(out, o.fifo)
	o.fifo = append(o.fifo[:0], o.fifo[n:]...)
	o.mu.Unlock()

	clear(out[n:])
}

func (o *output) Close() error {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return nil
	}
	o.closed = true
	dropped := o.dropped
	o.mu.Unlock()

	if dropped > 0 {
		logger.Debugf("Output dropped %d samples on overflow", dropped)
	}
	if err := o.stream.Stop(); err != nil {
		o.stream.Close()
		return err
	}
	return o.stream.Close()
}
