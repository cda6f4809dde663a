// SPDX-License-Identifier: MIT
package hardware

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"audioviz/internal/audio"
	applog "audioviz/internal/log"

	"github.com/gordonklaus/portaudio"
)

var logger = applog.For("Hardware")

// Config selects devices and stream parameters.
type Config struct {
	InputDevice     int
	OutputDevice    int
	InputChannels   int
	SampleRate      float64 // 0 uses the input device's default rate
	FramesPerBuffer int
	LowLatency      bool
}

// capture is a PortAudio input stream implementing audio.Capture.
type capture struct {
	stream     *portaudio.Stream
	sampleRate float64
	channels   int

	mu     sync.Mutex
	fn     func([]float32)
	closed bool
}

// OpenCapture returns an audio.CaptureOpener for the configured input.
func OpenCapture(cfg Config) audio.CaptureOpener {
	return func(ctx context.Context) (audio.Capture, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return newCapture(cfg)
	}
}

func newCapture(cfg Config) (*capture, error) {
	device, err := InputDevice(cfg.InputDevice)
	if err != nil {
		return nil, err
	}

	channels := min(max(cfg.InputChannels, 1), device.MaxInputChannels)
	if channels < 1 {
		return nil, fmt.Errorf("%w: %s has no input channels", errUnavailable, device.Name)
	}
	sampleRate := cfg.SampleRate
	if sampleRate <= 0 {
		sampleRate = device.DefaultSampleRate
	}
	latency := device.DefaultHighInputLatency
	if cfg.LowLatency {
		latency = device.DefaultLowInputLatency
	}

	c := &capture{sampleRate: sampleRate, channels: channels}
	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   device,
			Channels: channels,
			Latency:  latency,
		},
		FramesPerBuffer: cfg.FramesPerBuffer,
		SampleRate:      sampleRate,
	}

	stream, err := portaudio.OpenStream(params, c.process)
	if err != nil {
		return nil, mapError(err)
	}
	c.stream = stream

	logger.Infof("Opened capture on %s (%.0f Hz, %d channels, latency %v)", device.Name, sampleRate, channels, latency.Round(time.Millisecond))
	return c, nil
}

func (c *capture) SampleRate() float64 { return c.sampleRate }
func (c *capture) Channels() int       { return c.channels }

func (c *capture) Start(fn func([]float32)) error {
	c.mu.Lock()
	c.fn = fn
	c.mu.Unlock()

	if err := c.stream.Start(); err != nil {
		return mapError(err)
	}
	return nil
}

// process is the PortAudio input callback.
func (c *capture) process(in []float32) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	c.mu.Lock()
	fn, closed := c.fn, c.closed
	c.mu.Unlock()
	if closed || fn == nil {
		return
	}
	fn(in)
}

// Close stops and closes the stream. It is idempotent.
func (c *capture) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	if err := c.stream.Stop(); err != nil {
		c.stream.Close()
		return err
	}
	return c.stream.Close()
}
