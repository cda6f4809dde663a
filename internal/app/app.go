// SPDX-License-Identifier: MIT

// Package app wires the engine, bridge, transports and terminal UI into a
// running process.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"audioviz/internal/audio"
	"audioviz/internal/audio/hardware"
	"audioviz/internal/bridge"
	"audioviz/internal/config"
	applog "audioviz/internal/log"
	"audioviz/internal/transport"
	"audioviz/internal/transport/udp"
	"audioviz/internal/tui"
)

var logger = applog.For("App")

// LogFile receives log output while the control panel owns the terminal.
const LogFile = "audioviz.log"

const fetchTimeout = 30 * time.Second

// RunOptions are per-invocation settings that do not live in the config
// file.
type RunOptions struct {
	TUI    bool
	Record string // Recording path; empty uses recording.output_dir when enabled
}

// Run starts every component and blocks until ctx is cancelled or the
// control panel quits.
func Run(ctx context.Context, cfg *config.Config, opts RunOptions) error {
	if opts.TUI {
		f, err := os.OpenFile(LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		defer f.Close()
		applog.SetOutput(f)
		defer applog.SetOutput(os.Stderr)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	audioMetrics, err := audio.NewMetrics(reg)
	if err != nil {
		return err
	}
	bridgeMetrics, err := bridge.NewMetrics(reg)
	if err != nil {
		return err
	}

	analysisCfg, err := cfg.AnalysisConfig()
	if err != nil {
		return err
	}

	if err := hardware.Initialize(); err != nil {
		return err
	}
	defer func() {
		if err := hardware.Terminate(); err != nil {
			logger.Warnf("%v", err)
		}
	}()

	hw := HardwareConfig(cfg)
	engine, err := audio.NewEngine(audio.Options{
		Analysis:      analysisCfg,
		Acquirer:      audio.NewAcquirer(hardware.OpenCapture(hw), &http.Client{}),
		Outputs:       hardware.Outputs(hw),
		Volume:        cfg.Audio.Volume,
		GateThreshold: cfg.Audio.GateThreshold,
		FrameDuration: cfg.Audio.FrameDuration,
		SyntheticSeed: cfg.Source.Seed,
		Metrics:       audioMetrics,
	})
	if err != nil {
		return err
	}
	defer engine.Close()

	br := bridge.New(EngineProvider(engine), bridge.Options{
		Interval: cfg.Bridge.Interval,
		Metrics:  bridgeMetrics,
	})

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return br.Run(ctx) })

	if err := startTransports(ctx, g, cfg, br, reg); err != nil {
		cancel()
		g.Wait()
		return err
	}

	if err := AttachStartup(ctx, engine, cfg); err != nil {
		if !opts.TUI {
			cancel()
			g.Wait()
			return err
		}
		logger.Errorf("%v", err)
	}

	if path := recordingPath(cfg, opts); path != "" {
		if err := engine.StartRecording(path); err != nil {
			logger.Errorf("Recording not started: %v", err)
		} else {
			logger.Infof("Recording to %s", path)
		}
	}

	if opts.TUI {
		sub := br.Subscribe("tui")
		g.Go(func() error {
			defer cancel()
			return tui.RunPanel(ctx, tui.PanelOptions{
				Controller: engine,
				Frames:     sub.Frames(),
				Toggler:    br,
				FilePath:   cfg.Source.File,
				StreamURL:  cfg.Source.URL,
				RecordDir:  cfg.Recording.OutputDir,
			})
		})
	}

	err = g.Wait()
	if engine.Recording() {
		if err := engine.StopRecording(); err != nil {
			logger.Errorf("Error stopping recording: %v", err)
		}
	}
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// EngineProvider exposes the engine's analyser to the bridge while a source
// is connected.
func EngineProvider(e *audio.Engine) bridge.Provider {
	return bridge.ProviderFunc(func() (bridge.Sampler, bool) {
		d, ok := e.Sampler()
		if !ok {
			return nil, false
		}
		return d, true
	})
}

// HardwareConfig maps the audio section onto PortAudio settings.
func HardwareConfig(cfg *config.Config) hardware.Config {
	return hardware.Config{
		InputDevice:     cfg.Audio.InputDevice,
		OutputDevice:    cfg.Audio.OutputDevice,
		InputChannels:   cfg.Audio.InputChannels,
		SampleRate:      cfg.Audio.SampleRate,
		FramesPerBuffer: cfg.Audio.FramesPerBuffer,
		LowLatency:      cfg.Audio.LowLatency,
	}
}

// Attacher is the part of the engine used to attach the startup source.
type Attacher interface {
	AttachMicrophone(ctx context.Context) error
	AttachFile(ctx context.Context, data []byte) error
	AttachNetworkStream(ctx context.Context, url string) error
	AttachSynthetic() error
	Play() error
}

// AttachStartup attaches the source named in the configuration. Network
// streams start playing immediately.
func AttachStartup(ctx context.Context, a Attacher, cfg *config.Config) error {
	kind, err := cfg.SourceKind()
	if err != nil {
		return err
	}

	switch kind {
	case audio.Idle:
		return nil
	case audio.Microphone:
		return a.AttachMicrophone(ctx)
	case audio.Synthetic:
		return a.AttachSynthetic()
	case audio.File:
		data, err := os.ReadFile(cfg.Source.File)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", cfg.Source.File, err)
		}
		return a.AttachFile(ctx, data)
	case audio.NetworkStream:
		fetchCtx, cancel := context.WithTimeout(ctx, fetchTimeout)
		defer cancel()
		if err := a.AttachNetworkStream(fetchCtx, cfg.Source.URL); err != nil {
			return err
		}
		return a.Play()
	}
	return fmt.Errorf("unhandled source kind %s", kind)
}

func recordingPath(cfg *config.Config, opts RunOptions) string {
	if opts.Record != "" {
		return opts.Record
	}
	if !cfg.Recording.Enabled {
		return ""
	}
	if err := os.MkdirAll(cfg.Recording.OutputDir, 0o755); err != nil {
		logger.Errorf("Failed to create recording directory: %v", err)
		return ""
	}
	return filepath.Join(cfg.Recording.OutputDir, tui.RecordingName(time.Now()))
}

// startTransports launches every enabled transport, each fed by its own
// bridge subscription.
func startTransports(ctx context.Context, g *errgroup.Group, cfg *config.Config, br *bridge.Bridge, reg *prometheus.Registry) error {
	tc := cfg.Transport

	if tc.WebSocketEnabled {
		wsMetrics, err := transport.NewMetrics(reg)
		if err != nil {
			return err
		}
		opts := transport.WebSocketOptions{
			Addr:              tc.WebSocketAddress,
			MessagesPerSecond: tc.MaxMessagesPerSecond,
			Metrics:           wsMetrics,
		}
		if tc.MetricsEnabled {
			opts.Gatherer = reg
		}
		ws := transport.NewWebSocketTransport(opts)
		if err := ws.ListenAndServe(); err != nil {
			ws.Close()
			return err
		}
		forward(ctx, g, br.Subscribe("websocket"), ws)
	}

	if tc.LogMessages {
		forward(ctx, g, br.Subscribe("log"), transport.NewLoggingTransport())
	}

	if tc.UDPEnabled {
		sender, err := udp.NewUDPSender(tc.UDPTargetAddress)
		if err != nil {
			return err
		}
		pub, err := udp.NewUDPPublisher(sender, br.Subscribe("udp"))
		if err != nil {
			sender.Close()
			return err
		}
		pub.Start()
		g.Go(func() error {
			<-ctx.Done()
			return pub.Close()
		})
	}
	return nil
}

func forward(ctx context.Context, g *errgroup.Group, sub *bridge.Subscription, t transport.Transport) {
	g.Go(func() error {
		defer closeQuietly(t)
		return bridge.Forward(ctx, sub, t)
	})
}

func closeQuietly(c io.Closer) {
	if err := c.Close(); err != nil {
		logger.Warnf("Close: %v", err)
	}
}

var (
	_ tui.Controller = (*audio.Engine)(nil)
	_ Attacher       = (*audio.Engine)(nil)
	_ tui.Toggler    = (*bridge.Bridge)(nil)
)
