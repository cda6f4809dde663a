// SPDX-License-Identifier: MIT

// Package config loads the YAML configuration, applies ENV_* overrides and
// validates the result.
package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"audioviz/internal/analysis"
	"audioviz/internal/audio"
	applog "audioviz/internal/log"
)

var logger = applog.For("Config")

// DefaultPath is searched when no path is given.
const DefaultPath = "config.yaml"

// Config represents the main application configuration structure, loaded from YAML.
type Config struct {
	Debug     bool            `yaml:"debug"`     // Forces debug logging.
	LogLevel  string          `yaml:"log_level"` // "debug", "info", "warn" or "error".
	Audio     AudioConfig     `yaml:"audio"`
	Analysis  AnalysisConfig  `yaml:"analysis"`
	Source    SourceConfig    `yaml:"source"`
	Recording RecordingConfig `yaml:"recording"`
	Bridge    BridgeConfig    `yaml:"bridge"`
	Transport TransportConfig `yaml:"transport"`
}

// AudioConfig holds device and routing settings.
type AudioConfig struct {
	InputDevice     int           `yaml:"input_device"`      // PortAudio device index for capture (-1 for default).
	OutputDevice    int           `yaml:"output_device"`     // PortAudio device index for playback (-1 for default).
	SampleRate      float64       `yaml:"sample_rate"`       // Capture rate in Hz, 0 for the device default.
	FramesPerBuffer int           `yaml:"frames_per_buffer"` // Capture callback size.
	LowLatency      bool          `yaml:"low_latency"`       // Request low latency device settings.
	InputChannels   int           `yaml:"input_channels"`    // Channels to capture.
	Volume          float64       `yaml:"volume"`            // Initial playback volume in [0, 1].
	GateThreshold   float64       `yaml:"gate_threshold"`    // Microphone noise gate peak amplitude in [0, 1], 0 disables.
	FrameDuration   time.Duration `yaml:"frame_duration"`    // Chunk length for file, stream and synthetic sources.
}

// AnalysisConfig mirrors analysis.Config with a named window.
type AnalysisConfig struct {
	TransformSize int     `yaml:"transform_size"`
	Smoothing     float64 `yaml:"smoothing"`
	MinLevel      float64 `yaml:"min_level"`
	MaxLevel      float64 `yaml:"max_level"`
	Window        string  `yaml:"window"`
}

// SourceConfig selects the source attached at startup.
type SourceConfig struct {
	Kind string `yaml:"kind"` // idle, mic, file, stream or synthetic.
	File string `yaml:"file"`
	URL  string `yaml:"url"`
	Seed uint64 `yaml:"seed"` // Synthetic noise seed.
}

// RecordingConfig controls WAV recording of the active source.
type RecordingConfig struct {
	Enabled   bool   `yaml:"enabled"`
	OutputDir string `yaml:"output_dir"`
}

// BridgeConfig controls the sampling loop.
type BridgeConfig struct {
	Interval time.Duration `yaml:"interval"`
}

// TransportConfig holds settings for the renderer-side transports.
type TransportConfig struct {
	WebSocketEnabled     bool    `yaml:"websocket_enabled"`
	WebSocketAddress     string  `yaml:"websocket_address"`
	MaxMessagesPerSecond float64 `yaml:"max_messages_per_second"` // 0 for unlimited.
	MetricsEnabled       bool    `yaml:"metrics_enabled"`         // Serve /metrics next to /ws.
	UDPEnabled           bool    `yaml:"udp_enabled"`
	UDPTargetAddress     string  `yaml:"udp_target_address"`
	LogMessages          bool    `yaml:"log_messages"` // Attach a logging transport.
}

// Default returns the built-in configuration.
func Default() Config {
	a := analysis.DefaultConfig()
	return Config{
		Debug:    false,
		LogLevel: "info",
		Audio: AudioConfig{
			InputDevice:     -1,
			OutputDevice:    -1,
			SampleRate:      0,
			FramesPerBuffer: 512,
			LowLatency:      false,
			InputChannels:   1,
			Volume:          1,
			GateThreshold:   0,
			FrameDuration:   audio.DefaultFrameDuration,
		},
		Analysis: AnalysisConfig{
			TransformSize: a.TransformSize,
			Smoothing:     a.Smoothing,
			MinLevel:      a.MinLevel,
			MaxLevel:      a.MaxLevel,
			Window:        a.Window.String(),
		},
		Source: SourceConfig{
			Kind: audio.Idle.String(),
			Seed: audio.DefaultSyntheticSeed,
		},
		Recording: RecordingConfig{
			Enabled:   false,
			OutputDir: "./recordings",
		},
		Bridge: BridgeConfig{
			Interval: 16 * time.Millisecond,
		},
		Transport: TransportConfig{
			WebSocketEnabled:     true,
			WebSocketAddress:     "127.0.0.1:8080",
			MaxMessagesPerSecond: 0,
			MetricsEnabled:       true,
			UDPEnabled:           false,
			UDPTargetAddress:     "127.0.0.1:9090",
		},
	}
}

// LoadConfig loads configuration from a YAML file specified by path. If path
// is empty, DefaultPath is used when it exists and built-in defaults
// otherwise. Environment overrides are applied after the file, then the
// result is validated.
func LoadConfig(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		if _, err := os.Stat(DefaultPath); err == nil {
			path = DefaultPath
		}
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
		logger.Debugf("Loaded %s", path)
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// AnalysisConfig converts the analysis section.
func (c *Config) AnalysisConfig() (analysis.Config, error) {
	window, err := analysis.ParseWindowFunc(c.Analysis.Window)
	if err != nil {
		return analysis.Config{}, err
	}
	return analysis.Config{
		TransformSize: c.Analysis.TransformSize,
		Smoothing:     c.Analysis.Smoothing,
		MinLevel:      c.Analysis.MinLevel,
		MaxLevel:      c.Analysis.MaxLevel,
		Window:        window,
	}, nil
}

// SourceKind parses the configured startup source.
func (c *Config) SourceKind() (audio.SourceKind, error) {
	return audio.ParseSourceKind(c.Source.Kind)
}

// Validate reports every problem found, joined. Values are never coerced.
func (c *Config) Validate() error {
	var errs []error

	if _, ok := applog.ParseLevel(c.LogLevel); !ok {
		errs = append(errs, fmt.Errorf("log_level %q is not a known level", c.LogLevel))
	}

	if a, err := c.AnalysisConfig(); err != nil {
		errs = append(errs, err)
	} else if err := a.Validate(); err != nil {
		errs = append(errs, err)
	}

	if c.Audio.Volume < 0 || c.Audio.Volume > 1 {
		errs = append(errs, fmt.Errorf("audio.volume %v outside [0, 1]", c.Audio.Volume))
	}
	if c.Audio.GateThreshold < 0 || c.Audio.GateThreshold > 1 || math.IsNaN(c.Audio.GateThreshold) {
		errs = append(errs, fmt.Errorf("audio.gate_threshold %v is outside [0, 1]", c.Audio.GateThreshold))
	}
	if c.Audio.FrameDuration <= 0 {
		errs = append(errs, fmt.Errorf("audio.frame_duration must be positive"))
	}
	if c.Audio.InputChannels < 1 {
		errs = append(errs, fmt.Errorf("audio.input_channels must be at least 1"))
	}

	kind, err := c.SourceKind()
	switch {
	case err != nil:
		errs = append(errs, err)
	case kind == audio.File && c.Source.File == "":
		errs = append(errs, fmt.Errorf("source.file must be set for file sources"))
	case kind == audio.NetworkStream && c.Source.URL == "":
		errs = append(errs, fmt.Errorf("source.url must be set for stream sources"))
	}

	if c.Bridge.Interval <= 0 {
		errs = append(errs, fmt.Errorf("bridge.interval must be positive"))
	}

	if c.Transport.WebSocketEnabled && c.Transport.WebSocketAddress == "" {
		errs = append(errs, fmt.Errorf("transport.websocket_address must be set when the WebSocket server is enabled"))
	}
	if c.Transport.MaxMessagesPerSecond < 0 {
		errs = append(errs, fmt.Errorf("transport.max_messages_per_second is negative"))
	}
	if c.Transport.UDPEnabled && !strings.Contains(c.Transport.UDPTargetAddress, ":") {
		errs = append(errs, fmt.Errorf("transport.udp_target_address %q appears invalid (missing port?)", c.Transport.UDPTargetAddress))
	}

	if c.Recording.Enabled && c.Recording.OutputDir == "" {
		errs = append(errs, fmt.Errorf("recording.output_dir must be set when recording is enabled"))
	}

	return errors.Join(errs...)
}

// applyEnvOverrides applies ENV_* variables. Unparsable values are logged
// and ignored.
func (c *Config) applyEnvOverrides() {
	boolEnv("ENV_DEBUG", &c.Debug)
	stringEnv("ENV_LOG_LEVEL", &c.LogLevel)
	intEnv("ENV_TRANSFORM_SIZE", &c.Analysis.TransformSize)
	floatEnv("ENV_SMOOTHING", &c.Analysis.Smoothing)
	stringEnv("ENV_WS_ADDRESS", &c.Transport.WebSocketAddress)
	boolEnv("ENV_UDP_ENABLED", &c.Transport.UDPEnabled)
	stringEnv("ENV_UDP_TARGET_ADDRESS", &c.Transport.UDPTargetAddress)
	durationEnv("ENV_BRIDGE_INTERVAL", &c.Bridge.Interval)
}

func stringEnv(name string, dst *string) {
	if val, ok := os.LookupEnv(name); ok {
		*dst = val
		logger.Infof("Overriding from %s: %s", name, val)
	}
}

func boolEnv(name string, dst *bool) {
	if val, ok := os.LookupEnv(name); ok {
		b, err := strconv.ParseBool(val)
		if err != nil {
			logger.Warnf("Ignoring %s=%q: %v", name, val, err)
			return
		}
		*dst = b
		logger.Infof("Overriding from %s: %v", name, b)
	}
}

func intEnv(name string, dst *int) {
	if val, ok := os.LookupEnv(name); ok {
		n, err := strconv.Atoi(val)
		if err != nil {
			logger.Warnf("Ignoring %s=%q: %v", name, val, err)
			return
		}
		*dst = n
		logger.Infof("Overriding from %s: %d", name, n)
	}
}

func floatEnv(name string, dst *float64) {
	if val, ok := os.LookupEnv(name); ok {
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			logger.Warnf("Ignoring %s=%q: %v", name, val, err)
			return
		}
		*dst = f
		logger.Infof("Overriding from %s: %v", name, f)
	}
}

func durationEnv(name string, dst *time.Duration) {
	if val, ok := os.LookupEnv(name); ok {
		d, err := time.ParseDuration(val)
		if err != nil {
			logger.Warnf("Ignoring %s=%q: %v", name, val, err)
			return
		}
		*dst = d
		logger.Infof("Overriding from %s: %s", name, d)
	}
}
