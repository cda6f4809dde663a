// SPDX-License-Identifier: MIT

// Package cmd defines the command line interface.
package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"audioviz/internal/app"
	"audioviz/internal/audio/hardware"
	"audioviz/internal/build"
	"audioviz/internal/config"
	applog "audioviz/internal/log"
	"audioviz/internal/tui"
)

// Runner starts the application with a resolved configuration. Replaced in
// tests.
type Runner func(ctx context.Context, cfg *config.Config, opts app.RunOptions) error

// flags holds values that override the configuration file when set.
type flags struct {
	configPath    string
	source        string
	file          string
	url           string
	transformSize int
	smoothing     float64
	minLevel      float64
	maxLevel      float64
	window        string
	debug         bool
	logLevel      string
	volume        float64
	inputDevice   int
	wsAddress     string
	udpTarget     string
	tui           bool
	record        string
}

// NewRootCommand builds the CLI. run is invoked by the root command.
func NewRootCommand(run Runner, stdout io.Writer) *cobra.Command {
	info := build.GetBuildInfo()
	f := &flags{}

	rootCmd := &cobra.Command{
		Use:           info.Name,
		Short:         info.Description,
		Version:       info.Version,
		SilenceErrors: true,
		SilenceUsage:  true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd:   true,
			DisableDescriptions: true,
			DisableNoDescFlag:   true,
			HiddenDefaultCmd:    true,
		},
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig(cmd, f)
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg, app.RunOptions{TUI: f.tui, Record: f.record})
		},
	}
	rootCmd.SetOut(stdout)
	rootCmd.SetHelpCommand(&cobra.Command{Hidden: true})

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&f.configPath, "config", "", "Path to a YAML config file (default: ./config.yaml when present)")
	pf.BoolVar(&f.debug, "debug", false, "Enable debug logging")
	pf.StringVar(&f.logLevel, "log-level", "", "Log level: debug, info, warn, error")

	rf := rootCmd.Flags()
	rf.StringVar(&f.source, "source", "", "Source attached at startup: idle, mic, file, stream, synthetic")
	rf.StringVar(&f.file, "file", "", "Audio file for the file source (wav, aiff, mp3, ogg, flac)")
	rf.StringVar(&f.url, "url", "", "URL for the stream source")
	rf.IntVar(&f.transformSize, "transform-size", 0, "FFT size, a power of two in [32, 32768]")
	rf.Float64Var(&f.smoothing, "smoothing", 0, "Temporal smoothing in [0, 1]")
	rf.Float64Var(&f.minLevel, "min-level", 0, "dB mapped to 0")
	rf.Float64Var(&f.maxLevel, "max-level", 0, "dB mapped to 255")
	rf.StringVar(&f.window, "window", "", "FFT window function")
	rf.Float64Var(&f.volume, "volume", 0, "Initial playback volume in [0, 1]")
	rf.IntVarP(&f.inputDevice, "device", "d", 0, "Input device ID. Use 'list' to see available devices.")
	rf.StringVar(&f.wsAddress, "ws-address", "", "WebSocket listen address")
	rf.StringVar(&f.udpTarget, "udp", "", "Send UDP frames to host:port")
	rf.BoolVar(&f.tui, "tui", false, "Show the terminal control panel")
	rf.StringVarP(&f.record, "record", "r", "", "Record the active source to this WAV file")

	rootCmd.AddCommand(newListCommand(stdout), newVersionCommand(stdout))
	return rootCmd
}

func newListCommand(stdout io.Writer) *cobra.Command {
	var interactive bool
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List available audio devices",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := hardware.Initialize(); err != nil {
				return err
			}
			defer hardware.Terminate()

			if !interactive {
				return hardware.ListDevices(stdout)
			}
			sel, ok, err := tui.PickDevice(hardware.HostDevices)
			if err != nil || !ok {
				return err
			}
			fmt.Fprintf(stdout, "--device %d  # %s at %.0f Hz (audio.sample_rate: %.0f)\n",
				sel.Device.ID, sel.Device.Name, sel.SampleRate, sel.SampleRate)
			return nil
		},
	}
	listCmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "Pick a device interactively")
	return listCmd
}

func newVersionCommand(stdout io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(stdout, build.GetBuildInfo())
		},
	}
}

// resolveConfig loads the configuration file and applies flags the user
// set explicitly.
func resolveConfig(cmd *cobra.Command, f *flags) (*config.Config, error) {
	cfg, err := config.LoadConfig(f.configPath)
	if err != nil {
		return nil, err
	}

	changed := cmd.Flags().Changed
	if changed("debug") {
		cfg.Debug = f.debug
	}
	if changed("log-level") {
		cfg.LogLevel = f.logLevel
	}
	if changed("source") {
		cfg.Source.Kind = f.source
	}
	if changed("file") {
		cfg.Source.File = f.file
		if !changed("source") {
			cfg.Source.Kind = "file"
		}
	}
	if changed("url") {
		cfg.Source.URL = f.url
		if !changed("source") {
			cfg.Source.Kind = "stream"
		}
	}
	if changed("transform-size") {
		cfg.Analysis.TransformSize = f.transformSize
	}
	if changed("smoothing") {
		cfg.Analysis.Smoothing = f.smoothing
	}
	if changed("min-level") {
		cfg.Analysis.MinLevel = f.minLevel
	}
	if changed("max-level") {
		cfg.Analysis.MaxLevel = f.maxLevel
	}
	if changed("window") {
		cfg.Analysis.Window = f.window
	}
	if changed("volume") {
		cfg.Audio.Volume = f.volume
	}
	if changed("device") {
		cfg.Audio.InputDevice = f.inputDevice
	}
	if changed("ws-address") {
		cfg.Transport.WebSocketEnabled = true
		cfg.Transport.WebSocketAddress = f.wsAddress
	}
	if changed("udp") {
		cfg.Transport.UDPEnabled = true
		cfg.Transport.UDPTargetAddress = f.udpTarget
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if err := applog.Configure(cfg.LogLevel, cfg.Debug); err != nil {
		return nil, err
	}
	return cfg, nil
}
