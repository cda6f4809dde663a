// SPDX-License-Identifier: MIT

// Package tui holds the terminal interfaces: the control panel that drives
// the source state machine and the interactive device picker.
package tui

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"audioviz/internal/analysis"
	"audioviz/internal/audio"
	"audioviz/internal/bridge"
	"audioviz/internal/normalize"
)

// Renderer element ids used in toggle messages.
const (
	ElementSpectrum = "spectrum"
	ElementWaveform = "waveform"
)

const (
	volumeStep        = 0.1
	transitionTimeout = 30 * time.Second
)

var (
	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF5F5F"))
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#767676"))
	recStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF5F5F")).Bold(true)
	sparkRunes = []rune("▁▂▃▄▅▆▇█")
)

// Controller is the part of the engine the panel drives.
type Controller interface {
	State() audio.SourceKind
	AttachMicrophone(ctx context.Context) error
	AttachFile(ctx context.Context, data []byte) error
	AttachNetworkStream(ctx context.Context, url string) error
	AttachSynthetic() error
	Stop() error
	Play() error
	Pause() error
	Position() (audio.PlaybackPosition, bool)
	Elapsed() (time.Duration, bool)
	SetVolume(v float64) float64
	Volume() float64
	StartRecording(path string) error
	StopRecording() error
	Recording() bool
	Analyser() *analysis.Device
}

// Toggler shows or hides renderer elements.
type Toggler interface {
	Toggle(element string, visible bool)
}

// PanelOptions configures the control panel.
type PanelOptions struct {
	Controller Controller
	Frames     <-chan bridge.SampleFrame
	Toggler    Toggler // nil disables the element toggles
	FilePath   string  // Played by the file key
	StreamURL  string  // Opened by the stream key
	RecordDir  string  // Recordings are written here
	Now        func() time.Time
}

type frameMsg bridge.SampleFrame

type transitionMsg struct {
	op  string
	err error
}

// PanelModel is the Bubble Tea model of the control panel.
type PanelModel struct {
	opts     PanelOptions
	keys     panelKeys
	help     help.Model
	volume   progress.Model
	width    int
	frame    bridge.SampleFrame
	spectrum []float64
	bands    []analysis.BandLevel
	visible  map[string]bool
	pending  string
	status   string
	err      error
}

// NewPanelModel creates the control panel.
func NewPanelModel(opts PanelOptions) PanelModel {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return PanelModel{
		opts:    opts,
		keys:    defaultPanelKeys(),
		help:    help.New(),
		volume:  progress.New(progress.WithDefaultGradient(), progress.WithoutPercentage(), progress.WithWidth(30)),
		width:   80,
		visible: map[string]bool{ElementSpectrum: true, ElementWaveform: true},
	}
}

// Init starts listening for frames.
func (m PanelModel) Init() tea.Cmd {
	return m.waitForFrame()
}

func (m PanelModel) waitForFrame() tea.Cmd {
	if m.opts.Frames == nil {
		return nil
	}
	frames := m.opts.Frames
	return func() tea.Msg {
		frame, ok := <-frames
		if !ok {
			return nil
		}
		return frameMsg(frame)
	}
}

// transition runs op off the UI goroutine.
func transition(op string, fn func(ctx context.Context) error) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), transitionTimeout)
		defer cancel()
		return transitionMsg{op: op, err: fn(ctx)}
	}
}

func (m PanelModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.help.Width = msg.Width
		return m, nil

	case frameMsg:
		m.applyFrame(bridge.SampleFrame(msg))
		return m, m.waitForFrame()

	case transitionMsg:
		if m.pending == msg.op {
			m.pending = ""
		}
		m.err = msg.err
		if msg.err == nil {
			m.status = msg.op + " ok"
		} else if errors.Is(msg.err, audio.ErrSuperseded) {
			// A later transition won; its own result will follow.
			m.err = nil
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m PanelModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	c := m.opts.Controller
	m.err = nil

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Microphone):
		m.pending = "microphone"
		return m, transition(m.pending, c.AttachMicrophone)

	case key.Matches(msg, m.keys.Synthetic):
		m.pending = "synthetic"
		return m, transition(m.pending, func(context.Context) error { return c.AttachSynthetic() })

	case key.Matches(msg, m.keys.File):
		if m.opts.FilePath == "" {
			m.err = fmt.Errorf("no file configured (--file)")
			return m, nil
		}
		m.pending = "file"
		path := m.opts.FilePath
		return m, transition(m.pending, func(ctx context.Context) error {
			data, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			return c.AttachFile(ctx, data)
		})

	case key.Matches(msg, m.keys.Stream):
		if m.opts.StreamURL == "" {
			m.err = fmt.Errorf("no stream configured (--url)")
			return m, nil
		}
		m.pending = "stream"
		url := m.opts.StreamURL
		return m, transition(m.pending, func(ctx context.Context) error {
			if err := c.AttachNetworkStream(ctx, url); err != nil {
				return err
			}
			return c.Play()
		})

	case key.Matches(msg, m.keys.PlayPause):
		pos, ok := c.Position()
		if ok && pos.Playing {
			m.err = c.Pause()
		} else {
			m.err = c.Play()
		}

	case key.Matches(msg, m.keys.Stop):
		m.pending = ""
		m.err = c.Stop()
		m.frame = bridge.SampleFrame{}
		m.bands = nil

	case key.Matches(msg, m.keys.VolumeUp):
		c.SetVolume(c.Volume() + volumeStep)

	case key.Matches(msg, m.keys.VolumeDown):
		c.SetVolume(c.Volume() - volumeStep)

	case key.Matches(msg, m.keys.Record):
		m.err = m.toggleRecording()

	case key.Matches(msg, m.keys.Spectrum):
		m.toggle(ElementSpectrum)

	case key.Matches(msg, m.keys.Waveform):
		m.toggle(ElementWaveform)
	}
	return m, nil
}

func (m *PanelModel) toggle(element string) {
	m.visible[element] = !m.visible[element]
	if m.opts.Toggler != nil {
		m.opts.Toggler.Toggle(element, m.visible[element])
	}
}

func (m *PanelModel) toggleRecording() error {
	c := m.opts.Controller
	if c.Recording() {
		if err := c.StopRecording(); err != nil {
			return err
		}
		m.status = "recording saved"
		return nil
	}
	if m.opts.RecordDir == "" {
		return fmt.Errorf("no recording directory configured")
	}
	if err := os.MkdirAll(m.opts.RecordDir, 0o755); err != nil {
		return fmt.Errorf("failed to create recording directory: %w", err)
	}
	path := filepath.Join(m.opts.RecordDir, RecordingName(m.opts.Now()))
	if err := c.StartRecording(path); err != nil {
		return err
	}
	m.status = "recording to " + path
	return nil
}

// RecordingName is the file name used for a recording started at t.
func RecordingName(t time.Time) string {
	return "recording-" + t.UTC().Format("02-01-2006-150405") + ".wav"
}

func (m *PanelModel) applyFrame(frame bridge.SampleFrame) {
	m.frame = frame
	dev := m.opts.Controller.Analyser()
	if dev == nil {
		return
	}
	cfg := dev.Config()
	m.spectrum = normalize.DecibelsInto(m.spectrum, frame.Frequency, cfg.Levels())
	m.bands = analysis.Bands(m.bands, m.spectrum, dev.SampleRate(), cfg.TransformSize, analysis.DefaultBands)
}

// View renders the panel.
func (m PanelModel) View() string {
	c := m.opts.Controller
	var sb strings.Builder

	sb.WriteString(titleStyle.Render("Audio Visualizer"))
	sb.WriteString("\n\n")

	state := c.State()
	line := "Source: " + highlightStyle.Render(state.String())
	if elapsed, ok := c.Elapsed(); ok {
		icon := "⏸"
		if pos, _ := c.Position(); pos.Playing {
			icon = "▶"
		}
		line += fmt.Sprintf("  %s %s", icon, formatElapsed(elapsed))
	}
	if m.pending != "" {
		line += dimStyle.Render("  (attaching " + m.pending + "...)")
	}
	if c.Recording() {
		line += "  " + recStyle.Render("● REC")
	}
	sb.WriteString(line + "\n")

	vol := c.Volume()
	volLine := fmt.Sprintf("Volume: %s %3.0f%%", m.volume.ViewAs(vol), vol*100)
	if state == audio.Microphone {
		volLine += dimStyle.Render("  (microphone is never played back)")
	}
	sb.WriteString(volLine + "\n\n")

	if state == audio.Idle || m.frame.Frequency == nil {
		sb.WriteString(dimStyle.Render("no data") + "\n")
	} else {
		width := max(m.width-2, 8)
		if m.visible[ElementSpectrum] {
			sb.WriteString(Sparkline(m.frame.Frequency, width) + "\n")
		}
		if m.visible[ElementWaveform] {
			sb.WriteString(Sparkline(m.frame.TimeDomain, width) + "\n")
		}
		sb.WriteString("\n")
		for _, b := range m.bands {
			sb.WriteString(fmt.Sprintf("%-8s %s %7.1f dB\n", b.Name, bandBar(b.Decibel, 20), b.Decibel))
		}
	}

	sb.WriteString("\n")
	if m.err != nil {
		sb.WriteString(errorStyle.Render("Error: "+m.err.Error()) + "\n")
	} else if m.status != "" {
		sb.WriteString(infoStyle.Render(m.status) + "\n")
	}
	sb.WriteString(m.help.View(m.keys))
	return sb.String()
}

// Sparkline downsamples values to width columns, taking the peak of each
// column.
func Sparkline(values []byte, width int) string {
	if len(values) == 0 || width <= 0 {
		return ""
	}
	if width > len(values) {
		width = len(values)
	}
	out := make([]rune, width)
	for col := range width {
		lo := col * len(values) / width
		hi := (col + 1) * len(values) / width
		var peak byte
		for _, v := range values[lo:hi] {
			peak = max(peak, v)
		}
		out[col] = sparkRunes[int(peak)*len(sparkRunes)/256]
	}
	return string(out)
}

// bandBar draws a dB level over the default normalization window.
func bandBar(db float64, width int) string {
	l := normalize.DefaultLevels()
	filled := int(normalize.Frequency(db, l)) * width / 255
	return highlightStyle.Render(strings.Repeat("█", filled)) + dimStyle.Render(strings.Repeat("░", width-filled))
}

func formatElapsed(d time.Duration) string {
	d = d.Round(time.Second)
	return fmt.Sprintf("%02d:%02d", int(d.Minutes()), int(d.Seconds())%60)
}

// RunPanel runs the control panel until the user quits or ctx is cancelled.
func RunPanel(ctx context.Context, opts PanelOptions) error {
	p := tea.NewProgram(NewPanelModel(opts), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
