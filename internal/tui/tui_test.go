// SPDX-License-Identifier: MIT
package tui

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"audioviz/internal/analysis"
	"audioviz/internal/audio"
	"audioviz/internal/audio/hardware"
	"audioviz/internal/bridge"
	"audioviz/internal/testutil"
)

type fakeController struct {
	state     audio.SourceKind
	calls     []string
	volume    float64
	position  audio.PlaybackPosition
	recording string
	attachErr error
	analyser  *analysis.Device
}

func (f *fakeController) State() audio.SourceKind { return f.state }

func (f *fakeController) AttachMicrophone(context.Context) error {
	f.calls = append(f.calls, "mic")
	if f.attachErr != nil {
		return f.attachErr
	}
	f.state = audio.Microphone
	return nil
}

func (f *fakeController) AttachFile(_ context.Context, data []byte) error {
	f.calls = append(f.calls, "file:"+string(data))
	f.state = audio.File
	return nil
}

func (f *fakeController) AttachNetworkStream(_ context.Context, url string) error {
	f.calls = append(f.calls, "stream:"+url)
	f.state = audio.NetworkStream
	return nil
}

func (f *fakeController) AttachSynthetic() error {
	f.calls = append(f.calls, "synthetic")
	f.state = audio.Synthetic
	return nil
}

func (f *fakeController) Stop() error {
	f.calls = append(f.calls, "stop")
	f.state = audio.Idle
	return nil
}

func (f *fakeController) Play() error {
	f.calls = append(f.calls, "play")
	f.position.Playing = true
	return nil
}

func (f *fakeController) Pause() error {
	f.calls = append(f.calls, "pause")
	f.position.Playing = false
	return nil
}

func (f *fakeController) Position() (audio.PlaybackPosition, bool) {
	return f.position, f.state.Pausable()
}

func (f *fakeController) Elapsed() (time.Duration, bool) {
	if !f.state.Pausable() {
		return 0, false
	}
	return 75 * time.Second, true
}

func (f *fakeController) SetVolume(v float64) float64 {
	f.volume = min(max(v, 0), 1)
	return f.volume
}

func (f *fakeController) Volume() float64 { return f.volume }

func (f *fakeController) StartRecording(path string) error {
	f.recording = path
	return nil
}

func (f *fakeController) StopRecording() error {
	f.recording = ""
	return nil
}

func (f *fakeController) Recording() bool { return f.recording != "" }

func (f *fakeController) Analyser() *analysis.Device { return f.analyser }

type toggleRecorder struct {
	toggles []bridge.ToggleMessage
}

func (r *toggleRecorder) Toggle(element string, visible bool) {
	r.toggles = append(r.toggles, bridge.NewToggle(element, visible))
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

// press sends a key and runs any resulting command once, feeding its
// message back into the model.
func press(t *testing.T, m PanelModel, msg tea.KeyMsg) PanelModel {
	t.Helper()
	next, cmd := m.Update(msg)
	m = next.(PanelModel)
	if cmd != nil {
		if out := cmd(); out != nil {
			if _, quit := out.(tea.QuitMsg); !quit {
				next, _ = m.Update(out)
				m = next.(PanelModel)
			}
		}
	}
	return m
}

func TestPanelIdleShowsNoData(t *testing.T) {
	m := NewPanelModel(PanelOptions{Controller: &fakeController{volume: 1}})
	view := m.View()
	assert.Contains(t, view, "idle")
	assert.Contains(t, view, "no data")
}

func TestPanelTransitions(t *testing.T) {
	c := &fakeController{volume: 1}
	m := NewPanelModel(PanelOptions{Controller: c, StreamURL: "http://radio/live"})

	m = press(t, m, runes("s"))
	assert.Equal(t, audio.Synthetic, c.State())
	assert.Contains(t, m.View(), "synthetic ok")

	m = press(t, m, runes("n"))
	assert.Equal(t, []string{"synthetic", "stream:http://radio/live", "play"}, c.calls)
	assert.Contains(t, m.View(), "01:15")

	m = press(t, m, runes("p"))
	assert.False(t, c.position.Playing)
	m = press(t, m, runes("p"))
	assert.True(t, c.position.Playing)

	m = press(t, m, runes("x"))
	assert.Equal(t, audio.Idle, c.State())
	assert.Contains(t, m.View(), "no data")
}

func TestPanelFileKey(t *testing.T) {
	c := &fakeController{volume: 1}
	m := NewPanelModel(PanelOptions{Controller: c})
	m = press(t, m, runes("f"))
	assert.Contains(t, m.View(), "no file configured")
	assert.Empty(t, c.calls)

	path := filepath.Join(t.TempDir(), "song.wav")
	require.NoError(t, os.WriteFile(path, []byte("RIFF"), 0o644))
	m = NewPanelModel(PanelOptions{Controller: c, FilePath: path})
	press(t, m, runes("f"))
	assert.Equal(t, []string{"file:RIFF"}, c.calls)
}

func TestPanelShowsAttachError(t *testing.T) {
	c := &fakeController{volume: 1, attachErr: audio.ErrPermissionDenied}
	m := NewPanelModel(PanelOptions{Controller: c})
	m = press(t, m, runes("m"))
	assert.Contains(t, m.View(), audio.ErrPermissionDenied.Error())
	assert.Equal(t, audio.Idle, c.State())
}

func TestPanelHidesSupersededError(t *testing.T) {
	m := NewPanelModel(PanelOptions{Controller: &fakeController{volume: 1}})
	next, _ := m.Update(transitionMsg{op: "microphone", err: audio.ErrSuperseded})
	assert.NotContains(t, next.View(), "Error")
}

func TestPanelVolume(t *testing.T) {
	c := &fakeController{volume: 0.5}
	m := NewPanelModel(PanelOptions{Controller: c})
	m = press(t, m, runes("+"))
	assert.InDelta(t, 0.6, c.volume, 1e-9)
	for range 10 {
		m = press(t, m, runes("-"))
	}
	assert.Equal(t, 0.0, c.volume)
	assert.Contains(t, m.View(), "0%")
}

func TestPanelToggles(t *testing.T) {
	rec := &toggleRecorder{}
	m := NewPanelModel(PanelOptions{Controller: &fakeController{volume: 1}, Toggler: rec})
	m = press(t, m, runes("1"))
	m = press(t, m, runes("2"))
	press(t, m, runes("1"))
	assert.Equal(t, []bridge.ToggleMessage{
		bridge.NewToggle(ElementSpectrum, false),
		bridge.NewToggle(ElementWaveform, false),
		bridge.NewToggle(ElementSpectrum, true),
	}, rec.toggles)
}

func TestPanelRecording(t *testing.T) {
	c := &fakeController{volume: 1, state: audio.Synthetic}
	dir := filepath.Join(t.TempDir(), "rec")
	clock := testutil.NewFakeClock()
	m := NewPanelModel(PanelOptions{Controller: c, RecordDir: dir, Now: clock.Now})

	m = press(t, m, runes("r"))
	assert.Equal(t, filepath.Join(dir, RecordingName(clock.Now())), c.recording)
	assert.DirExists(t, dir)
	assert.Contains(t, m.View(), "REC")

	m = press(t, m, runes("r"))
	assert.False(t, c.Recording())
	assert.Contains(t, m.View(), "recording saved")
}

func TestPanelFrameRendersBands(t *testing.T) {
	cfg := analysis.DefaultConfig()
	cfg.TransformSize = 1024
	dev, err := analysis.New(cfg)
	require.NoError(t, err)
	in, err := dev.Attach("tui", 44100)
	require.NoError(t, err)
	in.Write(testutil.GenerateSineWave(1024, 44100, 1000), 1)

	c := &fakeController{volume: 1, state: audio.Synthetic, analyser: dev}
	b := bridge.New(bridge.ProviderFunc(func() (bridge.Sampler, bool) { return dev, true }), bridge.Options{})
	sub := b.Subscribe("tui")
	_, ok := b.Tick()
	require.True(t, ok)

	m := NewPanelModel(PanelOptions{Controller: c, Frames: sub.Frames()})
	msg := m.Init()()
	next, cmd := m.Update(msg)
	assert.NotNil(t, cmd)
	m = next.(PanelModel)

	require.Len(t, m.bands, len(analysis.DefaultBands))
	// The 1 kHz tone lands in the mid band.
	loudest := m.bands[0]
	for _, band := range m.bands {
		if band.Decibel > loudest.Decibel {
			loudest = band
		}
	}
	assert.Equal(t, "mid", loudest.Name)

	view := m.View()
	assert.NotContains(t, view, "no data")
	assert.Contains(t, view, "treble")
}

func TestPanelQuit(t *testing.T) {
	m := NewPanelModel(PanelOptions{Controller: &fakeController{}})
	_, cmd := m.Update(runes("q"))
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func TestSparkline(t *testing.T) {
	assert.Equal(t, "", Sparkline(nil, 10))
	assert.Equal(t, "▁█", Sparkline([]byte{0, 255}, 10))
	assert.Equal(t, "▁▅", Sparkline([]byte{0, 0, 128, 10}, 2))
	assert.Equal(t, 16, len([]rune(Sparkline(make([]byte, 512), 16))))
}

func TestRecordingName(t *testing.T) {
	ts := time.Date(2025, 4, 13, 9, 5, 7, 0, time.UTC)
	assert.Equal(t, "recording-13-04-2025-090507.wav", RecordingName(ts))
}

func TestFormatElapsed(t *testing.T) {
	assert.Equal(t, "00:00", formatElapsed(0))
	assert.Equal(t, "03:05", formatElapsed(185*time.Second+400*time.Millisecond))
}

func TestDeviceListSelection(t *testing.T) {
	devices := []hardware.Device{
		{ID: 0, Name: "Built-in Mic", HostAPI: "Core Audio", MaxInputChannels: 1, DefaultSampleRate: 44100},
		{ID: 1, Name: "USB Interface", HostAPI: "Core Audio", MaxInputChannels: 2, MaxOutputChannels: 2, DefaultSampleRate: 48000},
	}
	m := NewDeviceListModel(func() ([]hardware.Device, error) { return devices, nil })

	update := func(msg tea.Msg) tea.Cmd {
		next, cmd := m.Update(msg)
		m = next.(DeviceListModel)
		return cmd
	}

	update(tea.WindowSizeMsg{Width: 80, Height: 30})
	update(m.Init()())
	assert.Contains(t, m.View(), "USB Interface (Input/Output, Core Audio)")

	update(tea.KeyMsg{Type: tea.KeyDown})
	update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.Contains(t, m.View(), "Configure Device: USB Interface")
	assert.Equal(t, 48000.0, m.selectedSampleRate)

	update(tea.KeyMsg{Type: tea.KeyDown})
	cmd := update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)

	sel, ok := m.Selection()
	require.True(t, ok)
	assert.Equal(t, 1, sel.Device.ID)
	assert.Equal(t, 88200.0, sel.SampleRate)
}

func TestDeviceListError(t *testing.T) {
	m := NewDeviceListModel(func() ([]hardware.Device, error) { return nil, errors.New("no host") })
	next, _ := m.Update(tea.WindowSizeMsg{Width: 80, Height: 30})
	next, _ = next.Update(m.Init()())
	assert.True(t, strings.Contains(next.View(), "no host"))

	_, sel := next.(DeviceListModel).Selection()
	assert.False(t, sel)
}
