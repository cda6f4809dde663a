// SPDX-License-Identifier: MIT
package hardware

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"testing"

	"audioviz/internal/audio"

	"github.com/gordonklaus/portaudio"
)

func setupPortAudio(t *testing.T) {
	t.Helper()
	if err := Initialize(); err != nil {
		t.Skipf("PortAudio unavailable: %v", err)
	}
	t.Cleanup(func() {
		if err := Terminate(); err != nil {
			t.Fatalf("Failed to terminate PortAudio: %v", err)
		}
	})
}

// fakeDevices replaces the device list for the duration of a test.
func fakeDevices(t *testing.T, infos ...*portaudio.DeviceInfo) {
	t.Helper()
	orig := paDevicesFunc
	t.Cleanup(func() { paDevicesFunc = orig })
	paDevicesFunc = func() ([]*portaudio.DeviceInfo, error) {
		return infos, nil
	}
}

var (
	testMic      = &portaudio.DeviceInfo{Name: "Test Mic", MaxInputChannels: 2, DefaultSampleRate: 48000}
	testSpeakers = &portaudio.DeviceInfo{Name: "Test Speakers", MaxOutputChannels: 2, DefaultSampleRate: 44100}
	testHeadset  = &portaudio.DeviceInfo{Name: "Test Headset", MaxInputChannels: 1, MaxOutputChannels: 2, DefaultSampleRate: 16000}
)

func TestHostDevices(t *testing.T) {
	fakeDevices(t, testMic, testSpeakers, testHeadset)

	devices, err := HostDevices()
	if err != nil {
		t.Fatalf("HostDevices error: %v", err)
	}
	if len(devices) != 3 {
		t.Fatalf("HostDevices() = %d devices, want 3", len(devices))
	}
	for i, d := range devices {
		if d.ID != i {
			t.Errorf("Device ID mismatch: got %d, want %d", d.ID, i)
		}
	}

	wantTypes := []string{"Input", "Output", "Input/Output"}
	for i, want := range wantTypes {
		if got := devices[i].Type(); got != want {
			t.Errorf("device %d Type() = %q, want %q", i, got, want)
		}
	}
}

func TestHostDevices_paDevicesError(t *testing.T) {
	orig := paDevicesFunc
	defer func() { paDevicesFunc = orig }()
	paDevicesFunc = func() ([]*portaudio.DeviceInfo, error) {
		return nil, fmt.Errorf("mock error")
	}

	_, err := HostDevices()
	if err == nil || !strings.Contains(err.Error(), "mock error") {
		t.Errorf("expected mock error, got %v", err)
	}
}

func TestInputDevice(t *testing.T) {
	fakeDevices(t, testMic, testSpeakers, testHeadset)

	tests := []struct {
		name   string
		id     int
		want   string
		substr string
	}{
		{"Valid input device", 0, "Test Mic", ""},
		{"Input/output device", 2, "Test Headset", ""},
		{"Negative ID", -2, "", "invalid device ID"},
		{"Too high ID", 13, "", "invalid device ID"},
		{"Non-input device", 1, "", "does not support input"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev, err := InputDevice(tt.id)
			if tt.substr == "" {
				if err != nil {
					t.Fatalf("InputDevice(%d) error: %v", tt.id, err)
				}
				if dev.Name != tt.want {
					t.Errorf("InputDevice(%d) = %q, want %q", tt.id, dev.Name, tt.want)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.substr) {
				t.Errorf("Error = %v, want substring %q", err, tt.substr)
			}
			if !errors.Is(err, audio.ErrDeviceUnavailable) {
				t.Errorf("Error = %v, want ErrDeviceUnavailable", err)
			}
		})
	}
}

func TestOutputDevice(t *testing.T) {
	fakeDevices(t, testMic, testSpeakers)

	if dev, err := OutputDevice(1); err != nil || dev.Name != "Test Speakers" {
		t.Errorf("OutputDevice(1) = %v, %v", dev, err)
	}
	if _, err := OutputDevice(0); err == nil || !strings.Contains(err.Error(), "does not support output") {
		t.Errorf("OutputDevice(0) error = %v", err)
	}
}

func TestInputDevice_paDefaultInputDeviceError(t *testing.T) {
	fakeDevices(t, testMic)

	orig := paLibDefaultInputDeviceFunc
	defer func() { paLibDefaultInputDeviceFunc = orig }()
	paLibDefaultInputDeviceFunc = func() (*portaudio.DeviceInfo, error) {
		return nil, fmt.Errorf("mock default input error")
	}

	_, err := InputDevice(DefaultDeviceID)
	if err == nil || !strings.Contains(err.Error(), "mock default input error") {
		t.Errorf("expected mock error, got %v", err)
	}
	if !errors.Is(err, audio.ErrDeviceUnavailable) {
		t.Errorf("expected ErrDeviceUnavailable, got %v", err)
	}
}

func TestListDevices(t *testing.T) {
	fakeDevices(t, testMic, testSpeakers)

	var buf bytes.Buffer
	if err := ListDevices(&buf); err != nil {
		t.Fatalf("ListDevices error: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"[0] Test Mic (Input)", "[1] Test Speakers (Output)", "48000 Hz"} {
		if !strings.Contains(out, want) {
			t.Errorf("ListDevices output missing %q:\n%s", want, out)
		}
	}
}

func TestErrorInitialize(t *testing.T) {
	orig := paLibInitialize
	defer func() { paLibInitialize = orig }()

	paLibInitialize = func() error { return nil }
	if err := Initialize(); err != nil {
		t.Errorf("expected nil, got %v", err)
	}

	paLibInitialize = func() error { return fmt.Errorf("mock init error") }
	if err := Initialize(); err == nil || !strings.Contains(err.Error(), "mock init error") {
		t.Errorf("expected mock init error, got %v", err)
	}
}

func TestErrorTerminate(t *testing.T) {
	orig := paLibTerminate
	defer func() { paLibTerminate = orig }()

	paLibTerminate = func() error { return nil }
	if err := Terminate(); err != nil {
		t.Errorf("expected nil, got %v", err)
	}

	paLibTerminate = func() error { return fmt.Errorf("mock term error") }
	if err := Terminate(); err == nil || !strings.Contains(err.Error(), "mock term error") {
		t.Errorf("expected mock term error, got %v", err)
	}
}

func TestNilDevices(t *testing.T) {
	orig := paLibDevicesFunc
	defer func() { paLibDevicesFunc = orig }()
	paLibDevicesFunc = func() ([]*portaudio.DeviceInfo, error) {
		return nil, nil
	}

	devices, err := paDevices()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if devices == nil {
		t.Errorf("expected empty slice, got nil")
	}
}

func TestMapError(t *testing.T) {
	tests := []struct {
		in   error
		want error
	}{
		{portaudio.UnanticipatedHostError, audio.ErrPermissionDenied},
		{portaudio.DeviceUnavailable, audio.ErrDeviceUnavailable},
		{portaudio.InvalidDevice, audio.ErrDeviceUnavailable},
		{fmt.Errorf("wrapped: %w", portaudio.UnanticipatedHostError), audio.ErrPermissionDenied},
		{errors.New("anything else"), audio.ErrDeviceUnavailable},
	}
	for _, tt := range tests {
		if got := mapError(tt.in); !errors.Is(got, tt.want) {
			t.Errorf("mapError(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
	if mapError(nil) != nil {
		t.Error("mapError(nil) != nil")
	}
}

func TestRealHostDevices(t *testing.T) {
	setupPortAudio(t)

	devices, err := HostDevices()
	if err != nil {
		t.Fatalf("HostDevices error: %v", err)
	}
	if len(devices) == 0 {
		t.Skip("No audio devices found on system")
	}
	for i, d := range devices {
		if d.Name == "" {
			t.Errorf("Device %d has empty name", i)
		}
	}
}
