// SPDX-License-Identifier: MIT
package tui

import "github.com/charmbracelet/bubbles/key"

// panelKeys are the control panel bindings.
type panelKeys struct {
	Microphone key.Binding
	Synthetic  key.Binding
	File       key.Binding
	Stream     key.Binding
	PlayPause  key.Binding
	Stop       key.Binding
	VolumeUp   key.Binding
	VolumeDown key.Binding
	Record     key.Binding
	Spectrum   key.Binding
	Waveform   key.Binding
	Quit       key.Binding
}

func defaultPanelKeys() panelKeys {
	return panelKeys{
		Microphone: key.NewBinding(key.WithKeys("m"), key.WithHelp("m", "mic")),
		Synthetic:  key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "synthetic")),
		File:       key.NewBinding(key.WithKeys("f"), key.WithHelp("f", "file")),
		Stream:     key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "stream")),
		PlayPause:  key.NewBinding(key.WithKeys("p", " "), key.WithHelp("p", "play/pause")),
		Stop:       key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "stop")),
		VolumeUp:   key.NewBinding(key.WithKeys("+", "="), key.WithHelp("+", "vol up")),
		VolumeDown: key.NewBinding(key.WithKeys("-"), key.WithHelp("-", "vol down")),
		Record:     key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "record")),
		Spectrum:   key.NewBinding(key.WithKeys("1"), key.WithHelp("1", "spectrum")),
		Waveform:   key.NewBinding(key.WithKeys("2"), key.WithHelp("2", "waveform")),
		Quit:       key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

// ShortHelp implements help.KeyMap.
func (k panelKeys) ShortHelp() []key.Binding {
	return []key.Binding{k.Microphone, k.Synthetic, k.File, k.Stream, k.PlayPause, k.Stop, k.Quit}
}

// FullHelp implements help.KeyMap.
func (k panelKeys) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Microphone, k.Synthetic, k.File, k.Stream},
		{k.PlayPause, k.Stop, k.VolumeUp, k.VolumeDown},
		{k.Record, k.Spectrum, k.Waveform, k.Quit},
	}
}
