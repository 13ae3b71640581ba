package ui

import "github.com/charmbracelet/bubbles/key"

// keyMap defines all keyboard bindings for the application.
type keyMap struct {
	// Global
	Quit       key.Binding
	Help       key.Binding
	CycleTheme key.Binding
	ToggleLogs key.Binding
	Refresh    key.Binding

	// Playback
	PlayPause key.Binding
	Stop      key.Binding
	Next      key.Binding
	Prev      key.Binding

	// Volume
	VolumeUp   key.Binding
	VolumeDown key.Binding
	Mute       key.Binding

	// Power
	Standby key.Binding
	PowerOn key.Binding
	Join    key.Binding
}

// DefaultKeyMap returns the default key bindings.
func DefaultKeyMap() keyMap {
	return keyMap{
		Quit: key.NewBinding(
			key.WithKeys("ctrl+c", "q"),
			key.WithHelp("q", "Quit"),
		),
		Help: key.NewBinding(
			key.WithKeys("h", "?"),
			key.WithHelp("h/?", "Toggle help"),
		),
		CycleTheme: key.NewBinding(
			key.WithKeys("T"),
			key.WithHelp("T", "Cycle theme"),
		),
		ToggleLogs: key.NewBinding(
			key.WithKeys("l"),
			key.WithHelp("l", "Toggle logs"),
		),
		Refresh: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "Refresh"),
		),

		PlayPause: key.NewBinding(
			key.WithKeys(" ", "p"),
			key.WithHelp("space", "Play/pause"),
		),
		Stop: key.NewBinding(
			key.WithKeys("s"),
			key.WithHelp("s", "Stop"),
		),
		Next: key.NewBinding(
			key.WithKeys("n", "right"),
			key.WithHelp("n/right", "Next"),
		),
		Prev: key.NewBinding(
			key.WithKeys("b", "left"),
			key.WithHelp("b/left", "Previous"),
		),

		VolumeUp: key.NewBinding(
			key.WithKeys("+", "=", "up"),
			key.WithHelp("+/up", "Volume up"),
		),
		VolumeDown: key.NewBinding(
			key.WithKeys("-", "down"),
			key.WithHelp("-/down", "Volume down"),
		),
		Mute: key.NewBinding(
			key.WithKeys("m"),
			key.WithHelp("m", "Mute"),
		),

		Standby: key.NewBinding(
			key.WithKeys("S"),
			key.WithHelp("S", "Standby"),
		),
		PowerOn: key.NewBinding(
			key.WithKeys("o"),
			key.WithHelp("o", "Turn on"),
		),
		Join: key.NewBinding(
			key.WithKeys("j"),
			key.WithHelp("j", "Join experience"),
		),
	}
}

// ShortHelp returns key bindings for the short help view.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.PlayPause, k.VolumeUp, k.VolumeDown, k.Mute, k.Help, k.Quit}
}

// FullHelp returns key bindings for the full help view.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.PlayPause, k.Stop, k.Next, k.Prev},
		{k.VolumeUp, k.VolumeDown, k.Mute},
		{k.PowerOn, k.Standby, k.Join},
		{k.Refresh, k.ToggleLogs, k.CycleTheme, k.Help, k.Quit},
	}
}
