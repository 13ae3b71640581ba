// Package ui is the terminal dashboard for one device, built on bubbletea.
//
// The model shows identity, power, the active source with its now-playing
// metadata, the volume, the state of the notification stream and the request
// cooldown. Snapshot changes arrive on the Events channel of Options; key
// presses turn into device commands that run as tea.Cmds so a slow device
// never blocks rendering. Each command result re-reads the client snapshot,
// which already carries the optimistic updates the client applies.
//
// # Key Bindings
//
//   - space/p: Play or pause, depending on the current state
//   - s: Stop
//   - n/right, b/left: Next and previous
//   - +/up, -/down: Volume up and down by the preference step
//   - m: Toggle mute
//   - o, S: Turn on, standby
//   - j: Join the active experience
//   - r: Refresh the snapshot
//   - l: Toggle the log tail
//   - T: Cycle theme (saved to prefs.toml)
//   - h/?: Toggle help
//   - q or Ctrl+C: Exit
package ui
