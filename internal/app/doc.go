// Package app is the composition layer behind the beoplay command.
//
// # Overview
//
// Everything here wires packages together: the device client, the
// notification stream watcher, the HTTP bridge, the MQTT publisher and the
// TUI. Nothing in this package speaks the device protocol itself.
//
// # Components
//
//   - cli.go: one-shot subcommands (volume, mute, source, remote, queue, ...)
//     dispatched by Exec against a beoplay.Device
//   - watcher.go: the reconnect loop around Client.Listen, with a gobreaker
//     circuit breaker and subscriber fan-out
//   - watch.go: `beoplay watch`, events as JSON lines on stdout
//   - bridge.go: `beoplay bridge`, a suture supervisor over the watcher, the
//     HTTP server and the optional MQTT publisher, guarded by an optional
//     pid file
//   - tui.go: `beoplay tui`, the watcher and standby poller feeding ui.Run
//   - poller.go: background standby polling with capped backoff
//
// # Stream Lifecycle
//
//	┌──────────────┐
//	│ Watcher.Serve│
//	└──────┬───────┘
//	       │
//	       ├─────> breaker.Execute(session)
//	       │         ├─> Refresh()   failure is logged, stream still opens
//	       │         └─> Listen()    merges, publishes to subscribers
//	       │
//	       ├─────> ended:    wait ReconnectDelay
//	       ├─────> failed:   wait backoff, doubling to BackoffMax
//	       └─────> rejected: breaker open, wait until it half-opens
//
// Subscribers get a buffered channel. A subscriber that falls behind loses
// events rather than stalling the stream; drops are counted in
// beoplay_notifications_dropped_total{reason="slow_subscriber"}.
//
// # Error Handling
//
// Exec wraps ErrUsage for command lines that do not parse; main maps it to
// exit status 2. Device errors are returned unchanged so callers can use
// errors.Is and errors.As against the beoplay error types.
package app
