// Package config loads beoplay's TOML configuration.
//
// # Resolution Order
//
//  1. Defaults (see Default)
//  2. The config file: the explicit path, or ~/.config/beoplay/config.toml
//  3. Environment overrides (BEOPLAY_HOST, BEOPLAY_LOG_LEVEL, BEOPLAY_LOG_FILE,
//     BEOPLAY_MQTT_BROKER, BEOPLAY_BRIDGE_LISTEN)
//
// Command-line flags are applied on top by cmd/beoplay. A missing file is not
// an error. Empty or whitespace-only values keep the default.
//
// # TOML Format
//
//	host = "192.168.1.40"
//	timeout = "5s"
//	cooldown = 5
//
//	[log]
//	level = "info"
//	format = "console"
//	file = "~/.local/state/beoplay/beoplay.log"
//
//	[watch]
//	reconnect_delay = "1s"
//	backoff_min = "2s"
//	backoff_max = "60s"
//	breaker_failures = 3
//	breaker_timeout = "30s"
//
//	[mqtt]
//	broker = "tcp://localhost:1883"
//	topic = "beoplay/state"
//	client_id = "beoplay"
//
//	[bridge]
//	listen = "127.0.0.1:8088"
//	pidfile = "~/.local/state/beoplay/bridge.pid"   # optional
//	cors_origins = ["http://dashboard.local"]
//	rate_limit = 120                                 # commands per minute per IP, 0 = off
//
// Durations use time.ParseDuration syntax. Paths starting with ~ are
// expanded to the home directory.
//
// # Errors
//
// Load fails on unreadable files, TOML syntax errors, unparseable durations
// and settings that do not Validate. All invalid settings are reported
// together. A missing host is only an error for commands that talk to a
// device (RequireHost).
package config
