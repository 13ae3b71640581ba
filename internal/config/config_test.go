package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{EnvHost, EnvLogLevel, EnvLogFile, EnvMQTTBroker, EnvBridgeListen} {
		t.Setenv(key, "")
	}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestLoad_MissingConfigFallsBackToDefaults(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	clearEnv(t)

	cfg, err := Load(filepath.Join(home, "does-not-exist.toml"))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Host != "" || cfg.Timeout != defaultTimeout || cfg.Cooldown != defaultCooldown {
		t.Fatalf("top-level = %q %s %d", cfg.Host, cfg.Timeout, cfg.Cooldown)
	}
	wantLog, err := expandPath(defaultLogFile)
	if err != nil {
		t.Fatalf("expandPath(defaultLogFile) returned error: %v", err)
	}
	if cfg.Log.File != wantLog || cfg.Log.FileExplicit {
		t.Fatalf("Log.File = %q (explicit %v), want %q", cfg.Log.File, cfg.Log.FileExplicit, wantLog)
	}
	if cfg.Watch.BreakerFailures != defaultBreakerFailures || cfg.Watch.BackoffMax != defaultBackoffMax {
		t.Fatalf("Watch = %#v", cfg.Watch)
	}
	if cfg.Bridge.Listen != defaultBridgeListen || cfg.Bridge.RateLimit != defaultBridgeRateLimit || cfg.MQTT.Broker != "" {
		t.Fatalf("Bridge/MQTT = %#v %#v", cfg.Bridge, cfg.MQTT)
	}
	if err := cfg.RequireHost(); err == nil {
		t.Fatalf("RequireHost returned nil with no host")
	}
}

func TestLoad_ParsesAndTrimsConfig(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	clearEnv(t)

	path := writeConfig(t, `
host = "  192.168.1.40  "
timeout = "2s"
cooldown = 0

[log]
level = "debug"
format = "json"
file = "  ~/logs/beo.log  "

[watch]
reconnect_delay = "500ms"
backoff_min = "1s"
backoff_max = "10s"
breaker_failures = 5
breaker_timeout = "1m"

[mqtt]
broker = "tcp://broker:1883"
topic = "home/speaker"
username = "beo"
password = " secret "

[bridge]
listen = ":9000"
pidfile = "~/run/beoplay.pid"
cors_origins = [" http://dash.local ", ""]
rate_limit = 0
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Host != "192.168.1.40" || cfg.Timeout != 2*time.Second || cfg.Cooldown != 0 {
		t.Fatalf("top-level = %q %s %d", cfg.Host, cfg.Timeout, cfg.Cooldown)
	}
	if cfg.Log.Level != "debug" || cfg.Log.Format != "json" {
		t.Fatalf("Log = %#v", cfg.Log)
	}
	if !strings.HasPrefix(cfg.Log.File, home) || !cfg.Log.FileExplicit {
		t.Fatalf("Log.File = %q, want it under HOME %q", cfg.Log.File, home)
	}
	want := Watch{
		ReconnectDelay:  500 * time.Millisecond,
		BackoffMin:      time.Second,
		BackoffMax:      10 * time.Second,
		BreakerFailures: 5,
		BreakerTimeout:  time.Minute,
	}
	if cfg.Watch != want {
		t.Fatalf("Watch = %#v, want %#v", cfg.Watch, want)
	}
	if cfg.MQTT.Broker != "tcp://broker:1883" || cfg.MQTT.Topic != "home/speaker" || cfg.MQTT.ClientID != defaultMQTTClientID {
		t.Fatalf("MQTT = %#v", cfg.MQTT)
	}
	if cfg.MQTT.Password != " secret " {
		t.Fatalf("Password = %q, want it untrimmed", cfg.MQTT.Password)
	}
	if cfg.Bridge.Listen != ":9000" {
		t.Fatalf("Bridge.Listen = %q", cfg.Bridge.Listen)
	}
	if cfg.Bridge.PIDFile != filepath.Join(home, "run", "beoplay.pid") {
		t.Fatalf("Bridge.PIDFile = %q", cfg.Bridge.PIDFile)
	}
	if len(cfg.Bridge.CORSOrigins) != 1 || cfg.Bridge.CORSOrigins[0] != "http://dash.local" {
		t.Fatalf("Bridge.CORSOrigins = %q", cfg.Bridge.CORSOrigins)
	}
	if cfg.Bridge.RateLimit != 0 {
		t.Fatalf("Bridge.RateLimit = %d, want 0", cfg.Bridge.RateLimit)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	clearEnv(t)
	t.Setenv(EnvHost, "10.0.0.9")
	t.Setenv(EnvLogLevel, "warn")
	t.Setenv(EnvLogFile, "~/env.log")
	t.Setenv(EnvMQTTBroker, "tcp://env:1883")
	t.Setenv(EnvBridgeListen, "0.0.0.0:7000")

	path := writeConfig(t, `
host = "192.168.1.40"
[log]
level = "debug"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Host != "10.0.0.9" || cfg.Log.Level != "warn" {
		t.Fatalf("Host/Level = %q/%q", cfg.Host, cfg.Log.Level)
	}
	if cfg.Log.File != filepath.Join(home, "env.log") || !cfg.Log.FileExplicit {
		t.Fatalf("Log.File = %q", cfg.Log.File)
	}
	if cfg.MQTT.Broker != "tcp://env:1883" || cfg.Bridge.Listen != "0.0.0.0:7000" {
		t.Fatalf("MQTT/Bridge = %q/%q", cfg.MQTT.Broker, cfg.Bridge.Listen)
	}
}

func TestLoad_EmptyValuesUseDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	clearEnv(t)

	path := writeConfig(t, `
host = "   "
timeout = ""
[log]
level = " "
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Host != "" || cfg.Timeout != defaultTimeout || cfg.Log.Level != defaultLogLevel {
		t.Fatalf("cfg = %#v", cfg)
	}
}

func TestLoad_InvalidTOMLFails(t *testing.T) {
	clearEnv(t)
	_, err := Load(writeConfig(t, `host = [`))
	if err == nil || !strings.Contains(err.Error(), "parse config") {
		t.Fatalf("Load error = %v, want it to mention parse config", err)
	}
}

func TestLoad_InvalidSettingsReportedTogether(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
timeout = "soon"
cooldown = -1
[log]
level = "loud"
format = "xml"
[watch]
backoff_min = "10s"
backoff_max = "1s"
breaker_failures = 0
`)
	_, err := Load(path)
	if err == nil {
		t.Fatalf("Load returned nil error")
	}
	if !strings.Contains(err.Error(), "timeout") {
		t.Fatalf("Load error = %q, want the bad duration", err)
	}

	cfg := Default()
	cfg.Cooldown = -1
	cfg.Log.Level = "loud"
	cfg.Log.Format = "xml"
	cfg.Watch.BackoffMin = 10 * time.Second
	cfg.Watch.BackoffMax = time.Second
	cfg.Watch.BreakerFailures = 0
	cfg.Bridge.RateLimit = -1
	err = cfg.Validate()
	for _, want := range []string{"cooldown", "log.level", "log.format", "backoff", "breaker_failures", "rate_limit"} {
		if err == nil || !strings.Contains(err.Error(), want) {
			t.Fatalf("Validate error = %v, want it to mention %s", err, want)
		}
	}
}

func TestExpandPath_ExpandsTildeAndReturnsAbs(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	got, err := expandPath("~/a/b")
	if err != nil {
		t.Fatalf("expandPath returned error: %v", err)
	}
	if want := filepath.Join(home, "a/b"); got != want {
		t.Fatalf("expandPath = %q, want %q", got, want)
	}
}

func TestExpandPath_EmptyErrors(t *testing.T) {
	if _, err := expandPath("   "); err == nil {
		t.Fatalf("expandPath returned nil error, want error")
	}
}
