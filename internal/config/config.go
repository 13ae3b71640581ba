package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"

	"github.com/five82/beoplay/internal/logging"
)

// Config is the resolved beoplay configuration.
type Config struct {
	Host     string
	Timeout  time.Duration
	Cooldown int

	Log    Log
	Watch  Watch
	MQTT   MQTT
	Bridge Bridge
}

// Log controls the global logger.
type Log struct {
	Level  string
	Format string
	// File receives log output for the TUI and, when set explicitly, for
	// every other command.
	File         string
	FileExplicit bool
}

// Watch tunes the notification stream reconnect loop.
type Watch struct {
	ReconnectDelay  time.Duration
	BackoffMin      time.Duration
	BackoffMax      time.Duration
	BreakerFailures uint32
	BreakerTimeout  time.Duration
}

// MQTT configures state publishing. An empty Broker disables it.
type MQTT struct {
	Broker   string
	Topic    string
	ClientID string
	Username string
	Password string
}

// Bridge configures the HTTP bridge.
type Bridge struct {
	Listen string
	// PIDFile, when set, is written while the bridge runs.
	PIDFile string
	// CORSOrigins lists browser origins allowed to call the bridge.
	CORSOrigins []string
	// RateLimit caps device commands per client IP per minute; 0 is unlimited.
	RateLimit int
}

const (
	defaultConfigPath = "~/.config/beoplay/config.toml"
	defaultLogFile    = "~/.local/state/beoplay/beoplay.log"

	defaultTimeout         = 5 * time.Second
	defaultCooldown        = 5
	defaultLogLevel        = "info"
	defaultLogFormat       = "console"
	defaultReconnectDelay  = time.Second
	defaultBackoffMin      = 2 * time.Second
	defaultBackoffMax      = 60 * time.Second
	defaultBreakerFailures = 3
	defaultBreakerTimeout  = 30 * time.Second
	defaultMQTTTopic       = "beoplay/state"
	defaultMQTTClientID    = "beoplay"
	defaultBridgeListen    = "127.0.0.1:8088"
	defaultBridgeRateLimit = 120
)

// Environment overrides, applied after the file.
const (
	EnvHost         = "BEOPLAY_HOST"
	EnvLogLevel     = "BEOPLAY_LOG_LEVEL"
	EnvLogFile      = "BEOPLAY_LOG_FILE"
	EnvMQTTBroker   = "BEOPLAY_MQTT_BROKER"
	EnvBridgeListen = "BEOPLAY_BRIDGE_LISTEN"
)

type rawConfig struct {
	Host     string `toml:"host"`
	Timeout  string `toml:"timeout"`
	Cooldown *int   `toml:"cooldown"`

	Log struct {
		Level  string `toml:"level"`
		Format string `toml:"format"`
		File   string `toml:"file"`
	} `toml:"log"`

	Watch struct {
		ReconnectDelay  string  `toml:"reconnect_delay"`
		BackoffMin      string  `toml:"backoff_min"`
		BackoffMax      string  `toml:"backoff_max"`
		BreakerFailures *uint32 `toml:"breaker_failures"`
		BreakerTimeout  string  `toml:"breaker_timeout"`
	} `toml:"watch"`

	MQTT struct {
		Broker   string `toml:"broker"`
		Topic    string `toml:"topic"`
		ClientID string `toml:"client_id"`
		Username string `toml:"username"`
		Password string `toml:"password"`
	} `toml:"mqtt"`

	Bridge struct {
		Listen      string   `toml:"listen"`
		PIDFile     string   `toml:"pidfile"`
		CORSOrigins []string `toml:"cors_origins"`
		RateLimit   *int     `toml:"rate_limit"`
	} `toml:"bridge"`
}

// Default returns the configuration used when no file exists.
func Default() Config {
	return Config{
		Timeout:  defaultTimeout,
		Cooldown: defaultCooldown,
		Log: Log{
			Level:  defaultLogLevel,
			Format: defaultLogFormat,
			File:   mustExpand(defaultLogFile),
		},
		Watch: Watch{
			ReconnectDelay:  defaultReconnectDelay,
			BackoffMin:      defaultBackoffMin,
			BackoffMax:      defaultBackoffMax,
			BreakerFailures: defaultBreakerFailures,
			BreakerTimeout:  defaultBreakerTimeout,
		},
		MQTT:   MQTT{Topic: defaultMQTTTopic, ClientID: defaultMQTTClientID},
		Bridge: Bridge{Listen: defaultBridgeListen, RateLimit: defaultBridgeRateLimit},
	}
}

// Load locates and parses the config file, falling back to defaults when it
// is missing, then applies environment overrides.
func Load(path string) (Config, error) {
	resolved, err := resolvePath(path)
	if err != nil {
		return Config{}, err
	}

	cfg := Default()

	file, err := os.Open(resolved)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("open config: %w", err)
		}
	} else {
		defer file.Close()

		bytes, err := io.ReadAll(file)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		var raw rawConfig
		if err := toml.Unmarshal(bytes, &raw); err != nil {
			return Config{}, fmt.Errorf("parse config: %w", err)
		}
		if err := cfg.apply(raw); err != nil {
			return Config{}, err
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) apply(raw rawConfig) error {
	var errs []error
	duration := func(field, value string, dst *time.Duration) {
		value = strings.TrimSpace(value)
		if value == "" {
			return
		}
		d, err := time.ParseDuration(value)
		if err != nil {
			errs = append(errs, fmt.Errorf("parse config: %s: %w", field, err))
			return
		}
		*dst = d
	}
	text := func(value string, dst *string) {
		if v := strings.TrimSpace(value); v != "" {
			*dst = v
		}
	}

	text(raw.Host, &c.Host)
	duration("timeout", raw.Timeout, &c.Timeout)
	if raw.Cooldown != nil {
		c.Cooldown = *raw.Cooldown
	}

	text(raw.Log.Level, &c.Log.Level)
	text(raw.Log.Format, &c.Log.Format)
	if v := strings.TrimSpace(raw.Log.File); v != "" {
		c.Log.File = mustExpand(v)
		c.Log.FileExplicit = true
	}

	duration("watch.reconnect_delay", raw.Watch.ReconnectDelay, &c.Watch.ReconnectDelay)
	duration("watch.backoff_min", raw.Watch.BackoffMin, &c.Watch.BackoffMin)
	duration("watch.backoff_max", raw.Watch.BackoffMax, &c.Watch.BackoffMax)
	duration("watch.breaker_timeout", raw.Watch.BreakerTimeout, &c.Watch.BreakerTimeout)
	if raw.Watch.BreakerFailures != nil {
		c.Watch.BreakerFailures = *raw.Watch.BreakerFailures
	}

	text(raw.MQTT.Broker, &c.MQTT.Broker)
	text(raw.MQTT.Topic, &c.MQTT.Topic)
	text(raw.MQTT.ClientID, &c.MQTT.ClientID)
	text(raw.MQTT.Username, &c.MQTT.Username)
	c.MQTT.Password = raw.MQTT.Password

	text(raw.Bridge.Listen, &c.Bridge.Listen)
	if v := strings.TrimSpace(raw.Bridge.PIDFile); v != "" {
		c.Bridge.PIDFile = mustExpand(v)
	}
	for _, origin := range raw.Bridge.CORSOrigins {
		if v := strings.TrimSpace(origin); v != "" {
			c.Bridge.CORSOrigins = append(c.Bridge.CORSOrigins, v)
		}
	}
	if raw.Bridge.RateLimit != nil {
		c.Bridge.RateLimit = *raw.Bridge.RateLimit
	}
	return errors.Join(errs...)
}

func (c *Config) applyEnv() error {
	if v := strings.TrimSpace(os.Getenv(EnvHost)); v != "" {
		c.Host = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogLevel)); v != "" {
		c.Log.Level = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogFile)); v != "" {
		expanded, err := expandPath(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvLogFile, err)
		}
		c.Log.File = expanded
		c.Log.FileExplicit = true
	}
	if v := strings.TrimSpace(os.Getenv(EnvMQTTBroker)); v != "" {
		c.MQTT.Broker = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvBridgeListen)); v != "" {
		c.Bridge.Listen = v
	}
	return nil
}

// Validate reports every invalid setting at once.
func (c Config) Validate() error {
	var errs []error
	if c.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("timeout must be positive, got %s", c.Timeout))
	}
	if c.Cooldown < 0 {
		errs = append(errs, fmt.Errorf("cooldown must not be negative, got %d", c.Cooldown))
	}
	if !logging.ValidLevel(c.Log.Level) {
		errs = append(errs, fmt.Errorf("log.level %q is not a level", c.Log.Level))
	}
	switch strings.ToLower(c.Log.Format) {
	case "json", "console":
	default:
		errs = append(errs, fmt.Errorf("log.format must be json or console, got %q", c.Log.Format))
	}
	if c.Watch.BackoffMin <= 0 || c.Watch.BackoffMax < c.Watch.BackoffMin {
		errs = append(errs, fmt.Errorf("watch backoff must satisfy 0 < backoff_min <= backoff_max, got %s/%s",
			c.Watch.BackoffMin, c.Watch.BackoffMax))
	}
	if c.Watch.BreakerFailures == 0 {
		errs = append(errs, errors.New("watch.breaker_failures must be at least 1"))
	}
	if c.Bridge.RateLimit < 0 {
		errs = append(errs, fmt.Errorf("bridge.rate_limit must not be negative, got %d", c.Bridge.RateLimit))
	}
	return errors.Join(errs...)
}

// RequireHost returns an error when no device host is configured.
func (c Config) RequireHost() error {
	if strings.TrimSpace(c.Host) == "" {
		return fmt.Errorf("no device host: set host in %s, %s, or --host", defaultConfigPath, EnvHost)
	}
	return nil
}

// DefaultPath returns the default config file location.
func DefaultPath() string {
	return defaultConfigPath
}

func resolvePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return expandPath(defaultConfigPath)
	}
	return expandPath(path)
}

func mustExpand(path string) string {
	expanded, err := expandPath(path)
	if err != nil {
		return path
	}
	return expanded
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", fmt.Errorf("path is empty")
	}
	if strings.HasPrefix(trimmed, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	return filepath.Abs(trimmed)
}
