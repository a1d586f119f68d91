// Package config loads qrwidget settings from a YAML file, a .env file and
// environment variable overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Render controls the QR render delegate.
type Render struct {
	Size    int    `yaml:"size"`
	Level   string `yaml:"level"`
	Backend string `yaml:"backend"`
}

// Config holds all application configuration values.
type Config struct {
	Port         int      `yaml:"port"`
	LogLevel     string   `yaml:"log_level"`
	PollInterval Duration `yaml:"poll_interval"`
	SessionTTL   Duration `yaml:"session_ttl"`
	MaxIconBytes int64    `yaml:"max_icon_bytes"`
	Render       Render   `yaml:"render"`
}

// Duration wraps time.Duration so YAML can carry strings like "1s" or "30m".
type Duration struct {
	time.Duration
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (interface{}, error) {
	return d.Duration.String(), nil
}

// MinSessionTTL is the shortest idle time a session may be given.
const MinSessionTTL = time.Second

// Default returns the configuration used when no file or env is present.
func Default() *Config {
	return &Config{
		Port:         8080,
		LogLevel:     "info",
		PollInterval: Duration{time.Second},
		SessionTTL:   Duration{30 * time.Minute},
		MaxIconBytes: 5 << 20,
		Render: Render{
			Size:    200,
			Level:   "H",
			Backend: "yeqown",
		},
	}
}

// Load reads the YAML file at path on top of the defaults. A missing file is
// not an error. A .env file in the working directory is loaded first, then
// QRWIDGET_* variables (and PORT) override file values.
func Load(path string) (*Config, error) {
	cfg := Default()

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("reading config file: %w", err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports settings that would leave the widget unusable.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	if c.PollInterval.Duration <= 0 {
		return fmt.Errorf("poll_interval must be positive")
	}
	if c.SessionTTL.Duration < MinSessionTTL {
		return fmt.Errorf("session_ttl must be at least %s", MinSessionTTL)
	}
	if c.MaxIconBytes <= 0 {
		return fmt.Errorf("max_icon_bytes must be positive")
	}
	if c.Render.Size <= 0 {
		return fmt.Errorf("render.size must be positive")
	}
	switch strings.ToUpper(c.Render.Level) {
	case "L", "M", "Q", "H":
	default:
		return fmt.Errorf("render.level %q is not one of L, M, Q, H", c.Render.Level)
	}
	switch c.Render.Backend {
	case "yeqown", "skip2":
	default:
		return fmt.Errorf("render.backend %q is not one of yeqown, skip2", c.Render.Backend)
	}
	return nil
}

// Addr is the listen address for the HTTP server.
func (c *Config) Addr() string {
	return ":" + strconv.Itoa(c.Port)
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.Port = p
		}
	}
	if v := os.Getenv("QRWIDGET_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.Port = p
		}
	}
	if v := os.Getenv("QRWIDGET_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("QRWIDGET_POLL_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.PollInterval = Duration{d}
		}
	}
	if v := os.Getenv("QRWIDGET_SESSION_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.SessionTTL = Duration{d}
		}
	}
	if v := os.Getenv("QRWIDGET_MAX_ICON_BYTES"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.MaxIconBytes = n
		}
	}
	if v := os.Getenv("QRWIDGET_RENDER_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Render.Size = n
		}
	}
	if v := os.Getenv("QRWIDGET_RENDER_LEVEL"); v != "" {
		cfg.Render.Level = v
	}
	if v := os.Getenv("QRWIDGET_RENDER_BACKEND"); v != "" {
		cfg.Render.Backend = strings.ToLower(v)
	}
}
