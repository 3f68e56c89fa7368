package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mcuadros/go-defaults"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// TimerEntry is one power timer rule
type TimerEntry struct {
	Name   string `yaml:"name"`
	Spec   string `yaml:"spec"`   // cron expression, e.g. "30 7 * * 1-5" or "@daily"
	Action string `yaml:"action"` // on, off, toggle, status
}

// Config holds application configuration
type Config struct {
	LogLevel        string        `yaml:"log_level" default:"info"`
	Address         string        `yaml:"address"`
	ScanDuration    time.Duration `yaml:"scan_duration" default:"3s"`
	ConnectTimeout  time.Duration `yaml:"connect_timeout" default:"30s"`
	ResponseTimeout time.Duration `yaml:"response_timeout" default:"5s"` // 0 = wait until canceled
	HistorySize     uint32        `yaml:"history_size" default:"64"`
	Timer           []TimerEntry  `yaml:"timer"`
}

var validActions = map[string]struct{}{
	"on":     {},
	"off":    {},
	"toggle": {},
	"status": {},
}

// DefaultConfig returns default configuration values
func DefaultConfig() *Config {
	cfg := &Config{}
	defaults.SetDefaults(cfg)
	return cfg
}

// Load reads a YAML config file on top of the defaults.
// An empty path or a missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	for i := range cfg.Timer {
		cfg.Timer[i].Action = strings.ToLower(strings.TrimSpace(cfg.Timer[i].Action))
		if cfg.Timer[i].Name == "" {
			cfg.Timer[i].Name = fmt.Sprintf("timer-%d", i+1)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks value ranges and timer entries
func (c *Config) Validate() error {
	var errs []error

	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("log_level: %w", err))
	}
	if c.ScanDuration <= 0 {
		errs = append(errs, fmt.Errorf("scan_duration must be positive, got %s", c.ScanDuration))
	}
	if c.ConnectTimeout < 0 {
		errs = append(errs, fmt.Errorf("connect_timeout must not be negative, got %s", c.ConnectTimeout))
	}
	if c.ResponseTimeout < 0 {
		errs = append(errs, fmt.Errorf("response_timeout must not be negative, got %s", c.ResponseTimeout))
	}

	names := make(map[string]struct{}, len(c.Timer))
	for i, e := range c.Timer {
		if strings.TrimSpace(e.Spec) == "" {
			errs = append(errs, fmt.Errorf("timer[%d]: spec is required", i))
		}
		if _, ok := validActions[e.Action]; !ok {
			errs = append(errs, fmt.Errorf("timer[%d]: unknown action %q", i, e.Action))
		}
		if _, dup := names[e.Name]; dup {
			errs = append(errs, fmt.Errorf("timer[%d]: duplicate name %q", i, e.Name))
		}
		names[e.Name] = struct{}{}
	}

	return errors.Join(errs...)
}

// Level returns the configured log level, falling back to info
func (c *Config) Level() logrus.Level {
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return logrus.InfoLevel
	}
	return level
}

// NewLogger creates a configured logger instance
func (c *Config) NewLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(c.Level())

	// Use structured logging format
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
	})

	return logger
}
