// Package config provides YAML-based configuration loading for herald.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the top-level herald configuration, loaded from herald.yaml.
type Config struct {
	Telegram  TelegramConfig  `yaml:"telegram"`
	DB        DBConfig        `yaml:"db"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Messages  MessagesConfig  `yaml:"messages"`
	Timezone  string          `yaml:"timezone"`
	Dashboard DashboardConfig `yaml:"dashboard"`
	Digest    DigestConfig    `yaml:"digest"`
	LogLevel  string          `yaml:"log_level"`
}

// TelegramConfig holds bot credentials and the optional broadcast target.
type TelegramConfig struct {
	Token string `yaml:"token"`

	// BroadcastChatID is the single configured broadcast destination.
	// 0 means fallback mode: each message goes to its author's chat.
	BroadcastChatID int64 `yaml:"broadcast_chat_id"`
}

// DBConfig selects the store backend. A non-empty DSN means MySQL;
// otherwise Path names a SQLite file.
type DBConfig struct {
	Path string `yaml:"path"`
	DSN  string `yaml:"dsn"`
}

// SchedulerConfig tunes the delivery poll loop.
type SchedulerConfig struct {
	PollIntervalSec int `yaml:"poll_interval_sec"`
	BatchLimit      int `yaml:"batch_limit"`
	SendTimeoutSec  int `yaml:"send_timeout_sec"`
}

// MessagesConfig holds client-side message validation settings.
type MessagesConfig struct {
	MaxLength int `yaml:"max_length"`
}

// DashboardConfig controls the read-only HTTP API.
type DashboardConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// DigestConfig controls the cron-scheduled stats digest.
type DigestConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Schedule string `yaml:"schedule"`
}

// envToken overrides the YAML token when set.
const envToken = "HERALD_TELEGRAM_TOKEN"

// Load reads a YAML config file from path and returns a validated Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse unmarshals YAML bytes into a validated Config.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.applyDefaults()
	cfg.applyEnv()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyDefaults fills in default values.
func (c *Config) applyDefaults() {
	if c.DB.Path == "" && c.DB.DSN == "" {
		c.DB.Path = "herald.db"
	}
	if c.Scheduler.PollIntervalSec == 0 {
		c.Scheduler.PollIntervalSec = 60
	}
	if c.Scheduler.BatchLimit == 0 {
		c.Scheduler.BatchLimit = 100
	}
	if c.Scheduler.SendTimeoutSec == 0 {
		c.Scheduler.SendTimeoutSec = 10
	}
	if c.Messages.MaxLength == 0 {
		c.Messages.MaxLength = 4096
	}
	if c.Timezone == "" {
		c.Timezone = "Local"
	}
	if c.Dashboard.Port == 0 {
		c.Dashboard.Port = 8090
	}
	if c.Digest.Schedule == "" {
		c.Digest.Schedule = "0 9 * * *"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

// applyEnv overlays environment overrides on top of the file values.
func (c *Config) applyEnv() {
	if tok := strings.TrimSpace(os.Getenv(envToken)); tok != "" {
		c.Telegram.Token = tok
	}
}

// validate checks that all present fields are consistent. The Telegram
// token is intentionally not required here: store-only CLI commands run
// without one, and the serve path enforces it separately.
func (c *Config) validate() error {
	var errs []string
	if c.Scheduler.PollIntervalSec < 0 {
		errs = append(errs, "scheduler.poll_interval_sec must not be negative")
	}
	if c.Scheduler.BatchLimit < 0 {
		errs = append(errs, "scheduler.batch_limit must not be negative")
	}
	if c.Scheduler.SendTimeoutSec < 0 {
		errs = append(errs, "scheduler.send_timeout_sec must not be negative")
	}
	if c.Messages.MaxLength < 1 {
		errs = append(errs, "messages.max_length must be positive")
	}
	if c.Dashboard.Port < 0 || c.Dashboard.Port > 65535 {
		errs = append(errs, "dashboard.port must be a valid port")
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
