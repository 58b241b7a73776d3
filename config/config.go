// Package config handles chwatch daemon configuration.
//
// Two inputs exist: a YAML file describing the full daemon (targets,
// intervals, notifiers, log and state paths), and the plain
// newline-delimited target list kept for compatibility with simple setups
// (one file path or URL per line, blank lines ignored).
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hazyhaar/chwatch/notify"
)

// Config is the top-level chwatch configuration.
type Config struct {
	// Targets to monitor. At least one is required.
	Targets []TargetConfig `yaml:"targets"`
	// Interval is the global default polling interval. Default: 60s.
	Interval time.Duration `yaml:"interval"`
	// LogPath is the shared append-only change log. Default: changes.log.
	LogPath string `yaml:"log_path"`
	// StatePath is the SQLite baseline store. Empty disables persistence.
	StatePath string `yaml:"state_path"`
	// ReportDir is where transient report artifacts are written. Default: ".".
	ReportDir string `yaml:"report_dir"`
	// JSRefs enables JavaScript reference tracking for HTML targets.
	JSRefs bool `yaml:"jsrefs"`
	// APIAddr enables the status endpoint when set (e.g. ":8086").
	APIAddr string `yaml:"api_addr"`

	Telegram *notify.TelegramConfig `yaml:"telegram"`
	Webhooks []string               `yaml:"webhooks"`
}

// TargetConfig is one monitored entry. An absent interval falls back to
// the global one.
type TargetConfig struct {
	Identifier string        `yaml:"identifier"`
	Interval   time.Duration `yaml:"interval"`
}

// Load reads a YAML configuration file and applies defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	cfg.ApplyDefaults()
	return &cfg, nil
}

// ApplyDefaults fills unset fields with their defaults.
func (c *Config) ApplyDefaults() {
	if c.Interval <= 0 {
		c.Interval = 60 * time.Second
	}
	if c.LogPath == "" {
		c.LogPath = "changes.log"
	}
	if c.ReportDir == "" {
		c.ReportDir = "."
	}
	for i := range c.Targets {
		if c.Targets[i].Interval <= 0 {
			c.Targets[i].Interval = c.Interval
		}
	}
}

// Validate reports startup-fatal configuration errors.
func (c *Config) Validate() error {
	if len(c.Targets) == 0 {
		return fmt.Errorf("config: no targets to monitor")
	}
	for _, t := range c.Targets {
		if t.Identifier == "" {
			return fmt.Errorf("config: target with empty identifier")
		}
	}
	if c.Telegram != nil {
		if c.Telegram.BotToken == "" || c.Telegram.ChatID == "" {
			return fmt.Errorf("config: telegram requires bot_token and chat_id")
		}
	}
	return nil
}

// TelegramFromEnv builds Telegram credentials from the conventional
// environment variables, or nil when they are not set.
func TelegramFromEnv() *notify.TelegramConfig {
	token := os.Getenv("TELEGRAM_BOT_TOKEN")
	chatID := os.Getenv("TELEGRAM_CHAT_ID")
	if token == "" || chatID == "" {
		return nil
	}
	return &notify.TelegramConfig{BotToken: token, ChatID: chatID}
}
