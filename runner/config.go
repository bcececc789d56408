// Package runner sequences one archival run: page readiness, card
// discovery, per-card extraction, sequential attachment resolution, and
// write-out. One Runner serves one run.
package runner

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level run configuration.
type Config struct {
	// URL of the board to archive.
	URL string `yaml:"url"`

	// Root is the destination directory. Default: "taskcard_download".
	Root string `yaml:"root"`

	// PageTimeout bounds the initial readiness wait. On timeout the run
	// continues with a warning rather than aborting.
	PageTimeout time.Duration `yaml:"page_timeout"`

	// SettleDelay is the pause after each click before checking for a
	// new tab or log entry.
	SettleDelay time.Duration `yaml:"settle_delay"`

	// LogWindow bounds the network-log fallback inspection.
	LogWindow int `yaml:"log_window"`

	// ValidatePDFs enables structural checks on archived PDFs.
	ValidatePDFs bool `yaml:"validate_pdfs"`

	// AuditDB is the optional sqlite download-audit path. Empty
	// disables auditing.
	AuditDB string `yaml:"audit_db"`

	Browser BrowserConfig `yaml:"browser"`
}

// BrowserConfig controls the live session.
type BrowserConfig struct {
	// Remote is the WebSocket URL of an external Chrome. Empty =
	// launch locally.
	Remote string `yaml:"remote"`

	// Headful disables headless mode for local Chrome.
	Headful bool `yaml:"headful"`
}

// LoadFile reads a YAML configuration file.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("runner: read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("runner: parse config: %w", err)
	}
	cfg.ApplyDefaults()
	return &cfg, nil
}

// ApplyDefaults fills unset fields.
func (c *Config) ApplyDefaults() {
	if c.Root == "" {
		c.Root = "taskcard_download"
	}
	if c.PageTimeout <= 0 {
		c.PageTimeout = 30 * time.Second
	}
	if c.SettleDelay <= 0 {
		c.SettleDelay = 1500 * time.Millisecond
	}
	if c.LogWindow <= 0 {
		c.LogWindow = 50
	}
}
