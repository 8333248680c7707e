package config

import (
	"strings"
	"time"

	"github.com/binaryphile/nvme-logs/internal/nvme"
)

// DefaultTimeout is the per-command device timeout.
const DefaultTimeout = 10 * time.Second

// ApplyDefaults fills zero values left after unmarshaling and normalizes
// case-insensitive settings. Explicit values are preserved.
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)

	if cfg.Output.Format == "" {
		cfg.Output.Format = "table"
	}
	cfg.Output.Format = strings.ToLower(cfg.Output.Format)

	if cfg.SpecRevision == "" {
		cfg.SpecRevision = string(nvme.DefaultRevision)
	}
	if cfg.Device.Timeout == 0 {
		cfg.Device.Timeout = DefaultTimeout
	}
}

func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "info"
	}
	cfg.Level = strings.ToLower(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
}

// GetDefaultConfig returns a configuration with every default applied.
func GetDefaultConfig() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}
