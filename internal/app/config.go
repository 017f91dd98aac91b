package app

import (
	"errors"
	"fmt"

	"github.com/vogtb/go-gridcalc/internal/report"
)

// Config holds everything an App needs for one run.
type Config struct {
	ScriptPath string // hcl batch-edit script
	Output     report.Format

	LogFormat         string
	LogLevel          string
	RecomputeOnDelete bool
}

// NewConfig validates cfg and fills in defaults.
func NewConfig(cfg Config) (*Config, error) {
	if cfg.ScriptPath == "" {
		return nil, errors.New("ScriptPath is a required configuration field and cannot be empty")
	}

	if cfg.Output == "" {
		cfg.Output = report.FormatTable
	}
	if _, err := report.ParseFormat(string(cfg.Output)); err != nil {
		return nil, err
	}

	switch cfg.LogFormat {
	case "":
		cfg.LogFormat = "text"
	case "text", "json":
	default:
		return nil, fmt.Errorf("invalid log format %q", cfg.LogFormat)
	}

	switch cfg.LogLevel {
	case "":
		cfg.LogLevel = "warn"
	case "debug", "info", "warn", "error":
	default:
		return nil, fmt.Errorf("invalid log level %q", cfg.LogLevel)
	}

	return &cfg, nil
}
