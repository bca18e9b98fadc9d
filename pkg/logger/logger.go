// Package logger constructs the zap loggers used across the module.
package logger

import "go.uber.org/zap"

// LoggerConfig controls logger construction.
type LoggerConfig struct {
	// Debug switches to the development config with debug-level output.
	Debug bool
}

// NewLogger builds a zap logger: production JSON output by default, the
// human-friendly development console when Debug is set.
func NewLogger(cfg *LoggerConfig) (*zap.Logger, error) {
	if cfg != nil && cfg.Debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
