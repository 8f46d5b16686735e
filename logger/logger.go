package logger

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/isdmx/scriptbox/config"
)

// NewFromConfig builds the application logger from the logging section.
func NewFromConfig(cfg *config.Config) (*zap.Logger, error) {
	return New(cfg.Logging.Mode, cfg.Logging.Level, WithOutput(cfg.Logging.Output))
}

// Option customizes the zap configuration before it is built.
type Option func(*zap.Config)

// WithOutput sends log entries to path instead of stderr. The stdio
// transport owns stdout, so "stdout" is rejected.
func WithOutput(path string) Option {
	return func(cfg *zap.Config) {
		path = strings.TrimSpace(path)
		if path == "" {
			return
		}
		cfg.OutputPaths = []string{path}
	}
}

// New creates a new logger instance based on configuration
func New(mode, level string, opts ...Option) (*zap.Logger, error) {
	var cfg zap.Config

	switch mode {
	case "development":
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	case "production":
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.TimeKey = "timestamp"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	default:
		return nil, fmt.Errorf("invalid logging mode: %s, must be 'production' or 'development'", mode)
	}

	// Set the log level
	logLevel, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid logging level: %s, must be one of 'debug', 'info', 'warn', 'error', 'dpanic', 'panic', 'fatal'", level)
	}
	cfg.Level = zap.NewAtomicLevelAt(logLevel)
	cfg.OutputPaths = []string{"stderr"}

	for _, opt := range opts {
		opt(&cfg)
	}
	for _, p := range cfg.OutputPaths {
		if p == "stdout" {
			return nil, fmt.Errorf("invalid logging output: stdout is reserved for the stdio transport")
		}
	}

	return cfg.Build()
}
