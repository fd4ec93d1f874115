package logging

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Option adjusts the logger built by New.
type Option func(*options)

type options struct {
	development bool
	level       string
}

// WithDevelopment switches to zap's human-readable console output.
func WithDevelopment(enabled bool) Option {
	return func(o *options) {
		o.development = enabled
	}
}

// WithLevel sets the minimum level ("debug", "info", "warn", "error").
func WithLevel(level string) Option {
	return func(o *options) {
		o.level = level
	}
}

// New creates a structured logger. By default it writes production JSON.
func New(opts ...Option) (*zap.Logger, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	cfg := zap.NewProductionConfig()
	cfg.Encoding = "json"
	if o.development {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.EncoderConfig.TimeKey = "timestamp"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncoderConfig.StacktraceKey = "stacktrace"
	cfg.DisableStacktrace = false

	if o.level != "" {
		level, err := zap.ParseAtomicLevel(o.level)
		if err != nil {
			return nil, fmt.Errorf("parse log level: %w", err)
		}
		cfg.Level = level
	}

	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return logger, nil
}
