package logging

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestNew(t *testing.T) {
	logger, err := New()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if logger == nil {
		t.Fatalf("expected logger instance")
	}
	_ = logger.Sync()
}

func TestNewDevelopmentWithLevel(t *testing.T) {
	logger, err := New(WithDevelopment(true), WithLevel("debug"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !logger.Core().Enabled(zapcore.DebugLevel) {
		t.Fatalf("expected debug level to be enabled")
	}
	_ = logger.Sync()
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	if _, err := New(WithLevel("loud")); err == nil {
		t.Fatalf("expected error for unknown level")
	}
}
