package logging

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewRejectsUnknownLevel(t *testing.T) {
	if _, err := New("chatty", false); err == nil {
		t.Fatalf("expected error for unknown level")
	}
}

func TestNewBuildsAtRequestedLevel(t *testing.T) {
	logger, err := New("warn", false)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if logger == nil {
		t.Fatalf("expected logger")
	}
	logger.Debug("suppressed")
	logger.Warn("visible", "key", "value")
}

func TestNewDevelopmentMode(t *testing.T) {
	logger, err := New("debug", true)
	if err != nil {
		t.Fatalf("new development: %v", err)
	}
	logger.Debug("dev message", "component", "test")
}

func TestLoggerForwardsFields(t *testing.T) {
	obsCore, logs := observer.New(zapcore.DebugLevel)
	logger := FromZap(zap.New(obsCore))

	logger.Info("registry operation completed", "operation", "register_product", "entity_id", "1")
	logger.Error("registry operation failed", "operation", "transfer_product", "error", "not owner")

	entries := logs.All()
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Message != "registry operation completed" || entries[0].Level != zapcore.InfoLevel {
		t.Fatalf("unexpected first entry: %+v", entries[0])
	}
	fields := entries[0].ContextMap()
	if fields["operation"] != "register_product" || fields["entity_id"] != "1" {
		t.Fatalf("unexpected fields: %v", fields)
	}
	if entries[1].Level != zapcore.ErrorLevel {
		t.Fatalf("expected error level, got %v", entries[1].Level)
	}
}

func TestNopLoggerDiscards(t *testing.T) {
	logger := NewNop()
	logger.Debug("dropped")
	logger.Info("dropped")
	logger.Warn("dropped")
	logger.Error("dropped")
	if err := logger.Sync(); err != nil {
		t.Fatalf("sync: %v", err)
	}
}
