package common

import (
	"bytes"
	"strings"
	"testing"
)

func TestNewLogger_ReturnsNonNil(t *testing.T) {
	logger := NewLogger("info")
	if logger == nil {
		t.Fatal("NewLogger returned nil")
	}
}

func TestNewLogger_FluentAPI(t *testing.T) {
	// Must not panic — proves the fluent chain works with arbor
	logger := NewLogger("error")
	logger.Info().Str("key", "value").Msg("test message")
	logger.Warn().Int("count", 42).Msg("warning")
	logger.Error().Err(nil).Msg("error message")
	logger.Debug().Float64("rate", 3.14).Bool("ok", true).Msg("debug")
}

func TestNewLoggerWithOutput_WritesToProvidedWriter(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithOutput("info", &buf)
	logger.Info().Str("key", "value").Msg("hello")

	output := buf.String()
	if output == "" {
		t.Error("Expected output to provided writer, got empty string")
	}
	if !strings.Contains(output, "hello") {
		t.Errorf("Expected message in output, got %q", output)
	}
}

func TestNewSilentLogger_DiscardsOutput(t *testing.T) {
	logger := NewSilentLogger()
	if logger == nil {
		t.Fatal("NewSilentLogger returned nil")
	}
	// Must not panic
	logger.Info().Str("key", "value").Msg("should be discarded")
	logger.Error().Err(nil).Msg("should be discarded")
	logger.Warn().Msg("should be discarded")
}

func TestWithCorrelationId(t *testing.T) {
	logger := NewSilentLogger()
	withID := logger.WithCorrelationId("abc-123")
	if withID == nil {
		t.Fatal("WithCorrelationId returned nil")
	}
	// Must not panic and must not affect the parent logger
	withID.Info().Msg("correlated")
	logger.Info().Msg("uncorrelated")
}
