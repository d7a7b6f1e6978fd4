package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestSetup_WritesAtConfiguredLevel(t *testing.T) {
	tests := []struct {
		name  string
		level LogLevel
		emit  func(l zerolog.Logger)
	}{
		{"debug", LevelDebug, func(l zerolog.Logger) { l.Debug().Msg("hello branch") }},
		{"info", LevelInfo, func(l zerolog.Logger) { l.Info().Msg("hello branch") }},
		{"warn", LevelWarn, func(l zerolog.Logger) { l.Warn().Msg("hello branch") }},
		{"error", LevelError, func(l zerolog.Logger) { l.Error().Msg("hello branch") }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			logger := Setup(Config{Level: tt.level, Output: buf})
			tt.emit(logger)

			if !strings.Contains(buf.String(), "hello branch") {
				t.Errorf("Expected output to contain message, got %q", buf.String())
			}
		})
	}
}

func TestSetup_NilOutputFallsBack(t *testing.T) {
	// Must not panic when Output is nil.
	Setup(Config{Level: LevelError})
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input     LogLevel
		expected  zerolog.Level
		wantValid bool
	}{
		{LevelDebug, zerolog.DebugLevel, true},
		{" Info ", zerolog.InfoLevel, true},
		{"WARNING", zerolog.WarnLevel, true},
		{LevelError, zerolog.ErrorLevel, true},
		{LevelDisabled, zerolog.Disabled, true},
		{"off", zerolog.Disabled, true},
		{"", zerolog.InfoLevel, true},
		{"verbose", zerolog.InfoLevel, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.input), func(t *testing.T) {
			if got := ParseLevel(tt.input); got != tt.expected {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.expected)
			}
			if got := tt.input.Valid(); got != tt.wantValid {
				t.Errorf("%q.Valid() = %v, want %v", tt.input, got, tt.wantValid)
			}
		})
	}
}

func TestRedact(t *testing.T) {
	if got := Redact(""); got != "" {
		t.Errorf("Redact(\"\") = %q, want empty", got)
	}
	if got := Redact("eyJhbGciOi.payload.sig"); strings.Contains(got, "eyJ") || got == "" {
		t.Errorf("Redact leaked or dropped the secret: %q", got)
	}
}

func TestSetup_DisabledSilencesEverything(t *testing.T) {
	buf := &bytes.Buffer{}
	Setup(Config{Level: LevelDisabled, Output: buf})
	t.Cleanup(func() { Setup(Config{Level: LevelInfo, Output: &bytes.Buffer{}}) })

	logger := NewLogger("browse")
	logger.Error().Msg("should not appear")

	if buf.Len() != 0 {
		t.Errorf("Expected no output with logging disabled, got %q", buf.String())
	}
}

func TestSetup_PrettyConsole(t *testing.T) {
	buf := &bytes.Buffer{}
	Setup(Config{Level: LevelInfo, Pretty: true, Output: buf})

	logger := NewLogger("branchctl")
	logger.Info().Int("items", 23).Msg("Export complete")

	out := buf.String()
	if strings.HasPrefix(out, "{") {
		t.Errorf("Expected console output, got JSON %q", out)
	}
	if !strings.Contains(out, "Export complete") || !strings.Contains(out, "items=") {
		t.Errorf("Expected message and field, got %q", out)
	}
}

func TestNewLogger_TagsComponent(t *testing.T) {
	buf := &bytes.Buffer{}
	Setup(Config{Level: LevelInfo, Output: buf})

	logger := NewLogger("branch-list")
	logger.Info().Msg("page loaded")

	output := buf.String()
	if !strings.Contains(output, `"component":"branch-list"`) {
		t.Errorf("Expected component field, got %q", output)
	}
	if !strings.Contains(output, "page loaded") {
		t.Errorf("Expected message, got %q", output)
	}
}

func TestLogLevelFiltering(t *testing.T) {
	buf := &bytes.Buffer{}
	Setup(Config{Level: LevelWarn, Output: buf})

	logger := NewLogger("test")
	logger.Debug().Msg("debug message")
	logger.Info().Msg("info message")
	logger.Warn().Msg("warn message")
	logger.Error().Msg("error message")

	output := buf.String()
	if strings.Contains(output, "debug message") || strings.Contains(output, "info message") {
		t.Error("Messages below warn should be filtered out")
	}
	if !strings.Contains(output, "warn message") || !strings.Contains(output, "error message") {
		t.Error("Warn and error messages should be included")
	}
}
