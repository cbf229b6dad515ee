package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Level != LevelInfo {
		t.Errorf("Level = %s, want info", cfg.Level)
	}
	if cfg.Pretty {
		t.Error("Pretty should default to false")
	}
	if cfg.Output == nil {
		t.Error("Output should default to stderr")
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    LogLevel
		expected zerolog.Level
	}{
		{LevelDebug, zerolog.DebugLevel},
		{LevelInfo, zerolog.InfoLevel},
		{LevelWarn, zerolog.WarnLevel},
		{LevelError, zerolog.ErrorLevel},
		{"WARNING", zerolog.WarnLevel},
		{" Debug ", zerolog.DebugLevel},
		{"", zerolog.InfoLevel},
		{"verbose", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(string(tt.input), func(t *testing.T) {
			if got := ParseLevel(tt.input); got != tt.expected {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestSetup_LevelFiltering(t *testing.T) {
	tests := []struct {
		level   LogLevel
		visible []string
		hidden  []string
	}{
		{level: LevelDebug, visible: []string{"debug-msg", "info-msg", "warn-msg"}},
		{level: LevelInfo, visible: []string{"info-msg", "warn-msg"}, hidden: []string{"debug-msg"}},
		{level: LevelWarn, visible: []string{"warn-msg"}, hidden: []string{"debug-msg", "info-msg"}},
		{level: LevelError, hidden: []string{"debug-msg", "info-msg", "warn-msg"}},
	}

	for _, tt := range tests {
		t.Run(string(tt.level), func(t *testing.T) {
			buf := &bytes.Buffer{}
			Setup(Config{Level: tt.level, Output: buf})

			logger := NewLogger("filter-test")
			logger.Debug().Msg("debug-msg")
			logger.Info().Msg("info-msg")
			logger.Warn().Msg("warn-msg")

			output := buf.String()
			for _, msg := range tt.visible {
				if !strings.Contains(output, msg) {
					t.Errorf("%s missing at level %s", msg, tt.level)
				}
			}
			for _, msg := range tt.hidden {
				if strings.Contains(output, msg) {
					t.Errorf("%s should be filtered at level %s", msg, tt.level)
				}
			}
		})
	}
}

func TestNewLogger_Fields(t *testing.T) {
	buf := &bytes.Buffer{}
	Setup(Config{Level: LevelInfo, Output: buf, Service: "ratebeer-proxy"})

	logger := NewLogger("pagination")
	logger.Info().Int("page", 2).Msg("Fetch progress")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not JSON: %v (%q)", err, buf.String())
	}
	if entry["component"] != "pagination" {
		t.Errorf("component = %v", entry["component"])
	}
	if entry["service"] != "ratebeer-proxy" {
		t.Errorf("service = %v", entry["service"])
	}
	if entry["page"] != float64(2) {
		t.Errorf("page = %v", entry["page"])
	}
	if _, ok := entry["time"]; !ok {
		t.Error("entry has no timestamp")
	}
}

func TestSetup_Pretty(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := Setup(Config{Level: LevelInfo, Output: buf, Pretty: true})
	logger.Info().Msg("console output")

	output := buf.String()
	if !strings.Contains(output, "console output") {
		t.Errorf("Expected message in output, got %q", output)
	}
	if strings.HasPrefix(strings.TrimSpace(output), "{") {
		t.Errorf("Pretty output should not be JSON, got %q", output)
	}
}

func TestConfigFromEnv(t *testing.T) {
	env := map[string]string{"LOG_LEVEL": "debug", "LOG_PRETTY": "true"}
	cfg := ConfigFromEnv(func(key string) string { return env[key] })

	if cfg.Level != LevelDebug {
		t.Errorf("Level = %q, want debug", cfg.Level)
	}
	if !cfg.Pretty {
		t.Error("Pretty should be true")
	}

	cfg = ConfigFromEnv(func(string) string { return "" })
	if cfg.Level != LevelInfo || cfg.Pretty {
		t.Errorf("empty env = %+v, want defaults", cfg)
	}
}
