package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/hedgefund/pkg/config"
)

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry), "log output: %s", buf.String())
	return entry
}

func TestNew_SetsGlobalLevel(t *testing.T) {
	tests := []struct {
		name      string
		level     string
		wantLevel zerolog.Level
	}{
		{"debug level", "debug", zerolog.DebugLevel},
		{"info level", "info", zerolog.InfoLevel},
		{"warn level", "warn", zerolog.WarnLevel},
		{"error level", "error", zerolog.ErrorLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			l := NewWithWriter(&config.Config{Env: "development", LogLevel: tt.level, LogFormat: "json"}, &buf)
			require.NotNil(t, l)
			assert.Equal(t, tt.wantLevel, zerolog.GlobalLevel())
		})
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input string
		want  zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"DEBUG", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{"warning", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"fatal", zerolog.FatalLevel},
		{"invalid", zerolog.InfoLevel},
		{"", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, parseLogLevel(tt.input))
		})
	}
}

func TestLogger_JSONFields(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&config.Config{Env: "staging", LogLevel: "debug", LogFormat: "json"}, &buf)

	l.WithRun("run-1").WithField("ticker", "AAPL").Info("step applied")

	entry := decodeLine(t, &buf)
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "step applied", entry["message"])
	assert.Equal(t, "hedgefund", entry["service"])
	assert.Equal(t, "staging", entry["env"])
	assert.Equal(t, "run-1", entry["run_id"])
	assert.Equal(t, "AAPL", entry["ticker"])
}

func TestLogger_WithFieldsAndError(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&config.Config{Env: "development", LogLevel: "debug", LogFormat: "json"}, &buf)

	l.WithFields(map[string]interface{}{"step": 3, "date": "2024-01-03"}).
		WithError(errors.New("agent unavailable")).
		Error("step failed")

	entry := decodeLine(t, &buf)
	assert.Equal(t, "error", entry["level"])
	assert.Equal(t, float64(3), entry["step"])
	assert.Equal(t, "2024-01-03", entry["date"])
	assert.Equal(t, "agent unavailable", entry["error"])
}

func TestLogger_Formatted(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&config.Config{Env: "development", LogLevel: "debug", LogFormat: "json"}, &buf)

	l.Warnf("queue %d/%d full", 64, 64)

	entry := decodeLine(t, &buf)
	assert.Equal(t, "warn", entry["level"])
	assert.Equal(t, "queue 64/64 full", entry["message"])
}

func TestNop(t *testing.T) {
	assert.NotPanics(t, func() {
		Nop().WithField("k", "v").Info("discarded")
	})
}
