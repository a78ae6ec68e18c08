package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]interface{} {
	t.Helper()
	var out []map[string]interface{}
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(line), &m))
		out = append(out, m)
	}
	return out
}

func TestLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&LoggerConfig{Level: LevelWarn, Format: "json", Output: &buf})
	ctx := context.Background()

	logger.Debug(ctx, "debug")
	logger.Info(ctx, "info")
	logger.Warn(ctx, nil, "warn")
	logger.Error(ctx, errors.New("boom"), "error")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 2)
	assert.Equal(t, "WARN", lines[0]["level"])
	assert.Equal(t, "warn", lines[0]["msg"])
	assert.Equal(t, "ERROR", lines[1]["level"])
	assert.Equal(t, "boom", lines[1]["error"])
}

func TestLoggerDebugEnabled(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&LoggerConfig{Level: LevelDebug, Format: "json", Output: &buf})

	logger.Debug(context.Background(), "template path", "path", "/tmp/a.html")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "DEBUG", lines[0]["level"])
	assert.Equal(t, "/tmp/a.html", lines[0]["path"])
}

func TestLoggerFields(t *testing.T) {
	var buf bytes.Buffer
	base := NewLogger(&LoggerConfig{Level: LevelInfo, Format: "json", Output: &buf})

	logger := base.WithComponent("resolver").With("source", "a.js", "dangling")
	logger.Info(context.Background(), "hello", "count", 3)

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "resolver", lines[0]["component"])
	assert.Equal(t, "a.js", lines[0]["source"])
	assert.Equal(t, float64(3), lines[0]["count"])
	assert.NotContains(t, lines[0], "dangling")
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    LogLevel
		wantErr bool
	}{
		{"debug", LevelDebug, false},
		{"INFO", LevelInfo, false},
		{"", LevelInfo, false},
		{"warning", LevelWarn, false},
		{" error ", LevelError, false},
		{"trace", LevelInfo, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLevelString(t *testing.T) {
	assert.Equal(t, "DEBUG", LevelDebug.String())
	assert.Equal(t, "WARN", LevelWarn.String())
	assert.Equal(t, "UNKNOWN", LogLevel(42).String())
}

func TestNopLogger(t *testing.T) {
	var l Logger = NopLogger{}
	l = l.With("a", 1).WithComponent("x")
	l.Warn(context.Background(), errors.New("ignored"), "nothing")
}
