package logx

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LevelDebug, ParseLevel("debug"))
	assert.Equal(t, LevelWarn, ParseLevel("WARNING"))
	assert.Equal(t, LevelError, ParseLevel("error"))
	assert.Equal(t, LevelInfo, ParseLevel("nonsense"))
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "JSON")
	t.Setenv("LOG_CALLER", "1")
	t.Setenv("LOG_COLOR", "false")

	cfg := LoadFromEnv()
	assert.Equal(t, LevelDebug, cfg.Level)
	assert.Equal(t, FormatJSON, cfg.Format)
	assert.True(t, cfg.EnableCaller)
	assert.False(t, cfg.EnableColors)
}

func TestJSONLoggerWritesFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&Config{Level: LevelInfo, Format: FormatJSON, Output: &buf})

	logger.WithFields(Fields{"service_id": "s1"}).WithError(errors.New("nope")).Warn("lookup failed")
	logger.Debug("hidden")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "lookup failed", line["msg"])
	assert.Equal(t, "warning", line["level"])
	assert.Equal(t, "s1", line["service_id"])
	assert.Equal(t, "nope", line["error"])
}

func TestCloudWatchFieldNames(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&Config{Level: LevelInfo, Format: FormatCloudWatch, Output: &buf})
	logger.Info("hello")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "hello", line["message"])
	assert.Contains(t, line, "timestamp")
}

func TestDefaultLoggerSwap(t *testing.T) {
	prev := GetDefaultLogger()
	t.Cleanup(func() { SetDefaultLogger(prev) })

	var buf bytes.Buffer
	SetDefaultLogger(NewLogger(&Config{Level: LevelInfo, Format: FormatJSON, Output: &buf}))
	WithField("k", "v").Info("swapped")

	assert.Contains(t, buf.String(), `"k":"v"`)
}
