package observability

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/richinex/firemaker/config"
)

func TestNewWritesConsoleAndFile(t *testing.T) {
	var console bytes.Buffer
	logFile := filepath.Join(t.TempDir(), "logs", "firemaker.log")
	cfg := config.LoggerConfig{
		Level:       "info",
		Format:      "console",
		ServiceName: "firemaker",
		LogFile:     logFile,
		MaxSize:     1,
	}

	logger, err := New(cfg, zapcore.AddSync(&console), "run-42")
	require.NoError(t, err)

	logger.Named("agent").Info("transition", zap.String("from", "Idle"), zap.String("to", "Locating"))
	logger.Debug("hidden")
	require.NoError(t, logger.Sync())

	out := console.String()
	assert.Contains(t, out, "firemaker.agent.")
	assert.Contains(t, out, "transition")
	assert.Contains(t, out, colorCyan+"INFO"+colorReset)
	assert.NotContains(t, out, "hidden")

	raw, err := os.ReadFile(logFile)
	require.NoError(t, err)
	line := strings.TrimSpace(strings.Split(string(raw), "\n")[0])
	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(line), &entry))
	assert.Equal(t, "INFO", entry["level"])
	assert.Equal(t, "run-42", entry["run_id"])
	assert.Equal(t, "Locating", entry["to"])
}

func TestNewJSONConsole(t *testing.T) {
	var console bytes.Buffer
	logger, err := New(config.LoggerConfig{Level: "debug", Format: "json"}, zapcore.AddSync(&console), "")
	require.NoError(t, err)

	logger.Debug("click", zap.Int("x", 10))
	require.NoError(t, logger.Sync())

	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(console.Bytes()), &entry))
	assert.Equal(t, "DEBUG", entry["level"])
	assert.EqualValues(t, 10, entry["x"])
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	_, err := New(config.LoggerConfig{Level: "chatty"}, zapcore.AddSync(&bytes.Buffer{}), "")
	assert.Error(t, err)
}
