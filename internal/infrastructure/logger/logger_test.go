package logger

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name string
		cfg  *Config
	}{
		{name: "zero config", cfg: &Config{}},
		{name: "cli config", cfg: CLIConfig("debug")},
		{name: "json with service", cfg: &Config{Level: "warn", Format: "json", Output: "stderr", Service: "marketsync"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := New(tt.cfg)
			require.NoError(t, err)
			assert.NotNil(t, logger)
		})
	}
}

func TestNew_FileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sync.log")
	logger, err := New(&Config{Level: "info", Format: "json", Output: path, Service: "marketsync"})
	require.NoError(t, err)

	logger.Debug("hidden")
	logger.Info("Sync run finished", zap.String("status", "SUCCESS"))
	require.NoError(t, logger.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "Sync run finished", entry["msg"])
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "SUCCESS", entry["status"])
	assert.Equal(t, "marketsync", entry["service"])
	assert.Contains(t, entry, "caller")
}

func TestNew_UnwritableFile(t *testing.T) {
	_, err := New(&Config{Output: filepath.Join(t.TempDir(), "missing", "dir", "sync.log")})
	assert.Error(t, err)
}

func TestCLIConfig(t *testing.T) {
	cfg := CLIConfig("warn")
	assert.Equal(t, "stderr", cfg.Output)
	assert.Equal(t, "console", cfg.Format)
	assert.Equal(t, "warn", cfg.Level)
	assert.Empty(t, cfg.Service)
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		level    string
		expected zapcore.Level
	}{
		{"debug", zapcore.DebugLevel},
		{"INFO", zapcore.InfoLevel},
		{"warning", zapcore.WarnLevel},
		{"error", zapcore.ErrorLevel},
		{"fatal", zapcore.FatalLevel},
		{"", zapcore.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			assert.Equal(t, tt.expected, parseLevel(tt.level))
		})
	}
}
