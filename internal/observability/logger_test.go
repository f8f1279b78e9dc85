// internal/observability/logger_test.go
package observability

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/xkilldash9x/marionette/internal/config"
)

// syncBuffer adapts bytes.Buffer to zapcore.WriteSyncer so tests can
// capture console output without touching os.Stdout.
type syncBuffer struct {
	bytes.Buffer
}

func (s *syncBuffer) Sync() error { return nil }

func TestInitialize(t *testing.T) {
	t.Run("console format writes readable lines", func(t *testing.T) {
		ResetForTest()
		t.Cleanup(ResetForTest)

		var buf syncBuffer
		cfg := config.LoggerConfig{
			Level:       "debug",
			Format:      "console",
			ServiceName: "test-service",
		}
		Initialize(cfg, &buf)

		logger := GetLogger()
		logger.Info("pointer moved", zap.Int("x", 120), zap.Int("y", 48))
		require.NoError(t, logger.Sync())

		output := buf.String()
		assert.Contains(t, output, "INFO")
		assert.Contains(t, output, "pointer moved")
		assert.Contains(t, output, "test-service")
	})

	t.Run("json format emits valid objects", func(t *testing.T) {
		ResetForTest()
		t.Cleanup(ResetForTest)

		var buf syncBuffer
		cfg := config.LoggerConfig{
			Level:       "info",
			Format:      "json",
			ServiceName: "json-test",
		}
		Initialize(cfg, &buf)

		GetLogger().Warn("backend unavailable", zap.String("backend", "service"))
		require.NoError(t, GetLogger().Sync())

		var entry map[string]interface{}
		require.NoError(t, json.Unmarshal(buf.Bytes(), &entry), "log output should be valid JSON")
		assert.Equal(t, "WARN", entry["level"])
		assert.Equal(t, "backend unavailable", entry["msg"])
		assert.Equal(t, "service", entry["backend"])
	})

	t.Run("invalid level falls back to info", func(t *testing.T) {
		ResetForTest()
		t.Cleanup(ResetForTest)

		var buf syncBuffer
		Initialize(config.LoggerConfig{Level: "chatty", Format: "json", ServiceName: "lvl"}, &buf)

		GetLogger().Debug("should be dropped")
		GetLogger().Info("should appear")
		require.NoError(t, GetLogger().Sync())

		assert.NotContains(t, buf.String(), "should be dropped")
		assert.Contains(t, buf.String(), "should appear")
	})

	t.Run("file core writes rotating json log", func(t *testing.T) {
		ResetForTest()
		t.Cleanup(ResetForTest)

		logPath := filepath.Join(t.TempDir(), "marionette-test.log")
		var buf syncBuffer
		cfg := config.LoggerConfig{
			Level:       "info",
			Format:      "console",
			ServiceName: "file-test",
			LogFile:     logPath,
			MaxSize:     1,
		}
		Initialize(cfg, &buf)

		GetLogger().Info("persisted entry")
		_ = GetLogger().Sync()

		data, err := os.ReadFile(logPath)
		require.NoError(t, err)
		assert.Contains(t, string(data), "persisted entry")
	})

	t.Run("second initialize is a no-op", func(t *testing.T) {
		ResetForTest()
		t.Cleanup(ResetForTest)

		var first, second syncBuffer
		Initialize(config.LoggerConfig{Level: "info", Format: "json", ServiceName: "one"}, &first)
		Initialize(config.LoggerConfig{Level: "info", Format: "json", ServiceName: "two"}, &second)

		GetLogger().Info("routed to the first writer")
		_ = GetLogger().Sync()

		assert.Contains(t, first.String(), "routed to the first writer")
		assert.Empty(t, second.String())
	})
}

func TestGetLoggerFallback(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)

	// Without initialization a usable development logger is returned
	// rather than nil.
	logger := GetLogger()
	require.NotNil(t, logger)
	logger.Debug("fallback logger is safe to use")
}

func TestSyncWithoutInitialize(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)

	// Sync on a never-initialized logger must not panic.
	Sync()
}

var _ zapcore.WriteSyncer = (*syncBuffer)(nil)
