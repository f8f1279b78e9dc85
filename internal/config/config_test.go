// File: internal/config/config_test.go
package config

import (
	"bytes"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// -- Constructor and Defaults Tests --

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()

	// Verify a few key defaults to ensure the mechanism works.
	assert.Equal(t, "info", cfg.Logger.Level)
	assert.Equal(t, "marionette", cfg.Logger.ServiceName)
	assert.Equal(t, 30, cfg.Agent.MaxSteps)
	assert.Equal(t, 5, cfg.Agent.HistoryDepth)
	assert.Equal(t, 2*time.Second, cfg.Agent.SettleClick)
	assert.Equal(t, 500*time.Millisecond, cfg.Agent.SettleType)
	assert.Equal(t, "pro", cfg.Agent.LLM.DefaultPowerfulModel)
	assert.Equal(t, "flash", cfg.Agent.LLM.DefaultFastModel)
	assert.Equal(t, ProviderGemini, cfg.Agent.LLM.Models["pro"].Provider)
	assert.Equal(t, 3, cfg.Input.JitterPx)
	assert.Equal(t, 30*time.Millisecond, cfg.Input.TypeInterval)
	assert.Equal(t, 300*time.Millisecond, cfg.Input.FocusDelay)
	assert.Equal(t, "127.0.0.1:8081", cfg.Service.Addr)
	assert.True(t, cfg.Service.Autostart)
	assert.Equal(t, 2*time.Second, cfg.Service.ActionTimeout)
	assert.Equal(t, 5*time.Second, cfg.Service.ScreenshotTimeout)
	assert.True(t, cfg.Capture.ServiceEnabled)
}

// -- Validation Logic Tests --

func TestConfigValidation(t *testing.T) {
	t.Run("Valid Defaults", func(t *testing.T) {
		cfg := NewDefaultConfig()
		assert.NoError(t, cfg.Validate(), "the default config should validate cleanly")
	})

	t.Run("Agent Validation", func(t *testing.T) {
		cfg := NewDefaultConfig()
		cfg.Agent.MaxSteps = 0
		err := cfg.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "max_steps must be a positive integer")

		cfg = NewDefaultConfig()
		cfg.Agent.HistoryDepth = -1
		err = cfg.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "history_depth must be a positive integer")

		cfg = NewDefaultConfig()
		cfg.Agent.RequestsPerMinute = 0
		err = cfg.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "requests_per_minute must be positive")
	})

	t.Run("Input Validation", func(t *testing.T) {
		cfg := NewDefaultConfig()
		cfg.Input.JitterPx = -2
		err := cfg.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "jitter_px must not be negative")
	})

	t.Run("Service Validation", func(t *testing.T) {
		cfg := NewDefaultConfig()
		cfg.Service.Addr = ""
		err := cfg.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "addr is required")

		cfg = NewDefaultConfig()
		cfg.Service.ActionTimeout = 0
		err = cfg.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "timeouts must be positive")
	})
}

// -- Loading Tests --

func TestNewConfigFromViper(t *testing.T) {
	t.Run("YAML Overrides", func(t *testing.T) {
		yaml := []byte(`
agent:
  max_steps: 12
  settle_click: 1s
input:
  jitter_px: 0
service:
  addr: "127.0.0.1:9191"
  autostart: false
`)
		v := viper.New()
		SetDefaults(v)
		v.SetConfigType("yaml")
		require.NoError(t, v.ReadConfig(bytes.NewBuffer(yaml)))

		cfg, err := NewConfigFromViper(v)
		require.NoError(t, err)

		assert.Equal(t, 12, cfg.Agent.MaxSteps)
		assert.Equal(t, time.Second, cfg.Agent.SettleClick)
		assert.Equal(t, 0, cfg.Input.JitterPx)
		assert.Equal(t, "127.0.0.1:9191", cfg.Service.Addr)
		assert.False(t, cfg.Service.Autostart)
		// Values not overridden keep their defaults.
		assert.Equal(t, 5, cfg.Agent.HistoryDepth)
	})

	t.Run("API Key From Environment", func(t *testing.T) {
		t.Setenv("GEMINI_API_KEY", "test-key-from-env")

		v := viper.New()
		SetDefaults(v)
		cfg, err := NewConfigFromViper(v)
		require.NoError(t, err)

		assert.Equal(t, "test-key-from-env", cfg.Agent.LLM.Models["pro"].APIKey)
		assert.Equal(t, "test-key-from-env", cfg.Agent.LLM.Models["flash"].APIKey)
	})

	t.Run("Invalid Values Rejected", func(t *testing.T) {
		v := viper.New()
		SetDefaults(v)
		v.Set("agent.max_steps", -5)

		_, err := NewConfigFromViper(v)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid configuration")
	})
}
