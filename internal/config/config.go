// File: internal/config/config.go
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

// Config holds the entire application configuration. It is populated from
// defaults, an optional YAML config file, MARIONETTE_* environment
// variables, and command-line flag overrides, in that order of precedence.
type Config struct {
	Logger  LoggerConfig  `mapstructure:"logger" yaml:"logger"`
	Agent   AgentConfig   `mapstructure:"agent" yaml:"agent"`
	Capture CaptureConfig `mapstructure:"capture" yaml:"capture"`
	Input   InputConfig   `mapstructure:"input" yaml:"input"`
	Service ServiceConfig `mapstructure:"service" yaml:"service"`
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Format      string `mapstructure:"format" yaml:"format"`
	AddSource   bool   `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int    `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int    `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool   `mapstructure:"compress" yaml:"compress"`
}

// AgentConfig holds settings for the execution loop and its vision model.
type AgentConfig struct {
	LLM LLMRouterConfig `mapstructure:"llm" yaml:"llm"`

	// MaxSteps bounds one task execution; reaching it without completion
	// ends the task with a max-steps failure.
	MaxSteps int `mapstructure:"max_steps" yaml:"max_steps"`
	// HistoryDepth is how many recent action descriptions are replayed in
	// the planning prompt.
	HistoryDepth int `mapstructure:"history_depth" yaml:"history_depth"`
	// RequestsPerMinute rate-limits planning/detection calls to the model.
	RequestsPerMinute float64 `mapstructure:"requests_per_minute" yaml:"requests_per_minute"`

	// Settle delays give the UI time to react before the next capture.
	SettleClick time.Duration `mapstructure:"settle_click" yaml:"settle_click"`
	SettleType  time.Duration `mapstructure:"settle_type" yaml:"settle_type"`
	SettleKey   time.Duration `mapstructure:"settle_key" yaml:"settle_key"`
	// RepeatSettle is the extra pre-action delay applied when the guard
	// sees the target landing near recently used coordinates.
	RepeatSettle time.Duration `mapstructure:"repeat_settle" yaml:"repeat_settle"`
}

// CaptureConfig tunes the screenshot backend chain.
type CaptureConfig struct {
	// ServiceEnabled gates the privileged-service backend; the native and
	// subprocess backends always remain as fallbacks.
	ServiceEnabled bool `mapstructure:"service_enabled" yaml:"service_enabled"`
	// Display selects which display the native backend captures.
	Display int `mapstructure:"display" yaml:"display"`
	// SubprocessTimeout bounds the external capture utility.
	SubprocessTimeout time.Duration `mapstructure:"subprocess_timeout" yaml:"subprocess_timeout"`
}

// InputConfig tunes how decisions become real input events.
type InputConfig struct {
	// JitterPx is the maximum random offset applied per axis before a
	// click; 0 disables jitter entirely.
	JitterPx int `mapstructure:"jitter_px" yaml:"jitter_px"`
	// TypeInterval is the per-character delay during text injection.
	TypeInterval time.Duration `mapstructure:"type_interval" yaml:"type_interval"`
	// FocusDelay is the pause between the focusing click and the first
	// injected character.
	FocusDelay time.Duration `mapstructure:"focus_delay" yaml:"focus_delay"`
	// MoveDuration is the total pointer travel time for one move.
	MoveDuration time.Duration `mapstructure:"move_duration" yaml:"move_duration"`
}

// ServiceConfig configures both sides of the privileged GUI service: the
// address the daemon binds and the loopback client's timeouts.
type ServiceConfig struct {
	Addr      string `mapstructure:"addr" yaml:"addr"`
	Autostart bool   `mapstructure:"autostart" yaml:"autostart"`
	// Metrics toggles the Prometheus exposition endpoint on the daemon.
	Metrics bool `mapstructure:"metrics" yaml:"metrics"`

	// Short client timeouts; a slow service is treated as unavailable and
	// callers fall back to direct injection rather than hang.
	HealthTimeout     time.Duration `mapstructure:"health_timeout" yaml:"health_timeout"`
	ActionTimeout     time.Duration `mapstructure:"action_timeout" yaml:"action_timeout"`
	ScreenshotTimeout time.Duration `mapstructure:"screenshot_timeout" yaml:"screenshot_timeout"`
	TypeTimeout       time.Duration `mapstructure:"type_timeout" yaml:"type_timeout"`
	// StartupDeadline bounds how long the supervisor waits for a spawned
	// daemon to report healthy.
	StartupDeadline time.Duration `mapstructure:"startup_deadline" yaml:"startup_deadline"`
}

// LLMProvider defines the supported LLM providers.
type LLMProvider string

const (
	ProviderGemini LLMProvider = "gemini"
	ProviderOpenAI LLMProvider = "openai"
)

// LLMRouterConfig configures the model routing logic.
type LLMRouterConfig struct {
	DefaultFastModel     string                    `mapstructure:"default_fast_model" yaml:"default_fast_model"`
	DefaultPowerfulModel string                    `mapstructure:"default_powerful_model" yaml:"default_powerful_model"`
	Models               map[string]LLMModelConfig `mapstructure:"models" yaml:"models"`
}

// LLMModelConfig defines the configuration for a single model.
type LLMModelConfig struct {
	Provider      LLMProvider       `mapstructure:"provider" yaml:"provider"`
	Model         string            `mapstructure:"model" yaml:"model"`
	APIKey        string            `mapstructure:"api_key" yaml:"-"`
	Endpoint      string            `mapstructure:"endpoint" yaml:"endpoint"`
	APITimeout    time.Duration     `mapstructure:"api_timeout" yaml:"api_timeout"`
	Temperature   float32           `mapstructure:"temperature" yaml:"temperature"`
	TopP          float32           `mapstructure:"top_p" yaml:"top_p"`
	TopK          int               `mapstructure:"top_k" yaml:"top_k"`
	MaxTokens     int               `mapstructure:"max_tokens" yaml:"max_tokens"`
	SafetyFilters map[string]string `mapstructure:"safety_filters" yaml:"safety_filters"`
}

// NewDefaultConfig creates a new configuration struct populated with
// default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// This should not happen with defaults, but good to be safe.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for various configuration
// parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "marionette")
	v.SetDefault("logger.log_file", "marionette.log")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)

	// -- Agent --
	v.SetDefault("agent.max_steps", 30)
	v.SetDefault("agent.history_depth", 5)
	v.SetDefault("agent.requests_per_minute", 30.0)
	v.SetDefault("agent.settle_click", "2s")
	v.SetDefault("agent.settle_type", "500ms")
	v.SetDefault("agent.settle_key", "500ms")
	v.SetDefault("agent.repeat_settle", "2s")
	v.SetDefault("agent.llm.default_fast_model", "flash")
	v.SetDefault("agent.llm.default_powerful_model", "pro")
	v.SetDefault("agent.llm.models.flash.provider", "gemini")
	v.SetDefault("agent.llm.models.flash.model", "gemini-2.5-flash")
	v.SetDefault("agent.llm.models.flash.api_timeout", "60s")
	v.SetDefault("agent.llm.models.flash.temperature", 0.1)
	v.SetDefault("agent.llm.models.flash.max_tokens", 1024)
	v.SetDefault("agent.llm.models.pro.provider", "gemini")
	v.SetDefault("agent.llm.models.pro.model", "gemini-2.5-pro")
	v.SetDefault("agent.llm.models.pro.api_timeout", "120s")
	v.SetDefault("agent.llm.models.pro.temperature", 0.2)
	v.SetDefault("agent.llm.models.pro.max_tokens", 2048)

	// -- Capture --
	v.SetDefault("capture.service_enabled", true)
	v.SetDefault("capture.display", 0)
	v.SetDefault("capture.subprocess_timeout", "10s")

	// -- Input --
	v.SetDefault("input.jitter_px", 3)
	v.SetDefault("input.type_interval", "30ms")
	v.SetDefault("input.focus_delay", "300ms")
	v.SetDefault("input.move_duration", "200ms")

	// -- Service --
	v.SetDefault("service.addr", "127.0.0.1:8081")
	v.SetDefault("service.autostart", true)
	v.SetDefault("service.metrics", true)
	v.SetDefault("service.health_timeout", "2s")
	v.SetDefault("service.action_timeout", "2s")
	v.SetDefault("service.screenshot_timeout", "5s")
	v.SetDefault("service.type_timeout", "5s")
	v.SetDefault("service.startup_deadline", "10s")
}

// NewConfigFromViper creates a new configuration instance from a viper
// object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	// API keys never live in the config file; pull them from the
	// conventional environment variables when unset.
	for name, m := range cfg.Agent.LLM.Models {
		if m.APIKey != "" {
			continue
		}
		switch m.Provider {
		case ProviderGemini:
			m.APIKey = os.Getenv("GEMINI_API_KEY")
		case ProviderOpenAI:
			m.APIKey = os.Getenv("OPENAI_API_KEY")
		}
		cfg.Agent.LLM.Models[name] = m
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if err := c.Agent.Validate(); err != nil {
		return fmt.Errorf("agent configuration invalid: %w", err)
	}
	if err := c.Input.Validate(); err != nil {
		return fmt.Errorf("input configuration invalid: %w", err)
	}
	if err := c.Service.Validate(); err != nil {
		return fmt.Errorf("service configuration invalid: %w", err)
	}
	return nil
}

// Validate checks the AgentConfig settings.
func (a *AgentConfig) Validate() error {
	if a.MaxSteps <= 0 {
		return fmt.Errorf("max_steps must be a positive integer")
	}
	if a.HistoryDepth <= 0 {
		return fmt.Errorf("history_depth must be a positive integer")
	}
	if a.RequestsPerMinute <= 0 {
		return fmt.Errorf("requests_per_minute must be positive")
	}
	return nil
}

// Validate checks the InputConfig settings.
func (i *InputConfig) Validate() error {
	if i.JitterPx < 0 {
		return fmt.Errorf("jitter_px must not be negative")
	}
	if i.TypeInterval < 0 {
		return fmt.Errorf("type_interval must not be negative")
	}
	return nil
}

// Validate checks the ServiceConfig settings.
func (s *ServiceConfig) Validate() error {
	if s.Addr == "" {
		return fmt.Errorf("addr is required")
	}
	if s.ActionTimeout <= 0 || s.ScreenshotTimeout <= 0 {
		return fmt.Errorf("service timeouts must be positive durations")
	}
	return nil
}
