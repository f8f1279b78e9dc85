// internal/llmclient/factory.go
package llmclient

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/marionette/api/schemas"
	"github.com/xkilldash9x/marionette/internal/config"
)

// NewClient builds the tier router from the agent configuration: it
// resolves the configured default fast and powerful model aliases against
// the models map, constructs a provider client for each, and wires them
// into an LLMRouter.
func NewClient(cfg config.AgentConfig, logger *zap.Logger) (schemas.LLMClient, error) {
	routerCfg := cfg.LLM

	if routerCfg.DefaultFastModel == "" {
		return nil, fmt.Errorf("configuration error: DefaultFastModel is not specified in LLMRouterConfig")
	}
	if routerCfg.DefaultPowerfulModel == "" {
		return nil, fmt.Errorf("configuration error: DefaultPowerfulModel is not specified in LLMRouterConfig")
	}

	fastCfg, ok := routerCfg.Models[routerCfg.DefaultFastModel]
	if !ok {
		return nil, fmt.Errorf("configuration error: DefaultFastModel '%s' not found in the models map", routerCfg.DefaultFastModel)
	}
	powerfulCfg, ok := routerCfg.Models[routerCfg.DefaultPowerfulModel]
	if !ok {
		return nil, fmt.Errorf("configuration error: DefaultPowerfulModel '%s' not found in the models map", routerCfg.DefaultPowerfulModel)
	}

	fastClient, err := newProviderClient(fastCfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Fast tier LLM client (Model: %s): %w", routerCfg.DefaultFastModel, err)
	}

	powerfulClient, err := newProviderClient(powerfulCfg, logger)
	if err != nil {
		fastClient.Close()
		return nil, fmt.Errorf("failed to initialize Powerful tier LLM client (Model: %s): %w", routerCfg.DefaultPowerfulModel, err)
	}

	return NewLLMRouter(logger, fastClient, powerfulClient)
}

// newProviderClient dispatches on the configured provider.
func newProviderClient(cfg config.LLMModelConfig, logger *zap.Logger) (schemas.LLMClient, error) {
	switch cfg.Provider {
	case config.ProviderGemini:
		return NewGeminiClient(cfg, logger)
	case config.ProviderOpenAI:
		return NewOpenAIClient(cfg, logger)
	case "":
		return nil, fmt.Errorf("LLM provider is not specified in the model configuration")
	default:
		return nil, fmt.Errorf("unknown or unsupported LLM provider configured: '%s'. Supported: [%s, %s]",
			cfg.Provider, config.ProviderGemini, config.ProviderOpenAI)
	}
}
