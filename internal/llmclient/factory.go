// internal/llmclient/factory.go
package llmclient

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/codeguard-pro/codeguard/api/schemas"
	"github.com/codeguard-pro/codeguard/internal/config"
)

// NewClient is a factory function that creates an LLMClient based on the configuration.
func NewClient(cfg config.LLMModelConfig, logger *zap.Logger) (schemas.LLMClient, error) {
	switch cfg.Provider {
	case config.ProviderGemini:
		return NewGeminiClient(cfg, logger)
	default:
		return nil, fmt.Errorf("unknown or unsupported LLM provider configured: '%s'. Supported: [%s]", cfg.Provider, config.ProviderGemini)
	}
}

// NewRouterFromConfig builds an LLMRouter wiring the fast and powerful tiers
// from the agent's LLM router configuration. If FixAgent's LLM path is
// unconfigured (no API key for either tier), it returns a nil router and a
// nil error: callers fall back to the rule-based FixAgent path.
func NewRouterFromConfig(cfg config.LLMRouterConfig, logger *zap.Logger) (schemas.LLMClient, error) {
	if cfg.Fast.APIKey == "" && cfg.Powerful.APIKey == "" {
		return nil, nil
	}

	fast, err := NewClient(cfg.Fast, logger)
	if err != nil {
		return nil, fmt.Errorf("building fast-tier LLM client: %w", err)
	}
	powerful, err := NewClient(cfg.Powerful, logger)
	if err != nil {
		return nil, fmt.Errorf("building powerful-tier LLM client: %w", err)
	}

	return NewLLMRouter(logger, fast, powerful)
}
