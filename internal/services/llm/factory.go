package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/secsignal/internal/common"
	"github.com/ternarybob/secsignal/internal/interfaces"
)

const (
	defaultMaxTokens = 1024
	defaultTimeout   = 2 * time.Minute
)

// ServiceSettings is everything a provider needs to build one chat service
type ServiceSettings struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float32
	MaxTokens   int
	Timeout     time.Duration
}

func (s ServiceSettings) maxTokens() int {
	if s.MaxTokens <= 0 {
		return defaultMaxTokens
	}
	return s.MaxTokens
}

func (s ServiceSettings) timeout() time.Duration {
	if s.Timeout <= 0 {
		return defaultTimeout
	}
	return s.Timeout
}

// NewLLMService creates the chat service for a provider/model pair. Provider
// credentials come from the [llm.<provider>] configuration section.
func NewLLMService(
	ctx context.Context,
	cfg *common.Config,
	provider common.LLMProvider,
	model string,
	temperature float32,
	timeout string,
	logger arbor.ILogger,
) (interfaces.LLMService, error) {
	pc, err := cfg.ProviderSettings(provider)
	if err != nil {
		return nil, &common.ConfigurationError{Field: "llm." + string(provider), Reason: err.Error()}
	}

	settings := ServiceSettings{
		APIKey:      pc.APIKey,
		BaseURL:     pc.BaseURL,
		Model:       model,
		Temperature: temperature,
		MaxTokens:   pc.MaxTokens,
		Timeout:     common.MustDuration(timeout, defaultTimeout),
	}

	logger.Info().
		Str("provider", string(provider)).
		Str("model", model).
		Msg("Initializing LLM service")

	switch provider {
	case common.LLMProviderOpenRouter:
		service, err := NewOpenRouterService(ctx, settings, logger)
		if err != nil {
			return nil, err
		}
		return service, nil
	case common.LLMProviderDeepSeek:
		service, err := NewDeepSeekService(ctx, settings, logger)
		if err != nil {
			return nil, err
		}
		return service, nil
	case common.LLMProviderClaude:
		service, err := NewClaudeService(settings, logger)
		if err != nil {
			return nil, err
		}
		return service, nil
	case common.LLMProviderGemini:
		service, err := NewGeminiService(ctx, settings, logger)
		if err != nil {
			return nil, err
		}
		return service, nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", provider)
	}
}
