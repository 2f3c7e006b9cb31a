package llm

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino-ext/components/model/deepseek"
	"github.com/ternarybob/arbor"
)

// Defaults for the deepseek provider
const (
	DefaultDeepSeekBaseURL = "https://api.deepseek.com/v1"
	DefaultDeepSeekModel   = "deepseek-chat"
)

// NewDeepSeekService creates a DeepSeek service through the eino DeepSeek model
func NewDeepSeekService(ctx context.Context, settings ServiceSettings, logger arbor.ILogger) (*EinoService, error) {
	if settings.APIKey == "" {
		return nil, fmt.Errorf("DeepSeek API key is required (set DEEPSEEK_API_KEY, SECSIGNAL_DEEPSEEK_API_KEY, or llm.deepseek.api_key)")
	}
	if settings.Model == "" {
		settings.Model = DefaultDeepSeekModel
	}
	if settings.BaseURL == "" {
		settings.BaseURL = DefaultDeepSeekBaseURL
	}

	chatModel, err := deepseek.NewChatModel(ctx, &deepseek.ChatModelConfig{
		APIKey:      settings.APIKey,
		BaseURL:     settings.BaseURL,
		Model:       settings.Model,
		MaxTokens:   settings.maxTokens(),
		Temperature: settings.Temperature,
		Timeout:     settings.timeout(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create DeepSeek chat model: %w", err)
	}

	logger.Debug().
		Str("model", settings.Model).
		Str("base_url", settings.BaseURL).
		Float32("temperature", settings.Temperature).
		Msg("DeepSeek LLM service initialized")

	return newEinoService("DeepSeek", chatModel, settings, logger), nil
}
