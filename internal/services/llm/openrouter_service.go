package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/secsignal/internal/interfaces"
)

// DefaultOpenRouterBaseURL is the OpenAI-compatible OpenRouter endpoint
const DefaultOpenRouterBaseURL = "https://openrouter.ai/api/v1"

// EinoService implements the LLMService interface over an eino chat model.
// OpenRouter and DeepSeek both use it with their own eino-ext model.
type EinoService struct {
	provider string
	chat     model.BaseChatModel
	model    string
	timeout  time.Duration
	logger   arbor.ILogger
}

// NewOpenRouterService creates an OpenRouter service through the eino OpenAI model
func NewOpenRouterService(ctx context.Context, settings ServiceSettings, logger arbor.ILogger) (*EinoService, error) {
	if settings.APIKey == "" {
		return nil, fmt.Errorf("OpenRouter API key is required (set OPENROUTER_API_KEY, SECSIGNAL_OPENROUTER_API_KEY, or llm.openrouter.api_key)")
	}
	if settings.Model == "" {
		return nil, fmt.Errorf("a model is required for OpenRouter")
	}

	baseURL := settings.BaseURL
	if baseURL == "" {
		baseURL = DefaultOpenRouterBaseURL
	}

	maxTokens := settings.maxTokens()
	temperature := settings.Temperature
	chatModel, err := openai.NewChatModel(ctx, &openai.ChatModelConfig{
		BaseURL:     baseURL,
		APIKey:      settings.APIKey,
		Model:       settings.Model,
		MaxTokens:   &maxTokens,
		Temperature: &temperature,
		Timeout:     settings.timeout(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create OpenRouter chat model: %w", err)
	}

	logger.Debug().
		Str("model", settings.Model).
		Str("base_url", baseURL).
		Float32("temperature", temperature).
		Msg("OpenRouter LLM service initialized")

	return newEinoService("OpenRouter", chatModel, settings, logger), nil
}

func newEinoService(provider string, chat model.BaseChatModel, settings ServiceSettings, logger arbor.ILogger) *EinoService {
	return &EinoService{
		provider: provider,
		chat:     chat,
		model:    settings.Model,
		timeout:  settings.timeout(),
		logger:   logger,
	}
}

// Chat generates a completion response based on the conversation history
func (s *EinoService) Chat(ctx context.Context, messages []interfaces.Message) (string, error) {
	turns, systemText, err := splitSystem(messages)
	if err != nil {
		return "", err
	}

	input := make([]*schema.Message, 0, len(turns)+1)
	if systemText != "" {
		input = append(input, schema.SystemMessage(systemText))
	}
	for _, msg := range turns {
		if msg.Role == RoleAssistant {
			input = append(input, schema.AssistantMessage(msg.Content, nil))
			continue
		}
		input = append(input, schema.UserMessage(msg.Content))
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	startTime := time.Now()
	out, err := s.chat.Generate(timeoutCtx, input)
	if err != nil {
		s.logger.Warn().Err(err).Str("provider", s.provider).Str("model", s.model).Msg("Chat completion failed")
		return "", transportError(ctx, s.provider, err)
	}

	content := ""
	if out != nil {
		content = out.Content
	}

	s.logger.Debug().
		Str("provider", s.provider).
		Str("model", s.model).
		Int("response_length", len(content)).
		Dur("duration", time.Since(startTime)).
		Msg("Chat completion completed")

	return content, nil
}

// Model returns the model identifier
func (s *EinoService) Model() string {
	return s.model
}

// Close releases resources; eino chat models hold no connections of their own
func (s *EinoService) Close() error {
	return nil
}
