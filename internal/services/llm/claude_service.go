package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/secsignal/internal/interfaces"
)

// DefaultClaudeModel is used when no model is configured for the claude provider
const DefaultClaudeModel = "claude-sonnet-4-20250514"

// ClaudeService implements the LLMService interface using Anthropic Claude API.
type ClaudeService struct {
	client      anthropic.Client
	model       string
	temperature float32
	maxTokens   int
	timeout     time.Duration
	logger      arbor.ILogger
}

// convertMessagesToClaude converts messages to Claude MessageParam format.
// System messages are returned separately for use with the System parameter.
func convertMessagesToClaude(messages []interfaces.Message) ([]anthropic.MessageParam, string, error) {
	turns, systemText, err := splitSystem(messages)
	if err != nil {
		return nil, "", err
	}

	claudeMessages := make([]anthropic.MessageParam, 0, len(turns))
	for _, msg := range turns {
		if msg.Role == RoleAssistant {
			claudeMessages = append(claudeMessages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(msg.Content)))
			continue
		}
		claudeMessages = append(claudeMessages, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))
	}

	return claudeMessages, systemText, nil
}

// NewClaudeService creates a new Claude LLM service instance
func NewClaudeService(settings ServiceSettings, logger arbor.ILogger) (*ClaudeService, error) {
	if settings.APIKey == "" {
		return nil, fmt.Errorf("Anthropic API key is required for Claude service (set ANTHROPIC_API_KEY, SECSIGNAL_CLAUDE_API_KEY, or llm.claude.api_key)")
	}

	model := settings.Model
	if model == "" {
		model = DefaultClaudeModel
	}

	opts := []option.RequestOption{option.WithAPIKey(settings.APIKey)}
	if settings.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(settings.BaseURL))
	}

	service := &ClaudeService{
		client:      anthropic.NewClient(opts...),
		model:       model,
		temperature: settings.Temperature,
		maxTokens:   settings.maxTokens(),
		timeout:     settings.timeout(),
		logger:      logger,
	}

	logger.Debug().
		Str("model", model).
		Dur("timeout", service.timeout).
		Float32("temperature", settings.Temperature).
		Int("max_tokens", service.maxTokens).
		Msg("Claude LLM service initialized")

	return service, nil
}

// Chat generates a completion response based on the conversation history
func (s *ClaudeService) Chat(ctx context.Context, messages []interfaces.Message) (string, error) {
	claudeMessages, systemText, err := convertMessagesToClaude(messages)
	if err != nil {
		return "", fmt.Errorf("failed to convert messages to Claude format: %w", err)
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(s.model),
		MaxTokens: int64(s.maxTokens),
		Messages:  claudeMessages,
	}
	if s.temperature > 0 {
		params.Temperature = anthropic.Float(float64(s.temperature))
	}
	if systemText != "" {
		params.System = []anthropic.TextBlockParam{{Text: systemText}}
	}

	startTime := time.Now()
	resp, err := s.client.Messages.New(timeoutCtx, params)
	if err != nil {
		s.logger.Warn().Err(err).Str("model", s.model).Msg("Claude chat completion failed")
		return "", transportError(ctx, "Claude", err)
	}

	var response strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			response.WriteString(block.Text)
		}
	}

	s.logger.Debug().
		Str("model", s.model).
		Int("response_length", response.Len()).
		Dur("duration", time.Since(startTime)).
		Msg("Claude chat completion completed")

	return response.String(), nil
}

// Model returns the Claude model identifier
func (s *ClaudeService) Model() string {
	return s.model
}

// Close releases resources; the Anthropic client needs no explicit cleanup
func (s *ClaudeService) Close() error {
	return nil
}
