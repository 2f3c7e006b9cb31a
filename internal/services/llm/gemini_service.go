package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/secsignal/internal/interfaces"
	"google.golang.org/genai"
)

// DefaultGeminiModel is used when no model is configured for the gemini provider
const DefaultGeminiModel = "gemini-2.5-flash"

// GeminiService implements the LLMService interface using the Google Gemini API
type GeminiService struct {
	client      *genai.Client
	model       string
	temperature float32
	maxTokens   int
	timeout     time.Duration
	logger      arbor.ILogger
}

// convertMessagesToGemini maps messages onto Gemini contents; the system prompt is
// returned separately for use as SystemInstruction.
func convertMessagesToGemini(messages []interfaces.Message) ([]*genai.Content, string, error) {
	turns, systemText, err := splitSystem(messages)
	if err != nil {
		return nil, "", err
	}

	contents := make([]*genai.Content, 0, len(turns))
	for _, msg := range turns {
		role := genai.RoleUser
		if msg.Role == RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, &genai.Content{
			Role:  role,
			Parts: []*genai.Part{genai.NewPartFromText(msg.Content)},
		})
	}

	return contents, systemText, nil
}

// NewGeminiService creates a new Gemini LLM service instance
func NewGeminiService(ctx context.Context, settings ServiceSettings, logger arbor.ILogger) (*GeminiService, error) {
	if settings.APIKey == "" {
		return nil, fmt.Errorf("Google API key is required for Gemini service (set GEMINI_API_KEY, GOOGLE_API_KEY, or llm.gemini.api_key)")
	}

	model := settings.Model
	if model == "" {
		model = DefaultGeminiModel
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  settings.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	service := &GeminiService{
		client:      client,
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
		Msg("Gemini LLM service initialized")

	return service, nil
}

// Chat generates a completion response based on the conversation history
func (s *GeminiService) Chat(ctx context.Context, messages []interfaces.Message) (string, error) {
	contents, systemText, err := convertMessagesToGemini(messages)
	if err != nil {
		return "", fmt.Errorf("failed to convert messages to Gemini format: %w", err)
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	config := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(s.temperature),
		MaxOutputTokens: int32(s.maxTokens),
	}
	if systemText != "" {
		config.SystemInstruction = genai.NewContentFromText(systemText, genai.RoleUser)
	}

	startTime := time.Now()
	resp, err := s.client.Models.GenerateContent(timeoutCtx, s.model, contents, config)
	if err != nil {
		s.logger.Warn().Err(err).Str("model", s.model).Msg("Gemini chat completion failed")
		return "", transportError(ctx, "Gemini", err)
	}

	// Use the first candidate with text
	var response strings.Builder
	if resp != nil {
		for _, candidate := range resp.Candidates {
			if candidate.Content == nil {
				continue
			}
			for _, part := range candidate.Content.Parts {
				response.WriteString(part.Text)
			}
			if response.Len() > 0 {
				break
			}
		}
	}

	s.logger.Debug().
		Str("model", s.model).
		Int("response_length", response.Len()).
		Dur("duration", time.Since(startTime)).
		Msg("Gemini chat completion completed")

	return response.String(), nil
}

// Model returns the Gemini model identifier
func (s *GeminiService) Model() string {
	return s.model
}

// Close releases resources; genai.Client needs no explicit cleanup
func (s *GeminiService) Close() error {
	s.client = nil
	return nil
}
