package sentiment

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/secsignal/internal/interfaces"
	"github.com/ternarybob/secsignal/internal/models"
)

const systemPrompt = `You are a senior equity analyst specializing in SEC filings analysis.
Given the text of an SEC filing, return ONLY a JSON object with these keys:

{
  "sentiment": "positive" | "negative" | "neutral",
  "score": number between -1.0 (very negative) and 1.0 (very positive),
  "guidance_change": "raised" | "lowered" | "none" | "unclear",
  "risk_level": "low" | "medium" | "high",
  "rationale": "one or two sentences",
  "forward_looking_sentiment": number between 0.0 and 1.0,
  "uncertainty_level": number between 0.0 and 1.0,
  "executive_tone": "positive" | "neutral" | "negative",
  "mna_intent": "acquisition" | "divestiture" | "merger" | "spin-off" | "none"
}

Return only the JSON object without any additional text, explanation or markdown.`

// LLMScorer scores filing text with a chat model
type LLMScorer struct {
	llm      interfaces.LLMService
	maxChars int
	logger   arbor.ILogger
}

// NewLLMScorer creates a scorer; text longer than maxChars is truncated before prompting
func NewLLMScorer(llm interfaces.LLMService, maxChars int, logger arbor.ILogger) *LLMScorer {
	return &LLMScorer{
		llm:      llm,
		maxChars: maxChars,
		logger:   logger,
	}
}

// Score asks the model for a sentiment assessment. The returned result has no FilingID.
func (s *LLMScorer) Score(ctx context.Context, text string) (*models.SentimentResult, error) {
	if s.maxChars > 0 && len(text) > s.maxChars {
		s.logger.Debug().
			Int("original_chars", len(text)).
			Int("max_chars", s.maxChars).
			Msg("Truncating filing text")
		text = text[:s.maxChars]
	}

	reply, err := s.llm.Chat(ctx, []interfaces.Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: fmt.Sprintf("Analyze the following SEC filing for sentiment and trading signals:\n\n%s", text)},
	})
	if err != nil {
		return nil, err
	}

	resp, err := ParseReply(reply)
	if err != nil {
		s.logger.Debug().Str("reply", truncate(reply, 300)).Msg("Unparseable sentiment reply")
		return nil, err
	}

	return ToResult("", resp, s.llm.Model(), time.Now().UTC()), nil
}

// Model returns the model identifier
func (s *LLMScorer) Model() string {
	return s.llm.Model()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
