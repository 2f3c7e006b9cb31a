package interfaces

import (
	"context"

	"github.com/ternarybob/secsignal/internal/models"
)

// SentimentScorer scores the text of one filing.
// Transport failures wrap common.ErrTransientIO; unusable replies wrap common.ErrMalformedResponse.
type SentimentScorer interface {
	Score(ctx context.Context, text string) (*models.SentimentResult, error)
	Model() string
}

// DecisionRequest is what the agentic strategy sees about a filing
type DecisionRequest struct {
	Filing    *models.FilingRecord
	Sentiment *models.SentimentResult
	Excerpt   string
}

// DecisionReasoner asks a language model for a signal. strict selects the
// reformulated prompt used after an unparseable reply.
type DecisionReasoner interface {
	Decide(ctx context.Context, req *DecisionRequest, strict bool) (string, error)
	Model() string
}
