// Package agentic asks a language model for a trading decision on each scored
// filing, falling back to the rule-based decision when the model cannot answer.
package agentic

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/secsignal/internal/common"
	"github.com/ternarybob/secsignal/internal/interfaces"
	"github.com/ternarybob/secsignal/internal/models"
	"github.com/ternarybob/secsignal/internal/pipeline"
	"github.com/ternarybob/secsignal/internal/services/rules"
)

const (
	// DefaultContextChars bounds the filing excerpt sent with each request
	DefaultContextChars = 4000

	// FallbackPrefix starts the reasoning of every rule-based stand-in
	FallbackPrefix = "fallback to rule-based decision: "

	failureKeyPrefix = "agentic.failures."
)

// Service is the agentic decision stage
type Service struct {
	filings      interfaces.FilingStorage
	documents    interfaces.DocumentStorage
	sentiments   interfaces.SentimentStorage
	signals      interfaces.SignalStorage
	state        interfaces.StateStorage
	reasoner     interfaces.DecisionReasoner
	thresholds   rules.Thresholds
	contextChars int
	maxAttempts  int
	logger       arbor.ILogger
	now          func() time.Time
}

// NewService creates the agentic stage. Rule thresholds drive the fallback decision.
func NewService(
	storage interfaces.StorageManager,
	reasoner interfaces.DecisionReasoner,
	config *common.AgenticConfig,
	rulesConfig *common.RulesConfig,
	logger arbor.ILogger,
) *Service {
	contextChars := config.ContextChars
	if contextChars <= 0 {
		contextChars = DefaultContextChars
	}
	maxAttempts := config.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 3
	}
	return &Service{
		filings:      storage.FilingStorage(),
		documents:    storage.DocumentStorage(),
		sentiments:   storage.SentimentStorage(),
		signals:      storage.SignalStorage(),
		state:        storage.StateStorage(),
		reasoner:     reasoner,
		thresholds:   rules.Thresholds{BuyScore: rulesConfig.BuyScore, SellScore: rulesConfig.SellScore},
		contextChars: contextChars,
		maxAttempts:  maxAttempts,
		logger:       logger,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) Name() string {
	return pipeline.StageAgentic
}

func (s *Service) Description() string {
	return "Ask " + s.reasoner.Model() + " for a decision on scored filings, falling back to rules"
}

// Run decides every SCORED filing that has no AGENTIC signal yet. A filing in
// flight when ctx is cancelled is finished; the rest wait for the next run.
func (s *Service) Run(ctx context.Context, rc *pipeline.RunContext) error {
	records, err := s.filings.ListByStatus(ctx, models.StatusScored)
	if err != nil {
		return fmt.Errorf("failed to list scored filings: %w", err)
	}

	for _, record := range records {
		if ctx.Err() != nil {
			break
		}
		s.decideFiling(context.WithoutCancel(ctx), rc, record)
	}

	counters := rc.Counters(s.Name())
	rc.Logger().Info().
		Str("stage", s.Name()).
		Int("processed", counters.Processed).
		Int("fallback", counters.Fallback).
		Int("failed", counters.Failed).
		Msg("Agentic stage completed")
	return nil
}

func (s *Service) decideFiling(ctx context.Context, rc *pipeline.RunContext, record *models.FilingRecord) {
	stage := s.Name()
	logger := rc.Logger()

	has, err := s.signals.Has(ctx, record.FilingID, models.StrategyAgentic)
	if err != nil {
		rc.RecordError(stage, record.FilingID, err)
		return
	}
	if has {
		if err := rules.MarkDecidedIfComplete(ctx, s.filings, s.signals, record.FilingID); err != nil {
			rc.RecordError(stage, record.FilingID, err)
		}
		return
	}

	sentiment, err := s.sentiments.Get(ctx, record.FilingID)
	if err != nil {
		rc.RecordError(stage, record.FilingID, fmt.Errorf("sentiment result missing: %w", err))
		return
	}

	req := &interfaces.DecisionRequest{Filing: record, Sentiment: sentiment}
	if doc, err := s.documents.GetExtracted(ctx, record.FilingID); err == nil {
		text := doc.Markdown
		if text == "" {
			text = doc.Text
		}
		req.Excerpt = Excerpt(text, s.contextChars)
	} else {
		logger.Warn().
			Str("stage", stage).
			Str("filing_id", record.FilingID).
			Err(err).
			Msg("No extracted document, deciding without excerpt")
	}

	resp, err := s.ask(ctx, req, record.FilingID, logger)
	switch {
	case err == nil:
		// answered

	case errors.Is(err, common.ErrMalformedResponse):
		logger.Warn().
			Str("stage", stage).
			Str("filing_id", record.FilingID).
			Err(err).
			Msg("Unparseable agent reply after strict retry, using rule-based decision")
		s.saveFallback(ctx, rc, record, sentiment, "model reply could not be parsed")
		return

	default:
		failures, ferr := s.recordFailure(ctx, record.FilingID)
		if ferr != nil {
			rc.RecordError(stage, record.FilingID, ferr)
			return
		}
		if failures < s.maxAttempts {
			rc.RecordError(stage, record.FilingID, fmt.Errorf("agent attempt %d/%d: %w", failures, s.maxAttempts, err))
			return
		}
		logger.Warn().
			Str("stage", stage).
			Str("filing_id", record.FilingID).
			Int("attempts", failures).
			Err(err).
			Msg("Agent retries exhausted, using rule-based decision")
		s.saveFallback(ctx, rc, record, sentiment, fmt.Sprintf("model unavailable after %d attempts", failures))
		return
	}

	signal := &models.SignalRecord{
		FilingID:    record.FilingID,
		Strategy:    models.StrategyAgentic,
		Signal:      models.Signal(resp.Signal),
		Confidence:  resp.Confidence,
		Reasoning:   resp.Reasoning,
		ModelUsed:   s.reasoner.Model(),
		GeneratedAt: s.now(),
	}
	if s.persist(ctx, rc, signal) {
		rc.Processed(stage)
		logger.Info().
			Str("stage", stage).
			Str("filing_id", record.FilingID).
			Str("company", record.CompanyName).
			Str("signal", string(signal.Signal)).
			Float64("confidence", signal.Confidence).
			Bool("keywords", resp.FromKeywords).
			Msg("Agentic signal generated")
	}
}

// ask makes the normal request and, when that reply cannot be parsed, one strict retry.
// Keyword extraction is the last resort before a malformed error.
func (s *Service) ask(ctx context.Context, req *interfaces.DecisionRequest, filingID string, logger arbor.ILogger) (*DecisionResponse, error) {
	reply, err := s.reasoner.Decide(ctx, req, false)
	if err != nil {
		return nil, err
	}
	resp, perr := ParseDecision(reply)
	if perr == nil {
		return resp, nil
	}

	logger.Debug().
		Str("filing_id", filingID).
		Str("reply", excerpt(reply, 300)).
		Msg("Retrying agent with strict prompt")

	strictReply, err := s.reasoner.Decide(ctx, req, true)
	if err != nil {
		return nil, err
	}
	if resp, err := ParseDecision(strictReply); err == nil {
		return resp, nil
	}
	if resp, ok := ParseKeywords(strictReply); ok {
		return resp, nil
	}
	if resp, ok := ParseKeywords(reply); ok {
		return resp, nil
	}
	return nil, perr
}

func (s *Service) saveFallback(ctx context.Context, rc *pipeline.RunContext, record *models.FilingRecord, sentiment *models.SentimentResult, reason string) {
	in := rules.InputFrom(sentiment)
	decision := rules.Decide(in, s.thresholds)

	signal := &models.SignalRecord{
		FilingID:    record.FilingID,
		Strategy:    models.StrategyAgentic,
		Signal:      decision.Signal,
		Confidence:  decision.Confidence,
		Reasoning:   FallbackPrefix + rules.Explain(decision, in, s.thresholds) + " (" + reason + ")",
		ModelUsed:   s.reasoner.Model(),
		Fallback:    true,
		GeneratedAt: s.now(),
	}
	if s.persist(ctx, rc, signal) {
		rc.Fallback(s.Name())
	}
}

// persist saves the signal, clears the failure counter and marks the filing DECIDED when complete
func (s *Service) persist(ctx context.Context, rc *pipeline.RunContext, signal *models.SignalRecord) bool {
	if err := s.signals.Save(ctx, signal); err != nil {
		rc.RecordError(s.Name(), signal.FilingID, err)
		return false
	}
	if err := s.state.Delete(ctx, failureKeyPrefix+signal.FilingID); err != nil {
		rc.Logger().Warn().Str("filing_id", signal.FilingID).Err(err).Msg("Failed to clear agent failure counter")
	}
	if err := rules.MarkDecidedIfComplete(ctx, s.filings, s.signals, signal.FilingID); err != nil {
		rc.RecordError(s.Name(), signal.FilingID, err)
		return false
	}
	return true
}

func (s *Service) recordFailure(ctx context.Context, filingID string) (int, error) {
	key := failureKeyPrefix + filingID
	failures := 0
	value, err := s.state.Get(ctx, key)
	switch {
	case err == nil:
		failures, _ = strconv.Atoi(value)
	case !errors.Is(err, common.ErrNotFound):
		return 0, err
	}
	failures++
	if err := s.state.Set(ctx, key, strconv.Itoa(failures)); err != nil {
		return 0, err
	}
	return failures, nil
}
