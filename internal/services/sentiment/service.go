// Package sentiment scores extracted filings with a language model.
package sentiment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/secsignal/internal/common"
	"github.com/ternarybob/secsignal/internal/interfaces"
	"github.com/ternarybob/secsignal/internal/models"
	"github.com/ternarybob/secsignal/internal/pipeline"
	"golang.org/x/sync/errgroup"
)

// Service is the sentiment stage
type Service struct {
	filings     interfaces.FilingStorage
	documents   interfaces.DocumentStorage
	sentiments  interfaces.SentimentStorage
	scorer      interfaces.SentimentScorer
	maxAttempts int
	workers     int
	logger      arbor.ILogger
	now         func() time.Time
}

// NewService creates the sentiment stage
func NewService(storage interfaces.StorageManager, scorer interfaces.SentimentScorer, config *common.SentimentConfig, logger arbor.ILogger) *Service {
	maxAttempts := config.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 3
	}
	workers := config.Workers
	if workers < 1 {
		workers = 1
	}
	return &Service{
		filings:     storage.FilingStorage(),
		documents:   storage.DocumentStorage(),
		sentiments:  storage.SentimentStorage(),
		scorer:      scorer,
		maxAttempts: maxAttempts,
		workers:     workers,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) Name() string {
	return pipeline.StageSentiment
}

func (s *Service) Description() string {
	return "Score extracted filings for sentiment, guidance change and risk with " + s.scorer.Model()
}

// Run scores every EXTRACTED filing, oldest first
func (s *Service) Run(ctx context.Context, rc *pipeline.RunContext) error {
	records, err := s.filings.ListByStatus(ctx, models.StatusExtracted)
	if err != nil {
		return fmt.Errorf("failed to list extracted filings: %w", err)
	}

	logger := rc.Logger()
	logger.Info().
		Str("stage", s.Name()).
		Int("pending", len(records)).
		Int("workers", s.workers).
		Msg("Sentiment stage started")

	var g errgroup.Group
	g.SetLimit(s.workers)
	for _, record := range records {
		if ctx.Err() != nil {
			break
		}
		record := record
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			s.scoreFiling(context.WithoutCancel(ctx), rc, record)
			return nil
		})
	}
	_ = g.Wait()

	counters := rc.Counters(s.Name())
	logger.Info().
		Str("stage", s.Name()).
		Int("processed", counters.Processed).
		Int("fallback", counters.Fallback).
		Int("failed", counters.Failed).
		Msg("Sentiment stage completed")

	return nil
}

// scoreFiling runs one filing to completion. ctx carries no cancellation; the
// model call is bounded by its own timeout.
func (s *Service) scoreFiling(ctx context.Context, rc *pipeline.RunContext, record *models.FilingRecord) {
	stage := s.Name()
	logger := rc.Logger()

	// A result without the status move means an earlier run stopped in between
	has, err := s.sentiments.Has(ctx, record.FilingID)
	if err != nil {
		rc.RecordError(stage, record.FilingID, err)
		return
	}
	if has {
		if err := s.filings.AdvanceStatus(ctx, record.FilingID, models.StatusScored); err != nil {
			rc.RecordError(stage, record.FilingID, err)
			return
		}
		rc.Skipped(stage)
		return
	}

	doc, err := s.documents.GetExtracted(ctx, record.FilingID)
	if err != nil {
		rc.RecordError(stage, record.FilingID, fmt.Errorf("extracted document missing: %w", err))
		return
	}

	result, err := s.scorer.Score(ctx, doc.Text)
	switch {
	case err == nil:
		result.FilingID = record.FilingID
		if s.persist(ctx, rc, result) {
			rc.Processed(stage)
			logger.Debug().
				Str("stage", stage).
				Str("filing_id", record.FilingID).
				Str("sentiment", string(result.Sentiment)).
				Float64("score", result.Score).
				Msg("Filing scored")
		}

	case errors.Is(err, common.ErrMalformedResponse):
		logger.Warn().
			Str("stage", stage).
			Str("filing_id", record.FilingID).
			Err(err).
			Msg("Unparseable sentiment reply, storing neutral fallback")
		fallback := FallbackResult(record.FilingID, s.scorer.Model(),
			"fallback: could not parse model response: "+err.Error(), false, s.now())
		if s.persist(ctx, rc, fallback) {
			rc.Fallback(stage)
		}

	default:
		attempts, aerr := s.filings.RecordScoreAttempt(ctx, record.FilingID, err)
		if aerr != nil {
			rc.RecordError(stage, record.FilingID, aerr)
			return
		}
		if attempts < s.maxAttempts {
			rc.RecordError(stage, record.FilingID, fmt.Errorf("scoring attempt %d/%d: %w", attempts, s.maxAttempts, err))
			return
		}

		logger.Warn().
			Str("stage", stage).
			Str("filing_id", record.FilingID).
			Int("attempts", attempts).
			Err(err).
			Msg("Scoring retries exhausted, storing flagged fallback")
		fallback := FallbackResult(record.FilingID, s.scorer.Model(),
			fmt.Sprintf("fallback: model unavailable after %d attempts: %v", attempts, err), true, s.now())
		if s.persist(ctx, rc, fallback) {
			rc.Fallback(stage)
		}
	}
}

// persist saves the result and then moves the filing to SCORED
func (s *Service) persist(ctx context.Context, rc *pipeline.RunContext, result *models.SentimentResult) bool {
	if err := s.sentiments.Save(ctx, result); err != nil {
		rc.RecordError(s.Name(), result.FilingID, err)
		return false
	}
	if err := s.filings.AdvanceStatus(ctx, result.FilingID, models.StatusScored); err != nil {
		rc.RecordError(s.Name(), result.FilingID, err)
		return false
	}
	return true
}
