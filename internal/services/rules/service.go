package rules

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/secsignal/internal/common"
	"github.com/ternarybob/secsignal/internal/interfaces"
	"github.com/ternarybob/secsignal/internal/models"
	"github.com/ternarybob/secsignal/internal/pipeline"
)

// Service is the rule-based decision stage
type Service struct {
	filings    interfaces.FilingStorage
	sentiments interfaces.SentimentStorage
	signals    interfaces.SignalStorage
	thresholds Thresholds
	logger     arbor.ILogger
	now        func() time.Time
}

// NewService creates the rule-based stage
func NewService(storage interfaces.StorageManager, config *common.RulesConfig, logger arbor.ILogger) *Service {
	return &Service{
		filings:    storage.FilingStorage(),
		sentiments: storage.SentimentStorage(),
		signals:    storage.SignalStorage(),
		thresholds: Thresholds{BuyScore: config.BuyScore, SellScore: config.SellScore},
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) Name() string {
	return pipeline.StageRules
}

func (s *Service) Description() string {
	return fmt.Sprintf("Apply deterministic thresholds (buy ≥ %.2f, sell ≤ %.2f) to scored filings",
		s.thresholds.BuyScore, s.thresholds.SellScore)
}

// Run decides every SCORED filing that has no RULE_BASED signal yet
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
		Int("failed", counters.Failed).
		Msg("Rule-based stage completed")
	return nil
}

func (s *Service) decideFiling(ctx context.Context, rc *pipeline.RunContext, record *models.FilingRecord) {
	stage := s.Name()

	has, err := s.signals.Has(ctx, record.FilingID, models.StrategyRuleBased)
	if err != nil {
		rc.RecordError(stage, record.FilingID, err)
		return
	}
	if has {
		if err := MarkDecidedIfComplete(ctx, s.filings, s.signals, record.FilingID); err != nil {
			rc.RecordError(stage, record.FilingID, err)
		}
		return
	}

	result, err := s.sentiments.Get(ctx, record.FilingID)
	if err != nil {
		rc.RecordError(stage, record.FilingID, fmt.Errorf("sentiment result missing: %w", err))
		return
	}

	in := InputFrom(result)
	decision := Decide(in, s.thresholds)
	if decision.Malformed {
		rc.Logger().Warn().
			Str("stage", stage).
			Str("filing_id", record.FilingID).
			Str("sentiment", string(in.Sentiment)).
			Float64("score", in.Score).
			Msg("Malformed sentiment input, holding")
	}

	signal := &models.SignalRecord{
		FilingID:    record.FilingID,
		Strategy:    models.StrategyRuleBased,
		Signal:      decision.Signal,
		Confidence:  decision.Confidence,
		Reasoning:   Explain(decision, in, s.thresholds),
		GeneratedAt: s.now(),
	}
	if err := s.signals.Save(ctx, signal); err != nil {
		rc.RecordError(stage, record.FilingID, err)
		return
	}
	if err := MarkDecidedIfComplete(ctx, s.filings, s.signals, record.FilingID); err != nil {
		rc.RecordError(stage, record.FilingID, err)
		return
	}

	rc.Processed(stage)
	rc.Logger().Info().
		Str("stage", stage).
		Str("filing_id", record.FilingID).
		Str("company", record.CompanyName).
		Str("form_type", string(record.FormType)).
		Str("signal", string(signal.Signal)).
		Float64("confidence", signal.Confidence).
		Msg("Rule-based signal generated")
}

// MarkDecidedIfComplete advances a filing to DECIDED once every strategy has a signal
func MarkDecidedIfComplete(ctx context.Context, filings interfaces.FilingStorage, signals interfaces.SignalStorage, filingID string) error {
	for _, strategy := range models.AllStrategies {
		has, err := signals.Has(ctx, filingID, strategy)
		if err != nil {
			return err
		}
		if !has {
			return nil
		}
	}
	return filings.AdvanceStatus(ctx, filingID, models.StatusDecided)
}
