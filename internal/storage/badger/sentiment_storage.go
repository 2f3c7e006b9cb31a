package badger

import (
	"context"
	"errors"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/secsignal/internal/common"
	"github.com/ternarybob/secsignal/internal/interfaces"
	"github.com/ternarybob/secsignal/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// SentimentStorage implements the SentimentStorage interface for Badger
type SentimentStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewSentimentStorage creates a new SentimentStorage instance
func NewSentimentStorage(db *BadgerDB, logger arbor.ILogger) interfaces.SentimentStorage {
	return &SentimentStorage{
		db:     db,
		logger: logger,
	}
}

// Save overwrites any previous result for the filing
func (s *SentimentStorage) Save(ctx context.Context, result *models.SentimentResult) error {
	if result.FilingID == "" {
		return fmt.Errorf("sentiment result requires a filing ID")
	}
	if err := s.db.Store().Upsert(result.FilingID, result); err != nil {
		return fmt.Errorf("failed to save sentiment for %s: %w", result.FilingID, err)
	}
	return nil
}

func (s *SentimentStorage) Get(ctx context.Context, filingID string) (*models.SentimentResult, error) {
	var result models.SentimentResult
	if err := s.db.Store().Get(filingID, &result); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return nil, fmt.Errorf("sentiment %s: %w", filingID, common.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get sentiment %s: %w", filingID, err)
	}
	return &result, nil
}

func (s *SentimentStorage) Has(ctx context.Context, filingID string) (bool, error) {
	_, err := s.Get(ctx, filingID)
	if errors.Is(err, common.ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}
