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

// SignalStorage implements the SignalStorage interface for Badger.
// Records are keyed by "<filing_id>|<strategy>" so strategies never overwrite each other.
type SignalStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewSignalStorage creates a new SignalStorage instance
func NewSignalStorage(db *BadgerDB, logger arbor.ILogger) interfaces.SignalStorage {
	return &SignalStorage{
		db:     db,
		logger: logger,
	}
}

func (s *SignalStorage) Save(ctx context.Context, signal *models.SignalRecord) error {
	if signal.FilingID == "" || signal.Strategy == "" {
		return fmt.Errorf("signal record requires filing ID and strategy")
	}
	if err := s.db.Store().Upsert(signal.Key(), signal); err != nil {
		return fmt.Errorf("failed to save %s signal for %s: %w", signal.Strategy, signal.FilingID, err)
	}

	s.logger.Debug().
		Str("filing_id", signal.FilingID).
		Str("strategy", string(signal.Strategy)).
		Str("signal", string(signal.Signal)).
		Float64("confidence", signal.Confidence).
		Msg("Signal saved")
	return nil
}

func (s *SignalStorage) Get(ctx context.Context, filingID string, strategy models.Strategy) (*models.SignalRecord, error) {
	var signal models.SignalRecord
	if err := s.db.Store().Get(models.SignalKey(filingID, strategy), &signal); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return nil, fmt.Errorf("%s signal %s: %w", strategy, filingID, common.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get %s signal %s: %w", strategy, filingID, err)
	}
	return &signal, nil
}

func (s *SignalStorage) Has(ctx context.Context, filingID string, strategy models.Strategy) (bool, error) {
	_, err := s.Get(ctx, filingID, strategy)
	if errors.Is(err, common.ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (s *SignalStorage) ListByFiling(ctx context.Context, filingID string) ([]*models.SignalRecord, error) {
	return s.find(badgerhold.Where("FilingID").Eq(filingID).Index("FilingID").SortBy("Strategy"))
}

func (s *SignalStorage) ListRecent(ctx context.Context, limit int) ([]*models.SignalRecord, error) {
	query := badgerhold.Where("FilingID").Ne("").SortBy("GeneratedAt").Reverse()
	if limit > 0 {
		query = query.Limit(limit)
	}
	return s.find(query)
}

func (s *SignalStorage) find(query *badgerhold.Query) ([]*models.SignalRecord, error) {
	var signals []models.SignalRecord
	if err := s.db.Store().Find(&signals, query); err != nil {
		return nil, fmt.Errorf("failed to list signals: %w", err)
	}

	result := make([]*models.SignalRecord, len(signals))
	for i := range signals {
		result[i] = &signals[i]
	}
	return result, nil
}
