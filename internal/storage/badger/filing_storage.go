package badger

import (
	"context"
	"errors"
	"fmt"
	"time"

	badgerdb "github.com/dgraph-io/badger/v4"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/secsignal/internal/common"
	"github.com/ternarybob/secsignal/internal/interfaces"
	"github.com/ternarybob/secsignal/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// FilingStorage implements the FilingStorage interface for Badger.
// Every write is a single badger transaction so per-filing updates are atomic.
type FilingStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewFilingStorage creates a new FilingStorage instance
func NewFilingStorage(db *BadgerDB, logger arbor.ILogger) interfaces.FilingStorage {
	return &FilingStorage{
		db:     db,
		logger: logger,
	}
}

func (s *FilingStorage) Has(ctx context.Context, filingID string) (bool, error) {
	var record models.FilingRecord
	err := s.db.Store().Get(filingID, &record)
	if errors.Is(err, badgerhold.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check filing %s: %w", filingID, err)
	}
	return true, nil
}

func (s *FilingStorage) Put(ctx context.Context, record *models.FilingRecord) (bool, error) {
	if record == nil || record.FilingID == "" {
		return false, fmt.Errorf("filing record requires a filing ID")
	}

	created := false
	err := s.db.Store().Badger().Update(func(tx *badgerdb.Txn) error {
		var existing models.FilingRecord
		err := s.db.Store().TxGet(tx, record.FilingID, &existing)
		if errors.Is(err, badgerhold.ErrNotFound) {
			now := time.Now().UTC()
			rec := *record
			if rec.Status == "" {
				rec.Status = models.StatusDiscovered
			}
			if rec.DiscoveredAt.IsZero() {
				rec.DiscoveredAt = now
			}
			rec.UpdatedAt = now
			created = true
			return s.db.Store().TxInsert(tx, rec.FilingID, &rec)
		}
		if err != nil {
			return fmt.Errorf("failed to read filing %s: %w", record.FilingID, err)
		}

		if field, stored, incoming := existing.IdentityMismatch(record); field != "" {
			return &common.DataIntegrityError{
				FilingID: record.FilingID,
				Field:    field,
				Stored:   stored,
				Incoming: incoming,
			}
		}

		// Identical record: only a forward status move is written
		if !existing.Advance(record.Status) {
			return nil
		}
		existing.UpdatedAt = time.Now().UTC()
		return s.db.Store().TxUpdate(tx, existing.FilingID, &existing)
	})
	if err != nil {
		return false, err
	}

	if created {
		s.logger.Debug().
			Str("filing_id", record.FilingID).
			Str("form_type", string(record.FormType)).
			Msg("Filing record created")
	}
	return created, nil
}

func (s *FilingStorage) Get(ctx context.Context, filingID string) (*models.FilingRecord, error) {
	var record models.FilingRecord
	err := s.db.Store().Get(filingID, &record)
	if errors.Is(err, badgerhold.ErrNotFound) {
		return nil, fmt.Errorf("filing %s: %w", filingID, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get filing %s: %w", filingID, err)
	}
	return &record, nil
}

func (s *FilingStorage) ListByStatus(ctx context.Context, status models.FilingStatus) ([]*models.FilingRecord, error) {
	return s.find(badgerhold.Where("Status").Eq(status).Index("Status"))
}

// find runs query and returns results oldest-filed first, ties broken by filing ID
func (s *FilingStorage) find(query *badgerhold.Query) ([]*models.FilingRecord, error) {
	var records []models.FilingRecord
	if err := s.db.Store().Find(&records, query.SortBy("FiledAt", "FilingID")); err != nil {
		return nil, fmt.Errorf("failed to list filings: %w", err)
	}

	result := make([]*models.FilingRecord, len(records))
	for i := range records {
		result[i] = &records[i]
	}
	return result, nil
}

func (s *FilingStorage) AdvanceStatus(ctx context.Context, filingID string, status models.FilingStatus) error {
	return s.update(filingID, func(record *models.FilingRecord) bool {
		moved := record.Advance(status)
		if moved && status.AtLeast(models.StatusExtracted) {
			record.LastError = ""
		}
		return moved
	})
}

func (s *FilingStorage) RecordScoreAttempt(ctx context.Context, filingID string, cause error) (int, error) {
	attempts := 0
	err := s.update(filingID, func(record *models.FilingRecord) bool {
		record.ScoreAttempts++
		attempts = record.ScoreAttempts
		if cause != nil {
			record.LastError = cause.Error()
		}
		return true
	})
	return attempts, err
}

func (s *FilingStorage) RecordError(ctx context.Context, filingID string, cause error) error {
	if cause == nil {
		return nil
	}
	return s.update(filingID, func(record *models.FilingRecord) bool {
		record.LastError = cause.Error()
		return true
	})
}

func (s *FilingStorage) CountByStatus(ctx context.Context) (map[models.FilingStatus]int, error) {
	counts := make(map[models.FilingStatus]int, len(models.AllStatuses))
	for _, status := range models.AllStatuses {
		n, err := s.db.Store().Count(&models.FilingRecord{}, badgerhold.Where("Status").Eq(status).Index("Status"))
		if err != nil {
			return nil, fmt.Errorf("failed to count filings in %s: %w", status, err)
		}
		counts[status] = int(n)
	}
	return counts, nil
}

// update applies fn to the stored record inside one transaction; fn reports whether to write
func (s *FilingStorage) update(filingID string, fn func(record *models.FilingRecord) bool) error {
	return s.db.Store().Badger().Update(func(tx *badgerdb.Txn) error {
		var record models.FilingRecord
		err := s.db.Store().TxGet(tx, filingID, &record)
		if errors.Is(err, badgerhold.ErrNotFound) {
			return fmt.Errorf("filing %s: %w", filingID, common.ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("failed to read filing %s: %w", filingID, err)
		}

		if !fn(&record) {
			return nil
		}
		record.UpdatedAt = time.Now().UTC()
		return s.db.Store().TxUpdate(tx, filingID, &record)
	})
}
