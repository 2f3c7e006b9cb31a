package interfaces

import (
	"context"

	"github.com/ternarybob/secsignal/internal/models"
)

// FilingStorage persists FilingRecords keyed by filing ID. Records are never deleted.
type FilingStorage interface {
	// Has reports whether a record exists for filingID
	Has(ctx context.Context, filingID string) (bool, error)

	// Put inserts the record, or verifies it against the stored one.
	// Identical immutable fields: no-op apart from advancing status (never regressing).
	// Different immutable fields: *common.DataIntegrityError, stored record untouched.
	// Returns true when a new record was created.
	Put(ctx context.Context, record *models.FilingRecord) (bool, error)

	// Get returns the record or common.ErrNotFound
	Get(ctx context.Context, filingID string) (*models.FilingRecord, error)

	// ListByStatus returns records in status ordered by FiledAt ascending (oldest first)
	ListByStatus(ctx context.Context, status models.FilingStatus) ([]*models.FilingRecord, error)

	// AdvanceStatus moves the record forward; backward requests are ignored
	AdvanceStatus(ctx context.Context, filingID string, status models.FilingStatus) error

	// RecordScoreAttempt increments the sentiment transport-failure counter and returns it
	RecordScoreAttempt(ctx context.Context, filingID string, cause error) (int, error)

	// RecordError stores the last per-item error text for auditing
	RecordError(ctx context.Context, filingID string, cause error) error

	// CountByStatus returns the number of records per status
	CountByStatus(ctx context.Context) (map[models.FilingStatus]int, error)
}

// DocumentStorage persists raw and extracted artifacts apart from filing metadata
type DocumentStorage interface {
	SaveRaw(ctx context.Context, doc *models.RawDocument) error
	SaveExtracted(ctx context.Context, doc *models.ExtractedDocument) error
	GetExtracted(ctx context.Context, filingID string) (*models.ExtractedDocument, error)
	HasExtracted(ctx context.Context, filingID string) (bool, error)
}

// SentimentStorage persists at most one SentimentResult per filing (overwrite on rerun)
type SentimentStorage interface {
	Save(ctx context.Context, result *models.SentimentResult) error
	Get(ctx context.Context, filingID string) (*models.SentimentResult, error)
	Has(ctx context.Context, filingID string) (bool, error)
}

// SignalStorage persists one SignalRecord per (filing, strategy)
type SignalStorage interface {
	Save(ctx context.Context, signal *models.SignalRecord) error
	Get(ctx context.Context, filingID string, strategy models.Strategy) (*models.SignalRecord, error)
	Has(ctx context.Context, filingID string, strategy models.Strategy) (bool, error)
	ListByFiling(ctx context.Context, filingID string) ([]*models.SignalRecord, error)
	ListRecent(ctx context.Context, limit int) ([]*models.SignalRecord, error)
}

// StateStorage is a small key/value store for stage bookkeeping such as the feed cursor
type StateStorage interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string) error
	Delete(ctx context.Context, key string) error
}

// StorageManager - interface for storage manager
type StorageManager interface {
	FilingStorage() FilingStorage
	DocumentStorage() DocumentStorage
	SentimentStorage() SentimentStorage
	SignalStorage() SignalStorage
	StateStorage() StateStorage
	Close() error
}
