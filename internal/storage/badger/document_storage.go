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

// DocumentStorage keeps raw and extracted filing artifacts in their own badgerhold
// types so the filing index never scans document bodies.
type DocumentStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewDocumentStorage creates a new DocumentStorage instance
func NewDocumentStorage(db *BadgerDB, logger arbor.ILogger) interfaces.DocumentStorage {
	return &DocumentStorage{
		db:     db,
		logger: logger,
	}
}

func (s *DocumentStorage) SaveRaw(ctx context.Context, doc *models.RawDocument) error {
	if err := s.db.Store().Upsert(doc.FilingID, doc); err != nil {
		return fmt.Errorf("failed to save raw document %s: %w", doc.FilingID, err)
	}
	return nil
}

func (s *DocumentStorage) SaveExtracted(ctx context.Context, doc *models.ExtractedDocument) error {
	if err := s.db.Store().Upsert(doc.FilingID, doc); err != nil {
		return fmt.Errorf("failed to save extracted document %s: %w", doc.FilingID, err)
	}

	s.logger.Debug().
		Str("filing_id", doc.FilingID).
		Int("text_length", len(doc.Text)).
		Msg("Extracted document saved")
	return nil
}

func (s *DocumentStorage) GetExtracted(ctx context.Context, filingID string) (*models.ExtractedDocument, error) {
	var doc models.ExtractedDocument
	if err := s.db.Store().Get(filingID, &doc); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return nil, fmt.Errorf("extracted document %s: %w", filingID, common.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get extracted document %s: %w", filingID, err)
	}
	return &doc, nil
}

func (s *DocumentStorage) HasExtracted(ctx context.Context, filingID string) (bool, error) {
	_, err := s.GetExtracted(ctx, filingID)
	if errors.Is(err, common.ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}
