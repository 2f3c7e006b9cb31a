package interfaces

import (
	"context"
	"time"

	"github.com/ternarybob/secsignal/internal/models"
)

// FeedProvider polls the filings feed. Implementations are rate limited and
// send the configured contact identifier on every request.
type FeedProvider interface {
	// Poll returns entries for the given forms filed at or after since (zero = no cutoff).
	// A feed that cannot be read after its retry budget is returned as an error.
	Poll(ctx context.Context, forms []models.FormType, since time.Time) ([]models.FeedEntry, error)
}

// DocumentFetcher downloads the primary document of a filing
type DocumentFetcher interface {
	Download(ctx context.Context, record *models.FilingRecord) (*models.RawDocument, error)
}

// TextExtractor normalizes a raw filing document into plain text
type TextExtractor interface {
	Extract(raw *models.RawDocument, form models.FormType) (*models.ExtractedDocument, error)
}
