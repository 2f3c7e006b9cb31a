// Package fetch discovers new filings on the EDGAR feed and stores their raw
// and extracted documents.
package fetch

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
)

// CursorKeyPrefix prefixes the per-form cursor holding the newest FiledAt
// taken from that form's feed
const CursorKeyPrefix = "fetch.cursor."

// CursorKey returns the state key of the cursor for form
func CursorKey(form models.FormType) string {
	return CursorKeyPrefix + string(form)
}

// Service is the fetch stage
type Service struct {
	filings   interfaces.FilingStorage
	documents interfaces.DocumentStorage
	state     interfaces.StateStorage
	feed      interfaces.FeedProvider
	fetcher   interfaces.DocumentFetcher
	extractor interfaces.TextExtractor
	forms     []models.FormType
	logger    arbor.ILogger
	now       func() time.Time
}

// NewService creates the fetch stage
func NewService(
	storage interfaces.StorageManager,
	feed interfaces.FeedProvider,
	fetcher interfaces.DocumentFetcher,
	extractor interfaces.TextExtractor,
	forms []models.FormType,
	logger arbor.ILogger,
) *Service {
	return &Service{
		filings:   storage.FilingStorage(),
		documents: storage.DocumentStorage(),
		state:     storage.StateStorage(),
		feed:      feed,
		fetcher:   fetcher,
		extractor: extractor,
		forms:     forms,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) Name() string {
	return pipeline.StageFetch
}

func (s *Service) Description() string {
	return fmt.Sprintf("Poll the EDGAR feed for %v filings, download and extract primary documents", s.forms)
}

// Run resumes DISCOVERED filings, then polls each form's feed since that form's
// cursor and processes every new entry. Item failures are recorded and never stop
// the stage. Cancellation is observed between items.
func (s *Service) Run(ctx context.Context, rc *pipeline.RunContext) error {
	stage := s.Name()

	if err := s.resume(ctx, rc); err != nil {
		return err
	}

	for _, form := range s.forms {
		if ctx.Err() != nil {
			break
		}
		s.pollForm(ctx, rc, form)
	}

	counters := rc.Counters(stage)
	rc.Logger().Info().
		Str("stage", stage).
		Int("processed", counters.Processed).
		Int("skipped", counters.Skipped).
		Int("failed", counters.Failed).
		Msg("Fetch stage completed")
	return nil
}

// pollForm handles one form's feed. Its cursor only moves when the poll succeeded,
// and never past an entry that could not be recorded, so those are polled again.
func (s *Service) pollForm(ctx context.Context, rc *pipeline.RunContext, form models.FormType) {
	stage := s.Name()

	cursor, err := s.cursor(ctx, form)
	if err != nil {
		rc.RecordError(stage, "", err)
		return
	}

	entries, err := s.feed.Poll(ctx, []models.FormType{form}, cursor)
	advance := err == nil
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		rc.RecordError(stage, "", fmt.Errorf("%s feed poll: %w", form, err))
	}

	rc.Logger().Info().
		Str("stage", stage).
		Str("form_type", string(form)).
		Int("entries", len(entries)).
		Str("since", formatCursor(cursor)).
		Msg("Feed polled")

	newest := cursor
	for _, entry := range entries {
		if ctx.Err() != nil {
			break
		}
		if !s.processEntry(context.WithoutCancel(ctx), rc, entry) {
			advance = false
		}
		if advance && entry.FiledAt.After(newest) {
			newest = entry.FiledAt
		}
	}

	if newest.After(cursor) {
		if err := s.state.Set(context.WithoutCancel(ctx), CursorKey(form), newest.UTC().Format(time.RFC3339Nano)); err != nil {
			rc.RecordError(stage, "", fmt.Errorf("failed to store %s feed cursor: %w", form, err))
		}
	}
}

// resume retries filings left DISCOVERED by an earlier failed or interrupted cycle
func (s *Service) resume(ctx context.Context, rc *pipeline.RunContext) error {
	pending, err := s.filings.ListByStatus(ctx, models.StatusDiscovered)
	if err != nil {
		return fmt.Errorf("failed to list discovered filings: %w", err)
	}
	if len(pending) > 0 {
		rc.Logger().Info().Str("stage", s.Name()).Int("pending", len(pending)).Msg("Resuming discovered filings")
	}
	for _, record := range pending {
		if ctx.Err() != nil {
			break
		}
		s.extract(context.WithoutCancel(ctx), rc, record)
	}
	return nil
}

// processEntry records a feed entry and extracts it. It returns false only when
// the entry could not be recorded at all.
func (s *Service) processEntry(ctx context.Context, rc *pipeline.RunContext, entry models.FeedEntry) bool {
	stage := s.Name()

	has, err := s.filings.Has(ctx, entry.FilingID)
	if err != nil {
		rc.RecordError(stage, entry.FilingID, err)
		return false
	}
	if has {
		rc.Skipped(stage)
		return true
	}

	record := entry.Record(s.now())
	if _, err := s.filings.Put(ctx, record); err != nil {
		rc.RecordError(stage, entry.FilingID, err)
		return false
	}

	rc.Logger().Debug().
		Str("stage", stage).
		Str("filing_id", record.FilingID).
		Str("company", record.CompanyName).
		Str("form_type", string(record.FormType)).
		Msg("Filing discovered")

	s.extract(ctx, rc, record)
	return true
}

// extract downloads and normalizes one DISCOVERED filing and moves it to EXTRACTED
func (s *Service) extract(ctx context.Context, rc *pipeline.RunContext, record *models.FilingRecord) {
	stage := s.Name()

	fail := func(err error) {
		if rerr := s.filings.RecordError(ctx, record.FilingID, err); rerr != nil {
			rc.Logger().Warn().Str("filing_id", record.FilingID).Err(rerr).Msg("Failed to store filing error")
		}
		rc.RecordError(stage, record.FilingID, err)
	}

	// Artifacts from an attempt that stopped before the status move are kept as they are
	done, err := s.documents.HasExtracted(ctx, record.FilingID)
	if err != nil {
		fail(err)
		return
	}
	if done {
		if err := s.filings.AdvanceStatus(ctx, record.FilingID, models.StatusExtracted); err != nil {
			fail(err)
			return
		}
		rc.Processed(stage)
		return
	}

	raw, err := s.fetcher.Download(ctx, record)
	if err != nil {
		fail(err)
		return
	}

	doc, err := s.extractor.Extract(raw, record.FormType)
	if err != nil {
		fail(fmt.Errorf("extraction failed: %w", err))
		return
	}

	if err := s.documents.SaveRaw(ctx, raw); err != nil {
		fail(err)
		return
	}
	if err := s.documents.SaveExtracted(ctx, doc); err != nil {
		fail(err)
		return
	}
	if err := s.filings.AdvanceStatus(ctx, record.FilingID, models.StatusExtracted); err != nil {
		fail(err)
		return
	}

	rc.Processed(stage)
	rc.Logger().Info().
		Str("stage", stage).
		Str("filing_id", record.FilingID).
		Str("company", record.CompanyName).
		Str("form_type", string(record.FormType)).
		Int("text_chars", len(doc.Text)).
		Msg("Filing extracted")
}

func (s *Service) cursor(ctx context.Context, form models.FormType) (time.Time, error) {
	value, err := s.state.Get(ctx, CursorKey(form))
	if errors.Is(err, common.ErrNotFound) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to read %s feed cursor: %w", form, err)
	}
	cursor, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		s.logger.Warn().Str("form_type", string(form)).Str("value", value).Err(err).Msg("Ignoring unreadable feed cursor")
		return time.Time{}, nil
	}
	return cursor, nil
}

func formatCursor(t time.Time) string {
	if t.IsZero() {
		return "beginning"
	}
	return t.Format(time.RFC3339)
}
