package badger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/secsignal/internal/common"
	"github.com/ternarybob/secsignal/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()

	store, err := badgerhold.Open(storeOptions(t.TempDir()))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	return newManager(&BadgerDB{store: store}, arbor.NewLogger())
}

func testFiling(id string, filedAt time.Time) *models.FilingRecord {
	return &models.FilingRecord{
		FilingID:    id,
		CompanyID:   "320193",
		CompanyName: "Apple Inc.",
		FormType:    models.FormType8K,
		FiledAt:     filedAt,
		SourceURL:   "https://www.sec.gov/Archives/edgar/data/320193/" + id + "-index.htm",
		Status:      models.StatusDiscovered,
	}
}

func TestFilingStoragePutIsIdempotent(t *testing.T) {
	ctx := context.Background()
	filings := newTestManager(t).FilingStorage()
	filedAt := time.Date(2024, 5, 3, 16, 30, 0, 0, time.UTC)

	created, err := filings.Put(ctx, testFiling("0001193125-24-000123", filedAt))
	require.NoError(t, err)
	assert.True(t, created)

	created, err = filings.Put(ctx, testFiling("0001193125-24-000123", filedAt))
	require.NoError(t, err)
	assert.False(t, created, "identical record must be a no-op")

	has, err := filings.Has(ctx, "0001193125-24-000123")
	require.NoError(t, err)
	assert.True(t, has)

	has, err = filings.Has(ctx, "0000000000-00-000000")
	require.NoError(t, err)
	assert.False(t, has)
}

func TestFilingStoragePutConflictIsDataIntegrityError(t *testing.T) {
	ctx := context.Background()
	filings := newTestManager(t).FilingStorage()
	filedAt := time.Date(2024, 5, 3, 16, 30, 0, 0, time.UTC)

	_, err := filings.Put(ctx, testFiling("0001193125-24-000123", filedAt))
	require.NoError(t, err)

	conflicting := testFiling("0001193125-24-000123", filedAt)
	conflicting.FormType = models.FormType10K

	_, err = filings.Put(ctx, conflicting)
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrDataIntegrity))

	var integrityErr *common.DataIntegrityError
	require.True(t, errors.As(err, &integrityErr))
	assert.Equal(t, "form_type", integrityErr.Field)

	stored, err := filings.Get(ctx, "0001193125-24-000123")
	require.NoError(t, err)
	assert.Equal(t, models.FormType8K, stored.FormType, "stored record must be untouched")
}

func TestFilingStorageStatusNeverRegresses(t *testing.T) {
	ctx := context.Background()
	filings := newTestManager(t).FilingStorage()
	record := testFiling("0001193125-24-000123", time.Now().UTC())

	_, err := filings.Put(ctx, record)
	require.NoError(t, err)

	require.NoError(t, filings.AdvanceStatus(ctx, record.FilingID, models.StatusScored))
	require.NoError(t, filings.AdvanceStatus(ctx, record.FilingID, models.StatusExtracted))

	// Re-putting the DISCOVERED record must not move it back either
	_, err = filings.Put(ctx, record)
	require.NoError(t, err)

	stored, err := filings.Get(ctx, record.FilingID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusScored, stored.Status)

	err = filings.AdvanceStatus(ctx, "missing", models.StatusScored)
	assert.True(t, errors.Is(err, common.ErrNotFound))
}

func TestFilingStorageListByStatusOrdersOldestFirst(t *testing.T) {
	ctx := context.Background()
	filings := newTestManager(t).FilingStorage()
	base := time.Date(2024, 5, 3, 9, 0, 0, 0, time.UTC)

	for _, f := range []struct {
		id     string
		offset time.Duration
	}{
		{"0000000003-24-000003", 3 * time.Hour},
		{"0000000001-24-000001", 1 * time.Hour},
		{"0000000002-24-000002", 2 * time.Hour},
		{"0000000000-24-000000", 1 * time.Hour},
	} {
		_, err := filings.Put(ctx, testFiling(f.id, base.Add(f.offset)))
		require.NoError(t, err)
	}
	require.NoError(t, filings.AdvanceStatus(ctx, "0000000002-24-000002", models.StatusExtracted))

	discovered, err := filings.ListByStatus(ctx, models.StatusDiscovered)
	require.NoError(t, err)
	require.Len(t, discovered, 3)
	assert.Equal(t, "0000000000-24-000000", discovered[0].FilingID)
	assert.Equal(t, "0000000001-24-000001", discovered[1].FilingID)
	assert.Equal(t, "0000000003-24-000003", discovered[2].FilingID)

	extracted, err := filings.ListByStatus(ctx, models.StatusExtracted)
	require.NoError(t, err)
	require.Len(t, extracted, 1)
	assert.Equal(t, "0000000002-24-000002", extracted[0].FilingID)

	counts, err := filings.CountByStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, counts[models.StatusDiscovered])
	assert.Equal(t, 1, counts[models.StatusExtracted])
	assert.Equal(t, 0, counts[models.StatusDecided])
}

func TestFilingStorageRecordScoreAttempt(t *testing.T) {
	ctx := context.Background()
	filings := newTestManager(t).FilingStorage()
	record := testFiling("0001193125-24-000123", time.Now().UTC())
	_, err := filings.Put(ctx, record)
	require.NoError(t, err)

	for want := 1; want <= 3; want++ {
		attempts, err := filings.RecordScoreAttempt(ctx, record.FilingID, errors.New("timeout"))
		require.NoError(t, err)
		assert.Equal(t, want, attempts)
	}

	stored, err := filings.Get(ctx, record.FilingID)
	require.NoError(t, err)
	assert.Equal(t, 3, stored.ScoreAttempts)
	assert.Equal(t, "timeout", stored.LastError)
}
