package badger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/secsignal/internal/common"
	"github.com/ternarybob/secsignal/internal/models"
)

func TestSignalStorageStrategiesCoexist(t *testing.T) {
	ctx := context.Background()
	signals := newTestManager(t).SignalStorage()
	now := time.Now().UTC()

	require.NoError(t, signals.Save(ctx, &models.SignalRecord{
		FilingID: "0001193125-24-000123", Strategy: models.StrategyRuleBased,
		Signal: models.SignalSell, Confidence: 0.85, GeneratedAt: now,
	}))
	require.NoError(t, signals.Save(ctx, &models.SignalRecord{
		FilingID: "0001193125-24-000123", Strategy: models.StrategyAgentic,
		Signal: models.SignalHold, Confidence: 0.4, GeneratedAt: now.Add(time.Second),
	}))

	rule, err := signals.Get(ctx, "0001193125-24-000123", models.StrategyRuleBased)
	require.NoError(t, err)
	assert.Equal(t, models.SignalSell, rule.Signal)

	agentic, err := signals.Get(ctx, "0001193125-24-000123", models.StrategyAgentic)
	require.NoError(t, err)
	assert.Equal(t, models.SignalHold, agentic.Signal)

	all, err := signals.ListByFiling(ctx, "0001193125-24-000123")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	recent, err := signals.ListRecent(ctx, 1)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, models.StrategyAgentic, recent[0].Strategy)

	has, err := signals.Has(ctx, "0009999999-24-000001", models.StrategyAgentic)
	require.NoError(t, err)
	assert.False(t, has)
}

func TestSentimentStorageOverwritesOnRerun(t *testing.T) {
	ctx := context.Background()
	sentiments := newTestManager(t).SentimentStorage()

	require.NoError(t, sentiments.Save(ctx, &models.SentimentResult{
		FilingID: "0001193125-24-000123", Sentiment: models.SentimentNeutral, RiskLevel: models.RiskMedium,
	}))
	require.NoError(t, sentiments.Save(ctx, &models.SentimentResult{
		FilingID: "0001193125-24-000123", Sentiment: models.SentimentNegative, Score: -0.7, RiskLevel: models.RiskHigh,
	}))

	result, err := sentiments.Get(ctx, "0001193125-24-000123")
	require.NoError(t, err)
	assert.Equal(t, models.SentimentNegative, result.Sentiment)
	assert.InDelta(t, -0.7, result.Score, 1e-9)

	_, err = sentiments.Get(ctx, "missing")
	assert.True(t, errors.Is(err, common.ErrNotFound))
}

func TestDocumentAndStateStorage(t *testing.T) {
	ctx := context.Background()
	manager := newTestManager(t)
	docs := manager.DocumentStorage()

	require.NoError(t, docs.SaveRaw(ctx, &models.RawDocument{FilingID: "a", Content: []byte("<html></html>")}))
	has, err := docs.HasExtracted(ctx, "a")
	require.NoError(t, err)
	assert.False(t, has, "raw and extracted artifacts are stored separately")

	require.NoError(t, docs.SaveExtracted(ctx, &models.ExtractedDocument{FilingID: "a", Text: "hello"}))
	doc, err := docs.GetExtracted(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "hello", doc.Text)

	state := manager.StateStorage()
	_, err = state.Get(ctx, "fetch.cursor.8-K")
	assert.True(t, errors.Is(err, common.ErrNotFound))

	require.NoError(t, state.Set(ctx, "Fetch.Cursor", "2024-05-03T16:30:00Z"))
	value, err := state.Get(ctx, "fetch.cursor.8-K")
	require.NoError(t, err)
	assert.Equal(t, "2024-05-03T16:30:00Z", value)

	require.NoError(t, state.Delete(ctx, "fetch.cursor.8-K"))
	require.NoError(t, state.Delete(ctx, "fetch.cursor.8-K"))
}
