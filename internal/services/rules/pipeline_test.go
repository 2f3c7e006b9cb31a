package rules

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/secsignal/internal/common"
	"github.com/ternarybob/secsignal/internal/interfaces"
	"github.com/ternarybob/secsignal/internal/models"
	"github.com/ternarybob/secsignal/internal/pipeline"
	"github.com/ternarybob/secsignal/internal/services/edgar"
	"github.com/ternarybob/secsignal/internal/services/fetch"
	"github.com/ternarybob/secsignal/internal/services/sentiment"
)

const guidanceCutFiling = "0001193125-24-000123"

type oneEntryFeed struct {
	entry models.FeedEntry
}

func (f oneEntryFeed) Poll(ctx context.Context, forms []models.FormType, since time.Time) ([]models.FeedEntry, error) {
	for _, form := range forms {
		if form == f.entry.FormType && f.entry.FiledAt.After(since) {
			return []models.FeedEntry{f.entry}, nil
		}
	}
	return nil, nil
}

type htmlFetcher struct {
	html string
}

func (f htmlFetcher) Download(ctx context.Context, record *models.FilingRecord) (*models.RawDocument, error) {
	return &models.RawDocument{
		FilingID:    record.FilingID,
		DocumentURL: record.SourceURL,
		ContentType: "text/html",
		Content:     []byte(f.html),
	}, nil
}

// recordingLLM answers every prompt with a fixed reply and keeps the prompts
type recordingLLM struct {
	mu      sync.Mutex
	reply   string
	prompts []string
}

func (l *recordingLLM) Chat(ctx context.Context, messages []interfaces.Message) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, m := range messages {
		if m.Role == "user" {
			l.prompts = append(l.prompts, m.Content)
		}
	}
	return l.reply, nil
}

func (l *recordingLLM) Model() string { return "recording" }

func (l *recordingLLM) Close() error { return nil }

func TestFetchSentimentRulesProduceSellSignal(t *testing.T) {
	ctx := context.Background()
	storage := newStorage(t)
	logger := arbor.NewLogger()

	feed := oneEntryFeed{entry: models.FeedEntry{
		FilingID:    guidanceCutFiling,
		CompanyID:   "320193",
		CompanyName: "APPLE INC",
		FormType:    models.FormType8K,
		FiledAt:     time.Date(2024, 5, 3, 16, 30, 0, 0, time.UTC),
		SourceURL:   "https://www.sec.gov/Archives/edgar/data/320193/000119312524000123/" + guidanceCutFiling + "-index.htm",
	}}
	fetcher := htmlFetcher{html: `<html><body>
<p>Item 2.02 Results of Operations and Financial Condition</p>
<p>Revenue declined 12% year over year. The company lowered its full-year guidance.</p>
</body></html>`}

	llm := &recordingLLM{reply: `{"sentiment":"NEGATIVE","score":-0.7,"guidance_change":"LOWERED","risk_level":"HIGH"}`}

	stages := []pipeline.Stage{
		fetch.NewService(storage, feed, fetcher, edgar.NewExtractor(logger), []models.FormType{models.FormType8K}, logger),
		sentiment.NewService(storage, sentiment.NewLLMScorer(llm, 20000, logger), &common.SentimentConfig{MaxAttempts: 3, Workers: 1}, logger),
		NewService(storage, &common.RulesConfig{BuyScore: 0.5, SellScore: -0.5}, logger),
	}

	rc := pipeline.NewRunContext(logger)
	for _, stage := range stages {
		require.NoError(t, stage.Run(ctx, rc), stage.Name())
	}
	assert.False(t, rc.HasErrors())
	assert.Equal(t, 1, rc.Counters(pipeline.StageFetch).Processed)
	assert.Equal(t, 1, rc.Counters(pipeline.StageSentiment).Processed)
	assert.Equal(t, 1, rc.Counters(pipeline.StageRules).Processed)

	require.Len(t, llm.prompts, 1)
	assert.Contains(t, llm.prompts[0], "lowered its full-year guidance")

	result, err := storage.SentimentStorage().Get(ctx, guidanceCutFiling)
	require.NoError(t, err)
	assert.Equal(t, models.SentimentNegative, result.Sentiment)
	assert.False(t, result.Fallback)

	signal, err := storage.SignalStorage().Get(ctx, guidanceCutFiling, models.StrategyRuleBased)
	require.NoError(t, err)
	assert.Equal(t, models.SignalSell, signal.Signal)
	assert.InDelta(t, 0.85, signal.Confidence, 1e-9)
	assert.False(t, signal.Fallback)
	assert.NotEmpty(t, signal.Reasoning)

	record, err := storage.FilingStorage().Get(ctx, guidanceCutFiling)
	require.NoError(t, err)
	assert.Equal(t, models.StatusScored, record.Status)
	assert.Equal(t, "APPLE INC", record.CompanyName)
}
