package edgar

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/secsignal/internal/common"
	"github.com/ternarybob/secsignal/internal/models"
)

const sampleFeed = `<?xml version="1.0" encoding="ISO-8859-1" ?>
<feed xmlns="http://www.w3.org/2005/Atom">
<title>Latest Filings</title>
<entry>
<title>8-K - APPLE INC (0000320193) (Filer)</title>
<link rel="alternate" type="text/html" href="https://www.sec.gov/Archives/edgar/data/320193/000032019324000123/0000320193-24-000123-index.htm"/>
<summary type="html"> &lt;b&gt;Filed:&lt;/b&gt; 2024-05-03</summary>
<updated>2024-05-03T16:30:12-04:00</updated>
<category scheme="https://www.sec.gov/" label="form type" term="8-K"/>
<id>urn:tag:sec.gov,2008:accession-number=0000320193-24-000123</id>
</entry>
<entry>
<title>8-K - OLD CORP (0000000042) (Filer)</title>
<link rel="alternate" type="text/html" href="https://www.sec.gov/Archives/edgar/data/42/000000004224000001/0000000042-24-000001-index.htm"/>
<updated>2024-05-01T09:00:00-04:00</updated>
<category scheme="https://www.sec.gov/" label="form type" term="8-K"/>
<id>urn:tag:sec.gov,2008:accession-number=0000000042-24-000001</id>
</entry>
<entry>
<title>8-K - NO ID CORP</title>
<link rel="alternate" type="text/html" href="https://www.sec.gov/cgi-bin/browse-edgar?action=getcompany"/>
<updated>2024-05-03T16:00:00-04:00</updated>
<id>urn:tag:sec.gov,2008:unknown</id>
</entry>
</feed>`

func newTestClient(t *testing.T) *Client {
	t.Helper()
	client, err := NewClient("SecSignal Tests tests@example.com",
		WithMinGap(0),
		WithRateLimit(MaxRequestsPerSecond),
		WithTimeout(5*time.Second),
		WithLogger(arbor.NewLogger()),
	)
	require.NoError(t, err)
	return client
}

func TestNewClientRequiresUserAgent(t *testing.T) {
	_, err := NewClient("   ")
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrConfiguration)
}

func TestParseFeed(t *testing.T) {
	entries, err := ParseFeed([]byte(sampleFeed), models.FormType8K, arbor.NewLogger())
	require.NoError(t, err)
	require.Len(t, entries, 2, "entry without accession is skipped")

	apple := entries[0]
	assert.Equal(t, "0000320193-24-000123", apple.FilingID)
	assert.Equal(t, "320193", apple.CompanyID)
	assert.Equal(t, "APPLE INC", apple.CompanyName)
	assert.Equal(t, models.FormType8K, apple.FormType)
	assert.True(t, apple.FiledAt.Equal(time.Date(2024, 5, 3, 20, 30, 12, 0, time.UTC)))
	assert.Contains(t, apple.SourceURL, "0000320193-24-000123-index.htm")

	assert.Equal(t, "42", entries[1].CompanyID)
}

func TestParseFeedMalformed(t *testing.T) {
	_, err := ParseFeed([]byte("<feed><entry>"), models.FormType10K, arbor.NewLogger())
	assert.ErrorIs(t, err, common.ErrMalformedResponse)
}

func TestFeedClientPoll(t *testing.T) {
	var userAgent atomic.Value
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userAgent.Store(r.Header.Get("User-Agent"))
		assert.Equal(t, "getcurrent", r.URL.Query().Get("action"))
		assert.Equal(t, "atom", r.URL.Query().Get("output"))
		assert.Equal(t, "40", r.URL.Query().Get("count"))

		switch r.URL.Query().Get("type") {
		case "8-K", "10-K":
			// The same feed twice exercises duplicate collapsing
			fmt.Fprint(w, sampleFeed)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	feed := NewFeedClient(newTestClient(t), server.URL, 40, 1, arbor.NewLogger())
	since := time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC)

	entries, err := feed.Poll(context.Background(), []models.FormType{models.FormType8K, models.FormType10K}, since)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "0000320193-24-000123", entries[0].FilingID)
	assert.Equal(t, "SecSignal Tests tests@example.com", userAgent.Load())

	t.Run("failing form does not stop the others", func(t *testing.T) {
		entries, err := feed.Poll(context.Background(), []models.FormType{models.FormType6K, models.FormType8K}, time.Time{})
		require.Error(t, err)
		assert.Len(t, entries, 2)
	})
}

func TestFeedClientRetriesFeedFailures(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, sampleFeed)
	}))
	defer server.Close()

	feed := NewFeedClient(newTestClient(t), server.URL, 100, 3, arbor.NewLogger())
	feed.retry.InitialBackoff = time.Millisecond
	feed.retry.MaxBackoff = 5 * time.Millisecond

	entries, err := feed.Poll(context.Background(), []models.FormType{models.FormType8K}, time.Time{})
	require.NoError(t, err)
	assert.Len(t, entries, 2)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}
