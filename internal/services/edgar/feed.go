package edgar

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/secsignal/internal/common"
	"github.com/ternarybob/secsignal/internal/models"
	"golang.org/x/net/html/charset"
)

var (
	accessionPattern = regexp.MustCompile(`\d{10}-\d{2}-\d{6}`)
	cikParamPattern  = regexp.MustCompile(`(?i)CIK=(\d+)`)
	cikPathPattern   = regexp.MustCompile(`/edgar/data/(\d+)/`)
	titleCIKPattern  = regexp.MustCompile(`\((\d{4,10})\)`)
)

type atomFeed struct {
	XMLName xml.Name    `xml:"feed"`
	Entries []atomEntry `xml:"entry"`
}

type atomEntry struct {
	ID       string       `xml:"id"`
	Title    string       `xml:"title"`
	Updated  string       `xml:"updated"`
	Links    []atomLink   `xml:"link"`
	Category atomCategory `xml:"category"`
}

type atomLink struct {
	Href string `xml:"href,attr"`
	Rel  string `xml:"rel,attr"`
}

type atomCategory struct {
	Term string `xml:"term,attr"`
}

// FeedClient polls the EDGAR current-filings Atom feed
type FeedClient struct {
	client  *Client
	feedURL string
	count   int
	retry   *RetryPolicy
	logger  arbor.ILogger
}

// NewFeedClient creates a feed client. Every feed failure, including an unparseable
// document, is retried up to maxAttempts times.
func NewFeedClient(client *Client, feedURL string, count, maxAttempts int, logger arbor.ILogger) *FeedClient {
	if feedURL == "" {
		feedURL = DefaultFeedURL
	}
	if count <= 0 {
		count = 100
	}

	retry := NewRetryPolicy(maxAttempts)
	retry.RetryIf = func(error) bool { return true }

	return &FeedClient{
		client:  client,
		feedURL: feedURL,
		count:   count,
		retry:   retry,
		logger:  logger,
	}
}

// Poll fetches one feed per form and returns the entries filed at or after since,
// oldest first with duplicate accessions collapsed. A failing feed does not stop the
// others; the returned error joins every feed failure.
func (f *FeedClient) Poll(ctx context.Context, forms []models.FormType, since time.Time) ([]models.FeedEntry, error) {
	seen := make(map[string]bool)
	var entries []models.FeedEntry
	var failures []string

	for _, form := range forms {
		if ctx.Err() != nil {
			return entries, ctx.Err()
		}

		feedEntries, err := f.pollForm(ctx, form)
		if err != nil {
			f.logger.Warn().Err(err).Str("form_type", string(form)).Msg("Feed poll failed")
			failures = append(failures, fmt.Sprintf("%s: %v", form, err))
			continue
		}

		kept := 0
		for _, entry := range feedEntries {
			if seen[entry.FilingID] {
				continue
			}
			if !since.IsZero() && entry.FiledAt.Before(since) {
				continue
			}
			seen[entry.FilingID] = true
			entries = append(entries, entry)
			kept++
		}

		f.logger.Debug().
			Str("form_type", string(form)).
			Int("entries", len(feedEntries)).
			Int("new", kept).
			Msg("Feed polled")
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].FiledAt.Equal(entries[j].FiledAt) {
			return entries[i].FilingID < entries[j].FilingID
		}
		return entries[i].FiledAt.Before(entries[j].FiledAt)
	})

	if len(failures) > 0 {
		return entries, common.Transient(fmt.Errorf("feed poll failed for %s", strings.Join(failures, "; ")))
	}
	return entries, nil
}

func (f *FeedClient) pollForm(ctx context.Context, form models.FormType) ([]models.FeedEntry, error) {
	feedURL := f.FeedURL(form)
	var entries []models.FeedEntry

	err := f.retry.ExecuteWithRetry(ctx, f.logger, func() error {
		resp, err := f.client.Get(ctx, feedURL)
		if err != nil {
			return err
		}
		parsed, err := ParseFeed(resp.Body, form, f.logger)
		if err != nil {
			return err
		}
		entries = parsed
		return nil
	})
	return entries, err
}

// FeedURL returns the Atom feed URL for one form type
func (f *FeedClient) FeedURL(form models.FormType) string {
	q := url.Values{}
	q.Set("action", "getcurrent")
	q.Set("type", string(form))
	q.Set("company", "")
	q.Set("dateb", "")
	q.Set("owner", "include")
	q.Set("start", "0")
	q.Set("count", strconv.Itoa(f.count))
	q.Set("output", "atom")
	return f.feedURL + "?" + q.Encode()
}

// ParseFeed decodes an Atom document into feed entries. Entries without an
// accession number or CIK are skipped with a warning.
func ParseFeed(data []byte, form models.FormType, logger arbor.ILogger) ([]models.FeedEntry, error) {
	var feed atomFeed
	decoder := xml.NewDecoder(bytes.NewReader(data))
	decoder.CharsetReader = charset.NewReaderLabel // EDGAR declares ISO-8859-1
	if err := decoder.Decode(&feed); err != nil {
		return nil, common.Malformed("atom feed for %s: %v", form, err)
	}

	entries := make([]models.FeedEntry, 0, len(feed.Entries))
	for _, raw := range feed.Entries {
		entry, ok := parseEntry(raw, form)
		if !ok {
			logger.Warn().
				Str("form_type", string(form)).
				Str("title", raw.Title).
				Str("id", raw.ID).
				Msg("Skipping feed entry without accession or CIK")
			continue
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func parseEntry(raw atomEntry, form models.FormType) (models.FeedEntry, bool) {
	link := raw.link()

	accession := accessionPattern.FindString(raw.ID)
	if accession == "" {
		accession = accessionPattern.FindString(link)
	}

	cik := ""
	if m := titleCIKPattern.FindStringSubmatch(raw.Title); m != nil {
		cik = m[1]
	} else if m := cikParamPattern.FindStringSubmatch(link); m != nil {
		cik = m[1]
	} else if m := cikPathPattern.FindStringSubmatch(link); m != nil {
		cik = m[1]
	}
	cik = strings.TrimLeft(cik, "0")

	if accession == "" || cik == "" {
		return models.FeedEntry{}, false
	}

	filedAt, err := time.Parse(time.RFC3339, strings.TrimSpace(raw.Updated))
	if err != nil {
		filedAt = time.Time{}
	}

	entryForm := form
	if term := models.ParseFormType(raw.Category.Term); term != models.FormTypeOther {
		entryForm = term
	}

	return models.FeedEntry{
		FilingID:    accession,
		CompanyID:   cik,
		CompanyName: companyName(raw.Title, string(entryForm)),
		FormType:    entryForm,
		FiledAt:     filedAt.UTC(),
		SourceURL:   link,
	}, true
}

func (e atomEntry) link() string {
	for _, l := range e.Links {
		if l.Rel == "" || l.Rel == "alternate" {
			return strings.TrimSpace(l.Href)
		}
	}
	if len(e.Links) > 0 {
		return strings.TrimSpace(e.Links[0].Href)
	}
	return ""
}

// companyName extracts "APPLE INC" from "8-K - APPLE INC (0000320193) (Filer)"
func companyName(title, form string) string {
	name := strings.TrimSpace(title)
	if idx := strings.Index(name, " - "); idx >= 0 {
		prefix := strings.TrimSpace(name[:idx])
		if strings.HasPrefix(strings.ToUpper(prefix), strings.ToUpper(form)) {
			name = name[idx+3:]
		}
	}
	if loc := titleCIKPattern.FindStringIndex(name); loc != nil {
		name = name[:loc[0]]
	}
	return strings.TrimSpace(name)
}
