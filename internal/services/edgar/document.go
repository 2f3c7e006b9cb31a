package edgar

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/secsignal/internal/common"
	"github.com/ternarybob/secsignal/internal/models"
)

const (
	// IndexCacheTTL is how long a filing directory listing is reused
	IndexCacheTTL = 30 * time.Minute

	xbrlViewerMarker = "XBRL Viewer"
)

// errNoDocument marks a candidate URL that cannot serve as the primary document
var errNoDocument = errors.New("no primary document")

type filingIndex struct {
	Directory struct {
		Item []struct {
			Name string `json:"name"`
			Type string `json:"type"`
		} `json:"item"`
	} `json:"directory"`
}

// DocumentClient resolves and downloads the primary document of a filing
type DocumentClient struct {
	client  *Client
	baseURL string
	index   *cache.Cache
	retry   *RetryPolicy
	logger  arbor.ILogger
}

// NewDocumentClient creates a document client rooted at the EDGAR archive host
func NewDocumentClient(client *Client, baseURL string, maxAttempts int, logger arbor.ILogger) *DocumentClient {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &DocumentClient{
		client:  client,
		baseURL: strings.TrimRight(baseURL, "/"),
		index:   cache.New(IndexCacheTTL, 2*IndexCacheTTL),
		retry:   NewRetryPolicy(maxAttempts),
		logger:  logger,
	}
}

// FilingBaseURL returns the archive folder of a filing
func (d *DocumentClient) FilingBaseURL(cik, accession string) string {
	return fmt.Sprintf("%s/Archives/edgar/data/%s/%s", d.baseURL, cik, strings.ReplaceAll(accession, "-", ""))
}

// Download fetches the primary document of a filing. Candidates are tried in order:
// the directory listing pick, <form>.htm, <accession>.txt, primary-document.htm.
func (d *DocumentClient) Download(ctx context.Context, filing *models.FilingRecord) (*models.RawDocument, error) {
	base := d.FilingBaseURL(filing.CompanyID, filing.FilingID)

	var candidates []string
	name, err := d.primaryFromIndex(ctx, base, filing.FormType)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		d.logger.Debug().Err(err).Str("filing_id", filing.FilingID).Msg("Directory listing unavailable, using fallbacks")
	}
	if name != "" {
		candidates = append(candidates, base+"/"+name)
	}
	candidates = append(candidates,
		fmt.Sprintf("%s/%s.htm", base, strings.ToLower(string(filing.FormType))),
		fmt.Sprintf("%s/%s.txt", base, filing.FilingID),
		base+"/primary-document.htm",
	)

	var lastErr error
	for _, candidate := range candidates {
		resp, err := d.fetch(ctx, candidate)
		if err == nil {
			d.logger.Debug().
				Str("filing_id", filing.FilingID).
				Str("url", candidate).
				Int("bytes", len(resp.Body)).
				Msg("Primary document downloaded")
			return &models.RawDocument{
				FilingID:    filing.FilingID,
				DocumentURL: candidate,
				ContentType: resp.ContentType,
				Content:     resp.Body,
				FetchedAt:   time.Now().UTC(),
			}, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		lastErr = err
	}

	return nil, fmt.Errorf("failed to download filing %s: %w", filing.FilingID, lastErr)
}

func (d *DocumentClient) fetch(ctx context.Context, url string) (*Response, error) {
	var resp *Response
	err := d.retry.ExecuteWithRetry(ctx, d.logger, func() error {
		r, err := d.client.Get(ctx, url)
		if err != nil {
			return err
		}
		resp = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	if bytes.Contains(resp.Body, []byte(xbrlViewerMarker)) {
		return nil, fmt.Errorf("%s is an XBRL viewer page: %w", url, errNoDocument)
	}
	if len(bytes.TrimSpace(resp.Body)) == 0 {
		return nil, fmt.Errorf("%s is empty: %w", url, errNoDocument)
	}
	return resp, nil
}

// primaryFromIndex picks the primary document from index.json, caching the listing
func (d *DocumentClient) primaryFromIndex(ctx context.Context, base string, form models.FormType) (string, error) {
	if cached, found := d.index.Get(base); found {
		return cached.(string), nil
	}

	var resp *Response
	err := d.retry.ExecuteWithRetry(ctx, d.logger, func() error {
		r, err := d.client.Get(ctx, base+"/index.json")
		if err != nil {
			return err
		}
		resp = r
		return nil
	})
	if err != nil {
		return "", err
	}

	var idx filingIndex
	if err := json.Unmarshal(resp.Body, &idx); err != nil {
		return "", common.Malformed("index.json for %s: %v", base, err)
	}

	names := make([]string, 0, len(idx.Directory.Item))
	for _, item := range idx.Directory.Item {
		names = append(names, item.Name)
	}

	name := SelectPrimaryDocument(names, form)
	d.index.Set(base, name, cache.DefaultExpiration)
	return name, nil
}

// SelectPrimaryDocument chooses the first .htm file (skipping R*.htm XBRL pages)
// that mentions the form type or is not an index page, then any remaining .htm.
func SelectPrimaryDocument(names []string, form models.FormType) string {
	formKey := strings.ToLower(strings.ReplaceAll(string(form), "-", ""))

	isPage := func(name string) bool {
		lower := strings.ToLower(name)
		return strings.HasSuffix(lower, ".htm") && !strings.HasPrefix(name, "R")
	}

	for _, name := range names {
		if !isPage(name) {
			continue
		}
		lower := strings.ToLower(name)
		if strings.Contains(strings.ReplaceAll(lower, "-", ""), formKey) || !strings.Contains(lower, "index") {
			return name
		}
	}
	for _, name := range names {
		if isPage(name) {
			return name
		}
	}
	return ""
}
