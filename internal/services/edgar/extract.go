package edgar

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
	"time"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/secsignal/internal/common"
	"github.com/ternarybob/secsignal/internal/models"
)

var (
	entityArtifacts = regexp.MustCompile(`&(nbsp|lt|gt|amp|quot|apos|#\d+|#x[0-9a-fA-F]+);`)
	nonASCII        = regexp.MustCompile(`[^\x00-\x7F]+`)
	whitespace      = regexp.MustCompile(`\s+`)
)

// Extractor turns a raw filing document into plain text and Markdown
type Extractor struct {
	logger arbor.ILogger
}

// NewExtractor creates a new Extractor
func NewExtractor(logger arbor.ILogger) *Extractor {
	return &Extractor{
		logger: logger,
	}
}

// Extract drops script, style and head content, joins the remaining text nodes
// with spaces and normalizes the result. An empty result is an error.
func (e *Extractor) Extract(raw *models.RawDocument, form models.FormType) (*models.ExtractedDocument, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(raw.Content))
	if err != nil {
		return nil, fmt.Errorf("failed to parse document for %s: %w", raw.FilingID, err)
	}

	doc.Find("script, style, head, noscript").Remove()

	var b strings.Builder
	collectText(doc.Selection, &b)
	text := CleanText(b.String())
	if text == "" {
		return nil, common.Malformed("document for %s (%s) has no text content", raw.FilingID, form)
	}

	markdown := e.markdown(doc, raw)

	sum := sha256.Sum256(raw.Content)
	e.logger.Debug().
		Str("filing_id", raw.FilingID).
		Int("raw_bytes", len(raw.Content)).
		Int("text_chars", len(text)).
		Int("markdown_chars", len(markdown)).
		Msg("Document extracted")

	return &models.ExtractedDocument{
		FilingID:    raw.FilingID,
		Text:        text,
		Markdown:    markdown,
		ContentHash: hex.EncodeToString(sum[:]),
		ExtractedAt: time.Now().UTC(),
	}, nil
}

// markdown renders the cleaned body; conversion failures fall back to empty Markdown
func (e *Extractor) markdown(doc *goquery.Document, raw *models.RawDocument) string {
	body := doc.Find("body")
	if body.Length() == 0 {
		body = doc.Selection
	}
	html, err := body.Html()
	if err != nil || strings.TrimSpace(html) == "" {
		return ""
	}

	converter := md.NewConverter(raw.DocumentURL, true, nil)
	converted, err := converter.ConvertString(html)
	if err != nil {
		e.logger.Warn().Err(err).Str("filing_id", raw.FilingID).Msg("HTML to markdown conversion failed")
		return ""
	}
	return strings.TrimSpace(converted)
}

func collectText(sel *goquery.Selection, b *strings.Builder) {
	sel.Contents().Each(func(_ int, child *goquery.Selection) {
		if goquery.NodeName(child) == "#text" {
			b.WriteString(child.Text())
			b.WriteByte(' ')
			return
		}
		collectText(child, b)
	})
}

// CleanText strips leftover HTML entities and non-ASCII characters and collapses whitespace
func CleanText(text string) string {
	text = entityArtifacts.ReplaceAllString(text, " ")
	text = nonASCII.ReplaceAllString(text, " ")
	text = whitespace.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}
