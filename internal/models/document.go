package models

import "time"

// RawDocument is the unmodified filing document as downloaded from EDGAR
type RawDocument struct {
	FilingID    string    `json:"filing_id"`
	DocumentURL string    `json:"document_url"`
	ContentType string    `json:"content_type"`
	Content     []byte    `json:"-"`
	FetchedAt   time.Time `json:"fetched_at"`
}

// ExtractedDocument is the normalized text of a filing, stored apart from FilingRecord
type ExtractedDocument struct {
	FilingID    string    `json:"filing_id"`
	Text        string    `json:"text"`
	Markdown    string    `json:"markdown"`
	ContentHash string    `json:"content_hash"`
	ExtractedAt time.Time `json:"extracted_at"`
}
