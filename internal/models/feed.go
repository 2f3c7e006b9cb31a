package models

import "time"

// FeedEntry is one filing announced on the EDGAR current-filings feed
type FeedEntry struct {
	FilingID    string
	CompanyID   string
	CompanyName string
	FormType    FormType
	FiledAt     time.Time
	SourceURL   string
}

// Record converts the entry into a new DISCOVERED FilingRecord
func (e FeedEntry) Record(now time.Time) *FilingRecord {
	return &FilingRecord{
		FilingID:     e.FilingID,
		CompanyID:    e.CompanyID,
		CompanyName:  e.CompanyName,
		FormType:     e.FormType,
		FiledAt:      e.FiledAt,
		SourceURL:    e.SourceURL,
		Status:       StatusDiscovered,
		DiscoveredAt: now,
		UpdatedAt:    now,
	}
}
