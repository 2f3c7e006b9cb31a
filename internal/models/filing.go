package models

import (
	"encoding/gob"
	"strings"
	"time"
)

func init() {
	// Register types with gob for BadgerDB serialization
	gob.Register(FilingRecord{})
	gob.Register(RawDocument{})
	gob.Register(ExtractedDocument{})
	gob.Register(SentimentResult{})
	gob.Register(SignalRecord{})
	gob.Register(PipelineState{})
}

// FormType is the SEC form of a filing
type FormType string

const (
	FormType10K   FormType = "10-K"
	FormType10Q   FormType = "10-Q"
	FormType8K    FormType = "8-K"
	FormType6K    FormType = "6-K"
	FormTypeOther FormType = "other"
)

// ParseFormType maps a feed form label to a FormType; unknown forms become "other"
func ParseFormType(s string) FormType {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "10-K":
		return FormType10K
	case "10-Q":
		return FormType10Q
	case "8-K":
		return FormType8K
	case "6-K":
		return FormType6K
	default:
		return FormTypeOther
	}
}

// FilingStatus is the pipeline progress of a filing. It only moves forward.
type FilingStatus string

const (
	StatusDiscovered FilingStatus = "DISCOVERED"
	StatusExtracted  FilingStatus = "EXTRACTED"
	StatusScored     FilingStatus = "SCORED"
	StatusDecided    FilingStatus = "DECIDED"
)

// AllStatuses lists statuses in pipeline order
var AllStatuses = []FilingStatus{StatusDiscovered, StatusExtracted, StatusScored, StatusDecided}

// Rank returns the position of the status in the pipeline, or -1 if unknown
func (s FilingStatus) Rank() int {
	for i, st := range AllStatuses {
		if st == s {
			return i
		}
	}
	return -1
}

// AtLeast reports whether s is at or past other
func (s FilingStatus) AtLeast(other FilingStatus) bool {
	return s.Rank() >= other.Rank()
}

// FilingRecord is the metadata of one filing seen on the feed.
// FilingID, CompanyID, CompanyName, FormType, FiledAt and SourceURL are immutable.
type FilingRecord struct {
	FilingID      string       `json:"filing_id"`
	CompanyID     string       `json:"company_id"`
	CompanyName   string       `json:"company_name"`
	FormType      FormType     `json:"form_type"`
	FiledAt       time.Time    `json:"filed_at"`
	SourceURL     string       `json:"source_url"`
	Status        FilingStatus `json:"status" badgerhold:"index"`
	ScoreAttempts int          `json:"score_attempts"`
	LastError     string       `json:"last_error,omitempty"`
	DiscoveredAt  time.Time    `json:"discovered_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
}

// Advance moves the record forward to status and reports whether it changed.
// Requests to move backwards are ignored.
func (r *FilingRecord) Advance(status FilingStatus) bool {
	if status.Rank() <= r.Status.Rank() {
		return false
	}
	r.Status = status
	return true
}

// IdentityMismatch returns the first immutable field that differs from other,
// with the stored and incoming values. An empty field name means identical.
func (r *FilingRecord) IdentityMismatch(other *FilingRecord) (field, stored, incoming string) {
	switch {
	case r.CompanyID != other.CompanyID:
		return "company_id", r.CompanyID, other.CompanyID
	case r.CompanyName != other.CompanyName:
		return "company_name", r.CompanyName, other.CompanyName
	case r.FormType != other.FormType:
		return "form_type", string(r.FormType), string(other.FormType)
	case !r.FiledAt.Equal(other.FiledAt):
		return "filed_at", r.FiledAt.Format(time.RFC3339), other.FiledAt.Format(time.RFC3339)
	case r.SourceURL != other.SourceURL:
		return "source_url", r.SourceURL, other.SourceURL
	}
	return "", "", ""
}

// PipelineState is a small key/value record for stage bookkeeping (feed cursor, counters)
type PipelineState struct {
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}
