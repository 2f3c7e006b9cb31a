package models

import "time"

// Sentiment is the polarity of a filing
type Sentiment string

const (
	SentimentPositive Sentiment = "POSITIVE"
	SentimentNeutral  Sentiment = "NEUTRAL"
	SentimentNegative Sentiment = "NEGATIVE"
)

// GuidanceChange describes how forward guidance moved in the filing
type GuidanceChange string

const (
	GuidanceRaised  GuidanceChange = "RAISED"
	GuidanceLowered GuidanceChange = "LOWERED"
	GuidanceNone    GuidanceChange = "NONE"
	GuidanceUnclear GuidanceChange = "UNCLEAR"
)

// RiskLevel is the assessed risk disclosed in the filing
type RiskLevel string

const (
	RiskLow    RiskLevel = "LOW"
	RiskMedium RiskLevel = "MEDIUM"
	RiskHigh   RiskLevel = "HIGH"
)

// Valid reports whether s is a known sentiment
func (s Sentiment) Valid() bool {
	return s == SentimentPositive || s == SentimentNeutral || s == SentimentNegative
}

// Valid reports whether g is a known guidance change
func (g GuidanceChange) Valid() bool {
	return g == GuidanceRaised || g == GuidanceLowered || g == GuidanceNone || g == GuidanceUnclear
}

// Valid reports whether r is a known risk level
func (r RiskLevel) Valid() bool {
	return r == RiskLow || r == RiskMedium || r == RiskHigh
}

// SentimentResult is the scored sentiment of one filing. One per FilingID; reruns overwrite.
type SentimentResult struct {
	FilingID       string         `json:"filing_id"`
	Sentiment      Sentiment      `json:"sentiment"`
	Score          float64        `json:"score"`
	GuidanceChange GuidanceChange `json:"guidance_change"`
	RiskLevel      RiskLevel      `json:"risk_level"`
	Rationale      string         `json:"rationale"`
	ModelUsed      string         `json:"model_used"`
	ScoredAt       time.Time      `json:"scored_at"`

	// Fallback is set when the result is the safe default rather than a model answer
	Fallback bool `json:"fallback"`
	// Flagged is set when the retry budget was exhausted before a model answer arrived
	Flagged bool `json:"flagged"`

	// Optional detail some models return
	ForwardLooking float64   `json:"forward_looking,omitempty"`
	Uncertainty    float64   `json:"uncertainty,omitempty"`
	ExecutiveTone  Sentiment `json:"executive_tone,omitempty"`
	MnAIntent      string    `json:"mna_intent,omitempty"`
}
