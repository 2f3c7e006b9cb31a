package models

import "time"

// Signal is an advisory trading recommendation
type Signal string

const (
	SignalBuy  Signal = "BUY"
	SignalSell Signal = "SELL"
	SignalHold Signal = "HOLD"
)

// Strategy identifies how a signal was produced
type Strategy string

const (
	StrategyRuleBased Strategy = "RULE_BASED"
	StrategyAgentic   Strategy = "AGENTIC"
)

// AllStrategies lists every decision strategy; a filing is DECIDED once each has a signal
var AllStrategies = []Strategy{StrategyRuleBased, StrategyAgentic}

// SignalRecord is one decision for a filing. RULE_BASED and AGENTIC records coexist.
type SignalRecord struct {
	FilingID    string    `json:"filing_id" badgerhold:"index"`
	Strategy    Strategy  `json:"strategy"`
	Signal      Signal    `json:"signal"`
	Confidence  float64   `json:"confidence"`
	Reasoning   string    `json:"reasoning"`
	ModelUsed   string    `json:"model_used,omitempty"`
	Fallback    bool      `json:"fallback"`
	GeneratedAt time.Time `json:"generated_at"`
}

// SignalKey returns the storage key for a filing/strategy pair
func SignalKey(filingID string, strategy Strategy) string {
	return filingID + "|" + string(strategy)
}

// Key returns the storage key of the record
func (s *SignalRecord) Key() string {
	return SignalKey(s.FilingID, s.Strategy)
}
