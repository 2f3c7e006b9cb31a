// Package rules turns a sentiment result into a deterministic trading signal.
package rules

import (
	"fmt"
	"math"

	"github.com/ternarybob/secsignal/internal/models"
)

// Thresholds are the score bounds for directional signals
type Thresholds struct {
	BuyScore  float64
	SellScore float64
}

// DefaultThresholds returns BUY at score ≥ 0.5 and SELL at score ≤ -0.5
func DefaultThresholds() Thresholds {
	return Thresholds{BuyScore: 0.5, SellScore: -0.5}
}

// Input is the part of a sentiment result the rules look at
type Input struct {
	Sentiment      models.Sentiment
	Score          float64
	GuidanceChange models.GuidanceChange
	RiskLevel      models.RiskLevel
}

// InputFrom builds rule input from a stored sentiment result
func InputFrom(result *models.SentimentResult) Input {
	return Input{
		Sentiment:      result.Sentiment,
		Score:          result.Score,
		GuidanceChange: result.GuidanceChange,
		RiskLevel:      result.RiskLevel,
	}
}

// Decision is the outcome of Decide
type Decision struct {
	Signal     models.Signal
	Confidence float64
	// Score is the clamped score the decision was based on
	Score float64
	// Malformed is set when the input could not be evaluated and HOLD/0 was returned
	Malformed bool
}

// Decide is total and deterministic: every input yields exactly one decision.
//
//	score ≥ BuyScore and guidance RAISED  → BUY,  confidence min(1, 0.5 + score/2)
//	score ≤ SellScore and risk HIGH       → SELL, confidence min(1, 0.5 + |score|/2)
//	otherwise                             → HOLD, confidence 1 - |score|
//
// Scores outside [-1, 1] are clamped. NaN scores and unknown enum values give
// HOLD with confidence 0 and Malformed set.
func Decide(in Input, th Thresholds) Decision {
	if math.IsNaN(in.Score) || !in.Sentiment.Valid() || !in.GuidanceChange.Valid() || !in.RiskLevel.Valid() {
		return Decision{Signal: models.SignalHold, Confidence: 0, Malformed: true}
	}

	score := math.Max(-1, math.Min(1, in.Score))

	switch {
	case score >= th.BuyScore && in.GuidanceChange == models.GuidanceRaised:
		return Decision{Signal: models.SignalBuy, Confidence: math.Min(1, 0.5+score/2), Score: score}
	case score <= th.SellScore && in.RiskLevel == models.RiskHigh:
		return Decision{Signal: models.SignalSell, Confidence: math.Min(1, 0.5+math.Abs(score)/2), Score: score}
	default:
		return Decision{Signal: models.SignalHold, Confidence: 1 - math.Abs(score), Score: score}
	}
}

// Explain renders a human-readable reason for a decision
func Explain(d Decision, in Input, th Thresholds) string {
	if d.Malformed {
		return fmt.Sprintf("Sentiment input could not be evaluated (sentiment=%q score=%v guidance=%q risk=%q); holding.",
			in.Sentiment, in.Score, in.GuidanceChange, in.RiskLevel)
	}

	switch d.Signal {
	case models.SignalBuy:
		return fmt.Sprintf("Company raised guidance with strong sentiment score %.2f (buy threshold %.2f).", d.Score, th.BuyScore)
	case models.SignalSell:
		return fmt.Sprintf("Sentiment score %.2f is at or below %.2f and disclosed risk is high.", d.Score, th.SellScore)
	}

	switch {
	case d.Score >= th.BuyScore:
		return fmt.Sprintf("Positive sentiment (%.2f) without raised guidance; mixed signals.", d.Score)
	case d.Score <= th.SellScore:
		return fmt.Sprintf("Negative sentiment (%.2f) without high risk; mixed signals.", d.Score)
	default:
		return fmt.Sprintf("Mixed signals or neutral outlook (score %.2f).", d.Score)
	}
}
