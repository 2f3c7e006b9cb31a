package agentic

import (
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/ternarybob/secsignal/internal/common"
	"github.com/ternarybob/secsignal/internal/models"
	"github.com/ternarybob/secsignal/internal/services/llm"
)

// DecisionResponse is a validated model decision
type DecisionResponse struct {
	Signal     string  `validate:"required,oneof=BUY SELL HOLD"`
	Confidence float64 `validate:"gte=0,lte=1"`
	Reasoning  string
	// FromKeywords is set when the decision was read from free text rather than JSON
	FromKeywords bool
}

var validate = validator.New()

var (
	buyWords        = regexp.MustCompile(`(?i)\b(buy|long)\b`)
	sellWords       = regexp.MustCompile(`(?i)\b(sell|short)\b`)
	holdWords       = regexp.MustCompile(`(?i)\bhold\b`)
	confidenceValue = regexp.MustCompile(`(?i)confidence[^\d]{0,20}([0-9]*\.?[0-9]+)`)
)

// ParseDecision reads a {decision, confidence, reasoning} object from a reply
func ParseDecision(reply string) (*DecisionResponse, error) {
	obj, err := llm.ExtractJSONObject(reply, "decision", "signal", "action")
	if err != nil {
		return nil, err
	}

	label, ok := llm.StringField(obj, "decision", "signal", "action")
	if !ok {
		return nil, common.Malformed("decision missing")
	}
	signal, ok := normalizeSignal(label)
	if !ok {
		return nil, common.Malformed("unknown decision %q", label)
	}

	resp := &DecisionResponse{Signal: string(signal), Confidence: 0.5}
	if c, ok := llm.FloatField(obj, "confidence"); ok {
		resp.Confidence = clamp01(c)
	}
	resp.Reasoning, _ = llm.StringField(obj, "reasoning", "reason", "rationale")

	if err := validate.Struct(resp); err != nil {
		return nil, common.Malformed("decision failed validation: %v", err)
	}
	return resp, nil
}

// ParseKeywords reads a decision from free text. Only a reply naming exactly
// one of buy/long, sell/short or hold is accepted.
func ParseKeywords(reply string) (*DecisionResponse, bool) {
	var found []models.Signal
	if buyWords.MatchString(reply) {
		found = append(found, models.SignalBuy)
	}
	if sellWords.MatchString(reply) {
		found = append(found, models.SignalSell)
	}
	if holdWords.MatchString(reply) {
		found = append(found, models.SignalHold)
	}
	if len(found) != 1 {
		return nil, false
	}

	resp := &DecisionResponse{
		Signal:       string(found[0]),
		Confidence:   0.5,
		Reasoning:    "decision extracted from non-JSON response: " + excerpt(strings.TrimSpace(reply), 100),
		FromKeywords: true,
	}
	if m := confidenceValue.FindStringSubmatch(reply); m != nil {
		var c float64
		if _, err := fmt.Sscanf(m[1], "%g", &c); err == nil {
			resp.Confidence = clamp01(c)
		}
	}
	return resp, true
}

// normalizeSignal maps model vocabulary onto signals; SHORT is SELL and LONG is BUY
func normalizeSignal(label string) (models.Signal, bool) {
	switch strings.ToUpper(strings.TrimSpace(label)) {
	case "BUY", "LONG", "STRONG BUY":
		return models.SignalBuy, true
	case "SELL", "SHORT", "STRONG SELL":
		return models.SignalSell, true
	case "HOLD", "NEUTRAL":
		return models.SignalHold, true
	}
	return "", false
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func excerpt(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
