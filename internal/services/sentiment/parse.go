package sentiment

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/ternarybob/secsignal/internal/common"
	"github.com/ternarybob/secsignal/internal/models"
	"github.com/ternarybob/secsignal/internal/services/llm"
)

// ScoreResponse is a model reply after normalization.
// All fields are validated using go-playground/validator tags.
type ScoreResponse struct {
	Sentiment      string  `json:"sentiment" validate:"required,oneof=POSITIVE NEUTRAL NEGATIVE"`
	Score          float64 `json:"score" validate:"gte=-1,lte=1"`
	GuidanceChange string  `json:"guidance_change" validate:"required,oneof=RAISED LOWERED NONE UNCLEAR"`
	RiskLevel      string  `json:"risk_level" validate:"required,oneof=LOW MEDIUM HIGH"`
	Rationale      string  `json:"rationale"`

	ForwardLooking float64 `json:"forward_looking" validate:"gte=0,lte=1"`
	Uncertainty    float64 `json:"uncertainty" validate:"gte=0,lte=1"`
	ExecutiveTone  string  `json:"executive_tone" validate:"omitempty,oneof=POSITIVE NEUTRAL NEGATIVE"`
	MnAIntent      string  `json:"mna_intent"`
}

var validate = validator.New()

var (
	fieldSentiment = regexp.MustCompile(`(?i)"?sentiment"?\s*[:=]?\s*"?(positive|negative|neutral)`)
	fieldGuidance  = regexp.MustCompile(`(?i)"?guidance(?:_change)?"?\s*[:=]?\s*"?(raised?|lower(?:ed)?|maintain(?:ed)?|none|cut|increase[d]?|decrease[d]?|unclear)`)
	fieldScore     = regexp.MustCompile(`(?i)"?(?:sentiment_)?score"?\s*[:=]\s*"?(-?[0-9]*\.?[0-9]+)`)
	fieldRisk      = regexp.MustCompile(`(?i)"?risk(?:_level|_factor_level)?"?\s*[:=]\s*"?(low|medium|high|[0-9]*\.?[0-9]+)`)
)

// ParseReply runs a raw model reply through the extraction ladder and returns a
// validated response. Unusable replies wrap common.ErrMalformedResponse.
func ParseReply(reply string) (*ScoreResponse, error) {
	obj, err := llm.ExtractJSONObject(reply, "sentiment", "sentiment_label")
	if err != nil {
		obj = extractFields(reply)
		if obj == nil {
			return nil, err
		}
	}

	resp, err := normalize(obj)
	if err != nil {
		return nil, err
	}

	if err := validate.Struct(resp); err != nil {
		return nil, common.Malformed("sentiment reply failed validation: %v", err)
	}
	return resp, nil
}

// extractFields is the last rung of the ladder: pull individual fields out of free text
func extractFields(reply string) map[string]interface{} {
	m := fieldSentiment.FindStringSubmatch(reply)
	if m == nil {
		return nil
	}
	obj := map[string]interface{}{"sentiment": m[1]}
	if g := fieldGuidance.FindStringSubmatch(reply); g != nil {
		obj["guidance_change"] = g[1]
	}
	if s := fieldScore.FindStringSubmatch(reply); s != nil {
		obj["score"] = s[1]
	}
	if r := fieldRisk.FindStringSubmatch(reply); r != nil {
		obj["risk_level"] = r[1]
	}
	return obj
}

func normalize(obj map[string]interface{}) (*ScoreResponse, error) {
	label, ok := llm.StringField(obj, "sentiment", "sentiment_label", "overall_sentiment")
	if !ok || label == "" {
		return nil, common.Malformed("sentiment reply has no sentiment field")
	}

	resp := &ScoreResponse{
		Sentiment:      normalizeSentiment(label),
		GuidanceChange: string(models.GuidanceUnclear),
		RiskLevel:      string(models.RiskMedium),
	}

	if score, ok := llm.FloatField(obj, "score", "sentiment_score"); ok {
		if math.IsNaN(score) || math.IsInf(score, 0) {
			return nil, common.Malformed("sentiment score is not a number")
		}
		resp.Score = score
	} else {
		resp.Score = labelScore(resp.Sentiment)
	}

	if g, ok := llm.StringField(obj, "guidance_change", "guidance"); ok {
		resp.GuidanceChange = normalizeGuidance(g)
	}

	if r, ok := llm.StringField(obj, "risk_level", "risk", "risk_factor_level"); ok {
		resp.RiskLevel = normalizeRisk(r)
	}

	resp.Rationale, _ = llm.StringField(obj, "rationale", "reasoning", "summary", "explanation")

	if v, ok := llm.FloatField(obj, "forward_looking_sentiment", "forward_looking"); ok {
		resp.ForwardLooking = clamp(v, 0, 1)
	}
	if v, ok := llm.FloatField(obj, "uncertainty_level", "uncertainty"); ok {
		resp.Uncertainty = clamp(v, 0, 1)
	}
	if tone, ok := llm.StringField(obj, "executive_tone"); ok && tone != "" {
		resp.ExecutiveTone = normalizeSentiment(tone)
	}
	if intent, ok := llm.StringField(obj, "mna_intent"); ok {
		resp.MnAIntent = strings.ToLower(intent)
	}

	return resp, nil
}

func normalizeSentiment(s string) string {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "positive", "bullish":
		return string(models.SentimentPositive)
	case "negative", "bearish":
		return string(models.SentimentNegative)
	case "neutral", "mixed":
		return string(models.SentimentNeutral)
	}
	return strings.ToUpper(strings.TrimSpace(s))
}

func labelScore(sentiment string) float64 {
	switch models.Sentiment(sentiment) {
	case models.SentimentPositive:
		return 0.5
	case models.SentimentNegative:
		return -0.5
	}
	return 0
}

func normalizeGuidance(s string) string {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "raise", "raised", "increase", "increased", "up":
		return string(models.GuidanceRaised)
	case "lower", "lowered", "cut", "decrease", "decreased", "down":
		return string(models.GuidanceLowered)
	case "maintain", "maintained", "none", "unchanged", "reaffirmed":
		return string(models.GuidanceNone)
	case "", "unclear", "unknown", "n/a":
		return string(models.GuidanceUnclear)
	}
	return strings.ToUpper(strings.TrimSpace(s))
}

// normalizeRisk accepts a label or a 0..1 risk factor level
func normalizeRisk(s string) string {
	s = strings.TrimSpace(s)
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		switch {
		case f < 0.34:
			return string(models.RiskLow)
		case f < 0.67:
			return string(models.RiskMedium)
		default:
			return string(models.RiskHigh)
		}
	}
	return strings.ToUpper(s)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// ToResult maps a validated response onto a SentimentResult
func ToResult(filingID string, resp *ScoreResponse, model string, now time.Time) *models.SentimentResult {
	return &models.SentimentResult{
		FilingID:       filingID,
		Sentiment:      models.Sentiment(resp.Sentiment),
		Score:          resp.Score,
		GuidanceChange: models.GuidanceChange(resp.GuidanceChange),
		RiskLevel:      models.RiskLevel(resp.RiskLevel),
		Rationale:      resp.Rationale,
		ModelUsed:      model,
		ScoredAt:       now,
		ForwardLooking: resp.ForwardLooking,
		Uncertainty:    resp.Uncertainty,
		ExecutiveTone:  models.Sentiment(resp.ExecutiveTone),
		MnAIntent:      resp.MnAIntent,
	}
}

// FallbackResult is the safe default persisted when no usable model answer is available
func FallbackResult(filingID, model, rationale string, flagged bool, now time.Time) *models.SentimentResult {
	return &models.SentimentResult{
		FilingID:       filingID,
		Sentiment:      models.SentimentNeutral,
		Score:          0,
		GuidanceChange: models.GuidanceUnclear,
		RiskLevel:      models.RiskMedium,
		Rationale:      rationale,
		ModelUsed:      model,
		ScoredAt:       now,
		Fallback:       true,
		Flagged:        flagged,
	}
}
