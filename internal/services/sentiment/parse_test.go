package sentiment

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/secsignal/internal/common"
	"github.com/ternarybob/secsignal/internal/models"
)

func TestParseReply(t *testing.T) {
	tests := []struct {
		name      string
		reply     string
		sentiment string
		score     float64
		guidance  string
		risk      string
	}{
		{
			name:      "canonical JSON",
			reply:     `{"sentiment":"NEGATIVE","score":-0.7,"guidance_change":"LOWERED","risk_level":"HIGH","rationale":"Revenue fell"}`,
			sentiment: "NEGATIVE", score: -0.7, guidance: "LOWERED", risk: "HIGH",
		},
		{
			name:      "loose vocabulary with numeric risk factor",
			reply:     `{"sentiment":"positive","guidance_change":"raise","risk_factor_level":0.2,"forward_looking_sentiment":0.9}`,
			sentiment: "POSITIVE", score: 0.5, guidance: "RAISED", risk: "LOW",
		},
		{
			name:      "fenced with prose",
			reply:     "Analysis below\n```json\n{\"sentiment\":\"neutral\",\"guidance_change\":\"maintain\",\"risk_factor_level\":\"0.5\"}\n```",
			sentiment: "NEUTRAL", score: 0, guidance: "NONE", risk: "MEDIUM",
		},
		{
			name:      "missing optional fields default",
			reply:     `{"sentiment":"negative"}`,
			sentiment: "NEGATIVE", score: -0.5, guidance: "UNCLEAR", risk: "MEDIUM",
		},
		{
			name:      "per field rescue from broken JSON",
			reply:     `{"sentiment": "negative", "guidance_change": "cut", "score": -0.6, "risk_level": "high",`,
			sentiment: "NEGATIVE", score: -0.6, guidance: "LOWERED", risk: "HIGH",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := ParseReply(tt.reply)
			require.NoError(t, err)
			assert.Equal(t, tt.sentiment, resp.Sentiment)
			assert.InDelta(t, tt.score, resp.Score, 1e-9)
			assert.Equal(t, tt.guidance, resp.GuidanceChange)
			assert.Equal(t, tt.risk, resp.RiskLevel)
		})
	}
}

func TestParseReplyMalformed(t *testing.T) {
	tests := []struct {
		name  string
		reply string
	}{
		{"no json no fields", "I cannot analyze this document."},
		{"score out of range", `{"sentiment":"positive","score":1.7}`},
		{"unknown sentiment", `{"sentiment":"ecstatic","score":0.2}`},
		{"unknown guidance", `{"sentiment":"positive","guidance_change":"sideways"}`},
		{"empty", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseReply(tt.reply)
			require.Error(t, err)
			assert.ErrorIs(t, err, common.ErrMalformedResponse)
		})
	}
}

func TestToResultAndFallback(t *testing.T) {
	now := time.Date(2024, 5, 3, 0, 0, 0, 0, time.UTC)
	resp := &ScoreResponse{Sentiment: "NEGATIVE", Score: -0.7, GuidanceChange: "LOWERED", RiskLevel: "HIGH"}

	result := ToResult("acc-1", resp, "model-x", now)
	assert.Equal(t, models.SentimentNegative, result.Sentiment)
	assert.Equal(t, models.GuidanceLowered, result.GuidanceChange)
	assert.Equal(t, models.RiskHigh, result.RiskLevel)
	assert.Equal(t, "model-x", result.ModelUsed)
	assert.False(t, result.Fallback)

	fallback := FallbackResult("acc-1", "model-x", "fallback: could not parse model response: x", false, now)
	assert.Equal(t, models.SentimentNeutral, fallback.Sentiment)
	assert.Zero(t, fallback.Score)
	assert.Equal(t, models.GuidanceUnclear, fallback.GuidanceChange)
	assert.Equal(t, models.RiskMedium, fallback.RiskLevel)
	assert.True(t, fallback.Fallback)
	assert.False(t, fallback.Flagged)
}
