package rules

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/ternarybob/secsignal/internal/models"
)

func TestDecide(t *testing.T) {
	th := DefaultThresholds()

	tests := []struct {
		name       string
		in         Input
		signal     models.Signal
		confidence float64
		malformed  bool
	}{
		{
			name:       "raised guidance with strong score buys",
			in:         Input{models.SentimentPositive, 0.8, models.GuidanceRaised, models.RiskLow},
			signal:     models.SignalBuy,
			confidence: 0.9,
		},
		{
			name:       "buy at threshold",
			in:         Input{models.SentimentPositive, 0.5, models.GuidanceRaised, models.RiskMedium},
			signal:     models.SignalBuy,
			confidence: 0.75,
		},
		{
			name:       "strong score without raised guidance holds",
			in:         Input{models.SentimentPositive, 0.8, models.GuidanceNone, models.RiskLow},
			signal:     models.SignalHold,
			confidence: 0.2,
		},
		{
			name:       "negative 8-K with high risk sells",
			in:         Input{models.SentimentNegative, -0.7, models.GuidanceLowered, models.RiskHigh},
			signal:     models.SignalSell,
			confidence: 0.85,
		},
		{
			name:       "negative score with medium risk holds",
			in:         Input{models.SentimentNegative, -0.7, models.GuidanceLowered, models.RiskMedium},
			signal:     models.SignalHold,
			confidence: 0.3,
		},
		{
			name:       "neutral holds with full confidence",
			in:         Input{models.SentimentNeutral, 0, models.GuidanceUnclear, models.RiskMedium},
			signal:     models.SignalHold,
			confidence: 1,
		},
		{
			name:       "score above range is clamped",
			in:         Input{models.SentimentPositive, 3.5, models.GuidanceRaised, models.RiskLow},
			signal:     models.SignalBuy,
			confidence: 1,
		},
		{
			name:       "score below range is clamped",
			in:         Input{models.SentimentNegative, -7, models.GuidanceNone, models.RiskHigh},
			signal:     models.SignalSell,
			confidence: 1,
		},
		{
			name:       "clamped score holds at zero confidence",
			in:         Input{models.SentimentNegative, -2, models.GuidanceNone, models.RiskLow},
			signal:     models.SignalHold,
			confidence: 0,
		},
		{
			name:      "NaN score",
			in:        Input{models.SentimentPositive, math.NaN(), models.GuidanceRaised, models.RiskLow},
			signal:    models.SignalHold,
			malformed: true,
		},
		{
			name:      "unknown sentiment",
			in:        Input{models.Sentiment("ECSTATIC"), 0.9, models.GuidanceRaised, models.RiskLow},
			signal:    models.SignalHold,
			malformed: true,
		},
		{
			name:      "unknown guidance",
			in:        Input{models.SentimentPositive, 0.9, models.GuidanceChange(""), models.RiskLow},
			signal:    models.SignalHold,
			malformed: true,
		},
		{
			name:      "unknown risk",
			in:        Input{models.SentimentNegative, -0.9, models.GuidanceLowered, models.RiskLevel("EXTREME")},
			signal:    models.SignalHold,
			malformed: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Decide(tt.in, th)
			assert.Equal(t, tt.signal, d.Signal)
			assert.InDelta(t, tt.confidence, d.Confidence, 1e-9)
			assert.Equal(t, tt.malformed, d.Malformed)
			assert.GreaterOrEqual(t, d.Confidence, 0.0)
			assert.LessOrEqual(t, d.Confidence, 1.0)
			assert.NotEmpty(t, Explain(d, tt.in, th))

			// Same input, same answer
			assert.Equal(t, d, Decide(tt.in, th))
		})
	}
}

func TestDecideCustomThresholds(t *testing.T) {
	th := Thresholds{BuyScore: 0.3, SellScore: -0.3}
	in := Input{models.SentimentPositive, 0.4, models.GuidanceRaised, models.RiskLow}

	assert.Equal(t, models.SignalHold, Decide(in, DefaultThresholds()).Signal)
	assert.Equal(t, models.SignalBuy, Decide(in, th).Signal)
}

func TestDecideCoversGrid(t *testing.T) {
	sentiments := []models.Sentiment{models.SentimentPositive, models.SentimentNeutral, models.SentimentNegative}
	guidance := []models.GuidanceChange{models.GuidanceRaised, models.GuidanceLowered, models.GuidanceNone, models.GuidanceUnclear}
	risks := []models.RiskLevel{models.RiskLow, models.RiskMedium, models.RiskHigh}
	scores := []float64{-1, -0.75, -0.5, -0.25, 0, 0.25, 0.5, 0.75, 1}

	for _, s := range sentiments {
		for _, g := range guidance {
			for _, r := range risks {
				for _, score := range scores {
					d := Decide(Input{s, score, g, r}, DefaultThresholds())
					assert.False(t, d.Malformed)
					assert.Contains(t, []models.Signal{models.SignalBuy, models.SignalSell, models.SignalHold}, d.Signal)
					assert.True(t, d.Confidence >= 0 && d.Confidence <= 1, "confidence %v", d.Confidence)
				}
			}
		}
	}
}

func TestExplain(t *testing.T) {
	th := DefaultThresholds()

	sell := Input{models.SentimentNegative, -0.7, models.GuidanceLowered, models.RiskHigh}
	assert.Contains(t, Explain(Decide(sell, th), sell, th), "risk is high")

	buy := Input{models.SentimentPositive, 0.7, models.GuidanceRaised, models.RiskLow}
	assert.Contains(t, Explain(Decide(buy, th), buy, th), "raised guidance")

	neutral := Input{models.SentimentNeutral, 0.1, models.GuidanceNone, models.RiskLow}
	assert.Contains(t, Explain(Decide(neutral, th), neutral, th), "neutral outlook")

	bad := Input{models.Sentiment("?"), 0.1, models.GuidanceNone, models.RiskLow}
	assert.Contains(t, Explain(Decide(bad, th), bad, th), "could not be evaluated")
}
