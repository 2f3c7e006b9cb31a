package agentic

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/secsignal/internal/interfaces"
)

const systemPrompt = `You are a financial trading agent that makes decisions based on SEC filing analysis.

Respond with a JSON object of this form:
{"decision": "BUY" | "SHORT" | "HOLD", "confidence": number between 0.0 and 1.0, "reasoning": "brief explanation"}

DECISION CRITERIA:
- BUY: strong positive outlook, raised guidance, low risk, positive tone
- SHORT: negative outlook, lowered guidance, high risk, negative tone
- HOLD: mixed or uncertain signals`

const strictPrompt = `You output exactly one raw JSON object and nothing else.
No prose before or after it. No markdown. No code fences.

Required keys:
  "decision": one of "BUY", "SHORT", "HOLD"
  "confidence": a number from 0.0 to 1.0
  "reasoning": one short sentence

Example:
{"decision":"HOLD","confidence":0.6,"reasoning":"Mixed guidance with moderate risk."}`

// LLMReasoner asks a chat model for a trading decision
type LLMReasoner struct {
	llm    interfaces.LLMService
	logger arbor.ILogger
}

// NewLLMReasoner creates a reasoner over an LLM service
func NewLLMReasoner(llm interfaces.LLMService, logger arbor.ILogger) *LLMReasoner {
	return &LLMReasoner{llm: llm, logger: logger}
}

// Decide returns the raw model reply. strict switches to the reformulated prompt.
func (r *LLMReasoner) Decide(ctx context.Context, req *interfaces.DecisionRequest, strict bool) (string, error) {
	prompt := systemPrompt
	if strict {
		prompt = strictPrompt
	}

	return r.llm.Chat(ctx, []interfaces.Message{
		{Role: "system", Content: prompt},
		{Role: "user", Content: BuildUserPrompt(req)},
	})
}

// Model returns the model identifier
func (r *LLMReasoner) Model() string {
	return r.llm.Model()
}

// BuildUserPrompt renders the filing analysis and excerpt for the model
func BuildUserPrompt(req *interfaces.DecisionRequest) string {
	var b strings.Builder
	b.WriteString("Based on the following SEC filing analysis, make a trading decision.\n\n")

	if f := req.Filing; f != nil {
		fmt.Fprintf(&b, "Company: %s (CIK %s)\n", f.CompanyName, f.CompanyID)
		fmt.Fprintf(&b, "Filing Type: %s\n", f.FormType)
		fmt.Fprintf(&b, "Filed: %s\n", f.FiledAt.Format("2006-01-02"))
	}

	if s := req.Sentiment; s != nil {
		b.WriteString("\nANALYSIS DATA:\n")
		fmt.Fprintf(&b, "- Sentiment: %s (score %.2f)\n", s.Sentiment, s.Score)
		fmt.Fprintf(&b, "- Guidance Change: %s\n", s.GuidanceChange)
		fmt.Fprintf(&b, "- Risk Level: %s\n", s.RiskLevel)
		if s.ExecutiveTone != "" {
			fmt.Fprintf(&b, "- Executive Tone: %s\n", s.ExecutiveTone)
		}
		if s.ForwardLooking > 0 {
			fmt.Fprintf(&b, "- Forward-Looking Score: %.2f\n", s.ForwardLooking)
		}
		if s.Uncertainty > 0 {
			fmt.Fprintf(&b, "- Uncertainty: %.2f\n", s.Uncertainty)
		}
		if s.MnAIntent != "" {
			fmt.Fprintf(&b, "- M&A Intent: %s\n", s.MnAIntent)
		}
		if s.Rationale != "" {
			fmt.Fprintf(&b, "- Analyst Notes: %s\n", s.Rationale)
		}
	}

	if req.Excerpt != "" {
		b.WriteString("\nFILING EXCERPT:\n")
		b.WriteString(req.Excerpt)
		b.WriteString("\n")
	}

	b.WriteString("\nRespond with only the JSON decision object.")
	return b.String()
}

// Excerpt bounds document context to n bytes, cutting at the last line break when possible
func Excerpt(markdown string, n int) string {
	markdown = strings.TrimSpace(markdown)
	if n <= 0 || len(markdown) <= n {
		return markdown
	}
	for n > 0 && !utf8.RuneStart(markdown[n]) {
		n--
	}
	cut := markdown[:n]
	if i := strings.LastIndexByte(cut, '\n'); i > n/2 {
		cut = cut[:i]
	}
	return strings.TrimSpace(cut)
}
