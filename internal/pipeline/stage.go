// Package pipeline runs the filing stages in order, once or on a schedule.
package pipeline

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/ternarybob/secsignal/internal/common"
)

// Stage names in execution order
const (
	StageFetch     = "fetch"
	StageSentiment = "sentiment"
	StageRules     = "rules"
	StageAgentic   = "agentic"
)

// DataFlow describes what moves between the stages
const DataFlow = "SEC EDGAR → filings → extracted documents → sentiment results → signals"

// Stage is one step of the pipeline. Run processes every eligible filing and
// records per-item failures on the RunContext instead of returning them; a
// returned error means the stage as a whole could not run. Stages check ctx
// between items only.
type Stage interface {
	Name() string
	Description() string
	Run(ctx context.Context, rc *RunContext) error
}

// aliases maps legacy stage names onto current ones
var aliases = map[string]string{
	"algotrader":    StageRules,
	"agentictrader": StageAgentic,
}

// order is the fixed topological order of the stages
var order = []string{StageFetch, StageSentiment, StageRules, StageAgentic}

// Order returns the stage names in execution order
func Order() []string {
	out := make([]string, len(order))
	copy(out, order)
	return out
}

// Resolve maps requested stage names, aliases allowed and case-insensitive, to
// canonical names in pipeline order. No names resolves to every stage.
func Resolve(names []string) ([]string, error) {
	if len(names) == 0 {
		return Order(), nil
	}

	wanted := make(map[string]bool, len(names))
	for _, raw := range names {
		name := resolve(raw)
		if !known(name) {
			return nil, &common.ConfigurationError{
				Field:  "stages",
				Reason: fmt.Sprintf("unknown stage %q (known: %s)", raw, strings.Join(knownNames(), ", ")),
			}
		}
		wanted[name] = true
	}

	var resolved []string
	for _, name := range order {
		if wanted[name] {
			resolved = append(resolved, name)
		}
	}
	return resolved, nil
}

// Contains reports whether stage is among the resolved names
func Contains(resolved []string, stage string) bool {
	for _, name := range resolved {
		if name == stage {
			return true
		}
	}
	return false
}

func resolve(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	if alias, ok := aliases[name]; ok {
		return alias
	}
	return name
}

func known(name string) bool {
	for _, n := range order {
		if n == name {
			return true
		}
	}
	return false
}

func knownNames() []string {
	names := Order()
	var extra []string
	for alias := range aliases {
		extra = append(extra, alias)
	}
	sort.Strings(extra)
	return append(names, extra...)
}
