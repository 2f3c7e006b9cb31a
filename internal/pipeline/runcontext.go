package pipeline

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/secsignal/internal/common"
)

// StageError is one failure recorded during a run. FilingID is empty for stage-level failures.
type StageError struct {
	Stage    string
	FilingID string
	Err      error
}

func (e StageError) Error() string {
	if e.FilingID == "" {
		return fmt.Sprintf("%s: %v", e.Stage, e.Err)
	}
	return fmt.Sprintf("%s [%s]: %v", e.Stage, e.FilingID, e.Err)
}

func (e StageError) Unwrap() error {
	return e.Err
}

// StageCounters tracks per-stage item outcomes
type StageCounters struct {
	Processed int
	Skipped   int
	Failed    int
	Fallback  int
}

// RunContext is the explicit state of one pipeline run. All logs carry the run ID
// as correlation ID. Safe for concurrent use by stage workers.
type RunContext struct {
	RunID     string
	StartedAt time.Time

	logger arbor.ILogger

	mu       sync.Mutex
	counters map[string]*StageCounters
	errs     []StageError
}

// NewRunContext creates a run context with a fresh run ID
func NewRunContext(logger arbor.ILogger) *RunContext {
	runID := common.NewRunID()
	return &RunContext{
		RunID:     runID,
		StartedAt: time.Now().UTC(),
		logger:    logger.WithCorrelationId(runID),
		counters:  make(map[string]*StageCounters),
	}
}

// Logger returns the run-scoped logger
func (rc *RunContext) Logger() arbor.ILogger {
	return rc.logger
}

func (rc *RunContext) stage(name string) *StageCounters {
	c, ok := rc.counters[name]
	if !ok {
		c = &StageCounters{}
		rc.counters[name] = c
	}
	return c
}

// Processed counts an item the stage completed
func (rc *RunContext) Processed(stage string) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.stage(stage).Processed++
}

// Skipped counts an item the stage left untouched
func (rc *RunContext) Skipped(stage string) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.stage(stage).Skipped++
}

// Fallback counts an item completed with a fallback result. Fallbacks are not errors.
func (rc *RunContext) Fallback(stage string) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.stage(stage).Fallback++
}

// RecordError records a failure, counts it and logs it with stage and filing fields
func (rc *RunContext) RecordError(stage, filingID string, err error) {
	if err == nil {
		return
	}

	rc.mu.Lock()
	rc.errs = append(rc.errs, StageError{Stage: stage, FilingID: filingID, Err: err})
	if filingID != "" {
		rc.stage(stage).Failed++
	}
	rc.mu.Unlock()

	event := rc.logger.Error()
	if common.IsTransient(err) {
		event = rc.logger.Warn()
	}
	event.
		Str("stage", stage).
		Str("filing_id", filingID).
		Err(err).
		Msg("Stage item failed")
}

// Counters returns a copy of the counters of one stage
func (rc *RunContext) Counters(stage string) StageCounters {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	if c, ok := rc.counters[stage]; ok {
		return *c
	}
	return StageCounters{}
}

// Stages returns the names of stages that recorded anything, sorted
func (rc *RunContext) Stages() []string {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	names := make([]string, 0, len(rc.counters))
	for name := range rc.counters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Errors returns a copy of the recorded errors
func (rc *RunContext) Errors() []StageError {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	out := make([]StageError, len(rc.errs))
	copy(out, rc.errs)
	return out
}

// HasErrors reports whether any stage recorded an error
func (rc *RunContext) HasErrors() bool {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return len(rc.errs) > 0
}

// Err joins every recorded error, or returns nil
func (rc *RunContext) Err() error {
	errs := rc.Errors()
	if len(errs) == 0 {
		return nil
	}
	joined := make([]error, len(errs))
	for i, e := range errs {
		joined[i] = e
	}
	return errors.Join(joined...)
}
