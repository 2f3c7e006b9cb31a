package pipeline

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/secsignal/internal/common"
)

// StageInfo describes a registered stage
type StageInfo struct {
	Name        string
	Description string
}

// Orchestrator runs registered stages in their fixed order
type Orchestrator struct {
	mu     sync.RWMutex
	stages map[string]Stage
	logger arbor.ILogger
}

// NewOrchestrator creates an empty orchestrator
func NewOrchestrator(logger arbor.ILogger) *Orchestrator {
	return &Orchestrator{
		stages: make(map[string]Stage),
		logger: logger,
	}
}

// Register adds a stage. Only the four known stage names are accepted.
func (o *Orchestrator) Register(stage Stage) error {
	name := stage.Name()
	if !known(name) {
		return fmt.Errorf("cannot register stage %q: not one of %v", name, order)
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	o.stages[name] = stage
	return nil
}

// Select resolves stage names (aliases allowed, case-insensitive) to registered
// stages in pipeline order. No names selects every registered stage.
func (o *Orchestrator) Select(names []string) ([]Stage, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()

	resolved, err := Resolve(names)
	if err != nil {
		return nil, err
	}

	selected := make([]Stage, 0, len(resolved))
	for _, name := range resolved {
		stage, ok := o.stages[name]
		if !ok {
			if len(names) == 0 {
				continue
			}
			return nil, &common.ConfigurationError{
				Field:  "stages",
				Reason: fmt.Sprintf("stage %q is not available in this configuration", name),
			}
		}
		selected = append(selected, stage)
	}
	return selected, nil
}

// RunOnce runs the selected stages once. A stage error or panic is recorded and
// the next stage still runs. The returned error is only for selection problems;
// check RunContext.HasErrors for stage failures.
func (o *Orchestrator) RunOnce(ctx context.Context, names []string) (*RunContext, error) {
	stages, err := o.Select(names)
	if err != nil {
		return nil, err
	}

	rc := NewRunContext(o.logger)
	logger := rc.Logger()
	logger.Info().
		Str("run_id", rc.RunID).
		Str("stages", stageNames(stages)).
		Msg("Pipeline run started")

	for _, stage := range stages {
		if ctx.Err() != nil {
			logger.Info().Str("stage", stage.Name()).Msg("Shutdown requested, skipping remaining stages")
			break
		}

		start := time.Now()
		err := common.CallSafely(logger, stage.Name(), func() error {
			return stage.Run(ctx, rc)
		})
		if err != nil {
			rc.RecordError(stage.Name(), "", err)
		}

		counters := rc.Counters(stage.Name())
		logger.Debug().
			Str("stage", stage.Name()).
			Dur("duration", time.Since(start)).
			Int("processed", counters.Processed).
			Int("failed", counters.Failed).
			Msg("Stage finished")
	}

	logger.Info().
		Str("run_id", rc.RunID).
		Dur("duration", time.Since(rc.StartedAt)).
		Int("errors", len(rc.Errors())).
		Msg("Pipeline run completed")

	return rc, nil
}

// RunContinuous runs the stages immediately and then every interval until ctx
// is cancelled. Overlapping cycles are skipped. Cycle errors are logged and never
// stop the loop. It returns once the cycle in flight at cancellation completes.
func (o *Orchestrator) RunContinuous(ctx context.Context, names []string, interval time.Duration) error {
	if _, err := o.Select(names); err != nil {
		return err
	}
	if interval < time.Second {
		return &common.ConfigurationError{Field: "pipeline.interval", Reason: "must be at least 1s"}
	}

	cycle := func() {
		if ctx.Err() != nil {
			return
		}
		rc, err := o.RunOnce(ctx, names)
		if err != nil {
			o.logger.Error().Err(err).Msg("Pipeline cycle failed")
			return
		}
		if rc.HasErrors() {
			o.logger.Warn().
				Str("run_id", rc.RunID).
				Int("errors", len(rc.Errors())).
				Msg("Pipeline cycle completed with errors")
		}
	}

	cronLog := &cronLogger{logger: o.logger}
	scheduler := cron.New(cron.WithLogger(cronLog), cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog)))
	scheduler.Schedule(cron.Every(interval), cron.FuncJob(cycle))

	o.logger.Info().
		Str("interval", interval.String()).
		Msg("Continuous mode started")

	cycle()
	scheduler.Start()

	<-ctx.Done()
	o.logger.Info().Msg("Stopping scheduler, waiting for running cycle")
	<-scheduler.Stop().Done()
	o.logger.Info().Msg("Continuous mode stopped")
	return nil
}

// Describe lists registered stages in pipeline order
func (o *Orchestrator) Describe() []StageInfo {
	o.mu.RLock()
	defer o.mu.RUnlock()

	var infos []StageInfo
	for _, name := range order {
		if stage, ok := o.stages[name]; ok {
			infos = append(infos, StageInfo{Name: name, Description: stage.Description()})
		}
	}
	return infos
}

func stageNames(stages []Stage) string {
	names := make([]string, len(stages))
	for i, s := range stages {
		names[i] = s.Name()
	}
	return strings.Join(names, ",")
}

// cronLogger adapts arbor to the cron.Logger interface
type cronLogger struct {
	logger arbor.ILogger
}

func (l *cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug().Str("scheduler", fmt.Sprint(keysAndValues...)).Msg(msg)
}

func (l *cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error().Err(err).Str("scheduler", fmt.Sprint(keysAndValues...)).Msg(msg)
}
