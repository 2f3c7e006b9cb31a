package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/ternarybob/secsignal/internal/app"
	"github.com/ternarybob/secsignal/internal/common"
	"github.com/ternarybob/secsignal/internal/pipeline"
)

var runCmd = &cobra.Command{
	Use:   "run [stage...]",
	Short: "Run pipeline stages once or continuously",
	Long: `Runs the selected stages in pipeline order (fetch, sentiment, rules, agentic).
With no stage arguments the [pipeline] stages setting is used, or every stage.
The aliases algotrader and agentictrader select rules and agentic.

Exit status is 0 when every stage finished cleanly, 1 when any stage reported
errors and 2 for configuration errors.`,
	Example: `  secsignal run
  secsignal run fetch sentiment
  secsignal run --continuous --interval 10m`,
	RunE: runPipeline,
}

var (
	runContinuous bool
	runInterval   string
)

func init() {
	runCmd.Flags().BoolVar(&runContinuous, "continuous", false, "Keep running on a schedule until interrupted")
	runCmd.Flags().StringVar(&runInterval, "interval", "", "Interval between continuous cycles (overrides pipeline.interval)")
}

func runPipeline(cmd *cobra.Command, args []string) error {
	stages := args
	if len(stages) == 0 {
		stages = config.Pipeline.Stages
	}
	if runInterval != "" {
		config.Pipeline.Interval = runInterval
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, config, logger, app.Options{Stages: stages})
	if err != nil {
		return err
	}
	defer application.Close()

	if runContinuous {
		interval, err := common.ParseDuration(config.Pipeline.Interval)
		if err != nil {
			return &common.ConfigurationError{Field: "pipeline.interval", Reason: err.Error()}
		}
		logger.Info().
			Strs("stages", application.Stages).
			Str("interval", interval.String()).
			Msg("Running continuously - press Ctrl+C to stop")
		if err := application.Orchestrator.RunContinuous(ctx, application.Stages, interval); err != nil {
			return err
		}
		logger.Info().Msg("Shutdown complete")
		return nil
	}

	start := time.Now()
	rc, err := application.Orchestrator.RunOnce(ctx, application.Stages)
	if err != nil {
		return err
	}

	printRunSummary(rc, time.Since(start))

	if rc.HasErrors() {
		return &exitError{code: exitStageErrors}
	}
	return nil
}

func printRunSummary(rc *pipeline.RunContext, elapsed time.Duration) {
	for _, stage := range rc.Stages() {
		c := rc.Counters(stage)
		logger.Info().
			Str("run_id", rc.RunID).
			Str("stage", stage).
			Int("processed", c.Processed).
			Int("skipped", c.Skipped).
			Int("fallback", c.Fallback).
			Int("failed", c.Failed).
			Msg("Stage summary")
	}
	event := logger.Info()
	if rc.HasErrors() {
		event = logger.Warn()
	}
	event.
		Str("run_id", rc.RunID).
		Dur("elapsed", elapsed).
		Int("errors", len(rc.Errors())).
		Msg("Run finished")
}
