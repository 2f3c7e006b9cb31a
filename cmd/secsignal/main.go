package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/secsignal/internal/common"
)

// Exit codes
const (
	exitOK          = 0
	exitStageErrors = 1
	exitConfig      = 2
)

var (
	// Global flags
	configFiles []string
	logLevel    string
	noBanner    bool

	// Set by loadConfig in PersistentPreRunE
	config *common.Config
	logger arbor.ILogger
)

// exitError carries a process exit code out of a command
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit status %d", e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error {
	return e.err
}

var rootCmd = &cobra.Command{
	Use:   "secsignal",
	Short: "Turn SEC filings into advisory trading signals",
	Long: `secsignal polls the SEC EDGAR current-filings feed, extracts filing text,
scores it with a language model and derives BUY/SELL/HOLD signals with a
rule-based and an agentic strategy.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: loadConfig,
}

func init() {
	rootCmd.PersistentFlags().StringArrayVarP(&configFiles, "config", "c", nil, "Configuration file path (repeatable, later files override earlier ones)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level override (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&noBanner, "no-banner", false, "Do not print the startup banner")

	rootCmd.AddCommand(runCmd, describeCmd, statusCmd, versionCmd)
}

func main() {
	defer common.RecoverWithCrashFile()
	os.Exit(execute())
}

func execute() int {
	err := rootCmd.Execute()
	if err == nil {
		return exitOK
	}

	code := exitStageErrors
	var exit *exitError
	switch {
	case errors.As(err, &exit):
		code = exit.code
	case errors.Is(err, common.ErrConfiguration):
		code = exitConfig
	}

	if exit == nil || exit.err != nil {
		// Config failures happen before the configured logger exists
		failLogger := logger
		if failLogger == nil {
			failLogger = common.NewConsoleLogger()
		}
		failLogger.Error().Err(err).Int("exit_code", code).Msg("secsignal failed")
	}
	return code
}

// loadConfig runs before every command except version:
// defaults -> config files -> .env -> environment -> flags, then the logger.
func loadConfig(cmd *cobra.Command, args []string) error {
	if cmd == versionCmd {
		return nil
	}

	// Auto-discover config file if not specified
	if len(configFiles) == 0 {
		for _, candidate := range []string{"secsignal.toml", "config.yaml", "deployments/local/secsignal.toml"} {
			if _, err := os.Stat(candidate); err == nil {
				configFiles = append(configFiles, candidate)
				break
			}
		}
	}

	var err error
	config, err = common.LoadFromFiles(configFiles...)
	if err != nil {
		return &exitError{code: exitConfig, err: err}
	}

	common.ApplyFlagOverrides(config, logLevel)
	logger = common.InitLogger(config)

	if cmd == runCmd {
		common.InstallCrashHandler(config.Logging.Dir)
		if !noBanner {
			common.PrintBanner(common.GetVersion())
		}
	}

	logger.Debug().
		Strs("config_files", configFiles).
		Str("log_level", config.Logging.Level).
		Strs("log_output", config.Logging.Output).
		Str("badger_path", config.Storage.Badger.Path).
		Msg("Configuration loaded")

	return nil
}
