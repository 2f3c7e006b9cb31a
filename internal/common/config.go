package common

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Environment string          `toml:"environment" yaml:"environment"` // "development" or "production"
	Edgar       EdgarConfig     `toml:"edgar" yaml:"edgar"`
	Storage     StorageConfig   `toml:"storage" yaml:"storage"`
	Logging     LoggingConfig   `toml:"logging" yaml:"logging"`
	Pipeline    PipelineConfig  `toml:"pipeline" yaml:"pipeline"`
	Sentiment   SentimentConfig `toml:"sentiment" yaml:"sentiment"`
	Agentic     AgenticConfig   `toml:"agentic" yaml:"agentic"`
	Rules       RulesConfig     `toml:"rules" yaml:"rules"`
	LLM         LLMConfig       `toml:"llm" yaml:"llm"`
}

// EdgarConfig contains SEC EDGAR feed and document client settings
type EdgarConfig struct {
	UserAgent         string   `toml:"user_agent" yaml:"user_agent"`        // Contact identifier sent on every request (required by SEC)
	BaseURL           string   `toml:"base_url" yaml:"base_url"`            // Archive host, e.g. https://www.sec.gov
	FeedURL           string   `toml:"feed_url" yaml:"feed_url"`            // Current filings endpoint
	Forms             []string `toml:"forms" yaml:"forms" validate:"min=1"` // Form types to poll
	FeedCount         int      `toml:"feed_count" yaml:"feed_count" validate:"gte=1,lte=100"`
	RequestsPerSecond int      `toml:"requests_per_second" yaml:"requests_per_second" validate:"gte=1,lte=10"`
	MinRequestGap     string   `toml:"min_request_gap" yaml:"min_request_gap"` // e.g. "100ms"
	RequestTimeout    string   `toml:"request_timeout" yaml:"request_timeout"` // e.g. "30s"
	FeedMaxAttempts   int      `toml:"feed_max_attempts" yaml:"feed_max_attempts" validate:"gte=1,lte=10"`
}

type StorageConfig struct {
	Badger BadgerConfig `toml:"badger" yaml:"badger"`
}

// BadgerConfig represents BadgerDB-specific configuration
type BadgerConfig struct {
	Path           string `toml:"path" yaml:"path" validate:"required"` // Database directory path
	ResetOnStartup bool   `toml:"reset_on_startup" yaml:"reset_on_startup"`
}

type LoggingConfig struct {
	Level      string   `toml:"level" yaml:"level" validate:"oneof=debug info warn error"`
	Output     []string `toml:"output" yaml:"output"`           // "stdout", "file"
	TimeFormat string   `toml:"time_format" yaml:"time_format"` // default "15:04:05.000"
	Dir        string   `toml:"dir" yaml:"dir"`                 // log directory; empty = <exe dir>/logs
}

// PipelineConfig controls the orchestrator
type PipelineConfig struct {
	Interval string   `toml:"interval" yaml:"interval"` // continuous mode interval, e.g. "10m"
	Stages   []string `toml:"stages" yaml:"stages"`     // default stage selection; empty = all
}

// SentimentConfig configures the sentiment scoring stage
type SentimentConfig struct {
	Provider    LLMProvider `toml:"provider" yaml:"provider"`
	Model       string      `toml:"model" yaml:"model" validate:"required"`
	MaxChars    int         `toml:"max_chars" yaml:"max_chars" validate:"gte=1000"`
	MaxAttempts int         `toml:"max_attempts" yaml:"max_attempts" validate:"gte=1"`
	Workers     int         `toml:"workers" yaml:"workers" validate:"gte=1,lte=16"`
	Temperature float32     `toml:"temperature" yaml:"temperature" validate:"gte=0,lte=2"`
	Timeout     string      `toml:"timeout" yaml:"timeout"`
}

// AgenticConfig configures the LLM decision stage
type AgenticConfig struct {
	Provider     LLMProvider `toml:"provider" yaml:"provider"`
	Model        string      `toml:"model" yaml:"model" validate:"required"`
	ContextChars int         `toml:"context_chars" yaml:"context_chars" validate:"gte=0"`
	MaxAttempts  int         `toml:"max_attempts" yaml:"max_attempts" validate:"gte=1"`
	Temperature  float32     `toml:"temperature" yaml:"temperature" validate:"gte=0,lte=2"`
	Timeout      string      `toml:"timeout" yaml:"timeout"`
}

// RulesConfig holds the rule-based decision thresholds
type RulesConfig struct {
	BuyScore  float64 `toml:"buy_score" yaml:"buy_score" validate:"gte=-1,lte=1"`
	SellScore float64 `toml:"sell_score" yaml:"sell_score" validate:"gte=-1,lte=1"`
}

// LLMProvider represents the AI provider type
type LLMProvider string

const (
	// LLMProviderOpenRouter uses the OpenRouter OpenAI-compatible API
	LLMProviderOpenRouter LLMProvider = "openrouter"
	// LLMProviderDeepSeek uses the DeepSeek API
	LLMProviderDeepSeek LLMProvider = "deepseek"
	// LLMProviderClaude uses Anthropic Claude API
	LLMProviderClaude LLMProvider = "claude"
	// LLMProviderGemini uses Google Gemini API
	LLMProviderGemini LLMProvider = "gemini"
)

// LLMConfig holds per-provider credentials
type LLMConfig struct {
	OpenRouter ProviderConfig `toml:"openrouter" yaml:"openrouter"`
	DeepSeek   ProviderConfig `toml:"deepseek" yaml:"deepseek"`
	Claude     ProviderConfig `toml:"claude" yaml:"claude"`
	Gemini     ProviderConfig `toml:"gemini" yaml:"gemini"`
}

// ProviderConfig contains the credentials and endpoint for one provider
type ProviderConfig struct {
	APIKey    string `toml:"api_key" yaml:"api_key"`
	BaseURL   string `toml:"base_url" yaml:"base_url"`
	MaxTokens int    `toml:"max_tokens" yaml:"max_tokens"`
}

// NewDefaultConfig creates a configuration with default values
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Edgar: EdgarConfig{
			BaseURL:           "https://www.sec.gov",
			FeedURL:           "https://www.sec.gov/cgi-bin/browse-edgar",
			Forms:             []string{"10-K", "10-Q", "8-K", "6-K"},
			FeedCount:         100,
			RequestsPerSecond: 10, // SEC fair access limit
			MinRequestGap:     "100ms",
			RequestTimeout:    "30s",
			FeedMaxAttempts:   3,
		},
		Storage: StorageConfig{
			Badger: BadgerConfig{
				Path: "./data",
			},
		},
		Logging: LoggingConfig{
			Level:      "info",
			Output:     []string{"stdout", "file"},
			TimeFormat: "15:04:05.000",
		},
		Pipeline: PipelineConfig{
			Interval: "10m",
		},
		Sentiment: SentimentConfig{
			Provider:    LLMProviderOpenRouter,
			Model:       "meta-llama/llama-3.3-70b-instruct:free",
			MaxChars:    20000,
			MaxAttempts: 3,
			Workers:     1,
			Temperature: 0.1,
			Timeout:     "2m",
		},
		Agentic: AgenticConfig{
			Provider:     LLMProviderOpenRouter,
			Model:        "meta-llama/llama-3.3-70b-instruct:free",
			ContextChars: 4000,
			MaxAttempts:  3,
			Temperature:  0.2,
			Timeout:      "2m",
		},
		Rules: RulesConfig{
			BuyScore:  0.5,
			SellScore: -0.5,
		},
		LLM: LLMConfig{
			OpenRouter: ProviderConfig{BaseURL: "https://openrouter.ai/api/v1", MaxTokens: 1024},
			DeepSeek:   ProviderConfig{BaseURL: "https://api.deepseek.com/v1", MaxTokens: 1024},
			Claude:     ProviderConfig{MaxTokens: 1024},
			Gemini:     ProviderConfig{MaxTokens: 1024},
		},
	}
}

// LoadFromFiles loads configuration from multiple files with priority:
// defaults -> file1 -> file2 -> ... -> .env -> environment.
// Files ending in .yaml or .yml are decoded as YAML, everything else as TOML.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		switch strings.ToLower(filepath.Ext(path)) {
		case ".yaml", ".yml":
			err = yaml.Unmarshal(data, config)
		default:
			err = toml.Unmarshal(data, config)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	// .env is optional; existing environment variables win
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	applyEnvOverrides(config)

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("SECSIGNAL_ENV"); env != "" {
		config.Environment = env
	}

	// EDGAR
	if ua := os.Getenv("SECSIGNAL_EDGAR_USER_AGENT"); ua != "" {
		config.Edgar.UserAgent = ua
	}
	if rps := os.Getenv("SECSIGNAL_EDGAR_REQUESTS_PER_SECOND"); rps != "" {
		if v, err := strconv.Atoi(rps); err == nil {
			config.Edgar.RequestsPerSecond = v
		}
	}
	if forms := os.Getenv("SECSIGNAL_EDGAR_FORMS"); forms != "" {
		config.Edgar.Forms = splitList(forms)
	}

	// Storage
	if path := os.Getenv("SECSIGNAL_BADGER_PATH"); path != "" {
		config.Storage.Badger.Path = path
	}

	// Logging
	if level := os.Getenv("SECSIGNAL_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if output := os.Getenv("SECSIGNAL_LOG_OUTPUT"); output != "" {
		config.Logging.Output = splitList(output)
	}

	// Pipeline
	if interval := os.Getenv("SECSIGNAL_PIPELINE_INTERVAL"); interval != "" {
		config.Pipeline.Interval = interval
	}

	// Stages
	if provider := os.Getenv("SECSIGNAL_SENTIMENT_PROVIDER"); provider != "" {
		config.Sentiment.Provider = LLMProvider(provider)
	}
	if model := os.Getenv("SECSIGNAL_SENTIMENT_MODEL"); model != "" {
		config.Sentiment.Model = model
	}
	if provider := os.Getenv("SECSIGNAL_AGENTIC_PROVIDER"); provider != "" {
		config.Agentic.Provider = LLMProvider(provider)
	}
	if model := os.Getenv("SECSIGNAL_AGENTIC_MODEL"); model != "" {
		config.Agentic.Model = model
	}

	// API keys: SECSIGNAL_ prefix takes priority over the provider's conventional variable
	config.LLM.OpenRouter.APIKey = firstEnv(config.LLM.OpenRouter.APIKey, "SECSIGNAL_OPENROUTER_API_KEY", "OPENROUTER_API_KEY")
	config.LLM.DeepSeek.APIKey = firstEnv(config.LLM.DeepSeek.APIKey, "SECSIGNAL_DEEPSEEK_API_KEY", "DEEPSEEK_API_KEY")
	config.LLM.Claude.APIKey = firstEnv(config.LLM.Claude.APIKey, "SECSIGNAL_CLAUDE_API_KEY", "ANTHROPIC_API_KEY")
	config.LLM.Gemini.APIKey = firstEnv(config.LLM.Gemini.APIKey, "SECSIGNAL_GEMINI_API_KEY", "GEMINI_API_KEY", "GOOGLE_API_KEY")
}

// ApplyFlagOverrides applies command-line flag overrides to config (highest priority)
func ApplyFlagOverrides(config *Config, logLevel string) {
	if logLevel != "" {
		config.Logging.Level = logLevel
	}
}

// Validate checks the configuration before any external call is made.
// Provider API keys are checked per stage with RequireProvider.
// Every failure is returned as a *ConfigurationError.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Edgar.UserAgent) == "" {
		return &ConfigurationError{
			Field:  "edgar.user_agent",
			Reason: "contact identifier is required (e.g. \"Company Name admin@example.com\")",
		}
	}

	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return &ConfigurationError{Field: verrs[0].Namespace(), Reason: fmt.Sprintf("failed %q check", verrs[0].Tag())}
		}
		return &ConfigurationError{Field: "config", Reason: err.Error()}
	}

	if c.Rules.SellScore >= c.Rules.BuyScore {
		return &ConfigurationError{Field: "rules.sell_score", Reason: "must be lower than rules.buy_score"}
	}

	for _, d := range []struct{ field, value string }{
		{"edgar.min_request_gap", c.Edgar.MinRequestGap},
		{"edgar.request_timeout", c.Edgar.RequestTimeout},
		{"pipeline.interval", c.Pipeline.Interval},
		{"sentiment.timeout", c.Sentiment.Timeout},
		{"agentic.timeout", c.Agentic.Timeout},
	} {
		if _, err := ParseDuration(d.value); err != nil {
			return &ConfigurationError{Field: d.field, Reason: err.Error()}
		}
	}

	for _, p := range []struct {
		field    string
		provider LLMProvider
	}{
		{"sentiment.provider", c.Sentiment.Provider},
		{"agentic.provider", c.Agentic.Provider},
	} {
		if !p.provider.Valid() {
			return &ConfigurationError{Field: p.field, Reason: fmt.Sprintf("unknown provider %q (expected openrouter, deepseek, claude or gemini)", p.provider)}
		}
	}

	return nil
}

// Valid reports whether p names a supported provider
func (p LLMProvider) Valid() bool {
	switch p {
	case LLMProviderOpenRouter, LLMProviderDeepSeek, LLMProviderClaude, LLMProviderGemini:
		return true
	}
	return false
}

// RequireProvider checks that the provider used by field has an API key.
// Only stages that call a model need this, so it is not part of Validate.
func (c *Config) RequireProvider(field string, provider LLMProvider) error {
	if _, err := c.ProviderSettings(provider); err != nil {
		return &ConfigurationError{Field: field, Reason: err.Error()}
	}
	return nil
}

// ProviderSettings returns the credentials for a provider, failing when the API key is missing.
func (c *Config) ProviderSettings(provider LLMProvider) (ProviderConfig, error) {
	var pc ProviderConfig
	switch provider {
	case LLMProviderOpenRouter:
		pc = c.LLM.OpenRouter
	case LLMProviderDeepSeek:
		pc = c.LLM.DeepSeek
	case LLMProviderClaude:
		pc = c.LLM.Claude
	case LLMProviderGemini:
		pc = c.LLM.Gemini
	default:
		return pc, fmt.Errorf("unknown provider %q (expected openrouter, deepseek, claude or gemini)", provider)
	}
	if strings.TrimSpace(pc.APIKey) == "" {
		return pc, fmt.Errorf("API key for provider %q is not set", provider)
	}
	return pc, nil
}

// ParseDuration parses a positive duration string such as "10m".
func ParseDuration(value string) (time.Duration, error) {
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", value, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("duration %q must be positive", value)
	}
	return d, nil
}

// MustDuration parses value and falls back to def when it is empty or invalid.
func MustDuration(value string, def time.Duration) time.Duration {
	d, err := ParseDuration(value)
	if err != nil {
		return def
	}
	return d
}

func firstEnv(current string, names ...string) string {
	for _, name := range names {
		if v := os.Getenv(name); v != "" {
			return v
		}
	}
	return current
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
