package common

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	cfg := NewDefaultConfig()
	cfg.Edgar.UserAgent = "Acme Research ops@acme.test"
	return cfg
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		field  string
	}{
		{"missing user agent", func(c *Config) { c.Edgar.UserAgent = "  " }, "edgar.user_agent"},
		{"thresholds inverted", func(c *Config) { c.Rules.SellScore = 0.6 }, "rules.sell_score"},
		{"bad interval", func(c *Config) { c.Pipeline.Interval = "soon" }, "pipeline.interval"},
		{"negative timeout", func(c *Config) { c.Agentic.Timeout = "-1s" }, "agentic.timeout"},
		{"unknown provider", func(c *Config) { c.Sentiment.Provider = "mystery" }, "sentiment.provider"},
		{"no forms", func(c *Config) { c.Edgar.Forms = nil }, "Forms"},
		{"log level", func(c *Config) { c.Logging.Level = "loud" }, "Level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrConfiguration)

			var cfgErr *ConfigurationError
			require.ErrorAs(t, err, &cfgErr)
			assert.Contains(t, cfgErr.Field, tt.field)
		})
	}
}

func TestValidateDoesNotRequireKeys(t *testing.T) {
	cfg := validConfig()
	assert.NoError(t, cfg.Validate())

	err := cfg.RequireProvider("agentic.provider", LLMProviderClaude)
	assert.ErrorIs(t, err, ErrConfiguration)
	assert.Contains(t, err.Error(), "agentic.provider")

	cfg.LLM.Claude.APIKey = "sk-test"
	assert.NoError(t, cfg.RequireProvider("agentic.provider", LLMProviderClaude))
}

func TestLoadFromFilesLayering(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "base.toml")
	override := filepath.Join(dir, "override.yaml")

	require.NoError(t, os.WriteFile(base, []byte(`
[edgar]
user_agent = "Base ops@base.test"
forms = ["8-K"]

[rules]
buy_score = 0.6
`), 0644))
	require.NoError(t, os.WriteFile(override, []byte(`
rules:
  sell_score: -0.7
pipeline:
  interval: 5m
`), 0644))

	t.Setenv("SECSIGNAL_EDGAR_USER_AGENT", "Env ops@env.test")
	t.Setenv("SECSIGNAL_OPENROUTER_API_KEY", "")
	t.Setenv("OPENROUTER_API_KEY", "or-key")

	cfg, err := LoadFromFiles(base, override)
	require.NoError(t, err)

	assert.Equal(t, "Env ops@env.test", cfg.Edgar.UserAgent)
	assert.Equal(t, []string{"8-K"}, cfg.Edgar.Forms)
	assert.Equal(t, 0.6, cfg.Rules.BuyScore)
	assert.Equal(t, -0.7, cfg.Rules.SellScore)
	assert.Equal(t, "5m", cfg.Pipeline.Interval)
	assert.Equal(t, "or-key", cfg.LLM.OpenRouter.APIKey)
	assert.NoError(t, cfg.Validate())

	ApplyFlagOverrides(cfg, "debug")
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadFromFilesErrors(t *testing.T) {
	_, err := LoadFromFiles(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.toml")
	require.NoError(t, os.WriteFile(bad, []byte("[edgar\n"), 0644))
	_, err = LoadFromFiles(bad)
	assert.Error(t, err)
}

func TestParseDuration(t *testing.T) {
	d, err := ParseDuration(" 90s ")
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, d)

	_, err = ParseDuration("0s")
	assert.Error(t, err)

	assert.Equal(t, time.Minute, MustDuration("", time.Minute))
	assert.Equal(t, 2*time.Second, MustDuration("2s", time.Minute))
}
