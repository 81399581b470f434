package common

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaultConfig(t *testing.T) {
	config := NewDefaultConfig()

	assert.Equal(t, int64(1024*1024), config.Assembler.BinaryThresholdBytes)
	assert.Equal(t, 500000, config.Assembler.TextBudgetChars)
	assert.Equal(t, 50000, config.Assembler.ShortenedTextBudgetChars)
	assert.Equal(t, LLMProviderGemini, config.LLM.Provider)
	assert.Equal(t, "augment", config.Prompt.ComparativeMode)
	assert.NoError(t, config.Validate())
}

func TestLoadFromFiles_LaterFileWins(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "base.toml")
	override := filepath.Join(dir, "override.toml")

	require.NoError(t, os.WriteFile(base, []byte(`
[storage]
root = "base-downloads"

[results]
dir = "base-results"
`), 0644))
	require.NoError(t, os.WriteFile(override, []byte(`
[results]
dir = "override-results"

[llm]
provider = "claude"
`), 0644))

	config, err := LoadFromFiles(base, override)
	require.NoError(t, err)

	assert.Equal(t, "base-downloads", config.Storage.Root)
	assert.Equal(t, "override-results", config.Results.Dir)
	assert.Equal(t, LLMProviderClaude, config.LLM.Provider)
}

func TestLoadFromFiles_MissingFile(t *testing.T) {
	_, err := LoadFromFiles(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("LOCAL_STORAGE_PATH", "/legacy/downloads")
	t.Setenv("EARNINGS_RESULTS_DIR", "/new/results")
	t.Setenv("RESULTS_DIR", "/legacy/results")
	t.Setenv("EARNINGS_LLM_PROVIDER", "CLAUDE")
	t.Setenv("EARNINGS_SCHEDULE_TICKERS", "msft, amzn ,")

	config := NewDefaultConfig()
	applyEnvOverrides(config)

	assert.Equal(t, "/legacy/downloads", config.Storage.Root)
	assert.Equal(t, "/new/results", config.Results.Dir)
	assert.Equal(t, LLMProviderClaude, config.LLM.Provider)
	assert.Equal(t, []string{"msft", "amzn"}, config.Schedule.Tickers)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{name: "defaults", mutate: func(c *Config) {}},
		{name: "unknown provider", mutate: func(c *Config) { c.LLM.Provider = "openai" }, wantErr: true},
		{name: "zero threshold", mutate: func(c *Config) { c.Assembler.BinaryThresholdBytes = 0 }, wantErr: true},
		{name: "shortened budget above full budget", mutate: func(c *Config) { c.Assembler.ShortenedTextBudgetChars = 600000 }, wantErr: true},
		{name: "rate limit max wait below wait", mutate: func(c *Config) { c.LLM.RateLimitMaxWait = time.Second }, wantErr: true},
		{name: "bad comparative mode", mutate: func(c *Config) { c.Prompt.ComparativeMode = "merge" }, wantErr: true},
		{name: "bad cron", mutate: func(c *Config) { c.Schedule.Enabled = true; c.Schedule.Cron = "not a cron" }, wantErr: true},
		{name: "schedule without cron", mutate: func(c *Config) { c.Schedule.Enabled = true; c.Schedule.Cron = "" }, wantErr: true},
		{name: "valid schedule", mutate: func(c *Config) { c.Schedule.Enabled = true; c.Schedule.Cron = "0 30 6 * * 1-5" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := NewDefaultConfig()
			tt.mutate(config)
			err := config.Validate()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}
