package app

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/earnings/internal/common"
	"github.com/ternarybob/earnings/internal/models"
)

func testConfig(t *testing.T) *common.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := common.NewDefaultConfig()
	cfg.Env.Files = nil
	cfg.Calendar.Path = filepath.Join(dir, "company_config.json")
	cfg.Prompt.Path = filepath.Join(dir, "prompt_config.txt")
	cfg.Storage.Root = filepath.Join(dir, "downloads")
	cfg.Storage.Badger.Path = filepath.Join(dir, "history")
	cfg.Results.Dir = filepath.Join(dir, "results")
	cfg.Email.ConfigPath = filepath.Join(dir, "email_config.json")
	return cfg
}

func TestNewWiresPipeline(t *testing.T) {
	a, err := New(testConfig(t), arbor.NewLogger())
	require.NoError(t, err)
	defer a.Close()

	assert.NotNil(t, a.Orchestrator)
	assert.NotNil(t, a.SchedulerService)
	assert.NotNil(t, a.RunStorage)
	require.NotNil(t, a.MailService)
	assert.False(t, a.MailService.IsConfigured())

	companies, err := a.Calendar.Companies()
	require.NoError(t, err)
	assert.Empty(t, companies)
}

func TestUnknownTickerIsRecorded(t *testing.T) {
	a, err := New(testConfig(t), arbor.NewLogger())
	require.NoError(t, err)
	defer a.Close()

	result := a.Orchestrator.Analyze(context.Background(), "nope", a.RunOptions(""))
	assert.False(t, result.Succeeded())
	assert.Equal(t, models.KindNotFound, result.ErrorKind)

	runs, err := a.RunStorage.ListRuns(context.Background(), "NOPE", 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, models.RunStatusFailed, runs[0].Status)
}

func TestHistoryDisabled(t *testing.T) {
	cfg := testConfig(t)
	cfg.Storage.Badger.Enabled = false

	a, err := New(cfg, arbor.NewLogger())
	require.NoError(t, err)
	defer a.Close()

	assert.Nil(t, a.RunStorage)
}
