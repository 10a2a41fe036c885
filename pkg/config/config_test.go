package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 55, cfg.Ledger.CallsPerMinute)
	assert.Equal(t, 3, cfg.Ledger.MaxRetries)
	assert.Equal(t, 15, cfg.Collector.MaxScrolls)
	assert.Equal(t, 25, cfg.Collector.BatchSize)
	assert.Equal(t, 4, cfg.Workers.MaxValidation)
	assert.Equal(t, 3, cfg.Workers.MaxDownload)
	assert.Equal(t, 2, cfg.Workers.MaxUpload)
	assert.Equal(t, 5, cfg.Workers.MaxDescription)
	assert.Equal(t, 6, cfg.Workers.MaxDateCheck)
	assert.Equal(t, 30*time.Second, cfg.Enrich.FetchTimeout)
	assert.True(t, cfg.Workers.EnableParallel)
	assert.False(t, cfg.Media.UploadEnabled)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
targets:
  urls:
    - https://www.instagram.com/someuser/reels/
  target_links: 40
ledger:
  sheet_id: abc123
  calls_per_minute: 30
collector:
  batch_size: 10
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg := DefaultConfig()
	require.NoError(t, cfg.LoadFromFile(path))

	assert.Equal(t, []string{"https://www.instagram.com/someuser/reels/"}, cfg.Targets.URLs)
	assert.Equal(t, 40, cfg.Targets.TargetLinks)
	assert.Equal(t, "abc123", cfg.Ledger.SheetID)
	assert.Equal(t, 30, cfg.Ledger.CallsPerMinute)
	assert.Equal(t, 10, cfg.Collector.BatchSize)
	// untouched defaults survive the merge
	assert.Equal(t, 15, cfg.Collector.MaxScrolls)
}

func TestLoadFromFileMissing(t *testing.T) {
	cfg := DefaultConfig()
	err := cfg.LoadFromFile(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("REELSWEEP_SHEET_ID", "env-sheet")
	t.Setenv("REELSWEEP_TARGET_URLS", "https://www.instagram.com/a/, https://www.instagram.com/b/")
	t.Setenv("REELSWEEP_TARGET_LINKS", "12")
	t.Setenv("REELSWEEP_UPLOAD_ENABLED", "TRUE")

	cfg := DefaultConfig()
	require.NoError(t, cfg.LoadFromEnv())

	assert.Equal(t, "env-sheet", cfg.Ledger.SheetID)
	assert.Equal(t, []string{"https://www.instagram.com/a/", "https://www.instagram.com/b/"}, cfg.Targets.URLs)
	assert.Equal(t, 12, cfg.Targets.TargetLinks)
	assert.True(t, cfg.Media.UploadEnabled)
}

func TestValidate(t *testing.T) {
	dir := t.TempDir()
	creds := filepath.Join(dir, "credentials.json")
	require.NoError(t, os.WriteFile(creds, []byte("{}"), 0600))

	valid := DefaultConfig()
	valid.Targets.URLs = []string{"https://www.instagram.com/someuser/reels/"}
	valid.Ledger.SheetID = "abc"
	valid.Ledger.CredentialsFile = creds
	valid.Media.CredentialsFile = creds
	assert.NoError(t, valid.Validate())

	noTargets := DefaultConfig()
	noTargets.Ledger.SheetID = "abc"
	noTargets.Ledger.CredentialsFile = creds
	assert.Error(t, noTargets.Validate())
	assert.NoError(t, noTargets.ValidateProcessing(), "processing commands need no targets")

	noSheet := DefaultConfig()
	noSheet.Targets.URLs = []string{"https://www.instagram.com/someuser/"}
	noSheet.Ledger.CredentialsFile = creds
	assert.Error(t, noSheet.Validate())

	badURL := DefaultConfig()
	badURL.Targets.URLs = []string{"https://example.com/feed"}
	badURL.Ledger.SheetID = "abc"
	badURL.Ledger.CredentialsFile = creds
	assert.Error(t, badURL.Validate())

	missingCreds := DefaultConfig()
	missingCreds.Targets.URLs = []string{"https://www.instagram.com/someuser/"}
	missingCreds.Ledger.SheetID = "abc"
	missingCreds.Ledger.CredentialsFile = filepath.Join(dir, "absent.json")
	assert.Error(t, missingCreds.Validate())
}

func TestSaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out", "config.yaml")

	cfg := DefaultConfig()
	cfg.Ledger.SheetID = "saved-sheet"
	require.NoError(t, cfg.Save(path))

	loaded := DefaultConfig()
	require.NoError(t, loaded.LoadFromFile(path))
	assert.Equal(t, "saved-sheet", loaded.Ledger.SheetID)
}
