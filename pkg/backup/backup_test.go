package backup

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reelsweep/pkg/models"
)

func TestSaveAndLoad(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(dir, nil)
	require.NoError(t, err)

	reels := []models.Reel{
		{ID: "Abc1", Link: "https://www.instagram.com/reel/Abc1/", Username: "@alice"},
		{ID: "Def2", Link: "https://www.instagram.com/reel/Def2/", Username: "@alice"},
	}
	path, err := w.Save("@alice", reels)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(filepath.Base(path), "reel_links_backup_"))

	snap, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "@alice", snap.Source)
	require.Len(t, snap.Reels, 2)
	assert.Equal(t, "Abc1", snap.Reels[0].ID)
	assert.False(t, snap.CreatedAt.IsZero())
}

func TestSaveLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(dir, nil)
	require.NoError(t, err)

	_, err = w.Save("@alice", []models.Reel{{ID: "Abc1"}})
	require.NoError(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, strings.HasSuffix(entries[0].Name(), ".json"))
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	assert.Error(t, err)
}

func TestLoadCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLatest(t *testing.T) {
	dir := t.TempDir()

	assert.Empty(t, Latest(dir))

	older := filepath.Join(dir, "reel_links_backup_20250101_090000.json")
	newer := filepath.Join(dir, "reel_links_backup_20250601_090000.json")
	unrelated := filepath.Join(dir, "notes.json")
	for _, p := range []string{older, newer, unrelated} {
		require.NoError(t, os.WriteFile(p, []byte("{}"), 0644))
	}

	assert.Equal(t, newer, Latest(dir))
}
