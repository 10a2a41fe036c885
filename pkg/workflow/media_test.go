package workflow

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reelsweep/pkg/models"
	"reelsweep/pkg/storage"
)

type fakeMediaLedger struct {
	statuses map[int]models.Status
	remote   map[int][2]string
}

func newFakeMediaLedger() *fakeMediaLedger {
	return &fakeMediaLedger{
		statuses: make(map[int]models.Status),
		remote:   make(map[int][2]string),
	}
}

func (l *fakeMediaLedger) UpdateStatus(_ context.Context, row int, status models.Status) error {
	l.statuses[row] = status
	return nil
}

func (l *fakeMediaLedger) UpdateRemoteInfo(_ context.Context, row int, date, fileID string) error {
	l.remote[row] = [2]string{date, fileID}
	return nil
}

type fakeDownloader struct {
	failFor map[string]bool
	calls   int
}

func (d *fakeDownloader) Download(_ context.Context, url, outputPath string) error {
	d.calls++
	if d.failFor[url] {
		return errors.New("video unavailable")
	}
	return os.WriteFile(outputPath, []byte("video"), 0644)
}

type fakeUploader struct {
	failFor map[string]bool
	ids     []string
	calls   int
}

func (u *fakeUploader) Upload(_ context.Context, localPath, name string) (string, error) {
	u.calls++
	if u.failFor[name] {
		return "", errors.New("ssl handshake failure")
	}
	id := "remote-" + name
	u.ids = append(u.ids, id)
	return id, nil
}

func newMediaStage(t *testing.T, dl *fakeDownloader, up *fakeUploader, led *fakeMediaLedger, deleteLocal bool) (*MediaStage, *storage.Manager) {
	t.Helper()
	store, err := storage.NewManager(filepath.Join(t.TempDir(), "media"), nil)
	require.NoError(t, err)
	stage := NewMediaStage(MediaOptions{
		Ledger:      led,
		Downloader:  dl,
		Uploader:    up,
		Store:       store,
		DeleteLocal: deleteLocal,
	})
	stage.now = func() time.Time {
		return time.Date(2025, time.June, 29, 12, 0, 0, 0, time.UTC)
	}
	return stage, store
}

func TestMediaStageHappyPath(t *testing.T) {
	led := newFakeMediaLedger()
	dl := &fakeDownloader{}
	up := &fakeUploader{}
	stage, store := newMediaStage(t, dl, up, led, true)

	stats, err := stage.Run(context.Background(), []models.Reel{
		{Row: 2, ID: "Abc1", Link: "https://x/a/"},
		{Row: 3, ID: "Def2", Link: "https://x/b/"},
	})
	require.NoError(t, err)

	assert.Equal(t, 2, stats.Downloaded)
	assert.Equal(t, 2, stats.Uploaded)
	assert.Equal(t, models.StatusProcessing, led.statuses[2])
	assert.Equal(t, models.StatusProcessing, led.statuses[3])
	assert.Equal(t, "29-JUN-25", led.remote[2][0])
	assert.NotEmpty(t, led.remote[2][1])

	entries, err := os.ReadDir(store.Dir())
	require.NoError(t, err)
	assert.Empty(t, entries, "local files are cleaned up after upload")
}

func TestMediaStageDownloadFailureMarksFailed(t *testing.T) {
	led := newFakeMediaLedger()
	dl := &fakeDownloader{failFor: map[string]bool{"https://x/bad/": true}}
	up := &fakeUploader{}
	stage, _ := newMediaStage(t, dl, up, led, true)

	stats, err := stage.Run(context.Background(), []models.Reel{
		{Row: 2, ID: "Bad1", Link: "https://x/bad/"},
		{Row: 3, ID: "Ok2", Link: "https://x/ok/"},
	})
	require.NoError(t, err)

	assert.Equal(t, 1, stats.DownloadFailed)
	assert.Equal(t, 1, stats.Uploaded)
	assert.Equal(t, models.StatusFailed, led.statuses[2])
	assert.Equal(t, models.StatusProcessing, led.statuses[3])
	assert.Equal(t, 1, up.calls, "failed downloads never reach the uploader")
}

type failAllUploader struct{}

func (failAllUploader) Upload(_ context.Context, _, _ string) (string, error) {
	return "", errors.New("connection reset by peer")
}

func TestMediaStageUploadFailureLeavesPending(t *testing.T) {
	led := newFakeMediaLedger()
	stage, _ := newMediaStage(t, &fakeDownloader{}, &fakeUploader{}, led, true)
	stage.up = failAllUploader{}

	stats, err := stage.Run(context.Background(), []models.Reel{
		{Row: 2, ID: "Abc1", Link: "https://x/a/"},
	})
	require.NoError(t, err)

	assert.Equal(t, 1, stats.UploadFailed)
	_, touched := led.statuses[2]
	assert.False(t, touched, "upload failure must not change the row status")
	assert.Empty(t, led.remote)
}

func TestMediaStageKeepsLocalWhenConfigured(t *testing.T) {
	led := newFakeMediaLedger()
	stage, store := newMediaStage(t, &fakeDownloader{}, &fakeUploader{}, led, false)

	_, err := stage.Run(context.Background(), []models.Reel{
		{Row: 2, ID: "Abc1", Link: "https://x/a/"},
	})
	require.NoError(t, err)

	entries, err := os.ReadDir(store.Dir())
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestMediaStageSequentialOrder(t *testing.T) {
	led := newFakeMediaLedger()
	dl := &fakeDownloader{}
	up := &fakeUploader{}
	stage, _ := newMediaStage(t, dl, up, led, true)

	_, err := stage.Run(context.Background(), []models.Reel{
		{Row: 2, ID: "Aaa", Link: "https://x/a/"},
		{Row: 3, ID: "Bbb", Link: "https://x/b/"},
		{Row: 4, ID: "Ccc", Link: "https://x/c/"},
	})
	require.NoError(t, err)

	require.Len(t, up.ids, 3)
	assert.Contains(t, up.ids[0], "Aaa")
	assert.Contains(t, up.ids[1], "Bbb")
	assert.Contains(t, up.ids[2], "Ccc")
}

func TestMediaStageStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	led := newFakeMediaLedger()
	stage, _ := newMediaStage(t, &fakeDownloader{}, &fakeUploader{}, led, true)

	_, err := stage.Run(ctx, []models.Reel{{Row: 2, ID: "Abc1", Link: "https://x/a/"}})
	assert.ErrorIs(t, err, context.Canceled)
}
