package workflow

import (
	"context"
	"path/filepath"
	"time"

	"reelsweep/pkg/logger"
	"reelsweep/pkg/models"
	"reelsweep/pkg/storage"
)

// Downloader fetches a reel's media to a local path.
type Downloader interface {
	Download(ctx context.Context, url, outputPath string) error
}

// Uploader pushes a local file to remote storage and returns its ID.
type Uploader interface {
	Upload(ctx context.Context, localPath, name string) (string, error)
}

// MediaLedger is the slice of the ledger the media stage writes.
type MediaLedger interface {
	UpdateStatus(ctx context.Context, row int, status models.Status) error
	UpdateRemoteInfo(ctx context.Context, row int, postedDate, fileID string) error
}

// MediaStage downloads each pending reel and uploads it to remote
// storage. The stage runs strictly sequentially: parallel media
// transfers multiply bandwidth contention and rate-limit pressure for
// no wall-clock gain.
type MediaStage struct {
	ledger      MediaLedger
	dl          Downloader
	up          Uploader
	store       *storage.Manager
	deleteLocal bool
	log         logger.Logger
	now         func() time.Time
}

// MediaOptions configures a MediaStage.
type MediaOptions struct {
	Ledger      MediaLedger
	Downloader  Downloader
	Uploader    Uploader
	Store       *storage.Manager
	DeleteLocal bool
	Logger      logger.Logger
}

// NewMediaStage wires a MediaStage.
func NewMediaStage(opts MediaOptions) *MediaStage {
	if opts.Logger == nil {
		opts.Logger = logger.NewNop()
	}
	return &MediaStage{
		ledger:      opts.Ledger,
		dl:          opts.Downloader,
		up:          opts.Uploader,
		store:       opts.Store,
		deleteLocal: opts.DeleteLocal,
		log:         opts.Logger,
		now:         time.Now,
	}
}

// MediaStats summarizes one media pass.
type MediaStats struct {
	Downloaded     int
	Uploaded       int
	DownloadFailed int
	UploadFailed   int
}

// Run processes reels one at a time. A failed download marks the row
// failed; a failed upload leaves the row pending so the next run
// picks it up again. Only a completed upload moves a row forward.
func (m *MediaStage) Run(ctx context.Context, reels []models.Reel) (MediaStats, error) {
	var stats MediaStats

	for _, reel := range reels {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		log := m.log.WithField("reel", reel.ID)

		localPath := m.store.MediaPath(reel.ID)
		if err := m.dl.Download(ctx, reel.Link, localPath); err != nil {
			stats.DownloadFailed++
			log.WithError(err).Error("download failed")
			if updErr := m.ledger.UpdateStatus(ctx, reel.Row, models.StatusFailed); updErr != nil {
				log.WithError(updErr).Warn("could not mark row failed")
			}
			continue
		}
		stats.Downloaded++

		fileID, err := m.up.Upload(ctx, localPath, filepath.Base(localPath))
		if err != nil {
			// leave the row pending so a later run retries from scratch
			stats.UploadFailed++
			log.WithError(err).Error("upload failed, row stays pending")
			m.cleanup(localPath)
			continue
		}
		stats.Uploaded++

		if err := m.ledger.UpdateStatus(ctx, reel.Row, models.StatusProcessing); err != nil {
			log.WithError(err).Warn("could not advance row status")
		}
		if err := m.ledger.UpdateRemoteInfo(ctx, reel.Row, models.FormatDate(m.now()), fileID); err != nil {
			log.WithError(err).Warn("could not record remote file info")
		}
		m.cleanup(localPath)
	}

	m.log.WithFields(map[string]interface{}{
		"downloaded":      stats.Downloaded,
		"uploaded":        stats.Uploaded,
		"download_failed": stats.DownloadFailed,
		"upload_failed":   stats.UploadFailed,
	}).Info("media stage finished")
	return stats, nil
}

func (m *MediaStage) cleanup(path string) {
	if !m.deleteLocal {
		return
	}
	m.store.Remove(path)
}
