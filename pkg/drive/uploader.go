package drive

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"time"

	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"reelsweep/pkg/errors"
	"reelsweep/pkg/logger"
)

// uploadChunkSize is the resumable upload chunk size. Small chunks
// keep memory flat and let a flaky link resume close to where it
// broke.
const uploadChunkSize = 256 * 1024

// Uploader pushes local media files into a remote folder.
type Uploader struct {
	svc        *drive.Service
	folderID   string
	maxRetries int
	baseDelay  time.Duration
	log        logger.Logger

	// create is replaceable in tests.
	create func(ctx context.Context, name, localPath string) (string, error)
	sleep  func(time.Duration)
}

// Options configures an Uploader.
type Options struct {
	CredentialsFile string
	FolderID        string

	// MaxRetries bounds attempts for transient failures. Default 3.
	MaxRetries int

	// BaseDelay seeds the linear retry schedule. Default 5s.
	BaseDelay time.Duration

	Logger logger.Logger
}

// NewUploader builds an Uploader from service-account credentials.
func NewUploader(ctx context.Context, opts Options) (*Uploader, error) {
	svc, err := drive.NewService(ctx,
		option.WithCredentialsFile(opts.CredentialsFile),
		option.WithScopes(drive.DriveFileScope),
	)
	if err != nil {
		return nil, errors.Wrap(errors.ErrorTypeConfig, "failed to create drive service", err)
	}

	u := newUploader(opts)
	u.svc = svc
	u.create = u.createRemote
	return u, nil
}

func newUploader(opts Options) *Uploader {
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 3
	}
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = 5 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = logger.NewNop()
	}
	return &Uploader{
		folderID:   opts.FolderID,
		maxRetries: opts.MaxRetries,
		baseDelay:  opts.BaseDelay,
		log:        opts.Logger,
		sleep:      time.Sleep,
	}
}

func (u *Uploader) createRemote(ctx context.Context, name, localPath string) (string, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return "", errors.Wrap(errors.ErrorTypeValidation, "cannot open local file", err)
	}
	defer f.Close()

	meta := &drive.File{Name: name}
	if u.folderID != "" {
		meta.Parents = []string{u.folderID}
	}

	created, err := u.svc.Files.Create(meta).
		Media(f, googleapi.ChunkSize(uploadChunkSize)).
		Context(ctx).Do()
	if err != nil {
		return "", err
	}
	return created.Id, nil
}

// Upload sends localPath to the remote folder under name and returns
// the remote file ID. Transient transport failures are retried on a
// linear schedule; quota errors come back wrapped with guidance since
// retrying them within a run is pointless.
func (u *Uploader) Upload(ctx context.Context, localPath, name string) (string, error) {
	var lastErr error

	for attempt := 1; attempt <= u.maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		id, err := u.create(ctx, name, localPath)
		if err == nil {
			u.log.WithFields(map[string]interface{}{
				"file": name,
				"id":   id,
			}).Info("upload complete")
			return id, nil
		}
		lastErr = err

		if errors.IsQuotaError(err) {
			return "", errors.Wrap(errors.ErrorTypeRateLimit,
				"remote storage quota exhausted; wait for the daily reset or raise the quota", err)
		}
		if !errors.IsTransientUploadError(err) || attempt == u.maxRetries {
			break
		}

		delay := time.Duration(attempt)*u.baseDelay + time.Duration(rand.Int63n(int64(time.Second)))
		u.log.WithFields(map[string]interface{}{
			"file":    name,
			"attempt": attempt,
			"delay":   delay.String(),
			"error":   err.Error(),
		}).Warn("transient upload failure, retrying")
		u.sleep(delay)
	}

	return "", errors.Wrap(errors.ErrorTypeNetwork,
		fmt.Sprintf("upload of %s failed after %d attempts", name, u.maxRetries), lastErr)
}
