package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"reelsweep/pkg/errors"
	"reelsweep/pkg/logger"
)

// removeAttempts is how many times Remove tries before giving up. A
// download handle occasionally lingers a moment after the process
// exits, so the first failure is rarely final.
const removeAttempts = 5

// Manager owns the working directory media files pass through between
// download and upload.
type Manager struct {
	dir   string
	log   logger.Logger
	sleep func(time.Duration)
}

// NewManager ensures dir exists and returns a Manager over it.
func NewManager(dir string, log logger.Logger) (*Manager, error) {
	if log == nil {
		log = logger.NewNop()
	}
	if dir == "" {
		return nil, errors.New(errors.ErrorTypeValidation, "working directory cannot be empty")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errors.Wrap(errors.ErrorTypeConfig, "failed to create working directory", err)
	}
	return &Manager{dir: dir, log: log, sleep: time.Sleep}, nil
}

// Dir returns the working directory path.
func (m *Manager) Dir() string {
	return m.dir
}

// MediaPath builds the destination path for a reel's media file. The
// millisecond stamp keeps repeat downloads of the same reel from
// colliding.
func (m *Manager) MediaPath(identifier string) string {
	name := fmt.Sprintf("%s_%d.mp4", identifier, time.Now().UnixMilli())
	return filepath.Join(m.dir, name)
}

// FindByIdentifier returns the newest media file whose name starts
// with the identifier, or "" when none exists.
func (m *Manager) FindByIdentifier(identifier string) string {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		return ""
	}

	var newest string
	var newestMod time.Time
	prefix := identifier + "_"
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), prefix) || !strings.HasSuffix(e.Name(), ".mp4") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if newest == "" || info.ModTime().After(newestMod) {
			newest = filepath.Join(m.dir, e.Name())
			newestMod = info.ModTime()
		}
	}
	return newest
}

// Remove deletes path, retrying with growing delays. Persistent
// failure is logged as a warning and reported, never escalated; a
// leftover file costs disk, not correctness.
func (m *Manager) Remove(path string) bool {
	var lastErr error
	for attempt := 1; attempt <= removeAttempts; attempt++ {
		err := os.Remove(path)
		if err == nil || os.IsNotExist(err) {
			return true
		}
		lastErr = err
		if attempt < removeAttempts {
			m.sleep(time.Duration(attempt) * 100 * time.Millisecond)
		}
	}
	m.log.WithFields(map[string]interface{}{
		"path":  path,
		"error": lastErr.Error(),
	}).Warn("could not remove media file, leaving it on disk")
	return false
}

// Sweep removes media files in the working directory and returns how
// many were deleted. With identifiers it only touches files belonging
// to those reels; with none it clears every media file.
func (m *Manager) Sweep(identifiers ...string) int {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		m.log.WithError(err).Warn("could not list working directory for sweep")
		return 0
	}

	wanted := make(map[string]struct{}, len(identifiers))
	for _, id := range identifiers {
		wanted[id] = struct{}{}
	}

	removed := 0
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".mp4") {
			continue
		}
		if len(wanted) > 0 {
			// identifiers may themselves contain underscores, but the
			// timestamp suffix never does
			cut := strings.LastIndex(e.Name(), "_")
			if cut < 0 {
				continue
			}
			if _, hit := wanted[e.Name()[:cut]]; !hit {
				continue
			}
		}
		if m.Remove(filepath.Join(m.dir, e.Name())) {
			removed++
		}
	}
	return removed
}
