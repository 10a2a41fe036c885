package backup

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"reelsweep/pkg/errors"
	"reelsweep/pkg/logger"
	"reelsweep/pkg/models"
)

const filePrefix = "reel_links_backup_"

// Snapshot is what a backup file holds: the collected reels and when
// they were captured.
type Snapshot struct {
	CreatedAt time.Time     `json:"created_at"`
	Source    string        `json:"source,omitempty"`
	Reels     []models.Reel `json:"reels"`
}

// Writer persists link snapshots so a crashed run can be replayed
// without re-scrolling the profile.
type Writer struct {
	dir string
	log logger.Logger
}

// NewWriter ensures dir exists and returns a Writer.
func NewWriter(dir string, log logger.Logger) (*Writer, error) {
	if log == nil {
		log = logger.NewNop()
	}
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errors.Wrap(errors.ErrorTypeConfig, "failed to create backup directory", err)
	}
	return &Writer{dir: dir, log: log}, nil
}

// Save writes a timestamped snapshot. The write is atomic: data goes
// to a temp file first, then renames into place.
func (w *Writer) Save(source string, reels []models.Reel) (string, error) {
	snap := Snapshot{
		CreatedAt: time.Now(),
		Source:    source,
		Reels:     reels,
	}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return "", errors.Wrap(errors.ErrorTypeUnknown, "failed to encode backup", err)
	}

	name := filePrefix + time.Now().Format("20060102_150405") + ".json"
	path := filepath.Join(w.dir, name)

	tmp, err := os.CreateTemp(w.dir, name+".tmp")
	if err != nil {
		return "", errors.Wrap(errors.ErrorTypeUnknown, "failed to create backup temp file", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", errors.Wrap(errors.ErrorTypeUnknown, "failed to write backup", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return "", errors.Wrap(errors.ErrorTypeUnknown, "failed to close backup temp file", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return "", errors.Wrap(errors.ErrorTypeUnknown, "failed to finalize backup", err)
	}

	w.log.WithFields(map[string]interface{}{
		"file":  name,
		"reels": len(reels),
	}).Info("link backup written")
	return path, nil
}

// Load reads a snapshot file.
func Load(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrorTypeNotFound, "failed to read backup", err)
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, errors.Wrap(errors.ErrorTypeValidation, "failed to decode backup", err)
	}
	return &snap, nil
}

// Latest returns the path of the newest backup in dir, or "" when
// none exists.
func Latest(dir string) string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.HasPrefix(e.Name(), filePrefix) && strings.HasSuffix(e.Name(), ".json") {
			names = append(names, e.Name())
		}
	}
	if len(names) == 0 {
		return ""
	}
	// the timestamp in the name sorts lexicographically
	sort.Strings(names)
	return filepath.Join(dir, names[len(names)-1])
}
