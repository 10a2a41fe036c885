package models

import (
	"strings"
	"time"
)

// Status is the processing state of a reel in the ledger. The set is
// closed; anything else in the status column is treated as pending.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// ParseStatus maps raw cell text to a Status, defaulting to pending.
func ParseStatus(s string) Status {
	switch Status(strings.ToLower(strings.TrimSpace(s))) {
	case StatusProcessing:
		return StatusProcessing
	case StatusCompleted:
		return StatusCompleted
	case StatusFailed:
		return StatusFailed
	default:
		return StatusPending
	}
}

// Reel is one collected reel and its ledger state. Row is the
// 1-indexed spreadsheet row; 0 means not yet appended.
type Reel struct {
	Row          int       `json:"row,omitempty"`
	Date         string    `json:"date"`
	Username     string    `json:"username"`
	Link         string    `json:"link"`
	ID           string    `json:"reel_id"`
	Description  string    `json:"description,omitempty"`
	Status       Status    `json:"status"`
	PostedDate   string    `json:"posted_date,omitempty"`
	RemoteFileID string    `json:"remote_file_id,omitempty"`
	CollectedAt  time.Time `json:"collected_at,omitempty"`
}

// HasSentinelID reports whether the reel carries a fallback ID minted
// because no identifier could be extracted from its link. Sentinel
// rows are excluded from deduplication.
func (r *Reel) HasSentinelID() bool {
	return IsSentinelID(r.ID)
}

// IsSentinelID reports whether id is a minted fallback identifier.
func IsSentinelID(id string) bool {
	return strings.HasPrefix(id, "unknown_")
}

// monthAbbrev holds the uppercase three-letter month names used in
// the ledger date format.
var monthAbbrev = [...]string{
	"JAN", "FEB", "MAR", "APR", "MAY", "JUN",
	"JUL", "AUG", "SEP", "OCT", "NOV", "DEC",
}

// FormatDate renders t in the ledger's DD-MMM-YY form, for example
// "28-JUN-25".
func FormatDate(t time.Time) string {
	day := t.Day()
	return pad2(day) + "-" + monthAbbrev[t.Month()-1] + "-" + pad2(t.Year()%100)
}

func pad2(n int) string {
	if n < 10 {
		return "0" + string(rune('0'+n))
	}
	return string(rune('0'+n/10)) + string(rune('0'+n%10))
}

// RunStats accumulates counters across a pipeline run.
type RunStats struct {
	Collected  int `json:"collected"`
	Duplicates int `json:"duplicates"`
	Appended   int `json:"appended"`
	Described  int `json:"described"`
	Downloaded int `json:"downloaded"`
	Uploaded   int `json:"uploaded"`
	Failed     int `json:"failed"`
	Sentinels  int `json:"sentinels"`
}

// TaskResult is the outcome of one unit of parallel work. A nil
// *TaskResult from a worker counts as a failure.
type TaskResult struct {
	Reel    *Reel
	Success bool
	Err     error
	Elapsed time.Duration
}
