package workflow

import (
	"context"
	"time"

	"reelsweep/pkg/logger"
	"reelsweep/pkg/models"
	"reelsweep/pkg/pool"
)

// Prober checks that a reel link still resolves to fetchable media.
type Prober interface {
	Probe(ctx context.Context, url string) error
}

// DateChecker fetches a reel's actual upload date.
type DateChecker interface {
	UploadDate(ctx context.Context, url string) (time.Time, error)
}

// StatusWriter is the slice of the ledger the validator writes.
type StatusWriter interface {
	UpdateStatus(ctx context.Context, row int, status models.Status) error
}

// Validator sweeps pending rows for links that have gone dead and,
// optionally, for posts older than the configured window. Dead rows
// are marked failed so the media stage stops burning attempts on
// them.
type Validator struct {
	writer  StatusWriter
	prober  Prober
	dates   DateChecker
	runner  *pool.Runner
	maxDays int
	log     logger.Logger
	now     func() time.Time
}

// ValidatorOptions configures a Validator. DateChecker may be nil to
// skip age verification; MaxAgeDays 0 does the same.
type ValidatorOptions struct {
	Writer     StatusWriter
	Prober     Prober
	Dates      DateChecker
	Runner     *pool.Runner
	MaxAgeDays int
	Logger     logger.Logger
}

// NewValidator wires a Validator.
func NewValidator(opts ValidatorOptions) *Validator {
	if opts.Logger == nil {
		opts.Logger = logger.NewNop()
	}
	return &Validator{
		writer:  opts.Writer,
		prober:  opts.Prober,
		dates:   opts.Dates,
		runner:  opts.Runner,
		maxDays: opts.MaxAgeDays,
		log:     opts.Logger,
		now:     time.Now,
	}
}

// ValidateStats summarizes one validation sweep.
type ValidateStats struct {
	Alive  int
	Dead   int
	TooOld int
	Errors int
}

// Run probes every reel in parallel and marks unreachable ones
// failed. When a DateChecker is configured, reels older than the
// window are also marked failed.
func (v *Validator) Run(ctx context.Context, reels []models.Reel) (ValidateStats, error) {
	var stats ValidateStats
	if len(reels) == 0 {
		return stats, nil
	}

	probeResults, err := v.runner.Run(ctx, pool.TaskValidation, reels, func(ctx context.Context, reel models.Reel) *models.TaskResult {
		if probeErr := v.prober.Probe(ctx, reel.Link); probeErr != nil {
			return &models.TaskResult{Reel: &reel, Success: false, Err: probeErr}
		}
		return &models.TaskResult{Reel: &reel, Success: true}
	})
	if err != nil {
		return stats, err
	}

	var alive []models.Reel
	for _, res := range probeResults {
		if res == nil {
			stats.Errors++
			continue
		}
		if !res.Success {
			stats.Dead++
			v.markFailed(ctx, res.Reel, "link no longer resolves")
			continue
		}
		alive = append(alive, *res.Reel)
	}

	if v.dates == nil || v.maxDays <= 0 {
		stats.Alive = len(alive)
		v.logSweep(stats)
		return stats, nil
	}

	cutoff := v.now().AddDate(0, 0, -v.maxDays)
	dateResults, err := v.runner.Run(ctx, pool.TaskDateCheck, alive, func(ctx context.Context, reel models.Reel) *models.TaskResult {
		posted, dateErr := v.dates.UploadDate(ctx, reel.Link)
		if dateErr != nil {
			// an unreadable date is not a dead reel
			return &models.TaskResult{Reel: &reel, Success: true}
		}
		r := reel
		r.PostedDate = models.FormatDate(posted)
		return &models.TaskResult{Reel: &r, Success: posted.After(cutoff)}
	})
	if err != nil {
		return stats, err
	}

	for _, res := range dateResults {
		if res == nil {
			stats.Errors++
			continue
		}
		if !res.Success {
			stats.TooOld++
			v.markFailed(ctx, res.Reel, "post is outside the collection window")
			continue
		}
		stats.Alive++
	}
	v.logSweep(stats)
	return stats, nil
}

func (v *Validator) markFailed(ctx context.Context, reel *models.Reel, reason string) {
	v.log.WithFields(map[string]interface{}{
		"reel":   reel.ID,
		"reason": reason,
	}).Warn("marking row failed")
	if err := v.writer.UpdateStatus(ctx, reel.Row, models.StatusFailed); err != nil {
		v.log.WithError(err).Warn("could not mark row failed")
	}
}

func (v *Validator) logSweep(stats ValidateStats) {
	v.log.WithFields(map[string]interface{}{
		"alive":   stats.Alive,
		"dead":    stats.Dead,
		"too_old": stats.TooOld,
	}).Info("validation sweep finished")
}
