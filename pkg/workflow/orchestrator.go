package workflow

import (
	"context"
	"time"

	"github.com/google/uuid"

	"reelsweep/pkg/backup"
	"reelsweep/pkg/collector"
	"reelsweep/pkg/ledger"
	"reelsweep/pkg/logger"
	"reelsweep/pkg/models"
)

// Ledger is everything the orchestrator needs from the spreadsheet
// client.
type Ledger interface {
	EnsureSchema(ctx context.Context) error
	AppendBatch(ctx context.Context, reels []models.Reel) error
	RowsByStatus(ctx context.Context, status models.Status) ([]models.Reel, error)
	RowsMissingDescription(ctx context.Context) ([]models.Reel, error)
}

// ProfileCollector walks one profile and returns what it found.
type ProfileCollector interface {
	Collect(ctx context.Context, profileURL string) (*collector.Result, error)
}

// Stages toggles the pipeline's optional phases.
type Stages struct {
	Collect bool
	Enrich  bool
	Media   bool
}

// Options wires an Orchestrator. Collector, Enricher and Media may be
// nil when the matching stage is off.
type Options struct {
	Ledger    Ledger
	Cache     *ledger.IdentityCache
	Collector ProfileCollector
	Enricher  *Enricher
	Media     *MediaStage
	Backup    *backup.Writer
	Targets   []string
	Stages    Stages
	Logger    logger.Logger
}

// Report is what one pipeline run produced.
type Report struct {
	RunID    string
	Started  time.Time
	Finished time.Time
	Stats    models.RunStats
	Enrich   EnrichStats
	Media    MediaStats
	Errors   []string
}

// Orchestrator sequences the pipeline: collect from every target,
// enrich descriptions, then move media. Each run gets a unique ID
// that tags every log line.
type Orchestrator struct {
	opts Options
	log  logger.Logger
}

// NewOrchestrator builds an Orchestrator.
func NewOrchestrator(opts Options) *Orchestrator {
	if opts.Logger == nil {
		opts.Logger = logger.NewNop()
	}
	return &Orchestrator{opts: opts, log: opts.Logger}
}

// Run executes the enabled stages in order. Per-target and per-stage
// failures are collected into the report; only context cancellation
// and a broken ledger stop the run outright.
func (o *Orchestrator) Run(ctx context.Context) (*Report, error) {
	report := &Report{
		RunID:   uuid.NewString(),
		Started: time.Now(),
	}
	log := o.log.WithField("run_id", report.RunID)
	log.Info("pipeline run starting")

	if err := o.opts.Ledger.EnsureSchema(ctx); err != nil {
		return report, err
	}
	if o.opts.Cache != nil {
		o.opts.Cache.Load(ctx)
	}

	if o.opts.Stages.Collect {
		o.runCollect(ctx, report, log)
	} else {
		log.Info("collection stage disabled, skipping")
	}
	if err := ctx.Err(); err != nil {
		return report, err
	}

	if o.opts.Stages.Enrich {
		o.runEnrich(ctx, report, log)
	} else {
		log.Info("description stage disabled, skipping")
	}
	if err := ctx.Err(); err != nil {
		return report, err
	}

	if o.opts.Stages.Media {
		o.runMedia(ctx, report, log)
	} else {
		log.Info("media stage disabled, skipping")
	}

	report.Finished = time.Now()
	log.WithFields(map[string]interface{}{
		"collected": report.Stats.Collected,
		"appended":  report.Stats.Appended,
		"described": report.Stats.Described,
		"uploaded":  report.Stats.Uploaded,
		"errors":    len(report.Errors),
		"elapsed":   report.Finished.Sub(report.Started).String(),
	}).Info("pipeline run finished")
	return report, nil
}

func (o *Orchestrator) runCollect(ctx context.Context, report *Report, log logger.Logger) {
	for _, target := range o.opts.Targets {
		if ctx.Err() != nil {
			return
		}
		res, err := o.opts.Collector.Collect(ctx, target)
		if res != nil {
			report.Stats.Collected += len(res.Reels)
			report.Stats.Duplicates += res.Duplicates
			report.Stats.Sentinels += res.Sentinels
		}
		if err != nil {
			report.Errors = append(report.Errors, "collect "+target+": "+err.Error())
			log.WithError(err).WithField("target", target).Error("profile collection failed")
			continue
		}

		if o.opts.Backup != nil && len(res.Reels) > 0 {
			if _, err := o.opts.Backup.Save(target, res.Reels); err != nil {
				log.WithError(err).Warn("could not write link backup")
			}
		}
		report.Stats.Appended += len(res.Reels)
	}
}

func (o *Orchestrator) runEnrich(ctx context.Context, report *Report, log logger.Logger) {
	rows, err := o.opts.Ledger.RowsMissingDescription(ctx)
	if err != nil {
		report.Errors = append(report.Errors, "enrich: "+err.Error())
		log.WithError(err).Error("could not list rows missing descriptions")
		return
	}
	stats, err := o.opts.Enricher.Run(ctx, rows)
	if err != nil {
		report.Errors = append(report.Errors, "enrich: "+err.Error())
		return
	}
	report.Enrich = stats
	report.Stats.Described = stats.Described
}

func (o *Orchestrator) runMedia(ctx context.Context, report *Report, log logger.Logger) {
	rows, err := o.opts.Ledger.RowsByStatus(ctx, models.StatusPending)
	if err != nil {
		report.Errors = append(report.Errors, "media: "+err.Error())
		log.WithError(err).Error("could not list pending rows")
		return
	}
	stats, err := o.opts.Media.Run(ctx, rows)
	report.Media = stats
	report.Stats.Downloaded = stats.Downloaded
	report.Stats.Uploaded = stats.Uploaded
	report.Stats.Failed += stats.DownloadFailed + stats.UploadFailed
	if err != nil {
		report.Errors = append(report.Errors, "media: "+err.Error())
	}
}
