package workflow

import (
	"context"

	"reelsweep/pkg/logger"
	"reelsweep/pkg/models"
	"reelsweep/pkg/pool"
)

// Describer fetches a reel's caption text.
type Describer interface {
	Description(ctx context.Context, url string) (string, error)
}

// DescriptionWriter persists a description for a ledger row.
type DescriptionWriter interface {
	UpdateDescription(ctx context.Context, row int, description string) error
}

// Enricher fills empty description cells. It never touches the status
// column: a reel with no caption is still a perfectly processable
// reel.
type Enricher struct {
	writer DescriptionWriter
	desc   Describer
	runner *pool.Runner
	log    logger.Logger
}

// NewEnricher wires an Enricher.
func NewEnricher(writer DescriptionWriter, desc Describer, runner *pool.Runner, log logger.Logger) *Enricher {
	if log == nil {
		log = logger.NewNop()
	}
	return &Enricher{writer: writer, desc: desc, runner: runner, log: log}
}

// EnrichStats summarizes one enrichment pass.
type EnrichStats struct {
	Described int
	Empty     int
	Failed    int
}

// Run fetches descriptions for the given reels in parallel and writes
// them back. Fetch failures are logged per reel and never abort the
// pass.
func (e *Enricher) Run(ctx context.Context, reels []models.Reel) (EnrichStats, error) {
	var stats EnrichStats
	if len(reels) == 0 {
		return stats, nil
	}

	results, err := e.runner.Run(ctx, pool.TaskDescription, reels, func(ctx context.Context, reel models.Reel) *models.TaskResult {
		text, fetchErr := e.desc.Description(ctx, reel.Link)
		if fetchErr != nil {
			e.log.WithFields(map[string]interface{}{
				"reel":  reel.ID,
				"error": fetchErr.Error(),
			}).Warn("description fetch failed")
			return &models.TaskResult{Reel: &reel, Success: false, Err: fetchErr}
		}

		r := reel
		r.Description = text
		if text == "" {
			// nothing to write, still a success
			return &models.TaskResult{Reel: &r, Success: true}
		}
		if writeErr := e.writer.UpdateDescription(ctx, reel.Row, text); writeErr != nil {
			return &models.TaskResult{Reel: &r, Success: false, Err: writeErr}
		}
		return &models.TaskResult{Reel: &r, Success: true}
	})
	if err != nil {
		return stats, err
	}

	for _, res := range results {
		switch {
		case res == nil || !res.Success:
			stats.Failed++
		case res.Reel.Description == "":
			stats.Empty++
		default:
			stats.Described++
		}
	}

	e.log.WithFields(map[string]interface{}{
		"described": stats.Described,
		"empty":     stats.Empty,
		"failed":    stats.Failed,
	}).Info("description enrichment finished")
	return stats, nil
}
