package pool

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"reelsweep/pkg/logger"
	"reelsweep/pkg/models"
)

// TaskType names a category of parallel work. Each type carries its
// own worker ceiling because the bottleneck differs: uploads saturate
// bandwidth, date checks are cheap metadata fetches.
type TaskType string

const (
	TaskValidation  TaskType = "validation"
	TaskDownload    TaskType = "download"
	TaskUpload      TaskType = "upload"
	TaskDescription TaskType = "description"
	TaskDateCheck   TaskType = "date_check"
)

var typeCeilings = map[TaskType]int{
	TaskValidation:  4,
	TaskDownload:    3,
	TaskUpload:      2,
	TaskDescription: 5,
	TaskDateCheck:   6,
}

// Ceiling returns the hard worker limit for a task type. Unknown
// types get 1.
func Ceiling(t TaskType) int {
	if n, ok := typeCeilings[t]; ok {
		return n
	}
	return 1
}

// WorkerFn processes one reel and returns its result. A nil result
// with a nil error still counts as a failure; workers must account
// for every item they are handed.
type WorkerFn func(ctx context.Context, reel models.Reel) *models.TaskResult

// Stats accumulates outcomes across every Run on a Runner.
type Stats struct {
	Total     int
	Succeeded int
	Failed    int
	Elapsed   time.Duration
}

// Options configures a Runner.
type Options struct {
	// Parallel false forces the sequential path for every Run.
	Parallel bool

	// TaskTimeout bounds each individual task. Zero disables it.
	TaskTimeout time.Duration

	// Resources overrides detection; zero value triggers DetectResources.
	Resources Resources

	// Ceilings lowers per-type worker limits below the built-in caps.
	// Entries above the cap, or missing, fall back to the cap.
	Ceilings map[TaskType]int

	// OnProgress, when set, is called after each completed task with
	// the batch's completed, total, succeeded and failed counts.
	OnProgress func(completed, total, succeeded, failed int)

	Logger logger.Logger
}

// Runner executes batches of per-reel tasks with bounded concurrency.
type Runner struct {
	opts Options
	log  logger.Logger

	mu    sync.Mutex
	stats Stats
}

// NewRunner builds a Runner. Resources are detected once at
// construction.
func NewRunner(opts Options) *Runner {
	if opts.Logger == nil {
		opts.Logger = logger.NewNop()
	}
	if opts.Resources == (Resources{}) {
		opts.Resources = DetectResources()
	}
	return &Runner{opts: opts, log: opts.Logger}
}

// Workers returns the worker count Run would use for a batch of the
// given type and size.
func (r *Runner) Workers(t TaskType, itemCount int) int {
	if !r.opts.Parallel {
		return 1
	}
	n := suggestWorkers(r.opts.Resources, itemCount)
	ceiling := Ceiling(t)
	if c, ok := r.opts.Ceilings[t]; ok && c > 0 && c < ceiling {
		ceiling = c
	}
	if n > ceiling {
		n = ceiling
	}
	return n
}

// Run processes items with fn. Results come back in input order; a
// failed or panicked task yields a failed result in its slot rather
// than aborting the batch. The returned error is only ever the
// context's error.
//
// Workers must honor ctx cancellation: the per-task timeout is
// delivered through the worker's context, and a worker that ignores
// it holds its slot past the deadline.
func (r *Runner) Run(ctx context.Context, t TaskType, items []models.Reel, fn WorkerFn) ([]*models.TaskResult, error) {
	if len(items) == 0 {
		return nil, nil
	}

	workers := r.Workers(t, len(items))
	started := time.Now()
	r.log.WithFields(map[string]interface{}{
		"task":    string(t),
		"items":   len(items),
		"workers": workers,
	}).Debug("starting task batch")

	var results []*models.TaskResult
	var err error
	if workers <= 1 {
		results, err = r.runSequential(ctx, t, items, fn)
	} else {
		results, err = r.runParallel(ctx, t, items, fn, workers)
	}

	r.record(results, time.Since(started))
	return results, err
}

func (r *Runner) runSequential(ctx context.Context, t TaskType, items []models.Reel, fn WorkerFn) ([]*models.TaskResult, error) {
	results := make([]*models.TaskResult, len(items))
	var p progress
	for i, item := range items {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		results[i] = r.runOne(ctx, t, item, fn)
		p.report(r.opts.OnProgress, len(items), results[i].Success)
	}
	return results, nil
}

// progress tracks per-batch completion counts for the callback.
type progress struct {
	mu        sync.Mutex
	completed int
	succeeded int
	failed    int
}

func (p *progress) report(cb func(int, int, int, int), total int, success bool) {
	if cb == nil {
		return
	}
	p.mu.Lock()
	p.completed++
	if success {
		p.succeeded++
	} else {
		p.failed++
	}
	cb(p.completed, total, p.succeeded, p.failed)
	p.mu.Unlock()
}

func (r *Runner) runParallel(ctx context.Context, t TaskType, items []models.Reel, fn WorkerFn, workers int) ([]*models.TaskResult, error) {
	results := make([]*models.TaskResult, len(items))
	var p progress

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i, item := range items {
		i, item := i, item
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = r.runOne(gctx, t, item, fn)
			p.report(r.opts.OnProgress, len(items), results[i].Success)
			return nil
		})
	}
	return results, g.Wait()
}

// runOne executes a single task with timeout and panic isolation.
func (r *Runner) runOne(ctx context.Context, t TaskType, item models.Reel, fn WorkerFn) (result *models.TaskResult) {
	started := time.Now()

	defer func() {
		if rec := recover(); rec != nil {
			r.log.WithFields(map[string]interface{}{
				"task": string(t),
				"reel": item.ID,
			}).Error(fmt.Sprintf("task panicked: %v", rec))
			result = &models.TaskResult{
				Reel:    &item,
				Success: false,
				Err:     fmt.Errorf("task panicked: %v", rec),
				Elapsed: time.Since(started),
			}
		}
		if result == nil {
			result = &models.TaskResult{
				Reel:    &item,
				Success: false,
				Err:     fmt.Errorf("task returned no result"),
				Elapsed: time.Since(started),
			}
		}
	}()

	taskCtx := ctx
	if r.opts.TaskTimeout > 0 {
		var cancel context.CancelFunc
		taskCtx, cancel = context.WithTimeout(ctx, r.opts.TaskTimeout)
		defer cancel()
	}

	result = fn(taskCtx, item)
	if result != nil && result.Elapsed == 0 {
		result.Elapsed = time.Since(started)
	}
	return result
}

func (r *Runner) record(results []*models.TaskResult, elapsed time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, res := range results {
		if res == nil {
			continue
		}
		r.stats.Total++
		if res.Success {
			r.stats.Succeeded++
		} else {
			r.stats.Failed++
		}
	}
	r.stats.Elapsed += elapsed
}

// Stats returns the cumulative counters across all Runs so far.
func (r *Runner) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stats
}
