package collector

import (
	"context"
	"time"

	"reelsweep/pkg/errors"
	"reelsweep/pkg/instagram"
	"reelsweep/pkg/ledger"
	"reelsweep/pkg/logger"
	"reelsweep/pkg/models"
)

// PageLink is one reel link found on the profile page, with whatever
// age text sat next to it. AgeText is "" when the page exposes no
// timestamp near the link.
type PageLink struct {
	URL     string
	AgeText string
}

// PageDriver abstracts the browser session the collector drives. A
// production driver wraps an automated browser; tests use a scripted
// fake.
type PageDriver interface {
	// Navigate opens the profile page and waits for it to settle.
	Navigate(ctx context.Context, url string) error

	// ReelLinks returns every reel link currently rendered.
	ReelLinks(ctx context.Context) ([]PageLink, error)

	// ScrollToBottom scrolls the window to the current page bottom.
	ScrollToBottom(ctx context.Context) error

	// PageHeight reports the current document height.
	PageHeight(ctx context.Context) (int64, error)
}

// State is where the collection loop currently stands.
type State int

const (
	StateInit State = iota
	StateExploring
	StateTargetMet
	StateExhausted
	StateDone
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateExploring:
		return "exploring"
	case StateTargetMet:
		return "target_met"
	case StateExhausted:
		return "exhausted"
	case StateDone:
		return "done"
	default:
		return "unknown"
	}
}

// plateau thresholds: how many consecutive no-growth scrolls mean the
// profile is exhausted. With a target set the loop pushes harder
// before giving up.
const (
	plateauLimit       = 3
	plateauLimitTarget = 5
)

// FlushFn receives batches of newly collected reels as the scroll
// loop runs, so partial progress survives a mid-collection crash.
type FlushFn func(ctx context.Context, batch []models.Reel) error

// Options tunes a Collector.
type Options struct {
	// MaxScrolls bounds the scroll loop. Default 15.
	MaxScrolls int

	// ScrollDelay is the settle time after each scroll. Default 500ms.
	ScrollDelay time.Duration

	// BatchSize triggers a flush every N new reels. 0 disables
	// incremental flushing; everything flushes once at the end.
	BatchSize int

	// TargetLinks stops collection once this many new reels are
	// found. 0 collects until the profile is exhausted.
	TargetLinks int

	// DaysLimit drops reels older than this many days. 0 disables.
	DaysLimit int

	// DatePolicy decides what happens to reels whose age cannot be
	// read from the page.
	DatePolicy instagram.DatePolicy

	Logger logger.Logger
}

// Result summarizes one profile collection.
type Result struct {
	Reels      []models.Reel
	Scrolls    int
	Duplicates int
	TooOld     int
	Sentinels  int
	State      State
}

// Collector walks a profile's reels feed and harvests links that are
// not already in the ledger.
type Collector struct {
	driver PageDriver
	cache  *ledger.IdentityCache
	flush  FlushFn
	opts   Options
	log    logger.Logger

	sleep func(time.Duration)
}

// New builds a Collector. flush may be nil.
func New(driver PageDriver, cache *ledger.IdentityCache, flush FlushFn, opts Options) *Collector {
	if opts.MaxScrolls <= 0 {
		opts.MaxScrolls = 15
	}
	if opts.ScrollDelay <= 0 {
		opts.ScrollDelay = 500 * time.Millisecond
	}
	if opts.Logger == nil {
		opts.Logger = logger.NewNop()
	}
	return &Collector{
		driver: driver,
		cache:  cache,
		flush:  flush,
		opts:   opts,
		log:    opts.Logger,
		sleep:  time.Sleep,
	}
}

// Collect runs the scroll loop against one profile URL and returns
// everything new it found. The identity cache is updated
// speculatively as links are accepted, so a second profile in the
// same run cannot re-collect them.
func (c *Collector) Collect(ctx context.Context, profileURL string) (*Result, error) {
	res := &Result{State: StateInit}
	username := instagram.ExtractUsername(profileURL)
	log := c.log.WithField("profile", profileURL)

	if err := c.driver.Navigate(ctx, profileURL); err != nil {
		return res, errors.Wrap(errors.ErrorTypeNetwork, "failed to open profile page", err)
	}
	c.sleep(c.opts.ScrollDelay)

	res.State = StateExploring
	plateau := 0
	plateauMax := plateauLimit
	if c.opts.TargetLinks > 0 {
		plateauMax = plateauLimitTarget
	}

	session := make(map[string]struct{})
	var pending []models.Reel
	lastHeight := int64(-1)
	delay := c.opts.ScrollDelay
	maxDelay := 4 * c.opts.ScrollDelay

	// the first render often already shows a screenful of reels
	if err := c.harvest(ctx, username, session, &pending, res); err != nil {
		return res, err
	}

	for res.Scrolls < c.opts.MaxScrolls {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if c.targetMet(res) {
			res.State = StateTargetMet
			break
		}

		if err := c.driver.ScrollToBottom(ctx); err != nil {
			return res, errors.Wrap(errors.ErrorTypeNetwork, "scroll failed", err)
		}
		res.Scrolls++
		c.sleep(delay)

		before := len(res.Reels)
		if err := c.harvest(ctx, username, session, &pending, res); err != nil {
			return res, err
		}
		grew := len(res.Reels) > before

		// lazy-loading slows down deep in a profile, so back off the
		// settle time when a scroll surfaces nothing new
		if grew {
			delay = c.opts.ScrollDelay
		} else if delay < maxDelay {
			delay += c.opts.ScrollDelay / 2
			if delay > maxDelay {
				delay = maxDelay
			}
		}

		height, err := c.driver.PageHeight(ctx)
		if err != nil {
			return res, errors.Wrap(errors.ErrorTypeNetwork, "failed to read page height", err)
		}
		if height == lastHeight && !grew {
			plateau++
			if plateau >= plateauMax {
				res.State = StateExhausted
				break
			}
		} else {
			plateau = 0
		}
		lastHeight = height
	}

	if res.State == StateExploring {
		if c.targetMet(res) {
			res.State = StateTargetMet
		} else {
			res.State = StateExhausted
		}
	}

	if err := c.flushBatch(ctx, &pending); err != nil {
		return res, err
	}
	res.State = StateDone

	log.WithFields(map[string]interface{}{
		"found":      len(res.Reels),
		"duplicates": res.Duplicates,
		"too_old":    res.TooOld,
		"scrolls":    res.Scrolls,
	}).Info("profile collection finished")
	return res, nil
}

// harvest reads the currently rendered links and folds the new ones
// into the result.
func (c *Collector) harvest(ctx context.Context, username string, session map[string]struct{}, pending *[]models.Reel, res *Result) error {
	links, err := c.driver.ReelLinks(ctx)
	if err != nil {
		return errors.Wrap(errors.ErrorTypeNetwork, "failed to read reel links", err)
	}

	for _, link := range links {
		if c.targetMet(res) {
			return nil
		}
		url := instagram.CleanURL(link.URL)
		if url == "" {
			continue
		}
		id := instagram.ExtractReelID(url)

		if models.IsSentinelID(id) {
			// sentinels are exempt from cross-run dedup, but the same
			// still-visible URL must not produce a row per scroll
			if _, seen := session[url]; seen {
				continue
			}
			res.Sentinels++
		} else {
			if _, seen := session[id]; seen {
				continue
			}
			if c.cache != nil && c.cache.Exists(id) {
				res.Duplicates++
				continue
			}
		}

		if !instagram.WithinDays(link.AgeText, c.opts.DaysLimit, c.opts.DatePolicy) {
			res.TooOld++
			continue
		}

		reel := models.Reel{
			Date:        models.FormatDate(time.Now()),
			Username:    username,
			Link:        url,
			ID:          id,
			Status:      models.StatusPending,
			CollectedAt: time.Now(),
		}
		res.Reels = append(res.Reels, reel)
		*pending = append(*pending, reel)

		if models.IsSentinelID(id) {
			session[url] = struct{}{}
		} else {
			session[id] = struct{}{}
			if c.cache != nil {
				c.cache.Add(id)
			}
		}

		if c.opts.BatchSize > 0 && len(*pending) >= c.opts.BatchSize {
			if err := c.flushBatch(ctx, pending); err != nil {
				return err
			}
		}
	}
	return nil
}

func (c *Collector) targetMet(res *Result) bool {
	return c.opts.TargetLinks > 0 && len(res.Reels) >= c.opts.TargetLinks
}

// flushBatch hands the pending reels to the flush callback and
// clears them.
func (c *Collector) flushBatch(ctx context.Context, pending *[]models.Reel) error {
	if c.flush == nil || len(*pending) == 0 {
		*pending = nil
		return nil
	}
	batch := *pending
	*pending = nil
	if err := c.flush(ctx, batch); err != nil {
		return errors.Wrap(errors.ErrorTypeServerError, "failed to flush collected batch", err)
	}
	return nil
}
