package collector

import (
	"context"
	"time"

	"github.com/chromedp/chromedp"

	"reelsweep/pkg/errors"
	"reelsweep/pkg/logger"
)

// reelLinksScript gathers every post/reel anchor currently in the DOM
// together with the age of the nearest timestamp element. The datetime
// attribute carries an exact ISO timestamp and wins over the rendered
// relative text.
const reelLinksScript = `
Array.from(document.querySelectorAll('a[href*="/reel/"], a[href*="/p/"]')).map(a => {
	let age = '';
	const scope = a.closest('article') || a.parentElement;
	if (scope) {
		const t = scope.querySelector('time');
		if (t) age = t.getAttribute('datetime') || t.textContent || '';
	}
	return {url: a.href, age: age};
})`

// ChromeDriver drives a headless browser session over the DevTools
// protocol. It satisfies PageDriver.
type ChromeDriver struct {
	ctx        context.Context
	cancels    []context.CancelFunc
	navTimeout time.Duration
	log        logger.Logger
}

// ChromeOptions configures the browser session.
type ChromeOptions struct {
	// Headless false shows the browser window, useful when a login
	// wall needs a human.
	Headless bool

	// UserDataDir points at a browser profile carrying session
	// cookies. Empty uses a throwaway profile.
	UserDataDir string

	// NavigateTimeout bounds the initial page load. Default 30s.
	NavigateTimeout time.Duration

	Logger logger.Logger
}

// NewChromeDriver launches the browser. Close must be called to tear
// it down.
func NewChromeDriver(parent context.Context, opts ChromeOptions) (*ChromeDriver, error) {
	if opts.Logger == nil {
		opts.Logger = logger.NewNop()
	}
	if opts.NavigateTimeout <= 0 {
		opts.NavigateTimeout = 30 * time.Second
	}

	allocOpts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	if !opts.Headless {
		allocOpts = append(allocOpts, chromedp.Flag("headless", false))
	}
	if opts.UserDataDir != "" {
		allocOpts = append(allocOpts, chromedp.UserDataDir(opts.UserDataDir))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(parent, allocOpts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	d := &ChromeDriver{
		ctx:        browserCtx,
		cancels:    []context.CancelFunc{browserCancel, allocCancel},
		navTimeout: opts.NavigateTimeout,
		log:        opts.Logger,
	}

	// start the browser now so a missing binary fails fast
	if err := chromedp.Run(browserCtx); err != nil {
		d.Close()
		return nil, errors.Wrap(errors.ErrorTypeExternalTool, "failed to launch browser", err)
	}
	return d, nil
}

// Close tears down the browser session.
func (d *ChromeDriver) Close() {
	for _, cancel := range d.cancels {
		cancel()
	}
}

func (d *ChromeDriver) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.log.WithField("url", url).Debug("navigating")
	navCtx, cancel := context.WithTimeout(d.ctx, d.navTimeout)
	defer cancel()

	err := chromedp.Run(navCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
	if err != nil {
		return errors.Wrap(errors.ErrorTypeNetwork, "navigation failed", err)
	}
	return nil
}

func (d *ChromeDriver) ReelLinks(ctx context.Context) ([]PageLink, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var raw []struct {
		URL string `json:"url"`
		Age string `json:"age"`
	}
	if err := chromedp.Run(d.ctx, chromedp.Evaluate(reelLinksScript, &raw)); err != nil {
		return nil, errors.Wrap(errors.ErrorTypeNetwork, "failed to query reel links", err)
	}

	links := make([]PageLink, 0, len(raw))
	for _, r := range raw {
		links = append(links, PageLink{URL: r.URL, AgeText: r.Age})
	}
	return links, nil
}

func (d *ChromeDriver) ScrollToBottom(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := chromedp.Run(d.ctx,
		chromedp.Evaluate(`window.scrollTo(0, document.body.scrollHeight)`, nil),
	)
	if err != nil {
		return errors.Wrap(errors.ErrorTypeNetwork, "scroll failed", err)
	}
	return nil
}

func (d *ChromeDriver) PageHeight(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	var height int64
	if err := chromedp.Run(d.ctx, chromedp.Evaluate(`document.body.scrollHeight`, &height)); err != nil {
		return 0, errors.Wrap(errors.ErrorTypeNetwork, "failed to read page height", err)
	}
	return height, nil
}
