package main

import (
	"context"
	"fmt"

	"reelsweep/pkg/auth"
	"reelsweep/pkg/backup"
	"reelsweep/pkg/collector"
	"reelsweep/pkg/config"
	"reelsweep/pkg/drive"
	"reelsweep/pkg/instagram"
	"reelsweep/pkg/ledger"
	"reelsweep/pkg/logger"
	"reelsweep/pkg/models"
	"reelsweep/pkg/pool"
	"reelsweep/pkg/storage"
	"reelsweep/pkg/workflow"
	"reelsweep/pkg/ytdlp"
)

// pipeline holds everything a command needs, wired once.
type pipeline struct {
	cfg    *config.Config
	log    logger.Logger
	client *ledger.Client
	cache  *ledger.IdentityCache
	runner *pool.Runner
}

// resolveSecrets fills config gaps from the environment and keyring.
func resolveSecrets(cfg *config.Config) {
	chain := auth.DefaultChain()
	if cfg.Ledger.SheetID == "" {
		if v, err := chain.Get(auth.KeySheetID); err == nil {
			cfg.Ledger.SheetID = v
		}
	}
	if v, err := chain.Get(auth.KeyCredentialsFile); err == nil {
		if cfg.Ledger.CredentialsFile == "" {
			cfg.Ledger.CredentialsFile = v
		}
		if cfg.Media.CredentialsFile == "" {
			cfg.Media.CredentialsFile = v
		}
	}
	if cfg.Enrich.CookiesFile == "" {
		if v, err := chain.Get(auth.KeyCookiesFile); err == nil {
			cfg.Enrich.CookiesFile = v
		}
	}
}

// newPipeline validates config and wires the ledger side shared by
// every command. Non-empty overrideTargets replace the configured
// target list; forCollect makes an empty target list fatal.
func newPipeline(ctx context.Context, overrideTargets []string, forCollect bool) (*pipeline, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	resolveSecrets(cfg)
	if len(overrideTargets) > 0 {
		cfg.Targets.URLs = overrideTargets
	}
	if forCollect {
		err = cfg.Validate()
	} else {
		err = cfg.ValidateProcessing()
	}
	if err != nil {
		return nil, err
	}

	log, err := buildLogger(cfg)
	if err != nil {
		return nil, err
	}

	api, err := ledger.NewSheetsAPI(ctx, cfg.Ledger.CredentialsFile, cfg.Ledger.SheetID)
	if err != nil {
		return nil, err
	}
	client := ledger.NewClient(api, ledger.Options{
		CallsPerMinute:  cfg.Ledger.CallsPerMinute,
		MaxRetries:      cfg.Ledger.MaxRetries,
		RetryBaseDelay:  cfg.Ledger.RetryBaseDelay,
		RequestTimeout:  cfg.Ledger.RequestTimeout,
		ApplyFormatting: cfg.Ledger.ApplyFormatting,
		Logger:          log,
	})

	return &pipeline{
		cfg:    cfg,
		log:    log,
		client: client,
		cache:  ledger.NewIdentityCache(client, log),
		runner: pool.NewRunner(pool.Options{
			Parallel:    cfg.Workers.EnableParallel,
			TaskTimeout: cfg.Workers.TaskTimeout,
			Ceilings: map[pool.TaskType]int{
				pool.TaskValidation:  cfg.Workers.MaxValidation,
				pool.TaskDownload:    cfg.Workers.MaxDownload,
				pool.TaskUpload:      cfg.Workers.MaxUpload,
				pool.TaskDescription: cfg.Workers.MaxDescription,
				pool.TaskDateCheck:   cfg.Workers.MaxDateCheck,
			},
			Logger: log,
		}),
	}, nil
}

// newCollector launches the browser and builds the profile collector.
// The returned closer tears the browser down.
func (p *pipeline) newCollector(ctx context.Context, headless bool) (workflow.ProfileCollector, func(), error) {
	driver, err := collector.NewChromeDriver(ctx, collector.ChromeOptions{
		Headless: headless,
		Logger:   p.log,
	})
	if err != nil {
		return nil, nil, err
	}

	policy := instagram.Permissive
	if p.cfg.Collector.StrictDates {
		policy = instagram.Strict
	}
	flush := func(ctx context.Context, batch []models.Reel) error {
		return p.client.AppendBatch(ctx, batch)
	}
	col := collector.New(driver, p.cache, flush, collector.Options{
		MaxScrolls:  p.cfg.Collector.MaxScrolls,
		ScrollDelay: p.cfg.Collector.ScrollDelay,
		BatchSize:   p.cfg.Collector.BatchSize,
		TargetLinks: p.cfg.Targets.TargetLinks,
		DaysLimit:   p.cfg.Targets.DaysLimit,
		DatePolicy:  policy,
		Logger:      p.log,
	})
	return col, driver.Close, nil
}

// newEnricher builds the description stage, or nil when disabled.
func (p *pipeline) newEnricher() (*workflow.Enricher, error) {
	if !p.cfg.Enrich.Enabled {
		return nil, nil
	}
	yt, err := ytdlp.New(ytdlp.Options{
		CookiesFile: p.cfg.Enrich.CookiesFile,
		Timeout:     p.cfg.Enrich.FetchTimeout,
		Logger:      p.log,
	})
	if err != nil {
		return nil, err
	}
	return workflow.NewEnricher(p.client, yt, p.runner, p.log), nil
}

// newMediaStage builds the download/upload stage, or nil when upload
// is disabled.
func (p *pipeline) newMediaStage(ctx context.Context) (*workflow.MediaStage, error) {
	if !p.cfg.Media.UploadEnabled {
		return nil, nil
	}
	store, err := storage.NewManager(p.cfg.Media.DownloadDir, p.log)
	if err != nil {
		return nil, err
	}
	yt, err := ytdlp.New(ytdlp.Options{
		CookiesFile: p.cfg.Enrich.CookiesFile,
		Timeout:     p.cfg.Media.DownloadTimeout,
		Logger:      p.log,
	})
	if err != nil {
		return nil, err
	}
	up, err := drive.NewUploader(ctx, drive.Options{
		CredentialsFile: p.cfg.Media.CredentialsFile,
		FolderID:        p.cfg.Media.DriveFolderID,
		MaxRetries:      p.cfg.Media.ChunkRetries,
		Logger:          p.log,
	})
	if err != nil {
		return nil, err
	}
	return workflow.NewMediaStage(workflow.MediaOptions{
		Ledger:      p.client,
		Downloader:  yt,
		Uploader:    up,
		Store:       store,
		DeleteLocal: p.cfg.Media.DeleteLocal,
		Logger:      p.log,
	}), nil
}

func (p *pipeline) newBackupWriter() *backup.Writer {
	w, err := backup.NewWriter(p.cfg.Collector.BackupDirectory, p.log)
	if err != nil {
		p.log.WithError(err).Warn("link backups disabled")
		return nil
	}
	return w
}

func printReport(r *workflow.Report) {
	fmt.Printf("\nRun %s finished in %s\n", r.RunID, r.Finished.Sub(r.Started).Round(1e8))
	fmt.Printf("  collected:  %d (%d duplicates skipped)\n", r.Stats.Collected, r.Stats.Duplicates)
	fmt.Printf("  described:  %d\n", r.Stats.Described)
	fmt.Printf("  downloaded: %d\n", r.Stats.Downloaded)
	fmt.Printf("  uploaded:   %d\n", r.Stats.Uploaded)
	if len(r.Errors) > 0 {
		fmt.Printf("  errors:     %d\n", len(r.Errors))
		for _, e := range r.Errors {
			fmt.Printf("    - %s\n", e)
		}
	}
}
