package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"reelsweep/pkg/workflow"
)

var (
	runNoEnrich bool
	runNoMedia  bool
	runHeadful  bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the full pipeline: collect, enrich, move media",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		p, err := newPipeline(ctx, nil, true)
		if err != nil {
			return err
		}

		col, closeBrowser, err := p.newCollector(ctx, !runHeadful)
		if err != nil {
			return err
		}
		defer closeBrowser()

		var enricher *workflow.Enricher
		if !runNoEnrich {
			if enricher, err = p.newEnricher(); err != nil {
				return err
			}
		}
		var media *workflow.MediaStage
		if !runNoMedia {
			if media, err = p.newMediaStage(ctx); err != nil {
				return err
			}
		}

		o := workflow.NewOrchestrator(workflow.Options{
			Ledger:    p.client,
			Cache:     p.cache,
			Collector: col,
			Enricher:  enricher,
			Media:     media,
			Backup:    p.newBackupWriter(),
			Targets:   p.cfg.Targets.URLs,
			Stages: workflow.Stages{
				Collect: true,
				Enrich:  enricher != nil,
				Media:   media != nil,
			},
			Logger: p.log,
		})

		report, err := o.Run(ctx)
		if report != nil {
			printReport(report)
		}
		return err
	},
}

func init() {
	runCmd.Flags().BoolVar(&runNoEnrich, "no-enrich", false, "skip the description stage")
	runCmd.Flags().BoolVar(&runNoMedia, "no-media", false, "skip the download/upload stage")
	runCmd.Flags().BoolVar(&runHeadful, "headful", false, "show the browser window")
	rootCmd.AddCommand(runCmd)
}
