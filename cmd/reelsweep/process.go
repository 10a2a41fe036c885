package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"reelsweep/pkg/workflow"
)

var (
	processNoEnrich bool
	processNoMedia  bool
)

var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Process existing ledger rows: fill descriptions and move media",
	Long: `process skips collection entirely and works through what is already
in the ledger: rows with an empty description get captions fetched, and
pending rows get their media downloaded and uploaded.

Rows whose upload failed on a previous run are still pending, so they
are picked up again automatically.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		p, err := newPipeline(ctx, nil, false)
		if err != nil {
			return err
		}

		var enricher *workflow.Enricher
		if !processNoEnrich {
			if enricher, err = p.newEnricher(); err != nil {
				return err
			}
		}
		var media *workflow.MediaStage
		if !processNoMedia {
			if media, err = p.newMediaStage(ctx); err != nil {
				return err
			}
		}

		o := workflow.NewOrchestrator(workflow.Options{
			Ledger:   p.client,
			Cache:    p.cache,
			Enricher: enricher,
			Media:    media,
			Stages: workflow.Stages{
				Enrich: enricher != nil,
				Media:  media != nil,
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
	processCmd.Flags().BoolVar(&processNoEnrich, "no-enrich", false, "skip the description stage")
	processCmd.Flags().BoolVar(&processNoMedia, "no-media", false, "skip the download/upload stage")
	rootCmd.AddCommand(processCmd)
}
