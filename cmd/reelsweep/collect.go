package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"reelsweep/pkg/workflow"
)

var collectHeadful bool

var collectCmd = &cobra.Command{
	Use:   "collect [profile-url...]",
	Short: "Collect new reel links into the ledger without processing them",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		p, err := newPipeline(ctx, args, true)
		if err != nil {
			return err
		}

		col, closeBrowser, err := p.newCollector(ctx, !collectHeadful)
		if err != nil {
			return err
		}
		defer closeBrowser()

		o := workflow.NewOrchestrator(workflow.Options{
			Ledger:    p.client,
			Cache:     p.cache,
			Collector: col,
			Backup:    p.newBackupWriter(),
			Targets:   p.cfg.Targets.URLs,
			Stages:    workflow.Stages{Collect: true},
			Logger:    p.log,
		})

		report, err := o.Run(ctx)
		if report != nil {
			printReport(report)
		}
		return err
	},
}

func init() {
	collectCmd.Flags().BoolVar(&collectHeadful, "headful", false, "show the browser window")
	rootCmd.AddCommand(collectCmd)
}
