package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"reelsweep/pkg/models"
	"reelsweep/pkg/workflow"
	"reelsweep/pkg/ytdlp"
)

var verifyCheckDates bool

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Probe pending rows and mark dead or expired links failed",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		p, err := newPipeline(ctx, nil, false)
		if err != nil {
			return err
		}
		yt, err := ytdlp.New(ytdlp.Options{
			CookiesFile: p.cfg.Enrich.CookiesFile,
			Timeout:     p.cfg.Enrich.FetchTimeout,
			Logger:      p.log,
		})
		if err != nil {
			return err
		}

		opts := workflow.ValidatorOptions{
			Writer: p.client,
			Prober: yt,
			Runner: p.runner,
			Logger: p.log,
		}
		if verifyCheckDates {
			opts.Dates = yt
			opts.MaxAgeDays = p.cfg.Targets.DaysLimit
		}
		v := workflow.NewValidator(opts)

		pending, err := p.client.RowsByStatus(ctx, models.StatusPending)
		if err != nil {
			return err
		}
		stats, err := v.Run(ctx, pending)
		if err != nil {
			return err
		}

		fmt.Printf("Checked %d rows: %d alive, %d dead, %d too old\n",
			len(pending), stats.Alive, stats.Dead, stats.TooOld)
		return nil
	},
}

func init() {
	verifyCmd.Flags().BoolVar(&verifyCheckDates, "check-dates", false, "also verify posts fall inside the configured age window")
	rootCmd.AddCommand(verifyCmd)
}
