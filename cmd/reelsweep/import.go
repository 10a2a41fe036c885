package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"reelsweep/pkg/backup"
	"reelsweep/pkg/workflow"
)

var importCmd = &cobra.Command{
	Use:   "import [backup-file]",
	Short: "Replay a link backup into the ledger",
	Long: `import appends the reels from a collection backup file to the ledger,
skipping any that are already recorded. With no argument the newest
backup in the configured backup directory is used.

Useful after a run that collected links but crashed before the final
ledger flush.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		p, err := newPipeline(ctx, nil, false)
		if err != nil {
			return err
		}

		path := ""
		if len(args) == 1 {
			path = args[0]
		} else if path = backup.Latest(p.cfg.Collector.BackupDirectory); path == "" {
			return fmt.Errorf("no backup files in %s", p.cfg.Collector.BackupDirectory)
		}

		snap, err := backup.Load(path)
		if err != nil {
			return err
		}
		if err := p.client.EnsureSchema(ctx); err != nil {
			return err
		}
		p.cache.Load(ctx)

		intake := workflow.NewIntake(p.cache, p.log)
		fresh, duplicates := intake.Filter(snap.Reels)
		if len(fresh) > 0 {
			if err := p.client.AppendBatch(ctx, fresh); err != nil {
				return err
			}
		}

		fmt.Printf("Imported %d reel(s) from %s (%d duplicates skipped)\n",
			len(fresh), path, duplicates)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(importCmd)
}
