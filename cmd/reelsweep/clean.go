package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"reelsweep/pkg/storage"
)

var cleanCmd = &cobra.Command{
	Use:   "clean [reel-id...]",
	Short: "Delete downloaded media files from the working directory",
	Long: `Clean removes leftover media files from the download directory.
With no arguments every media file is deleted; with reel IDs only the
files belonging to those reels are removed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		log, err := buildLogger(cfg)
		if err != nil {
			return err
		}

		store, err := storage.NewManager(cfg.Media.DownloadDir, log)
		if err != nil {
			return err
		}
		removed := store.Sweep(args...)
		fmt.Printf("Removed %d media file(s) from %s\n", removed, store.Dir())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(cleanCmd)
}
