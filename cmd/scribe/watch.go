package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/snarg/scribe/internal/storage"
	"github.com/snarg/scribe/internal/watch"
	"github.com/spf13/cobra"
)

var (
	watchDir      string
	watchBackfill bool
	watchWorkers  int
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Transcribe media files dropped into a folder",
	Long: `Watch a folder and transcribe each new accepted media file.
The transcript is written next to the file with a .txt extension.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log := setup("watch")

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a := buildApp(cfg, log)

		pruner := storage.NewScratchPruner(a.scratch, cfg.ScratchRetention, log)
		pruner.Start()
		defer pruner.Stop()

		w := watch.New(a.pipe, watch.Options{
			Dir:        watchDir,
			Extensions: cfg.UploadExtensions,
			Debounce:   500 * time.Millisecond,
			Backfill:   watchBackfill,
			Workers:    watchWorkers,
			Log:        log,
		})
		if err := w.Start(ctx); err != nil {
			return err
		}

		<-ctx.Done()
		log.Info().Msg("shutdown signal received")
		w.Stop()
		return nil
	},
}

func init() {
	watchCmd.Flags().StringVarP(&watchDir, "dir", "d", ".", "Folder to watch")
	watchCmd.Flags().BoolVar(&watchBackfill, "backfill", false, "Also transcribe existing files without a transcript")
	watchCmd.Flags().IntVar(&watchWorkers, "workers", 1, "Concurrent backfill transcriptions")
}
