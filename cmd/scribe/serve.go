package main

import (
	"context"
	"io/fs"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/snarg/scribe"
	"github.com/snarg/scribe/internal/api"
	"github.com/snarg/scribe/internal/metrics"
	"github.com/snarg/scribe/internal/storage"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server with the upload/link form",
	RunE: func(cmd *cobra.Command, args []string) error {
		startTime := time.Now()
		cfg, log := setup("serve")
		log.Info().Str("version", version).Msg("scribe starting")

		// Context for graceful shutdown
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a := buildApp(cfg, log)
		if !a.ytdlp.Available() {
			log.Warn().Str("path", cfg.YtDlpPath).Msg("yt-dlp not found; link transcription will fail")
		}

		prometheus.MustRegister(metrics.NewCollector(a.scratch))

		var services []storage.BackgroundService
		pruner := storage.NewScratchPruner(a.scratch, cfg.ScratchRetention, log)
		pruner.Start()
		services = append(services, pruner)

		webFS, err := fs.Sub(scribe.WebFiles, "web")
		if err != nil {
			log.Fatal().Err(err).Msg("failed to open embedded web files")
		}

		httpLog := log.With().Str("component", "http").Logger()
		srv := api.NewServer(api.ServerOptions{
			Config:    cfg,
			Pipeline:  a.pipe,
			Scratch:   a.scratch,
			Tool:      a.ytdlp,
			WebFiles:  webFS,
			Version:   version + " (commit=" + commit + ", built=" + buildTime + ")",
			StartTime: startTime,
			Log:       httpLog,
		})

		// Start HTTP server in background
		errCh := make(chan error, 1)
		go func() {
			errCh <- srv.Start()
		}()

		// Wait for shutdown signal or server error
		var srvErr error
		select {
		case <-ctx.Done():
			log.Info().Msg("shutdown signal received")
		case srvErr = <-errCh:
			if srvErr != nil {
				log.Error().Err(srvErr).Msg("http server error")
			}
		}

		// Graceful shutdown with 10s timeout
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("http server shutdown error")
		}
		for _, s := range services {
			s.Stop()
		}

		log.Info().Msg("scribe stopped")
		return srvErr
	},
}

func init() {
	serveCmd.Flags().StringVar(&overrides.HTTPAddr, "listen", "", "HTTP listen address (env: HTTP_ADDR)")
}
