package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/snarg/scribe/internal/failure"
	"github.com/snarg/scribe/internal/pipeline"
	"github.com/spf13/cobra"
)

var (
	runFile string
	runURL  string
	runOut  string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Transcribe one file or link and print the transcript",
	Example: `  scribe run --file episode.mp3
  scribe run --url https://www.youtube.com/watch?v=dQw4w9WgXcQ --out transcript.txt`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if runFile == "" && runURL == "" {
			return errors.New("one of --file or --url is required")
		}
		cfg, log := setup("run")

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		in := pipeline.Input{URL: runURL}
		if runFile != "" {
			info, err := os.Stat(runFile)
			if err != nil {
				return err
			}
			if limit := cfg.MaxUploadBytes(); limit > 0 && info.Size() > limit {
				return fmt.Errorf("%s is %d bytes, over the %d MB limit", runFile, info.Size(), cfg.MaxUploadMB)
			}
			data, err := os.ReadFile(runFile)
			if err != nil {
				return err
			}
			in.Upload = &pipeline.Upload{Name: filepath.Base(runFile), Data: data}
		}

		a := buildApp(cfg, log)
		out, err := a.pipe.Run(ctx, in)
		if err != nil {
			return fmt.Errorf("%s failed: %w", failure.StageOf(err), err)
		}

		if runOut == "" {
			fmt.Fprintln(cmd.OutOrStdout(), out.Transcript)
			return nil
		}
		if err := os.WriteFile(runOut, []byte(out.Transcript), 0o644); err != nil {
			return err
		}
		log.Info().Str("out", runOut).Str("arena", out.ArenaID).Msg("transcript written")
		return nil
	},
}

func init() {
	runCmd.Flags().StringVarP(&runFile, "file", "f", "", "Local .mp3/.mp4 file to transcribe")
	runCmd.Flags().StringVarP(&runURL, "url", "u", "", "Video page link to fetch and transcribe")
	runCmd.Flags().StringVarP(&runOut, "out", "o", "", "Write the transcript here instead of stdout")
}
