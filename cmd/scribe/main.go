package main

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/snarg/scribe/internal/config"
	"github.com/snarg/scribe/internal/fetch"
	"github.com/snarg/scribe/internal/pipeline"
	"github.com/snarg/scribe/internal/storage"
	"github.com/snarg/scribe/internal/transcribe"
	"github.com/spf13/cobra"
)

var (
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
)

var overrides config.Overrides

var rootCmd = &cobra.Command{
	Use:   "scribe",
	Short: "Transcribe uploaded media or remote video links with Deepgram",
	Long: `scribe turns an uploaded audio/video file, or a link to a video page,
into a plain-text transcript.

- Links are resolved and transcoded to audio with yt-dlp
- Audio is transcribed by Deepgram's pre-recorded API
- Each request works in its own scratch directory`,
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(serveCmd, runCmd, watchCmd, versionCmd)

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&overrides.EnvFile, "env-file", "", "Path to .env file (default: .env)")
	pf.StringVar(&overrides.LogLevel, "log-level", "", "Log level: debug, info, warn, error (env: LOG_LEVEL)")
	pf.StringVar(&overrides.ScratchDir, "scratch-dir", "", "Directory for per-request scratch space (env: SCRATCH_DIR)")
	pf.StringVar(&overrides.YtDlpPath, "yt-dlp", "", "Path to the yt-dlp executable (env: YTDLP_PATH)")
}

// setup loads config and builds the logger. Missing required settings abort
// before anything else starts.
func setup(component string) (*config.Config, zerolog.Logger) {
	cfg, err := config.Load(overrides)
	if err != nil {
		early := zerolog.New(os.Stderr).With().Timestamp().Logger()
		early.Fatal().Err(err).Msg("failed to load config")
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	log := zerolog.New(os.Stderr).With().Timestamp().Str("cmd", component).Logger().Level(level)
	return cfg, log
}

// app holds the wired collaborators shared by every subcommand.
type app struct {
	scratch *storage.Scratch
	ytdlp   *fetch.YtDlp
	deep    *transcribe.DeepgramClient
	pipe    *pipeline.Pipeline
}

func buildApp(cfg *config.Config, log zerolog.Logger) *app {
	scratch := storage.NewScratch(cfg.ScratchDir)
	ytdlp := fetch.NewYtDlp(cfg.YtDlpPath)

	opts := transcribe.DefaultOptions()
	opts.Model = cfg.DeepgramModel
	opts.Language = cfg.Language
	deep := transcribe.NewDeepgramClient(cfg.DeepgramURL, cfg.DeepgramAPIKey, opts, cfg.Timeout)

	pipe := pipeline.New(pipeline.Options{
		Scratch: scratch,
		Store:   storage.NewLocalStore(),
		Fetcher: fetch.New(ytdlp, fetch.Options{
			AudioFormat:  cfg.AudioFormat,
			AudioQuality: cfg.AudioQuality,
		}, log),
		Transcriber: deep,
		Log:         log,
	})

	log.Debug().
		Str("scratch_dir", scratch.Root()).
		Str("provider", deep.Name()).
		Str("model", deep.Model()).
		Bool("yt_dlp_available", ytdlp.Available()).
		Msg("pipeline configured")

	return &app{scratch: scratch, ytdlp: ytdlp, deep: deep, pipe: pipe}
}
