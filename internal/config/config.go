package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	DeepgramAPIKey string        `env:"DEEPGRAM_API_KEY,required,notEmpty"`
	DeepgramURL    string        `env:"DEEPGRAM_URL" envDefault:"https://api.deepgram.com"`
	DeepgramModel  string        `env:"DEEPGRAM_MODEL" envDefault:"nova-3"`
	Language       string        `env:"TRANSCRIBE_LANGUAGE" envDefault:"en"`
	Timeout        time.Duration `env:"TRANSCRIBE_TIMEOUT" envDefault:"10m"`

	ScratchDir       string        `env:"SCRATCH_DIR"`
	ScratchRetention time.Duration `env:"SCRATCH_RETENTION" envDefault:"24h"`

	YtDlpPath    string `env:"YTDLP_PATH" envDefault:"yt-dlp"`
	AudioFormat  string `env:"AUDIO_FORMAT" envDefault:"mp3"`
	AudioQuality string `env:"AUDIO_QUALITY" envDefault:"192K"`

	MaxUploadMB      int      `env:"MAX_UPLOAD_MB" envDefault:"500"`
	UploadExtensions []string `env:"UPLOAD_EXTENSIONS" envSeparator:"," envDefault:"mp3,mp4"`

	HTTPAddr     string        `env:"HTTP_ADDR" envDefault:":8080"`
	ReadTimeout  time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"5m"`
	WriteTimeout time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"15m"`
	IdleTimeout  time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"120s"`

	AuthToken string `env:"AUTH_TOKEN"`
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
}

// Overrides holds CLI flag values that take priority over env vars.
type Overrides struct {
	EnvFile    string
	HTTPAddr   string
	LogLevel   string
	ScratchDir string
	YtDlpPath  string
}

// Load reads configuration from .env file, environment variables, and CLI overrides.
// Priority: CLI flags > environment variables > .env file > struct defaults.
func Load(overrides Overrides) (*Config, error) {
	// Load .env file (silent if missing)
	envFile := overrides.EnvFile
	if envFile == "" {
		envFile = ".env"
	}
	if _, err := os.Stat(envFile); err == nil {
		_ = godotenv.Load(envFile)
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	if overrides.HTTPAddr != "" {
		cfg.HTTPAddr = overrides.HTTPAddr
	}
	if overrides.LogLevel != "" {
		cfg.LogLevel = overrides.LogLevel
	}
	if overrides.ScratchDir != "" {
		cfg.ScratchDir = overrides.ScratchDir
	}
	if overrides.YtDlpPath != "" {
		cfg.YtDlpPath = overrides.YtDlpPath
	}

	if cfg.ScratchDir == "" {
		cfg.ScratchDir = filepath.Join(os.TempDir(), "scribe")
	}
	cfg.UploadExtensions = normalizeExtensions(cfg.UploadExtensions)

	return cfg, nil
}

// MaxUploadBytes returns the upload size limit in bytes. Zero or negative means unlimited.
func (c *Config) MaxUploadBytes() int64 {
	if c.MaxUploadMB <= 0 {
		return 0
	}
	return int64(c.MaxUploadMB) << 20
}

// normalizeExtensions lowercases and strips leading dots so "MP3" and ".mp3" match.
func normalizeExtensions(exts []string) []string {
	var out []string
	for _, e := range exts {
		e = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(e), "."))
		if e != "" {
			out = append(out, e)
		}
	}
	return out
}
