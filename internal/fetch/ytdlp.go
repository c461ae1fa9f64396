package fetch

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/lrstanley/go-ytdlp"
)

// YtDlp is a Downloader backed by the yt-dlp executable.
type YtDlp struct {
	executable string
}

// NewYtDlp creates a yt-dlp downloader. An empty executable uses "yt-dlp" from PATH.
func NewYtDlp(executable string) *YtDlp {
	return &YtDlp{executable: executable}
}

// Available reports whether the configured yt-dlp executable can be found.
func (y *YtDlp) Available() bool {
	exe := y.executable
	if exe == "" {
		exe = "yt-dlp"
	}
	_, err := exec.LookPath(exe)
	return err == nil
}

// Download selects the best audio-only stream (falling back to the best
// combined stream), downloads it and has yt-dlp's ffmpeg post-processor
// transcode it to opts.AudioFormat at opts.AudioQuality.
func (y *YtDlp) Download(ctx context.Context, url string, opts DownloadOptions) error {
	cmd := ytdlp.New().
		Format(opts.Format).
		ExtractAudio().
		AudioFormat(opts.AudioFormat).
		AudioQuality(opts.AudioQuality).
		Output(opts.OutputTemplate).
		NoPlaylist().
		Quiet()
	if y.executable != "" {
		cmd.SetExecutable(y.executable)
	}

	// "--" ends option parsing so a link starting with "-" stays a URL.
	res, err := cmd.Run(ctx, "--", url)
	if err != nil {
		if res != nil {
			if msg := lastErrorLine(res.Stderr); msg != "" {
				return fmt.Errorf("yt-dlp: %s", msg)
			}
		}
		return fmt.Errorf("yt-dlp: %w", err)
	}
	return nil
}

// lastErrorLine picks the most useful line from yt-dlp's stderr: the last
// "ERROR:" line if present, otherwise the last non-empty line.
func lastErrorLine(stderr string) string {
	lines := strings.Split(strings.TrimSpace(stderr), "\n")
	last := ""
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if line == "" {
			continue
		}
		if last == "" {
			last = line
		}
		if strings.HasPrefix(line, "ERROR:") {
			return strings.TrimSpace(strings.TrimPrefix(line, "ERROR:"))
		}
	}
	return last
}
