// Package fetch turns a remote video/audio link into a local audio artifact.
// Extraction and transcoding are delegated to yt-dlp (and the ffmpeg it spawns);
// this package only picks options, locates the result and classifies failures.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog"
	"github.com/snarg/scribe/internal/failure"
	"github.com/snarg/scribe/internal/storage"
)

// outputStem is the basename (without extension) every download is written to.
const outputStem = "audio"

// DownloadOptions are the extractor settings for a single download.
type DownloadOptions struct {
	Format         string // stream selector, e.g. "bestaudio/best"
	AudioFormat    string // target codec, e.g. "mp3"
	AudioQuality   string // e.g. "192K"
	OutputTemplate string // yt-dlp output template inside the arena
}

// Downloader runs the external extractor for one URL.
type Downloader interface {
	Download(ctx context.Context, url string, opts DownloadOptions) error
}

// Options configures a Fetcher.
type Options struct {
	AudioFormat  string
	AudioQuality string
}

// Fetcher downloads the best available audio for a link into an arena.
type Fetcher struct {
	dl   Downloader
	opts Options
	log  zerolog.Logger
}

// New creates a Fetcher. Empty options fall back to mp3 at 192K.
func New(dl Downloader, opts Options, log zerolog.Logger) *Fetcher {
	if opts.AudioFormat == "" {
		opts.AudioFormat = "mp3"
	}
	if opts.AudioQuality == "" {
		opts.AudioQuality = "192K"
	}
	return &Fetcher{
		dl:   dl,
		opts: opts,
		log:  log.With().Str("component", "fetch").Logger(),
	}
}

// Fetch downloads url into arena and returns the transcoded artifact.
// The URL is not validated locally beyond being non-blank; the extractor
// rejects malformed or unsupported links itself. Every failure is a
// *failure.AcquisitionError carrying the extractor's message.
func (f *Fetcher) Fetch(ctx context.Context, arena storage.Arena, url string) (storage.Artifact, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return storage.Artifact{}, failure.Acquisition(url, errors.New("empty URL"))
	}

	opts := DownloadOptions{
		Format:         "bestaudio/best",
		AudioFormat:    f.opts.AudioFormat,
		AudioQuality:   f.opts.AudioQuality,
		OutputTemplate: arena.Path(outputStem + ".%(ext)s"),
	}

	f.log.Debug().Str("url", url).Str("arena", arena.ID).Msg("downloading audio")
	if err := f.dl.Download(ctx, url, opts); err != nil {
		return storage.Artifact{}, failure.Acquisition(url, err)
	}

	path := f.locate(arena)
	if path == "" {
		return storage.Artifact{}, failure.Acquisition(url, errors.New("no extractable audio: extractor produced no output file"))
	}
	art, err := storage.ArtifactAt(path)
	if err != nil {
		return storage.Artifact{}, failure.Acquisition(url, fmt.Errorf("stat output: %w", err))
	}
	return art, nil
}

// locate finds the downloaded file. The transcoded target is preferred; any
// other finished audio.* file is accepted when the post-processor kept a
// different container.
func (f *Fetcher) locate(arena storage.Arena) string {
	want := arena.Path(outputStem + "." + f.opts.AudioFormat)
	if art, err := storage.ArtifactAt(want); err == nil {
		return art.Path
	}

	matches, _ := filepath.Glob(arena.Path(outputStem + ".*"))
	sort.Strings(matches)
	for _, m := range matches {
		switch filepath.Ext(m) {
		case ".part", ".ytdl", ".tmp":
			continue
		}
		return m
	}
	return ""
}
