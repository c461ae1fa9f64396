package watch

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"github.com/snarg/scribe/internal/audio"
	"github.com/snarg/scribe/internal/pipeline"
	"github.com/snarg/scribe/internal/storage"
)

const defaultDebounce = 500 * time.Millisecond

// Runner executes one transcription request.
type Runner interface {
	Run(ctx context.Context, in pipeline.Input) (pipeline.Outcome, error)
}

// Options configures a Watcher.
type Options struct {
	Dir        string
	Extensions []string
	// Debounce coalesces Create+Write bursts so a file is read once fully written.
	Debounce time.Duration
	// Backfill transcribes files already in Dir that have no transcript yet.
	Backfill bool
	Workers  int
	Log      zerolog.Logger
}

// Watcher monitors a folder for new media files and writes a transcript next
// to each one as <name>.txt.
type Watcher struct {
	runner     Runner
	store      *storage.LocalStore
	dir        string
	extensions []string
	debounce   time.Duration
	backfill   bool
	workers    int
	log        zerolog.Logger

	watcher *fsnotify.Watcher
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	debounceMu     sync.Mutex
	debounceTimers map[string]*time.Timer
	stopped        bool

	filesProcessed atomic.Int64
	filesFailed    atomic.Int64
	status         atomic.Value // string: "starting", "backfilling", "watching", "stopped"
}

// New creates a watcher. Call Start to begin watching.
func New(runner Runner, opts Options) *Watcher {
	if opts.Debounce <= 0 {
		opts.Debounce = defaultDebounce
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	w := &Watcher{
		runner:         runner,
		store:          storage.NewLocalStore(),
		dir:            opts.Dir,
		extensions:     opts.Extensions,
		debounce:       opts.Debounce,
		backfill:       opts.Backfill,
		workers:        opts.Workers,
		log:            opts.Log.With().Str("component", "watcher").Logger(),
		debounceTimers: make(map[string]*time.Timer),
	}
	w.status.Store("starting")
	return w
}

// Start adds the folder tree to fsnotify and begins processing events.
// Cancelling ctx stops the watcher as Stop does.
func (w *Watcher) Start(ctx context.Context) error {
	info, err := os.Stat(w.dir)
	if err != nil {
		return fmt.Errorf("watch dir: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("watch dir %s: not a directory", w.dir)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	w.watcher = fw

	dirCount := 0
	err = filepath.WalkDir(w.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			w.log.Warn().Err(err).Str("path", path).Msg("error walking directory")
			return nil
		}
		if d.IsDir() {
			if addErr := fw.Add(path); addErr != nil {
				w.log.Warn().Err(addErr).Str("path", path).Msg("failed to watch directory")
			} else {
				dirCount++
			}
		}
		return nil
	})
	if err != nil {
		fw.Close()
		return err
	}

	w.ctx, w.cancel = context.WithCancel(ctx)

	w.log.Info().
		Int("directories", dirCount).
		Str("watch_dir", w.dir).
		Strs("extensions", w.extensions).
		Msg("file watcher initialized")

	w.wg.Add(1)
	go w.watchLoop()

	if w.backfill {
		w.wg.Add(1)
		go w.runBackfill()
	} else {
		w.status.Store("watching")
	}
	return nil
}

// Stop closes the fsnotify watcher, cancels in-flight work and waits for it.
func (w *Watcher) Stop() {
	w.status.Store("stopped")
	if w.cancel != nil {
		w.cancel()
	}
	if w.watcher != nil {
		w.watcher.Close()
	}

	w.debounceMu.Lock()
	w.stopped = true
	for path, t := range w.debounceTimers {
		t.Stop()
		delete(w.debounceTimers, path)
	}
	w.debounceMu.Unlock()

	w.wg.Wait()
	w.log.Info().
		Int64("files_processed", w.filesProcessed.Load()).
		Int64("files_failed", w.filesFailed.Load()).
		Msg("file watcher stopped")
}

// Status returns the current watcher state.
func (w *Watcher) Status() string {
	s, _ := w.status.Load().(string)
	return s
}

// Stats returns how many files were transcribed and how many failed.
func (w *Watcher) Stats() (processed, failed int64) {
	return w.filesProcessed.Load(), w.filesFailed.Load()
}

func (w *Watcher) watchLoop() {
	defer w.wg.Done()
	for {
		select {
		case <-w.ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}

			// New subdirectory: watch it too
			if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
				if err := w.watcher.Add(event.Name); err != nil {
					w.log.Warn().Err(err).Str("path", event.Name).Msg("failed to watch new directory")
				}
				continue
			}

			if !w.wants(event.Name) {
				continue
			}
			w.scheduleProcess(event.Name)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Error().Err(err).Msg("fsnotify error")
		}
	}
}

// scheduleProcess debounces processing so rapid Create+Write events on the
// same file collapse into one run after the file settles.
func (w *Watcher) scheduleProcess(path string) {
	w.debounceMu.Lock()
	defer w.debounceMu.Unlock()

	if t, ok := w.debounceTimers[path]; ok {
		t.Reset(w.debounce)
		return
	}

	w.debounceTimers[path] = time.AfterFunc(w.debounce, func() {
		w.debounceMu.Lock()
		_, pending := w.debounceTimers[path]
		delete(w.debounceTimers, path)
		if !pending || w.stopped {
			w.debounceMu.Unlock()
			return
		}
		w.wg.Add(1)
		w.debounceMu.Unlock()

		defer w.wg.Done()
		w.Process(w.ctx, path)
	})
}

// Process transcribes one media file and writes the transcript beside it.
// The file is submitted to the pipeline as an upload.
func (w *Watcher) Process(ctx context.Context, path string) error {
	log := w.log.With().Str("path", path).Logger()

	data, err := os.ReadFile(path)
	if err != nil {
		w.filesFailed.Add(1)
		log.Warn().Err(err).Msg("failed to read media file")
		return err
	}

	out, err := w.runner.Run(ctx, pipeline.Input{
		Upload: &pipeline.Upload{Name: filepath.Base(path), Data: data},
	})
	if err != nil {
		w.filesFailed.Add(1)
		log.Warn().Err(err).Str("state", string(out.State)).Msg("failed to transcribe watched file")
		return err
	}

	dest := TranscriptPath(path)
	sibling := storage.Arena{Dir: filepath.Dir(dest)}
	if _, err := w.store.Save(ctx, sibling, filepath.Base(dest), []byte(out.Transcript)); err != nil {
		w.filesFailed.Add(1)
		log.Warn().Err(err).Msg("failed to write transcript")
		return err
	}

	w.filesProcessed.Add(1)
	log.Info().Str("transcript", dest).Str("arena", out.ArenaID).Msg("watched file transcribed")
	return nil
}

// runBackfill transcribes accepted files already present that have no
// transcript yet, using a small worker pool.
func (w *Watcher) runBackfill() {
	defer w.wg.Done()
	w.status.Store("backfilling")
	start := time.Now()

	var files []string
	_ = filepath.WalkDir(w.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || !w.wants(path) {
			return nil
		}
		if _, err := os.Stat(TranscriptPath(path)); err == nil {
			return nil
		}
		files = append(files, path)
		return nil
	})

	w.log.Info().Int("files", len(files)).Msg("backfill starting")

	work := make(chan string)
	var wg sync.WaitGroup
	for i := 0; i < w.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for path := range work {
				w.Process(w.ctx, path)
			}
		}()
	}

	for _, path := range files {
		select {
		case <-w.ctx.Done():
			close(work)
			wg.Wait()
			w.log.Info().Msg("backfill interrupted by shutdown")
			return
		case work <- path:
		}
	}
	close(work)
	wg.Wait()

	w.status.Store("watching")
	w.log.Info().Int("files", len(files)).Dur("elapsed", time.Since(start)).Msg("backfill complete")
}

// wants reports whether path is a media file the watcher should transcribe.
// Hidden files and partial downloads are ignored.
func (w *Watcher) wants(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") {
		return false
	}
	return audio.IsAccepted(base, w.extensions)
}

// TranscriptPath returns where the transcript for a media file is written:
// the same directory and stem with a .txt extension.
func TranscriptPath(mediaPath string) string {
	return strings.TrimSuffix(mediaPath, filepath.Ext(mediaPath)) + ".txt"
}
