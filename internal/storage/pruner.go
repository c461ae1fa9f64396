package storage

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// ScratchPruner evicts arenas whose last modification is older than the
// retention window. Requests never clean up after themselves, so this is the
// only thing that reclaims scratch space.
type ScratchPruner struct {
	scratch   *Scratch
	retention time.Duration
	interval  time.Duration
	now       func() time.Time
	log       zerolog.Logger
	stop      chan struct{}
	stopOnce  sync.Once
}

// NewScratchPruner creates a pruner. A zero retention disables pruning.
func NewScratchPruner(scratch *Scratch, retention time.Duration, log zerolog.Logger) *ScratchPruner {
	return &ScratchPruner{
		scratch:   scratch,
		retention: retention,
		interval:  1 * time.Hour,
		now:       time.Now,
		log:       log.With().Str("component", "scratch-pruner").Logger(),
		stop:      make(chan struct{}),
	}
}

func (p *ScratchPruner) Start() {
	go p.loop()
}

func (p *ScratchPruner) Stop() {
	p.stopOnce.Do(func() { close(p.stop) })
}

func (p *ScratchPruner) loop() {
	// Run once on startup to clear any backlog from downtime
	p.Prune()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			p.Prune()
		case <-p.stop:
			return
		}
	}
}

// Prune removes expired arenas and returns how many were removed.
func (p *ScratchPruner) Prune() int {
	if p.retention <= 0 {
		return 0
	}

	entries, err := os.ReadDir(p.scratch.Root())
	if err != nil {
		if !os.IsNotExist(err) {
			p.log.Warn().Err(err).Msg("read scratch root failed")
		}
		return 0
	}

	cutoff := p.now().Add(-p.retention)
	var prunedCount int
	var prunedBytes int64

	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		dir := filepath.Join(p.scratch.Root(), e.Name())
		newest, size := arenaStats(dir)
		if newest.After(cutoff) {
			continue
		}
		if err := os.RemoveAll(dir); err != nil {
			p.log.Warn().Err(err).Str("arena", e.Name()).Msg("remove arena failed")
			continue
		}
		prunedCount++
		prunedBytes += size
	}

	if prunedCount > 0 {
		p.log.Info().
			Int("pruned", prunedCount).
			Str("freed", humanizeBytes(prunedBytes)).
			Msg("scratch prune complete")
	}
	return prunedCount
}

// arenaStats returns the newest modification time of the arena directory or
// any file in it, plus the total size of its files.
func arenaStats(dir string) (time.Time, int64) {
	var newest time.Time
	var size int64
	filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		if info.ModTime().After(newest) {
			newest = info.ModTime()
		}
		if !d.IsDir() {
			size += info.Size()
		}
		return nil
	})
	return newest, size
}

func humanizeBytes(b int64) string {
	const (
		KB = 1024
		MB = KB * 1024
		GB = MB * 1024
	)
	switch {
	case b >= GB:
		return fmt.Sprintf("%.1f GB", float64(b)/float64(GB))
	case b >= MB:
		return fmt.Sprintf("%.1f MB", float64(b)/float64(MB))
	case b >= KB:
		return fmt.Sprintf("%.1f KB", float64(b)/float64(KB))
	default:
		return fmt.Sprintf("%d B", b)
	}
}
