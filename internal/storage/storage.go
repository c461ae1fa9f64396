package storage

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/snarg/scribe/internal/audio"
	"github.com/snarg/scribe/internal/failure"
)

// TranscriptFile is the name of the transcript written into each arena.
const TranscriptFile = "transcript.txt"

// Artifact is a locally stored audio file produced by an acquisition step.
type Artifact struct {
	Path   string
	Format string // lowercase extension, e.g. "mp3"
	Size   int64
}

// ArtifactAt stats path and describes it as an Artifact.
func ArtifactAt(path string) (Artifact, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Artifact{}, err
	}
	if info.IsDir() {
		return Artifact{}, fmt.Errorf("%s is a directory", path)
	}
	return Artifact{Path: path, Format: audio.Format(path), Size: info.Size()}, nil
}

// Arena is a per-request scratch directory. Every artifact of a request lives
// inside its arena, so concurrent requests never share a path.
type Arena struct {
	ID  string
	Dir string
}

// Path returns the absolute path of name inside the arena.
func (a Arena) Path(name string) string {
	return filepath.Join(a.Dir, name)
}

// Scratch allocates arenas under a root directory.
type Scratch struct {
	root string
}

// NewScratch creates an arena allocator rooted at dir. The directory is
// created lazily on first allocation.
func NewScratch(dir string) *Scratch {
	return &Scratch{root: dir}
}

// Root returns the scratch root directory.
func (s *Scratch) Root() string { return s.root }

// Allocate creates a fresh arena named by a random UUID.
func (s *Scratch) Allocate() (Arena, error) {
	id := uuid.NewString()
	dir := filepath.Join(s.root, id)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Arena{}, failure.IO("mkdir", dir, err)
	}
	return Arena{ID: id, Dir: dir}, nil
}

// Open returns an existing arena. IDs that are not UUIDs are rejected so a
// caller-supplied ID can never escape the scratch root.
func (s *Scratch) Open(id string) (Arena, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Arena{}, fmt.Errorf("invalid arena id %q: %w", id, fs.ErrNotExist)
	}
	dir := filepath.Join(s.root, id)
	info, err := os.Stat(dir)
	if err != nil {
		return Arena{}, err
	}
	if !info.IsDir() {
		return Arena{}, fmt.Errorf("arena %s: %w", id, fs.ErrNotExist)
	}
	return Arena{ID: id, Dir: dir}, nil
}

// Usage walks the scratch root and reports the number of arenas and the
// total bytes they hold. A missing root reports zero.
func (s *Scratch) Usage() (arenas int, bytes int64) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return 0, 0
	}
	for _, e := range entries {
		if e.IsDir() {
			arenas++
		}
	}
	filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if info, err := d.Info(); err == nil {
			bytes += info.Size()
		}
		return nil
	})
	return arenas, bytes
}

// BackgroundService is a stoppable background goroutine.
type BackgroundService interface {
	Start()
	Stop()
}
