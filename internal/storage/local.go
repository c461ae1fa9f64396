package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/snarg/scribe/internal/failure"
)

// LocalStore persists uploaded bytes into an arena on the local filesystem.
type LocalStore struct{}

// NewLocalStore creates a local filesystem store.
func NewLocalStore() *LocalStore {
	return &LocalStore{}
}

// Store writes data verbatim to a path derived from name inside the arena and
// returns the resulting artifact. An existing file at that path is replaced.
// The bytes are not validated as audio.
func (s *LocalStore) Store(ctx context.Context, arena Arena, name string, data []byte) (Artifact, error) {
	clean, err := SanitizeName(name)
	if err != nil {
		return Artifact{}, failure.IO("store", name, err)
	}
	if clean == TranscriptFile {
		clean = "upload-" + clean
	}
	path, err := s.Save(ctx, arena, clean, data)
	if err != nil {
		return Artifact{}, err
	}
	art, err := ArtifactAt(path)
	if err != nil {
		return Artifact{}, failure.IO("stat", path, err)
	}
	return art, nil
}

// Save atomically writes data to name inside the arena and returns its path.
// Failures are returned as *failure.IOError.
func (s *LocalStore) Save(ctx context.Context, arena Arena, name string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", failure.IO("save", name, err)
	}
	path := arena.Path(name)
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", failure.IO("mkdir", dir, err)
	}

	// Atomic write: temp file + rename
	tmp, err := os.CreateTemp(dir, ".audio-*.tmp")
	if err != nil {
		return "", failure.IO("create temp", dir, err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return "", failure.IO("write", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return "", failure.IO("close", path, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return "", failure.IO("rename", path, err)
	}
	return path, nil
}

// SanitizeName reduces an uploaded filename to its base name. Both slash
// styles are stripped since browsers on Windows may send full paths. A
// leading dot is replaced so ".mp3" is stored as "upload.mp3".
func SanitizeName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		name = name[i+1:]
	}
	switch name {
	case "", ".", "..":
		return "", errors.New("empty or invalid filename")
	}
	// Hidden names are invisible to audio lookup.
	if strings.HasPrefix(name, ".") {
		name = "upload." + strings.TrimLeft(name, ".")
	}
	return name, nil
}
