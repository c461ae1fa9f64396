package audio

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// contentTypes maps lowercase extensions to the MIME type sent to the
// transcription service and to browsers for playback.
var contentTypes = map[string]string{
	"mp3":  "audio/mpeg",
	"mp4":  "video/mp4",
	"m4a":  "audio/mp4",
	"wav":  "audio/wav",
	"ogg":  "audio/ogg",
	"opus": "audio/opus",
	"webm": "audio/webm",
	"flac": "audio/flac",
	"aac":  "audio/aac",
}

// Format returns the lowercase extension of path without the dot ("mp3").
func Format(path string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
}

// ContentType returns the MIME type for path based on its extension.
// Unknown extensions return application/octet-stream.
func ContentType(path string) string {
	if ct, ok := contentTypes[Format(path)]; ok {
		return ct
	}
	return "application/octet-stream"
}

// IsAccepted reports whether name has one of the allowed extensions.
// allowed entries are lowercase without a leading dot.
func IsAccepted(name string, allowed []string) bool {
	ext := Format(name)
	if ext == "" {
		return false
	}
	for _, a := range allowed {
		if a == ext {
			return true
		}
	}
	return false
}

// Resolve finds the audio artifact inside an arena directory.
// Priority: 1) a file whose stem is "audio" (remote downloads)  2) the first
// other regular file, by name. Files in skip and hidden files are ignored.
// Returns "" if nothing suitable exists.
func Resolve(dir string, skip ...string) string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}

	skipped := make(map[string]bool, len(skip))
	for _, s := range skip {
		skipped[s] = true
	}

	var candidates []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || skipped[name] || strings.HasPrefix(name, ".") {
			continue
		}
		if strings.TrimSuffix(name, filepath.Ext(name)) == "audio" {
			return filepath.Join(dir, name)
		}
		candidates = append(candidates, name)
	}
	if len(candidates) == 0 {
		return ""
	}
	sort.Strings(candidates)
	return filepath.Join(dir, candidates[0])
}
