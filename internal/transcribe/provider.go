package transcribe

import (
	"context"

	"github.com/snarg/scribe/internal/storage"
)

// Provider is the interface for speech-to-text backends.
type Provider interface {
	Transcribe(ctx context.Context, art storage.Artifact) (*Response, error)
	Name() string  // "deepgram"
	Model() string // model identifier for logs
}

// Options is the fixed request shaping sent with every transcription.
// It is built once at startup and never edited per request.
type Options struct {
	Model       string
	Language    string
	SmartFormat bool
	Paragraphs  bool
	Diarize     bool
}

// DefaultOptions returns the process-wide defaults: nova-3, English, with
// smart formatting, paragraphs and speaker diarization enabled.
func DefaultOptions() Options {
	return Options{
		Model:       "nova-3",
		Language:    "en",
		SmartFormat: true,
		Paragraphs:  true,
		Diarize:     true,
	}
}

// Response is the transcription result of the first channel's primary alternative.
type Response struct {
	Transcript string
	Confidence float64
	Duration   float64 // audio duration in seconds
	RequestID  string
	Channels   int
}
