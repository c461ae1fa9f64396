package pipeline

import (
	"errors"
	"strings"

	"github.com/snarg/scribe/internal/storage"
)

var errNilResponse = errors.New("transcriber returned no response")

// Kind identifies which input variant a request carries.
type Kind int

const (
	KindNone Kind = iota
	KindUpload
	KindLink
)

func (k Kind) String() string {
	switch k {
	case KindUpload:
		return "upload"
	case KindLink:
		return "link"
	default:
		return "none"
	}
}

// Upload is an in-memory uploaded file.
type Upload struct {
	Name string
	Data []byte
}

// Input is what a user submitted: an uploaded file, a link, or nothing yet.
// If both are present the upload wins and the link is ignored.
type Input struct {
	Upload *Upload
	URL    string
}

// Kind reports which acquisition path the input selects. A link made only of
// whitespace counts as absent.
func (in Input) Kind() Kind {
	if in.Upload != nil {
		return KindUpload
	}
	if in.link() != "" {
		return KindLink
	}
	return KindNone
}

func (in Input) link() string {
	return strings.TrimSpace(in.URL)
}

// State is a request's position in the acquire → transcribe sequence.
type State string

const (
	StateIdle                State = "idle"
	StateAcquiring           State = "acquiring"
	StateAcquired            State = "acquired"
	StateTranscribing        State = "transcribing"
	StateDone                State = "done"
	StateAcquisitionFailed   State = "acquisition_failed"
	StateTranscriptionFailed State = "transcription_failed"
)

// Terminal reports whether no further transitions can happen from s.
// Idle is not terminal: it just means there is nothing to do yet.
func (s State) Terminal() bool {
	switch s {
	case StateDone, StateAcquisitionFailed, StateTranscriptionFailed:
		return true
	}
	return false
}

// Outcome describes how a request ended.
type Outcome struct {
	State          State
	Source         string // "upload" or "link"; empty when idle
	ArenaID        string
	Artifact       storage.Artifact
	Transcript     string
	TranscriptPath string
	Confidence     float64
	Duration       float64
}
