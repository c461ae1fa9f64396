// Package failure defines the error kinds a transcription request can end in.
// Every failed request surfaces exactly one of them.
package failure

import (
	"errors"
	"fmt"
)

// Stage names used in logs, metrics labels and API error bodies.
const (
	StageStorage       = "storage"
	StageAcquisition   = "acquisition"
	StageTranscription = "transcription"
	StageUnknown       = "unknown"
)

// IOError is a local read/write failure: disk full, permissions, missing directory.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// Stage returns StageStorage.
func (e *IOError) Stage() string { return StageStorage }

// AcquisitionError is any failure obtaining a local audio artifact from a link.
type AcquisitionError struct {
	URL string
	Err error
}

func (e *AcquisitionError) Error() string {
	return fmt.Sprintf("fetch audio from %q: %v", e.URL, e.Err)
}

func (e *AcquisitionError) Unwrap() error { return e.Err }

// Stage returns StageAcquisition.
func (e *AcquisitionError) Stage() string { return StageAcquisition }

// TranscriptionError is any failure obtaining a transcript once an artifact exists.
type TranscriptionError struct {
	Path string
	Err  error
}

func (e *TranscriptionError) Error() string {
	return fmt.Sprintf("transcribe %s: %v", e.Path, e.Err)
}

func (e *TranscriptionError) Unwrap() error { return e.Err }

// Stage returns StageTranscription.
func (e *TranscriptionError) Stage() string { return StageTranscription }

// Acquisition wraps err as an AcquisitionError for url. Returns nil for a nil err.
func Acquisition(url string, err error) error {
	if err == nil {
		return nil
	}
	return &AcquisitionError{URL: url, Err: err}
}

// Transcription wraps err as a TranscriptionError for path. Returns nil for a nil err.
func Transcription(path string, err error) error {
	if err == nil {
		return nil
	}
	return &TranscriptionError{Path: path, Err: err}
}

// IO wraps err as an IOError. Returns nil for a nil err.
func IO(op, path string, err error) error {
	if err == nil {
		return nil
	}
	return &IOError{Op: op, Path: path, Err: err}
}

// StageOf reports which stage err belongs to. Unclassified errors return StageUnknown.
func StageOf(err error) string {
	var staged interface{ Stage() string }
	if errors.As(err, &staged) {
		return staged.Stage()
	}
	return StageUnknown
}

// Cause returns the innermost message of a classified error, suitable for
// display next to a generic headline. Unclassified errors return err.Error().
func Cause(err error) string {
	if err == nil {
		return ""
	}
	var (
		ioErr  *IOError
		acqErr *AcquisitionError
		trErr  *TranscriptionError
	)
	switch {
	case errors.As(err, &acqErr):
		return acqErr.Err.Error()
	case errors.As(err, &trErr):
		return trErr.Err.Error()
	case errors.As(err, &ioErr):
		return ioErr.Err.Error()
	}
	return err.Error()
}
