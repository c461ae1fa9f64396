package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/snarg/scribe/internal/failure"
)

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// ErrorResponse is the standard error response body.
type ErrorResponse struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
	Stage  string `json:"stage,omitempty"`
}

// WriteError writes a JSON error response.
func WriteError(w http.ResponseWriter, status int, msg string) {
	WriteJSON(w, status, ErrorResponse{Error: msg})
}

// WriteErrorDetail writes a JSON error response with detail.
func WriteErrorDetail(w http.ResponseWriter, status int, msg, detail string) {
	WriteJSON(w, status, ErrorResponse{Error: msg, Detail: detail})
}

// WriteFailure maps a classified pipeline error to its HTTP status and writes
// the error body. Detail carries the underlying cause.
func WriteFailure(w http.ResponseWriter, err error) {
	status, msg := failureStatus(err)
	WriteJSON(w, status, ErrorResponse{
		Error:  msg,
		Detail: failure.Cause(err),
		Stage:  failure.StageOf(err),
	})
}

func failureStatus(err error) (int, string) {
	var (
		ioErr  *failure.IOError
		acqErr *failure.AcquisitionError
		trErr  *failure.TranscriptionError
	)
	switch {
	case errors.As(err, &acqErr):
		return http.StatusUnprocessableEntity, "could not acquire audio"
	case errors.As(err, &trErr):
		return http.StatusBadGateway, "transcription failed"
	case errors.As(err, &ioErr):
		return http.StatusInternalServerError, "storage error"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}
