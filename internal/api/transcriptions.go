package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/snarg/scribe/internal/audio"
	"github.com/snarg/scribe/internal/pipeline"
	"github.com/snarg/scribe/internal/storage"
)

// formOverhead is slack on top of the upload limit for multipart framing and
// the url field.
const formOverhead = 1 << 20

// Runner executes one transcription request.
type Runner interface {
	Run(ctx context.Context, in pipeline.Input) (pipeline.Outcome, error)
}

// Scratch resolves arenas by ID and exposes the scratch root for health checks.
type Scratch interface {
	Open(id string) (storage.Arena, error)
	Root() string
}

// TranscriptionResponse is the JSON body of a transcription request.
type TranscriptionResponse struct {
	ID          string  `json:"id,omitempty"`
	State       string  `json:"state"`
	Source      string  `json:"source,omitempty"`
	Transcript  string  `json:"transcript,omitempty"`
	Confidence  float64 `json:"confidence,omitempty"`
	Duration    float64 `json:"duration,omitempty"`
	AudioFormat string  `json:"audio_format,omitempty"`
	AudioBytes  int64   `json:"audio_bytes,omitempty"`
	DownloadURL string  `json:"download_url,omitempty"`
	AudioURL    string  `json:"audio_url,omitempty"`
}

// TranscriptionsHandler accepts uploads or links and serves finished results.
type TranscriptionsHandler struct {
	runner     Runner
	scratch    Scratch
	maxUpload  int64
	extensions []string
	log        zerolog.Logger
}

// NewTranscriptionsHandler creates the handler. maxUpload <= 0 disables the
// size limit.
func NewTranscriptionsHandler(runner Runner, scratch Scratch, maxUpload int64, extensions []string, log zerolog.Logger) *TranscriptionsHandler {
	return &TranscriptionsHandler{
		runner:     runner,
		scratch:    scratch,
		maxUpload:  maxUpload,
		extensions: extensions,
		log:        log.With().Str("handler", "transcriptions").Logger(),
	}
}

// Routes registers transcription endpoints.
func (h *TranscriptionsHandler) Routes(r chi.Router) {
	r.Post("/transcriptions", h.Create)
	r.Get("/transcriptions/{id}/transcript.txt", h.Transcript)
	r.Get("/transcriptions/{id}/audio", h.Audio)
}

// Create handles POST /api/v1/transcriptions.
// Accepts a multipart form with a "file" part and/or a "url" field. A form
// with neither returns the idle state.
func (h *TranscriptionsHandler) Create(w http.ResponseWriter, r *http.Request) {
	if h.maxUpload > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload+formOverhead)
	}
	if err := r.ParseMultipartForm(32 << 20); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			WriteErrorDetail(w, http.StatusRequestEntityTooLarge, "upload too large", h.limitDetail())
			return
		}
		WriteErrorDetail(w, http.StatusBadRequest, "invalid form", err.Error())
		return
	}
	if r.MultipartForm != nil {
		defer r.MultipartForm.RemoveAll()
	}

	in := pipeline.Input{URL: r.FormValue("url")}

	if file, header, err := r.FormFile("file"); err == nil {
		defer file.Close()
		// Browsers send an empty part when no file was chosen.
		if header.Filename != "" || header.Size > 0 {
			if !audio.IsAccepted(header.Filename, h.extensions) {
				WriteErrorDetail(w, http.StatusUnsupportedMediaType, "unsupported file type",
					fmt.Sprintf("accepted extensions: %s", strings.Join(h.extensions, ", ")))
				return
			}
			if h.maxUpload > 0 && header.Size > h.maxUpload {
				WriteErrorDetail(w, http.StatusRequestEntityTooLarge, "upload too large", h.limitDetail())
				return
			}
			data, readErr := io.ReadAll(file)
			if readErr != nil {
				WriteErrorDetail(w, http.StatusBadRequest, "failed to read upload", readErr.Error())
				return
			}
			in.Upload = &pipeline.Upload{Name: header.Filename, Data: data}
		}
	} else if !errors.Is(err, http.ErrMissingFile) && !errors.Is(err, http.ErrNotMultipart) {
		WriteErrorDetail(w, http.StatusBadRequest, "invalid file part", err.Error())
		return
	}

	out, err := h.runner.Run(r.Context(), in)
	if err != nil {
		h.log.Warn().Err(err).Str("arena", out.ArenaID).Str("state", string(out.State)).Msg("transcription request failed")
		WriteFailure(w, err)
		return
	}

	resp := TranscriptionResponse{State: string(out.State)}
	if out.State == pipeline.StateDone {
		resp.ID = out.ArenaID
		resp.Source = out.Source
		resp.Transcript = out.Transcript
		resp.Confidence = out.Confidence
		resp.Duration = out.Duration
		resp.AudioFormat = out.Artifact.Format
		resp.AudioBytes = out.Artifact.Size
		resp.DownloadURL = "/api/v1/transcriptions/" + out.ArenaID + "/transcript.txt"
		resp.AudioURL = "/api/v1/transcriptions/" + out.ArenaID + "/audio"
	}
	WriteJSON(w, http.StatusOK, resp)
}

// Transcript handles GET /api/v1/transcriptions/{id}/transcript.txt.
func (h *TranscriptionsHandler) Transcript(w http.ResponseWriter, r *http.Request) {
	arena, ok := h.openArena(w, r)
	if !ok {
		return
	}
	f, err := os.Open(arena.Path(storage.TranscriptFile))
	if err != nil {
		WriteError(w, http.StatusNotFound, "transcript not found")
		return
	}
	defer f.Close()
	fi, err := f.Stat()
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "failed to read transcript")
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+storage.TranscriptFile+`"`)
	http.ServeContent(w, r, storage.TranscriptFile, fi.ModTime(), f)
}

// Audio handles GET /api/v1/transcriptions/{id}/audio.
func (h *TranscriptionsHandler) Audio(w http.ResponseWriter, r *http.Request) {
	arena, ok := h.openArena(w, r)
	if !ok {
		return
	}
	path := audio.Resolve(arena.Dir, storage.TranscriptFile)
	if path == "" {
		WriteError(w, http.StatusNotFound, "audio not found")
		return
	}
	f, err := os.Open(path)
	if err != nil {
		WriteError(w, http.StatusNotFound, "audio not found")
		return
	}
	defer f.Close()
	fi, err := f.Stat()
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "failed to read audio")
		return
	}

	w.Header().Set("Content-Type", audio.ContentType(path))
	http.ServeContent(w, r, filepath.Base(path), fi.ModTime(), f)
}

func (h *TranscriptionsHandler) openArena(w http.ResponseWriter, r *http.Request) (storage.Arena, bool) {
	arena, err := h.scratch.Open(chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			WriteError(w, http.StatusNotFound, "transcription not found")
		} else {
			WriteError(w, http.StatusInternalServerError, "failed to open transcription")
		}
		return storage.Arena{}, false
	}
	return arena, true
}

func (h *TranscriptionsHandler) limitDetail() string {
	return fmt.Sprintf("maximum upload size is %d MB", h.maxUpload>>20)
}
