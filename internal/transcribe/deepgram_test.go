package transcribe

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/snarg/scribe/internal/failure"
	"github.com/snarg/scribe/internal/storage"
)

const okBody = `{
  "metadata": {"request_id": "req-123", "duration": 12.5, "channels": 1},
  "results": {
    "channels": [
      {"alternatives": [
        {"transcript": "Hello there. General Kenobi.", "confidence": 0.98},
        {"transcript": "hello their", "confidence": 0.4}
      ]}
    ]
  }
}`

func writeAudio(t *testing.T, name string, data []byte) storage.Artifact {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	art, err := storage.ArtifactAt(path)
	if err != nil {
		t.Fatal(err)
	}
	return art
}

type capturedRequest struct {
	method      string
	path        string
	query       map[string]string
	auth        string
	contentType string
	body        []byte
}

func newDeepgramServer(t *testing.T, status int, body string, captured *capturedRequest) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if captured != nil {
			captured.method = r.Method
			captured.path = r.URL.Path
			captured.query = map[string]string{}
			for k := range r.URL.Query() {
				captured.query[k] = r.URL.Query().Get(k)
			}
			captured.auth = r.Header.Get("Authorization")
			captured.contentType = r.Header.Get("Content-Type")
			captured.body, _ = io.ReadAll(r.Body)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestDeepgram_Transcribe(t *testing.T) {
	var got capturedRequest
	srv := newDeepgramServer(t, http.StatusOK, okBody, &got)
	dg := NewDeepgramClient(srv.URL+"/", "secret", DefaultOptions(), 5*time.Second)
	art := writeAudio(t, "clip.mp3", []byte("fake-mp3-bytes"))

	resp, err := dg.Transcribe(context.Background(), art)
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if resp.Transcript != "Hello there. General Kenobi." {
		t.Errorf("Transcript = %q", resp.Transcript)
	}
	if resp.Confidence != 0.98 {
		t.Errorf("Confidence = %v, want 0.98", resp.Confidence)
	}
	if resp.Duration != 12.5 {
		t.Errorf("Duration = %v, want 12.5", resp.Duration)
	}
	if resp.RequestID != "req-123" {
		t.Errorf("RequestID = %q, want req-123", resp.RequestID)
	}
	if resp.Channels != 1 {
		t.Errorf("Channels = %d, want 1", resp.Channels)
	}

	// Request shape
	if got.method != http.MethodPost || got.path != "/v1/listen" {
		t.Errorf("request = %s %s, want POST /v1/listen", got.method, got.path)
	}
	wantQuery := map[string]string{
		"model":        "nova-3",
		"language":     "en",
		"smart_format": "true",
		"paragraphs":   "true",
		"diarize":      "true",
	}
	for k, v := range wantQuery {
		if got.query[k] != v {
			t.Errorf("query[%s] = %q, want %q", k, got.query[k], v)
		}
	}
	if got.auth != "Token secret" {
		t.Errorf("Authorization = %q, want %q", got.auth, "Token secret")
	}
	if got.contentType != "audio/mpeg" {
		t.Errorf("Content-Type = %q, want audio/mpeg", got.contentType)
	}
	if string(got.body) != "fake-mp3-bytes" {
		t.Errorf("body = %q, want the file contents", got.body)
	}
}

func TestDeepgram_NameModel(t *testing.T) {
	dg := NewDeepgramClient("", "k", DefaultOptions(), time.Second)
	if dg.Name() != "deepgram" {
		t.Errorf("Name = %q", dg.Name())
	}
	if dg.Model() != "nova-3" {
		t.Errorf("Model = %q", dg.Model())
	}
	if !strings.HasPrefix(dg.listenURL(), "https://api.deepgram.com/v1/listen?") {
		t.Errorf("listenURL = %q, want public host", dg.listenURL())
	}
}

func TestDeepgram_Failures(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantMsg string
	}{
		{"zero_channels", http.StatusOK, `{"results":{"channels":[]}}`, "no channels"},
		{"missing_alternatives", http.StatusOK, `{"results":{"channels":[{}]}}`, "no alternatives"},
		{"missing_results", http.StatusOK, `{"metadata":{}}`, "missing results"},
		{"invalid_json", http.StatusOK, `not json`, "decode response"},
		{"auth_rejected", http.StatusUnauthorized, `{"err_code":"INVALID_AUTH","err_msg":"Invalid credentials."}`, "Invalid credentials."},
		{"unsupported_file", http.StatusBadRequest, `corrupt or unsupported data`, "corrupt or unsupported data"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newDeepgramServer(t, tt.status, tt.body, nil)
			dg := NewDeepgramClient(srv.URL, "secret", DefaultOptions(), 5*time.Second)

			resp, err := dg.Transcribe(context.Background(), writeAudio(t, "a.mp3", []byte("x")))
			if resp != nil {
				t.Errorf("resp = %+v, want nil", resp)
			}
			var trErr *failure.TranscriptionError
			if !errors.As(err, &trErr) {
				t.Fatalf("err = %v, want *failure.TranscriptionError", err)
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("err = %q, want it to contain %q", err.Error(), tt.wantMsg)
			}
		})
	}
}

func TestDeepgram_MissingFile(t *testing.T) {
	dg := NewDeepgramClient("http://127.0.0.1:1", "k", DefaultOptions(), time.Second)
	_, err := dg.Transcribe(context.Background(), storage.Artifact{Path: filepath.Join(t.TempDir(), "gone.mp3")})
	if failure.StageOf(err) != failure.StageTranscription {
		t.Errorf("err = %v, want transcription error", err)
	}
}

func TestDeepgram_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	dg := NewDeepgramClient(url, "k", DefaultOptions(), time.Second)
	_, err := dg.Transcribe(context.Background(), writeAudio(t, "a.mp3", []byte("x")))
	if failure.StageOf(err) != failure.StageTranscription {
		t.Errorf("err = %v, want transcription error", err)
	}
}

func TestDeepgram_SingleAttempt(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	dg := NewDeepgramClient(srv.URL, "k", DefaultOptions(), time.Second)
	if _, err := dg.Transcribe(context.Background(), writeAudio(t, "a.mp3", []byte("x"))); err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}
