package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/snarg/scribe/internal/failure"
	"github.com/snarg/scribe/internal/storage"
	"github.com/snarg/scribe/internal/transcribe"
)

// mockFetcher implements Fetcher for testing.
type mockFetcher struct {
	mu      sync.Mutex
	calls   int
	lastURL string
	content string
	err     error
}

func (m *mockFetcher) Fetch(ctx context.Context, arena storage.Arena, url string) (storage.Artifact, error) {
	m.mu.Lock()
	m.calls++
	m.lastURL = url
	m.mu.Unlock()
	if m.err != nil {
		return storage.Artifact{}, m.err
	}
	path := arena.Path("audio.mp3")
	if err := os.WriteFile(path, []byte(m.content), 0o644); err != nil {
		return storage.Artifact{}, err
	}
	return storage.ArtifactAt(path)
}

// mockTranscriber implements Transcriber for testing. It echoes the artifact
// contents when text is empty so concurrent tests can check isolation.
type mockTranscriber struct {
	mu       sync.Mutex
	calls    int
	lastPath string
	text     string
	err      error
}

func (m *mockTranscriber) Transcribe(ctx context.Context, art storage.Artifact) (*transcribe.Response, error) {
	m.mu.Lock()
	m.calls++
	m.lastPath = art.Path
	m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	text := m.text
	if text == "" {
		data, err := os.ReadFile(art.Path)
		if err != nil {
			return nil, err
		}
		text = "heard: " + string(data)
	}
	return &transcribe.Response{Transcript: text, Confidence: 0.9, Duration: 3}, nil
}

// failingScratch implements Allocator and always fails.
type failingScratch struct{}

func (failingScratch) Allocate() (storage.Arena, error) {
	return storage.Arena{}, failure.IO("mkdir", "/nope", errors.New("read-only file system"))
}

func newTestPipeline(t *testing.T, f *mockFetcher, tr *mockTranscriber) (*Pipeline, *storage.Scratch) {
	t.Helper()
	scratch := storage.NewScratch(t.TempDir())
	return New(Options{
		Scratch:     scratch,
		Store:       storage.NewLocalStore(),
		Fetcher:     f,
		Transcriber: tr,
		Log:         zerolog.Nop(),
	}), scratch
}

func TestInputKind(t *testing.T) {
	tests := []struct {
		name string
		in   Input
		want Kind
	}{
		{"nothing", Input{}, KindNone},
		{"whitespace_url", Input{URL: " \t\n "}, KindNone},
		{"url", Input{URL: "https://example.com/v"}, KindLink},
		{"upload", Input{Upload: &Upload{Name: "a.mp3"}}, KindUpload},
		{"empty_upload_still_upload", Input{Upload: &Upload{Name: "a.mp3", Data: nil}}, KindUpload},
		{"both_prefers_upload", Input{Upload: &Upload{Name: "a.mp3"}, URL: "https://example.com"}, KindUpload},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.in.Kind(); got != tt.want {
				t.Errorf("Kind = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestStateTerminal(t *testing.T) {
	terminal := map[State]bool{
		StateIdle:                false,
		StateAcquiring:           false,
		StateAcquired:            false,
		StateTranscribing:        false,
		StateDone:                true,
		StateAcquisitionFailed:   true,
		StateTranscriptionFailed: true,
	}
	for s, want := range terminal {
		if s.Terminal() != want {
			t.Errorf("%s.Terminal() = %v, want %v", s, s.Terminal(), want)
		}
	}
}

func TestRun_Idle(t *testing.T) {
	for _, url := range []string{"", "   "} {
		f := &mockFetcher{}
		tr := &mockTranscriber{}
		p, scratch := newTestPipeline(t, f, tr)

		out, err := p.Run(context.Background(), Input{URL: url})
		if err != nil {
			t.Fatalf("url %q: err = %v, want nil", url, err)
		}
		if out.State != StateIdle {
			t.Errorf("url %q: State = %q, want idle", url, out.State)
		}
		if f.calls != 0 || tr.calls != 0 {
			t.Errorf("url %q: delegates called (fetch=%d, transcribe=%d)", url, f.calls, tr.calls)
		}
		if arenas, _ := scratch.Usage(); arenas != 0 {
			t.Errorf("url %q: idle run allocated %d arenas", url, arenas)
		}
	}
}

func TestRun_UploadSuccess(t *testing.T) {
	f := &mockFetcher{}
	tr := &mockTranscriber{text: "Welcome to the show."}
	p, _ := newTestPipeline(t, f, tr)

	out, err := p.Run(context.Background(), Input{
		Upload: &Upload{Name: "episode.mp3", Data: []byte("ID3-bytes")},
		URL:    "https://example.com/ignored",
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out.State != StateDone {
		t.Errorf("State = %q, want done", out.State)
	}
	if out.Source != "upload" {
		t.Errorf("Source = %q, want upload", out.Source)
	}
	if out.Transcript != "Welcome to the show." {
		t.Errorf("Transcript = %q", out.Transcript)
	}
	if f.calls != 0 {
		t.Errorf("fetcher called %d times on upload path, want 0", f.calls)
	}
	if tr.calls != 1 || tr.lastPath != out.Artifact.Path {
		t.Errorf("transcriber calls = %d path = %q, want 1 call on %q", tr.calls, tr.lastPath, out.Artifact.Path)
	}
	if filepath.Base(out.Artifact.Path) != "episode.mp3" {
		t.Errorf("artifact = %q, want episode.mp3", out.Artifact.Path)
	}

	data, err := os.ReadFile(out.TranscriptPath)
	if err != nil {
		t.Fatalf("read transcript: %v", err)
	}
	if string(data) != out.Transcript {
		t.Errorf("transcript file = %q, want byte-identical %q", data, out.Transcript)
	}
}

func TestRun_LinkSuccess(t *testing.T) {
	f := &mockFetcher{content: "downloaded"}
	tr := &mockTranscriber{}
	p, _ := newTestPipeline(t, f, tr)

	out, err := p.Run(context.Background(), Input{URL: "  https://youtube.com/watch?v=x  "})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out.State != StateDone || out.Source != "link" {
		t.Errorf("State/Source = %q/%q, want done/link", out.State, out.Source)
	}
	if f.lastURL != "https://youtube.com/watch?v=x" {
		t.Errorf("fetch url = %q, want trimmed", f.lastURL)
	}
	if out.Transcript != "heard: downloaded" {
		t.Errorf("Transcript = %q", out.Transcript)
	}
}

func TestRun_AcquisitionFailure(t *testing.T) {
	f := &mockFetcher{err: failure.Acquisition("https://example.com/not-a-video", errors.New("unsupported URL"))}
	tr := &mockTranscriber{}
	p, _ := newTestPipeline(t, f, tr)

	out, err := p.Run(context.Background(), Input{URL: "https://example.com/not-a-video"})
	var acq *failure.AcquisitionError
	if !errors.As(err, &acq) {
		t.Fatalf("err = %v, want *failure.AcquisitionError", err)
	}
	if !strings.Contains(err.Error(), "unsupported URL") {
		t.Errorf("err = %q, want it to contain %q", err.Error(), "unsupported URL")
	}
	if out.State != StateAcquisitionFailed {
		t.Errorf("State = %q, want acquisition_failed", out.State)
	}
	if tr.calls != 0 {
		t.Errorf("transcriber called %d times after acquisition failure", tr.calls)
	}
	if out.Transcript != "" {
		t.Errorf("Transcript = %q, want none", out.Transcript)
	}
}

func TestRun_UnclassifiedFetchErrorIsAcquisition(t *testing.T) {
	f := &mockFetcher{err: errors.New("connection refused")}
	p, _ := newTestPipeline(t, f, &mockTranscriber{})

	_, err := p.Run(context.Background(), Input{URL: "https://example.com"})
	if failure.StageOf(err) != failure.StageAcquisition {
		t.Errorf("stage = %q, want acquisition", failure.StageOf(err))
	}
}

func TestRun_StorageFailure(t *testing.T) {
	tr := &mockTranscriber{}
	p := New(Options{
		Scratch:     failingScratch{},
		Store:       storage.NewLocalStore(),
		Fetcher:     &mockFetcher{},
		Transcriber: tr,
		Log:         zerolog.Nop(),
	})

	out, err := p.Run(context.Background(), Input{Upload: &Upload{Name: "a.mp3", Data: []byte("x")}})
	var ioErr *failure.IOError
	if !errors.As(err, &ioErr) {
		t.Fatalf("err = %v, want *failure.IOError", err)
	}
	if out.State != StateAcquisitionFailed {
		t.Errorf("State = %q, want acquisition_failed", out.State)
	}
	if tr.calls != 0 {
		t.Error("transcriber must not run when storage fails")
	}
}

func TestRun_TranscriptionFailureKeepsArtifact(t *testing.T) {
	tr := &mockTranscriber{err: failure.Transcription("x", errors.New("malformed response: no alternatives in channel 0"))}
	p, _ := newTestPipeline(t, &mockFetcher{}, tr)

	out, err := p.Run(context.Background(), Input{Upload: &Upload{Name: "ok.mp3", Data: []byte("audio")}})
	var trErr *failure.TranscriptionError
	if !errors.As(err, &trErr) {
		t.Fatalf("err = %v, want *failure.TranscriptionError", err)
	}
	if out.State != StateTranscriptionFailed {
		t.Errorf("State = %q, want transcription_failed", out.State)
	}
	if _, statErr := os.Stat(out.Artifact.Path); statErr != nil {
		t.Errorf("artifact should remain on disk: %v", statErr)
	}
	if out.TranscriptPath != "" || out.Transcript != "" {
		t.Error("no partial transcript may be surfaced")
	}
}

func TestRun_UnclassifiedTranscribeErrorIsTranscription(t *testing.T) {
	tr := &mockTranscriber{err: errors.New("boom")}
	p, _ := newTestPipeline(t, &mockFetcher{}, tr)

	_, err := p.Run(context.Background(), Input{Upload: &Upload{Name: "ok.mp3", Data: []byte("audio")}})
	if failure.StageOf(err) != failure.StageTranscription {
		t.Errorf("stage = %q, want transcription", failure.StageOf(err))
	}
}

func TestRun_ConcurrentRequestsIsolated(t *testing.T) {
	f := &mockFetcher{content: "same-name"}
	tr := &mockTranscriber{}
	p, _ := newTestPipeline(t, f, tr)

	const n = 8
	var wg sync.WaitGroup
	results := make([]Outcome, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			data := []byte(strings.Repeat("x", i+1))
			results[i], errs[i] = p.Run(context.Background(), Input{Upload: &Upload{Name: "same.mp3", Data: data}})
		}(i)
	}
	wg.Wait()

	seen := make(map[string]bool)
	for i := 0; i < n; i++ {
		if errs[i] != nil {
			t.Fatalf("[%d] Run: %v", i, errs[i])
		}
		want := "heard: " + strings.Repeat("x", i+1)
		if results[i].Transcript != want {
			t.Errorf("[%d] Transcript = %q, want %q", i, results[i].Transcript, want)
		}
		if seen[results[i].ArenaID] {
			t.Errorf("[%d] arena %s reused", i, results[i].ArenaID)
		}
		seen[results[i].ArenaID] = true
	}
}
