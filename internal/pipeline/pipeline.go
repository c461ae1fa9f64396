package pipeline

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/snarg/scribe/internal/failure"
	"github.com/snarg/scribe/internal/metrics"
	"github.com/snarg/scribe/internal/storage"
	"github.com/snarg/scribe/internal/transcribe"
)

// Allocator hands out a fresh arena per request.
type Allocator interface {
	Allocate() (storage.Arena, error)
}

// Store persists uploaded bytes and the finished transcript into an arena.
type Store interface {
	Store(ctx context.Context, arena storage.Arena, name string, data []byte) (storage.Artifact, error)
	Save(ctx context.Context, arena storage.Arena, name string, data []byte) (string, error)
}

// Fetcher downloads a remote link into an arena.
type Fetcher interface {
	Fetch(ctx context.Context, arena storage.Arena, url string) (storage.Artifact, error)
}

// Transcriber turns a local artifact into text.
type Transcriber interface {
	Transcribe(ctx context.Context, art storage.Artifact) (*transcribe.Response, error)
}

// Options wires the pipeline's collaborators.
type Options struct {
	Scratch     Allocator
	Store       Store
	Fetcher     Fetcher
	Transcriber Transcriber
	Log         zerolog.Logger
}

// Pipeline sequences acquisition and transcription for one request at a time.
// It holds no per-request state, so a single Pipeline serves concurrent callers;
// each call works inside its own arena.
type Pipeline struct {
	scratch     Allocator
	store       Store
	fetcher     Fetcher
	transcriber Transcriber
	log         zerolog.Logger
}

// New creates a pipeline.
func New(opts Options) *Pipeline {
	return &Pipeline{
		scratch:     opts.Scratch,
		store:       opts.Store,
		fetcher:     opts.Fetcher,
		transcriber: opts.Transcriber,
		log:         opts.Log.With().Str("component", "pipeline").Logger(),
	}
}

// Run acquires audio for in and transcribes it.
//
// With no usable input it returns an idle Outcome and a nil error. Otherwise
// exactly one acquisition path runs: an upload goes to the store, a link goes
// to the fetcher. Acquisition failures never reach the transcriber. On any
// failure the returned Outcome carries the terminal state and whatever
// artifact was produced, and the error is one of *failure.IOError,
// *failure.AcquisitionError or *failure.TranscriptionError.
func (p *Pipeline) Run(ctx context.Context, in Input) (Outcome, error) {
	kind := in.Kind()
	if kind == KindNone {
		return Outcome{State: StateIdle}, nil
	}

	start := time.Now()
	out := Outcome{State: StateAcquiring, Source: kind.String()}
	log := p.log.With().Str("source", out.Source).Logger()

	arena, err := p.scratch.Allocate()
	if err != nil {
		return p.fail(log, out, StateAcquisitionFailed, ensureStage(err, failure.StageStorage, ""))
	}
	out.ArenaID = arena.ID
	log = log.With().Str("arena", arena.ID).Logger()
	log.Debug().Str("state", string(out.State)).Msg("acquiring audio")

	art, err := p.acquire(ctx, arena, in)
	if err != nil {
		return p.fail(log, out, StateAcquisitionFailed, err)
	}
	out.State = StateAcquired
	out.Artifact = art
	metrics.ArtifactBytes.WithLabelValues(out.Source).Observe(float64(art.Size))
	log.Debug().Str("state", string(out.State)).Str("path", art.Path).Int64("bytes", art.Size).Msg("audio acquired")

	out.State = StateTranscribing
	stageStart := time.Now()
	resp, err := p.transcriber.Transcribe(ctx, art)
	if err == nil && resp == nil {
		err = failure.Transcription(art.Path, errNilResponse)
	}
	metrics.ObserveStage(failure.StageTranscription, stageStart, err)
	if err != nil {
		return p.fail(log, out, StateTranscriptionFailed, ensureStage(err, failure.StageTranscription, art.Path))
	}

	path, err := p.store.Save(ctx, arena, storage.TranscriptFile, []byte(resp.Transcript))
	if err != nil {
		return p.fail(log, out, StateTranscriptionFailed, ensureStage(err, failure.StageStorage, arena.Path(storage.TranscriptFile)))
	}

	out.State = StateDone
	out.Transcript = resp.Transcript
	out.TranscriptPath = path
	out.Confidence = resp.Confidence
	out.Duration = resp.Duration
	metrics.TranscriptionsTotal.WithLabelValues(out.Source, string(out.State)).Inc()
	log.Info().
		Str("state", string(out.State)).
		Int("chars", len(out.Transcript)).
		Float64("audio_seconds", resp.Duration).
		Dur("elapsed", time.Since(start)).
		Msg("transcription complete")
	return out, nil
}

// acquire runs exactly one acquisition delegate for the input kind.
func (p *Pipeline) acquire(ctx context.Context, arena storage.Arena, in Input) (storage.Artifact, error) {
	start := time.Now()
	var (
		art storage.Artifact
		err error
	)
	switch in.Kind() {
	case KindUpload:
		art, err = p.store.Store(ctx, arena, in.Upload.Name, in.Upload.Data)
		err = ensureStage(err, failure.StageStorage, in.Upload.Name)
	case KindLink:
		url := in.link()
		art, err = p.fetcher.Fetch(ctx, arena, url)
		err = ensureStage(err, failure.StageAcquisition, url)
	}
	metrics.ObserveStage(failure.StageAcquisition, start, err)
	return art, err
}

func (p *Pipeline) fail(log zerolog.Logger, out Outcome, state State, err error) (Outcome, error) {
	out.State = state
	metrics.TranscriptionsTotal.WithLabelValues(out.Source, string(state)).Inc()
	log.Warn().Err(err).
		Str("state", string(state)).
		Str("stage", failure.StageOf(err)).
		Msg("transcription request failed")
	return out, err
}

// ensureStage guarantees err is one of the classified failure types. Errors
// already classified pass through untouched; anything else is wrapped as the
// given stage.
func ensureStage(err error, stage, subject string) error {
	if err == nil || failure.StageOf(err) != failure.StageUnknown {
		return err
	}
	switch stage {
	case failure.StageAcquisition:
		return failure.Acquisition(subject, err)
	case failure.StageTranscription:
		return failure.Transcription(subject, err)
	default:
		return failure.IO("store", subject, err)
	}
}
