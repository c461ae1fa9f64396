package transcribe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/snarg/scribe/internal/audio"
	"github.com/snarg/scribe/internal/failure"
	"github.com/snarg/scribe/internal/storage"
)

const deepgramBaseURL = "https://api.deepgram.com"

// DeepgramClient calls Deepgram's pre-recorded /v1/listen endpoint.
// Implements the Provider interface.
type DeepgramClient struct {
	baseURL string
	apiKey  string
	opts    Options
	timeout time.Duration
	client  *http.Client
}

// deepgramResponse is the subset of the pre-recorded response we read.
type deepgramResponse struct {
	Metadata struct {
		RequestID string  `json:"request_id"`
		Duration  float64 `json:"duration"`
	} `json:"metadata"`
	Results *struct {
		Channels []struct {
			Alternatives []struct {
				Transcript string  `json:"transcript"`
				Confidence float64 `json:"confidence"`
			} `json:"alternatives"`
		} `json:"channels"`
	} `json:"results"`
}

// deepgramError is the body Deepgram returns on 4xx/5xx.
type deepgramError struct {
	ErrCode string `json:"err_code"`
	ErrMsg  string `json:"err_msg"`
}

// NewDeepgramClient creates a new Deepgram client. An empty baseURL uses the
// public API host.
func NewDeepgramClient(baseURL, apiKey string, opts Options, timeout time.Duration) *DeepgramClient {
	if baseURL == "" {
		baseURL = deepgramBaseURL
	}
	return &DeepgramClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		opts:    opts,
		timeout: timeout,
		client:  &http.Client{Timeout: timeout},
	}
}

// Name returns the provider name.
func (dg *DeepgramClient) Name() string { return "deepgram" }

// Model returns the configured model identifier.
func (dg *DeepgramClient) Model() string { return dg.opts.Model }

// Transcribe uploads the artifact in a single request and returns the
// transcript of the first channel's primary alternative. Every failure,
// including an unexpected response shape, is a *failure.TranscriptionError.
// No retry is attempted.
func (dg *DeepgramClient) Transcribe(ctx context.Context, art storage.Artifact) (*Response, error) {
	resp, err := dg.transcribe(ctx, art.Path)
	if err != nil {
		return nil, failure.Transcription(art.Path, err)
	}
	return resp, nil
}

func (dg *DeepgramClient) transcribe(ctx context.Context, audioPath string) (*Response, error) {
	f, err := os.Open(audioPath)
	if err != nil {
		return nil, fmt.Errorf("open audio file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat audio file: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, dg.listenURL(), f)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.ContentLength = info.Size()
	req.Header.Set("Authorization", "Token "+dg.apiKey)
	req.Header.Set("Content-Type", audio.ContentType(audioPath))
	req.Header.Set("Accept", "application/json")

	resp, err := dg.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("deepgram request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("deepgram API error (status %d): %s", resp.StatusCode, errorMessage(body))
	}

	return parseResponse(body)
}

// listenURL builds the endpoint with the fixed request options as query params.
func (dg *DeepgramClient) listenURL() string {
	q := url.Values{}
	if dg.opts.Model != "" {
		q.Set("model", dg.opts.Model)
	}
	if dg.opts.Language != "" {
		q.Set("language", dg.opts.Language)
	}
	q.Set("smart_format", strconv.FormatBool(dg.opts.SmartFormat))
	q.Set("paragraphs", strconv.FormatBool(dg.opts.Paragraphs))
	q.Set("diarize", strconv.FormatBool(dg.opts.Diarize))
	return dg.baseURL + "/v1/listen?" + q.Encode()
}

// parseResponse extracts results.channels[0].alternatives[0]. A missing
// results object, zero channels or zero alternatives is a parse failure
// rather than an empty transcript.
func parseResponse(body []byte) (*Response, error) {
	var dr deepgramResponse
	if err := json.Unmarshal(body, &dr); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if dr.Results == nil {
		return nil, errors.New("malformed response: missing results")
	}
	if len(dr.Results.Channels) == 0 {
		return nil, errors.New("malformed response: no channels in response")
	}
	alts := dr.Results.Channels[0].Alternatives
	if len(alts) == 0 {
		return nil, errors.New("malformed response: no alternatives in channel 0")
	}
	return &Response{
		Transcript: alts[0].Transcript,
		Confidence: alts[0].Confidence,
		Duration:   dr.Metadata.Duration,
		RequestID:  dr.Metadata.RequestID,
		Channels:   len(dr.Results.Channels),
	}, nil
}

// errorMessage prefers Deepgram's err_msg and falls back to the raw body.
func errorMessage(body []byte) string {
	var de deepgramError
	if err := json.Unmarshal(body, &de); err == nil && de.ErrMsg != "" {
		if de.ErrCode != "" {
			return de.ErrCode + ": " + de.ErrMsg
		}
		return de.ErrMsg
	}
	return strings.TrimSpace(string(body))
}
