// Package whisper wraps an OpenAI-compatible transcription endpoint and maps
// its verbose output into timed lyric lines.
package whisper

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"songmill/internal/lyrics"
)

const defaultTimeout = 5 * time.Minute

// Config captures the transcription service settings.
type Config struct {
	BaseURL        string
	APIKey         string
	Model          string
	TimeoutSeconds int
}

// Client talks to the transcription HTTP API.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// NewClient constructs a transcription client.
func NewClient(cfg Config, opts ...Option) *Client {
	timeout := defaultTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	client := &Client{
		cfg: Config{
			BaseURL:        strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
			APIKey:         strings.TrimSpace(cfg.APIKey),
			Model:          strings.TrimSpace(cfg.Model),
			TimeoutSeconds: cfg.TimeoutSeconds,
		},
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// Configured reports whether the client can make requests.
func (c *Client) Configured() bool {
	return c != nil && c.cfg.BaseURL != ""
}

type verboseTranscription struct {
	Segments []struct {
		ID    int     `json:"id"`
		Start float64 `json:"start"`
		End   float64 `json:"end"`
		Text  string  `json:"text"`
	} `json:"segments"`
	Words []struct {
		Word  string  `json:"word"`
		Start float64 `json:"start"`
		End   float64 `json:"end"`
	} `json:"words"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Transcribe uploads vocal audio and returns timed lines with word timings
// attached. Words are assigned to the segment whose span contains their
// midpoint.
func (c *Client) Transcribe(ctx context.Context, filename string, audio []byte) ([]lyrics.Line, error) {
	if !c.Configured() {
		return nil, errors.New("whisper transcribe: base url required")
	}
	if len(audio) == 0 {
		return nil, errors.New("whisper transcribe: empty audio")
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("whisper transcribe: build form: %w", err)
	}
	if _, err := part.Write(audio); err != nil {
		return nil, fmt.Errorf("whisper transcribe: write form: %w", err)
	}
	fields := [][2]string{
		{"model", c.cfg.Model},
		{"response_format", "verbose_json"},
		{"timestamp_granularities[]", "word"},
		{"timestamp_granularities[]", "segment"},
	}
	for _, field := range fields {
		if err := writer.WriteField(field[0], field[1]); err != nil {
			return nil, fmt.Errorf("whisper transcribe: write field: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("whisper transcribe: close form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/audio/transcriptions", &body)
	if err != nil {
		return nil, fmt.Errorf("whisper transcribe: new request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("whisper transcribe: http error: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusMultipleChoices {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, fmt.Errorf("whisper transcribe: http %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var payload verboseTranscription
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("whisper transcribe: decode response: %w", err)
	}
	if payload.Error != nil {
		return nil, fmt.Errorf("whisper transcribe: service error: %s", payload.Error.Message)
	}
	return assembleLines(payload), nil
}

func assembleLines(payload verboseTranscription) []lyrics.Line {
	lines := make([]lyrics.Line, 0, len(payload.Segments))
	for i, segment := range payload.Segments {
		line := lyrics.Line{
			Index:        i,
			StartSeconds: segment.Start,
			EndSeconds:   segment.End,
			Text:         strings.TrimSpace(segment.Text),
		}
		for _, word := range payload.Words {
			mid := (word.Start + word.End) / 2
			if mid >= segment.Start && mid < segment.End {
				line.Words = append(line.Words, lyrics.Word{
					Text:         strings.TrimSpace(word.Word),
					StartSeconds: word.Start,
					EndSeconds:   word.End,
				})
			}
		}
		lines = append(lines, line)
	}
	return lines
}

// HealthCheck verifies the service is reachable.
func (c *Client) HealthCheck(ctx context.Context) error {
	if !c.Configured() {
		return errors.New("whisper health: base url required")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("whisper health: new request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("whisper health: http error: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusMultipleChoices && resp.StatusCode != http.StatusNotFound {
		return fmt.Errorf("whisper health: http %d", resp.StatusCode)
	}
	return nil
}
