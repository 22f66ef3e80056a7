// Package demucs wraps the stem separation service. Separation runs in
// two-stem (karaoke) mode: vocals plus everything else.
package demucs

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
)

const defaultTimeout = 10 * time.Minute

// Config captures the separation service settings.
type Config struct {
	BaseURL        string
	TwoStem        bool
	TimeoutSeconds int
}

// Client talks to the Demucs HTTP service.
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

// NewClient constructs a Demucs client.
func NewClient(cfg Config, opts ...Option) *Client {
	timeout := defaultTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	client := &Client{
		cfg: Config{
			BaseURL:        strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
			TwoStem:        cfg.TwoStem,
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

// Stems is the result of a separation run.
type Stems struct {
	Vocals          []byte
	Instrumental    []byte
	DurationSeconds float64
}

type separateResponse struct {
	VocalsBase64       string  `json:"vocals_base64"`
	InstrumentalBase64 string  `json:"instrumental_base64"`
	Duration           float64 `json:"duration"`
	Error              string  `json:"error"`
}

// Separate uploads audio and returns the decoded stems. The call blocks for
// the whole separation run; the service has no partial results.
func (c *Client) Separate(ctx context.Context, filename string, audio []byte) (*Stems, error) {
	if !c.Configured() {
		return nil, errors.New("demucs separate: base url required")
	}
	if len(audio) == 0 {
		return nil, errors.New("demucs separate: empty audio")
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("demucs separate: build form: %w", err)
	}
	if _, err := part.Write(audio); err != nil {
		return nil, fmt.Errorf("demucs separate: write form: %w", err)
	}
	if c.cfg.TwoStem {
		if err := writer.WriteField("two_stems", "vocals"); err != nil {
			return nil, fmt.Errorf("demucs separate: write field: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("demucs separate: close form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/separate-sync", &body)
	if err != nil {
		return nil, fmt.Errorf("demucs separate: new request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("demucs separate: http error: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusMultipleChoices {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, fmt.Errorf("demucs separate: http %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var payload separateResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("demucs separate: decode response: %w", err)
	}
	if payload.Error != "" {
		return nil, fmt.Errorf("demucs separate: service error: %s", payload.Error)
	}

	vocals, err := base64.StdEncoding.DecodeString(payload.VocalsBase64)
	if err != nil {
		return nil, fmt.Errorf("demucs separate: decode vocals: %w", err)
	}
	instrumental, err := base64.StdEncoding.DecodeString(payload.InstrumentalBase64)
	if err != nil {
		return nil, fmt.Errorf("demucs separate: decode instrumental: %w", err)
	}
	if len(vocals) == 0 || len(instrumental) == 0 {
		return nil, errors.New("demucs separate: empty stems in response")
	}
	return &Stems{
		Vocals:          vocals,
		Instrumental:    instrumental,
		DurationSeconds: payload.Duration,
	}, nil
}

// HealthCheck verifies the service is reachable.
func (c *Client) HealthCheck(ctx context.Context) error {
	if !c.Configured() {
		return errors.New("demucs health: base url required")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("demucs health: new request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("demucs health: http error: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("demucs health: http %d", resp.StatusCode)
	}
	return nil
}
