// Package fal wraps the fal.ai queue API for audio enhancement. One Process
// call covers one chunk: submit, poll until terminal, download the result.
// The service rejects audio longer than its duration ceiling, which is why
// the enhance engine chunks upstream.
package fal

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"songmill/internal/audio"
)

const (
	defaultTimeout      = 2 * time.Minute
	defaultPollInterval = 2 * time.Second
	maxResultBytes      = 512 << 20
)

// Config captures the fal queue settings.
type Config struct {
	APIKey             string
	BaseURL            string
	PollIntervalMS     int
	RequestTimeoutSecs int
}

// Client submits enhancement jobs to the fal queue.
type Client struct {
	cfg          Config
	httpClient   *http.Client
	pollInterval time.Duration
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

// WithPollInterval overrides the queue polling cadence.
func WithPollInterval(interval time.Duration) Option {
	return func(c *Client) {
		if interval > 0 {
			c.pollInterval = interval
		}
	}
}

// NewClient constructs a fal client.
func NewClient(cfg Config, opts ...Option) *Client {
	timeout := defaultTimeout
	if cfg.RequestTimeoutSecs > 0 {
		timeout = time.Duration(cfg.RequestTimeoutSecs) * time.Second
	}
	pollInterval := defaultPollInterval
	if cfg.PollIntervalMS > 0 {
		pollInterval = time.Duration(cfg.PollIntervalMS) * time.Millisecond
	}
	client := &Client{
		cfg: Config{
			APIKey:             strings.TrimSpace(cfg.APIKey),
			BaseURL:            strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
			PollIntervalMS:     cfg.PollIntervalMS,
			RequestTimeoutSecs: cfg.RequestTimeoutSecs,
		},
		httpClient:   &http.Client{Timeout: timeout},
		pollInterval: pollInterval,
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// Configured reports whether the client can make requests.
func (c *Client) Configured() bool {
	return c != nil && c.cfg.BaseURL != "" && c.cfg.APIKey != ""
}

type submitResponse struct {
	RequestID   string `json:"request_id"`
	StatusURL   string `json:"status_url"`
	ResponseURL string `json:"response_url"`
}

type statusResponse struct {
	Status string `json:"status"`
	Error  string `json:"error"`
}

type resultResponse struct {
	Audio struct {
		URL string `json:"url"`
	} `json:"audio"`
	Error string `json:"error"`
}

// Process enhances one chunk of audio. The chunk is sent inline as a WAV
// data URI and the enhanced WAV is fetched back from the result URL.
func (c *Client) Process(ctx context.Context, chunk *audio.Buffer) (*audio.Buffer, error) {
	if !c.Configured() {
		return nil, errors.New("fal process: api key and base url required")
	}

	var wav bytes.Buffer
	if err := audio.EncodeWAV(&wav, chunk); err != nil {
		return nil, fmt.Errorf("fal process: encode chunk: %w", err)
	}

	submitted, err := c.submit(ctx, wav.Bytes())
	if err != nil {
		return nil, err
	}
	if err := c.waitForCompletion(ctx, submitted); err != nil {
		return nil, err
	}
	raw, err := c.fetchResult(ctx, submitted)
	if err != nil {
		return nil, err
	}

	enhanced, err := audio.DecodeWAV(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("fal process: decode result: %w", err)
	}
	return enhanced, nil
}

func (c *Client) submit(ctx context.Context, wav []byte) (*submitResponse, error) {
	payload := map[string]string{
		"audio_url": "data:audio/wav;base64," + base64.StdEncoding.EncodeToString(wav),
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("fal submit: encode body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL, bytes.NewReader(encoded))
	if err != nil {
		return nil, fmt.Errorf("fal submit: new request: %w", err)
	}
	c.authorize(req)
	req.Header.Set("Content-Type", "application/json")

	var submitted submitResponse
	if err := c.doJSON(req, &submitted); err != nil {
		return nil, fmt.Errorf("fal submit: %w", err)
	}
	if submitted.StatusURL == "" || submitted.ResponseURL == "" {
		return nil, fmt.Errorf("fal submit: incomplete queue response for request %q", submitted.RequestID)
	}
	return &submitted, nil
}

func (c *Client) waitForCompletion(ctx context.Context, submitted *submitResponse) error {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()
	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, submitted.StatusURL, nil)
		if err != nil {
			return fmt.Errorf("fal status: new request: %w", err)
		}
		c.authorize(req)

		var status statusResponse
		if err := c.doJSON(req, &status); err != nil {
			return fmt.Errorf("fal status: %w", err)
		}
		switch strings.ToUpper(status.Status) {
		case "COMPLETED":
			return nil
		case "FAILED", "CANCELLED":
			detail := status.Error
			if detail == "" {
				detail = strings.ToLower(status.Status)
			}
			return fmt.Errorf("fal status: request %s failed: %s", submitted.RequestID, detail)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (c *Client) fetchResult(ctx context.Context, submitted *submitResponse) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, submitted.ResponseURL, nil)
	if err != nil {
		return nil, fmt.Errorf("fal result: new request: %w", err)
	}
	c.authorize(req)

	var result resultResponse
	if err := c.doJSON(req, &result); err != nil {
		return nil, fmt.Errorf("fal result: %w", err)
	}
	if result.Error != "" {
		return nil, fmt.Errorf("fal result: service error: %s", result.Error)
	}
	if result.Audio.URL == "" {
		return nil, errors.New("fal result: no audio url in response")
	}

	if data, ok := strings.CutPrefix(result.Audio.URL, "data:audio/wav;base64,"); ok {
		raw, err := base64.StdEncoding.DecodeString(data)
		if err != nil {
			return nil, fmt.Errorf("fal result: decode inline audio: %w", err)
		}
		return raw, nil
	}

	download, err := http.NewRequestWithContext(ctx, http.MethodGet, result.Audio.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("fal download: new request: %w", err)
	}
	resp, err := c.httpClient.Do(download)
	if err != nil {
		return nil, fmt.Errorf("fal download: http error: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("fal download: http %d", resp.StatusCode)
	}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResultBytes))
	if err != nil {
		return nil, fmt.Errorf("fal download: read body: %w", err)
	}
	return raw, nil
}

func (c *Client) authorize(req *http.Request) {
	req.Header.Set("Authorization", "Key "+c.cfg.APIKey)
}

func (c *Client) doJSON(req *http.Request, target any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http error: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResultBytes))
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("http %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if err := json.Unmarshal(body, target); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// HealthCheck verifies credentials are present. The queue API has no ping
// endpoint that does not consume quota.
func (c *Client) HealthCheck(_ context.Context) error {
	if !c.Configured() {
		return errors.New("fal health: api key and base url required")
	}
	return nil
}
