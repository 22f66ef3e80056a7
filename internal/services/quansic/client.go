// Package quansic wraps the Quansic enrichment service, the primary source
// for ISWC discovery.
package quansic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultTimeout = 30 * time.Second

// Config captures the connection settings for the enrichment service.
type Config struct {
	BaseURL        string
	APIKey         string
	TimeoutSeconds int
}

// Client talks to the Quansic enrichment HTTP API.
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

// NewClient constructs a Quansic client.
func NewClient(cfg Config, opts ...Option) *Client {
	timeout := defaultTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	client := &Client{
		cfg: Config{
			BaseURL:        strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
			APIKey:         strings.TrimSpace(cfg.APIKey),
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

// Recording is the enrichment payload for one recording lookup.
type Recording struct {
	ISRC    string `json:"isrc"`
	Title   string `json:"title"`
	Artist  string `json:"artist"`
	ISWC    string `json:"iswc"`
	WorkIDs []struct {
		Type  string `json:"type"`
		Value string `json:"value"`
	} `json:"work_ids"`
}

// ErrNoRecording indicates the service knows nothing about the recording.
var ErrNoRecording = errors.New("quansic: recording not found")

// LookupRecording enriches a recording by ISRC and returns its work linkage.
func (c *Client) LookupRecording(ctx context.Context, isrc string) (*Recording, error) {
	isrc = strings.TrimSpace(isrc)
	if isrc == "" {
		return nil, errors.New("quansic lookup: isrc required")
	}
	if !c.Configured() {
		return nil, errors.New("quansic lookup: base url required")
	}

	endpoint := c.cfg.BaseURL + "/recordings/" + url.PathEscape(isrc)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("quansic lookup: new request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("quansic lookup: http error: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrNoRecording
	case resp.StatusCode >= http.StatusMultipleChoices:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, fmt.Errorf("quansic lookup: http %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var recording Recording
	if err := json.NewDecoder(resp.Body).Decode(&recording); err != nil {
		return nil, fmt.Errorf("quansic lookup: decode response: %w", err)
	}
	return &recording, nil
}

// ISWCValue extracts the recording's ISWC, checking the dedicated field
// first and then the work identifier list.
func (r *Recording) ISWCValue() string {
	if r == nil {
		return ""
	}
	if iswc := strings.TrimSpace(r.ISWC); iswc != "" {
		return iswc
	}
	for _, id := range r.WorkIDs {
		if strings.EqualFold(id.Type, "iswc") && strings.TrimSpace(id.Value) != "" {
			return strings.TrimSpace(id.Value)
		}
	}
	return ""
}

// HealthCheck verifies the service is reachable.
func (c *Client) HealthCheck(ctx context.Context) error {
	if !c.Configured() {
		return errors.New("quansic health: base url required")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("quansic health: new request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("quansic health: http error: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("quansic health: http %d", resp.StatusCode)
	}
	return nil
}
