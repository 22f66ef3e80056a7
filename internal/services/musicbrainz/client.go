// Package musicbrainz wraps the MusicBrainz web service, the fallback source
// for ISWC discovery when Quansic has no linkage.
package musicbrainz

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

// Config captures the MusicBrainz connection settings. UserAgent is required
// by the service's usage policy.
type Config struct {
	BaseURL        string
	UserAgent      string
	TimeoutSeconds int
}

// Client queries the MusicBrainz XML web service in JSON mode.
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

// NewClient constructs a MusicBrainz client.
func NewClient(cfg Config, opts ...Option) *Client {
	timeout := defaultTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	client := &Client{
		cfg: Config{
			BaseURL:        strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
			UserAgent:      strings.TrimSpace(cfg.UserAgent),
			TimeoutSeconds: cfg.TimeoutSeconds,
		},
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(client)
	}
	if client.cfg.BaseURL == "" {
		client.cfg.BaseURL = "https://musicbrainz.org/ws/2"
	}
	return client
}

// ErrNoWork indicates no work with an ISWC is linked to the recording.
var ErrNoWork = errors.New("musicbrainz: no linked work")

type recordingSearch struct {
	Recordings []struct {
		ID    string `json:"id"`
		Score int    `json:"score"`
	} `json:"recordings"`
}

type recordingDetail struct {
	Relations []struct {
		Type string `json:"type"`
		Work struct {
			ISWCs []string `json:"iswcs"`
		} `json:"work"`
	} `json:"relations"`
}

// LookupISWC finds the ISWC for a recording, searching by ISRC when present
// and otherwise by title and artist.
func (c *Client) LookupISWC(ctx context.Context, isrc, title, artist string) (string, error) {
	recordingID, err := c.findRecording(ctx, isrc, title, artist)
	if err != nil {
		return "", err
	}

	var detail recordingDetail
	query := url.Values{"inc": {"work-rels"}, "fmt": {"json"}}
	if err := c.get(ctx, "/recording/"+url.PathEscape(recordingID), query, &detail); err != nil {
		return "", err
	}
	for _, relation := range detail.Relations {
		if relation.Type != "performance" {
			continue
		}
		for _, iswc := range relation.Work.ISWCs {
			if trimmed := strings.TrimSpace(iswc); trimmed != "" {
				return trimmed, nil
			}
		}
	}
	return "", ErrNoWork
}

func (c *Client) findRecording(ctx context.Context, isrc, title, artist string) (string, error) {
	var terms []string
	if isrc = strings.TrimSpace(isrc); isrc != "" {
		terms = append(terms, fmt.Sprintf("isrc:%q", isrc))
	} else {
		if title = strings.TrimSpace(title); title != "" {
			terms = append(terms, fmt.Sprintf("recording:%q", title))
		}
		if artist = strings.TrimSpace(artist); artist != "" {
			terms = append(terms, fmt.Sprintf("artist:%q", artist))
		}
	}
	if len(terms) == 0 {
		return "", errors.New("musicbrainz search: no identifying metadata")
	}

	var result recordingSearch
	query := url.Values{
		"query": {strings.Join(terms, " AND ")},
		"limit": {"1"},
		"fmt":   {"json"},
	}
	if err := c.get(ctx, "/recording", query, &result); err != nil {
		return "", err
	}
	if len(result.Recordings) == 0 {
		return "", ErrNoWork
	}
	return result.Recordings[0].ID, nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values, target any) error {
	endpoint := c.cfg.BaseURL + path + "?" + query.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("musicbrainz request: new request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", c.cfg.UserAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("musicbrainz request: http error: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrNoWork
	case resp.StatusCode >= http.StatusMultipleChoices:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("musicbrainz request: http %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return fmt.Errorf("musicbrainz request: decode response: %w", err)
	}
	return nil
}
