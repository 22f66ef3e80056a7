package stages

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"songmill/internal/audio"
	"songmill/internal/logging"
	"songmill/internal/queue"
	"songmill/internal/services"
	"songmill/internal/stage"
	"songmill/internal/storage"
)

// maxDownloadBytes bounds a single source fetch.
const maxDownloadBytes = 1 << 30

// Downloader fetches a track's source audio and stows it in object storage.
// The decoded duration becomes the track's authoritative duration.
type Downloader struct {
	objects    objectStore
	httpClient *http.Client
	logger     *slog.Logger
}

// NewDownloader builds the download handler.
func NewDownloader(objects objectStore, httpClient *http.Client, logger *slog.Logger) *Downloader {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 2 * time.Minute}
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Downloader{objects: objects, httpClient: httpClient, logger: logger}
}

// TaskType identifies the task this handler owns.
func (d *Downloader) TaskType() queue.TaskType { return queue.TaskDownload }

type downloadResult struct {
	Object          string  `json:"object"`
	Bytes           int     `json:"bytes"`
	DurationSeconds float64 `json:"duration_seconds"`
}

// Execute fetches the source URL, verifies it decodes as WAV, and uploads it.
func (d *Downloader) Execute(ctx context.Context, track *queue.Track, task *queue.Task) error {
	if track.SourceURL == "" {
		return services.Wrap(services.ErrValidation, "download", "fetch", "track has no source URL", nil)
	}
	logger := logging.WithContext(ctx, d.logger)

	data, err := d.fetch(ctx, track.SourceURL)
	if err != nil {
		return err
	}
	buf, err := audio.DecodeWAV(bytes.NewReader(data))
	if err != nil {
		return services.Wrap(services.ErrValidation, "download", "decode", "source is not playable WAV audio", err)
	}

	key := storage.TrackKey(track.ID, artifactSource)
	if err := d.objects.Put(ctx, key, data, wavContentType); err != nil {
		return services.Wrap(services.ErrExternalService, "download", "store", "upload source audio", err)
	}

	track.AudioObject = key
	track.DurationSeconds = buf.Duration()
	task.ResultJSON = encodeResult(downloadResult{
		Object:          key,
		Bytes:           len(data),
		DurationSeconds: buf.Duration(),
	})
	logger.Info("source audio stored",
		logging.String("object", key),
		logging.Int("bytes", len(data)),
		logging.Float64("duration_seconds", buf.Duration()),
	)
	return nil
}

func (d *Downloader) fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "download", "fetch", "invalid source URL", err)
	}
	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, services.Wrap(services.ErrExternalService, "download", "fetch", "request source audio", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, services.Wrap(services.ErrExternalService, "download", "fetch",
			fmt.Sprintf("source returned status %d", resp.StatusCode), nil)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDownloadBytes))
	if err != nil {
		return nil, services.Wrap(services.ErrExternalService, "download", "fetch", "read source audio", err)
	}
	return data, nil
}

// HealthCheck verifies the object store dependency is present.
func (d *Downloader) HealthCheck(context.Context) stage.Health {
	if d.objects == nil {
		return stage.Unhealthy(string(queue.TaskDownload), "object storage not configured")
	}
	return stage.Healthy(string(queue.TaskDownload))
}
