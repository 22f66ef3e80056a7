package stages

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"songmill/internal/config"
	"songmill/internal/iswc"
	"songmill/internal/match"
	"songmill/internal/queue"
	"songmill/internal/services/demucs"
	"songmill/internal/services/fal"
	"songmill/internal/services/llm"
	"songmill/internal/services/musicbrainz"
	"songmill/internal/services/quansic"
	"songmill/internal/services/whisper"
	"songmill/internal/stage"
	"songmill/internal/storage"
)

// Artifact names under a track's storage prefix.
const (
	artifactSource       = "source.wav"
	artifactVocals       = "vocals.wav"
	artifactInstrumental = "instrumental.wav"
	artifactEnhanced     = "enhanced.wav"
)

const wavContentType = "audio/wav"

// objectStore is the slice of the storage client the handlers use.
type objectStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Get(ctx context.Context, key string) ([]byte, error)
}

// encodeResult marshals a task result payload. Results are advisory, so a
// marshal failure degrades to an empty record rather than failing the task.
func encodeResult(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(data)
}

// Build wires every handler from configuration. The returned map is keyed by
// task type and covers the full pipeline.
func Build(store *queue.Store, objects *storage.Client, cfg *config.Config, logger *slog.Logger) (map[queue.TaskType]stage.Handler, error) {
	quansicClient := quansic.NewClient(quansic.Config{
		BaseURL:        cfg.Quansic.BaseURL,
		APIKey:         cfg.Quansic.APIKey,
		TimeoutSeconds: cfg.Quansic.TimeoutSeconds,
	})
	musicbrainzClient := musicbrainz.NewClient(musicbrainz.Config{
		BaseURL:        cfg.MusicBrainz.BaseURL,
		UserAgent:      cfg.MusicBrainz.UserAgent,
		TimeoutSeconds: cfg.MusicBrainz.TimeoutSeconds,
	})
	demucsClient := demucs.NewClient(demucs.Config{
		BaseURL:        cfg.Demucs.BaseURL,
		TwoStem:        cfg.Demucs.TwoStem,
		TimeoutSeconds: cfg.Demucs.TimeoutSeconds,
	})
	whisperClient := whisper.NewClient(whisper.Config{
		BaseURL:        cfg.Whisper.BaseURL,
		APIKey:         cfg.Whisper.APIKey,
		Model:          cfg.Whisper.Model,
		TimeoutSeconds: cfg.Whisper.TimeoutSeconds,
	})
	falClient := fal.NewClient(fal.Config{
		APIKey:             cfg.Fal.APIKey,
		BaseURL:            cfg.Fal.BaseURL,
		PollIntervalMS:     cfg.Fal.PollIntervalMS,
		RequestTimeoutSecs: cfg.Fal.RequestTimeoutSecs,
	})
	chooser := llm.NewChooser(llm.NewClient(llm.Config{
		APIKey:         cfg.LLM.APIKey,
		BaseURL:        cfg.LLM.BaseURL,
		Model:          cfg.LLM.Model,
		TimeoutSeconds: cfg.LLM.TimeoutSeconds,
	}))

	matcherOpts := match.Options{Threshold: cfg.Match.Threshold, Logger: logger}
	if chooser != nil {
		matcherOpts.Disambiguator = chooser
	}
	matcher, err := match.New(matcherOpts)
	if err != nil {
		return nil, err
	}

	enhancer, err := NewEnhancer(objects, falClient, EnhancerOptions{
		CeilingSeconds: cfg.Fal.CeilingSeconds,
		OverlapSeconds: cfg.Fal.OverlapSeconds,
		Parallelism:    cfg.Fal.ChunkParallelism,
	}, logger)
	if err != nil {
		return nil, err
	}

	httpClient := &http.Client{Timeout: 2 * time.Minute}

	handlers := map[queue.TaskType]stage.Handler{
		queue.TaskDownload:          NewDownloader(objects, httpClient, logger),
		queue.TaskISWCDiscovery:     NewDiscovery(iswc.New(quansicClient, musicbrainzClient, logger), logger),
		queue.TaskStemSeparation:    NewSeparator(objects, demucsClient, logger),
		queue.TaskFalEnhancement:    enhancer,
		queue.TaskTranscription:     NewTranscriber(store, objects, whisperClient, logger),
		queue.TaskSegmentation:      NewSegmenter(store, logger),
		queue.TaskGenerateClipLines: NewClipLineGenerator(store, logger),
		queue.TaskFragmentAlignment: NewAligner(store, matcher, cfg.Match.ConfidenceFloor, logger),
	}
	return handlers, nil
}
