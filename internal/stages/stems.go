package stages

import (
	"context"
	"log/slog"

	"songmill/internal/logging"
	"songmill/internal/queue"
	"songmill/internal/services"
	"songmill/internal/services/demucs"
	"songmill/internal/stage"
	"songmill/internal/storage"
)

// separator is the slice of the Demucs client the handler uses.
type separator interface {
	Configured() bool
	Separate(ctx context.Context, filename string, audio []byte) (*demucs.Stems, error)
	HealthCheck(ctx context.Context) error
}

// Separator splits the source audio into vocal and instrumental stems.
type Separator struct {
	objects objectStore
	client  separator
	logger  *slog.Logger
}

// NewSeparator builds the stem separation handler.
func NewSeparator(objects objectStore, client separator, logger *slog.Logger) *Separator {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Separator{objects: objects, client: client, logger: logger}
}

// TaskType identifies the task this handler owns.
func (s *Separator) TaskType() queue.TaskType { return queue.TaskStemSeparation }

type separationResult struct {
	VocalsObject       string  `json:"vocals_object"`
	InstrumentalObject string  `json:"instrumental_object"`
	DurationSeconds    float64 `json:"duration_seconds"`
}

// Execute pulls the stored source, separates it, and stores both stems.
func (s *Separator) Execute(ctx context.Context, track *queue.Track, task *queue.Task) error {
	if s.client == nil || !s.client.Configured() {
		return services.Wrap(services.ErrConfiguration, "stem_separation", "separate", "demucs service not configured", nil)
	}
	if track.AudioObject == "" {
		return services.Wrap(services.ErrValidation, "stem_separation", "separate", "track has no source audio object", nil)
	}
	logger := logging.WithContext(ctx, s.logger)

	source, err := s.objects.Get(ctx, track.AudioObject)
	if err != nil {
		return services.Wrap(services.ErrExternalService, "stem_separation", "fetch", "read source audio", err)
	}
	stems, err := s.client.Separate(ctx, artifactSource, source)
	if err != nil {
		return err
	}

	vocalsKey := storage.TrackKey(track.ID, artifactVocals)
	instrumentalKey := storage.TrackKey(track.ID, artifactInstrumental)
	if err := s.objects.Put(ctx, vocalsKey, stems.Vocals, wavContentType); err != nil {
		return services.Wrap(services.ErrExternalService, "stem_separation", "store", "upload vocal stem", err)
	}
	if err := s.objects.Put(ctx, instrumentalKey, stems.Instrumental, wavContentType); err != nil {
		return services.Wrap(services.ErrExternalService, "stem_separation", "store", "upload instrumental stem", err)
	}

	track.VocalsObject = vocalsKey
	track.InstrumentalObject = instrumentalKey
	task.ResultJSON = encodeResult(separationResult{
		VocalsObject:       vocalsKey,
		InstrumentalObject: instrumentalKey,
		DurationSeconds:    stems.DurationSeconds,
	})
	logger.Info("stems stored",
		logging.String("vocals", vocalsKey),
		logging.String("instrumental", instrumentalKey),
	)
	return nil
}

// HealthCheck probes the separation service.
func (s *Separator) HealthCheck(ctx context.Context) stage.Health {
	if s.client == nil || !s.client.Configured() {
		return stage.Unhealthy(string(queue.TaskStemSeparation), "demucs service not configured")
	}
	if err := s.client.HealthCheck(ctx); err != nil {
		return stage.Unhealthy(string(queue.TaskStemSeparation), err.Error())
	}
	return stage.Healthy(string(queue.TaskStemSeparation))
}
