package stages

import (
	"bytes"
	"context"
	"log/slog"

	"songmill/internal/audio"
	"songmill/internal/enhance"
	"songmill/internal/logging"
	"songmill/internal/queue"
	"songmill/internal/services"
	"songmill/internal/stage"
	"songmill/internal/storage"
)

// EnhancerOptions carries the chunking parameters for the external processor.
type EnhancerOptions struct {
	CeilingSeconds float64
	OverlapSeconds float64
	Parallelism    int
}

// Enhancer runs the source audio through the size-limited external processor,
// chunking and reassembling when the track exceeds the duration ceiling.
type Enhancer struct {
	objects objectStore
	engine  *enhance.Engine
	logger  *slog.Logger
}

// NewEnhancer builds the enhancement handler around a chunk processor.
func NewEnhancer(objects objectStore, processor enhance.Processor, opts EnhancerOptions, logger *slog.Logger) (*Enhancer, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	engine, err := enhance.NewEngine(processor, enhance.Options{
		CeilingSeconds: opts.CeilingSeconds,
		OverlapSeconds: opts.OverlapSeconds,
		Parallelism:    opts.Parallelism,
		Logger:         logger,
	})
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "fal_enhancement", "configure", "invalid chunking parameters", err)
	}
	return &Enhancer{objects: objects, engine: engine, logger: logger}, nil
}

// TaskType identifies the task this handler owns.
func (e *Enhancer) TaskType() queue.TaskType { return queue.TaskFalEnhancement }

type enhanceResult struct {
	Object          string  `json:"object"`
	DurationSeconds float64 `json:"duration_seconds"`
}

// Execute decodes the stored source, enhances it, and stores the merged result.
func (e *Enhancer) Execute(ctx context.Context, track *queue.Track, task *queue.Task) error {
	if track.AudioObject == "" {
		return services.Wrap(services.ErrValidation, "fal_enhancement", "enhance", "track has no source audio object", nil)
	}
	logger := logging.WithContext(ctx, e.logger)

	data, err := e.objects.Get(ctx, track.AudioObject)
	if err != nil {
		return services.Wrap(services.ErrExternalService, "fal_enhancement", "fetch", "read source audio", err)
	}
	source, err := audio.DecodeWAV(bytes.NewReader(data))
	if err != nil {
		return services.Wrap(services.ErrValidation, "fal_enhancement", "decode", "stored source is not WAV", err)
	}

	enhanced, err := e.engine.Enhance(ctx, source)
	if err != nil {
		return err
	}

	var out bytes.Buffer
	if err := audio.EncodeWAV(&out, enhanced); err != nil {
		return services.Wrap(services.ErrValidation, "fal_enhancement", "encode", "encode merged audio", err)
	}
	key := storage.TrackKey(track.ID, artifactEnhanced)
	if err := e.objects.Put(ctx, key, out.Bytes(), wavContentType); err != nil {
		return services.Wrap(services.ErrExternalService, "fal_enhancement", "store", "upload enhanced audio", err)
	}

	track.EnhancedObject = key
	task.ResultJSON = encodeResult(enhanceResult{Object: key, DurationSeconds: enhanced.Duration()})
	logger.Info("enhanced audio stored",
		logging.String("object", key),
		logging.Float64("duration_seconds", enhanced.Duration()),
	)
	return nil
}

// HealthCheck verifies the engine and storage are wired.
func (e *Enhancer) HealthCheck(context.Context) stage.Health {
	if e.objects == nil {
		return stage.Unhealthy(string(queue.TaskFalEnhancement), "object storage not configured")
	}
	return stage.Healthy(string(queue.TaskFalEnhancement))
}
