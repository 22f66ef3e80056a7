package stages

import (
	"context"
	"log/slog"

	"songmill/internal/logging"
	"songmill/internal/lyrics"
	"songmill/internal/queue"
	"songmill/internal/services"
	"songmill/internal/stage"
)

// transcriber is the slice of the Whisper client the handler uses.
type transcriber interface {
	Configured() bool
	Transcribe(ctx context.Context, filename string, audio []byte) ([]lyrics.Line, error)
	HealthCheck(ctx context.Context) error
}

// Transcriber produces the full-track timed transcript from the vocal stem
// and persists it as the track's line set.
type Transcriber struct {
	store   *queue.Store
	objects objectStore
	client  transcriber
	logger  *slog.Logger
}

// NewTranscriber builds the transcription handler.
func NewTranscriber(store *queue.Store, objects objectStore, client transcriber, logger *slog.Logger) *Transcriber {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Transcriber{store: store, objects: objects, client: client, logger: logger}
}

// TaskType identifies the task this handler owns.
func (t *Transcriber) TaskType() queue.TaskType { return queue.TaskTranscription }

type transcriptionResult struct {
	Lines int `json:"lines"`
	Words int `json:"words"`
}

// Execute transcribes the vocal stem and replaces the track's stored lines.
func (t *Transcriber) Execute(ctx context.Context, track *queue.Track, task *queue.Task) error {
	if t.client == nil || !t.client.Configured() {
		return services.Wrap(services.ErrConfiguration, "transcription", "transcribe", "transcription service not configured", nil)
	}
	if track.VocalsObject == "" {
		return services.Wrap(services.ErrValidation, "transcription", "transcribe", "track has no vocal stem object", nil)
	}
	logger := logging.WithContext(ctx, t.logger)

	vocals, err := t.objects.Get(ctx, track.VocalsObject)
	if err != nil {
		return services.Wrap(services.ErrExternalService, "transcription", "fetch", "read vocal stem", err)
	}
	lines, err := t.client.Transcribe(ctx, artifactVocals, vocals)
	if err != nil {
		return err
	}

	stored := make([]queue.StoredLine, 0, len(lines))
	words := 0
	for _, line := range lines {
		wordsJSON, err := lyrics.EncodeWords(line.Words)
		if err != nil {
			return services.Wrap(services.ErrValidation, "transcription", "persist", "encode word timings", err)
		}
		words += len(line.Words)
		stored = append(stored, queue.StoredLine{
			LineIndex:    line.Index,
			StartSeconds: line.StartSeconds,
			EndSeconds:   line.EndSeconds,
			Text:         line.Text,
			WordsJSON:    wordsJSON,
		})
	}
	if err := t.store.ReplaceLines(ctx, track.ID, stored); err != nil {
		return services.Wrap(services.ErrTransient, "transcription", "persist", "replace track lines", err)
	}

	task.ResultJSON = encodeResult(transcriptionResult{Lines: len(stored), Words: words})
	logger.Info("transcript stored", logging.Int("lines", len(stored)), logging.Int("words", words))
	return nil
}

// HealthCheck probes the transcription service.
func (t *Transcriber) HealthCheck(ctx context.Context) stage.Health {
	if t.client == nil || !t.client.Configured() {
		return stage.Unhealthy(string(queue.TaskTranscription), "transcription service not configured")
	}
	if err := t.client.HealthCheck(ctx); err != nil {
		return stage.Unhealthy(string(queue.TaskTranscription), err.Error())
	}
	return stage.Healthy(string(queue.TaskTranscription))
}
