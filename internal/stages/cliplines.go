package stages

import (
	"context"
	"fmt"
	"log/slog"

	"songmill/internal/logging"
	"songmill/internal/lyrics"
	"songmill/internal/queue"
	"songmill/internal/services"
	"songmill/internal/stage"
)

// ClipLineGenerator materializes clip-relative lyric lines for every clip a
// track carries. Re-running with unchanged boundaries converges to the same
// stored rows.
type ClipLineGenerator struct {
	store  *queue.Store
	logger *slog.Logger
}

// NewClipLineGenerator builds the clip-line handler.
func NewClipLineGenerator(store *queue.Store, logger *slog.Logger) *ClipLineGenerator {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &ClipLineGenerator{store: store, logger: logger}
}

// TaskType identifies the task this handler owns.
func (g *ClipLineGenerator) TaskType() queue.TaskType { return queue.TaskGenerateClipLines }

type clipLinesResult struct {
	Clips int `json:"clips"`
	Lines int `json:"lines"`
}

// Execute materializes each clip's line subset from the full transcript.
func (g *ClipLineGenerator) Execute(ctx context.Context, track *queue.Track, task *queue.Task) error {
	logger := logging.WithContext(ctx, g.logger)

	lines, err := loadLines(ctx, g.store, track.ID, "generate_clip_lines")
	if err != nil {
		return err
	}
	clips, err := g.store.Clips(ctx, track.ID)
	if err != nil {
		return services.Wrap(services.ErrTransient, "generate_clip_lines", "fetch", "read clips", err)
	}

	total := 0
	for _, clip := range clips {
		materialized, err := lyrics.MaterializeClip(lines, clip.StartSeconds, clip.EndSeconds)
		if err != nil {
			return services.Wrap(services.ErrValidation, "generate_clip_lines", "materialize",
				fmt.Sprintf("clip %q has invalid boundaries", clip.Name), err)
		}
		stored, err := storedClipLines(materialized)
		if err != nil {
			return err
		}
		if err := g.store.ReplaceClipLines(ctx, clip.ID, stored); err != nil {
			return services.Wrap(services.ErrTransient, "generate_clip_lines", "persist",
				fmt.Sprintf("replace lines for clip %q", clip.Name), err)
		}
		total += len(stored)
	}

	task.ResultJSON = encodeResult(clipLinesResult{Clips: len(clips), Lines: total})
	logger.Info("clip lines materialized", logging.Int("clips", len(clips)), logging.Int("lines", total))
	return nil
}

// loadLines reads a track's stored transcript back into timed lines.
func loadLines(ctx context.Context, store *queue.Store, trackID int64, stageName string) ([]lyrics.Line, error) {
	stored, err := store.Lines(ctx, trackID)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, stageName, "fetch", "read track lines", err)
	}
	lines := make([]lyrics.Line, 0, len(stored))
	for _, row := range stored {
		words, err := lyrics.DecodeWords(row.WordsJSON)
		if err != nil {
			return nil, services.Wrap(services.ErrValidation, stageName, "fetch",
				fmt.Sprintf("line %d has corrupt word timings", row.LineIndex), err)
		}
		lines = append(lines, lyrics.Line{
			Index:        row.LineIndex,
			StartSeconds: row.StartSeconds,
			EndSeconds:   row.EndSeconds,
			Text:         row.Text,
			Words:        words,
		})
	}
	return lines, nil
}

func storedClipLines(materialized []lyrics.ClipLine) ([]queue.StoredClipLine, error) {
	stored := make([]queue.StoredClipLine, 0, len(materialized))
	for _, line := range materialized {
		wordsJSON, err := lyrics.EncodeWords(line.Words)
		if err != nil {
			return nil, services.Wrap(services.ErrValidation, "generate_clip_lines", "persist", "encode word timings", err)
		}
		stored = append(stored, queue.StoredClipLine{
			LineIndex:        line.Index,
			StartSeconds:     line.StartSeconds,
			EndSeconds:       line.EndSeconds,
			Text:             line.Text,
			StartsBeforeClip: line.StartsBeforeClip,
			EndsAfterClip:    line.EndsAfterClip,
			WordsJSON:        wordsJSON,
		})
	}
	return stored, nil
}

// HealthCheck reports whether the store is wired.
func (g *ClipLineGenerator) HealthCheck(context.Context) stage.Health {
	if g.store == nil {
		return stage.Unhealthy(string(queue.TaskGenerateClipLines), "store not configured")
	}
	return stage.Healthy(string(queue.TaskGenerateClipLines))
}
