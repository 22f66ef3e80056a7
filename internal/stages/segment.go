package stages

import (
	"context"
	"fmt"
	"log/slog"

	"songmill/internal/logging"
	"songmill/internal/queue"
	"songmill/internal/services"
	"songmill/internal/stage"
)

// Silence at least this long between consecutive lines starts a new clip.
const clipGapSeconds = 2.5

// clipPadSeconds is breathing room added around each clip, clamped to the
// track bounds.
const clipPadSeconds = 0.25

// Segmenter derives named clip boundaries from the gaps in the transcript.
// Boundaries are replaced wholesale on re-run, never patched.
type Segmenter struct {
	store  *queue.Store
	logger *slog.Logger
}

// NewSegmenter builds the segmentation handler.
func NewSegmenter(store *queue.Store, logger *slog.Logger) *Segmenter {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Segmenter{store: store, logger: logger}
}

// TaskType identifies the task this handler owns.
func (s *Segmenter) TaskType() queue.TaskType { return queue.TaskSegmentation }

type segmentationResult struct {
	Clips int `json:"clips"`
}

// Execute groups lines separated by silence into clips and stores them.
func (s *Segmenter) Execute(ctx context.Context, track *queue.Track, task *queue.Task) error {
	logger := logging.WithContext(ctx, s.logger)

	lines, err := s.store.Lines(ctx, track.ID)
	if err != nil {
		return services.Wrap(services.ErrTransient, "segmentation", "fetch", "read track lines", err)
	}

	clips := deriveClips(lines, track.DurationSeconds)
	if err := s.store.ReplaceClips(ctx, track.ID, clips); err != nil {
		return services.Wrap(services.ErrTransient, "segmentation", "persist", "replace clips", err)
	}

	task.ResultJSON = encodeResult(segmentationResult{Clips: len(clips)})
	logger.Info("clip boundaries stored", logging.Int("clips", len(clips)))
	return nil
}

// deriveClips groups consecutive lines whose inter-line silence stays under
// clipGapSeconds. Lines arrive ordered by line index.
func deriveClips(lines []queue.StoredLine, duration float64) []queue.Clip {
	if len(lines) == 0 {
		return nil
	}
	var clips []queue.Clip
	start := lines[0].StartSeconds
	end := lines[0].EndSeconds
	for _, line := range lines[1:] {
		if line.StartSeconds-end >= clipGapSeconds {
			clips = append(clips, padClip(start, end, duration, len(clips)+1))
			start = line.StartSeconds
			end = line.EndSeconds
		} else if line.EndSeconds > end {
			end = line.EndSeconds
		}
	}
	clips = append(clips, padClip(start, end, duration, len(clips)+1))
	return clips
}

func padClip(start, end, duration float64, ordinal int) queue.Clip {
	start -= clipPadSeconds
	if start < 0 {
		start = 0
	}
	end += clipPadSeconds
	if duration > 0 && end > duration {
		end = duration
	}
	return queue.Clip{
		Name:         fmt.Sprintf("clip-%d", ordinal),
		StartSeconds: start,
		EndSeconds:   end,
	}
}

// HealthCheck reports whether the store is wired.
func (s *Segmenter) HealthCheck(context.Context) stage.Health {
	if s.store == nil {
		return stage.Unhealthy(string(queue.TaskSegmentation), "store not configured")
	}
	return stage.Healthy(string(queue.TaskSegmentation))
}
