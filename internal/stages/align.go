package stages

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"songmill/internal/logging"
	"songmill/internal/lyrics"
	"songmill/internal/match"
	"songmill/internal/queue"
	"songmill/internal/services"
	"songmill/internal/stage"
)

// defaultFragmentClip names the clip an alignment produces when the fragment
// payload carries no name of its own.
const defaultFragmentClip = "fragment"

// fragmentPayload is the transcript attached to a track for alignment.
type fragmentPayload struct {
	Name string `json:"name,omitempty"`
	Text string `json:"text"`
}

// fragmentMatcher is the slice of the matcher the handler uses.
type fragmentMatcher interface {
	Find(ctx context.Context, fragment string, words []lyrics.Word) (*match.Candidate, error)
}

// Aligner locates a fragment transcript inside the full-track transcript and
// records the match as a named clip with materialized lines.
type Aligner struct {
	store           *queue.Store
	matcher         fragmentMatcher
	confidenceFloor float64
	logger          *slog.Logger
}

// NewAligner builds the fragment alignment handler.
func NewAligner(store *queue.Store, matcher fragmentMatcher, confidenceFloor float64, logger *slog.Logger) *Aligner {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Aligner{store: store, matcher: matcher, confidenceFloor: confidenceFloor, logger: logger}
}

// TaskType identifies the task this handler owns.
func (a *Aligner) TaskType() queue.TaskType { return queue.TaskFragmentAlignment }

type alignmentResult struct {
	Clip         string  `json:"clip"`
	StartSeconds float64 `json:"start_seconds"`
	EndSeconds   float64 `json:"end_seconds"`
	Score        float64 `json:"score"`
	Confidence   string  `json:"confidence"`
}

// Execute matches the fragment against the stored transcript and upserts the
// resulting clip without disturbing the track's segmentation clips.
func (a *Aligner) Execute(ctx context.Context, track *queue.Track, task *queue.Task) error {
	fragment, err := parseFragment(track.FragmentJSON)
	if err != nil {
		return err
	}
	logger := logging.WithContext(ctx, a.logger)

	lines, err := loadLines(ctx, a.store, track.ID, "fragment_alignment")
	if err != nil {
		return err
	}
	words := flattenWords(lines)
	if len(words) == 0 {
		return services.Wrap(services.ErrValidation, "fragment_alignment", "match", "track transcript has no word timings", nil)
	}

	candidate, err := a.matcher.Find(ctx, fragment.Text, words)
	if err != nil {
		return err
	}
	if candidate.Score < a.confidenceFloor {
		return services.Wrap(services.ErrNotFound, "fragment_alignment", "match",
			fmt.Sprintf("best match score %.2f is below the confidence floor %.2f", candidate.Score, a.confidenceFloor), nil)
	}

	clip, err := a.store.UpsertClip(ctx, track.ID, queue.Clip{
		Name:         fragment.Name,
		StartSeconds: candidate.StartSeconds,
		EndSeconds:   candidate.EndSeconds,
	})
	if err != nil {
		return services.Wrap(services.ErrTransient, "fragment_alignment", "persist", "upsert fragment clip", err)
	}

	materialized, err := lyrics.MaterializeClip(lines, clip.StartSeconds, clip.EndSeconds)
	if err != nil {
		return services.Wrap(services.ErrValidation, "fragment_alignment", "materialize", "fragment clip boundaries", err)
	}
	stored, err := storedClipLines(materialized)
	if err != nil {
		return err
	}
	if err := a.store.ReplaceClipLines(ctx, clip.ID, stored); err != nil {
		return services.Wrap(services.ErrTransient, "fragment_alignment", "persist", "replace fragment clip lines", err)
	}

	confidence := confidenceLabel(candidate.Score)
	task.ResultJSON = encodeResult(alignmentResult{
		Clip:         clip.Name,
		StartSeconds: clip.StartSeconds,
		EndSeconds:   clip.EndSeconds,
		Score:        candidate.Score,
		Confidence:   confidence,
	})
	logger.Info("fragment aligned",
		logging.String("clip", clip.Name),
		logging.Float64("start_seconds", clip.StartSeconds),
		logging.Float64("end_seconds", clip.EndSeconds),
		logging.Float64("score", candidate.Score),
		logging.String("confidence", confidence),
	)
	return nil
}

func parseFragment(raw string) (*fragmentPayload, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, services.Wrap(services.ErrValidation, "fragment_alignment", "parse", "track has no fragment transcript", nil)
	}
	var fragment fragmentPayload
	if err := json.Unmarshal([]byte(raw), &fragment); err != nil {
		return nil, services.Wrap(services.ErrValidation, "fragment_alignment", "parse", "fragment payload is not valid JSON", err)
	}
	if strings.TrimSpace(fragment.Text) == "" {
		return nil, services.Wrap(services.ErrValidation, "fragment_alignment", "parse", "fragment transcript is empty", nil)
	}
	if strings.TrimSpace(fragment.Name) == "" {
		fragment.Name = defaultFragmentClip
	}
	return &fragment, nil
}

// flattenWords concatenates the word timings of every line. Lines whose
// transcript lacks word granularity contribute words spaced evenly across the
// line span so the matcher still has timing to work with.
func flattenWords(lines []lyrics.Line) []lyrics.Word {
	var words []lyrics.Word
	for _, line := range lines {
		if len(line.Words) > 0 {
			words = append(words, line.Words...)
			continue
		}
		tokens := strings.Fields(line.Text)
		if len(tokens) == 0 {
			continue
		}
		step := (line.EndSeconds - line.StartSeconds) / float64(len(tokens))
		for i, token := range tokens {
			words = append(words, lyrics.Word{
				Text:         token,
				StartSeconds: line.StartSeconds + float64(i)*step,
				EndSeconds:   line.StartSeconds + float64(i+1)*step,
			})
		}
	}
	return words
}

func confidenceLabel(score float64) string {
	switch {
	case score > 0.7:
		return "high"
	case score > 0.5:
		return "medium"
	default:
		return "low"
	}
}

// HealthCheck reports whether the matcher is wired.
func (a *Aligner) HealthCheck(context.Context) stage.Health {
	if a.matcher == nil {
		return stage.Unhealthy(string(queue.TaskFragmentAlignment), "matcher not configured")
	}
	return stage.Healthy(string(queue.TaskFragmentAlignment))
}
