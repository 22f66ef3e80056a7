package stages

import (
	"context"
	"math"
	"testing"

	"songmill/internal/lyrics"
	"songmill/internal/queue"
	"songmill/internal/testsupport"
)

func seedTranscript(t *testing.T, store *queue.Store, trackID int64, lines []lyrics.Line) {
	t.Helper()
	stored := make([]queue.StoredLine, 0, len(lines))
	for _, line := range lines {
		wordsJSON, err := lyrics.EncodeWords(line.Words)
		if err != nil {
			t.Fatalf("EncodeWords: %v", err)
		}
		stored = append(stored, queue.StoredLine{
			LineIndex:    line.Index,
			StartSeconds: line.StartSeconds,
			EndSeconds:   line.EndSeconds,
			Text:         line.Text,
			WordsJSON:    wordsJSON,
		})
	}
	if err := store.ReplaceLines(context.Background(), trackID, stored); err != nil {
		t.Fatalf("ReplaceLines: %v", err)
	}
}

func TestClipLineGeneratorMaterializesEveryClip(t *testing.T) {
	ctx := context.Background()
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	track := testsupport.IngestTrack(t, store, "Materialized", "Artist", 120)

	seedTranscript(t, store, track.ID, timedLines(
		[][2]float64{{8, 12}, {12.5, 16}, {30, 34}},
		[]string{"straddles the boundary", "fully inside", "second clip line"},
	))
	if err := store.ReplaceClips(ctx, track.ID, []queue.Clip{
		{Name: "clip-1", StartSeconds: 10, EndSeconds: 20},
		{Name: "clip-2", StartSeconds: 28, EndSeconds: 40},
	}); err != nil {
		t.Fatalf("ReplaceClips failed: %v", err)
	}

	handler := NewClipLineGenerator(store, nil)
	task := testTask(track.ID, queue.TaskGenerateClipLines)
	if err := handler.Execute(ctx, track, task); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	first, err := store.ClipByName(ctx, track.ID, "clip-1")
	if err != nil || first == nil {
		t.Fatalf("clip-1 missing: %v", err)
	}
	lines, err := store.ClipLines(ctx, first.ID)
	if err != nil {
		t.Fatalf("ClipLines failed: %v", err)
	}
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines in clip-1, got %d", len(lines))
	}
	// Line [8,12) against clip [10,20): clamped to clip-relative [0,2).
	if !lines[0].StartsBeforeClip || lines[0].EndsAfterClip {
		t.Fatalf("boundary flags wrong: %+v", lines[0])
	}
	if lines[0].StartSeconds != 0 || math.Abs(lines[0].EndSeconds-2) > 1e-9 {
		t.Fatalf("rebasing wrong: %+v", lines[0])
	}

	second, err := store.ClipByName(ctx, track.ID, "clip-2")
	if err != nil || second == nil {
		t.Fatalf("clip-2 missing: %v", err)
	}
	secondLines, err := store.ClipLines(ctx, second.ID)
	if err != nil {
		t.Fatalf("ClipLines failed: %v", err)
	}
	if len(secondLines) != 1 || math.Abs(secondLines[0].StartSeconds-2) > 1e-9 {
		t.Fatalf("second clip lines wrong: %+v", secondLines)
	}
}

func TestClipLineGeneratorIsIdempotent(t *testing.T) {
	ctx := context.Background()
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	track := testsupport.IngestTrack(t, store, "Idempotent", "Artist", 60)

	seedTranscript(t, store, track.ID, timedLines(
		[][2]float64{{5, 9}},
		[]string{"a single line"},
	))
	if err := store.ReplaceClips(ctx, track.ID, []queue.Clip{
		{Name: "clip-1", StartSeconds: 4, EndSeconds: 10},
	}); err != nil {
		t.Fatalf("ReplaceClips failed: %v", err)
	}

	handler := NewClipLineGenerator(store, nil)
	for i := 0; i < 2; i++ {
		if err := handler.Execute(ctx, track, testTask(track.ID, queue.TaskGenerateClipLines)); err != nil {
			t.Fatalf("Execute %d failed: %v", i, err)
		}
	}

	clip, err := store.ClipByName(ctx, track.ID, "clip-1")
	if err != nil || clip == nil {
		t.Fatalf("clip missing: %v", err)
	}
	lines, err := store.ClipLines(ctx, clip.ID)
	if err != nil {
		t.Fatalf("ClipLines failed: %v", err)
	}
	if len(lines) != 1 {
		t.Fatalf("rerun duplicated lines: %d", len(lines))
	}
}
