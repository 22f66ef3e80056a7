package testsupport

import (
	"context"
	"testing"

	"songmill/internal/config"
	"songmill/internal/queue"
)

// MustOpenStore opens a queue.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *queue.Store {
	t.Helper()

	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("queue.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// IngestTrack creates a new track for tests using the provided store.
func IngestTrack(t testing.TB, store *queue.Store, title, artist string, durationSeconds float64) *queue.Track {
	t.Helper()

	track, err := store.IngestTrack(context.Background(), queue.NewTrack{
		Title:           title,
		Artist:          artist,
		SourceURL:       "https://example.test/" + title,
		DurationSeconds: durationSeconds,
	})
	if err != nil {
		t.Fatalf("store.IngestTrack: %v", err)
	}
	return track
}

// CompleteTask drives a task through claim and completion so tests can set up
// pipeline state without running handlers.
func CompleteTask(t testing.TB, store *queue.Store, trackID int64, taskType queue.TaskType) {
	t.Helper()

	ctx := context.Background()
	if _, err := store.Claim(ctx, trackID, taskType); err != nil {
		t.Fatalf("store.Claim(%s): %v", taskType, err)
	}
	if err := store.Complete(ctx, trackID, taskType, ""); err != nil {
		t.Fatalf("store.Complete(%s): %v", taskType, err)
	}
}
