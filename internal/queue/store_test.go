package queue_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"songmill/internal/queue"
	"songmill/internal/testsupport"
)

func TestIngestTrackSeedsInitialTasks(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	track := testsupport.IngestTrack(t, store, "Night Drive", "The Atlas", 241.5)
	if track.ID == 0 {
		t.Fatal("expected track ID to be assigned")
	}
	if track.Stage != queue.StageIngested {
		t.Fatalf("expected stage %q, got %q", queue.StageIngested, track.Stage)
	}

	tasks, err := store.TasksForTrack(ctx, track.ID)
	if err != nil {
		t.Fatalf("TasksForTrack failed: %v", err)
	}
	if len(tasks) != 2 {
		t.Fatalf("expected 2 seeded tasks, got %d", len(tasks))
	}
	seen := map[queue.TaskType]bool{}
	for _, task := range tasks {
		if task.Status != queue.StatusPending {
			t.Fatalf("task %s: expected pending, got %s", task.Type, task.Status)
		}
		seen[task.Type] = true
	}
	if !seen[queue.TaskDownload] || !seen[queue.TaskISWCDiscovery] {
		t.Fatalf("expected download and iswc_discovery tasks, got %v", seen)
	}
}

func TestEnsureTaskIsIdempotent(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	track := testsupport.IngestTrack(t, store, "Echoes", "Marble Arch", 198)

	for i := 0; i < 3; i++ {
		if err := store.EnsureTask(ctx, track.ID, queue.TaskStemSeparation); err != nil {
			t.Fatalf("EnsureTask attempt %d: %v", i, err)
		}
	}

	task, err := store.GetTask(ctx, track.ID, queue.TaskStemSeparation)
	if err != nil {
		t.Fatalf("GetTask failed: %v", err)
	}
	if task == nil || task.Status != queue.StatusPending {
		t.Fatalf("unexpected task after repeated ensure: %#v", task)
	}

	// A completed row must survive re-ensure untouched.
	testsupport.CompleteTask(t, store, track.ID, queue.TaskDownload)
	testsupport.CompleteTask(t, store, track.ID, queue.TaskStemSeparation)
	if err := store.EnsureTask(ctx, track.ID, queue.TaskStemSeparation); err != nil {
		t.Fatalf("EnsureTask after completion: %v", err)
	}
	task, err = store.GetTask(ctx, track.ID, queue.TaskStemSeparation)
	if err != nil {
		t.Fatalf("GetTask failed: %v", err)
	}
	if task.Status != queue.StatusCompleted {
		t.Fatalf("expected completed status preserved, got %s", task.Status)
	}
}

func TestClaimIsExclusive(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	track := testsupport.IngestTrack(t, store, "Glass City", "Iron Field", 175)

	task, err := store.Claim(ctx, track.ID, queue.TaskDownload)
	if err != nil {
		t.Fatalf("first claim failed: %v", err)
	}
	if task.Status != queue.StatusProcessing {
		t.Fatalf("expected processing, got %s", task.Status)
	}
	if task.LastHeartbeat == nil {
		t.Fatal("expected heartbeat set on claim")
	}

	if _, err := store.Claim(ctx, track.ID, queue.TaskDownload); !errors.Is(err, queue.ErrAlreadyClaimed) {
		t.Fatalf("expected ErrAlreadyClaimed, got %v", err)
	}
}

func TestCompleteFansOutDownstreamTasks(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	track := testsupport.IngestTrack(t, store, "Low Tide", "Harbor Lights", 203)

	testsupport.CompleteTask(t, store, track.ID, queue.TaskDownload)
	testsupport.CompleteTask(t, store, track.ID, queue.TaskStemSeparation)

	tasks, err := store.TasksForTrack(ctx, track.ID)
	if err != nil {
		t.Fatalf("TasksForTrack failed: %v", err)
	}
	byType := map[queue.TaskType]*queue.Task{}
	for _, task := range tasks {
		byType[task.Type] = task
	}
	for _, want := range []queue.TaskType{queue.TaskFalEnhancement, queue.TaskTranscription} {
		task := byType[want]
		if task == nil || task.Status != queue.StatusPending {
			t.Fatalf("expected pending %s task after stem separation, got %#v", want, task)
		}
	}

	refreshed, err := store.GetTrack(ctx, track.ID)
	if err != nil {
		t.Fatalf("GetTrack failed: %v", err)
	}
	if refreshed.Stage != string(queue.TaskStemSeparation) {
		t.Fatalf("expected stage %q, got %q", queue.TaskStemSeparation, refreshed.Stage)
	}
}

func TestCompleteRequiresProcessing(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	track := testsupport.IngestTrack(t, store, "Wire Garden", "Pale Static", 160)

	if err := store.Complete(ctx, track.ID, queue.TaskDownload, ""); !errors.Is(err, queue.ErrNotProcessing) {
		t.Fatalf("expected ErrNotProcessing, got %v", err)
	}
}

func TestFailRecordsRetryAndClass(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	track := testsupport.IngestTrack(t, store, "Old Coast", "Brine", 188)

	if _, err := store.Claim(ctx, track.ID, queue.TaskDownload); err != nil {
		t.Fatalf("claim failed: %v", err)
	}
	if err := store.Fail(ctx, track.ID, queue.TaskDownload, "source returned 503", "external_service"); err != nil {
		t.Fatalf("Fail failed: %v", err)
	}

	task, err := store.GetTask(ctx, track.ID, queue.TaskDownload)
	if err != nil {
		t.Fatalf("GetTask failed: %v", err)
	}
	if task.Status != queue.StatusFailed {
		t.Fatalf("expected failed, got %s", task.Status)
	}
	if task.RetryCount != 1 {
		t.Fatalf("expected retry count 1, got %d", task.RetryCount)
	}
	if task.ErrorClass != "external_service" || task.ErrorMessage == "" {
		t.Fatalf("unexpected error fields: %#v", task)
	}
	if task.LastAttemptedAt == nil {
		t.Fatal("expected last attempt timestamp")
	}
}

func TestGateFailTerminatesTrack(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	track := testsupport.IngestTrack(t, store, "Untitled Demo", "Unknown", 120)

	if _, err := store.Claim(ctx, track.ID, queue.TaskISWCDiscovery); err != nil {
		t.Fatalf("claim failed: %v", err)
	}
	if err := store.GateFail(ctx, track.ID, queue.TaskISWCDiscovery, "no iswc found in any source"); err != nil {
		t.Fatalf("GateFail failed: %v", err)
	}

	refreshed, err := store.GetTrack(ctx, track.ID)
	if err != nil {
		t.Fatalf("GetTrack failed: %v", err)
	}
	if !refreshed.GateFailed() {
		t.Fatalf("expected gate-failed track, got stage %q", refreshed.Stage)
	}

	task, err := store.GetTask(ctx, track.ID, queue.TaskISWCDiscovery)
	if err != nil {
		t.Fatalf("GetTask failed: %v", err)
	}
	if task.ErrorClass != "gate_failed" {
		t.Fatalf("expected gate_failed class, got %q", task.ErrorClass)
	}

	if err := store.EnsureTask(ctx, track.ID, queue.TaskStemSeparation); !errors.Is(err, queue.ErrTrackGateFailed) {
		t.Fatalf("expected ErrTrackGateFailed, got %v", err)
	}
}

func TestReclaimStaleReturnsTasksToPending(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	track := testsupport.IngestTrack(t, store, "Static Bloom", "Veldt", 230)

	if _, err := store.Claim(ctx, track.ID, queue.TaskDownload); err != nil {
		t.Fatalf("claim failed: %v", err)
	}

	// Cutoff in the future makes the fresh heartbeat stale.
	reclaimed, err := store.ReclaimStale(ctx, time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("ReclaimStale failed: %v", err)
	}
	if reclaimed != 1 {
		t.Fatalf("expected 1 reclaimed task, got %d", reclaimed)
	}

	task, err := store.GetTask(ctx, track.ID, queue.TaskDownload)
	if err != nil {
		t.Fatalf("GetTask failed: %v", err)
	}
	if task.Status != queue.StatusPending {
		t.Fatalf("expected pending after reclaim, got %s", task.Status)
	}
	if task.LastHeartbeat != nil {
		t.Fatal("expected heartbeat cleared on reclaim")
	}

	// A live heartbeat must not be reclaimed.
	if _, err := store.Claim(ctx, track.ID, queue.TaskDownload); err != nil {
		t.Fatalf("reclaim then claim failed: %v", err)
	}
	reclaimed, err = store.ReclaimStale(ctx, time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("ReclaimStale failed: %v", err)
	}
	if reclaimed != 0 {
		t.Fatalf("expected 0 reclaimed tasks, got %d", reclaimed)
	}
}

func TestRetryTaskResetsFailedRow(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	track := testsupport.IngestTrack(t, store, "Afterimage", "Cold Lake", 210)

	if _, err := store.Claim(ctx, track.ID, queue.TaskDownload); err != nil {
		t.Fatalf("claim failed: %v", err)
	}
	if err := store.Fail(ctx, track.ID, queue.TaskDownload, "timeout", "timeout"); err != nil {
		t.Fatalf("Fail failed: %v", err)
	}

	reset, err := store.RetryTask(ctx, track.ID, queue.TaskDownload)
	if err != nil {
		t.Fatalf("RetryTask failed: %v", err)
	}
	if !reset {
		t.Fatal("expected retry to reset the task")
	}
	task, err := store.GetTask(ctx, track.ID, queue.TaskDownload)
	if err != nil {
		t.Fatalf("GetTask failed: %v", err)
	}
	if task.Status != queue.StatusPending || task.RetryCount != 0 || task.ErrorMessage != "" {
		t.Fatalf("unexpected task after retry reset: %#v", task)
	}

	reset, err = store.RetryTask(ctx, track.ID, queue.TaskDownload)
	if err != nil {
		t.Fatalf("RetryTask failed: %v", err)
	}
	if reset {
		t.Fatal("expected no-op retry on a pending task")
	}
}

func TestStatsGroupsByTypeAndStatus(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	first := testsupport.IngestTrack(t, store, "One", "A", 100)
	testsupport.IngestTrack(t, store, "Two", "B", 100)
	testsupport.CompleteTask(t, store, first.ID, queue.TaskDownload)

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats[queue.TaskDownload][queue.StatusCompleted] != 1 {
		t.Fatalf("expected 1 completed download, got %v", stats[queue.TaskDownload])
	}
	if stats[queue.TaskDownload][queue.StatusPending] != 1 {
		t.Fatalf("expected 1 pending download, got %v", stats[queue.TaskDownload])
	}
	if stats[queue.TaskISWCDiscovery][queue.StatusPending] != 2 {
		t.Fatalf("expected 2 pending gates, got %v", stats[queue.TaskISWCDiscovery])
	}
}

func TestReplaceLinesConverges(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	track := testsupport.IngestTrack(t, store, "Verses", "Quiet Type", 150)

	first := []queue.StoredLine{
		{LineIndex: 0, StartSeconds: 1, EndSeconds: 3, Text: "first take line one"},
		{LineIndex: 1, StartSeconds: 3.5, EndSeconds: 6, Text: "first take line two"},
	}
	if err := store.ReplaceLines(ctx, track.ID, first); err != nil {
		t.Fatalf("ReplaceLines failed: %v", err)
	}

	second := []queue.StoredLine{
		{LineIndex: 0, StartSeconds: 1.2, EndSeconds: 3.1, Text: "second take line one"},
	}
	if err := store.ReplaceLines(ctx, track.ID, second); err != nil {
		t.Fatalf("ReplaceLines rerun failed: %v", err)
	}

	lines, err := store.Lines(ctx, track.ID)
	if err != nil {
		t.Fatalf("Lines failed: %v", err)
	}
	if len(lines) != 1 || lines[0].Text != "second take line one" {
		t.Fatalf("expected replacement to converge, got %#v", lines)
	}
}

func TestReplaceClipLinesIsIdempotent(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	track := testsupport.IngestTrack(t, store, "Sections", "Divider", 240)

	clips := []queue.Clip{
		{Name: "verse-1", StartSeconds: 10, EndSeconds: 40},
		{Name: "chorus-1", StartSeconds: 40, EndSeconds: 70},
	}
	if err := store.ReplaceClips(ctx, track.ID, clips); err != nil {
		t.Fatalf("ReplaceClips failed: %v", err)
	}
	clip, err := store.ClipByName(ctx, track.ID, "verse-1")
	if err != nil || clip == nil {
		t.Fatalf("ClipByName failed: clip=%v err=%v", clip, err)
	}

	lines := []queue.StoredClipLine{
		{LineIndex: 0, StartSeconds: 0, EndSeconds: 4, Text: "clipped opener", StartsBeforeClip: true},
		{LineIndex: 1, StartSeconds: 4.5, EndSeconds: 9, Text: "full line"},
	}
	for i := 0; i < 2; i++ {
		if err := store.ReplaceClipLines(ctx, clip.ID, lines); err != nil {
			t.Fatalf("ReplaceClipLines attempt %d: %v", i, err)
		}
	}

	stored, err := store.ClipLines(ctx, clip.ID)
	if err != nil {
		t.Fatalf("ClipLines failed: %v", err)
	}
	if len(stored) != 2 {
		t.Fatalf("expected 2 clip lines, got %d", len(stored))
	}
	if !stored[0].StartsBeforeClip || stored[0].EndsAfterClip {
		t.Fatalf("unexpected truncation flags: %#v", stored[0])
	}
}

func TestUpsertClipPreservesOtherClips(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	track := testsupport.IngestTrack(t, store, "Anchor", "Divider", 240)

	if err := store.ReplaceClips(ctx, track.ID, []queue.Clip{
		{Name: "verse-1", StartSeconds: 10, EndSeconds: 40},
	}); err != nil {
		t.Fatalf("ReplaceClips failed: %v", err)
	}

	first, err := store.UpsertClip(ctx, track.ID, queue.Clip{Name: "fragment", StartSeconds: 90, EndSeconds: 95})
	if err != nil {
		t.Fatalf("UpsertClip failed: %v", err)
	}
	second, err := store.UpsertClip(ctx, track.ID, queue.Clip{Name: "fragment", StartSeconds: 120, EndSeconds: 126})
	if err != nil {
		t.Fatalf("UpsertClip update failed: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("upsert replaced the row instead of updating: %d vs %d", first.ID, second.ID)
	}
	if second.StartSeconds != 120 || second.EndSeconds != 126 {
		t.Fatalf("boundaries not updated: %#v", second)
	}

	clips, err := store.Clips(ctx, track.ID)
	if err != nil {
		t.Fatalf("Clips failed: %v", err)
	}
	if len(clips) != 2 {
		t.Fatalf("expected verse-1 to survive, got %d clips", len(clips))
	}
}
