package queue

import (
	"context"
	"fmt"
	"time"
)

// ReadyTask pairs a schedulable task with its track.
type ReadyTask struct {
	Task  *Task
	Track *Track
}

// RetryPolicyFunc returns the retry policy for a task type. Ceilings may vary
// per type; the backoff is uniform.
type RetryPolicyFunc func(taskType TaskType) RetryPolicy

// ResolveReady returns up to limit tasks eligible to run right now, oldest
// first. A task is ready when:
//
//   - its track is not gate-failed,
//   - it is Pending, or Failed below its retry ceiling with the backoff
//     window elapsed,
//   - every prerequisite task type for its track is Completed.
//
// The whole decision is one SQL query so readiness stays consistent with
// whatever workers committed before the call. Claim still arbitrates races
// between concurrent resolvers.
func (s *Store) ResolveReady(ctx context.Context, limit int, policy RetryPolicyFunc, taskTypes ...TaskType) ([]ReadyTask, error) {
	ctx = ensureContext(ctx)
	if limit <= 0 {
		return nil, nil
	}
	if policy == nil {
		policy = func(TaskType) RetryPolicy { return RetryPolicy{} }
	}

	candidates := taskTypes
	if len(candidates) == 0 {
		candidates = allTaskTypes
	}

	now := time.Now().UTC()
	var ready []ReadyTask
	for _, taskType := range candidates {
		if len(ready) >= limit {
			break
		}
		batch, err := s.resolveReadyForType(ctx, taskType, limit-len(ready), policy(taskType), now)
		if err != nil {
			return nil, err
		}
		ready = append(ready, batch...)
	}
	return ready, nil
}

func (s *Store) resolveReadyForType(ctx context.Context, taskType TaskType, limit int, policy RetryPolicy, now time.Time) ([]ReadyTask, error) {
	query := `SELECT t.track_id FROM tasks t
        JOIN tracks tr ON tr.id = t.track_id
        WHERE t.task_type = ?
          AND tr.stage != ?
          AND (
                t.status = ?
             OR (t.status = ? AND t.retry_count < ?
                 AND COALESCE(t.error_class, '') NOT IN (?, ?)
                 AND (t.last_attempted_at IS NULL OR t.last_attempted_at < ?))
          )`

	// Validation and configuration failures are deterministic; re-running
	// them cannot succeed, so they never re-enter the ready set.
	args := []any{
		taskType,
		StageFailed,
		StatusPending,
		StatusFailed, policy.Limit,
		"validation", "configuration",
		formatTime(now.Add(-policy.Backoff)),
	}

	prereqs := Prerequisites(taskType)
	for _, prereq := range prereqs {
		query += `
          AND EXISTS (SELECT 1 FROM tasks p
                      WHERE p.track_id = t.track_id AND p.task_type = ? AND p.status = ?)`
		args = append(args, prereq, StatusCompleted)
	}

	query += `
        ORDER BY t.created_at, t.id
        LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("resolve ready %s: %w", taskType, err)
	}
	defer rows.Close()

	var trackIDs []int64
	for rows.Next() {
		var trackID int64
		if err := rows.Scan(&trackID); err != nil {
			return nil, err
		}
		trackIDs = append(trackIDs, trackID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	ready := make([]ReadyTask, 0, len(trackIDs))
	for _, trackID := range trackIDs {
		task, err := s.GetTask(ctx, trackID, taskType)
		if err != nil {
			return nil, err
		}
		track, err := s.GetTrack(ctx, trackID)
		if err != nil {
			return nil, err
		}
		if task == nil || track == nil {
			continue
		}
		ready = append(ready, ReadyTask{Task: task, Track: track})
	}
	return ready, nil
}
