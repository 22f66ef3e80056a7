package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// EnsureTask creates a Pending task for (track, taskType) if none exists.
// Idempotent: a second call is a no-op regardless of the existing row's
// status. Tasks are never created for gate-failed tracks.
func (s *Store) EnsureTask(ctx context.Context, trackID int64, taskType TaskType) error {
	ctx = ensureContext(ctx)

	track, err := s.GetTrack(ctx, trackID)
	if err != nil {
		return err
	}
	if track == nil {
		return fmt.Errorf("ensure task: track %d not found", trackID)
	}
	if track.GateFailed() {
		return ErrTrackGateFailed
	}

	timestamp := formatTime(time.Now())
	_, err = s.execWithRetry(
		ctx,
		`INSERT OR IGNORE INTO tasks (track_id, task_type, status, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?)`,
		trackID, taskType, StatusPending, timestamp, timestamp,
	)
	if err != nil {
		return fmt.Errorf("ensure task: %w", err)
	}
	return nil
}

func ensureTaskTx(ctx context.Context, tx *sql.Tx, trackID int64, taskType TaskType, timestamp string) error {
	if _, err := tx.ExecContext(
		ctx,
		`INSERT OR IGNORE INTO tasks (track_id, task_type, status, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?)`,
		trackID, taskType, StatusPending, timestamp, timestamp,
	); err != nil {
		return fmt.Errorf("ensure %s task: %w", taskType, err)
	}
	return nil
}

// GetTask fetches the task for (track, taskType). Returns nil when absent.
func (s *Store) GetTask(ctx context.Context, trackID int64, taskType TaskType) (*Task, error) {
	row := s.db.QueryRowContext(
		ensureContext(ctx),
		`SELECT `+taskColumns+` FROM tasks WHERE track_id = ? AND task_type = ?`,
		trackID, taskType,
	)
	task, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	return task, nil
}

// Claim transitions a task from Pending (or retry-eligible Failed) to
// Processing with a single conditional update. This is the only mutual
// exclusion the scheduling model needs: a row already in Processing returns
// ErrAlreadyClaimed and the caller skips it.
func (s *Store) Claim(ctx context.Context, trackID int64, taskType TaskType) (*Task, error) {
	ctx = ensureContext(ctx)
	now := formatTime(time.Now())
	res, err := s.execWithRetry(
		ctx,
		`UPDATE tasks
         SET status = ?, last_attempted_at = ?, last_heartbeat = ?, updated_at = ?
         WHERE track_id = ? AND task_type = ? AND status IN (?, ?)`,
		StatusProcessing, now, now, now,
		trackID, taskType, StatusPending, StatusFailed,
	)
	if err != nil {
		return nil, fmt.Errorf("claim task: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("claim rows affected: %w", err)
	}
	if affected == 0 {
		return nil, ErrAlreadyClaimed
	}
	return s.GetTask(ctx, trackID, taskType)
}

// Complete transitions Processing→Completed and, in the same transaction,
// fans out the downstream tasks and advances the track stage to the
// completed task's type.
func (s *Store) Complete(ctx context.Context, trackID int64, taskType TaskType, resultJSON string) error {
	ctx = ensureContext(ctx)
	now := time.Now().UTC()
	timestamp := formatTime(now)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin complete tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(
		ctx,
		`UPDATE tasks
         SET status = ?, error_message = NULL, error_class = NULL, last_heartbeat = NULL,
             result_json = ?, updated_at = ?
         WHERE track_id = ? AND task_type = ? AND status = ?`,
		StatusCompleted, nullableString(resultJSON), timestamp,
		trackID, taskType, StatusProcessing,
	)
	if err != nil {
		return fmt.Errorf("complete task: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("complete rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotProcessing
	}

	var fragment sql.NullString
	var stage string
	if err := tx.QueryRowContext(ctx, `SELECT fragment_json, stage FROM tracks WHERE id = ?`, trackID).Scan(&fragment, &stage); err != nil {
		return fmt.Errorf("read track for fan-out: %w", err)
	}
	if stage == StageFailed {
		return ErrTrackGateFailed
	}

	for _, downstream := range downstreamTaskTypes(taskType, fragment.String != "") {
		if err := ensureTaskTx(ctx, tx, trackID, downstream, timestamp); err != nil {
			return err
		}
	}

	if _, err := tx.ExecContext(
		ctx,
		`UPDATE tracks SET stage = ?, updated_at = ? WHERE id = ? AND stage != ?`,
		string(taskType), timestamp, trackID, StageFailed,
	); err != nil {
		return fmt.Errorf("advance track stage: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit complete: %w", err)
	}
	return nil
}

// downstreamTaskTypes returns the tasks fanned out when one completes. Rows
// may be created before every prerequisite is done; the resolver holds them
// back until then.
func downstreamTaskTypes(taskType TaskType, hasFragment bool) []TaskType {
	switch taskType {
	case TaskDownload:
		return []TaskType{TaskStemSeparation}
	case TaskStemSeparation:
		return []TaskType{TaskFalEnhancement, TaskTranscription}
	case TaskFalEnhancement, TaskTranscription:
		return []TaskType{TaskSegmentation}
	case TaskSegmentation:
		return []TaskType{TaskGenerateClipLines}
	case TaskGenerateClipLines:
		if hasFragment {
			return []TaskType{TaskFragmentAlignment}
		}
		return nil
	default:
		return nil
	}
}

// Fail transitions Processing→Failed, increments the retry count, and records
// the attempt timestamp plus the human-readable reason and machine-checkable
// class. A task past its retry ceiling keeps status Failed; the resolver
// filters it out by the combined predicate.
func (s *Store) Fail(ctx context.Context, trackID int64, taskType TaskType, message, class string) error {
	ctx = ensureContext(ctx)
	now := formatTime(time.Now())
	res, err := s.execWithRetry(
		ctx,
		`UPDATE tasks
         SET status = ?, retry_count = retry_count + 1, last_attempted_at = ?,
             last_heartbeat = NULL, error_message = ?, error_class = ?, updated_at = ?
         WHERE track_id = ? AND task_type = ? AND status = ?`,
		StatusFailed, now, nullableString(message), nullableString(class), now,
		trackID, taskType, StatusProcessing,
	)
	if err != nil {
		return fmt.Errorf("fail task: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("fail rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotProcessing
	}
	return nil
}

// GateFail marks both the task and the whole track as terminally failed in
// one transaction. Downstream tasks are never scheduled for the track again.
func (s *Store) GateFail(ctx context.Context, trackID int64, taskType TaskType, reason string) error {
	ctx = ensureContext(ctx)
	timestamp := formatTime(time.Now())

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin gate-fail tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(
		ctx,
		`UPDATE tasks
         SET status = ?, last_attempted_at = ?, last_heartbeat = NULL,
             error_message = ?, error_class = 'gate_failed', updated_at = ?
         WHERE track_id = ? AND task_type = ?`,
		StatusFailed, timestamp, nullableString(reason), timestamp,
		trackID, taskType,
	); err != nil {
		return fmt.Errorf("gate-fail task: %w", err)
	}

	if _, err := tx.ExecContext(
		ctx,
		`UPDATE tracks SET stage = ?, error_message = ?, updated_at = ? WHERE id = ?`,
		StageFailed, nullableString(reason), timestamp, trackID,
	); err != nil {
		return fmt.Errorf("gate-fail track: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit gate-fail: %w", err)
	}
	return nil
}

// UpdateHeartbeat refreshes the liveness timestamp for an in-flight task.
func (s *Store) UpdateHeartbeat(ctx context.Context, taskID int64) error {
	now := formatTime(time.Now())
	if _, err := s.execWithRetry(
		ensureContext(ctx),
		`UPDATE tasks SET last_heartbeat = ?, updated_at = ? WHERE id = ? AND status = ?`,
		now, now, taskID, StatusProcessing,
	); err != nil {
		return fmt.Errorf("update heartbeat: %w", err)
	}
	return nil
}

// ReclaimStale returns Processing tasks whose heartbeat expired back to
// Pending so another worker can pick them up. This is the requeue-on-staleness
// policy: a worker that died mid-task simply loses its claim.
func (s *Store) ReclaimStale(ctx context.Context, cutoff time.Time) (int64, error) {
	now := formatTime(time.Now())
	res, err := s.execWithRetry(
		ensureContext(ctx),
		`UPDATE tasks
         SET status = ?, last_heartbeat = NULL, updated_at = ?
         WHERE status = ? AND last_heartbeat IS NOT NULL AND last_heartbeat < ?`,
		StatusPending, now,
		StatusProcessing, formatTime(cutoff),
	)
	if err != nil {
		return 0, fmt.Errorf("reclaim stale tasks: %w", err)
	}
	return res.RowsAffected()
}

// RetryTask resets a Failed task's retry count so operators can force a
// re-attempt past the ceiling.
func (s *Store) RetryTask(ctx context.Context, trackID int64, taskType TaskType) (bool, error) {
	now := formatTime(time.Now())
	res, err := s.execWithRetry(
		ensureContext(ctx),
		`UPDATE tasks
         SET status = ?, retry_count = 0, error_message = NULL, error_class = NULL, updated_at = ?
         WHERE track_id = ? AND task_type = ? AND status = ?`,
		StatusPending, now, trackID, taskType, StatusFailed,
	)
	if err != nil {
		return false, fmt.Errorf("retry task: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("retry rows affected: %w", err)
	}
	return affected > 0, nil
}

// TasksForTrack returns all task rows for a track ordered by creation time.
func (s *Store) TasksForTrack(ctx context.Context, trackID int64) ([]*Task, error) {
	rows, err := s.db.QueryContext(
		ensureContext(ctx),
		`SELECT `+taskColumns+` FROM tasks WHERE track_id = ? ORDER BY created_at, id`,
		trackID,
	)
	if err != nil {
		return nil, fmt.Errorf("tasks for track: %w", err)
	}
	defer rows.Close()

	var tasks []*Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	return tasks, rows.Err()
}

// Stats returns task counts grouped by type and status.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	rows, err := s.db.QueryContext(
		ensureContext(ctx),
		`SELECT task_type, status, COUNT(1) FROM tasks GROUP BY task_type, status`,
	)
	if err != nil {
		return nil, fmt.Errorf("task stats: %w", err)
	}
	defer rows.Close()

	stats := make(Stats)
	for rows.Next() {
		var (
			taskType TaskType
			status   Status
			count    int
		)
		if err := rows.Scan(&taskType, &status, &count); err != nil {
			return nil, err
		}
		if stats[taskType] == nil {
			stats[taskType] = make(map[Status]int)
		}
		stats[taskType][status] = count
	}
	return stats, rows.Err()
}

const taskColumns = "id, track_id, task_type, status, retry_count, last_attempted_at, last_heartbeat, error_message, error_class, result_json, created_at, updated_at"

func scanTask(scanner interface{ Scan(dest ...any) error }) (*Task, error) {
	var (
		id           int64
		trackID      int64
		taskType     string
		status       string
		retryCount   int
		attemptedRaw sql.NullString
		heartbeatRaw sql.NullString
		errorMessage sql.NullString
		errorClass   sql.NullString
		resultJSON   sql.NullString
		createdRaw   sql.NullString
		updatedRaw   sql.NullString
	)
	if err := scanner.Scan(
		&id, &trackID, &taskType, &status, &retryCount,
		&attemptedRaw, &heartbeatRaw, &errorMessage, &errorClass, &resultJSON,
		&createdRaw, &updatedRaw,
	); err != nil {
		return nil, err
	}

	task := &Task{
		ID:           id,
		TrackID:      trackID,
		Type:         TaskType(taskType),
		Status:       Status(status),
		RetryCount:   retryCount,
		ErrorMessage: errorMessage.String,
		ErrorClass:   errorClass.String,
		ResultJSON:   resultJSON.String,
	}
	if attemptedRaw.Valid {
		if attempted, err := parseTimeString(attemptedRaw.String); err == nil {
			task.LastAttemptedAt = &attempted
		}
	}
	if heartbeatRaw.Valid {
		if heartbeat, err := parseTimeString(heartbeatRaw.String); err == nil {
			task.LastHeartbeat = &heartbeat
		}
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		task.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		task.UpdatedAt = updated
	}
	return task, nil
}
