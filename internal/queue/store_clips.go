package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ReplaceLines swaps a track's full-track lyric lines for the given set in
// one transaction. Re-running a transcription therefore converges instead of
// accumulating duplicates.
func (s *Store) ReplaceLines(ctx context.Context, trackID int64, lines []StoredLine) error {
	ctx = ensureContext(ctx)
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace lines tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM lines WHERE track_id = ?`, trackID); err != nil {
		return fmt.Errorf("clear lines: %w", err)
	}
	for _, line := range lines {
		if _, err := tx.ExecContext(
			ctx,
			`INSERT INTO lines (track_id, line_index, start_seconds, end_seconds, text, words_json)
             VALUES (?, ?, ?, ?, ?, ?)`,
			trackID, line.LineIndex, line.StartSeconds, line.EndSeconds, line.Text,
			nullableString(line.WordsJSON),
		); err != nil {
			return fmt.Errorf("insert line %d: %w", line.LineIndex, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit replace lines: %w", err)
	}
	return nil
}

// Lines returns a track's stored lyric lines ordered by index.
func (s *Store) Lines(ctx context.Context, trackID int64) ([]StoredLine, error) {
	rows, err := s.db.QueryContext(
		ensureContext(ctx),
		`SELECT id, track_id, line_index, start_seconds, end_seconds, text, words_json
         FROM lines WHERE track_id = ? ORDER BY line_index`,
		trackID,
	)
	if err != nil {
		return nil, fmt.Errorf("list lines: %w", err)
	}
	defer rows.Close()

	var lines []StoredLine
	for rows.Next() {
		var (
			line  StoredLine
			words sql.NullString
		)
		if err := rows.Scan(&line.ID, &line.TrackID, &line.LineIndex, &line.StartSeconds, &line.EndSeconds, &line.Text, &words); err != nil {
			return nil, err
		}
		line.WordsJSON = words.String
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

// ReplaceClips swaps a track's clip set, cascading away the clip-relative
// lines of the removed clips.
func (s *Store) ReplaceClips(ctx context.Context, trackID int64, clips []Clip) error {
	ctx = ensureContext(ctx)
	timestamp := formatTime(time.Now())

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace clips tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(
		ctx,
		`DELETE FROM clip_lines WHERE clip_id IN (SELECT id FROM clips WHERE track_id = ?)`,
		trackID,
	); err != nil {
		return fmt.Errorf("clear clip lines: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM clips WHERE track_id = ?`, trackID); err != nil {
		return fmt.Errorf("clear clips: %w", err)
	}
	for _, clip := range clips {
		if _, err := tx.ExecContext(
			ctx,
			`INSERT INTO clips (track_id, name, start_seconds, end_seconds, created_at)
             VALUES (?, ?, ?, ?, ?)`,
			trackID, clip.Name, clip.StartSeconds, clip.EndSeconds, timestamp,
		); err != nil {
			return fmt.Errorf("insert clip %q: %w", clip.Name, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit replace clips: %w", err)
	}
	return nil
}

// UpsertClip inserts or re-boundaries a single named clip without touching
// the track's other clips. The returned clip carries the stored ID.
func (s *Store) UpsertClip(ctx context.Context, trackID int64, clip Clip) (*Clip, error) {
	ctx = ensureContext(ctx)
	timestamp := formatTime(time.Now())

	_, err := s.execWithRetry(ctx,
		`INSERT INTO clips (track_id, name, start_seconds, end_seconds, created_at)
         VALUES (?, ?, ?, ?, ?)
         ON CONFLICT(track_id, name) DO UPDATE SET
             start_seconds = excluded.start_seconds,
             end_seconds = excluded.end_seconds`,
		trackID, clip.Name, clip.StartSeconds, clip.EndSeconds, timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("upsert clip %q: %w", clip.Name, err)
	}
	return s.ClipByName(ctx, trackID, clip.Name)
}

// Clips returns a track's clips ordered by start time.
func (s *Store) Clips(ctx context.Context, trackID int64) ([]Clip, error) {
	rows, err := s.db.QueryContext(
		ensureContext(ctx),
		`SELECT id, track_id, name, start_seconds, end_seconds, created_at
         FROM clips WHERE track_id = ? ORDER BY start_seconds, id`,
		trackID,
	)
	if err != nil {
		return nil, fmt.Errorf("list clips: %w", err)
	}
	defer rows.Close()

	var clips []Clip
	for rows.Next() {
		clip, err := scanClip(rows)
		if err != nil {
			return nil, err
		}
		clips = append(clips, *clip)
	}
	return clips, rows.Err()
}

// ClipByName fetches one clip by its track-scoped name. Returns nil when absent.
func (s *Store) ClipByName(ctx context.Context, trackID int64, name string) (*Clip, error) {
	row := s.db.QueryRowContext(
		ensureContext(ctx),
		`SELECT id, track_id, name, start_seconds, end_seconds, created_at
         FROM clips WHERE track_id = ? AND name = ?`,
		trackID, name,
	)
	clip, err := scanClip(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("clip by name: %w", err)
	}
	return clip, nil
}

func scanClip(scanner interface{ Scan(dest ...any) error }) (*Clip, error) {
	var (
		clip       Clip
		createdRaw string
	)
	if err := scanner.Scan(&clip.ID, &clip.TrackID, &clip.Name, &clip.StartSeconds, &clip.EndSeconds, &createdRaw); err != nil {
		return nil, err
	}
	if created, err := parseTimeString(createdRaw); err == nil {
		clip.CreatedAt = created
	}
	return &clip, nil
}

// ReplaceClipLines swaps the materialized lines of one clip in a single
// transaction. Re-materializing is idempotent.
func (s *Store) ReplaceClipLines(ctx context.Context, clipID int64, lines []StoredClipLine) error {
	ctx = ensureContext(ctx)
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace clip lines tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM clip_lines WHERE clip_id = ?`, clipID); err != nil {
		return fmt.Errorf("clear clip lines: %w", err)
	}
	for _, line := range lines {
		if _, err := tx.ExecContext(
			ctx,
			`INSERT INTO clip_lines (clip_id, line_index, start_seconds, end_seconds, text, starts_before_clip, ends_after_clip, words_json)
             VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			clipID, line.LineIndex, line.StartSeconds, line.EndSeconds, line.Text,
			boolToInt(line.StartsBeforeClip), boolToInt(line.EndsAfterClip),
			nullableString(line.WordsJSON),
		); err != nil {
			return fmt.Errorf("insert clip line %d: %w", line.LineIndex, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit replace clip lines: %w", err)
	}
	return nil
}

// ClipLines returns a clip's materialized lines ordered by index.
func (s *Store) ClipLines(ctx context.Context, clipID int64) ([]StoredClipLine, error) {
	rows, err := s.db.QueryContext(
		ensureContext(ctx),
		`SELECT id, clip_id, line_index, start_seconds, end_seconds, text, starts_before_clip, ends_after_clip, words_json
         FROM clip_lines WHERE clip_id = ? ORDER BY line_index`,
		clipID,
	)
	if err != nil {
		return nil, fmt.Errorf("list clip lines: %w", err)
	}
	defer rows.Close()

	var lines []StoredClipLine
	for rows.Next() {
		var (
			line      StoredClipLine
			startsInt int
			endsInt   int
			words     sql.NullString
		)
		if err := rows.Scan(&line.ID, &line.ClipID, &line.LineIndex, &line.StartSeconds, &line.EndSeconds, &line.Text, &startsInt, &endsInt, &words); err != nil {
			return nil, err
		}
		line.StartsBeforeClip = startsInt != 0
		line.EndsAfterClip = endsInt != 0
		line.WordsJSON = words.String
		lines = append(lines, line)
	}
	return lines, rows.Err()
}
