package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// NewTrack describes a track being ingested.
type NewTrack struct {
	Title           string
	Artist          string
	ISRC            string
	SourceURL       string
	DurationSeconds float64
}

// IngestTrack inserts a track and ensures its initial tasks (download and the
// ISWC gate) in one transaction.
func (s *Store) IngestTrack(ctx context.Context, nt NewTrack) (*Track, error) {
	ctx = ensureContext(ctx)
	now := time.Now().UTC()
	timestamp := formatTime(now)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin ingest tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(
		ctx,
		`INSERT INTO tracks (title, artist, isrc, source_url, duration_seconds, stage, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		nullableString(nt.Title),
		nullableString(nt.Artist),
		nullableString(nt.ISRC),
		nullableString(nt.SourceURL),
		nt.DurationSeconds,
		StageIngested,
		timestamp,
		timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert track: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	for _, taskType := range []TaskType{TaskDownload, TaskISWCDiscovery} {
		if err := ensureTaskTx(ctx, tx, id, taskType, timestamp); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit ingest: %w", err)
	}
	return s.GetTrack(ctx, id)
}

// GetTrack fetches a track by identifier. Returns nil when absent.
func (s *Store) GetTrack(ctx context.Context, id int64) (*Track, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), `SELECT `+trackColumns+` FROM tracks WHERE id = ?`, id)
	track, err := scanTrack(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get track: %w", err)
	}
	return track, nil
}

// UpdateTrack persists changes to an existing track.
func (s *Store) UpdateTrack(ctx context.Context, track *Track) error {
	if track == nil {
		return errors.New("track is nil")
	}
	track.UpdatedAt = time.Now().UTC()
	_, err := s.execWithRetry(
		ensureContext(ctx),
		`UPDATE tracks
         SET title = ?, artist = ?, isrc = ?, iswc = ?, source_url = ?, duration_seconds = ?,
             stage = ?, audio_object = ?, vocals_object = ?, instrumental_object = ?,
             enhanced_object = ?, fragment_json = ?, error_message = ?, updated_at = ?
         WHERE id = ?`,
		nullableString(track.Title),
		nullableString(track.Artist),
		nullableString(track.ISRC),
		nullableString(track.ISWC),
		nullableString(track.SourceURL),
		track.DurationSeconds,
		track.Stage,
		nullableString(track.AudioObject),
		nullableString(track.VocalsObject),
		nullableString(track.InstrumentalObject),
		nullableString(track.EnhancedObject),
		nullableString(track.FragmentJSON),
		nullableString(track.ErrorMessage),
		formatTime(track.UpdatedAt),
		track.ID,
	)
	if err != nil {
		return fmt.Errorf("update track: %w", err)
	}
	return nil
}

// ListTracks returns tracks ordered by creation time, optionally filtered by stage.
func (s *Store) ListTracks(ctx context.Context, stages ...string) ([]*Track, error) {
	ctx = ensureContext(ctx)
	baseQuery := `SELECT ` + trackColumns + ` FROM tracks`
	orderClause := ` ORDER BY created_at`

	var (
		rows *sql.Rows
		err  error
	)
	if len(stages) == 0 {
		rows, err = s.db.QueryContext(ctx, baseQuery+orderClause)
	} else {
		placeholders := makePlaceholders(len(stages))
		args := make([]any, len(stages))
		for i, stage := range stages {
			args[i] = stage
		}
		rows, err = s.db.QueryContext(ctx, baseQuery+` WHERE stage IN (`+placeholders+`)`+orderClause, args...)
	}
	if err != nil {
		return nil, fmt.Errorf("list tracks: %w", err)
	}
	defer rows.Close()

	var tracks []*Track
	for rows.Next() {
		track, err := scanTrack(rows)
		if err != nil {
			return nil, err
		}
		tracks = append(tracks, track)
	}
	return tracks, rows.Err()
}

const trackColumns = "id, title, artist, isrc, iswc, source_url, duration_seconds, stage, audio_object, vocals_object, instrumental_object, enhanced_object, fragment_json, error_message, created_at, updated_at"

func scanTrack(scanner interface{ Scan(dest ...any) error }) (*Track, error) {
	var (
		id           int64
		title        sql.NullString
		artist       sql.NullString
		isrc         sql.NullString
		iswc         sql.NullString
		sourceURL    sql.NullString
		duration     float64
		stage        string
		audioObject  sql.NullString
		vocalsObject sql.NullString
		instObject   sql.NullString
		enhObject    sql.NullString
		fragment     sql.NullString
		errorMessage sql.NullString
		createdRaw   sql.NullString
		updatedRaw   sql.NullString
	)
	if err := scanner.Scan(
		&id, &title, &artist, &isrc, &iswc, &sourceURL, &duration, &stage,
		&audioObject, &vocalsObject, &instObject, &enhObject, &fragment,
		&errorMessage, &createdRaw, &updatedRaw,
	); err != nil {
		return nil, err
	}

	track := &Track{
		ID:                 id,
		Title:              title.String,
		Artist:             artist.String,
		ISRC:               isrc.String,
		ISWC:               iswc.String,
		SourceURL:          sourceURL.String,
		DurationSeconds:    duration,
		Stage:              stage,
		AudioObject:        audioObject.String,
		VocalsObject:       vocalsObject.String,
		InstrumentalObject: instObject.String,
		EnhancedObject:     enhObject.String,
		FragmentJSON:       fragment.String,
		ErrorMessage:       errorMessage.String,
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		track.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		track.UpdatedAt = updated
	}
	return track, nil
}
