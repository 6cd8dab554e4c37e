package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/kozaktomas/speaker-labeler/internal/output"
	"github.com/kozaktomas/speaker-labeler/internal/store"
)

// RecordingStore implements store.Store on top of a Pool.
type RecordingStore struct {
	pool *Pool
}

// NewRecordingStore wraps a pool. Migrations must already have run.
func NewRecordingStore(pool *Pool) *RecordingStore {
	return &RecordingStore{pool: pool}
}

const recordingColumns = "id, file_name, video_path, status, error, duration, result, created_at, updated_at"

func scanRecording(row interface{ Scan(...any) error }) (*store.Recording, error) {
	var rec store.Recording
	var result []byte

	err := row.Scan(&rec.ID, &rec.FileName, &rec.VideoPath, &rec.Status,
		&rec.Error, &rec.Duration, &result, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("scan recording: %w", err)
	}

	if len(result) > 0 {
		var doc output.Document
		if err := json.Unmarshal(result, &doc); err != nil {
			return nil, fmt.Errorf("parse result document for %s: %w", rec.ID, err)
		}
		rec.Result = &doc
	}
	return &rec, nil
}

func (s *RecordingStore) CreateRecording(ctx context.Context, rec *store.Recording) error {
	now := time.Now().UTC()
	rec.CreatedAt = now
	rec.UpdatedAt = now
	if rec.Status == "" {
		rec.Status = store.StatusPending
	}

	_, err := s.pool.db.ExecContext(ctx, `
		INSERT INTO recordings (id, file_name, video_path, status, error, duration, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		rec.ID, rec.FileName, rec.VideoPath, rec.Status, rec.Error, rec.Duration, rec.CreatedAt, rec.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert recording: %w", err)
	}
	return nil
}

func (s *RecordingStore) GetRecording(ctx context.Context, id string) (*store.Recording, error) {
	row := s.pool.db.QueryRowContext(ctx,
		"SELECT "+recordingColumns+" FROM recordings WHERE id = $1", id)
	return scanRecording(row)
}

func (s *RecordingStore) ListRecordings(ctx context.Context) ([]*store.Recording, error) {
	rows, err := s.pool.db.QueryContext(ctx,
		"SELECT "+recordingColumns+" FROM recordings ORDER BY created_at DESC")
	if err != nil {
		return nil, fmt.Errorf("query recordings: %w", err)
	}
	defer rows.Close()

	recordings := []*store.Recording{}
	for rows.Next() {
		rec, err := scanRecording(rows)
		if err != nil {
			return nil, err
		}
		recordings = append(recordings, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate recordings: %w", err)
	}
	return recordings, nil
}

func (s *RecordingStore) UpdateStatus(ctx context.Context, id, status, errMsg string) error {
	result, err := s.pool.db.ExecContext(ctx, `
		UPDATE recordings SET status = $2, error = $3, updated_at = NOW()
		WHERE id = $1`, id, status, errMsg)
	if err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	return checkAffected(result)
}

func (s *RecordingStore) SaveResult(ctx context.Context, id string, doc *output.Document) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal result document: %w", err)
	}

	result, err := s.pool.db.ExecContext(ctx, `
		UPDATE recordings
		SET result = $2, status = $3, error = '', duration = $4, updated_at = NOW()
		WHERE id = $1`, id, data, store.StatusCompleted, doc.Duration)
	if err != nil {
		return fmt.Errorf("save result: %w", err)
	}
	return checkAffected(result)
}

func (s *RecordingStore) RenameSpeaker(ctx context.Context, id, speakerID, name string) error {
	// read-modify-write inside a transaction so concurrent renames cannot
	// clobber each other's document
	tx, err := s.pool.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx,
		"SELECT "+recordingColumns+" FROM recordings WHERE id = $1 FOR UPDATE", id)
	rec, err := scanRecording(row)
	if err != nil {
		return err
	}
	if rec.Result == nil {
		return fmt.Errorf("recording %s has no result yet", id)
	}
	if !store.RenameInDocument(rec.Result, speakerID, name) {
		return fmt.Errorf("speaker %s not found in recording %s", speakerID, id)
	}

	data, err := json.Marshal(rec.Result)
	if err != nil {
		return fmt.Errorf("marshal result document: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		"UPDATE recordings SET result = $2, updated_at = NOW() WHERE id = $1", id, data); err != nil {
		return fmt.Errorf("update result: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit rename: %w", err)
	}
	return nil
}

func (s *RecordingStore) DeleteRecording(ctx context.Context, id string) error {
	result, err := s.pool.db.ExecContext(ctx, "DELETE FROM recordings WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete recording: %w", err)
	}
	return checkAffected(result)
}

func (s *RecordingStore) Close() error {
	return s.pool.Close()
}

func checkAffected(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}
