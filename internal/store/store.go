// Package store persists processed recordings and their attribution results.
// Two backends exist: a file-backed store for single-machine use and a
// PostgreSQL store for deployments that need a real database.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/kozaktomas/speaker-labeler/internal/output"
)

// Recording statuses.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// ErrNotFound is returned when a recording id does not exist.
var ErrNotFound = errors.New("recording not found")

// Recording is one uploaded video and its processing state. Result is only
// set once processing completed.
type Recording struct {
	ID        string           `json:"id"`
	FileName  string           `json:"file_name"`
	VideoPath string           `json:"video_path"`
	Status    string           `json:"status"`
	Error     string           `json:"error,omitempty"`
	Duration  float64          `json:"duration"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
	Result    *output.Document `json:"result,omitempty"`
}

// Store is the persistence boundary for recordings.
type Store interface {
	CreateRecording(ctx context.Context, rec *Recording) error
	GetRecording(ctx context.Context, id string) (*Recording, error)
	ListRecordings(ctx context.Context) ([]*Recording, error)
	UpdateStatus(ctx context.Context, id, status, errMsg string) error
	SaveResult(ctx context.Context, id string, doc *output.Document) error
	// RenameSpeaker overrides one speaker's name in a completed result and
	// marks it as a manual correction (confidence 1.0).
	RenameSpeaker(ctx context.Context, id, speakerID, name string) error
	DeleteRecording(ctx context.Context, id string) error
	Close() error
}

// RenameInDocument applies a manual rename to a result document. Shared by
// both backends so the correction semantics cannot drift apart.
func RenameInDocument(doc *output.Document, speakerID, name string) bool {
	found := false
	for i := range doc.Speakers {
		if doc.Speakers[i].SpeakerID == speakerID {
			doc.Speakers[i].Name = name
			doc.Speakers[i].Confidence = 1.0
			found = true
		}
	}
	return found
}
