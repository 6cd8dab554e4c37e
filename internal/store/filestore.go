package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/kozaktomas/speaker-labeler/internal/output"
)

// FileStore keeps one JSON file per recording under a directory. Good enough
// for a single process; all mutations go through one mutex.
type FileStore struct {
	dir string
	mu  sync.RWMutex
}

// NewFileStore creates the directory if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) path(id string) string {
	return filepath.Join(s.dir, id+".json")
}

func (s *FileStore) read(id string) (*Recording, error) {
	data, err := os.ReadFile(s.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read recording: %w", err)
	}

	var rec Recording
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to parse recording %s: %w", id, err)
	}
	return &rec, nil
}

func (s *FileStore) write(rec *Recording) error {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal recording: %w", err)
	}

	// write-then-rename keeps readers away from partial files
	tmp := s.path(rec.ID) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write recording: %w", err)
	}
	if err := os.Rename(tmp, s.path(rec.ID)); err != nil {
		return fmt.Errorf("failed to replace recording file: %w", err)
	}
	return nil
}

func (s *FileStore) CreateRecording(_ context.Context, rec *Recording) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	rec.CreatedAt = now
	rec.UpdatedAt = now
	if rec.Status == "" {
		rec.Status = StatusPending
	}
	return s.write(rec)
}

func (s *FileStore) GetRecording(_ context.Context, id string) (*Recording, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.read(id)
}

func (s *FileStore) ListRecordings(_ context.Context) ([]*Recording, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list store directory: %w", err)
	}

	recordings := []*Recording{}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		rec, err := s.read(strings.TrimSuffix(e.Name(), ".json"))
		if err != nil {
			// skip unreadable entries rather than failing the listing
			continue
		}
		recordings = append(recordings, rec)
	}

	sort.Slice(recordings, func(i, j int) bool {
		return recordings[i].CreatedAt.After(recordings[j].CreatedAt)
	})
	return recordings, nil
}

func (s *FileStore) UpdateStatus(_ context.Context, id, status, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.read(id)
	if err != nil {
		return err
	}
	rec.Status = status
	rec.Error = errMsg
	rec.UpdatedAt = time.Now().UTC()
	return s.write(rec)
}

func (s *FileStore) SaveResult(_ context.Context, id string, doc *output.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.read(id)
	if err != nil {
		return err
	}
	rec.Result = doc
	rec.Status = StatusCompleted
	rec.Error = ""
	rec.Duration = doc.Duration
	rec.UpdatedAt = time.Now().UTC()
	return s.write(rec)
}

func (s *FileStore) RenameSpeaker(_ context.Context, id, speakerID, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.read(id)
	if err != nil {
		return err
	}
	if rec.Result == nil {
		return fmt.Errorf("recording %s has no result yet", id)
	}
	if !RenameInDocument(rec.Result, speakerID, name) {
		return fmt.Errorf("speaker %s not found in recording %s", speakerID, id)
	}
	rec.UpdatedAt = time.Now().UTC()
	return s.write(rec)
}

func (s *FileStore) DeleteRecording(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path(id)); err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to delete recording: %w", err)
	}
	return nil
}

func (s *FileStore) Close() error {
	return nil
}
