package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/pratibhabharti18/Memory-Bank/internal/models"
	"go.uber.org/zap"
)

// storageKey is the fixed key the offline variant persists under: one
// JSON-serialized array of notes, read at startup and rewritten after
// every mutation.
const storageKey = "memory_bank_notes_v2.json"

// ErrWriteFailed marks a best-effort persistence failure (disk full,
// permissions). The in-memory state is still mutated; callers log a
// warning and carry on.
var ErrWriteFailed = errors.New("local storage write failed")

// FileStorage is the local-first backend: the whole note array lives in
// a single JSON file and is rewritten wholesale on each mutation.
type FileStorage struct {
	mu     sync.Mutex
	path   string
	notes  map[string]*models.Note
	order  []string
	logger *zap.Logger
}

func NewFileStorage(dataDir string, logger *zap.Logger) (*FileStorage, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	s := &FileStorage{
		path:   filepath.Join(dataDir, storageKey),
		notes:  make(map[string]*models.Note),
		logger: logger,
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("failed to read local storage: %w", err)
	}

	var notes []*models.Note
	if err := json.Unmarshal(data, &notes); err != nil {
		return nil, fmt.Errorf("failed to parse local storage: %w", err)
	}
	for _, n := range notes {
		s.notes[n.ID] = n
		s.order = append(s.order, n.ID)
	}
	return s, nil
}

func (s *FileStorage) Load(ctx context.Context, ownerID string) ([]*models.Note, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	notes := make([]*models.Note, 0, len(s.order))
	for _, id := range s.order {
		n := s.notes[id]
		if ownerID != "" && n.OwnerID != ownerID {
			continue
		}
		copied := *n
		notes = append(notes, &copied)
	}
	return notes, nil
}

func (s *FileStorage) Insert(ctx context.Context, note *models.Note) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *note
	s.notes[note.ID] = &copied
	s.order = append([]string{note.ID}, s.order...)
	return s.flush()
}

func (s *FileStorage) SetDeletion(ctx context.Context, id string, deleted bool, at *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	note, exists := s.notes[id]
	if !exists {
		return ErrNotFound
	}
	note.IsDeleted = deleted
	note.DeletedAt = at
	return s.flush()
}

func (s *FileStorage) Remove(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.notes[id]; !exists {
		return ErrNotFound
	}
	delete(s.notes, id)
	for i, oid := range s.order {
		if oid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return s.flush()
}

// flush rewrites the whole array. Must be called with the lock held.
func (s *FileStorage) flush() error {
	notes := make([]*models.Note, 0, len(s.order))
	for _, id := range s.order {
		notes = append(notes, s.notes[id])
	}

	data, err := json.MarshalIndent(notes, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrWriteFailed, err)
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		s.logger.Warn("Failed to persist notes to local storage",
			zap.Error(err),
			zap.String("path", s.path))
		return fmt.Errorf("%w: %v", ErrWriteFailed, err)
	}
	return nil
}

func (s *FileStorage) Authoritative() bool {
	return false
}

func (s *FileStorage) Close() error {
	return nil
}
