package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/pratibhabharti18/Memory-Bank/internal/models"
)

// MemoryStorage keeps notes in process memory only. Used in tests and
// as a throwaway backend when no persistence is configured.
type MemoryStorage struct {
	mu    sync.RWMutex
	notes map[string]*models.Note
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		notes: make(map[string]*models.Note),
	}
}

func (s *MemoryStorage) Load(ctx context.Context, ownerID string) ([]*models.Note, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	notes := make([]*models.Note, 0, len(s.notes))
	for _, n := range s.notes {
		if ownerID == "" || n.OwnerID == ownerID {
			copied := *n
			notes = append(notes, &copied)
		}
	}
	sort.Slice(notes, func(i, j int) bool {
		return notes[i].CreatedAt.After(notes[j].CreatedAt)
	})
	return notes, nil
}

func (s *MemoryStorage) Insert(ctx context.Context, note *models.Note) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *note
	s.notes[note.ID] = &copied
	return nil
}

func (s *MemoryStorage) SetDeletion(ctx context.Context, id string, deleted bool, at *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	note, exists := s.notes[id]
	if !exists {
		return ErrNotFound
	}
	note.IsDeleted = deleted
	note.DeletedAt = at
	return nil
}

func (s *MemoryStorage) Remove(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.notes[id]; !exists {
		return ErrNotFound
	}
	delete(s.notes, id)
	return nil
}

func (s *MemoryStorage) Authoritative() bool {
	return false
}

func (s *MemoryStorage) Close() error {
	// Nothing to close for in-memory storage
	return nil
}
