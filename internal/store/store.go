package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pratibhabharti18/Memory-Bank/internal/models"
	"github.com/pratibhabharti18/Memory-Bank/internal/storage"
)

// Store holds the authoritative ordered note sequence for one session,
// most recent first. All mutations are serialized by its mutex and
// written through to the backend. Whenever a mutation changes the
// active set (and leaves it non-empty), the new active snapshot is
// published on the change channel for the knowledge synchronizer.
//
// Backends report whether they are authoritative. For an authoritative
// backend (Postgres) the remote write happens first and a failure
// leaves local state untouched, so local and remote never diverge. For
// best-effort backends (local file) the local mutation wins and a
// failed write is only logged.
type Store struct {
	mu      sync.Mutex
	backend storage.Storage
	ownerID string
	notes   []*models.Note
	changes chan []models.Note
	logger  *zap.Logger
}

func New(ctx context.Context, backend storage.Storage, ownerID string, logger *zap.Logger) (*Store, error) {
	notes, err := backend.Load(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	return &Store{
		backend: backend,
		ownerID: ownerID,
		notes:   notes,
		changes: make(chan []models.Note, 1),
		logger:  logger,
	}, nil
}

// Changes delivers the active-set snapshot after each mutation that
// changed it. Bursts coalesce: only the freshest snapshot is pending
// at any time, so a slow consumer never sees a stale intermediate set.
func (s *Store) Changes() <-chan []models.Note {
	return s.changes
}

// Append inserts the note at the front. Missing identity fields are
// filled in; there is no further validation.
func (s *Store) Append(ctx context.Context, note *models.Note) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if note.ID == "" {
		note.ID = uuid.New().String()
	}
	if note.CreatedAt.IsZero() {
		note.CreatedAt = time.Now()
	}
	if note.OwnerID == "" {
		note.OwnerID = s.ownerID
	}

	if err := s.persist(ctx, func() error { return s.backend.Insert(ctx, note) }); err != nil {
		return err
	}

	copied := *note
	s.notes = append([]*models.Note{&copied}, s.notes...)
	s.publishLocked()
	return nil
}

// SoftDelete marks the note deleted and stamps DeletedAt. Unknown ids
// are a no-op; the boolean reports whether the id matched a note.
func (s *Store) SoftDelete(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	note := s.findLocked(id)
	if note == nil {
		return false, nil
	}
	if note.IsDeleted {
		return true, nil
	}

	now := time.Now()
	if err := s.persist(ctx, func() error { return s.backend.SetDeletion(ctx, id, true, &now) }); err != nil {
		return true, err
	}

	note.IsDeleted = true
	note.DeletedAt = &now
	s.publishLocked()
	return true, nil
}

// Restore clears the soft-delete flags. Unknown ids are a no-op; the
// boolean reports whether the id matched a note.
func (s *Store) Restore(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	note := s.findLocked(id)
	if note == nil {
		return false, nil
	}
	if !note.IsDeleted {
		return true, nil
	}

	if err := s.persist(ctx, func() error { return s.backend.SetDeletion(ctx, id, false, nil) }); err != nil {
		return true, err
	}

	note.IsDeleted = false
	note.DeletedAt = nil
	s.publishLocked()
	return true, nil
}

// PermanentlyDelete removes the note from the sequence. Irreversible;
// unknown ids are a no-op and the boolean reports whether one matched.
func (s *Store) PermanentlyDelete(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	note := s.findLocked(id)
	if note == nil {
		return false, nil
	}
	wasActive := note.Active()

	if err := s.persist(ctx, func() error { return s.backend.Remove(ctx, id) }); err != nil {
		return true, err
	}

	for i, n := range s.notes {
		if n.ID == id {
			s.notes = append(s.notes[:i], s.notes[i+1:]...)
			break
		}
	}
	if wasActive {
		s.publishLocked()
	}
	return true, nil
}

// ActiveNotes returns the notes with IsDeleted=false, newest first.
func (s *Store) ActiveNotes() []models.Note {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filterLocked(true)
}

// DeletedNotes returns the recycle-bin view, the exact complement of
// ActiveNotes.
func (s *Store) DeletedNotes() []models.Note {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filterLocked(false)
}

// Notes returns the full sequence, both partitions, newest first.
func (s *Store) Notes() []models.Note {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.Note, 0, len(s.notes))
	for _, n := range s.notes {
		out = append(out, *n)
	}
	return out
}

func (s *Store) filterLocked(active bool) []models.Note {
	out := make([]models.Note, 0, len(s.notes))
	for _, n := range s.notes {
		if n.Active() == active {
			out = append(out, *n)
		}
	}
	return out
}

func (s *Store) findLocked(id string) *models.Note {
	for _, n := range s.notes {
		if n.ID == id {
			return n
		}
	}
	return nil
}

// persist runs the backend write. Authoritative backends gate the
// local mutation; best-effort backends only warn.
func (s *Store) persist(ctx context.Context, write func() error) error {
	err := write()
	if err == nil {
		return nil
	}
	if s.backend.Authoritative() {
		s.logger.Error("Backend write rejected, local state unchanged", zap.Error(err))
		return err
	}
	s.logger.Warn("Local persistence failed, continuing with in-memory state", zap.Error(err))
	return nil
}

// publishLocked pushes the fresh active snapshot, replacing any
// pending one. Mutations hold the store mutex, so the drain/send pair
// cannot race with another producer. The synchronizer is only
// triggered while the active set is non-empty.
func (s *Store) publishLocked() {
	active := s.filterLocked(true)
	if len(active) == 0 {
		return
	}
	select {
	case s.changes <- active:
	default:
		select {
		case <-s.changes:
		default:
		}
		s.changes <- active
	}
}
