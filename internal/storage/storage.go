package storage

import (
	"context"
	"errors"
	"time"

	"github.com/pratibhabharti18/Memory-Bank/internal/models"
)

var ErrNotFound = errors.New("note not found")

// Storage persists the note collection behind the store. Authoritative
// backends (Postgres) must confirm a write before the in-memory state
// is allowed to change; the file backend is best-effort and a failed
// write is only a warning.
type Storage interface {
	Load(ctx context.Context, ownerID string) ([]*models.Note, error)
	Insert(ctx context.Context, note *models.Note) error
	SetDeletion(ctx context.Context, id string, deleted bool, at *time.Time) error
	Remove(ctx context.Context, id string) error
	Authoritative() bool
	Close() error
}
