package storage

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/pratibhabharti18/Memory-Bank/internal/models"
)

//go:embed migrations.sql
var migrations embed.FS

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// PostgresStorage is the remote backend of the networked variant. It is
// authoritative: a mutation is only reflected in memory after the
// database confirms it.
type PostgresStorage struct {
	db *sql.DB
}

func NewPostgresStorage(config DatabaseConfig) (*PostgresStorage, error) {
	connStr := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		config.Host, config.Port, config.User, config.Password, config.DBName, config.SSLMode)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("error connecting to the database: %w", err)
	}

	storage := &PostgresStorage{db: db}

	if err := storage.initializeSchema(); err != nil {
		return nil, fmt.Errorf("error initializing database schema: %w", err)
	}

	return storage, nil
}

func (s *PostgresStorage) initializeSchema() error {
	migrationSQL, err := migrations.ReadFile("migrations.sql")
	if err != nil {
		return fmt.Errorf("error reading migrations file: %w", err)
	}

	if _, err := s.db.Exec(string(migrationSQL)); err != nil {
		return fmt.Errorf("error executing migrations: %w", err)
	}

	return nil
}

func (s *PostgresStorage) Load(ctx context.Context, ownerID string) ([]*models.Note, error) {
	query := `
		SELECT id, owner_id, note_type, title, source_url, source_name, source_mime,
		       extracted_text, summary, tags, entities, created_at, is_deleted, deleted_at
		FROM notes
		WHERE owner_id = $1
		ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("error querying notes: %w", err)
	}
	defer rows.Close()

	var notes []*models.Note
	for rows.Next() {
		note := &models.Note{}
		var deletedAt sql.NullTime
		err := rows.Scan(
			&note.ID,
			&note.OwnerID,
			&note.Type,
			&note.Title,
			&note.OriginalSource.URL,
			&note.OriginalSource.Name,
			&note.OriginalSource.MIMEType,
			&note.ExtractedText,
			&note.Summary,
			pq.Array(&note.Tags),
			pq.Array(&note.Entities),
			&note.CreatedAt,
			&note.IsDeleted,
			&deletedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("error scanning note: %w", err)
		}
		if deletedAt.Valid {
			t := deletedAt.Time
			note.DeletedAt = &t
		}
		notes = append(notes, note)
	}
	return notes, rows.Err()
}

func (s *PostgresStorage) Insert(ctx context.Context, note *models.Note) error {
	query := `
		INSERT INTO notes (id, owner_id, note_type, title, source_url, source_name, source_mime,
		                   extracted_text, summary, tags, entities, created_at, is_deleted)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	_, err := s.db.ExecContext(ctx, query,
		note.ID,
		note.OwnerID,
		note.Type,
		note.Title,
		note.OriginalSource.URL,
		note.OriginalSource.Name,
		note.OriginalSource.MIMEType,
		note.ExtractedText,
		note.Summary,
		pq.Array(note.Tags),
		pq.Array(note.Entities),
		note.CreatedAt,
		note.IsDeleted,
	)
	if err != nil {
		return fmt.Errorf("error creating note: %w", err)
	}
	return nil
}

func (s *PostgresStorage) SetDeletion(ctx context.Context, id string, deleted bool, at *time.Time) error {
	query := `
		UPDATE notes
		SET is_deleted = $1, deleted_at = $2
		WHERE id = $3`

	result, err := s.db.ExecContext(ctx, query, deleted, at, id)
	if err != nil {
		return fmt.Errorf("error updating note deletion: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("error getting rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStorage) Remove(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM notes WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("error deleting note: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("error getting rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStorage) Authoritative() bool {
	return true
}

func (s *PostgresStorage) Close() error {
	return s.db.Close()
}
