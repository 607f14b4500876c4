package reasoning

import (
	"context"

	"github.com/pratibhabharti18/Memory-Bank/internal/models"
)

// Extraction is the structured metadata the external service produces
// for one raw captured input.
type Extraction struct {
	Tags     []string `json:"tags"`
	Entities []string `json:"entities"`
	Summary  string   `json:"summary"`
}

// ExtractionRequest carries one raw input: the typed text plus an
// optional binary attachment, tagged with the ingestion modality.
type ExtractionRequest struct {
	Mode       models.NoteType
	Text       string
	Attachment *models.Attachment
}

// Service is the external reasoning collaborator. All semantic
// intelligence is delegated here; callers bound each call with a
// context timeout and treat every failure as recoverable.
type Service interface {
	Extract(ctx context.Context, req ExtractionRequest) (*Extraction, error)
	DiscoverRelationships(ctx context.Context, notes []models.Note) (*models.KnowledgeGraph, error)
	GenerateInsights(ctx context.Context, notes []models.Note) ([]models.Insight, error)
	Chat(ctx context.Context, query string, notes []models.Note, history []models.ChatMessage) (string, error)
}
