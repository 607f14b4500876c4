package models

import (
	"time"
)

type NoteType string

const (
	TextNote  NoteType = "text"
	PDFNote   NoteType = "pdf"
	URLNote   NoteType = "url"
	VoiceNote NoteType = "voice"
	ImageNote NoteType = "image"
)

// Source points at the raw captured artifact: a URL for url notes,
// a data URL for uploaded/recorded binaries, or empty for plain text.
type Source struct {
	URL      string `json:"url"`
	Name     string `json:"name"`
	MIMEType string `json:"mime_type"`
}

// Note is a single captured unit of knowledge. Apart from the
// soft-delete flags a note is immutable after creation.
type Note struct {
	ID             string     `json:"id"`
	OwnerID        string     `json:"owner_id,omitempty"`
	Type           NoteType   `json:"type"`
	Title          string     `json:"title"`
	OriginalSource Source     `json:"original_source"`
	ExtractedText  string     `json:"extracted_text"`
	Summary        string     `json:"summary"`
	Tags           []string   `json:"tags"`
	Entities       []string   `json:"entities"`
	CreatedAt      time.Time  `json:"created_at"`
	IsDeleted      bool       `json:"is_deleted"`
	DeletedAt      *time.Time `json:"deleted_at,omitempty"`
}

func (n *Note) Active() bool {
	return !n.IsDeleted
}

// Attachment is a binary captured during ingestion, forwarded to the
// reasoning service as base64 and stored on the note as a data URL.
type Attachment struct {
	Name     string
	MIMEType string
	Data     []byte
}
