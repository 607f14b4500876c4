package ingest

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/pratibhabharti18/Memory-Bank/internal/models"
	"github.com/pratibhabharti18/Memory-Bank/internal/reasoning"
)

var (
	ErrEmptyContent      = errors.New("text capture requires a non-empty body")
	ErrInvalidURL        = errors.New("url capture requires a valid http(s) address")
	ErrMissingAttachment = errors.New("capture requires an attachment")
	ErrRecorderBusy      = errors.New("a recording is already in progress")
	ErrNotRecording      = errors.New("no recording in progress")
)

// fallbackTag marks notes inserted raw because the extraction call
// failed. The user's input is kept; enrichment is simply absent.
const fallbackTag = "unprocessed"

const titleLimit = 40

// RecorderState is the voice capture sub-state.
type RecorderState int

const (
	RecorderIdle RecorderState = iota
	RecorderRecording
	RecorderCaptured
)

// Appender is the single store operation the workflow needs.
type Appender interface {
	Append(ctx context.Context, note *models.Note) error
}

// Workflow converts one raw captured input into a persisted note. The
// modality selection is mutually exclusive: picking a new modality
// discards any in-progress attachment from the previous one. A
// workflow serves a single submission and is not goroutine-safe.
type Workflow struct {
	store    Appender
	reasoner reasoning.Service
	timeout  time.Duration
	logger   *zap.Logger

	mode       models.NoteType
	title      string
	content    string
	attachment *models.Attachment
	recorder   RecorderState
}

func NewWorkflow(store Appender, reasoner reasoning.Service, timeout time.Duration, logger *zap.Logger) *Workflow {
	return &Workflow{
		store:    store,
		reasoner: reasoner,
		timeout:  timeout,
		logger:   logger,
		mode:     models.TextNote,
	}
}

func (w *Workflow) Mode() models.NoteType     { return w.mode }
func (w *Workflow) Recorder() RecorderState   { return w.recorder }
func (w *Workflow) SetTitle(title string)     { w.title = title }
func (w *Workflow) SetContent(content string) { w.content = content }

// SetMode selects the ingestion modality, discarding any attachment
// captured for the previous one.
func (w *Workflow) SetMode(mode models.NoteType) {
	w.mode = mode
	w.attachment = nil
	w.recorder = RecorderIdle
}

// AttachFile stages an uploaded file and switches to the given
// modality (pdf or image).
func (w *Workflow) AttachFile(mode models.NoteType, name, mimeType string, data []byte) {
	w.mode = mode
	w.recorder = RecorderIdle
	w.attachment = &models.Attachment{Name: name, MIMEType: mimeType, Data: data}
	if w.title == "" {
		w.title = name
	}
}

// StartRecording begins a voice capture session.
func (w *Workflow) StartRecording() error {
	if w.recorder == RecorderRecording {
		return ErrRecorderBusy
	}
	w.SetMode(models.VoiceNote)
	w.recorder = RecorderRecording
	return nil
}

// StopRecording ends the capture session and stages the recorded audio
// as the attachment.
func (w *Workflow) StopRecording(data []byte) error {
	if w.recorder != RecorderRecording {
		return ErrNotRecording
	}
	w.recorder = RecorderCaptured
	w.attachment = &models.Attachment{Name: "recording.webm", MIMEType: "audio/webm", Data: data}
	return nil
}

// Submit validates the staged input, runs extraction and appends the
// resulting note. Validation failures are local and never reach the
// reasoning service. An extraction failure degrades to a raw note
// tagged "unprocessed" so the user's input is never lost.
func (w *Workflow) Submit(ctx context.Context) (*models.Note, error) {
	if err := w.validate(); err != nil {
		return nil, err
	}

	callCtx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	extraction, err := w.reasoner.Extract(callCtx, reasoning.ExtractionRequest{
		Mode:       w.mode,
		Text:       w.content,
		Attachment: w.attachment,
	})

	var note *models.Note
	if err != nil {
		w.logger.Warn("Extraction failed, inserting unenriched fallback note",
			zap.Error(err),
			zap.String("mode", string(w.mode)))
		note = w.buildFallbackNote()
	} else {
		note = w.buildNote(extraction)
	}

	if err := w.store.Append(ctx, note); err != nil {
		return nil, fmt.Errorf("failed to commit note: %w", err)
	}

	w.reset()
	return note, nil
}

func (w *Workflow) validate() error {
	switch w.mode {
	case models.TextNote:
		if w.content == "" {
			return ErrEmptyContent
		}
	case models.URLNote:
		u, err := url.Parse(w.content)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return ErrInvalidURL
		}
	case models.PDFNote, models.ImageNote, models.VoiceNote:
		if w.attachment == nil {
			return ErrMissingAttachment
		}
	}
	return nil
}

func (w *Workflow) buildNote(extraction *reasoning.Extraction) *models.Note {
	extractedText := w.content
	if extractedText == "" {
		extractedText = extraction.Summary
	}

	title := w.title
	if title == "" {
		title = truncate(extraction.Summary, titleLimit)
	}

	return &models.Note{
		Type:           w.mode,
		Title:          title,
		OriginalSource: w.source(),
		ExtractedText:  extractedText,
		Summary:        extraction.Summary,
		Tags:           append(append([]string{}, extraction.Tags...), string(w.mode)),
		Entities:       append([]string{}, extraction.Entities...),
		CreatedAt:      time.Now(),
	}
}

func (w *Workflow) buildFallbackNote() *models.Note {
	title := w.title
	if title == "" && w.attachment != nil {
		title = w.attachment.Name
	}
	if title == "" {
		title = truncate(w.content, titleLimit)
	}
	if title == "" {
		title = "Untitled capture"
	}

	return &models.Note{
		Type:           w.mode,
		Title:          title,
		OriginalSource: w.source(),
		ExtractedText:  w.content,
		Tags:           []string{string(w.mode), fallbackTag},
		Entities:       []string{},
		CreatedAt:      time.Now(),
	}
}

func (w *Workflow) source() models.Source {
	switch {
	case w.mode == models.URLNote:
		return models.Source{URL: w.content, Name: "website", MIMEType: "text/plain"}
	case w.attachment != nil:
		return models.Source{
			URL: fmt.Sprintf("data:%s;base64,%s",
				w.attachment.MIMEType, base64.StdEncoding.EncodeToString(w.attachment.Data)),
			Name:     w.attachment.Name,
			MIMEType: w.attachment.MIMEType,
		}
	default:
		return models.Source{Name: "text-entry", MIMEType: "text/plain"}
	}
}

func (w *Workflow) reset() {
	w.mode = models.TextNote
	w.title = ""
	w.content = ""
	w.attachment = nil
	w.recorder = RecorderIdle
}

// truncate cuts on a rune boundary so multibyte text never yields an
// invalid title.
func truncate(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit]) + "..."
}
