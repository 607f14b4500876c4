package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/pratibhabharti18/Memory-Bank/internal/auth"
	"github.com/pratibhabharti18/Memory-Bank/internal/ingest"
	"github.com/pratibhabharti18/Memory-Bank/internal/models"
)

const maxUploadBytes = 32 << 20

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	session, err := s.auth.Signup(req.Email, req.Password, req.Name)
	switch {
	case errors.Is(err, auth.ErrEmailTaken):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, auth.ErrInvalidCredentials):
		writeError(w, http.StatusBadRequest, "email and password are required")
	case err != nil:
		s.logger.Error("Signup failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "signup failed")
	default:
		writeJSON(w, http.StatusOK, session)
	}
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	session, err := s.auth.Login(req.Email, req.Password)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid email or password")
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (s *Server) handleGoogleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		IDToken string `json:"id_token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.IDToken == "" {
		writeError(w, http.StatusBadRequest, "id_token is required")
		return
	}

	session, err := s.auth.GoogleLogin(r.Context(), req.IDToken)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "google sign-in failed")
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request, _ *models.User, _ *session) {
	s.auth.Logout(bearerToken(r))
	writeJSON(w, http.StatusOK, map[string]string{"status": "logged_out"})
}

func (s *Server) handleListNotes(w http.ResponseWriter, r *http.Request, _ *models.User, sess *session) {
	writeJSON(w, http.StatusOK, sess.store.Notes())
}

// handleIngest accepts one multipart capture: mode, title, content and
// an optional file, mirroring the ingestion form.
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request, _ *models.User, sess *session) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "expected multipart form data")
		return
	}

	mode := models.NoteType(r.FormValue("mode"))
	switch mode {
	case models.TextNote, models.PDFNote, models.URLNote, models.VoiceNote, models.ImageNote:
	default:
		writeError(w, http.StatusBadRequest, "unknown ingestion mode")
		return
	}

	wf := ingest.NewWorkflow(sess.store, s.reasoner, s.timeout, s.logger)
	wf.SetTitle(r.FormValue("title"))
	wf.SetContent(r.FormValue("content"))
	wf.SetMode(mode)

	file, header, err := r.FormFile("file")
	if err == nil {
		defer file.Close()
		data, readErr := io.ReadAll(file)
		if readErr != nil {
			writeError(w, http.StatusBadRequest, "failed to read uploaded file")
			return
		}
		if mode == models.VoiceNote {
			wf.StartRecording()
			wf.StopRecording(data)
		} else {
			wf.AttachFile(mode, header.Filename, header.Header.Get("Content-Type"), data)
		}
	}

	note, err := wf.Submit(r.Context())
	switch {
	case errors.Is(err, ingest.ErrEmptyContent),
		errors.Is(err, ingest.ErrInvalidURL),
		errors.Is(err, ingest.ErrMissingAttachment):
		writeError(w, http.StatusBadRequest, err.Error())
	case err != nil:
		s.logger.Error("Ingestion failed", zap.Error(err))
		writeError(w, http.StatusBadGateway, "failed to commit note")
	default:
		writeJSON(w, http.StatusOK, note)
	}
}

func (s *Server) handleSoftDelete(w http.ResponseWriter, r *http.Request, _ *models.User, sess *session) {
	found, err := sess.store.SoftDelete(r.Context(), r.PathValue("id"))
	switch {
	case err != nil:
		writeError(w, http.StatusBadGateway, "delete was not confirmed, note unchanged")
	case !found:
		writeError(w, http.StatusNotFound, "Note not found")
	default:
		writeJSON(w, http.StatusOK, map[string]string{"status": "moved_to_recycle_bin"})
	}
}

func (s *Server) handleRestore(w http.ResponseWriter, r *http.Request, _ *models.User, sess *session) {
	found, err := sess.store.Restore(r.Context(), r.PathValue("id"))
	switch {
	case err != nil:
		writeError(w, http.StatusBadGateway, "restore was not confirmed, note unchanged")
	case !found:
		writeError(w, http.StatusNotFound, "Note not found")
	default:
		writeJSON(w, http.StatusOK, map[string]string{"status": "restored"})
	}
}

// handlePermanentDelete erases unconditionally: an unknown id still
// reports success, so repeated purges are safe to retry.
func (s *Server) handlePermanentDelete(w http.ResponseWriter, r *http.Request, _ *models.User, sess *session) {
	if _, err := sess.store.PermanentlyDelete(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, http.StatusBadGateway, "delete was not confirmed, note unchanged")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "erased_permanently"})
}

func (s *Server) handleGraph(w http.ResponseWriter, r *http.Request, _ *models.User, sess *session) {
	writeJSON(w, http.StatusOK, sess.sync.Graph())
}

func (s *Server) handleInsights(w http.ResponseWriter, r *http.Request, _ *models.User, sess *session) {
	writeJSON(w, http.StatusOK, sess.sync.Insights())
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request, _ *models.User, sess *session) {
	writeJSON(w, http.StatusOK, map[string]any{
		"processing":    sess.sync.Processing(),
		"active_notes":  len(sess.store.ActiveNotes()),
		"deleted_notes": len(sess.store.DeletedNotes()),
	})
}

type chatRequest struct {
	Query   string               `json:"query"`
	History []models.ChatMessage `json:"history"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request, _ *models.User, sess *session) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Query == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()

	answer, err := s.reasoner.Chat(ctx, req.Query, sess.store.ActiveNotes(), req.History)
	if err != nil {
		s.logger.Warn("Chat call failed", zap.Error(err))
		writeError(w, http.StatusBadGateway, "assistant is unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"answer": answer})
}
