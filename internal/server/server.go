package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/pratibhabharti18/Memory-Bank/internal/auth"
	"github.com/pratibhabharti18/Memory-Bank/internal/knowledge"
	"github.com/pratibhabharti18/Memory-Bank/internal/models"
	"github.com/pratibhabharti18/Memory-Bank/internal/reasoning"
	"github.com/pratibhabharti18/Memory-Bank/internal/storage"
	"github.com/pratibhabharti18/Memory-Bank/internal/store"
)

// Server exposes the note lifecycle, ingestion, derived knowledge and
// chat over REST. Each authenticated user gets a lazily created
// session: their own note store plus a knowledge synchronizer
// subscribed to it.
type Server struct {
	auth     *auth.Service
	backend  storage.Storage
	reasoner reasoning.Service
	timeout  time.Duration
	logger   *zap.Logger

	baseCtx  context.Context
	mu       sync.Mutex
	sessions map[string]*session
}

type session struct {
	store *store.Store
	sync  *knowledge.Synchronizer
}

func New(baseCtx context.Context, authSvc *auth.Service, backend storage.Storage, reasoner reasoning.Service, timeout time.Duration, logger *zap.Logger) *Server {
	return &Server{
		auth:     authSvc,
		backend:  backend,
		reasoner: reasoner,
		timeout:  timeout,
		logger:   logger,
		baseCtx:  baseCtx,
		sessions: make(map[string]*session),
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /auth/signup", s.handleSignup)
	mux.HandleFunc("POST /auth/login", s.handleLogin)
	mux.HandleFunc("POST /auth/google", s.handleGoogleLogin)
	mux.HandleFunc("POST /auth/logout", s.requireAuth(s.handleLogout))

	mux.HandleFunc("GET /memory", s.requireAuth(s.handleListNotes))
	mux.HandleFunc("POST /ingest", s.requireAuth(s.handleIngest))
	mux.HandleFunc("DELETE /memory/{id}/soft", s.requireAuth(s.handleSoftDelete))
	mux.HandleFunc("POST /memory/{id}/restore", s.requireAuth(s.handleRestore))
	mux.HandleFunc("DELETE /memory/{id}/permanent", s.requireAuth(s.handlePermanentDelete))

	mux.HandleFunc("GET /graph", s.requireAuth(s.handleGraph))
	mux.HandleFunc("GET /insights", s.requireAuth(s.handleInsights))
	mux.HandleFunc("GET /status", s.requireAuth(s.handleStatus))
	mux.HandleFunc("POST /chat", s.requireAuth(s.handleChat))

	return mux
}

type authedHandler func(w http.ResponseWriter, r *http.Request, user *models.User, sess *session)

// requireAuth resolves the bearer token and the per-user session.
func (s *Server) requireAuth(next authedHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}

		user, err := s.auth.Authenticate(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid bearer token")
			return
		}

		sess, err := s.session(user.ID)
		if err != nil {
			s.logger.Error("Failed to open session",
				zap.Error(err),
				zap.String("user_id", user.ID))
			writeError(w, http.StatusInternalServerError, "failed to load notes")
			return
		}

		next(w, r, user, sess)
	}
}

// session lazily builds the user's note store and starts their
// synchronizer. Notes already on disk trigger an initial
// recomputation, mirroring a fresh client load.
func (s *Server) session(userID string) (*session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess, exists := s.sessions[userID]; exists {
		return sess, nil
	}

	st, err := store.New(s.baseCtx, s.backend, userID, s.logger)
	if err != nil {
		return nil, err
	}

	syncer := knowledge.NewSynchronizer(s.reasoner, s.timeout, s.logger)
	go syncer.Run(s.baseCtx, st.Changes())

	if active := st.ActiveNotes(); len(active) > 0 {
		syncer.Trigger(s.baseCtx, active)
	}

	sess := &session{store: st, sync: syncer}
	s.sessions[userID] = sess
	return sess, nil
}

func bearerToken(r *http.Request) string {
	const prefix = "Bearer "
	header := r.Header.Get("Authorization")
	if len(header) > len(prefix) && header[:len(prefix)] == prefix {
		return header[len(prefix):]
	}
	return ""
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

// writeError emits the {detail: string} error body of the REST
// contract.
func writeError(w http.ResponseWriter, code int, detail string) {
	writeJSON(w, code, map[string]string{"detail": detail})
}
