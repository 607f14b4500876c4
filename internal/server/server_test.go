package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pratibhabharti18/Memory-Bank/internal/auth"
	"github.com/pratibhabharti18/Memory-Bank/internal/models"
	"github.com/pratibhabharti18/Memory-Bank/internal/reasoning"
	"github.com/pratibhabharti18/Memory-Bank/internal/storage"
)

type stubVerifier struct{}

func (stubVerifier) Verify(ctx context.Context, idToken string) (*auth.GoogleClaims, error) {
	return &auth.GoogleClaims{Subject: "g1", Email: "google@example.com", Name: "G"}, nil
}

type mockReasoner struct {
	mu           sync.Mutex
	extractCalls int
	chatErr      error
}

func (m *mockReasoner) Extract(ctx context.Context, req reasoning.ExtractionRequest) (*reasoning.Extraction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.extractCalls++
	return &reasoning.Extraction{
		Tags:     []string{"auto"},
		Entities: []string{"Entity"},
		Summary:  "summary of " + string(req.Mode),
	}, nil
}

func (m *mockReasoner) DiscoverRelationships(ctx context.Context, notes []models.Note) (*models.KnowledgeGraph, error) {
	nodes := make([]models.GraphNode, 0, len(notes))
	for _, n := range notes {
		nodes = append(nodes, models.GraphNode{ID: n.ID, Name: n.Title, Type: models.NoteNode, Val: 1})
	}
	return &models.KnowledgeGraph{Nodes: nodes, Links: []models.GraphLink{}}, nil
}

func (m *mockReasoner) GenerateInsights(ctx context.Context, notes []models.Note) ([]models.Insight, error) {
	return []models.Insight{{ID: "i1", Title: "Insight", Description: "d", Type: models.PatternInsight}}, nil
}

func (m *mockReasoner) Chat(ctx context.Context, query string, notes []models.Note, history []models.ChatMessage) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.chatErr != nil {
		return "", m.chatErr
	}
	return "answer to " + query, nil
}

func (m *mockReasoner) extractCallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.extractCalls
}

func newTestServer(t *testing.T) (http.Handler, *mockReasoner) {
	t.Helper()
	return newTestServerWith(t, storage.NewMemoryStorage())
}

func newTestServerWith(t *testing.T, backend storage.Storage) (http.Handler, *mockReasoner) {
	t.Helper()
	logger := zap.NewNop()
	reasoner := &mockReasoner{}
	authSvc := auth.NewService(stubVerifier{}, logger)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	srv := New(ctx, authSvc, backend, reasoner, time.Second, logger)
	return srv.Handler(), reasoner
}

func doJSON(t *testing.T, handler http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func signup(t *testing.T, handler http.Handler) string {
	t.Helper()
	rec := doJSON(t, handler, http.MethodPost, "/auth/signup", "", map[string]string{
		"email":    "alice@example.com",
		"password": "s3cret",
		"name":     "Alice",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var session auth.Session
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &session))
	require.NotEmpty(t, session.AccessToken)
	return session.AccessToken
}

func ingestText(t *testing.T, handler http.Handler, token, title, content string) models.Note {
	t.Helper()
	rec := doMultipart(t, handler, token, map[string]string{
		"mode":    "text",
		"title":   title,
		"content": content,
	}, "", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var note models.Note
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &note))
	return note
}

func doMultipart(t *testing.T, handler http.Handler, token string, fields map[string]string, filename string, file []byte) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	if filename != "" {
		fw, err := w.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = fw.Write(file)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/ingest", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestAuthFlow(t *testing.T) {
	handler, _ := newTestServer(t)
	token := signup(t, handler)

	// Duplicate signup conflicts.
	rec := doJSON(t, handler, http.MethodPost, "/auth/signup", "", map[string]string{
		"email": "alice@example.com", "password": "x",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)

	// Login works and bad passwords don't.
	rec = doJSON(t, handler, http.MethodPost, "/auth/login", "", map[string]string{
		"email": "alice@example.com", "password": "s3cret",
	})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, handler, http.MethodPost, "/auth/login", "", map[string]string{
		"email": "alice@example.com", "password": "wrong",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "detail")

	// Google sign-in delegates to the verifier.
	rec = doJSON(t, handler, http.MethodPost, "/auth/google", "", map[string]string{"id_token": "tok"})
	assert.Equal(t, http.StatusOK, rec.Code)

	// Logout revokes the token.
	rec = doJSON(t, handler, http.MethodPost, "/auth/logout", token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = doJSON(t, handler, http.MethodGet, "/memory", token, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequiresBearerToken(t *testing.T) {
	handler, _ := newTestServer(t)

	for _, path := range []string{"/memory", "/graph", "/insights", "/status"} {
		rec := doJSON(t, handler, http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
	}
}

func TestIngestAndList(t *testing.T) {
	handler, _ := newTestServer(t)
	token := signup(t, handler)

	note := ingestText(t, handler, token, "First", "hello world")
	assert.Equal(t, models.TextNote, note.Type)
	assert.Equal(t, "First", note.Title)
	assert.Contains(t, note.Tags, "text")

	rec := doJSON(t, handler, http.MethodGet, "/memory", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var notes []models.Note
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &notes))
	require.Len(t, notes, 1)
	assert.Equal(t, note.ID, notes[0].ID)
}

func TestIngestInvalidURLRejectedWithoutServiceCall(t *testing.T) {
	handler, reasoner := newTestServer(t)
	token := signup(t, handler)

	rec := doMultipart(t, handler, token, map[string]string{
		"mode":    "url",
		"content": "not-a-url",
	}, "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, 0, reasoner.extractCallCount())

	rec = doJSON(t, handler, http.MethodGet, "/memory", token, nil)
	var notes []models.Note
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &notes))
	assert.Empty(t, notes)
}

func TestIngestUnknownMode(t *testing.T) {
	handler, _ := newTestServer(t)
	token := signup(t, handler)

	rec := doMultipart(t, handler, token, map[string]string{"mode": "hologram"}, "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestIngestImageUpload(t *testing.T) {
	handler, _ := newTestServer(t)
	token := signup(t, handler)

	rec := doMultipart(t, handler, token, map[string]string{
		"mode": "image",
	}, "photo.png", []byte{0x89, 0x50})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var note models.Note
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &note))
	assert.Equal(t, models.ImageNote, note.Type)
	assert.Equal(t, "photo.png", note.OriginalSource.Name)
}

func TestNoteLifecycleOverREST(t *testing.T) {
	handler, _ := newTestServer(t)
	token := signup(t, handler)
	note := ingestText(t, handler, token, "n", "body")

	rec := doJSON(t, handler, http.MethodDelete, "/memory/"+note.ID+"/soft", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "moved_to_recycle_bin")

	rec = doJSON(t, handler, http.MethodPost, "/memory/"+note.ID+"/restore", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "restored")

	rec = doJSON(t, handler, http.MethodDelete, "/memory/"+note.ID+"/permanent", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "erased_permanently")

	rec = doJSON(t, handler, http.MethodGet, "/memory", token, nil)
	var notes []models.Note
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &notes))
	assert.Empty(t, notes)
}

func TestLifecycleOnUnknownNote(t *testing.T) {
	handler, _ := newTestServer(t)
	token := signup(t, handler)

	// Soft delete and restore report the miss; permanent delete erases
	// unconditionally, so retries of a purge always succeed.
	rec := doJSON(t, handler, http.MethodDelete, "/memory/ghost/soft", token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "Note not found")

	rec = doJSON(t, handler, http.MethodPost, "/memory/ghost/restore", token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "Note not found")

	rec = doJSON(t, handler, http.MethodDelete, "/memory/ghost/permanent", token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "erased_permanently")
}

func TestDerivedKnowledgeEndpoints(t *testing.T) {
	handler, _ := newTestServer(t)
	token := signup(t, handler)
	ingestText(t, handler, token, "a", "body a")
	ingestText(t, handler, token, "b", "body b")

	// The synchronizer runs in the background; poll until the graph
	// reflects the second mutation.
	require.Eventually(t, func() bool {
		rec := doJSON(t, handler, http.MethodGet, "/graph", token, nil)
		if rec.Code != http.StatusOK {
			return false
		}
		var graph models.KnowledgeGraph
		if err := json.Unmarshal(rec.Body.Bytes(), &graph); err != nil {
			return false
		}
		return len(graph.Nodes) == 2
	}, 2*time.Second, 10*time.Millisecond)

	require.Eventually(t, func() bool {
		rec := doJSON(t, handler, http.MethodGet, "/insights", token, nil)
		var insights []models.Insight
		if err := json.Unmarshal(rec.Body.Bytes(), &insights); err != nil {
			return false
		}
		return len(insights) == 1 && insights[0].Title == "Insight"
	}, 2*time.Second, 10*time.Millisecond)

	rec := doJSON(t, handler, http.MethodGet, "/status", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var status map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.EqualValues(t, 2, status["active_notes"])
}

func TestChat(t *testing.T) {
	handler, reasoner := newTestServer(t)
	token := signup(t, handler)

	rec := doJSON(t, handler, http.MethodPost, "/chat", token, map[string]any{
		"query": "what do I know?",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "answer to what do I know?")

	rec = doJSON(t, handler, http.MethodPost, "/chat", token, map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	reasoner.mu.Lock()
	reasoner.chatErr = errors.New("provider down")
	reasoner.mu.Unlock()

	rec = doJSON(t, handler, http.MethodPost, "/chat", token, map[string]string{"query": "hi"})
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), "detail")
}

func TestSessionsAreIsolatedPerUser(t *testing.T) {
	backends := map[string]func(t *testing.T) storage.Storage{
		"memory": func(t *testing.T) storage.Storage { return storage.NewMemoryStorage() },
		"file": func(t *testing.T) storage.Storage {
			backend, err := storage.NewFileStorage(t.TempDir(), zap.NewNop())
			require.NoError(t, err)
			return backend
		},
	}

	for name, newBackend := range backends {
		t.Run(name, func(t *testing.T) {
			handler, _ := newTestServerWith(t, newBackend(t))
			alice := signup(t, handler)

			rec := doJSON(t, handler, http.MethodPost, "/auth/signup", "", map[string]string{
				"email": "bob@example.com", "password": "pw", "name": "Bob",
			})
			require.Equal(t, http.StatusOK, rec.Code)
			var bobSession auth.Session
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &bobSession))

			ingestText(t, handler, alice, "private", "alice only")

			rec = doJSON(t, handler, http.MethodGet, "/memory", bobSession.AccessToken, nil)
			require.Equal(t, http.StatusOK, rec.Code)
			var notes []models.Note
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &notes))
			assert.Empty(t, notes, "bob must not see alice's notes")
		})
	}
}
