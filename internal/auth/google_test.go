package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenInfoVerifier(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("id_token") != "good" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Write([]byte(`{"sub":"g1","email":"bob@example.com","name":"Bob","aud":"client-123"}`))
	}))
	defer ts.Close()

	v := NewTokenInfoVerifier("client-123")
	v.endpoint = ts.URL

	claims, err := v.Verify(context.Background(), "good")
	require.NoError(t, err)
	assert.Equal(t, "bob@example.com", claims.Email)
	assert.Equal(t, "g1", claims.Subject)

	_, err = v.Verify(context.Background(), "bad")
	require.Error(t, err)
}

func TestTokenInfoVerifierAudienceMismatch(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"sub":"g1","email":"bob@example.com","aud":"someone-else"}`))
	}))
	defer ts.Close()

	v := NewTokenInfoVerifier("client-123")
	v.endpoint = ts.URL

	_, err := v.Verify(context.Background(), "token")
	require.Error(t, err)
}
