package auth

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubVerifier struct {
	claims *GoogleClaims
	err    error
}

func (v *stubVerifier) Verify(ctx context.Context, idToken string) (*GoogleClaims, error) {
	if v.err != nil {
		return nil, v.err
	}
	return v.claims, nil
}

func TestSignupAndLogin(t *testing.T) {
	s := NewService(&stubVerifier{}, zap.NewNop())

	session, err := s.Signup("Alice@Example.com", "s3cret", "Alice")
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", session.User.Email)
	assert.NotEmpty(t, session.AccessToken)

	// The issued token authenticates.
	user, err := s.Authenticate(session.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, session.User.ID, user.ID)

	// Fresh login issues a second valid token.
	login, err := s.Login("alice@example.com", "s3cret")
	require.NoError(t, err)
	assert.Equal(t, session.User.ID, login.User.ID)
	assert.NotEqual(t, session.AccessToken, login.AccessToken)
}

func TestSignupDuplicateEmail(t *testing.T) {
	s := NewService(&stubVerifier{}, zap.NewNop())

	_, err := s.Signup("alice@example.com", "s3cret", "Alice")
	require.NoError(t, err)

	_, err = s.Signup("alice@example.com", "other", "Alice Again")
	require.ErrorIs(t, err, ErrEmailTaken)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	s := NewService(&stubVerifier{}, zap.NewNop())

	_, err := s.Signup("alice@example.com", "s3cret", "Alice")
	require.NoError(t, err)

	_, err = s.Login("alice@example.com", "wrong")
	require.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = s.Login("nobody@example.com", "s3cret")
	require.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestSignupRequiresEmailAndPassword(t *testing.T) {
	s := NewService(&stubVerifier{}, zap.NewNop())

	_, err := s.Signup("", "pw", "")
	require.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = s.Signup("a@b.c", "", "")
	require.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestGoogleLoginCreatesAccountOnFirstSight(t *testing.T) {
	verifier := &stubVerifier{claims: &GoogleClaims{Subject: "g1", Email: "Bob@Example.com", Name: "Bob"}}
	s := NewService(verifier, zap.NewNop())

	first, err := s.GoogleLogin(context.Background(), "token")
	require.NoError(t, err)
	assert.Equal(t, "bob@example.com", first.User.Email)

	second, err := s.GoogleLogin(context.Background(), "token")
	require.NoError(t, err)
	assert.Equal(t, first.User.ID, second.User.ID, "repeat sign-in reuses the account")
}

func TestGoogleLoginVerifierFailure(t *testing.T) {
	s := NewService(&stubVerifier{err: errors.New("provider down")}, zap.NewNop())

	_, err := s.GoogleLogin(context.Background(), "token")
	require.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLogoutRevokesToken(t *testing.T) {
	s := NewService(&stubVerifier{}, zap.NewNop())

	session, err := s.Signup("alice@example.com", "s3cret", "Alice")
	require.NoError(t, err)

	s.Logout(session.AccessToken)
	_, err = s.Authenticate(session.AccessToken)
	require.ErrorIs(t, err, ErrUnauthorized)

	// Unknown tokens are a no-op.
	s.Logout("never-issued")
}
