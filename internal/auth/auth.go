package auth

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/pratibhabharti18/Memory-Bank/internal/models"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailTaken         = errors.New("an account with this email already exists")
	ErrUnauthorized       = errors.New("missing or invalid bearer token")
)

// GoogleVerifier validates a Google ID token with the external
// identity provider. The core treats it as opaque.
type GoogleVerifier interface {
	Verify(ctx context.Context, idToken string) (*GoogleClaims, error)
}

type GoogleClaims struct {
	Subject string
	Email   string
	Name    string
}

// Session is an issued identity/token pair.
type Session struct {
	User        models.User `json:"user"`
	AccessToken string      `json:"access_token"`
}

// Service holds user accounts and live bearer tokens. Credentials are
// the only thing it validates; everything identity-provider-shaped is
// delegated to the injected verifier.
type Service struct {
	mu       sync.RWMutex
	accounts map[string]*account // keyed by lowercased email
	tokens   map[string]string   // token -> user id
	users    map[string]models.User
	verifier GoogleVerifier
	logger   *zap.Logger
}

type account struct {
	user         models.User
	passwordHash []byte
}

func NewService(verifier GoogleVerifier, logger *zap.Logger) *Service {
	return &Service{
		accounts: make(map[string]*account),
		tokens:   make(map[string]string),
		users:    make(map[string]models.User),
		verifier: verifier,
		logger:   logger,
	}
}

func (s *Service) Signup(email, password, name string) (*Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.accounts[email]; exists {
		return nil, ErrEmailTaken
	}

	user := models.User{
		ID:        uuid.New().String(),
		Email:     email,
		Name:      name,
		CreatedAt: time.Now(),
	}
	s.accounts[email] = &account{user: user, passwordHash: hash}
	s.users[user.ID] = user

	return s.issueLocked(user), nil
}

func (s *Service) Login(email, password string) (*Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	s.mu.Lock()
	defer s.mu.Unlock()

	acct, exists := s.accounts[email]
	if !exists {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(acct.passwordHash, []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	return s.issueLocked(acct.user), nil
}

// GoogleLogin exchanges a Google ID token for a session, creating the
// account on first sight.
func (s *Service) GoogleLogin(ctx context.Context, idToken string) (*Session, error) {
	claims, err := s.verifier.Verify(ctx, idToken)
	if err != nil {
		s.logger.Warn("Google token verification failed", zap.Error(err))
		return nil, ErrInvalidCredentials
	}

	email := strings.ToLower(claims.Email)

	s.mu.Lock()
	defer s.mu.Unlock()

	acct, exists := s.accounts[email]
	if !exists {
		user := models.User{
			ID:        uuid.New().String(),
			Email:     email,
			Name:      claims.Name,
			CreatedAt: time.Now(),
		}
		acct = &account{user: user}
		s.accounts[email] = acct
		s.users[user.ID] = user
	}

	return s.issueLocked(acct.user), nil
}

// Authenticate resolves a bearer token to its user.
func (s *Service) Authenticate(token string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	userID, exists := s.tokens[token]
	if !exists {
		return nil, ErrUnauthorized
	}
	user := s.users[userID]
	return &user, nil
}

// Logout revokes the token. Unknown tokens are a no-op.
func (s *Service) Logout(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tokens, token)
}

func (s *Service) issueLocked(user models.User) *Session {
	token := uuid.New().String()
	s.tokens[token] = user.ID
	return &Session{User: user, AccessToken: token}
}
