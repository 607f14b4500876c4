package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

const tokenInfoEndpoint = "https://oauth2.googleapis.com/tokeninfo"

// TokenInfoVerifier checks Google ID tokens against the tokeninfo
// endpoint. When a client ID is configured the token audience must
// match it.
type TokenInfoVerifier struct {
	client   *http.Client
	endpoint string
	clientID string
}

func NewTokenInfoVerifier(clientID string) *TokenInfoVerifier {
	return &TokenInfoVerifier{
		client:   &http.Client{Timeout: 10 * time.Second},
		endpoint: tokenInfoEndpoint,
		clientID: clientID,
	}
}

func (v *TokenInfoVerifier) Verify(ctx context.Context, idToken string) (*GoogleClaims, error) {
	reqURL := fmt.Sprintf("%s?id_token=%s", v.endpoint, url.QueryEscape(idToken))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := v.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tokeninfo request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("tokeninfo rejected token: status %d", resp.StatusCode)
	}

	var body struct {
		Sub      string `json:"sub"`
		Email    string `json:"email"`
		Name     string `json:"name"`
		Audience string `json:"aud"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("malformed tokeninfo response: %w", err)
	}
	if body.Email == "" {
		return nil, fmt.Errorf("tokeninfo response missing email")
	}
	if v.clientID != "" && body.Audience != v.clientID {
		return nil, fmt.Errorf("token audience mismatch")
	}

	return &GoogleClaims{Subject: body.Sub, Email: body.Email, Name: body.Name}, nil
}
