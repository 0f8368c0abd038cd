// Package identity mints Firebase ID tokens for the Firestore store.
package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

// DefaultSignInURL is the Identity Toolkit password sign-in endpoint
const DefaultSignInURL = "https://identitytoolkit.googleapis.com/v1/accounts:signInWithPassword"

// expirySkew renews tokens slightly before Firebase rejects them
const expirySkew = time.Minute

// Config holds the service account used to sign in
type Config struct {
	SignInURL  string
	APIKey     string
	Email      string
	Password   string
	HTTPClient *http.Client
}

// passwordSource signs in on every Token call
type passwordSource struct {
	cfg    Config
	client *http.Client
	now    func() time.Time
}

// NewTokenSource returns a token source that signs in with email and
// password and caches the ID token until shortly before it expires
func NewTokenSource(cfg *Config) (oauth2.TokenSource, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("firebase api key is required")
	}
	if cfg.Email == "" || cfg.Password == "" {
		return nil, errors.New("firebase email and password are required")
	}

	src := &passwordSource{
		cfg:    *cfg,
		client: cfg.HTTPClient,
		now:    time.Now,
	}
	if src.cfg.SignInURL == "" {
		src.cfg.SignInURL = DefaultSignInURL
	}
	if src.client == nil {
		src.client = &http.Client{Timeout: 10 * time.Second}
	}

	return oauth2.ReuseTokenSource(nil, src), nil
}

// NewHTTPClient returns a client that authorizes every request with a token
// from ts
func NewHTTPClient(ctx context.Context, ts oauth2.TokenSource) *http.Client {
	return oauth2.NewClient(ctx, ts)
}

type signInRequest struct {
	Email             string `json:"email"`
	Password          string `json:"password"`
	ReturnSecureToken bool   `json:"returnSecureToken"`
}

type signInResponse struct {
	IDToken   string `json:"idToken"`
	ExpiresIn string `json:"expiresIn"`
	LocalID   string `json:"localId"`
}

type signInError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Token performs the password sign-in
func (s *passwordSource) Token() (*oauth2.Token, error) {
	body, err := json.Marshal(signInRequest{
		Email:             s.cfg.Email,
		Password:          s.cfg.Password,
		ReturnSecureToken: true,
	})
	if err != nil {
		return nil, fmt.Errorf("encode sign-in request: %w", err)
	}

	endpoint := s.cfg.SignInURL + "?" + url.Values{"key": {s.cfg.APIKey}}.Encode()
	req, err := http.NewRequest(http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build sign-in request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("firebase sign-in: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return nil, fmt.Errorf("read sign-in response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr signInError
		if json.Unmarshal(raw, &apiErr) == nil && apiErr.Error.Message != "" {
			return nil, fmt.Errorf("firebase sign-in failed (%d): %s", resp.StatusCode, apiErr.Error.Message)
		}
		return nil, fmt.Errorf("firebase sign-in failed with status %d", resp.StatusCode)
	}

	var out signInResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode sign-in response: %w", err)
	}
	if out.IDToken == "" {
		return nil, errors.New("firebase sign-in response has no idToken")
	}

	token := &oauth2.Token{
		AccessToken: out.IDToken,
		TokenType:   "Bearer",
	}
	if seconds, err := strconv.Atoi(strings.TrimSpace(out.ExpiresIn)); err == nil && seconds > 0 {
		ttl := time.Duration(seconds) * time.Second
		if ttl > 2*expirySkew {
			ttl -= expirySkew
		}
		token.Expiry = s.now().Add(ttl)
	}

	return token, nil
}
