package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"secsync/internal/logger"
	"secsync/pkg/models"
)

// TokenSource supplies bearer tokens and renews them on demand.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
	Refresh(ctx context.Context) (string, error)
	// Invalidate drops credentials after a failed refresh (logout).
	Invalidate()
}

// ErrNoRefresh is returned by token sources that cannot renew credentials.
var ErrNoRefresh = errors.New("token refresh not supported")

// StaticTokenSource serves a fixed token and cannot refresh.
type StaticTokenSource struct {
	mu    sync.RWMutex
	token string
}

// NewStaticTokenSource creates a StaticTokenSource.
func NewStaticTokenSource(token string) *StaticTokenSource {
	return &StaticTokenSource{token: strings.TrimSpace(token)}
}

func (s *StaticTokenSource) Token(context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token, nil
}

func (s *StaticTokenSource) Refresh(context.Context) (string, error) {
	return "", ErrNoRefresh
}

func (s *StaticTokenSource) Invalidate() {
	s.mu.Lock()
	s.token = ""
	s.mu.Unlock()
}

// EndpointTokenSource renews tokens by posting the refresh token to an auth endpoint.
// Concurrent refreshes share one request.
type EndpointTokenSource struct {
	url    string
	client *http.Client
	group  singleflight.Group

	mu           sync.RWMutex
	token        string
	refreshToken string
}

// NewEndpointTokenSource creates an EndpointTokenSource.
func NewEndpointTokenSource(refreshURL, token, refreshToken string, timeout time.Duration) *EndpointTokenSource {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &EndpointTokenSource{
		url:          refreshURL,
		client:       &http.Client{Timeout: timeout},
		token:        token,
		refreshToken: refreshToken,
	}
}

func (s *EndpointTokenSource) Token(context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token, nil
}

type refreshResponse struct {
	Token        string `json:"token"`
	RefreshToken string `json:"refreshToken,omitempty"`
}

func (s *EndpointTokenSource) Refresh(ctx context.Context) (string, error) {
	v, err, _ := s.group.Do("refresh", func() (interface{}, error) {
		return s.refresh(ctx)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (s *EndpointTokenSource) refresh(ctx context.Context) (string, error) {
	s.mu.RLock()
	rt := s.refreshToken
	s.mu.RUnlock()
	if rt == "" || s.url == "" {
		return "", ErrNoRefresh
	}

	body, err := json.Marshal(map[string]string{"refreshToken": rt})
	if err != nil {
		return "", fmt.Errorf("marshal refresh request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create refresh request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("refresh request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		io.Copy(io.Discard, resp.Body)
		return "", fmt.Errorf("refresh request failed with status %s", resp.Status)
	}

	var out refreshResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode refresh response: %w", err)
	}
	if out.Token == "" {
		return "", errors.New("refresh response has no token")
	}

	s.mu.Lock()
	s.token = out.Token
	if out.RefreshToken != "" {
		s.refreshToken = out.RefreshToken
	}
	s.mu.Unlock()
	return out.Token, nil
}

func (s *EndpointTokenSource) Invalidate() {
	s.mu.Lock()
	s.token = ""
	s.refreshToken = ""
	s.mu.Unlock()
}

// AuthTransport adds bearer credentials and retries once after a 401 with a
// refreshed token. A failed refresh invalidates the session and yields
// models.ErrSessionExpired.
type AuthTransport struct {
	Tokens TokenSource
	Base   http.RoundTripper
}

func (t *AuthTransport) base() http.RoundTripper {
	if t.Base != nil {
		return t.Base
	}
	return http.DefaultTransport
}

// RoundTrip implements http.RoundTripper.
func (t *AuthTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	token, err := t.Tokens.Token(req.Context())
	if err != nil {
		return nil, fmt.Errorf("get token: %w", err)
	}

	resp, err := t.base().RoundTrip(authorize(req, token))
	if err != nil || resp.StatusCode != http.StatusUnauthorized {
		return resp, err
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	fresh, err := t.Tokens.Refresh(req.Context())
	if err != nil {
		t.Tokens.Invalidate()
		logger.Warnf("Token refresh failed, session invalidated: %v", err)
		return nil, fmt.Errorf("%w: %v", models.ErrSessionExpired, err)
	}

	retry := authorize(req, fresh)
	if req.Body != nil && req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, fmt.Errorf("replay request body: %w", err)
		}
		retry.Body = body
	}
	return t.base().RoundTrip(retry)
}

func authorize(req *http.Request, token string) *http.Request {
	r := req.Clone(req.Context())
	if token != "" {
		r.Header.Set("Authorization", "Bearer "+token)
	}
	r.Header.Set("X-Requested-With", "XMLHttpRequest")
	return r
}
