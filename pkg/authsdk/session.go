package authsdk

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/retrade/authmesh/pkg/jwtx"
)

// refreshSkew refreshes the access token this long before it expires.
const refreshSkew = 30 * time.Second

// Session represents an authenticated session with automatic token refresh.
// It is safe for concurrent use.
type Session struct {
	client *SDKClient

	mu      sync.RWMutex
	access  string
	refresh string
	roles   []string
}

// AccessToken returns the current access token without checking expiration.
func (s *Session) AccessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.access
}

// RefreshToken returns the refresh token of the session.
func (s *Session) RefreshToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.refresh
}

// Roles returns the roles granted to the session.
func (s *Session) Roles() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.roles)
}

// HasRole reports whether the session was granted role.
func (s *Session) HasRole(role string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Contains(s.roles, role)
}

// expiresAt reads exp from the access token. The server verifies the
// signature; the client only needs the deadline.
func expiresAt(raw string) time.Time {
	var claims jwtx.Claims
	if _, _, err := jwt.NewParser().ParseUnverified(raw, &claims); err != nil || claims.ExpiresAt == nil {
		return time.Time{}
	}
	return claims.ExpiresAt.Time
}

// getValidToken returns a valid access token, automatically refreshing if expired.
func (s *Session) getValidToken(ctx context.Context) (string, error) {
	s.mu.RLock()
	token := s.access
	s.mu.RUnlock()
	if time.Now().Add(refreshSkew).Before(expiresAt(token)) {
		return token, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Another goroutine may have refreshed.
	if time.Now().Add(refreshSkew).Before(expiresAt(s.access)) {
		return s.access, nil
	}
	if s.refresh == "" {
		return "", errors.New("access token expired and no refresh token available")
	}

	set, err := s.client.Refresh(ctx, s.refresh)
	if err != nil {
		return "", fmt.Errorf("failed to refresh token: %w", err)
	}
	s.access = set.Raw(jwtx.KindAccess)
	s.roles = set.Roles
	return s.access, nil
}

// doAuthRequest performs a request with a valid access token.
func (s *Session) doAuthRequest(ctx context.Context, method, path string, body any) (*http.Response, error) {
	token, err := s.getValidToken(ctx)
	if err != nil {
		return nil, err
	}
	return s.client.doRequest(ctx, method, path, token, body)
}

// Logout revokes the session server side.
func (s *Session) Logout(ctx context.Context) error {
	resp, err := s.doAuthRequest(ctx, http.MethodPost, "/v1/auth/logout", nil)
	if err != nil {
		return err
	}
	return checkStatusNoContent(resp)
}

// Me returns the identity the server sees.
func (s *Session) Me(ctx context.Context) (*MeResponse, error) {
	resp, err := s.doAuthRequest(ctx, http.MethodGet, "/v1/auth/me", nil)
	if err != nil {
		return nil, err
	}

	var me MeResponse
	if err := decodeJSON(resp, &me, http.StatusOK); err != nil {
		return nil, err
	}
	return &me, nil
}
