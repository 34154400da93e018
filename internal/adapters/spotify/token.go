package spotify

import (
	"sync/atomic"
	"time"

	"github.com/ewilliams-labs/cadence/internal/core/ports"
)

type tokenSnapshot struct {
	token  string
	expiry time.Time
}

// TokenStore holds the access token and its absolute expiry. The pair is
// swapped as one value so readers never see a token with another token's
// expiry.
type TokenStore struct {
	current atomic.Pointer[tokenSnapshot]
	now     func() time.Time
}

var _ ports.TokenSink = (*TokenStore)(nil)

// NewTokenStore returns an empty store.
func NewTokenStore() *TokenStore {
	return &TokenStore{now: time.Now}
}

// SetAccessToken stores token, valid until now+expiresIn.
func (s *TokenStore) SetAccessToken(token string, expiresIn time.Duration) {
	s.current.Store(&tokenSnapshot{token: token, expiry: s.now().Add(expiresIn)})
}

// Clear forgets the token.
func (s *TokenStore) Clear() {
	s.current.Store(nil)
}

// Token returns the token if it is non-empty and has not expired.
func (s *TokenStore) Token() (string, bool) {
	snap := s.current.Load()
	if snap == nil || snap.token == "" {
		return "", false
	}
	if !s.now().Before(snap.expiry) {
		return "", false
	}
	return snap.token, true
}

// Valid reports whether a usable token is present.
func (s *TokenStore) Valid() bool {
	_, ok := s.Token()
	return ok
}

// ExpiresAt returns the expiry of the stored token, or the zero time.
func (s *TokenStore) ExpiresAt() time.Time {
	if snap := s.current.Load(); snap != nil {
		return snap.expiry
	}
	return time.Time{}
}
