package auth

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
	"time"
)

// DefaultTokenTTL is how long an editor token stays valid without a logout.
const DefaultTokenTTL = 24 * time.Hour

// EditorToken grants access to one profile's editor until it expires or is
// revoked. It replaces the ambient per-username session flag of earlier
// designs: the grant is an explicit value with a scope and a lifetime.
type EditorToken struct {
	Value     string
	Username  string
	ExpiresAt time.Time
}

// TokenStore issues and validates editor tokens. It is an in-process store;
// restarting the server logs every editor out, which is acceptable for a
// single-owner page.
type TokenStore struct {
	mu     sync.Mutex
	tokens map[string]EditorToken
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenStore creates a token store with the default TTL.
func NewTokenStore() *TokenStore {
	return &TokenStore{
		tokens: make(map[string]EditorToken),
		ttl:    DefaultTokenTTL,
		now:    time.Now,
	}
}

// Issue mints a new token scoped to the given username.
func (s *TokenStore) Issue(username string) (EditorToken, error) {
	value, err := generateSecureToken(32)
	if err != nil {
		return EditorToken{}, fmt.Errorf("failed to mint editor token: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	token := EditorToken{
		Value:     value,
		Username:  username,
		ExpiresAt: s.now().Add(s.ttl),
	}
	s.tokens[value] = token
	return token, nil
}

// Validate reports whether the token value grants editor access to username.
// Expired tokens are removed as a side effect.
func (s *TokenStore) Validate(value, username string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	token, ok := s.tokens[value]
	if !ok {
		return false
	}
	if s.now().After(token.ExpiresAt) {
		delete(s.tokens, value)
		return false
	}
	return token.Username == username
}

// Revoke removes a token, e.g. on logout. Revoking an unknown token is a no-op.
func (s *TokenStore) Revoke(value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tokens, value)
}

// generateSecureToken creates a cryptographically secure random token.
func generateSecureToken(length int) (string, error) {
	bytes := make([]byte, length)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to generate secure token: %w", err)
	}
	return hex.EncodeToString(bytes), nil
}
