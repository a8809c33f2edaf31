package auth

import (
	"context"
	"strings"
	"sync"
	"time"

	"swapwatch/backend/services/monitoring-service/internal/models"
)

// TokenSource supplies the bearer credential attached to upstream calls and to
// the stream handshake. A token is read once per connection; rotating it
// requires closing and reopening the stream.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticTokenSource returns a fixed token (upstream.token in config).
type StaticTokenSource string

// Token implements TokenSource.
func (s StaticTokenSource) Token(context.Context) (string, error) {
	token := strings.TrimSpace(string(s))
	if token == "" {
		return "", models.ErrMissingToken
	}
	return token, nil
}

// ServiceTokenSource mints service tokens with the shared secret and reuses
// them until they are close to expiry.
type ServiceTokenSource struct {
	tokens  *TokenService
	subject string

	mu        sync.Mutex
	cached    string
	expiresAt time.Time
}

// NewServiceTokenSource returns a token source for the named service.
func NewServiceTokenSource(tokens *TokenService, subject string) *ServiceTokenSource {
	return &ServiceTokenSource{tokens: tokens, subject: subject}
}

// Token implements TokenSource.
func (s *ServiceTokenSource) Token(context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.tokens.now()
	if s.cached != "" && now.Before(s.expiresAt) {
		return s.cached, nil
	}

	token, err := s.tokens.GenerateToken(0, s.subject, RoleService)
	if err != nil {
		return "", err
	}
	s.cached = token
	// renew at 80% of the lifetime
	s.expiresAt = now.Add(s.tokens.ExpiresIn() * 4 / 5)
	return token, nil
}
