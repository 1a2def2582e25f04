package ingest

import (
	"context"
	"sync"
	"time"

	"email-ingest/pkg/secret"
)

// TokenSource yields the token callers must present.
type TokenSource interface {
	ExpectedToken(ctx context.Context) (string, error)
}

// SecretTokenSource reads the token from the secret store on every call, so a
// rotated value takes effect on the next request.
type SecretTokenSource struct {
	provider  secret.Provider
	paramName string
}

func NewSecretTokenSource(provider secret.Provider, paramName string) *SecretTokenSource {
	return &SecretTokenSource{provider: provider, paramName: paramName}
}

func (s *SecretTokenSource) ExpectedToken(ctx context.Context) (string, error) {
	return s.provider.GetSecret(ctx, s.paramName)
}

// CachedTokenSource keeps the last fetched token for ttl. Rotation is seen at
// most ttl late. Fetch errors are never cached.
type CachedTokenSource struct {
	next TokenSource
	ttl  time.Duration
	now  func() time.Time

	mu        sync.Mutex
	token     string
	expiresAt time.Time
}

func NewCachedTokenSource(next TokenSource, ttl time.Duration) *CachedTokenSource {
	return &CachedTokenSource{next: next, ttl: ttl, now: time.Now}
}

func (c *CachedTokenSource) ExpectedToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if c.token != "" && now.Before(c.expiresAt) {
		return c.token, nil
	}

	token, err := c.next.ExpectedToken(ctx)
	if err != nil {
		return "", err
	}
	c.token = token
	c.expiresAt = now.Add(c.ttl)
	return token, nil
}
