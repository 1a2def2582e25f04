package secret

import (
	"context"
	"errors"
	"sync"
)

// ErrNotFound is returned by providers when the named secret does not exist.
var ErrNotFound = errors.New("secret: not found")

// Provider resolves a named secret to its current value. Implementations must
// not cache; caching is the caller's decision.
type Provider interface {
	GetSecret(ctx context.Context, name string) (string, error)
}

// MemoryProvider is a Provider over an in-process map.
type MemoryProvider struct {
	mu      sync.RWMutex
	values  map[string]string
	lookups int
}

func NewMemoryProvider(values map[string]string) *MemoryProvider {
	m := &MemoryProvider{values: make(map[string]string, len(values))}
	for k, v := range values {
		m.values[k] = v
	}
	return m
}

func (m *MemoryProvider) GetSecret(ctx context.Context, name string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lookups++
	v, ok := m.values[name]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

// Set rotates a secret value.
func (m *MemoryProvider) Set(name, value string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[name] = value
}

// Lookups returns how many GetSecret calls have been made.
func (m *MemoryProvider) Lookups() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lookups
}
