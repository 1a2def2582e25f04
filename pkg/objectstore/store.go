package objectstore

import (
	"context"
	"errors"
	"sort"
	"sync"
)

// ContentTypeJSON is the content type of every stored payload.
const ContentTypeJSON = "application/json"

var ErrNotFound = errors.New("objectstore: object not found")

// Store writes immutable objects. PutObject overwrites any existing object at key.
type Store interface {
	PutObject(ctx context.Context, key string, body []byte, contentType string) error
}

// Object is a stored object as seen by MemoryStore readers.
type Object struct {
	Key         string
	Body        []byte
	ContentType string
	Writes      int
}

// MemoryStore is an in-process Store.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string]*Object
	putErr  error
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: make(map[string]*Object)}
}

// FailWith makes subsequent PutObject calls return err; nil restores normal behaviour.
func (s *MemoryStore) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.putErr = err
}

func (s *MemoryStore) PutObject(ctx context.Context, key string, body []byte, contentType string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.putErr != nil {
		return s.putErr
	}

	obj, ok := s.objects[key]
	if !ok {
		obj = &Object{Key: key}
		s.objects[key] = obj
	}
	obj.Body = append([]byte(nil), body...)
	obj.ContentType = contentType
	obj.Writes++
	return nil
}

func (s *MemoryStore) Get(key string) (Object, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	obj, ok := s.objects[key]
	if !ok {
		return Object{}, ErrNotFound
	}
	return *obj, nil
}

// Keys returns all stored keys in lexical order.
func (s *MemoryStore) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.objects))
	for k := range s.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
