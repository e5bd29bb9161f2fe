// Package cache stores complete responses for the client's forced cache.
//
// Entries are served by age alone. Server freshness headers are ignored.
package cache

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"
)

// Entry is a stored response.
type Entry struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	StoredAt   time.Time
}

// Fresh reports whether the entry is younger than maxAge at now.
func (e *Entry) Fresh(maxAge time.Duration, now time.Time) bool {
	return now.Sub(e.StoredAt) < maxAge
}

// Store is a response store. Implementations must be safe for concurrent use.
type Store interface {
	Get(ctx context.Context, key string) (*Entry, bool, error)
	Put(ctx context.Context, key string, e *Entry) error
	Close() error
}

// Key returns the cache key for a request.
func Key(method, url string) string {
	return strings.ToUpper(method) + " " + url
}

// MemoryStore keeps entries in process memory.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]*Entry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]*Entry)}
}

func (s *MemoryStore) Get(_ context.Context, key string) (*Entry, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[key]
	if !ok {
		return nil, false, nil
	}
	return clone(e), true, nil
}

func (s *MemoryStore) Put(_ context.Context, key string, e *Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[key] = clone(e)
	return nil
}

// Len returns the number of stored entries.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func (s *MemoryStore) Close() error {
	return nil
}

func clone(e *Entry) *Entry {
	return &Entry{
		StatusCode: e.StatusCode,
		Header:     e.Header.Clone(),
		Body:       append([]byte(nil), e.Body...),
		StoredAt:   e.StoredAt,
	}
}
