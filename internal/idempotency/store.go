// Package idempotency lets clients retry mutating requests safely. A request
// carrying an Idempotency-Key is executed once; replays get the stored response.
package idempotency

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"
)

var ErrInProgress = errors.New("request with this idempotency key is in progress")

// Record is a stored response.
type Record struct {
	Status int         `json:"status"`
	Header http.Header `json:"header,omitempty"`
	Body   []byte      `json:"body"`
}

type Store interface {
	// Reserve claims key. It returns the completed record when the key has
	// already been served, ErrInProgress while another request holds it, and
	// (nil, nil) when the caller now owns the key.
	Reserve(ctx context.Context, key string) (*Record, error)
	// Complete stores the response for a reserved key.
	Complete(ctx context.Context, key string, rec Record) error
	// Release drops a reservation so the key can be retried.
	Release(ctx context.Context, key string) error
}

type memoryEntry struct {
	rec     *Record
	expires time.Time
}

// MemoryStore is a Store for a single process.
type MemoryStore struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]memoryEntry
	now     func() time.Time
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		ttl:     ttl,
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

func (s *MemoryStore) Reserve(_ context.Context, key string) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if e, ok := s.entries[key]; ok && now.Before(e.expires) {
		if e.rec == nil {
			return nil, ErrInProgress
		}
		rec := *e.rec
		return &rec, nil
	}

	s.entries[key] = memoryEntry{expires: now.Add(s.ttl)}
	return nil, nil
}

func (s *MemoryStore) Complete(_ context.Context, key string, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[key] = memoryEntry{rec: &rec, expires: s.now().Add(s.ttl)}
	return nil
}

func (s *MemoryStore) Release(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, key)
	return nil
}
