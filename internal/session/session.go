// Package session provides durable storage for session conversation
// history: an in-memory store for tests, a modernc.org/sqlite-backed
// store for single-process deployments, and an optional lib/pq-backed
// store for multi-process deployments sharing a Postgres database.
package session

import (
	"context"
	"sync"
	"time"
)

// Store is the capability every backend implements. Sessions are stored
// as opaque byte blobs (the caller owns serialization of whatever
// conversation-history shape it uses) keyed by session id.
type Store interface {
	GetSession(ctx context.Context, id string) ([]byte, error)
	SaveSession(ctx context.Context, id string, data []byte) error
	DeleteSession(ctx context.Context, id string) (bool, error)
	ListSessions(ctx context.Context) ([]string, error)
	CleanupExpired(ctx context.Context, maxAge time.Duration) (int, error)
	Close() error
}

type sessionRecord struct {
	data      []byte
	updatedAt time.Time
}

// MemoryStore is a mutex-guarded in-memory Store, suitable for tests and
// single-process deployments that don't need durability across restarts.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]sessionRecord
}

// NewMemoryStore builds an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]sessionRecord)}
}

func (s *MemoryStore) GetSession(ctx context.Context, id string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.sessions[id]
	if !ok {
		return nil, nil
	}
	return rec.data, nil
}

func (s *MemoryStore) SaveSession(ctx context.Context, id string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[id] = sessionRecord{data: data, updatedAt: now()}
	return nil
}

func (s *MemoryStore) DeleteSession(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; !ok {
		return false, nil
	}
	delete(s.sessions, id)
	return true, nil
}

func (s *MemoryStore) ListSessions(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	return ids, nil
}

func (s *MemoryStore) CleanupExpired(ctx context.Context, maxAge time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := now().Add(-maxAge)
	count := 0
	for id, rec := range s.sessions {
		if rec.updatedAt.Before(cutoff) {
			delete(s.sessions, id)
			count++
		}
	}
	return count, nil
}

func (s *MemoryStore) Close() error { return nil }

// now is a var so tests can stub time.
var now = time.Now
