package session

import (
	"context"
	"testing"
	"time"
)

func newStores(t *testing.T) map[string]Store {
	t.Helper()
	sqliteStore, err := NewSQLiteStore("")
	if err != nil {
		t.Fatalf("NewSQLiteStore() error = %v", err)
	}
	t.Cleanup(func() { sqliteStore.Close() })

	return map[string]Store{
		"memory": NewMemoryStore(),
		"sqlite": sqliteStore,
	}
}

func TestStore_SaveGetRoundTrip(t *testing.T) {
	ctx := context.Background()
	for name, s := range newStores(t) {
		t.Run(name, func(t *testing.T) {
			if err := s.SaveSession(ctx, "sess-1", []byte("hello")); err != nil {
				t.Fatalf("SaveSession() error = %v", err)
			}
			data, err := s.GetSession(ctx, "sess-1")
			if err != nil {
				t.Fatalf("GetSession() error = %v", err)
			}
			if string(data) != "hello" {
				t.Errorf("GetSession() = %q, want %q", data, "hello")
			}
		})
	}
}

func TestStore_GetSessionMissingReturnsNil(t *testing.T) {
	ctx := context.Background()
	for name, s := range newStores(t) {
		t.Run(name, func(t *testing.T) {
			data, err := s.GetSession(ctx, "missing")
			if err != nil {
				t.Fatalf("GetSession() error = %v", err)
			}
			if data != nil {
				t.Errorf("GetSession() = %v, want nil", data)
			}
		})
	}
}

func TestStore_DeleteSession(t *testing.T) {
	ctx := context.Background()
	for name, s := range newStores(t) {
		t.Run(name, func(t *testing.T) {
			_ = s.SaveSession(ctx, "sess-1", []byte("data"))

			deleted, err := s.DeleteSession(ctx, "sess-1")
			if err != nil {
				t.Fatalf("DeleteSession() error = %v", err)
			}
			if !deleted {
				t.Error("DeleteSession() = false, want true")
			}

			deletedAgain, err := s.DeleteSession(ctx, "sess-1")
			if err != nil {
				t.Fatalf("DeleteSession() error = %v", err)
			}
			if deletedAgain {
				t.Error("DeleteSession() on an already-deleted session = true, want false")
			}
		})
	}
}

func TestStore_ListSessions(t *testing.T) {
	ctx := context.Background()
	for name, s := range newStores(t) {
		t.Run(name, func(t *testing.T) {
			_ = s.SaveSession(ctx, "a", []byte("1"))
			_ = s.SaveSession(ctx, "b", []byte("2"))

			ids, err := s.ListSessions(ctx)
			if err != nil {
				t.Fatalf("ListSessions() error = %v", err)
			}
			if len(ids) != 2 {
				t.Errorf("ListSessions() = %v, want 2 entries", ids)
			}
		})
	}
}

func TestStore_CleanupExpired(t *testing.T) {
	ctx := context.Background()
	for name, s := range newStores(t) {
		t.Run(name, func(t *testing.T) {
			_ = s.SaveSession(ctx, "stale", []byte("1"))

			n, err := s.CleanupExpired(ctx, -time.Second)
			if err != nil {
				t.Fatalf("CleanupExpired() error = %v", err)
			}
			if n != 1 {
				t.Errorf("CleanupExpired() = %d, want 1", n)
			}

			data, err := s.GetSession(ctx, "stale")
			if err != nil {
				t.Fatalf("GetSession() error = %v", err)
			}
			if data != nil {
				t.Error("expected the stale session to have been removed")
			}
		})
	}
}

func TestNewStore_DefaultsToSQLite(t *testing.T) {
	s, err := NewStore(Config{DSN: ""})
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	defer s.Close()
	if _, ok := s.(*SQLiteStore); !ok {
		t.Errorf("NewStore() = %T, want *SQLiteStore", s)
	}
}

func TestNewStore_UnknownBackendIsAnError(t *testing.T) {
	if _, err := NewStore(Config{Backend: "nope"}); err == nil {
		t.Fatal("expected NewStore() to reject an unknown backend")
	}
}
