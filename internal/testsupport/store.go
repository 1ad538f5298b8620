package testsupport

import (
	"context"
	"testing"
	"time"

	"cdrip/internal/config"
	"cdrip/internal/store"
)

// MustOpenStore opens a store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *store.Store {
	t.Helper()

	st, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() {
		st.Close()
	})
	return st
}

// NewSession creates a running session for tests.
func NewSession(t testing.TB, st *store.Store, id string, startedAt time.Time) *store.Session {
	t.Helper()

	session, err := st.CreateSession(context.Background(), store.Session{
		ID:         id,
		Device:     "/dev/sr0",
		TrackCount: 2,
		StartedAt:  startedAt,
	})
	if err != nil {
		t.Fatalf("store.CreateSession: %v", err)
	}
	return session
}
