// Package dbtest provides shared database test helpers for seeding and
// querying in-memory test databases. It imports only internal/store so it
// can be used from any test package without circular dependencies.
package dbtest

import (
	"context"
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/wesm/smsvault/internal/store"
)

// IntPtr returns a pointer to an int (useful for optional filter fields).
func IntPtr(i int) *int { return &i }

// BoolPtr returns a pointer to a bool.
func BoolPtr(b bool) *bool { return &b }

// NewStore creates a store backed by an in-memory SQLite database with the
// production schema loaded. The connection pool is pinned to a single
// connection because each in-memory connection is a separate database.
func NewStore(t testing.TB) *store.Store {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	s := store.OpenDB(db)
	if err := s.InitSchema(); err != nil {
		t.Fatalf("init schema: %v", err)
	}
	return s
}

// Received builds a received (type 1) message for seeding.
func Received(address, body string, date int64) store.Message {
	return store.Message{Address: address, Body: body, Date: date, Type: store.TypeReceived}
}

// Sent builds a sent (type 2) message for seeding.
func Sent(address, body string, date int64) store.Message {
	return store.Message{Address: address, Body: body, Date: date, Type: store.TypeSent}
}

// Seed inserts the given messages in one batch and returns their ids.
func Seed(t testing.TB, s *store.Store, msgs ...store.Message) []int64 {
	t.Helper()

	ids, err := s.InsertMany(context.Background(), msgs)
	if err != nil {
		t.Fatalf("seed messages: %v", err)
	}
	return ids
}
