// Package storetest opens throwaway bbolt-backed repositories for tests.
package storetest

import (
	"path/filepath"
	"testing"

	"github.com/ozonelife/clinic/internal/platform/store"
	"github.com/ozonelife/clinic/internal/platform/store/boltstore"
)

// Open returns a provider on a fresh database file that is closed when the
// test ends.
func Open(t testing.TB) store.Provider {
	t.Helper()
	db, err := boltstore.Open(filepath.Join(t.TempDir(), "clinic.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// Repo binds schema on p, failing the test on error.
func Repo(t testing.TB, p store.Provider, schema store.Schema) store.EntityRepository {
	t.Helper()
	repo, err := p.Repository(schema)
	if err != nil {
		t.Fatalf("repository %s: %v", schema.Collection, err)
	}
	return repo
}
