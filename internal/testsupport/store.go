package testsupport

import (
	"context"
	"testing"

	"archivist/internal/config"
	"archivist/internal/library"
)

// MustOpenStore opens a library.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *library.Store {
	t.Helper()

	store, err := library.Open(cfg)
	if err != nil {
		t.Fatalf("library.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewItem creates a library item for tests using the provided store.
func NewItem(t testing.TB, store *library.Store, title string, contentType library.ContentType) *library.Item {
	t.Helper()

	item, err := store.NewItem(context.Background(), title, contentType, title+".bin")
	if err != nil {
		t.Fatalf("store.NewItem: %v", err)
	}
	return item
}
