// Package testutil provides shared test helpers for setting up stores.
package testutil

import (
	"testing"

	"github.com/ohinlabs/hippo/internal/docstore"
	"github.com/ohinlabs/hippo/internal/storage"
)

// TestFS creates a temporary store root with a storage.Provider.
func TestFS(t *testing.T) (string, storage.Provider) {
	t.Helper()
	root := t.TempDir()
	fs, err := storage.NewFS(root)
	if err != nil {
		t.Fatal(err)
	}
	return root, fs
}

// TestStore creates a store over a temporary directory and returns it along
// with the root, so tests can reopen the same directory to exercise reloads.
func TestStore(t *testing.T, opts ...docstore.Option) (*docstore.Store, string) {
	t.Helper()
	root, fs := TestFS(t)
	store, err := docstore.Open(fs, opts...)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return store, root
}

// Reopen loads a fresh store over an existing root, replaying the load
// protocol against whatever the previous instance persisted.
func Reopen(t *testing.T, root string, opts ...docstore.Option) *docstore.Store {
	t.Helper()
	fs, err := storage.NewFS(root)
	if err != nil {
		t.Fatal(err)
	}
	store, err := docstore.Open(fs, opts...)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return store
}

// FaultFS wraps a Provider and injects failures into writes and deletes so
// tests can exercise persistence-failure rollback paths. A nil hook, or a
// hook returning nil, leaves the operation untouched.
type FaultFS struct {
	storage.Provider
	WriteErr  func(path string) error
	DeleteErr func(path string) error
}

func (f *FaultFS) Write(path string, content []byte) error {
	if f.WriteErr != nil {
		if err := f.WriteErr(path); err != nil {
			return err
		}
	}
	return f.Provider.Write(path, content)
}

func (f *FaultFS) Delete(path string) error {
	if f.DeleteErr != nil {
		if err := f.DeleteErr(path); err != nil {
			return err
		}
	}
	return f.Provider.Delete(path)
}
