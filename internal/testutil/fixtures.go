// Package testutil provides shared fixtures and fake plugins for the test
// suite.
package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/opik/tudu/internal/storage"
	"github.com/opik/tudu/internal/todo"
	"github.com/opik/tudu/pkg/pluginapi"
)

// OpenStore initializes a throwaway sqlite database and returns a metadata
// store over it. The database is closed with the test.
func OpenStore(t *testing.T) *storage.MetadataStore {
	t.Helper()
	var dbPath = filepath.Join(t.TempDir(), "test.db")
	if err := storage.Init(dbPath); err != nil {
		t.Fatalf("failed to init database: %v", err)
	}
	t.Cleanup(func() { storage.Close() })
	return storage.NewMetadataStore(storage.GetDB())
}

// TestItem builds a list item with fixed timestamps.
func TestItem(id, content string, indent uint32) *todo.Item {
	return &todo.Item{
		ID:         id,
		Content:    content,
		State:      pluginapi.StateEmpty,
		Indent:     indent,
		CreatedAt:  1700000000000,
		ModifiedAt: 1700000000000,
	}
}

// TestList builds a list from items.
func TestList(items ...*todo.Item) *todo.List {
	var l = todo.NewList()
	for _, it := range items {
		l.Append(it)
	}
	return l
}

// TestProject returns the project used by most tests.
func TestProject() todo.Project {
	return todo.Project{ID: "p-default", Name: "default", CreatedAt: 1700000000000}
}

// WriteManifest writes a plugin.toml into dir and returns its path.
func WriteManifest(t *testing.T, dir, content string) string {
	t.Helper()
	var path = filepath.Join(dir, "plugin.toml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write manifest: %v", err)
	}
	return path
}

// StrPtr returns a pointer to s.
func StrPtr(s string) *string { return &s }
