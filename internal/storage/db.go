// Package storage implements the sqlite-backed metadata store.
package storage

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

var db *sqlx.DB

const schema = `
CREATE TABLE IF NOT EXISTS todo_metadata (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	todo_id TEXT NOT NULL,
	plugin_name TEXT NOT NULL,
	data TEXT NOT NULL,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	UNIQUE(todo_id, plugin_name)
);

CREATE INDEX IF NOT EXISTS idx_todo_metadata_todo ON todo_metadata(todo_id);
CREATE INDEX IF NOT EXISTS idx_todo_metadata_plugin ON todo_metadata(plugin_name);

CREATE TABLE IF NOT EXISTS project_metadata (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	project_name TEXT NOT NULL,
	plugin_name TEXT NOT NULL,
	data TEXT NOT NULL,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	UNIQUE(project_name, plugin_name)
);

CREATE INDEX IF NOT EXISTS idx_project_metadata_project ON project_metadata(project_name);
CREATE INDEX IF NOT EXISTS idx_project_metadata_plugin ON project_metadata(plugin_name);
`

// Init opens (creating if needed) the database at dbPath and applies the
// schema.
func Init(dbPath string) error {
	var dir = filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	var err error
	db, err = sqlx.Connect("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)")
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	return nil
}

// GetDB returns the shared database handle.
func GetDB() *sqlx.DB {
	return db
}

// Close closes the database.
func Close() error {
	if db == nil {
		return nil
	}
	var err = db.Close()
	db = nil
	return err
}
