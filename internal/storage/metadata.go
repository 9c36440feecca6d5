package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	jsonpatch "github.com/evanphx/json-patch"
	"github.com/jmoiron/sqlx"

	"github.com/opik/tudu/pkg/pluginapi"
)

// EmptyDocument is the canonical representation of "no metadata". Reads never
// return an empty string or a null.
const EmptyDocument = "{}"

// MetadataStore is the namespaced JSON key-value store attached to todos and
// projects. Every operation is scoped by plugin name; a plugin cannot observe
// or modify another plugin's documents. Keys beginning with "_" are reserved
// for the host.
type MetadataStore struct {
	db *sqlx.DB
}

// NewMetadataStore returns a store over the given database handle. A nil
// handle falls back to the shared one opened by Init.
func NewMetadataStore(handle *sqlx.DB) *MetadataStore {
	if handle == nil {
		handle = db
	}
	return &MetadataStore{db: handle}
}

// ValidateDocument checks that data is a JSON object with no reserved
// top-level keys. Returns the decoded object on success.
func ValidateDocument(data string) (map[string]any, error) {
	var doc map[string]any
	if err := json.Unmarshal([]byte(data), &doc); err != nil {
		return nil, fmt.Errorf("metadata must be a JSON object: %w", err)
	}
	if doc == nil {
		return nil, fmt.Errorf("metadata must be a JSON object, got null")
	}
	for key := range doc {
		if strings.HasPrefix(key, "_") {
			return nil, fmt.Errorf("metadata key %q is reserved", key)
		}
	}
	return doc, nil
}

// SetTodoMetadata validates and upserts the plugin's document for a todo.
// With merge, data is applied as a JSON merge patch over the existing
// document (new keys added, existing overwritten, explicit nulls deleted);
// otherwise it replaces it.
func (s *MetadataStore) SetTodoMetadata(todoID, plugin, data string, merge bool) error {
	return s.set("todo_metadata", "todo_id", todoID, plugin, data, merge)
}

// SetProjectMetadata is SetTodoMetadata for a project, addressed by name.
func (s *MetadataStore) SetProjectMetadata(project, plugin, data string, merge bool) error {
	return s.set("project_metadata", "project_name", project, plugin, data, merge)
}

func (s *MetadataStore) set(table, keyCol, entity, plugin, data string, merge bool) error {
	if _, err := ValidateDocument(data); err != nil {
		return err
	}

	stored := data
	if merge {
		existing, err := s.get(table, keyCol, entity, plugin)
		if err != nil {
			return err
		}
		merged, err := jsonpatch.MergePatch([]byte(existing), []byte(data))
		if err != nil {
			return fmt.Errorf("metadata merge failed: %w", err)
		}
		stored = string(merged)
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (%s, plugin_name, data, updated_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(%s, plugin_name) DO UPDATE SET
			data = excluded.data,
			updated_at = CURRENT_TIMESTAMP
	`, table, keyCol, keyCol)
	_, err := s.db.Exec(query, entity, plugin, stored)
	return err
}

// GetTodoMetadata returns the plugin's document for a todo, or "{}" if
// absent.
func (s *MetadataStore) GetTodoMetadata(todoID, plugin string) (string, error) {
	return s.get("todo_metadata", "todo_id", todoID, plugin)
}

// GetProjectMetadata returns the plugin's document for a project, or "{}" if
// absent.
func (s *MetadataStore) GetProjectMetadata(project, plugin string) (string, error) {
	return s.get("project_metadata", "project_name", project, plugin)
}

func (s *MetadataStore) get(table, keyCol, entity, plugin string) (string, error) {
	var data string
	query := fmt.Sprintf(`SELECT data FROM %s WHERE %s = ? AND plugin_name = ?`, table, keyCol)
	err := s.db.Get(&data, query, entity, plugin)
	if err == sql.ErrNoRows {
		return EmptyDocument, nil
	}
	if err != nil {
		return "", err
	}
	return data, nil
}

// GetTodoMetadataBatch returns one entry per requested id, with "{}" for
// absent documents, in request order.
func (s *MetadataStore) GetTodoMetadataBatch(todoIDs []string, plugin string) ([]pluginapi.TodoMetadata, error) {
	result := make([]pluginapi.TodoMetadata, 0, len(todoIDs))
	for _, id := range todoIDs {
		data, err := s.GetTodoMetadata(id, plugin)
		if err != nil {
			return nil, err
		}
		result = append(result, pluginapi.TodoMetadata{TodoID: id, Data: data})
	}
	return result, nil
}

// DeleteTodoMetadata removes the plugin's document for a todo; reports
// whether anything was removed.
func (s *MetadataStore) DeleteTodoMetadata(todoID, plugin string) (bool, error) {
	return s.delete("todo_metadata", "todo_id", todoID, plugin)
}

// DeleteProjectMetadata removes the plugin's document for a project; reports
// whether anything was removed.
func (s *MetadataStore) DeleteProjectMetadata(project, plugin string) (bool, error) {
	return s.delete("project_metadata", "project_name", project, plugin)
}

func (s *MetadataStore) delete(table, keyCol, entity, plugin string) (bool, error) {
	query := fmt.Sprintf(`DELETE FROM %s WHERE %s = ? AND plugin_name = ?`, table, keyCol)
	res, err := s.db.Exec(query, entity, plugin)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// QueryTodosByMetadata returns ids of todos whose document (for the given
// plugin) has key equal to value. The value is parsed as JSON so that
// numbers, booleans, and strings compare by type; a value that is not valid
// JSON is compared as a plain string.
func (s *MetadataStore) QueryTodosByMetadata(plugin, key, value string) ([]string, error) {
	var want any
	if err := json.Unmarshal([]byte(value), &want); err != nil {
		want = value
	}

	rows, err := s.db.Queryx(`SELECT todo_id, data FROM todo_metadata WHERE plugin_name = ?`, plugin)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var todoID, data string
		if err := rows.Scan(&todoID, &data); err != nil {
			return nil, err
		}
		var doc map[string]any
		if err := json.Unmarshal([]byte(data), &doc); err != nil {
			continue
		}
		got, ok := doc[key]
		if !ok {
			continue
		}
		if reflect.DeepEqual(got, want) {
			ids = append(ids, todoID)
		}
	}
	return ids, rows.Err()
}

// ListProjectsWithMetadata returns names of projects that have any non-empty
// document for the given plugin.
func (s *MetadataStore) ListProjectsWithMetadata(plugin string) ([]string, error) {
	var names []string
	err := s.db.Select(&names,
		`SELECT project_name FROM project_metadata WHERE plugin_name = ? AND data != ? ORDER BY project_name`,
		plugin, EmptyDocument)
	if err != nil {
		return nil, err
	}
	return names, nil
}

// MetadataScope distinguishes the two tables an image refers to.
type MetadataScope uint8

const (
	ScopeTodo MetadataScope = iota
	ScopeProject
)

func (sc MetadataScope) table() (table, keyCol string) {
	if sc == ScopeProject {
		return "project_metadata", "project_name"
	}
	return "todo_metadata", "todo_id"
}

// MetadataImage is a point-in-time image of one metadata row. Exists false
// records that the row was absent at capture time. Images taken before a
// command batch let the caller's undo reverse metadata writes together with
// the todo mutations of the same batch.
type MetadataImage struct {
	Scope  MetadataScope
	Entity string
	Plugin string
	Data   string
	Exists bool
}

// CaptureTodoMetadata images the plugin's current document for a todo.
func (s *MetadataStore) CaptureTodoMetadata(todoID, plugin string) (MetadataImage, error) {
	return s.capture(ScopeTodo, todoID, plugin)
}

// CaptureProjectMetadata images the plugin's current document for a project.
func (s *MetadataStore) CaptureProjectMetadata(project, plugin string) (MetadataImage, error) {
	return s.capture(ScopeProject, project, plugin)
}

func (s *MetadataStore) capture(scope MetadataScope, entity, plugin string) (MetadataImage, error) {
	table, keyCol := scope.table()
	img := MetadataImage{Scope: scope, Entity: entity, Plugin: plugin}

	var data string
	query := fmt.Sprintf(`SELECT data FROM %s WHERE %s = ? AND plugin_name = ?`, table, keyCol)
	err := s.db.Get(&data, query, entity, plugin)
	if err == sql.ErrNoRows {
		return img, nil
	}
	if err != nil {
		return img, err
	}
	img.Data = data
	img.Exists = true
	return img, nil
}

// RestoreImages writes captured images back: present rows are upserted with
// their imaged data, absent ones deleted. It returns the inverse images
// taken immediately before writing, so the restore itself can be reversed
// (undo ↔ redo).
func (s *MetadataStore) RestoreImages(images []MetadataImage) ([]MetadataImage, error) {
	inverse := make([]MetadataImage, 0, len(images))
	for _, img := range images {
		current, err := s.capture(img.Scope, img.Entity, img.Plugin)
		if err != nil {
			return nil, err
		}
		table, keyCol := img.Scope.table()
		if img.Exists {
			// Imaged data already passed validation when first written.
			query := fmt.Sprintf(`
				INSERT INTO %s (%s, plugin_name, data, updated_at)
				VALUES (?, ?, ?, CURRENT_TIMESTAMP)
				ON CONFLICT(%s, plugin_name) DO UPDATE SET
					data = excluded.data,
					updated_at = CURRENT_TIMESTAMP
			`, table, keyCol, keyCol)
			if _, err := s.db.Exec(query, img.Entity, img.Plugin, img.Data); err != nil {
				return nil, err
			}
		} else {
			query := fmt.Sprintf(`DELETE FROM %s WHERE %s = ? AND plugin_name = ?`, table, keyCol)
			if _, err := s.db.Exec(query, img.Entity, img.Plugin); err != nil {
				return nil, err
			}
		}
		inverse = append(inverse, current)
	}
	return inverse, nil
}

// TodoMetadataPlugins returns the plugins holding a document for a todo.
func (s *MetadataStore) TodoMetadataPlugins(todoID string) ([]string, error) {
	var names []string
	err := s.db.Select(&names,
		`SELECT plugin_name FROM todo_metadata WHERE todo_id = ? ORDER BY plugin_name`, todoID)
	if err != nil {
		return nil, err
	}
	return names, nil
}

// CopyTodoMetadata copies every plugin's document from one todo to another.
// Used when a todo is duplicated; metadata follows the item.
func (s *MetadataStore) CopyTodoMetadata(fromID, toID string) error {
	_, err := s.db.Exec(`
		INSERT INTO todo_metadata (todo_id, plugin_name, data)
		SELECT ?, plugin_name, data FROM todo_metadata WHERE todo_id = ?
		ON CONFLICT(todo_id, plugin_name) DO UPDATE SET
			data = excluded.data,
			updated_at = CURRENT_TIMESTAMP
	`, toID, fromID)
	return err
}
