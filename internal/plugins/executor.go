package plugins

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/opik/tudu/internal/storage"
	"github.com/opik/tudu/internal/todo"
	"github.com/opik/tudu/pkg/pluginapi"
)

// Executor applies a command batch from one plugin invocation to the todo
// list. Commands apply in declaration order; an unresolvable identifier or a
// metadata validation failure aborts the rest of the batch while commits
// before the failure point remain. The caller snapshots undo state before
// calling ExecuteBatch, so one undo reverses the whole batch.
type Executor struct {
	plugin  string
	list    *todo.List
	meta    *storage.MetadataStore
	tempIDs map[string]string

	// Pre-images of metadata rows touched by this batch, captured before the
	// first write to each row. The caller folds them into its undo snapshot
	// so one undo reverses metadata writes together with todo mutations.
	images   []storage.MetadataImage
	captured map[string]bool
}

// NewExecutor binds an executor to the calling plugin's namespace, the
// mutable todo list, and the metadata store.
func NewExecutor(plugin string, list *todo.List, meta *storage.MetadataStore) *Executor {
	return &Executor{
		plugin:   plugin,
		list:     list,
		meta:     meta,
		tempIDs:  make(map[string]string),
		captured: make(map[string]bool),
	}
}

// MetadataImages returns the pre-batch images of every metadata row the
// batch wrote or deleted, including writes before a mid-batch failure.
func (e *Executor) MetadataImages() []storage.MetadataImage {
	return e.images
}

func (e *Executor) captureTodoMeta(todoID string) error {
	key := "todo\x00" + todoID
	if e.captured[key] {
		return nil
	}
	img, err := e.meta.CaptureTodoMetadata(todoID, e.plugin)
	if err != nil {
		return err
	}
	e.captured[key] = true
	e.images = append(e.images, img)
	return nil
}

func (e *Executor) captureProjectMeta(project string) error {
	key := "project\x00" + project
	if e.captured[key] {
		return nil
	}
	img, err := e.meta.CaptureProjectMetadata(project, e.plugin)
	if err != nil {
		return err
	}
	e.captured[key] = true
	e.images = append(e.images, img)
	return nil
}

// ExecuteBatch applies the commands and returns how many were processed.
// On error the count covers the commands committed before the failure.
func (e *Executor) ExecuteBatch(cmds []pluginapi.Command) (int, error) {
	applied := 0
	for _, cmd := range cmds {
		if err := e.apply(cmd); err != nil {
			e.list.RecalculateParents()
			return applied, &ExecutorError{Applied: applied, Message: err.Error(), Err: err}
		}
		applied++
	}
	e.list.RecalculateParents()
	return applied, nil
}

func (e *Executor) apply(cmd pluginapi.Command) error {
	switch cmd.Kind {
	case pluginapi.CmdCreateTodo:
		return e.applyCreate(cmd.Create)
	case pluginapi.CmdUpdateTodo:
		return e.applyUpdate(cmd.Update)
	case pluginapi.CmdDeleteTodo:
		return e.applyDelete(cmd.Delete)
	case pluginapi.CmdMoveTodo:
		return e.applyMove(cmd.Move)
	case pluginapi.CmdSetTodoMetadata:
		id, err := e.resolve(cmd.SetTodoMeta.TodoID)
		if err != nil {
			return err
		}
		if err := e.captureTodoMeta(id); err != nil {
			return err
		}
		return e.meta.SetTodoMetadata(id, e.plugin, cmd.SetTodoMeta.Data, cmd.SetTodoMeta.Merge)
	case pluginapi.CmdSetProjectMetadata:
		// Project names are stable; no temp-id resolution.
		if err := e.captureProjectMeta(cmd.SetProjectMeta.Project); err != nil {
			return err
		}
		return e.meta.SetProjectMetadata(cmd.SetProjectMeta.Project, e.plugin, cmd.SetProjectMeta.Data, cmd.SetProjectMeta.Merge)
	case pluginapi.CmdDeleteTodoMetadata:
		id, err := e.resolve(cmd.DeleteTodoMeta.TodoID)
		if err != nil {
			return err
		}
		if err := e.captureTodoMeta(id); err != nil {
			return err
		}
		_, err = e.meta.DeleteTodoMetadata(id, e.plugin)
		return err
	case pluginapi.CmdDeleteProjectMetadata:
		if err := e.captureProjectMeta(cmd.DeleteProjectMeta.Project); err != nil {
			return err
		}
		_, err := e.meta.DeleteProjectMetadata(cmd.DeleteProjectMeta.Project, e.plugin)
		return err
	default:
		return fmt.Errorf("unknown command kind %d", cmd.Kind)
	}
}

// resolve maps an id through the in-batch temp-id table, then against real
// identifiers. An id that is neither is a hard error.
func (e *Executor) resolve(id string) (string, error) {
	if real, ok := e.tempIDs[id]; ok {
		return real, nil
	}
	if e.list.Find(id) != nil {
		return id, nil
	}
	return "", fmt.Errorf("Todo not found: %s", id)
}

func (e *Executor) applyCreate(c *pluginapi.CreateTodo) error {
	now := todo.NowMillis()
	item := &todo.Item{
		ID:         uuid.NewString(),
		Content:    c.Content,
		State:      c.State,
		Indent:     c.Indent,
		CreatedAt:  now,
		ModifiedAt: now,
	}
	if c.Priority != nil {
		p := *c.Priority
		item.Priority = &p
	}
	if c.State.Done() {
		completed := now
		item.CompletedAt = &completed
	}

	insertAt := len(e.list.Items)
	if c.ParentID != nil {
		parentID, err := e.resolve(*c.ParentID)
		if err != nil {
			return err
		}
		item.ParentID = &parentID
		insertAt = e.list.SubtreeEnd(parentID)
	}
	e.list.InsertAt(insertAt, item)

	if c.TempID != nil {
		e.tempIDs[*c.TempID] = item.ID
	}
	return nil
}

func (e *Executor) applyUpdate(u *pluginapi.UpdateTodo) error {
	id, err := e.resolve(u.ID)
	if err != nil {
		return err
	}
	item := e.list.Find(id)

	if u.Content != nil {
		item.Content = *u.Content
	}
	if u.State != nil {
		wasDone := item.State.Done()
		item.State = *u.State
		switch {
		case item.State.Done() && !wasDone:
			completed := todo.NowMillis()
			item.CompletedAt = &completed
		case !item.State.Done() && wasDone:
			item.CompletedAt = nil
		}
	}
	if u.Priority != nil {
		p := *u.Priority
		item.Priority = &p
	}
	if u.DueDate != nil {
		due := *u.DueDate
		item.DueDate = &due
	}
	if u.Description != nil {
		desc := *u.Description
		item.Description = &desc
	}
	item.Touch()
	return nil
}

func (e *Executor) applyDelete(d *pluginapi.DeleteTodo) error {
	id, err := e.resolve(d.ID)
	if err != nil {
		return err
	}
	item := e.list.Find(id)
	deleted := todo.NowMillis()
	item.DeletedAt = &deleted
	item.Touch()
	return nil
}

func (e *Executor) applyMove(m *pluginapi.MoveTodo) error {
	id, err := e.resolve(m.ID)
	if err != nil {
		return err
	}
	from := e.list.IndexOf(id)

	var to int
	switch m.Position.Kind {
	case pluginapi.MoveBefore, pluginapi.MoveAfter:
		targetID, err := e.resolve(m.Position.ID)
		if err != nil {
			return err
		}
		target := e.list.IndexOf(targetID)
		// Index of the target once the moved item is taken out.
		if from < target {
			target--
		}
		if m.Position.Kind == pluginapi.MoveBefore {
			to = target
		} else {
			to = target + 1
		}
	case pluginapi.MoveAtIndex:
		to = int(m.Position.Index)
		if to > len(e.list.Items)-1 {
			to = len(e.list.Items) - 1
		}
	default:
		return fmt.Errorf("unknown move position kind %d", m.Position.Kind)
	}

	e.list.MoveTo(from, to)
	e.list.Find(id).Touch()
	return nil
}
