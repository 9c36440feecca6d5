// Package todo holds the in-memory todo list the plugin framework operates
// on: items, projects, and the snapshot-based undo stack.
package todo

import (
	"time"

	"github.com/google/uuid"

	"github.com/opik/tudu/pkg/pluginapi"
)

// Item is a single todo. Collapsed and DeletedAt are UI/host-side fields and
// never cross the plugin boundary; soft-deleted items are filtered out before
// exposure unless a query opts in.
type Item struct {
	ID          string
	Content     string
	State       pluginapi.TodoState
	Priority    *pluginapi.Priority
	DueDate     *string // YYYY-MM-DD
	Description *string
	ParentID    *string
	Indent      uint32
	CreatedAt   int64
	ModifiedAt  int64
	CompletedAt *int64
	Collapsed   bool
	DeletedAt   *int64
}

// NewItem creates an item with a fresh identifier and both timestamps set.
func NewItem(content string) *Item {
	now := NowMillis()
	return &Item{
		ID:         uuid.NewString(),
		Content:    content,
		State:      pluginapi.StateEmpty,
		CreatedAt:  now,
		ModifiedAt: now,
	}
}

// NowMillis is the wall clock in Unix milliseconds, the contract's time unit.
func NowMillis() int64 {
	return time.Now().UnixMilli()
}

// Deleted reports whether the item is soft-deleted.
func (it *Item) Deleted() bool {
	return it.DeletedAt != nil
}

// Touch stamps the modification time.
func (it *Item) Touch() {
	it.ModifiedAt = NowMillis()
}

// Clone returns a deep copy of the item.
func (it *Item) Clone() *Item {
	c := *it
	c.Priority = clonePtr(it.Priority)
	c.DueDate = clonePtr(it.DueDate)
	c.Description = clonePtr(it.Description)
	c.ParentID = clonePtr(it.ParentID)
	c.CompletedAt = clonePtr(it.CompletedAt)
	c.DeletedAt = clonePtr(it.DeletedAt)
	return &c
}

// Duplicate returns a deep copy with a fresh identifier and new timestamps.
func (it *Item) Duplicate() *Item {
	c := it.Clone()
	c.ID = uuid.NewString()
	now := NowMillis()
	c.CreatedAt = now
	c.ModifiedAt = now
	return c
}

// View converts the item to its contract snapshot with the given position.
func (it *Item) View(position uint32) pluginapi.TodoItemView {
	return pluginapi.TodoItemView{
		ID:          it.ID,
		Content:     it.Content,
		State:       it.State,
		Priority:    clonePtr(it.Priority),
		DueDate:     clonePtr(it.DueDate),
		Description: clonePtr(it.Description),
		ParentID:    clonePtr(it.ParentID),
		Indent:      it.Indent,
		CreatedAt:   it.CreatedAt,
		ModifiedAt:  it.ModifiedAt,
		CompletedAt: clonePtr(it.CompletedAt),
		Position:    position,
	}
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// Project is a named container of todo lists.
type Project struct {
	ID        string
	Name      string
	CreatedAt int64
}

// Context converts the project to its contract form.
func (p Project) Context() pluginapi.ProjectContext {
	return pluginapi.ProjectContext{ID: p.ID, Name: p.Name, CreatedAt: p.CreatedAt}
}

// List is an ordered todo list. Order is display order; hierarchy is derived
// from indent levels.
type List struct {
	Items []*Item
}

// NewList returns an empty list.
func NewList() *List {
	return &List{}
}

// Find returns the item with the given id, or nil.
func (l *List) Find(id string) *Item {
	for _, it := range l.Items {
		if it.ID == id {
			return it
		}
	}
	return nil
}

// IndexOf returns the position of the item with the given id, or -1.
func (l *List) IndexOf(id string) int {
	for i, it := range l.Items {
		if it.ID == id {
			return i
		}
	}
	return -1
}

// InsertAt places the item at index i, clamped to list bounds.
func (l *List) InsertAt(i int, it *Item) {
	if i < 0 {
		i = 0
	}
	if i > len(l.Items) {
		i = len(l.Items)
	}
	l.Items = append(l.Items, nil)
	copy(l.Items[i+1:], l.Items[i:])
	l.Items[i] = it
}

// Append adds the item at the end of the list.
func (l *List) Append(it *Item) {
	l.Items = append(l.Items, it)
}

// MoveTo repositions the item at index from to index to (both clamped).
func (l *List) MoveTo(from, to int) {
	if from < 0 || from >= len(l.Items) {
		return
	}
	it := l.Items[from]
	l.Items = append(l.Items[:from], l.Items[from+1:]...)
	if to < 0 {
		to = 0
	}
	if to > len(l.Items) {
		to = len(l.Items)
	}
	l.Items = append(l.Items, nil)
	copy(l.Items[to+1:], l.Items[to:])
	l.Items[to] = it
}

// SubtreeEnd returns the position just past the item's last descendant
// (items with strictly deeper indents following it), or the list end if the
// id is unknown.
func (l *List) SubtreeEnd(id string) int {
	i := l.IndexOf(id)
	if i < 0 {
		return len(l.Items)
	}
	indent := l.Items[i].Indent
	i++
	for i < len(l.Items) && l.Items[i].Indent > indent {
		i++
	}
	return i
}

// RecalculateParents re-derives ParentID from indent levels: an item's parent
// is the nearest preceding item with a strictly smaller indent.
func (l *List) RecalculateParents() {
	type frame struct {
		id     string
		indent uint32
	}
	var stack []frame
	for _, it := range l.Items {
		for len(stack) > 0 && stack[len(stack)-1].indent >= it.Indent {
			stack = stack[:len(stack)-1]
		}
		if len(stack) == 0 {
			it.ParentID = nil
		} else {
			id := stack[len(stack)-1].id
			it.ParentID = &id
		}
		stack = append(stack, frame{id: it.ID, indent: it.Indent})
	}
}

// Clone deep-copies the list. Used for undo snapshots.
func (l *List) Clone() *List {
	c := &List{Items: make([]*Item, len(l.Items))}
	for i, it := range l.Items {
		c.Items[i] = it.Clone()
	}
	return c
}

// Restore replaces the list contents with those of other.
func (l *List) Restore(other *List) {
	c := other.Clone()
	l.Items = c.Items
}
