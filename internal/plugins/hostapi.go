package plugins

import (
	"github.com/opik/tudu/internal/storage"
	"github.com/opik/tudu/internal/todo"
	"github.com/opik/tudu/pkg/pluginapi"
)

// HostState is the host-side data a hostAPI instance is built over. A fresh
// instance is synthesized per plugin invocation and is only valid for the
// duration of that call; plugins never retain host state across calls.
type HostState struct {
	PluginName      string
	Current         todo.Project
	Projects        []todo.Project
	Lists           map[string]*todo.List // project name → list
	EnabledProjects map[string]bool       // projects the calling plugin may query
	Meta            *storage.MetadataStore
}

type hostAPI struct {
	HostState
}

// NewHostAPI builds the read-only query surface handed to a plugin.
func NewHostAPI(state HostState) pluginapi.HostAPI {
	return &hostAPI{HostState: state}
}

func (h *hostAPI) CurrentProject() pluginapi.ProjectContext {
	return h.Current.Context()
}

func (h *hostAPI) ListProjects() []pluginapi.ProjectContext {
	out := make([]pluginapi.ProjectContext, 0, len(h.Projects))
	for _, p := range h.Projects {
		out = append(out, p.Context())
	}
	return out
}

// listFor resolves a query's target list. A project outside the plugin's
// enabled set yields nil, which queries treat as an empty result rather
// than an error.
func (h *hostAPI) listFor(project *string) *todo.List {
	name := h.Current.Name
	if project != nil {
		name = *project
	}
	if !h.EnabledProjects[name] {
		return nil
	}
	return h.Lists[name]
}

func (h *hostAPI) QueryTodos(q pluginapi.TodoQuery) []pluginapi.TodoItemView {
	list := h.listFor(q.Project)
	if list == nil {
		return []pluginapi.TodoItemView{}
	}

	out := make([]pluginapi.TodoItemView, 0, len(list.Items))
	for i, it := range list.Items {
		if it.Deleted() && !q.IncludeDeleted {
			continue
		}
		if q.State != nil {
			switch *q.State {
			case pluginapi.FilterDone:
				if !it.State.Done() {
					continue
				}
			case pluginapi.FilterPending:
				if it.State.Done() {
					continue
				}
			}
		}
		if q.ParentID != nil {
			if it.ParentID == nil || *it.ParentID != *q.ParentID {
				continue
			}
		}
		if q.Range != nil {
			if it.DueDate == nil {
				continue
			}
			if q.Range.From != "" && *it.DueDate < q.Range.From {
				continue
			}
			if q.Range.To != "" && *it.DueDate > q.Range.To {
				continue
			}
		}
		// Position is the index in the pre-filter list.
		out = append(out, it.View(uint32(i)))
	}
	return out
}

func (h *hostAPI) GetTodo(id string) *pluginapi.TodoItemView {
	list := h.Lists[h.Current.Name]
	if list == nil {
		return nil
	}
	for i, it := range list.Items {
		if it.ID == id && !it.Deleted() {
			view := it.View(uint32(i))
			return &view
		}
	}
	return nil
}

// QueryTodosTree reconstructs the hierarchy from indent levels: an item's
// children are the following items with indent exactly one deeper, until a
// sibling or shallower item appears.
func (h *hostAPI) QueryTodosTree() []pluginapi.TodoNode {
	list := h.Lists[h.Current.Name]
	if list == nil {
		return []pluginapi.TodoNode{}
	}

	type flat struct {
		view   pluginapi.TodoItemView
		indent uint32
	}
	items := make([]flat, 0, len(list.Items))
	for i, it := range list.Items {
		if it.Deleted() {
			continue
		}
		items = append(items, flat{view: it.View(uint32(i)), indent: it.Indent})
	}

	var build func(start int, depth uint32) ([]pluginapi.TodoNode, int)
	build = func(start int, depth uint32) ([]pluginapi.TodoNode, int) {
		nodes := []pluginapi.TodoNode{}
		i := start
		for i < len(items) {
			switch {
			case items[i].indent == depth:
				node := pluginapi.TodoNode{Item: items[i].view, Position: items[i].view.Position}
				children, next := build(i+1, depth+1)
				node.Children = children
				nodes = append(nodes, node)
				i = next
			case items[i].indent > depth:
				// Orphaned deeper item (no direct parent); skip to the next
				// item at or above this depth.
				i++
			default:
				return nodes, i
			}
		}
		return nodes, i
	}
	nodes, _ := build(0, 0)
	return nodes
}

func (h *hostAPI) GetTodoMetadata(todoID string) string {
	data, err := h.Meta.GetTodoMetadata(todoID, h.PluginName)
	if err != nil {
		return storage.EmptyDocument
	}
	return data
}

func (h *hostAPI) GetTodoMetadataBatch(todoIDs []string) []pluginapi.TodoMetadata {
	out, err := h.Meta.GetTodoMetadataBatch(todoIDs, h.PluginName)
	if err != nil {
		return []pluginapi.TodoMetadata{}
	}
	return out
}

func (h *hostAPI) GetProjectMetadata(project string) string {
	data, err := h.Meta.GetProjectMetadata(project, h.PluginName)
	if err != nil {
		return storage.EmptyDocument
	}
	return data
}

func (h *hostAPI) QueryTodosByMetadata(key, value string) []pluginapi.TodoItemView {
	ids, err := h.Meta.QueryTodosByMetadata(h.PluginName, key, value)
	if err != nil {
		return []pluginapi.TodoItemView{}
	}
	matching := make(map[string]bool, len(ids))
	for _, id := range ids {
		matching[id] = true
	}

	list := h.Lists[h.Current.Name]
	if list == nil {
		return []pluginapi.TodoItemView{}
	}
	out := []pluginapi.TodoItemView{}
	for i, it := range list.Items {
		if it.Deleted() || !matching[it.ID] {
			continue
		}
		out = append(out, it.View(uint32(i)))
	}
	return out
}

func (h *hostAPI) ListProjectsWithMetadata() []string {
	names, err := h.Meta.ListProjectsWithMetadata(h.PluginName)
	if err != nil {
		return []string{}
	}
	return names
}
