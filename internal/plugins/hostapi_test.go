package plugins

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opik/tudu/internal/testutil"
	"github.com/opik/tudu/internal/todo"
	"github.com/opik/tudu/pkg/pluginapi"
)

func newTestHost(t *testing.T, list *todo.List) pluginapi.HostAPI {
	t.Helper()
	var project = testutil.TestProject()
	return NewHostAPI(HostState{
		PluginName:      "P",
		Current:         project,
		Projects:        []todo.Project{project},
		Lists:           map[string]*todo.List{project.Name: list},
		EnabledProjects: map[string]bool{project.Name: true},
		Meta:            testutil.OpenStore(t),
	})
}

func TestHostAPI_QueryTodosPositions(t *testing.T) {
	var deleted = testutil.TestItem("del", "gone", 0)
	var now = todo.NowMillis()
	deleted.DeletedAt = &now

	var list = testutil.TestList(
		testutil.TestItem("a", "a", 0),
		deleted,
		testutil.TestItem("b", "b", 0),
	)
	var host = newTestHost(t, list)

	var got = host.QueryTodos(pluginapi.TodoQuery{})
	require.Len(t, got, 2)
	// Position is the index in the pre-filter list, so the soft-deleted item
	// leaves a gap.
	assert.Equal(t, uint32(0), got[0].Position)
	assert.Equal(t, uint32(2), got[1].Position)

	got = host.QueryTodos(pluginapi.TodoQuery{IncludeDeleted: true})
	assert.Len(t, got, 3)
}

func TestHostAPI_QueryTodosStateFilter(t *testing.T) {
	var done = testutil.TestItem("d", "done", 0)
	done.State = pluginapi.StateChecked
	var list = testutil.TestList(testutil.TestItem("p", "pending", 0), done)
	var host = newTestHost(t, list)

	var pending = pluginapi.FilterPending
	var got = host.QueryTodos(pluginapi.TodoQuery{State: &pending})
	require.Len(t, got, 1)
	assert.Equal(t, "p", got[0].ID)

	var doneFilter = pluginapi.FilterDone
	got = host.QueryTodos(pluginapi.TodoQuery{State: &doneFilter})
	require.Len(t, got, 1)
	assert.Equal(t, "d", got[0].ID)
}

func TestHostAPI_QueryTodosParentAndRange(t *testing.T) {
	var child = testutil.TestItem("c", "child", 1)
	child.ParentID = testutil.StrPtr("p")
	var dated = testutil.TestItem("due", "due", 0)
	dated.DueDate = testutil.StrPtr("2026-03-15")

	var list = testutil.TestList(testutil.TestItem("p", "parent", 0), child, dated)
	var host = newTestHost(t, list)

	var got = host.QueryTodos(pluginapi.TodoQuery{ParentID: testutil.StrPtr("p")})
	require.Len(t, got, 1)
	assert.Equal(t, "c", got[0].ID)

	got = host.QueryTodos(pluginapi.TodoQuery{
		Range: &pluginapi.DateRange{From: "2026-03-01", To: "2026-03-31"},
	})
	require.Len(t, got, 1)
	assert.Equal(t, "due", got[0].ID)

	got = host.QueryTodos(pluginapi.TodoQuery{
		Range: &pluginapi.DateRange{From: "2026-04-01", To: "2026-04-30"},
	})
	assert.Empty(t, got)
}

func TestHostAPI_CrossProjectRequiresEnablement(t *testing.T) {
	var list = testutil.TestList(testutil.TestItem("a", "a", 0))
	var host = newTestHost(t, list)

	// The plugin is not enabled for "secret": empty result, not an error.
	var got = host.QueryTodos(pluginapi.TodoQuery{Project: testutil.StrPtr("secret")})
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestHostAPI_GetTodo(t *testing.T) {
	var deleted = testutil.TestItem("gone", "gone", 0)
	var now = todo.NowMillis()
	deleted.DeletedAt = &now
	var list = testutil.TestList(testutil.TestItem("a", "here", 0), deleted)
	var host = newTestHost(t, list)

	var got = host.GetTodo("a")
	require.NotNil(t, got)
	assert.Equal(t, "here", got.Content)

	assert.Nil(t, host.GetTodo("gone"))
	assert.Nil(t, host.GetTodo("missing"))
}

func TestHostAPI_QueryTodosTree(t *testing.T) {
	var list = testutil.TestList(
		testutil.TestItem("root1", "r1", 0),
		testutil.TestItem("child1", "c1", 1),
		testutil.TestItem("grand", "g", 2),
		testutil.TestItem("child2", "c2", 1),
		testutil.TestItem("root2", "r2", 0),
	)
	var host = newTestHost(t, list)

	var tree = host.QueryTodosTree()
	require.Len(t, tree, 2)
	assert.Equal(t, "root1", tree[0].Item.ID)
	require.Len(t, tree[0].Children, 2)
	assert.Equal(t, "child1", tree[0].Children[0].Item.ID)
	require.Len(t, tree[0].Children[0].Children, 1)
	assert.Equal(t, "grand", tree[0].Children[0].Children[0].Item.ID)
	assert.Equal(t, "child2", tree[0].Children[1].Item.ID)
	assert.Equal(t, "root2", tree[1].Item.ID)
	assert.Empty(t, tree[1].Children)
}

func TestHostAPI_MetadataScoping(t *testing.T) {
	var list = testutil.TestList(testutil.TestItem("a", "a", 0))
	var project = testutil.TestProject()
	var meta = testutil.OpenStore(t)

	require.NoError(t, meta.SetTodoMetadata("a", "P", `{"mine": 1}`, false))
	require.NoError(t, meta.SetTodoMetadata("a", "other", `{"theirs": 2}`, false))

	var host = NewHostAPI(HostState{
		PluginName:      "P",
		Current:         project,
		Projects:        []todo.Project{project},
		Lists:           map[string]*todo.List{project.Name: list},
		EnabledProjects: map[string]bool{project.Name: true},
		Meta:            meta,
	})

	assert.JSONEq(t, `{"mine": 1}`, host.GetTodoMetadata("a"))
	assert.Equal(t, "{}", host.GetTodoMetadata("unknown"))

	var batch = host.GetTodoMetadataBatch([]string{"a", "unknown"})
	require.Len(t, batch, 2)
	assert.JSONEq(t, `{"mine": 1}`, batch[0].Data)
	assert.Equal(t, "{}", batch[1].Data)
}

func TestHostAPI_QueryTodosByMetadata(t *testing.T) {
	var list = testutil.TestList(
		testutil.TestItem("a", "a", 0),
		testutil.TestItem("b", "b", 0),
	)
	var project = testutil.TestProject()
	var meta = testutil.OpenStore(t)

	require.NoError(t, meta.SetTodoMetadata("a", "P", `{"starred": true}`, false))
	require.NoError(t, meta.SetTodoMetadata("b", "P", `{"starred": false}`, false))

	var host = NewHostAPI(HostState{
		PluginName:      "P",
		Current:         project,
		Projects:        []todo.Project{project},
		Lists:           map[string]*todo.List{project.Name: list},
		EnabledProjects: map[string]bool{project.Name: true},
		Meta:            meta,
	})

	var got = host.QueryTodosByMetadata("starred", "true")
	require.Len(t, got, 1)
	assert.Equal(t, "a", got[0].ID)
}
