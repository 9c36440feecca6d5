package app

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opik/tudu/internal/config"
	"github.com/opik/tudu/internal/plugins"
	"github.com/opik/tudu/internal/testutil"
	"github.com/opik/tudu/pkg/pluginapi"
)

func newTestApp(t *testing.T) *App {
	t.Helper()
	var cfg, err = config.LoadFrom(filepath.Join(t.TempDir(), "config.toml"))
	require.NoError(t, err)
	return New(cfg, testutil.OpenStore(t), nil)
}

func loadFake(t *testing.T, a *App, fake pluginapi.Registration, name string) *plugins.LoadedPlugin {
	t.Helper()
	var lp, err = plugins.NewLoadedPlugin(name, fake, nil, nil)
	require.NoError(t, err)
	a.Loaded[name] = lp
	return lp
}

func TestExecute_EmptyBatchTakesNoSnapshot(t *testing.T) {
	var a = newTestApp(t)
	var fake = testutil.NewFakePlugin("quiet")
	loadFake(t, a, fake.Registration(), "quiet")

	var count, err = a.ExecutePluginWithHost("quiet", "noop")
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	var undoCount, _ = a.Undo.Depth()
	assert.Equal(t, 0, undoCount)
	assert.False(t, a.Unsaved)
}

func TestExecute_BatchTakesOneSnapshot(t *testing.T) {
	var a = newTestApp(t)
	var fake = testutil.NewFakePlugin("maker")
	fake.OnExecute = func(action string, host pluginapi.HostAPI) ([]pluginapi.Command, error) {
		return []pluginapi.Command{
			pluginapi.NewCreateTodo(pluginapi.CreateTodo{Content: "one"}),
			pluginapi.NewCreateTodo(pluginapi.CreateTodo{Content: "two"}),
		}, nil
	}
	loadFake(t, a, fake.Registration(), "maker")

	var count, err = a.ExecutePluginWithHost("maker", "make")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.Len(t, a.CurrentList().Items, 2)
	assert.True(t, a.Unsaved)

	var undoCount, _ = a.Undo.Depth()
	assert.Equal(t, 1, undoCount)

	// One undo reverses the whole batch.
	a.Undo.Undo(a.CurrentList())
	assert.Empty(t, a.CurrentList().Items)
}

func TestExecute_PluginSeesHostState(t *testing.T) {
	var a = newTestApp(t)
	a.CurrentList().Append(testutil.TestItem("seed", "seeded", 0))

	var seen []string
	var fake = testutil.NewFakePlugin("reader")
	fake.OnExecute = func(action string, host pluginapi.HostAPI) ([]pluginapi.Command, error) {
		for _, item := range host.QueryTodos(pluginapi.TodoQuery{}) {
			seen = append(seen, item.Content)
		}
		assert.Equal(t, "default", host.CurrentProject().Name)
		return nil, nil
	}
	loadFake(t, a, fake.Registration(), "reader")

	var _, err = a.ExecutePluginWithHost("reader", "read")
	require.NoError(t, err)
	assert.Equal(t, []string{"seeded"}, seen)
}

func TestExecute_PanicIsolatesPlugin(t *testing.T) {
	var a = newTestApp(t)
	var crasher = testutil.NewPanickingPlugin("crasher", "boom")
	loadFake(t, a, crasher.Registration(), "crasher")
	var healthy = testutil.NewFakePlugin("healthy")
	loadFake(t, a, healthy.Registration(), "healthy")

	// First call panics and is surfaced as a PanicError.
	var _, err = a.ExecutePluginWithHost("crasher", "go")
	var panicErr *plugins.PanicError
	require.True(t, errors.As(err, &panicErr))

	// Second call fails fast without crossing the boundary.
	_, err = a.ExecutePluginWithHost("crasher", "go")
	var disabledErr *plugins.SessionDisabledError
	require.True(t, errors.As(err, &disabledErr))
	assert.Equal(t, 1, crasher.ExecuteCalls)

	// Other plugins are unaffected.
	_, err = a.ExecutePluginWithHost("healthy", "go")
	require.NoError(t, err)
}

func TestExecute_UnknownPlugin(t *testing.T) {
	var a = newTestApp(t)
	var _, err = a.ExecutePluginWithHost("ghost", "go")
	assert.Error(t, err)
}

func TestExecute_ExecutorErrorKeepsPartialCommits(t *testing.T) {
	var a = newTestApp(t)
	var fake = testutil.NewFakePlugin("partial")
	fake.OnExecute = func(action string, host pluginapi.HostAPI) ([]pluginapi.Command, error) {
		return []pluginapi.Command{
			pluginapi.NewCreateTodo(pluginapi.CreateTodo{Content: "kept"}),
			pluginapi.NewDeleteTodo("no-such-id"),
		}, nil
	}
	loadFake(t, a, fake.Registration(), "partial")

	var count, err = a.ExecutePluginWithHost("partial", "go")
	require.Error(t, err)
	assert.Equal(t, 1, count)
	assert.Len(t, a.CurrentList().Items, 1)

	// The snapshot predates the batch: one undo reverses the partial commit.
	var undoCount, _ = a.Undo.Depth()
	assert.Equal(t, 1, undoCount)
	a.Undo.Undo(a.CurrentList())
	assert.Empty(t, a.CurrentList().Items)
}

func TestExecute_UndoReversesMetadataWithTodos(t *testing.T) {
	var a = newTestApp(t)
	a.CurrentList().Append(testutil.TestItem("T", "old", 0))
	require.NoError(t, a.Meta.SetTodoMetadata("T", "mixed", `{"a": 1}`, false))

	var fake = testutil.NewFakePlugin("mixed")
	fake.OnExecute = func(action string, host pluginapi.HostAPI) ([]pluginapi.Command, error) {
		return []pluginapi.Command{
			pluginapi.NewUpdateTodo(pluginapi.UpdateTodo{ID: "T", Content: testutil.StrPtr("new")}),
			pluginapi.NewSetTodoMetadata(pluginapi.SetTodoMetadata{TodoID: "T", Data: `{"b": 2}`, Merge: true}),
			pluginapi.NewSetProjectMetadata(pluginapi.SetProjectMetadata{Project: "default", Data: `{"p": 1}`}),
		}, nil
	}
	loadFake(t, a, fake.Registration(), "mixed")

	var count, err = a.ExecutePluginWithHost("mixed", "go")
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	// One undo reverses the todo mutation and both metadata writes.
	require.True(t, a.Undo.Undo(a.CurrentList()))
	assert.Equal(t, "old", a.CurrentList().Find("T").Content)
	var data, _ = a.Meta.GetTodoMetadata("T", "mixed")
	assert.JSONEq(t, `{"a": 1}`, data)
	data, _ = a.Meta.GetProjectMetadata("default", "mixed")
	assert.Equal(t, "{}", data)

	// Redo brings all of it back.
	require.True(t, a.Undo.Redo(a.CurrentList()))
	assert.Equal(t, "new", a.CurrentList().Find("T").Content)
	data, _ = a.Meta.GetTodoMetadata("T", "mixed")
	assert.JSONEq(t, `{"a": 1, "b": 2}`, data)
	data, _ = a.Meta.GetProjectMetadata("default", "mixed")
	assert.JSONEq(t, `{"p": 1}`, data)
}

func TestExecute_UndoReversesPartialMetadataCommits(t *testing.T) {
	var a = newTestApp(t)
	a.CurrentList().Append(testutil.TestItem("T", "t", 0))

	var fake = testutil.NewFakePlugin("partialmeta")
	fake.OnExecute = func(action string, host pluginapi.HostAPI) ([]pluginapi.Command, error) {
		return []pluginapi.Command{
			pluginapi.NewSetTodoMetadata(pluginapi.SetTodoMetadata{TodoID: "T", Data: `{"written": true}`}),
			pluginapi.NewDeleteTodo("no-such-id"),
		}, nil
	}
	loadFake(t, a, fake.Registration(), "partialmeta")

	var _, err = a.ExecutePluginWithHost("partialmeta", "go")
	require.Error(t, err)

	// The metadata write before the failure landed, and the snapshot covers
	// it: one undo clears it again.
	var data, _ = a.Meta.GetTodoMetadata("T", "partialmeta")
	assert.JSONEq(t, `{"written": true}`, data)
	require.True(t, a.Undo.Undo(a.CurrentList()))
	data, _ = a.Meta.GetTodoMetadata("T", "partialmeta")
	assert.Equal(t, "{}", data)
}

func TestDuplicateTodo_MetadataFollowsCopy(t *testing.T) {
	var a = newTestApp(t)
	a.CurrentList().Append(testutil.TestItem("src", "original", 0))
	require.NoError(t, a.Meta.SetTodoMetadata("src", "P", `{"carried": true}`, false))
	require.NoError(t, a.Meta.SetTodoMetadata("src", "Q", `{"also": 1}`, false))

	var dupID, err = a.DuplicateTodo("src")
	require.NoError(t, err)
	require.Len(t, a.CurrentList().Items, 2)
	assert.Equal(t, "original", a.CurrentList().Find(dupID).Content)
	assert.True(t, a.Unsaved)

	var data, _ = a.Meta.GetTodoMetadata(dupID, "P")
	assert.JSONEq(t, `{"carried": true}`, data)
	data, _ = a.Meta.GetTodoMetadata(dupID, "Q")
	assert.JSONEq(t, `{"also": 1}`, data)

	// One undo removes the copy and its copied metadata; the source keeps
	// its own rows.
	require.True(t, a.Undo.Undo(a.CurrentList()))
	assert.Len(t, a.CurrentList().Items, 1)
	data, _ = a.Meta.GetTodoMetadata(dupID, "P")
	assert.Equal(t, "{}", data)
	data, _ = a.Meta.GetTodoMetadata("src", "P")
	assert.JSONEq(t, `{"carried": true}`, data)
}

func TestDuplicateTodo_UnknownID(t *testing.T) {
	var a = newTestApp(t)
	var _, err = a.DuplicateTodo("ghost")
	assert.Error(t, err)
}

func TestHandleKey_PopupDismissal(t *testing.T) {
	var a = newTestApp(t)
	a.PopupRecords = append(a.PopupRecords, ErrorRecord{Plugin: "x", Kind: "load", Message: "m"})
	a.PopupVisible = true

	var result, pending = a.HandleKey("q", "")
	assert.True(t, result.Consumed)
	assert.Empty(t, result.HostAction) // the key is consumed, not routed
	assert.Empty(t, pending)
	assert.False(t, a.PopupVisible)
	// Records survive for CLI inspection.
	assert.Len(t, a.PopupRecords, 1)
}

func TestHandleKey_HostBindingWins(t *testing.T) {
	var a = newTestApp(t)
	var fake = testutil.NewFakePlugin("p")
	loadFake(t, a, fake.Registration(), "p")
	a.Registry.RegisterPlugin("p", &plugins.Manifest{
		Name: "p", Version: "1.0.0", Description: "d",
		Actions: map[string]plugins.ManifestAction{
			"steal": {Description: "d", DefaultKeybinding: "q"},
		},
	}, nil)

	var result, _ = a.HandleKey("q", "")
	assert.Equal(t, "quit", result.HostAction)
	assert.Equal(t, 0, fake.ExecuteCalls)
}

func TestHandleKey_RoutesToPlugin(t *testing.T) {
	var a = newTestApp(t)
	var fake = testutil.NewFakePlugin("p")
	loadFake(t, a, fake.Registration(), "p")
	a.Registry.RegisterPlugin("p", &plugins.Manifest{
		Name: "p", Version: "1.0.0", Description: "d",
		Actions: map[string]plugins.ManifestAction{
			"run": {Description: "d", DefaultKeybinding: "<C-x>"},
		},
	}, nil)

	var result, _ = a.HandleKey("<C-x>", "")
	assert.True(t, result.Consumed)
	assert.Equal(t, 1, fake.ExecuteCalls)
}

func TestHandleKey_TwoKeySequence(t *testing.T) {
	var a = newTestApp(t)
	var fake = testutil.NewFakePlugin("p")
	loadFake(t, a, fake.Registration(), "p")
	a.Registry.RegisterPlugin("p", &plugins.Manifest{
		Name: "p", Version: "1.0.0", Description: "d",
		Actions: map[string]plugins.ManifestAction{
			"seq": {Description: "d", DefaultKeybinding: "gg"},
		},
	}, nil)

	var result, pending = a.HandleKey("g", "")
	assert.True(t, result.Pending)
	assert.Equal(t, "g", pending)

	result, pending = a.HandleKey("g", pending)
	assert.True(t, result.Consumed)
	assert.Empty(t, pending)
	assert.Equal(t, 1, fake.ExecuteCalls)
}

func TestGenerateTodos(t *testing.T) {
	var a = newTestApp(t)
	var fake = testutil.NewFakePlugin("gen")
	fake.OnGenerate = func(input string) ([]pluginapi.TodoItemView, error) {
		return []pluginapi.TodoItemView{
			{Content: "from " + input},
			{Content: "child", Indent: 1},
		}, nil
	}
	loadFake(t, a, fake.Registration(), "gen")

	var count, err = a.GenerateTodos("gen", "prompt")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	var items = a.CurrentList().Items
	require.Len(t, items, 2)
	assert.Equal(t, "from prompt", items[0].Content)
	// Hierarchy is derived from indents on append.
	require.NotNil(t, items[1].ParentID)
	assert.Equal(t, items[0].ID, *items[1].ParentID)
	assert.True(t, a.Unsaved)

	var undoCount, _ = a.Undo.Depth()
	assert.Equal(t, 1, undoCount)
}

func TestEnabledProjects(t *testing.T) {
	var a = newTestApp(t)

	// No scope configured: enabled everywhere.
	var set = a.EnabledProjects("p")
	assert.True(t, set["default"])
}
