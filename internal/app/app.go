// Package app is the composition root: it orchestrates plugin discovery,
// loading, configuration, and action registration at startup, and routes key
// events into plugin invocations during operation.
package app

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/opik/tudu/internal/config"
	"github.com/opik/tudu/internal/plugins"
	"github.com/opik/tudu/internal/storage"
	"github.com/opik/tudu/internal/todo"
)

// ErrorRecord is one entry in the unified error popup. Records are retained
// after dismissal so `tudu plugin status` can still report them.
type ErrorRecord struct {
	Plugin  string
	Kind    string // load, config, invocation, panic, executor
	Message string
}

// HostBindings is the host's own keybinding cache: canonical key sequence →
// host action name. Plugin bindings never shadow these.
var HostBindings = map[string]string{
	"q":       "quit",
	"j":       "cursor_down",
	"k":       "cursor_up",
	"<Down>":  "cursor_down",
	"<Up>":    "cursor_up",
	"<Space>": "toggle_state",
	"u":       "undo",
	"<C-r>":   "redo",
	"?":       "help",
	"dd":      "delete_todo",
	"yy":      "duplicate_todo",
	"o":       "new_todo",
	"<Tab>":   "indent",
	"<S-Tab>": "outdent",
}

// App owns the cross-cutting plugin state inside the application.
type App struct {
	Cfg      *config.Config
	Manager  *plugins.Manager
	Loaded   map[string]*plugins.LoadedPlugin
	Registry *plugins.Registry
	Meta     *storage.MetadataStore

	Projects []todo.Project
	Current  todo.Project
	Lists    map[string]*todo.List

	Undo    *todo.UndoStack
	Unsaved bool

	// Error popup state. Enqueue happens only on the main thread.
	PopupVisible bool
	PopupRecords []ErrorRecord

	Status   string
	panicLog *plugins.PanicLog
	log      *slog.Logger
}

// New creates an App over the given configuration and an initial project.
func New(cfg *config.Config, meta *storage.MetadataStore, panicLog *plugins.PanicLog) *App {
	current := todo.Project{ID: "default", Name: "default", CreatedAt: todo.NowMillis()}
	return &App{
		Cfg:      cfg,
		Manager:  plugins.NewManager(config.PluginsDir(), cfg),
		Loaded:   make(map[string]*plugins.LoadedPlugin),
		Registry: plugins.NewRegistry(HostBindings),
		Meta:     meta,
		Projects: []todo.Project{current},
		Current:  current,
		Lists:    map[string]*todo.List{current.Name: todo.NewList()},
		Undo:     todo.NewUndoStack(0),
		panicLog: panicLog,
		log:      slog.Default().With("module", "plugins"),
	}
}

// CurrentList returns the current project's todo list.
func (a *App) CurrentList() *todo.List {
	return a.Lists[a.Current.Name]
}

// Startup runs discovery, loads every enabled plugin, validates and delivers
// its configuration, and registers its actions. Load and config failures are
// accumulated into the popup; they never abort startup.
func (a *App) Startup() error {
	if err := a.Manager.Discover(); err != nil {
		return err
	}

	for _, info := range a.Manager.List() {
		if !info.Enabled || !info.Available || info.Manifest == nil {
			continue
		}
		a.loadOne(info)
	}

	for _, warning := range a.Registry.Warnings() {
		a.log.Warn(warning)
	}

	if len(a.PopupRecords) > 0 {
		a.PopupVisible = true
	}
	return nil
}

// loadOne takes a discovered plugin through load, config, and registration.
func (a *App) loadOne(info *plugins.PluginInfo) {
	name := info.Name

	if info.Manifest.MinInterfaceVersion != "" {
		if err := plugins.CheckManifestVersion(name, info.Manifest.MinInterfaceVersion); err != nil {
			info.Err = err.Error()
			a.enqueueError(name, err)
			return
		}
	}

	lp, err := plugins.LoadFromDirectory(info.Dir, name, a.panicLog)
	if err != nil {
		info.Err = err.Error()
		a.enqueueError(name, err)
		return
	}

	if _, err := plugins.LoadPluginConfig(lp, config.PluginConfigPath(name)); err != nil {
		info.Err = err.Error()
		a.enqueueError(name, err)
		return
	}

	a.Loaded[name] = lp
	a.Registry.RegisterPlugin(name, info.Manifest, func(action string) (string, bool) {
		return a.Cfg.KeybindingOverride(name, action)
	})
	a.log.Info("plugin loaded", "plugin", name, "version", info.Manifest.Version)
}

// enqueueError converts any framework error into a popup record.
func (a *App) enqueueError(plugin string, err error) {
	record := ErrorRecord{Plugin: plugin, Kind: "load", Message: err.Error()}

	var configErr *plugins.ConfigError
	var panicErr *plugins.PanicError
	var invErr *plugins.InvocationError
	var execErr *plugins.ExecutorError
	switch {
	case errors.As(err, &configErr):
		record.Kind = "config"
	case errors.As(err, &panicErr):
		record.Kind = "panic"
	case errors.As(err, &invErr):
		record.Kind = "invocation"
	case errors.As(err, &execErr):
		record.Kind = "executor"
	}

	a.PopupRecords = append(a.PopupRecords, record)
	a.PopupVisible = true
}

// KeyResult tells the event loop what a key resolved to.
type KeyResult struct {
	Consumed   bool
	HostAction string // non-empty when a host binding matched
	Pending    bool   // first element of a possible two-key sequence held
}

// HandleKey routes one canonical key element. Order: popup dismissal, host
// bindings, then plugin actions. pending is the previously held element (""
// for none); the returned pending value replaces it.
func (a *App) HandleKey(key, pending string) (KeyResult, string) {
	if a.PopupVisible {
		// Any key dismisses the popup; records stay for CLI inspection.
		a.PopupVisible = false
		return KeyResult{Consumed: true}, ""
	}

	sequence := pending + key

	if action, ok := HostBindings[sequence]; ok {
		return KeyResult{Consumed: true, HostAction: action}, ""
	}
	if entry := a.Registry.Lookup(sequence); entry != nil {
		a.invokeAction(entry)
		return KeyResult{Consumed: true}, ""
	}
	if pending == "" && (hostHasPrefix(key) || a.Registry.HasPrefix(key)) {
		return KeyResult{Consumed: true, Pending: true}, key
	}
	if pending != "" {
		// The held sequence matched nothing; retry the new key alone.
		result, next := a.HandleKey(key, "")
		return result, next
	}
	return KeyResult{}, ""
}

func hostHasPrefix(key string) bool {
	for bound := range HostBindings {
		if len(bound) > len(key) && bound[:len(key)] == key {
			return true
		}
	}
	return false
}

func (a *App) invokeAction(entry *plugins.Action) {
	if _, err := a.ExecutePluginWithHost(entry.Plugin, entry.Name); err != nil {
		a.enqueueError(entry.Plugin, err)
	}
}

// EnabledProjects returns the set of project names the plugin may query.
// Absent a configured scope, an enabled plugin sees every project.
func (a *App) EnabledProjects(plugin string) map[string]bool {
	out := make(map[string]bool, len(a.Projects))
	scoped, hasScope := a.Cfg.PluginProjects(plugin)
	if !hasScope {
		for _, p := range a.Projects {
			out[p.Name] = true
		}
		return out
	}
	for _, name := range scoped {
		out[name] = true
	}
	return out
}

// ExecutePluginWithHost runs a plugin action end to end: fresh host handle,
// panic-safe call, then the command batch through the executor under a
// single undo snapshot. An empty batch takes no snapshot and leaves the
// unsaved flag untouched.
func (a *App) ExecutePluginWithHost(pluginName, actionName string) (int, error) {
	lp, ok := a.Loaded[pluginName]
	if !ok {
		return 0, fmt.Errorf("plugin %s is not loaded", pluginName)
	}

	host := plugins.NewHostAPI(plugins.HostState{
		PluginName:      pluginName,
		Current:         a.Current,
		Projects:        a.Projects,
		Lists:           a.Lists,
		EnabledProjects: a.EnabledProjects(pluginName),
		Meta:            a.Meta,
	})

	a.Status = fmt.Sprintf("Running %s…", plugins.ActionNamespace(pluginName, actionName))

	cmds, err := lp.ExecuteWithHost(actionName, host)
	if err != nil {
		a.Status = ""
		return 0, err
	}

	if len(cmds) == 0 {
		a.Status = ""
		return 0, nil
	}

	// The snapshot observes the state immediately before the batch; the
	// executor's metadata pre-images ride along so one undo reverses todo
	// mutations and metadata writes together.
	before := a.CurrentList().Clone()
	executor := plugins.NewExecutor(pluginName, a.CurrentList(), a.Meta)
	count, err := executor.ExecuteBatch(cmds)
	a.Undo.PushState(before, metadataRevert(a.Meta, executor.MetadataImages()))
	a.Unsaved = true
	a.Status = fmt.Sprintf("%s applied %d commands", pluginName, count)
	if err != nil {
		return count, err
	}
	return count, nil
}

// metadataRevert builds the side-effect revert for metadata rows touched by
// a batch. Applying it restores the images and yields the inverse revert for
// redo. No images means a pure list snapshot.
func metadataRevert(meta *storage.MetadataStore, images []storage.MetadataImage) todo.Revert {
	if len(images) == 0 {
		return nil
	}
	return func() (todo.Revert, error) {
		inverse, err := meta.RestoreImages(images)
		if err != nil {
			return nil, err
		}
		return metadataRevert(meta, inverse), nil
	}
}

// DuplicateTodo inserts a copy of the item just past its subtree. The copy
// gets a fresh identifier and every plugin's metadata follows it; one undo
// removes both the copy and the copied metadata.
func (a *App) DuplicateTodo(id string) (string, error) {
	list := a.CurrentList()
	src := list.Find(id)
	if src == nil {
		return "", fmt.Errorf("Todo not found: %s", id)
	}

	before := list.Clone()
	dup := src.Duplicate()

	// The copy's rows are absent now; their images make the copy's metadata
	// undoable.
	owners, err := a.Meta.TodoMetadataPlugins(id)
	if err != nil {
		return "", err
	}
	images := make([]storage.MetadataImage, 0, len(owners))
	for _, owner := range owners {
		img, err := a.Meta.CaptureTodoMetadata(dup.ID, owner)
		if err != nil {
			return "", err
		}
		images = append(images, img)
	}

	list.InsertAt(list.SubtreeEnd(id), dup)
	if err := a.Meta.CopyTodoMetadata(id, dup.ID); err != nil {
		list.Restore(before)
		return "", err
	}

	a.Undo.PushState(before, metadataRevert(a.Meta, images))
	a.Unsaved = true
	return dup.ID, nil
}

// GenerateTodos runs a plugin's legacy generate path: the returned items are
// appended to the current list as fresh todos under a single undo snapshot.
func (a *App) GenerateTodos(pluginName, input string) (int, error) {
	lp, ok := a.Loaded[pluginName]
	if !ok {
		return 0, fmt.Errorf("plugin %s is not loaded", pluginName)
	}

	views, err := lp.Generate(input)
	if err != nil {
		return 0, err
	}
	if len(views) == 0 {
		return 0, nil
	}

	a.Undo.Push(a.CurrentList())
	for _, view := range views {
		item := todo.NewItem(view.Content)
		item.State = view.State
		item.Priority = view.Priority
		item.DueDate = view.DueDate
		item.Description = view.Description
		item.Indent = view.Indent
		a.CurrentList().Append(item)
	}
	a.CurrentList().RecalculateParents()
	a.Unsaved = true
	return len(views), nil
}

// DismissPopup hides the error popup, keeping the records.
func (a *App) DismissPopup() {
	a.PopupVisible = false
}
