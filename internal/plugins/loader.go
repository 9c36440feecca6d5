package plugins

import (
	"fmt"
	"os"
	"path/filepath"
	"plugin"
	"runtime"
	"runtime/debug"

	"github.com/Masterminds/semver/v3"

	"github.com/opik/tudu/pkg/pluginapi"
)

// LoadedPlugin is a successfully loaded plugin. It exclusively owns its
// Plugin handle and pins the library for the process lifetime: the handle's
// code and static data live inside the shared object, and the Go runtime
// cannot unmap it anyway. A plugin that panics during any call is
// session-disabled; further calls return SessionDisabledError without
// entering the library again.
type LoadedPlugin struct {
	Name string

	impl            pluginapi.Plugin
	lib             *plugin.Plugin // strong reference; never released
	sessionDisabled bool
	panicLog        *PanicLog
}

// LibraryFileName returns the platform-specific file name for a plugin
// library.
func LibraryFileName(name string) string {
	switch runtime.GOOS {
	case "windows":
		return name + ".dll"
	case "darwin":
		return "lib" + name + ".dylib"
	default:
		return "lib" + name + ".so"
	}
}

// LoadFromDirectory opens the plugin library in dir, verifies its interface
// version, and constructs a LoadedPlugin. Errors are *LoadError or
// *PanicError.
func LoadFromDirectory(dir, name string, panicLog *PanicLog) (*LoadedPlugin, error) {
	libPath := filepath.Join(dir, LibraryFileName(name))
	if _, err := os.Stat(libPath); err != nil {
		return nil, &LoadError{Plugin: name, Kind: LoadLibraryCorrupted,
			Message: fmt.Sprintf("library %s not found", libPath), Err: err}
	}

	lib, err := plugin.Open(libPath)
	if err != nil {
		return nil, &LoadError{Plugin: name, Kind: LoadLibraryCorrupted, Err: err}
	}

	sym, err := lib.Lookup(pluginapi.WellKnownSymbol)
	if err != nil {
		return nil, &LoadError{Plugin: name, Kind: LoadSymbolMissing, Err: err}
	}

	reg, ok := sym.(*pluginapi.Registration)
	if !ok {
		return nil, &LoadError{Plugin: name, Kind: LoadSymbolMissing,
			Message: fmt.Sprintf("symbol %s has unexpected type %T", pluginapi.WellKnownSymbol, sym)}
	}

	return NewLoadedPlugin(name, *reg, lib, panicLog)
}

// NewLoadedPlugin builds the panic-safe handle around a registration. The
// lib reference may be nil for plugins linked into the host (tests, built-in
// plugins).
func NewLoadedPlugin(name string, reg pluginapi.Registration, lib *plugin.Plugin, panicLog *PanicLog) (*LoadedPlugin, error) {
	if reg.New == nil {
		return nil, &LoadError{Plugin: name, Kind: LoadSymbolMissing, Message: "registration has no factory"}
	}
	if err := checkInterfaceVersion(name, reg.InterfaceVersion); err != nil {
		return nil, err
	}

	lp := &LoadedPlugin{Name: name, lib: lib, panicLog: panicLog}

	err := lp.call(func() error {
		lp.impl = reg.New()
		if lp.impl == nil {
			return &LoadError{Plugin: name, Kind: LoadOther, Message: "factory returned nil"}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// The plugin may demand a newer contract than the one it was built
	// against advertises.
	var minVersion string
	err = lp.call(func() error {
		minVersion = lp.impl.MinInterfaceVersion()
		return nil
	})
	if err != nil {
		return nil, err
	}
	if minVersion != "" {
		if err := checkInterfaceVersion(name, minVersion); err != nil {
			return nil, err
		}
	}

	return lp, nil
}

// CheckManifestVersion refuses a manifest's min_interface_version before the
// library is even opened.
func CheckManifestVersion(name, required string) error {
	return checkInterfaceVersion(name, required)
}

// checkInterfaceVersion refuses plugins that need a host newer than this one.
func checkInterfaceVersion(name, required string) error {
	if required == "" {
		return nil
	}
	req, err := semver.NewVersion(required)
	if err != nil {
		return &LoadError{Plugin: name, Kind: LoadOther,
			Message: fmt.Sprintf("invalid interface version %q", required), Err: err}
	}
	host := semver.MustParse(pluginapi.InterfaceVersion)
	if req.GreaterThan(host) {
		return &LoadError{Plugin: name, Kind: LoadVersionMismatch,
			Required: required, Actual: pluginapi.InterfaceVersion}
	}
	return nil
}

// SessionDisabled reports whether a panic has disabled the plugin for the
// remainder of the process.
func (p *LoadedPlugin) SessionDisabled() bool {
	return p.sessionDisabled
}

// call runs fn with the panic discipline applied: a disabled plugin is never
// entered, and a panic is logged with a backtrace, disables the plugin, and
// comes back as *PanicError.
func (p *LoadedPlugin) call(fn func() error) (err error) {
	if p.sessionDisabled {
		return &SessionDisabledError{Plugin: p.Name}
	}
	defer func() {
		if r := recover(); r != nil {
			message := stringifyPanic(r)
			p.sessionDisabled = true
			p.panicLog.Write(p.Name, message, debug.Stack())
			err = &PanicError{Plugin: p.Name, Message: message}
		}
	}()
	return fn()
}

// stringifyPanic turns a recovered payload into text: string, then error,
// then fmt, then "unknown panic".
func stringifyPanic(r any) string {
	switch v := r.(type) {
	case string:
		return v
	case error:
		return v.Error()
	case nil:
		return "unknown panic"
	default:
		return fmt.Sprintf("%v", v)
	}
}

// Version returns the plugin's own version.
func (p *LoadedPlugin) Version() (string, error) {
	var out string
	err := p.call(func() error {
		out = pluginapi.Truncate(p.impl.Version())
		return nil
	})
	return out, err
}

// ConfigSchema obtains the plugin's configuration schema.
func (p *LoadedPlugin) ConfigSchema() (pluginapi.ConfigSchema, error) {
	var out pluginapi.ConfigSchema
	err := p.call(func() error {
		out = p.impl.ConfigSchema()
		return nil
	})
	return out, err
}

// OnConfigLoaded delivers the validated configuration.
func (p *LoadedPlugin) OnConfigLoaded(values map[string]pluginapi.ConfigValue) error {
	return p.call(func() error {
		p.impl.OnConfigLoaded(values)
		return nil
	})
}

// Generate invokes the legacy text-prompt path.
func (p *LoadedPlugin) Generate(input string) ([]pluginapi.TodoItemView, error) {
	var out []pluginapi.TodoItemView
	err := p.call(func() error {
		items, err := p.impl.Generate(input)
		if err != nil {
			return &InvocationError{Plugin: p.Name, Message: pluginapi.Truncate(err.Error())}
		}
		out = sanitizeViews(items)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ExecuteWithHost invokes the named action against the given host handle and
// returns the sanitized command batch.
func (p *LoadedPlugin) ExecuteWithHost(action string, host pluginapi.HostAPI) ([]pluginapi.Command, error) {
	var out []pluginapi.Command
	err := p.call(func() error {
		cmds, err := p.impl.ExecuteWithHost(action, host)
		if err != nil {
			return &InvocationError{Plugin: p.Name, Action: action, Message: pluginapi.Truncate(err.Error())}
		}
		out = sanitizeCommands(cmds)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// sanitizeViews applies the boundary string rules to plugin-produced items.
func sanitizeViews(items []pluginapi.TodoItemView) []pluginapi.TodoItemView {
	for i := range items {
		items[i].ID = pluginapi.Truncate(items[i].ID)
		items[i].Content = pluginapi.Truncate(items[i].Content)
		truncatePtr(&items[i].DueDate)
		truncatePtr(&items[i].Description)
		truncatePtr(&items[i].ParentID)
	}
	return items
}

// sanitizeCommands applies the boundary string rules to a command batch.
func sanitizeCommands(cmds []pluginapi.Command) []pluginapi.Command {
	for i := range cmds {
		c := &cmds[i]
		switch {
		case c.Create != nil:
			c.Create.Content = pluginapi.Truncate(c.Create.Content)
			truncatePtr(&c.Create.ParentID)
			truncatePtr(&c.Create.TempID)
		case c.Update != nil:
			c.Update.ID = pluginapi.Truncate(c.Update.ID)
			truncatePtr(&c.Update.Content)
			truncatePtr(&c.Update.DueDate)
			truncatePtr(&c.Update.Description)
		case c.Delete != nil:
			c.Delete.ID = pluginapi.Truncate(c.Delete.ID)
		case c.Move != nil:
			c.Move.ID = pluginapi.Truncate(c.Move.ID)
			c.Move.Position.ID = pluginapi.Truncate(c.Move.Position.ID)
		case c.SetTodoMeta != nil:
			c.SetTodoMeta.TodoID = pluginapi.Truncate(c.SetTodoMeta.TodoID)
			c.SetTodoMeta.Data = pluginapi.Truncate(c.SetTodoMeta.Data)
		case c.SetProjectMeta != nil:
			c.SetProjectMeta.Project = pluginapi.Truncate(c.SetProjectMeta.Project)
			c.SetProjectMeta.Data = pluginapi.Truncate(c.SetProjectMeta.Data)
		case c.DeleteTodoMeta != nil:
			c.DeleteTodoMeta.TodoID = pluginapi.Truncate(c.DeleteTodoMeta.TodoID)
		case c.DeleteProjectMeta != nil:
			c.DeleteProjectMeta.Project = pluginapi.Truncate(c.DeleteProjectMeta.Project)
		}
	}
	return cmds
}

func truncatePtr(p **string) {
	if *p != nil {
		s := pluginapi.Truncate(**p)
		*p = &s
	}
}
