// Package plugins implements the dynamic plugin framework: library loading,
// discovery, configuration, the host query surface, command execution, and
// the action registry.
package plugins

import "fmt"

// LoadErrorKind classifies startup load failures.
type LoadErrorKind uint8

const (
	// LoadVersionMismatch means the plugin requires a newer host contract.
	LoadVersionMismatch LoadErrorKind = iota
	// LoadLibraryCorrupted means the shared library could not be opened or
	// its root symbols resolved.
	LoadLibraryCorrupted
	// LoadSymbolMissing means the library opened but lacked the well-known
	// registration symbol.
	LoadSymbolMissing
	// LoadOther is anything else.
	LoadOther
)

// LoadError is a failure to load a plugin library at startup. The failing
// plugin is excluded; the host keeps running.
type LoadError struct {
	Plugin   string
	Kind     LoadErrorKind
	Required string // VersionMismatch: interface version the plugin needs
	Actual   string // VersionMismatch: the host's interface version
	Message  string
	Err      error
}

func (e *LoadError) Error() string {
	switch e.Kind {
	case LoadVersionMismatch:
		return fmt.Sprintf("Plugin %s requires tudu %s+, you have %s", e.Plugin, e.Required, e.Actual)
	case LoadLibraryCorrupted:
		return fmt.Sprintf("Plugin %s failed to load — may be corrupted or incompatible", e.Plugin)
	case LoadSymbolMissing:
		return fmt.Sprintf("Plugin %s failed to load — missing registration symbol", e.Plugin)
	default:
		if e.Message != "" {
			return fmt.Sprintf("Plugin %s failed to load: %s", e.Plugin, e.Message)
		}
		return fmt.Sprintf("Plugin %s failed to load", e.Plugin)
	}
}

func (e *LoadError) Unwrap() error { return e.Err }

// ConfigError is a schema or TOML problem with a plugin's configuration. The
// failing plugin is excluded from the live set.
type ConfigError struct {
	Plugin  string
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("plugin %s config: %s", e.Plugin, e.Message)
}

// InvocationError is an error string returned by a plugin from a normal
// call. The command batch, if any, is not applied.
type InvocationError struct {
	Plugin  string
	Action  string
	Message string
}

func (e *InvocationError) Error() string {
	return fmt.Sprintf("plugin %s action %s: %s", e.Plugin, e.Action, e.Message)
}

// PanicError is a panic caught at the plugin boundary. The plugin is
// session-disabled; the host keeps running.
type PanicError struct {
	Plugin  string
	Message string
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("plugin %s panicked: %s", e.Plugin, e.Message)
}

// SessionDisabledError is returned when invoking a plugin that was
// session-disabled by an earlier panic. The call never crosses into the
// library.
type SessionDisabledError struct {
	Plugin string
}

func (e *SessionDisabledError) Error() string {
	return fmt.Sprintf("plugin %s is disabled for this session after a previous panic", e.Plugin)
}

// ExecutorError is a failure while applying a command batch: an unresolvable
// identifier or a metadata validation failure. Commands before the failure
// point remain applied.
type ExecutorError struct {
	Applied int // commands committed before the failure
	Message string
	Err     error
}

func (e *ExecutorError) Error() string { return e.Message }

func (e *ExecutorError) Unwrap() error { return e.Err }
