package testutil

import (
	"fmt"

	"github.com/opik/tudu/pkg/pluginapi"
)

// FakePlugin is a scriptable in-process plugin. Tests configure behavior by
// setting the function fields; nil fields fall back to benign defaults. Call
// counters record the schema, config, generate, and execute crossings so
// tests can assert that a session-disabled plugin is never re-entered.
type FakePlugin struct {
	PluginName string
	MinVersion string
	Schema     pluginapi.ConfigSchema

	OnExecute  func(action string, host pluginapi.HostAPI) ([]pluginapi.Command, error)
	OnGenerate func(input string) ([]pluginapi.TodoItemView, error)

	// Captured state
	LoadedConfig map[string]pluginapi.ConfigValue

	// Call counters
	ExecuteCalls  int
	GenerateCalls int
	SchemaCalls   int
	ConfigCalls   int
}

// NewFakePlugin returns a fake with the given name and no behavior.
func NewFakePlugin(name string) *FakePlugin {
	return &FakePlugin{PluginName: name, MinVersion: "2.0.0"}
}

// Registration wraps the fake in a loadable registration.
func (f *FakePlugin) Registration() pluginapi.Registration {
	return pluginapi.Registration{
		InterfaceVersion: pluginapi.InterfaceVersion,
		New:              func() pluginapi.Plugin { return f },
	}
}

func (f *FakePlugin) Name() string { return f.PluginName }

func (f *FakePlugin) Version() string { return "0.1.0" }

func (f *FakePlugin) MinInterfaceVersion() string { return f.MinVersion }

func (f *FakePlugin) ConfigSchema() pluginapi.ConfigSchema {
	f.SchemaCalls++
	return f.Schema
}

func (f *FakePlugin) OnConfigLoaded(values map[string]pluginapi.ConfigValue) {
	f.ConfigCalls++
	f.LoadedConfig = values
}

func (f *FakePlugin) Generate(input string) ([]pluginapi.TodoItemView, error) {
	f.GenerateCalls++
	if f.OnGenerate != nil {
		return f.OnGenerate(input)
	}
	return nil, fmt.Errorf("generate not implemented")
}

func (f *FakePlugin) ExecuteWithHost(action string, host pluginapi.HostAPI) ([]pluginapi.Command, error) {
	f.ExecuteCalls++
	if f.OnExecute != nil {
		return f.OnExecute(action, host)
	}
	return nil, nil
}

// PanickingPlugin panics in ExecuteWithHost; its other methods behave like
// FakePlugin's.
type PanickingPlugin struct {
	FakePlugin
	Payload any
}

// NewPanickingPlugin returns a plugin whose ExecuteWithHost panics with the
// given payload.
func NewPanickingPlugin(name string, payload any) *PanickingPlugin {
	var p = &PanickingPlugin{Payload: payload}
	p.PluginName = name
	p.MinVersion = "2.0.0"
	return p
}

// Registration wraps the panicking fake in a loadable registration.
func (p *PanickingPlugin) Registration() pluginapi.Registration {
	return pluginapi.Registration{
		InterfaceVersion: pluginapi.InterfaceVersion,
		New:              func() pluginapi.Plugin { return p },
	}
}

func (p *PanickingPlugin) ExecuteWithHost(action string, host pluginapi.HostAPI) ([]pluginapi.Command, error) {
	p.ExecuteCalls++
	panic(p.Payload)
}
