// Package config loads and persists the application configuration: the
// plugin disabled-set, per-plugin keybinding overrides, and optional
// per-plugin project scoping. Plugins are enabled by default; the config
// records only what deviates.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/adrg/xdg"
	"github.com/spf13/viper"
)

// AppName is the directory name under the XDG config and data roots.
const AppName = "tudu"

// Config is the viper-backed application configuration.
type Config struct {
	v    *viper.Viper
	path string
}

// ConfigDir returns the application configuration directory.
func ConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// DataDir returns the application data directory.
func DataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// PluginsDir returns the plugin installation directory (§ plugin layout:
// one subdirectory per plugin holding plugin.toml and the library).
func PluginsDir() string {
	return filepath.Join(DataDir(), "plugins")
}

// PluginConfigPath returns the per-plugin config file location.
func PluginConfigPath(pluginName string) string {
	return filepath.Join(ConfigDir(), "plugins", pluginName, "config.toml")
}

// DatabasePath returns the metadata database location.
func DatabasePath() string {
	return filepath.Join(DataDir(), "tudu.db")
}

// PanicLogPath returns the plugin panic log location.
func PanicLogPath() string {
	return filepath.Join(DataDir(), "plugin-panics.log")
}

// Load reads the application config from the default location. A missing
// file yields an empty (all-defaults) config.
func Load() (*Config, error) {
	return LoadFrom(filepath.Join(ConfigDir(), "config.toml"))
}

// LoadFrom reads the application config from an explicit path.
func LoadFrom(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	return &Config{v: v, path: path}, nil
}

// DisabledPlugins returns the names listed under [plugins] disabled.
func (c *Config) DisabledPlugins() []string {
	return c.v.GetStringSlice("plugins.disabled")
}

// PluginDisabled reports whether the plugin is globally disabled.
func (c *Config) PluginDisabled(name string) bool {
	return slices.Contains(c.DisabledPlugins(), name)
}

// SetPluginDisabled adds or removes a plugin from the disabled-set and
// persists the change.
func (c *Config) SetPluginDisabled(name string, disabled bool) error {
	list := c.DisabledPlugins()
	if disabled {
		if !slices.Contains(list, name) {
			list = append(list, name)
			slices.Sort(list)
		}
	} else {
		list = slices.DeleteFunc(list, func(s string) bool { return s == name })
	}
	c.v.Set("plugins.disabled", list)
	return c.save()
}

// KeybindingOverride returns the user's binding override for a plugin
// action, and whether one is set. An empty string or "none" means the
// binding is disabled.
func (c *Config) KeybindingOverride(plugin, action string) (string, bool) {
	key := fmt.Sprintf("keybindings.plugins.%s.%s", plugin, action)
	if !c.v.IsSet(key) {
		return "", false
	}
	return c.v.GetString(key), true
}

// PluginProjects returns the projects a plugin is scoped to, and whether a
// scope is configured. Absent means the plugin is enabled in every project.
func (c *Config) PluginProjects(plugin string) ([]string, bool) {
	key := fmt.Sprintf("plugins.projects.%s", plugin)
	if !c.v.IsSet(key) {
		return nil, false
	}
	return c.v.GetStringSlice(key), true
}

func (c *Config) save() error {
	if err := os.MkdirAll(filepath.Dir(c.path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := c.v.WriteConfigAs(c.path); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}
