package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadTest(t *testing.T, content string) *Config {
	t.Helper()
	var path = filepath.Join(t.TempDir(), "config.toml")
	if content != "" {
		require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	}
	var cfg, err = LoadFrom(path)
	require.NoError(t, err)
	return cfg
}

func TestConfig_MissingFileIsEmpty(t *testing.T) {
	var cfg = loadTest(t, "")
	assert.Empty(t, cfg.DisabledPlugins())
	assert.False(t, cfg.PluginDisabled("anything"))
}

func TestConfig_DisabledSet(t *testing.T) {
	var cfg = loadTest(t, "[plugins]\ndisabled = [\"plugin_a\", \"plugin_b\"]\n")

	assert.True(t, cfg.PluginDisabled("plugin_a"))
	assert.True(t, cfg.PluginDisabled("plugin_b"))
	assert.False(t, cfg.PluginDisabled("plugin_c"))
}

func TestConfig_SetPluginDisabledPersists(t *testing.T) {
	var path = filepath.Join(t.TempDir(), "config.toml")
	var cfg, err = LoadFrom(path)
	require.NoError(t, err)

	require.NoError(t, cfg.SetPluginDisabled("x", true))

	// A fresh load sees the change.
	var reloaded, loadErr = LoadFrom(path)
	require.NoError(t, loadErr)
	assert.True(t, reloaded.PluginDisabled("x"))

	require.NoError(t, cfg.SetPluginDisabled("x", false))
	reloaded, _ = LoadFrom(path)
	assert.False(t, reloaded.PluginDisabled("x"))
}

func TestConfig_KeybindingOverrides(t *testing.T) {
	var cfg = loadTest(t, `
[keybindings.plugins.myplugin]
action_one = "<C-j>"
action_two = "none"
`)

	var binding, ok = cfg.KeybindingOverride("myplugin", "action_one")
	assert.True(t, ok)
	assert.Equal(t, "<C-j>", binding)

	binding, ok = cfg.KeybindingOverride("myplugin", "action_two")
	assert.True(t, ok)
	assert.Equal(t, "none", binding)

	_, ok = cfg.KeybindingOverride("myplugin", "unset")
	assert.False(t, ok)
}

func TestConfig_PluginProjects(t *testing.T) {
	var cfg = loadTest(t, "[plugins.projects]\nscoped = [\"work\"]\n")

	var projects, ok = cfg.PluginProjects("scoped")
	assert.True(t, ok)
	assert.Equal(t, []string{"work"}, projects)

	_, ok = cfg.PluginProjects("unscoped")
	assert.False(t, ok)
}
