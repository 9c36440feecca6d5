package plugins

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func manifestWithAction(name, action, binding string) *Manifest {
	return &Manifest{
		Name:        name,
		Version:     "1.0.0",
		Description: "test plugin",
		Actions: map[string]ManifestAction{
			action: {Description: "does " + action, DefaultKeybinding: binding},
		},
	}
}

func TestRegistry_PluginConflictEarlierWins(t *testing.T) {
	var r = NewRegistry(nil)

	r.RegisterPlugin("alpha", manifestWithAction("alpha", "x", "<C-j>"), nil)
	r.RegisterPlugin("beta", manifestWithAction("beta", "y", "<C-j>"), nil)

	var entry = r.Lookup("<C-j>")
	require.NotNil(t, entry)
	assert.Equal(t, "plugin:alpha:x", entry.Namespace)

	// beta's action is registered, just without a binding.
	var beta = r.Get("plugin:beta:y")
	require.NotNil(t, beta)
	assert.Empty(t, beta.Keybinding)

	require.Len(t, r.Warnings(), 1)
	assert.Contains(t, r.Warnings()[0], "plugin:beta:y")
	assert.Contains(t, r.Warnings()[0], "alpha")
}

func TestRegistry_HostWinsConflict(t *testing.T) {
	var r = NewRegistry(map[string]string{"u": "undo"})

	r.RegisterPlugin("alpha", manifestWithAction("alpha", "grab", "u"), nil)

	assert.Nil(t, r.Lookup("u"))
	var entry = r.Get("plugin:alpha:grab")
	require.NotNil(t, entry)
	assert.Empty(t, entry.Keybinding)
	require.Len(t, r.Warnings(), 1)
	assert.Contains(t, r.Warnings()[0], "host")
}

func TestRegistry_UserOverride(t *testing.T) {
	var r = NewRegistry(nil)

	r.RegisterPlugin("alpha", manifestWithAction("alpha", "x", "<C-j>"),
		func(action string) (string, bool) { return "<C-k>", true })

	assert.Nil(t, r.Lookup("<C-j>"))
	var entry = r.Lookup("<C-k>")
	require.NotNil(t, entry)
	assert.Equal(t, "plugin:alpha:x", entry.Namespace)
}

func TestRegistry_OverrideNoneDisables(t *testing.T) {
	for _, override := range []string{"none", ""} {
		var r = NewRegistry(nil)
		r.RegisterPlugin("alpha", manifestWithAction("alpha", "x", "<C-j>"),
			func(action string) (string, bool) { return override, true })

		assert.Nil(t, r.Lookup("<C-j>"), "override %q", override)
		// Still invocable by name.
		assert.NotNil(t, r.Get("plugin:alpha:x"))
	}
}

func TestRegistry_InvalidOverrideWarns(t *testing.T) {
	var r = NewRegistry(nil)
	r.RegisterPlugin("alpha", manifestWithAction("alpha", "x", "<C-j>"),
		func(action string) (string, bool) { return "<Bogus>", true })

	assert.Nil(t, r.Lookup("<C-j>"))
	require.Len(t, r.Warnings(), 1)
	assert.Contains(t, r.Warnings()[0], "keybindings.plugins.alpha.x")
}

func TestRegistry_BindingsCanonicalized(t *testing.T) {
	var r = NewRegistry(nil)
	r.RegisterPlugin("alpha", manifestWithAction("alpha", "x", "g g"), nil)

	// Lookup happens on the canonical form.
	var entry = r.Lookup("gg")
	require.NotNil(t, entry)
	assert.Equal(t, "gg", entry.Keybinding)
}

func TestRegistry_HasPrefix(t *testing.T) {
	var r = NewRegistry(nil)
	r.RegisterPlugin("alpha", manifestWithAction("alpha", "x", "gg"), nil)

	assert.True(t, r.HasPrefix("g"))
	assert.False(t, r.HasPrefix("h"))
	assert.False(t, r.HasPrefix("gg")) // complete match is not a prefix
}

func TestRegistry_ActionsByPlugin(t *testing.T) {
	var r = NewRegistry(nil)
	var m = &Manifest{
		Name: "alpha", Version: "1.0.0", Description: "d",
		Actions: map[string]ManifestAction{
			"b_second": {Description: "second"},
			"a_first":  {Description: "first"},
		},
	}
	r.RegisterPlugin("alpha", m, nil)
	r.RegisterPlugin("beta", manifestWithAction("beta", "y", ""), nil)

	var groups = r.ActionsByPlugin()
	require.Len(t, groups, 2)
	assert.Equal(t, "alpha", groups[0].Plugin)
	require.Len(t, groups[0].Actions, 2)
	// Actions sort by name within a plugin.
	assert.Equal(t, "a_first", groups[0].Actions[0].Name)
	assert.Equal(t, "beta", groups[1].Plugin)
}
