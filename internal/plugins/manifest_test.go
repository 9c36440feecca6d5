package plugins

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opik/tudu/internal/testutil"
)

const validManifest = `
name = "example"
version = "1.0.0"
description = "One-line summary"
author = "someone"
min_interface_version = "2.0.0"

[actions.sync_now]
description = "Synchronize immediately"
default_keybinding = "<C-j>"

[actions.report]
description = "Generate a report"
`

func TestParseManifest_Valid(t *testing.T) {
	var dir = t.TempDir()
	var path = testutil.WriteManifest(t, dir, validManifest)

	var m, err = ParseManifest(path)
	require.NoError(t, err)

	assert.Equal(t, "example", m.Name)
	assert.Equal(t, "1.0.0", m.Version)
	assert.Equal(t, "2.0.0", m.MinInterfaceVersion)
	assert.Len(t, m.Actions, 2)
	assert.Equal(t, "<C-j>", m.Actions["sync_now"].DefaultKeybinding)
	assert.Empty(t, m.Actions["report"].DefaultKeybinding)
}

func TestParseManifest_MissingRequiredFields(t *testing.T) {
	var cases = map[string]string{
		"name":        "version = \"1.0.0\"\ndescription = \"d\"\n",
		"version":     "name = \"x\"\ndescription = \"d\"\n",
		"description": "name = \"x\"\nversion = \"1.0.0\"\n",
	}
	for field, content := range cases {
		var path = testutil.WriteManifest(t, t.TempDir(), content)
		var _, err = ParseManifest(path)
		require.Error(t, err, field)
		assert.Contains(t, err.Error(), field)
	}
}

func TestParseManifest_BadSemver(t *testing.T) {
	var path = testutil.WriteManifest(t, t.TempDir(),
		"name = \"x\"\nversion = \"not-a-version\"\ndescription = \"d\"\n")
	var _, err = ParseManifest(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "version")
}

func TestParseManifest_EmptyActionDescription(t *testing.T) {
	var path = testutil.WriteManifest(t, t.TempDir(), `
name = "x"
version = "1.0.0"
description = "d"

[actions.broken]
default_keybinding = "<C-j>"
`)
	var _, err = ParseManifest(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "actions.broken.description")
}

func TestParseManifest_BadKeybinding(t *testing.T) {
	var path = testutil.WriteManifest(t, t.TempDir(), `
name = "x"
version = "1.0.0"
description = "d"

[actions.broken]
description = "valid description"
default_keybinding = "<Bogus-key>"
`)
	var _, err = ParseManifest(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "actions.broken.default_keybinding")
}

func TestParseManifest_BadActionName(t *testing.T) {
	var path = testutil.WriteManifest(t, t.TempDir(), `
name = "x"
version = "1.0.0"
description = "d"

[actions."has space"]
description = "d"
`)
	var _, err = ParseManifest(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "alphanumeric")
}

func TestParseManifest_FileMissing(t *testing.T) {
	var _, err = ParseManifest(filepath.Join(t.TempDir(), "plugin.toml"))
	assert.Error(t, err)
}
