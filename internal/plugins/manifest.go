package plugins

import (
	"fmt"
	"regexp"

	"github.com/BurntSushi/toml"
	"github.com/Masterminds/semver/v3"

	"github.com/opik/tudu/internal/keymap"
)

// ManifestFileName is the required descriptor in each plugin directory.
const ManifestFileName = "plugin.toml"

// ManifestAction is one action declared in the manifest. The description is
// mandatory; the default keybinding is optional and must parse under the
// keybinding grammar.
type ManifestAction struct {
	Description       string `toml:"description"`
	DefaultKeybinding string `toml:"default_keybinding"`
}

// Manifest is the per-plugin descriptor parsed from plugin.toml.
type Manifest struct {
	Name                string                    `toml:"name"`
	Version             string                    `toml:"version"`
	Description         string                    `toml:"description"`
	Author              string                    `toml:"author"`
	License             string                    `toml:"license"`
	Homepage            string                    `toml:"homepage"`
	Repository          string                    `toml:"repository"`
	MinInterfaceVersion string                    `toml:"min_interface_version"`
	Actions             map[string]ManifestAction `toml:"actions"`
}

var actionNameRe = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// ParseManifest reads and validates a plugin.toml.
func ParseManifest(path string) (*Manifest, error) {
	var m Manifest
	if _, err := toml.DecodeFile(path, &m); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", ManifestFileName, err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Validate checks the required fields and the action definitions.
func (m *Manifest) Validate() error {
	if m.Name == "" {
		return fmt.Errorf("name: required field is missing")
	}
	if m.Version == "" {
		return fmt.Errorf("version: required field is missing")
	}
	if _, err := semver.NewVersion(m.Version); err != nil {
		return fmt.Errorf("version: %q is not valid semver", m.Version)
	}
	if m.Description == "" {
		return fmt.Errorf("description: required field is missing")
	}
	if m.MinInterfaceVersion != "" {
		if _, err := semver.NewVersion(m.MinInterfaceVersion); err != nil {
			return fmt.Errorf("min_interface_version: %q is not valid semver", m.MinInterfaceVersion)
		}
	}
	for name, action := range m.Actions {
		if !actionNameRe.MatchString(name) {
			return fmt.Errorf("actions.%s: action names must be alphanumeric or underscore", name)
		}
		if action.Description == "" {
			return fmt.Errorf("actions.%s.description: required field is missing", name)
		}
		if action.DefaultKeybinding != "" {
			if _, err := keymap.Parse(action.DefaultKeybinding); err != nil {
				return fmt.Errorf("actions.%s.default_keybinding: %v", name, err)
			}
		}
	}
	return nil
}
