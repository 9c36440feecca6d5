package plugins

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/opik/tudu/internal/config"
)

// PluginInfo is the host-side record for one discovered plugin: the manifest
// (when it parsed), the library path, enablement, availability, and the
// error message when discovery failed.
type PluginInfo struct {
	Name        string
	Dir         string
	LibraryPath string
	Manifest    *Manifest
	Enabled     bool
	Available   bool
	Err         string
}

// Manager performs one-shot plugin discovery at startup and tracks
// enablement. Discovery is synchronous; failures are recorded per plugin and
// never abort the scan.
type Manager struct {
	pluginsDir string
	cfg        *config.Config

	infos    map[string]*PluginInfo
	order    []string
	warnings []string
}

// NewManager creates a manager over a plugin directory.
func NewManager(pluginsDir string, cfg *config.Config) *Manager {
	return &Manager{
		pluginsDir: pluginsDir,
		cfg:        cfg,
		infos:      make(map[string]*PluginInfo),
	}
}

// Discover scans the plugin directory: one plugin per subdirectory, flat.
// A missing directory is not an error; there are simply no plugins.
func (m *Manager) Discover() error {
	entries, err := os.ReadDir(m.pluginsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to scan plugin directory %s: %w", m.pluginsDir, err)
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		name := entry.Name()
		dir := filepath.Join(m.pluginsDir, name)
		info := &PluginInfo{
			Name:    name,
			Dir:     dir,
			Enabled: !m.cfg.PluginDisabled(name),
		}
		m.infos[name] = info
		m.order = append(m.order, name)

		manifest, err := ParseManifest(filepath.Join(dir, ManifestFileName))
		if err != nil {
			info.Err = err.Error()
			m.warnings = append(m.warnings, fmt.Sprintf("plugin %s: %v", name, err))
			continue
		}
		if manifest.Name != name {
			info.Err = fmt.Sprintf("manifest name %q does not match directory %q", manifest.Name, name)
			m.warnings = append(m.warnings, fmt.Sprintf("plugin %s: %s", name, info.Err))
			continue
		}
		info.Manifest = manifest

		info.LibraryPath = filepath.Join(dir, LibraryFileName(name))
		if _, err := os.Stat(info.LibraryPath); err == nil {
			info.Available = true
		} else {
			info.Err = fmt.Sprintf("library %s not found", LibraryFileName(name))
		}
	}

	sort.Strings(m.order)
	return nil
}

// List returns all discovered plugins in name order.
func (m *Manager) List() []*PluginInfo {
	out := make([]*PluginInfo, 0, len(m.order))
	for _, name := range m.order {
		out = append(out, m.infos[name])
	}
	return out
}

// Get returns the record for one plugin, or nil if unknown.
func (m *Manager) Get(name string) *PluginInfo {
	return m.infos[name]
}

// Enable marks the plugin enabled and persists the change. Takes effect for
// loading on the next start.
func (m *Manager) Enable(name string) error {
	info := m.infos[name]
	if info == nil {
		return fmt.Errorf("plugin %s not found", name)
	}
	info.Enabled = true
	return m.cfg.SetPluginDisabled(name, false)
}

// Disable marks the plugin disabled and persists the change.
func (m *Manager) Disable(name string) error {
	info := m.infos[name]
	if info == nil {
		return fmt.Errorf("plugin %s not found", name)
	}
	info.Enabled = false
	return m.cfg.SetPluginDisabled(name, true)
}

// Warnings returns the discovery warnings for the status line.
func (m *Manager) Warnings() []string {
	return m.warnings
}
