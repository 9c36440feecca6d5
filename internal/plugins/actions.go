package plugins

import (
	"fmt"
	"sort"
	"strings"

	"github.com/opik/tudu/internal/keymap"
)

// Action is one registry entry: a plugin-declared action with its resolved
// keybinding (canonical form, empty when unbound) and its full namespace
// string.
type Action struct {
	Plugin      string
	Name        string
	Description string
	Keybinding  string
	Namespace   string
}

// ActionNamespace builds the namespace string for a plugin action.
func ActionNamespace(plugin, action string) string {
	return fmt.Sprintf("plugin:%s:%s", plugin, action)
}

// Registry holds the union of plugin-declared actions with conflict-aware
// keybinding resolution. Bindings resolve with the precedence user override >
// manifest default > none; the host's own bindings always win conflicts, and
// between plugins the earlier registration wins.
type Registry struct {
	hostBindings map[string]string // canonical key → host action name

	byNamespace map[string]*Action
	byKey       map[string]*Action
	order       []string // namespace registration order
	warnings    []string
}

// NewRegistry creates a registry aware of the host's bound keys. The map is
// canonical key → host action name.
func NewRegistry(hostBindings map[string]string) *Registry {
	if hostBindings == nil {
		hostBindings = map[string]string{}
	}
	return &Registry{
		hostBindings: hostBindings,
		byNamespace:  make(map[string]*Action),
		byKey:        make(map[string]*Action),
	}
}

// Override is a user keybinding override lookup. ok reports whether an
// override exists; an empty string or "none" disables the binding.
type Override func(action string) (binding string, ok bool)

// RegisterPlugin adds every action from a plugin's manifest. Actions are
// always inserted into the namespace index; they stay invocable by name even
// when no binding survives conflict resolution.
func (r *Registry) RegisterPlugin(plugin string, manifest *Manifest, override Override) {
	names := make([]string, 0, len(manifest.Actions))
	for name := range manifest.Actions {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		decl := manifest.Actions[name]
		action := &Action{
			Plugin:      plugin,
			Name:        name,
			Description: decl.Description,
			Namespace:   ActionNamespace(plugin, name),
		}

		binding := r.effectiveBinding(plugin, name, decl, override)
		if binding != "" {
			if host, taken := r.hostBindings[binding]; taken {
				r.warnings = append(r.warnings, fmt.Sprintf(
					"keybinding %s for %s conflicts with host action %s; host wins",
					binding, action.Namespace, host))
			} else if earlier, taken := r.byKey[binding]; taken {
				r.warnings = append(r.warnings, fmt.Sprintf(
					"keybinding %s for %s already taken by %s (plugin %s loaded first)",
					binding, action.Namespace, earlier.Namespace, earlier.Plugin))
			} else {
				action.Keybinding = binding
				r.byKey[binding] = action
			}
		}

		r.byNamespace[action.Namespace] = action
		r.order = append(r.order, action.Namespace)
	}
}

// effectiveBinding resolves the binding string for one action and returns
// its canonical form, or "" for unbound.
func (r *Registry) effectiveBinding(plugin, name string, decl ManifestAction, override Override) string {
	raw := decl.DefaultKeybinding
	if override != nil {
		if userBinding, ok := override(name); ok {
			if userBinding == "" || userBinding == "none" {
				return ""
			}
			canonical, err := keymap.Canonicalize(userBinding)
			if err != nil {
				r.warnings = append(r.warnings, fmt.Sprintf(
					"keybindings.plugins.%s.%s: %v", plugin, name, err))
				return ""
			}
			return canonical
		}
	}
	if raw == "" {
		return ""
	}
	canonical, err := keymap.Canonicalize(raw)
	if err != nil {
		// Manifest validation rejects this earlier; belt and braces.
		r.warnings = append(r.warnings, fmt.Sprintf(
			"actions.%s.default_keybinding: %v", name, err))
		return ""
	}
	return canonical
}

// Lookup resolves a canonical key sequence to an action, or nil. The event
// loop calls this only after the host's own lookup misses.
func (r *Registry) Lookup(key string) *Action {
	return r.byKey[key]
}

// HasPrefix reports whether any bound key sequence starts with the given
// canonical element. Used by the event loop to hold a pending first key.
func (r *Registry) HasPrefix(key string) bool {
	for bound := range r.byKey {
		if len(bound) > len(key) && strings.HasPrefix(bound, key) {
			return true
		}
	}
	return false
}

// Get returns the action with the given namespace string, or nil.
func (r *Registry) Get(namespace string) *Action {
	return r.byNamespace[namespace]
}

// Find returns the action for a plugin/action name pair, or nil.
func (r *Registry) Find(plugin, action string) *Action {
	return r.byNamespace[ActionNamespace(plugin, action)]
}

// PluginActions groups a plugin's actions for the help panel.
type PluginActions struct {
	Plugin  string
	Actions []*Action
}

// ActionsByPlugin returns all actions grouped by plugin, plugins in
// registration order, actions in name order.
func (r *Registry) ActionsByPlugin() []PluginActions {
	var groups []PluginActions
	index := make(map[string]int)
	for _, namespace := range r.order {
		action := r.byNamespace[namespace]
		i, ok := index[action.Plugin]
		if !ok {
			i = len(groups)
			index[action.Plugin] = i
			groups = append(groups, PluginActions{Plugin: action.Plugin})
		}
		groups[i].Actions = append(groups[i].Actions, action)
	}
	return groups
}

// Warnings returns the conflict and override warnings recorded during
// registration.
func (r *Registry) Warnings() []string {
	return r.warnings
}
