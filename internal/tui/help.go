package tui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/opik/tudu/internal/plugins"
)

// RenderHelp renders the help panel: the host's own bindings followed by one
// section per plugin with each action's key (or a placeholder) and
// description. Session-disabled plugins still appear; their actions simply
// fail fast when invoked.
func RenderHelp(hostBindings map[string]string, registry *plugins.Registry) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Help"))
	b.WriteString("\n")

	b.WriteString(helpSectionStyle.Render("Host"))
	b.WriteString("\n")
	for _, pair := range sortedBindings(hostBindings) {
		fmt.Fprintf(&b, "  %s  %s\n", helpKeyStyle.Render(pad(pair[0])), pair[1])
	}

	for _, group := range registry.ActionsByPlugin() {
		b.WriteString("\n")
		b.WriteString(helpSectionStyle.Render("Plugin: " + group.Plugin))
		b.WriteString("\n")
		for _, action := range group.Actions {
			key := action.Keybinding
			if key == "" {
				key = "(no binding)"
			}
			fmt.Fprintf(&b, "  %s  %s\n", helpKeyStyle.Render(pad(key)), action.Description)
		}
	}
	return b.String()
}

func pad(s string) string {
	return fmt.Sprintf("%-12s", s)
}

func sortedBindings(bindings map[string]string) [][2]string {
	pairs := make([][2]string, 0, len(bindings))
	for key, action := range bindings {
		pairs = append(pairs, [2]string{key, action})
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i][1] < pairs[j][1] })
	return pairs
}
