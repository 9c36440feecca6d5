package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/opik/tudu/internal/app"
)

// ErrorPopup renders the unified error list collected at startup and during
// plugin invocation. Any key dismisses it; the records themselves are kept
// for CLI inspection.
type ErrorPopup struct {
	width  int
	height int
}

// SetSize updates the available screen area.
func (p *ErrorPopup) SetSize(width, height int) {
	p.width = width
	p.height = height
}

// View renders the popup over the given records.
func (p *ErrorPopup) View(records []app.ErrorRecord) string {
	var b strings.Builder
	b.WriteString(popupTitleStyle.Render("Plugin errors"))
	b.WriteString("\n\n")
	for _, record := range records {
		fmt.Fprintf(&b, "• [%s] %s\n", record.Kind, record.Message)
	}
	b.WriteString("\n")
	b.WriteString(hintStyle.Render("Run `tudu plugin status` for details — any key to dismiss"))

	box := popupStyle.Width(min(p.width-4, 76)).Render(b.String())
	return lipgloss.Place(p.width, p.height, lipgloss.Center, lipgloss.Center, box)
}
