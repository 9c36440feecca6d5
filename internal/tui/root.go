package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/opik/tudu/internal/app"
	"github.com/opik/tudu/internal/keymap"
	"github.com/opik/tudu/internal/todo"
	"github.com/opik/tudu/pkg/pluginapi"
)

type viewState int

const (
	stateList viewState = iota
	stateHelp
)

// Model is the root bubbletea model. It owns the todo list view and
// delegates plugin key routing to the app layer.
type Model struct {
	app    *app.App
	popup  ErrorPopup
	status StatusBar

	state   viewState
	cursor  int
	pending string // held first element of a two-key sequence
	width   int
	height  int
}

// New creates the root model over an initialized App.
func New(a *app.App) Model {
	m := Model{app: a, status: NewStatusBar()}
	for _, warning := range a.Manager.Warnings() {
		m.status.Warn(warning)
		break // the status line holds one message; only the first warning is shown
	}
	return m
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.popup.SetSize(msg.Width, msg.Height)
		m.status.SetWidth(msg.Width)
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	if cmd := m.status.Update(msg); cmd != nil {
		return m, cmd
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.app.PopupVisible {
		// Any key dismisses the popup, including keys outside the grammar.
		m.app.DismissPopup()
		m.pending = ""
		return m, nil
	}

	key, ok := keymap.FromTerminal(msg.String())
	if !ok {
		return m, nil
	}

	if m.state == stateHelp {
		m.state = stateList
		return m, nil
	}

	result, pending := m.app.HandleKey(key, m.pending)
	m.pending = pending
	if !result.Consumed {
		return m, nil
	}
	if result.HostAction == "" {
		return m, nil
	}
	return m.runHostAction(result.HostAction)
}

func (m Model) runHostAction(action string) (tea.Model, tea.Cmd) {
	list := m.app.CurrentList()
	switch action {
	case "quit":
		return m, tea.Quit
	case "cursor_down":
		if m.cursor < len(visibleItems(list))-1 {
			m.cursor++
		}
	case "cursor_up":
		if m.cursor > 0 {
			m.cursor--
		}
	case "toggle_state":
		if it := m.itemUnderCursor(); it != nil {
			m.app.Undo.Push(list)
			if it.State == pluginapi.StateChecked {
				it.State = pluginapi.StateEmpty
				it.CompletedAt = nil
			} else {
				it.State = pluginapi.StateChecked
				now := todo.NowMillis()
				it.CompletedAt = &now
			}
			it.Touch()
			m.app.Unsaved = true
		}
	case "delete_todo":
		if it := m.itemUnderCursor(); it != nil {
			m.app.Undo.Push(list)
			now := todo.NowMillis()
			it.DeletedAt = &now
			it.Touch()
			m.app.Unsaved = true
		}
	case "duplicate_todo":
		if it := m.itemUnderCursor(); it != nil {
			if _, err := m.app.DuplicateTodo(it.ID); err != nil {
				m.status.Warn(err.Error())
			}
		}
	case "new_todo":
		m.app.Undo.Push(list)
		list.Append(todo.NewItem("New todo"))
		m.app.Unsaved = true
	case "indent":
		if it := m.itemUnderCursor(); it != nil {
			m.app.Undo.Push(list)
			it.Indent++
			list.RecalculateParents()
			m.app.Unsaved = true
		}
	case "outdent":
		if it := m.itemUnderCursor(); it != nil && it.Indent > 0 {
			m.app.Undo.Push(list)
			it.Indent--
			list.RecalculateParents()
			m.app.Unsaved = true
		}
	case "undo":
		if m.app.Undo.Undo(list) {
			m.status.Set("Undone")
		}
	case "redo":
		if m.app.Undo.Redo(list) {
			m.status.Set("Redone")
		}
	case "help":
		m.state = stateHelp
	}
	return m, nil
}

func visibleItems(list *todo.List) []*todo.Item {
	out := make([]*todo.Item, 0, len(list.Items))
	for _, it := range list.Items {
		if !it.Deleted() {
			out = append(out, it)
		}
	}
	return out
}

func (m Model) itemUnderCursor() *todo.Item {
	items := visibleItems(m.app.CurrentList())
	if m.cursor < 0 || m.cursor >= len(items) {
		return nil
	}
	return items[m.cursor]
}

func (m Model) View() string {
	if m.app.PopupVisible {
		return m.popup.View(m.app.PopupRecords)
	}
	if m.state == stateHelp {
		return RenderHelp(app.HostBindings, m.app.Registry)
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render(fmt.Sprintf("tudu — %s", m.app.Current.Name)))
	b.WriteString("\n")

	items := visibleItems(m.app.CurrentList())
	if len(items) == 0 {
		b.WriteString(hintStyle.Render("No todos. Press o to add one, ? for help."))
		b.WriteString("\n")
	}
	for i, it := range items {
		line := fmt.Sprintf("%s[%s] %s", strings.Repeat("  ", int(it.Indent)), stateGlyph(it.State), it.Content)
		switch {
		case i == m.cursor:
			line = selectedStyle.Render(line)
		case it.State.Done():
			line = doneStyle.Render(line)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}

	if status := m.status.View(); status != "" {
		b.WriteString("\n")
		b.WriteString(status)
	}
	if m.app.Status != "" {
		b.WriteString("\n")
		b.WriteString(statusStyle.Render(m.app.Status))
	}
	return b.String()
}

func stateGlyph(s pluginapi.TodoState) string {
	switch s {
	case pluginapi.StateChecked:
		return "x"
	case pluginapi.StateQuestion:
		return "?"
	case pluginapi.StateExclamation:
		return "!"
	case pluginapi.StateInProgress:
		return "~"
	case pluginapi.StateCancelled:
		return "-"
	default:
		return " "
	}
}
