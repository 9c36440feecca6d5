package tui

import (
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-runewidth"
)

// StatusBar shows transient messages: the first discovery warning, host
// action results, warnings. It carries a spinner that StartBusy starts; the
// plugin invocation path does not call StartBusy, so plugin calls run without
// a spinner.
type StatusBar struct {
	spin    spinner.Model
	message string
	warning bool
	busy    bool
	width   int
}

// NewStatusBar returns an empty status bar.
func NewStatusBar() StatusBar {
	s := spinner.New()
	s.Spinner = spinner.Dot
	return StatusBar{spin: s}
}

// SetWidth sets the terminal width used for truncation.
func (s *StatusBar) SetWidth(width int) {
	s.width = width
}

// Set replaces the message.
func (s *StatusBar) Set(message string) {
	s.message = message
	s.warning = false
}

// Warn replaces the message with warning styling.
func (s *StatusBar) Warn(message string) {
	s.message = message
	s.warning = true
}

// Clear empties the status line.
func (s *StatusBar) Clear() {
	s.message = ""
	s.busy = false
}

// StartBusy begins the spinner for a long-running plugin call.
func (s *StatusBar) StartBusy(message string) tea.Cmd {
	s.message = message
	s.busy = true
	return s.spin.Tick
}

// Update advances the spinner.
func (s *StatusBar) Update(msg tea.Msg) tea.Cmd {
	if !s.busy {
		return nil
	}
	var cmd tea.Cmd
	s.spin, cmd = s.spin.Update(msg)
	return cmd
}

// View renders the status line truncated to the terminal width.
func (s *StatusBar) View() string {
	if s.message == "" {
		return ""
	}
	line := s.message
	if s.busy {
		line = s.spin.View() + " " + line
	}
	if s.width > 0 {
		line = runewidth.Truncate(line, s.width, "…")
	}
	if s.warning {
		return warnStyle.Render(line)
	}
	return statusStyle.Render(line)
}
