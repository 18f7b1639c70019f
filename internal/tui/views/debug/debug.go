// Package debug provides the scrollable event log overlay: state
// transitions, sessions, errors and key actions.
package debug

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/airfoil-studio/solverstream/internal/tui/theme"
)

const maxEntries = 200

// Kind classifies an event log entry.
type Kind string

const (
	KindState   Kind = "conn"
	KindSession Kind = "sess"
	KindRun     Kind = "run"
	KindError   Kind = "err"
)

// Entry is a single event log line.
type Entry struct {
	Time    time.Time
	Kind    Kind
	Message string
}

// Model holds event log state.
type Model struct {
	Entries []Entry
	Offset  int // lines scrolled up from the newest entry
}

// New creates an empty log.
func New() Model {
	return Model{}
}

// Add appends an entry, drops the oldest beyond maxEntries and scrolls back
// to the newest line.
func (m *Model) Add(kind Kind, format string, args ...any) {
	m.Entries = append(m.Entries, Entry{Time: time.Now(), Kind: kind, Message: fmt.Sprintf(format, args...)})
	if over := len(m.Entries) - maxEntries; over > 0 {
		m.Entries = m.Entries[over:]
	}
	m.Offset = 0
}

// Scroll moves the viewport; positive n moves toward older entries.
func (m *Model) Scroll(n int) {
	m.Offset = max(0, min(m.Offset+n, len(m.Entries)-1))
}

// View renders the log as an overlay panel.
func (m Model) View(width, height int) string {
	innerW := max(20, width-4)
	visible := max(3, height-6)

	title := theme.StyleHeader.Render(" EVENT LOG ")
	help := theme.StyleDimmed.Render(fmt.Sprintf("j/k:scroll  esc:close  %d entries", len(m.Entries)))
	panel := lipgloss.NewStyle().
		Width(innerW).
		Padding(1, 2).
		BorderStyle(lipgloss.DoubleBorder()).
		BorderForeground(theme.ColorBorder)

	if len(m.Entries) == 0 {
		body := theme.StyleDimmed.Render("  No events recorded yet.")
		return panel.Render(lipgloss.JoinVertical(lipgloss.Left, title, "", body, "", help))
	}

	end := len(m.Entries) - m.Offset
	start := max(0, end-visible)

	lines := make([]string, 0, end-start)
	for _, e := range m.Entries[start:end] {
		msg := e.Message
		if limit := innerW - 20; limit > 3 && len(msg) > limit {
			msg = msg[:limit-3] + "..."
		}
		lines = append(lines, fmt.Sprintf("%s %s %s",
			theme.StyleDimmed.Render(e.Time.Format("15:04:05.000")),
			lipgloss.NewStyle().Foreground(kindColor(e.Kind)).Width(4).Render(string(e.Kind)),
			msg))
	}

	more := ""
	if m.Offset > 0 {
		more = theme.StyleDimmed.Render(fmt.Sprintf(" ↓ %d more", m.Offset))
	}
	return panel.Render(lipgloss.JoinVertical(lipgloss.Left, title, strings.Join(lines, "\n"), more, help))
}

func kindColor(k Kind) lipgloss.Color {
	switch k {
	case KindState:
		return theme.ColorOpen
	case KindSession:
		return theme.ColorConnecting
	case KindRun:
		return theme.ColorCompleted
	case KindError:
		return theme.ColorErrored
	default:
		return theme.ColorDimmed
	}
}
