package status

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"github.com/airfoil-studio/solverstream/internal/solver"
	"github.com/airfoil-studio/solverstream/internal/tui/theme"
)

// Model holds the status bar state.
type Model struct {
	State     solver.ConnectionState
	Mode      solver.Mode
	SessionID string
	Error     string
	Sessions  int
	Width     int
}

// New creates a status bar model.
func New() Model {
	return Model{}
}

// SetSnapshot copies the connection fields of snap.
func (m *Model) SetSnapshot(snap solver.Snapshot) {
	m.State = snap.State
	m.Mode = snap.Mode
	m.SessionID = snap.SessionID
	m.Error = snap.Error
	m.Sessions = snap.Sessions
}

// View renders the status bar.
func (m Model) View() string {
	width := m.Width
	if width < 40 {
		width = 40
	}

	stateStr := lipgloss.NewStyle().Foreground(theme.StateColor(m.State)).
		Render(theme.StateGlyph(m.State) + " " + stateLabel(m.State))

	sep := lipgloss.NewStyle().Foreground(theme.ColorBorder).Render(" | ")
	content := stateStr
	if m.Mode != "" {
		content += sep + string(m.Mode)
	}
	if m.SessionID != "" {
		content += sep + "session " + shortID(m.SessionID)
	}
	if m.Sessions > 1 {
		content += sep + fmt.Sprintf("%d sessions", m.Sessions)
	}
	if m.Error != "" {
		content += sep + lipgloss.NewStyle().Foreground(theme.ColorDanger).Render(m.Error)
	}

	return lipgloss.NewStyle().
		Width(width).
		Padding(0, 1).
		BorderStyle(lipgloss.DoubleBorder()).
		BorderForeground(theme.ColorBorder).
		Render(content)
}

func stateLabel(s solver.ConnectionState) string {
	switch s {
	case solver.StateConnecting:
		return "Connecting..."
	case solver.StateOpen:
		return "Streaming"
	case solver.StateCompleted:
		return "Complete"
	case solver.StateClosed:
		return "Closed"
	case solver.StateErrored:
		return "Error"
	default:
		return "Idle"
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
