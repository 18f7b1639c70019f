// Package theme provides the Lip Gloss palette and reusable styles for the
// airfoil watch TUI. It is a leaf package apart from the solver types it
// colours.
package theme

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/airfoil-studio/solverstream/internal/solver"
)

// Connection state colors.
var (
	ColorIdle       = lipgloss.Color("#6b7280")
	ColorConnecting = lipgloss.Color("#7c3aed")
	ColorOpen       = lipgloss.Color("#2563eb")
	ColorCompleted  = lipgloss.Color("#16a34a")
	ColorClosed     = lipgloss.Color("#9ca3af")
	ColorErrored    = lipgloss.Color("#dc2626")
)

// Metric colors.
var (
	ColorLift  = lipgloss.Color("#06b6d4")
	ColorDrag  = lipgloss.Color("#d97706")
	ColorRatio = lipgloss.Color("#a855f7")
	ColorLoss  = lipgloss.Color("#f59e0b")
)

// UI chrome colors.
var (
	ColorBorder  = lipgloss.Color("#4b5563")
	ColorDimmed  = lipgloss.Color("#6b7280")
	ColorBright  = lipgloss.Color("#f9fafb")
	ColorHealthy = lipgloss.Color("#22c55e")
	ColorWarning = lipgloss.Color("#d97706")
	ColorDanger  = lipgloss.Color("#dc2626")
)

// StateColor returns the color for a connection state.
func StateColor(s solver.ConnectionState) lipgloss.Color {
	switch s {
	case solver.StateConnecting:
		return ColorConnecting
	case solver.StateOpen:
		return ColorOpen
	case solver.StateCompleted:
		return ColorCompleted
	case solver.StateClosed:
		return ColorClosed
	case solver.StateErrored:
		return ColorErrored
	default:
		return ColorIdle
	}
}

// StateGlyph returns a Unicode glyph for a connection state.
func StateGlyph(s solver.ConnectionState) string {
	switch s {
	case solver.StateConnecting:
		return "◎"
	case solver.StateOpen:
		return "●"
	case solver.StateCompleted:
		return "✓"
	case solver.StateClosed:
		return "○"
	case solver.StateErrored:
		return "✗"
	default:
		return "·"
	}
}

// ProgressColor returns the bar color for a completion fraction.
func ProgressColor(frac float64) lipgloss.Color {
	switch {
	case frac >= 1:
		return ColorCompleted
	case frac > 0.5:
		return ColorOpen
	default:
		return ColorConnecting
	}
}

// Reusable styles.
var (
	StyleBorder = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(ColorBorder)

	StyleHeader = lipgloss.NewStyle().
		Bold(true).
		Foreground(ColorBright)

	StyleDimmed = lipgloss.NewStyle().
		Foreground(ColorDimmed)
)
