// Package dashboard renders the live metrics panel: the current iteration's
// coefficients, an animated progress bar and a lift-to-drag sparkline.
package dashboard

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/harmonica"
	"github.com/charmbracelet/lipgloss"

	"github.com/airfoil-studio/solverstream/internal/solver"
	"github.com/airfoil-studio/solverstream/internal/tui/theme"
)

// FPS is the animation rate of the progress bar.
const FPS = 30

var sparkBlocks = []rune("▁▂▃▄▅▆▇█")

// Model holds the dashboard state.
type Model struct {
	Width int

	metrics *solver.IterationMetrics
	history []solver.IterationMetrics

	spring   harmonica.Spring
	shown    float64 // animated progress, 0..1
	velocity float64
	target   float64
}

// New creates a dashboard model.
func New() Model {
	return Model{
		spring: harmonica.NewSpring(harmonica.FPS(FPS), 7.0, 0.9),
	}
}

// SetSnapshot updates the metrics and retargets the progress bar.
func (m *Model) SetSnapshot(snap solver.Snapshot) {
	m.metrics = snap.Metrics
	m.history = snap.History
	switch {
	case snap.IsComplete:
		m.target = 1
	case snap.Metrics != nil && snap.Metrics.TotalIterations > 0:
		m.target = float64(snap.Metrics.Iteration) / float64(snap.Metrics.TotalIterations)
	default:
		m.target = 0
	}
	if m.target < m.shown && m.target == 0 {
		// New session: snap back instead of animating down.
		m.shown, m.velocity = 0, 0
	}
}

// Animate advances the progress spring by one frame and reports whether it
// is still moving.
func (m *Model) Animate() bool {
	m.shown, m.velocity = m.spring.Update(m.shown, m.velocity, m.target)
	if math.Abs(m.shown-m.target) < 0.001 && math.Abs(m.velocity) < 0.001 {
		m.shown, m.velocity = m.target, 0
		return false
	}
	return true
}

// Settled reports whether the progress bar has reached its target.
func (m Model) Settled() bool {
	return m.shown == m.target && m.velocity == 0
}

// View renders the stats row, progress bar and sparkline.
func (m Model) View() string {
	width := m.Width
	if width < 40 {
		width = 40
	}

	sections := []string{
		m.renderStatsRow(width),
		m.renderProgress(width - 4),
		m.renderSparkline(width - 4),
	}
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m Model) renderStatsRow(width int) string {
	statStyle := lipgloss.NewStyle().Padding(0, 1)

	var content string
	if m.metrics == nil {
		content = theme.StyleDimmed.Render("Waiting for first iteration")
	} else {
		mt := m.metrics
		stats := []string{
			statStyle.Foreground(theme.ColorBright).Render(
				fmt.Sprintf("Iter: %d/%d", mt.Iteration, mt.TotalIterations)),
			statStyle.Foreground(theme.ColorLift).Render(
				fmt.Sprintf("CL: %.4f", mt.CL)),
			statStyle.Foreground(theme.ColorDrag).Render(
				fmt.Sprintf("CD: %.5f", mt.CD)),
			statStyle.Foreground(theme.ColorRatio).Render(
				fmt.Sprintf("L/D: %.2f", mt.CLCD)),
			statStyle.Foreground(theme.ColorLift).Render(
				fmt.Sprintf("Lift: %s", formatForce(mt.LiftForce))),
			statStyle.Foreground(theme.ColorDrag).Render(
				fmt.Sprintf("Drag: %s", formatForce(mt.DragForce))),
			statStyle.Foreground(theme.ColorLoss).Render(
				fmt.Sprintf("Loss: %.4g", mt.Loss)),
		}
		content = strings.Join(stats, lipgloss.NewStyle().Foreground(theme.ColorBorder).Render("|"))
	}

	return lipgloss.NewStyle().
		Width(width).
		Padding(0, 1).
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(theme.ColorBorder).
		Render(content)
}

func (m Model) renderProgress(width int) string {
	labelWidth := 6
	fillWidth := max(10, width-labelWidth-2)

	frac := max(0, min(m.shown, 1))
	filled := int(math.Round(frac * float64(fillWidth)))
	color := theme.ProgressColor(m.target)
	bar := lipgloss.NewStyle().Foreground(color).Render(strings.Repeat("█", filled))
	bar += lipgloss.NewStyle().Foreground(theme.ColorBorder).Render(strings.Repeat("░", fillWidth-filled))
	label := fmt.Sprintf(" %3.0f%%", m.target*100)

	return "  " + bar + lipgloss.NewStyle().Foreground(color).Render(label)
}

func (m Model) renderSparkline(width int) string {
	header := theme.StyleDimmed.Render("  L/D history")
	values := make([]float64, len(m.history))
	for i, h := range m.history {
		values[i] = h.CLCD
	}
	line := Sparkline(values, max(10, width-2))
	if line == "" {
		return header
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		header,
		"  "+lipgloss.NewStyle().Foreground(theme.ColorRatio).Render(line),
	)
}

// Sparkline draws the last width values as block characters scaled between
// their minimum and maximum.
func Sparkline(values []float64, width int) string {
	if len(values) == 0 || width <= 0 {
		return ""
	}
	if len(values) > width {
		values = values[len(values)-width:]
	}
	lo, hi := values[0], values[0]
	for _, v := range values {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}

	var b strings.Builder
	top := len(sparkBlocks) - 1
	for _, v := range values {
		idx := top / 2
		if hi > lo {
			idx = int(math.Round((v - lo) / (hi - lo) * float64(top)))
		}
		b.WriteRune(sparkBlocks[idx])
	}
	return b.String()
}

// formatForce formats newtons with a k suffix above a thousand.
func formatForce(n float64) string {
	if math.Abs(n) >= 1000 {
		return fmt.Sprintf("%.2fkN", n/1000)
	}
	return fmt.Sprintf("%.1fN", n)
}
