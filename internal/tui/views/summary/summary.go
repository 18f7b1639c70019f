// Package summary renders the end-of-run report as Markdown through glamour.
package summary

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"

	"github.com/airfoil-studio/solverstream/internal/solver"
)

// Markdown builds the report for a finished session. Optimization runs
// report the complete frame; simulation runs fall back to the last
// iteration.
func Markdown(snap solver.Snapshot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "## Run complete\n\n")
	if snap.SessionID != "" {
		fmt.Fprintf(&b, "Session `%s` (%s)\n\n", snap.SessionID, snap.Mode)
	}

	b.WriteString("| Metric | Value |\n|---|---|\n")
	switch {
	case snap.Result != nil:
		r := snap.Result.Meta
		fmt.Fprintf(&b, "| Iterations | %d |\n", r.TotalIterations)
		fmt.Fprintf(&b, "| CL | %.4f |\n", r.FinalCL)
		fmt.Fprintf(&b, "| CD | %.5f |\n", r.FinalCD)
		fmt.Fprintf(&b, "| L/D | %.2f |\n", r.FinalCLCD)
		fmt.Fprintf(&b, "| Drag | %.2f N |\n", r.FinalDrag)
		fmt.Fprintf(&b, "| Loss | %.4g |\n", r.FinalLoss)
		if first := firstCLCD(snap.History); first != 0 {
			fmt.Fprintf(&b, "| L/D gain | %+.1f%% |\n", (r.FinalCLCD-first)/first*100)
		}
	case snap.Metrics != nil:
		m := snap.Metrics
		fmt.Fprintf(&b, "| Iterations | %d |\n", m.Iteration)
		fmt.Fprintf(&b, "| CL | %.4f |\n", m.CL)
		fmt.Fprintf(&b, "| CD | %.5f |\n", m.CD)
		fmt.Fprintf(&b, "| L/D | %.2f |\n", m.CLCD)
		fmt.Fprintf(&b, "| Lift | %.2f N |\n", m.LiftForce)
		fmt.Fprintf(&b, "| Drag | %.2f N |\n", m.DragForce)
	default:
		b.WriteString("| Iterations | 0 |\n")
	}

	if snap.Result != nil && len(snap.Result.Shape.CSTUpper) > 0 {
		fmt.Fprintf(&b, "\nFinal CST upper: `%s`\n", formatCoeffs(snap.Result.Shape.CSTUpper))
		fmt.Fprintf(&b, "\nFinal CST lower: `%s`\n", formatCoeffs(snap.Result.Shape.CSTLower))
	}
	return b.String()
}

// Render renders the report for a terminal of the given width. style is a
// glamour standard style name such as "dark" or "notty".
func Render(snap solver.Snapshot, width int, style string) (string, error) {
	if style == "" {
		style = "dark"
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(style),
		glamour.WithWordWrap(max(20, width-4)),
	)
	if err != nil {
		return "", err
	}
	return r.Render(Markdown(snap))
}

func firstCLCD(h []solver.IterationMetrics) float64 {
	if len(h) == 0 {
		return 0
	}
	return h[0].CLCD
}

func formatCoeffs(v []float64) string {
	parts := make([]string, len(v))
	for i, x := range v {
		parts[i] = fmt.Sprintf("%.4f", x)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
