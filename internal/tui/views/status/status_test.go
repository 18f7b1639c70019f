package status

import (
	"strings"
	"testing"

	"github.com/airfoil-studio/solverstream/internal/solver"
)

func TestViewShowsStateAndSession(t *testing.T) {
	m := New()
	m.Width = 100
	m.SetSnapshot(solver.Snapshot{
		State:     solver.StateOpen,
		Mode:      solver.ModeOptimization,
		SessionID: "3f2a9c1e-5d7b-4c3a-9e1f-2b8d7c6a5e4f",
		Sessions:  2,
	})

	v := m.View()
	for _, want := range []string{"Streaming", "optimization", "session 3f2a9c1e", "2 sessions"} {
		if !strings.Contains(v, want) {
			t.Errorf("status bar missing %q:\n%s", want, v)
		}
	}
}

func TestViewShowsError(t *testing.T) {
	m := New()
	m.Width = 100
	m.SetSnapshot(solver.Snapshot{State: solver.StateErrored, Error: "WebSocket connection error"})

	v := m.View()
	if !strings.Contains(v, "WebSocket connection error") {
		t.Errorf("error not rendered:\n%s", v)
	}
	if strings.Contains(v, "session") {
		t.Error("no session id should be shown before negotiation")
	}
}

func TestStateLabels(t *testing.T) {
	tests := map[solver.ConnectionState]string{
		solver.StateIdle:       "Idle",
		solver.StateConnecting: "Connecting...",
		solver.StateCompleted:  "Complete",
		solver.StateClosed:     "Closed",
	}
	for state, want := range tests {
		if got := stateLabel(state); got != want {
			t.Errorf("stateLabel(%v) = %q, want %q", state, got, want)
		}
	}
}
