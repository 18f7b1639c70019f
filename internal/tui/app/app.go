// Package app is the root Bubble Tea model of the airfoil watch TUI. It
// submits the run configuration through the change guard and redraws from
// the streaming client's published snapshots.
package app

import (
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"

	"github.com/airfoil-studio/solverstream/internal/solver"
	"github.com/airfoil-studio/solverstream/internal/tui/theme"
	"github.com/airfoil-studio/solverstream/internal/tui/views/dashboard"
	"github.com/airfoil-studio/solverstream/internal/tui/views/debug"
	"github.com/airfoil-studio/solverstream/internal/tui/views/status"
	"github.com/airfoil-studio/solverstream/internal/tui/views/summary"
)

// Source is the part of solver.Manager the TUI watches.
type Source interface {
	Snapshot() solver.Snapshot
	Updates() <-chan struct{}
}

// Submitter is the part of solver.Guard the TUI drives.
type Submitter interface {
	Submit(p solver.Params) (started bool, err error)
	Cancel()
}

type (
	snapshotMsg  struct{ snap solver.Snapshot }
	submittedMsg struct {
		runID   string
		started bool
		err     error
	}
	cancelledMsg struct{}
	frameMsg     struct{}
)

// Model is the root Bubble Tea model.
type Model struct {
	src    Source
	guard  Submitter
	params solver.Params

	keys   KeyMap
	width  int
	height int

	statusBar status.Model
	dashboard dashboard.Model
	log       debug.Model
	showLog   bool

	snap         solver.Snapshot
	report       string
	summaryStyle string
	animating    bool
	newRunID     func() string
}

// New creates the root model. params is submitted on Init.
func New(src Source, guard Submitter, params solver.Params) Model {
	return Model{
		src:          src,
		guard:        guard,
		params:       params,
		keys:         DefaultKeyMap(),
		statusBar:    status.New(),
		dashboard:    dashboard.New(),
		log:          debug.New(),
		summaryStyle: "dark",
		newRunID:     uuid.NewString,
	}
}

// WithSummaryStyle selects the glamour style of the completion report.
func (m Model) WithSummaryStyle(style string) Model {
	m.summaryStyle = style
	return m
}

// Init submits the initial configuration and starts listening for updates.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.submit(m.params), m.waitForUpdate())
}

func (m Model) submit(p solver.Params) tea.Cmd {
	guard := m.guard
	return func() tea.Msg {
		started, err := guard.Submit(p)
		return submittedMsg{runID: p.RunID, started: started, err: err}
	}
}

// cancel runs off the update loop; closing the socket can wait on the
// close handshake.
func (m Model) cancel() tea.Cmd {
	guard := m.guard
	return func() tea.Msg {
		guard.Cancel()
		return cancelledMsg{}
	}
}

func (m Model) waitForUpdate() tea.Cmd {
	src := m.src
	return func() tea.Msg {
		<-src.Updates()
		return snapshotMsg{snap: src.Snapshot()}
	}
}

func animate() tea.Cmd {
	return tea.Tick(time.Second/dashboard.FPS, func(time.Time) tea.Msg { return frameMsg{} })
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.statusBar.Width = msg.Width
		m.dashboard.Width = msg.Width
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case submittedMsg:
		switch {
		case msg.err != nil:
			m.log.Add(debug.KindError, "submit: %v", msg.err)
			m.statusBar.Error = msg.err.Error()
		case !msg.started:
			m.log.Add(debug.KindRun, "configuration unchanged, keeping current session")
		default:
			m.log.Add(debug.KindRun, "run submitted")
		}
		return m, nil

	case cancelledMsg:
		m.log.Add(debug.KindRun, "cancelled by user")
		return m, nil

	case snapshotMsg:
		m.apply(msg.snap)
		cmds := []tea.Cmd{m.waitForUpdate()}
		if !m.animating && !m.dashboard.Settled() {
			m.animating = true
			cmds = append(cmds, animate())
		}
		return m, tea.Batch(cmds...)

	case frameMsg:
		if m.dashboard.Animate() {
			return m, animate()
		}
		m.animating = false
		return m, nil
	}

	return m, nil
}

// apply records transitions in the event log and refreshes the views.
func (m *Model) apply(snap solver.Snapshot) {
	prev := m.snap
	if snap.SessionID != "" && snap.SessionID != prev.SessionID {
		m.log.Add(debug.KindSession, "session %s (%s)", snap.SessionID, snap.Mode)
	}
	if snap.State != prev.State {
		m.log.Add(debug.KindState, "%s -> %s", prev.State, snap.State)
	}
	if snap.Error != "" && snap.Error != prev.Error {
		m.log.Add(debug.KindError, "%s", snap.Error)
	}

	if snap.State == solver.StateCompleted && prev.State != solver.StateCompleted {
		out, err := summary.Render(snap, m.width, m.summaryStyle)
		if err != nil {
			m.log.Add(debug.KindError, "render summary: %v", err)
			out = summary.Markdown(snap)
		}
		m.report = out
	} else if snap.State != solver.StateCompleted {
		m.report = ""
	}

	m.snap = snap
	m.statusBar.SetSnapshot(snap)
	m.dashboard.SetSnapshot(snap)
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.Quit) {
		return m, tea.Quit
	}

	if m.showLog {
		switch {
		case key.Matches(msg, m.keys.Escape), key.Matches(msg, m.keys.Log):
			m.showLog = false
		case key.Matches(msg, m.keys.Up):
			m.log.Scroll(1)
		case key.Matches(msg, m.keys.Down):
			m.log.Scroll(-1)
		}
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Rerun):
		m.params.RunID = m.newRunID()
		m.log.Add(debug.KindRun, "rerun %s", m.params.RunID)
		return m, m.submit(m.params)

	case key.Matches(msg, m.keys.Cancel):
		return m, m.cancel()

	case key.Matches(msg, m.keys.Log):
		m.showLog = true
		return m, nil
	}

	return m, nil
}

// View renders the full TUI.
func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}

	if m.showLog {
		return lipgloss.JoinVertical(lipgloss.Left,
			m.statusBar.View(),
			m.log.View(m.width, m.height-3),
		)
	}

	sections := []string{
		m.statusBar.View(),
		m.dashboard.View(),
	}
	if m.report != "" {
		sections = append(sections, m.report)
	}
	sections = append(sections,
		theme.StyleDimmed.Render("  r:rerun  c:cancel  d:event log  q:quit"))

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}
