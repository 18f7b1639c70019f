package mocksolver

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/airfoil-studio/solverstream/internal/solver"
)

type clientHarness struct {
	mock  *Server
	mgr   *solver.Manager
	guard *solver.Guard
}

func newClientHarness(t *testing.T, opts Options, delay time.Duration) *clientHarness {
	t.Helper()
	if opts.FrameInterval == 0 {
		opts.FrameInterval = 5 * time.Millisecond
	}
	mock := New(opts)
	hs := httptest.NewServer(mock.Handler())
	t.Cleanup(hs.Close)
	t.Cleanup(mock.Close)

	mgr := solver.NewManager(
		solver.NewHTTPNegotiator(hs.URL, 2*time.Second, nil),
		solver.Options{
			WSBase:         solver.WSBaseFromHTTP(hs.URL),
			ReconnectDelay: delay,
		},
	)
	t.Cleanup(mgr.Shutdown)
	return &clientHarness{mock: mock, mgr: mgr, guard: solver.NewGuard(mgr, nil)}
}

func (h *clientHarness) waitState(t *testing.T, want solver.ConnectionState) solver.Snapshot {
	t.Helper()
	var snap solver.Snapshot
	require.Eventually(t, func() bool {
		snap = h.mgr.Snapshot()
		return snap.State == want
	}, 5*time.Second, 5*time.Millisecond, "waiting for %s", want)
	return snap
}

func TestEndToEndOptimization(t *testing.T) {
	h := newClientHarness(t, Options{}, time.Second)

	started, err := h.guard.Submit(solver.Params{
		Mode:          solver.ModeOptimization,
		CSTUpper:      []float64{0.18, 0.22, 0.2},
		CSTLower:      []float64{-0.1, -0.08, -0.06},
		NumIterations: 6,
	})
	require.NoError(t, err)
	require.True(t, started)

	snap := h.waitState(t, solver.StateCompleted)
	assert.True(t, snap.IsComplete)
	assert.Len(t, snap.History, 6)
	require.NotNil(t, snap.Result)
	assert.Equal(t, 6, snap.Result.Meta.TotalIterations)
	assert.Equal(t, []float64{0.18, 0.22, 0.2}, snap.Result.InitialShape.CSTUpper)
	assert.Equal(t, 1, h.mock.Sessions())
}

func TestEndToEndSimulationCompletesOnClose(t *testing.T) {
	h := newClientHarness(t, Options{}, time.Second)

	_, err := h.guard.Submit(solver.Params{
		CSTUpper:    []float64{0.2, 0.25},
		CSTLower:    []float64{-0.1, -0.1},
		SimTime:     0.2,
		Dt:          0.01,
		StreamEvery: 5,
	})
	require.NoError(t, err)

	snap := h.waitState(t, solver.StateCompleted)
	assert.Len(t, snap.History, 4)
	assert.Nil(t, snap.Result)
}

func TestEndToEndDroppedStreamRenegotiates(t *testing.T) {
	h := newClientHarness(t, Options{DropAfter: 2}, 20*time.Millisecond)

	_, err := h.guard.Submit(solver.Params{
		Mode:          solver.ModeOptimization,
		CSTUpper:      []float64{0.2},
		CSTLower:      []float64{-0.1},
		NumIterations: 10,
	})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return h.mock.Sessions() >= 3
	}, 5*time.Second, 5*time.Millisecond)
	assert.GreaterOrEqual(t, h.mgr.Snapshot().Sessions, 3)

	h.mgr.Cancel()
	snap := h.mgr.Snapshot()
	assert.Equal(t, solver.StateClosed, snap.State)
	assert.False(t, snap.Connected)
}

func TestEndToEndRejectedNegotiation(t *testing.T) {
	h := newClientHarness(t, Options{RejectStatus: http.StatusServiceUnavailable}, 20*time.Millisecond)

	_, err := h.guard.Submit(solver.Params{CSTUpper: []float64{0.2}, CSTLower: []float64{-0.1}})
	require.NoError(t, err)

	snap := h.waitState(t, solver.StateErrored)
	assert.Equal(t, "solver unavailable", snap.Error)

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 1, h.mgr.Snapshot().Sessions)
}

func TestEndToEndCancelMidStream(t *testing.T) {
	h := newClientHarness(t, Options{FrameInterval: 20 * time.Millisecond}, time.Second)

	_, err := h.guard.Submit(solver.Params{
		Mode:          solver.ModeOptimization,
		CSTUpper:      []float64{0.2},
		CSTLower:      []float64{-0.1},
		NumIterations: 500,
	})
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return len(h.mgr.Snapshot().History) >= 2
	}, 5*time.Second, 5*time.Millisecond)

	h.guard.Cancel()
	assert.Equal(t, solver.StateClosed, h.mgr.Snapshot().State)
	require.Eventually(t, func() bool { return h.mock.ActiveStreams() == 0 }, 5*time.Second, 5*time.Millisecond)
}
