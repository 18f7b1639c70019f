package mocksolver

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/airfoil-studio/solverstream/internal/solver"
)

func newTestServer(t *testing.T, opts Options) (*Server, *httptest.Server) {
	t.Helper()
	if opts.FrameInterval == 0 {
		opts.FrameInterval = 5 * time.Millisecond
	}
	s := New(opts)
	hs := httptest.NewServer(s.Handler())
	t.Cleanup(hs.Close)
	t.Cleanup(s.Close)
	return s, hs
}

func post(t *testing.T, url, body string) (int, map[string]any) {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.Unmarshal(data, &out), string(data))
	return resp.StatusCode, out
}

const optimizeBody = `{"user_id":"u1","fidelity":"low","chord_length":1,"cst_upper":[0.18,0.22,0.2],"cst_lower":[-0.1,-0.08,-0.06],"num_iterations":4,"learning_rate":0.005,"num_sim_steps":50,"min_thickness":0.08,"max_thickness":0.2,"inflow_velocity":10,"angle_of_attack":5}`

func dial(t *testing.T, hs *httptest.Server, path string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(hs.URL, "http") + path
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readFrames(t *testing.T, conn *websocket.Conn) ([]map[string]any, error) {
	t.Helper()
	var frames []map[string]any
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return frames, err
		}
		var f map[string]any
		require.NoError(t, json.Unmarshal(data, &f))
		frames = append(frames, f)
	}
}

func TestNegotiateIssuesSession(t *testing.T) {
	s, hs := newTestServer(t, Options{})

	status, body := post(t, hs.URL+"/optimize/sessions", optimizeBody)
	assert.Equal(t, http.StatusOK, status)
	id, _ := body["session_id"].(string)
	assert.Len(t, id, 36)
	assert.NotNil(t, body["config"])

	status, body = post(t, hs.URL+"/optimize/sessions", optimizeBody)
	assert.Equal(t, http.StatusOK, status)
	assert.NotEqual(t, id, body["session_id"])
	assert.Equal(t, 2, s.Sessions())
}

func TestNegotiateValidation(t *testing.T) {
	_, hs := newTestServer(t, Options{})

	status, body := post(t, hs.URL+"/sessions", `{"fidelity":"extreme"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	detail, ok := body["detail"].([]any)
	require.True(t, ok)
	assert.Len(t, detail, 3)

	resp, err := http.Post(hs.URL+"/sessions", "application/json", bytes.NewBufferString("{"))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestNegotiateReject(t *testing.T) {
	s, hs := newTestServer(t, Options{RejectStatus: http.StatusServiceUnavailable})
	status, body := post(t, hs.URL+"/sessions", optimizeBody)
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.Equal(t, "solver unavailable", body["detail"])
	assert.Zero(t, s.Sessions())
}

func TestStreamUnknownSession(t *testing.T) {
	_, hs := newTestServer(t, Options{})
	url := "ws" + strings.TrimPrefix(hs.URL, "http") + "/ws/missing"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestStreamModeMismatch(t *testing.T) {
	_, hs := newTestServer(t, Options{})
	_, body := post(t, hs.URL+"/optimize/sessions", optimizeBody)

	url := "ws" + strings.TrimPrefix(hs.URL, "http") + "/ws/" + body["session_id"].(string)
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestOptimizationStreamEndsWithComplete(t *testing.T) {
	_, hs := newTestServer(t, Options{})
	_, body := post(t, hs.URL+"/optimize/sessions", optimizeBody)
	conn := dial(t, hs, "/optimize/ws/"+body["session_id"].(string))

	frames, err := readFrames(t, conn)
	var ce *websocket.CloseError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, websocket.CloseNormalClosure, ce.Code)

	require.Len(t, frames, 5)
	for i, f := range frames[:4] {
		assert.Equal(t, "iteration", f["type"])
		meta := f["meta"].(map[string]any)
		assert.EqualValues(t, i+1, meta["iteration"])
		assert.EqualValues(t, 4, meta["total_iterations"])
	}
	assert.Equal(t, "complete", frames[4]["type"])
	assert.Contains(t, frames[4], "initial_shape")
}

func TestSimulationStreamEndsWithCleanClose(t *testing.T) {
	_, hs := newTestServer(t, Options{})
	_, body := post(t, hs.URL+"/sessions", `{"cst_upper":[0.2],"cst_lower":[-0.1],"sim_time":0.1,"dt":0.01,"stream_every":5}`)
	conn := dial(t, hs, "/ws/"+body["session_id"].(string))

	frames, err := readFrames(t, conn)
	var ce *websocket.CloseError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, websocket.CloseNormalClosure, ce.Code)
	require.Len(t, frames, 2)
	for _, f := range frames {
		assert.Equal(t, "iteration", f["type"])
	}
}

func TestDropAfterClosesWithoutHandshake(t *testing.T) {
	_, hs := newTestServer(t, Options{DropAfter: 2})
	_, body := post(t, hs.URL+"/optimize/sessions", optimizeBody)
	conn := dial(t, hs, "/optimize/ws/"+body["session_id"].(string))

	frames, err := readFrames(t, conn)
	assert.Len(t, frames, 2)
	var ce *websocket.CloseError
	if assert.ErrorAs(t, err, &ce) {
		assert.Equal(t, websocket.CloseAbnormalClosure, ce.Code)
	}
}

func TestWarningsAreInterleaved(t *testing.T) {
	_, hs := newTestServer(t, Options{Warnings: true})
	body := strings.Replace(optimizeBody, `"num_iterations":4`, `"num_iterations":20`, 1)
	_, resp := post(t, hs.URL+"/optimize/sessions", body)
	conn := dial(t, hs, "/optimize/ws/"+resp["session_id"].(string))

	frames, _ := readFrames(t, conn)
	var warnings []float64
	for _, f := range frames {
		if f["type"] == "warning" {
			warnings = append(warnings, f["iteration"].(float64))
		}
	}
	assert.Equal(t, []float64{10, 20}, warnings)
}

func TestHealthAndMetrics(t *testing.T) {
	_, hs := newTestServer(t, Options{})
	post(t, hs.URL+"/sessions", `{"cst_upper":[0.2],"cst_lower":[-0.1]}`)

	resp, err := http.Get(hs.URL + "/healthz")
	require.NoError(t, err)
	var h health
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&h))
	resp.Body.Close()
	assert.Equal(t, "ok", h.Status)
	assert.Equal(t, 1, h.Sessions)

	resp, err = http.Get(hs.URL + "/metrics")
	require.NoError(t, err)
	data, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Contains(t, string(data), `mocksolver_negotiations_total{mode="simulation",outcome="ok"} 1`)
}

func TestFrameCount(t *testing.T) {
	assert.Equal(t, solver.DefaultNumIterations, frameCount(solver.ModeOptimization, sessionRequest{}, 0))
	assert.Equal(t, 3, frameCount(solver.ModeOptimization, sessionRequest{NumIterations: 3}, 0))
	assert.Equal(t, 40, frameCount(solver.ModeSimulation, sessionRequest{}, 0))
	assert.Equal(t, 10, frameCount(solver.ModeSimulation, sessionRequest{}, 10))
	assert.Equal(t, 1, frameCount(solver.ModeSimulation, sessionRequest{SimTime: 0.01, Dt: 0.01, StreamEvery: 5}, 0))
}
