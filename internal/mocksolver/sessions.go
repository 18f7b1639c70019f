package mocksolver

import (
	"sync"
	"time"

	"github.com/airfoil-studio/solverstream/internal/solver"
)

// sessionRequest is the union of both session request bodies.
type sessionRequest struct {
	UserID         string    `json:"user_id"`
	Fidelity       string    `json:"fidelity"`
	ChordLength    float64   `json:"chord_length"`
	CSTUpper       []float64 `json:"cst_upper"`
	CSTLower       []float64 `json:"cst_lower"`
	InflowVelocity float64   `json:"inflow_velocity"`
	AngleOfAttack  float64   `json:"angle_of_attack"`

	SimTime     float64 `json:"sim_time"`
	Dt          float64 `json:"dt"`
	StreamEvery int     `json:"stream_every"`
	StreamFPS   int     `json:"stream_fps"`

	NumIterations int     `json:"num_iterations"`
	LearningRate  float64 `json:"learning_rate"`
	NumSimSteps   int     `json:"num_sim_steps"`
	MinThickness  float64 `json:"min_thickness"`
	MaxThickness  float64 `json:"max_thickness"`
}

// Session is one negotiated run.
type Session struct {
	ID        string
	Mode      solver.Mode
	Request   sessionRequest
	Frames    int // iteration frames to stream
	CreatedAt time.Time
	Streams   int
}

type sessionTable struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

func newSessionTable() *sessionTable {
	return &sessionTable{sessions: make(map[string]*Session)}
}

func (t *sessionTable) add(s *Session) {
	t.mu.Lock()
	defer t.mu.Unlock()
	cp := *s
	t.sessions[s.ID] = &cp
}

func (t *sessionTable) get(id string) (*Session, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	s, ok := t.sessions[id]
	if !ok {
		return nil, false
	}
	cp := *s
	return &cp, true
}

// attach records a stream opening against id.
func (t *sessionTable) attach(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if s, ok := t.sessions[id]; ok {
		s.Streams++
	}
}

func (t *sessionTable) count() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.sessions)
}

// frameCount returns how many iteration frames a session streams.
func frameCount(mode solver.Mode, req sessionRequest, limit int) int {
	var n int
	switch mode {
	case solver.ModeOptimization:
		n = req.NumIterations
		if n <= 0 {
			n = solver.DefaultNumIterations
		}
	default:
		simTime, dt, every := req.SimTime, req.Dt, req.StreamEvery
		if simTime <= 0 {
			simTime = solver.DefaultSimTime
		}
		if dt <= 0 {
			dt = solver.DefaultDt
		}
		if every <= 0 {
			every = solver.DefaultStreamEvery
		}
		n = int(simTime/dt+0.5) / every
	}
	if n < 1 {
		n = 1
	}
	if limit > 0 && n > limit {
		n = limit
	}
	return n
}
