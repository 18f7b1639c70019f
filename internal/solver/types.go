// Package solver provides the streaming client for the remote airfoil solver:
// session negotiation over HTTP, result streaming over WebSocket, frame
// decoding, and the connection state machine that ties them together.
// Types mirror the solver wire protocol.
package solver

import (
	"encoding/json"
	"fmt"
)

// Mode selects which solver pipeline a session runs.
type Mode string

const (
	ModeSimulation   Mode = "simulation"
	ModeOptimization Mode = "optimization"
)

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool {
	return m == ModeSimulation || m == ModeOptimization
}

// Fidelity is the solver grid-resolution tier.
type Fidelity string

const (
	FidelityLow    Fidelity = "low"
	FidelityMedium Fidelity = "medium"
	FidelityHigh   Fidelity = "high"
	FidelityUltra  Fidelity = "ultra"
)

// Valid reports whether f is one of the four solver tiers.
func (f Fidelity) Valid() bool {
	switch f {
	case FidelityLow, FidelityMedium, FidelityHigh, FidelityUltra:
		return true
	}
	return false
}

// SimulationParams are the time-stepping parameters of a simulation run.
type SimulationParams struct {
	SimTime     float64
	Dt          float64
	StreamEvery int
	StreamFPS   int
}

// OptimizationParams are the iteration parameters of an optimization run.
type OptimizationParams struct {
	NumIterations int
	LearningRate  float64
	NumSimSteps   int
	MinThickness  float64
	MaxThickness  float64
}

// Request is a canonical, fully-defaulted session request. Build one with
// Normalize; exactly one of Simulation and Optimization is set, matching Mode.
type Request struct {
	Mode           Mode
	UserID         string
	Fidelity       Fidelity
	ChordLength    float64
	CSTUpper       []float64
	CSTLower       []float64
	InflowVelocity float64
	AngleOfAttack  float64

	Simulation   *SimulationParams
	Optimization *OptimizationParams

	// RunID distinguishes otherwise identical requests. It takes part in the
	// fingerprint but is never sent to the solver.
	RunID string
}

type simulationBody struct {
	UserID         string    `json:"user_id"`
	Fidelity       Fidelity  `json:"fidelity"`
	ChordLength    float64   `json:"chord_length"`
	CSTUpper       []float64 `json:"cst_upper"`
	CSTLower       []float64 `json:"cst_lower"`
	SimTime        float64   `json:"sim_time"`
	Dt             float64   `json:"dt"`
	InflowVelocity float64   `json:"inflow_velocity"`
	AngleOfAttack  float64   `json:"angle_of_attack"`
	StreamEvery    int       `json:"stream_every"`
	StreamFPS      int       `json:"stream_fps"`
}

type optimizationBody struct {
	UserID         string    `json:"user_id"`
	Fidelity       Fidelity  `json:"fidelity"`
	ChordLength    float64   `json:"chord_length"`
	CSTUpper       []float64 `json:"cst_upper"`
	CSTLower       []float64 `json:"cst_lower"`
	NumIterations  int       `json:"num_iterations"`
	LearningRate   float64   `json:"learning_rate"`
	NumSimSteps    int       `json:"num_sim_steps"`
	MinThickness   float64   `json:"min_thickness"`
	MaxThickness   float64   `json:"max_thickness"`
	InflowVelocity float64   `json:"inflow_velocity"`
	AngleOfAttack  float64   `json:"angle_of_attack"`
}

// MarshalJSON encodes the mode-specific request body sent to the solver.
func (r *Request) MarshalJSON() ([]byte, error) {
	switch r.Mode {
	case ModeSimulation:
		if r.Simulation == nil {
			return nil, fmt.Errorf("simulation request without simulation params")
		}
		return json.Marshal(simulationBody{
			UserID:         r.UserID,
			Fidelity:       r.Fidelity,
			ChordLength:    r.ChordLength,
			CSTUpper:       r.CSTUpper,
			CSTLower:       r.CSTLower,
			SimTime:        r.Simulation.SimTime,
			Dt:             r.Simulation.Dt,
			InflowVelocity: r.InflowVelocity,
			AngleOfAttack:  r.AngleOfAttack,
			StreamEvery:    r.Simulation.StreamEvery,
			StreamFPS:      r.Simulation.StreamFPS,
		})
	case ModeOptimization:
		if r.Optimization == nil {
			return nil, fmt.Errorf("optimization request without optimization params")
		}
		return json.Marshal(optimizationBody{
			UserID:         r.UserID,
			Fidelity:       r.Fidelity,
			ChordLength:    r.ChordLength,
			CSTUpper:       r.CSTUpper,
			CSTLower:       r.CSTLower,
			NumIterations:  r.Optimization.NumIterations,
			LearningRate:   r.Optimization.LearningRate,
			NumSimSteps:    r.Optimization.NumSimSteps,
			MinThickness:   r.Optimization.MinThickness,
			MaxThickness:   r.Optimization.MaxThickness,
			InflowVelocity: r.InflowVelocity,
			AngleOfAttack:  r.AngleOfAttack,
		})
	}
	return nil, fmt.Errorf("unknown mode %q", r.Mode)
}

// Handle identifies a negotiated solver session. A new configuration always
// yields a new Handle.
type Handle struct {
	SessionID string          `json:"session_id"`
	Config    json.RawMessage `json:"config"`
}

// --- WebSocket frame types ---

// FrameType identifies the kind of WebSocket frame.
type FrameType string

const (
	FrameIteration FrameType = "iteration"
	FrameComplete  FrameType = "complete"
	FrameWarning   FrameType = "warning"
)

// IterationMetrics are the scalar results of one solver step.
type IterationMetrics struct {
	Iteration       int     `json:"iteration"`
	TotalIterations int     `json:"total_iterations"`
	Loss            float64 `json:"loss"`
	CL              float64 `json:"cl"`
	CD              float64 `json:"cd"`
	CLCD            float64 `json:"cl_cd"`
	LiftForce       float64 `json:"lift_force"`
	DragForce       float64 `json:"drag_force"`
}

// FinalMetrics are the terminal results carried by a complete frame.
type FinalMetrics struct {
	TotalIterations int     `json:"total_iterations"`
	FinalCL         float64 `json:"final_cl"`
	FinalCD         float64 `json:"final_cd"`
	FinalCLCD       float64 `json:"final_cl_cd"`
	FinalDrag       float64 `json:"final_drag"`
	FinalLoss       float64 `json:"final_loss"`
}

// Geometry is a shape snapshot: coefficients plus sampled surface coordinates.
type Geometry struct {
	CSTUpper      []float64 `json:"cst_upper"`
	CSTLower      []float64 `json:"cst_lower"`
	AirfoilX      []float64 `json:"airfoil_x,omitempty"`
	AirfoilYUpper []float64 `json:"airfoil_y_upper,omitempty"`
	AirfoilYLower []float64 `json:"airfoil_y_lower,omitempty"`
}

func (g Geometry) clone() Geometry {
	return Geometry{
		CSTUpper:      cloneFloats(g.CSTUpper),
		CSTLower:      cloneFloats(g.CSTLower),
		AirfoilX:      cloneFloats(g.AirfoilX),
		AirfoilYUpper: cloneFloats(g.AirfoilYUpper),
		AirfoilYLower: cloneFloats(g.AirfoilYLower),
	}
}

func cloneFloats(v []float64) []float64 {
	if v == nil {
		return nil
	}
	out := make([]float64, len(v))
	copy(out, v)
	return out
}
