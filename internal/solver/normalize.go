package solver

import (
	"math"
	"strings"
)

// Params is caller-supplied, partially-filled session configuration. Zero
// values are replaced with defaults by Normalize.
type Params struct {
	Mode        Mode      `yaml:"mode" json:"mode"`
	UserID      string    `yaml:"user_id" json:"user_id"`
	MeshDensity string    `yaml:"mesh_density" json:"mesh_density"`
	Fidelity    Fidelity  `yaml:"fidelity" json:"fidelity"`
	ChordLength float64   `yaml:"chord_length" json:"chord_length"`
	CSTUpper    []float64 `yaml:"cst_upper" json:"cst_upper"`
	CSTLower    []float64 `yaml:"cst_lower" json:"cst_lower"`

	// Pointers so that an explicit zero survives defaulting.
	InflowVelocity *float64 `yaml:"inflow_velocity" json:"inflow_velocity"`
	AngleOfAttack  *float64 `yaml:"angle_of_attack" json:"angle_of_attack"`

	SimTime     float64 `yaml:"sim_time" json:"sim_time"`
	Dt          float64 `yaml:"dt" json:"dt"`
	StreamEvery int     `yaml:"stream_every" json:"stream_every"`
	StreamFPS   int     `yaml:"stream_fps" json:"stream_fps"`

	NumIterations int     `yaml:"num_iterations" json:"num_iterations"`
	LearningRate  float64 `yaml:"learning_rate" json:"learning_rate"`
	NumSimSteps   int     `yaml:"num_sim_steps" json:"num_sim_steps"`
	MinThickness  float64 `yaml:"min_thickness" json:"min_thickness"`
	MaxThickness  float64 `yaml:"max_thickness" json:"max_thickness"`

	RunID string `yaml:"run_id" json:"run_id"`
}

// Defaults applied by Normalize.
const (
	DefaultMeshDensity    = "medium"
	DefaultChordLength    = 1.0
	DefaultInflowVelocity = 10.0
	DefaultAngleOfAttack  = 5.0
	DefaultSimTime        = 2.0
	DefaultDt             = 0.01
	DefaultStreamEvery    = 5
	DefaultStreamFPS      = 20
	DefaultNumIterations  = 50
	DefaultLearningRate   = 0.005
	DefaultNumSimSteps    = 200
	DefaultMinThickness   = 0.08
	DefaultMaxThickness   = 0.2
)

// meshFidelity maps user-facing mesh-density labels to solver fidelity.
var meshFidelity = map[string]Fidelity{
	"coarse":    FidelityLow,
	"low":       FidelityLow,
	"medium":    FidelityMedium,
	"fine":      FidelityHigh,
	"high":      FidelityHigh,
	"very_fine": FidelityUltra,
	"very fine": FidelityUltra,
	"ultra":     FidelityUltra,
}

// FidelityForMesh returns the fidelity tier for a mesh-density label.
func FidelityForMesh(label string) (Fidelity, bool) {
	f, ok := meshFidelity[strings.ToLower(strings.TrimSpace(label))]
	return f, ok
}

// Normalize builds a canonical Request from p. An explicit Fidelity wins over
// MeshDensity. The input is not modified and the result shares no slices
// with it.
func Normalize(p Params) (*Request, error) {
	mode := p.Mode
	if mode == "" {
		mode = ModeSimulation
	}
	if !mode.Valid() {
		return nil, &ConfigError{Field: "mode", Reason: "must be simulation or optimization, got " + string(mode)}
	}

	if len(p.CSTUpper) == 0 {
		return nil, &ConfigError{Field: "cst_upper", Reason: "coefficients are required"}
	}
	if len(p.CSTLower) == 0 {
		return nil, &ConfigError{Field: "cst_lower", Reason: "coefficients are required"}
	}
	if err := checkFinite("cst_upper", p.CSTUpper); err != nil {
		return nil, err
	}
	if err := checkFinite("cst_lower", p.CSTLower); err != nil {
		return nil, err
	}

	fidelity := p.Fidelity
	if fidelity == "" {
		label := p.MeshDensity
		if label == "" {
			label = DefaultMeshDensity
		}
		f, ok := FidelityForMesh(label)
		if !ok {
			return nil, &ConfigError{Field: "mesh_density", Reason: "unknown label " + label}
		}
		fidelity = f
	}
	if !fidelity.Valid() {
		return nil, &ConfigError{Field: "fidelity", Reason: "must be one of low, medium, high, ultra, got " + string(fidelity)}
	}

	req := &Request{
		Mode:           mode,
		UserID:         p.UserID,
		Fidelity:       fidelity,
		ChordLength:    orFloat(p.ChordLength, DefaultChordLength),
		CSTUpper:       cloneFloats(p.CSTUpper),
		CSTLower:       cloneFloats(p.CSTLower),
		InflowVelocity: DefaultInflowVelocity,
		AngleOfAttack:  DefaultAngleOfAttack,
		RunID:          p.RunID,
	}
	if p.InflowVelocity != nil {
		req.InflowVelocity = *p.InflowVelocity
	}
	if p.AngleOfAttack != nil {
		req.AngleOfAttack = *p.AngleOfAttack
	}
	if err := checkFinite("inflow_velocity", []float64{req.InflowVelocity}); err != nil {
		return nil, err
	}
	if err := checkFinite("angle_of_attack", []float64{req.AngleOfAttack}); err != nil {
		return nil, err
	}

	switch mode {
	case ModeSimulation:
		req.Simulation = &SimulationParams{
			SimTime:     orFloat(p.SimTime, DefaultSimTime),
			Dt:          orFloat(p.Dt, DefaultDt),
			StreamEvery: orInt(p.StreamEvery, DefaultStreamEvery),
			StreamFPS:   orInt(p.StreamFPS, DefaultStreamFPS),
		}
	case ModeOptimization:
		opt := &OptimizationParams{
			NumIterations: orInt(p.NumIterations, DefaultNumIterations),
			LearningRate:  orFloat(p.LearningRate, DefaultLearningRate),
			NumSimSteps:   orInt(p.NumSimSteps, DefaultNumSimSteps),
			MinThickness:  orFloat(p.MinThickness, DefaultMinThickness),
			MaxThickness:  orFloat(p.MaxThickness, DefaultMaxThickness),
		}
		if opt.MinThickness > opt.MaxThickness {
			return nil, &ConfigError{Field: "min_thickness", Reason: "exceeds max_thickness"}
		}
		req.Optimization = opt
	}

	return req, nil
}

func checkFinite(field string, v []float64) error {
	for _, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return &ConfigError{Field: field, Reason: "must be finite"}
		}
	}
	return nil
}

func orFloat(v, def float64) float64 {
	if v == 0 {
		return def
	}
	return v
}

func orInt(v, def int) int {
	if v == 0 {
		return def
	}
	return v
}
