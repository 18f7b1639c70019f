package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/airfoil-studio/solverstream/internal/solver"
)

// paramFlags are the run configuration flags shared by run and watch. They
// override values read from --params.
type paramFlags struct {
	file        string
	mode        string
	mesh        string
	fidelity    string
	userID      string
	runID       string
	cstUpper    []float64
	cstLower    []float64
	aoa         float64
	velocity    float64
	chord       float64
	iterations  int
	metricsAddr string
}

func (f *paramFlags) register(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringVarP(&f.file, "params", "p", "", "YAML or JSON file with the run configuration")
	fs.StringVar(&f.mode, "mode", "", "simulation or optimization")
	fs.StringVar(&f.mesh, "mesh", "", "mesh density (coarse, medium, fine, very_fine)")
	fs.StringVar(&f.fidelity, "fidelity", "", "solver fidelity (low, medium, high, ultra); wins over --mesh")
	fs.StringVar(&f.userID, "user", "", "user id sent to the solver")
	fs.StringVar(&f.runID, "run-id", "", "run identifier; a new value forces a new session")
	fs.Float64SliceVar(&f.cstUpper, "cst-upper", nil, "upper surface CST coefficients")
	fs.Float64SliceVar(&f.cstLower, "cst-lower", nil, "lower surface CST coefficients")
	fs.Float64Var(&f.aoa, "aoa", 0, "angle of attack in degrees")
	fs.Float64Var(&f.velocity, "velocity", 0, "inflow velocity in m/s")
	fs.Float64Var(&f.chord, "chord", 0, "chord length in m")
	fs.IntVar(&f.iterations, "iterations", 0, "optimization iterations")
	fs.StringVar(&f.metricsAddr, "metrics-addr", "", "serve client metrics on this address, e.g. :9101")
}

// params reads the params file, then applies explicitly set flags.
func (f *paramFlags) params(cmd *cobra.Command, defaultUser string) (solver.Params, error) {
	var p solver.Params
	if f.file != "" {
		data, err := os.ReadFile(f.file)
		if err != nil {
			return p, err
		}
		if err := yaml.Unmarshal(data, &p); err != nil {
			return p, fmt.Errorf("parse %s: %w", f.file, err)
		}
	}

	fs := cmd.Flags()
	if fs.Changed("mode") {
		p.Mode = solver.Mode(f.mode)
	}
	if fs.Changed("mesh") {
		p.MeshDensity = f.mesh
	}
	if fs.Changed("fidelity") {
		p.Fidelity = solver.Fidelity(f.fidelity)
	}
	if fs.Changed("user") {
		p.UserID = f.userID
	}
	if fs.Changed("run-id") {
		p.RunID = f.runID
	}
	if fs.Changed("cst-upper") {
		p.CSTUpper = f.cstUpper
	}
	if fs.Changed("cst-lower") {
		p.CSTLower = f.cstLower
	}
	if fs.Changed("aoa") {
		aoa := f.aoa
		p.AngleOfAttack = &aoa
	}
	if fs.Changed("velocity") {
		v := f.velocity
		p.InflowVelocity = &v
	}
	if fs.Changed("chord") {
		p.ChordLength = f.chord
	}
	if fs.Changed("iterations") {
		p.NumIterations = f.iterations
	}
	if p.UserID == "" {
		p.UserID = defaultUser
	}
	return p, nil
}
