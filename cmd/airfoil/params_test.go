package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/airfoil-studio/solverstream/internal/solver"
)

func parseParams(t *testing.T, args ...string) (solver.Params, error) {
	t.Helper()
	var flags paramFlags
	cmd := &cobra.Command{Use: "test"}
	flags.register(cmd)
	require.NoError(t, cmd.ParseFlags(args))
	return flags.params(cmd, "local")
}

func TestParamsFromFlags(t *testing.T) {
	p, err := parseParams(t,
		"--mode", "optimization", "--mesh", "fine", "--iterations", "12",
		"--cst-upper", "0.2,0.25", "--cst-lower", "-0.1,-0.05", "--aoa", "0", "--run-id", "r7")
	require.NoError(t, err)

	assert.Equal(t, solver.ModeOptimization, p.Mode)
	assert.Equal(t, "fine", p.MeshDensity)
	assert.Equal(t, 12, p.NumIterations)
	assert.Equal(t, []float64{0.2, 0.25}, p.CSTUpper)
	assert.Equal(t, []float64{-0.1, -0.05}, p.CSTLower)
	require.NotNil(t, p.AngleOfAttack)
	assert.Equal(t, 0.0, *p.AngleOfAttack)
	assert.Nil(t, p.InflowVelocity)
	assert.Equal(t, "r7", p.RunID)
	assert.Equal(t, "local", p.UserID)
}

func TestParamsFileWithOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "wing.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
mode: simulation
user_id: alice
mesh_density: coarse
cst_upper: [0.18, 0.22]
cst_lower: [-0.1, -0.08]
inflow_velocity: 15
`), 0o644))

	p, err := parseParams(t, "--params", path, "--mesh", "very_fine")
	require.NoError(t, err)
	assert.Equal(t, solver.ModeSimulation, p.Mode)
	assert.Equal(t, "alice", p.UserID)
	assert.Equal(t, "very_fine", p.MeshDensity)
	require.NotNil(t, p.InflowVelocity)
	assert.Equal(t, 15.0, *p.InflowVelocity)

	req, err := solver.Normalize(p)
	require.NoError(t, err)
	assert.Equal(t, solver.FidelityUltra, req.Fidelity)
}

func TestParamsJSONFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wing.json")
	require.NoError(t, os.WriteFile(path,
		[]byte(`{"mode":"optimization","cst_upper":[0.2],"cst_lower":[-0.1],"num_iterations":4}`), 0o644))

	p, err := parseParams(t, "-p", path)
	require.NoError(t, err)
	assert.Equal(t, solver.ModeOptimization, p.Mode)
	assert.Equal(t, 4, p.NumIterations)
}

func TestParamsBadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("cst_upper: [oops"), 0o644))

	_, err := parseParams(t, "-p", path)
	assert.ErrorContains(t, err, "bad.yaml")

	_, err = parseParams(t, "-p", filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
