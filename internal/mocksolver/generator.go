package mocksolver

import (
	"hash/fnv"
	"math"
	"math/rand/v2"

	"github.com/airfoil-studio/solverstream/internal/solver"
)

const (
	airDensity    = 1.225
	surfacePoints = 41
)

// trajectory produces the synthetic results of one stream. Simulation runs
// keep the shape fixed while the coefficients settle; optimization runs
// nudge the CST coefficients each step.
type trajectory struct {
	mode  solver.Mode
	total int
	step  int

	upper, lower     []float64
	initUp, initLow  []float64
	alpha            float64
	inflow, chord    float64
	rate             float64
	minThick, maxThk float64

	rng  *rand.Rand
	last solver.IterationMetrics
}

func newTrajectory(s *Session) *trajectory {
	req := s.Request
	h := fnv.New64a()
	_, _ = h.Write([]byte(s.ID))

	t := &trajectory{
		mode:     s.Mode,
		total:    s.Frames,
		upper:    append([]float64(nil), req.CSTUpper...),
		lower:    append([]float64(nil), req.CSTLower...),
		initUp:   append([]float64(nil), req.CSTUpper...),
		initLow:  append([]float64(nil), req.CSTLower...),
		alpha:    req.AngleOfAttack * math.Pi / 180,
		inflow:   orDefault(req.InflowVelocity, solver.DefaultInflowVelocity),
		chord:    orDefault(req.ChordLength, solver.DefaultChordLength),
		rate:     orDefault(req.LearningRate, solver.DefaultLearningRate),
		minThick: orDefault(req.MinThickness, solver.DefaultMinThickness),
		maxThk:   orDefault(req.MaxThickness, solver.DefaultMaxThickness),
		rng:      rand.New(rand.NewPCG(h.Sum64(), uint64(s.Streams))),
	}
	return t
}

func (t *trajectory) done() bool { return t.step >= t.total }

// advance computes the next iteration.
func (t *trajectory) advance() (solver.IterationMetrics, solver.Geometry) {
	t.step++
	if t.mode == solver.ModeOptimization && t.step > 1 {
		t.reshape()
	}

	cl, cd := t.coefficients()
	if t.mode == solver.ModeSimulation {
		// Start-up transient decaying toward the steady value.
		settle := 1 - math.Exp(-float64(t.step)/4)
		cl *= settle
		cd *= 2 - settle
	}
	cl += t.rng.NormFloat64() * 0.002
	q := 0.5 * airDensity * t.inflow * t.inflow * t.chord

	m := solver.IterationMetrics{
		Iteration:       t.step,
		TotalIterations: t.total,
		CL:              cl,
		CD:              cd,
		CLCD:            cl / cd,
		LiftForce:       q * cl,
		DragForce:       q * cd,
	}
	m.Loss = cd / math.Max(math.Abs(cl), 1e-3)
	t.last = m
	return m, shape(t.upper, t.lower)
}

// final summarises the run for the complete frame.
func (t *trajectory) final() solver.FinalMetrics {
	return solver.FinalMetrics{
		TotalIterations: t.step,
		FinalCL:         t.last.CL,
		FinalCD:         t.last.CD,
		FinalCLCD:       t.last.CLCD,
		FinalDrag:       t.last.DragForce,
		FinalLoss:       t.last.Loss,
	}
}

func (t *trajectory) initialShape() solver.Geometry {
	return shape(t.initUp, t.initLow)
}

func (t *trajectory) currentShape() solver.Geometry {
	return shape(t.upper, t.lower)
}

// coefficients is a thin-airfoil estimate with a parabolic drag polar.
func (t *trajectory) coefficients() (cl, cd float64) {
	camber := (mean(t.upper) + mean(t.lower)) / 2
	thick := t.thickness()
	cl = 2*math.Pi*t.alpha + 4*math.Pi*camber
	cd = 0.006 + 0.05*thick*thick + cl*cl/(math.Pi*12)
	return cl, cd
}

func (t *trajectory) thickness() float64 {
	return mean(t.upper) - mean(t.lower)
}

// reshape adds camber while holding the thickness inside its bounds.
func (t *trajectory) reshape() {
	for i := range t.upper {
		t.upper[i] += t.rate * (0.5 + 0.5*t.rng.Float64())
	}
	for i := range t.lower {
		t.lower[i] += t.rate * 0.5 * t.rng.Float64()
	}
	thick := t.thickness()
	var target float64
	switch {
	case thick < t.minThick:
		target = t.minThick
	case thick > t.maxThk:
		target = t.maxThk
	default:
		return
	}
	shift := (target - thick) / 2
	for i := range t.upper {
		t.upper[i] += shift
	}
	for i := range t.lower {
		t.lower[i] -= shift
	}
}

// shape samples both CST surfaces on cosine-spaced stations.
func shape(upper, lower []float64) solver.Geometry {
	g := solver.Geometry{
		CSTUpper:      append([]float64(nil), upper...),
		CSTLower:      append([]float64(nil), lower...),
		AirfoilX:      make([]float64, surfacePoints),
		AirfoilYUpper: make([]float64, surfacePoints),
		AirfoilYLower: make([]float64, surfacePoints),
	}
	for i := range surfacePoints {
		x := (1 - math.Cos(math.Pi*float64(i)/float64(surfacePoints-1))) / 2
		g.AirfoilX[i] = x
		g.AirfoilYUpper[i] = cstSurface(upper, x)
		g.AirfoilYLower[i] = cstSurface(lower, x)
	}
	return g
}

// cstSurface evaluates a Kulfan class-shape surface with N1=0.5, N2=1.
func cstSurface(coeffs []float64, x float64) float64 {
	if len(coeffs) == 0 {
		return 0
	}
	n := len(coeffs) - 1
	var s float64
	for i, a := range coeffs {
		s += a * binomial(n, i) * math.Pow(x, float64(i)) * math.Pow(1-x, float64(n-i))
	}
	return math.Sqrt(x) * (1 - x) * s
}

func binomial(n, k int) float64 {
	r := 1.0
	for i := 1; i <= k; i++ {
		r = r * float64(n-k+i) / float64(i)
	}
	return r
}

func mean(v []float64) float64 {
	if len(v) == 0 {
		return 0
	}
	var s float64
	for _, x := range v {
		s += x
	}
	return s / float64(len(v))
}

func orDefault(v, def float64) float64 {
	if v == 0 {
		return def
	}
	return v
}
