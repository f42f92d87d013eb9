package optimize

import (
	"errors"

	"github.com/hupe1980/glmix/dataset"
	"github.com/hupe1980/glmix/internal/floats"
	"github.com/hupe1980/glmix/model"
)

// ErrShiftWithoutIntercept is returned when a normalization context
// carries shifts but no intercept feature to absorb them: the
// normalized solution would not be representable in the raw space.
var ErrShiftWithoutIntercept = errors.New("optimize: normalization shifts require an intercept feature")

// Solver runs one entity's optimization. Solvers are single-use: create
// one per run via EntityProblem.NewSolver.
type Solver interface {
	// Run solves the problem cold-started from zero coefficients.
	Run(data *dataset.LocalDataset) (model.EntityModel, error)
	// RunWithPrior solves the problem warm-started from the prior
	// model's coefficients.
	RunWithPrior(data *dataset.LocalDataset, prior model.EntityModel) (model.EntityModel, error)
	// TrackerState returns the diagnostics of the last run, or nil when
	// tracking is disabled or no run has happened.
	TrackerState() *TrackerState
}

// GradientDescentSolver is the default solver collaborator:
// deterministic fixed-step gradient descent with a gradient-norm
// stopping criterion. Identical inputs produce byte-identical
// coefficients.
type GradientDescentSolver struct {
	problem *EntityProblem
	last    *TrackerState
}

var _ Solver = (*GradientDescentSolver)(nil)

// Run solves the problem cold-started from zero coefficients.
func (s *GradientDescentSolver) Run(data *dataset.LocalDataset) (model.EntityModel, error) {
	return s.run(data, nil)
}

// RunWithPrior solves the problem warm-started from prior's
// coefficients, which must be in the problem's (compressed) feature
// space.
func (s *GradientDescentSolver) RunWithPrior(data *dataset.LocalDataset, prior model.EntityModel) (model.EntityModel, error) {
	return s.run(data, prior.Coefficients().Means)
}

// TrackerState returns the diagnostics of the last run.
func (s *GradientDescentSolver) TrackerState() *TrackerState {
	return s.last
}

func (s *GradientDescentSolver) run(data *dataset.LocalDataset, start []float32) (model.EntityModel, error) {
	p := s.problem
	cfg := p.Config.withDefaults()
	norm := p.Normalization

	if norm != nil && norm.Shifts != nil && norm.InterceptIndex < 0 {
		return nil, ErrShiftWithoutIntercept
	}

	points := norm.ApplyToPoints(data.Points)

	coeffs := make([]float32, p.Dim)
	if start != nil {
		copy(coeffs, norm.ApplyCoefficients(start))
	}

	grad := make([]float32, p.Dim)
	tolSq := cfg.Tolerance * cfg.Tolerance

	var (
		loss       float32
		iterations int
		converged  bool
	)
	for iterations = 0; iterations < cfg.MaxIterations; iterations++ {
		loss = p.Objective.ValueAndGradient(points, coeffs, cfg.L2Reg, grad)
		if floats.SquaredL2Norm(grad) <= tolSq {
			converged = true
			break
		}
		floats.Axpy(-cfg.StepSize, grad, coeffs)
	}

	solved := model.NewCoefficients(norm.UnapplyCoefficients(coeffs))
	if p.VarianceMode == VarianceDiagonal {
		curv := make([]float32, p.Dim)
		p.Objective.DiagonalCurvature(points, coeffs, cfg.L2Reg, curv)
		variances := make([]float32, p.Dim)
		for i, c := range curv {
			if c > 0 {
				variances[i] = 1 / c
			}
		}
		solved.Variances = norm.UnapplyVariances(variances)
	}

	if p.Tracking {
		s.last = &TrackerState{
			Iterations: iterations,
			Converged:  converged,
			FinalLoss:  loss,
			Objective:  p.Objective.Name(),
		}
	}

	return p.NewModel(solved), nil
}
