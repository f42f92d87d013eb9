package optimize

// VarianceMode selects how coefficient variances are computed after a
// solver run.
type VarianceMode uint8

const (
	// VarianceNone skips variance computation.
	VarianceNone VarianceMode = iota
	// VarianceDiagonal estimates per-dimension variances from the
	// inverse diagonal curvature of the objective at the solution.
	VarianceDiagonal
)

// Config holds the solver configuration shared across all entities of a
// coordinate.
type Config struct {
	// MaxIterations bounds the number of gradient steps. Default 100.
	MaxIterations int
	// Tolerance stops the solver once the gradient norm falls below it.
	// Default 1e-6.
	Tolerance float32
	// StepSize is the fixed gradient-descent step. Default 0.1.
	StepSize float32
	// L2Reg is the L2 regularization weight. Zero disables
	// regularization.
	L2Reg float32
}

func (c Config) withDefaults() Config {
	if c.MaxIterations <= 0 {
		c.MaxIterations = 100
	}
	if c.Tolerance <= 0 {
		c.Tolerance = 1e-6
	}
	if c.StepSize <= 0 {
		c.StepSize = 0.1
	}
	return c
}
