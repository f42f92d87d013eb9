package optimize

import (
	"math"

	"github.com/hupe1980/glmix/dataset"
	"github.com/hupe1980/glmix/internal/floats"
	"github.com/hupe1980/glmix/model"
)

// Objective evaluates a loss function over a local dataset.
//
// Implementations must be stateless and safe for concurrent use: a
// single Objective value is shared across all entities' problems and is
// never mutated during any entity's training.
type Objective interface {
	// ValueAndGradient evaluates the regularized loss at coeffs and
	// writes the gradient into grad (len(grad) == len(coeffs)).
	ValueAndGradient(points []dataset.LabeledPoint, coeffs []float32, l2 float32, grad []float32) float32
	// DiagonalCurvature writes the diagonal of the Hessian (or an
	// approximation of it) at coeffs into curv.
	DiagonalCurvature(points []dataset.LabeledPoint, coeffs []float32, l2 float32, curv []float32)
	// Name returns a stable objective name for diagnostics.
	Name() string
}

// SquaredLoss is the weighted least-squares objective:
//
//	L(w) = 1/2 Σ wi (xi·w + oi - yi)^2 + l2/2 ||w||^2
type SquaredLoss struct{}

var _ Objective = SquaredLoss{}

// Name returns "squared".
func (SquaredLoss) Name() string { return "squared" }

// ValueAndGradient evaluates the squared loss and its gradient.
func (SquaredLoss) ValueAndGradient(points []dataset.LabeledPoint, coeffs []float32, l2 float32, grad []float32) float32 {
	for i := range grad {
		grad[i] = 0
	}

	var loss float32
	for _, p := range points {
		w := p.EffectiveWeight()
		residual := floats.Dot(coeffs, p.Features) + p.Offset - p.Label
		loss += 0.5 * w * residual * residual
		floats.Axpy(w*residual, p.Features, grad)
	}

	if l2 > 0 {
		loss += 0.5 * l2 * floats.SquaredL2Norm(coeffs)
		floats.Axpy(l2, coeffs, grad)
	}
	return loss
}

// DiagonalCurvature writes Σ wi xi^2 + l2 per dimension.
func (SquaredLoss) DiagonalCurvature(points []dataset.LabeledPoint, coeffs []float32, l2 float32, curv []float32) {
	for i := range curv {
		curv[i] = l2
	}
	for _, p := range points {
		w := p.EffectiveWeight()
		for i, x := range p.Features {
			curv[i] += w * x * x
		}
	}
}

// LogisticLoss is the weighted logistic objective for labels in {0, 1}:
//
//	L(w) = Σ wi (log(1 + exp(zi)) - yi zi) + l2/2 ||w||^2, zi = xi·w + oi
type LogisticLoss struct{}

var _ Objective = LogisticLoss{}

// Name returns "logistic".
func (LogisticLoss) Name() string { return "logistic" }

// ValueAndGradient evaluates the logistic loss and its gradient.
func (LogisticLoss) ValueAndGradient(points []dataset.LabeledPoint, coeffs []float32, l2 float32, grad []float32) float32 {
	for i := range grad {
		grad[i] = 0
	}

	var loss float32
	for _, p := range points {
		w := p.EffectiveWeight()
		z := floats.Dot(coeffs, p.Features) + p.Offset
		loss += w * (log1pExp(z) - p.Label*z)
		floats.Axpy(w*(model.Sigmoid(z)-p.Label), p.Features, grad)
	}

	if l2 > 0 {
		loss += 0.5 * l2 * floats.SquaredL2Norm(coeffs)
		floats.Axpy(l2, coeffs, grad)
	}
	return loss
}

// DiagonalCurvature writes Σ wi σ(zi)(1-σ(zi)) xi^2 + l2 per dimension.
func (LogisticLoss) DiagonalCurvature(points []dataset.LabeledPoint, coeffs []float32, l2 float32, curv []float32) {
	for i := range curv {
		curv[i] = l2
	}
	for _, p := range points {
		w := p.EffectiveWeight()
		s := model.Sigmoid(floats.Dot(coeffs, p.Features) + p.Offset)
		d := w * s * (1 - s)
		for i, x := range p.Features {
			curv[i] += d * x * x
		}
	}
}

// log1pExp computes log(1 + exp(z)) without overflow for large z.
func log1pExp(z float32) float32 {
	if z > 0 {
		return z + log1pExp(-z)
	}
	return float32(math.Log1p(math.Exp(float64(z))))
}
