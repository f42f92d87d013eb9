package optimize

import (
	"github.com/hupe1980/glmix/dataset"
	"github.com/hupe1980/glmix/internal/floats"
	"github.com/hupe1980/glmix/projection"
)

// NormalizationContext carries the feature scaling and shifting applied
// before optimization, plus the index of the intercept feature (which
// is exempt from the transform). A nil *NormalizationContext means the
// identity transform.
type NormalizationContext struct {
	// Factors scales each feature. Nil means no scaling.
	Factors []float32
	// Shifts is subtracted from each feature before scaling. Nil means
	// no shift.
	Shifts []float32
	// InterceptIndex is the feature index of the intercept, or -1 when
	// there is none.
	InterceptIndex int
}

// NewNormalizationContext creates a normalization context in the global
// feature space.
func NewNormalizationContext(factors, shifts []float32, interceptIndex int) *NormalizationContext {
	return &NormalizationContext{
		Factors:        factors,
		Shifts:         shifts,
		InterceptIndex: interceptIndex,
	}
}

// ProjectForward maps the context through an entity's projector: factor
// and shift vectors are forward-projected and the intercept index is
// remapped via the projector's index map. The result's dimensionality
// matches the entity's compressed space.
func (n *NormalizationContext) ProjectForward(p projection.Projector) *NormalizationContext {
	if n == nil {
		return nil
	}

	out := &NormalizationContext{InterceptIndex: -1}
	if n.Factors != nil {
		out.Factors = p.ProjectForward(n.Factors)
	}
	if n.Shifts != nil {
		out.Shifts = p.ProjectForward(n.Shifts)
	}
	if n.InterceptIndex >= 0 {
		out.InterceptIndex = p.OriginalToProjected(n.InterceptIndex)
	}
	return out
}

// Apply returns the normalized copy of a feature vector. The intercept
// feature, if any, passes through untouched.
func (n *NormalizationContext) Apply(features []float32) []float32 {
	if n == nil {
		return floats.Clone(features)
	}

	out := make([]float32, len(features))
	for i, x := range features {
		if i == n.InterceptIndex {
			out[i] = x
			continue
		}
		if n.Shifts != nil {
			x -= n.Shifts[i]
		}
		if n.Factors != nil {
			x *= n.Factors[i]
		}
		out[i] = x
	}
	return out
}

// ApplyToPoints returns a copy of points with normalized feature
// vectors. With a nil receiver the original slice is returned as-is.
func (n *NormalizationContext) ApplyToPoints(points []dataset.LabeledPoint) []dataset.LabeledPoint {
	if n == nil {
		return points
	}

	out := make([]dataset.LabeledPoint, len(points))
	for i, p := range points {
		p.Features = n.Apply(p.Features)
		out[i] = p
	}
	return out
}

// ApplyCoefficients maps coefficients from the raw feature space into
// the normalized space, so a prior model can warm-start a solver that
// operates on normalized features. Requires non-zero factors.
func (n *NormalizationContext) ApplyCoefficients(raw []float32) []float32 {
	if n == nil {
		return floats.Clone(raw)
	}

	out := make([]float32, len(raw))
	var shiftSum float32
	for i, w := range raw {
		if i == n.InterceptIndex {
			out[i] = w
			continue
		}
		if n.Factors != nil {
			w /= n.Factors[i]
		}
		out[i] = w
		if n.Shifts != nil {
			shiftSum += raw[i] * n.Shifts[i]
		}
	}
	if n.InterceptIndex >= 0 {
		out[n.InterceptIndex] += shiftSum
	}
	return out
}

// UnapplyCoefficients maps coefficients solved in the normalized space
// back into the raw feature space, the inverse of ApplyCoefficients.
func (n *NormalizationContext) UnapplyCoefficients(normalized []float32) []float32 {
	if n == nil {
		return floats.Clone(normalized)
	}

	out := make([]float32, len(normalized))
	var shiftSum float32
	for i, u := range normalized {
		if i == n.InterceptIndex {
			out[i] = u
			continue
		}
		if n.Factors != nil {
			u *= n.Factors[i]
		}
		out[i] = u
		if n.Shifts != nil {
			shiftSum += u * n.Shifts[i]
		}
	}
	if n.InterceptIndex >= 0 {
		out[n.InterceptIndex] -= shiftSum
	}
	return out
}

// UnapplyVariances maps diagonal variances from the normalized space
// back into the raw space. The intercept variance passes through; this
// ignores shift-induced covariance with the intercept, which is the
// usual diagonal approximation.
func (n *NormalizationContext) UnapplyVariances(normalized []float32) []float32 {
	if n == nil || n.Factors == nil {
		return floats.Clone(normalized)
	}

	out := make([]float32, len(normalized))
	for i, v := range normalized {
		if i == n.InterceptIndex {
			out[i] = v
			continue
		}
		f := n.Factors[i]
		out[i] = v * f * f
	}
	return out
}

// Dim returns the dimensionality of the context's vectors, or -1 when
// the context carries no vectors.
func (n *NormalizationContext) Dim() int {
	if n == nil {
		return -1
	}
	if n.Factors != nil {
		return len(n.Factors)
	}
	if n.Shifts != nil {
		return len(n.Shifts)
	}
	return -1
}
