package model

import (
	"github.com/hupe1980/glmix/internal/floats"
)

// Coefficients are trained parameters: a mean vector plus an optional
// per-dimension variance vector. The vector length must match the
// declared feature space (original or compressed) at every pipeline
// stage.
type Coefficients struct {
	Means     []float32
	Variances []float32 // nil when variances were not computed
}

// NewCoefficients creates coefficients with the given means and no
// variances.
func NewCoefficients(means []float32) Coefficients {
	return Coefficients{Means: means}
}

// Dim returns the dimensionality of the coefficient vector.
func (c Coefficients) Dim() int {
	return len(c.Means)
}

// Score returns the raw linear score for a feature vector: the dot
// product with the coefficient means. No link function is applied.
func (c Coefficients) Score(features []float32) float32 {
	return floats.Dot(c.Means, features)
}

// Clone returns a deep copy.
func (c Coefficients) Clone() Coefficients {
	return Coefficients{
		Means:     floats.Clone(c.Means),
		Variances: floats.Clone(c.Variances),
	}
}

// Equal reports whether two coefficient values are byte-identical.
func (c Coefficients) Equal(other Coefficients) bool {
	return floats.Equal(c.Means, other.Means) && floats.Equal(c.Variances, other.Variances)
}
