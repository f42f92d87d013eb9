// Package floats provides float32 vector kernels for training and scoring.
// This is an internal package - external users should use the model package.
package floats

// Dot calculates the dot product of two vectors.
// Vectors must have equal length.
func Dot(a, b []float32) float32 {
	var ret float32
	for i := range a {
		ret += a[i] * b[i]
	}

	return ret
}

// Axpy computes dst += alpha * x element-wise.
func Axpy(alpha float32, x, dst []float32) {
	for i := range x {
		dst[i] += alpha * x[i]
	}
}

// SquaredL2Norm returns the squared L2 norm of a.
func SquaredL2Norm(a []float32) float32 {
	var ret float32
	for i := range a {
		ret += a[i] * a[i]
	}

	return ret
}

// Clone returns a copy of a, or nil if a is nil.
func Clone(a []float32) []float32 {
	if a == nil {
		return nil
	}
	out := make([]float32, len(a))
	copy(out, a)

	return out
}

// Equal reports whether a and b have identical length and elements.
func Equal(a, b []float32) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}

	return true
}
