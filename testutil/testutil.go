// Package testutil provides testing utilities for glmix.
//
// This package is intended for use in tests and benchmarks only.
// It provides a seeded, thread-safe random number generator and
// helpers for generating synthetic training data with known ground
// truth.
package testutil

import (
	"math/rand"
	"sync"

	"github.com/hupe1980/glmix/dataset"
	"github.com/hupe1980/glmix/internal/floats"
)

// RNG struct encapsulates the random number generator and seed.
// It is thread-safe.
type RNG struct {
	rand *rand.Rand
	seed int64
	mu   sync.Mutex
}

// NewRNG creates a new RNG instance with the specified seed.
func NewRNG(seed int64) *RNG {
	return &RNG{
		rand: rand.New(rand.NewSource(seed)),
		seed: seed,
	}
}

// Reset resets the RNG to its initial seed.
func (r *RNG) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rand.Seed(r.seed)
}

// Seed returns the initial seed.
func (r *RNG) Seed() int64 {
	return r.seed
}

// Intn returns a non-negative pseudo-random number in [0,n).
func (r *RNG) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Intn(n)
}

// Uint64 returns a pseudo-random uint64.
func (r *RNG) Uint64() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Uint64()
}

// Float32 returns, as a float32, a pseudo-random number in [0.0,1.0).
func (r *RNG) Float32() float32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Float32()
}

// FillUniform fills dst with random values in range [0, 1).
// Locks only once per call (preferred over calling Float32 in a loop).
func (r *RNG) FillUniform(dst []float32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range dst {
		dst[i] = r.rand.Float32()
	}
}

// FillUniformRange fills dst with random values in range [minVal, maxVal).
func (r *RNG) FillUniformRange(dst []float32, minVal, maxVal float32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range dst {
		dst[i] = minVal + r.rand.Float32()*(maxVal-minVal)
	}
}

// FeatureVectors generates n feature vectors of the given dimension
// with values in [-1, 1).
func (r *RNG) FeatureVectors(n, dim int) [][]float32 {
	out := make([][]float32, n)
	for i := range out {
		out[i] = make([]float32, dim)
		r.FillUniformRange(out[i], -1, 1)
	}
	return out
}

// LinearPoints generates n labeled points whose labels are exactly the
// dot product of the feature vector with weights. A noise-free linear
// relation gives solvers a recoverable ground truth.
//
// Datum ids are assigned sequentially from startID.
func (r *RNG) LinearPoints(startID uint64, weights []float32, n int) []dataset.LabeledPoint {
	features := r.FeatureVectors(n, len(weights))

	points := make([]dataset.LabeledPoint, n)
	for i := range points {
		points[i] = dataset.LabeledPoint{
			ID:       startID + uint64(i),
			Label:    floats.Dot(weights, features[i]),
			Features: features[i],
		}
	}
	return points
}
