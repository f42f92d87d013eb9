// Package projection maps vectors between the global feature index
// space and per-entity compressed index spaces.
//
// Each entity's solver operates in a minimal subspace containing only
// that entity's observed features, keeping per-entity problem size
// tractable. Anything composed with other model components must live in
// the shared global space, so projectors are bijective on the observed
// feature set: projecting forward and then backward restores the
// original values exactly.
package projection

import (
	"fmt"
	"sort"
)

// Projector maps vectors and indices between an original (global)
// feature space and a projected (compressed) per-entity space.
//
// Implementations must be immutable and safe for concurrent use.
type Projector interface {
	// ProjectForward maps a vector from the original space into the
	// projected space. Input length must equal OriginalDim.
	ProjectForward(v []float32) []float32
	// ProjectBackward maps a vector from the projected space back into
	// the original space, zero-filling unobserved indices. Input length
	// must equal ProjectedDim.
	ProjectBackward(v []float32) []float32
	// OriginalToProjected returns the projected index for an original
	// index, or -1 if the original index is not observed.
	OriginalToProjected(index int) int
	// OriginalDim returns the dimensionality of the original space.
	OriginalDim() int
	// ProjectedDim returns the dimensionality of the projected space.
	ProjectedDim() int
}

// IndexMapProjector is a Projector backed by an explicit index map over
// the entity's observed features.
type IndexMapProjector struct {
	origToProj  map[int]int
	projToOrig  []int
	originalDim int
}

var _ Projector = (*IndexMapProjector)(nil)

// NewIndexMapProjector builds a projector for the given observed
// original-space indices. Duplicate indices collapse; projected indices
// are assigned in ascending original-index order so the mapping is
// deterministic.
func NewIndexMapProjector(originalDim int, observed []int) (*IndexMapProjector, error) {
	if originalDim <= 0 {
		return nil, fmt.Errorf("projection: original dimension must be positive, got %d", originalDim)
	}

	seen := make(map[int]struct{}, len(observed))
	uniq := make([]int, 0, len(observed))
	for _, idx := range observed {
		if idx < 0 || idx >= originalDim {
			return nil, fmt.Errorf("projection: observed index %d out of range [0, %d)", idx, originalDim)
		}
		if _, ok := seen[idx]; ok {
			continue
		}
		seen[idx] = struct{}{}
		uniq = append(uniq, idx)
	}
	sort.Ints(uniq)

	origToProj := make(map[int]int, len(uniq))
	for proj, orig := range uniq {
		origToProj[orig] = proj
	}

	return &IndexMapProjector{
		origToProj:  origToProj,
		projToOrig:  uniq,
		originalDim: originalDim,
	}, nil
}

// ProjectForward maps v from the original space into the projected space.
func (p *IndexMapProjector) ProjectForward(v []float32) []float32 {
	out := make([]float32, len(p.projToOrig))
	for proj, orig := range p.projToOrig {
		out[proj] = v[orig]
	}
	return out
}

// ProjectBackward maps v from the projected space back into the
// original space. Unobserved indices are zero.
func (p *IndexMapProjector) ProjectBackward(v []float32) []float32 {
	out := make([]float32, p.originalDim)
	for proj, orig := range p.projToOrig {
		out[orig] = v[proj]
	}
	return out
}

// OriginalToProjected returns the projected index for an original
// index, or -1 if unobserved.
func (p *IndexMapProjector) OriginalToProjected(index int) int {
	proj, ok := p.origToProj[index]
	if !ok {
		return -1
	}
	return proj
}

// OriginalDim returns the original-space dimensionality.
func (p *IndexMapProjector) OriginalDim() int {
	return p.originalDim
}

// ProjectedDim returns the projected-space dimensionality.
func (p *IndexMapProjector) ProjectedDim() int {
	return len(p.projToOrig)
}
