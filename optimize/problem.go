package optimize

import (
	"github.com/hupe1980/glmix/model"
	"github.com/hupe1980/glmix/partition"
	"github.com/hupe1980/glmix/projection"
)

// EntityProblem is one entity's solver setup: shared configuration and
// objective, an entity-local normalization context, the model
// constructor, the variance mode and the tracking flag. The
// normalization context's dimensionality matches the entity's
// compressed feature space.
type EntityProblem struct {
	Config        Config
	Objective     Objective
	Normalization *NormalizationContext
	NewModel      model.Constructor
	VarianceMode  VarianceMode
	Tracking      bool
	// Dim is the dimensionality of the entity's compressed space.
	Dim int
}

// NewSolver creates a fresh single-use solver for this problem.
func (p *EntityProblem) NewSolver() Solver {
	return &GradientDescentSolver{problem: p}
}

// RandomEffectProblem is a partitioned collection of entity id to
// EntityProblem, co-partitioned with the dataset's active entities.
type RandomEffectProblem[E comparable] struct {
	problems *partition.Block[E, *EntityProblem]
	tracking bool
}

// NewRandomEffectProblem builds one EntityProblem per entity from the
// per-entity projector collection: the global normalization context is
// forward-projected through each entity's projector (intercept index
// remapped via the projector's index map) so its dimensionality matches
// that entity's compressed space.
//
// The objective is shared by value across all entities; it carries no
// entity-specific state and is never mutated. The result is
// co-partitioned with projectors, and hence with the active data.
func NewRandomEffectProblem[E comparable](
	projectors *partition.Block[E, projection.Projector],
	cfg Config,
	objective Objective,
	newModel model.Constructor,
	normalization *NormalizationContext,
	varianceMode VarianceMode,
	tracking bool,
) *RandomEffectProblem[E] {
	cfg = cfg.withDefaults()

	problems := partition.MapValues(projectors, func(_ E, p projection.Projector) (*EntityProblem, error) {
		return &EntityProblem{
			Config:        cfg,
			Objective:     objective,
			Normalization: normalization.ProjectForward(p),
			NewModel:      newModel,
			VarianceMode:  varianceMode,
			Tracking:      tracking,
			Dim:           p.ProjectedDim(),
		}, nil
	})

	return &RandomEffectProblem[E]{
		problems: problems,
		tracking: tracking,
	}
}

// Problems returns the per-entity problem block.
func (p *RandomEffectProblem[E]) Problems() *partition.Block[E, *EntityProblem] {
	return p.problems
}

// TrackingEnabled reports whether per-entity solver diagnostics are
// collected during training.
func (p *RandomEffectProblem[E]) TrackingEnabled() bool {
	return p.tracking
}
