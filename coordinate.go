package glmix

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/RoaringBitmap/roaring/v2/roaring64"

	"github.com/hupe1980/glmix/dataset"
	"github.com/hupe1980/glmix/model"
	"github.com/hupe1980/glmix/optimize"
	"github.com/hupe1980/glmix/partition"
	"github.com/hupe1980/glmix/projection"
)

// Coordinate owns one random-effect dimension of a mixed-effects
// model: a dataset, a co-partitioned per-entity optimization problem
// collection, and the lifecycle of the distributed state both produce.
//
// A Coordinate is immutable; UpdateWithDataset returns a new instance.
// Methods are safe for sequential use by one orchestrator; concurrent
// training rounds on the same Coordinate are not supported.
type Coordinate[E comparable] struct {
	dataset *dataset.RandomEffectDataset[E]
	problem *optimize.RandomEffectProblem[E]
	opts    options
	logger  *Logger
	name    string

	mu        sync.Mutex
	heldBytes int64
}

// NewCoordinate creates a coordinate over a dataset and its
// optimization problem. The problem collection must be co-partitioned
// with the dataset's active data; every active entity having a problem
// entry is a caller contract, not checked here.
func NewCoordinate[E comparable](
	ds *dataset.RandomEffectDataset[E],
	problem *optimize.RandomEffectProblem[E],
	optFns ...Option,
) *Coordinate[E] {
	opts := applyOptions(optFns)

	return &Coordinate[E]{
		dataset: ds,
		problem: problem,
		opts:    opts,
		logger:  opts.logger.WithCoordinate(ds.EntityType(), ds.FeatureShardID()),
	}
}

// Dataset returns the coordinate's dataset.
func (c *Coordinate[E]) Dataset() *dataset.RandomEffectDataset[E] {
	return c.dataset
}

// Problem returns the coordinate's optimization problem collection.
func (c *Coordinate[E]) Problem() *optimize.RandomEffectProblem[E] {
	return c.problem
}

// UpdateWithDataset returns a new coordinate over ds, sharing this
// coordinate's optimization problem and configuration.
func (c *Coordinate[E]) UpdateWithDataset(ds *dataset.RandomEffectDataset[E]) *Coordinate[E] {
	return &Coordinate[E]{
		dataset: ds,
		problem: c.problem,
		opts:    c.opts,
		logger:  c.opts.logger.WithCoordinate(ds.EntityType(), ds.FeatureShardID()),
		name:    c.name,
	}
}

// TrainModel trains one model per active entity, cold-started from
// zero coefficients. The returned model is in the global feature
// space. The tracker is nil unless the problem enables tracking.
func (c *Coordinate[E]) TrainModel(ctx context.Context) (model.Model, *optimize.Tracker[E], error) {
	return c.trainTimed(ctx, nil)
}

// TrainModelWithPrior trains one model per active entity, warm-started
// from the prior model where it has coefficients for the entity. Prior
// entities with no data this round pass through unchanged and
// contribute no tracker entry. The prior must be a random-effect model
// in the global feature space.
func (c *Coordinate[E]) TrainModelWithPrior(ctx context.Context, prior model.Model) (model.Model, *optimize.Tracker[E], error) {
	rem, err := c.dispatch(prior)
	if err != nil {
		return nil, nil, err
	}
	return c.trainTimed(ctx, rem)
}

func (c *Coordinate[E]) trainTimed(ctx context.Context, prior *model.RandomEffectModel[E]) (model.Model, *optimize.Tracker[E], error) {
	start := time.Now()

	trained, tracker, entities, err := c.train(ctx, prior)

	c.opts.metricsCollector.RecordTrain(entities, time.Since(start), err)
	c.logger.LogTrain(ctx, entities, prior != nil, err)

	if err != nil {
		return nil, nil, translateError(err)
	}
	return trained, tracker, nil
}

// trainResult is one entity's training outcome: the solved (or passed
// through) model and, when tracking is enabled, solver diagnostics.
type trainResult struct {
	model model.EntityModel
	state *optimize.TrackerState
}

func (c *Coordinate[E]) train(ctx context.Context, prior *model.RandomEffectModel[E]) (model.Model, *optimize.Tracker[E], int, error) {
	// Active data and problems share a partitioner, so this join moves
	// no data.
	joined := partition.Join(c.dataset.ActiveData(), c.problem.Problems())

	var results *partition.Block[E, trainResult]
	if prior == nil {
		results = partition.MapValues(joined, func(_ E, pair partition.Pair[*dataset.LocalDataset, *optimize.EntityProblem]) (trainResult, error) {
			return solveEntity(pair.Left, pair.Right, nil)
		})
	} else {
		projected := c.projectForwardModels(prior)
		outer := partition.FullOuterJoin(joined, projected.Models())

		results = partition.MapValues(outer, func(_ E, j partition.Joined[partition.Pair[*dataset.LocalDataset, *optimize.EntityProblem], model.EntityModel]) (trainResult, error) {
			switch {
			case j.HasLeft && j.HasRight:
				return solveEntity(j.Left.Left, j.Left.Right, j.Right)
			case j.HasLeft:
				return solveEntity(j.Left.Left, j.Left.Right, nil)
			default:
				// Prior entity with no data this round: keep its model.
				// Dropping it would lose state other coordinates rely on.
				return trainResult{model: j.Right}, nil
			}
		})
	}

	name := c.stateName() + "-trained"
	results.WithName(name).Persist(partition.StorageMemory)

	collected, err := results.Collect(ctx)
	if err != nil {
		return nil, nil, 0, err
	}
	c.accountMemory(ctx, collected)

	var tracker *optimize.Tracker[E]
	if c.problem.TrackingEnabled() {
		tracker = optimize.NewTracker[E]()
		for id, r := range collected {
			if r.state != nil {
				tracker.Add(id, *r.state)
			}
		}
	}

	if c.opts.checkpointer != nil {
		c.saveCheckpoint(ctx, name, collected)
	}

	models := partition.MapValues(results, func(_ E, r trainResult) (model.EntityModel, error) {
		return r.model, nil
	})
	trained := model.NewRandomEffectModel(models, c.dataset.EntityType(), c.dataset.FeatureShardID())

	return c.projectBackwardModels(trained), tracker, len(collected), nil
}

func solveEntity(data *dataset.LocalDataset, problem *optimize.EntityProblem, prior model.EntityModel) (trainResult, error) {
	s := problem.NewSolver()

	var (
		m   model.EntityModel
		err error
	)
	if prior != nil {
		m, err = s.RunWithPrior(data, prior)
	} else {
		m, err = s.Run(data)
	}
	if err != nil {
		return trainResult{}, err
	}

	return trainResult{model: m, state: s.TrackerState()}, nil
}

// Score computes raw per-datum scores for m, which must be a
// random-effect model in the same feature space as the dataset's
// points. Active entities are scored in place; passive points are
// scored against a gathered subset of m's models. A passive point
// whose entity has no model is fatal.
func (c *Coordinate[E]) Score(ctx context.Context, m model.Model) (*DataScores, error) {
	start := time.Now()

	scores, err := c.score(ctx, m)

	points := 0
	if scores != nil {
		points = scores.Len()
	}
	c.opts.metricsCollector.RecordScore(points, time.Since(start), err)
	c.logger.LogScore(ctx, points, c.dataset.NumPassiveEntities(), err)

	if err != nil {
		return nil, translateError(err)
	}
	return scores, nil
}

func (c *Coordinate[E]) score(ctx context.Context, m model.Model) (*DataScores, error) {
	rem, err := c.dispatch(m)
	if err != nil {
		return nil, err
	}

	// Active path: join in place, then re-key by datum id so results
	// merge with other coordinates' datum-partitioned scores.
	active := partition.Join(c.dataset.ActiveData(), rem.Models())
	activeScores := partition.FlatMapPairs(active, c.dataset.DatumPartitioner(),
		func(_ E, pair partition.Pair[*dataset.LocalDataset, model.EntityModel]) ([]partition.KV[uint64, float32], error) {
			out := make([]partition.KV[uint64, float32], 0, pair.Left.Len())
			for _, p := range pair.Left.Points {
				out = append(out, partition.KV[uint64, float32]{Key: p.ID, Value: pair.Right.Score(p.Features)})
			}
			return out, nil
		})

	scores := activeScores
	if c.dataset.PassiveData() != nil && c.dataset.NumPassiveEntities() > 0 {
		// Passive path: gather the passive entities' models to this
		// process. The passive subset is assumed small ("few if any"
		// entities); the gather is a known, unenforced scalability
		// limit.
		gathered, err := rem.Models().
			Filter(func(id E, _ model.EntityModel) bool { return c.dataset.HasPassiveEntity(id) }).
			Collect(ctx)
		if err != nil {
			return nil, err
		}

		passiveScores := partition.MapValues(c.dataset.PassiveData(),
			func(datumID uint64, pp dataset.PassivePoint[E]) (float32, error) {
				em, ok := gathered[pp.EntityID]
				if !ok {
					return 0, &ErrMissingEntityModel{EntityID: pp.EntityID, DatumID: datumID}
				}
				return em.Score(pp.Point.Features), nil
			})

		// Active and passive datum ids are disjoint by construction, so
		// this union never overwrites.
		scores = partition.Union(c.dataset.DatumPartitioner(), activeScores, passiveScores)
	}

	scores.Persist(partition.StorageMemory)
	keys, err := scores.Keys(ctx)
	if err != nil {
		return nil, err
	}

	covered := roaring64.New()
	covered.AddMany(keys)

	return NewDataScores(scores, covered), nil
}

// ProjectForward maps m's per-entity coefficients from the global
// feature space into each entity's compressed space. Entities without
// a projector this round pass through unchanged. The result is lazy.
func (c *Coordinate[E]) ProjectForward(m model.Model) (model.Model, error) {
	rem, err := c.dispatch(m)
	if err != nil {
		return nil, err
	}
	return c.projectForwardModels(rem), nil
}

// ProjectBackward maps m's per-entity coefficients from each entity's
// compressed space back into the global feature space, zero-filling
// unobserved features. Entities without a projector pass through
// unchanged. The result is lazy.
func (c *Coordinate[E]) ProjectBackward(m model.Model) (model.Model, error) {
	rem, err := c.dispatch(m)
	if err != nil {
		return nil, err
	}
	return c.projectBackwardModels(rem), nil
}

func (c *Coordinate[E]) projectForwardModels(m *model.RandomEffectModel[E]) *model.RandomEffectModel[E] {
	return m.WithModels(projectModels(m.Models(), c.dataset.Projectors(), true))
}

func (c *Coordinate[E]) projectBackwardModels(m *model.RandomEffectModel[E]) *model.RandomEffectModel[E] {
	return m.WithModels(projectModels(m.Models(), c.dataset.Projectors(), false))
}

func projectModels[E comparable](
	models *partition.Block[E, model.EntityModel],
	projectors *partition.Block[E, projection.Projector],
	forward bool,
) *partition.Block[E, model.EntityModel] {
	joined := partition.LeftOuterJoin(models, projectors)

	return partition.MapValues(joined, func(_ E, j partition.Joined[model.EntityModel, projection.Projector]) (model.EntityModel, error) {
		if !j.HasRight {
			return j.Left, nil
		}

		coeffs := j.Left.Coefficients()
		transform := j.Right.ProjectBackward
		if forward {
			transform = j.Right.ProjectForward
		}

		next := model.NewCoefficients(transform(coeffs.Means))
		if coeffs.Variances != nil {
			next.Variances = transform(coeffs.Variances)
		}
		return j.Left.WithCoefficients(next), nil
	})
}

// dispatch narrows a polymorphic model to this coordinate's kind. Any
// other kind is fatal; no coercion is attempted.
func (c *Coordinate[E]) dispatch(m model.Model) (*model.RandomEffectModel[E], error) {
	if m == nil {
		return nil, ErrNilModel
	}

	switch v := m.(type) {
	case *model.RandomEffectModel[E]:
		return v, nil
	default:
		return nil, &ErrUnsupportedModelType{
			Actual:   fmt.Sprintf("%T", m),
			Expected: fmt.Sprintf("%T", (*model.RandomEffectModel[E])(nil)),
		}
	}
}

// SetName assigns a diagnostic name to the coordinate's distributed
// state. Idempotent; returns the coordinate for chaining.
func (c *Coordinate[E]) SetName(name string) *Coordinate[E] {
	c.name = name
	c.problem.Problems().WithName(name + "-problems")
	return c
}

// Persist pins the optimization-problem collection at the given
// storage level. Idempotent; returns the coordinate for chaining.
func (c *Coordinate[E]) Persist(level partition.StorageLevel) *Coordinate[E] {
	c.problem.Problems().Persist(level)
	return c
}

// Unpersist releases the optimization-problem collection's cached
// partitions and any memory accounted to trained state. Idempotent;
// returns the coordinate for chaining.
func (c *Coordinate[E]) Unpersist() *Coordinate[E] {
	c.problem.Problems().Unpersist()

	c.mu.Lock()
	held := c.heldBytes
	c.heldBytes = 0
	c.mu.Unlock()
	c.opts.controller.ReleaseMemory(held)

	return c
}

// Materialize forces eager evaluation of the optimization-problem
// collection's pending lazy computation. Idempotent.
func (c *Coordinate[E]) Materialize(ctx context.Context) error {
	return translateError(c.problem.Problems().Materialize(ctx))
}

func (c *Coordinate[E]) stateName() string {
	if c.name != "" {
		return c.name
	}
	return c.dataset.EntityType() + "-" + c.dataset.FeatureShardID()
}

// entitySnapshot is the checkpointed view of one entity's trained
// coefficients.
type entitySnapshot[E comparable] struct {
	Entity    E         `json:"entity"`
	Means     []float32 `json:"means"`
	Variances []float32 `json:"variances,omitempty"`
}

func (c *Coordinate[E]) saveCheckpoint(ctx context.Context, name string, collected map[E]trainResult) {
	start := time.Now()

	snapshot := make([]entitySnapshot[E], 0, len(collected))
	for id, r := range collected {
		coeffs := r.model.Coefficients()
		snapshot = append(snapshot, entitySnapshot[E]{
			Entity:    id,
			Means:     coeffs.Means,
			Variances: coeffs.Variances,
		})
	}

	// Checkpoints are diagnosability, not correctness: training
	// succeeds even if the save fails.
	err := c.opts.checkpointer.Save(ctx, name, c.opts.checkpointTier, snapshot)
	c.opts.metricsCollector.RecordCheckpoint(time.Since(start), err)
	c.logger.LogCheckpoint(ctx, name, err)
}

// accountMemory charges the resource controller for the trained
// coefficients pinned in memory, releasing the previous round's
// charge.
func (c *Coordinate[E]) accountMemory(ctx context.Context, collected map[E]trainResult) {
	if c.opts.controller == nil {
		return
	}

	var bytes int64
	for _, r := range collected {
		coeffs := r.model.Coefficients()
		bytes += int64((len(coeffs.Means) + len(coeffs.Variances)) * 4)
	}

	if err := c.opts.controller.AcquireMemory(ctx, bytes); err != nil {
		return
	}

	c.mu.Lock()
	prev := c.heldBytes
	c.heldBytes = bytes
	c.mu.Unlock()
	c.opts.controller.ReleaseMemory(prev)
}
