// Package dataset defines the partitioned training data for one
// random-effect coordinate: per-entity local datasets for entities with
// enough data to train ("active"), datum-partitioned points for
// entities too sparse to train ("passive"), and the per-entity subspace
// projectors.
package dataset

import (
	"context"
	"errors"

	"github.com/RoaringBitmap/roaring/v2/roaring64"

	"github.com/hupe1980/glmix/partition"
	"github.com/hupe1980/glmix/projection"
)

// ErrNotCoPartitioned is returned when active data and projectors do
// not share a partitioner. Co-partitioning by entity id is established
// at construction time and relied upon to avoid shuffles during joins.
var ErrNotCoPartitioned = errors.New("dataset: active data and projectors must share a partitioner")

// LabeledPoint is one training observation. The owning entity id is
// implied by the container key for active points and carried explicitly
// for passive points.
type LabeledPoint struct {
	// ID is the globally unique datum id.
	ID uint64
	// Label is the response value.
	Label float32
	// Features is the feature vector, in whatever space the containing
	// collection declares.
	Features []float32
	// Offset is added to the raw score before the loss is evaluated,
	// carrying the contribution of other coordinates.
	Offset float32
	// Weight scales this point's contribution to the loss. Zero means
	// weight one.
	Weight float32
}

// EffectiveWeight returns the point's loss weight, defaulting to one.
func (p LabeledPoint) EffectiveWeight() float32 {
	if p.Weight == 0 {
		return 1
	}
	return p.Weight
}

// LocalDataset is one entity's active training points.
type LocalDataset struct {
	Points []LabeledPoint
}

// NewLocalDataset creates a local dataset from points.
func NewLocalDataset(points []LabeledPoint) *LocalDataset {
	return &LocalDataset{Points: points}
}

// Len returns the number of points.
func (d *LocalDataset) Len() int {
	return len(d.Points)
}

// PassivePoint is a datum-keyed point for an entity too sparse to train
// this round.
type PassivePoint[E comparable] struct {
	EntityID E
	Point    LabeledPoint
}

// Config carries the inputs to New.
type Config[E comparable] struct {
	// ActiveData maps entity id to that entity's local dataset.
	ActiveData *partition.Block[E, *LocalDataset]
	// PassiveData maps datum id to (entity id, point). It is
	// partitioned by DatumPartitioner, matching the global datum space.
	PassiveData *partition.Block[uint64, PassivePoint[E]]
	// Projectors maps entity id to that entity's subspace projector.
	// Must share ActiveData's partitioner.
	Projectors *partition.Block[E, projection.Projector]
	// EntityType tags the kind of entity (e.g. "user", "item").
	EntityType string
	// FeatureShardID tags the feature shard this dataset was built from.
	FeatureShardID string
	// DatumPartitioner is the datum-id partitioner shared with other
	// coordinates' score collections.
	DatumPartitioner partition.Partitioner[uint64]
}

// RandomEffectDataset is the partitioned view of all entities' data for
// one coordinate.
type RandomEffectDataset[E comparable] struct {
	activeData       *partition.Block[E, *LocalDataset]
	passiveData      *partition.Block[uint64, PassivePoint[E]]
	passiveEntityIDs map[E]struct{}
	passiveDatumIDs  *roaring64.Bitmap
	projectors       *partition.Block[E, projection.Projector]
	entityType       string
	featureShardID   string
	datumPartitioner partition.Partitioner[uint64]
}

// New validates the co-partitioning invariant and derives the passive
// entity id set from the passive data. The derived set is immutable
// after construction and handed to every scoring call.
func New[E comparable](ctx context.Context, cfg Config[E]) (*RandomEffectDataset[E], error) {
	if cfg.ActiveData.Partitioner() != cfg.Projectors.Partitioner() {
		return nil, ErrNotCoPartitioned
	}

	passiveEntityIDs := make(map[E]struct{})
	passiveDatumIDs := roaring64.New()
	if cfg.PassiveData != nil {
		passive, err := cfg.PassiveData.Collect(ctx)
		if err != nil {
			return nil, err
		}
		for datumID, pp := range passive {
			passiveEntityIDs[pp.EntityID] = struct{}{}
			passiveDatumIDs.Add(datumID)
		}
	}

	return &RandomEffectDataset[E]{
		activeData:       cfg.ActiveData,
		passiveData:      cfg.PassiveData,
		passiveEntityIDs: passiveEntityIDs,
		passiveDatumIDs:  passiveDatumIDs,
		projectors:       cfg.Projectors,
		entityType:       cfg.EntityType,
		featureShardID:   cfg.FeatureShardID,
		datumPartitioner: cfg.DatumPartitioner,
	}, nil
}

// ActiveData returns the entity-partitioned active data.
func (d *RandomEffectDataset[E]) ActiveData() *partition.Block[E, *LocalDataset] {
	return d.activeData
}

// PassiveData returns the datum-partitioned passive data, or nil when
// the coordinate has none.
func (d *RandomEffectDataset[E]) PassiveData() *partition.Block[uint64, PassivePoint[E]] {
	return d.passiveData
}

// HasPassiveEntity reports whether entity id occurs in the passive data.
func (d *RandomEffectDataset[E]) HasPassiveEntity(id E) bool {
	_, ok := d.passiveEntityIDs[id]
	return ok
}

// NumPassiveEntities returns the number of distinct passive entities.
func (d *RandomEffectDataset[E]) NumPassiveEntities() int {
	return len(d.passiveEntityIDs)
}

// PassiveDatumIDs returns the set of datum ids occurring in the passive
// data. Callers must not mutate the bitmap.
func (d *RandomEffectDataset[E]) PassiveDatumIDs() *roaring64.Bitmap {
	return d.passiveDatumIDs
}

// ActiveDatumIDs evaluates the active data and returns its datum ids.
func (d *RandomEffectDataset[E]) ActiveDatumIDs(ctx context.Context) (*roaring64.Bitmap, error) {
	active, err := d.activeData.Collect(ctx)
	if err != nil {
		return nil, err
	}

	ids := roaring64.New()
	for _, local := range active {
		for _, p := range local.Points {
			ids.Add(p.ID)
		}
	}
	return ids, nil
}

// Projectors returns the entity-partitioned projector collection.
func (d *RandomEffectDataset[E]) Projectors() *partition.Block[E, projection.Projector] {
	return d.projectors
}

// EntityType returns the entity-type tag.
func (d *RandomEffectDataset[E]) EntityType() string {
	return d.entityType
}

// FeatureShardID returns the feature-shard tag.
func (d *RandomEffectDataset[E]) FeatureShardID() string {
	return d.featureShardID
}

// DatumPartitioner returns the datum-id partitioner.
func (d *RandomEffectDataset[E]) DatumPartitioner() partition.Partitioner[uint64] {
	return d.datumPartitioner
}

// EntityPartitioner returns the entity-id partitioner shared by active
// data and projectors.
func (d *RandomEffectDataset[E]) EntityPartitioner() partition.Partitioner[E] {
	return d.activeData.Partitioner()
}
