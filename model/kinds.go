package model

import (
	"github.com/hupe1980/glmix/partition"
)

// Model is the closed union of coordinate-level model kinds. Train and
// score entry points type-switch on the concrete kind; an unsupported
// kind is a fatal condition, never coerced.
//
// The interface is sealed: only types in this package implement it.
type Model interface {
	isModel()
}

// RandomEffectModel holds one trained model per entity, partitioned by
// entity id.
type RandomEffectModel[E comparable] struct {
	models         *partition.Block[E, EntityModel]
	entityType     string
	featureShardID string
}

// NewRandomEffectModel creates a random-effect model over a per-entity
// model block.
func NewRandomEffectModel[E comparable](
	models *partition.Block[E, EntityModel],
	entityType string,
	featureShardID string,
) *RandomEffectModel[E] {
	return &RandomEffectModel[E]{
		models:         models,
		entityType:     entityType,
		featureShardID: featureShardID,
	}
}

func (m *RandomEffectModel[E]) isModel() {}

// Models returns the per-entity model block.
func (m *RandomEffectModel[E]) Models() *partition.Block[E, EntityModel] {
	return m.models
}

// EntityType returns the entity-type tag (e.g. "user", "item").
func (m *RandomEffectModel[E]) EntityType() string {
	return m.entityType
}

// FeatureShardID returns the feature-shard tag.
func (m *RandomEffectModel[E]) FeatureShardID() string {
	return m.featureShardID
}

// WithModels returns a new instance carrying models, preserving the
// entity-type and feature-shard tags. The receiver is unchanged.
func (m *RandomEffectModel[E]) WithModels(models *partition.Block[E, EntityModel]) *RandomEffectModel[E] {
	return NewRandomEffectModel(models, m.entityType, m.featureShardID)
}

// FixedEffectModel holds a single global-space model shared by all
// data. It exists so coordinate dispatch has a real second variant;
// random-effect coordinates reject it.
type FixedEffectModel struct {
	model          EntityModel
	featureShardID string
}

// NewFixedEffectModel creates a fixed-effect model.
func NewFixedEffectModel(m EntityModel, featureShardID string) *FixedEffectModel {
	return &FixedEffectModel{model: m, featureShardID: featureShardID}
}

func (m *FixedEffectModel) isModel() {}

// Model returns the underlying global-space model.
func (m *FixedEffectModel) Model() EntityModel {
	return m.model
}

// FeatureShardID returns the feature-shard tag.
func (m *FixedEffectModel) FeatureShardID() string {
	return m.featureShardID
}
