// Package model defines trained model values: per-entity coefficients,
// the entity-level generalized linear models built from them, and the
// closed union of coordinate-level model kinds that train and score
// entry points dispatch on.
//
// All model values are immutable. "Updating" a model produces a new
// instance carrying the same partitioner and tags.
package model
