package partition

import (
	"context"
	"fmt"
	"sync"
)

// StorageLevel controls whether a materialized block keeps its
// partitions in memory.
type StorageLevel uint8

const (
	// StorageNone recomputes the block on every materializing operation.
	StorageNone StorageLevel = iota
	// StorageMemory caches materialized partitions in memory.
	StorageMemory
)

// String returns the storage level name.
func (s StorageLevel) String() string {
	switch s {
	case StorageNone:
		return "none"
	case StorageMemory:
		return "memory"
	default:
		return fmt.Sprintf("storage(%d)", uint8(s))
	}
}

// Block is a partitioned key-value collection.
//
// A Block is either a source (partitions held in memory) or a lazy
// transformation of other blocks. Transformations compose without
// evaluating anything; Materialize, Collect, Keys and Count force
// evaluation. Unless persisted, a derived block is recomputed on every
// forcing operation.
type Block[K comparable, V any] struct {
	partitioner Partitioner[K]

	mu      sync.Mutex
	name    string
	level   StorageLevel
	parts   []map[K]V
	compute func(ctx context.Context) ([]map[K]V, error)
}

// FromMap creates a source block by hashing m across p's partitions.
func FromMap[K comparable, V any](p Partitioner[K], m map[K]V) *Block[K, V] {
	parts := make([]map[K]V, p.NumPartitions())
	for i := range parts {
		parts[i] = make(map[K]V)
	}
	for k, v := range m {
		parts[p.Partition(k)][k] = v
	}

	return &Block[K, V]{
		partitioner: p,
		level:       StorageMemory,
		parts:       parts,
	}
}

func newLazy[K comparable, V any](p Partitioner[K], compute func(ctx context.Context) ([]map[K]V, error)) *Block[K, V] {
	return &Block[K, V]{
		partitioner: p,
		compute:     compute,
	}
}

// Partitioner returns the partitioner this block is laid out by.
func (b *Block[K, V]) Partitioner() Partitioner[K] {
	return b.partitioner
}

// NumPartitions returns the number of partitions.
func (b *Block[K, V]) NumPartitions() int {
	return b.partitioner.NumPartitions()
}

// WithName tags the block with a diagnostic name. Idempotent; returns
// the receiver for chaining.
func (b *Block[K, V]) WithName(name string) *Block[K, V] {
	b.mu.Lock()
	b.name = name
	b.mu.Unlock()
	return b
}

// Name returns the diagnostic name, or "" if unset.
func (b *Block[K, V]) Name() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.name
}

// Persist pins the block's materialized partitions at the given storage
// level. Persisting does not evaluate the block; pair with Materialize
// for eager pinning. Idempotent; returns the receiver for chaining.
func (b *Block[K, V]) Persist(level StorageLevel) *Block[K, V] {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.level = level
	if level == StorageNone && b.compute != nil {
		b.parts = nil
	}
	return b
}

// Unpersist releases cached partitions. Source blocks keep their data
// (there is nothing to recompute them from). Idempotent; returns the
// receiver for chaining.
func (b *Block[K, V]) Unpersist() *Block[K, V] {
	return b.Persist(StorageNone)
}

// Materialize forces evaluation of pending lazy computation. The result
// is retained only if the block is persisted. Idempotent.
func (b *Block[K, V]) Materialize(ctx context.Context) error {
	_, err := b.get(ctx)
	return err
}

// get returns the evaluated partitions, computing and (if persisted)
// caching them.
func (b *Block[K, V]) get(ctx context.Context) ([]map[K]V, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.parts != nil {
		return b.parts, nil
	}
	parts, err := b.compute(ctx)
	if err != nil {
		return nil, err
	}
	if b.level != StorageNone {
		b.parts = parts
	}
	return parts, nil
}

// Collect evaluates the block and gathers all pairs into a single map.
//
// This is a collection-to-one-process step; callers are responsible for
// only collecting blocks known to be small.
func (b *Block[K, V]) Collect(ctx context.Context) (map[K]V, error) {
	parts, err := b.get(ctx)
	if err != nil {
		return nil, err
	}

	total := 0
	for _, part := range parts {
		total += len(part)
	}
	out := make(map[K]V, total)
	for _, part := range parts {
		for k, v := range part {
			out[k] = v
		}
	}
	return out, nil
}

// Keys evaluates the block and returns all keys, in no particular order.
func (b *Block[K, V]) Keys(ctx context.Context) ([]K, error) {
	parts, err := b.get(ctx)
	if err != nil {
		return nil, err
	}

	var keys []K
	for _, part := range parts {
		for k := range part {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

// Count evaluates the block and returns the number of pairs.
func (b *Block[K, V]) Count(ctx context.Context) (int, error) {
	parts, err := b.get(ctx)
	if err != nil {
		return 0, err
	}

	total := 0
	for _, part := range parts {
		total += len(part)
	}
	return total, nil
}

// Filter returns a lazy block containing only pairs for which pred
// returns true. The partitioner is unchanged.
func (b *Block[K, V]) Filter(pred func(key K, value V) bool) *Block[K, V] {
	return newLazy(b.partitioner, func(ctx context.Context) ([]map[K]V, error) {
		parts, err := b.get(ctx)
		if err != nil {
			return nil, err
		}

		out := make([]map[K]V, len(parts))
		err = parEach(ctx, len(parts), func(i int) error {
			dst := make(map[K]V)
			for k, v := range parts[i] {
				if pred(k, v) {
					dst[k] = v
				}
			}
			out[i] = dst
			return nil
		})
		if err != nil {
			return nil, err
		}
		return out, nil
	})
}

// MapValues returns a lazy block with fn applied to every value.
// Keys and partitioning are unchanged, so the result stays
// co-partitioned with the input.
func MapValues[K comparable, V, W any](b *Block[K, V], fn func(key K, value V) (W, error)) *Block[K, W] {
	return newLazy(b.partitioner, func(ctx context.Context) ([]map[K]W, error) {
		parts, err := b.get(ctx)
		if err != nil {
			return nil, err
		}

		out := make([]map[K]W, len(parts))
		err = parEach(ctx, len(parts), func(i int) error {
			dst := make(map[K]W, len(parts[i]))
			for k, v := range parts[i] {
				w, err := fn(k, v)
				if err != nil {
					return err
				}
				dst[k] = w
			}
			out[i] = dst
			return nil
		})
		if err != nil {
			return nil, err
		}
		return out, nil
	})
}

// KV is a key-value pair emitted by FlatMapPairs.
type KV[K comparable, V any] struct {
	Key   K
	Value V
}

// FlatMapPairs re-keys a block: fn maps every input pair to zero or
// more output pairs, which are repartitioned by p. This is the shuffle
// primitive; use it when results must leave the input's key space
// (e.g. re-keying entity-partitioned results by datum id).
func FlatMapPairs[K comparable, V any, K2 comparable, V2 any](
	b *Block[K, V],
	p Partitioner[K2],
	fn func(key K, value V) ([]KV[K2, V2], error),
) *Block[K2, V2] {
	return newLazy(p, func(ctx context.Context) ([]map[K2]V2, error) {
		parts, err := b.get(ctx)
		if err != nil {
			return nil, err
		}

		// Each input partition produces its own set of output shards,
		// merged afterwards to avoid locking in the hot loop.
		shards := make([][]map[K2]V2, len(parts))
		err = parEach(ctx, len(parts), func(i int) error {
			local := make([]map[K2]V2, p.NumPartitions())
			for j := range local {
				local[j] = make(map[K2]V2)
			}
			for k, v := range parts[i] {
				pairs, err := fn(k, v)
				if err != nil {
					return err
				}
				for _, kv := range pairs {
					local[p.Partition(kv.Key)][kv.Key] = kv.Value
				}
			}
			shards[i] = local
			return nil
		})
		if err != nil {
			return nil, err
		}

		out := make([]map[K2]V2, p.NumPartitions())
		for j := range out {
			out[j] = make(map[K2]V2)
		}
		for _, local := range shards {
			for j, m := range local {
				for k, v := range m {
					out[j][k] = v
				}
			}
		}
		return out, nil
	})
}

// Repartition returns a lazy block with the same pairs laid out by p.
func Repartition[K comparable, V any](b *Block[K, V], p Partitioner[K]) *Block[K, V] {
	return newLazy(p, func(ctx context.Context) ([]map[K]V, error) {
		parts, err := b.get(ctx)
		if err != nil {
			return nil, err
		}
		return repartitionParts(parts, p), nil
	})
}

// Union merges blocks with pairwise-disjoint key sets into one block
// laid out by p. If key sets overlap, which value survives is
// unspecified.
func Union[K comparable, V any](p Partitioner[K], blocks ...*Block[K, V]) *Block[K, V] {
	return newLazy(p, func(ctx context.Context) ([]map[K]V, error) {
		out := make([]map[K]V, p.NumPartitions())
		for i := range out {
			out[i] = make(map[K]V)
		}
		for _, b := range blocks {
			parts, err := b.get(ctx)
			if err != nil {
				return nil, err
			}
			aligned := parts
			if b.partitioner != p || len(parts) != p.NumPartitions() {
				aligned = repartitionParts(parts, p)
			}
			for i, part := range aligned {
				for k, v := range part {
					out[i][k] = v
				}
			}
		}
		return out, nil
	})
}

func repartitionParts[K comparable, V any](parts []map[K]V, p Partitioner[K]) []map[K]V {
	out := make([]map[K]V, p.NumPartitions())
	for i := range out {
		out[i] = make(map[K]V)
	}
	for _, part := range parts {
		for k, v := range part {
			out[p.Partition(k)][k] = v
		}
	}
	return out
}
