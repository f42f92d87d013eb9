package partition

import (
	"context"
)

// Pair holds the two sides of an inner join match.
type Pair[A, B any] struct {
	Left  A
	Right B
}

// Joined holds the two sides of an outer join. HasLeft/HasRight report
// which sides were present; the corresponding value is the zero value
// when absent.
type Joined[A, B any] struct {
	Left     A
	Right    B
	HasLeft  bool
	HasRight bool
}

// Join returns the inner join of a and b on key.
//
// When a and b share a partitioner, partitions are zipped pairwise with
// no data movement; otherwise b is repartitioned into a's layout first.
// The result is co-partitioned with a.
func Join[K comparable, A, B any](a *Block[K, A], b *Block[K, B]) *Block[K, Pair[A, B]] {
	return newLazy(a.partitioner, func(ctx context.Context) ([]map[K]Pair[A, B], error) {
		aParts, bParts, err := alignedParts(ctx, a, b)
		if err != nil {
			return nil, err
		}

		out := make([]map[K]Pair[A, B], len(aParts))
		err = parEach(ctx, len(aParts), func(i int) error {
			dst := make(map[K]Pair[A, B])
			for k, av := range aParts[i] {
				if bv, ok := bParts[i][k]; ok {
					dst[k] = Pair[A, B]{Left: av, Right: bv}
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

// LeftOuterJoin returns all keys of a joined with matching values of b.
// Keys present only in b are dropped. HasLeft is always true in the
// result. The result is co-partitioned with a.
func LeftOuterJoin[K comparable, A, B any](a *Block[K, A], b *Block[K, B]) *Block[K, Joined[A, B]] {
	return newLazy(a.partitioner, func(ctx context.Context) ([]map[K]Joined[A, B], error) {
		aParts, bParts, err := alignedParts(ctx, a, b)
		if err != nil {
			return nil, err
		}

		out := make([]map[K]Joined[A, B], len(aParts))
		err = parEach(ctx, len(aParts), func(i int) error {
			dst := make(map[K]Joined[A, B], len(aParts[i]))
			for k, av := range aParts[i] {
				j := Joined[A, B]{Left: av, HasLeft: true}
				if bv, ok := bParts[i][k]; ok {
					j.Right = bv
					j.HasRight = true
				}
				dst[k] = j
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

// FullOuterJoin returns all keys of a and b with whichever sides are
// present. The result is co-partitioned with a.
func FullOuterJoin[K comparable, A, B any](a *Block[K, A], b *Block[K, B]) *Block[K, Joined[A, B]] {
	return newLazy(a.partitioner, func(ctx context.Context) ([]map[K]Joined[A, B], error) {
		aParts, bParts, err := alignedParts(ctx, a, b)
		if err != nil {
			return nil, err
		}

		out := make([]map[K]Joined[A, B], len(aParts))
		err = parEach(ctx, len(aParts), func(i int) error {
			dst := make(map[K]Joined[A, B], len(aParts[i]))
			for k, av := range aParts[i] {
				j := Joined[A, B]{Left: av, HasLeft: true}
				if bv, ok := bParts[i][k]; ok {
					j.Right = bv
					j.HasRight = true
				}
				dst[k] = j
			}
			for k, bv := range bParts[i] {
				if _, ok := aParts[i][k]; !ok {
					dst[k] = Joined[A, B]{Right: bv, HasRight: true}
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

// alignedParts evaluates both sides of a join and aligns b's partitions
// to a's layout, repartitioning only when the blocks are not
// co-partitioned.
func alignedParts[K comparable, A, B any](ctx context.Context, a *Block[K, A], b *Block[K, B]) ([]map[K]A, []map[K]B, error) {
	aParts, err := a.get(ctx)
	if err != nil {
		return nil, nil, err
	}
	bParts, err := b.get(ctx)
	if err != nil {
		return nil, nil, err
	}

	if !coPartitioned(a, b) {
		bParts = repartitionParts(bParts, a.partitioner)
	}
	return aParts, bParts, nil
}

// coPartitioned reports whether two blocks share a partitioner. Sharing
// is by identity: the co-partitioning discipline is established by
// constructing related blocks from one Partitioner value.
func coPartitioned[K comparable, A, B any](a *Block[K, A], b *Block[K, B]) bool {
	return a.partitioner == b.partitioner
}
