package glmix

import (
	"context"
	"errors"

	"github.com/RoaringBitmap/roaring/v2/roaring64"

	"github.com/hupe1980/glmix/partition"
)

// ErrOverlappingScores is returned when merging score collections whose
// datum-id sets intersect. Score sets from one coordinate's active and
// passive paths, and across coordinates, are disjoint by construction;
// an overlap signals broken coordination upstream.
var ErrOverlappingScores = errors.New("score collections overlap")

// DataScores is one coordinate's datum-keyed raw scores, plus the set
// of covered datum ids.
type DataScores struct {
	scores  *partition.Block[uint64, float32]
	covered *roaring64.Bitmap
}

// NewDataScores wraps a datum-partitioned score block and its coverage
// bitmap. Callers must not mutate the bitmap afterwards.
func NewDataScores(scores *partition.Block[uint64, float32], covered *roaring64.Bitmap) *DataScores {
	return &DataScores{scores: scores, covered: covered}
}

// Scores returns the datum-partitioned score block.
func (s *DataScores) Scores() *partition.Block[uint64, float32] {
	return s.scores
}

// Covered returns the bitmap of scored datum ids. Callers must not
// mutate it.
func (s *DataScores) Covered() *roaring64.Bitmap {
	return s.covered
}

// Len returns the number of scored data.
func (s *DataScores) Len() int {
	return int(s.covered.GetCardinality())
}

// Collect evaluates the scores and gathers them into a single map.
func (s *DataScores) Collect(ctx context.Context) (map[uint64]float32, error) {
	return s.scores.Collect(ctx)
}

// Merge concatenates two disjoint score collections into one, laid out
// by the receiver's partitioner. Returns ErrOverlappingScores if any
// datum id is scored by both.
func (s *DataScores) Merge(other *DataScores) (*DataScores, error) {
	if roaring64.And(s.covered, other.covered).GetCardinality() > 0 {
		return nil, ErrOverlappingScores
	}

	covered := roaring64.Or(s.covered, other.covered)
	merged := partition.Union(s.scores.Partitioner(), s.scores, other.scores)

	return NewDataScores(merged, covered), nil
}
