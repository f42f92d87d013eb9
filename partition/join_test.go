package partition

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJoin_Inner(t *testing.T) {
	ctx := context.Background()
	p := NewStringPartitioner(4)

	a := FromMap(p, map[string]int{"e1": 1, "e2": 2, "e3": 3})
	b := FromMap(p, map[string]string{"e2": "two", "e3": "three", "e4": "four"})

	got, err := Join(a, b).Collect(ctx)
	require.NoError(t, err)

	assert.Equal(t, map[string]Pair[int, string]{
		"e2": {Left: 2, Right: "two"},
		"e3": {Left: 3, Right: "three"},
	}, got)
}

func TestJoin_RepartitionsWhenNotCoPartitioned(t *testing.T) {
	ctx := context.Background()
	pa := NewStringPartitioner(4)
	pb := NewStringPartitioner(2)

	a := FromMap(pa, map[string]int{"e1": 1, "e2": 2})
	b := FromMap(pb, map[string]string{"e1": "one", "e2": "two"})

	joined := Join(a, b)
	assert.Same(t, any(pa), any(joined.Partitioner()))

	got, err := joined.Collect(ctx)
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Equal(t, Pair[int, string]{Left: 1, Right: "one"}, got["e1"])
}

func TestLeftOuterJoin(t *testing.T) {
	ctx := context.Background()
	p := NewStringPartitioner(4)

	a := FromMap(p, map[string]int{"e1": 1, "e2": 2})
	b := FromMap(p, map[string]string{"e2": "two", "e3": "three"})

	got, err := LeftOuterJoin(a, b).Collect(ctx)
	require.NoError(t, err)

	// Left keys survive; right-only keys are dropped.
	assert.Len(t, got, 2)
	assert.Equal(t, Joined[int, string]{Left: 1, HasLeft: true}, got["e1"])
	assert.Equal(t, Joined[int, string]{Left: 2, Right: "two", HasLeft: true, HasRight: true}, got["e2"])
}

func TestFullOuterJoin(t *testing.T) {
	ctx := context.Background()
	p := NewStringPartitioner(4)

	a := FromMap(p, map[string]int{"e1": 1, "e2": 2})
	b := FromMap(p, map[string]string{"e2": "two", "e3": "three"})

	got, err := FullOuterJoin(a, b).Collect(ctx)
	require.NoError(t, err)

	assert.Len(t, got, 3)
	assert.Equal(t, Joined[int, string]{Left: 1, HasLeft: true}, got["e1"])
	assert.Equal(t, Joined[int, string]{Left: 2, Right: "two", HasLeft: true, HasRight: true}, got["e2"])
	assert.Equal(t, Joined[int, string]{Right: "three", HasRight: true}, got["e3"])
}

func TestJoin_LazyComposition(t *testing.T) {
	ctx := context.Background()
	p := NewStringPartitioner(4)

	a := FromMap(p, map[string]int{"e1": 10, "e2": 20})
	b := FromMap(p, map[string]int{"e1": 1, "e2": 2})

	// join -> map -> join composes without evaluation until Collect.
	sums := MapValues(Join(a, b), func(_ string, pr Pair[int, int]) (int, error) {
		return pr.Left + pr.Right, nil
	})
	again := Join(sums, a)

	got, err := again.Collect(ctx)
	require.NoError(t, err)
	assert.Equal(t, Pair[int, int]{Left: 11, Right: 10}, got["e1"])
	assert.Equal(t, Pair[int, int]{Left: 22, Right: 20}, got["e2"])
}
