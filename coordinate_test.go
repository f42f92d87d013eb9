package glmix

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/RoaringBitmap/roaring/v2/roaring64"

	"github.com/hupe1980/glmix/blobstore"
	"github.com/hupe1980/glmix/checkpoint"
	"github.com/hupe1980/glmix/dataset"
	"github.com/hupe1980/glmix/model"
	"github.com/hupe1980/glmix/optimize"
	"github.com/hupe1980/glmix/partition"
	"github.com/hupe1980/glmix/projection"
	"github.com/hupe1980/glmix/testutil"
)

func bitmapOf(ids ...uint64) *roaring64.Bitmap {
	b := roaring64.New()
	b.AddMany(ids)
	return b
}

var testConfig = optimize.Config{
	MaxIterations: 2000,
	StepSize:      0.05,
	Tolerance:     1e-4,
}

func linearConstructor(c model.Coefficients) model.EntityModel {
	return model.NewLinearRegression(c)
}

func identityProjector(t *testing.T, dim int) projection.Projector {
	t.Helper()

	observed := make([]int, dim)
	for i := range observed {
		observed[i] = i
	}
	p, err := projection.NewIndexMapProjector(dim, observed)
	if err != nil {
		t.Fatalf("NewIndexMapProjector() error = %v", err)
	}
	return p
}

type fixture struct {
	entityP partition.Partitioner[string]
	datumP  partition.Partitioner[uint64]
	ds      *dataset.RandomEffectDataset[string]
	problem *optimize.RandomEffectProblem[string]
}

// newFixture builds a two-entity coordinate with noise-free linear
// data: "e1" generated from weights (2, -1), "e2" from (0.5, 1.5).
// Passive points, if any, are added on top.
func newFixture(t *testing.T, passive map[uint64]dataset.PassivePoint[string], tracking bool) *fixture {
	t.Helper()
	ctx := context.Background()

	entityP := partition.NewStringPartitioner(4)
	datumP := partition.NewUint64Partitioner(4)

	rng := testutil.NewRNG(42)
	active := map[string]*dataset.LocalDataset{
		"e1": dataset.NewLocalDataset(rng.LinearPoints(100, []float32{2, -1}, 8)),
		"e2": dataset.NewLocalDataset(rng.LinearPoints(200, []float32{0.5, 1.5}, 8)),
	}

	projectors := map[string]projection.Projector{
		"e1": identityProjector(t, 2),
		"e2": identityProjector(t, 2),
	}

	var passiveBlock *partition.Block[uint64, dataset.PassivePoint[string]]
	if passive != nil {
		passiveBlock = partition.FromMap(datumP, passive)
	}

	ds, err := dataset.New(ctx, dataset.Config[string]{
		ActiveData:       partition.FromMap(entityP, active),
		PassiveData:      passiveBlock,
		Projectors:       partition.FromMap(entityP, projectors),
		EntityType:       "member",
		FeatureShardID:   "shard-a",
		DatumPartitioner: datumP,
	})
	if err != nil {
		t.Fatalf("dataset.New() error = %v", err)
	}

	problem := optimize.NewRandomEffectProblem(
		ds.Projectors(), testConfig, optimize.SquaredLoss{},
		linearConstructor, nil, optimize.VarianceNone, tracking,
	)

	return &fixture{entityP: entityP, datumP: datumP, ds: ds, problem: problem}
}

func entityMeans(t *testing.T, ctx context.Context, m model.Model, id string) []float32 {
	t.Helper()

	rem, ok := m.(*model.RandomEffectModel[string])
	if !ok {
		t.Fatalf("model type = %T, want *model.RandomEffectModel[string]", m)
	}
	models, err := rem.Models().Collect(ctx)
	if err != nil {
		t.Fatalf("Collect() error = %v", err)
	}
	em, ok := models[id]
	if !ok {
		t.Fatalf("no model for entity %q", id)
	}
	return em.Coefficients().Means
}

func wantClose(t *testing.T, got, want []float32, tol float64) {
	t.Helper()

	if len(got) != len(want) {
		t.Fatalf("dim = %d, want %d", len(got), len(want))
	}
	for i := range got {
		if math.Abs(float64(got[i]-want[i])) > tol {
			t.Fatalf("coefficient[%d] = %v, want %v (±%v)", i, got[i], want[i], tol)
		}
	}
}

func TestCoordinate_TrainModel(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil, false)
	coord := NewCoordinate(f.ds, f.problem)

	trained, tracker, err := coord.TrainModel(ctx)
	if err != nil {
		t.Fatalf("TrainModel() error = %v", err)
	}
	if tracker != nil {
		t.Fatalf("tracker = %v, want nil with tracking disabled", tracker)
	}

	wantClose(t, entityMeans(t, ctx, trained, "e1"), []float32{2, -1}, 1e-2)
	wantClose(t, entityMeans(t, ctx, trained, "e2"), []float32{0.5, 1.5}, 1e-2)
}

func TestCoordinate_TrainModelDeterministic(t *testing.T) {
	ctx := context.Background()

	train := func() map[string]model.EntityModel {
		f := newFixture(t, nil, false)
		trained, _, err := NewCoordinate(f.ds, f.problem).TrainModel(ctx)
		if err != nil {
			t.Fatalf("TrainModel() error = %v", err)
		}
		models, err := trained.(*model.RandomEffectModel[string]).Models().Collect(ctx)
		if err != nil {
			t.Fatalf("Collect() error = %v", err)
		}
		return models
	}

	first := train()
	second := train()

	for id, em := range first {
		if !em.Coefficients().Equal(second[id].Coefficients()) {
			t.Fatalf("entity %q: coefficients differ between identical runs", id)
		}
	}
}

// Warm-start semantics: an entity with prior and data is retrained, an
// entity with data only is cold-started, and an entity with a prior
// but no data this round passes through untouched with no tracker
// entry.
func TestCoordinate_TrainModelWithPrior(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil, true)
	coord := NewCoordinate(f.ds, f.problem)

	prior := model.NewRandomEffectModel(
		partition.FromMap(f.entityP, map[string]model.EntityModel{
			"e1": model.NewLinearRegression(model.NewCoefficients([]float32{1, 1})),
			"e3": model.NewLinearRegression(model.NewCoefficients([]float32{3, 4})),
		}),
		"member", "shard-a",
	)

	trained, tracker, err := coord.TrainModelWithPrior(ctx, prior)
	if err != nil {
		t.Fatalf("TrainModelWithPrior() error = %v", err)
	}

	// Retrained entities converge to the generating weights regardless
	// of starting point.
	wantClose(t, entityMeans(t, ctx, trained, "e1"), []float32{2, -1}, 1e-2)
	wantClose(t, entityMeans(t, ctx, trained, "e2"), []float32{0.5, 1.5}, 1e-2)

	// Passthrough entity keeps its prior coefficients bit for bit.
	e3 := entityMeans(t, ctx, trained, "e3")
	if e3[0] != 3 || e3[1] != 4 {
		t.Fatalf("passthrough entity e3 means = %v, want [3 4]", e3)
	}

	if tracker == nil {
		t.Fatal("tracker = nil, want tracker with tracking enabled")
	}
	if tracker.Len() != 2 {
		t.Fatalf("tracker.Len() = %d, want 2 (passthrough contributes no entry)", tracker.Len())
	}
	if _, ok := tracker.Get("e3"); ok {
		t.Fatal("tracker has entry for passthrough entity e3")
	}
	for _, id := range []string{"e1", "e2"} {
		state, ok := tracker.Get(id)
		if !ok {
			t.Fatalf("tracker missing entry for %q", id)
		}
		if !state.Converged {
			t.Fatalf("entity %q did not converge: %+v", id, state)
		}
		if state.Objective != "squared" {
			t.Fatalf("entity %q objective = %q, want %q", id, state.Objective, "squared")
		}
	}
}

func TestCoordinate_TrainModelWithPriorWrongType(t *testing.T) {
	f := newFixture(t, nil, false)
	coord := NewCoordinate(f.ds, f.problem)

	fixed := model.NewFixedEffectModel(
		model.NewLinearRegression(model.NewCoefficients([]float32{1})), "shard-a")

	_, _, err := coord.TrainModelWithPrior(context.Background(), fixed)

	var unsupported *ErrUnsupportedModelType
	if !errors.As(err, &unsupported) {
		t.Fatalf("error = %v, want *ErrUnsupportedModelType", err)
	}
	if unsupported.Actual != "*model.FixedEffectModel" {
		t.Fatalf("Actual = %q, want %q", unsupported.Actual, "*model.FixedEffectModel")
	}
}

// Score identity: a datum's score is exactly the dot product of its
// features and its entity's coefficient means, with no link function.
func TestCoordinate_Score(t *testing.T) {
	ctx := context.Background()

	entityP := partition.NewStringPartitioner(2)
	datumP := partition.NewUint64Partitioner(2)

	active := map[string]*dataset.LocalDataset{
		"e1": dataset.NewLocalDataset([]dataset.LabeledPoint{
			{ID: 1, Features: []float32{3, 4}},
		}),
	}
	passive := map[uint64]dataset.PassivePoint[string]{
		10: {EntityID: "e2", Point: dataset.LabeledPoint{ID: 10, Features: []float32{1, 1}}},
	}

	ds, err := dataset.New(ctx, dataset.Config[string]{
		ActiveData:       partition.FromMap(entityP, active),
		PassiveData:      partition.FromMap(datumP, passive),
		Projectors:       partition.FromMap(entityP, map[string]projection.Projector{"e1": identityProjector(t, 2)}),
		EntityType:       "member",
		FeatureShardID:   "shard-a",
		DatumPartitioner: datumP,
	})
	if err != nil {
		t.Fatalf("dataset.New() error = %v", err)
	}

	problem := optimize.NewRandomEffectProblem(
		ds.Projectors(), testConfig, optimize.SquaredLoss{},
		linearConstructor, nil, optimize.VarianceNone, false,
	)
	coord := NewCoordinate(ds, problem)

	m := model.NewRandomEffectModel(
		partition.FromMap(entityP, map[string]model.EntityModel{
			"e1": model.NewLinearRegression(model.NewCoefficients([]float32{2, -1})),
			"e2": model.NewLinearRegression(model.NewCoefficients([]float32{0.5, 0.5})),
		}),
		"member", "shard-a",
	)

	scores, err := coord.Score(ctx, m)
	if err != nil {
		t.Fatalf("Score() error = %v", err)
	}

	got, err := scores.Collect(ctx)
	if err != nil {
		t.Fatalf("Collect() error = %v", err)
	}

	// Active: 2*3 + (-1)*4 = 2. Passive: 0.5 + 0.5 = 1.
	if got[1] != 2 {
		t.Fatalf("score(datum 1) = %v, want 2", got[1])
	}
	if got[10] != 1 {
		t.Fatalf("score(datum 10) = %v, want 1", got[10])
	}

	// Coverage is exactly the union of active and passive datum ids.
	if scores.Len() != 2 {
		t.Fatalf("scores.Len() = %d, want 2", scores.Len())
	}
	if !scores.Covered().Contains(1) || !scores.Covered().Contains(10) {
		t.Fatalf("covered = %v, want {1, 10}", scores.Covered().ToArray())
	}
}

// A passive point whose entity has no gathered model is a fatal lookup
// failure, never a silent zero score.
func TestCoordinate_ScoreMissingPassiveModel(t *testing.T) {
	ctx := context.Background()
	passive := map[uint64]dataset.PassivePoint[string]{
		99: {EntityID: "ghost", Point: dataset.LabeledPoint{ID: 99, Features: []float32{1, 1}}},
	}
	f := newFixture(t, passive, false)
	coord := NewCoordinate(f.ds, f.problem)

	m := model.NewRandomEffectModel(
		partition.FromMap(f.entityP, map[string]model.EntityModel{
			"e1": model.NewLinearRegression(model.NewCoefficients([]float32{1, 1})),
			"e2": model.NewLinearRegression(model.NewCoefficients([]float32{1, 1})),
		}),
		"member", "shard-a",
	)

	_, err := coord.Score(ctx, m)

	var missing *ErrMissingEntityModel
	if !errors.As(err, &missing) {
		t.Fatalf("error = %v, want *ErrMissingEntityModel", err)
	}
	if missing.EntityID != any("ghost") || missing.DatumID != 99 {
		t.Fatalf("missing = %+v, want entity ghost, datum 99", missing)
	}
}

func TestCoordinate_ScoreNilModel(t *testing.T) {
	f := newFixture(t, nil, false)
	coord := NewCoordinate(f.ds, f.problem)

	_, err := coord.Score(context.Background(), nil)
	if !errors.Is(err, ErrNilModel) {
		t.Fatalf("error = %v, want ErrNilModel", err)
	}
}

// Projection round trip: forward then backward restores observed
// coefficients exactly and zero-fills the rest; entities without a
// projector pass through unchanged.
func TestCoordinate_ProjectRoundTrip(t *testing.T) {
	ctx := context.Background()

	entityP := partition.NewStringPartitioner(2)
	datumP := partition.NewUint64Partitioner(2)

	proj, err := projection.NewIndexMapProjector(4, []int{1, 3})
	if err != nil {
		t.Fatalf("NewIndexMapProjector() error = %v", err)
	}

	ds, err := dataset.New(ctx, dataset.Config[string]{
		ActiveData: partition.FromMap(entityP, map[string]*dataset.LocalDataset{
			"e1": dataset.NewLocalDataset(nil),
		}),
		Projectors:       partition.FromMap(entityP, map[string]projection.Projector{"e1": proj}),
		EntityType:       "member",
		FeatureShardID:   "shard-a",
		DatumPartitioner: datumP,
	})
	if err != nil {
		t.Fatalf("dataset.New() error = %v", err)
	}

	problem := optimize.NewRandomEffectProblem(
		ds.Projectors(), testConfig, optimize.SquaredLoss{},
		linearConstructor, nil, optimize.VarianceNone, false,
	)
	coord := NewCoordinate(ds, problem)

	m := model.NewRandomEffectModel(
		partition.FromMap(entityP, map[string]model.EntityModel{
			"e1":       model.NewLinearRegression(model.NewCoefficients([]float32{0, 5, 0, -2})),
			"retained": model.NewLinearRegression(model.NewCoefficients([]float32{7, 7, 7, 7})),
		}),
		"member", "shard-a",
	)

	forward, err := coord.ProjectForward(m)
	if err != nil {
		t.Fatalf("ProjectForward() error = %v", err)
	}

	compressed := entityMeans(t, ctx, forward, "e1")
	if len(compressed) != 2 || compressed[0] != 5 || compressed[1] != -2 {
		t.Fatalf("forward-projected means = %v, want [5 -2]", compressed)
	}

	backward, err := coord.ProjectBackward(forward)
	if err != nil {
		t.Fatalf("ProjectBackward() error = %v", err)
	}

	restored := entityMeans(t, ctx, backward, "e1")
	want := []float32{0, 5, 0, -2}
	for i := range want {
		if restored[i] != want[i] {
			t.Fatalf("restored means = %v, want %v", restored, want)
		}
	}

	// No projector entry: passthrough in both directions.
	passthrough := entityMeans(t, ctx, backward, "retained")
	for _, v := range passthrough {
		if v != 7 {
			t.Fatalf("passthrough means = %v, want all 7", passthrough)
		}
	}
}

func TestCoordinate_Lifecycle(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil, false)
	coord := NewCoordinate(f.ds, f.problem)

	// All lifecycle operations chain and are idempotent.
	got := coord.SetName("member-coordinate").
		Persist(partition.StorageMemory).
		SetName("member-coordinate")
	if got != coord {
		t.Fatal("lifecycle operations must return the same coordinate")
	}

	if err := coord.Materialize(ctx); err != nil {
		t.Fatalf("Materialize() error = %v", err)
	}
	if err := coord.Materialize(ctx); err != nil {
		t.Fatalf("second Materialize() error = %v", err)
	}

	if name := f.problem.Problems().Name(); name != "member-coordinate-problems" {
		t.Fatalf("problem block name = %q, want %q", name, "member-coordinate-problems")
	}

	if got := coord.Unpersist().Unpersist(); got != coord {
		t.Fatal("Unpersist() must return the same coordinate")
	}

	// Lifecycle only affects materialization, never logical values:
	// training still works after a release.
	if _, _, err := coord.TrainModel(ctx); err != nil {
		t.Fatalf("TrainModel() after Unpersist() error = %v", err)
	}
}

func TestCoordinate_UpdateWithDataset(t *testing.T) {
	f := newFixture(t, nil, false)
	coord := NewCoordinate(f.ds, f.problem).SetName("round-0")

	f2 := newFixture(t, nil, false)
	next := coord.UpdateWithDataset(f2.ds)

	if next == coord {
		t.Fatal("UpdateWithDataset() must return a new coordinate")
	}
	if next.Dataset() != f2.ds {
		t.Fatal("new coordinate must carry the new dataset")
	}
	if next.Problem() != coord.Problem() {
		t.Fatal("new coordinate must share the optimization problem")
	}
}

func TestCoordinate_TrainCheckpoints(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil, false)

	store := blobstore.NewMemoryStore()
	cp := checkpoint.New(checkpoint.WithStore(store))
	coord := NewCoordinate(f.ds, f.problem,
		WithCheckpointer(cp, checkpoint.TierMemoryAndDisk),
	).SetName("member-coordinate")

	if _, _, err := coord.TrainModel(ctx); err != nil {
		t.Fatalf("TrainModel() error = %v", err)
	}

	names, err := cp.Names(ctx)
	if err != nil {
		t.Fatalf("Names() error = %v", err)
	}
	if len(names) != 1 || names[0] != "member-coordinate-trained" {
		t.Fatalf("checkpoint names = %v, want [member-coordinate-trained]", names)
	}

	var snapshot []struct {
		Entity string    `json:"entity"`
		Means  []float32 `json:"means"`
	}
	if err := cp.Load(ctx, "member-coordinate-trained", &snapshot); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(snapshot) != 2 {
		t.Fatalf("snapshot entities = %d, want 2", len(snapshot))
	}
}

func TestCoordinate_Metrics(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil, false)

	metrics := &BasicMetricsCollector{}
	coord := NewCoordinate(f.ds, f.problem, WithMetricsCollector(metrics))

	trained, _, err := coord.TrainModel(ctx)
	if err != nil {
		t.Fatalf("TrainModel() error = %v", err)
	}
	if _, err := coord.Score(ctx, trained); err != nil {
		t.Fatalf("Score() error = %v", err)
	}

	stats := metrics.GetStats()
	if stats.TrainCount != 1 || stats.TrainEntities != 2 {
		t.Fatalf("train stats = %+v, want 1 round over 2 entities", stats)
	}
	if stats.ScoreCount != 1 || stats.ScorePoints != 16 {
		t.Fatalf("score stats = %+v, want 1 pass over 16 points", stats)
	}
}

func TestDataScores_MergeDisjoint(t *testing.T) {
	ctx := context.Background()
	datumP := partition.NewUint64Partitioner(2)

	a := NewDataScores(partition.FromMap(datumP, map[uint64]float32{1: 0.5}), bitmapOf(1))
	b := NewDataScores(partition.FromMap(datumP, map[uint64]float32{2: 1.5}), bitmapOf(2))

	merged, err := a.Merge(b)
	if err != nil {
		t.Fatalf("Merge() error = %v", err)
	}
	if merged.Len() != 2 {
		t.Fatalf("merged.Len() = %d, want 2", merged.Len())
	}

	got, err := merged.Collect(ctx)
	if err != nil {
		t.Fatalf("Collect() error = %v", err)
	}
	if got[1] != 0.5 || got[2] != 1.5 {
		t.Fatalf("merged scores = %v, want {1:0.5 2:1.5}", got)
	}
}

func TestDataScores_MergeOverlapFails(t *testing.T) {
	datumP := partition.NewUint64Partitioner(2)

	a := NewDataScores(partition.FromMap(datumP, map[uint64]float32{1: 0.5}), bitmapOf(1))
	b := NewDataScores(partition.FromMap(datumP, map[uint64]float32{1: 1.5}), bitmapOf(1))

	if _, err := a.Merge(b); !errors.Is(err, ErrOverlappingScores) {
		t.Fatalf("error = %v, want ErrOverlappingScores", err)
	}
}
