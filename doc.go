// Package glmix trains and scores per-entity ("random effect") models
// inside a mixed-effects model-fitting system.
//
// A Coordinate owns one random-effect dimension of the larger model: a
// partitioned dataset of per-entity training points, one optimization
// problem per entity, and the subspace projectors that map each
// entity's features between the shared global space and a compressed
// space holding only that entity's observed features. Training runs
// one independent solver per entity, warm-started from a prior model
// when one is supplied; scoring composes raw per-datum scores from
// entities trained at scale ("active") and entities too sparse to
// train this round ("passive").
//
// Basic usage:
//
//	ds, err := dataset.New(ctx, dataset.Config[string]{...})
//	if err != nil { ... }
//
//	problem := optimize.NewRandomEffectProblem(
//		ds.Projectors(), optimize.Config{}, optimize.SquaredLoss{},
//		func(c model.Coefficients) model.EntityModel { return model.NewLinearRegression(c) },
//		nil, optimize.VarianceNone, false,
//	)
//
//	coord := glmix.NewCoordinate(ds, problem)
//
//	trained, tracker, err := coord.TrainModel(ctx)
//	if err != nil { ... }
//
//	scores, err := coord.Score(ctx, trained)
//	if err != nil { ... }
package glmix
