// Package optimize builds and solves per-entity optimization problems.
//
// A RandomEffectProblem is a partitioned collection of one EntityProblem
// per entity, co-partitioned with the dataset's active entities. Each
// EntityProblem carries the shared solver configuration, a shared
// stateless objective, and an entity-local normalization context whose
// dimensionality matches the entity's compressed feature space.
//
// The package also ships a default solver collaborator (deterministic
// gradient descent); the coordinate only depends on the Solver
// contract, so a different numerical method can be swapped in.
package optimize
