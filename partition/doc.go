// Package partition provides partitioned key-value blocks with parallel
// map, join and repartition primitives.
//
// A Block is the unit of distributed-style computation in glmix: a
// collection of key-value pairs split across hash partitions, with lazy
// transformations that are evaluated when a materializing operation
// (Materialize, Collect, Count) is invoked. Blocks that share a
// Partitioner instance are co-partitioned: joins between them zip
// partitions pairwise without any data movement. Joins between blocks
// with different partitioners remain correct but pay for a repartition
// of the right side.
//
// Blocks are logically immutable: every transformation yields a new
// Block, never an in-place update.
package partition
