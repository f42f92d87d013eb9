package partition

import (
	"encoding/binary"

	"github.com/spaolacci/murmur3"
)

// Partitioner assigns keys to partitions.
//
// Implementations must be deterministic: the same key always maps to
// the same partition. Blocks compare partitioners by identity, so
// sharing one Partitioner value across blocks is what establishes
// co-partitioning.
type Partitioner[K comparable] interface {
	// NumPartitions returns the number of partitions.
	NumPartitions() int
	// Partition returns the partition index for key, in [0, NumPartitions).
	Partition(key K) int
}

// KeyBytesFunc converts a key to the bytes fed into the partitioning hash.
type KeyBytesFunc[K comparable] func(key K) []byte

// HashPartitioner partitions keys by murmur3 hash of their byte encoding.
type HashPartitioner[K comparable] struct {
	numPartitions int
	seed          uint32
	keyBytes      KeyBytesFunc[K]
}

// NewHashPartitioner creates a murmur3-based hash partitioner.
// numPartitions must be positive; values below 1 are clamped to 1.
func NewHashPartitioner[K comparable](numPartitions int, keyBytes KeyBytesFunc[K]) *HashPartitioner[K] {
	if numPartitions < 1 {
		numPartitions = 1
	}
	return &HashPartitioner[K]{
		numPartitions: numPartitions,
		keyBytes:      keyBytes,
	}
}

// NumPartitions returns the number of partitions.
func (p *HashPartitioner[K]) NumPartitions() int {
	return p.numPartitions
}

// Partition returns the partition index for key.
func (p *HashPartitioner[K]) Partition(key K) int {
	h := murmur3.Sum32WithSeed(p.keyBytes(key), p.seed)
	return int(h % uint32(p.numPartitions))
}

// StringKeyBytes encodes a string key for hashing.
func StringKeyBytes(key string) []byte {
	return []byte(key)
}

// Uint64KeyBytes encodes a uint64 key for hashing.
func Uint64KeyBytes(key uint64) []byte {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], key)
	return buf[:]
}

// NewStringPartitioner creates a hash partitioner for string keys.
func NewStringPartitioner(numPartitions int) *HashPartitioner[string] {
	return NewHashPartitioner(numPartitions, StringKeyBytes)
}

// NewUint64Partitioner creates a hash partitioner for uint64 keys.
func NewUint64Partitioner(numPartitions int) *HashPartitioner[uint64] {
	return NewHashPartitioner(numPartitions, Uint64KeyBytes)
}
