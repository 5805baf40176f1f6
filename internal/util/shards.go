package util

import "runtime"

// MaxShards caps the automatic shard count.
const MaxShards = 256

// ReasonableShardCount picks a shard count for a cache holding up to capacity
// entries: nextPow2(2*GOMAXPROCS), clamped to [1..MaxShards], and reduced so
// every shard keeps at least minPerShard slots. Small caches therefore get a
// single shard and an exact global eviction order.
func ReasonableShardCount(capacity, minPerShard int) int {
	p := runtime.GOMAXPROCS(0)
	if p < 1 {
		p = 1
	}
	n := int(NextPow2(uint64(p * 2)))
	if n > MaxShards {
		n = MaxShards
	}
	if minPerShard > 0 && capacity > 0 {
		limit := int(PrevPow2(uint64(capacity / minPerShard)))
		if limit < 1 {
			limit = 1
		}
		if n > limit {
			n = limit
		}
	}
	if n < 1 {
		n = 1
	}
	return n
}

// ShardIndex maps a 64-bit hash to a shard index.
// The mask path is used when shards is a power of two, modulo otherwise.
func ShardIndex(hash uint64, shards int) int {
	if shards <= 1 {
		return 0
	}
	if IsPowerOfTwo(uint64(shards)) {
		return int(hash & uint64(shards-1))
	}
	return int(hash % uint64(shards))
}
