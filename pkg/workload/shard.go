// Package workload generates synthetic (key, ttl) timer populations for the
// benchmark harness: a small set of "common" TTLs paired with a long tail of
// random ones, plus a sharding helper used to partition the generated keyspace
// across concurrent benchmark workers.
//
// Grounded on nobletooth-kiwi's pkg/cache/shard.go for the xxhash-based
// partitioning idea, trimmed down from its generic-cache-shard-lookup form —
// that version type-switched over an arbitrary comparable key type to pick a
// hashing strategy; this package only ever shards plain string keys, so a
// single xxhash.Sum64String call is all it needs.
package workload

import "github.com/cespare/xxhash/v2"

// ShardFor returns which of shardCount shards key belongs to, using xxhash for
// a uniform distribution. A benchmark worker pool uses this to give each
// worker a disjoint slice of the generated keyspace without any shared
// coordination between workers.
func ShardFor(key string, shardCount int) int {
	if shardCount <= 0 {
		shardCount = 1
	}
	return int(xxhash.Sum64String(key) % uint64(shardCount))
}
