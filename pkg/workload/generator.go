// generator.go builds the synthetic (key, ttl) population that bench.Run
// measures insertion/expiry/delete timings against. Grounded on
// original_source/src/benchmarks/benchmarks.c's use of a fixed small set of
// TTLs for most of the generated load, with the dedupe-filter idea adapted
// from pkg/storage/sstable.go's bloom-filter-backed existence check
// (repurposed here from an SSTable key index to a generator's own
// already-emitted-key check).
package workload

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/riftwood/timerstore/pkg/store"
)

// Pair is a single generated timer.
type Pair struct {
	Key string
	TTL time.Duration
}

// Option configures a Generator at construction time.
type Option func(*Generator)

// WithCommonTTLs sets the small fixed set of TTLs most generated entries draw
// from, mirroring real workloads where sessions and leases cluster on a
// handful of durations — the Lawn's whole design rationale.
func WithCommonTTLs(ttls ...time.Duration) Option {
	return func(g *Generator) { g.commonTTLs = append([]time.Duration(nil), ttls...) }
}

// WithTailFraction sets the fraction (0..1) of generated entries drawn from
// the long tail of random TTLs rather than the common set. Defaults to 0.1.
func WithTailFraction(f float64) Option {
	return func(g *Generator) { g.tailFraction = f }
}

// WithTailRange bounds the long tail's random TTLs to [min, max). Defaults to
// [1s, 10m).
func WithTailRange(min, max time.Duration) Option {
	return func(g *Generator) { g.tailMin, g.tailMax = min, max }
}

// WithKeyPrefix sets the prefix every generated key carries. Defaults to "k".
func WithKeyPrefix(prefix string) Option {
	return func(g *Generator) { g.keyPrefix = prefix }
}

// WithRand overrides the random source. Defaults to a fixed seed so two
// engines benchmarked back to back see the identical generated population.
func WithRand(r *rand.Rand) Option {
	return func(g *Generator) { g.rand = r }
}

// Generator produces a synthetic population of (key, ttl) pairs.
type Generator struct {
	commonTTLs   []time.Duration
	tailFraction float64
	tailMin      time.Duration
	tailMax      time.Duration
	keyPrefix    string
	rand         *rand.Rand

	seen *bloom.BloomFilter
}

// New constructs a Generator sized so its dedupe filter's false-positive rate
// stays low through roughly expectedCount distinct keys.
func New(expectedCount uint, opts ...Option) *Generator {
	g := &Generator{
		commonTTLs:   []time.Duration{time.Second, 5 * time.Second, 30 * time.Second, time.Minute},
		tailFraction: 0.1,
		tailMin:      time.Second,
		tailMax:      10 * time.Minute,
		keyPrefix:    "k",
		rand:         rand.New(rand.NewSource(1)),
	}
	for _, opt := range opts {
		opt(g)
	}
	if expectedCount == 0 {
		expectedCount = 1
	}
	g.seen = bloom.NewWithEstimates(expectedCount, 0.01)
	return g
}

// maxKeyAttempts bounds how many times Generate will retry minting a key
// that collides against the dedupe filter before giving up.
const maxKeyAttempts = 100

// Generate produces n distinct (key, ttl) pairs. It returns
// store.ErrResourceExhausted if it cannot find a fresh key within
// maxKeyAttempts tries — a pathologically small effective keyspace relative
// to n, not expected in normal use.
func (g *Generator) Generate(n int) ([]Pair, error) {
	pairs := make([]Pair, 0, n)
	for len(pairs) < n {
		key, err := g.freshKey(len(pairs))
		if err != nil {
			return nil, err
		}
		pairs = append(pairs, Pair{Key: key, TTL: g.nextTTL()})
	}
	return pairs, nil
}

func (g *Generator) freshKey(ordinal int) (string, error) {
	for attempt := 0; attempt < maxKeyAttempts; attempt++ {
		key := fmt.Sprintf("%s-%d-%d", g.keyPrefix, ordinal, g.rand.Int63())
		if !g.seen.TestAndAdd([]byte(key)) {
			return key, nil
		}
	}
	return "", fmt.Errorf("workload: %w: no distinct key found after %d attempts",
		store.ErrResourceExhausted, maxKeyAttempts)
}

func (g *Generator) nextTTL() time.Duration {
	if len(g.commonTTLs) == 0 || g.rand.Float64() < g.tailFraction {
		span := g.tailMax - g.tailMin
		if span <= 0 {
			return g.tailMin
		}
		return g.tailMin + time.Duration(g.rand.Int63n(int64(span)))
	}
	return g.commonTTLs[g.rand.Intn(len(g.commonTTLs))]
}
