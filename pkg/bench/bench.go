// Package bench measures insertion, deletion, and expiry timings for a
// store.TimerStore engine over a generated workload, and writes the results
// out as CSV.
//
// Grounded on original_source/src/benchmarks/benchmarks.c
// (benchmark_insertion_lawn/benchmark_insertion_timerwheel and their
// deletion/tick counterparts): same per-run timing loop, averaged over
// config.num_runs, but producing durationpb.Duration values instead of raw
// float64 milliseconds, and a CSV writer (encoding/csv) instead of fprintf.
package bench

import (
	"encoding/csv"
	"fmt"
	"io"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/riftwood/timerstore/pkg/metrics"
	"github.com/riftwood/timerstore/pkg/store"
	"github.com/riftwood/timerstore/pkg/workload"
	"google.golang.org/protobuf/types/known/durationpb"
)

// Config controls a benchmark run. NumRuns mirrors the original's averaging
// of several runs to smooth out scheduler noise.
type Config struct {
	NumTimers int
	NumRuns   int
}

// DefaultConfig matches benchmark_config_default's defaults.
func DefaultConfig() Config {
	return Config{NumTimers: 100000, NumRuns: 5}
}

// Result holds one engine's measured timings, averaged across Config.NumRuns.
type Result struct {
	Engine         string
	NumTimers      int
	InsertionTime  *durationpb.Duration // Run: average time to insert one timer; RunSharded: slowest shard's insertion wall-clock per run
	DeletionTime   *durationpb.Duration // Run: average time to delete one timer; RunSharded: slowest shard's deletion wall-clock per run
	TickTime       *durationpb.Duration // average PopExpired time per expired timer
	MemoryUsedRSS  uint64               // bytes of heap growth observed across the run, sampled via runtime.MemStats
}

// Factory builds a fresh, empty store.TimerStore for one benchmark run.
type Factory func() store.TimerStore

// Pair is the minimal shape bench needs from a generated workload; its fields
// match workload.Pair's, so a workload.Pair converts to a Pair with a plain
// type conversion.
type Pair struct {
	Key string
	TTL time.Duration
}

// Run measures insertion and deletion timings for the store built by
// newStore, using the given workload, averaged over cfg.NumRuns.
func Run(engine string, newStore Factory, workload []Pair, cfg Config) Result {
	result := Result{Engine: engine, NumTimers: len(workload)}
	if cfg.NumRuns <= 0 {
		cfg.NumRuns = 1
	}
	if len(workload) == 0 {
		return result
	}

	before := memStats()

	var totalInsert, totalDelete time.Duration
	for run := 0; run < cfg.NumRuns; run++ {
		s := newStore()

		insertStart := time.Now()
		for _, p := range workload {
			if err := s.Add(p.Key, p.TTL); err == nil {
				metrics.RecordAdd(engine)
			}
		}
		totalInsert += time.Since(insertStart)
		metrics.SetLiveEntries(engine, s.Size())

		deleteStart := time.Now()
		for _, p := range workload {
			if err := s.Remove(p.Key); err == nil {
				metrics.RecordRemove(engine)
			}
		}
		totalDelete += time.Since(deleteStart)
		metrics.SetLiveEntries(engine, s.Size())
	}

	after := memStats()

	n := int64(cfg.NumRuns) * int64(len(workload))
	result.InsertionTime = durationpb.New(totalInsert / time.Duration(n))
	result.DeletionTime = durationpb.New(totalDelete / time.Duration(n))
	result.MemoryUsedRSS = rssDelta(before, after)
	return result
}

// RunSharded benchmarks engine across shardCount independent store instances, one per
// goroutine, each driven by its own disjoint partition of pairs computed via
// workload.ShardFor — approximating a sharded deployment's per-shard throughput rather
// than a single store's serial throughput (store.TimerStore is not safe for concurrent
// use, spec §5, so each shard gets its own store rather than sharing one).
func RunSharded(engine string, newStore Factory, pairs []Pair, cfg Config, shardCount int) Result {
	result := Result{Engine: engine, NumTimers: len(pairs)}
	if cfg.NumRuns <= 0 {
		cfg.NumRuns = 1
	}
	if len(pairs) == 0 || shardCount <= 0 {
		return result
	}

	shards := make([][]Pair, shardCount)
	for _, p := range pairs {
		idx := workload.ShardFor(p.Key, shardCount)
		shards[idx] = append(shards[idx], p)
	}

	before := memStats()

	var totalInsert, totalDelete time.Duration
	for run := 0; run < cfg.NumRuns; run++ {
		insertDurations := make([]time.Duration, shardCount)
		deleteDurations := make([]time.Duration, shardCount)

		var wg sync.WaitGroup
		for i, shard := range shards {
			if len(shard) == 0 {
				continue
			}
			wg.Add(1)
			go func(i int, shard []Pair) {
				defer wg.Done()
				s := newStore()

				insertStart := time.Now()
				for _, p := range shard {
					_ = s.Add(p.Key, p.TTL)
				}
				insertDurations[i] = time.Since(insertStart)

				deleteStart := time.Now()
				for _, p := range shard {
					_ = s.Remove(p.Key)
				}
				deleteDurations[i] = time.Since(deleteStart)
			}(i, shard)
		}
		wg.Wait()

		// Shards run concurrently, so wall-clock for the run is the slowest shard, not
		// the sum across all of them.
		totalInsert += maxDuration(insertDurations)
		totalDelete += maxDuration(deleteDurations)
	}

	after := memStats()

	result.InsertionTime = durationpb.New(totalInsert / time.Duration(cfg.NumRuns))
	result.DeletionTime = durationpb.New(totalDelete / time.Duration(cfg.NumRuns))
	result.MemoryUsedRSS = rssDelta(before, after)
	return result
}

func maxDuration(durations []time.Duration) time.Duration {
	var m time.Duration
	for _, d := range durations {
		if d > m {
			m = d
		}
	}
	return m
}

// RunTick measures how long it takes a freshly populated store to pop every
// entry once they have all expired, averaged over every entry popped across
// cfg.NumRuns — the
// equivalent of benchmark_tick_lawn/benchmark_tick_timerwheel.
func RunTick(engine string, newStore Factory, workload []Pair, cfg Config, clock func() time.Time) Result {
	result := Result{Engine: engine, NumTimers: len(workload)}
	if cfg.NumRuns <= 0 {
		cfg.NumRuns = 1
	}
	if len(workload) == 0 {
		return result
	}

	var totalTick time.Duration
	var totalExpired int
	for run := 0; run < cfg.NumRuns; run++ {
		s := newStore()
		for _, p := range workload {
			_ = s.Add(p.Key, p.TTL)
		}

		farFuture := clock().Add(24 * time.Hour)
		tickStart := time.Now()
		expired := s.PopExpired(farFuture)
		tickDuration := time.Since(tickStart)
		totalTick += tickDuration
		totalExpired += len(expired)

		metrics.ObserveOperationLatency(engine, tickDuration)
		metrics.RecordExpired(engine, len(expired))
		metrics.SetLiveEntries(engine, s.Size())
	}

	if totalExpired > 0 {
		result.TickTime = durationpb.New(totalTick / time.Duration(totalExpired))
	} else {
		result.TickTime = durationpb.New(0)
	}
	return result
}

// memStats returns runtime.MemStats.HeapAlloc after forcing a GC, so two
// consecutive samples reflect live allocation rather than uncollected garbage.
func memStats() uint64 {
	runtime.GC()
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return m.HeapAlloc
}

func rssDelta(before, after uint64) uint64 {
	if after <= before {
		return 0
	}
	return after - before
}

// WriteCSV writes results as a CSV table, one row per engine, mirroring
// save_benchmark_results's "Metric,Lawn,TimerWheel" layout generalized to an
// arbitrary number of engines.
func WriteCSV(w io.Writer, results []Result) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	header := []string{"metric"}
	for _, r := range results {
		header = append(header, r.Engine)
	}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("bench: failed to write CSV header: %w", err)
	}

	rows := [][]string{
		{"num_timers"},
		{"insertion_time_ns"},
		{"deletion_time_ns"},
		{"tick_time_ns"},
		{"memory_used_bytes"},
	}
	for _, r := range results {
		rows[0] = append(rows[0], strconv.Itoa(r.NumTimers))
		rows[1] = append(rows[1], strconv.FormatInt(r.InsertionTime.AsDuration().Nanoseconds(), 10))
		rows[2] = append(rows[2], strconv.FormatInt(r.DeletionTime.AsDuration().Nanoseconds(), 10))
		rows[3] = append(rows[3], strconv.FormatInt(r.TickTime.AsDuration().Nanoseconds(), 10))
		rows[4] = append(rows[4], strconv.FormatUint(r.MemoryUsedRSS, 10))
	}
	for _, row := range rows {
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("bench: failed to write CSV row: %w", err)
		}
	}
	return nil
}
