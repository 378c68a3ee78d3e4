// Spins up the timer-store benchmark harness, or a RESP debug server fronting
// one engine, depending on flags.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/riftwood/timerstore/pkg/bench"
	"github.com/riftwood/timerstore/pkg/lawn"
	"github.com/riftwood/timerstore/pkg/port"
	"github.com/riftwood/timerstore/pkg/store"
	"github.com/riftwood/timerstore/pkg/utils"
	"github.com/riftwood/timerstore/pkg/wheel"
	"github.com/riftwood/timerstore/pkg/workload"
)

var (
	printVersion = flag.Bool("print_version", false, "Print the version and exit.")
	engineFlag   = flag.String("engine", "both", "Which engine to exercise: lawn, wheel, or both.")
	numTimers    = flag.Int("num-timers", 100000, "Number of timers to generate for the benchmark.")
	numRuns      = flag.Int("num-runs", 5, "Number of benchmark runs to average over.")
	outputPath   = flag.String("output", "", "CSV file to write results to (stdout if empty).")
	serve        = flag.Bool("serve", false, "Start the RESP debug server instead of running the benchmark.")
	address      = flag.String("address", ":6380", "Listen address for the RESP debug server.")
	shards       = flag.Int("shards", 0, "If > 0, benchmark across this many sharded store instances instead of one serial store.")
)

func main() {
	flag.Parse()
	utils.InitLogging()

	if *printVersion {
		slog.Info("timerbench build info.", "version", utils.Version, "commit", utils.Commit, "build", utils.BuildTime)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, os.Interrupt, os.Kill)

	go func() {
		sig := <-signals
		slog.Info("Received termination signal, cancelling context.", "signal", sig)
		cancel()
	}()

	if *serve {
		runServer(ctx)
		return
	}

	if err := runBenchmark(); err != nil {
		slog.Error("Benchmark run failed.", "err", err)
		os.Exit(1)
	}
}

func runServer(ctx context.Context) {
	name := normalizeEngine(*engineFlag)
	s := newStoreForEngine(name)
	if err := port.RunDebugServer(ctx, s, *address, name); err != nil {
		slog.Error("Debug server stopped.", "err", err)
		os.Exit(1)
	}
}

func normalizeEngine(engine string) string {
	if strings.ToLower(engine) == "wheel" {
		return "wheel"
	}
	return "lawn"
}

func newStoreForEngine(engine string) store.TimerStore {
	switch engine {
	case "wheel":
		return wheel.New()
	default:
		return lawn.New()
	}
}

func runBenchmark() error {
	gen := workload.New(uint(*numTimers))
	pairs, err := gen.Generate(*numTimers)
	if err != nil {
		return fmt.Errorf("timerbench: failed to generate workload: %w", err)
	}

	benchPairs := make([]bench.Pair, len(pairs))
	for i, p := range pairs {
		benchPairs[i] = bench.Pair{Key: p.Key, TTL: p.TTL}
	}
	cfg := bench.Config{NumTimers: *numTimers, NumRuns: *numRuns}

	var results []bench.Result
	for _, engine := range enginesToRun(*engineFlag) {
		factory := engineFactory(engine)
		var result bench.Result
		if *shards > 0 {
			result = bench.RunSharded(engine, factory, benchPairs, cfg, *shards)
		} else {
			result = bench.Run(engine, factory, benchPairs, cfg)
		}
		tick := bench.RunTick(engine, factory, benchPairs, cfg, time.Now)
		result.TickTime = tick.TickTime
		results = append(results, result)
		slog.Info("Benchmark complete.", "engine", engine, "num_timers", *numTimers, "shards", *shards)
	}

	out := os.Stdout
	if *outputPath != "" {
		f, err := os.Create(*outputPath)
		if err != nil {
			return fmt.Errorf("timerbench: failed to create output file: %w", err)
		}
		defer f.Close()
		return bench.WriteCSV(f, results)
	}
	return bench.WriteCSV(out, results)
}

func enginesToRun(engine string) []string {
	switch strings.ToLower(engine) {
	case "lawn":
		return []string{"lawn"}
	case "wheel":
		return []string{"wheel"}
	default:
		return []string{"lawn", "wheel"}
	}
}

func engineFactory(engine string) bench.Factory {
	switch engine {
	case "wheel":
		return func() store.TimerStore { return wheel.New() }
	default:
		return func() store.TimerStore { return lawn.New() }
	}
}
