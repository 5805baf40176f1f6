// Command bench runs a synthetic workload against the cache and exposes
// Prometheus metrics, a health endpoint and optional pprof.
package main

import (
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var w workload
	cmd := &cobra.Command{
		Use:           "bench",
		Short:         "Drive a synthetic workload against swrcache",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runBench(cmd, w)
		},
	}

	f := cmd.Flags()
	f.String("config", "", "YAML cache config; explicit flags win over file values")
	f.Int("max-size", 100_000, "cache capacity (entries)")
	f.Int("shards", 0, "number of shards (0=auto)")
	f.Duration("ttl", time.Minute, "entry TTL")
	f.Duration("stale", 10*time.Second, "stale window for swr mode")
	f.Duration("sweep", 0, "sweep interval (0 = lazy expiry only)")
	f.Int("max-refreshes", 64, "concurrent background refresh limit (0 = unbounded)")

	f.StringVar(&w.mode, "mode", "get", "read path: get | getorset | swr")
	f.IntVar(&w.workers, "workers", 2*runtime.GOMAXPROCS(0), "number of worker goroutines")
	f.DurationVar(&w.duration, "duration", 10*time.Second, "benchmark duration")
	f.IntVar(&w.readPct, "reads", 80, "read percentage [0..100]")
	f.IntVar(&w.invalidatePct, "invalidate-permille", 1, "tag invalidations per 1000 ops")
	f.IntVar(&w.keys, "keys", 1_000_000, "keyspace size")
	f.IntVar(&w.tags, "tags", 64, "number of distinct tags")
	f.Float64Var(&w.zipfS, "zipf-s", 1.1, "Zipf s > 1 (skew)")
	f.Float64Var(&w.zipfV, "zipf-v", 1.0, "Zipf v >= 1")
	f.Int64Var(&w.seed, "seed", time.Now().UnixNano(), "random seed")
	f.IntVar(&w.preload, "preload", 0, "preload entries (0 = max-size/2)")
	f.DurationVar(&w.loadLatency, "load-latency", time.Millisecond, "simulated factory latency")

	f.String("http", ":8080", "serve /metrics and /healthz at addr; empty = disabled")
	f.String("pprof", "", "serve pprof at addr (e.g. :6060); empty = disabled")
	f.String("log-level", "", "debug | info | warn | error (env SWRCACHE_LOG_LEVEL)")
	f.Bool("log-pretty", false, "human readable logs")
	return cmd
}
