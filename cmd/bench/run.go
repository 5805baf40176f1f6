package main

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"os"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/IvanBrykalov/swrcache/cache"
	"github.com/IvanBrykalov/swrcache/config"
	"github.com/IvanBrykalov/swrcache/logging"
	pmet "github.com/IvanBrykalov/swrcache/metrics/prom"
	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// workload describes the synthetic traffic.
type workload struct {
	mode          string
	workers       int
	duration      time.Duration
	readPct       int
	invalidatePct int // per mille
	keys          int
	tags          int
	zipfS         float64
	zipfV         float64
	seed          int64
	preload       int
	loadLatency   time.Duration
}

func (w workload) validate() error {
	switch w.mode {
	case "get", "getorset", "swr":
	default:
		return errors.Newf("unknown mode %q (use get, getorset or swr)", w.mode)
	}
	if w.readPct < 0 || w.readPct > 100 {
		return errors.Newf("reads must be in [0,100], got %d", w.readPct)
	}
	if w.keys < 1 || w.tags < 1 {
		return errors.New("keys and tags must be positive")
	}
	if w.zipfS <= 1 || w.zipfV < 1 {
		return errors.Newf("zipf parameters need s > 1 and v >= 1, got s=%v v=%v", w.zipfS, w.zipfV)
	}
	return nil
}

// report is the outcome of one run.
type report struct {
	ops, reads, writes, hits, misses, invalidated, errs uint64
	elapsed                                             time.Duration
}

func (r report) print(out io.Writer) {
	hitRate := 0.0
	if n := r.hits + r.misses; n > 0 {
		hitRate = float64(r.hits) / float64(n) * 100
	}
	fmt.Fprintf(out, "ops=%d (%.0f ops/s)  reads=%d  writes=%d  errors=%d\n",
		r.ops, float64(r.ops)/r.elapsed.Seconds(), r.reads, r.writes, r.errs)
	fmt.Fprintf(out, "hits=%d  misses=%d  hit-rate=%.2f%%  invalidated=%d\n",
		r.hits, r.misses, hitRate, r.invalidated)
}

func runBench(cmd *cobra.Command, w workload) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	base, err := setupLogging(cmd, cfg)
	if err != nil {
		return err
	}
	log := base.With().Str("component", "bench").Logger()
	if err := w.validate(); err != nil {
		return err
	}
	workers := w.workers
	if workers <= 0 {
		workers = 1
	}
	w.workers = workers

	opt := cacheOptions(cmd, cfg)
	reg := prometheus.NewRegistry()
	opt.Metrics = pmet.New(reg, "swrcache", "bench", nil)
	opt.Logger = &base

	c, err := cache.New(opt)
	if err != nil {
		return err
	}
	defer func() { _ = c.Close() }()
	reg.MustRegister(pmet.NewHealthCollector(c, "swrcache", "bench", nil))

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	if err := startServers(ctx, cmd, c, reg, log); err != nil {
		return err
	}

	pl := w.preload
	if pl == 0 {
		pl = opt.MaxSize / 2
	}
	for i := 0; i < pl; i++ {
		c.Set("k:"+strconv.Itoa(i), "v"+strconv.Itoa(i), cache.WithTags(tagFor(i, w.tags)))
	}

	log.Info().
		Str("mode", w.mode).
		Int("max_size", opt.MaxSize).
		Int("workers", w.workers).
		Int("keys", w.keys).
		Dur("duration", w.duration).
		Int64("seed", w.seed).
		Msg("starting workload")

	r := run(ctx, c, w)
	r.print(cmd.OutOrStdout())

	st := c.Metrics()
	h := c.HealthCheck()
	log.Info().
		Int("len", st.Size).
		Float64("hit_rate", st.HitRate).
		Int64("evictions", st.Evictions).
		Int64("loads", st.Loads).
		Int64("refreshes", st.Refreshes).
		Int64("refreshes_skipped", st.RefreshesSkipped).
		Str("health", h.Status.String()).
		Strs("issues", h.Issues).
		Msg("workload finished")
	return nil
}

// run drives c for w.duration (or until ctx ends) and returns the counts.
func run(ctx context.Context, c cache.Cache[string], w workload) report {
	ctx, cancel := context.WithTimeout(ctx, w.duration)
	defer cancel()

	var reads, writes, total, invalidated, errs atomic.Uint64
	loader := func(k string) cache.Loader[string] {
		return func(ctx context.Context) (string, error) {
			if w.loadLatency > 0 {
				t := time.NewTimer(w.loadLatency)
				defer t.Stop()
				select {
				case <-ctx.Done():
					return "", ctx.Err()
				case <-t.C:
				}
			}
			return "v:" + k, nil
		}
	}

	start := time.Now()
	var wg sync.WaitGroup
	wg.Add(w.workers)
	for id := 0; id < w.workers; id++ {
		go func(id int) {
			defer wg.Done()

			// rand.Rand is not goroutine-safe: one per worker.
			r := rand.New(rand.NewSource(w.seed + int64(id)*9973))
			zipf := rand.NewZipf(r, w.zipfS, w.zipfV, uint64(w.keys-1))

			for ctx.Err() == nil {
				total.Add(1)
				n := int(zipf.Uint64())
				k := "k:" + strconv.Itoa(n)

				if int(r.Int31n(1000)) < w.invalidatePct {
					invalidated.Add(uint64(c.InvalidateByTag(tagFor(r.Intn(w.tags), w.tags))))
					continue
				}
				if int(r.Int31n(100)) >= w.readPct {
					writes.Add(1)
					c.Set(k, "v"+strconv.Itoa(r.Int()), cache.WithTags(tagFor(n, w.tags)))
					continue
				}

				reads.Add(1)
				var err error
				switch w.mode {
				case "get":
					c.Get(k)
				case "getorset":
					_, err = c.GetOrSet(ctx, k, loader(k), cache.WithTags(tagFor(n, w.tags)))
				case "swr":
					_, err = c.StaleWhileRevalidate(ctx, k, loader(k), cache.WithTags(tagFor(n, w.tags)))
				}
				if err != nil && ctx.Err() == nil {
					errs.Add(1)
				}
			}
		}(id)
	}
	wg.Wait()

	st := c.Metrics()
	return report{
		ops:         total.Load(),
		reads:       reads.Load(),
		writes:      writes.Load(),
		hits:        uint64(st.Hits),
		misses:      uint64(st.Misses),
		invalidated: invalidated.Load(),
		errs:        errs.Load(),
		elapsed:     time.Since(start),
	}
}

func tagFor(n, tags int) string { return "t" + strconv.Itoa(n%tags) }

// loadConfig reads --config, or returns config.Default when it is unset.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

// cacheOptions merges cfg with explicitly set flags.
func cacheOptions(cmd *cobra.Command, cfg config.Config) cache.Options[string] {
	f := cmd.Flags()
	path, _ := f.GetString("config")

	// with a config file, only explicitly set flags override it
	useFlag := func(name string) bool { return path == "" || f.Changed(name) }

	if useFlag("max-size") {
		cfg.MaxSize, _ = f.GetInt("max-size")
	}
	if useFlag("shards") {
		cfg.Shards, _ = f.GetInt("shards")
	}
	if useFlag("ttl") {
		d, _ := f.GetDuration("ttl")
		cfg.DefaultTTL = config.Duration(d)
	}
	if useFlag("stale") {
		d, _ := f.GetDuration("stale")
		cfg.DefaultStaleTime = config.Duration(d)
	}
	if useFlag("sweep") {
		d, _ := f.GetDuration("sweep")
		cfg.SweepInterval = config.Duration(d)
	}
	if useFlag("max-refreshes") {
		cfg.MaxConcurrentRefreshes, _ = f.GetInt("max-refreshes")
	}

	var opt cache.Options[string]
	config.Apply(cfg, &opt)
	return opt
}

// setupLogging configures the global zerolog logger. The level comes from
// --log-level, then SWRCACHE_LOG_LEVEL, then the config file's log section;
// an explicit --log-pretty overrides the file.
func setupLogging(cmd *cobra.Command, cfg config.Config) (zerolog.Logger, error) {
	lc := cfg.Logging(cmd.ErrOrStderr())
	lc.Level = logging.Level(flagOrEnv(cmd, "log-level", "SWRCACHE_LOG_LEVEL", string(lc.Level)))
	if _, err := logging.ParseLevel(string(lc.Level)); err != nil {
		return zerolog.Nop(), err
	}
	if cmd.Flags().Changed("log-pretty") {
		lc.Pretty, _ = cmd.Flags().GetBool("log-pretty")
	}
	return logging.Setup(lc), nil
}

// flagOrEnv returns the flag value if set, then a non-empty environment
// value, then def.
func flagOrEnv(cmd *cobra.Command, flagName, envName, def string) string {
	if v, _ := cmd.Flags().GetString(flagName); v != "" {
		return v
	}
	if v := os.Getenv(envName); v != "" {
		return v
	}
	return def
}
