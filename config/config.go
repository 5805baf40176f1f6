// Package config loads cache settings from YAML.
//
//	max_size: 50000
//	default_ttl: 10m
//	default_stale_time: 1m
//	sweep_interval: 30s
//	health:
//	  min_hit_rate: 0.6
//	log:
//	  level: debug
//
// Durations accept Go syntax plus days and weeks ("1d12h", "2w").
package config

import (
	"io"
	"os"
	"time"

	"github.com/IvanBrykalov/swrcache/cache"
	"github.com/IvanBrykalov/swrcache/logging"
	"github.com/cockroachdb/errors"
	"github.com/xhit/go-str2duration/v2"
	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration read from and written to YAML as a string.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return errors.Wrapf(err, "line %d: duration must be a string", value.Line)
	}
	v, err := str2duration.ParseDuration(s)
	if err != nil {
		return errors.Wrapf(err, "line %d: invalid duration %q", value.Line, s)
	}
	*d = Duration(v)
	return nil
}

func (d Duration) MarshalYAML() (any, error) {
	return str2duration.String(time.Duration(d)), nil
}

// Health mirrors cache.HealthThresholds.
type Health struct {
	MinHitRate   float64 `yaml:"min_hit_rate"`
	MaxOccupancy float64 `yaml:"max_occupancy"`
	MinRequests  int64   `yaml:"min_requests"`
}

// Log selects the process logger.
type Log struct {
	Level  logging.Level `yaml:"level"`
	Pretty bool          `yaml:"pretty"`
}

// Config is the on-disk form of cache.Options. Unset keys keep the
// values from Default.
type Config struct {
	MaxSize                int      `yaml:"max_size"`
	Shards                 int      `yaml:"shards"`
	DefaultTTL             Duration `yaml:"default_ttl"`
	DefaultStaleTime       Duration `yaml:"default_stale_time"`
	EnableMetrics          bool     `yaml:"enable_metrics"`
	SweepInterval          Duration `yaml:"sweep_interval"`
	RefreshTimeout         Duration `yaml:"refresh_timeout"`
	MaxConcurrentRefreshes int      `yaml:"max_concurrent_refreshes"`
	Health                 Health   `yaml:"health"`
	Log                    Log      `yaml:"log"`
}

// Default returns the configuration matching a zero cache.Options.
func Default() Config {
	h := cache.DefaultHealthThresholds()
	return Config{
		MaxSize:       cache.DefaultMaxSize,
		DefaultTTL:    Duration(cache.DefaultTTL),
		EnableMetrics: true,
		Health: Health{
			MinHitRate:   h.MinHitRate,
			MaxOccupancy: h.MaxOccupancy,
			MinRequests:  h.MinRequests,
		},
		Log: Log{Level: logging.LevelInfo},
	}
}

// Load reads a YAML file. An empty file yields Default.
func Load(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, errors.Wrap(err, "open config")
	}
	defer f.Close()

	cfg, err := Parse(f)
	if err != nil {
		return Config{}, errors.Wrapf(err, "config %s", path)
	}
	return cfg, nil
}

// Parse decodes YAML from r over Default. Unknown keys are rejected.
func Parse(r io.Reader) (Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, errors.Wrap(err, "decode yaml")
	}
	if _, err := logging.ParseLevel(string(cfg.Log.Level)); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Apply copies cfg into opt. Fields of opt that cfg does not cover
// (Policy, Metrics, Logger, OnEvict, Clock) are left alone. Range checks
// happen in cache.New.
func Apply[V any](cfg Config, opt *cache.Options[V]) {
	opt.MaxSize = cfg.MaxSize
	opt.Shards = cfg.Shards
	opt.DefaultTTL = time.Duration(cfg.DefaultTTL)
	opt.DefaultStaleTime = time.Duration(cfg.DefaultStaleTime)
	opt.DisableMetrics = !cfg.EnableMetrics
	opt.SweepInterval = time.Duration(cfg.SweepInterval)
	opt.RefreshTimeout = time.Duration(cfg.RefreshTimeout)
	opt.MaxConcurrentRefreshes = cfg.MaxConcurrentRefreshes
	opt.Health = &cache.HealthThresholds{
		MinHitRate:   cfg.Health.MinHitRate,
		MaxOccupancy: cfg.Health.MaxOccupancy,
		MinRequests:  cfg.Health.MinRequests,
	}
}

// Logging returns the logging.Config described by cfg, writing to out.
func (c Config) Logging(out io.Writer) logging.Config {
	return logging.Config{Level: c.Log.Level, Pretty: c.Log.Pretty, Output: out}
}
