package cache

import (
	"errors"
	"fmt"
	"math"
	"sync/atomic"
	"testing"
	"time"
)

type fakeClock struct{ t atomic.Int64 }

func newFakeClock() *fakeClock {
	c := &fakeClock{}
	c.t.Store(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).UnixNano())
	return c
}

func (f *fakeClock) NowUnixNano() int64  { return f.t.Load() }
func (f *fakeClock) add(d time.Duration) { f.t.Add(int64(d)) }

// newTestCache builds a cache and closes it when the test ends.
func newTestCache[V any](t testing.TB, opt Options[V]) Cache[V] {
	t.Helper()
	c, err := New(opt)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

// An entry is a hit up to and including its deadline and a miss right after.
func TestCache_TTLBoundary(t *testing.T) {
	t.Parallel()

	clk := newFakeClock()
	c := newTestCache(t, Options[string]{MaxSize: 4, Clock: clk})

	c.Set("x", "v", WithTTL(100*time.Millisecond))

	clk.add(100*time.Millisecond - time.Nanosecond)
	if _, ok := c.Get("x"); !ok {
		t.Fatal("miss just before the deadline")
	}
	clk.add(time.Nanosecond)
	if _, ok := c.Get("x"); !ok {
		t.Fatal("miss exactly at the deadline")
	}
	clk.add(time.Nanosecond)
	if _, ok := c.Get("x"); ok {
		t.Fatal("hit after the deadline")
	}

	st := c.Metrics()
	if st.Hits != 2 || st.Misses != 1 || st.Expirations != 1 || st.Evictions != 0 {
		t.Fatalf("unexpected stats %+v", st)
	}
	if c.Len() != 0 {
		t.Fatal("expired entry must be purged on read")
	}
}

func TestCache_DefaultTTL(t *testing.T) {
	t.Parallel()

	clk := newFakeClock()
	c := newTestCache(t, Options[int]{Clock: clk})

	c.Set("k", 1)
	clk.add(DefaultTTL)
	if _, ok := c.Get("k"); !ok {
		t.Fatal("entry must live for DefaultTTL")
	}
	clk.add(time.Nanosecond)
	if _, ok := c.Get("k"); ok {
		t.Fatal("entry must expire after DefaultTTL")
	}
}

// A non-positive per-entry TTL, or a negative DefaultTTL, disables expiry.
func TestCache_NoExpiry(t *testing.T) {
	t.Parallel()

	clk := newFakeClock()
	c := newTestCache(t, Options[int]{Clock: clk, DefaultTTL: -1})

	c.Set("default", 1)
	c.Set("explicit", 2, WithTTL(0))
	clk.add(100 * 365 * 24 * time.Hour)

	for _, k := range []string{"default", "explicit"} {
		if _, ok := c.Get(k); !ok {
			t.Fatalf("%s must never expire", k)
		}
		info, _ := c.Inspect(k)
		if !info.ExpiresAt.IsZero() {
			t.Fatalf("%s: ExpiresAt must be zero, got %v", k, info.ExpiresAt)
		}
	}
}

// A TTL past the int64 horizon saturates instead of wrapping into the past.
func TestCache_HugeTTLDoesNotOverflow(t *testing.T) {
	t.Parallel()

	clk := newFakeClock()
	c := newTestCache(t, Options[int]{Clock: clk})

	c.Set("k", 1, WithTTL(time.Duration(math.MaxInt64)))
	if _, ok := c.Get("k"); !ok {
		t.Fatal("entry with huge TTL must be readable")
	}
	clk.add(100 * 365 * 24 * time.Hour)
	if _, ok := c.Get("k"); !ok {
		t.Fatal("entry with huge TTL must survive a century")
	}
	info, _ := c.Inspect("k")
	if info.ExpiresAt.Before(time.Unix(0, clk.NowUnixNano())) {
		t.Fatalf("ExpiresAt wrapped into the past: %v", info.ExpiresAt)
	}

	if got := deadline(math.MaxInt64-10, time.Hour); got != math.MaxInt64 {
		t.Fatalf("deadline must saturate, got %d", got)
	}
	if got := deadline(100, 5); got != 105 {
		t.Fatalf("deadline(100, 5) = %d", got)
	}
}

// MaxSize is enforced per shard: no shard ever holds more than its share.
func TestCache_CapacityIsPerShard(t *testing.T) {
	t.Parallel()

	c := newTestCache(t, Options[int]{MaxSize: 8, Shards: 2})
	for i := 0; i < 100; i++ {
		c.Set(fmt.Sprintf("k%d", i), i)
	}

	impl := c.(*cache[int])
	total := 0
	for i, s := range impl.shards {
		if n := s.Len(); n > 4 {
			t.Fatalf("shard %d holds %d entries, cap is 4", i, n)
		}
		total += s.Len()
	}
	if total != c.Len() || total > 8 {
		t.Fatalf("Len=%d total=%d, want <= 8", c.Len(), total)
	}
}

// Basic Set/Get/Delete semantics; Set overwrites unconditionally.
func TestCache_BasicSetGetDelete(t *testing.T) {
	t.Parallel()

	c := newTestCache(t, Options[int]{MaxSize: 8})

	if !c.Set("a", 1) {
		t.Fatal("Set on an open cache must succeed")
	}
	c.Set("a", 11)
	if v, ok := c.Get("a"); !ok || v != 11 {
		t.Fatalf("Get a want 11, got %v ok=%v", v, ok)
	}

	if !c.Delete("a") {
		t.Fatal("Delete a must be true")
	}
	if c.Delete("a") {
		t.Fatal("second Delete must be false")
	}
	if _, ok := c.Get("a"); ok {
		t.Fatal("a must be absent after Delete")
	}
}

func TestCache_DeleteExpiredReportsAbsent(t *testing.T) {
	t.Parallel()

	clk := newFakeClock()
	c := newTestCache(t, Options[int]{Clock: clk})

	c.Set("a", 1, WithTTL(time.Second))
	clk.add(2 * time.Second)
	if c.Delete("a") {
		t.Fatal("an expired entry is logically absent")
	}
	if c.Len() != 0 {
		t.Fatal("expired entry must be purged by Delete")
	}
}

// Filling A,B,C into a 3-slot cache, reading A and inserting D evicts B.
func TestCache_EvictionLRU(t *testing.T) {
	t.Parallel()

	c := newTestCache(t, Options[int]{MaxSize: 3})

	c.Set("A", 1)
	c.Set("B", 2)
	c.Set("C", 3)
	if _, ok := c.Get("A"); !ok {
		t.Fatal("expect hit for A")
	}
	c.Set("D", 4)

	if _, ok := c.Inspect("B"); ok {
		t.Fatal("B must be evicted")
	}
	for _, k := range []string{"A", "C", "D"} {
		if _, ok := c.Inspect(k); !ok {
			t.Fatalf("%s must survive", k)
		}
	}
	if st := c.Metrics(); st.Evictions != 1 || st.Size != 3 {
		t.Fatalf("want 1 eviction and size 3, got %+v", st)
	}
}

// Overwriting counts as use for LRU purposes.
func TestCache_EvictionLRU_OverwritePromotes(t *testing.T) {
	t.Parallel()

	c := newTestCache(t, Options[int]{MaxSize: 2})

	c.Set("a", 1)
	c.Set("b", 2)
	c.Set("a", 10) // a becomes MRU
	c.Set("c", 3)  // evicts b

	if _, ok := c.Get("b"); ok {
		t.Fatal("b must be evicted")
	}
	if v, ok := c.Get("a"); !ok || v != 10 {
		t.Fatalf("a must survive with its new value, got %v ok=%v", v, ok)
	}
}

func TestCache_OnEvictReasons(t *testing.T) {
	t.Parallel()

	clk := newFakeClock()
	var reasons []EvictReason
	var keys []string
	c := newTestCache(t, Options[int]{
		MaxSize: 1,
		Clock:   clk,
		OnEvict: func(k string, _ int, r EvictReason) {
			keys = append(keys, k)
			reasons = append(reasons, r)
		},
	})

	c.Set("a", 1)
	c.Set("b", 2) // capacity eviction of a
	c.Set("b", 3, WithTTL(time.Second))
	clk.add(2 * time.Second)
	c.Get("b") // expiry purge
	c.Set("c", 4)
	c.Delete("c") // explicit delete is not an eviction

	if len(reasons) != 2 || reasons[0] != EvictCapacity || reasons[1] != EvictExpired {
		t.Fatalf("unexpected reasons %v", reasons)
	}
	if keys[0] != "a" || keys[1] != "b" {
		t.Fatalf("unexpected keys %v", keys)
	}
	if EvictCapacity.String() != "capacity" || EvictExpired.String() != "expired" {
		t.Fatal("unexpected reason labels")
	}
}

func TestCache_ClearIsIdempotent(t *testing.T) {
	t.Parallel()

	c := newTestCache(t, Options[string]{MaxSize: 16})

	c.Set("a", "1", WithTags("t"))
	c.Set("b", "2")
	c.Get("a")
	c.Get("zzz")

	c.Clear()
	c.Clear()

	st := c.Metrics()
	if st.Size != 0 || st.Hits != 0 || st.Misses != 0 {
		t.Fatalf("Clear must reset size and counters, got %+v", st)
	}
	if _, ok := c.Get("a"); ok {
		t.Fatal("a must miss after Clear")
	}
	if n := c.InvalidateByTag("t"); n != 0 {
		t.Fatalf("tag index must be cleared, removed %d", n)
	}
	if c.Len() != 0 {
		t.Fatalf("Len must be 0, got %d", c.Len())
	}
}

type user struct{ Name string }

func TestCache_EndToEndScenario(t *testing.T) {
	t.Parallel()

	clk := newFakeClock()
	c := newTestCache(t, Options[user]{Clock: clk})

	c.Set("u:1", user{Name: "Ann"}, WithTTL(1000*time.Millisecond), WithTags("users"))

	got, ok := c.Get("u:1")
	if !ok || got.Name != "Ann" {
		t.Fatalf("want Ann, got %+v ok=%v", got, ok)
	}
	info, ok := c.Inspect("u:1")
	if !ok || info.Hits != 1 {
		t.Fatalf("want hits=1, got %+v", info)
	}
	if len(info.Tags) != 1 || info.Tags[0] != "users" {
		t.Fatalf("unexpected tags %v", info.Tags)
	}

	clk.add(1001 * time.Millisecond)
	missesBefore := c.Metrics().Misses
	if _, ok := c.Get("u:1"); ok {
		t.Fatal("u:1 must be absent after its TTL")
	}
	if c.Metrics().Misses != missesBefore+1 {
		t.Fatal("the expired read must count as a miss")
	}

	c.Set("u:1", user{Name: "Ann"}, WithTTL(1000*time.Millisecond), WithTags("users"))
	if n := c.InvalidateByTag("users"); n != 1 {
		t.Fatalf("InvalidateByTag want 1, got %d", n)
	}
}

func TestCache_InspectDoesNotTouch(t *testing.T) {
	t.Parallel()

	c := newTestCache(t, Options[int]{MaxSize: 2})

	c.Set("a", 1)
	c.Set("b", 2)
	c.Inspect("a") // must not promote a
	c.Set("c", 3)

	if _, ok := c.Inspect("a"); ok {
		t.Fatal("Inspect must not refresh recency")
	}
	if st := c.Metrics(); st.Hits != 0 || st.Misses != 0 {
		t.Fatalf("Inspect must not count lookups, got %+v", st)
	}
}

func TestCache_Closed(t *testing.T) {
	t.Parallel()

	c, err := New(Options[int]{})
	if err != nil {
		t.Fatal(err)
	}
	c.Set("a", 1)
	if err := c.Close(); err != nil {
		t.Fatal(err)
	}
	if err := c.Close(); err != nil {
		t.Fatal("Close must be idempotent")
	}

	if c.Set("b", 2) {
		t.Fatal("Set after Close must report false")
	}
	if _, ok := c.Get("a"); ok {
		t.Fatal("Get after Close must miss")
	}
	if c.Delete("a") {
		t.Fatal("Delete after Close must report false")
	}
}

func TestCache_DisableMetrics(t *testing.T) {
	t.Parallel()

	c := newTestCache(t, Options[int]{MaxSize: 1, DisableMetrics: true})

	c.Set("a", 1)
	c.Get("a")
	c.Get("b")
	c.Set("c", 2)

	st := c.Metrics()
	if st.Hits != 0 || st.Misses != 0 || st.Evictions != 0 {
		t.Fatalf("counters must stay 0, got %+v", st)
	}
	if st.Size != 1 || st.Capacity != 1 {
		t.Fatalf("size and capacity are always reported, got %+v", st)
	}
}

func TestCache_SweepPurgesExpired(t *testing.T) {
	t.Parallel()

	clk := newFakeClock()
	c := newTestCache(t, Options[int]{Clock: clk, Shards: 4})

	for i, k := range []string{"a", "b", "c", "d", "e"} {
		c.Set(k, i, WithTTL(time.Second))
	}
	c.Set("keep", 1, WithTTL(time.Hour))
	clk.add(2 * time.Second)

	if n := c.(*cache[int]).sweep(); n != 5 {
		t.Fatalf("sweep want 5, got %d", n)
	}
	if c.Len() != 1 {
		t.Fatalf("only keep must remain, Len=%d", c.Len())
	}
	if st := c.Metrics(); st.Expirations != 5 || st.Evictions != 0 {
		t.Fatalf("sweeps count as expirations, got %+v", st)
	}
}

// The background sweeper runs on a real ticker and stops on Close.
func TestCache_SweeperLoop(t *testing.T) {
	t.Parallel()

	c := newTestCache(t, Options[int]{SweepInterval: 5 * time.Millisecond})
	c.Set("a", 1, WithTTL(time.Millisecond))

	deadline := time.Now().Add(2 * time.Second)
	for c.Len() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("sweeper did not purge the expired entry")
		}
		time.Sleep(2 * time.Millisecond)
	}
	if err := c.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestNew_RejectsMisconfiguration(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		opt  Options[int]
	}{
		{"negative max size", Options[int]{MaxSize: -1}},
		{"negative shards", Options[int]{Shards: -2}},
		{"negative stale time", Options[int]{DefaultStaleTime: -time.Second}},
		{"stale longer than ttl", Options[int]{DefaultTTL: time.Second, DefaultStaleTime: 2 * time.Second}},
		{"stale longer than default ttl", Options[int]{DefaultStaleTime: DefaultTTL + time.Second}},
		{"negative sweep", Options[int]{SweepInterval: -time.Second}},
		{"negative refresh timeout", Options[int]{RefreshTimeout: -time.Second}},
		{"negative refresh limit", Options[int]{MaxConcurrentRefreshes: -1}},
		{"hit rate above 1", Options[int]{Health: &HealthThresholds{MinHitRate: 1.5, MaxOccupancy: 0.9}}},
		{"zero occupancy", Options[int]{Health: &HealthThresholds{MinHitRate: 0.5}}},
		{"negative min requests", Options[int]{Health: &HealthThresholds{MaxOccupancy: 0.9, MinRequests: -1}}},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c, err := New(tt.opt)
			if !errors.Is(err, ErrInvalidOptions) {
				t.Fatalf("want ErrInvalidOptions, got %v", err)
			}
			if c != nil {
				t.Fatal("no cache may be returned on error")
			}
		})
	}
}

func TestMustNew_Panics(t *testing.T) {
	t.Parallel()

	defer func() {
		if recover() == nil {
			t.Fatal("MustNew must panic on invalid options")
		}
	}()
	MustNew(Options[int]{MaxSize: -1})
}

// Small caches run one shard (exact LRU); large ones are split.
func TestNew_ShardSelection(t *testing.T) {
	t.Parallel()

	small := newTestCache(t, Options[int]{MaxSize: 3}).(*cache[int])
	if len(small.shards) != 1 || small.shards[0].cap != 3 {
		t.Fatalf("small cache: shards=%d", len(small.shards))
	}

	explicit := newTestCache(t, Options[int]{MaxSize: 100, Shards: 3}).(*cache[int])
	if len(explicit.shards) != 4 {
		t.Fatalf("explicit shards must round to a power of two, got %d", len(explicit.shards))
	}
	if explicit.shards[0].cap != 25 {
		t.Fatalf("capacity must be split evenly, got %d", explicit.shards[0].cap)
	}
}
