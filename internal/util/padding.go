package util

import (
	"sync/atomic"
	"unsafe"
)

// CacheLineSize is 64 bytes, which matches most amd64 and arm64 parts.
const CacheLineSize = 64

// CacheLinePad separates groups of hot fields into distinct cache lines.
type CacheLinePad struct{ _ [CacheLineSize]byte }

// Counter is a monotonic atomic counter occupying one full cache line, so
// per-shard hit/miss/eviction counters updated by different goroutines do
// not false-share.
type Counter struct {
	v atomic.Int64
	_ [CacheLineSize - 8]byte
}

// Inc adds one.
func (c *Counter) Inc() { c.v.Add(1) }

// Add adds n (n may be negative for gauges such as resident size).
func (c *Counter) Add(n int64) { c.v.Add(n) }

// Load returns the current value.
func (c *Counter) Load() int64 { return c.v.Load() }

// Reset sets the counter back to zero.
func (c *Counter) Reset() { c.v.Store(0) }

var _ [CacheLineSize - int(unsafe.Sizeof(Counter{}))]byte
