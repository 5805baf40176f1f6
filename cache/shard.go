package cache

import (
	"sync"

	"github.com/IvanBrykalov/swrcache/internal/util"
	"github.com/IvanBrykalov/swrcache/policy"
)

// env is the state every shard of one cache shares.
type env[V any] struct {
	metrics  Metrics
	onEvict  func(key string, v V, reason EvictReason)
	counting bool
	size     util.Counter // resident entries across all shards
}

// shard is an independent partition of the cache: a key index, a tag index
// and an intrusive recency list (head=MRU, tail=LRU), all guarded by mu.
type shard[V any] struct {
	mu   sync.RWMutex
	m    map[string]*node[V]
	tags map[string]map[string]struct{} // tag -> keys
	head *node[V]
	tail *node[V]
	len  int
	cap  int

	factory policy.Policy[V]
	pol     policy.ShardPolicy[V]
	env     *env[V]

	// hot counters, one cache line each
	_       util.CacheLinePad
	hits    util.Counter
	misses  util.Counter
	evicts  util.Counter
	expired util.Counter
}

func newShard[V any](capacity int, pol policy.Policy[V], e *env[V]) *shard[V] {
	s := &shard[V]{
		m:       make(map[string]*node[V], capacity),
		tags:    make(map[string]map[string]struct{}),
		cap:     capacity,
		factory: pol,
		env:     e,
	}
	s.pol = pol.New(shardHooks[V]{s: s})
	return s
}

// get returns the value and expiry of a live entry and records a hit, or
// purges an expired entry and records a miss.
func (s *shard[V]) get(k string, now int64) (v V, exp int64, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.m[k]
	if ok && n.expired(now) {
		s.evictLocked(n, EvictExpired)
		ok = false
	}
	if !ok {
		if s.env.counting {
			s.misses.Inc()
			s.env.metrics.Miss()
		}
		return v, 0, false
	}

	n.hits++
	n.lastAccess = now
	s.pol.OnGet(n)
	if s.env.counting {
		s.hits.Inc()
		s.env.metrics.Hit()
	}
	return n.val, n.exp, true
}

// peek returns a live value without stats or promotion.
func (s *shard[V]) peek(k string, now int64) (V, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if n, ok := s.m[k]; ok && !n.expired(now) {
		return n.val, true
	}
	var zero V
	return zero, false
}

// inspect returns metadata of a live entry without stats or promotion.
func (s *shard[V]) inspect(k string, now int64) (EntryInfo, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if n, ok := s.m[k]; ok && !n.expired(now) {
		return n.info(), true
	}
	return EntryInfo{}, false
}

// set creates or overwrites k. Overwrites replace value, expiry and tags
// and reset the hit count.
func (s *shard[V]) set(k string, v V, exp int64, tags []string, now int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if n, ok := s.m[k]; ok {
		n.val = v
		n.exp = exp
		n.created = now
		n.lastAccess = now
		n.hits = 0
		s.retagLocked(n, tags)
		s.pol.OnUpdate(n)
		return
	}
	s.insertLocked(k, v, exp, tags, now)
}

// refresh replaces value and expiry of k in place, keeping the entry's
// identity, hit count and recency. Tags are replaced only when retag is set.
// A key that vanished meanwhile is inserted again.
func (s *shard[V]) refresh(k string, v V, exp int64, tags []string, retag bool, now int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if n, ok := s.m[k]; ok {
		n.val = v
		n.exp = exp
		n.created = now
		if retag {
			s.retagLocked(n, tags)
		}
		return
	}
	s.insertLocked(k, v, exp, tags, now)
}

// remove deletes k and reports whether a live entry was present.
func (s *shard[V]) remove(k string, now int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.m[k]
	if !ok {
		return false
	}
	if n.expired(now) {
		s.evictLocked(n, EvictExpired)
		return false
	}
	s.unlinkLocked(n)
	s.env.metrics.Size(int(s.env.size.Load()))
	return true
}

// removeTag deletes every entry carrying tag and returns the count.
func (s *shard[V]) removeTag(tag string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys := s.tags[tag]
	removed := 0
	for k := range keys {
		if n, ok := s.m[k]; ok {
			s.unlinkLocked(n)
			removed++
		}
	}
	delete(s.tags, tag)
	if removed > 0 {
		s.env.metrics.Size(int(s.env.size.Load()))
	}
	return removed
}

// removeMatching deletes every entry whose key satisfies match.
func (s *shard[V]) removeMatching(match func(string) bool) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for k, n := range s.m {
		if match(k) {
			s.unlinkLocked(n)
			removed++
		}
	}
	if removed > 0 {
		s.env.metrics.Size(int(s.env.size.Load()))
	}
	return removed
}

// sweep purges expired entries and returns the count.
func (s *shard[V]) sweep(now int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	purged := 0
	for _, n := range s.m {
		if n.expired(now) {
			s.evictLocked(n, EvictExpired)
			purged++
		}
	}
	return purged
}

// clear drops all entries and resets the shard counters.
func (s *shard[V]) clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.env.size.Add(-int64(s.len))
	s.m = make(map[string]*node[V], s.cap)
	s.tags = make(map[string]map[string]struct{})
	s.head, s.tail = nil, nil
	s.len = 0
	s.pol = s.factory.New(shardHooks[V]{s: s})

	s.hits.Reset()
	s.misses.Reset()
	s.evicts.Reset()
	s.expired.Reset()
}

// Len returns the number of resident entries (expired ones included until purged).
func (s *shard[V]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.len
}

// -------------------- internals (mu held) --------------------

// insertLocked adds a new entry, evicting policy victims first so the new
// entry itself is never the one evicted.
func (s *shard[V]) insertLocked(k string, v V, exp int64, tags []string, now int64) {
	for s.len >= s.cap {
		victim := s.pol.Victim()
		if victim == nil {
			break
		}
		s.evictLocked(victim.(*node[V]), EvictCapacity)
	}

	n := &node[V]{key: k, val: v, exp: exp, created: now, lastAccess: now}
	s.m[k] = n
	s.retagLocked(n, tags)
	s.pol.OnAdd(n)
	s.env.metrics.Size(int(s.env.size.Load()))
}

func (s *shard[V]) retagLocked(n *node[V], tags []string) {
	s.untagLocked(n)
	n.tags = tags
	for _, t := range tags {
		keys, ok := s.tags[t]
		if !ok {
			keys = make(map[string]struct{})
			s.tags[t] = keys
		}
		keys[n.key] = struct{}{}
	}
}

func (s *shard[V]) untagLocked(n *node[V]) {
	for _, t := range n.tags {
		if keys, ok := s.tags[t]; ok {
			delete(keys, n.key)
			if len(keys) == 0 {
				delete(s.tags, t)
			}
		}
	}
	n.tags = nil
}

// unlinkLocked removes n from the list and both indexes.
func (s *shard[V]) unlinkLocked(n *node[V]) {
	s.pol.OnRemove(n)
	s.removeNode(n)
	delete(s.m, n.key)
	s.untagLocked(n)
}

// evictLocked drops n on the cache's own initiative and reports it.
func (s *shard[V]) evictLocked(n *node[V], reason EvictReason) {
	s.unlinkLocked(n)

	if s.env.counting {
		if reason == EvictCapacity {
			s.evicts.Inc()
		} else {
			s.expired.Inc()
		}
		s.env.metrics.Evict(reason)
	}
	s.env.metrics.Size(int(s.env.size.Load()))
	if cb := s.env.onEvict; cb != nil {
		cb(n.key, n.val, reason)
	}
}

// insertFront links n at MRU in O(1).
func (s *shard[V]) insertFront(n *node[V]) {
	n.prev = nil
	n.next = s.head
	if s.head != nil {
		s.head.prev = n
	}
	s.head = n
	if s.tail == nil {
		s.tail = n
	}
	s.len++
	s.env.size.Inc()
}

// moveToFront promotes n to MRU in O(1).
func (s *shard[V]) moveToFront(n *node[V]) {
	if n == s.head {
		return
	}
	if n.prev != nil {
		n.prev.next = n.next
	}
	if n.next != nil {
		n.next.prev = n.prev
	}
	if s.tail == n {
		s.tail = n.prev
	}
	n.prev = nil
	n.next = s.head
	if s.head != nil {
		s.head.prev = n
	}
	s.head = n
	if s.tail == nil {
		s.tail = n
	}
}

// removeNode unlinks n from the list in O(1).
func (s *shard[V]) removeNode(n *node[V]) {
	if n.prev != nil {
		n.prev.next = n.next
	}
	if n.next != nil {
		n.next.prev = n.prev
	}
	if s.head == n {
		s.head = n.next
	}
	if s.tail == n {
		s.tail = n.prev
	}
	n.prev, n.next = nil, nil
	s.len--
	s.env.size.Add(-1)
}

// -------------------- policy hooks --------------------

// shardHooks adapts the shard's list operations to policy.Hooks.
type shardHooks[V any] struct{ s *shard[V] }

func (h shardHooks[V]) MoveToFront(x policy.Node[V]) { h.s.moveToFront(x.(*node[V])) }
func (h shardHooks[V]) PushFront(x policy.Node[V])   { h.s.insertFront(x.(*node[V])) }

// Back returns the LRU node; an empty list yields a nil interface, not a
// typed nil pointer.
func (h shardHooks[V]) Back() policy.Node[V] {
	if h.s.tail == nil {
		return nil
	}
	return h.s.tail
}
