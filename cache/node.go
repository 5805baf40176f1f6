package cache

import "time"

// node is a cache entry and an intrusive list element owned by a shard.
type node[V any] struct {
	key string
	val V

	// head is MRU, tail is LRU.
	prev *node[V]
	next *node[V]

	// UnixNano instants; exp == 0 means "no TTL".
	exp        int64
	created    int64
	lastAccess int64

	hits int64
	tags []string
}

// Key implements policy.Node.
func (n *node[V]) Key() string { return n.key }

// expired reports whether the entry is logically absent at now.
// An entry is still valid at exactly its expiry instant.
func (n *node[V]) expired(now int64) bool {
	return n.exp != 0 && now > n.exp
}

// EntryInfo describes a resident entry without its value.
type EntryInfo struct {
	Key        string
	CreatedAt  time.Time
	ExpiresAt  time.Time // zero when the entry never expires
	LastAccess time.Time
	Hits       int64
	Tags       []string
}

func (n *node[V]) info() EntryInfo {
	ei := EntryInfo{
		Key:        n.key,
		CreatedAt:  time.Unix(0, n.created),
		LastAccess: time.Unix(0, n.lastAccess),
		Hits:       n.hits,
		Tags:       append([]string(nil), n.tags...),
	}
	if n.exp != 0 {
		ei.ExpiresAt = time.Unix(0, n.exp)
	}
	return ei
}
