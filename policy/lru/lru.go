// Package lru implements least-recently-used eviction.
package lru

import "github.com/IvanBrykalov/swrcache/policy"

// lru moves touched nodes to the head of the shard list and nominates the
// tail as victim, which is the node with the smallest last-access time.
type lru[V any] struct {
	h policy.Hooks[V]
}

type lruPolicy[V any] struct{}

// New returns a Policy that builds per-shard LRU instances.
func New[V any]() policy.Policy[V] { return lruPolicy[V]{} }

// New binds an LRU instance to a shard's hooks.
func (lruPolicy[V]) New(h policy.Hooks[V]) policy.ShardPolicy[V] {
	return &lru[V]{h: h}
}

func (p *lru[V]) OnAdd(n policy.Node[V]) { p.h.PushFront(n) }

func (p *lru[V]) OnGet(n policy.Node[V]) { p.h.MoveToFront(n) }

// OnUpdate counts an overwrite as a use.
func (p *lru[V]) OnUpdate(n policy.Node[V]) { p.h.MoveToFront(n) }

func (p *lru[V]) OnRemove(policy.Node[V]) {}

// Victim returns the least recently used node.
func (p *lru[V]) Victim() policy.Node[V] { return p.h.Back() }
