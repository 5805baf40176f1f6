// Package policy defines the contract between a cache shard and its
// eviction policy.
package policy

// Node is the view of a resident entry that a policy may inspect.
type Node[V any] interface {
	Key() string
}

// Hooks expose the shard's O(1) recency-list operations (head = most
// recently used, tail = least recently used). The shard owns the key index;
// hooks only relink nodes.
//
// All hook calls happen under the shard lock.
type Hooks[V any] interface {
	MoveToFront(Node[V])
	PushFront(Node[V])
	// Back returns the least recently used node, or nil when empty.
	Back() Node[V]
}

// ShardPolicy is a per-shard policy instance bound to the shard's hooks.
// All methods are invoked under the shard lock.
//
//   - OnAdd places a freshly inserted node.
//   - OnGet and OnUpdate record a use of an existing node.
//   - OnRemove notifies the policy that the shard dropped the node.
//   - Victim names the node to evict when the shard is over capacity;
//     nil means nothing can be evicted.
type ShardPolicy[V any] interface {
	OnAdd(Node[V])
	OnGet(Node[V])
	OnUpdate(Node[V])
	OnRemove(Node[V])
	Victim() Node[V]
}

// Policy creates shard-local policy instances.
type Policy[V any] interface {
	New(Hooks[V]) ShardPolicy[V]
}
