package lru

import (
	"testing"

	"github.com/IvanBrykalov/swrcache/policy"
)

type testNode struct{ k string }

func (n *testNode) Key() string { return n.k }

// listHooks is a tiny slice-backed list: index 0 is MRU.
type listHooks struct {
	nodes []policy.Node[int]
	moves int
}

func (h *listHooks) index(n policy.Node[int]) int {
	for i, x := range h.nodes {
		if x == n {
			return i
		}
	}
	return -1
}

func (h *listHooks) PushFront(n policy.Node[int]) {
	h.nodes = append([]policy.Node[int]{n}, h.nodes...)
}

func (h *listHooks) MoveToFront(n policy.Node[int]) {
	h.moves++
	if i := h.index(n); i >= 0 {
		h.nodes = append(h.nodes[:i], h.nodes[i+1:]...)
	}
	h.PushFront(n)
}

func (h *listHooks) Back() policy.Node[int] {
	if len(h.nodes) == 0 {
		return nil
	}
	return h.nodes[len(h.nodes)-1]
}

func TestLRU_VictimIsLeastRecentlyUsed(t *testing.T) {
	t.Parallel()

	h := &listHooks{}
	p := New[int]().New(h)

	a := &testNode{k: "a"}
	b := &testNode{k: "b"}
	c := &testNode{k: "c"}
	p.OnAdd(a)
	p.OnAdd(b)
	p.OnAdd(c)

	if v := p.Victim(); v != policy.Node[int](a) {
		t.Fatalf("victim must be a, got %v", v.Key())
	}

	p.OnGet(a) // a becomes MRU, b is now LRU
	if v := p.Victim(); v.Key() != "b" {
		t.Fatalf("victim must be b after reading a, got %s", v.Key())
	}

	p.OnUpdate(b)
	if v := p.Victim(); v.Key() != "c" {
		t.Fatalf("victim must be c after updating b, got %s", v.Key())
	}
	if h.moves != 2 {
		t.Fatalf("OnGet/OnUpdate must promote, moves=%d", h.moves)
	}
}

func TestLRU_EmptyHasNoVictim(t *testing.T) {
	t.Parallel()

	p := New[int]().New(&listHooks{})
	if v := p.Victim(); v != nil {
		t.Fatalf("empty shard must have no victim, got %v", v)
	}
}

func TestLRU_OnRemoveTouchesNothing(t *testing.T) {
	t.Parallel()

	h := &listHooks{}
	p := New[int]().New(h)
	n := &testNode{k: "x"}
	p.OnAdd(n)
	p.OnRemove(n)

	if len(h.nodes) != 1 || h.moves != 0 {
		t.Fatal("OnRemove must not relink; the shard unlinks the node itself")
	}
}
