// Package interval provides an augmented interval tree for efficient
// range-overlap queries. It supports Insert, Remove, Search and Overlaps with
// O(log N) insert/remove and O(log N + k) query time, where k is the number of
// overlapping records.
//
// The tree is an AVL tree keyed by the low endpoint. Every node holds all
// records sharing its low endpoint and the maximum high endpoint (max) of its
// subtree, enabling subtree pruning during overlap queries. Nodes live in an
// index arena: links are uint32 slots and slot 0 is the nil sentinel, so
// parent references never own anything.
package interval

import (
	"cmp"
	"errors"
	"slices"

	"github.com/Sumatoshi-tech/lanepack/pkg/safeconv"
)

// ErrInvalidInterval is returned when an interval's low endpoint exceeds its high endpoint.
var ErrInvalidInterval = errors.New("interval low must not exceed high")

// nilNode is the reserved arena slot standing in for a missing child or parent.
const nilNode uint32 = 0

// maxBalance is the largest tolerated height difference between siblings.
const maxBalance = 1

// Record is a closed interval [Low, High] with an associated Value.
type Record[K cmp.Ordered, V comparable] struct {
	Low   K
	High  K
	Value V
}

// entry is a record stored in a node; the low endpoint is the node key.
type entry[K cmp.Ordered, V comparable] struct {
	high  K
	value V
}

// node is an arena-resident AVL node augmented with the subtree max.
type node[K cmp.Ordered, V comparable] struct {
	low     K
	high    K // max high over this node's own records.
	max     K // max high over the whole subtree.
	records []entry[K, V]
	left    uint32
	right   uint32
	parent  uint32
	height  int32
}

// Tree is an augmented AVL interval tree. The zero value is an empty tree
// ready to use. A Tree is not safe for concurrent mutation.
type Tree[K cmp.Ordered, V comparable] struct {
	nodes []node[K, V]
	free  []uint32
	root  uint32
	count int
}

// New creates an empty interval tree.
func New[K cmp.Ordered, V comparable]() *Tree[K, V] {
	return &Tree[K, V]{}
}

// Len returns the number of records in the tree.
func (t *Tree[K, V]) Len() int {
	return t.count
}

// Height returns the height of the tree; an empty tree has height 0.
func (t *Tree[K, V]) Height() int {
	if t.root == nilNode {
		return 0
	}

	return int(t.nodes[t.root].height)
}

// Clear removes all records and releases the arena.
func (t *Tree[K, V]) Clear() {
	t.nodes = nil
	t.free = nil
	t.root = nilNode
	t.count = 0
}

// Insert adds the record [low, high] -> value. It returns false without
// modifying the tree when an identical record is already present.
func (t *Tree[K, V]) Insert(low, high K, value V) (bool, error) {
	if low > high {
		return false, ErrInvalidInterval
	}

	if t.root == nilNode {
		t.root = t.alloc(low, high, value, nilNode)
		t.count++

		return true, nil
	}

	parent := nilNode
	cur := t.root

	for cur != nilNode {
		n := &t.nodes[cur]

		switch {
		case low == n.low:
			return t.appendRecord(cur, high, value), nil
		case low < n.low:
			parent, cur = cur, n.left
		default:
			parent, cur = cur, n.right
		}
	}

	idx := t.alloc(low, high, value, parent)
	if low < t.nodes[parent].low {
		t.nodes[parent].left = idx
	} else {
		t.nodes[parent].right = idx
	}

	t.count++
	t.rebalance(parent)

	return true, nil
}

// Remove deletes the record [low, high] -> value. Returns true if the record
// was found and removed, false otherwise.
func (t *Tree[K, V]) Remove(low, high K, value V) bool {
	idx := t.find(low)
	if idx == nilNode {
		return false
	}

	n := &t.nodes[idx]

	pos := slices.IndexFunc(n.records, func(e entry[K, V]) bool {
		return e.high == high && e.value == value
	})
	if pos < 0 {
		return false
	}

	t.count--

	if len(n.records) > 1 {
		n.records = slices.Delete(n.records, pos, pos+1)
		n.high = ownHigh(n.records)
		t.refreshUp(idx)

		return true
	}

	t.excise(idx)

	return true
}

// Search returns every record whose interval intersects [low, high]. The
// order is unspecified; each matching record appears exactly once.
func (t *Tree[K, V]) Search(low, high K) []Record[K, V] {
	if t.root == nilNode || low > high {
		return nil
	}

	var results []Record[K, V]

	t.collect(t.root, low, high, func(r Record[K, V]) bool {
		results = append(results, r)

		return true
	})

	return results
}

// Overlaps reports whether any record intersects [low, high]. It stops at the
// first match.
func (t *Tree[K, V]) Overlaps(low, high K) bool {
	if t.root == nilNode || low > high {
		return false
	}

	found := false

	t.collect(t.root, low, high, func(Record[K, V]) bool {
		found = true

		return false
	})

	return found
}

// Stab returns one record containing point, if any.
func (t *Tree[K, V]) Stab(point K) (Record[K, V], bool) {
	var (
		hit   Record[K, V]
		found bool
	)

	if t.root == nilNode {
		return hit, false
	}

	t.collect(t.root, point, point, func(r Record[K, V]) bool {
		hit, found = r, true

		return false
	})

	return hit, found
}

// collect visits overlapping records in key order until yield returns false.
// The return value is false once iteration has been stopped.
func (t *Tree[K, V]) collect(idx uint32, low, high K, yield func(Record[K, V]) bool) bool {
	if idx == nilNode {
		return true
	}

	n := &t.nodes[idx]

	// Prune: nothing in this subtree reaches the query.
	if n.max < low {
		return true
	}

	if !t.collect(n.left, low, high, yield) {
		return false
	}

	// Keys to the right only grow; once the query ends before this key, stop.
	if high < n.low {
		return true
	}

	if n.high >= low {
		for _, e := range n.records {
			if e.high >= low && !yield(Record[K, V]{Low: n.low, High: e.high, Value: e.value}) {
				return false
			}
		}
	}

	return t.collect(n.right, low, high, yield)
}

// appendRecord adds a record to an existing node and propagates a new max upward.
func (t *Tree[K, V]) appendRecord(idx uint32, high K, value V) bool {
	n := &t.nodes[idx]

	for _, e := range n.records {
		if e.high == high && e.value == value {
			return false
		}
	}

	n.records = append(n.records, entry[K, V]{high: high, value: value})
	t.count++

	if high > n.high {
		n.high = high
		t.refreshUp(idx)
	}

	return true
}

// excise unlinks a node whose last record has just been removed.
func (t *Tree[K, V]) excise(idx uint32) {
	target := idx
	n := &t.nodes[idx]

	// Two children: adopt the in-order successor's key and records, then
	// delete the successor node, which has no left child.
	if n.left != nilNode && n.right != nilNode {
		succ := t.minimum(n.right)
		s := &t.nodes[succ]
		n.low, n.high, n.records = s.low, s.high, s.records
		s.records = nil
		target = succ
	}

	tn := t.nodes[target]

	child := tn.left
	if child == nilNode {
		child = tn.right
	}

	t.replaceChild(tn.parent, target, child)

	if child != nilNode {
		t.nodes[child].parent = tn.parent
	}

	t.release(target)
	t.rebalance(tn.parent)
}

// rebalance walks from idx to the root, re-deriving height and max and
// rotating wherever the AVL balance is violated.
func (t *Tree[K, V]) rebalance(idx uint32) {
	for idx != nilNode {
		t.refresh(idx)

		bf := t.balance(idx)

		switch {
		case bf > maxBalance:
			if t.balance(t.nodes[idx].left) < 0 {
				t.rotateLeft(t.nodes[idx].left)
			}

			idx = t.rotateRight(idx)
		case bf < -maxBalance:
			if t.balance(t.nodes[idx].right) > 0 {
				t.rotateRight(t.nodes[idx].right)
			}

			idx = t.rotateLeft(idx)
		}

		idx = t.nodes[idx].parent
	}
}

// refreshUp re-derives max from idx to the root without structural changes.
func (t *Tree[K, V]) refreshUp(idx uint32) {
	for idx != nilNode {
		t.refresh(idx)
		idx = t.nodes[idx].parent
	}
}

// rotateLeft rotates the subtree at x to the left and returns its new root.
func (t *Tree[K, V]) rotateLeft(x uint32) uint32 {
	y := t.nodes[x].right
	yl := t.nodes[y].left

	t.nodes[x].right = yl
	if yl != nilNode {
		t.nodes[yl].parent = x
	}

	t.nodes[y].parent = t.nodes[x].parent
	t.replaceChild(t.nodes[x].parent, x, y)

	t.nodes[y].left = x
	t.nodes[x].parent = y

	t.refresh(x)
	t.refresh(y)

	return y
}

// rotateRight rotates the subtree at x to the right and returns its new root.
func (t *Tree[K, V]) rotateRight(x uint32) uint32 {
	y := t.nodes[x].left
	yr := t.nodes[y].right

	t.nodes[x].left = yr
	if yr != nilNode {
		t.nodes[yr].parent = x
	}

	t.nodes[y].parent = t.nodes[x].parent
	t.replaceChild(t.nodes[x].parent, x, y)

	t.nodes[y].right = x
	t.nodes[x].parent = y

	t.refresh(x)
	t.refresh(y)

	return y
}

// replaceChild points parent's link from old to repl, or the root when parent is nil.
func (t *Tree[K, V]) replaceChild(parent, old, repl uint32) {
	switch {
	case parent == nilNode:
		t.root = repl
	case t.nodes[parent].left == old:
		t.nodes[parent].left = repl
	default:
		t.nodes[parent].right = repl
	}
}

// refresh recomputes a node's height and subtree max from its children.
func (t *Tree[K, V]) refresh(idx uint32) {
	n := &t.nodes[idx]
	n.height = max(t.heightOf(n.left), t.heightOf(n.right)) + 1
	n.max = n.high

	if n.left != nilNode {
		n.max = max(n.max, t.nodes[n.left].max)
	}

	if n.right != nilNode {
		n.max = max(n.max, t.nodes[n.right].max)
	}
}

func (t *Tree[K, V]) heightOf(idx uint32) int32 {
	if idx == nilNode {
		return 0
	}

	return t.nodes[idx].height
}

func (t *Tree[K, V]) balance(idx uint32) int32 {
	if idx == nilNode {
		return 0
	}

	return t.heightOf(t.nodes[idx].left) - t.heightOf(t.nodes[idx].right)
}

// find returns the node keyed by low, or nilNode.
func (t *Tree[K, V]) find(low K) uint32 {
	cur := t.root

	for cur != nilNode {
		n := &t.nodes[cur]

		switch {
		case low == n.low:
			return cur
		case low < n.low:
			cur = n.left
		default:
			cur = n.right
		}
	}

	return nilNode
}

// minimum returns the leftmost node in the subtree rooted at idx.
func (t *Tree[K, V]) minimum(idx uint32) uint32 {
	for t.nodes[idx].left != nilNode {
		idx = t.nodes[idx].left
	}

	return idx
}

// alloc takes a slot from the free list or grows the arena.
func (t *Tree[K, V]) alloc(low, high K, value V, parent uint32) uint32 {
	if len(t.nodes) == 0 {
		// Slot zero is reserved.
		t.nodes = append(t.nodes, node[K, V]{})
	}

	n := node[K, V]{
		low:     low,
		high:    high,
		max:     high,
		records: []entry[K, V]{{high: high, value: value}},
		parent:  parent,
		height:  1,
	}

	if last := len(t.free) - 1; last >= 0 {
		idx := t.free[last]
		t.free = t.free[:last]
		t.nodes[idx] = n

		return idx
	}

	t.nodes = append(t.nodes, n)

	return safeconv.MustIntToUint32(len(t.nodes) - 1)
}

// release returns a slot to the free list.
func (t *Tree[K, V]) release(idx uint32) {
	if idx == nilNode {
		panic("interval: node #0 is reserved and cannot be released")
	}

	t.nodes[idx] = node[K, V]{}
	t.free = append(t.free, idx)
}

func ownHigh[K cmp.Ordered, V comparable](records []entry[K, V]) K {
	h := records[0].high

	for _, e := range records[1:] {
		h = max(h, e.high)
	}

	return h
}
