package interval

import "iter"

// InOrder returns a lazy traversal of all records in ascending key order.
// Records sharing a key are yielded in insertion order. Each call starts a
// fresh traversal; mutating the tree while iterating is not supported.
func (t *Tree[K, V]) InOrder() iter.Seq[Record[K, V]] {
	return func(yield func(Record[K, V]) bool) {
		var stack []uint32

		cur := t.root

		for cur != nilNode || len(stack) > 0 {
			for cur != nilNode {
				stack = append(stack, cur)
				cur = t.nodes[cur].left
			}

			last := len(stack) - 1
			cur, stack = stack[last], stack[:last]

			if !t.yieldRecords(cur, false, yield) {
				return
			}

			cur = t.nodes[cur].right
		}
	}
}

// ReverseInOrder returns a lazy traversal of all records in descending key
// order. Records sharing a key are yielded in reverse insertion order.
func (t *Tree[K, V]) ReverseInOrder() iter.Seq[Record[K, V]] {
	return func(yield func(Record[K, V]) bool) {
		var stack []uint32

		cur := t.root

		for cur != nilNode || len(stack) > 0 {
			for cur != nilNode {
				stack = append(stack, cur)
				cur = t.nodes[cur].right
			}

			last := len(stack) - 1
			cur, stack = stack[last], stack[:last]

			if !t.yieldRecords(cur, true, yield) {
				return
			}

			cur = t.nodes[cur].left
		}
	}
}

// PreOrder returns a lazy traversal visiting each node before its children.
func (t *Tree[K, V]) PreOrder() iter.Seq[Record[K, V]] {
	return func(yield func(Record[K, V]) bool) {
		if t.root == nilNode {
			return
		}

		stack := []uint32{t.root}

		for len(stack) > 0 {
			last := len(stack) - 1
			cur := stack[last]
			stack = stack[:last]

			if !t.yieldRecords(cur, false, yield) {
				return
			}

			// Right is pushed first so the left subtree is visited first.
			if r := t.nodes[cur].right; r != nilNode {
				stack = append(stack, r)
			}

			if l := t.nodes[cur].left; l != nilNode {
				stack = append(stack, l)
			}
		}
	}
}

func (t *Tree[K, V]) yieldRecords(idx uint32, reverse bool, yield func(Record[K, V]) bool) bool {
	n := &t.nodes[idx]

	for i := range n.records {
		e := n.records[i]
		if reverse {
			e = n.records[len(n.records)-1-i]
		}

		if !yield(Record[K, V]{Low: n.low, High: e.high, Value: e.value}) {
			return false
		}
	}

	return true
}
