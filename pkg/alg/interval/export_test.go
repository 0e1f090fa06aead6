package interval

import (
	"cmp"
	"fmt"
)

// CheckInvariants verifies BST order, AVL balance, cached heights, the
// augmented max and parent links. It returns the first violation found.
func (t *Tree[K, V]) CheckInvariants() error {
	if t.root == nilNode {
		if t.count != 0 {
			return fmt.Errorf("empty tree reports %d records", t.count)
		}

		return nil
	}

	if p := t.nodes[t.root].parent; p != nilNode {
		return fmt.Errorf("root has parent %d", p)
	}

	records, _, err := t.checkNode(t.root, nil, nil)
	if err != nil {
		return err
	}

	if records != t.count {
		return fmt.Errorf("counted %d records, tree reports %d", records, t.count)
	}

	return nil
}

func (t *Tree[K, V]) checkNode(idx uint32, lo, hi *K) (int, int32, error) {
	if idx == nilNode {
		return 0, 0, nil
	}

	n := &t.nodes[idx]

	if len(n.records) == 0 {
		return 0, 0, fmt.Errorf("node %d has no records", idx)
	}

	if lo != nil && cmp.Compare(n.low, *lo) <= 0 {
		return 0, 0, fmt.Errorf("node %d key %v not above %v", idx, n.low, *lo)
	}

	if hi != nil && cmp.Compare(n.low, *hi) >= 0 {
		return 0, 0, fmt.Errorf("node %d key %v not below %v", idx, n.low, *hi)
	}

	for _, child := range []uint32{n.left, n.right} {
		if child != nilNode && t.nodes[child].parent != idx {
			return 0, 0, fmt.Errorf("node %d child %d has parent %d", idx, child, t.nodes[child].parent)
		}
	}

	leftCount, lh, err := t.checkNode(n.left, lo, &n.low)
	if err != nil {
		return 0, 0, err
	}

	rightCount, rh, err := t.checkNode(n.right, &n.low, hi)
	if err != nil {
		return 0, 0, err
	}

	if lh-rh > maxBalance || rh-lh > maxBalance {
		return 0, 0, fmt.Errorf("node %d unbalanced: left %d right %d", idx, lh, rh)
	}

	height := max(lh, rh) + 1
	if n.height != height {
		return 0, 0, fmt.Errorf("node %d caches height %d, actual %d", idx, n.height, height)
	}

	want := ownHigh(n.records)
	if n.high != want {
		return 0, 0, fmt.Errorf("node %d caches own high %v, actual %v", idx, n.high, want)
	}

	if n.left != nilNode {
		want = max(want, t.nodes[n.left].max)
	}

	if n.right != nilNode {
		want = max(want, t.nodes[n.right].max)
	}

	if n.max != want {
		return 0, 0, fmt.Errorf("node %d caches max %v, actual %v", idx, n.max, want)
	}

	return leftCount + rightCount + len(n.records), height, nil
}
