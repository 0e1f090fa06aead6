package lane

import (
	"iter"

	"github.com/Sumatoshi-tech/lanepack/pkg/alg/interval"
)

// TreeStore keeps a lane's occupancy in an augmented interval tree. The
// half-open span [l, r) is stored as the closed record [l, r-1]. Overlapping
// spans coalesce on insert; gaps are never bridged.
type TreeStore struct {
	fullState

	tree *interval.Tree[int64, string]
}

// NewTreeStore creates an empty tree-backed lane. Merge tuning in opts does
// not apply: tree lanes only coalesce overlaps.
func NewTreeStore(_ Options) *TreeStore {
	return &TreeStore{tree: interval.New[int64, string]()}
}

// IsClear reports whether nothing occupies [l, r).
func (s *TreeStore) IsClear(l, r int64) bool {
	if r <= l {
		return true
	}

	if s.full {
		return false
	}

	return !s.tree.Overlaps(l, r-1)
}

// Insert marks [l, r) as occupied by owner. Overlapping records are folded
// into one record owned by the leftmost piece; an existing record wins a tie.
func (s *TreeStore) Insert(l, r int64, owner string) {
	if r <= l {
		return
	}

	low, high := l, r-1

	for _, rec := range s.tree.Search(low, high) {
		s.tree.Remove(rec.Low, rec.High, rec.Value)

		if rec.Low <= low {
			owner = rec.Value
		}

		low = min(low, rec.Low)
		high = max(high, rec.High)
	}

	s.mustInsert(low, high, owner)
}

// Discard frees [l, r), re-inserting the parts of straddling records that
// fall outside the range.
func (s *TreeStore) Discard(l, r int64) {
	if r <= l {
		return
	}

	s.discardFull(l, r)

	for _, rec := range s.tree.Search(l, r-1) {
		s.tree.Remove(rec.Low, rec.High, rec.Value)

		if rec.Low < l {
			s.mustInsert(rec.Low, l-1, rec.Value)
		}

		if rec.High > r-1 {
			s.mustInsert(r, rec.High, rec.Value)
		}
	}
}

// At returns the owner occupying point x.
func (s *TreeStore) At(x int64) (string, bool) {
	if rec, ok := s.tree.Stab(x); ok {
		return rec.Value, true
	}

	return s.fullAt(x)
}

// Len returns the number of stored records.
func (s *TreeStore) Len() int {
	return s.tree.Len()
}

// Spans yields stored spans in ascending order.
func (s *TreeStore) Spans() iter.Seq[Span] {
	return func(yield func(Span) bool) {
		for rec := range s.tree.InOrder() {
			if !yield(Span{Start: rec.Low, End: rec.High + 1, Owner: rec.Value}) {
				return
			}
		}
	}
}

// Reset empties the lane.
func (s *TreeStore) Reset() {
	s.tree.Clear()
	s.fullState = fullState{}
}

func (s *TreeStore) mustInsert(low, high int64, owner string) {
	if _, err := s.tree.Insert(low, high, owner); err != nil {
		panic("lane: tree store produced an inverted record: " + err.Error())
	}
}
