package lane

import (
	"iter"
	"slices"
	"sort"
)

// ArrayStore keeps a lane's occupancy as spans sorted by start. Spans never
// overlap, so their ends are sorted too and both can be binary-searched.
type ArrayStore struct {
	fullState

	spans []Span
	opts  Options
}

// NewArrayStore creates an empty sorted-array lane. Zero tuning values in
// opts fall back to DefaultOptions.
func NewArrayStore(opts Options) *ArrayStore {
	return &ArrayStore{opts: opts.withDefaults()}
}

// IsClear reports whether nothing occupies [l, r).
func (s *ArrayStore) IsClear(l, r int64) bool {
	if r <= l {
		return true
	}

	if s.full {
		return false
	}

	if len(s.spans) < s.opts.LinearScanThreshold {
		for _, sp := range s.spans {
			if sp.Start >= r {
				return true
			}

			if sp.End > l {
				return false
			}
		}

		return true
	}

	i := s.firstEndingAfter(l)

	return i == len(s.spans) || s.spans[i].Start >= r
}

// Insert marks [l, r) as occupied by owner, coalescing with neighbours.
func (s *ArrayStore) Insert(l, r int64, owner string) {
	if r <= l {
		return
	}

	i := sort.Search(len(s.spans), func(k int) bool { return s.spans[k].Start > l })
	s.spans = slices.Insert(s.spans, i, Span{Start: l, End: r, Owner: owner})

	for i > 0 && s.mergeable(s.spans[i-1], s.spans[i]) {
		s.spans[i-1].End = max(s.spans[i-1].End, s.spans[i].End)
		s.spans = slices.Delete(s.spans, i, i+1)
		i--
	}

	for i+1 < len(s.spans) && s.mergeable(s.spans[i], s.spans[i+1]) {
		s.spans[i].End = max(s.spans[i].End, s.spans[i+1].End)
		s.spans = slices.Delete(s.spans, i+1, i+2)
	}

	s.maybeCompact()
}

// Discard frees [l, r). Contained spans are dropped, straddling spans are
// trimmed and a span containing the range is split in two.
func (s *ArrayStore) Discard(l, r int64) {
	if r <= l {
		return
	}

	s.discardFull(l, r)

	i := s.firstEndingAfter(l)
	j := i

	for j < len(s.spans) && s.spans[j].Start < r {
		j++
	}

	if i == j {
		return
	}

	var rest []Span

	if first := s.spans[i]; first.Start < l {
		rest = append(rest, Span{Start: first.Start, End: l, Owner: first.Owner})
	}

	if last := s.spans[j-1]; last.End > r {
		rest = append(rest, Span{Start: r, End: last.End, Owner: last.Owner})
	}

	s.spans = slices.Replace(s.spans, i, j, rest...)
	s.maybeCompact()
}

// At returns the owner occupying point x.
func (s *ArrayStore) At(x int64) (string, bool) {
	i := s.firstEndingAfter(x)
	if i < len(s.spans) && s.spans[i].Start <= x {
		return s.spans[i].Owner, true
	}

	return s.fullAt(x)
}

// Len returns the number of stored spans.
func (s *ArrayStore) Len() int {
	return len(s.spans)
}

// Spans yields stored spans in ascending order.
func (s *ArrayStore) Spans() iter.Seq[Span] {
	return slices.Values(s.spans)
}

// Reset empties the lane and releases its buffer.
func (s *ArrayStore) Reset() {
	s.spans = nil
	s.fullState = fullState{}
}

// firstEndingAfter returns the index of the first span with End > x.
func (s *ArrayStore) firstEndingAfter(x int64) int {
	return sort.Search(len(s.spans), func(k int) bool { return s.spans[k].End > x })
}

// mergeable reports whether a and b, with a.Start <= b.Start, coalesce.
// The merged span keeps a's owner.
func (s *ArrayStore) mergeable(a, b Span) bool {
	if a.End > b.Start {
		return true
	}

	if a.End+s.opts.MergeEpsilon < b.Start {
		return false
	}

	return s.opts.MergePolicy == MergeAny || a.Owner == b.Owner
}

// maybeCompact reallocates the buffer when slack capacity dominates it.
func (s *ArrayStore) maybeCompact() {
	c := cap(s.spans)
	if c < s.opts.CompactMinCap || c <= s.opts.CompactRatio*len(s.spans) {
		return
	}

	s.spans = slices.Clip(slices.Clone(s.spans))
}
