package lane

// fullState tracks the fully-occupied degradation of a lane. The extent is
// the union of oversized footprints that caused it; a discard clears the
// flag only once it covers that whole extent.
type fullState struct {
	full  bool
	owner string
	left  int64
	right int64
}

// MarkFull degrades the lane to fully occupied. The first oversized owner
// is reported by point queries inside the extent.
func (f *fullState) MarkFull(owner string, l, r int64) {
	if !f.full {
		f.full, f.owner, f.left, f.right = true, owner, l, r

		return
	}

	f.left = min(f.left, l)
	f.right = max(f.right, r)
}

// Full reports whether the lane is degraded.
func (f *fullState) Full() bool {
	return f.full
}

func (f *fullState) fullAt(x int64) (string, bool) {
	if f.full && x >= f.left && x < f.right {
		return f.owner, true
	}

	return "", false
}

func (f *fullState) discardFull(l, r int64) {
	if f.full && l <= f.left && r >= f.right {
		*f = fullState{}
	}
}
