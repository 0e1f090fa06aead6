// Package lane implements per-lane occupancy stores for the layout engine.
//
// A lane tracks which half-open ranges [l, r) of the quantized coordinate
// axis are occupied and by whom. Two interchangeable backends satisfy the
// Store contract: ArrayStore keeps a sorted, coalescing slice of spans and
// suits lanes whose neighbours merge; TreeStore keeps an augmented interval
// tree and suits lanes with many small unrelated spans.
package lane

import (
	"errors"
	"fmt"
	"iter"
)

// Default tuning values.
const (
	// DefaultLinearScanThreshold is the span count below which IsClear scans linearly.
	DefaultLinearScanThreshold = 20
	// DefaultCompactRatio is the capacity-to-length ratio that triggers compaction.
	DefaultCompactRatio = 4
	// DefaultCompactMinCap is the minimum capacity considered for compaction.
	DefaultCompactMinCap = 64
)

// Sentinel errors.
var (
	ErrUnknownBackend     = errors.New("unknown lane backend")
	ErrUnknownMergePolicy = errors.New("unknown merge policy")
	ErrNegativeEpsilon    = errors.New("merge epsilon must not be negative")
)

// Span is an occupied half-open range [Start, End) owned by an item.
type Span struct {
	Start int64
	End   int64
	Owner string
}

// Store is the occupancy capability set shared by all lane backends.
// Ranges are half-open; an empty range (r <= l) is always clear and is
// ignored by Insert and Discard.
type Store interface {
	// IsClear reports whether nothing occupies [l, r).
	IsClear(l, r int64) bool
	// Insert marks [l, r) as occupied by owner.
	Insert(l, r int64, owner string)
	// Discard frees [l, r), trimming or splitting straddling spans.
	Discard(l, r int64)
	// At returns the owner occupying point x.
	At(x int64) (string, bool)
	// MarkFull degrades the lane to fully occupied on behalf of an
	// oversized owner spanning [l, r).
	MarkFull(owner string, l, r int64)
	// Full reports whether the lane is degraded to fully occupied.
	Full() bool
	// Len returns the number of stored spans.
	Len() int
	// Spans yields stored spans in ascending start order.
	Spans() iter.Seq[Span]
	// Reset empties the lane.
	Reset()
}

// Backend selects a Store implementation.
type Backend string

// Supported backends.
const (
	BackendArray Backend = "array"
	BackendTree  Backend = "tree"
)

// ParseBackend converts a configuration string into a Backend.
func ParseBackend(s string) (Backend, error) {
	switch b := Backend(s); b {
	case BackendArray, BackendTree:
		return b, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownBackend, s)
	}
}

// MergePolicy controls which neighbouring spans coalesce across a gap.
// Overlapping spans always merge.
type MergePolicy string

// Supported merge policies.
const (
	// MergeAny coalesces neighbours within the epsilon gap regardless of owner.
	MergeAny MergePolicy = "any"
	// MergeOwner coalesces neighbours within the epsilon gap only for equal owners.
	MergeOwner MergePolicy = "owner"
)

// ParseMergePolicy converts a configuration string into a MergePolicy.
func ParseMergePolicy(s string) (MergePolicy, error) {
	switch p := MergePolicy(s); p {
	case MergeAny, MergeOwner:
		return p, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownMergePolicy, s)
	}
}

// Options tunes a Store.
type Options struct {
	// MergeEpsilon is the widest gap bridged when coalescing neighbours.
	MergeEpsilon int64
	// MergePolicy decides whether gap-merging requires equal owners.
	MergePolicy MergePolicy
	// LinearScanThreshold is the span count below which IsClear scans linearly.
	LinearScanThreshold int
	// CompactRatio and CompactMinCap bound slack capacity in ArrayStore.
	CompactRatio  int
	CompactMinCap int
}

// DefaultOptions returns the default store tuning.
func DefaultOptions() Options {
	return Options{
		MergePolicy:         MergeAny,
		LinearScanThreshold: DefaultLinearScanThreshold,
		CompactRatio:        DefaultCompactRatio,
		CompactMinCap:       DefaultCompactMinCap,
	}
}

// Validate checks the options.
func (o Options) Validate() error {
	if o.MergeEpsilon < 0 {
		return fmt.Errorf("%w: %d", ErrNegativeEpsilon, o.MergeEpsilon)
	}

	if o.MergePolicy == "" {
		return nil
	}

	_, err := ParseMergePolicy(string(o.MergePolicy))

	return err
}

// withDefaults fills zero tuning values with defaults.
func (o Options) withDefaults() Options {
	def := DefaultOptions()

	if o.MergePolicy == "" {
		o.MergePolicy = def.MergePolicy
	}

	if o.LinearScanThreshold <= 0 {
		o.LinearScanThreshold = def.LinearScanThreshold
	}

	if o.CompactRatio <= 1 {
		o.CompactRatio = def.CompactRatio
	}

	if o.CompactMinCap <= 0 {
		o.CompactMinCap = def.CompactMinCap
	}

	return o
}

// Factory builds empty stores of one backend with shared options.
type Factory func() Store

// NewFactory validates the backend and options once and returns a Factory.
func NewFactory(backend Backend, opts Options) (Factory, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	switch backend {
	case BackendArray:
		return func() Store { return NewArrayStore(opts) }, nil
	case BackendTree:
		return func() Store { return NewTreeStore(opts) }, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, backend)
	}
}
