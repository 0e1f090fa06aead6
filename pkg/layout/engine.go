// Package layout implements a greedy first-fit lane allocator.
//
// An Engine assigns each item, a half-open horizontal interval with a height
// in lanes, to the lowest lane range where every spanned lane is clear over
// the item's quantized footprint. Lanes are materialized on demand up to a
// hard limit. Discard frees occupancy without forgetting items, and a later
// Allocate of a known id restores its lanes without searching again.
package layout

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/Sumatoshi-tech/lanepack/pkg/alg/interval"
	"github.com/Sumatoshi-tech/lanepack/pkg/lane"
	"github.com/Sumatoshi-tech/lanepack/pkg/safeconv"
)

// Input and placement errors.
var (
	ErrInvalidInterval    = errors.New("interval right must not be below left")
	ErrInvalidHeight      = errors.New("item height must be at least 1")
	ErrInvalidCoordinate  = errors.New("invalid coordinate")
	ErrLaneLimitViolation = errors.New("lane index reaches hard lane limit")
	ErrMalformedRect      = errors.New("rect must have four fields")
)

// Engine is a lane allocator. It is not safe for concurrent use; callers
// serialize access. Independent engines share no state.
type Engine[T any] struct {
	cfg     Config
	newLane lane.Factory

	lanes  []lane.Store // nil entries are lanes not yet materialized.
	items  map[string]*Item[T]
	region *interval.Tree[int64, string]

	// written holds each item's latest lane write, ordered by writes.
	written map[string]uint64
	writes  uint64

	totalHeight  int
	limitReached bool

	logger   *slog.Logger
	recorder Recorder
}

// Option configures an Engine.
type Option func(*options)

type options struct {
	logger   *slog.Logger
	recorder Recorder
}

// WithLogger sets the engine logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithRecorder sets the metrics recorder. Defaults to a no-op recorder.
func WithRecorder(r Recorder) Option {
	return func(o *options) {
		o.recorder = r
	}
}

// New creates an engine after validating cfg.
func New[T any](cfg Config, opts ...Option) (*Engine[T], error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("layout config: %w", err)
	}

	factory, err := lane.NewFactory(cfg.Backend, cfg.laneOptions())
	if err != nil {
		return nil, fmt.Errorf("layout config: %w", err)
	}

	o := options{}
	for _, opt := range opts {
		opt(&o)
	}

	if o.logger == nil {
		o.logger = slog.Default()
	}

	if o.recorder == nil {
		o.recorder = nopRecorder{}
	}

	return &Engine[T]{
		cfg:      cfg,
		newLane:  factory,
		items:    make(map[string]*Item[T]),
		region:   interval.New[int64, string](),
		written:  make(map[string]uint64),
		logger:   o.logger,
		recorder: o.recorder,
	}, nil
}

// Config returns the engine configuration.
func (e *Engine[T]) Config() Config {
	return e.cfg
}

// Allocate places an item and returns its first lane. placed is false when
// the item found no room below the lane limit; that is not an error. A known
// id returns its stored result without searching, re-writing its lanes.
func (e *Engine[T]) Allocate(id string, left, right float64, height int, payload T) (int, bool, error) {
	return e.Place(Request[T]{ID: id, Left: left, Right: right, Height: height, Payload: payload})
}

// Place is Allocate with a search hint.
func (e *Engine[T]) Place(req Request[T]) (int, bool, error) {
	if it, ok := e.items[req.ID]; ok {
		return e.repair(it)
	}

	it, err := e.newItem(req)
	if err != nil {
		e.recorder.RecordPlacement(OutcomeRejected, 0)

		return Unassigned, false, err
	}

	start := 0
	if e.cfg.Mode == ModeNormal {
		start = max(0, req.Hint)
	}

	// Heights that cannot fit above the first candidate lane are rejected
	// before the search so that top+height never overflows.
	if start < e.cfg.HardLaneLimit && it.Height > e.cfg.HardLaneLimit-start {
		return e.violate(it, start, 0)
	}

	top, probes := 0, 0

	if e.cfg.Mode == ModeNormal {
		var found bool

		top, probes, found = e.search(it, start)
		if !found {
			return e.exhaust(it, probes)
		}
	}

	if it.Height > e.cfg.HardLaneLimit-top {
		return e.violate(it, top, probes)
	}

	it.Top = top
	e.write(it)
	e.items[it.ID] = it
	e.indexRegion(it)
	e.totalHeight = max(e.totalHeight, top)
	e.recorder.RecordPlacement(OutcomePlaced, probes)

	return top, true, nil
}

// violate rejects an item whose span would cross the hard lane limit.
func (e *Engine[T]) violate(it *Item[T], top, probes int) (int, bool, error) {
	e.logger.Error("item span exceeds hard lane limit",
		"item", it.ID, "top", top, "height", it.Height, "limit", e.cfg.HardLaneLimit)
	e.recorder.RecordPlacement(OutcomeRejected, probes)

	return Unassigned, false, fmt.Errorf("%w: item %q needs %d lanes from %d with limit %d",
		ErrLaneLimitViolation, it.ID, it.Height, top, e.cfg.HardLaneLimit)
}

// newItem validates and quantizes a request.
func (e *Engine[T]) newItem(req Request[T]) (*Item[T], error) {
	if req.Height < 1 {
		return nil, fmt.Errorf("%w: item %q has height %d", ErrInvalidHeight, req.ID, req.Height)
	}

	qLeft, err := e.quantize(req.Left)
	if err != nil {
		return nil, fmt.Errorf("item %q left: %w", req.ID, err)
	}

	qRight, err := e.quantize(req.Right)
	if err != nil {
		return nil, fmt.Errorf("item %q right: %w", req.ID, err)
	}

	if req.Right < req.Left {
		return nil, fmt.Errorf("%w: item %q spans [%v, %v)", ErrInvalidInterval, req.ID, req.Left, req.Right)
	}

	return &Item[T]{
		ID:      req.ID,
		Left:    qLeft,
		Right:   qRight,
		Height:  req.Height,
		Top:     Unassigned,
		Payload: req.Payload,
	}, nil
}

// repair handles a known id: an unplaced item stays unplaced, a placed one
// is re-written into its lanes.
func (e *Engine[T]) repair(it *Item[T]) (int, bool, error) {
	if !it.Placed() {
		e.recorder.RecordPlacement(OutcomeUnplaced, 0)

		return Unassigned, false, nil
	}

	e.write(it)
	e.recorder.RecordPlacement(OutcomeRepaired, 0)

	return it.Top, true, nil
}

// exhaust records an item that found no room.
func (e *Engine[T]) exhaust(it *Item[T], probes int) (int, bool, error) {
	e.items[it.ID] = it

	if !e.limitReached {
		e.logger.Warn("hard lane limit reached", "item", it.ID, "limit", e.cfg.HardLaneLimit)
	}

	e.limitReached = true
	e.recorder.RecordPlacement(OutcomeUnplaced, probes)

	return Unassigned, false, nil
}

// search scans candidate tops from start upward and returns the first one
// whose whole lane span is clear over the item's footprint. When lane b
// blocks candidate c, every candidate in (c, b] spans b as well, so the
// scan resumes at b+1.
func (e *Engine[T]) search(it *Item[T], start int) (int, int, bool) {
	l, r := it.footprint()
	probes := 0

	for c := start; c < e.cfg.HardLaneLimit; {
		probes++

		blocked := -1

		// Scan the span top-down so the highest blocker sets the jump.
		// Lanes past the last materialized one are empty.
		for k := c + min(it.Height, len(e.lanes)-c) - 1; k >= c; k-- {
			if s := e.lane(k); s != nil && !s.IsClear(l, r) {
				blocked = k

				break
			}
		}

		if blocked < 0 {
			return c, probes, true
		}

		c = blocked + 1
	}

	return Unassigned, probes, false
}

// write stores the item's footprint in every lane it spans, degrading
// lanes to fully occupied for oversized items.
func (e *Engine[T]) write(it *Item[T]) {
	l, r := it.footprint()
	oversized := e.cfg.OversizeWidth > 0 && r-l > e.cfg.OversizeWidth

	e.writes++
	e.written[it.ID] = e.writes

	for k := it.Top; k < it.Top+it.Height; k++ {
		s := e.materialize(k)

		if !oversized {
			s.Insert(l, r, it.ID)

			continue
		}

		if !s.Full() {
			e.logger.Warn("lane degraded to fully occupied",
				"lane", k, "item", it.ID, "width", r-l, "ceiling", e.cfg.OversizeWidth)
			e.recorder.RecordDegradedLane()
		}

		s.MarkFull(it.ID, l, r)
	}
}

// lane returns lane k, or nil when it is not materialized.
func (e *Engine[T]) lane(k int) lane.Store {
	if k < len(e.lanes) {
		return e.lanes[k]
	}

	return nil
}

// materialize returns lane k, creating it on demand. Callers guarantee
// k < HardLaneLimit.
func (e *Engine[T]) materialize(k int) lane.Store {
	if k >= e.cfg.HardLaneLimit {
		panic(fmt.Sprintf("layout: lane %d materialized beyond limit %d", k, e.cfg.HardLaneLimit))
	}

	if k >= len(e.lanes) {
		e.lanes = append(e.lanes, make([]lane.Store, k+1-len(e.lanes))...)
	}

	if e.lanes[k] == nil {
		e.lanes[k] = e.newLane()
	}

	return e.lanes[k]
}

func (e *Engine[T]) indexRegion(it *Item[T]) {
	l, r := it.footprint()

	if _, err := e.region.Insert(l, r-1, it.ID); err != nil {
		panic("layout: region index rejected footprint: " + err.Error())
	}
}

// quantize floor-divides a coordinate by the pitch.
func (e *Engine[T]) quantize(x float64) (int64, error) {
	q, err := safeconv.FloorDiv(x, e.cfg.Pitch)
	if err != nil {
		return 0, fmt.Errorf("%w: %v: %w", ErrInvalidCoordinate, x, err)
	}

	return q, nil
}

// Discard frees the range [left, right) in every materialized lane. Items
// are kept; allocating a known id later restores its lanes.
func (e *Engine[T]) Discard(left, right float64) error {
	qLeft, err := e.quantize(left)
	if err != nil {
		return fmt.Errorf("discard left: %w", err)
	}

	qRight, err := e.quantize(right)
	if err != nil {
		return fmt.Errorf("discard right: %w", err)
	}

	if right < left {
		return fmt.Errorf("%w: discard [%v, %v)", ErrInvalidInterval, left, right)
	}

	for _, s := range e.lanes {
		if s != nil {
			s.Discard(qLeft, qRight)
		}
	}

	e.recorder.RecordDiscard()

	return nil
}

// PointQuery returns the id occupying x in lane y.
func (e *Engine[T]) PointQuery(x float64, y int) (string, bool) {
	if y < 0 {
		return "", false
	}

	s := e.lane(y)
	if s == nil {
		return "", false
	}

	q, err := e.quantize(x)
	if err != nil {
		return "", false
	}

	owner, ok := s.At(q)
	if !ok {
		return "", false
	}

	// Lane spans coalesce across owners, so the item index decides which
	// item covers (q, y). Discarded items keep their index entry; the
	// latest write over the point is the live one.
	var latest uint64

	for _, rec := range e.region.Search(q, q) {
		it := e.items[rec.Value]
		if y < it.Top || y >= it.Top+it.Height {
			continue
		}

		if w := e.written[it.ID]; w > latest {
			owner, latest = it.ID, w
		}
	}

	return owner, true
}

// HasItem reports whether id has been allocated, placed or not.
func (e *Engine[T]) HasItem(id string) bool {
	_, ok := e.items[id]

	return ok
}

// Item returns a copy of the recorded item.
func (e *Engine[T]) Item(id string) (Item[T], bool) {
	it, ok := e.items[id]
	if !ok {
		return Item[T]{}, false
	}

	return *it, true
}

// ItemBounds returns the rectangle of a placed item.
func (e *Engine[T]) ItemBounds(id string) (Rect, bool) {
	it, ok := e.items[id]
	if !ok || !it.Placed() {
		return Rect{}, false
	}

	return it.rect(e.cfg.Pitch), true
}

// ItemPayload returns the payload recorded for id.
func (e *Engine[T]) ItemPayload(id string) (T, bool) {
	it, ok := e.items[id]
	if !ok {
		var zero T

		return zero, false
	}

	return it.Payload, true
}

// TotalHeight returns the highest top assigned so far.
func (e *Engine[T]) TotalHeight() int {
	return e.totalHeight
}

// LimitReached reports whether any item has failed to find room.
func (e *Engine[T]) LimitReached() bool {
	return e.limitReached
}

// Reset forgets all items and lanes.
func (e *Engine[T]) Reset() {
	e.lanes = nil
	e.items = make(map[string]*Item[T])
	e.region.Clear()
	clear(e.written)
	e.totalHeight = 0
	e.limitReached = false
}
