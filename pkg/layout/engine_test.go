package layout

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"maps"
	"math"
	"math/rand/v2"
	"slices"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/Sumatoshi-tech/lanepack/pkg/lane"
)

// Test constants.
const (
	testLimit10     = 10
	testBigRight    = 1_000_000
	testCeiling     = 20000
	testPayload     = "payload"
	testRandomItems = 300
	testRandomAxis  = 200
	testRandomWidth = 30
	testRandomSeed  = 11
)

func newEngine(t *testing.T, mutate func(*Config), opts ...Option) *Engine[string] {
	t.Helper()

	cfg := DefaultConfig()
	if mutate != nil {
		mutate(&cfg)
	}

	e, err := New[string](cfg, opts...)
	require.NoError(t, err)

	return e
}

func allBackends(t *testing.T, fn func(t *testing.T, backend lane.Backend)) {
	t.Helper()

	for _, backend := range []lane.Backend{lane.BackendArray, lane.BackendTree} {
		t.Run(string(backend), func(t *testing.T) {
			t.Parallel()

			fn(t, backend)
		})
	}
}

func mustAllocate(t *testing.T, e *Engine[string], id string, left, right float64, height int) int {
	t.Helper()

	top, placed, err := e.Allocate(id, left, right, height, testPayload)
	require.NoError(t, err)
	require.True(t, placed, "item %q not placed", id)

	return top
}

func sortedKeys(m map[string]Rect) []string {
	return slices.Sorted(maps.Keys(m))
}

type countingRecorder struct {
	outcomes map[Outcome]int
	probes   int
	discards int
	degraded int
}

func newCountingRecorder() *countingRecorder {
	return &countingRecorder{outcomes: make(map[Outcome]int)}
}

func (r *countingRecorder) RecordPlacement(outcome Outcome, probes int) {
	r.outcomes[outcome]++
	r.probes += probes
}

func (r *countingRecorder) RecordDiscard()      { r.discards++ }
func (r *countingRecorder) RecordDegradedLane() { r.degraded++ }

func TestNew_InvalidConfig(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*Config)
		want   error
	}{
		{name: "zero_pitch", mutate: func(c *Config) { c.Pitch = 0 }, want: ErrInvalidPitch},
		{name: "fractional_pitch", mutate: func(c *Config) { c.Pitch = 0.5 }, want: ErrInvalidPitch},
		{name: "nan_pitch", mutate: func(c *Config) { c.Pitch = math.NaN() }, want: ErrInvalidPitch},
		{name: "zero_limit", mutate: func(c *Config) { c.HardLaneLimit = 0 }, want: ErrInvalidLaneLimit},
		{name: "unknown_mode", mutate: func(c *Config) { c.Mode = "stacked" }, want: ErrInvalidMode},
		{name: "unknown_backend", mutate: func(c *Config) { c.Backend = "bitmap" }, want: lane.ErrUnknownBackend},
		{name: "negative_oversize", mutate: func(c *Config) { c.OversizeWidth = -1 }, want: ErrInvalidOversize},
		{name: "negative_epsilon", mutate: func(c *Config) { c.MergeEpsilon = -1 }, want: lane.ErrNegativeEpsilon},
		{name: "unknown_policy", mutate: func(c *Config) { c.MergePolicy = "never" }, want: lane.ErrUnknownMergePolicy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := DefaultConfig()
			tt.mutate(&cfg)

			_, err := New[string](cfg)
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestParseMode(t *testing.T) {
	t.Parallel()

	m, err := ParseMode("collapse")
	require.NoError(t, err)
	assert.Equal(t, ModeCollapse, m)

	_, err = ParseMode("")
	require.ErrorIs(t, err, ErrInvalidMode)
}

func TestScenarioA_StackedCollision(t *testing.T) {
	t.Parallel()

	allBackends(t, func(t *testing.T, backend lane.Backend) {
		e := newEngine(t, func(c *Config) {
			c.HardLaneLimit = testLimit10
			c.Backend = backend
		})

		assert.Equal(t, 0, mustAllocate(t, e, "a", 0, 10, 5))
		assert.Equal(t, 5, mustAllocate(t, e, "b", 5, 15, 5))

		snap := e.Snapshot()
		assert.Equal(t, map[string]Rect{
			"a": {Left: 0, Top: 0, Right: 10, Bottom: 5},
			"b": {Left: 5, Top: 5, Right: 15, Bottom: 10},
		}, snap.Rectangles)
		assert.Equal(t, 5, snap.TotalHeight)
		assert.False(t, snap.LimitReached)
		assert.True(t, snap.ContainsNoSharedBuffers)
	})
}

func TestScenarioB_DisjointItemsShareLane(t *testing.T) {
	t.Parallel()

	allBackends(t, func(t *testing.T, backend lane.Backend) {
		e := newEngine(t, func(c *Config) { c.Backend = backend })

		for i := range 1000 {
			top := mustAllocate(t, e, fmt.Sprintf("x%d", i), float64(i), float64(i+1), 1)
			require.Equal(t, 0, top)
		}

		assert.Equal(t, 0, e.TotalHeight())
		assert.Equal(t, 1000, e.Stats().Placed)
	})
}

func TestScenarioC_OversizedItemDegradesLane(t *testing.T) {
	t.Parallel()

	allBackends(t, func(t *testing.T, backend lane.Backend) {
		var logs bytes.Buffer

		rec := newCountingRecorder()
		e := newEngine(t, func(c *Config) {
			c.Backend = backend
			c.OversizeWidth = testCeiling
		}, WithLogger(slog.New(slog.NewTextHandler(&logs, nil))), WithRecorder(rec))

		assert.Equal(t, 0, mustAllocate(t, e, "big", 0, testBigRight, 1))
		assert.Equal(t, 1, mustAllocate(t, e, "c", 500000, 500010, 1))

		// The whole lane counts as occupied, even past the big item.
		assert.Equal(t, 1, mustAllocate(t, e, "d", 2_000_000, 2_000_010, 1))

		owner, found := e.PointQuery(10, 0)
		require.True(t, found)
		assert.Equal(t, "big", owner)

		assert.Equal(t, 1, e.Stats().DegradedLanes)
		assert.Equal(t, 1, rec.degraded)
		assert.Contains(t, logs.String(), "lane degraded to fully occupied")
	})
}

func TestScenarioD_DiscardPreservesIdentity(t *testing.T) {
	t.Parallel()

	allBackends(t, func(t *testing.T, backend lane.Backend) {
		e := newEngine(t, func(c *Config) {
			c.HardLaneLimit = testLimit10
			c.Backend = backend
		})

		mustAllocate(t, e, "a", 0, 10, 5)
		mustAllocate(t, e, "b", 5, 15, 5)

		owner, found := e.PointQuery(3, 0)
		require.True(t, found)
		assert.Equal(t, "a", owner)

		require.NoError(t, e.Discard(0, 50))

		_, found = e.PointQuery(3, 0)
		assert.False(t, found)

		bounds, ok := e.ItemBounds("a")
		require.True(t, ok)
		assert.Equal(t, Rect{Left: 0, Top: 0, Right: 10, Bottom: 5}, bounds)
		assert.True(t, e.HasItem("a"))

		payload, ok := e.ItemPayload("a")
		require.True(t, ok)
		assert.Equal(t, testPayload, payload)

		assert.Equal(t, 0, mustAllocate(t, e, "a", 0, 10, 5))

		owner, found = e.PointQuery(3, 4)
		require.True(t, found)
		assert.Equal(t, "a", owner)

		// b's lanes stay free until b itself is re-allocated.
		_, found = e.PointQuery(7, 5)
		assert.False(t, found)
	})
}

func TestAllocate_Idempotent(t *testing.T) {
	t.Parallel()

	rec := newCountingRecorder()
	e := newEngine(t, nil, WithRecorder(rec))

	mustAllocate(t, e, "a", 0, 10, 2)
	first := mustAllocate(t, e, "b", 0, 10, 3)
	height := e.TotalHeight()

	second := mustAllocate(t, e, "b", 0, 10, 3)

	assert.Equal(t, first, second)
	assert.Equal(t, height, e.TotalHeight())
	assert.Equal(t, 2, rec.outcomes[OutcomePlaced])
	assert.Equal(t, 1, rec.outcomes[OutcomeRepaired])
	assert.Equal(t, 5, e.Stats().Spans)
}

func TestAllocate_KnownIDIgnoresNewArguments(t *testing.T) {
	t.Parallel()

	e := newEngine(t, nil)

	mustAllocate(t, e, "a", 0, 10, 1)

	top, placed, err := e.Allocate("a", 100, 200, 4, "other")
	require.NoError(t, err)
	assert.True(t, placed)
	assert.Equal(t, 0, top)

	it, ok := e.Item("a")
	require.True(t, ok)
	assert.Equal(t, Item[string]{ID: "a", Left: 0, Right: 10, Height: 1, Top: 0, Payload: testPayload}, it)
}

func TestAllocate_CollapseMode(t *testing.T) {
	t.Parallel()

	e := newEngine(t, func(c *Config) { c.Mode = ModeCollapse })

	assert.Equal(t, 0, mustAllocate(t, e, "a", 0, 10, 3))
	assert.Equal(t, 0, mustAllocate(t, e, "b", 0, 10, 3))
	assert.Equal(t, 0, e.TotalHeight())

	snap := e.Snapshot()
	assert.Equal(t, 0, snap.Rectangles["b"].Top)
	assert.Equal(t, 3, snap.Rectangles["b"].Bottom)
}

func TestAllocate_Exhaustion(t *testing.T) {
	t.Parallel()

	var logs bytes.Buffer

	rec := newCountingRecorder()
	e := newEngine(t, func(c *Config) { c.HardLaneLimit = 2 },
		WithLogger(slog.New(slog.NewTextHandler(&logs, nil))), WithRecorder(rec))

	mustAllocate(t, e, "a", 0, 10, 1)
	mustAllocate(t, e, "b", 0, 10, 1)

	top, placed, err := e.Allocate("c", 0, 10, 1, testPayload)
	require.NoError(t, err)
	assert.False(t, placed)
	assert.Equal(t, Unassigned, top)
	assert.True(t, e.LimitReached())
	assert.True(t, e.HasItem("c"))

	_, ok := e.ItemBounds("c")
	assert.False(t, ok)

	// The failure is sticky for the id, even once room exists.
	require.NoError(t, e.Discard(0, 10))

	top, placed, err = e.Allocate("c", 0, 10, 1, testPayload)
	require.NoError(t, err)
	assert.False(t, placed)
	assert.Equal(t, Unassigned, top)

	assert.NotContains(t, e.Snapshot().Rectangles, "c")
	assert.True(t, e.Snapshot().LimitReached)
	assert.Equal(t, 1, e.Stats().Unplaced)
	assert.Equal(t, 2, rec.outcomes[OutcomeUnplaced])
	assert.Contains(t, logs.String(), "hard lane limit reached")
}

func TestAllocate_LaneLimitViolation(t *testing.T) {
	t.Parallel()

	allBackends(t, func(t *testing.T, backend lane.Backend) {
		var logs bytes.Buffer

		e := newEngine(t, func(c *Config) {
			c.HardLaneLimit = testLimit10
			c.Backend = backend
		}, WithLogger(slog.New(slog.NewTextHandler(&logs, nil))))

		for i := range 6 {
			assert.Equal(t, i, mustAllocate(t, e, string(rune('a'+i)), 0, 10, 1))
		}

		before := e.Stats()

		top, placed, err := e.Allocate("tall", 0, 10, 5, testPayload)
		require.ErrorIs(t, err, ErrLaneLimitViolation)
		assert.False(t, placed)
		assert.Equal(t, Unassigned, top)
		assert.False(t, e.HasItem("tall"))
		assert.Equal(t, before, e.Stats())
		assert.Contains(t, logs.String(), "item span exceeds hard lane limit")
	})
}

func TestAllocate_CollapseLaneLimitViolation(t *testing.T) {
	t.Parallel()

	e := newEngine(t, func(c *Config) {
		c.Mode = ModeCollapse
		c.HardLaneLimit = testLimit10
	})

	_, _, err := e.Allocate("a", 0, 10, testLimit10+1, testPayload)
	require.ErrorIs(t, err, ErrLaneLimitViolation)
	assert.False(t, e.HasItem("a"))
}

func TestAllocate_HugeHeightRejectedBeforeSearch(t *testing.T) {
	t.Parallel()

	allBackends(t, func(t *testing.T, backend lane.Backend) {
		rec := newCountingRecorder()
		e := newEngine(t, func(c *Config) { c.Backend = backend }, WithRecorder(rec))

		mustAllocate(t, e, "a", 0, 10, 1)

		before := e.Stats()

		top, placed, err := e.Allocate("huge", 0, 10, math.MaxInt/2, testPayload)
		require.ErrorIs(t, err, ErrLaneLimitViolation)
		assert.False(t, placed)
		assert.Equal(t, Unassigned, top)
		assert.False(t, e.HasItem("huge"))

		top, placed, err = e.Place(Request[string]{ID: "max", Left: 0, Right: 10, Height: math.MaxInt, Hint: 2})
		require.ErrorIs(t, err, ErrLaneLimitViolation)
		assert.False(t, placed)
		assert.Equal(t, Unassigned, top)
		assert.False(t, e.HasItem("max"))

		assert.Equal(t, before, e.Stats())
		assert.Equal(t, 2, rec.outcomes[OutcomeRejected])
		assert.False(t, e.LimitReached())
	})
}

func TestAllocate_TallItemAboveFewLanes(t *testing.T) {
	t.Parallel()

	allBackends(t, func(t *testing.T, backend lane.Backend) {
		e := newEngine(t, func(c *Config) {
			c.HardLaneLimit = testLimit10
			c.Backend = backend
		})

		mustAllocate(t, e, "a", 0, 10, 1)
		assert.Equal(t, 1, mustAllocate(t, e, "tall", 5, 15, testLimit10-1))

		bounds, ok := e.ItemBounds("tall")
		require.True(t, ok)
		assert.Equal(t, Rect{Left: 5, Top: 1, Right: 15, Bottom: testLimit10}, bounds)

		_, _, err := e.Allocate("over", 20, 30, testLimit10+1, testPayload)
		require.ErrorIs(t, err, ErrLaneLimitViolation)
	})
}

func TestAllocate_InvalidInput(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		left, right float64
		height      int
		want        error
	}{
		{name: "zero_height", left: 0, right: 10, height: 0, want: ErrInvalidHeight},
		{name: "inverted", left: 10, right: 5, height: 1, want: ErrInvalidInterval},
		{name: "nan_left", left: math.NaN(), right: 5, height: 1, want: ErrInvalidCoordinate},
		{name: "inf_right", left: 0, right: math.Inf(1), height: 1, want: ErrInvalidCoordinate},
		{name: "huge", left: 0, right: 1e300, height: 1, want: ErrInvalidCoordinate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			e := newEngine(t, nil)

			top, placed, err := e.Allocate("a", tt.left, tt.right, tt.height, testPayload)
			require.ErrorIs(t, err, tt.want)
			assert.False(t, placed)
			assert.Equal(t, Unassigned, top)
			assert.False(t, e.HasItem("a"))
		})
	}
}

func TestPlace_Hint(t *testing.T) {
	t.Parallel()

	e := newEngine(t, nil)

	top, placed, err := e.Place(Request[string]{ID: "a", Left: 0, Right: 10, Height: 1, Hint: 3})
	require.NoError(t, err)
	require.True(t, placed)
	assert.Equal(t, 3, top)

	top, placed, err = e.Place(Request[string]{ID: "b", Left: 0, Right: 10, Height: 1, Hint: -5})
	require.NoError(t, err)
	require.True(t, placed)
	assert.Equal(t, 0, top)

	// A hint at the limit leaves no candidates.
	_, placed, err = e.Place(Request[string]{ID: "c", Left: 0, Right: 10, Height: 1, Hint: DefaultHardLaneLimit})
	require.NoError(t, err)
	assert.False(t, placed)
}

func TestAllocate_Quantization(t *testing.T) {
	t.Parallel()

	e := newEngine(t, func(c *Config) { c.Pitch = 10 })

	assert.Equal(t, 0, mustAllocate(t, e, "a", 5, 25, 1))
	assert.Equal(t, 0, mustAllocate(t, e, "b", 25, 40, 1))
	assert.Equal(t, 1, mustAllocate(t, e, "c", 19, 21, 1))

	bounds, ok := e.ItemBounds("a")
	require.True(t, ok)
	assert.Equal(t, Rect{Left: 0, Top: 0, Right: 20, Bottom: 1}, bounds)

	owner, found := e.PointQuery(15, 0)
	require.True(t, found)
	assert.Equal(t, "a", owner)
}

func TestAllocate_ZeroWidthOccupiesOneUnit(t *testing.T) {
	t.Parallel()

	e := newEngine(t, nil)

	assert.Equal(t, 0, mustAllocate(t, e, "a", 3, 3, 1))
	assert.Equal(t, 1, mustAllocate(t, e, "b", 3, 4, 1))
	assert.Equal(t, 0, mustAllocate(t, e, "c", 4, 5, 1))

	bounds, ok := e.ItemBounds("a")
	require.True(t, ok)
	assert.Equal(t, Rect{Left: 3, Top: 0, Right: 3, Bottom: 1}, bounds)
}

func TestPointQuery_OutOfRange(t *testing.T) {
	t.Parallel()

	e := newEngine(t, nil)
	mustAllocate(t, e, "a", 0, 10, 1)

	_, found := e.PointQuery(5, -1)
	assert.False(t, found)

	_, found = e.PointQuery(5, 3)
	assert.False(t, found)

	_, found = e.PointQuery(math.NaN(), 0)
	assert.False(t, found)
}

func TestPointQuery_AdjacentOwners(t *testing.T) {
	t.Parallel()

	allBackends(t, func(t *testing.T, backend lane.Backend) {
		e := newEngine(t, func(c *Config) { c.Backend = backend })

		for i := range 50 {
			mustAllocate(t, e, fmt.Sprintf("x%d", i), float64(i), float64(i+1), 1)
		}

		for i := range 50 {
			owner, found := e.PointQuery(float64(i)+0.5, 0)
			require.True(t, found)
			assert.Equal(t, fmt.Sprintf("x%d", i), owner)
		}

		_, found := e.PointQuery(50.5, 0)
		assert.False(t, found)
	})
}

func TestPointQuery_ReusedSpaceReportsNewOwner(t *testing.T) {
	t.Parallel()

	allBackends(t, func(t *testing.T, backend lane.Backend) {
		e := newEngine(t, func(c *Config) { c.Backend = backend })

		mustAllocate(t, e, "a", 0, 10, 1)
		require.NoError(t, e.Discard(0, 10))
		assert.Equal(t, 0, mustAllocate(t, e, "b", 5, 15, 1))

		owner, found := e.PointQuery(7, 0)
		require.True(t, found)
		assert.Equal(t, "b", owner)

		_, found = e.PointQuery(3, 0)
		assert.False(t, found)
	})
}

func TestDiscard_InvalidRange(t *testing.T) {
	t.Parallel()

	e := newEngine(t, nil)

	require.ErrorIs(t, e.Discard(10, 0), ErrInvalidInterval)
	require.ErrorIs(t, e.Discard(math.Inf(-1), 0), ErrInvalidCoordinate)
	require.NoError(t, e.Discard(0, 10))
}

func TestDiscard_ReusesSpace(t *testing.T) {
	t.Parallel()

	rec := newCountingRecorder()
	e := newEngine(t, nil, WithRecorder(rec))

	mustAllocate(t, e, "a", 0, 10, 1)
	require.NoError(t, e.Discard(0, 10))

	assert.Equal(t, 0, mustAllocate(t, e, "b", 0, 10, 1))
	assert.Equal(t, 1, rec.discards)
}

func TestSnapshotRegion(t *testing.T) {
	t.Parallel()

	allBackends(t, func(t *testing.T, backend lane.Backend) {
		e := newEngine(t, func(c *Config) { c.Backend = backend })

		mustAllocate(t, e, "a", 0, 10, 1)
		mustAllocate(t, e, "b", 20, 30, 2)
		mustAllocate(t, e, "c", 40, 50, 1)
		mustAllocate(t, e, "d", 5, 45, 1)

		snap, err := e.SnapshotRegion(9, 21)
		require.NoError(t, err)

		want := Snapshot{
			Rectangles: map[string]Rect{
				"a": {Left: 0, Top: 0, Right: 10, Bottom: 1},
				"b": {Left: 20, Top: 0, Right: 30, Bottom: 2},
				"d": {Left: 5, Top: 2, Right: 45, Bottom: 3},
			},
			TotalHeight:             2,
			ContainsNoSharedBuffers: true,
		}

		if diff := cmp.Diff(want, snap); diff != "" {
			t.Errorf("SnapshotRegion mismatch (-want +got):\n%s", diff)
		}

		// Half-open: a region starting at an item's right edge misses it.
		snap, err = e.SnapshotRegion(10, 20)
		require.NoError(t, err)
		assert.Equal(t, []string{"d"}, sortedKeys(snap.Rectangles))

		snap, err = e.SnapshotRegion(15, 15)
		require.NoError(t, err)
		assert.Empty(t, snap.Rectangles)

		_, err = e.SnapshotRegion(20, 10)
		require.ErrorIs(t, err, ErrInvalidInterval)
	})
}

func TestSnapshot_IndependentOfEngine(t *testing.T) {
	t.Parallel()

	e := newEngine(t, nil)
	mustAllocate(t, e, "a", 0, 10, 1)

	snap := e.Snapshot()
	mustAllocate(t, e, "b", 0, 10, 1)

	assert.Len(t, snap.Rectangles, 1)
	assert.Len(t, e.Snapshot().Rectangles, 2)
}

func TestSnapshot_JSONShape(t *testing.T) {
	t.Parallel()

	e := newEngine(t, func(c *Config) { c.HardLaneLimit = testLimit10 })
	mustAllocate(t, e, "a", 0, 10, 5)
	mustAllocate(t, e, "b", 5, 15, 5)

	data, err := json.Marshal(e.Snapshot())
	require.NoError(t, err)

	assert.JSONEq(t, `{
		"rectangles": {"a": [0, 0, 10, 5], "b": [5, 5, 15, 10]},
		"totalHeight": 5,
		"limitReached": false,
		"containsNoSharedBuffers": true
	}`, string(data))

	var back Snapshot

	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, e.Snapshot(), back)
}

func TestRect_UnmarshalMalformed(t *testing.T) {
	t.Parallel()

	var r Rect

	require.ErrorIs(t, json.Unmarshal([]byte(`[1, 2, 3]`), &r), ErrMalformedRect)
	require.Error(t, json.Unmarshal([]byte(`{"left": 1}`), &r))
}

func TestRect_YAMLFlowSequence(t *testing.T) {
	t.Parallel()

	data, err := yaml.Marshal(map[string]Rect{"a": {Left: 0, Top: 1, Right: 10, Bottom: 2}})
	require.NoError(t, err)
	assert.Contains(t, string(data), "a: [")

	var back map[string][]float64

	require.NoError(t, yaml.Unmarshal(data, &back))
	assert.Equal(t, []float64{0, 1, 10, 2}, back["a"])
}

func TestSnapshot_CompressedRoundTrip(t *testing.T) {
	t.Parallel()

	e := newEngine(t, func(c *Config) { c.Pitch = 2.5 })
	mustAllocate(t, e, "a", 0, 10, 1)
	mustAllocate(t, e, "b", 5, 15, 2)

	var buf bytes.Buffer

	require.NoError(t, e.Snapshot().WriteCompressed(&buf))

	back, err := ReadSnapshot(&buf)
	require.NoError(t, err)
	assert.Equal(t, e.Snapshot(), back)

	_, err = ReadSnapshot(bytes.NewReader([]byte("not lz4")))
	require.Error(t, err)
}

func TestReset(t *testing.T) {
	t.Parallel()

	e := newEngine(t, func(c *Config) { c.HardLaneLimit = 1 })
	mustAllocate(t, e, "a", 0, 10, 1)

	_, placed, err := e.Allocate("b", 0, 10, 1, testPayload)
	require.NoError(t, err)
	require.False(t, placed)

	e.Reset()

	assert.False(t, e.HasItem("a"))
	assert.False(t, e.LimitReached())
	assert.Equal(t, 0, e.TotalHeight())
	assert.Equal(t, Stats{}, e.Stats())

	snap, err := e.SnapshotRegion(0, 100)
	require.NoError(t, err)
	assert.Empty(t, snap.Rectangles)

	assert.Equal(t, 0, mustAllocate(t, e, "b", 0, 10, 1))
}

func TestStats(t *testing.T) {
	t.Parallel()

	e := newEngine(t, func(c *Config) { c.Backend = lane.BackendTree })

	mustAllocate(t, e, "a", 0, 10, 2)
	mustAllocate(t, e, "b", 20, 30, 1)
	mustAllocate(t, e, "c", 0, 10, 1)

	assert.Equal(t, Stats{
		Items:       3,
		Placed:      3,
		Lanes:       3,
		Spans:       4,
		TotalHeight: 2,
	}, e.Stats())
}

type placedItem struct {
	l, r      int64
	top, high int
}

func overlaps(a placedItem, l, r int64, lo, hi int) bool {
	return a.l < r && l < a.r && a.top < hi && lo < a.top+a.high
}

// TestAllocate_FirstFitProperties checks on random input that placed items
// never overlap and that no lower top would have fit.
func TestAllocate_FirstFitProperties(t *testing.T) {
	t.Parallel()

	allBackends(t, func(t *testing.T, backend lane.Backend) {
		rng := rand.New(rand.NewPCG(testRandomSeed, uint64(len(backend))))
		e := newEngine(t, func(c *Config) { c.Backend = backend })

		var placed []placedItem

		for i := range testRandomItems {
			left := rng.IntN(testRandomAxis)
			right := left + 1 + rng.IntN(testRandomWidth)
			height := 1 + rng.IntN(3)

			top := mustAllocate(t, e, fmt.Sprintf("item-%d", i), float64(left), float64(right), height)

			l, r := int64(left), int64(right)

			for _, p := range placed {
				require.False(t, overlaps(p, l, r, top, top+height), "item %d overlaps at top %d", i, top)
			}

			for c := range top {
				fits := true

				for _, p := range placed {
					if overlaps(p, l, r, c, c+height) {
						fits = false

						break
					}
				}

				require.False(t, fits, "item %d placed at %d but %d fits", i, top, c)
			}

			placed = append(placed, placedItem{l: l, r: r, top: top, high: height})
		}
	})
}
