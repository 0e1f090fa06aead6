package layout

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/pierrec/lz4/v4"
)

// Snapshot is a value-only view of an engine. It shares no buffers with the
// engine and may be handed to another goroutine or process as is.
type Snapshot struct {
	Rectangles              map[string]Rect `json:"rectangles" yaml:"rectangles"`
	TotalHeight             int             `json:"totalHeight" yaml:"totalHeight"`
	LimitReached            bool            `json:"limitReached" yaml:"limitReached"`
	ContainsNoSharedBuffers bool            `json:"containsNoSharedBuffers" yaml:"containsNoSharedBuffers"`
}

// Snapshot returns the rectangles of all placed items.
func (e *Engine[T]) Snapshot() Snapshot {
	rects := make(map[string]Rect, len(e.items))

	for id, it := range e.items {
		if it.Placed() {
			rects[id] = it.rect(e.cfg.Pitch)
		}
	}

	return e.snapshot(rects)
}

// SnapshotRegion returns the rectangles of placed items whose footprint
// intersects the quantized range [start, end).
func (e *Engine[T]) SnapshotRegion(start, end float64) (Snapshot, error) {
	qStart, err := e.quantize(start)
	if err != nil {
		return Snapshot{}, fmt.Errorf("region start: %w", err)
	}

	qEnd, err := e.quantize(end)
	if err != nil {
		return Snapshot{}, fmt.Errorf("region end: %w", err)
	}

	if end < start {
		return Snapshot{}, fmt.Errorf("%w: region [%v, %v)", ErrInvalidInterval, start, end)
	}

	rects := make(map[string]Rect)

	if qEnd > qStart {
		for _, rec := range e.region.Search(qStart, qEnd-1) {
			rects[rec.Value] = e.items[rec.Value].rect(e.cfg.Pitch)
		}
	}

	return e.snapshot(rects), nil
}

func (e *Engine[T]) snapshot(rects map[string]Rect) Snapshot {
	return Snapshot{
		Rectangles:              rects,
		TotalHeight:             e.totalHeight,
		LimitReached:            e.limitReached,
		ContainsNoSharedBuffers: true,
	}
}

// WriteCompressed writes the snapshot as LZ4-framed JSON.
func (s Snapshot) WriteCompressed(w io.Writer) error {
	zw := lz4.NewWriter(w)

	if err := json.NewEncoder(zw).Encode(s); err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("flush snapshot: %w", err)
	}

	return nil
}

// ReadSnapshot decodes a snapshot written by WriteCompressed.
func ReadSnapshot(r io.Reader) (Snapshot, error) {
	var s Snapshot

	if err := json.NewDecoder(lz4.NewReader(r)).Decode(&s); err != nil {
		return Snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}

	return s, nil
}
