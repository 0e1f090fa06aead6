package layout

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/Sumatoshi-tech/lanepack/pkg/safeconv"
)

// Unassigned is the Top of an item that found no room below the lane limit.
const Unassigned = -1

// rectFields is the length of a Rect's JSON array form.
const rectFields = 4

// Item is a recorded allocation. Left and Right are quantized coordinates of
// the half-open interval; Top is the first lane or Unassigned.
type Item[T any] struct {
	ID      string
	Left    int64
	Right   int64
	Height  int
	Top     int
	Payload T
}

// Placed reports whether the item holds lanes.
func (it Item[T]) Placed() bool {
	return it.Top != Unassigned
}

// footprint returns the occupied range, at least one unit wide.
func (it Item[T]) footprint() (int64, int64) {
	return it.Left, max(it.Right, it.Left+1)
}

// Rect is a placed item's rectangle: de-quantized horizontal bounds and the
// lane range [Top, Bottom). It encodes as a JSON array [left, top, right, bottom].
type Rect struct {
	Left   float64
	Top    int
	Right  float64
	Bottom int
}

func (it Item[T]) rect(pitch float64) Rect {
	return Rect{
		Left:   safeconv.Int64ToFloat(it.Left, pitch),
		Top:    it.Top,
		Right:  safeconv.Int64ToFloat(it.Right, pitch),
		Bottom: it.Top + it.Height,
	}
}

// MarshalJSON encodes the rectangle as [left, top, right, bottom].
func (r Rect) MarshalJSON() ([]byte, error) {
	return json.Marshal([rectFields]any{r.Left, r.Top, r.Right, r.Bottom})
}

// UnmarshalJSON decodes the [left, top, right, bottom] form.
func (r *Rect) UnmarshalJSON(data []byte) error {
	var raw []float64

	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode rect: %w", err)
	}

	if len(raw) != rectFields {
		return fmt.Errorf("%w: got %d fields", ErrMalformedRect, len(raw))
	}

	*r = Rect{Left: raw[0], Top: int(raw[1]), Right: raw[2], Bottom: int(raw[3])}

	return nil
}

// MarshalYAML encodes the rectangle as a flow sequence.
func (r Rect) MarshalYAML() (any, error) {
	seq := &yaml.Node{Kind: yaml.SequenceNode, Style: yaml.FlowStyle}

	for _, v := range [rectFields]any{r.Left, r.Top, r.Right, r.Bottom} {
		var n yaml.Node

		if err := n.Encode(v); err != nil {
			return nil, fmt.Errorf("encode rect: %w", err)
		}

		seq.Content = append(seq.Content, &n)
	}

	return seq, nil
}

// Request describes one placement.
type Request[T any] struct {
	ID      string
	Left    float64
	Right   float64
	Height  int
	Payload T
	// Hint is the first lane to try; negative values start at 0.
	Hint int
}
