package layout

// Stats summarizes engine state.
type Stats struct {
	Items         int  `json:"items" yaml:"items"`
	Placed        int  `json:"placed" yaml:"placed"`
	Unplaced      int  `json:"unplaced" yaml:"unplaced"`
	Lanes         int  `json:"lanes" yaml:"lanes"`                 // Materialized lanes.
	DegradedLanes int  `json:"degradedLanes" yaml:"degradedLanes"` // Lanes marked fully occupied.
	Spans         int  `json:"spans" yaml:"spans"`                 // Occupied spans stored across all lanes.
	TotalHeight   int  `json:"totalHeight" yaml:"totalHeight"`
	LimitReached  bool `json:"limitReached" yaml:"limitReached"`
}

// Stats returns current engine statistics. It walks every item and lane.
func (e *Engine[T]) Stats() Stats {
	st := Stats{
		Items:        len(e.items),
		TotalHeight:  e.totalHeight,
		LimitReached: e.limitReached,
	}

	for _, it := range e.items {
		if it.Placed() {
			st.Placed++
		} else {
			st.Unplaced++
		}
	}

	for _, s := range e.lanes {
		if s == nil {
			continue
		}

		st.Lanes++
		st.Spans += s.Len()

		if s.Full() {
			st.DegradedLanes++
		}
	}

	return st
}
