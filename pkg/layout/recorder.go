package layout

// Outcome classifies a placement call for metrics.
type Outcome string

// Placement outcomes.
const (
	// OutcomePlaced is a fresh item that received lanes.
	OutcomePlaced Outcome = "placed"
	// OutcomeUnplaced is an item that found no room below the lane limit,
	// including repeated calls for such an item.
	OutcomeUnplaced Outcome = "unplaced"
	// OutcomeRepaired is a known item re-written into its stored lanes.
	OutcomeRepaired Outcome = "repaired"
	// OutcomeRejected is a call that returned an error.
	OutcomeRejected Outcome = "rejected"
)

// Recorder receives engine events. Implementations must be cheap; they are
// called on every placement.
type Recorder interface {
	// RecordPlacement reports one placement and the number of candidate
	// lanes probed by the search (zero when no search ran).
	RecordPlacement(outcome Outcome, probes int)
	// RecordDiscard reports one discard call.
	RecordDiscard()
	// RecordDegradedLane reports a lane degraded to fully occupied.
	RecordDegradedLane()
}

type nopRecorder struct{}

func (nopRecorder) RecordPlacement(Outcome, int) {}
func (nopRecorder) RecordDiscard()               {}
func (nopRecorder) RecordDegradedLane()          {}
