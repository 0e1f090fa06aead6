package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/Sumatoshi-tech/lanepack/pkg/layout"
)

const (
	metricPlacementsTotal = "lanepack.placements.total"
	metricSearchProbes    = "lanepack.search.probes"
	metricDiscardsTotal   = "lanepack.discards.total"
	metricDegradedLanes   = "lanepack.lanes.degraded.total"
	metricFilesTotal      = "lanepack.files.total"
	metricFileDuration    = "lanepack.file.duration.seconds"
	metricErrorsTotal     = "lanepack.errors.total"

	attrOutcome = "outcome"
	attrFormat  = "format"
	attrStatus  = "status"

	// StatusOK marks a file laid out without error.
	StatusOK = "ok"
	// StatusError marks a file that failed.
	StatusError = "error"
)

// probeBucketBoundaries cover searches from a single probe up to a full
// scan of the default lane limit.
var probeBucketBoundaries = []float64{1, 2, 4, 8, 16, 32, 64, 128, 256, 512, 1000}

// durationBucketBoundaries cover 1ms to 60s per input file.
var durationBucketBoundaries = []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60}

// LayoutMetrics holds OTel instruments for engine events. It implements
// layout.Recorder and is safe for concurrent use by several engines.
type LayoutMetrics struct {
	placements metric.Int64Counter
	probes     metric.Int64Histogram
	discards   metric.Int64Counter
	degraded   metric.Int64Counter
}

var _ layout.Recorder = (*LayoutMetrics)(nil)

// NewLayoutMetrics creates layout instruments from the given meter.
func NewLayoutMetrics(mt metric.Meter) (*LayoutMetrics, error) {
	placements, err := mt.Int64Counter(metricPlacementsTotal,
		metric.WithDescription("Placement calls by outcome"),
		metric.WithUnit("{placement}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricPlacementsTotal, err)
	}

	probes, err := mt.Int64Histogram(metricSearchProbes,
		metric.WithDescription("Candidate lanes probed per placement search"),
		metric.WithUnit("{lane}"),
		metric.WithExplicitBucketBoundaries(probeBucketBoundaries...),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricSearchProbes, err)
	}

	discards, err := mt.Int64Counter(metricDiscardsTotal,
		metric.WithDescription("Discard calls"),
		metric.WithUnit("{discard}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricDiscardsTotal, err)
	}

	degraded, err := mt.Int64Counter(metricDegradedLanes,
		metric.WithDescription("Lanes degraded to fully occupied by oversized items"),
		metric.WithUnit("{lane}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricDegradedLanes, err)
	}

	return &LayoutMetrics{
		placements: placements,
		probes:     probes,
		discards:   discards,
		degraded:   degraded,
	}, nil
}

// RecordPlacement counts a placement and records its search depth.
func (lm *LayoutMetrics) RecordPlacement(outcome layout.Outcome, probes int) {
	ctx := context.Background()
	attrs := metric.WithAttributes(attribute.String(attrOutcome, string(outcome)))

	lm.placements.Add(ctx, 1, attrs)

	if probes > 0 {
		lm.probes.Record(ctx, int64(probes), attrs)
	}
}

// RecordDiscard counts a discard call.
func (lm *LayoutMetrics) RecordDiscard() {
	lm.discards.Add(context.Background(), 1)
}

// RecordDegradedLane counts a lane degraded to fully occupied.
func (lm *LayoutMetrics) RecordDegradedLane() {
	lm.degraded.Add(context.Background(), 1)
}

// FileMetrics holds rate, error and duration instruments for input files.
type FileMetrics struct {
	filesTotal   metric.Int64Counter
	fileDuration metric.Float64Histogram
	errorsTotal  metric.Int64Counter
}

// NewFileMetrics creates per-file instruments from the given meter.
func NewFileMetrics(mt metric.Meter) (*FileMetrics, error) {
	filesTotal, err := mt.Int64Counter(metricFilesTotal,
		metric.WithDescription("Input files laid out"),
		metric.WithUnit("{file}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricFilesTotal, err)
	}

	fileDuration, err := mt.Float64Histogram(metricFileDuration,
		metric.WithDescription("Time to read and lay out one input file"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(durationBucketBoundaries...),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricFileDuration, err)
	}

	errorsTotal, err := mt.Int64Counter(metricErrorsTotal,
		metric.WithDescription("Input files that failed"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricErrorsTotal, err)
	}

	return &FileMetrics{
		filesTotal:   filesTotal,
		fileDuration: fileDuration,
		errorsTotal:  errorsTotal,
	}, nil
}

// RecordFile records one processed file with its input format, status, and duration.
func (fm *FileMetrics) RecordFile(ctx context.Context, format, status string, duration time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String(attrFormat, format),
		attribute.String(attrStatus, status),
	)

	fm.filesTotal.Add(ctx, 1, attrs)
	fm.fileDuration.Record(ctx, duration.Seconds(), attrs)

	if status == StatusError {
		fm.errorsTotal.Add(ctx, 1, metric.WithAttributes(
			attribute.String(attrFormat, format),
		))
	}
}
