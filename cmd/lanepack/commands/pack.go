package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/Sumatoshi-tech/lanepack/pkg/config"
	"github.com/Sumatoshi-tech/lanepack/pkg/featureio"
	"github.com/Sumatoshi-tech/lanepack/pkg/lane"
	"github.com/Sumatoshi-tech/lanepack/pkg/layout"
	"github.com/Sumatoshi-tech/lanepack/pkg/observability"
	"github.com/Sumatoshi-tech/lanepack/pkg/report"
	"github.com/Sumatoshi-tech/lanepack/pkg/version"
)

var (
	// ErrInvalidRange is returned when a --region or --discard value is not "start:end".
	ErrInvalidRange = errors.New("invalid range, want start:end")
	// ErrCompressNeedsOutput is returned when --compress is set without --output.
	ErrCompressNeedsOutput = errors.New("compressed snapshots need an --output directory")
	// ErrInvalidWorkers is returned for a non-positive --workers value.
	ErrInvalidWorkers = errors.New("workers must be positive")
)

const (
	snapshotExt = ".snapshot.lz4"
	outputPerm  = 0o600
	dirPerm     = 0o750
	indentWidth = 2
)

const (
	attrFilePath     = "file.path"
	attrFileFormat   = "file.format"
	attrGroup        = "layout.group"
	attrItems        = "layout.items"
	attrTotalHeight  = "layout.total_height"
	attrLimitReached = "layout.limit_reached"
	attrRejected     = "layout.rejected"
)

// PackCommand holds flags for the pack command.
type PackCommand struct {
	configPath string
	pitch      float64
	limit      int
	mode       string
	backend    string
	format     string
	output     string
	region     string
	discards   []string
	maxRows    int
	workers    int
	compress   bool
	metrics    bool
	noColor    bool
}

// NewPackCommand creates the pack command.
func NewPackCommand() *cobra.Command {
	pc := &PackCommand{}

	cmd := &cobra.Command{
		Use:   "pack <file>...",
		Short: "Lay out feature files into lanes",
		Long: `Lay out interval features from JSON, YAML or BED files.

Features sharing a chrom are laid out together by one engine; files are
processed concurrently. Discard ranges are applied after the first pass and
every feature is then allocated again, restoring the lanes of placed items.`,
		Args: cobra.MinimumNArgs(1),
		RunE: pc.run,
	}

	cmd.Flags().StringVarP(&pc.configPath, "config", "c", "", "Config file (default: lanepack.yaml in ., ./config, /etc/lanepack)")
	cmd.Flags().Float64Var(&pc.pitch, "pitch", layout.DefaultPitch, "Quantization step for coordinates")
	cmd.Flags().IntVar(&pc.limit, "limit", layout.DefaultHardLaneLimit, "Hard lane limit")
	cmd.Flags().StringVar(&pc.mode, "mode", string(layout.ModeNormal), "Display mode: normal, collapse")
	cmd.Flags().StringVar(&pc.backend, "backend", string(lane.BackendArray), "Lane backend: array, tree")
	cmd.Flags().StringVarP(&pc.format, "format", "f", string(config.OutputTable), "Output format: table, json, yaml")
	cmd.Flags().StringVarP(&pc.output, "output", "o", "", "Output file, or directory with --compress")
	cmd.Flags().StringVar(&pc.region, "region", "", "Only report items intersecting start:end")
	cmd.Flags().StringArrayVar(&pc.discards, "discard", nil, "Free start:end in every lane, then allocate again (repeatable)")
	cmd.Flags().IntVar(&pc.maxRows, "max-rows", 0, "Rows per table (0 = all)")
	cmd.Flags().IntVar(&pc.workers, "workers", runtime.GOMAXPROCS(0), "Files laid out concurrently")
	cmd.Flags().BoolVar(&pc.compress, "compress", false, "Write one LZ4-compressed snapshot per layout")
	cmd.Flags().BoolVar(&pc.metrics, "metrics", false, "Dump Prometheus metrics to stderr when done")
	cmd.Flags().BoolVar(&pc.noColor, "no-color", false, "Disable colored output")

	return cmd
}

type rangeArg struct {
	start float64
	end   float64
}

// packResult is one laid-out group of features.
type packResult struct {
	Name     string          `json:"name" yaml:"name"`
	Snapshot layout.Snapshot `json:"snapshot" yaml:"snapshot"`
	Stats    layout.Stats    `json:"stats" yaml:"stats"`
	Rejected int             `json:"rejected" yaml:"rejected"`
}

type packDocument struct {
	Layouts []packResult `json:"layouts" yaml:"layouts"`
}

func (pc *PackCommand) run(cmd *cobra.Command, args []string) error {
	if pc.workers <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidWorkers, pc.workers)
	}

	cfg, err := config.LoadConfig(pc.configPath)
	if err != nil {
		return err
	}

	pc.applyFlags(cmd, cfg)

	engineCfg, err := cfg.Layout.EngineConfig()
	if err != nil {
		return err
	}

	format, err := config.ParseOutputFormat(cfg.Output.Format)
	if err != nil {
		return err
	}

	if cfg.Output.Compress && pc.output == "" {
		return ErrCompressNeedsOutput
	}

	discards, err := parseRanges(pc.discards)
	if err != nil {
		return err
	}

	var region *rangeArg

	if pc.region != "" {
		r, parseErr := parseRange(pc.region)
		if parseErr != nil {
			return parseErr
		}

		region = &r
	}

	obsCfg, err := cfg.Observability(version.Version)
	if err != nil {
		return err
	}

	obsCfg.LogOutput = cmd.ErrOrStderr()
	obsCfg.Prometheus = obsCfg.Prometheus || pc.metrics

	providers, err := observability.Init(obsCfg)
	if err != nil {
		return err
	}

	defer func() {
		shutdownErr := providers.Shutdown(context.Background())
		if shutdownErr != nil {
			providers.Logger.Warn("observability shutdown failed", "error", shutdownErr)
		}
	}()

	layoutMetrics, err := observability.NewLayoutMetrics(providers.Meter)
	if err != nil {
		return err
	}

	fileMetrics, err := observability.NewFileMetrics(providers.Meter)
	if err != nil {
		return err
	}

	p := &packer{
		engineCfg: engineCfg,
		logger:    providers.Logger,
		tracer:    providers.Tracer,
		recorder:  layoutMetrics,
		files:     fileMetrics,
		discards:  discards,
		region:    region,
	}

	results, err := p.packAll(cmd.Context(), args, pc.workers)
	if err != nil {
		return err
	}

	err = pc.write(cmd.OutOrStdout(), cfg.Output, format, results)
	if err != nil {
		return err
	}

	if pc.metrics && providers.Registry != nil {
		return observability.WritePrometheus(cmd.ErrOrStderr(), providers.Registry)
	}

	return nil
}

// applyFlags overrides configuration values with explicitly set flags.
func (pc *PackCommand) applyFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()

	if flags.Changed("pitch") {
		cfg.Layout.Pitch = pc.pitch
	}

	if flags.Changed("limit") {
		cfg.Layout.HardLaneLimit = pc.limit
	}

	if flags.Changed("mode") {
		cfg.Layout.Mode = pc.mode
	}

	if flags.Changed("backend") {
		cfg.Layout.Backend = pc.backend
	}

	if flags.Changed("format") {
		cfg.Output.Format = pc.format
	}

	if flags.Changed("max-rows") {
		cfg.Output.MaxRows = pc.maxRows
	}

	if flags.Changed("compress") {
		cfg.Output.Compress = pc.compress
	}

	if pc.noColor || color.NoColor {
		cfg.Output.Color = false
	}
}

func (pc *PackCommand) write(stdout io.Writer, out config.OutputConfig, format config.OutputFormat, results []packResult) error {
	if out.Compress {
		return writeCompressed(stdout, pc.output, results)
	}

	if pc.output == "" {
		return writeResults(stdout, out, format, results)
	}

	f, err := os.OpenFile(pc.output, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, outputPerm)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}

	writeErr := writeResults(f, out, format, results)
	closeErr := f.Close()

	return errors.Join(writeErr, closeErr)
}

func writeResults(w io.Writer, out config.OutputConfig, format config.OutputFormat, results []packResult) error {
	switch format {
	case config.OutputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")

		err := enc.Encode(packDocument{Layouts: results})
		if err != nil {
			return fmt.Errorf("encode json: %w", err)
		}

		return nil
	case config.OutputYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(indentWidth)

		err := enc.Encode(packDocument{Layouts: results})
		if err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}

		return enc.Close()
	default:
		layouts := make([]report.Layout, 0, len(results))
		for _, r := range results {
			layouts = append(layouts, report.Layout{Name: r.Name, Snapshot: r.Snapshot, Stats: r.Stats})
		}

		return report.Write(w, layouts, report.Options{MaxRows: out.MaxRows, Color: out.Color})
	}
}

// writeCompressed writes every snapshot into dir as LZ4-framed JSON.
func writeCompressed(stdout io.Writer, dir string, results []packResult) error {
	err := os.MkdirAll(dir, dirPerm)
	if err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	for _, r := range results {
		path := filepath.Join(dir, snapshotFileName(r.Name))

		f, createErr := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, outputPerm)
		if createErr != nil {
			return fmt.Errorf("create snapshot: %w", createErr)
		}

		writeErr := r.Snapshot.WriteCompressed(f)
		closeErr := f.Close()

		if joined := errors.Join(writeErr, closeErr); joined != nil {
			return fmt.Errorf("write %s: %w", path, joined)
		}

		_, err = fmt.Fprintf(stdout, "wrote %s (%d items)\n", path, len(r.Snapshot.Rectangles))
		if err != nil {
			return err
		}
	}

	return nil
}

func snapshotFileName(name string) string {
	return strings.NewReplacer("/", "_", "\\", "_", ":", "_").Replace(name) + snapshotExt
}

func parseRanges(values []string) ([]rangeArg, error) {
	ranges := make([]rangeArg, 0, len(values))

	for _, v := range values {
		r, err := parseRange(v)
		if err != nil {
			return nil, err
		}

		ranges = append(ranges, r)
	}

	return ranges, nil
}

func parseRange(s string) (rangeArg, error) {
	startStr, endStr, ok := strings.Cut(s, ":")
	if !ok {
		return rangeArg{}, fmt.Errorf("%w: %q", ErrInvalidRange, s)
	}

	start, err := strconv.ParseFloat(strings.TrimSpace(startStr), 64)
	if err != nil {
		return rangeArg{}, fmt.Errorf("%w: %q: %w", ErrInvalidRange, s, err)
	}

	end, err := strconv.ParseFloat(strings.TrimSpace(endStr), 64)
	if err != nil {
		return rangeArg{}, fmt.Errorf("%w: %q: %w", ErrInvalidRange, s, err)
	}

	return rangeArg{start: start, end: end}, nil
}

// packer lays out files with shared telemetry.
type packer struct {
	engineCfg layout.Config
	logger    *slog.Logger
	tracer    trace.Tracer
	recorder  layout.Recorder
	files     *observability.FileMetrics
	discards  []rangeArg
	region    *rangeArg
}

// featureGroup is the set of features sharing a chrom within one file.
type featureGroup struct {
	chrom    string
	features []featureio.Feature
}

// packAll lays out every file with at most workers files in flight. Results
// keep the argument order.
func (p *packer) packAll(ctx context.Context, paths []string, workers int) ([]packResult, error) {
	perFile := make([][]packResult, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i, path := range paths {
		g.Go(func() error {
			results, err := p.packFile(gctx, path)
			if err != nil {
				return err
			}

			perFile[i] = results

			return nil
		})
	}

	err := g.Wait()
	if err != nil {
		return nil, err
	}

	return slices.Concat(perFile...), nil
}

func (p *packer) packFile(ctx context.Context, path string) ([]packResult, error) {
	err := ctx.Err()
	if err != nil {
		return nil, err
	}

	ctx, span := p.tracer.Start(observability.WithFile(ctx, path), "lanepack.pack.file",
		trace.WithAttributes(attribute.String(attrFilePath, path)))
	defer span.End()

	started := time.Now()

	results, format, err := p.layoutFile(ctx, path)

	status := observability.StatusOK
	if err != nil {
		status = observability.StatusError

		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}

	span.SetAttributes(attribute.String(attrFileFormat, string(format)))
	p.files.RecordFile(ctx, string(format), status, time.Since(started))

	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	p.logger.DebugContext(ctx, "file laid out",
		"format", format, "layouts", len(results), "elapsed", time.Since(started))

	return results, nil
}

func (p *packer) layoutFile(ctx context.Context, path string) ([]packResult, featureio.Format, error) {
	features, format, err := featureio.ReadFile(path)
	if err != nil {
		return nil, format, err
	}

	groups := groupByChrom(features)
	results := make([]packResult, 0, len(groups))

	for _, g := range groups {
		res, groupErr := p.packGroup(ctx, g)
		if groupErr != nil {
			return nil, format, groupErr
		}

		res.Name = path
		if g.chrom != "" {
			res.Name = path + ":" + g.chrom
		}

		results = append(results, res)
	}

	return results, format, nil
}

func (p *packer) packGroup(ctx context.Context, g featureGroup) (packResult, error) {
	_, span := p.tracer.Start(ctx, "lanepack.pack.group", trace.WithAttributes(
		attribute.String(attrGroup, g.chrom),
		attribute.Int(attrItems, len(g.features)),
	))
	defer span.End()

	engine, err := layout.New[featureio.Feature](p.engineCfg,
		layout.WithLogger(p.logger.With("group", g.chrom)),
		layout.WithRecorder(p.recorder),
	)
	if err != nil {
		return packResult{}, err
	}

	rejected, err := allocateAll(engine, g.features)
	if err != nil {
		return packResult{}, err
	}

	if len(p.discards) > 0 {
		for _, d := range p.discards {
			err = engine.Discard(d.start, d.end)
			if err != nil {
				return packResult{}, err
			}
		}

		rejected, err = allocateAll(engine, g.features)
		if err != nil {
			return packResult{}, err
		}
	}

	snap := engine.Snapshot()

	if p.region != nil {
		snap, err = engine.SnapshotRegion(p.region.start, p.region.end)
		if err != nil {
			return packResult{}, err
		}
	}

	stats := engine.Stats()

	span.SetAttributes(
		attribute.Int(attrTotalHeight, stats.TotalHeight),
		attribute.Bool(attrLimitReached, stats.LimitReached),
		attribute.Int(attrRejected, rejected),
	)

	return packResult{Snapshot: snap, Stats: stats, Rejected: rejected}, nil
}

// allocateAll allocates features in order. Lane limit violations are counted,
// any other error aborts.
func allocateAll(engine *layout.Engine[featureio.Feature], features []featureio.Feature) (int, error) {
	rejected := 0

	for _, f := range features {
		_, _, err := engine.Allocate(f.ID, f.Start, f.End, f.Height, f)

		switch {
		case errors.Is(err, layout.ErrLaneLimitViolation):
			rejected++
		case err != nil:
			return rejected, fmt.Errorf("feature %q: %w", f.ID, err)
		}
	}

	return rejected, nil
}

// groupByChrom splits features by chrom in order of first appearance.
func groupByChrom(features []featureio.Feature) []featureGroup {
	var groups []featureGroup

	index := make(map[string]int)

	for _, f := range features {
		i, ok := index[f.Chrom]
		if !ok {
			i = len(groups)
			index[f.Chrom] = i
			groups = append(groups, featureGroup{chrom: f.Chrom})
		}

		groups[i].features = append(groups[i].features, f)
	}

	return groups
}
