// Package report renders laid-out feature sets for terminals.
package report

import (
	"cmp"
	"fmt"
	"io"
	"maps"
	"slices"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/Sumatoshi-tech/lanepack/pkg/layout"
)

const msgNoItems = "No placed items"

// Layout is one rendered result: a named snapshot and its engine statistics.
type Layout struct {
	Name     string
	Snapshot layout.Snapshot
	Stats    layout.Stats
}

// Options controls rendering.
type Options struct {
	// MaxRows truncates each table; zero shows every row.
	MaxRows int
	// Color enables ANSI colors on warnings.
	Color bool
}

type row struct {
	id   string
	rect layout.Rect
}

// Write renders a summary line, warnings and a rectangle table for each layout.
func Write(w io.Writer, layouts []Layout, opts Options) error {
	warn := color.New(color.FgYellow)
	alert := color.New(color.FgRed, color.Bold)

	if opts.Color {
		warn.EnableColor()
		alert.EnableColor()
	} else {
		warn.DisableColor()
		alert.DisableColor()
	}

	for i, l := range layouts {
		if i > 0 {
			if _, err := fmt.Fprintln(w); err != nil {
				return fmt.Errorf("write report: %w", err)
			}
		}

		if err := writeOne(w, l, opts, warn, alert); err != nil {
			return err
		}
	}

	return nil
}

func writeOne(w io.Writer, l Layout, opts Options, warn, alert *color.Color) error {
	if _, err := fmt.Fprintf(w, "=== %s ===\n%s\n", l.Name, Summary(l.Stats)); err != nil {
		return fmt.Errorf("write report: %w", err)
	}

	if l.Stats.LimitReached {
		if _, err := alert.Fprintf(w, "lane limit reached: %s items left unplaced\n",
			humanize.Comma(int64(l.Stats.Unplaced))); err != nil {
			return fmt.Errorf("write report: %w", err)
		}
	}

	if l.Stats.DegradedLanes > 0 {
		if _, err := warn.Fprintf(w, "%s lanes degraded to fully occupied by oversized items\n",
			humanize.Comma(int64(l.Stats.DegradedLanes))); err != nil {
			return fmt.Errorf("write report: %w", err)
		}
	}

	if _, err := fmt.Fprintln(w, Table(l.Snapshot, opts.MaxRows)); err != nil {
		return fmt.Errorf("write report: %w", err)
	}

	return nil
}

// Summary formats engine statistics as one line.
func Summary(st layout.Stats) string {
	return fmt.Sprintf("%s items | %s placed | %s unplaced | %s lanes | %s spans | height %s",
		humanize.Comma(int64(st.Items)),
		humanize.Comma(int64(st.Placed)),
		humanize.Comma(int64(st.Unplaced)),
		humanize.Comma(int64(st.Lanes)),
		humanize.Comma(int64(st.Spans)),
		humanize.Comma(int64(st.TotalHeight)),
	)
}

// Table renders the snapshot rectangles ordered by lane, then position.
func Table(snap layout.Snapshot, maxRows int) string {
	if len(snap.Rectangles) == 0 {
		return msgNoItems
	}

	rows := make([]row, 0, len(snap.Rectangles))
	for _, id := range slices.Sorted(maps.Keys(snap.Rectangles)) {
		rows = append(rows, row{id: id, rect: snap.Rectangles[id]})
	}

	slices.SortStableFunc(rows, func(a, b row) int {
		return cmp.Or(
			cmp.Compare(a.rect.Top, b.rect.Top),
			cmp.Compare(a.rect.Left, b.rect.Left),
		)
	})

	tbl := table.NewWriter()
	tbl.SetStyle(table.StyleLight)
	tbl.Style().Options.DrawBorder = false
	tbl.Style().Options.SeparateColumns = false
	tbl.Style().Format.Footer = text.FormatDefault
	tbl.AppendHeader(table.Row{"ID", "Left", "Right", "Top", "Bottom"})

	shown := rows
	if maxRows > 0 && len(rows) > maxRows {
		shown = rows[:maxRows]
	}

	for _, r := range shown {
		tbl.AppendRow(table.Row{
			r.id,
			humanize.Commaf(r.rect.Left),
			humanize.Commaf(r.rect.Right),
			r.rect.Top,
			r.rect.Bottom,
		})
	}

	footer := fmt.Sprintf("Total: %d items", len(rows))
	if len(shown) < len(rows) {
		footer = fmt.Sprintf("Showing %d of %d items", len(shown), len(rows))
	}

	tbl.AppendFooter(table.Row{footer})

	return tbl.Render()
}
