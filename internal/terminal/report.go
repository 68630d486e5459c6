package terminal

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	prettytext "github.com/jedib0t/go-pretty/v6/text"

	"github.com/Sumatoshi-tech/buildtracker/pkg/build"
	"github.com/Sumatoshi-tech/buildtracker/pkg/comparator"
	"github.com/Sumatoshi-tech/buildtracker/pkg/format"
)

// Report layout.
const (
	ReportTitle     = "BUILD SIZES"
	BreakdownTitle  = "Size breakdown"
	breakdownLabel  = 24
	breakdownMinBar = 10
	breakdownFixed  = 20
)

// Renderer writes comparisons to a terminal.
type Renderer struct {
	config Config
}

// NewRenderer creates a Renderer.
func NewRenderer(config Config) *Renderer {
	return &Renderer{config: config}
}

// RenderComparison writes the header, the delta table, the change summary
// and the newest build's size breakdown for one size kind.
func (r *Renderer) RenderComparison(w io.Writer, cmp *comparator.Comparator, kind string) error {
	builds := cmp.Builds()
	if len(builds) == 0 {
		_, err := fmt.Fprintln(w, r.config.Colorize("No builds to compare.", ColorGray))

		return err
	}

	latest := builds[len(builds)-1]
	right := fmt.Sprintf("%s %s (%d builds, %s)",
		kind, build.ShortRevision(latest.Revision()), len(builds), cmp.Mode())

	parts := []string{
		r.config.Colorize(DrawHeader(ReportTitle, right, r.config.Width), ColorBlue),
		r.Table(cmp, kind).Render(),
	}

	if summary := cmp.Summary(kind); len(summary) > 0 {
		parts = append(parts, strings.Join(summary, "\n"))
	}

	parts = append(parts, r.Breakdown(cmp, kind))

	_, err := fmt.Fprintln(w, strings.Join(parts, "\n\n"))
	if err != nil {
		return fmt.Errorf("write comparison: %w", err)
	}

	return nil
}

// Table builds the delta table with colored delta cells.
func (r *Renderer) Table(cmp *comparator.Comparator, kind string) table.Writer {
	tbl := table.NewWriter()
	tbl.SetStyle(table.StyleLight)
	tbl.Style().Options.SeparateRows = false
	tbl.Style().Options.DrawBorder = false
	tbl.Style().Format.Header = prettytext.FormatDefault

	header := table.Row{""}
	for _, b := range cmp.Builds() {
		header = append(header, build.ShortRevision(b.Revision()))
	}

	tbl.AppendHeader(header)
	tbl.AppendRow(r.row(cmp.Total(), kind))

	for _, row := range cmp.Rows() {
		tbl.AppendRow(r.row(row, kind))
	}

	configs := make([]table.ColumnConfig, 0, len(header)-1)
	for i := 2; i <= len(header); i++ {
		configs = append(configs, table.ColumnConfig{Number: i, Align: prettytext.AlignRight})
	}

	tbl.SetColumnConfigs(configs)

	return tbl
}

func (r *Renderer) row(row comparator.Row, kind string) table.Row {
	out := table.Row{row.Name}
	if len(row.Sizes) == 0 {
		return out
	}

	out = append(out, format.Bytes(row.Sizes[0][kind]))

	for _, cell := range row.Deltas {
		out = append(out, r.config.Colorize(comparator.CellLabel(cell, kind), ColorForDelta(cell, kind)))
	}

	return out
}

// Breakdown draws each artifact's share of the newest build's total size.
func (r *Renderer) Breakdown(cmp *comparator.Comparator, kind string) string {
	builds := cmp.Builds()
	if len(builds) == 0 {
		return ""
	}

	latest := len(builds) - 1
	total := cmp.Total().Sizes[latest][kind]
	barWidth := max(r.config.Width-breakdownLabel-breakdownFixed, breakdownMinBar)

	lines := []string{BreakdownTitle + " " + build.ShortRevision(builds[latest].Revision()) +
		" (" + format.Bytes(total) + ")", DrawSeparator(r.config.Width)}

	for _, row := range cmp.Rows() {
		size := row.Sizes[latest][kind]

		share := 0.0
		if total > 0 {
			share = float64(size) / float64(total)
		}

		lines = append(lines, DrawShareBar(row.Name, share, format.Bytes(size), breakdownLabel, barWidth))
	}

	return strings.Join(lines, "\n")
}

// RenderBuilds lists builds newest last with their total size.
func (r *Renderer) RenderBuilds(w io.Writer, builds []build.Build, kind string) error {
	tbl := table.NewWriter()
	tbl.SetStyle(table.StyleLight)
	tbl.Style().Options.DrawBorder = false
	tbl.Style().Format.Header = prettytext.FormatDefault
	tbl.Style().Format.Footer = prettytext.FormatDefault
	tbl.AppendHeader(table.Row{"Revision", "Built", "Artifacts", "Total " + kind})

	for _, b := range builds {
		tbl.AppendRow(table.Row{
			build.ShortRevision(b.Revision()),
			format.Timestamp(b.Time()),
			strconv.Itoa(len(b.Artifacts)),
			format.Bytes(b.TotalSize(kind, nil)),
		})
	}

	tbl.AppendFooter(table.Row{fmt.Sprintf("Total: %d builds", len(builds))})

	_, err := fmt.Fprintln(w, tbl.Render())
	if err != nil {
		return fmt.Errorf("write builds: %w", err)
	}

	return nil
}
