package comparator

import (
	"encoding/json"
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/Sumatoshi-tech/buildtracker/pkg/build"
	"github.com/Sumatoshi-tech/buildtracker/pkg/format"
)

// hashChangeMarker flags a hash change that left the size untouched.
const hashChangeMarker = "⚠️"

// Report is the JSON form of a comparison.
type Report struct {
	Mode   string       `json:"mode"`
	Builds []build.Meta `json:"builds"`
	Rows   []Row        `json:"rows"`
	Total  Row          `json:"total"`
}

// ToJSON encodes the comparison as JSON.
func (c *Comparator) ToJSON() ([]byte, error) {
	metas := make([]build.Meta, len(c.builds))
	for i, b := range c.builds {
		metas[i] = b.Meta
	}

	data, err := json.Marshal(Report{
		Mode:   c.mode.String(),
		Builds: metas,
		Rows:   c.rows,
		Total:  c.total,
	})
	if err != nil {
		return nil, fmt.Errorf("encode comparison: %w", err)
	}

	return data, nil
}

// Table builds a go-pretty table of the comparison for one size kind.
// The baseline column holds absolute sizes; later columns hold deltas.
func (c *Comparator) Table(kind string) table.Writer {
	tbl := table.NewWriter()

	header := table.Row{""}
	for _, b := range c.builds {
		header = append(header, build.ShortRevision(b.Revision()))
	}

	tbl.AppendHeader(header)
	tbl.AppendRow(c.tableRow(c.total, kind))

	for _, row := range c.rows {
		tbl.AppendRow(c.tableRow(row, kind))
	}

	return tbl
}

// ToMarkdown renders the comparison for one size kind as a markdown table.
func (c *Comparator) ToMarkdown(kind string) string {
	if len(c.builds) == 0 {
		return ""
	}

	return c.Table(kind).RenderMarkdown()
}

// ToCSV renders the comparison for one size kind as CSV.
func (c *Comparator) ToCSV(kind string) string {
	if len(c.builds) == 0 {
		return ""
	}

	return c.Table(kind).RenderCSV()
}

// Summary lists, for the last build, every artifact whose size or hash changed.
func (c *Comparator) Summary(kind string) []string {
	if len(c.builds) < 2 {
		return nil
	}

	column := len(c.builds) - 1
	base := c.builds[c.baseColumn(column)]
	current := c.builds[column]

	lines := []string{fmt.Sprintf("%s: %s → %s", kind,
		build.ShortRevision(base.Revision()), build.ShortRevision(current.Revision()))}

	total, _ := c.TotalDelta(column)
	lines = appendSummaryLine(lines, TotalName, total, kind)

	for _, row := range c.rows {
		lines = appendSummaryLine(lines, row.Name, row.Deltas[column-1], kind)
	}

	return lines
}

func appendSummaryLine(lines []string, name string, cell DeltaCell, kind string) []string {
	switch {
	case cell.IsUnexpectedHashChange(kind):
		return append(lines, fmt.Sprintf("%s: %s unexpected hash change", name, hashChangeMarker))
	case cell.SizeDelta(kind) != 0:
		return append(lines, fmt.Sprintf("%s: %s (%s)", name,
			format.SignedBytes(cell.SizeDelta(kind)), format.Percent(cell.PercentDelta(kind))))
	}

	return lines
}

func (c *Comparator) tableRow(row Row, kind string) table.Row {
	out := table.Row{row.Name}
	if len(c.builds) == 0 {
		return out
	}

	out = append(out, format.Bytes(row.Sizes[0][kind]))

	for _, cell := range row.Deltas {
		out = append(out, CellLabel(cell, kind))
	}

	return out
}

// CellLabel is the short text shown for a delta cell: formatted bytes, a
// warning marker for an unexpected hash change, or nothing.
func CellLabel(cell DeltaCell, kind string) string {
	delta := cell.SizeDelta(kind)
	if delta == 0 {
		if cell.HashChanged {
			return hashChangeMarker
		}

		return ""
	}

	return format.SignedBytes(delta)
}

// CellTitle is the long description of a delta cell.
func CellTitle(cell DeltaCell, kind string) string {
	text := fmt.Sprintf("%s (%s)", format.ByteCount(cell.SizeDelta(kind)), format.Percent(cell.PercentDelta(kind)))
	if cell.IsUnexpectedHashChange(kind) {
		return "Unexpected hash change! " + text
	}

	return text
}
