// Package comparator computes per-artifact size deltas across an ordered set of builds.
//
// Builds are compared oldest first. Column 0 is the baseline and carries only
// absolute sizes; every later column carries a DeltaCell against either the
// baseline (ModeBaseline) or the preceding build (ModeConsecutive).
package comparator

import (
	"github.com/Sumatoshi-tech/buildtracker/pkg/build"
	"github.com/Sumatoshi-tech/buildtracker/pkg/filter"
)

// TotalName labels the row that sums every compared artifact.
const TotalName = "All"

// NewArtifactPercent is the percent reported when an artifact grows from a zero
// baseline. It saturates the color scale like a 100% increase while staying JSON-safe.
const NewArtifactPercent = 1.0

// removedPercent is the percent reported when an artifact shrinks to zero.
const removedPercent = -1.0

// Mode selects which build each column is compared against.
type Mode int

const (
	// ModeBaseline compares every build against the first build.
	ModeBaseline Mode = iota
	// ModeConsecutive compares every build against its predecessor.
	ModeConsecutive
)

// String returns the configuration name of the mode.
func (m Mode) String() string {
	if m == ModeConsecutive {
		return "consecutive"
	}

	return "baseline"
}

// ParseMode maps a configuration name to a Mode, defaulting to ModeBaseline.
func ParseMode(name string) Mode {
	if name == "consecutive" {
		return ModeConsecutive
	}

	return ModeBaseline
}

// DeltaCell is the difference of one artifact between two builds.
type DeltaCell struct {
	// Sizes maps size kind to current minus baseline bytes.
	Sizes map[string]int64 `json:"sizes"`
	// Percents maps size kind to the delta as a fraction of the baseline size.
	Percents map[string]float64 `json:"percents"`
	// HashChanged reports a content change, including one with no size change.
	HashChanged bool `json:"hashChanged"`
}

// SizeDelta returns the byte delta for a size kind.
func (c DeltaCell) SizeDelta(kind string) int64 {
	return c.Sizes[kind]
}

// PercentDelta returns the fractional delta for a size kind.
func (c DeltaCell) PercentDelta(kind string) float64 {
	return c.Percents[kind]
}

// IsUnexpectedHashChange reports a hash change that left the size untouched.
func (c DeltaCell) IsUnexpectedHashChange(kind string) bool {
	return c.HashChanged && c.Sizes[kind] == 0
}

// Row holds one artifact's sizes across every build plus its delta cells.
type Row struct {
	Name string `json:"name"`
	// Sizes holds the absolute sizes per build, indexed like the builds.
	Sizes []map[string]int64 `json:"sizes"`
	// Hashes holds the artifact hash per build, "" when the build lacks the artifact.
	Hashes []string `json:"hashes"`
	// Deltas holds one cell per build after the first; Deltas[i] describes build i+1.
	Deltas []DeltaCell `json:"deltas"`
}

// Comparator holds the delta matrix for an ordered set of builds.
type Comparator struct {
	builds        []build.Build
	artifactNames []string
	sizeKinds     []string
	mode          Mode
	rows          []Row
	total         Row
}

// Option configures a Comparator.
type Option func(*settings)

type settings struct {
	artifactNames []string
	filters       []filter.Filter
	mode          Mode
}

// WithArtifactNames restricts the rows to the given artifact names, in that order.
func WithArtifactNames(names []string) Option {
	return func(s *settings) {
		s.artifactNames = names
	}
}

// WithArtifactFilters excludes every artifact name matched by any filter.
func WithArtifactFilters(filters []filter.Filter) Option {
	return func(s *settings) {
		s.filters = filters
	}
}

// WithMode selects baseline or consecutive comparison.
func WithMode(mode Mode) Option {
	return func(s *settings) {
		s.mode = mode
	}
}

// New computes the comparison of builds, which must be ordered baseline first.
func New(builds []build.Build, opts ...Option) *Comparator {
	cfg := settings{}
	for _, opt := range opts {
		opt(&cfg)
	}

	names := cfg.artifactNames
	if names == nil {
		names = build.ArtifactNames(builds)
	}

	names = filter.FilterArtifactNames(names, cfg.filters)

	cmp := &Comparator{
		builds:        builds,
		artifactNames: names,
		sizeKinds:     build.SizeKinds(builds),
		mode:          cfg.mode,
	}

	indexes := make([]map[string]build.Artifact, len(builds))
	for i, b := range builds {
		indexes[i] = indexArtifacts(b)
	}

	cmp.rows = make([]Row, len(names))
	for i, name := range names {
		cmp.rows[i] = cmp.artifactRow(name, indexes)
	}

	cmp.total = cmp.totalRow()

	return cmp
}

// Builds returns the compared builds in column order.
func (c *Comparator) Builds() []build.Build {
	return c.builds
}

// ArtifactNames returns the row names, excluding the total row.
func (c *Comparator) ArtifactNames() []string {
	return c.artifactNames
}

// SizeKinds returns the sorted size kinds measured by any compared build.
func (c *Comparator) SizeKinds() []string {
	return c.sizeKinds
}

// Mode returns the comparison mode.
func (c *Comparator) Mode() Mode {
	return c.mode
}

// Rows returns one row per artifact.
func (c *Comparator) Rows() []Row {
	return c.rows
}

// Total returns the row summing every compared artifact.
func (c *Comparator) Total() Row {
	return c.total
}

// Cell returns the delta of an artifact at a build column. Column 0 and
// unknown artifacts have no cell.
func (c *Comparator) Cell(name string, column int) (DeltaCell, bool) {
	if column < 1 || column >= len(c.builds) {
		return DeltaCell{}, false
	}

	for _, row := range c.rows {
		if row.Name == name {
			return row.Deltas[column-1], true
		}
	}

	return DeltaCell{}, false
}

// TotalDelta returns the delta of the total row at a build column.
func (c *Comparator) TotalDelta(column int) (DeltaCell, bool) {
	if column < 1 || column >= len(c.builds) {
		return DeltaCell{}, false
	}

	return c.total.Deltas[column-1], true
}

// baseColumn returns the column a given column is compared against.
func (c *Comparator) baseColumn(column int) int {
	if c.mode == ModeConsecutive {
		return column - 1
	}

	return 0
}

func (c *Comparator) artifactRow(name string, indexes []map[string]build.Artifact) Row {
	row := Row{
		Name:   name,
		Sizes:  make([]map[string]int64, len(c.builds)),
		Hashes: make([]string, len(c.builds)),
		Deltas: make([]DeltaCell, 0, max(len(c.builds)-1, 0)),
	}

	for i := range c.builds {
		artifact := indexes[i][name]
		row.Sizes[i] = c.sizesOf(artifact)
		row.Hashes[i] = artifact.Hash
	}

	for column := 1; column < len(c.builds); column++ {
		base := c.baseColumn(column)
		cell := newDeltaCell(c.sizeKinds, row.Sizes[base], row.Sizes[column])
		cell.HashChanged = row.Hashes[base] != row.Hashes[column]
		row.Deltas = append(row.Deltas, cell)
	}

	return row
}

func (c *Comparator) totalRow() Row {
	total := Row{
		Name:   TotalName,
		Sizes:  make([]map[string]int64, len(c.builds)),
		Hashes: make([]string, len(c.builds)),
		Deltas: make([]DeltaCell, 0, max(len(c.builds)-1, 0)),
	}

	for i := range c.builds {
		sums := make(map[string]int64, len(c.sizeKinds))

		for _, kind := range c.sizeKinds {
			for _, row := range c.rows {
				sums[kind] += row.Sizes[i][kind]
			}
		}

		total.Sizes[i] = sums
	}

	for column := 1; column < len(c.builds); column++ {
		cell := newDeltaCell(c.sizeKinds, total.Sizes[c.baseColumn(column)], total.Sizes[column])

		for _, row := range c.rows {
			if row.Deltas[column-1].HashChanged {
				cell.HashChanged = true

				break
			}
		}

		total.Deltas = append(total.Deltas, cell)
	}

	return total
}

// sizesOf normalizes a possibly missing artifact to a full size map.
func (c *Comparator) sizesOf(artifact build.Artifact) map[string]int64 {
	sizes := make(map[string]int64, len(c.sizeKinds))
	for _, kind := range c.sizeKinds {
		sizes[kind] = artifact.Size(kind)
	}

	return sizes
}

func newDeltaCell(kinds []string, base, current map[string]int64) DeltaCell {
	cell := DeltaCell{
		Sizes:    make(map[string]int64, len(kinds)),
		Percents: make(map[string]float64, len(kinds)),
	}

	for _, kind := range kinds {
		cell.Sizes[kind] = current[kind] - base[kind]
		cell.Percents[kind] = PercentDelta(base[kind], current[kind])
	}

	return cell
}

// PercentDelta returns (current-base)/base. A zero baseline yields 0 when the
// current size is also zero and NewArtifactPercent when it grew.
func PercentDelta(base, current int64) float64 {
	if base == 0 {
		if current == 0 {
			return 0
		}

		return NewArtifactPercent
	}

	if current == 0 {
		return removedPercent
	}

	return float64(current-base) / float64(base)
}

func indexArtifacts(b build.Build) map[string]build.Artifact {
	index := make(map[string]build.Artifact, len(b.Artifacts))
	for _, artifact := range b.Artifacts {
		index[artifact.Name] = artifact
	}

	return index
}
