package dashboard

import (
	"slices"

	"github.com/Sumatoshi-tech/buildtracker/internal/client"
	"github.com/Sumatoshi-tech/buildtracker/pkg/build"
	"github.com/Sumatoshi-tech/buildtracker/pkg/colorscale"
	"github.com/Sumatoshi-tech/buildtracker/pkg/comparator"
	"github.com/Sumatoshi-tech/buildtracker/pkg/filter"
)

// maxBarChartBuilds is the largest build count drawn as bars by default.
const maxBarChartBuilds = 4

// State is everything the dashboard shows. Reducers return a new State and
// never modify the receiver's slices.
type State struct {
	Route Route

	Builds                []build.Build
	ArtifactNames         []string
	ArtifactFilters       []filter.Filter
	FilteredArtifactNames []string
	ActiveArtifactNames   []string
	CompareBuilds         []build.Build
	SelectedRevision      string

	Chart   ChartType
	YScale  YScale
	SizeKey string
	Mode    comparator.Mode

	// Colors holds one hex color per filtered artifact name.
	Colors []string

	toggleGroups map[string][]string
}

// NewState returns the empty state for cfg.
func NewState(cfg Config) State {
	return State{
		ArtifactFilters: cfg.ArtifactFilters,
		Chart:           ChartArea,
		YScale:          YScaleLinear,
		SizeKey:         cfg.SizeKey,
		Mode:            cfg.Mode,
		toggleGroups:    cfg.ToggleGroups,
	}
}

// Load applies a successful fetch made for route.
func (s State) Load(result client.Result, route Route) State {
	next := s
	next.Builds = result.Builds
	next.ArtifactNames = result.ArtifactNames
	next.FilteredArtifactNames = filter.FilterArtifactNames(result.ArtifactNames, s.ArtifactFilters)
	next.Colors = colorscale.Palette(len(next.FilteredArtifactNames))

	next.Chart = ChartArea
	if len(result.Builds) <= maxBarChartBuilds {
		next.Chart = ChartBar
	}

	return next.Navigate(route)
}

// Navigate re-derives the URL-driven parts of the state for route.
func (s State) Navigate(route Route) State {
	next := s
	next.Route = route
	next.ActiveArtifactNames = filter.FilterArtifactNames(
		filter.ActiveArtifactNames(route.Artifacts, s.ArtifactNames),
		s.ArtifactFilters,
	)
	next.CompareBuilds = filter.CompareBuilds(route.Compare, s.Builds)

	if route.SizeKey != "" {
		next.SizeKey = route.SizeKey
	}

	if route.Chart != ChartAuto {
		next.Chart = route.Chart
	}

	next.YScale = route.YScale
	if next.YScale == "" {
		next.YScale = YScaleLinear
	}

	return next
}

// FetchQuery is the build lookup for the current route: pinned revisions,
// else a time range, else the most recent builds.
func (s State) FetchQuery() client.Query {
	if revisions := s.Route.RevisionList(); len(revisions) > 0 {
		return client.Query{Revisions: revisions}
	}

	if s.Route.StartTime != 0 && s.Route.EndTime != 0 {
		return client.Query{StartTime: s.Route.StartTime, EndTime: s.Route.EndTime}
	}

	return client.Query{}
}

// Path is the URL path describing the current selection.
func (s State) Path() string {
	return filter.Path(s.Route.Revisions, s.ActiveArtifactNames, s.FilteredArtifactNames, s.CompareBuilds)
}

// ChangeFilters replaces the artifact filters and the time range, and
// returns the lookup to run next. The time range is used only when both
// ends are set and one of them changed.
func (s State) ChangeFilters(filters []filter.Filter, startTime, endTime int64) (State, client.Query) {
	next := s
	next.ArtifactFilters = filters
	next.FilteredArtifactNames = filter.FilterArtifactNames(s.ArtifactNames, filters)
	next.ActiveArtifactNames = filter.ActiveArtifactNames(s.Route.Artifacts, next.FilteredArtifactNames)
	next.Colors = colorscale.Palette(len(next.FilteredArtifactNames))

	changed := startTime != s.Route.StartTime || endTime != s.Route.EndTime
	next.Route.StartTime = startTime
	next.Route.EndTime = endTime

	if startTime != 0 && endTime != 0 && changed {
		return next, client.Query{StartTime: startTime, EndTime: endTime}
	}

	return next, next.FetchQuery()
}

// ChangeArtifacts activates the given artifacts. A lone AllToken activates
// every known artifact. Filtered-out names never become active.
func (s State) ChangeArtifacts(active []string) (State, string) {
	if len(active) == 1 && active[0] == filter.AllToken {
		active = s.ArtifactNames
	}

	next := s
	next.ActiveArtifactNames = filter.FilterArtifactNames(slices.Clone(active), s.ArtifactFilters)

	return next, next.Path()
}

// ToggleGroup activates every artifact of a configured group, or
// deactivates them all when the whole group is already active.
func (s State) ToggleGroup(name string) (State, string) {
	group := s.toggleGroups[name]

	allActive := len(group) > 0
	for _, artifact := range group {
		if !slices.Contains(s.ActiveArtifactNames, artifact) {
			allActive = false

			break
		}
	}

	active := make([]string, 0, len(s.FilteredArtifactNames))

	for _, artifact := range s.FilteredArtifactNames {
		inGroup := slices.Contains(group, artifact)
		isActive := slices.Contains(s.ActiveArtifactNames, artifact)

		if (isActive && !(inGroup && allActive)) || (inGroup && !allActive) {
			active = append(active, artifact)
		}
	}

	return s.ChangeArtifacts(active)
}

// ToggleGroupNames returns the configured group names, sorted.
func (s State) ToggleGroupNames() []string {
	names := make([]string, 0, len(s.toggleGroups))
	for name := range s.toggleGroups {
		names = append(names, name)
	}

	slices.Sort(names)

	return names
}

// SelectBuild toggles a build in the comparison and the build info panel.
func (s State) SelectBuild(revision string) (State, string) {
	b, ok := findBuild(s.Builds, revision)
	if !ok {
		return s, s.Path()
	}

	next := s

	if _, compared := findBuild(s.CompareBuilds, revision); compared {
		next.CompareBuilds = withoutRevision(s.CompareBuilds, revision)
	} else {
		next.CompareBuilds = append(slices.Clone(s.CompareBuilds), b)
	}

	next.SelectedRevision = revision
	if s.SelectedRevision == revision {
		next.SelectedRevision = ""
	}

	return next, next.Path()
}

// RemoveRevision drops a build from the comparison. The info panel moves to
// the first build still compared.
func (s State) RemoveRevision(revision string) (State, string) {
	next := s
	next.CompareBuilds = withoutRevision(s.CompareBuilds, revision)

	next.SelectedRevision = ""
	if len(next.CompareBuilds) > 0 {
		next.SelectedRevision = next.CompareBuilds[0].Revision()
	}

	return next, next.Path()
}

// ShowBuildInfo points the info panel at a compared build, or clears it
// when the revision is not compared.
func (s State) ShowBuildInfo(revision string) State {
	next := s
	next.SelectedRevision = ""

	if b, ok := findBuild(s.CompareBuilds, revision); ok {
		next.SelectedRevision = b.Revision()
	}

	return next
}

// SelectedBuild returns the build shown in the info panel.
func (s State) SelectedBuild() (build.Build, bool) {
	if s.SelectedRevision == "" {
		return build.Build{}, false
	}

	return findBuild(s.Builds, s.SelectedRevision)
}

// ColorFor returns the chart color of a filtered artifact.
func (s State) ColorFor(name string) string {
	i := slices.Index(s.FilteredArtifactNames, name)
	if i < 0 || i >= len(s.Colors) {
		return ""
	}

	return s.Colors[i]
}

// Comparator compares the selected builds over the filtered artifacts.
func (s State) Comparator() *comparator.Comparator {
	return comparator.New(s.CompareBuilds,
		comparator.WithArtifactNames(s.FilteredArtifactNames),
		comparator.WithMode(s.Mode),
	)
}

func findBuild(builds []build.Build, revision string) (build.Build, bool) {
	for _, b := range builds {
		if b.Revision() == revision || build.ShortRevision(b.Revision()) == revision {
			return b, true
		}
	}

	return build.Build{}, false
}

func withoutRevision(builds []build.Build, revision string) []build.Build {
	out := make([]build.Build, 0, len(builds))

	for _, b := range builds {
		if b.Revision() != revision && build.ShortRevision(b.Revision()) != revision {
			out = append(out, b)
		}
	}

	return out
}
