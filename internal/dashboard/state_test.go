package dashboard_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/buildtracker/internal/client"
	"github.com/Sumatoshi-tech/buildtracker/internal/dashboard"
	"github.com/Sumatoshi-tech/buildtracker/pkg/build"
	"github.com/Sumatoshi-tech/buildtracker/pkg/comparator"
	"github.com/Sumatoshi-tech/buildtracker/pkg/filter"
)

func artifactBuild(revision string, timestamp int64, mainSize int64) build.Build {
	return build.Build{
		Meta: build.Meta{Revision: revision, Timestamp: timestamp, Author: "dev"},
		Artifacts: []build.Artifact{
			{Name: "main", Hash: revision, Sizes: map[string]int64{"gzip": mainSize, "stat": mainSize * 3}},
			{Name: "vendor", Hash: "v", Sizes: map[string]int64{"gzip": 50, "stat": 150}},
			{Name: "test-helpers", Hash: "t", Sizes: map[string]int64{"gzip": 5, "stat": 15}},
		},
	}
}

var testBuilds = []build.Build{
	artifactBuild("aaaaaaa1111", 100, 100),
	artifactBuild("bbbbbbb2222", 200, 120),
	artifactBuild("ccccccc3333", 300, 90),
}

func testResult() client.Result {
	return client.Result{Builds: testBuilds, ArtifactNames: build.ArtifactNames(testBuilds)}
}

func testConfig(t *testing.T) dashboard.Config {
	t.Helper()

	cfg, err := dashboard.NewConfig(
		[]string{"^test-"},
		map[string][]string{"app": {"main", "vendor"}},
		"",
		comparator.ModeBaseline,
	)
	require.NoError(t, err)

	return cfg
}

func loadedState(t *testing.T, rawURL string) dashboard.State {
	t.Helper()

	route, err := dashboard.ParseRoute(mustURL(t, rawURL))
	require.NoError(t, err)

	return dashboard.NewState(testConfig(t)).Load(testResult(), route)
}

func revisionsOf(builds []build.Build) []string {
	out := make([]string, len(builds))
	for i, b := range builds {
		out[i] = b.Revision()
	}

	return out
}

func TestNewConfig(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	assert.Equal(t, "Build Tracker", cfg.Title)
	assert.Equal(t, dashboard.DefaultSizeKey, cfg.SizeKey)
	require.Len(t, cfg.ArtifactFilters, 1)

	_, err := dashboard.NewConfig([]string{"("}, nil, "", comparator.ModeBaseline)
	require.Error(t, err)
}

func TestState_Load(t *testing.T) {
	t.Parallel()

	s := loadedState(t, "/")

	assert.Equal(t, []string{"main", "test-helpers", "vendor"}, s.ArtifactNames)
	assert.Equal(t, []string{"main", "vendor"}, s.FilteredArtifactNames)
	assert.Equal(t, []string{"main", "vendor"}, s.ActiveArtifactNames)
	assert.Len(t, s.Colors, 2)
	assert.NotEqual(t, s.ColorFor("main"), s.ColorFor("vendor"))
	assert.Empty(t, s.ColorFor("test-helpers"))
	assert.Equal(t, dashboard.ChartBar, s.Chart)
	assert.Equal(t, "gzip", s.SizeKey)
	assert.Empty(t, s.CompareBuilds)
}

func TestState_LoadManyBuildsDrawsArea(t *testing.T) {
	t.Parallel()

	builds := make([]build.Build, 0, 5)
	for i := range 5 {
		builds = append(builds, artifactBuild(string(rune('a'+i))+"000000", int64(i+1), 10))
	}

	s := dashboard.NewState(testConfig(t)).Load(
		client.Result{Builds: builds, ArtifactNames: build.ArtifactNames(builds)},
		dashboard.Route{},
	)
	assert.Equal(t, dashboard.ChartArea, s.Chart)

	forced := s.Navigate(dashboard.Route{Chart: dashboard.ChartBar})
	assert.Equal(t, dashboard.ChartBar, forced.Chart)
}

func TestState_Navigate(t *testing.T) {
	t.Parallel()

	s := loadedState(t, "/vendor/ccccccc+aaaaaaa?size=stat&yscale=log")

	assert.Equal(t, []string{"vendor"}, s.ActiveArtifactNames)
	assert.Equal(t, []string{"aaaaaaa1111", "ccccccc3333"}, revisionsOf(s.CompareBuilds))
	assert.Equal(t, "stat", s.SizeKey)
	assert.Equal(t, dashboard.YScaleLog, s.YScale)
	assert.Equal(t, "/vendor/aaaaaaa+ccccccc", s.Path())
}

func TestState_NavigateIgnoresFilteredArtifacts(t *testing.T) {
	t.Parallel()

	s := loadedState(t, "/test-helpers+main")
	assert.Equal(t, []string{"main"}, s.ActiveArtifactNames)

	none := loadedState(t, "/None")
	assert.Empty(t, none.ActiveArtifactNames)
	assert.Equal(t, "/None/", none.Path())
}

func TestState_FetchQuery(t *testing.T) {
	t.Parallel()

	assert.Equal(t, client.Query{}, loadedState(t, "/").FetchQuery())
	assert.Equal(t,
		client.Query{Revisions: []string{"r1", "r2"}},
		loadedState(t, "/revisions/r1,r2/All?start=1&end=2").FetchQuery(),
	)
	assert.Equal(t, client.Query{StartTime: 1, EndTime: 2}, loadedState(t, "/?start=1&end=2").FetchQuery())
	assert.Equal(t, client.Query{}, loadedState(t, "/?start=1").FetchQuery())
}

func TestState_ChangeFilters(t *testing.T) {
	t.Parallel()

	s := loadedState(t, "/")

	filters, err := filter.Compile([]string{"^vendor$"})
	require.NoError(t, err)

	next, query := s.ChangeFilters(filters, 0, 0)
	assert.Equal(t, []string{"main", "test-helpers"}, next.FilteredArtifactNames)
	assert.Equal(t, []string{"main", "test-helpers"}, next.ActiveArtifactNames)
	assert.Len(t, next.Colors, 2)
	assert.Equal(t, client.Query{}, query)

	_, ranged := s.ChangeFilters(filters, 10, 20)
	assert.Equal(t, client.Query{StartTime: 10, EndTime: 20}, ranged)

	unchanged := loadedState(t, "/?start=10&end=20")
	_, same := unchanged.ChangeFilters(filters, 10, 20)
	assert.Equal(t, client.Query{StartTime: 10, EndTime: 20}, same)

	assert.Equal(t, []string{"main", "vendor"}, s.FilteredArtifactNames)
}

func TestState_ChangeArtifacts(t *testing.T) {
	t.Parallel()

	s := loadedState(t, "/vendor/bbbbbbb")

	all, path := s.ChangeArtifacts([]string{filter.AllToken})
	assert.Equal(t, []string{"main", "vendor"}, all.ActiveArtifactNames)
	assert.Equal(t, "/All/bbbbbbb", path)

	_, path = s.ChangeArtifacts([]string{"main", "test-helpers"})
	assert.Equal(t, "/main/bbbbbbb", path)

	_, path = s.ChangeArtifacts(nil)
	assert.Equal(t, "/None/bbbbbbb", path)

	assert.Equal(t, []string{"vendor"}, s.ActiveArtifactNames)
}

func TestState_ToggleGroup(t *testing.T) {
	t.Parallel()

	s := loadedState(t, "/None")
	assert.Equal(t, []string{"app"}, s.ToggleGroupNames())

	on, path := s.ToggleGroup("app")
	assert.Equal(t, []string{"main", "vendor"}, on.ActiveArtifactNames)
	assert.Equal(t, "/All/", path)

	off, path := on.ToggleGroup("app")
	assert.Empty(t, off.ActiveArtifactNames)
	assert.Equal(t, "/None/", path)

	partial := loadedState(t, "/main")
	completed, _ := partial.ToggleGroup("app")
	assert.Equal(t, []string{"main", "vendor"}, completed.ActiveArtifactNames)

	unknown, _ := partial.ToggleGroup("missing")
	assert.Equal(t, []string{"main"}, unknown.ActiveArtifactNames)
}

func TestState_SelectBuild(t *testing.T) {
	t.Parallel()

	s := loadedState(t, "/All/aaaaaaa")

	added, path := s.SelectBuild("ccccccc3333")
	assert.Equal(t, []string{"aaaaaaa1111", "ccccccc3333"}, revisionsOf(added.CompareBuilds))
	assert.Equal(t, "ccccccc3333", added.SelectedRevision)
	assert.Equal(t, "/All/aaaaaaa+ccccccc", path)

	removed, path := added.SelectBuild("ccccccc3333")
	assert.Equal(t, []string{"aaaaaaa1111"}, revisionsOf(removed.CompareBuilds))
	assert.Empty(t, removed.SelectedRevision)
	assert.Equal(t, "/All/aaaaaaa", path)

	same, path := s.SelectBuild("unknown")
	assert.Equal(t, s.CompareBuilds, same.CompareBuilds)
	assert.Equal(t, "/All/aaaaaaa", path)
}

func TestState_RemoveRevision(t *testing.T) {
	t.Parallel()

	s := loadedState(t, "/All/aaaaaaa+bbbbbbb+ccccccc")

	next, path := s.RemoveRevision("aaaaaaa")
	assert.Equal(t, []string{"bbbbbbb2222", "ccccccc3333"}, revisionsOf(next.CompareBuilds))
	assert.Equal(t, "bbbbbbb2222", next.SelectedRevision)
	assert.Equal(t, "/All/bbbbbbb+ccccccc", path)

	last, _ := loadedState(t, "/All/aaaaaaa").RemoveRevision("aaaaaaa1111")
	assert.Empty(t, last.CompareBuilds)
	assert.Empty(t, last.SelectedRevision)
}

func TestState_ShowBuildInfo(t *testing.T) {
	t.Parallel()

	s := loadedState(t, "/All/aaaaaaa+bbbbbbb")

	shown := s.ShowBuildInfo("bbbbbbb")
	selected, ok := shown.SelectedBuild()
	require.True(t, ok)
	assert.Equal(t, "bbbbbbb2222", selected.Revision())

	notCompared := s.ShowBuildInfo("ccccccc")
	_, ok = notCompared.SelectedBuild()
	assert.False(t, ok)
}

func TestState_Comparator(t *testing.T) {
	t.Parallel()

	cmp := loadedState(t, "/All/aaaaaaa+bbbbbbb+ccccccc").Comparator()

	assert.Equal(t, []string{"main", "vendor"}, cmp.ArtifactNames())

	cell, ok := cmp.Cell("main", 2)
	require.True(t, ok)
	assert.Equal(t, int64(-10), cell.SizeDelta("gzip"))
}
