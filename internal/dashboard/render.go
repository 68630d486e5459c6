package dashboard

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"
	"net/url"
	"sync"

	"github.com/Sumatoshi-tech/buildtracker/pkg/build"
	"github.com/Sumatoshi-tech/buildtracker/pkg/colorscale"
	"github.com/Sumatoshi-tech/buildtracker/pkg/comparator"
	"github.com/Sumatoshi-tech/buildtracker/pkg/filter"
	"github.com/Sumatoshi-tech/buildtracker/pkg/format"
)

//go:embed templates/*.html
var templateFS embed.FS

var (
	templates     *template.Template
	templatesOnce sync.Once
	errTemplates  error
)

var funcMap = template.FuncMap{
	"bytes":    format.Bytes,
	"relative": format.RelativeTime,
	"stamp":    format.Timestamp,
	"short":    build.ShortRevision,
}

func getTemplates() (*template.Template, error) {
	templatesOnce.Do(func() {
		var parseErr error

		templates, parseErr = template.New("").
			Funcs(funcMap).
			ParseFS(templateFS, "templates/*.html")
		if parseErr != nil {
			errTemplates = fmt.Errorf("parsing templates: %w", parseErr)
		}
	})

	return templates, errTemplates
}

// link is an anchor target with its label.
type link struct {
	Label string
	Href  string
}

// artifactToggle is one artifact checkbox of the sidebar.
type artifactToggle struct {
	Name   string
	Color  string
	Active bool
	Href   string
}

// buildLink is one loaded build in the build list.
type buildLink struct {
	Build    build.Build
	Compared bool
	Href     string
}

// columnHeader is one build column of the comparison table.
type columnHeader struct {
	Revision   string
	RemoveHref string
	InfoHref   string
}

// tableCell is one comparison table cell.
type tableCell struct {
	Label      string
	Title      string
	Background template.CSS
}

// tableRow is one artifact row, or the total row.
type tableRow struct {
	Name       string
	ToggleHref string
	Active     bool
	Total      bool
	Cells      []tableCell
}

// pageData holds data for the page template.
type pageData struct {
	Title     string
	Error     string
	State     State
	Chart     template.HTML
	SizeKeys  []link
	Charts    []link
	Scales    []link
	Artifacts []artifactToggle
	Groups    []link
	AllHref   string
	NoneHref  string
	Builds    []buildLink
	Headers   []columnHeader
	Rows      []tableRow
	Selected  *build.Build
	Summary   []string
}

// Render writes the dashboard page for s. A non-nil fetchErr replaces the
// chart and table with a generic failure notice; its text is not rendered.
func Render(w io.Writer, cfg Config, s State, fetchErr error) error {
	tmpl, err := getTemplates()
	if err != nil {
		return err
	}

	data, err := newPageData(cfg, s, fetchErr)
	if err != nil {
		return err
	}

	var buf bytes.Buffer

	err = tmpl.ExecuteTemplate(&buf, "page.html", data)
	if err != nil {
		return fmt.Errorf("executing template page.html: %w", err)
	}

	_, err = buf.WriteTo(w)
	if err != nil {
		return fmt.Errorf("write page: %w", err)
	}

	return nil
}

// fetchFailedMessage replaces datastore error text on the page; the handler
// logs the detail.
const fetchFailedMessage = "The build datastore could not be reached. See the server log for details."

func newPageData(cfg Config, s State, fetchErr error) (pageData, error) {
	data := pageData{Title: cfg.Title, State: s}

	if fetchErr != nil {
		data.Error = fetchFailedMessage

		return data, nil
	}

	chart, err := s.ChartHTML()
	if err != nil {
		return pageData{}, err
	}

	data.Chart = chart
	data.SizeKeys = s.sizeKeyLinks()
	data.Charts = s.chartLinks()
	data.Scales = s.scaleLinks()
	data.Artifacts = s.artifactToggles()
	data.Groups = s.groupLinks()

	all, allPath := s.ChangeArtifacts([]string{filter.AllToken})
	data.AllHref = all.href(allPath)

	none, nonePath := s.ChangeArtifacts(nil)
	data.NoneHref = none.href(nonePath)

	data.Builds = s.buildLinks()

	cmp := s.Comparator()
	data.Headers = s.columnHeaders()
	data.Rows = s.tableRows(cmp)
	data.Summary = cmp.Summary(s.SizeKey)

	if selected, ok := s.SelectedBuild(); ok {
		data.Selected = &selected
	}

	return data, nil
}

// href joins a dashboard path with the view options of the current route.
func (s State) href(path string) string {
	if query := s.Route.RawQuery(); query != "" {
		return path + "?" + query
	}

	return path
}

func (s State) withRoute(route Route) string {
	next := s
	next.Route = route

	return next.href(s.Path())
}

func (s State) sizeKeyLinks() []link {
	kinds := build.SizeKinds(s.Builds)
	links := make([]link, 0, len(kinds))

	for _, kind := range kinds {
		route := s.Route
		route.SizeKey = kind
		links = append(links, link{Label: kind, Href: s.withRoute(route)})
	}

	return links
}

func (s State) chartLinks() []link {
	links := make([]link, 0, 2)

	for _, chart := range []ChartType{ChartBar, ChartArea} {
		route := s.Route
		route.Chart = chart
		links = append(links, link{Label: string(chart), Href: s.withRoute(route)})
	}

	return links
}

func (s State) scaleLinks() []link {
	links := make([]link, 0, 2)

	for _, scale := range []YScale{YScaleLinear, YScaleLog} {
		route := s.Route
		route.YScale = scale
		links = append(links, link{Label: string(scale), Href: s.withRoute(route)})
	}

	return links
}

func (s State) artifactToggles() []artifactToggle {
	toggles := make([]artifactToggle, 0, len(s.FilteredArtifactNames))

	for _, name := range s.FilteredArtifactNames {
		active := containsString(s.ActiveArtifactNames, name)
		next, path := s.ChangeArtifacts(s.toggled(name))

		toggles = append(toggles, artifactToggle{
			Name:   name,
			Color:  s.ColorFor(name),
			Active: active,
			Href:   next.href(path),
		})
	}

	return toggles
}

func (s State) groupLinks() []link {
	names := s.ToggleGroupNames()
	links := make([]link, 0, len(names))

	for _, name := range names {
		next, path := s.ToggleGroup(name)
		links = append(links, link{Label: name, Href: next.href(path)})
	}

	return links
}

func (s State) buildLinks() []buildLink {
	links := make([]buildLink, len(s.Builds))

	for i, b := range s.Builds {
		_, compared := findBuild(s.CompareBuilds, b.Revision())
		next, path := s.SelectBuild(b.Revision())

		links[i] = buildLink{Build: b, Compared: compared, Href: next.href(path)}
	}

	return links
}

func (s State) columnHeaders() []columnHeader {
	headers := make([]columnHeader, len(s.CompareBuilds))

	for i, b := range s.CompareBuilds {
		revision := build.ShortRevision(b.Revision())
		next, path := s.RemoveRevision(b.Revision())

		headers[i] = columnHeader{
			Revision:   revision,
			RemoveHref: next.href(path),
			InfoHref:   s.infoHref(revision),
		}
	}

	return headers
}

func (s State) infoHref(revision string) string {
	info := "info=" + url.QueryEscape(revision)

	if query := s.Route.RawQuery(); query != "" {
		return s.Path() + "?" + query + "&" + info
	}

	return s.Path() + "?" + info
}

func (s State) tableRows(cmp *comparator.Comparator) []tableRow {
	if len(cmp.Builds()) == 0 {
		return nil
	}

	rows := make([]tableRow, 0, len(cmp.Rows())+1)
	rows = append(rows, s.tableRow(cmp.Total(), true))

	for _, row := range cmp.Rows() {
		rows = append(rows, s.tableRow(row, false))
	}

	return rows
}

func (s State) tableRow(row comparator.Row, total bool) tableRow {
	out := tableRow{Name: row.Name, Total: total, Active: total}

	if !total {
		out.Active = containsString(s.ActiveArtifactNames, row.Name)
		next, path := s.ChangeArtifacts(s.toggled(row.Name))
		out.ToggleHref = next.href(path)
	}

	out.Cells = make([]tableCell, 0, len(row.Sizes))
	if len(row.Sizes) > 0 {
		size := row.Sizes[0][s.SizeKey]
		out.Cells = append(out.Cells, tableCell{Label: format.Bytes(size), Title: format.ByteCount(size)})
	}

	for _, cell := range row.Deltas {
		out.Cells = append(out.Cells, tableCell{
			Label:      comparator.CellLabel(cell, s.SizeKey),
			Title:      comparator.CellTitle(cell, s.SizeKey),
			Background: template.CSS(colorscale.DeltaColor(cell, s.SizeKey).CSS()), //nolint:gosec // computed rgba().
		})
	}

	return out
}

// toggled flips name in the active set, keeping the filtered order.
func (s State) toggled(name string) []string {
	out := make([]string, 0, len(s.ActiveArtifactNames)+1)

	for _, item := range s.FilteredArtifactNames {
		active := containsString(s.ActiveArtifactNames, item)
		if item == name {
			active = !active
		}

		if active {
			out = append(out, item)
		}
	}

	return out
}
