package dashboard

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// ErrUnknownRoute reports a dashboard path with too many segments.
var ErrUnknownRoute = errors.New("unknown dashboard route")

const (
	revisionsSegment  = "revisions"
	revisionSeparator = ","
	maxRouteSegments  = 2
)

// ChartType selects how build sizes are drawn.
type ChartType string

// Chart types.
const (
	ChartAuto ChartType = ""
	ChartBar  ChartType = "bar"
	ChartArea ChartType = "area"
)

// YScale selects the chart's value axis.
type YScale string

// Value axis scales.
const (
	YScaleLinear YScale = "linear"
	YScaleLog    YScale = "log"
)

// Route is a parsed dashboard URL:
//
//	/[revisions/{r1,r2,...}/][{artifacts}[/{compare}]]?size=&chart=&yscale=&start=&end=&filter=&info=
//
// Artifacts and Revisions stay percent-encoded; the filter layer decodes them.
// Info and Filters are one-shot actions and are not carried into links.
type Route struct {
	Revisions string
	Artifacts string
	Compare   string

	SizeKey   string
	Chart     ChartType
	YScale    YScale
	StartTime int64
	EndTime   int64

	// Filters replaces the configured artifact filter patterns when set.
	Filters []string
	// Info is the compared revision whose details are shown.
	Info string
}

// ParseRoute parses a request URL into a Route. Unknown query values fall
// back to their defaults.
func ParseRoute(u *url.URL) (Route, error) {
	var route Route

	trimmed := strings.Trim(u.EscapedPath(), "/")

	var segments []string
	if trimmed != "" {
		segments = strings.Split(trimmed, "/")
	}

	if len(segments) > 0 && segments[0] == revisionsSegment {
		if len(segments) < 2 || segments[1] == "" {
			return Route{}, fmt.Errorf("%w: %s", ErrUnknownRoute, u.Path)
		}

		route.Revisions = segments[1]
		segments = segments[2:]
	}

	if len(segments) > maxRouteSegments {
		return Route{}, fmt.Errorf("%w: %s", ErrUnknownRoute, u.Path)
	}

	if len(segments) > 0 {
		route.Artifacts = segments[0]
	}

	if len(segments) > 1 {
		route.Compare = segments[1]
	}

	values := u.Query()

	route.SizeKey = values.Get("size")

	switch chart := ChartType(values.Get("chart")); chart {
	case ChartBar, ChartArea:
		route.Chart = chart
	default:
		route.Chart = ChartAuto
	}

	route.YScale = YScaleLinear
	if YScale(values.Get("yscale")) == YScaleLog {
		route.YScale = YScaleLog
	}

	route.StartTime = parseMillis(values.Get("start"))
	route.EndTime = parseMillis(values.Get("end"))
	route.Filters = values["filter"]
	route.Info = values.Get("info")

	return route, nil
}

func parseMillis(raw string) int64 {
	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || ms < 0 {
		return 0
	}

	return ms
}

// RevisionList returns the decoded revisions pinned by the /revisions/ prefix.
func (r Route) RevisionList() []string {
	if r.Revisions == "" {
		return nil
	}

	decoded, err := url.PathUnescape(r.Revisions)
	if err != nil {
		decoded = r.Revisions
	}

	var revisions []string

	for revision := range strings.SplitSeq(decoded, revisionSeparator) {
		if revision != "" {
			revisions = append(revisions, revision)
		}
	}

	return revisions
}

// RawQuery encodes the view options, omitting defaults.
func (r Route) RawQuery() string {
	values := url.Values{}

	if r.SizeKey != "" {
		values.Set("size", r.SizeKey)
	}

	if r.Chart != ChartAuto {
		values.Set("chart", string(r.Chart))
	}

	if r.YScale == YScaleLog {
		values.Set("yscale", string(r.YScale))
	}

	if r.StartTime != 0 && r.EndTime != 0 {
		values.Set("start", strconv.FormatInt(r.StartTime, 10))
		values.Set("end", strconv.FormatInt(r.EndTime, 10))
	}

	return values.Encode()
}
