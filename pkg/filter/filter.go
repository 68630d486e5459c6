// Package filter derives the visible artifact set and the compared builds from
// configured exclusion filters and URL path segments.
package filter

import (
	"fmt"
	"net/url"
	"regexp"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/Sumatoshi-tech/buildtracker/pkg/build"
)

// URL tokens for the artifact segment.
const (
	// AllToken selects every filtered artifact.
	AllToken = "All"
	// NoneToken selects no artifact.
	NoneToken = "None"

	listSeparator = "+"
)

// Filter excludes artifact names it matches. *regexp.Regexp satisfies it.
type Filter interface {
	MatchString(s string) bool
}

// Compile compiles exclusion patterns into filters.
func Compile(patterns []string) ([]Filter, error) {
	filters := make([]Filter, 0, len(patterns))

	for _, pattern := range patterns {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("compile artifact filter %q: %w", pattern, err)
		}

		filters = append(filters, re)
	}

	return filters, nil
}

// FilterArtifactNames drops every name matched by any filter, keeping order.
func FilterArtifactNames(names []string, filters []Filter) []string {
	out := make([]string, 0, len(names))

	for _, name := range names {
		if !matchesAny(name, filters) {
			out = append(out, name)
		}
	}

	return out
}

func matchesAny(name string, filters []Filter) bool {
	for _, f := range filters {
		if f.MatchString(name) {
			return true
		}
	}

	return false
}

// ActiveArtifactNames decodes the artifact URL segment against the known names.
// The segment is AllToken or a "+"-joined list of percent-encoded names.
// An empty segment, a decoding failure or an empty selection yields allNames.
func ActiveArtifactNames(segment string, allNames []string) []string {
	if segment == "" {
		return allNames
	}

	selected := make(map[string]struct{})

	for _, token := range strings.Split(segment, listSeparator) {
		name, err := url.PathUnescape(token)
		if err != nil || !utf8.ValidString(name) {
			return allNames
		}

		if name == "" || name == AllToken {
			continue
		}

		selected[name] = struct{}{}
	}

	if len(selected) == 0 {
		return allNames
	}

	active := make([]string, 0, len(selected))

	for _, name := range allNames {
		if _, ok := selected[name]; ok {
			active = append(active, name)
		}
	}

	return active
}

// EncodeArtifactNames builds the artifact URL segment: AllToken when nothing is
// narrowed, NoneToken when the selection is empty, otherwise the encoded list.
func EncodeArtifactNames(active, filtered []string) string {
	if len(active) == len(filtered) {
		return AllToken
	}

	if len(active) == 0 {
		return NoneToken
	}

	encoded := make([]string, len(active))
	for i, name := range active {
		encoded[i] = escapeSegment(name)
	}

	return strings.Join(encoded, listSeparator)
}

// escapeSegment percent-encodes a name, including "+" which separates list items.
func escapeSegment(name string) string {
	return strings.ReplaceAll(url.PathEscape(name), listSeparator, "%2B")
}

// CompareRevisions splits the compare URL segment into short revisions.
func CompareRevisions(segment string) []string {
	var revisions []string

	for _, token := range strings.Split(segment, listSeparator) {
		if token != "" {
			revisions = append(revisions, token)
		}
	}

	return revisions
}

// CompareBuilds selects the builds named by the compare URL segment, matching
// either their short or full revision. Builds keep their original order.
func CompareBuilds(segment string, builds []build.Build) []build.Build {
	revisions := CompareRevisions(segment)
	if len(revisions) == 0 {
		return nil
	}

	var selected []build.Build

	for _, b := range builds {
		if slices.Contains(revisions, build.ShortRevision(b.Revision())) || slices.Contains(revisions, b.Revision()) {
			selected = append(selected, b)
		}
	}

	return selected
}

// Path builds the dashboard URL path for the current selection.
func Path(revisions string, active, filtered []string, compare []build.Build) string {
	shas := make([]string, len(compare))
	for i, b := range compare {
		shas[i] = build.ShortRevision(b.Revision())
	}

	slices.Sort(shas)

	prefix := ""
	if revisions != "" {
		prefix = "/revisions/" + revisions
	}

	return prefix + "/" + EncodeArtifactNames(active, filtered) + "/" + strings.Join(shas, listSeparator)
}
