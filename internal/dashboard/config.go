// Package dashboard derives the build-size dashboard state from the URL and
// the fetched builds, and renders it as an HTML page with a chart and a
// comparison table.
package dashboard

import (
	"fmt"

	"github.com/Sumatoshi-tech/buildtracker/pkg/comparator"
	"github.com/Sumatoshi-tech/buildtracker/pkg/filter"
)

// DefaultSizeKey is the size kind shown when nothing else is configured.
const DefaultSizeKey = "gzip"

// Config holds the dashboard settings threaded into every constructor.
type Config struct {
	// Title is the page heading.
	Title string
	// ArtifactFilters hide matching artifacts by default.
	ArtifactFilters []filter.Filter
	// ToggleGroups name sets of artifacts that can be activated together.
	ToggleGroups map[string][]string
	// SizeKey is the default size kind.
	SizeKey string
	// Mode pairs each build with the baseline or with its predecessor.
	Mode comparator.Mode
}

// NewConfig compiles the artifact filter patterns into a Config.
func NewConfig(patterns []string, toggleGroups map[string][]string, sizeKey string, mode comparator.Mode) (Config, error) {
	filters, err := filter.Compile(patterns)
	if err != nil {
		return Config{}, fmt.Errorf("compile artifact filters: %w", err)
	}

	if sizeKey == "" {
		sizeKey = DefaultSizeKey
	}

	return Config{
		Title:           "Build Tracker",
		ArtifactFilters: filters,
		ToggleGroups:    toggleGroups,
		SizeKey:         sizeKey,
		Mode:            mode,
	}, nil
}
