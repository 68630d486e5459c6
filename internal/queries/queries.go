// Package queries declares the datastore lookups the HTTP API delegates to.
package queries

import (
	"context"

	"github.com/Sumatoshi-tech/buildtracker/pkg/build"
)

// BuildQueries looks up a single build.
type BuildQueries interface {
	ByRevision(ctx context.Context, revision string) (build.Build, error)
}

// BuildsQueries looks up sets of builds, ordered oldest first.
type BuildsQueries interface {
	ByRevisions(ctx context.Context, revisions []string) ([]build.Build, error)
	ByRevisionRange(ctx context.Context, startRevision, endRevision string) ([]build.Build, error)
	ByTimeRange(ctx context.Context, startTime, endTime int64) ([]build.Build, error)
	// Recent returns the latest builds. The limit is passed through unparsed;
	// an empty limit selects the implementation default.
	Recent(ctx context.Context, limit string) ([]build.Build, error)
}

// Queries bundles the single- and multi-build lookups.
type Queries struct {
	Build  BuildQueries
	Builds BuildsQueries
}

// Source is implemented by datastores serving both lookup groups.
type Source interface {
	BuildQueries
	BuildsQueries
}

// FromSource builds Queries backed by one datastore.
func FromSource(src Source) Queries {
	return Queries{Build: src, Builds: src}
}
