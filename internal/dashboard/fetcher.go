package dashboard

import (
	"context"
	"strings"

	"github.com/Sumatoshi-tech/buildtracker/internal/client"
	"github.com/Sumatoshi-tech/buildtracker/internal/queries"
	"github.com/Sumatoshi-tech/buildtracker/pkg/build"
)

// QueriesFetcher answers dashboard lookups straight from the datastore
// queries, for a dashboard served next to the API.
type QueriesFetcher struct {
	queries queries.Queries
}

// NewQueriesFetcher creates a Fetcher over q.
func NewQueriesFetcher(q queries.Queries) *QueriesFetcher {
	return &QueriesFetcher{queries: q}
}

// GetBuilds runs the lookup selected by q, like the API client would.
func (qf *QueriesFetcher) GetBuilds(ctx context.Context, q client.Query) (client.Result, error) {
	var (
		builds []build.Build
		err    error
	)

	switch {
	case len(q.Revisions) > 0:
		builds, err = qf.queries.Builds.ByRevisions(ctx, q.Revisions)
	case q.StartTime != 0 && q.EndTime != 0:
		builds, err = qf.queries.Builds.ByTimeRange(ctx, q.StartTime, q.EndTime)
	default:
		builds, err = qf.queries.Builds.Recent(ctx, strings.TrimSpace(q.Limit))
	}

	if err != nil {
		return client.Result{}, err
	}

	build.SortByTime(builds)

	return client.Result{Builds: builds, ArtifactNames: build.ArtifactNames(builds)}, nil
}

// GetBuild returns one build by full or short revision.
func (qf *QueriesFetcher) GetBuild(ctx context.Context, revision string) (build.Build, error) {
	return qf.queries.Build.ByRevision(ctx, revision)
}
