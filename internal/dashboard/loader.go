package dashboard

import (
	"context"
	"errors"
	"sync"

	"github.com/Sumatoshi-tech/buildtracker/internal/client"
)

// ErrStale reports a fetch that finished after a newer one had started.
var ErrStale = errors.New("superseded by a newer fetch")

// Status is the state of the most recent fetch.
type Status int

// Fetch statuses.
const (
	StatusNone Status = iota
	StatusLoading
	StatusLoaded
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusLoading:
		return "loading"
	case StatusLoaded:
		return "loaded"
	case StatusFailed:
		return "failed"
	case StatusNone:
		return "none"
	default:
		return "unknown"
	}
}

// Fetcher runs a build lookup. [*client.Client] satisfies it.
type Fetcher interface {
	GetBuilds(ctx context.Context, q client.Query) (client.Result, error)
}

// Snapshot is the loader's view at one point in time.
type Snapshot struct {
	Generation uint64
	Status     Status
	Result     client.Result
	Err        error
}

// Loader runs fetches and keeps the result of the newest one. Every fetch
// takes the next generation number; a response whose generation is no
// longer the latest is dropped, so a slow early fetch never overwrites a
// later one. A failed fetch keeps the previous result.
type Loader struct {
	fetcher Fetcher

	mu       sync.Mutex
	snapshot Snapshot
}

// NewLoader creates a Loader backed by fetcher.
func NewLoader(fetcher Fetcher) *Loader {
	return &Loader{fetcher: fetcher}
}

// Load fetches q and, if no newer fetch started meanwhile, publishes the
// outcome. It returns the published snapshot, or ErrStale when the response
// was dropped.
func (l *Loader) Load(ctx context.Context, q client.Query) (Snapshot, error) {
	l.mu.Lock()
	l.snapshot.Generation++
	generation := l.snapshot.Generation
	l.snapshot.Status = StatusLoading
	l.snapshot.Err = nil
	l.mu.Unlock()

	result, err := l.fetcher.GetBuilds(ctx, q)

	l.mu.Lock()
	defer l.mu.Unlock()

	if generation != l.snapshot.Generation {
		return l.snapshot, ErrStale
	}

	if err != nil {
		l.snapshot.Status = StatusFailed
		l.snapshot.Err = err

		return l.snapshot, err
	}

	l.snapshot.Status = StatusLoaded
	l.snapshot.Result = result

	return l.snapshot, nil
}

// Snapshot returns the current view.
func (l *Loader) Snapshot() Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.snapshot
}
