// Package build defines the recorded build and artifact size records served by
// the query API and consumed by the comparator.
package build

import (
	"errors"
	"fmt"
	"slices"
	"time"
)

// shortRevisionLen is the number of revision characters kept by ShortRevision.
const shortRevisionLen = 7

// Sentinel validation errors.
var (
	ErrInvalidBuild    = errors.New("invalid build")
	ErrMissingRevision = errors.New("build revision is required")
	ErrInvalidTime     = errors.New("build timestamp must be positive")
	ErrDuplicateName   = errors.New("duplicate artifact name")
)

// Meta holds the metadata recorded for one build.
type Meta struct {
	Revision       string `json:"revision"                 yaml:"revision"`
	ParentRevision string `json:"parentRevision,omitempty" yaml:"parentRevision,omitempty"`
	// Timestamp is the build time in Unix milliseconds.
	Timestamp int64  `json:"timestamp"         yaml:"timestamp"`
	Branch    string `json:"branch,omitempty"  yaml:"branch,omitempty"`
	Author    string `json:"author,omitempty"  yaml:"author,omitempty"`
	Subject   string `json:"subject,omitempty" yaml:"subject,omitempty"`
}

// Artifact is a named build output with one or more size measurements.
type Artifact struct {
	Name  string           `json:"name"  yaml:"name"`
	Hash  string           `json:"hash"  yaml:"hash"`
	Sizes map[string]int64 `json:"sizes" yaml:"sizes"`
}

// Size returns the artifact size for the given kind, or 0 when unmeasured.
func (a Artifact) Size(kind string) int64 {
	return a.Sizes[kind]
}

// Build is one recorded compilation result. Builds are immutable once fetched.
type Build struct {
	Meta      Meta       `json:"meta"      yaml:"meta"`
	Artifacts []Artifact `json:"artifacts" yaml:"artifacts"`
}

// Revision returns the build revision identifier.
func (b Build) Revision() string {
	return b.Meta.Revision
}

// ParentRevision returns the parent revision, or "" when the build has none.
func (b Build) ParentRevision() string {
	return b.Meta.ParentRevision
}

// Time returns the build timestamp.
func (b Build) Time() time.Time {
	return time.UnixMilli(b.Meta.Timestamp)
}

// Artifact looks up an artifact by name.
func (b Build) Artifact(name string) (Artifact, bool) {
	for _, artifact := range b.Artifacts {
		if artifact.Name == name {
			return artifact, true
		}
	}

	return Artifact{}, false
}

// Size returns the size of the named artifact, treating a missing artifact as 0.
func (b Build) Size(name, kind string) int64 {
	artifact, ok := b.Artifact(name)
	if !ok {
		return 0
	}

	return artifact.Size(kind)
}

// Hash returns the hash of the named artifact, or "" when it is missing.
func (b Build) Hash(name string) string {
	artifact, ok := b.Artifact(name)
	if !ok {
		return ""
	}

	return artifact.Hash
}

// ArtifactNames returns the artifact names of the build in recorded order.
func (b Build) ArtifactNames() []string {
	names := make([]string, len(b.Artifacts))
	for i, artifact := range b.Artifacts {
		names[i] = artifact.Name
	}

	return names
}

// TotalSize sums the given size kind over the named artifacts.
// A nil names slice sums every artifact of the build.
func (b Build) TotalSize(kind string, names []string) int64 {
	var total int64

	for _, artifact := range b.Artifacts {
		if names != nil && !slices.Contains(names, artifact.Name) {
			continue
		}

		total += artifact.Size(kind)
	}

	return total
}

// Validate checks that the build carries the fields required to store and compare it.
func (b Build) Validate() error {
	if b.Meta.Revision == "" {
		return fmt.Errorf("%w: %w", ErrInvalidBuild, ErrMissingRevision)
	}

	if b.Meta.Timestamp <= 0 {
		return fmt.Errorf("%w: %s: %w", ErrInvalidBuild, b.Meta.Revision, ErrInvalidTime)
	}

	seen := make(map[string]struct{}, len(b.Artifacts))

	for _, artifact := range b.Artifacts {
		if _, dup := seen[artifact.Name]; dup {
			return fmt.Errorf("%w: %s: %w %q", ErrInvalidBuild, b.Meta.Revision, ErrDuplicateName, artifact.Name)
		}

		seen[artifact.Name] = struct{}{}
	}

	return nil
}

// ArtifactNames returns the sorted union of artifact names across builds.
func ArtifactNames(builds []Build) []string {
	seen := make(map[string]struct{})

	for _, b := range builds {
		for _, artifact := range b.Artifacts {
			seen[artifact.Name] = struct{}{}
		}
	}

	return sortedKeys(seen)
}

// SizeKinds returns the sorted union of size kinds measured across builds.
func SizeKinds(builds []Build) []string {
	seen := make(map[string]struct{})

	for _, b := range builds {
		for _, artifact := range b.Artifacts {
			for kind := range artifact.Sizes {
				seen[kind] = struct{}{}
			}
		}
	}

	return sortedKeys(seen)
}

// ShortRevision truncates a revision to its conventional short form.
func ShortRevision(revision string) string {
	if len(revision) <= shortRevisionLen {
		return revision
	}

	return revision[:shortRevisionLen]
}

// SortByTime orders builds oldest first, breaking ties by revision.
func SortByTime(builds []Build) {
	slices.SortStableFunc(builds, func(a, b Build) int {
		if a.Meta.Timestamp != b.Meta.Timestamp {
			if a.Meta.Timestamp < b.Meta.Timestamp {
				return -1
			}

			return 1
		}

		if a.Meta.Revision < b.Meta.Revision {
			return -1
		}

		if a.Meta.Revision > b.Meta.Revision {
			return 1
		}

		return 0
	})
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for key := range set {
		keys = append(keys, key)
	}

	slices.Sort(keys)

	return keys
}
