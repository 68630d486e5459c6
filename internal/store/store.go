// Package store is the SQLite datastore behind the build query API.
package store

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	_ "github.com/mattn/go-sqlite3" // registers the sqlite3 driver.

	"github.com/Sumatoshi-tech/buildtracker/pkg/build"
)

//go:embed schema.sql
var schemaSQL string

// DefaultRecentLimit is the number of builds returned by Recent without a limit.
const DefaultRecentLimit = 20

// Sentinel errors.
var (
	ErrNotFound          = errors.New("build not found")
	ErrAmbiguousRevision = errors.New("revision prefix matches several builds")
	ErrInvalidLimit      = errors.New("invalid recent builds limit")
)

// matchesRevision selects rows whose revision starts with the bound value.
// instr keeps "%" and "_" in revisions literal, unlike LIKE.
const matchesRevision = `instr(revision, ?) = 1`

// Store serves build lookups from a SQLite database.
type Store struct {
	db          *sql.DB
	recentLimit int
}

// Option configures a Store.
type Option func(*Store)

// WithRecentLimit sets the default number of builds returned by Recent.
func WithRecentLimit(limit int) Option {
	return func(s *Store) {
		if limit > 0 {
			s.recentLimit = limit
		}
	}
}

// Open creates or opens the database at path and applies the schema.
// Use ":memory:" for a throwaway database.
func Open(path string, opts ...Option) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// SQLite allows a single writer; one connection also keeps ":memory:" databases shared.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	initErr := initialize(db)
	if initErr != nil {
		return nil, errors.Join(initErr, db.Close())
	}

	s := &Store{db: db, recentLimit: DefaultRecentLimit}
	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

func initialize(db *sql.DB) error {
	pingErr := db.Ping()
	if pingErr != nil {
		return fmt.Errorf("connect to database: %w", pingErr)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}

	for _, pragma := range pragmas {
		_, execErr := db.Exec(pragma)
		if execErr != nil {
			return fmt.Errorf("execute %q: %w", pragma, execErr)
		}
	}

	_, schemaErr := db.Exec(schemaSQL)
	if schemaErr != nil {
		return fmt.Errorf("apply schema: %w", schemaErr)
	}

	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping reports whether the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	err := s.db.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("ping database: %w", err)
	}

	return nil
}

// Insert stores a build, replacing any build with the same revision.
func (s *Store) Insert(ctx context.Context, b build.Build) error {
	return insert(ctx, s.db, b)
}

// execer is satisfied by *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insert(ctx context.Context, db execer, b build.Build) error {
	validateErr := b.Validate()
	if validateErr != nil {
		return validateErr
	}

	data, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("encode build %s: %w", b.Revision(), err)
	}

	_, err = db.ExecContext(ctx, `
		INSERT OR REPLACE INTO builds (revision, parent_revision, timestamp, data)
		VALUES (?, ?, ?, ?)
	`, b.Revision(), b.ParentRevision(), b.Meta.Timestamp, string(data))
	if err != nil {
		return fmt.Errorf("insert build %s: %w", b.Revision(), err)
	}

	return nil
}

// Count returns the number of stored builds.
func (s *Store) Count(ctx context.Context) (int, error) {
	var count int

	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM builds`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count builds: %w", err)
	}

	return count, nil
}

// ByRevision returns the build with the given revision. A short revision
// matches when it is the prefix of exactly one stored revision.
func (s *Store) ByRevision(ctx context.Context, revision string) (build.Build, error) {
	_, data, err := s.resolve(ctx, revision)
	if err != nil {
		return build.Build{}, err
	}

	return decodeBuild(data)
}

// ByRevisions returns the builds whose revision starts with any of the given
// revisions, oldest first. Unknown revisions are skipped.
func (s *Store) ByRevisions(ctx context.Context, revisions []string) ([]build.Build, error) {
	conditions := make([]string, 0, len(revisions))
	args := make([]any, 0, len(revisions))

	for _, revision := range revisions {
		if revision == "" {
			continue
		}

		conditions = append(conditions, matchesRevision)
		args = append(args, revision)
	}

	if len(conditions) == 0 {
		return []build.Build{}, nil
	}

	return s.queryBuilds(ctx, `
		SELECT data FROM builds
		WHERE `+strings.Join(conditions, " OR ")+`
		ORDER BY timestamp ASC, revision ASC
	`, args...)
}

// ByRevisionRange returns every build recorded between the two revisions,
// inclusive, oldest first. The revisions may be given in either order.
func (s *Store) ByRevisionRange(ctx context.Context, startRevision, endRevision string) ([]build.Build, error) {
	start, err := s.timestampOf(ctx, startRevision)
	if err != nil {
		return nil, err
	}

	end, err := s.timestampOf(ctx, endRevision)
	if err != nil {
		return nil, err
	}

	return s.ByTimeRange(ctx, min(start, end), max(start, end))
}

// ByTimeRange returns the builds with timestamps in [startTime, endTime], oldest first.
func (s *Store) ByTimeRange(ctx context.Context, startTime, endTime int64) ([]build.Build, error) {
	return s.queryBuilds(ctx, `
		SELECT data FROM builds
		WHERE timestamp BETWEEN ? AND ?
		ORDER BY timestamp ASC, revision ASC
	`, startTime, endTime)
}

// Recent returns the latest builds, oldest first. An empty limit uses the
// store default; anything else must be a positive integer.
func (s *Store) Recent(ctx context.Context, limit string) ([]build.Build, error) {
	count := s.recentLimit

	if limit != "" {
		parsed, err := strconv.Atoi(limit)
		if err != nil || parsed <= 0 {
			return nil, fmt.Errorf("%w: %q", ErrInvalidLimit, limit)
		}

		count = parsed
	}

	builds, err := s.queryBuilds(ctx, `
		SELECT data FROM builds
		ORDER BY timestamp DESC, revision DESC
		LIMIT ?
	`, count)
	if err != nil {
		return nil, err
	}

	slices.Reverse(builds)

	return builds, nil
}

func (s *Store) timestampOf(ctx context.Context, revision string) (int64, error) {
	timestamp, _, err := s.resolve(ctx, revision)

	return timestamp, err
}

// resolve finds the single build named by a full or short revision. An exact
// match wins over longer revisions sharing the prefix.
func (s *Store) resolve(ctx context.Context, revision string) (timestamp int64, data string, err error) {
	if revision == "" {
		return 0, "", fmt.Errorf("%w: empty revision", ErrNotFound)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT revision, timestamp, data FROM builds
		WHERE `+matchesRevision+`
		ORDER BY revision = ? DESC, revision ASC
		LIMIT 2
	`, revision, revision)
	if err != nil {
		return 0, "", fmt.Errorf("query build %s: %w", revision, err)
	}
	defer rows.Close()

	var matched []string

	for rows.Next() {
		var (
			found          string
			foundTimestamp int64
			foundData      string
		)

		scanErr := rows.Scan(&found, &foundTimestamp, &foundData)
		if scanErr != nil {
			return 0, "", fmt.Errorf("scan build %s: %w", revision, scanErr)
		}

		if len(matched) == 0 {
			timestamp, data = foundTimestamp, foundData
		}

		matched = append(matched, found)
	}

	iterErr := rows.Err()
	if iterErr != nil {
		return 0, "", fmt.Errorf("query build %s: %w", revision, iterErr)
	}

	switch {
	case len(matched) == 0:
		return 0, "", fmt.Errorf("%w: %s", ErrNotFound, revision)
	case matched[0] != revision && len(matched) > 1:
		return 0, "", fmt.Errorf("%w: %s (%s)", ErrAmbiguousRevision, revision, strings.Join(matched, ", "))
	}

	return timestamp, data, nil
}

func (s *Store) queryBuilds(ctx context.Context, query string, args ...any) ([]build.Build, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query builds: %w", err)
	}
	defer rows.Close()

	builds := []build.Build{}

	for rows.Next() {
		var data string

		scanErr := rows.Scan(&data)
		if scanErr != nil {
			return nil, fmt.Errorf("scan build: %w", scanErr)
		}

		b, decodeErr := decodeBuild(data)
		if decodeErr != nil {
			return nil, decodeErr
		}

		builds = append(builds, b)
	}

	iterErr := rows.Err()
	if iterErr != nil {
		return nil, fmt.Errorf("iterate builds: %w", iterErr)
	}

	return builds, nil
}

func decodeBuild(data string) (build.Build, error) {
	var b build.Build

	err := json.Unmarshal([]byte(data), &b)
	if err != nil {
		return build.Build{}, fmt.Errorf("decode stored build: %w", err)
	}

	return b, nil
}
