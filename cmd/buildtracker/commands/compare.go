package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/buildtracker/internal/client"
	"github.com/Sumatoshi-tech/buildtracker/internal/config"
	"github.com/Sumatoshi-tech/buildtracker/internal/dashboard"
	"github.com/Sumatoshi-tech/buildtracker/internal/queries"
	"github.com/Sumatoshi-tech/buildtracker/internal/terminal"
	"github.com/Sumatoshi-tech/buildtracker/pkg/build"
	"github.com/Sumatoshi-tech/buildtracker/pkg/comparator"
)

// Output formats of the compare command.
const (
	FormatTable    = "table"
	FormatMarkdown = "markdown"
	FormatCSV      = "csv"
	FormatJSON     = "json"
)

// Sentinel errors of the compare command.
var (
	// ErrUnknownFormat reports an unsupported --format value.
	ErrUnknownFormat = errors.New("unknown output format")
	// ErrNoMatchingBuilds reports revisions that matched no stored build.
	ErrNoMatchingBuilds = errors.New("no builds match the given revisions")
)

// buildSource is where compare reads builds from: the API client or the
// local datastore.
type buildSource interface {
	dashboard.Fetcher
	GetBuild(ctx context.Context, revision string) (build.Build, error)
}

type compareOptions struct {
	apiURL    string
	storePath string
	limit     string
	format    string
	sizeKey   string
	mode      string
	noColor   bool
	list      bool
}

// NewCompareCommand creates the compare command.
func NewCompareCommand() *cobra.Command {
	opts := &compareOptions{}

	cmd := &cobra.Command{
		Use:   "compare [revision...]",
		Short: "Compare builds in the terminal",
		Long: `Compare the given revisions, or the most recent builds, oldest first.
Builds come from the local datastore, or from a running server with --api.
A revision may be shortened to any prefix that names a single build.

Examples:
  buildtracker compare
  buildtracker compare --limit 5 --mode consecutive
  buildtracker compare --list --limit 50
  buildtracker compare --api http://localhost:8080 abc1234 def5678 --format markdown`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompare(cmd, args, opts)
		},
	}

	cmd.Flags().StringVar(&opts.apiURL, "api", "", "query API base URL; empty reads the local datastore")
	cmd.Flags().StringVar(&opts.storePath, "store", "", "SQLite database path (overrides store.path)")
	cmd.Flags().StringVar(&opts.limit, "limit", "", "number of recent builds when no revision is given")
	cmd.Flags().StringVar(&opts.format, "format", FormatTable, "output format: table, markdown, csv, json")
	cmd.Flags().StringVar(&opts.sizeKey, "size", "", "size kind (overrides dashboard.size_key)")
	cmd.Flags().StringVar(&opts.mode, "mode", "", "baseline or consecutive (overrides dashboard.mode)")
	cmd.Flags().BoolVar(&opts.noColor, "no-color", false, "disable colored output")
	cmd.Flags().BoolVar(&opts.list, "list", false, "list the builds with their total size instead of comparing them")

	return cmd
}

func runCompare(cmd *cobra.Command, args []string, opts *compareOptions) (err error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	dashCfg, err := DashboardConfig(cfg)
	if err != nil {
		return err
	}

	source, closeSource, err := newFetcher(cfg, opts.apiURL, opts.storePath)
	if err != nil {
		return err
	}

	defer func() { err = errors.Join(err, closeSource()) }()

	builds, err := fetchBuilds(cmd.Context(), source, args, opts.limit)
	if err != nil {
		return err
	}

	mode := dashCfg.Mode
	if opts.mode != "" {
		mode = comparator.ParseMode(opts.mode)
	}

	sizeKey := dashCfg.SizeKey
	if opts.sizeKey != "" {
		sizeKey = opts.sizeKey
	}

	termCfg := terminal.NewConfig()
	if opts.noColor {
		termCfg.NoColor = true
	}

	if opts.list {
		return terminal.NewRenderer(termCfg).RenderBuilds(cmd.OutOrStdout(), builds, sizeKey)
	}

	cmp := comparator.New(builds,
		comparator.WithArtifactFilters(dashCfg.ArtifactFilters),
		comparator.WithMode(mode),
	)

	return writeComparison(cmd.OutOrStdout(), cmp, sizeKey, opts.format, termCfg)
}

// fetchBuilds looks up one revision directly so an unknown or ambiguous
// revision is reported, and any other selection through the list lookups.
func fetchBuilds(ctx context.Context, source buildSource, revisions []string, limit string) ([]build.Build, error) {
	if len(revisions) == 1 {
		b, err := source.GetBuild(ctx, revisions[0])
		if err != nil {
			return nil, fmt.Errorf("fetch build %s: %w", revisions[0], err)
		}

		return []build.Build{b}, nil
	}

	result, err := source.GetBuilds(ctx, client.Query{Revisions: revisions, Limit: limit})
	if err != nil {
		return nil, fmt.Errorf("fetch builds: %w", err)
	}

	if len(revisions) > 0 && len(result.Builds) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoMatchingBuilds, strings.Join(revisions, " "))
	}

	return result.Builds, nil
}

// newFetcher returns a client for apiURL, or a fetcher over the local store.
// The returned func releases the store.
func newFetcher(cfg *config.Config, apiURL, storePath string) (buildSource, func() error, error) {
	if apiURL != "" {
		return client.New(apiURL), func() error { return nil }, nil
	}

	st, err := openStore(cfg, storePath)
	if err != nil {
		return nil, nil, err
	}

	return dashboard.NewQueriesFetcher(queries.FromSource(st)), st.Close, nil
}

func writeComparison(w io.Writer, cmp *comparator.Comparator, sizeKey, outputFormat string, termCfg terminal.Config) error {
	var out string

	switch strings.ToLower(outputFormat) {
	case FormatTable:
		return terminal.NewRenderer(termCfg).RenderComparison(w, cmp, sizeKey)
	case FormatMarkdown:
		out = cmp.ToMarkdown(sizeKey)
	case FormatCSV:
		out = cmp.ToCSV(sizeKey)
	case FormatJSON:
		data, err := cmp.ToJSON()
		if err != nil {
			return err
		}

		out = string(data)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, outputFormat)
	}

	_, err := fmt.Fprintln(w, out)
	if err != nil {
		return fmt.Errorf("write comparison: %w", err)
	}

	return nil
}
