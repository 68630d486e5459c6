// Package client fetches builds from a buildtracker query API.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/Sumatoshi-tech/buildtracker/pkg/build"
)

const defaultTimeout = 30 * time.Second

// maxErrorBody bounds how much of a failed response is kept in the error.
const maxErrorBody = 512

// ErrUnexpectedStatus reports a non-200 API response.
var ErrUnexpectedStatus = errors.New("unexpected API status")

// Query selects builds. Revisions win over a time range, which wins over
// the recent-builds limit.
type Query struct {
	Revisions []string
	StartTime int64
	EndTime   int64
	Limit     string
}

// Result is a fetched build set with the union of its artifact names.
type Result struct {
	Builds        []build.Build
	ArtifactNames []string
}

// Client talks to the query API at a base URL.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) { c.httpClient = httpClient }
}

// New creates a Client for the API served at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Path returns the API path answering q.
func (q Query) Path() string {
	switch {
	case len(q.Revisions) > 0:
		escaped := make([]string, len(q.Revisions))
		for i, revision := range q.Revisions {
			escaped[i] = url.PathEscape(revision)
		}

		return "/api/builds/list/" + strings.Join(escaped, "/")
	case q.StartTime != 0 && q.EndTime != 0:
		return "/api/builds/time/" + strconv.FormatInt(q.StartTime, 10) + ".." + strconv.FormatInt(q.EndTime, 10)
	case q.Limit != "":
		return "/api/builds/" + url.PathEscape(q.Limit)
	default:
		return "/api/builds"
	}
}

// GetBuilds fetches the builds selected by q, oldest first.
func (c *Client) GetBuilds(ctx context.Context, q Query) (Result, error) {
	var builds []build.Build

	err := c.get(ctx, q.Path(), &builds)
	if err != nil {
		return Result{}, err
	}

	build.SortByTime(builds)

	return Result{Builds: builds, ArtifactNames: build.ArtifactNames(builds)}, nil
}

// GetBuild fetches a single build by revision.
func (c *Client) GetBuild(ctx context.Context, revision string) (build.Build, error) {
	var b build.Build

	err := c.get(ctx, "/api/build/"+url.PathEscape(revision), &b)
	if err != nil {
		return build.Build{}, err
	}

	return b, nil
}

func (c *Client) get(ctx context.Context, path string, into any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, http.NoBody)
	if err != nil {
		return fmt.Errorf("build request %s: %w", path, err)
	}

	req.Header.Set("Accept", "application/json")
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("get %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

		return fmt.Errorf("%w: get %s: %d %s", ErrUnexpectedStatus, path, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	decodeErr := json.NewDecoder(resp.Body).Decode(into)
	if decodeErr != nil {
		return fmt.Errorf("decode %s: %w", path, decodeErr)
	}

	return nil
}
