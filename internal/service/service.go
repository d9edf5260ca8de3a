// Package service adapts the versioned Kylin REST APIs to one interface.
// Kylin speaks v1, KE3 speaks the enveloped v2 API and KE4 the v4 API.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/kylinctl/kylinctl/internal/apperrors"
	"github.com/kylinctl/kylinctl/internal/client"
	"github.com/kylinctl/kylinctl/internal/config"
	"github.com/kylinctl/kylinctl/internal/schema"
)

// Requester is the transport a service sends requests through.
// *client.Client satisfies it.
type Requester interface {
	Get(ctx context.Context, endpoint string, params url.Values, out any) error
	Post(ctx context.Context, endpoint string, params url.Values, body, out any) error
	Put(ctx context.Context, endpoint string, params url.Values, body, out any) error
	Delete(ctx context.Context, endpoint string, params url.Values, out any) error
}

var _ Requester = (*client.Client)(nil)

// Service is the metadata, query and job surface of one project.
type Service interface {
	Version() string
	Project() string

	Query(ctx context.Context, sql string, opts QueryOptions) (*schema.QueryResult, error)
	Projects(ctx context.Context) ([]schema.Project, error)
	// TablesAndColumns returns the query catalog keyed "SCHEMA.TABLE".
	TablesAndColumns(ctx context.Context) (schema.TableCatalog, error)
	// TablesInHive returns the loaded source tables keyed "DATABASE.TABLE".
	TablesInHive(ctx context.Context) (map[string]schema.TableDesc, error)

	CubeDesc(ctx context.Context, name string) (*schema.CubeDesc, error)
	ModelDesc(ctx context.Context, name string) (*schema.ModelDesc, error)
	V4ModelDesc(ctx context.Context, name string) (*schema.V4ModelDesc, error)
	Models(ctx context.Context) ([]schema.ModelDesc, error)
	Cubes(ctx context.Context) ([]schema.CubeInfo, error)
	// CubeNames returns the names of READY cubes.
	CubeNames(ctx context.Context) ([]string, error)

	Authentication(ctx context.Context) (*schema.UserDetails, error)

	Jobs(ctx context.Context, f JobFilter) ([]schema.JobDesc, error)
	JobDesc(ctx context.Context, id string) (*schema.JobDesc, error)
	MaintainJob(ctx context.Context, id, action string) (*schema.JobDesc, error)
	DropJob(ctx context.Context, id string) error
}

// QueryOptions are the paging options of a query.
type QueryOptions struct {
	Limit         int
	Offset        int
	AcceptPartial bool
}

// DefaultQueryOptions returns a limit of 50000 from offset 0.
func DefaultQueryOptions() QueryOptions {
	return QueryOptions{Limit: 50000}
}

// TimeFilter selects how far back a job listing reaches.
type TimeFilter int

const (
	LastDay TimeFilter = iota
	LastWeek
	LastMonth
	LastYear
	AllTime
)

var timeFilterNames = []string{"day", "week", "month", "year", "all"}

func (f TimeFilter) String() string {
	if f < 0 || int(f) >= len(timeFilterNames) {
		return "TimeFilter(" + itoa(int(f)) + ")"
	}
	return timeFilterNames[f]
}

// ParseTimeFilter accepts day, week, month, year or all.
func ParseTimeFilter(s string) (TimeFilter, error) {
	for i, name := range timeFilterNames {
		if strings.EqualFold(s, name) {
			return TimeFilter(i), nil
		}
	}
	return 0, fmt.Errorf("unknown time filter %q, want one of %s", s, strings.Join(timeFilterNames, ", "))
}

// JobFilter narrows a job listing.
type JobFilter struct {
	TimeFilter TimeFilter
	// Cube restricts v1/v2 listings to one cube.
	Cube   string
	Limit  int
	Offset int
}

// Job actions accepted by MaintainJob.
const (
	JobResume = "resume"
	JobCancel = "cancel"
	JobPause  = "pause"
)

// New returns the adapter for version.
func New(r Requester, project, version string) (Service, error) {
	switch version {
	case config.VersionKylin, "":
		return NewKylin(r, project), nil
	case config.VersionKE3:
		return NewKE3(r, project), nil
	case config.VersionKE4:
		return NewKE4(r, project), nil
	default:
		return nil, fmt.Errorf("unsupported service version %q: %w", version, apperrors.ErrUnsupportedAPI)
	}
}

func queryRequest(project, sql string, opts QueryOptions) schema.QueryRequest {
	return schema.QueryRequest{
		AcceptPartial: opts.AcceptPartial,
		Limit:         opts.Limit,
		Offset:        opts.Offset,
		Project:       project,
		SQL:           sql,
	}
}

// query posts a query and maps transport and in-band failures to ErrQuery.
func query(ctx context.Context, r Requester, project, sql string, opts QueryOptions) (*schema.QueryResult, error) {
	var res schema.QueryResult
	if err := r.Post(ctx, "/query", nil, queryRequest(project, sql, opts), &res); err != nil {
		if client.StatusOf(err) >= 500 {
			return nil, fmt.Errorf("%w: %w", apperrors.ErrQuery, err)
		}
		return nil, err
	}
	if res.ExceptionMessage != "" {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrQuery, res.ExceptionMessage)
	}
	return &res, nil
}

func catalog(ctx context.Context, r Requester, endpoint, project string) (schema.TableCatalog, error) {
	var tables []schema.CatalogTable
	if err := r.Get(ctx, endpoint, url.Values{"project": {project}}, &tables); err != nil {
		return nil, catalogError(project, err)
	}
	return schema.NewTableCatalog(tables), nil
}

func catalogError(project string, err error) error {
	if client.IsNotFound(err) {
		return fmt.Errorf("project %s: %w: %w", project, apperrors.ErrNoSuchTable, err)
	}
	return fmt.Errorf("project %s: listing tables: %w", project, err)
}

func hiveTables(tables []schema.TableDesc) map[string]schema.TableDesc {
	out := make(map[string]schema.TableDesc, len(tables))
	for _, t := range tables {
		out[t.FullName()] = t
	}
	return out
}

func authentication(ctx context.Context, r Requester) (*schema.UserDetails, error) {
	var raw map[string]json.RawMessage
	if err := r.Get(ctx, "/user/authentication", nil, &raw); err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("empty authentication response: %w", apperrors.ErrUnauthorized)
	}

	// v1 nests the user under userDetails.
	payload, err := json.Marshal(raw)
	if err != nil {
		return nil, err
	}
	if inner, ok := raw["userDetails"]; ok {
		payload = inner
	}

	var user schema.UserDetails
	if err := json.Unmarshal(payload, &user); err != nil {
		return nil, fmt.Errorf("%w: decoding user: %w", apperrors.ErrConfusedResponse, err)
	}
	if user.Username == "" {
		return nil, fmt.Errorf("authentication returned no user: %w", apperrors.ErrUnauthorized)
	}
	return &user, nil
}

func pageParams(project string) url.Values {
	return url.Values{
		"projectName": {project},
		"pageOffset":  {"0"},
		"pageSize":    {"1000"},
	}
}

func itoa(n int) string { return strconv.Itoa(n) }
