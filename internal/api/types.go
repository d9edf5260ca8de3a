package api

import (
	"github.com/kylinctl/kylinctl/internal/job"
	"github.com/kylinctl/kylinctl/pkg/kylin"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthResponse is the API response for GET /api/health.
type HealthResponse struct {
	Status  string `json:"status"`
	Project string `json:"project"`
	Version string `json:"version"`
}

// ProjectsResponse is the API response for GET /api/projects.
type ProjectsResponse struct {
	Projects []string `json:"projects"`
}

// DatasourcesResponse maps each datasource kind to its names.
type DatasourcesResponse struct {
	Datasources map[string][]string `json:"datasources"`
}

// QueryRequest is the request body for POST /api/query.
type QueryRequest struct {
	SQL           string `json:"sql"`
	Limit         int    `json:"limit,omitempty"`
	Offset        int    `json:"offset,omitempty"`
	AcceptPartial bool   `json:"accept_partial,omitempty"`
}

// QueryResponse is the API response for POST /api/query. Decimals are
// rendered as strings and dates as YYYY-MM-DD.
type QueryResponse struct {
	Columns    []kylin.Column `json:"columns"`
	Rows       [][]any        `json:"rows"`
	Cube       string         `json:"cube,omitempty"`
	DurationMS int64          `json:"duration_ms"`
}

// JobsResponse is the API response for GET /api/jobs.
type JobsResponse struct {
	Jobs []*job.Job `json:"jobs"`
}
