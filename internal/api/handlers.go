package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/kylinctl/kylinctl/internal/datasource"
	"github.com/kylinctl/kylinctl/internal/job"
	"github.com/kylinctl/kylinctl/internal/report"
	"github.com/kylinctl/kylinctl/internal/service"
	"github.com/kylinctl/kylinctl/pkg/kylin"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, http.StatusOK, HealthResponse{
		Status:  "ok",
		Project: s.project.Name(),
		Version: s.project.Version(),
	})
}

func (s *Server) handleProjects(w http.ResponseWriter, r *http.Request) {
	names, err := s.project.Projects(r.Context())
	if err != nil {
		serviceError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, ProjectsResponse{Projects: names})
}

// handleDatasources lists names of every kind, or of ?kind= only.
func (s *Server) handleDatasources(w http.ResponseWriter, r *http.Request) {
	resp := DatasourcesResponse{Datasources: map[string][]string{}}

	if k := r.URL.Query().Get("kind"); k != "" {
		kind, err := datasource.ParseKind(k)
		if err != nil {
			errorResponse(w, http.StatusBadRequest, err.Error())
			return
		}
		names, err := s.project.DatasourceNames(r.Context(), kind)
		if err != nil {
			serviceError(w, err)
			return
		}
		resp.Datasources[string(kind)] = names
		jsonResponse(w, http.StatusOK, resp)
		return
	}

	all, err := s.project.AllDatasourceNames(r.Context())
	if err != nil {
		serviceError(w, err)
		return
	}
	for kind, names := range all {
		resp.Datasources[string(kind)] = names
	}
	jsonResponse(w, http.StatusOK, resp)
}

// handleDatasource describes one datasource. ?kind= defaults to the
// first source type of the server version.
func (s *Server) handleDatasource(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	kind := s.project.SourceTypes()[0]
	if k := r.URL.Query().Get("kind"); k != "" {
		var err error
		if kind, err = datasource.ParseKind(k); err != nil {
			errorResponse(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	ds, err := s.project.Datasource(r.Context(), name, kind)
	if err != nil {
		serviceError(w, err)
		return
	}
	rep, err := report.Generate(ds, s.now())
	if err != nil {
		errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}
	jsonResponse(w, http.StatusOK, rep)
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errorResponse(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.SQL) == "" {
		errorResponse(w, http.StatusBadRequest, "sql is required")
		return
	}

	var opts []kylin.QueryOption
	if req.Limit > 0 {
		opts = append(opts, kylin.WithLimit(req.Limit))
	}
	if req.Offset > 0 {
		opts = append(opts, kylin.WithOffset(req.Offset))
	}
	if req.AcceptPartial {
		opts = append(opts, kylin.WithAcceptPartial())
	}

	res, err := s.project.Query(r.Context(), req.SQL, opts...)
	if err != nil {
		serviceError(w, err)
		return
	}
	rows := res.Rows
	if rows == nil {
		rows = [][]any{}
	}
	jsonResponse(w, http.StatusOK, QueryResponse{
		Columns:    res.Columns,
		Rows:       rows,
		Cube:       res.Cube,
		DurationMS: res.Duration.Milliseconds(),
	})
}

// handleJobs lists jobs. Query parameters: time_filter (day, week,
// month, year, all; default week), cube, limit and offset.
func (s *Server) handleJobs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := service.JobFilter{TimeFilter: service.LastWeek, Cube: q.Get("cube")}
	if tf := q.Get("time_filter"); tf != "" {
		var err error
		if f.TimeFilter, err = service.ParseTimeFilter(tf); err != nil {
			errorResponse(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	for param, dst := range map[string]*int{"limit": &f.Limit, "offset": &f.Offset} {
		v := q.Get(param)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			errorResponse(w, http.StatusBadRequest, "invalid "+param)
			return
		}
		*dst = n
	}

	jobs, err := s.project.Jobs(r.Context(), f)
	if err != nil {
		serviceError(w, err)
		return
	}
	if jobs == nil {
		jobs = []*job.Job{}
	}
	jsonResponse(w, http.StatusOK, JobsResponse{Jobs: jobs})
}

func (s *Server) handleJob(w http.ResponseWriter, r *http.Request) {
	j, err := s.project.Job(chi.URLParam(r, "id")).Describe(r.Context())
	if err != nil {
		serviceError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, j)
}
