package service

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kylinctl/kylinctl/internal/apperrors"
	"github.com/kylinctl/kylinctl/internal/client"
	"github.com/kylinctl/kylinctl/internal/config"
	"github.com/kylinctl/kylinctl/internal/datasource"
	"github.com/kylinctl/kylinctl/internal/schema"
)

const prefix = "/kylin/api"

type recorded struct {
	Method string
	Path   string
	Query  url.Values
	Body   map[string]any
}

// fixtureServer answers "METHOD /path" routes with files from testdata.
type fixtureServer struct {
	mu       sync.Mutex
	requests []recorded
}

func (f *fixtureServer) last() recorded {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[len(f.requests)-1]
}

func newFixtureService(t *testing.T, version string, routes map[string]string) (Service, *fixtureServer) {
	t.Helper()
	fs := &fixtureServer{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := recorded{Method: r.Method, Path: r.URL.Path, Query: r.URL.Query()}
		if data, _ := io.ReadAll(r.Body); len(data) > 0 {
			json.Unmarshal(data, &rec.Body)
		}
		fs.mu.Lock()
		fs.requests = append(fs.requests, rec)
		fs.mu.Unlock()

		key := r.Method + " " + r.URL.Path[len(prefix):]
		file, ok := routes[key]
		if !ok {
			http.Error(w, `{"code":"999","data":null,"msg":"no route `+key+`"}`, http.StatusNotFound)
			return
		}
		if file == "" {
			w.Write([]byte(`{"code":"000","data":"","msg":""}`))
			return
		}
		data, err := os.ReadFile(filepath.Join("testdata", version, file))
		if err != nil {
			t.Errorf("reading fixture %s: %v", file, err)
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(data)
	}))
	t.Cleanup(srv.Close)

	u, _ := url.Parse(srv.URL)
	port, _ := strconv.Atoi(u.Port())
	sc := &config.ServerConfig{
		Host:       u.Hostname(),
		Port:       port,
		Scheme:     "http",
		Prefix:     prefix,
		Username:   "ADMIN",
		Password:   "KYLIN",
		Project:    "learn_kylin",
		APIVersion: version,
		Timeout:    5,
	}
	svc, err := New(client.New(sc, client.WithRetryWait(time.Millisecond, time.Millisecond)), sc.Project, version)
	require.NoError(t, err)
	return svc, fs
}

var versions = []string{config.VersionKylin, config.VersionKE3, config.VersionKE4}

func TestNewPicksAdapter(t *testing.T) {
	for version, want := range map[string]any{
		"v1": &Kylin{},
		"":   &Kylin{},
		"v2": &KE3{},
		"v4": &KE4{},
	} {
		svc, err := New(nil, "learn_kylin", version)
		require.NoError(t, err)
		assert.IsType(t, want, svc, "version %q", version)
		assert.Equal(t, "learn_kylin", svc.Project())
	}

	_, err := New(nil, "learn_kylin", "v3")
	assert.ErrorIs(t, err, apperrors.ErrUnsupportedAPI)
}

func TestProjects(t *testing.T) {
	for _, v := range versions {
		t.Run(v, func(t *testing.T) {
			svc, fs := newFixtureService(t, v, map[string]string{"GET /projects": "projects.json"})
			projects, err := svc.Projects(context.Background())
			require.NoError(t, err)
			require.Len(t, projects, 1)
			assert.Equal(t, "learn_kylin", projects[0].Name)
			assert.Equal(t, "1000", fs.last().Query.Get("pageSize"))
		})
	}
}

func TestTablesAndColumns(t *testing.T) {
	endpoints := map[string]string{
		"v1": "GET /tables_and_columns",
		"v2": "GET /tables_and_columns",
		"v4": "GET /query/tables_and_columns",
	}
	for _, v := range versions {
		t.Run(v, func(t *testing.T) {
			svc, fs := newFixtureService(t, v, map[string]string{endpoints[v]: "tables_and_columns.json"})
			catalog, err := svc.TablesAndColumns(context.Background())
			require.NoError(t, err)

			assert.Equal(t, []string{
				"DEFAULT.KYLIN_ACCOUNT",
				"DEFAULT.KYLIN_CAL_DT",
				"DEFAULT.KYLIN_CATEGORY_GROUPINGS",
				"DEFAULT.KYLIN_COUNTRY",
				"DEFAULT.KYLIN_SALES",
			}, catalog.Names())
			typ, ok := catalog.ColumnType("DEFAULT.KYLIN_SALES", "PART_DT")
			assert.True(t, ok)
			assert.Equal(t, "DATE", typ)
			assert.Equal(t, "learn_kylin", fs.last().Query.Get("project"))
		})
	}
}

func TestTablesAndColumnsNotFound(t *testing.T) {
	svc, _ := newFixtureService(t, "v1", nil)
	_, err := svc.TablesAndColumns(context.Background())
	assert.ErrorIs(t, err, apperrors.ErrNoSuchTable)
}

func TestTablesInHive(t *testing.T) {
	for _, v := range versions {
		t.Run(v, func(t *testing.T) {
			svc, fs := newFixtureService(t, v, map[string]string{"GET /tables": "tables.json"})
			tables, err := svc.TablesInHive(context.Background())
			require.NoError(t, err)
			assert.Len(t, tables, 6)
			assert.Contains(t, tables, "DEFAULT.KYLIN_STREAMING_TABLE")
			assert.Equal(t, "true", fs.last().Query.Get("ext"))
		})
	}
}

func TestCubeDesc(t *testing.T) {
	tests := []struct {
		version string
		route   string
	}{
		{"v1", "GET /cube_desc/kylin_sales_cube/desc"},
		{"v2", "GET /cube_desc/learn_kylin/kylin_sales_cube"},
	}
	for _, tt := range tests {
		t.Run(tt.version, func(t *testing.T) {
			svc, _ := newFixtureService(t, tt.version, map[string]string{tt.route: "cube_desc.json"})
			desc, err := svc.CubeDesc(context.Background(), "kylin_sales_cube")
			require.NoError(t, err)
			assert.Equal(t, "kylin_sales_cube", desc.Name)
			assert.Equal(t, "kylin_sales_model", desc.ModelName)
			assert.Len(t, desc.Dimensions, 20)
			assert.Len(t, desc.Measures, 6)
		})
	}
}

func TestModelDesc(t *testing.T) {
	for _, v := range []string{"v1", "v2"} {
		t.Run(v, func(t *testing.T) {
			svc, fs := newFixtureService(t, v, map[string]string{"GET /models": "models.json"})
			model, err := svc.ModelDesc(context.Background(), "kylin_sales_model")
			require.NoError(t, err)
			assert.Equal(t, "DEFAULT.KYLIN_SALES", model.FactTable)
			assert.NotEmpty(t, model.Lookups)
			assert.Equal(t, "learn_kylin", fs.last().Query.Get("projectName"))

			_, err = svc.ModelDesc(context.Background(), "missing_model")
			assert.ErrorIs(t, err, apperrors.ErrNotFound)
		})
	}
}

func TestCubeNamesAreReadyOnly(t *testing.T) {
	for _, v := range []string{"v1", "v2"} {
		t.Run(v, func(t *testing.T) {
			svc, fs := newFixtureService(t, v, map[string]string{"GET /cubes": "cubes.json"})
			names, err := svc.CubeNames(context.Background())
			require.NoError(t, err)
			assert.Equal(t, []string{"kylin_sales_cube"}, names)
			q := fs.last().Query
			assert.Equal(t, "50000", q.Get("limit"))
			assert.Equal(t, "learn_kylin", q.Get("projectName"))
		})
	}
}

func TestQuery(t *testing.T) {
	for _, v := range versions {
		t.Run(v, func(t *testing.T) {
			svc, fs := newFixtureService(t, v, map[string]string{"POST /query": "query.json"})
			res, err := svc.Query(context.Background(), "select part_dt, count(*), sum(price) from kylin_sales group by part_dt", DefaultQueryOptions())
			require.NoError(t, err)

			require.Len(t, res.ColumnMetas, 3)
			assert.Equal(t, "DATE", res.ColumnMetas[0].ColumnTypeName)
			require.Len(t, res.Results, 3)
			require.NotNil(t, res.Results[0][0])
			assert.Equal(t, "2012-01-01", *res.Results[0][0])
			assert.Nil(t, res.Results[2][2])

			body := fs.last().Body
			assert.Equal(t, "learn_kylin", body["project"])
			assert.Equal(t, float64(50000), body["limit"])
			assert.Equal(t, float64(0), body["offset"])
			assert.Equal(t, false, body["acceptPartial"])
		})
	}
}

func TestQueryErrors(t *testing.T) {
	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"exception":"Error while executing SQL"}`))
	}))
	t.Cleanup(failing.Close)

	r := &stubRequester{post: func(out any) error {
		return json.Unmarshal([]byte(`{"exceptionMessage":"Column 'NOPE' not found"}`), out)
	}}
	_, err := NewKylin(r, "learn_kylin").Query(context.Background(), "select nope", DefaultQueryOptions())
	assert.ErrorIs(t, err, apperrors.ErrQuery)
	assert.Contains(t, err.Error(), "Column 'NOPE' not found")

	u, _ := url.Parse(failing.URL)
	port, _ := strconv.Atoi(u.Port())
	c := client.New(&config.ServerConfig{Host: u.Hostname(), Port: port, Scheme: "http", Password: "KYLIN"})
	_, err = NewKylin(c, "learn_kylin").Query(context.Background(), "select 1", DefaultQueryOptions())
	assert.ErrorIs(t, err, apperrors.ErrQuery)
	assert.ErrorIs(t, err, apperrors.ErrKylin)
}

// stubRequester answers Post with a canned decoder.
type stubRequester struct {
	post func(out any) error
}

func (s *stubRequester) Get(context.Context, string, url.Values, any) error { return nil }
func (s *stubRequester) Post(_ context.Context, _ string, _ url.Values, _, out any) error {
	return s.post(out)
}
func (s *stubRequester) Put(context.Context, string, url.Values, any, any) error { return nil }
func (s *stubRequester) Delete(context.Context, string, url.Values, any) error   { return nil }

func TestAuthentication(t *testing.T) {
	for _, v := range versions {
		t.Run(v, func(t *testing.T) {
			svc, _ := newFixtureService(t, v, map[string]string{"GET /user/authentication": "authentication.json"})
			user, err := svc.Authentication(context.Background())
			require.NoError(t, err)
			assert.Equal(t, "ADMIN", user.Username)
			assert.Len(t, user.Authorities, 3)
		})
	}

	r := &stubRequester{}
	_, err := NewKylin(r, "learn_kylin").Authentication(context.Background())
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
}

func TestJobs(t *testing.T) {
	for _, v := range []string{"v1", "v2"} {
		t.Run(v, func(t *testing.T) {
			const id = "d861b8b7-c773-47ab-bb1e-c8782ae8d695"
			svc, fs := newFixtureService(t, v, map[string]string{
				"GET /jobs":                    "jobs.json",
				"GET /jobs/" + id:              "job.json",
				"PUT /jobs/" + id + "/resume":  "job.json",
				"DELETE /jobs/" + id + "/drop": "",
			})
			ctx := context.Background()

			jobs, err := svc.Jobs(ctx, JobFilter{TimeFilter: LastWeek})
			require.NoError(t, err)
			require.Len(t, jobs, 1)
			assert.Equal(t, id, jobs[0].UUID)
			assert.Equal(t, "1", fs.last().Query.Get("timeFilter"))

			job, err := svc.JobDesc(ctx, id)
			require.NoError(t, err)
			assert.Equal(t, "FINISHED", job.Status)
			require.Len(t, job.Steps, 2)
			assert.Equal(t, id+"-01", job.Steps[1].ID)

			_, err = svc.MaintainJob(ctx, id, JobResume)
			require.NoError(t, err)
			assert.Equal(t, http.MethodPut, fs.last().Method)

			require.NoError(t, svc.DropJob(ctx, id))
			assert.Equal(t, prefix+"/jobs/"+id+"/drop", fs.last().Path)

			_, err = svc.MaintainJob(ctx, id, "explode")
			assert.ErrorIs(t, err, apperrors.ErrJob)
		})
	}
}

func TestKE4Jobs(t *testing.T) {
	svc, fs := newFixtureService(t, "v4", map[string]string{"GET /jobs": "jobs.json"})
	ctx := context.Background()

	jobs, err := svc.Jobs(ctx, JobFilter{})
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, "RUNNING", jobs[0].Status)
	assert.Equal(t, "kylin_sales_model", jobs[0].DisplayCubeName)
	assert.Equal(t, "learn_kylin", fs.last().Query.Get("project"))

	job, err := svc.JobDesc(ctx, jobs[0].UUID)
	require.NoError(t, err)
	assert.InDelta(t, 42, job.Progress, 1e-9)
	assert.Equal(t, "4", fs.last().Query.Get("time_filter"))

	_, err = svc.JobDesc(ctx, "missing")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	_, err = svc.MaintainJob(ctx, job.UUID, JobPause)
	assert.ErrorIs(t, err, apperrors.ErrUnsupportedAPI)
	assert.EqualError(t, svc.DropJob(ctx, job.UUID), "ke4 jobs do not support drop: unsupported api")
}

func TestKE4HasNoCubes(t *testing.T) {
	svc := NewKE4(nil, "learn_kylin")
	_, err := svc.CubeDesc(context.Background(), "kylin_sales_cube")
	assert.ErrorIs(t, err, apperrors.ErrUnsupportedAPI)
	_, err = svc.CubeNames(context.Background())
	assert.ErrorIs(t, err, apperrors.ErrUnsupportedAPI)
	_, err = NewKylin(nil, "learn_kylin").V4ModelDesc(context.Background(), "kylin_sales_model")
	assert.ErrorIs(t, err, apperrors.ErrUnsupportedAPI)
}

func TestKE4Models(t *testing.T) {
	svc, fs := newFixtureService(t, "v4", map[string]string{
		"GET /models": "models.json",
		"GET /models/learn_kylin/kylin_sales_model/model_desc": "model_desc.json",
	})
	ctx := context.Background()

	models, err := svc.Models(ctx)
	require.NoError(t, err)
	require.Len(t, models, 1)
	assert.Equal(t, "learn_kylin", fs.last().Query.Get("project"))

	desc, err := svc.V4ModelDesc(ctx, models[0].Name)
	require.NoError(t, err)
	assert.Equal(t, "0e788bb6-d56c-44fd-8fe0-26bb77aa40c5", desc.UUID)
	assert.Len(t, desc.SimplifiedDimensions, 19)

	model, err := datasource.NewModel(desc, datasource.WithVersion("v4"))
	require.NoError(t, err)
	assert.Len(t, model.Dimensions(), 19)
}

func TestKE4Segments(t *testing.T) {
	svc, fs := newFixtureService(t, "v4", map[string]string{
		"GET /models/kylin_sales_model/segments":    "segments.json",
		"POST /models/kylin_sales_model/segments":   "",
		"PUT /models/kylin_sales_model/segments":    "",
		"DELETE /models/kylin_sales_model/segments": "",
	})
	ke4 := svc.(*KE4)
	ctx := context.Background()

	segs, err := ke4.ModelSegments(ctx, "kylin_sales_model")
	require.NoError(t, err)
	require.Len(t, segs, 1)
	assert.Equal(t, "6dcc77dd-8e9b-488a-a52e-ed7cb0245d79", segs[0].Identifier())
	assert.Equal(t, int64(1325376000000), segs[0].DateRangeStart)
	assert.Equal(t, int64(2097152), segs[0].Size())

	_, err = ke4.BuildSegment(ctx, "kylin_sales_model", 1325376000000, 1356998400000)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"project": "learn_kylin", "start": "1325376000000", "end": "1356998400000"}, fs.last().Body)

	_, err = ke4.BuildSegment(ctx, "kylin_sales_model", 0, 0)
	require.NoError(t, err)
	assert.Equal(t, "", fs.last().Body["start"])

	_, err = ke4.MergeSegments(ctx, "kylin_sales_model", []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, "MERGE", fs.last().Body["type"])
	assert.Equal(t, []any{"a", "b"}, fs.last().Body["ids"])

	_, err = ke4.RefreshSegments(ctx, "kylin_sales_model", []string{"a"})
	require.NoError(t, err)
	assert.Equal(t, "REFRESH", fs.last().Body["type"])

	_, err = ke4.DeleteSegments(ctx, "kylin_sales_model", []string{"a", "b"})
	require.NoError(t, err)
	q := fs.last().Query
	assert.Equal(t, []string{"a", "b"}, q["ids"])
	assert.Equal(t, "false", q.Get("purge"))

	_, err = ke4.ModelSegments(ctx, "other_model")
	assert.ErrorIs(t, err, apperrors.ErrModel)
}

func TestKE4IndexesAndCatalogCache(t *testing.T) {
	svc, fs := newFixtureService(t, "v4", map[string]string{
		"GET /models/kylin_sales_model/indexes":      "indexes.json",
		"POST /models/kylin_sales_model/indexes":     "",
		"DELETE /models/kylin_sales_model/indexes/3": "",
		"GET /index_plans/rule":                      "index_rules.json",
		"PUT /index_plans/rule":                      "",
		"PUT /tables/catalog_cache":                  "",
	})
	ke4 := svc.(*KE4)
	ctx := context.Background()

	raw, err := ke4.Indexes(ctx, "kylin_sales_model")
	require.NoError(t, err)
	var indexes struct {
		Value []int `json:"value"`
	}
	require.NoError(t, json.Unmarshal(raw, &indexes))
	assert.Equal(t, []int{1, 2, 3, 4}, indexes.Value)

	_, err = ke4.BuildIndexes(ctx, "kylin_sales_model")
	require.NoError(t, err)
	assert.Equal(t, "learn_kylin", fs.last().Body["project"])

	_, err = ke4.DeleteIndex(ctx, "kylin_sales_model", 3)
	require.NoError(t, err)

	raw, err = ke4.IndexRules(ctx, "kylin_sales_model")
	require.NoError(t, err)
	assert.Contains(t, string(raw), "aggregation_groups")
	assert.Equal(t, "kylin_sales_model", fs.last().Query.Get("model"))

	_, err = ke4.PutIndexRules(ctx, "kylin_sales_model", datasource.IndexRules{Dimensions: []int{1, 9}, AggregateGroups: []any{}})
	require.NoError(t, err)
	body := fs.last().Body
	assert.Equal(t, "learn_kylin", body["project"])
	assert.Equal(t, "kylin_sales_model", body["model"])
	assert.Equal(t, []any{}, body["aggregation_groups"])

	_, err = ke4.PutIndexRules(ctx, "kylin_sales_model", []int{1})
	assert.Error(t, err)

	_, err = ke4.RefreshCatalogCache(ctx, []string{"DEFAULT.KYLIN_SALES"})
	require.NoError(t, err)
	assert.Equal(t, []any{"DEFAULT.KYLIN_SALES"}, fs.last().Body["tables"])
}

func TestCubeOperations(t *testing.T) {
	svc, fs := newFixtureService(t, "v1", map[string]string{
		"GET /cubes/kylin_sales_cube":                                       "cube.json",
		"PUT /cubes/kylin_sales_cube/rebuild":                               "",
		"PUT /cubes/kylin_sales_cube/disable":                               "",
		"DELETE /cubes/kylin_sales_cube/segs/20120101000000_20140101000000": "",
		"DELETE /cubes/kylin_sales_cube":                                    "",
	})
	k := svc.(*Kylin)
	ctx := context.Background()

	segs, err := k.CubeSegments(ctx, "kylin_sales_cube")
	require.NoError(t, err)
	require.Len(t, segs, 1)
	assert.Equal(t, "b5999bec-2381-77c7-cafb-c59407a7a032", segs[0].Identifier())

	_, err = k.BuildCube(ctx, "kylin_sales_cube", schema.BuildRequest{StartTime: 0, EndTime: 1388534400000, BuildType: schema.BuildTypeBuild})
	require.NoError(t, err)
	assert.Equal(t, "BUILD", fs.last().Body["buildType"])
	assert.Equal(t, float64(1388534400000), fs.last().Body["endTime"])

	_, err = k.MaintainCube(ctx, "kylin_sales_cube", "disable", nil)
	require.NoError(t, err)

	_, err = k.DeleteSegment(ctx, "kylin_sales_cube", segs[0].Name)
	require.NoError(t, err)

	_, err = k.DropCube(ctx, "kylin_sales_cube")
	require.NoError(t, err)
	assert.Equal(t, http.MethodDelete, fs.last().Method)

	_, err = k.MaintainCube(ctx, "kylin_sales_cube", "explode", nil)
	assert.ErrorIs(t, err, apperrors.ErrCube)

	_, err = k.BuildStreamingCube(ctx, "kylin_sales_cube", schema.StreamingBuildRequest{})
	assert.ErrorIs(t, err, apperrors.ErrCube)
}

func TestKE3Extras(t *testing.T) {
	svc, _ := newFixtureService(t, "v2", map[string]string{
		"GET /cubes/kylin_sales_cube/sql": "cube_sql.json",
		"GET /kap/user/users":             "users.json",
		"GET /cubes":                      "cubes.json",
	})
	ke3 := svc.(*KE3)
	ctx := context.Background()

	sql, err := ke3.CubeSQL(ctx, "kylin_sales_cube")
	require.NoError(t, err)
	assert.Equal(t, `SELECT * FROM "DEFAULT"."KYLIN_SALES" AS "KYLIN_SALES"`, sql)

	users, err := ke3.Users(ctx)
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.True(t, users[1].Disabled)

	segs, err := ke3.CubeSegments(ctx, "kylin_sales_cube")
	require.NoError(t, err)
	assert.Len(t, segs, 1)

	_, err = ke3.CubeSegments(ctx, "missing_cube")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestCubeNormalizesFromService(t *testing.T) {
	for _, v := range []string{"v1", "v2"} {
		t.Run(v, func(t *testing.T) {
			route := "GET /cube_desc/kylin_sales_cube/desc"
			if v == "v2" {
				route = "GET /cube_desc/learn_kylin/kylin_sales_cube"
			}
			svc, _ := newFixtureService(t, v, map[string]string{
				route:                     "cube_desc.json",
				"GET /models":             "models.json",
				"GET /tables_and_columns": "tables_and_columns.json",
			})
			ctx := context.Background()

			desc, err := svc.CubeDesc(ctx, "kylin_sales_cube")
			require.NoError(t, err)
			model, err := svc.ModelDesc(ctx, desc.ModelName)
			require.NoError(t, err)
			catalog, err := svc.TablesAndColumns(ctx)
			require.NoError(t, err)

			cube, err := datasource.NewCube(desc, model, catalog, datasource.WithVersion(v))
			require.NoError(t, err)
			assert.Len(t, cube.Dimensions(), 20)
			_, err = cube.FromClause()
			assert.NoError(t, err)
		})
	}
}

func TestMock(t *testing.T) {
	m := &Mock{
		ProjectName: "learn_kylin",
		CubeList: []schema.CubeInfo{
			{Name: "a", Status: "READY"},
			{Name: "b", Status: "DISABLED"},
		},
		JobList: []schema.JobDesc{{UUID: "j1", Status: "RUNNING"}},
	}
	ctx := context.Background()

	names, err := m.CubeNames(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, names)

	_, err = m.Authentication(ctx)
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)

	job, err := m.MaintainJob(ctx, "j1", JobPause)
	require.NoError(t, err)
	assert.Equal(t, "RUNNING", job.Status)
	assert.Equal(t, []string{"pause j1"}, m.Actions)

	m.Err = errors.New("down")
	_, err = m.Projects(ctx)
	assert.EqualError(t, err, "down")
}

func TestParseTimeFilter(t *testing.T) {
	for _, tt := range []struct {
		in   string
		want TimeFilter
	}{
		{"day", LastDay},
		{"WEEK", LastWeek},
		{"month", LastMonth},
		{"year", LastYear},
		{"all", AllTime},
	} {
		got, err := ParseTimeFilter(tt.in)
		if err != nil || got != tt.want {
			t.Errorf("ParseTimeFilter(%q) = %v, %v", tt.in, got, err)
		}
	}
	if _, err := ParseTimeFilter("decade"); err == nil {
		t.Error("expected an error for an unknown filter")
	}
	if AllTime.String() != "all" || TimeFilter(9).String() != "TimeFilter(9)" {
		t.Errorf("String() = %s, %s", AllTime, TimeFilter(9))
	}
}
