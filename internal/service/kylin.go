package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/kylinctl/kylinctl/internal/apperrors"
	"github.com/kylinctl/kylinctl/internal/config"
	"github.com/kylinctl/kylinctl/internal/datasource"
	"github.com/kylinctl/kylinctl/internal/schema"
)

const statusReady = "READY"

// Kylin talks to Apache Kylin over the v1 API. With v2 set it reads the
// KE3 response shapes instead.
type Kylin struct {
	r       Requester
	project string
	v2      bool
}

var (
	_ Service                 = (*Kylin)(nil)
	_ datasource.CubeOperator = (*Kylin)(nil)
)

// NewKylin returns a v1 service for project.
func NewKylin(r Requester, project string) *Kylin {
	return &Kylin{r: r, project: project}
}

func (k *Kylin) Version() string {
	if k.v2 {
		return config.VersionKE3
	}
	return config.VersionKylin
}

func (k *Kylin) Project() string { return k.project }

func (k *Kylin) Query(ctx context.Context, sql string, opts QueryOptions) (*schema.QueryResult, error) {
	return query(ctx, k.r, k.project, sql, opts)
}

func (k *Kylin) Projects(ctx context.Context) ([]schema.Project, error) {
	params := url.Values{"pageOffset": {"0"}, "pageSize": {"1000"}}
	if k.v2 {
		var out struct {
			Projects []schema.Project `json:"projects"`
		}
		if err := k.r.Get(ctx, "/projects", params, &out); err != nil {
			return nil, fmt.Errorf("listing projects: %w", err)
		}
		return out.Projects, nil
	}

	var out []schema.Project
	if err := k.r.Get(ctx, "/projects", params, &out); err != nil {
		return nil, fmt.Errorf("listing projects: %w", err)
	}
	return out, nil
}

func (k *Kylin) TablesAndColumns(ctx context.Context) (schema.TableCatalog, error) {
	return catalog(ctx, k.r, "/tables_and_columns", k.project)
}

func (k *Kylin) TablesInHive(ctx context.Context) (map[string]schema.TableDesc, error) {
	var tables []schema.TableDesc
	params := url.Values{"project": {k.project}, "ext": {"true"}}
	if err := k.r.Get(ctx, "/tables", params, &tables); err != nil {
		return nil, catalogError(k.project, err)
	}
	return hiveTables(tables), nil
}

func (k *Kylin) CubeDesc(ctx context.Context, name string) (*schema.CubeDesc, error) {
	if k.v2 {
		var out struct {
			Cube *schema.CubeDesc `json:"cube"`
		}
		if err := k.r.Get(ctx, "/cube_desc/"+k.project+"/"+name, nil, &out); err != nil {
			return nil, fmt.Errorf("cube %s: %w", name, err)
		}
		if out.Cube == nil {
			return nil, fmt.Errorf("cube %s: %w", name, apperrors.ErrNotFound)
		}
		return out.Cube, nil
	}

	var descs []schema.CubeDesc
	if err := k.r.Get(ctx, "/cube_desc/"+name+"/desc", nil, &descs); err != nil {
		return nil, fmt.Errorf("cube %s: %w", name, err)
	}
	if len(descs) == 0 {
		return nil, fmt.Errorf("cube %s: %w", name, apperrors.ErrNotFound)
	}
	return &descs[0], nil
}

func (k *Kylin) ModelDesc(ctx context.Context, name string) (*schema.ModelDesc, error) {
	models, err := k.Models(ctx)
	if err != nil {
		return nil, err
	}
	for i := range models {
		if models[i].Name == name {
			return &models[i], nil
		}
	}
	return nil, fmt.Errorf("model %s: %w", name, apperrors.ErrNotFound)
}

func (k *Kylin) V4ModelDesc(_ context.Context, name string) (*schema.V4ModelDesc, error) {
	return nil, fmt.Errorf("model %s: v4 descriptions need a v4 server: %w", name, apperrors.ErrUnsupportedAPI)
}

func (k *Kylin) Models(ctx context.Context) ([]schema.ModelDesc, error) {
	if k.v2 {
		var out struct {
			Models []schema.ModelDesc `json:"models"`
		}
		if err := k.r.Get(ctx, "/models", pageParams(k.project), &out); err != nil {
			return nil, fmt.Errorf("listing models: %w", err)
		}
		return out.Models, nil
	}

	var out []schema.ModelDesc
	if err := k.r.Get(ctx, "/models", pageParams(k.project), &out); err != nil {
		return nil, fmt.Errorf("listing models: %w", err)
	}
	return out, nil
}

func (k *Kylin) Cubes(ctx context.Context) ([]schema.CubeInfo, error) {
	params := pageParams(k.project)
	params.Set("offset", "0")
	params.Set("limit", "50000")

	if k.v2 {
		var out struct {
			Cubes []schema.CubeInfo `json:"cubes"`
		}
		if err := k.r.Get(ctx, "/cubes", params, &out); err != nil {
			return nil, fmt.Errorf("listing cubes: %w", err)
		}
		return out.Cubes, nil
	}

	var out []schema.CubeInfo
	if err := k.r.Get(ctx, "/cubes", params, &out); err != nil {
		return nil, fmt.Errorf("listing cubes: %w", err)
	}
	return out, nil
}

func (k *Kylin) CubeNames(ctx context.Context) ([]string, error) {
	cubes, err := k.Cubes(ctx)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, c := range cubes {
		if c.Status == statusReady {
			names = append(names, c.Name)
		}
	}
	return names, nil
}

func (k *Kylin) Authentication(ctx context.Context) (*schema.UserDetails, error) {
	return authentication(ctx, k.r)
}

func (k *Kylin) Jobs(ctx context.Context, f JobFilter) ([]schema.JobDesc, error) {
	params := url.Values{
		"projectName": {k.project},
		"timeFilter":  {itoa(int(f.TimeFilter))},
	}
	if f.Cube != "" {
		params.Set("cubeName", f.Cube)
	}
	if f.Limit > 0 {
		params.Set("limit", itoa(f.Limit))
		params.Set("offset", itoa(f.Offset))
	}

	if k.v2 {
		var out struct {
			Jobs []schema.JobDesc `json:"jobs"`
		}
		if err := k.r.Get(ctx, "/jobs", params, &out); err != nil {
			return nil, fmt.Errorf("listing jobs: %w", err)
		}
		return out.Jobs, nil
	}

	var out []schema.JobDesc
	if err := k.r.Get(ctx, "/jobs", params, &out); err != nil {
		return nil, fmt.Errorf("listing jobs: %w", err)
	}
	return out, nil
}

func (k *Kylin) JobDesc(ctx context.Context, id string) (*schema.JobDesc, error) {
	var job schema.JobDesc
	if err := k.r.Get(ctx, "/jobs/"+id, nil, &job); err != nil {
		return nil, fmt.Errorf("job %s: %w", id, err)
	}
	return &job, nil
}

func (k *Kylin) MaintainJob(ctx context.Context, id, action string) (*schema.JobDesc, error) {
	switch action {
	case JobResume, JobCancel, JobPause:
	default:
		return nil, fmt.Errorf("job %s: unknown action %q: %w", id, action, apperrors.ErrJob)
	}
	var job schema.JobDesc
	if err := k.r.Put(ctx, "/jobs/"+id+"/"+action, nil, nil, &job); err != nil {
		return nil, fmt.Errorf("job %s: %s: %w: %w", id, action, apperrors.ErrJob, err)
	}
	return &job, nil
}

func (k *Kylin) DropJob(ctx context.Context, id string) error {
	if err := k.r.Delete(ctx, "/jobs/"+id+"/drop", nil, nil); err != nil {
		return fmt.Errorf("job %s: drop: %w: %w", id, apperrors.ErrJob, err)
	}
	return nil
}

// Cube operations.

func (k *Kylin) BuildCube(ctx context.Context, cube string, req schema.BuildRequest) (json.RawMessage, error) {
	return k.put(ctx, "/cubes/"+cube+"/rebuild", req)
}

func (k *Kylin) BuildStreamingCube(ctx context.Context, cube string, req schema.StreamingBuildRequest) (json.RawMessage, error) {
	return k.put(ctx, "/cubes/"+cube+"/rebuild_streaming", req)
}

func (k *Kylin) CubeSegments(ctx context.Context, cube string) ([]schema.Segment, error) {
	if k.v2 {
		cubes, err := k.Cubes(ctx)
		if err != nil {
			return nil, err
		}
		for _, c := range cubes {
			if c.Name == cube {
				return c.Segments, nil
			}
		}
		return nil, fmt.Errorf("cube %s: %w", cube, apperrors.ErrNotFound)
	}

	var info schema.CubeInfo
	if err := k.r.Get(ctx, "/cubes/"+cube, nil, &info); err != nil {
		return nil, fmt.Errorf("cube %s: %w", cube, err)
	}
	return info.Segments, nil
}

func (k *Kylin) DeleteSegment(ctx context.Context, cube, segment string) (json.RawMessage, error) {
	var out json.RawMessage
	if err := k.r.Delete(ctx, "/cubes/"+cube+"/segs/"+segment, nil, &out); err != nil {
		return nil, fmt.Errorf("cube %s: deleting segment %s: %w: %w", cube, segment, apperrors.ErrCube, err)
	}
	return out, nil
}

func (k *Kylin) MaintainCube(ctx context.Context, cube, action string, body any) (json.RawMessage, error) {
	switch action {
	case "enable", "disable", "purge", "clone":
	default:
		return nil, fmt.Errorf("cube %s: unknown action %q: %w", cube, action, apperrors.ErrCube)
	}
	return k.put(ctx, "/cubes/"+cube+"/"+action, body)
}

func (k *Kylin) DropCube(ctx context.Context, cube string) (json.RawMessage, error) {
	var out json.RawMessage
	if err := k.r.Delete(ctx, "/cubes/"+cube, nil, &out); err != nil {
		return nil, fmt.Errorf("cube %s: drop: %w: %w", cube, apperrors.ErrCube, err)
	}
	return out, nil
}

func (k *Kylin) put(ctx context.Context, endpoint string, body any) (json.RawMessage, error) {
	var out json.RawMessage
	if err := k.r.Put(ctx, endpoint, nil, body, &out); err != nil {
		return nil, fmt.Errorf("%w: %w", apperrors.ErrCube, err)
	}
	return out, nil
}
