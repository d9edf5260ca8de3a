package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"github.com/kylinctl/kylinctl/internal/apperrors"
	"github.com/kylinctl/kylinctl/internal/config"
	"github.com/kylinctl/kylinctl/internal/datasource"
	"github.com/kylinctl/kylinctl/internal/schema"
)

// KE4 is a Kyligence Enterprise 4 server. It has models and indexes
// instead of cubes, and wraps lists in {value,offset,limit,total_size}.
type KE4 struct {
	r       Requester
	project string
}

var (
	_ Service                  = (*KE4)(nil)
	_ datasource.ModelOperator = (*KE4)(nil)
)

// NewKE4 returns a v4 service for project.
func NewKE4(r Requester, project string) *KE4 {
	return &KE4{r: r, project: project}
}

type page[T any] struct {
	Value     []T `json:"value"`
	Offset    int `json:"offset"`
	Limit     int `json:"limit"`
	TotalSize int `json:"total_size"`
}

func (k *KE4) Version() string { return config.VersionKE4 }
func (k *KE4) Project() string { return k.project }

func (k *KE4) projectParams() url.Values {
	return url.Values{"project": {k.project}}
}

func (k *KE4) Query(ctx context.Context, sql string, opts QueryOptions) (*schema.QueryResult, error) {
	return query(ctx, k.r, k.project, sql, opts)
}

func (k *KE4) Projects(ctx context.Context) ([]schema.Project, error) {
	var out page[schema.Project]
	params := url.Values{"pageOffset": {"0"}, "pageSize": {"1000"}}
	if err := k.r.Get(ctx, "/projects", params, &out); err != nil {
		return nil, fmt.Errorf("listing projects: %w", err)
	}
	return out.Value, nil
}

func (k *KE4) TablesAndColumns(ctx context.Context) (schema.TableCatalog, error) {
	return catalog(ctx, k.r, "/query/tables_and_columns", k.project)
}

func (k *KE4) TablesInHive(ctx context.Context) (map[string]schema.TableDesc, error) {
	var out struct {
		Tables []schema.TableDesc `json:"tables"`
	}
	params := url.Values{"project": {k.project}, "ext": {"true"}}
	if err := k.r.Get(ctx, "/tables", params, &out); err != nil {
		return nil, catalogError(k.project, err)
	}
	return hiveTables(out.Tables), nil
}

func (k *KE4) CubeDesc(_ context.Context, name string) (*schema.CubeDesc, error) {
	return nil, fmt.Errorf("cube %s: ke4 has no cubes: %w", name, apperrors.ErrUnsupportedAPI)
}

func (k *KE4) Cubes(context.Context) ([]schema.CubeInfo, error) {
	return nil, fmt.Errorf("ke4 has no cubes: %w", apperrors.ErrUnsupportedAPI)
}

func (k *KE4) CubeNames(context.Context) ([]string, error) {
	return nil, fmt.Errorf("ke4 has no cubes: %w", apperrors.ErrUnsupportedAPI)
}

func (k *KE4) Models(ctx context.Context) ([]schema.ModelDesc, error) {
	var out page[schema.ModelDesc]
	if err := k.r.Get(ctx, "/models", k.projectParams(), &out); err != nil {
		return nil, fmt.Errorf("listing models: %w", err)
	}
	return out.Value, nil
}

// ModelDesc returns the model's list entry. Use V4ModelDesc for the
// full description.
func (k *KE4) ModelDesc(ctx context.Context, name string) (*schema.ModelDesc, error) {
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

func (k *KE4) V4ModelDesc(ctx context.Context, name string) (*schema.V4ModelDesc, error) {
	var desc schema.V4ModelDesc
	if err := k.r.Get(ctx, "/models/"+k.project+"/"+name+"/model_desc", nil, &desc); err != nil {
		return nil, fmt.Errorf("model %s: %w", name, err)
	}
	return &desc, nil
}

func (k *KE4) Authentication(ctx context.Context) (*schema.UserDetails, error) {
	return authentication(ctx, k.r)
}

// v4Job is the v4 job shape.
type v4Job struct {
	ID               string           `json:"id"`
	JobName          string           `json:"job_name"`
	JobStatus        string           `json:"job_status"`
	TargetModel      string           `json:"target_model"`
	TargetModelAlias string           `json:"target_model_alias"`
	Project          string           `json:"project"`
	Duration         int64            `json:"duration"`
	Submitter        string           `json:"submitter"`
	LastModified     int64            `json:"last_modified"`
	ExecStartTime    int64            `json:"exec_start_time"`
	ExecEndTime      int64            `json:"exec_end_time"`
	Progress         float64          `json:"progress"`
	Steps            []schema.JobStep `json:"steps"`
}

// desc converts a v4 job. v4 reports progress as a fraction.
func (j v4Job) desc() schema.JobDesc {
	return schema.JobDesc{
		UUID:            j.ID,
		Name:            j.JobName,
		Type:            j.JobName,
		Duration:        j.Duration,
		RelatedCube:     j.TargetModel,
		DisplayCubeName: j.TargetModelAlias,
		ProjectName:     j.Project,
		Status:          j.JobStatus,
		Progress:        j.Progress * 100,
		Submitter:       j.Submitter,
		LastModified:    j.LastModified,
		ExecStartTime:   j.ExecStartTime,
		ExecEndTime:     j.ExecEndTime,
		Steps:           j.Steps,
	}
}

func (k *KE4) Jobs(ctx context.Context, f JobFilter) ([]schema.JobDesc, error) {
	params := url.Values{
		"project":     {k.project},
		"time_filter": {itoa(int(f.TimeFilter))},
		"page_offset": {"0"},
		"page_size":   {"1000"},
	}
	if f.Limit > 0 {
		params.Set("page_offset", itoa(f.Offset))
		params.Set("page_size", itoa(f.Limit))
	}
	var out page[v4Job]
	if err := k.r.Get(ctx, "/jobs", params, &out); err != nil {
		return nil, fmt.Errorf("listing jobs: %w", err)
	}
	jobs := make([]schema.JobDesc, 0, len(out.Value))
	for _, j := range out.Value {
		jobs = append(jobs, j.desc())
	}
	return jobs, nil
}

func (k *KE4) JobDesc(ctx context.Context, id string) (*schema.JobDesc, error) {
	jobs, err := k.Jobs(ctx, JobFilter{TimeFilter: AllTime})
	if err != nil {
		return nil, err
	}
	for i := range jobs {
		if jobs[i].UUID == id {
			return &jobs[i], nil
		}
	}
	return nil, fmt.Errorf("job %s: %w", id, apperrors.ErrNotFound)
}

func (k *KE4) MaintainJob(_ context.Context, id, action string) (*schema.JobDesc, error) {
	return nil, UnsupportedJobAction(action)
}

func (k *KE4) DropJob(context.Context, string) error {
	return UnsupportedJobAction("drop")
}

// UnsupportedJobAction is the error KE4 returns for job actions.
func UnsupportedJobAction(action string) error {
	return fmt.Errorf("ke4 jobs do not support %s: %w", action, apperrors.ErrUnsupportedAPI)
}

// Model operations.

type segmentBuild struct {
	Project string `json:"project"`
	Start   string `json:"start"`
	End     string `json:"end"`
}

type segmentUpdate struct {
	Project string   `json:"project"`
	Type    string   `json:"type"`
	IDs     []string `json:"ids"`
}

// BuildSegment loads [start, end) in epoch ms. Zero bounds load the whole
// table.
func (k *KE4) BuildSegment(ctx context.Context, model string, start, end int64) (json.RawMessage, error) {
	body := segmentBuild{Project: k.project}
	if start != 0 || end != 0 {
		body.Start = strconv.FormatInt(start, 10)
		body.End = strconv.FormatInt(end, 10)
	}
	var out json.RawMessage
	if err := k.r.Post(ctx, "/models/"+model+"/segments", nil, body, &out); err != nil {
		return nil, modelError(model, "building segment", err)
	}
	return out, nil
}

func (k *KE4) MergeSegments(ctx context.Context, model string, ids []string) (json.RawMessage, error) {
	return k.updateSegments(ctx, model, schema.BuildTypeMerge, ids)
}

func (k *KE4) RefreshSegments(ctx context.Context, model string, ids []string) (json.RawMessage, error) {
	return k.updateSegments(ctx, model, schema.BuildTypeRefresh, ids)
}

func (k *KE4) updateSegments(ctx context.Context, model, kind string, ids []string) (json.RawMessage, error) {
	var out json.RawMessage
	body := segmentUpdate{Project: k.project, Type: kind, IDs: ids}
	if err := k.r.Put(ctx, "/models/"+model+"/segments", nil, body, &out); err != nil {
		return nil, modelError(model, "updating segments", err)
	}
	return out, nil
}

func (k *KE4) DeleteSegments(ctx context.Context, model string, ids []string) (json.RawMessage, error) {
	params := url.Values{
		"project": {k.project},
		"purge":   {"false"},
		"ids":     ids,
	}
	var out json.RawMessage
	if err := k.r.Delete(ctx, "/models/"+model+"/segments", params, &out); err != nil {
		return nil, modelError(model, "deleting segments", err)
	}
	return out, nil
}

// v4Segment is the v4 segment shape, with the range nested.
type v4Segment struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Status   string `json:"status"`
	SegRange struct {
		Start int64 `json:"date_range_start"`
		End   int64 `json:"date_range_end"`
	} `json:"segRange"`
	BytesSize     int64 `json:"bytes_size"`
	LastBuildTime int64 `json:"last_build_time"`
}

func (k *KE4) ModelSegments(ctx context.Context, model string) ([]schema.Segment, error) {
	var out page[v4Segment]
	if err := k.r.Get(ctx, "/models/"+model+"/segments", k.projectParams(), &out); err != nil {
		return nil, modelError(model, "listing segments", err)
	}
	segs := make([]schema.Segment, 0, len(out.Value))
	for _, s := range out.Value {
		segs = append(segs, schema.Segment{
			ID:             s.ID,
			Name:           s.Name,
			Status:         s.Status,
			DateRangeStart: s.SegRange.Start,
			DateRangeEnd:   s.SegRange.End,
			BytesSize:      s.BytesSize,
			LastBuildTime:  s.LastBuildTime,
		})
	}
	return segs, nil
}

func (k *KE4) RefreshCatalogCache(ctx context.Context, tables []string) (json.RawMessage, error) {
	var out json.RawMessage
	body := map[string][]string{"tables": tables}
	if err := k.r.Put(ctx, "/tables/catalog_cache", nil, body, &out); err != nil {
		return nil, fmt.Errorf("refreshing catalog cache: %w", err)
	}
	return out, nil
}

func (k *KE4) Indexes(ctx context.Context, model string) (json.RawMessage, error) {
	var out json.RawMessage
	if err := k.r.Get(ctx, "/models/"+model+"/indexes", k.projectParams(), &out); err != nil {
		return nil, modelError(model, "listing indexes", err)
	}
	return out, nil
}

func (k *KE4) BuildIndexes(ctx context.Context, model string) (json.RawMessage, error) {
	var out json.RawMessage
	body := map[string]string{"project": k.project}
	if err := k.r.Post(ctx, "/models/"+model+"/indexes", nil, body, &out); err != nil {
		return nil, modelError(model, "building indexes", err)
	}
	return out, nil
}

func (k *KE4) DeleteIndex(ctx context.Context, model string, id int64) (json.RawMessage, error) {
	var out json.RawMessage
	endpoint := "/models/" + model + "/indexes/" + strconv.FormatInt(id, 10)
	if err := k.r.Delete(ctx, endpoint, k.projectParams(), &out); err != nil {
		return nil, modelError(model, "deleting index", err)
	}
	return out, nil
}

func (k *KE4) IndexRules(ctx context.Context, model string) (json.RawMessage, error) {
	var out json.RawMessage
	params := url.Values{"project": {k.project}, "model": {model}}
	if err := k.r.Get(ctx, "/index_plans/rule", params, &out); err != nil {
		return nil, modelError(model, "listing index rules", err)
	}
	return out, nil
}

// PutIndexRules replaces the model's rule-based indexes. rules must encode
// to a JSON object; project and model are added to it.
func (k *KE4) PutIndexRules(ctx context.Context, model string, rules any) (json.RawMessage, error) {
	raw, err := json.Marshal(rules)
	if err != nil {
		return nil, fmt.Errorf("encoding index rules: %w", err)
	}
	body := map[string]any{}
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, fmt.Errorf("index rules must be an object: %w", err)
	}
	body["project"] = k.project
	body["model"] = model

	var out json.RawMessage
	if err := k.r.Put(ctx, "/index_plans/rule", nil, body, &out); err != nil {
		return nil, modelError(model, "updating index rules", err)
	}
	return out, nil
}

func modelError(model, doing string, err error) error {
	return fmt.Errorf("model %s: %s: %w: %w", model, doing, apperrors.ErrModel, err)
}
