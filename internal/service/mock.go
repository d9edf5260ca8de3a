package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/kylinctl/kylinctl/internal/apperrors"
	"github.com/kylinctl/kylinctl/internal/schema"
)

// Mock is a test double for the Service interface. A nil map or slice
// behaves like an empty server. Err, when set, fails every call.
type Mock struct {
	ServiceVersion string
	ProjectName    string

	ProjectList []schema.Project
	Catalog     schema.TableCatalog
	Hive        map[string]schema.TableDesc
	CubeDescs   map[string]*schema.CubeDesc
	ModelList   []schema.ModelDesc
	V4Models    map[string]*schema.V4ModelDesc
	CubeList    []schema.CubeInfo
	User        *schema.UserDetails
	JobList     []schema.JobDesc

	QueryResult *schema.QueryResult
	QueryErr    error
	Err         error

	mu      sync.Mutex
	Queries []string
	Actions []string
}

var _ Service = (*Mock)(nil)

func (m *Mock) Version() string {
	if m.ServiceVersion == "" {
		return "v1"
	}
	return m.ServiceVersion
}

func (m *Mock) Project() string { return m.ProjectName }

func (m *Mock) record(list *[]string, entry string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	*list = append(*list, entry)
}

func (m *Mock) Query(_ context.Context, sql string, _ QueryOptions) (*schema.QueryResult, error) {
	m.record(&m.Queries, sql)
	if m.Err != nil {
		return nil, m.Err
	}
	if m.QueryErr != nil {
		return nil, m.QueryErr
	}
	if m.QueryResult == nil {
		return &schema.QueryResult{}, nil
	}
	return m.QueryResult, nil
}

func (m *Mock) Projects(context.Context) ([]schema.Project, error) {
	return m.ProjectList, m.Err
}

func (m *Mock) TablesAndColumns(context.Context) (schema.TableCatalog, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	if m.Catalog == nil {
		return schema.TableCatalog{}, nil
	}
	return m.Catalog, nil
}

func (m *Mock) TablesInHive(context.Context) (map[string]schema.TableDesc, error) {
	return m.Hive, m.Err
}

func (m *Mock) CubeDesc(_ context.Context, name string) (*schema.CubeDesc, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	if d, ok := m.CubeDescs[name]; ok {
		return d, nil
	}
	return nil, fmt.Errorf("cube %s: %w", name, apperrors.ErrNotFound)
}

func (m *Mock) ModelDesc(_ context.Context, name string) (*schema.ModelDesc, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	for i := range m.ModelList {
		if m.ModelList[i].Name == name {
			return &m.ModelList[i], nil
		}
	}
	return nil, fmt.Errorf("model %s: %w", name, apperrors.ErrNotFound)
}

func (m *Mock) V4ModelDesc(_ context.Context, name string) (*schema.V4ModelDesc, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	if d, ok := m.V4Models[name]; ok {
		return d, nil
	}
	return nil, fmt.Errorf("model %s: %w", name, apperrors.ErrNotFound)
}

func (m *Mock) Models(context.Context) ([]schema.ModelDesc, error) {
	return m.ModelList, m.Err
}

func (m *Mock) Cubes(context.Context) ([]schema.CubeInfo, error) {
	return m.CubeList, m.Err
}

func (m *Mock) CubeNames(context.Context) ([]string, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	var names []string
	for _, c := range m.CubeList {
		if c.Status == statusReady {
			names = append(names, c.Name)
		}
	}
	return names, nil
}

func (m *Mock) Authentication(context.Context) (*schema.UserDetails, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	if m.User == nil {
		return nil, apperrors.ErrUnauthorized
	}
	return m.User, nil
}

func (m *Mock) Jobs(context.Context, JobFilter) ([]schema.JobDesc, error) {
	return m.JobList, m.Err
}

func (m *Mock) JobDesc(_ context.Context, id string) (*schema.JobDesc, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	for i := range m.JobList {
		if m.JobList[i].UUID == id {
			return &m.JobList[i], nil
		}
	}
	return nil, fmt.Errorf("job %s: %w", id, apperrors.ErrNotFound)
}

func (m *Mock) MaintainJob(ctx context.Context, id, action string) (*schema.JobDesc, error) {
	m.record(&m.Actions, action+" "+id)
	return m.JobDesc(ctx, id)
}

func (m *Mock) DropJob(_ context.Context, id string) error {
	m.record(&m.Actions, "drop "+id)
	return m.Err
}
