package kylin

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/kylinctl/kylinctl/internal/apperrors"
	"github.com/kylinctl/kylinctl/internal/datasource"
	"github.com/kylinctl/kylinctl/internal/schema"
)

// fetchConcurrency bounds the parallel metadata requests of Datasources.
const fetchConcurrency = 4

// SourceTypes returns the datasource kinds this project exposes.
func (p *Project) SourceTypes() []datasource.Kind {
	return datasource.SourceTypes(p.Version())
}

// Datasource fetches and normalizes one datasource.
func (p *Project) Datasource(ctx context.Context, name string, kind datasource.Kind) (datasource.Datasource, error) {
	switch kind {
	case datasource.KindCube:
		return p.cube(ctx, name)
	case datasource.KindModel:
		return p.model(ctx, name)
	case datasource.KindTable:
		return p.table(ctx, name)
	}
	return nil, fmt.Errorf("datasource kind %s: %w", kind, apperrors.ErrUnsupportedAPI)
}

func (p *Project) cube(ctx context.Context, name string) (*datasource.Cube, error) {
	desc, err := p.svc.CubeDesc(ctx, name)
	if err != nil {
		return nil, err
	}
	model, err := p.svc.ModelDesc(ctx, desc.ModelName)
	if err != nil {
		return nil, err
	}
	catalog, err := p.svc.TablesAndColumns(ctx)
	if err != nil {
		return nil, err
	}

	opts := []datasource.Option{
		datasource.WithLogger(p.logger),
		datasource.WithVersion(p.Version()),
		datasource.WithProject(p.Name()),
	}
	if op, ok := p.svc.(datasource.CubeOperator); ok {
		opts = append(opts, datasource.WithCubeOperator(op))
	}
	return datasource.NewCube(desc, model, catalog, opts...)
}

func (p *Project) model(ctx context.Context, name string) (*datasource.Model, error) {
	desc, err := p.svc.V4ModelDesc(ctx, name)
	if err != nil {
		return nil, err
	}
	opts := []datasource.Option{
		datasource.WithLogger(p.logger),
		datasource.WithVersion(p.Version()),
		datasource.WithProject(p.Name()),
	}
	if op, ok := p.svc.(datasource.ModelOperator); ok {
		opts = append(opts, datasource.WithModelOperator(op))
	}
	return datasource.NewModel(desc, opts...)
}

func (p *Project) table(ctx context.Context, name string) (*datasource.Table, error) {
	if p.pushdown {
		tables, err := p.svc.TablesInHive(ctx)
		if err != nil {
			return nil, err
		}
		td, ok := tables[name]
		if !ok {
			return nil, fmt.Errorf("table %s: %w", name, apperrors.ErrNoSuchTable)
		}
		return datasource.TableFromDesc(td)
	}

	catalog, err := p.svc.TablesAndColumns(ctx)
	if err != nil {
		return nil, err
	}
	ct, ok := catalog[name]
	if !ok {
		return nil, fmt.Errorf("table %s: %w", name, apperrors.ErrNoSuchTable)
	}
	return datasource.TableFromCatalog(ct)
}

// DatasourceNames lists the names of one kind of datasource, sorted.
func (p *Project) DatasourceNames(ctx context.Context, kind datasource.Kind) ([]string, error) {
	var names []string
	switch kind {
	case datasource.KindCube:
		cubes, err := p.svc.CubeNames(ctx)
		if err != nil {
			return nil, err
		}
		names = cubes
	case datasource.KindModel:
		models, err := p.svc.Models(ctx)
		if err != nil {
			return nil, err
		}
		for _, m := range models {
			names = append(names, m.Name)
		}
	case datasource.KindTable:
		if p.pushdown {
			tables, err := p.svc.TablesInHive(ctx)
			if err != nil {
				return nil, err
			}
			return datasource.TableNames(tables), nil
		}
		catalog, err := p.svc.TablesAndColumns(ctx)
		if err != nil {
			return nil, err
		}
		return catalog.Names(), nil
	default:
		return nil, fmt.Errorf("datasource kind %s: %w", kind, apperrors.ErrUnsupportedAPI)
	}
	sort.Strings(names)
	return names, nil
}

// AllDatasourceNames lists the names of every kind the project exposes.
func (p *Project) AllDatasourceNames(ctx context.Context) (map[datasource.Kind][]string, error) {
	kinds := p.SourceTypes()
	results := make([][]string, len(kinds))

	g, ctx := errgroup.WithContext(ctx)
	for i, kind := range kinds {
		i, kind := i, kind
		g.Go(func() error {
			names, err := p.DatasourceNames(ctx, kind)
			if err != nil {
				return fmt.Errorf("listing %s names: %w", kind, err)
			}
			results[i] = names
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make(map[datasource.Kind][]string, len(kinds))
	for i, kind := range kinds {
		out[kind] = results[i]
	}
	return out, nil
}

// Datasources fetches every datasource of kind in parallel. The result
// follows the sorted name order.
func (p *Project) Datasources(ctx context.Context, kind datasource.Kind) ([]datasource.Datasource, error) {
	names, err := p.DatasourceNames(ctx, kind)
	if err != nil {
		return nil, err
	}
	if kind == datasource.KindTable {
		return p.tables(ctx, names)
	}

	out := make([]datasource.Datasource, len(names))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(fetchConcurrency)
	for i, name := range names {
		i, name := i, name
		g.Go(func() error {
			ds, err := p.Datasource(ctx, name, kind)
			if err != nil {
				return fmt.Errorf("%s %s: %w", kind, name, err)
			}
			out[i] = ds
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// tables builds table datasources from one catalog fetch.
func (p *Project) tables(ctx context.Context, names []string) ([]datasource.Datasource, error) {
	out := make([]datasource.Datasource, 0, len(names))
	if p.pushdown {
		tables, err := p.svc.TablesInHive(ctx)
		if err != nil {
			return nil, err
		}
		for _, n := range names {
			t, err := datasource.TableFromDesc(tables[n])
			if err != nil {
				return nil, err
			}
			out = append(out, t)
		}
		return out, nil
	}

	catalog, err := p.svc.TablesAndColumns(ctx)
	if err != nil {
		return nil, err
	}
	for _, n := range names {
		t, err := datasource.TableFromCatalog(catalog[n])
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

// DatasetFromFile loads a dataset description from a JSON or YAML file and
// joins it with the lookups of the model it names.
func (p *Project) DatasetFromFile(ctx context.Context, path string) (*datasource.Dataset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading dataset: %w", err)
	}
	desc, err := decodeDataset(data)
	if err != nil {
		return nil, fmt.Errorf("dataset %s: %w", path, err)
	}

	var lookups []schema.LookupEdge
	if len(desc.Models) > 0 && desc.Models[0].ModelName != "" {
		model, err := p.svc.ModelDesc(ctx, desc.Models[0].ModelName)
		if err != nil {
			return nil, err
		}
		lookups = model.Lookups
	}
	return datasource.NewDataset(desc, lookups, datasource.WithLogger(p.logger))
}

// decodeDataset accepts JSON, or YAML using the same keys.
func decodeDataset(data []byte) (*schema.DatasetDesc, error) {
	var desc schema.DatasetDesc
	if err := json.Unmarshal(data, &desc); err == nil {
		return &desc, nil
	}

	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing dataset: %w", err)
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("converting dataset: %w", err)
	}
	if err := json.Unmarshal(raw, &desc); err != nil {
		return nil, fmt.Errorf("decoding dataset: %w", err)
	}
	return &desc, nil
}
