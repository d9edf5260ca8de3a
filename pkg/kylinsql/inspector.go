package kylinsql

import (
	"context"
	"sort"
	"strings"

	"github.com/kylinctl/kylinctl/internal/datasource"
	"github.com/kylinctl/kylinctl/internal/sqlgen"
	"github.com/kylinctl/kylinctl/internal/typemap"
	"github.com/kylinctl/kylinctl/pkg/kylin"
)

// ColumnInfo is one reflected column.
type ColumnInfo struct {
	Name string
	Type typemap.Descriptor
}

// Inspector reflects the tables a project can query. Keys, indexes and
// views do not exist in Kylin and are always empty.
type Inspector struct {
	project *kylin.Project
}

func NewInspector(p *kylin.Project) *Inspector {
	return &Inspector{project: p}
}

// SchemaNames returns the distinct schemas of the table datasources.
func (in *Inspector) SchemaNames(ctx context.Context) ([]string, error) {
	tables, err := in.project.DatasourceNames(ctx, datasource.KindTable)
	if err != nil {
		return nil, err
	}
	seen := map[string]bool{}
	var schemas []string
	for _, t := range tables {
		s, _, _ := strings.Cut(t, ".")
		if !seen[s] {
			seen[s] = true
			schemas = append(schemas, s)
		}
	}
	sort.Strings(schemas)
	return schemas, nil
}

// TableNames returns the full table names, or the bare names of one
// schema's tables when schema is set.
func (in *Inspector) TableNames(ctx context.Context, schema string) ([]string, error) {
	tables, err := in.project.DatasourceNames(ctx, datasource.KindTable)
	if err != nil {
		return nil, err
	}
	if schema == "" {
		return tables, nil
	}
	var names []string
	for _, t := range tables {
		if s, name, ok := strings.Cut(t, "."); ok && s == schema {
			names = append(names, name)
		}
	}
	return names, nil
}

// Columns reflects a table's columns. table may be qualified, or schema
// may be given separately.
func (in *Inspector) Columns(ctx context.Context, table, schema string) ([]ColumnInfo, error) {
	fullname := table
	if schema != "" {
		fullname = schema + "." + table
	}
	ds, err := in.project.Datasource(ctx, fullname, datasource.KindTable)
	if err != nil {
		return nil, err
	}

	dims := ds.Dimensions()
	cols := make([]ColumnInfo, 0, len(dims))
	for _, d := range dims {
		typ, err := d.Column.Type()
		if err != nil {
			return nil, err
		}
		cols = append(cols, ColumnInfo{Name: d.Column.Name, Type: typ})
	}
	return cols, nil
}

func (in *Inspector) ForeignKeys(context.Context, string) ([]string, error) { return nil, nil }
func (in *Inspector) Indexes(context.Context, string) ([]string, error)     { return nil, nil }
func (in *Inspector) ViewNames(context.Context, string) ([]string, error)   { return nil, nil }
func (in *Inspector) PrimaryKey(context.Context, string) ([]string, error)  { return nil, nil }

// HasTable always reports false; existence checks are left to the server.
func (in *Inspector) HasTable(context.Context, string) bool { return false }

// QuoteIdentifier quotes name when Calcite would otherwise misread it.
func QuoteIdentifier(name string) string {
	return sqlgen.QuoteIdentifier(name)
}
