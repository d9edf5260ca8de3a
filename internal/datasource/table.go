package datasource

import (
	"fmt"
	"sort"

	"github.com/kylinctl/kylinctl/internal/schema"
)

// Table is a single catalog table exposed as a fact-only datasource.
type Table struct {
	snapshot
	name    string
	columns []schema.Column
}

var _ Datasource = (*Table)(nil)

// NewTable builds a table datasource for fullname.
func NewTable(fullname string, columns []schema.Column) (*Table, error) {
	fact := schema.NewTable(fullname, "")
	if err := fact.Validate(); err != nil {
		return nil, err
	}
	t := &Table{snapshot: snapshot{fact: fact}, name: fullname, columns: columns}
	for _, c := range columns {
		t.dimensions = append(t.dimensions, schema.Dimension{Table: fact, Column: c})
	}
	return t, nil
}

// TableFromCatalog builds a table datasource from a tables_and_columns entry.
func TableFromCatalog(ct schema.CatalogTable) (*Table, error) {
	cols := make([]schema.Column, len(ct.Columns))
	for i, c := range ct.Columns {
		cols[i] = schema.Column{Name: c.Name, Alias: c.Name, RawType: c.TypeName}
	}
	return NewTable(ct.FullName(), cols)
}

// TableFromDesc builds a table datasource from a loaded table description.
func TableFromDesc(td schema.TableDesc) (*Table, error) {
	cols := make([]schema.Column, len(td.Columns))
	for i, c := range td.Columns {
		cols[i] = schema.Column{Name: c.Name, Alias: c.Name, RawType: c.Datatype}
	}
	return NewTable(td.FullName(), cols)
}

// TableNames returns the sorted full names of a set of tables.
func TableNames[T any](tables map[string]T) []string {
	names := make([]string, 0, len(tables))
	for n := range tables {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func (t *Table) Name() string { return t.name }
func (t *Table) Kind() Kind   { return KindTable }

// Identity is empty; tables carry no stable id.
func (t *Table) Identity() string { return "" }

// LastModified is 0; tables carry no modification time.
func (t *Table) LastModified() int64 { return 0 }

// Schema is the database part of the table name.
func (t *Table) Schema() string { return t.fact.Schema() }

// Columns returns the table's columns.
func (t *Table) Columns() []schema.Column { return t.columns }

func (t *Table) String() string {
	return fmt.Sprintf("<Table %s>", t.name)
}
