package schema

import (
	"fmt"
	"sort"
	"strings"
)

// CatalogTable is one entry of the tables_and_columns catalog.
type CatalogTable struct {
	Schema  string          `json:"table_SCHEM"`
	Name    string          `json:"table_NAME"`
	Type    string          `json:"table_TYPE,omitempty"`
	Columns []CatalogColumn `json:"columns"`
}

// FullName returns "<schema>.<table>".
func (t CatalogTable) FullName() string {
	return t.Schema + "." + t.Name
}

// Column finds a column by name.
func (t CatalogTable) Column(name string) (CatalogColumn, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return CatalogColumn{}, false
}

// CatalogColumn is a column of a catalog table.
type CatalogColumn struct {
	Name       string `json:"column_NAME"`
	TypeName   string `json:"type_NAME"`
	ColumnSize int    `json:"column_SIZE,omitempty"`
	Position   int    `json:"ordinal_POSITION,omitempty"`
	IsNullable string `json:"is_NULLABLE,omitempty"`
}

// TableCatalog maps "<schema>.<table>" to its catalog entry.
type TableCatalog map[string]CatalogTable

// NewTableCatalog keys the given tables by full name.
func NewTableCatalog(tables []CatalogTable) TableCatalog {
	tc := make(TableCatalog, len(tables))
	for _, t := range tables {
		tc[t.FullName()] = t
	}
	return tc
}

// Names returns the full table names, sorted.
func (tc TableCatalog) Names() []string {
	names := make([]string, 0, len(tc))
	for n := range tc {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Schemas returns the distinct schema names, sorted.
func (tc TableCatalog) Schemas() []string {
	seen := make(map[string]bool)
	var out []string
	for _, t := range tc {
		if !seen[t.Schema] {
			seen[t.Schema] = true
			out = append(out, t.Schema)
		}
	}
	sort.Strings(out)
	return out
}

// TablesIn returns the table names of one schema, sorted.
func (tc TableCatalog) TablesIn(schemaName string) []string {
	var out []string
	for _, t := range tc {
		if strings.EqualFold(t.Schema, schemaName) {
			out = append(out, t.Name)
		}
	}
	sort.Strings(out)
	return out
}

// ColumnType returns the raw type of fullname's column.
func (tc TableCatalog) ColumnType(fullname, column string) (string, bool) {
	t, ok := tc[fullname]
	if !ok {
		return "", false
	}
	c, ok := t.Column(column)
	if !ok {
		return "", false
	}
	return c.TypeName, true
}

// Summary returns a human-readable summary of the catalog.
func (tc TableCatalog) Summary() string {
	var cols int
	for _, t := range tc {
		cols += len(t.Columns)
	}
	return fmt.Sprintf("Found %d tables in %d schemas, %d columns",
		len(tc), len(tc.Schemas()), cols)
}
