package schema

import (
	"fmt"
	"strings"

	"github.com/kylinctl/kylinctl/internal/typemap"
)

// Table is a physical table referenced under an alias.
type Table struct {
	FullName string `json:"fullname" yaml:"fullname"`
	Alias    string `json:"alias" yaml:"alias"`
}

// NewTable returns a Table for fullname. An empty alias defaults to the
// table part of fullname.
func NewTable(fullname, alias string) Table {
	t := Table{FullName: fullname, Alias: alias}
	if alias == "" {
		t.Alias = t.Name()
	}
	return t
}

// Schema returns the part of the full name before the dot.
func (t Table) Schema() string {
	s, _, _ := strings.Cut(t.FullName, ".")
	return s
}

// Name returns the part of the full name after the dot.
func (t Table) Name() string {
	_, n, _ := strings.Cut(t.FullName, ".")
	return n
}

// Validate checks that the full name has exactly one separator.
func (t Table) Validate() error {
	if strings.Count(t.FullName, ".") != 1 {
		return fmt.Errorf("table %q: full name must be <schema>.<table>", t.FullName)
	}
	return nil
}

func (t Table) String() string {
	return fmt.Sprintf("%s AS %s", t.FullName, t.Alias)
}

// Column is a physical column with its human label and raw remote type.
type Column struct {
	Name    string `json:"name" yaml:"name"`
	Alias   string `json:"alias" yaml:"alias"`
	RawType string `json:"raw_type" yaml:"raw_type"`
}

// Type parses the raw remote type.
func (c Column) Type() (typemap.Descriptor, error) {
	return typemap.Parse(c.RawType)
}

// Datatype renders the parsed type, e.g. VARCHAR(4096).
func (c Column) Datatype() (string, error) {
	d, err := c.Type()
	if err != nil {
		return "", err
	}
	return d.String(), nil
}

// Dimension is one analytic attribute of a datasource.
type Dimension struct {
	Table  Table  `json:"table" yaml:"table"`
	Column Column `json:"column" yaml:"column"`
	// ID and Status are only reported by model-based backends.
	ID     int    `json:"id,omitempty" yaml:"id,omitempty"`
	Status string `json:"status,omitempty" yaml:"status,omitempty"`
	// Desc is only reported by datasets.
	Desc string `json:"desc,omitempty" yaml:"desc,omitempty"`
}

// Name is the SQL-facing identifier "<table alias>.<column>".
func (d Dimension) Name() string {
	return d.Table.Alias + "." + d.Column.Name
}

// Verbose is the human label.
func (d Dimension) Verbose() string {
	return d.Column.Alias
}

// Datatype renders the column's parsed type.
func (d Dimension) Datatype() (string, error) {
	return d.Column.Datatype()
}

// Measure is one aggregate of a datasource.
type Measure struct {
	Name    string `json:"name" yaml:"name"`
	Verbose string `json:"verbose" yaml:"verbose"`
	// Type is the aggregation tag, e.g. SUM or COUNT_DISTINCT.
	Type string `json:"measure_type" yaml:"measure_type"`
	// Expression is empty when the aggregation has no SQL form.
	Expression  string   `json:"expression,omitempty" yaml:"expression,omitempty"`
	ValueTables []string `json:"value_tables,omitempty" yaml:"value_tables,omitempty"`
	Desc        string   `json:"desc,omitempty" yaml:"desc,omitempty"`
}

// HasExpression reports whether the measure can be rendered in SQL.
func (m Measure) HasExpression() bool {
	return m.Expression != ""
}

// JoinSpec describes how a lookup joins. PrimaryKey[i] pairs with ForeignKey[i].
type JoinSpec struct {
	Type       string   `json:"type" yaml:"type"`
	PrimaryKey []string `json:"primary_key" yaml:"primary_key"`
	ForeignKey []string `json:"foreign_key" yaml:"foreign_key"`
}

// IsLeft reports whether the join is a left outer join.
func (j JoinSpec) IsLeft() bool {
	return strings.EqualFold(j.Type, "left")
}

// LookupEdge is a lookup table declared by a model.
type LookupEdge struct {
	Alias string   `json:"alias" yaml:"alias"`
	Table string   `json:"table" yaml:"table"`
	Kind  string   `json:"kind,omitempty" yaml:"kind,omitempty"`
	Join  JoinSpec `json:"join" yaml:"join"`
}

// Validate checks the key pairing of the edge.
func (l LookupEdge) Validate() error {
	if len(l.Join.PrimaryKey) != len(l.Join.ForeignKey) {
		return fmt.Errorf("lookup %s: %d primary key columns but %d foreign key columns",
			l.Alias, len(l.Join.PrimaryKey), len(l.Join.ForeignKey))
	}
	if len(l.Join.ForeignKey) == 0 {
		return fmt.Errorf("lookup %s: no join columns", l.Alias)
	}
	return nil
}

// ParameterNode is one link of a measure's parameter chain.
type ParameterNode struct {
	Type  string         `json:"type" yaml:"type"`
	Value string         `json:"value" yaml:"value"`
	Next  *ParameterNode `json:"next_parameter,omitempty" yaml:"next_parameter,omitempty"`
}
