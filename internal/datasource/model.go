package datasource

import (
	"errors"
	"fmt"
	"strings"

	"github.com/kylinctl/kylinctl/internal/measure"
	"github.com/kylinctl/kylinctl/internal/schema"
)

// Model is a v4 model. Its dimensions and measures arrive flattened and
// column types come from the model's own table list.
type Model struct {
	snapshot
	name         string
	alias        string
	project      string
	uuid         string
	lastModified int64
	skipped      []*MetadataConsistencyError
	ops          ModelOperator
}

var _ Datasource = (*Model)(nil)

// NewModel normalizes a v4 model description. A dimension whose column
// cannot be found is logged and left out; the rest of the model is kept.
func NewModel(desc *schema.V4ModelDesc, opts ...Option) (*Model, error) {
	if desc == nil {
		return nil, fmt.Errorf("model: missing description")
	}
	o := buildOptions(opts)

	fact, err := factTable(desc.FactTable)
	if err != nil {
		return nil, fmt.Errorf("model %s: %w", desc.Name, err)
	}

	m := &Model{
		snapshot: snapshot{
			fact:         fact,
			modelLookups: desc.Lookups,
		},
		name:         desc.Name,
		alias:        desc.Alias,
		project:      desc.Project,
		uuid:         desc.UUID,
		lastModified: desc.LastModified,
		ops:          o.modelOps,
	}
	if m.project == "" {
		m.project = o.project
	}

	columns := make(map[string][]schema.V4Column, len(desc.SimplifiedTables))
	for _, t := range desc.SimplifiedTables {
		columns[t.Table] = t.Columns
	}

	tables := lookupTables(desc.Lookups)
	for _, d := range desc.SimplifiedDimensions {
		dim, err := m.dimension(d, tables, columns)
		if err != nil {
			var mce *MetadataConsistencyError
			if !errors.As(err, &mce) {
				return nil, err
			}
			o.logger.Warn("skipping dimension",
				"model", m.name,
				"dimension", d.Name,
				"table", mce.Table,
				"column", mce.Column,
			)
			m.skipped = append(m.skipped, mce)
			continue
		}
		m.dimensions = append(m.dimensions, dim)
	}

	for _, sm := range desc.SimplifiedMeasures {
		m.measures = append(m.measures, v4Measure(sm))
	}

	return m, nil
}

func (m *Model) dimension(d schema.V4Dimension, tables map[string]string, columns map[string][]schema.V4Column) (schema.Dimension, error) {
	alias, column, ok := strings.Cut(d.Column, ".")
	if !ok {
		return schema.Dimension{}, fmt.Errorf("model %s: dimension %s: column %q is not <table>.<column>", m.name, d.Name, d.Column)
	}
	table := tableFor(alias, tables, m.fact)

	for _, c := range columns[table.FullName] {
		if c.Name == column {
			return schema.Dimension{
				Table:  table,
				Column: schema.Column{Name: column, Alias: d.Name, RawType: c.Datatype},
				ID:     d.ID,
				Status: d.Status,
			}, nil
		}
	}
	return schema.Dimension{}, &MetadataConsistencyError{Model: m.name, Table: table.FullName, Column: column}
}

func v4Measure(sm schema.V4Measure) schema.Measure {
	out := schema.Measure{
		Name:        sm.Name,
		Verbose:     sm.Name,
		Type:        sm.Expression,
		ValueTables: measure.ValueTablesOf(sm.ParameterValue),
	}
	if op, ok := measure.OperandOf(sm.ParameterValue); ok {
		out.Expression, _ = measure.Synthesize(sm.Expression, op)
	}
	return out
}

func (m *Model) Name() string        { return m.name }
func (m *Model) Kind() Kind          { return KindModel }
func (m *Model) LastModified() int64 { return m.lastModified }

// Identity is the model uuid, falling back to a name-based UUID.
func (m *Model) Identity() string {
	if m.uuid != "" {
		return m.uuid
	}
	return nameIdentity(m.project, m.name, KindModel)
}

// Alias is the display alias of the model.
func (m *Model) Alias() string { return m.alias }

// Skipped lists the dimensions left out during normalization.
func (m *Model) Skipped() []*MetadataConsistencyError { return m.skipped }

func (m *Model) String() string {
	return fmt.Sprintf("<Model %s>", m.name)
}
