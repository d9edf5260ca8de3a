package datasource

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/kylinctl/kylinctl/internal/measure"
	"github.com/kylinctl/kylinctl/internal/schema"
)

// Hierarchy is a named drill path over dimensions of one table.
type Hierarchy struct {
	Name     string             `json:"name" yaml:"name"`
	Desc     string             `json:"desc,omitempty" yaml:"desc,omitempty"`
	Children []schema.Dimension `json:"children" yaml:"children"`
}

// Dataset is a curated view over a model with its own labels,
// hierarchies and calculated measures.
type Dataset struct {
	snapshot
	name         string
	project      string
	lastModified int64
	hierarchies  []Hierarchy
	calculated   []schema.Measure
}

var _ Datasource = (*Dataset)(nil)

// NewDataset normalizes a dataset description. lookups are the lookups of
// the model the dataset is built on. A hierarchy level naming a column the
// dimension table does not declare is logged and left out.
func NewDataset(desc *schema.DatasetDesc, lookups []schema.LookupEdge, opts ...Option) (*Dataset, error) {
	if desc == nil || desc.DatasetName == "" || len(desc.Models) == 0 {
		return nil, fmt.Errorf("invalid dataset description")
	}
	o := buildOptions(opts)
	dm := desc.Models[0]

	fact, err := factTable(dm.FactTable)
	if err != nil {
		return nil, fmt.Errorf("dataset %s: %w", desc.DatasetName, err)
	}

	ds := &Dataset{
		snapshot:     snapshot{fact: fact, modelLookups: lookups},
		name:         desc.DatasetName,
		project:      desc.Project,
		lastModified: desc.LastModified * 1000,
	}
	if desc.LastModified <= 0 {
		ds.lastModified = o.now().UnixMilli()
	}

	tables := lookupTables(lookups)
	for _, dt := range dm.DimensionTables {
		table := tableFor(dt.Name, tables, fact)
		byColumn := make(map[string]schema.Dimension, len(dt.DimCols))
		for _, col := range dt.DimCols {
			d := schema.Dimension{
				Table:  table,
				Column: schema.Column{Name: col.Name, Alias: col.Alias, RawType: col.DataType},
				Desc:   col.Desc,
			}
			ds.dimensions = append(ds.dimensions, d)
			byColumn[col.Name] = d
		}

		for _, h := range dt.Hierarchies {
			hier := Hierarchy{Name: h.Name, Desc: h.Desc}
			for _, c := range h.DimCols {
				d, ok := byColumn[c]
				if !ok {
					o.logger.Warn("skipping hierarchy column",
						"dataset", ds.name, "hierarchy", h.Name, "table", table.FullName, "column", c)
					continue
				}
				hier.Children = append(hier.Children, d)
			}
			ds.hierarchies = append(ds.hierarchies, hier)
		}
	}

	for _, meas := range dm.Measures {
		ds.measures = append(ds.measures, datasetMeasure(meas))
	}
	for _, cm := range desc.CalculateMeasures {
		ds.calculated = append(ds.calculated, schema.Measure{
			Name:       cm.Name,
			Verbose:    cm.Name,
			Expression: cm.Expression,
			Desc:       cm.Desc,
		})
	}
	return ds, nil
}

func datasetMeasure(dm schema.DatasetMeasure) schema.Measure {
	m := schema.Measure{
		Name:    dm.Name,
		Verbose: dm.Alias,
		Type:    dm.Expression,
		Desc:    dm.Desc,
	}
	operand := dm.DimColumn
	if operand == measure.TypeConstant {
		operand = "1"
	} else if t, ok := measure.ColumnTable(operand); ok {
		m.ValueTables = []string{t}
	}
	if operand != "" {
		m.Expression, _ = measure.Synthesize(dm.Expression, operand)
	}
	return m
}

func (d *Dataset) Name() string        { return d.name }
func (d *Dataset) Kind() Kind          { return KindDataset }
func (d *Dataset) LastModified() int64 { return d.lastModified }

// Identity is a name-based UUID of "<project>.<dataset>.SQL".
func (d *Dataset) Identity() string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(fmt.Sprintf("%s.%s.SQL", d.project, d.name))).String()
}

// Hierarchies returns the dataset's drill paths.
func (d *Dataset) Hierarchies() []Hierarchy { return d.hierarchies }

// CalculatedMeasures returns measures defined by a literal expression.
func (d *Dataset) CalculatedMeasures() []schema.Measure { return d.calculated }

func (d *Dataset) String() string {
	return fmt.Sprintf("<Dataset %s>", d.name)
}
