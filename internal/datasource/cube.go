package datasource

import (
	"fmt"
	"time"

	"github.com/kylinctl/kylinctl/internal/measure"
	"github.com/kylinctl/kylinctl/internal/schema"
)

// Cube is a v1 or v2 cube normalized against its model and the
// project's table catalog.
type Cube struct {
	snapshot
	name         string
	modelName    string
	project      string
	uuid         string
	lastModified int64
	version      string
	ops          CubeOperator
	now          func() time.Time
}

var _ Datasource = (*Cube)(nil)

// NewCube normalizes a cube description. A dimension whose column is
// missing from catalog fails the whole cube.
func NewCube(desc *schema.CubeDesc, model *schema.ModelDesc, catalog schema.TableCatalog, opts ...Option) (*Cube, error) {
	if desc == nil || model == nil {
		return nil, fmt.Errorf("cube: missing cube or model description")
	}
	o := buildOptions(opts)

	fact, err := factTable(model.FactTable)
	if err != nil {
		return nil, fmt.Errorf("cube %s: %w", desc.Name, err)
	}

	c := &Cube{
		snapshot: snapshot{
			fact:         fact,
			modelLookups: model.Lookups,
		},
		name:         desc.Name,
		modelName:    model.Name,
		project:      o.project,
		uuid:         desc.UUID,
		lastModified: desc.LastModified,
		version:      o.version,
		ops:          o.cubeOps,
		now:          o.now,
	}

	tables := lookupTables(model.Lookups)
	for _, d := range desc.Dimensions {
		table := tableFor(d.Table, tables, fact)
		column := d.PhysicalColumn()

		raw, ok := catalog.ColumnType(table.FullName, column)
		if !ok {
			return nil, &MetadataConsistencyError{Model: desc.Name, Table: table.FullName, Column: column}
		}
		c.dimensions = append(c.dimensions, schema.Dimension{
			Table:  table,
			Column: schema.Column{Name: column, Alias: d.Name, RawType: raw},
		})
	}

	for _, m := range desc.Measures {
		c.measures = append(c.measures, measure.Build(m.Name, m.Function.Expression, m.Function.Parameter))
	}

	o.logger.Debug("normalized cube",
		"cube", c.name,
		"model", c.modelName,
		"dimensions", len(c.dimensions),
		"measures", len(c.measures),
	)
	return c, nil
}

func (c *Cube) Name() string        { return c.name }
func (c *Cube) Kind() Kind          { return KindCube }
func (c *Cube) LastModified() int64 { return c.lastModified }

// Identity is the cube uuid, or a name-based UUID of
// "<project>.<cube>.cube" when the description has none.
func (c *Cube) Identity() string {
	if c.uuid != "" {
		return c.uuid
	}
	return nameIdentity(c.project, c.name, KindCube)
}

// ModelName is the model the cube is built on.
func (c *Cube) ModelName() string { return c.modelName }

// Version is the service version the cube was read from.
func (c *Cube) Version() string { return c.version }

func (c *Cube) String() string {
	return fmt.Sprintf("<Cube %s of model %s>", c.name, c.modelName)
}
