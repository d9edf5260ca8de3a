package kylin

import (
	"context"
	"fmt"
	"time"

	"github.com/kylinctl/kylinctl/internal/schema"
	"github.com/kylinctl/kylinctl/internal/service"
	"github.com/kylinctl/kylinctl/internal/typemap"
)

// Column describes one result column.
type Column struct {
	Name      string `json:"name" yaml:"name"`
	Label     string `json:"label" yaml:"label"`
	TypeName  string `json:"type" yaml:"type"`
	Nullable  bool   `json:"nullable" yaml:"nullable"`
	Precision int    `json:"precision" yaml:"precision"`
	Scale     int    `json:"scale" yaml:"scale"`
}

// Result is a query result with cells converted to Go values. A NULL cell
// is nil.
type Result struct {
	Columns  []Column
	Rows     [][]any
	Cube     string
	Duration time.Duration
}

// ColumnNames returns the result labels in order.
func (r *Result) ColumnNames() []string {
	names := make([]string, len(r.Columns))
	for i, c := range r.Columns {
		names[i] = c.Label
	}
	return names
}

// QueryOption adjusts a query request.
type QueryOption func(*service.QueryOptions)

// WithLimit caps the number of rows.
func WithLimit(n int) QueryOption {
	return func(o *service.QueryOptions) { o.Limit = n }
}

// WithOffset skips the first n rows.
func WithOffset(n int) QueryOption {
	return func(o *service.QueryOptions) { o.Offset = n }
}

// WithAcceptPartial lets the server return a partial result.
func WithAcceptPartial() QueryOption {
	return func(o *service.QueryOptions) { o.AcceptPartial = true }
}

// Query runs sql in the project.
func (p *Project) Query(ctx context.Context, sql string, opts ...QueryOption) (*Result, error) {
	qo := service.DefaultQueryOptions()
	for _, opt := range opts {
		opt(&qo)
	}

	start := time.Now()
	raw, err := p.svc.Query(ctx, sql, qo)
	if err != nil {
		return nil, err
	}
	res, err := convertResult(raw)
	if err != nil {
		return nil, err
	}
	p.logger.Debug("query", "rows", len(res.Rows), "cube", res.Cube, "elapsed", time.Since(start))
	return res, nil
}

func convertResult(raw *schema.QueryResult) (*Result, error) {
	res := &Result{
		Columns:  make([]Column, len(raw.ColumnMetas)),
		Rows:     make([][]any, 0, len(raw.Results)),
		Cube:     raw.Cube,
		Duration: time.Duration(raw.Duration) * time.Millisecond,
	}
	for i, m := range raw.ColumnMetas {
		label := m.Label
		if label == "" {
			label = m.Name
		}
		res.Columns[i] = Column{
			Name:      m.Name,
			Label:     label,
			TypeName:  m.ColumnTypeName,
			Nullable:  m.IsNullable != 0,
			Precision: m.Precision,
			Scale:     m.Scale,
		}
	}

	for r, cells := range raw.Results {
		if len(cells) != len(res.Columns) {
			return nil, fmt.Errorf("row %d has %d cells, want %d", r, len(cells), len(res.Columns))
		}
		row := make([]any, len(cells))
		for i, cell := range cells {
			if cell == nil {
				continue
			}
			v, err := typemap.ToRuntimeValue(res.Columns[i].TypeName, *cell)
			if err != nil {
				return nil, fmt.Errorf("row %d column %s: %w", r, res.Columns[i].Label, err)
			}
			row[i] = v
		}
		res.Rows = append(res.Rows, row)
	}
	return res, nil
}
