package datasource

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/kylinctl/kylinctl/internal/apperrors"
	"github.com/kylinctl/kylinctl/internal/schema"
)

// CubeOperator is the service surface cube commands call into.
type CubeOperator interface {
	BuildCube(ctx context.Context, cube string, req schema.BuildRequest) (json.RawMessage, error)
	BuildStreamingCube(ctx context.Context, cube string, req schema.StreamingBuildRequest) (json.RawMessage, error)
	CubeSegments(ctx context.Context, cube string) ([]schema.Segment, error)
	DeleteSegment(ctx context.Context, cube, segment string) (json.RawMessage, error)
	// MaintainCube runs enable, disable, purge or clone.
	MaintainCube(ctx context.Context, cube, action string, body any) (json.RawMessage, error)
	DropCube(ctx context.Context, cube string) (json.RawMessage, error)
}

// ModelOperator is the service surface model commands call into.
type ModelOperator interface {
	BuildSegment(ctx context.Context, model string, start, end int64) (json.RawMessage, error)
	MergeSegments(ctx context.Context, model string, ids []string) (json.RawMessage, error)
	RefreshSegments(ctx context.Context, model string, ids []string) (json.RawMessage, error)
	DeleteSegments(ctx context.Context, model string, ids []string) (json.RawMessage, error)
	ModelSegments(ctx context.Context, model string) ([]schema.Segment, error)
	RefreshCatalogCache(ctx context.Context, tables []string) (json.RawMessage, error)
	Indexes(ctx context.Context, model string) (json.RawMessage, error)
	BuildIndexes(ctx context.Context, model string) (json.RawMessage, error)
	DeleteIndex(ctx context.Context, model string, id int64) (json.RawMessage, error)
	IndexRules(ctx context.Context, model string) (json.RawMessage, error)
	PutIndexRules(ctx context.Context, model string, rules any) (json.RawMessage, error)
}

// Args carries the parameters of an invoked command. Fields a command
// does not use are ignored.
type Args struct {
	Start       time.Time
	End         time.Time
	OffsetStart int64
	OffsetEnd   int64
	Segment     string
	IDs         []string
	Name        string
	Tables      []string
}

type command func(ctx context.Context, a Args) (json.RawMessage, error)

func sortedKeys(m map[string]command) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func (c *Cube) commands() map[string]command {
	return map[string]command{
		"fullbuild": func(ctx context.Context, _ Args) (json.RawMessage, error) { return c.FullBuild(ctx) },
		"build":     func(ctx context.Context, a Args) (json.RawMessage, error) { return c.Build(ctx, a.Start, a.End) },
		"merge":     func(ctx context.Context, a Args) (json.RawMessage, error) { return c.Merge(ctx, a.Start, a.End) },
		"refresh":   func(ctx context.Context, a Args) (json.RawMessage, error) { return c.Refresh(ctx, a.Start, a.End) },
		"delete":    func(ctx context.Context, a Args) (json.RawMessage, error) { return c.Delete(ctx, a.Segment) },
		"build_streaming": func(ctx context.Context, a Args) (json.RawMessage, error) {
			return c.streaming(ctx, schema.BuildTypeBuild, a.OffsetStart, a.OffsetEnd)
		},
		"merge_streaming": func(ctx context.Context, a Args) (json.RawMessage, error) {
			return c.streaming(ctx, schema.BuildTypeMerge, a.OffsetStart, a.OffsetEnd)
		},
		"refresh_streaming": func(ctx context.Context, a Args) (json.RawMessage, error) {
			return c.streaming(ctx, schema.BuildTypeRefresh, a.OffsetStart, a.OffsetEnd)
		},
		"disable": func(ctx context.Context, _ Args) (json.RawMessage, error) { return c.maintain(ctx, "disable", nil) },
		"enable":  func(ctx context.Context, _ Args) (json.RawMessage, error) { return c.maintain(ctx, "enable", nil) },
		"purge":   func(ctx context.Context, _ Args) (json.RawMessage, error) { return c.maintain(ctx, "purge", nil) },
		"clone":   func(ctx context.Context, a Args) (json.RawMessage, error) { return c.Clone(ctx, a.Name) },
		"drop":    func(ctx context.Context, _ Args) (json.RawMessage, error) { return c.Drop(ctx) },
	}
}

// Commands lists the commands Invoke accepts.
func (c *Cube) Commands() []string { return sortedKeys(c.commands()) }

// Invoke runs a cube command by name.
func (c *Cube) Invoke(ctx context.Context, name string, a Args) (json.RawMessage, error) {
	cmd, ok := c.commands()[name]
	if !ok {
		return nil, fmt.Errorf("cube %s: unknown command %q: %w", c.name, name, apperrors.ErrCube)
	}
	return cmd(ctx, a)
}

func (c *Cube) operator() (CubeOperator, error) {
	if c.ops == nil {
		return nil, fmt.Errorf("cube %s: no service bound: %w", c.name, apperrors.ErrCube)
	}
	return c.ops, nil
}

// rebuild submits a build job. A zero start means the epoch and a zero
// end means now.
func (c *Cube) rebuild(ctx context.Context, buildType string, start, end time.Time) (json.RawMessage, error) {
	ops, err := c.operator()
	if err != nil {
		return nil, err
	}
	if start.IsZero() {
		start = time.UnixMilli(0)
	}
	if end.IsZero() {
		end = c.now()
	}
	return ops.BuildCube(ctx, c.name, schema.BuildRequest{
		StartTime: start.UnixMilli(),
		EndTime:   end.UnixMilli(),
		BuildType: buildType,
	})
}

// FullBuild builds the whole range from the epoch to now.
func (c *Cube) FullBuild(ctx context.Context) (json.RawMessage, error) {
	return c.rebuild(ctx, schema.BuildTypeBuild, time.Time{}, time.Time{})
}

// Build builds a new segment over [start, end).
func (c *Cube) Build(ctx context.Context, start, end time.Time) (json.RawMessage, error) {
	return c.rebuild(ctx, schema.BuildTypeBuild, start, end)
}

// Merge merges the segments covering [start, end).
func (c *Cube) Merge(ctx context.Context, start, end time.Time) (json.RawMessage, error) {
	return c.rebuild(ctx, schema.BuildTypeMerge, start, end)
}

// Refresh rebuilds the segments covering [start, end).
func (c *Cube) Refresh(ctx context.Context, start, end time.Time) (json.RawMessage, error) {
	return c.rebuild(ctx, schema.BuildTypeRefresh, start, end)
}

func (c *Cube) streaming(ctx context.Context, buildType string, start, end int64) (json.RawMessage, error) {
	ops, err := c.operator()
	if err != nil {
		return nil, err
	}
	return ops.BuildStreamingCube(ctx, c.name, schema.StreamingBuildRequest{
		SourceOffsetStart: start,
		SourceOffsetEnd:   end,
		BuildType:         buildType,
	})
}

// ListSegments returns the cube's segments.
func (c *Cube) ListSegments(ctx context.Context) ([]schema.Segment, error) {
	ops, err := c.operator()
	if err != nil {
		return nil, err
	}
	return ops.CubeSegments(ctx, c.name)
}

// Delete removes one segment by name.
func (c *Cube) Delete(ctx context.Context, segment string) (json.RawMessage, error) {
	ops, err := c.operator()
	if err != nil {
		return nil, err
	}
	if segment == "" {
		return nil, fmt.Errorf("cube %s: delete needs a segment: %w", c.name, apperrors.ErrCube)
	}
	return ops.DeleteSegment(ctx, c.name, segment)
}

func (c *Cube) maintain(ctx context.Context, action string, body any) (json.RawMessage, error) {
	ops, err := c.operator()
	if err != nil {
		return nil, err
	}
	return ops.MaintainCube(ctx, c.name, action, body)
}

// Clone copies the cube under newName, or "<name>_clone" when empty.
func (c *Cube) Clone(ctx context.Context, newName string) (json.RawMessage, error) {
	if newName == "" {
		newName = c.name + "_clone"
	}
	return c.maintain(ctx, "clone", map[string]string{"cubeName": newName})
}

// Drop deletes the cube.
func (c *Cube) Drop(ctx context.Context) (json.RawMessage, error) {
	ops, err := c.operator()
	if err != nil {
		return nil, err
	}
	return ops.DropCube(ctx, c.name)
}

func (m *Model) commands() map[string]command {
	return map[string]command{
		"fullbuild": func(ctx context.Context, _ Args) (json.RawMessage, error) { return m.FullBuild(ctx) },
		"build":     func(ctx context.Context, a Args) (json.RawMessage, error) { return m.Build(ctx, a.Start, a.End) },
		"merge":     func(ctx context.Context, a Args) (json.RawMessage, error) { return m.Merge(ctx, a.IDs) },
		"refresh":   func(ctx context.Context, a Args) (json.RawMessage, error) { return m.Refresh(ctx, a.IDs) },
		"delete":    func(ctx context.Context, a Args) (json.RawMessage, error) { return m.Delete(ctx, a.IDs) },
		"list_segment": func(ctx context.Context, _ Args) (json.RawMessage, error) {
			segs, err := m.ListSegments(ctx)
			if err != nil {
				return nil, err
			}
			return json.Marshal(segs)
		},
		"refresh_catalog_cache": func(ctx context.Context, a Args) (json.RawMessage, error) {
			return m.RefreshCatalogCache(ctx, a.Tables)
		},
	}
}

// Commands lists the commands Invoke accepts.
func (m *Model) Commands() []string { return sortedKeys(m.commands()) }

// Invoke runs a model command by name.
func (m *Model) Invoke(ctx context.Context, name string, a Args) (json.RawMessage, error) {
	cmd, ok := m.commands()[name]
	if !ok {
		return nil, fmt.Errorf("model %s: unknown command %q: %w", m.name, name, apperrors.ErrModel)
	}
	return cmd(ctx, a)
}

func (m *Model) operator() (ModelOperator, error) {
	if m.ops == nil {
		return nil, fmt.Errorf("model %s: no service bound: %w", m.name, apperrors.ErrModel)
	}
	return m.ops, nil
}

// FullBuild loads the whole model without a range.
func (m *Model) FullBuild(ctx context.Context) (json.RawMessage, error) {
	ops, err := m.operator()
	if err != nil {
		return nil, err
	}
	return ops.BuildSegment(ctx, m.name, 0, 0)
}

// Build loads a segment over [start, end). A zero bound is left open.
func (m *Model) Build(ctx context.Context, start, end time.Time) (json.RawMessage, error) {
	ops, err := m.operator()
	if err != nil {
		return nil, err
	}
	return ops.BuildSegment(ctx, m.name, segmentMillis(start), segmentMillis(end))
}

func segmentMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

// Merge merges segments by id.
func (m *Model) Merge(ctx context.Context, ids []string) (json.RawMessage, error) {
	ops, err := m.segmentOperator("merge", ids)
	if err != nil {
		return nil, err
	}
	return ops.MergeSegments(ctx, m.name, ids)
}

// Refresh rebuilds segments by id.
func (m *Model) Refresh(ctx context.Context, ids []string) (json.RawMessage, error) {
	ops, err := m.segmentOperator("refresh", ids)
	if err != nil {
		return nil, err
	}
	return ops.RefreshSegments(ctx, m.name, ids)
}

// Delete removes segments by id.
func (m *Model) Delete(ctx context.Context, ids []string) (json.RawMessage, error) {
	ops, err := m.segmentOperator("delete", ids)
	if err != nil {
		return nil, err
	}
	return ops.DeleteSegments(ctx, m.name, ids)
}

func (m *Model) segmentOperator(action string, ids []string) (ModelOperator, error) {
	ops, err := m.operator()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("model %s: %s needs segment ids: %w", m.name, action, apperrors.ErrModel)
	}
	return ops, nil
}

// ListSegments returns the model's segments.
func (m *Model) ListSegments(ctx context.Context) ([]schema.Segment, error) {
	ops, err := m.operator()
	if err != nil {
		return nil, err
	}
	return ops.ModelSegments(ctx, m.name)
}

// RefreshCatalogCache reloads cached table metadata on the server. With no
// tables given, the model's own tables are refreshed.
func (m *Model) RefreshCatalogCache(ctx context.Context, tables []string) (json.RawMessage, error) {
	ops, err := m.operator()
	if err != nil {
		return nil, err
	}
	if len(tables) == 0 {
		tables = m.tableNames()
	}
	return ops.RefreshCatalogCache(ctx, tables)
}

func (m *Model) tableNames() []string {
	seen := map[string]bool{m.fact.FullName: true}
	out := []string{m.fact.FullName}
	for _, l := range m.modelLookups {
		if !seen[l.Table] {
			seen[l.Table] = true
			out = append(out, l.Table)
		}
	}
	return out
}

// ListIndexes returns the model's indexes.
func (m *Model) ListIndexes(ctx context.Context) (json.RawMessage, error) {
	ops, err := m.operator()
	if err != nil {
		return nil, err
	}
	return ops.Indexes(ctx, m.name)
}

// BuildIndexes builds every index missing from the model's segments.
func (m *Model) BuildIndexes(ctx context.Context) (json.RawMessage, error) {
	ops, err := m.operator()
	if err != nil {
		return nil, err
	}
	return ops.BuildIndexes(ctx, m.name)
}

// DeleteIndex removes one index.
func (m *Model) DeleteIndex(ctx context.Context, id int64) (json.RawMessage, error) {
	ops, err := m.operator()
	if err != nil {
		return nil, err
	}
	return ops.DeleteIndex(ctx, m.name, id)
}

// ListIndexRules returns the aggregate index rules.
func (m *Model) ListIndexRules(ctx context.Context) (json.RawMessage, error) {
	ops, err := m.operator()
	if err != nil {
		return nil, err
	}
	return ops.IndexRules(ctx, m.name)
}

// ClearUpIndexRules replaces the aggregate index rules with an empty set.
func (m *Model) ClearUpIndexRules(ctx context.Context) (json.RawMessage, error) {
	ops, err := m.operator()
	if err != nil {
		return nil, err
	}
	return ops.PutIndexRules(ctx, m.name, IndexRules{
		Dimensions:      m.dimensionIDs(),
		AggregateGroups: []any{},
	})
}

// IndexRules is the body of an index rule update.
type IndexRules struct {
	Dimensions      []int `json:"dimensions"`
	AggregateGroups []any `json:"aggregation_groups"`
}

func (m *Model) dimensionIDs() []int {
	ids := make([]int, 0, len(m.dimensions))
	for _, d := range m.dimensions {
		ids = append(ids, d.ID)
	}
	return ids
}

// Invoker is a datasource that accepts named commands.
type Invoker interface {
	Commands() []string
	Invoke(ctx context.Context, name string, a Args) (json.RawMessage, error)
}

var (
	_ Invoker = (*Cube)(nil)
	_ Invoker = (*Model)(nil)
)
