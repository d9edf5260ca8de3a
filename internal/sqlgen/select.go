package sqlgen

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/kylinctl/kylinctl/internal/apperrors"
	"github.com/kylinctl/kylinctl/internal/joingraph"
	"github.com/kylinctl/kylinctl/internal/schema"
)

// Source is the normalized metadata a SELECT is built from.
type Source interface {
	FactTable() schema.Table
	// ModelLookups returns every lookup the model declares, in order.
	ModelLookups() []schema.LookupEdge
	Dimensions() []schema.Dimension
	Measures() []schema.Measure
}

// Filter is a comparison on a dimension against a literal.
type Filter struct {
	Dimension string
	Op        string
	Value     string
}

var filterOps = map[string]bool{
	"=": true, "<>": true, "!=": true, "<": true, "<=": true, ">": true, ">=": true, "LIKE": true,
}

// Select describes an aggregate query over a datasource.
type Select struct {
	Source     Source
	Dimensions []string
	Measures   []string
	Filters    []Filter
	Limit      int
}

// SQL renders the query. Only the lookups reachable from the selected
// dimensions and measures are joined.
func (s *Select) SQL() (string, error) {
	if len(s.Dimensions) == 0 && len(s.Measures) == 0 {
		return "", fmt.Errorf("select: no dimensions or measures")
	}

	dims := make([]schema.Dimension, 0, len(s.Dimensions))
	for _, name := range s.Dimensions {
		d, err := s.dimension(name)
		if err != nil {
			return "", err
		}
		dims = append(dims, d)
	}

	measures := make([]schema.Measure, 0, len(s.Measures))
	for _, name := range s.Measures {
		m, err := s.measure(name)
		if err != nil {
			return "", err
		}
		measures = append(measures, m)
	}

	var where []string
	var filterDims []schema.Dimension
	for _, f := range s.Filters {
		d, err := s.dimension(f.Dimension)
		if err != nil {
			return "", err
		}
		op := strings.ToUpper(strings.TrimSpace(f.Op))
		if !filterOps[op] {
			return "", fmt.Errorf("select: unsupported filter operator %q", f.Op)
		}
		filterDims = append(filterDims, d)
		where = append(where, fmt.Sprintf("%s %s %s", dimensionRef(d), op, literal(f.Value)))
	}

	used := usedAliases(append(append([]schema.Dimension{}, dims...), filterDims...), measures)
	fact := s.Source.FactTable()
	lookups, err := joingraph.Resolve(fact.Alias, s.Source.ModelLookups(), used)
	if err != nil {
		return "", err
	}
	from, err := Compile(fact, lookups)
	if err != nil {
		return "", err
	}

	cols := make([]string, 0, len(dims)+len(measures))
	groupBy := make([]string, 0, len(dims))
	for _, d := range dims {
		cols = append(cols, dimensionRef(d))
		groupBy = append(groupBy, dimensionRef(d))
	}
	for _, m := range measures {
		cols = append(cols, fmt.Sprintf("%s AS %s", m.Expression, Quote(m.Name)))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "SELECT %s FROM %s", strings.Join(cols, ", "), from)
	if len(where) > 0 {
		fmt.Fprintf(&b, " WHERE %s", strings.Join(where, " AND "))
	}
	if len(measures) > 0 && len(groupBy) > 0 {
		fmt.Fprintf(&b, " GROUP BY %s", strings.Join(groupBy, ", "))
	}
	if s.Limit > 0 {
		fmt.Fprintf(&b, " LIMIT %d", s.Limit)
	}
	return b.String(), nil
}

func (s *Select) dimension(name string) (schema.Dimension, error) {
	for _, d := range s.Source.Dimensions() {
		if d.Name() == name || d.Verbose() == name {
			return d, nil
		}
	}
	return schema.Dimension{}, fmt.Errorf("dimension %s: %w", name, apperrors.ErrNotFound)
}

func (s *Select) measure(name string) (schema.Measure, error) {
	for _, m := range s.Source.Measures() {
		if m.Name != name && m.Verbose != name {
			continue
		}
		if !m.HasExpression() {
			return schema.Measure{}, fmt.Errorf("measure %s: %s has no SQL expression", name, m.Type)
		}
		return m, nil
	}
	return schema.Measure{}, fmt.Errorf("measure %s: %w", name, apperrors.ErrNotFound)
}

// UsedAliases is the set of table aliases referenced by dims and measures,
// in first-seen order.
func UsedAliases(dims []schema.Dimension, measures []schema.Measure) []string {
	return usedAliases(dims, measures)
}

func usedAliases(dims []schema.Dimension, measures []schema.Measure) []string {
	seen := make(map[string]bool)
	var out []string
	add := func(a string) {
		if a != "" && !seen[a] {
			seen[a] = true
			out = append(out, a)
		}
	}
	for _, d := range dims {
		add(d.Table.Alias)
	}
	for _, m := range measures {
		for _, t := range m.ValueTables {
			add(t)
		}
	}
	return out
}

func dimensionRef(d schema.Dimension) string {
	return ColumnRef{Table: d.Table.Alias, Column: d.Column.Name}.String()
}

func literal(v string) string {
	if _, err := strconv.ParseFloat(v, 64); err == nil {
		return v
	}
	return "'" + strings.ReplaceAll(v, "'", "''") + "'"
}
