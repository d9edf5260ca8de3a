// Package measure turns aggregate metadata into SQL expressions.
package measure

import (
	"strings"

	"github.com/kylinctl/kylinctl/internal/schema"
)

// Aggregation tags.
const (
	CountDistinct = "COUNT_DISTINCT"
	Count         = "COUNT"
	Sum           = "SUM"
	Avg           = "AVG"
	Min           = "MIN"
	Max           = "MAX"
)

// Parameter types.
const (
	TypeColumn   = "column"
	TypeConstant = "constant"
)

var templates = map[string]func(string) string{
	CountDistinct: func(op string) string { return "COUNT (DISTINCT " + op + ")" },
	Count:         func(op string) string { return "COUNT (" + op + ")" },
	Sum:           aggregate(Sum),
	Avg:           aggregate(Avg),
	Min:           aggregate(Min),
	Max:           aggregate(Max),
}

func aggregate(tag string) func(string) string {
	return func(op string) string { return tag + " (" + op + ")" }
}

// Leaf follows the Next chain of node and returns the last link.
func Leaf(node *schema.ParameterNode) *schema.ParameterNode {
	if node == nil {
		return nil
	}
	for node.Next != nil {
		node = node.Next
	}
	return node
}

// LeafValue returns the value of the leaf of node. A non-empty filterType
// must match the leaf's type, otherwise ok is false.
func LeafValue(node *schema.ParameterNode, filterType string) (string, bool) {
	leaf := Leaf(node)
	if leaf == nil {
		return "", false
	}
	if filterType != "" && !strings.EqualFold(leaf.Type, filterType) {
		return "", false
	}
	return leaf.Value, true
}

// Operand renders the leaf of node as an aggregate operand. Constants
// render as 1.
func Operand(node *schema.ParameterNode) (string, bool) {
	leaf := Leaf(node)
	if leaf == nil {
		return "", false
	}
	if strings.EqualFold(leaf.Type, TypeConstant) {
		return "1", true
	}
	return leaf.Value, true
}

// Synthesize renders tag over operand. ok is false for tags that have no
// SQL form, such as TOP_N or PERCENTILE.
func Synthesize(tag, operand string) (string, bool) {
	tmpl, ok := templates[strings.ToUpper(tag)]
	if !ok {
		return "", false
	}
	return tmpl(operand), true
}

// Supported reports whether tag has a SQL template.
func Supported(tag string) bool {
	_, ok := templates[strings.ToUpper(tag)]
	return ok
}

// ValueTables returns the table aliases of the column leaf of node.
func ValueTables(node *schema.ParameterNode) []string {
	v, ok := LeafValue(node, TypeColumn)
	if !ok {
		return nil
	}
	return tablesOf(v)
}

// ValueTablesOf is ValueTables for a flat list of parameters. Only the
// first element is consulted.
func ValueTablesOf(params []schema.ParameterNode) []string {
	if len(params) == 0 {
		return nil
	}
	return ValueTables(&params[0])
}

// OperandOf is Operand for a flat list of parameters.
func OperandOf(params []schema.ParameterNode) (string, bool) {
	if len(params) == 0 {
		return "", false
	}
	return Operand(&params[0])
}

// ColumnTable returns the alias part of an "<alias>.<column>" reference.
func ColumnTable(ref string) (string, bool) {
	t, _, ok := strings.Cut(ref, ".")
	return t, ok
}

func tablesOf(ref string) []string {
	t, ok := ColumnTable(ref)
	if !ok {
		return nil
	}
	return []string{t}
}

// Build returns a normalized measure for name from an aggregation tag
// and a parameter chain.
func Build(name, tag string, param *schema.ParameterNode) schema.Measure {
	m := schema.Measure{
		Name:        name,
		Verbose:     name,
		Type:        tag,
		ValueTables: ValueTables(param),
	}
	if op, ok := Operand(param); ok {
		m.Expression, _ = Synthesize(tag, op)
	}
	return m
}
