// Package sqlgen renders SQL text for normalized datasources.
package sqlgen

import (
	"fmt"
	"strings"

	"github.com/kylinctl/kylinctl/internal/schema"
)

// ColumnRef is a "<table>"."<column>" reference.
type ColumnRef struct {
	Table  string
	Column string
}

func (c ColumnRef) String() string {
	return Quote(c.Table) + "." + Quote(c.Column)
}

// ParseColumnRef splits an "<alias>.<column>" key.
func ParseColumnRef(ref string) (ColumnRef, error) {
	t, c, ok := strings.Cut(ref, ".")
	if !ok || t == "" || c == "" {
		return ColumnRef{}, fmt.Errorf("join key %q: expected <table>.<column>", ref)
	}
	return ColumnRef{Table: t, Column: c}, nil
}

// Predicate is one equality of a join condition. Left is the foreign key side.
type Predicate struct {
	Left  ColumnRef
	Right ColumnRef
}

func (p Predicate) String() string {
	return p.Left.String() + " = " + p.Right.String()
}

// Join is one lookup relation appended to the tree.
type Join struct {
	Table schema.Table
	Left  bool
	On    []Predicate
}

func (j Join) String() string {
	on := make([]string, len(j.On))
	for i, p := range j.On {
		on[i] = p.String()
	}
	kw := "JOIN"
	if j.Left {
		kw = "LEFT OUTER JOIN"
	}
	return fmt.Sprintf("%s %s ON %s", kw, QuoteTable(j.Table), strings.Join(on, " AND "))
}

// JoinTree is a fact table followed by lookups, joined left to right.
type JoinTree struct {
	Fact  schema.Table
	Joins []Join
}

// Compile builds the join tree for fact and the already resolved lookups.
// Lookups are joined in the order given.
func Compile(fact schema.Table, lookups []schema.LookupEdge) (*JoinTree, error) {
	if err := fact.Validate(); err != nil {
		return nil, err
	}
	jt := &JoinTree{Fact: fact, Joins: make([]Join, 0, len(lookups))}

	for _, l := range lookups {
		if err := l.Validate(); err != nil {
			return nil, err
		}
		tbl := schema.NewTable(l.Table, l.Alias)
		if err := tbl.Validate(); err != nil {
			return nil, fmt.Errorf("lookup %s: %w", l.Alias, err)
		}

		on := make([]Predicate, len(l.Join.PrimaryKey))
		for i, pk := range l.Join.PrimaryKey {
			right, err := ParseColumnRef(pk)
			if err != nil {
				return nil, fmt.Errorf("lookup %s: %w", l.Alias, err)
			}
			left, err := ParseColumnRef(l.Join.ForeignKey[i])
			if err != nil {
				return nil, fmt.Errorf("lookup %s: %w", l.Alias, err)
			}
			on[i] = Predicate{Left: left, Right: right}
		}

		jt.Joins = append(jt.Joins, Join{Table: tbl, Left: l.Join.IsLeft(), On: on})
	}
	return jt, nil
}

// Aliases returns the fact alias followed by each joined alias.
func (jt *JoinTree) Aliases() []string {
	out := []string{jt.Fact.Alias}
	for _, j := range jt.Joins {
		out = append(out, j.Table.Alias)
	}
	return out
}

func (jt *JoinTree) String() string {
	var b strings.Builder
	b.WriteString(QuoteTable(jt.Fact))
	for _, j := range jt.Joins {
		b.WriteByte(' ')
		b.WriteString(j.String())
	}
	return b.String()
}

// QuoteTable renders "<schema>"."<table>" AS "<alias>".
func QuoteTable(t schema.Table) string {
	return fmt.Sprintf("%s.%s AS %s", Quote(t.Schema()), Quote(t.Name()), Quote(t.Alias))
}

// Quote wraps ident in double quotes, preserving case.
func Quote(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}
