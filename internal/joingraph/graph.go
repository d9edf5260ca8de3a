// Package joingraph resolves which lookup tables a query needs and in what
// order they join, from the lookup declarations of a model.
package joingraph

import (
	"fmt"
	"sort"
	"strings"

	"github.com/kylinctl/kylinctl/internal/apperrors"
	"github.com/kylinctl/kylinctl/internal/schema"
)

// Edge is a lookup declaration placed in the graph.
type Edge struct {
	Alias string
	// Parent is the alias the lookup's foreign key points back to.
	Parent string
	// Index is the declaration position in the model.
	Index  int
	Lookup schema.LookupEdge
}

// Graph holds the lookups of one model keyed by alias.
type Graph struct {
	fact    string
	edges   []Edge
	byAlias map[string]*Edge
	// adjacency: parent alias -> child aliases
	children map[string][]string
}

// New builds a graph rooted at factAlias.
func New(factAlias string, lookups []schema.LookupEdge) (*Graph, error) {
	g := &Graph{
		fact:     factAlias,
		edges:    make([]Edge, 0, len(lookups)),
		byAlias:  make(map[string]*Edge, len(lookups)),
		children: make(map[string][]string),
	}

	for i, l := range lookups {
		if err := l.Validate(); err != nil {
			return nil, err
		}
		g.edges = append(g.edges, Edge{
			Alias:  l.Alias,
			Parent: tablePart(l.Join.ForeignKey[0]),
			Index:  i,
			Lookup: l,
		})
	}
	for i := range g.edges {
		e := &g.edges[i]
		// first declaration wins for duplicated aliases
		if _, dup := g.byAlias[e.Alias]; !dup {
			g.byAlias[e.Alias] = e
		}
		g.children[e.Parent] = append(g.children[e.Parent], e.Alias)
	}
	return g, nil
}

// Resolve is a convenience wrapper around New and Graph.Resolve.
func Resolve(factAlias string, lookups []schema.LookupEdge, used []string) ([]schema.LookupEdge, error) {
	g, err := New(factAlias, lookups)
	if err != nil {
		return nil, err
	}
	return g.Resolve(used)
}

// Edges returns all edges in declaration order.
func (g *Graph) Edges() []Edge {
	return g.edges
}

// Resolve returns the lookups needed to connect every used alias to the
// fact table, deduplicated and ordered by declaration.
func (g *Graph) Resolve(used []string) ([]schema.LookupEdge, error) {
	needed := make(map[string]*Edge)

	for _, alias := range used {
		if alias == g.fact || needed[alias] != nil {
			continue
		}
		path, err := g.Path(alias)
		if err != nil {
			return nil, err
		}
		for _, hop := range path {
			needed[hop] = g.byAlias[hop]
		}
	}

	edges := make([]*Edge, 0, len(needed))
	for _, e := range needed {
		edges = append(edges, e)
	}
	sort.Slice(edges, func(i, j int) bool { return edges[i].Index < edges[j].Index })

	out := make([]schema.LookupEdge, len(edges))
	for i, e := range edges {
		out[i] = e.Lookup
	}
	return out, nil
}

// Path returns the aliases walked from alias back to the fact table,
// starting with alias itself. The fact alias is not included.
func (g *Graph) Path(alias string) ([]string, error) {
	var path []string
	seen := make(map[string]bool)

	cur := alias
	for cur != g.fact {
		e, ok := g.byAlias[cur]
		if !ok {
			return nil, &JoinGraphError{Alias: cur, Path: path}
		}
		if seen[cur] {
			return nil, &JoinGraphError{Alias: cur, Path: path, Cycle: true}
		}
		seen[cur] = true
		path = append(path, cur)
		cur = e.Parent
	}
	return path, nil
}

// Depth is the number of joins between alias and the fact table.
// A lookup joined straight to the fact table has depth 1.
func (g *Graph) Depth(alias string) (int, error) {
	p, err := g.Path(alias)
	if err != nil {
		return 0, err
	}
	return len(p), nil
}

// Children returns the aliases that join directly onto alias.
func (g *Graph) Children(alias string) []string {
	return g.children[alias]
}

// DetectCycles finds lookups whose foreign keys loop without reaching the
// fact table. Each cycle is returned as a list of aliases.
func (g *Graph) DetectCycles() [][]string {
	var cycles [][]string
	visited := make(map[string]bool)
	inStack := make(map[string]bool)

	var path []string
	var dfs func(node string)
	dfs = func(node string) {
		visited[node] = true
		inStack[node] = true
		path = append(path, node)

		if e, ok := g.byAlias[node]; ok && e.Parent != g.fact {
			next := e.Parent
			if !visited[next] {
				dfs(next)
			} else if inStack[next] {
				for i, n := range path {
					if n == next {
						cycle := make([]string, len(path)-i)
						copy(cycle, path[i:])
						cycles = append(cycles, cycle)
						break
					}
				}
			}
		}

		path = path[:len(path)-1]
		inStack[node] = false
	}

	for _, e := range g.edges {
		if !visited[e.Alias] {
			dfs(e.Alias)
		}
	}
	return cycles
}

// JoinGraphError reports a lookup chain that cannot reach the fact table.
type JoinGraphError struct {
	Alias string
	Path  []string
	Cycle bool
}

func (e *JoinGraphError) Error() string {
	chain := strings.Join(append(append([]string{}, e.Path...), e.Alias), " -> ")
	if e.Cycle {
		return fmt.Sprintf("cycle in lookup chain: %s", chain)
	}
	if len(e.Path) == 0 {
		return fmt.Sprintf("alias %s is neither the fact table nor a declared lookup", e.Alias)
	}
	return fmt.Sprintf("lookup chain %s references undeclared alias %s", chain, e.Alias)
}

func (e *JoinGraphError) Unwrap() error {
	return apperrors.ErrJoinGraph
}

func tablePart(qualified string) string {
	t, _, _ := strings.Cut(qualified, ".")
	return t
}
