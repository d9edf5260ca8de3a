package report

import (
	"fmt"
	"strings"
)

// Change is one difference between two reports of the same datasource.
type Change struct {
	Field  string `json:"field" yaml:"field"`
	Name   string `json:"name,omitempty" yaml:"name,omitempty"`
	Before string `json:"before,omitempty" yaml:"before,omitempty"`
	After  string `json:"after,omitempty" yaml:"after,omitempty"`
}

func (c Change) String() string {
	switch {
	case c.Before == "":
		return fmt.Sprintf("+ %s %s %s", c.Field, c.Name, c.After)
	case c.After == "":
		return fmt.Sprintf("- %s %s %s", c.Field, c.Name, c.Before)
	}
	return fmt.Sprintf("~ %s %s: %s -> %s", c.Field, c.Name, c.Before, c.After)
}

// Diff lists what changed from old to cur: added, removed or retyped
// dimensions and measures, and a changed FROM clause. Ordering follows
// cur, with removals last.
func Diff(old, cur *DatasourceReport) []Change {
	var changes []Change

	oldDims := make(map[string]string, len(old.Dimensions))
	for _, d := range old.Dimensions {
		oldDims[d.Name] = d.Datatype
	}
	for _, d := range cur.Dimensions {
		before, ok := oldDims[d.Name]
		switch {
		case !ok:
			changes = append(changes, Change{Field: "dimension", Name: d.Name, After: d.Datatype})
		case !strings.EqualFold(before, d.Datatype):
			changes = append(changes, Change{Field: "dimension", Name: d.Name, Before: before, After: d.Datatype})
		}
		delete(oldDims, d.Name)
	}

	oldMeasures := make(map[string]string, len(old.Measures))
	for _, m := range old.Measures {
		oldMeasures[m.Name] = measureSignature(m)
	}
	for _, m := range cur.Measures {
		before, ok := oldMeasures[m.Name]
		after := measureSignature(m)
		switch {
		case !ok:
			changes = append(changes, Change{Field: "measure", Name: m.Name, After: after})
		case before != after:
			changes = append(changes, Change{Field: "measure", Name: m.Name, Before: before, After: after})
		}
		delete(oldMeasures, m.Name)
	}

	for _, d := range old.Dimensions {
		if dt, ok := oldDims[d.Name]; ok {
			changes = append(changes, Change{Field: "dimension", Name: d.Name, Before: dt})
		}
	}
	for _, m := range old.Measures {
		if sig, ok := oldMeasures[m.Name]; ok {
			changes = append(changes, Change{Field: "measure", Name: m.Name, Before: sig})
		}
	}

	if old.From != cur.From {
		changes = append(changes, Change{Field: "from", Before: oneLine(old.From), After: oneLine(cur.From)})
	}
	return changes
}

func measureSignature(m MeasureSummary) string {
	if m.Expression == "" {
		return m.Type
	}
	return m.Type + " " + m.Expression
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
