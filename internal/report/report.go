package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kylinctl/kylinctl/internal/datasource"
	"github.com/kylinctl/kylinctl/internal/schema"
)

// Format selects the encoding of a written report.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatText Format = "text"
)

// DatasourceReport describes one datasource as the SQL layer sees it.
type DatasourceReport struct {
	Version      string              `json:"version" yaml:"version"`
	GeneratedAt  time.Time           `json:"generated_at" yaml:"generated_at"`
	Name         string              `json:"name" yaml:"name"`
	Kind         string              `json:"kind" yaml:"kind"`
	Identity     string              `json:"identity,omitempty" yaml:"identity,omitempty"`
	LastModified *time.Time          `json:"last_modified,omitempty" yaml:"last_modified,omitempty"`
	FactTable    schema.Table        `json:"fact_table" yaml:"fact_table"`
	Lookups      []schema.LookupEdge `json:"lookups" yaml:"lookups"`
	Dimensions   []DimensionSummary  `json:"dimensions" yaml:"dimensions"`
	Measures     []MeasureSummary    `json:"measures" yaml:"measures"`
	From         string              `json:"from" yaml:"from"`
}

// DimensionSummary is one dimension column.
type DimensionSummary struct {
	Name     string `json:"name" yaml:"name"`
	Datatype string `json:"datatype" yaml:"datatype"`
	Desc     string `json:"desc,omitempty" yaml:"desc,omitempty"`
}

// MeasureSummary is one measure. Expression is empty when the
// aggregation has no SQL form.
type MeasureSummary struct {
	Name       string `json:"name" yaml:"name"`
	Type       string `json:"type" yaml:"type"`
	Expression string `json:"expression,omitempty" yaml:"expression,omitempty"`
}

// Generate builds the report for ds, stamped with now.
func Generate(ds datasource.Datasource, now time.Time) (*DatasourceReport, error) {
	lookups, err := ds.Lookups()
	if err != nil {
		return nil, fmt.Errorf("resolving lookups of %s: %w", ds.Name(), err)
	}
	from, err := ds.FromClause()
	if err != nil {
		return nil, fmt.Errorf("compiling from clause of %s: %w", ds.Name(), err)
	}

	r := &DatasourceReport{
		Version:     "1",
		GeneratedAt: now.UTC(),
		Name:        ds.Name(),
		Kind:        string(ds.Kind()),
		Identity:    ds.Identity(),
		FactTable:   ds.FactTable(),
		Lookups:     lookups,
		From:        from.String(),
	}
	if ms := ds.LastModified(); ms > 0 {
		t := time.UnixMilli(ms).UTC()
		r.LastModified = &t
	}

	for _, d := range ds.Dimensions() {
		dt, err := d.Column.Datatype()
		if err != nil {
			dt = d.Column.RawType
		}
		r.Dimensions = append(r.Dimensions, DimensionSummary{Name: d.Name(), Datatype: dt, Desc: d.Desc})
	}
	for _, m := range ds.Measures() {
		r.Measures = append(r.Measures, MeasureSummary{Name: m.Name, Type: m.Type, Expression: m.Expression})
	}
	return r, nil
}

// Encode writes the report to w in the given format.
func Encode(w io.Writer, r *DatasourceReport, format Format) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(r); err != nil {
			return fmt.Errorf("encoding yaml report: %w", err)
		}
		return enc.Close()
	case FormatText, "":
		_, err := io.WriteString(w, FormatReport(r))
		return err
	default:
		return fmt.Errorf("unknown report format %q", format)
	}
}

// WriteFile writes the report to path, picking the format from the
// extension (.json, .yaml or .yml, anything else is text).
func WriteFile(r *DatasourceReport, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating report directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating report: %w", err)
	}
	if err := Encode(f, r, formatFor(path)); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// ReadFile reads a JSON or YAML report.
func ReadFile(path string) (*DatasourceReport, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading report: %w", err)
	}
	r := &DatasourceReport{}
	switch formatFor(path) {
	case FormatJSON:
		err = json.Unmarshal(data, r)
	case FormatYAML:
		err = yaml.Unmarshal(data, r)
	default:
		return nil, fmt.Errorf("reading report %s: text reports cannot be parsed", path)
	}
	if err != nil {
		return nil, fmt.Errorf("parsing report: %w", err)
	}
	return r, nil
}

func formatFor(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON
	case ".yaml", ".yml":
		return FormatYAML
	}
	return FormatText
}

// FormatReport renders the report as human-readable text.
func FormatReport(r *DatasourceReport) string {
	var b strings.Builder

	fmt.Fprintf(&b, "=== %s %s ===\n", strings.ToUpper(r.Kind), r.Name)
	if r.Identity != "" {
		fmt.Fprintf(&b, "UUID:          %s\n", r.Identity)
	}
	if r.LastModified != nil {
		fmt.Fprintf(&b, "Last modified: %s\n", r.LastModified.Format(time.RFC3339))
	}
	fmt.Fprintf(&b, "Fact table:    %s AS %s\n", r.FactTable.FullName, r.FactTable.Alias)
	fmt.Fprintf(&b, "Generated:     %s\n\n", r.GeneratedAt.Format(time.RFC3339))

	if len(r.Lookups) > 0 {
		b.WriteString("Lookups:\n")
		for _, l := range r.Lookups {
			fmt.Fprintf(&b, "  %s (%s) %s JOIN\n", l.Alias, l.Table, strings.ToUpper(l.Join.Type))
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "Dimensions (%d):\n", len(r.Dimensions))
	for _, d := range r.Dimensions {
		fmt.Fprintf(&b, "  %-40s %s\n", d.Name, d.Datatype)
	}
	b.WriteString("\n")

	if len(r.Measures) > 0 {
		fmt.Fprintf(&b, "Measures (%d):\n", len(r.Measures))
		for _, m := range r.Measures {
			expr := m.Expression
			if expr == "" {
				expr = "-"
			}
			fmt.Fprintf(&b, "  %-24s %-16s %s\n", m.Name, m.Type, expr)
		}
		b.WriteString("\n")
	}

	b.WriteString("FROM ")
	b.WriteString(r.From)
	b.WriteString("\n")
	return b.String()
}
