// Package datasource normalizes cube, model, table and dataset metadata
// into one model of dimensions, measures and join topology.
package datasource

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/kylinctl/kylinctl/internal/apperrors"
	"github.com/kylinctl/kylinctl/internal/joingraph"
	"github.com/kylinctl/kylinctl/internal/schema"
	"github.com/kylinctl/kylinctl/internal/sqlgen"
)

// Kind identifies a datasource variant.
type Kind string

const (
	KindCube    Kind = "cube"
	KindModel   Kind = "model"
	KindTable   Kind = "table"
	KindDataset Kind = "dataset"
)

// SourceTypes returns the datasource kinds a service version exposes.
func SourceTypes(version string) []Kind {
	switch version {
	case "v4":
		return []Kind{KindModel, KindTable}
	default:
		return []Kind{KindCube, KindTable}
	}
}

// ParseKind validates a kind name.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(s); k {
	case KindCube, KindModel, KindTable, KindDataset:
		return k, nil
	}
	return "", fmt.Errorf("unknown datasource kind %q", s)
}

// Datasource is a normalized snapshot of one cube, model, table or dataset.
// Values are read-only once constructed.
type Datasource interface {
	Name() string
	Kind() Kind
	FactTable() schema.Table
	// ModelLookups returns every lookup the underlying model declares.
	ModelLookups() []schema.LookupEdge
	// Lookups returns the lookups needed by the dimensions and measures,
	// in declaration order.
	Lookups() ([]schema.LookupEdge, error)
	Dimensions() []schema.Dimension
	Measures() []schema.Measure
	FromClause() (*sqlgen.JoinTree, error)
	Identity() string
	// LastModified is in epoch milliseconds, 0 when unknown.
	LastModified() int64
}

// MetadataConsistencyError reports a column that the service's own
// metadata declares but cannot describe.
type MetadataConsistencyError struct {
	Model  string
	Table  string
	Column string
}

func (e *MetadataConsistencyError) Error() string {
	return fmt.Sprintf("%s: column %s not found in table %s", e.Model, e.Column, e.Table)
}

func (e *MetadataConsistencyError) Unwrap() error {
	return apperrors.ErrMetadata
}

// Option configures a datasource constructor.
type Option func(*options)

type options struct {
	logger   *slog.Logger
	cubeOps  CubeOperator
	modelOps ModelOperator
	now      func() time.Time
	version  string
	project  string
}

// WithLogger sets the logger used for normalization warnings.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithCubeOperator binds the service calls used by cube commands.
func WithCubeOperator(op CubeOperator) Option {
	return func(o *options) { o.cubeOps = op }
}

// WithModelOperator binds the service calls used by model commands.
func WithModelOperator(op ModelOperator) Option {
	return func(o *options) { o.modelOps = op }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithVersion records the service version the metadata came from.
func WithVersion(v string) Option {
	return func(o *options) { o.version = v }
}

// WithProject names the project the metadata belongs to.
func WithProject(p string) Option {
	return func(o *options) { o.project = p }
}

func buildOptions(opts []Option) options {
	o := options{logger: slog.Default(), now: time.Now, version: "v1"}
	for _, fn := range opts {
		fn(&o)
	}
	return o
}

// nameIdentity derives a stable identity for metadata that carries no uuid.
func nameIdentity(project, name string, kind Kind) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(fmt.Sprintf("%s.%s.%s", project, name, kind))).String()
}

// snapshot holds the normalized parts shared by every variant.
type snapshot struct {
	fact         schema.Table
	modelLookups []schema.LookupEdge
	dimensions   []schema.Dimension
	measures     []schema.Measure
}

func (s *snapshot) FactTable() schema.Table           { return s.fact }
func (s *snapshot) ModelLookups() []schema.LookupEdge { return s.modelLookups }
func (s *snapshot) Dimensions() []schema.Dimension    { return s.dimensions }
func (s *snapshot) Measures() []schema.Measure        { return s.measures }

func (s *snapshot) Lookups() ([]schema.LookupEdge, error) {
	used := sqlgen.UsedAliases(s.dimensions, s.measures)
	return joingraph.Resolve(s.fact.Alias, s.modelLookups, used)
}

func (s *snapshot) FromClause() (*sqlgen.JoinTree, error) {
	lookups, err := s.Lookups()
	if err != nil {
		return nil, err
	}
	return sqlgen.Compile(s.fact, lookups)
}

// lookupTables maps lookup alias to table full name.
func lookupTables(lookups []schema.LookupEdge) map[string]string {
	m := make(map[string]string, len(lookups))
	for _, l := range lookups {
		if _, ok := m[l.Alias]; !ok {
			m[l.Alias] = l.Table
		}
	}
	return m
}

// factTable returns the fact table of fullname, aliased by its table part.
func factTable(fullname string) (schema.Table, error) {
	t := schema.NewTable(fullname, "")
	if err := t.Validate(); err != nil {
		return schema.Table{}, fmt.Errorf("fact table: %w", err)
	}
	return t, nil
}

// tableFor resolves alias through the lookup map, falling back to the
// fact table.
func tableFor(alias string, lookups map[string]string, fact schema.Table) schema.Table {
	if full, ok := lookups[alias]; ok {
		return schema.NewTable(full, alias)
	}
	return schema.NewTable(fact.FullName, alias)
}
