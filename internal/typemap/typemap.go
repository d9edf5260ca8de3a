package typemap

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/kylinctl/kylinctl/internal/apperrors"
)

// Kind is a SQL engine type the remote type names map onto.
type Kind string

const (
	KindChar      Kind = "CHAR"
	KindVarchar   Kind = "VARCHAR"
	KindDecimal   Kind = "DECIMAL"
	KindFloat     Kind = "FLOAT"
	KindBigint    Kind = "BIGINT"
	KindInteger   Kind = "INTEGER"
	KindSmallint  Kind = "SMALLINT"
	KindBoolean   Kind = "BOOLEAN"
	KindDate      Kind = "DATE"
	KindDatetime  Kind = "DATETIME"
	KindTimestamp Kind = "TIMESTAMP"
)

// AllKinds lists every target kind.
var AllKinds = []Kind{
	KindChar,
	KindVarchar,
	KindDecimal,
	KindFloat,
	KindBigint,
	KindInteger,
	KindSmallint,
	KindBoolean,
	KindDate,
	KindDatetime,
	KindTimestamp,
}

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	for _, known := range AllKinds {
		if k == known {
			return true
		}
	}
	return false
}

// takesArgs reports how many numeric parameters a kind keeps.
func (k Kind) takesArgs() int {
	switch k {
	case KindChar, KindVarchar, KindFloat:
		return 1
	case KindDecimal:
		return 2
	default:
		return 0
	}
}

// Descriptor is a parsed remote type.
type Descriptor struct {
	Kind Kind
	// Name is the matched remote type name, uppercased.
	Name string
	Args []int
}

// Length returns the declared length of a CHAR or VARCHAR type.
func (d Descriptor) Length() (int, bool) {
	if (d.Kind == KindChar || d.Kind == KindVarchar) && len(d.Args) > 0 {
		return d.Args[0], true
	}
	return 0, false
}

// Precision returns the declared precision of a DECIMAL or FLOAT type.
func (d Descriptor) Precision() (int, bool) {
	if (d.Kind == KindDecimal || d.Kind == KindFloat) && len(d.Args) > 0 {
		return d.Args[0], true
	}
	return 0, false
}

// Scale returns the declared scale of a DECIMAL type.
func (d Descriptor) Scale() (int, bool) {
	if d.Kind == KindDecimal && len(d.Args) > 1 {
		return d.Args[1], true
	}
	return 0, false
}

// String renders the descriptor as a SQL type, e.g. VARCHAR(4096) or DECIMAL(20, 6).
func (d Descriptor) String() string {
	if len(d.Args) == 0 {
		return string(d.Kind)
	}
	parts := make([]string, len(d.Args))
	for i, a := range d.Args {
		parts[i] = strconv.Itoa(a)
	}
	return fmt.Sprintf("%s(%s)", d.Kind, strings.Join(parts, ", "))
}

// UnsupportedTypeError is returned when a remote type name is not in the map.
type UnsupportedTypeError struct {
	Raw string
}

func (e *UnsupportedTypeError) Error() string {
	return fmt.Sprintf("unsupported type %q", e.Raw)
}

func (e *UnsupportedTypeError) Unwrap() error {
	return apperrors.ErrUnsupportedType
}

// TypeMap holds the mapping from remote type names to target kinds.
type TypeMap struct {
	Mappings  map[string]Kind `yaml:"mappings"`
	Overrides map[string]Kind `yaml:"overrides,omitempty"`

	mu      sync.Mutex
	pattern *regexp.Regexp
}

// Default returns the mapping for the remote service's type names.
func Default() *TypeMap {
	m := map[string]Kind{
		"CHAR":      KindChar,
		"STRING":    KindVarchar,
		"VARCHAR":   KindVarchar,
		"DECIMAL":   KindDecimal,
		"DOUBLE":    KindFloat,
		"FLOAT":     KindFloat,
		"BIGINT":    KindBigint,
		"LONG":      KindBigint,
		"INTEGER":   KindInteger,
		"INT":       KindInteger,
		"TINYINT":   KindSmallint,
		"SMALLINT":  KindSmallint,
		"INT4":      KindBigint,
		"LONG8":     KindBigint,
		"BOOLEAN":   KindBoolean,
		"DATE":      KindDate,
		"DATETIME":  KindDatetime,
		"TIMESTAMP": KindTimestamp,
	}
	return &TypeMap{Mappings: m, Overrides: make(map[string]Kind)}
}

var defaultMap = Default()

// SetDefault replaces the mapping used by Parse. It is meant to be called
// once at startup, before anything is parsed.
func SetDefault(tm *TypeMap) {
	defaultMap = tm
}

// Current returns the mapping used by Parse.
func Current() *TypeMap {
	return defaultMap
}

// Parse parses raw with the default mapping.
func Parse(raw string) (Descriptor, error) {
	return defaultMap.Parse(raw)
}

// Parse parses a remote type descriptor such as "DECIMAL(20,6)" or
// "BIGINT NOT NULL". Trailing qualifier words are ignored.
func (tm *TypeMap) Parse(raw string) (Descriptor, error) {
	re := tm.compiled()
	m := re.FindStringSubmatch(strings.TrimSpace(raw))
	if m == nil {
		return Descriptor{}, &UnsupportedTypeError{Raw: raw}
	}

	name := strings.ToUpper(m[1])
	kind, ok := tm.lookup(name)
	if !ok {
		return Descriptor{}, &UnsupportedTypeError{Raw: raw}
	}

	d := Descriptor{Kind: kind, Name: name}
	for _, g := range m[2:] {
		if g == "" || len(d.Args) >= kind.takesArgs() {
			continue
		}
		n, err := strconv.Atoi(g)
		if err != nil {
			return Descriptor{}, &UnsupportedTypeError{Raw: raw}
		}
		d.Args = append(d.Args, n)
	}
	return d, nil
}

// KindOf returns the kind a remote type name maps to.
func (tm *TypeMap) KindOf(name string) (Kind, bool) {
	return tm.lookup(strings.ToUpper(name))
}

func (tm *TypeMap) lookup(name string) (Kind, bool) {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	if k, ok := tm.Overrides[name]; ok {
		return k, true
	}
	k, ok := tm.Mappings[name]
	return k, ok
}

// compiled builds the match pattern. Keys are ordered longest first so
// INTEGER is preferred over INT and INT4.
func (tm *TypeMap) compiled() *regexp.Regexp {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	if tm.pattern != nil {
		return tm.pattern
	}

	keys := make([]string, 0, len(tm.Mappings)+len(tm.Overrides))
	seen := make(map[string]bool)
	for _, src := range []map[string]Kind{tm.Mappings, tm.Overrides} {
		for k := range src {
			k = strings.ToUpper(k)
			if !seen[k] {
				seen[k] = true
				keys = append(keys, regexp.QuoteMeta(k))
			}
		}
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})

	tm.pattern = regexp.MustCompile(
		`(?i)^(` + strings.Join(keys, "|") + `)(?:\s*\(\s*(\d+)?\s*(?:,\s*(\d+)\s*)?\))?(?:\s.*)?$`,
	)
	return tm.pattern
}

// Override maps a remote type name to a kind, replacing any default.
func (tm *TypeMap) Override(name string, kind Kind) {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	if tm.Overrides == nil {
		tm.Overrides = make(map[string]Kind)
	}
	tm.Overrides[strings.ToUpper(name)] = kind
	tm.pattern = nil
}

// SortedTypes returns the remote type names sorted alphabetically.
func (tm *TypeMap) SortedTypes() []string {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	types := make([]string, 0, len(tm.Mappings))
	for k := range tm.Mappings {
		types = append(types, k)
	}
	for k := range tm.Overrides {
		if _, ok := tm.Mappings[k]; !ok {
			types = append(types, k)
		}
	}
	sort.Strings(types)
	return types
}

// WriteYAML writes the type mapping to a YAML file.
func (tm *TypeMap) WriteYAML(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	data, err := yaml.Marshal(tm)
	if err != nil {
		return fmt.Errorf("marshaling type map: %w", err)
	}

	return os.WriteFile(path, data, 0o644)
}

// LoadYAML reads a type mapping from a YAML file. Entries are merged over
// the default mapping; unknown kinds are rejected.
func LoadYAML(path string) (*TypeMap, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading type map file: %w", err)
	}
	loaded := &TypeMap{}
	if err := yaml.Unmarshal(data, loaded); err != nil {
		return nil, fmt.Errorf("parsing type map: %w", err)
	}

	tm := Default()
	for name, kind := range loaded.Mappings {
		if !kind.Valid() {
			return nil, fmt.Errorf("type map entry %s: unknown kind %q", name, kind)
		}
		tm.Mappings[strings.ToUpper(name)] = kind
	}
	for name, kind := range loaded.Overrides {
		if !kind.Valid() {
			return nil, fmt.Errorf("type map override %s: unknown kind %q", name, kind)
		}
		tm.Overrides[strings.ToUpper(name)] = kind
	}
	return tm, nil
}
