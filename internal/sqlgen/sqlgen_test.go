package sqlgen

import (
	"errors"
	"strings"
	"testing"

	"github.com/kylinctl/kylinctl/internal/apperrors"
	"github.com/kylinctl/kylinctl/internal/schema"
)

var sales = schema.NewTable("DEFAULT.KYLIN_SALES", "KYLIN_SALES")

func edge(alias, table, typ string, pk, fk []string) schema.LookupEdge {
	return schema.LookupEdge{
		Alias: alias,
		Table: table,
		Join:  schema.JoinSpec{Type: typ, PrimaryKey: pk, ForeignKey: fk},
	}
}

var calDT = edge("KYLIN_CAL_DT", "DEFAULT.KYLIN_CAL_DT", "inner",
	[]string{"KYLIN_CAL_DT.CAL_DT"}, []string{"KYLIN_SALES.PART_DT"})

var categ = edge("KYLIN_CATEGORY_GROUPINGS", "DEFAULT.KYLIN_CATEGORY_GROUPINGS", "inner",
	[]string{"KYLIN_CATEGORY_GROUPINGS.LEAF_CATEG_ID", "KYLIN_CATEGORY_GROUPINGS.SITE_ID"},
	[]string{"KYLIN_SALES.LEAF_CATEG_ID", "KYLIN_SALES.LSTG_SITE_ID"})

var buyer = edge("BUYER_ACCOUNT", "DEFAULT.KYLIN_ACCOUNT", "left",
	[]string{"BUYER_ACCOUNT.ACCOUNT_ID"}, []string{"KYLIN_SALES.BUYER_ID"})

var buyerCountry = edge("BUYER_COUNTRY", "DEFAULT.KYLIN_COUNTRY", "inner",
	[]string{"BUYER_COUNTRY.COUNTRY"}, []string{"BUYER_ACCOUNT.ACCOUNT_COUNTRY"})

func TestCompileSingleLookup(t *testing.T) {
	jt, err := Compile(sales, []schema.LookupEdge{calDT})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	want := `"DEFAULT"."KYLIN_SALES" AS "KYLIN_SALES" JOIN "DEFAULT"."KYLIN_CAL_DT" AS "KYLIN_CAL_DT" ON "KYLIN_SALES"."PART_DT" = "KYLIN_CAL_DT"."CAL_DT"`
	if got := jt.String(); got != want {
		t.Errorf("Compile =\n%s\nwant\n%s", got, want)
	}
}

func TestCompileFactOnly(t *testing.T) {
	jt, err := Compile(sales, nil)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if got := jt.String(); got != `"DEFAULT"."KYLIN_SALES" AS "KYLIN_SALES"` {
		t.Errorf("Compile = %s", got)
	}
}

func TestCompileMultiColumnAndLeft(t *testing.T) {
	jt, err := Compile(sales, []schema.LookupEdge{categ, buyer})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	want := `"DEFAULT"."KYLIN_SALES" AS "KYLIN_SALES" ` +
		`JOIN "DEFAULT"."KYLIN_CATEGORY_GROUPINGS" AS "KYLIN_CATEGORY_GROUPINGS" ON "KYLIN_SALES"."LEAF_CATEG_ID" = "KYLIN_CATEGORY_GROUPINGS"."LEAF_CATEG_ID" AND "KYLIN_SALES"."LSTG_SITE_ID" = "KYLIN_CATEGORY_GROUPINGS"."SITE_ID" ` +
		`LEFT OUTER JOIN "DEFAULT"."KYLIN_ACCOUNT" AS "BUYER_ACCOUNT" ON "KYLIN_SALES"."BUYER_ID" = "BUYER_ACCOUNT"."ACCOUNT_ID"`
	if got := jt.String(); got != want {
		t.Errorf("Compile =\n%s\nwant\n%s", got, want)
	}
	if got := strings.Join(jt.Aliases(), ","); got != "KYLIN_SALES,KYLIN_CATEGORY_GROUPINGS,BUYER_ACCOUNT" {
		t.Errorf("Aliases = %s", got)
	}
}

func TestCompileKeepsOrder(t *testing.T) {
	a, _ := Compile(sales, []schema.LookupEdge{calDT, categ})
	b, _ := Compile(sales, []schema.LookupEdge{categ, calDT})
	if a.String() == b.String() {
		t.Error("Compile should not reorder lookups")
	}
}

func TestCompileBadKey(t *testing.T) {
	bad := edge("X", "DEFAULT.X", "inner", []string{"NODOT"}, []string{"KYLIN_SALES.X"})
	if _, err := Compile(sales, []schema.LookupEdge{bad}); err == nil {
		t.Error("expected error for malformed key")
	}
	unpaired := edge("X", "DEFAULT.X", "inner", []string{"X.A", "X.B"}, []string{"KYLIN_SALES.X"})
	if _, err := Compile(sales, []schema.LookupEdge{unpaired}); err == nil {
		t.Error("expected error for unpaired keys")
	}
}

func TestQuote(t *testing.T) {
	tests := []struct {
		in, quote, ident string
	}{
		{"PRICE", `"PRICE"`, "PRICE"},
		{"price", `"price"`, `"price"`},
		{"YEAR", `"YEAR"`, `"YEAR"`},
		{"user", `"user"`, `"user"`},
		{"__timestamp", `"__timestamp"`, `"__timestamp"`},
		{`a"b`, `"a""b"`, `"a""b"`},
		{"SELLER_ID", `"SELLER_ID"`, "SELLER_ID"},
	}
	for _, tt := range tests {
		if got := Quote(tt.in); got != tt.quote {
			t.Errorf("Quote(%q) = %s, want %s", tt.in, got, tt.quote)
		}
		if got := QuoteIdentifier(tt.in); got != tt.ident {
			t.Errorf("QuoteIdentifier(%q) = %s, want %s", tt.in, got, tt.ident)
		}
	}
}

type fakeSource struct {
	lookups  []schema.LookupEdge
	dims     []schema.Dimension
	measures []schema.Measure
}

func (f fakeSource) FactTable() schema.Table           { return sales }
func (f fakeSource) ModelLookups() []schema.LookupEdge { return f.lookups }
func (f fakeSource) Dimensions() []schema.Dimension    { return f.dims }
func (f fakeSource) Measures() []schema.Measure        { return f.measures }

func salesSource() fakeSource {
	return fakeSource{
		lookups: []schema.LookupEdge{calDT, categ, buyer, buyerCountry},
		dims: []schema.Dimension{
			{Table: sales, Column: schema.Column{Name: "TRANS_ID", Alias: "TRANS_ID"}},
			{Table: schema.NewTable("DEFAULT.KYLIN_CAL_DT", "KYLIN_CAL_DT"), Column: schema.Column{Name: "YEAR_BEG_DT", Alias: "YEAR_BEG_DT"}},
			{Table: schema.NewTable("DEFAULT.KYLIN_COUNTRY", "BUYER_COUNTRY"), Column: schema.Column{Name: "NAME", Alias: "BUYER_COUNTRY_NAME"}},
		},
		measures: []schema.Measure{
			{Name: "GMV_SUM", Type: "SUM", Expression: "SUM (KYLIN_SALES.PRICE)", ValueTables: []string{"KYLIN_SALES"}},
			{Name: "TOP_SELLER", Type: "TOP_N"},
		},
	}
}

func TestSelectSQL(t *testing.T) {
	s := &Select{
		Source:     salesSource(),
		Dimensions: []string{"BUYER_COUNTRY_NAME"},
		Measures:   []string{"GMV_SUM"},
		Filters:    []Filter{{Dimension: "KYLIN_CAL_DT.YEAR_BEG_DT", Op: ">=", Value: "2012-01-01"}},
		Limit:      10,
	}
	got, err := s.SQL()
	if err != nil {
		t.Fatalf("SQL: %v", err)
	}
	want := `SELECT "BUYER_COUNTRY"."NAME", SUM (KYLIN_SALES.PRICE) AS "GMV_SUM" FROM ` +
		`"DEFAULT"."KYLIN_SALES" AS "KYLIN_SALES" ` +
		`JOIN "DEFAULT"."KYLIN_CAL_DT" AS "KYLIN_CAL_DT" ON "KYLIN_SALES"."PART_DT" = "KYLIN_CAL_DT"."CAL_DT" ` +
		`LEFT OUTER JOIN "DEFAULT"."KYLIN_ACCOUNT" AS "BUYER_ACCOUNT" ON "KYLIN_SALES"."BUYER_ID" = "BUYER_ACCOUNT"."ACCOUNT_ID" ` +
		`JOIN "DEFAULT"."KYLIN_COUNTRY" AS "BUYER_COUNTRY" ON "BUYER_ACCOUNT"."ACCOUNT_COUNTRY" = "BUYER_COUNTRY"."COUNTRY" ` +
		`WHERE "KYLIN_CAL_DT"."YEAR_BEG_DT" >= '2012-01-01' ` +
		`GROUP BY "BUYER_COUNTRY"."NAME" LIMIT 10`
	if got != want {
		t.Errorf("SQL =\n%s\nwant\n%s", got, want)
	}
}

func TestSelectMeasuresOnly(t *testing.T) {
	s := &Select{Source: salesSource(), Measures: []string{"GMV_SUM"}}
	got, err := s.SQL()
	if err != nil {
		t.Fatalf("SQL: %v", err)
	}
	want := `SELECT SUM (KYLIN_SALES.PRICE) AS "GMV_SUM" FROM "DEFAULT"."KYLIN_SALES" AS "KYLIN_SALES"`
	if got != want {
		t.Errorf("SQL = %s, want %s", got, want)
	}
}

func TestSelectErrors(t *testing.T) {
	src := salesSource()
	_, err := (&Select{Source: src, Dimensions: []string{"NOPE"}}).SQL()
	if !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("unknown dimension error = %v", err)
	}
	if _, err := (&Select{Source: src, Measures: []string{"TOP_SELLER"}}).SQL(); err == nil {
		t.Error("expected error for measure without expression")
	}
	if _, err := (&Select{Source: src}).SQL(); err == nil {
		t.Error("expected error for empty select")
	}
	bad := &Select{Source: src, Dimensions: []string{"TRANS_ID"}, Filters: []Filter{{Dimension: "TRANS_ID", Op: "; DROP", Value: "1"}}}
	if _, err := bad.SQL(); err == nil {
		t.Error("expected error for unsupported operator")
	}
}

func TestLiteral(t *testing.T) {
	for in, want := range map[string]string{"42": "42", "1.5": "1.5", "abc": "'abc'", "O'Brien": "'O''Brien'"} {
		if got := literal(in); got != want {
			t.Errorf("literal(%q) = %s, want %s", in, got, want)
		}
	}
}
