package kylinsql

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/kylinctl/kylinctl/internal/apperrors"
	"github.com/kylinctl/kylinctl/internal/schema"
	"github.com/kylinctl/kylinctl/internal/service"
	"github.com/kylinctl/kylinctl/internal/typemap"
	"github.com/kylinctl/kylinctl/pkg/kylin"
)

func str(s string) *string { return &s }

func salesMock() *service.Mock {
	return &service.Mock{
		ProjectName: "learn_kylin",
		User:        &schema.UserDetails{Username: "ADMIN"},
		Catalog: schema.NewTableCatalog([]schema.CatalogTable{
			{Schema: "DEFAULT", Name: "KYLIN_SALES", Columns: []schema.CatalogColumn{
				{Name: "TRANS_ID", TypeName: "BIGINT"},
				{Name: "PART_DT", TypeName: "DATE"},
				{Name: "PRICE", TypeName: "DECIMAL(19,4)"},
			}},
			{Schema: "DEFAULT", Name: "KYLIN_CAL_DT", Columns: []schema.CatalogColumn{
				{Name: "CAL_DT", TypeName: "DATE"},
			}},
			{Schema: "SSB", Name: "CUSTOMER", Columns: []schema.CatalogColumn{
				{Name: "C_CUSTKEY", TypeName: "INTEGER"},
			}},
		}),
		QueryResult: &schema.QueryResult{
			ColumnMetas: []schema.ColumnMeta{
				{Label: "PART_DT", ColumnTypeName: "DATE", IsNullable: 1},
				{Label: "CNT", ColumnTypeName: "BIGINT"},
				{Label: "GMV", ColumnTypeName: "DECIMAL", Precision: 19, Scale: 4, IsNullable: 1},
			},
			Results: [][]*string{
				{str("2012-01-01"), str("18"), str("1217.8400")},
				{str("2012-01-03"), str("12"), nil},
			},
		},
	}
}

func openDB(t *testing.T, m *service.Mock) *sql.DB {
	t.Helper()
	db := sql.OpenDB(NewConnector(kylin.FromService(m)))
	t.Cleanup(func() { db.Close() })
	return db
}

func TestQueryRows(t *testing.T) {
	m := salesMock()
	db := openDB(t, m)

	rows, err := db.QueryContext(context.Background(), "SELECT PART_DT, COUNT(*) AS CNT, SUM(PRICE) AS GMV FROM KYLIN_SALES GROUP BY PART_DT")
	if err != nil {
		t.Fatalf("QueryContext: %v", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		t.Fatal(err)
	}
	if len(cols) != 3 || cols[2] != "GMV" {
		t.Errorf("Columns() = %v", cols)
	}

	types, err := rows.ColumnTypes()
	if err != nil {
		t.Fatal(err)
	}
	if got := types[0].DatabaseTypeName(); got != "date" {
		t.Errorf("DatabaseTypeName = %q, want date", got)
	}
	if p, s, ok := types[2].DecimalSize(); !ok || p != 19 || s != 4 {
		t.Errorf("DecimalSize = %d, %d, %v", p, s, ok)
	}
	if _, _, ok := types[1].DecimalSize(); ok {
		t.Error("BIGINT reported a decimal size")
	}
	if nullable, ok := types[0].Nullable(); !ok || !nullable {
		t.Errorf("Nullable = %v, %v", nullable, ok)
	}

	var (
		day time.Time
		cnt int64
		gmv sql.NullString
	)
	if !rows.Next() {
		t.Fatal("no first row")
	}
	if err := rows.Scan(&day, &cnt, &gmv); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if !day.Equal(time.Date(2012, 1, 1, 0, 0, 0, 0, time.UTC)) || cnt != 18 || gmv.String != "1217.84" {
		t.Errorf("row 1 = %s, %d, %q", day, cnt, gmv.String)
	}

	if !rows.Next() {
		t.Fatal("no second row")
	}
	if err := rows.Scan(&day, &cnt, &gmv); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if gmv.Valid {
		t.Errorf("GMV = %q, want NULL", gmv.String)
	}
	if rows.Next() {
		t.Error("unexpected third row")
	}
	if err := rows.Err(); err != nil {
		t.Fatal(err)
	}

	if len(m.Queries) != 1 {
		t.Errorf("queries = %v", m.Queries)
	}
}

func TestQueryErrorPassesThrough(t *testing.T) {
	m := salesMock()
	m.QueryErr = apperrors.ErrQuery
	db := openDB(t, m)

	_, err := db.Query("SELECT NOPE")
	if !errors.Is(err, apperrors.ErrQuery) {
		t.Errorf("err = %v, want ErrQuery", err)
	}
}

func TestUnsupportedOperations(t *testing.T) {
	db := openDB(t, salesMock())

	if _, err := db.Exec("DELETE FROM KYLIN_SALES"); !errors.Is(err, ErrNotSupported) {
		t.Errorf("Exec err = %v, want ErrNotSupported", err)
	}
	if _, err := db.Begin(); !errors.Is(err, ErrNotSupported) {
		t.Errorf("Begin err = %v, want ErrNotSupported", err)
	}
	if _, err := db.Query("SELECT * FROM KYLIN_SALES WHERE TRANS_ID = ?", 1); !errors.Is(err, ErrNotSupported) {
		t.Errorf("Query with args err = %v, want ErrNotSupported", err)
	}
}

func TestPing(t *testing.T) {
	m := salesMock()
	db := openDB(t, m)
	if err := db.Ping(); err != nil {
		t.Fatalf("Ping: %v", err)
	}

	m.User = nil
	if err := db.Ping(); !errors.Is(err, apperrors.ErrUnauthorized) {
		t.Errorf("Ping err = %v, want ErrUnauthorized", err)
	}
}

func TestDriverIsRegistered(t *testing.T) {
	found := false
	for _, d := range sql.Drivers() {
		if d == DriverName {
			found = true
		}
	}
	if !found {
		t.Errorf("driver %q not registered", DriverName)
	}

	if _, err := sql.Open(DriverName, "postgres://localhost/db"); err == nil {
		t.Error("sql.Open accepted a non-kylin DSN")
	}
}

func TestInspector(t *testing.T) {
	in := NewInspector(kylin.FromService(salesMock()))
	ctx := context.Background()

	schemas, err := in.SchemaNames(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(schemas) != 2 || schemas[0] != "DEFAULT" || schemas[1] != "SSB" {
		t.Errorf("SchemaNames = %v", schemas)
	}

	tables, err := in.TableNames(ctx, "DEFAULT")
	if err != nil {
		t.Fatal(err)
	}
	if len(tables) != 2 || tables[0] != "KYLIN_CAL_DT" || tables[1] != "KYLIN_SALES" {
		t.Errorf("TableNames(DEFAULT) = %v", tables)
	}
	all, err := in.TableNames(ctx, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 {
		t.Errorf("TableNames() = %v", all)
	}

	cols, err := in.Columns(ctx, "KYLIN_SALES", "DEFAULT")
	if err != nil {
		t.Fatal(err)
	}
	if len(cols) != 3 {
		t.Fatalf("Columns = %v", cols)
	}
	if cols[0].Name != "TRANS_ID" || cols[0].Type.Kind != typemap.KindBigint {
		t.Errorf("column 0 = %+v", cols[0])
	}
	if p, ok := cols[2].Type.Precision(); !ok || p != 19 {
		t.Errorf("PRICE precision = %d, %v", p, ok)
	}

	if _, err := in.Columns(ctx, "DEFAULT.MISSING", ""); !errors.Is(err, apperrors.ErrNoSuchTable) {
		t.Errorf("missing table err = %v", err)
	}
	if in.HasTable(ctx, "DEFAULT.KYLIN_SALES") {
		t.Error("HasTable = true")
	}
	if fks, _ := in.ForeignKeys(ctx, "DEFAULT.KYLIN_SALES"); len(fks) != 0 {
		t.Errorf("ForeignKeys = %v", fks)
	}
}

func TestQuoteIdentifier(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"PART_DT", "PART_DT"},
		{"YEAR", `"YEAR"`},
		{"partDt", `"partDt"`},
	}
	for _, tt := range tests {
		if got := QuoteIdentifier(tt.in); got != tt.want {
			t.Errorf("QuoteIdentifier(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}
