package kylinsql

import (
	"database/sql/driver"
	"io"
	"reflect"
	"strings"
	"time"

	"github.com/golang-sql/civil"
	"github.com/shopspring/decimal"

	"github.com/kylinctl/kylinctl/internal/typemap"
	"github.com/kylinctl/kylinctl/pkg/kylin"
)

type rows struct {
	res *kylin.Result
	pos int
}

var (
	_ driver.RowsColumnTypeDatabaseTypeName = (*rows)(nil)
	_ driver.RowsColumnTypeNullable         = (*rows)(nil)
	_ driver.RowsColumnTypePrecisionScale   = (*rows)(nil)
	_ driver.RowsColumnTypeScanType         = (*rows)(nil)
)

func newRows(res *kylin.Result) *rows {
	return &rows{res: res}
}

func (r *rows) Columns() []string { return r.res.ColumnNames() }

func (r *rows) Close() error { return nil }

func (r *rows) Next(dest []driver.Value) error {
	if r.pos >= len(r.res.Rows) {
		return io.EOF
	}
	for i, v := range r.res.Rows[r.pos] {
		dest[i] = driverValue(v)
	}
	r.pos++
	return nil
}

// driverValue narrows converted cells to the types database/sql accepts.
func driverValue(v any) driver.Value {
	switch x := v.(type) {
	case decimal.Decimal:
		return x.String()
	case civil.Date:
		return x.In(time.UTC)
	default:
		return v
	}
}

// ColumnTypeDatabaseTypeName is lowercase, as Kylin cursors report it.
func (r *rows) ColumnTypeDatabaseTypeName(i int) string {
	return strings.ToLower(r.res.Columns[i].TypeName)
}

func (r *rows) ColumnTypeNullable(i int) (bool, bool) {
	return r.res.Columns[i].Nullable, true
}

func (r *rows) ColumnTypePrecisionScale(i int) (int64, int64, bool) {
	c := r.res.Columns[i]
	d, err := typemap.Parse(c.TypeName)
	if err != nil || d.Kind != typemap.KindDecimal {
		return 0, 0, false
	}
	return int64(c.Precision), int64(c.Scale), true
}

var (
	scanString = reflect.TypeOf("")
	scanInt    = reflect.TypeOf(int64(0))
	scanFloat  = reflect.TypeOf(float64(0))
	scanBool   = reflect.TypeOf(false)
	scanTime   = reflect.TypeOf(time.Time{})
	scanAny    = reflect.TypeOf((*any)(nil)).Elem()
)

func (r *rows) ColumnTypeScanType(i int) reflect.Type {
	d, err := typemap.Parse(r.res.Columns[i].TypeName)
	if err != nil {
		return scanAny
	}
	switch d.Kind {
	case typemap.KindChar, typemap.KindVarchar, typemap.KindDecimal:
		return scanString
	case typemap.KindBigint, typemap.KindInteger, typemap.KindSmallint:
		return scanInt
	case typemap.KindFloat:
		return scanFloat
	case typemap.KindBoolean:
		return scanBool
	case typemap.KindDate, typemap.KindDatetime, typemap.KindTimestamp:
		return scanTime
	}
	return scanAny
}
