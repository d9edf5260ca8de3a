package typemap

import (
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/golang-sql/civil"
	"github.com/shopspring/decimal"
)

const (
	dateLayout     = "2006-01-02"
	datetimeLayout = "2006-01-02 15:04:05"
)

var truePattern = regexp.MustCompile(`(?i)true`)

type converter func(string) (any, error)

var converters = map[string]converter{
	"CHAR":      asString,
	"VARCHAR":   asString,
	"STRING":    asString,
	"DECIMAL":   asDecimal,
	"DOUBLE":    asFloat,
	"FLOAT":     asFloat,
	"BIGINT":    asInt,
	"LONG":      asInt,
	"INTEGER":   asInt,
	"INT":       asInt,
	"TINYINT":   asInt,
	"SMALLINT":  asInt,
	"INT4":      asInt,
	"LONG8":     asInt,
	"BOOLEAN":   asBool,
	"DATE":      asDate,
	"DATETIME":  asDatetime,
	"TIMESTAMP": asTimestamp,
}

// ToRuntimeValue converts a result cell to a Go value according to the
// column's remote type name (as reported in query column metadata).
//
// CHAR family -> string, DECIMAL -> decimal.Decimal, DOUBLE/FLOAT -> float64,
// integer family -> int64, BOOLEAN -> bool, DATE -> civil.Date,
// DATETIME/TIMESTAMP -> time.Time (UTC, fractional seconds dropped).
// An empty literal is returned unchanged. An unknown type is logged and
// returned as an UnsupportedTypeError.
func ToRuntimeValue(typeName, literal string) (any, error) {
	conv, ok := converters[strings.ToUpper(strings.TrimSpace(typeName))]
	if !ok {
		slog.Error("unsupported type in query result", "type", typeName, "value", literal)
		return nil, &UnsupportedTypeError{Raw: typeName}
	}
	if literal == "" {
		return literal, nil
	}
	v, err := conv(literal)
	if err != nil {
		return nil, fmt.Errorf("converting %q as %s: %w", literal, typeName, err)
	}
	return v, nil
}

func asString(s string) (any, error) { return s, nil }

func asDecimal(s string) (any, error) {
	return decimal.NewFromString(s)
}

func asFloat(s string) (any, error) {
	return strconv.ParseFloat(s, 64)
}

func asInt(s string) (any, error) {
	return strconv.ParseInt(s, 10, 64)
}

func asBool(s string) (any, error) {
	return truePattern.MatchString(s), nil
}

func asDate(s string) (any, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return nil, err
	}
	return civil.DateOf(t), nil
}

func asDatetime(s string) (any, error) {
	whole, _, _ := strings.Cut(s, ".")
	return time.Parse(datetimeLayout, whole)
}

func asTimestamp(s string) (any, error) {
	return asDatetime(s)
}
