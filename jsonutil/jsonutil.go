// Package jsonutil normalizes driver-level values into JSON-friendly ones:
// decimals become plain numbers, dates become ISO-8601 strings, raw byte
// columns become strings. The pipeline applies it when rows are
// materialized so everything downstream (prompt context, envelope,
// markdown preview) sees the same representation.
package jsonutil

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// numericTypes are database type names whose values arrive as text or raw
// bytes from the driver but should be transported as numbers.
var numericTypes = map[string]bool{
	"NUMERIC": true,
	"DECIMAL": true,
	"MONEY":   true,
}

// NormalizeValue converts a single scanned value given the driver-reported
// column type name. Decimals come out as json.Number so they marshal as
// plain numbers, not quoted strings. Unknown values pass through untouched.
func NormalizeValue(dbTypeName string, v any) any {
	switch val := v.(type) {
	case nil:
		return nil
	case time.Time:
		return val.Format(time.RFC3339)
	case decimal.Decimal:
		return json.Number(val.String())
	case []byte:
		s := string(val)
		if numericTypes[strings.ToUpper(dbTypeName)] {
			if d, err := decimal.NewFromString(s); err == nil {
				return json.Number(d.String())
			}
		}
		return s
	case string:
		if numericTypes[strings.ToUpper(dbTypeName)] {
			if d, err := decimal.NewFromString(val); err == nil {
				return json.Number(d.String())
			}
		}
		return val
	default:
		return v
	}
}

// MarshalIndent renders v as indented JSON for use as completion-call
// context. Marshalling failures degrade to an empty object rather than
// propagating: prompt context is best effort.
func MarshalIndent(v any) string {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "{}"
	}
	return string(data)
}
