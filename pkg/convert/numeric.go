// Package convert holds small, total (never-panic) conversions used
// when ingesting untyped CSV fields into typed graph properties: every
// function returns an ok flag instead of erroring, so a record ingest
// loop can skip or default a column without aborting the whole batch.
package convert

import (
	"strconv"

	"github.com/chronoshard/chronoshard/pkg/prop"
)

// ToFloat64 converts a CSV field to float64. Accepts decimal and
// scientific notation; "NaN"/"Inf"/"-Inf" are accepted via
// strconv.ParseFloat.
func ToFloat64(field string) (float64, bool) {
	f, err := strconv.ParseFloat(field, 64)
	return f, err == nil
}

// ToInt64 converts a CSV field to int64. Falls back to parsing as a
// float and truncating toward zero, since numeric CSV columns
// frequently mix "100" and "100.0" formatting.
func ToInt64(field string) (int64, bool) {
	if i, err := strconv.ParseInt(field, 10, 64); err == nil {
		return i, true
	}
	if f, err := strconv.ParseFloat(field, 64); err == nil {
		return int64(f), true
	}
	return 0, false
}

// ToBool converts a CSV field to bool via strconv.ParseBool, which
// accepts "1", "t", "T", "true", "TRUE", "True", "0", "f", "F",
// "false", "FALSE" and "False"; other casings are rejected.
func ToBool(field string) (bool, bool) {
	b, err := strconv.ParseBool(field)
	return b, err == nil
}

// ToProp infers the narrowest Prop kind for a CSV field: int64, then
// float64, then bool, falling back to a string Prop. Empty fields
// return ok=false so callers can omit the property entirely rather
// than storing an empty string.
func ToProp(field string) (prop.Prop, bool) {
	if field == "" {
		return prop.Prop{}, false
	}
	if i, err := strconv.ParseInt(field, 10, 64); err == nil {
		return prop.I64(i), true
	}
	if f, err := strconv.ParseFloat(field, 64); err == nil {
		return prop.F64(f), true
	}
	if b, err := strconv.ParseBool(field); err == nil {
		return prop.Bool(b), true
	}
	return prop.Str(field), true
}
