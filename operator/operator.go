// Package operator implements comparison semantics for filter conditions,
// both for testing rows locally and for deriving server parameter keys.
package operator

import (
	"math"
	"strconv"
	"strings"
	"time"

	nt "sieve/entity"
)

// Known reports whether op is in the enumerated operator set.
func Known(op nt.Operator) bool {

	for _, known := range nt.Operators {
		if op == known {
			return true
		}
	}
	return false
}

// Test applies op to a row value and a resolved comparison value.
// Unknown operators pass every row.
func Test(op nt.Operator, actual any, expected nt.Value, now time.Time) bool {

	switch op {
	case nt.Eq:
		return strictEqual(actual, expected)
	case nt.Neq:
		return !strictEqual(actual, expected)
	case nt.Contains, nt.StartsWith, nt.EndsWith:
		return matchString(op, coerceString(actual), expected)
	case nt.In:
		list, err := expected.List()
		if err != nil {
			return false
		}
		return member(actual, list)
	case nt.NotIn:
		list, err := expected.List()
		if err != nil {
			return false
		}
		return !member(actual, list)
	case nt.Lt, nt.Lte, nt.Gt, nt.Gte:
		return compareNumbers(op, actual, expected.Raw)
	case nt.Between:
		return between(actual, expected)
	case nt.Before, nt.After:
		return compareDates(op, actual, expected.Raw)
	case nt.Relative:
		return CheckRelativeDate(actual, expected.String(), now)
	}

	return true
}

func strictEqual(actual any, expected nt.Value) bool {

	got := nt.ValueOf(actual)
	if got.Kind() != expected.Kind() {
		return false
	}

	switch got.Kind() {
	case nt.Null:
		return true
	case nt.Date:
		gt, _ := got.Time()
		et, _ := expected.Time()
		return gt.Equal(et)
	case nt.List:
		// distinct lists are never identical
		return false
	}

	return got.Raw == expected.Raw
}

func member(actual any, list []nt.Value) bool {

	for _, item := range list {
		if strictEqual(actual, item) {
			return true
		}
	}
	return false
}

// matchString applies a substring operator. A null comparison value matches
// nothing rather than the empty string every row contains.
func matchString(op nt.Operator, actual string, expected nt.Value) bool {

	if expected.IsNull() {
		return false
	}

	switch op {
	case nt.StartsWith:
		return strings.HasPrefix(actual, expected.String())
	case nt.EndsWith:
		return strings.HasSuffix(actual, expected.String())
	}
	return strings.Contains(actual, expected.String())
}

func coerceString(actual any) string {
	return nt.ValueOf(actual).String()
}

// toNumber coerces a value to a float, reporting false where the
// coercion would not produce a number.
func toNumber(raw any) (float64, bool) {

	val := nt.ValueOf(raw)
	switch val.Kind() {
	case nt.Number:
		f, _ := val.Float()
		return f, !math.IsNaN(f)
	case nt.Boolean:
		b, _ := val.Bool()
		if b {
			return 1, true
		}
		return 0, true
	case nt.Date:
		tm, _ := val.Time()
		return float64(tm.UnixMilli()), true
	case nt.String:
		f, err := strconv.ParseFloat(strings.TrimSpace(val.String()), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

func compareNumbers(op nt.Operator, actual, expected any) bool {

	a, ok := toNumber(actual)
	if !ok {
		return false
	}
	b, ok := toNumber(expected)
	if !ok {
		return false
	}

	switch op {
	case nt.Lt:
		return a < b
	case nt.Lte:
		return a <= b
	case nt.Gt:
		return a > b
	case nt.Gte:
		return a >= b
	}
	return false
}

func between(actual any, expected nt.Value) bool {

	bounds, err := expected.List()
	if err != nil || len(bounds) != 2 {
		return false
	}

	n, ok := toNumber(actual)
	if !ok {
		return false
	}
	lo, ok := toNumber(bounds[0].Raw)
	if !ok {
		return false
	}
	hi, ok := toNumber(bounds[1].Raw)
	if !ok {
		return false
	}

	return n >= lo && n <= hi
}

func compareDates(op nt.Operator, actual, expected any) bool {

	a, ok := ParseTime(actual)
	if !ok {
		return false
	}
	b, ok := ParseTime(expected)
	if !ok {
		return false
	}

	if op == nt.Before {
		return a.Before(b)
	}
	return a.After(b)
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseTime interprets times, date strings and Unix milliseconds.
func ParseTime(raw any) (tm time.Time, ok bool) {

	val := nt.ValueOf(raw)
	switch val.Kind() {
	case nt.Date:
		tm, _ = val.Time()
		return tm, true
	case nt.Number:
		f, _ := val.Float()
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return
		}
		return time.UnixMilli(int64(f)).UTC(), true
	case nt.String:
		s := strings.TrimSpace(val.String())
		for _, layout := range timeLayouts {
			parsed, err := time.Parse(layout, s)
			if err == nil {
				return parsed, true
			}
		}
	}
	return
}
