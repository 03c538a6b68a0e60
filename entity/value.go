package entity

import (
	"fmt"
	"reflect"
	"strconv"
	"time"

	"github.com/pkg/errors"
)

// Kind enumerates the shapes a comparison value may take.
type Kind int

const (
	Null Kind = iota
	String
	Number
	Boolean
	Date
	List
)

var kindNames = map[Kind]string{
	Null:    "null",
	String:  "string",
	Number:  "number",
	Boolean: "boolean",
	Date:    "date",
	List:    "list",
}

func (kind Kind) String() string {
	return kindNames[kind]
}

// Value wraps a comparison value and provides type conversion helpers.
// Raw is always one of nil, string, float64, bool, time.Time or []Value;
// build Values with ValueOf or the typed constructors to keep it that way.
type Value struct {
	Raw any
}

// Typed constructors.

func Str(s string) Value { return Value{Raw: s} }

func Num(f float64) Value { return Value{Raw: f} }

func Bool(b bool) Value { return Value{Raw: b} }

func Time(t time.Time) Value { return Value{Raw: t} }

func Of(items ...any) Value { return ValueOf(items) }

func ListOf(vals ...Value) Value { return Value{Raw: vals} }

// ValueOf normalizes an arbitrary Go value into the closed variant.
// Integer and float kinds become Number, slices and arrays become List and
// maps become Null, having no variant of their own. Anything else
// unrecognized is rendered as a String.
func ValueOf(raw any) Value {

	switch val := raw.(type) {
	case nil:
		return Value{}
	case Value:
		return val
	case string:
		return Str(val)
	case bool:
		return Bool(val)
	case time.Time:
		return Time(val)
	case *time.Time:
		if val == nil {
			return Value{}
		}
		return Time(*val)
	case float64:
		return Num(val)
	case []Value:
		return ListOf(val...)
	case []any:
		vals := make([]Value, len(val))
		for i, item := range val {
			vals[i] = ValueOf(item)
		}
		return ListOf(vals...)
	}

	rv := reflect.ValueOf(raw)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return Num(float64(rv.Int()))
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return Num(float64(rv.Uint()))
	case reflect.Float32, reflect.Float64:
		return Num(rv.Float())
	case reflect.Slice, reflect.Array:
		vals := make([]Value, rv.Len())
		for i := range vals {
			vals[i] = ValueOf(rv.Index(i).Interface())
		}
		return ListOf(vals...)
	case reflect.Map:
		return Value{}
	case reflect.Pointer:
		if rv.IsNil() {
			return Value{}
		}
		return ValueOf(rv.Elem().Interface())
	}

	return Str(fmt.Sprintf("%v", raw))
}

// Kind reports which variant the value holds.
func (v Value) Kind() Kind {

	switch v.Raw.(type) {
	case string:
		return String
	case float64:
		return Number
	case bool:
		return Boolean
	case time.Time:
		return Date
	case []Value:
		return List
	}
	return Null
}

// IsNull is true for the zero Value.
func (v Value) IsNull() bool {
	return v.Kind() == Null
}

// IsEmpty is true for null and for the empty string.
func (v Value) IsEmpty() bool {
	s, ok := v.Raw.(string)
	return v.IsNull() || (ok && s == "")
}

// String returns the value as a string.
func (v Value) String() string {

	switch val := v.Raw.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case time.Time:
		return val.Format(time.RFC3339Nano)
	}
	return fmt.Sprintf("%v", v.Raw)
}

// Float returns the value as a float64.
func (v Value) Float() (float64, error) {
	f, ok := v.Raw.(float64)
	if !ok {
		return 0, errors.Errorf("value is not a number: %T", v.Raw)
	}
	return f, nil
}

// Bool returns the value as a bool.
func (v Value) Bool() (bool, error) {
	b, ok := v.Raw.(bool)
	if !ok {
		return false, errors.Errorf("value is not a bool: %T", v.Raw)
	}
	return b, nil
}

// Time returns the value as a time.Time.
func (v Value) Time() (time.Time, error) {
	t, ok := v.Raw.(time.Time)
	if !ok {
		return time.Time{}, errors.Errorf("value is not a time.Time: %T", v.Raw)
	}
	return t, nil
}

// List returns the value's elements.
func (v Value) List() ([]Value, error) {
	l, ok := v.Raw.([]Value)
	if !ok {
		return nil, errors.Errorf("value is not a list: %T", v.Raw)
	}
	return l, nil
}

// Param unwraps the value for use in a server parameter map.
// Lists become []any, everything else is returned as held.
func (v Value) Param() any {

	l, ok := v.Raw.([]Value)
	if !ok {
		return v.Raw
	}

	params := make([]any, len(l))
	for i, item := range l {
		params[i] = item.Param()
	}
	return params
}
