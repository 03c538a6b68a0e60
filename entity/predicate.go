package entity

import (
	"net/url"
	"reflect"
	"sort"
	"strings"
	"time"
)

// Row is a single data record tested by a client predicate.
type Row map[string]any

// Get resolves a dot path through nested maps.
func (row Row) Get(path string) (val any, ok bool) {

	var cur any = map[string]any(row)
	for _, part := range strings.Split(path, ".") {

		switch obj := cur.(type) {
		case map[string]any:
			cur, ok = obj[part]
		case Row:
			cur, ok = obj[part]
		default:
			return nil, false
		}
		if !ok {
			return nil, false
		}
	}

	return cur, true
}

// Match tests a row.
type Match func(row Row) bool

// Params are server query parameters keyed by derived parameter name.
type Params map[string]any

// Values encodes params for a query string.
// Lists repeat under "key[]", scalars appear once and nils are dropped.
func (params Params) Values() url.Values {

	values := url.Values{}
	for key, val := range params {
		if val == nil {
			continue
		}

		items, isList := listItems(val)
		if !isList {
			values.Add(key, paramString(val))
			continue
		}

		if !strings.HasSuffix(key, "[]") {
			key += "[]"
		}
		for _, item := range items {
			if item == nil {
				continue
			}
			values.Add(key, paramString(item))
		}
	}

	return values
}

// Encode renders params as a query string with keys in sorted order.
func (params Params) Encode() string {
	return params.Values().Encode()
}

// Keys returns param names in sorted order.
func (params Params) Keys() (keys []string) {

	for key := range params {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return
}

func listItems(val any) (items []any, ok bool) {

	switch list := val.(type) {
	case []any:
		return list, true
	case []string, []float64, []int:
		rv := reflect.ValueOf(list)
		items = make([]any, rv.Len())
		for i := range items {
			items[i] = rv.Index(i).Interface()
		}
		return items, true
	}
	return nil, false
}

func paramString(val any) string {

	if tm, ok := val.(time.Time); ok {
		return tm.UTC().Format(time.RFC3339)
	}
	return ValueOf(val).String()
}

// Predicate pairs a client-side row test with server query parameters
// expressing the same filter.
// A nil Client accepts every row.
type Predicate struct {
	Client Match
	Server Params
}

// Neutral returns the accept-all predicate.
func Neutral() Predicate {
	return Predicate{Server: Params{}}
}

// Accept applies the client test, accepting when there is none.
func (pred Predicate) Accept(row Row) bool {
	if pred.Client == nil {
		return true
	}
	return pred.Client(row)
}
