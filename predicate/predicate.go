// Package predicate compiles filter definitions into predicates: a client
// row test plus the equivalent server query parameters.
package predicate

import (
	"reflect"
	"time"

	nt "sieve/entity"
	"sieve/operator"
)

// DefaultBinding holds a runtime value that is not a map of bindings.
const DefaultBinding = "default"

// Compiler generates predicates.
// Now supplies the clock for date operators and is read when a row is tested.
type Compiler struct {
	Now      func() time.Time
	MaxDepth int
}

// New creates a Compiler on the wall clock.
func New() *Compiler {
	return &Compiler{
		Now:      time.Now,
		MaxDepth: nt.MaxDepth,
	}
}

// Generate compiles def with the default compiler.
func Generate(def *nt.Definition, value any) nt.Predicate {
	return New().Generate(def, value)
}

// Bindings builds the binding map for a runtime value.
// A map with string keys contributes one binding per key, anything else lands
// under "default".
func Bindings(value any) map[string]nt.Value {

	bindings := map[string]nt.Value{}

	rv := reflect.ValueOf(value)
	if rv.Kind() == reflect.Map && rv.Type().Key().Kind() == reflect.String && !rv.IsNil() {
		iter := rv.MapRange()
		for iter.Next() {
			bindings[iter.Key().String()] = nt.ValueOf(iter.Value().Interface())
		}
		return bindings
	}

	bindings[DefaultBinding] = nt.ValueOf(value)
	return bindings
}

// Generate compiles def against a runtime value.
// The tree is walked twice, once for the client closure and once for the
// server params; logical connectives do not reach the params, which are a
// flat map where later conditions overwrite earlier ones on the same key.
// Nothing is fetched and no shared state is touched.
func (cmp *Compiler) Generate(def *nt.Definition, value any) (pred nt.Predicate) {

	pred = nt.Neutral()
	if def == nil || def.Root == nil {
		return
	}

	bindings := Bindings(value)

	pred.Client = cmp.compile(def.Root, bindings, 0)
	cmp.params(def.Root, bindings, pred.Server, 0)
	return
}

func (cmp *Compiler) maxDepth() int {
	if cmp.MaxDepth <= 0 {
		return nt.MaxDepth
	}
	return cmp.MaxDepth
}

func (cmp *Compiler) now() time.Time {
	if cmp.Now == nil {
		return time.Now()
	}
	return cmp.Now()
}

func (cmp *Compiler) compile(node nt.Node, bindings map[string]nt.Value, depth int) nt.Match {

	switch nd := node.(type) {
	case *nt.Group:
		if nd == nil || depth >= cmp.maxDepth() {
			return rejectAll
		}

		children := make([]nt.Match, len(nd.Children))
		for i, child := range nd.Children {
			children[i] = cmp.compile(child, bindings, depth+1)
		}

		if nd.Logical == nt.Or {
			return anyOf(children)
		}
		return allOf(children)

	case *nt.Condition:
		if nd == nil {
			return rejectAll
		}

		field := nd.Field
		op := nd.Operator
		expected := resolve(nd, bindings)

		return func(row nt.Row) bool {
			actual, _ := row.Get(field)
			return operator.Test(op, actual, expected, cmp.now())
		}
	}

	return rejectAll
}

func (cmp *Compiler) params(node nt.Node, bindings map[string]nt.Value, params nt.Params, depth int) {

	switch nd := node.(type) {
	case *nt.Group:
		if nd == nil || depth >= cmp.maxDepth() {
			return
		}
		for _, child := range nd.Children {
			cmp.params(child, bindings, params, depth+1)
		}

	case *nt.Condition:
		if nd == nil {
			return
		}
		operator.Apply(params, nd.Field, nd.Operator, resolve(nd, bindings))
	}
}

// resolve picks the bound runtime value when present, else the literal.
func resolve(cond *nt.Condition, bindings map[string]nt.Value) nt.Value {

	if cond.Binding != "" {
		if val, ok := bindings[cond.Binding]; ok {
			return val
		}
	}
	return cond.Value
}

func rejectAll(nt.Row) bool { return false }

func allOf(matches []nt.Match) nt.Match {
	return func(row nt.Row) bool {
		for _, match := range matches {
			if !match(row) {
				return false
			}
		}
		return true
	}
}

func anyOf(matches []nt.Match) nt.Match {
	return func(row nt.Row) bool {
		for _, match := range matches {
			if match(row) {
				return true
			}
		}
		return false
	}
}

// Combine ANDs predicates from independent filters.
// Nil client tests are skipped and the result accepts all rows when none
// remain; server params are merged in order with later keys winning.
func Combine(preds ...nt.Predicate) (combined nt.Predicate) {

	combined = nt.Neutral()

	var matches []nt.Match
	for _, pred := range preds {
		if pred.Client != nil {
			matches = append(matches, pred.Client)
		}
		for key, val := range pred.Server {
			combined.Server[key] = val
		}
	}

	if len(matches) > 0 {
		combined.Client = allOf(matches)
	}
	return
}
