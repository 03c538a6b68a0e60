package operator

import nt "sieve/entity"

// FieldType is the schema type of a row field.
type FieldType string

const (
	StringField  FieldType = "string"
	NumberField  FieldType = "number"
	DateField    FieldType = "date"
	BooleanField FieldType = "boolean"
)

var compatible = map[FieldType][]nt.Operator{
	StringField:  {nt.Eq, nt.Neq, nt.Contains, nt.StartsWith, nt.EndsWith, nt.In, nt.NotIn},
	NumberField:  {nt.Eq, nt.Neq, nt.Lt, nt.Lte, nt.Gt, nt.Gte, nt.Between, nt.In, nt.NotIn},
	DateField:    {nt.Eq, nt.Neq, nt.Before, nt.After, nt.Between, nt.Relative},
	BooleanField: {nt.Eq, nt.Neq},
}

// Compatible reports whether op may be applied to a field of the given type.
// Unrecognized field types allow nothing.
func Compatible(fieldType FieldType, op nt.Operator) bool {

	for _, allowed := range compatible[fieldType] {
		if op == allowed {
			return true
		}
	}
	return false
}

// Accepts reports whether a literal of the given kind makes sense for op.
// List operators want a list, relative wants a token string and the rest
// want a scalar.
func Accepts(op nt.Operator, kind nt.Kind) bool {

	switch op {
	case nt.In, nt.NotIn, nt.Between:
		return kind == nt.List
	case nt.Relative:
		return kind == nt.String
	case nt.Contains, nt.StartsWith, nt.EndsWith:
		return kind != nt.List
	case nt.Lt, nt.Lte, nt.Gt, nt.Gte:
		return kind == nt.Number || kind == nt.String || kind == nt.Date
	case nt.Before, nt.After:
		return kind == nt.Date || kind == nt.String || kind == nt.Number
	}
	return true
}
