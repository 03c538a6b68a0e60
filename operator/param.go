package operator

import (
	"strings"

	nt "sieve/entity"
)

// ToParamKey derives a server parameter name from a field path.
func ToParamKey(field string) string {
	return strings.ReplaceAll(field, ".", "_")
}

// Apply writes the parameter(s) for one condition into params, overwriting
// any earlier entry under the same key.
//
// Operators without a dedicated suffix (neq, starts_with, ends_with, not_in,
// relative and unknown ones) fall back to the plain key, so two conditions on
// one field can collide there.
func Apply(params nt.Params, field string, op nt.Operator, val nt.Value) {

	key := ToParamKey(field)

	switch op {
	case nt.Eq:
		params[key] = val.Param()
	case nt.In:
		params[key+"[]"] = val.Param()
	case nt.Between:
		bounds, err := val.List()
		if err != nil {
			return
		}
		if len(bounds) > 0 {
			params[key+"_from"] = bounds[0].Param()
		}
		if len(bounds) > 1 {
			params[key+"_to"] = bounds[1].Param()
		}
	case nt.Lt, nt.Lte, nt.Gt, nt.Gte, nt.Before, nt.After, nt.Contains:
		params[key+"_"+string(op)] = val.Param()
	default:
		params[key] = val.Param()
	}
}
