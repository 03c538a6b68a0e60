// Package validate checks filters for structural and semantic problems.
// Problems are returned as data and never raised; callers decide whether
// they block an action.
package validate

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	nt "sieve/entity"
	"sieve/operator"
)

var (
	cssLength = regexp.MustCompile(`^(\d+(\.\d+)?(px|rem|em|%|vh|vw)|auto)$`)
	structs   *validator.Validate
)

func init() {
	structs = validator.New()
	_ = structs.RegisterValidation("csslength", validCSSLength)
}

func validCSSLength(fl validator.FieldLevel) bool {
	return CSSLength(fl.Field().String())
}

// CSSLength is true for a number with a px, rem, em, %, vh or vw unit, or "auto".
func CSSLength(value string) bool {
	return cssLength.MatchString(value)
}

// Filter validates a filter, accumulating every problem found.
func Filter(flt nt.Filter) (errs []nt.ValidationError) {

	if strings.TrimSpace(flt.Name) == "" {
		errs = append(errs, nt.ValidationError{Field: "name", Message: "name is required"})
	}
	if strings.TrimSpace(flt.Type) == "" {
		errs = append(errs, nt.ValidationError{Field: "type", Message: "type is required"})
	}

	if flt.Definition != nil {
		errs = append(errs, Definition(flt.Definition)...)
	}

	if flt.UIDefault != nil {
		errs = append(errs, UIConfig(flt.UIDefault, "uiDefault")...)
	}

	if flt.Status == nt.Published {
		errs = append(errs, Placements(flt.Instances)...)
	}

	return
}

// Definition validates the condition tree.
func Definition(def *nt.Definition) (errs []nt.ValidationError) {

	if def.Root == nil {
		return []nt.ValidationError{{
			Field:   "definition",
			Path:    "definition.root",
			Message: "definition must have a root group",
		}}
	}

	return node(def.Root, "definition.root", 0)
}

func node(nd nt.Node, path string, depth int) (errs []nt.ValidationError) {

	switch nd := nd.(type) {
	case *nt.Group:
		if nd == nil {
			return append(errs, nt.ValidationError{Field: "group", Path: path, Message: "group is missing"})
		}
		if depth >= nt.MaxDepth {
			return append(errs, nt.ValidationError{
				Field:   "children",
				Path:    path,
				Message: fmt.Sprintf("groups may not nest deeper than %d", nt.MaxDepth),
			})
		}

		if nd.Logical != nt.And && nd.Logical != nt.Or {
			errs = append(errs, nt.ValidationError{
				Field:   "logical",
				Path:    path + ".logical",
				Message: "logical must be AND or OR",
			})
		}
		if len(nd.Children) == 0 {
			errs = append(errs, nt.ValidationError{
				Field:   "children",
				Path:    path + ".children",
				Message: "group must have at least one condition",
			})
		}
		for i, child := range nd.Children {
			errs = append(errs, node(child, fmt.Sprintf("%s.children[%d]", path, i), depth+1)...)
		}

	case *nt.Condition:
		if nd == nil {
			return append(errs, nt.ValidationError{Field: "condition", Path: path, Message: "condition is missing"})
		}
		if strings.TrimSpace(nd.Field) == "" {
			errs = append(errs, nt.ValidationError{Field: "field", Path: path + ".field", Message: "field is required"})
		}
		if strings.TrimSpace(string(nd.Operator)) == "" {
			errs = append(errs, nt.ValidationError{Field: "operator", Path: path + ".operator", Message: "operator is required"})
		}
		if nd.Value.IsEmpty() && nd.Binding == "" {
			errs = append(errs, nt.ValidationError{Field: "value", Path: path + ".value", Message: "value is required"})
		}

	default:
		errs = append(errs, nt.ValidationError{Field: "node", Path: path, Message: "node must be a group or a condition"})
	}

	return
}

// UIConfig validates presentation hints.
func UIConfig(cfg *nt.UIConfig, prefix string) (errs []nt.ValidationError) {

	err := structs.Struct(cfg)
	return translate(err, prefix)
}

// Placements validates the instances of a filter about to be published.
func Placements(instances []nt.Instance) (errs []nt.ValidationError) {

	if len(instances) == 0 {
		return []nt.ValidationError{{Field: "instances", Message: "at least one placement is required"}}
	}

	for i, inst := range instances {
		err := structs.Struct(inst)
		errs = append(errs, translate(err, fmt.Sprintf("instances[%d]", i))...)
	}
	return
}

var messages = map[string]string{
	"required":  "%s is required",
	"oneof":     "%s must be one of %s",
	"csslength": "%s must be a CSS length such as 120px, 2.5rem, 50%% or auto",
	"min":       "%s must be at least %s",
}

func translate(err error, prefix string) (errs []nt.ValidationError) {

	if err == nil {
		return
	}

	fieldErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return []nt.ValidationError{{Field: prefix, Path: prefix, Message: err.Error()}}
	}

	for _, fe := range fieldErrs {

		name := lowerFirst(fe.Field())
		path := fieldPath(prefix, fe.StructNamespace())

		msg := fmt.Sprintf("%s failed %s", name, fe.Tag())
		if format, ok := messages[fe.Tag()]; ok {
			if strings.Count(format, "%s") == 2 {
				msg = fmt.Sprintf(format, name, strings.ReplaceAll(fe.Param(), " ", ", "))
			} else {
				msg = fmt.Sprintf(format, name)
			}
		}

		errs = append(errs, nt.ValidationError{Field: name, Path: path, Message: msg})
	}
	return
}

// fieldPath swaps the struct name at the head of a validator namespace for
// prefix, giving e.g. "uiDefault.dimensions.width".
func fieldPath(prefix, namespace string) string {

	parts := strings.Split(namespace, ".")
	if len(parts) > 0 {
		parts = parts[1:]
	}
	for i := range parts {
		parts[i] = lowerFirst(parts[i])
	}
	return strings.Join(append([]string{prefix}, parts...), ".")
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}

// Schema checks operators against known field types. It is not part of
// Filter since field types are not always known when a filter is edited.
func Schema(def *nt.Definition, fields map[string]operator.FieldType) (errs []nt.ValidationError) {

	if def == nil || def.Root == nil {
		return
	}
	return schemaNode(def.Root, "definition.root", fields, 0)
}

func schemaNode(nd nt.Node, path string, fields map[string]operator.FieldType, depth int) (errs []nt.ValidationError) {

	switch nd := nd.(type) {
	case *nt.Group:
		if nd == nil || depth >= nt.MaxDepth {
			return
		}
		for i, child := range nd.Children {
			errs = append(errs, schemaNode(child, fmt.Sprintf("%s.children[%d]", path, i), fields, depth+1)...)
		}

	case *nt.Condition:
		if nd == nil {
			return
		}
		if !operator.Known(nd.Operator) {
			return append(errs, nt.ValidationError{
				Field:   "operator",
				Path:    path + ".operator",
				Message: fmt.Sprintf("unknown operator %q", nd.Operator),
			})
		}

		fieldType, ok := fields[nd.Field]
		if ok && !operator.Compatible(fieldType, nd.Operator) {
			errs = append(errs, nt.ValidationError{
				Field:   "operator",
				Path:    path + ".operator",
				Message: fmt.Sprintf("operator %s does not apply to %s field %s", nd.Operator, fieldType, nd.Field),
			})
		}

		if nd.Binding == "" && !nd.Value.IsNull() && !operator.Accepts(nd.Operator, nd.Value.Kind()) {
			errs = append(errs, nt.ValidationError{
				Field:   "value",
				Path:    path + ".value",
				Message: fmt.Sprintf("operator %s does not take a %s value", nd.Operator, nd.Value.Kind()),
			})
		}
	}

	return
}
