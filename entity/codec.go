package entity

import (
	"encoding/json"
	"fmt"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Trees are encoded as maps tagged with "type" so json and yaml agree:
//
//   root:
//     type: group
//     logical: AND
//     children:
//       - type: condition
//         field: region
//         operator: in
//         value: [emea, apac]
//         binding: regions

const (
	groupTag     = "group"
	conditionTag = "condition"
)

// MarshalJSON encodes the tree with type tags.
func (def Definition) MarshalJSON() ([]byte, error) {
	return json.Marshal(def.toMap())
}

// UnmarshalJSON decodes a type tagged tree.
func (def *Definition) UnmarshalJSON(data []byte) (err error) {

	raw := map[string]any{}
	err = json.Unmarshal(data, &raw)
	if err != nil {
		err = errors.Wrapf(err, "failed to unmarshal definition")
		return
	}

	return def.fromMap(raw)
}

// MarshalYAML encodes the tree with type tags.
func (def Definition) MarshalYAML() (any, error) {
	return def.toMap(), nil
}

// UnmarshalYAML decodes a type tagged tree.
func (def *Definition) UnmarshalYAML(node *yaml.Node) (err error) {

	raw := map[string]any{}
	err = node.Decode(&raw)
	if err != nil {
		err = errors.Wrapf(err, "failed to decode definition")
		return
	}

	return def.fromMap(raw)
}

func (def Definition) toMap() map[string]any {

	if def.Root == nil {
		return map[string]any{"root": nil}
	}
	return map[string]any{"root": nodeToMap(def.Root)}
}

func (def *Definition) fromMap(raw map[string]any) (err error) {

	def.Root = nil

	rootRaw, ok := raw["root"]
	if !ok || rootRaw == nil {
		return
	}

	node, err := nodeFromAny(rootRaw, "root")
	if err != nil {
		return
	}

	root, ok := node.(*Group)
	if !ok {
		err = errors.Errorf("root must be a group")
		return
	}

	def.Root = root
	return
}

func nodeToMap(node Node) map[string]any {

	switch nd := node.(type) {
	case *Group:
		children := make([]any, 0, len(nd.Children))
		for _, child := range nd.Children {
			children = append(children, nodeToMap(child))
		}
		return map[string]any{
			"type":     groupTag,
			"logical":  string(nd.Logical),
			"children": children,
		}
	case *Condition:
		out := map[string]any{
			"type":     conditionTag,
			"field":    nd.Field,
			"operator": string(nd.Operator),
		}
		if !nd.Value.IsNull() {
			out["value"] = nd.Value.Param()
		}
		if nd.Binding != "" {
			out["binding"] = nd.Binding
		}
		return out
	}
	return nil
}

func nodeFromAny(raw any, path string) (node Node, err error) {

	obj, ok := raw.(map[string]any)
	if !ok {
		err = errors.Errorf("%s: expected a mapping, got %T", path, raw)
		return
	}

	tag := stringAt(obj, "type")
	if tag == "" {
		tag = conditionTag
		if _, ok := obj["children"]; ok {
			tag = groupTag
		}
	}

	switch tag {
	case groupTag:
		group := &Group{Logical: Logical(stringAt(obj, "logical"))}

		var items []any
		switch children := obj["children"].(type) {
		case nil:
		case []any:
			items = children
		default:
			err = errors.Errorf("%s.children: expected a sequence, got %T", path, children)
			return
		}

		for i, item := range items {
			var child Node
			child, err = nodeFromAny(item, fmt.Sprintf("%s.children[%d]", path, i))
			if err != nil {
				return
			}
			group.Children = append(group.Children, child)
		}
		node = group

	case conditionTag:
		node = &Condition{
			Field:    stringAt(obj, "field"),
			Operator: Operator(stringAt(obj, "operator")),
			Value:    ValueOf(obj["value"]),
			Binding:  stringAt(obj, "binding"),
		}

	default:
		err = errors.Errorf("%s: unknown node type %q", path, tag)
	}

	return
}

func stringAt(obj map[string]any, key string) string {

	val, ok := obj[key]
	if !ok || val == nil {
		return ""
	}
	if s, ok := val.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", val)
}
