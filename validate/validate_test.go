package validate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	nt "sieve/entity"
	"sieve/operator"
)

func validFilter() nt.Filter {
	return nt.Filter{
		Name: "Region",
		Type: "select",
		Definition: &nt.Definition{Root: &nt.Group{
			Logical: nt.And,
			Children: []nt.Node{
				&nt.Condition{Field: "region", Operator: nt.In, Binding: "regions"},
				&nt.Condition{Field: "amount", Operator: nt.Gt, Value: nt.Num(0)},
			},
		}},
		UIDefault: &nt.UIConfig{
			Size:       "medium",
			Dimensions: &nt.Dimensions{Width: "240px", Height: "auto"},
		},
		Status: nt.Draft,
	}
}

func paths(errs []nt.ValidationError) (got []string) {
	for _, ve := range errs {
		got = append(got, ve.Path)
	}
	return
}

func errMessages(errs []nt.ValidationError) (got []string) {
	for _, ve := range errs {
		got = append(got, ve.Message)
	}
	return
}

func TestFilter(t *testing.T) {

	t.Run("valid draft", func(t *testing.T) {
		assert.Empty(t, Filter(validFilter()))
	})

	t.Run("name and type", func(t *testing.T) {
		flt := validFilter()
		flt.Name = "  "
		flt.Type = ""

		errs := Filter(flt)
		assert.Equal(t, []string{"name is required", "type is required"}, errMessages(errs))
	})

	t.Run("accumulates tree problems", func(t *testing.T) {
		flt := validFilter()
		flt.Definition = &nt.Definition{Root: &nt.Group{
			Logical: nt.And,
			Children: []nt.Node{
				&nt.Group{Logical: nt.Or},
				&nt.Condition{Field: "region", Value: nt.Str("emea")},
				&nt.Condition{Field: "", Operator: nt.Eq, Value: nt.Str("")},
			},
		}}

		errs := Filter(flt)
		require.Len(t, errs, 4)
		assert.Equal(t, []string{
			"definition.root.children[0].children",
			"definition.root.children[1].operator",
			"definition.root.children[2].field",
			"definition.root.children[2].value",
		}, paths(errs))
	})

	t.Run("missing root", func(t *testing.T) {
		flt := validFilter()
		flt.Definition = &nt.Definition{}

		errs := Filter(flt)
		assert.Equal(t, []string{"definition must have a root group"}, errMessages(errs))
	})

	t.Run("bad logical", func(t *testing.T) {
		flt := validFilter()
		flt.Definition.Root.Logical = "XOR"

		errs := Filter(flt)
		assert.Equal(t, []string{"definition.root.logical"}, paths(errs))
	})

	t.Run("ui config", func(t *testing.T) {
		flt := validFilter()
		flt.UIDefault = &nt.UIConfig{
			Size:       "huge",
			Dimensions: &nt.Dimensions{Width: "12 parsecs", Height: "2.5rem"},
		}

		errs := Filter(flt)
		assert.Equal(t, []string{"uiDefault.size", "uiDefault.dimensions.width"}, paths(errs))
		assert.Equal(t, "size must be one of small, medium, large", errs[0].Message)
	})

	t.Run("published needs placements", func(t *testing.T) {
		flt := validFilter()
		flt.Status = nt.Published
		flt.Instances = []nt.Instance{}

		errs := Filter(flt)
		assert.Contains(t, errMessages(errs), "at least one placement is required")
	})

	t.Run("published instances need target and placement", func(t *testing.T) {
		flt := validFilter()
		flt.Status = nt.Published
		flt.Instances = []nt.Instance{
			{TargetType: "dashboard", TargetRef: "d1", Placement: "header"},
			{TargetType: "widget"},
		}

		errs := Filter(flt)
		assert.Equal(t, []string{"instances[1].targetRef", "instances[1].placement"}, paths(errs))
		assert.Equal(t, "targetRef is required", errs[0].Message)
	})

	t.Run("draft may omit placements", func(t *testing.T) {
		flt := validFilter()
		flt.Instances = nil

		assert.Empty(t, Filter(flt))
	})

	t.Run("too deep", func(t *testing.T) {
		root := &nt.Group{Logical: nt.And, Children: []nt.Node{&nt.Condition{Field: "a", Operator: nt.Eq, Value: nt.Num(1)}}}
		for i := 0; i < nt.MaxDepth; i++ {
			root = &nt.Group{Logical: nt.And, Children: []nt.Node{root}}
		}
		flt := validFilter()
		flt.Definition = &nt.Definition{Root: root}

		errs := Filter(flt)
		require.Len(t, errs, 1)
		assert.Contains(t, errs[0].Message, "nest deeper")
	})
}

func TestCSSLength(t *testing.T) {

	for _, good := range []string{"10px", "2.5rem", "1em", "50%", "100vh", "33.3vw", "auto"} {
		assert.True(t, CSSLength(good), good)
	}
	for _, bad := range []string{"", "10", "px", "10 px", "-5px", "auto auto", ".5em", "10pt"} {
		assert.False(t, CSSLength(bad), bad)
	}
}

func TestSchema(t *testing.T) {

	def := &nt.Definition{Root: &nt.Group{
		Logical: nt.And,
		Children: []nt.Node{
			&nt.Condition{Field: "name", Operator: nt.Gt, Value: nt.Num(3)},
			&nt.Condition{Field: "amount", Operator: nt.Between, Value: nt.Num(3)},
			&nt.Condition{Field: "amount", Operator: "like", Value: nt.Num(3)},
			&nt.Condition{Field: "created", Operator: nt.Relative, Value: nt.Str("last_3_days")},
		},
	}}
	fields := map[string]operator.FieldType{
		"name":    operator.StringField,
		"amount":  operator.NumberField,
		"created": operator.DateField,
	}

	errs := Schema(def, fields)
	assert.Equal(t, []string{
		"definition.root.children[0].operator",
		"definition.root.children[1].value",
		"definition.root.children[2].operator",
	}, paths(errs))
}
