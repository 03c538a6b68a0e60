package entity

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func sampleDefinition() *Definition {
	return &Definition{Root: &Group{
		Logical: And,
		Children: []Node{
			&Condition{Field: "region", Operator: In, Value: Of("emea", "apac"), Binding: "regions"},
			&Group{
				Logical: Or,
				Children: []Node{
					&Condition{Field: "amount", Operator: Between, Value: Of(10, 20)},
					&Condition{Field: "owner.name", Operator: StartsWith, Value: Str("an")},
				},
			},
		},
	}}
}

func TestDefinitionJSON(t *testing.T) {

	data, err := json.Marshal(sampleDefinition())
	require.NoError(t, err)

	var got Definition
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, sampleDefinition(), &got)

	t.Run("untagged nodes are inferred", func(t *testing.T) {
		var def Definition
		err := json.Unmarshal([]byte(`{"root":{"logical":"OR","children":[{"field":"a","operator":"eq","value":true}]}}`), &def)
		require.NoError(t, err)

		cond := def.Root.Children[0].(*Condition)
		assert.Equal(t, Bool(true), cond.Value)
	})

	t.Run("bad trees are refused", func(t *testing.T) {
		for _, doc := range []string{
			`{"root":{"type":"condition","field":"a"}}`,
			`{"root":{"type":"group","children":[{"type":"mystery"}]}}`,
			`{"root":{"type":"group","children":{"field":"a"}}}`,
			`{"root":[]}`,
		} {
			var def Definition
			assert.Error(t, json.Unmarshal([]byte(doc), &def), doc)
		}
	})

	t.Run("missing root", func(t *testing.T) {
		var def Definition
		require.NoError(t, json.Unmarshal([]byte(`{}`), &def))
		assert.Nil(t, def.Root)
	})
}

func TestDefinitionYAML(t *testing.T) {

	data, err := yaml.Marshal(sampleDefinition())
	require.NoError(t, err)

	var got Definition
	require.NoError(t, yaml.Unmarshal(data, &got))
	assert.Equal(t, sampleDefinition(), &got)
}

func TestValueOf(t *testing.T) {

	when := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		raw  any
		kind Kind
		str  string
	}{
		{name: "nil", raw: nil, kind: Null, str: ""},
		{name: "string", raw: "abc", kind: String, str: "abc"},
		{name: "int", raw: 42, kind: Number, str: "42"},
		{name: "uint8", raw: uint8(7), kind: Number, str: "7"},
		{name: "float", raw: 2.5, kind: Number, str: "2.5"},
		{name: "bool", raw: false, kind: Boolean, str: "false"},
		{name: "time", raw: when, kind: Date, str: "2024-01-15T00:00:00Z"},
		{name: "strings", raw: []string{"a", "b"}, kind: List, str: "[a b]"},
		{name: "nil map", raw: map[string]any(nil), kind: Null, str: ""},
		{name: "map", raw: map[string]string{"a": "b"}, kind: Null, str: ""},
		{name: "row", raw: Row{"a": 1}, kind: Null, str: ""},
		{name: "struct", raw: struct{ A int }{1}, kind: String, str: "{1}"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			val := ValueOf(tc.raw)
			assert.Equal(t, tc.kind, val.Kind())
			assert.Equal(t, tc.str, val.String())
		})
	}

	_, err := Str("x").Float()
	assert.Error(t, err)
	_, err = Num(1).List()
	assert.Error(t, err)
	assert.True(t, Str("").IsEmpty())
	assert.False(t, Num(0).IsEmpty())
	assert.Equal(t, []any{"a", float64(1)}, Of("a", 1).Param())
}

func TestRowGet(t *testing.T) {

	row := Row{
		"region": "emea",
		"owner":  map[string]any{"name": "ann", "team": map[string]any{"id": 7}},
	}

	val, ok := row.Get("owner.team.id")
	assert.True(t, ok)
	assert.Equal(t, 7, val)

	_, ok = row.Get("owner.missing")
	assert.False(t, ok)
	_, ok = row.Get("region.deeper")
	assert.False(t, ok)
}

func TestParamsValues(t *testing.T) {

	params := Params{
		"region[]":   []any{"emea", "apac"},
		"status":     []string{"open"},
		"amount_gte": float64(250),
		"created":    time.Date(2024, 1, 15, 9, 30, 0, 0, time.UTC),
		"owner":      nil,
		"active":     true,
	}

	assert.Equal(t,
		"active=true&amount_gte=250&created=2024-01-15T09%3A30%3A00Z&region%5B%5D=emea&region%5B%5D=apac&status%5B%5D=open",
		params.Encode())
	assert.Equal(t, []string{"active", "amount_gte", "created", "owner", "region[]", "status"}, params.Keys())

	assert.True(t, Neutral().Accept(Row{}))
	assert.Equal(t, Params{}, Neutral().Server)
}
