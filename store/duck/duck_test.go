package duck

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	nt "sieve/entity"
)

func open(t *testing.T) *Duck {

	dk, err := (&Config{}).New(context.Background(), nil)
	if err != nil {
		t.Skipf("duckdb unavailable: %s", err)
	}
	t.Cleanup(dk.Close)
	return dk
}

func regionFilter() nt.Filter {
	return nt.Filter{
		Name: "Region",
		Type: "select",
		Definition: &nt.Definition{Root: &nt.Group{
			Logical:  nt.And,
			Children: []nt.Node{&nt.Condition{Field: "region", Operator: nt.In, Value: nt.Of("emea"), Binding: "default"}},
		}},
		UIDefault: &nt.UIConfig{Size: "small", Label: "Region"},
		Status:    nt.Draft,
		Version:   1,
	}
}

func TestFilterRoundTrip(t *testing.T) {

	ctx := context.Background()
	dk := open(t)

	created, err := dk.Create(ctx, regionFilter())
	require.NoError(t, err)
	assert.Len(t, created.Id, 36)

	got, err := dk.Fetch(ctx, created.Id)
	require.NoError(t, err)
	assert.Equal(t, created, got)

	got.Status = nt.Published
	got.Version = 2
	got.UIDefault = nil
	_, err = dk.Update(ctx, got)
	require.NoError(t, err)

	again, err := dk.Fetch(ctx, created.Id)
	require.NoError(t, err)
	assert.Equal(t, nt.Published, again.Status)
	assert.Equal(t, 2, again.Version)
	assert.Nil(t, again.UIDefault)

	_, err = dk.Fetch(ctx, "nope")
	assert.ErrorContains(t, err, "not found")

	_, err = dk.Update(ctx, nt.Filter{Id: "nope", Name: "x", Type: "y"})
	assert.ErrorContains(t, err, "not found")

	named := regionFilter()
	named.Id = "region"
	kept, err := dk.Create(ctx, named)
	require.NoError(t, err)
	assert.Equal(t, "region", kept.Id)

	_, err = dk.Create(ctx, named)
	assert.Error(t, err)
}

func TestList(t *testing.T) {

	ctx := context.Background()
	dk := open(t)

	draft := regionFilter()
	draft.Name = "b draft"
	_, err := dk.Create(ctx, draft)
	require.NoError(t, err)

	published := regionFilter()
	published.Name = "a published"
	published.Status = nt.Published
	_, err = dk.Create(ctx, published)
	require.NoError(t, err)

	all, err := dk.List(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "a published", all[0].Name)

	some, err := dk.List(ctx, nt.Published)
	require.NoError(t, err)
	require.Len(t, some, 1)
	assert.Equal(t, nt.Published, some[0].Status)
}

func TestInstances(t *testing.T) {

	ctx := context.Background()
	dk := open(t)

	flt, err := dk.Create(ctx, regionFilter())
	require.NoError(t, err)

	inst, err := dk.CreateInstance(ctx, flt.Id, nt.Instance{
		TargetType: "widget",
		TargetRef:  "w1",
		Placement:  "toolbar",
		UIOverride: &nt.UIConfig{Debounce: 300},
	})
	require.NoError(t, err)
	assert.Equal(t, flt.Id, inst.FilterId)

	inst.IsActive = true
	_, err = dk.UpdateInstance(ctx, inst)
	require.NoError(t, err)

	got, err := dk.Fetch(ctx, flt.Id)
	require.NoError(t, err)
	require.Len(t, got.Instances, 1)
	assert.True(t, got.Instances[0].IsActive)
	assert.Equal(t, 300, got.Instances[0].UIOverride.Debounce)

	_, err = dk.UpdateInstance(ctx, nt.Instance{Id: "nope"})
	assert.ErrorContains(t, err, "not found")
}

func TestUpsertInstances(t *testing.T) {

	ctx := context.Background()
	dk := open(t)

	flt, err := dk.Create(ctx, regionFilter())
	require.NoError(t, err)

	t.Run("any failure applies none", func(t *testing.T) {
		_, err := dk.UpsertInstances(ctx, flt.Id, []nt.Instance{
			{TargetType: "widget", TargetRef: "w1", Placement: "toolbar"},
			{Id: "missing", TargetType: "widget", TargetRef: "w2", Placement: "toolbar"},
		})
		assert.Error(t, err)

		got, err := dk.Fetch(ctx, flt.Id)
		require.NoError(t, err)
		assert.Empty(t, got.Instances)
	})

	t.Run("creates and updates together", func(t *testing.T) {
		first, err := dk.UpsertInstances(ctx, flt.Id, []nt.Instance{
			{TargetType: "widget", TargetRef: "w1", Placement: "toolbar"},
		})
		require.NoError(t, err)
		require.Len(t, first, 1)

		moved := first[0]
		moved.Placement = "sidebar"
		upserted, err := dk.UpsertInstances(ctx, flt.Id, []nt.Instance{
			moved,
			{TargetType: "dashboard", TargetRef: "d1", Placement: "header"},
		})
		require.NoError(t, err)
		require.Len(t, upserted, 2)

		got, err := dk.Fetch(ctx, flt.Id)
		require.NoError(t, err)
		require.Len(t, got.Instances, 2)
		assert.Equal(t, "d1", got.Instances[0].TargetRef)
		assert.Equal(t, "sidebar", got.Instances[1].Placement)
	})
}
