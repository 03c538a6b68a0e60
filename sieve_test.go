package sieve

import (
	"context"
	"fmt"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	nt "sieve/entity"
)

type memStore struct {
	filters   map[string]nt.Filter
	instances []nt.Instance
	failOn    map[string]bool
	seq       int
}

func newMemStore() *memStore {
	return &memStore{filters: map[string]nt.Filter{}, failOn: map[string]bool{}}
}

func (ms *memStore) Fetch(ctx context.Context, id string) (nt.Filter, error) {
	flt, ok := ms.filters[id]
	if !ok {
		return nt.Filter{}, errors.Errorf("filter %s not found", id)
	}
	return flt, nil
}

func (ms *memStore) Create(ctx context.Context, flt nt.Filter) (nt.Filter, error) {
	ms.seq++
	flt.Id = fmt.Sprintf("f%d", ms.seq)
	ms.filters[flt.Id] = flt
	return flt, nil
}

func (ms *memStore) Update(ctx context.Context, flt nt.Filter) (nt.Filter, error) {
	if _, ok := ms.filters[flt.Id]; !ok {
		return nt.Filter{}, errors.Errorf("filter %s not found", flt.Id)
	}
	ms.filters[flt.Id] = flt
	return flt, nil
}

func (ms *memStore) CreateInstance(ctx context.Context, filterId string, inst nt.Instance) (nt.Instance, error) {
	if ms.failOn[inst.TargetRef] {
		return nt.Instance{}, errors.New("500 internal server error")
	}
	ms.seq++
	inst.Id = fmt.Sprintf("i%d", ms.seq)
	inst.FilterId = filterId
	ms.instances = append(ms.instances, inst)
	return inst, nil
}

func (ms *memStore) UpdateInstance(ctx context.Context, inst nt.Instance) (nt.Instance, error) {
	if ms.failOn[inst.TargetRef] {
		return nt.Instance{}, errors.New("500 internal server error")
	}
	ms.instances = append(ms.instances, inst)
	return inst, nil
}

// batchStore applies instances all or nothing.
type batchStore struct {
	*memStore
}

func (bs batchStore) UpsertInstances(ctx context.Context, filterId string, insts []nt.Instance) ([]nt.Instance, error) {
	for _, inst := range insts {
		if bs.failOn[inst.TargetRef] {
			return nil, errors.Errorf("instance for %s rejected", inst.TargetRef)
		}
	}
	bs.instances = append(bs.instances, insts...)
	return insts, nil
}

func regionFilter() nt.Filter {
	return nt.Filter{
		Name: "Region",
		Type: "select",
		Definition: &nt.Definition{Root: &nt.Group{
			Logical:  nt.And,
			Children: []nt.Node{&nt.Condition{Field: "region", Operator: nt.In, Binding: "default"}},
		}},
		Instances: []nt.Instance{
			{TargetType: "dashboard", TargetRef: "d1", Placement: "header", IsActive: true},
			{TargetType: "widget", TargetRef: "w1", Placement: "toolbar", IsActive: true},
			{TargetType: "widget", TargetRef: "w2", Placement: "toolbar", IsActive: true},
		},
	}
}

func TestSaveDraft(t *testing.T) {

	ctx := context.Background()
	sv := (&Config{}).New(newMemStore(), nil)

	flt := regionFilter()
	flt.Name = ""

	saved, problems, err := sv.SaveDraft(ctx, flt)
	require.NoError(t, err)
	assert.Equal(t, "f1", saved.Id)
	assert.Equal(t, nt.Draft, saved.Status)
	assert.Empty(t, saved.Instances)
	require.Len(t, problems, 1)
	assert.Equal(t, "name", problems[0].Field)

	saved.Name = "Region"
	again, problems, err := sv.SaveDraft(ctx, saved)
	require.NoError(t, err)
	assert.Empty(t, problems)
	assert.Equal(t, "Region", again.Name)
}

func TestPublish(t *testing.T) {

	ctx := context.Background()

	t.Run("refuses invalid filters", func(t *testing.T) {
		ms := newMemStore()
		sv := (&Config{}).New(ms, nil)

		flt := regionFilter()
		flt.Instances = nil

		_, err := sv.Publish(ctx, flt)
		var failed *ValidationFailed
		require.ErrorAs(t, err, &failed)
		assert.Equal(t, "at least one placement is required", failed.Errors[0].Message)
		assert.Empty(t, ms.filters)
	})

	t.Run("bumps version and upserts instances in order", func(t *testing.T) {
		ms := newMemStore()
		sv := (&Config{}).New(ms, nil)

		flt := regionFilter()
		flt.Version = 2

		result, err := sv.Publish(ctx, flt)
		require.NoError(t, err)
		assert.Equal(t, 3, result.Filter.Version)
		assert.Equal(t, nt.Published, result.Filter.Status)
		require.Len(t, result.Succeeded, 3)
		assert.Equal(t, []string{"d1", "w1", "w2"}, targets(ms.instances))
		assert.Equal(t, result.Filter.Id, ms.instances[0].FilterId)
		assert.Equal(t, result.Succeeded, result.Filter.Instances)
		assert.Empty(t, flt.Instances[0].FilterId)
	})

	t.Run("existing instances are updated", func(t *testing.T) {
		ms := newMemStore()
		sv := (&Config{}).New(ms, nil)

		saved, _, err := sv.SaveDraft(ctx, regionFilter())
		require.NoError(t, err)
		saved.Instances = []nt.Instance{{Id: "keep", TargetType: "widget", TargetRef: "w9", Placement: "side"}}

		result, err := sv.Publish(ctx, saved)
		require.NoError(t, err)
		assert.Equal(t, "keep", result.Succeeded[0].Id)
		assert.Equal(t, saved.Id, result.Filter.Id)
	})

	t.Run("reports which instances failed", func(t *testing.T) {
		ms := newMemStore()
		ms.failOn["w1"] = true
		sv := (&Config{}).New(ms, nil)

		result, err := sv.Publish(ctx, regionFilter())

		var partial *PartialPublish
		require.ErrorAs(t, err, &partial)
		require.Len(t, partial.Failed, 1)
		assert.Equal(t, 1, partial.Failed[0].Index)
		assert.Equal(t, "w1", partial.Failed[0].Instance.TargetRef)
		assert.Equal(t, []string{"d1", "w2"}, targets(result.Succeeded))
		assert.Equal(t, nt.Published, ms.filters[result.Filter.Id].Status)
	})

	t.Run("batch stores are all or nothing", func(t *testing.T) {
		ms := newMemStore()
		ms.failOn["w2"] = true
		sv := (&Config{}).New(batchStore{ms}, nil)

		result, err := sv.Publish(ctx, regionFilter())

		var partial *PartialPublish
		require.ErrorAs(t, err, &partial)
		assert.Len(t, partial.Failed, 3)
		assert.Empty(t, result.Succeeded)
		assert.Empty(t, ms.instances)
	})
}

func TestDeprecate(t *testing.T) {

	ctx := context.Background()
	sv := (&Config{}).New(newMemStore(), nil)

	_, err := sv.Deprecate(ctx, regionFilter())
	assert.Error(t, err)

	result, err := sv.Publish(ctx, regionFilter())
	require.NoError(t, err)

	saved, err := sv.Deprecate(ctx, result.Filter)
	require.NoError(t, err)
	assert.Equal(t, nt.Deprecated, saved.Status)
}

func targets(insts []nt.Instance) (refs []string) {
	for _, inst := range insts {
		refs = append(refs, inst.TargetRef)
	}
	return
}
