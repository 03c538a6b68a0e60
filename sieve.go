package sieve

import (
	"context"
	"fmt"
	"strings"

	"github.com/pkg/errors"

	nt "sieve/entity"
	"sieve/validate"
)

// Store specifies a backing filter store.
type Store interface {
	// Fetch a filter by id
	Fetch(ctx context.Context, id string) (flt nt.Filter, err error)
	// Create a filter
	Create(ctx context.Context, flt nt.Filter) (created nt.Filter, err error)
	// Update a filter
	Update(ctx context.Context, flt nt.Filter) (updated nt.Filter, err error)
	// CreateInstance of a filter
	CreateInstance(ctx context.Context, filterId string, inst nt.Instance) (created nt.Instance, err error)
	// UpdateInstance of a filter
	UpdateInstance(ctx context.Context, inst nt.Instance) (updated nt.Instance, err error)
}

// BatchStore upserts a filter's instances all or nothing.
type BatchStore interface {
	UpsertInstances(ctx context.Context, filterId string, insts []nt.Instance) (upserted []nt.Instance, err error)
}

// ValidationFailed refuses an action over a filter with problems.
type ValidationFailed struct {
	Errors []nt.ValidationError
}

func (vf *ValidationFailed) Error() string {

	msgs := make([]string, len(vf.Errors))
	for i, ve := range vf.Errors {
		msgs[i] = ve.Error()
	}
	return fmt.Sprintf("filter is invalid: %s", strings.Join(msgs, "; "))
}

// InstanceFailure is an instance that could not be persisted.
type InstanceFailure struct {
	Index    int
	Instance nt.Instance
	Err      error
}

// PartialPublish reports a publish where the filter was saved but some
// instances were not. Nothing is rolled back.
type PartialPublish struct {
	Failed []InstanceFailure
}

func (pp *PartialPublish) Error() string {

	msgs := make([]string, len(pp.Failed))
	for i, fail := range pp.Failed {
		msgs[i] = fmt.Sprintf("instance %d (%s): %s", fail.Index, fail.Instance.TargetRef, fail.Err)
	}
	return fmt.Sprintf("published with %d failed instance(s): %s", len(pp.Failed), strings.Join(msgs, "; "))
}

// PublishResult is what a publish persisted.
type PublishResult struct {
	Filter    nt.Filter
	Succeeded []nt.Instance
	Failed    []InstanceFailure
}

type Config struct{}

// Sieve manages the lifecycle of filters in a store.
type Sieve struct {
	store  Store
	logger nt.Logger
}

func (cfg *Config) New(store Store, lgr nt.Logger) *Sieve {

	if lgr == nil {
		lgr = nt.Quiet{}
	}

	return &Sieve{
		store:  store,
		logger: lgr,
	}
}

// SaveDraft creates a new draft or updates an existing filter.
// Problems are returned alongside and do not block saving.
func (sv *Sieve) SaveDraft(ctx context.Context, flt nt.Filter) (saved nt.Filter, problems []nt.ValidationError, err error) {

	problems = validate.Filter(flt)

	if flt.Id == "" {
		flt.Status = nt.Draft
		flt.Instances = nil
		saved, err = sv.store.Create(ctx, flt)
		err = errors.Wrapf(err, "failed to create filter %s", flt.Name)
		return
	}

	saved, err = sv.store.Update(ctx, flt)
	err = errors.Wrapf(err, "failed to update filter %s", flt.Id)
	return
}

// Publish validates a filter as published, bumps its version, saves it and
// then upserts its instances.
//
// A BatchStore applies the instances atomically. Otherwise they are written
// one at a time in order, every instance is attempted, and a *PartialPublish
// error names those that failed.
func (sv *Sieve) Publish(ctx context.Context, flt nt.Filter) (result PublishResult, err error) {

	candidate := flt
	candidate.Status = nt.Published

	problems := validate.Filter(candidate)
	if len(problems) > 0 {
		err = &ValidationFailed{Errors: problems}
		return
	}

	instances := append([]nt.Instance{}, candidate.Instances...)
	candidate.Instances = nil
	candidate.Version++

	if candidate.Id == "" {
		result.Filter, err = sv.store.Create(ctx, candidate)
	} else {
		result.Filter, err = sv.store.Update(ctx, candidate)
	}
	if err != nil {
		err = errors.Wrapf(err, "failed to save filter %s", flt.Name)
		return
	}

	filterId := result.Filter.Id
	for i := range instances {
		instances[i].FilterId = filterId
	}

	batch, ok := sv.store.(BatchStore)
	if ok {
		result.Succeeded, result.Failed = sv.batch(ctx, batch, filterId, instances)
	} else {
		result.Succeeded, result.Failed = sv.sequential(ctx, filterId, instances)
	}
	result.Filter.Instances = result.Succeeded

	if len(result.Failed) > 0 {
		err = &PartialPublish{Failed: result.Failed}
		sv.logger.Error(ctx, "filter published partially", err,
			"filter_id", filterId, "version", result.Filter.Version, "failed", len(result.Failed))
		return
	}

	sv.logger.Info(ctx, "filter published",
		"filter_id", filterId, "version", result.Filter.Version, "instances", len(result.Succeeded))
	return
}

func (sv *Sieve) batch(ctx context.Context, batch BatchStore, filterId string, instances []nt.Instance) (succeeded []nt.Instance, failed []InstanceFailure) {

	upserted, err := batch.UpsertInstances(ctx, filterId, instances)
	if err == nil {
		return upserted, nil
	}

	err = errors.Wrapf(err, "failed to upsert instances of %s", filterId)
	for i, inst := range instances {
		failed = append(failed, InstanceFailure{Index: i, Instance: inst, Err: err})
	}
	return
}

func (sv *Sieve) sequential(ctx context.Context, filterId string, instances []nt.Instance) (succeeded []nt.Instance, failed []InstanceFailure) {

	for i, inst := range instances {

		var saved nt.Instance
		var err error
		if inst.Id == "" {
			saved, err = sv.store.CreateInstance(ctx, filterId, inst)
		} else {
			saved, err = sv.store.UpdateInstance(ctx, inst)
		}

		if err != nil {
			failed = append(failed, InstanceFailure{Index: i, Instance: inst, Err: err})
			continue
		}
		succeeded = append(succeeded, saved)
	}
	return
}

// Deprecate marks a filter deprecated, removing it from evaluation.
func (sv *Sieve) Deprecate(ctx context.Context, flt nt.Filter) (saved nt.Filter, err error) {

	if flt.Id == "" {
		err = errors.Errorf("cannot deprecate unsaved filter %s", flt.Name)
		return
	}

	flt.Status = nt.Deprecated
	saved, err = sv.store.Update(ctx, flt)
	err = errors.Wrapf(err, "failed to deprecate filter %s", flt.Id)
	return
}
