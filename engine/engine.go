// Package engine tracks filter instances, current filter values and the
// targets they affect, keeping a combined predicate per target up to date
// and telling subscribers when it changes.
package engine

import (
	"context"
	"reflect"
	"sort"
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	nt "sieve/entity"
	"sieve/predicate"
)

// Fetcher looks up filters by id, typically from a remote store.
type Fetcher interface {
	Fetch(ctx context.Context, id string) (flt nt.Filter, err error)
}

// Subscriber is told when a target's predicate has been recomputed and
// should re-read it with GetPredicateForTarget.
type Subscriber interface {
	Invalidated(targetRef string)
}

// SubscriberFunc adapts a func to Subscriber.
type SubscriberFunc func(targetRef string)

func (fn SubscriberFunc) Invalidated(targetRef string) {
	fn(targetRef)
}

// Config configures an Engine.
type Config struct {
	// Concurrency bounds parallel target recomputation.
	Concurrency int `yaml:"concurrency"`
	// MaxDepth bounds filter tree nesting during compilation.
	MaxDepth int `yaml:"max_depth"`
}

type subscription struct {
	id  uint64
	sub Subscriber
}

type binding struct {
	filterId string
	value    any
}

// Engine owns the registration and subscription state for a session.
type Engine struct {
	fetcher     Fetcher
	compiler    *predicate.Compiler
	logger      nt.Logger
	concurrency int

	mu          sync.Mutex
	values      map[string]any
	instances   map[string]nt.Instance
	order       []string
	cache       map[string]nt.Predicate
	subscribers map[string][]subscription
	nextSub     uint64
	generation  map[string]uint64
	inflight    map[string]context.CancelFunc
	definitions map[string]nt.Filter

	flight singleflight.Group
}

// New creates an Engine.
func (cfg *Config) New(fetcher Fetcher, lgr nt.Logger) *Engine {

	if lgr == nil {
		lgr = nt.Quiet{}
	}

	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 4
	}

	compiler := predicate.New()
	if cfg.MaxDepth > 0 {
		compiler.MaxDepth = cfg.MaxDepth
	}

	return &Engine{
		fetcher:     fetcher,
		compiler:    compiler,
		logger:      lgr,
		concurrency: concurrency,
		values:      map[string]any{},
		instances:   map[string]nt.Instance{},
		cache:       map[string]nt.Predicate{},
		subscribers: map[string][]subscription{},
		generation:  map[string]uint64{},
		inflight:    map[string]context.CancelFunc{},
		definitions: map[string]nt.Filter{},
	}
}

// instanceKey falls back to filter and target when an instance has no id.
func instanceKey(inst nt.Instance) string {
	if inst.Id != "" {
		return inst.Id
	}
	return inst.FilterId + "@" + inst.TargetRef
}

// RegisterInstance inserts or overwrites an instance.
// Nothing is recomputed; see Recompute.
func (eng *Engine) RegisterInstance(inst nt.Instance) {

	eng.mu.Lock()
	defer eng.mu.Unlock()

	key := instanceKey(inst)
	if _, ok := eng.instances[key]; !ok {
		eng.order = append(eng.order, key)
	}
	eng.instances[key] = inst
}

// SetActive toggles an instance's participation and recomputes its target.
func (eng *Engine) SetActive(ctx context.Context, instanceId string, active bool) (err error) {

	eng.mu.Lock()
	inst, ok := eng.instances[instanceId]
	if !ok {
		eng.mu.Unlock()
		err = errors.Errorf("no instance registered as %s", instanceId)
		return
	}
	if inst.IsActive == active {
		eng.mu.Unlock()
		return
	}
	inst.IsActive = active
	eng.instances[instanceId] = inst
	eng.mu.Unlock()

	return eng.refresh(ctx, []string{inst.TargetRef})
}

// Value returns the current runtime value of a filter.
func (eng *Engine) Value(filterId string) any {

	eng.mu.Lock()
	defer eng.mu.Unlock()

	return eng.values[filterId]
}

// SetValue records a filter's runtime value and recomputes and notifies
// every target with an active instance of that filter. Setting the value it
// already holds does nothing.
func (eng *Engine) SetValue(ctx context.Context, filterId string, value any) (err error) {

	eng.mu.Lock()
	if same(eng.values[filterId], value) {
		eng.mu.Unlock()
		return
	}
	eng.values[filterId] = value
	targets := eng.targetsFor(filterId)
	eng.mu.Unlock()

	err = eng.refresh(ctx, targets)
	eng.logger.Info(ctx, "filter value set", "filter_id", filterId, "targets", len(targets))
	return
}

// ClearScope resets every filter value to nil and recomputes the targets
// affected. The scope is not consulted: all filters are cleared.
func (eng *Engine) ClearScope(ctx context.Context, scopeId string) (err error) {

	eng.mu.Lock()

	ids := []string{}
	for id, val := range eng.values {
		if val != nil {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)

	targets := []string{}
	seen := map[string]bool{}
	for _, id := range ids {
		eng.values[id] = nil
		for _, target := range eng.targetsFor(id) {
			if !seen[target] {
				seen[target] = true
				targets = append(targets, target)
			}
		}
	}
	eng.mu.Unlock()

	eng.logger.Info(ctx, "clearing filters", "scope_id", scopeId, "filters", len(ids), "targets", len(targets))
	return eng.refresh(ctx, targets)
}

// Recompute rebuilds and broadcasts predicates for the given targets.
func (eng *Engine) Recompute(ctx context.Context, targets ...string) error {
	return eng.refresh(ctx, targets)
}

// Subscribe registers sub for a target and returns its unsubscribe func.
// Subscribers are notified in registration order; registering an identical
// comparable subscriber again returns the existing registration.
// A nil subscriber is not registered and its unsubscribe does nothing.
func (eng *Engine) Subscribe(targetRef string, sub Subscriber) (unsubscribe func()) {

	if fn, ok := sub.(SubscriberFunc); sub == nil || (ok && fn == nil) {
		return func() {}
	}

	eng.mu.Lock()
	defer eng.mu.Unlock()

	for _, existing := range eng.subscribers[targetRef] {
		if sameSubscriber(existing.sub, sub) {
			return eng.unsubscriber(targetRef, existing.id)
		}
	}

	eng.nextSub++
	id := eng.nextSub
	eng.subscribers[targetRef] = append(eng.subscribers[targetRef], subscription{id: id, sub: sub})

	return eng.unsubscriber(targetRef, id)
}

func (eng *Engine) unsubscriber(targetRef string, id uint64) func() {

	return func() {
		eng.mu.Lock()
		defer eng.mu.Unlock()

		subs := eng.subscribers[targetRef]
		for i, existing := range subs {
			if existing.id == id {
				eng.subscribers[targetRef] = append(subs[:i:i], subs[i+1:]...)
				break
			}
		}
		if len(eng.subscribers[targetRef]) == 0 {
			delete(eng.subscribers, targetRef)
		}
	}
}

// GetPredicateForTarget returns the cached predicate for a target, or the
// neutral predicate when none has been computed.
func (eng *Engine) GetPredicateForTarget(targetRef string) nt.Predicate {

	eng.mu.Lock()
	defer eng.mu.Unlock()

	pred, ok := eng.cache[targetRef]
	if !ok {
		return nt.Neutral()
	}

	server := nt.Params{}
	for key, val := range pred.Server {
		server[key] = val
	}
	return nt.Predicate{Client: pred.Client, Server: server}
}

// Targets lists targets with at least one registered instance.
func (eng *Engine) Targets() (targets []string) {

	eng.mu.Lock()
	defer eng.mu.Unlock()

	seen := map[string]bool{}
	for _, key := range eng.order {
		target := eng.instances[key].TargetRef
		if !seen[target] {
			seen[target] = true
			targets = append(targets, target)
		}
	}
	return
}

// targetsFor finds targets with an active instance of a filter.
// Caller holds the lock.
func (eng *Engine) targetsFor(filterId string) (targets []string) {

	seen := map[string]bool{}
	for _, key := range eng.order {
		inst := eng.instances[key]
		if inst.FilterId != filterId || !inst.IsActive || seen[inst.TargetRef] {
			continue
		}
		seen[inst.TargetRef] = true
		targets = append(targets, inst.TargetRef)
	}
	return
}

// gather collects the filters bound to a target that have a value.
// Caller holds the lock.
func (eng *Engine) gather(targetRef string) (bound []binding) {

	seen := map[string]bool{}
	for _, key := range eng.order {
		inst := eng.instances[key]
		if inst.TargetRef != targetRef || !inst.IsActive || seen[inst.FilterId] {
			continue
		}
		seen[inst.FilterId] = true

		value := eng.values[inst.FilterId]
		if value == nil {
			continue
		}
		bound = append(bound, binding{filterId: inst.FilterId, value: value})
	}
	return
}

// refresh recomputes targets in parallel, then notifies subscribers of each
// target whose result was stored. Targets that fail are left as they were
// and the first failure is returned.
func (eng *Engine) refresh(ctx context.Context, targets []string) (err error) {

	if len(targets) == 0 {
		return
	}

	stored := make([]bool, len(targets))

	var grp errgroup.Group
	grp.SetLimit(eng.concurrency)
	for i, target := range targets {
		grp.Go(func() (err error) {
			stored[i], err = eng.recompute(ctx, target)
			return
		})
	}
	err = grp.Wait()

	for i, target := range targets {
		if stored[i] {
			eng.notify(ctx, target)
		}
	}

	if err != nil {
		eng.logger.Error(ctx, "failed to recompute predicates", err, "targets", len(targets))
	}
	return
}

// recompute builds a target's combined predicate and caches it unless a
// newer recomputation of the same target started in the meantime.
func (eng *Engine) recompute(ctx context.Context, targetRef string) (stored bool, err error) {

	eng.mu.Lock()
	eng.generation[targetRef]++
	gen := eng.generation[targetRef]
	if cancel, ok := eng.inflight[targetRef]; ok {
		cancel()
	}
	tctx, cancel := context.WithCancel(ctx)
	eng.inflight[targetRef] = cancel
	bound := eng.gather(targetRef)
	eng.mu.Unlock()

	defer func() {
		eng.mu.Lock()
		if eng.generation[targetRef] == gen {
			delete(eng.inflight, targetRef)
		}
		eng.mu.Unlock()
		cancel()
	}()

	preds := make([]nt.Predicate, 0, len(bound))
	for _, bnd := range bound {

		var flt nt.Filter
		flt, err = eng.definition(tctx, bnd.filterId)
		if err != nil {
			if eng.superseded(targetRef, gen) {
				err = nil
				return
			}
			err = errors.Wrapf(err, "failed to get filter %s for target %s", bnd.filterId, targetRef)
			return
		}

		if flt.Status == nt.Deprecated {
			continue
		}
		preds = append(preds, eng.compiler.Generate(flt.Definition, bnd.value))
	}
	combined := predicate.Combine(preds...)

	eng.mu.Lock()
	defer eng.mu.Unlock()

	if eng.generation[targetRef] != gen {
		return
	}
	eng.cache[targetRef] = combined
	stored = true
	return
}

func (eng *Engine) superseded(targetRef string, gen uint64) bool {

	eng.mu.Lock()
	defer eng.mu.Unlock()

	return eng.generation[targetRef] != gen
}

// definition returns a filter from the session cache, fetching at most once
// per id at a time. The fetch itself is not tied to the caller's context so
// an abandoned wait still fills the cache for others.
func (eng *Engine) definition(ctx context.Context, filterId string) (flt nt.Filter, err error) {

	eng.mu.Lock()
	flt, ok := eng.definitions[filterId]
	eng.mu.Unlock()
	if ok {
		return
	}

	if eng.fetcher == nil {
		err = errors.Errorf("no definition for filter %s and no fetcher", filterId)
		return
	}

	detached := context.WithoutCancel(ctx)
	ch := eng.flight.DoChan(filterId, func() (any, error) {

		fetched, err := eng.fetcher.Fetch(detached, filterId)
		if err != nil {
			return nil, err
		}

		eng.mu.Lock()
		eng.definitions[filterId] = fetched
		eng.mu.Unlock()
		return fetched, nil
	})

	select {
	case <-ctx.Done():
		err = ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			err = res.Err
			return
		}
		flt = res.Val.(nt.Filter)
	}
	return
}

// Prime seeds the definition cache.
func (eng *Engine) Prime(filters ...nt.Filter) {

	eng.mu.Lock()
	defer eng.mu.Unlock()

	for _, flt := range filters {
		eng.definitions[flt.Id] = flt
	}
}

// Forget drops a cached definition so the next recomputation refetches it.
func (eng *Engine) Forget(filterId string) {

	eng.mu.Lock()
	defer eng.mu.Unlock()

	delete(eng.definitions, filterId)
}

func (eng *Engine) notify(ctx context.Context, targetRef string) {

	eng.mu.Lock()
	subs := append([]subscription{}, eng.subscribers[targetRef]...)
	eng.mu.Unlock()

	for _, sub := range subs {
		eng.call(ctx, targetRef, sub.sub)
	}
}

// call invokes a subscriber, logging rather than propagating a panic.
func (eng *Engine) call(ctx context.Context, targetRef string, sub Subscriber) {

	defer func() {
		if r := recover(); r != nil {
			eng.logger.Error(ctx, "subscriber failed", errors.Errorf("panic: %v", r), "target", targetRef)
		}
	}()

	sub.Invalidated(targetRef)
}

// same is identity for runtime values: equality for comparable values and
// the same backing data for maps and slices.
func same(a, b any) (eq bool) {

	if a == nil || b == nil {
		return a == nil && b == nil
	}

	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb {
		return false
	}

	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	switch ta.Kind() {
	case reflect.Map, reflect.Pointer, reflect.Func, reflect.Chan, reflect.UnsafePointer:
		return va.Pointer() == vb.Pointer()
	case reflect.Slice:
		return va.Pointer() == vb.Pointer() && va.Len() == vb.Len()
	}

	defer func() {
		if recover() != nil {
			eq = false
		}
	}()
	return ta.Comparable() && a == b
}

func sameSubscriber(a, b Subscriber) bool {

	if reflect.TypeOf(a) != reflect.TypeOf(b) || reflect.TypeOf(a).Kind() == reflect.Func {
		return false
	}
	return same(a, b)
}
