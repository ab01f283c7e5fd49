// Package registry provides the concurrent entity registry of a management node.
//
// Every operation, including pure lookups, is serialized behind one node-wide Coordinator.
// Within a critical section the mutation is applied first, then the per-call callback runs, then
// the observers are notified in registration order, and only then is the lock released.
// Mutating operations never return errors or panic; every outcome is reported as a Result.
package registry

import (
	"context"
	"fmt"
	"reflect"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Owner is the back-reference an entity keeps to the registry that admitted it.
type Owner interface {
	NodeID() string
}

// Entity is implemented by every value a Registry can hold. Entities are immutable apart from
// their linked runtime data, which CarryForward moves onto a replacement.
type Entity[K comparable, E any, B any] interface {
	EntityID() K
	// Owner returns the registry the entity was admitted to, or nil.
	Owner() Owner
	// AttachOwner sets the back-reference once. It reports false if a different owner is set.
	AttachOwner(o Owner) bool
	// CarryForward copies linked data from prev onto the receiver.
	CarryForward(prev E)
	// ToBuilder returns a mutable working copy of the entity.
	ToBuilder() B
}

// Builder freezes a mutable working copy back into an entity.
type Builder[E any] interface {
	Build() (E, error)
}

// VetoFunc blocks a delete by returning a non-empty reason.
type VetoFunc[E any] func(entity E) string

// Recorder receives one observation per completed registry operation.
type Recorder interface {
	RecordOperation(operation, outcome string)
}

type settings struct {
	lock     *Coordinator
	logger   zerolog.Logger
	recorder Recorder
	now      func() time.Time
}

// Option configures a Registry.
type Option func(*settings)

// WithLockTimeout sets the bounded wait of a registry-private coordinator.
func WithLockTimeout(d time.Duration) Option {
	return func(s *settings) { s.lock = NewCoordinator(d) }
}

// WithCoordinator shares an existing coordinator, e.g. between registries of one node.
func WithCoordinator(c *Coordinator) Option {
	return func(s *settings) { s.lock = c }
}

// WithLogger sets the registry logger.
func WithLogger(l zerolog.Logger) Option {
	return func(s *settings) { s.logger = l }
}

// WithRecorder attaches an operation recorder, typically metrics.
func WithRecorder(r Recorder) Option {
	return func(s *settings) { s.recorder = r }
}

// WithClock overrides the timestamp source used for callbacks and events.
func WithClock(now func() time.Time) Option {
	return func(s *settings) { s.now = now }
}

type callSettings struct {
	correlationID string
	actorID       string
}

// CallOption carries the optional per-call metadata.
type CallOption func(*callSettings)

// WithCorrelationID sets the correlation id reported in results and events.
func WithCorrelationID(id string) CallOption {
	return func(c *callSettings) { c.correlationID = id }
}

// WithActor records who requested the operation.
func WithActor(id string) CallOption {
	return func(c *callSettings) { c.actorID = id }
}

func newCallSettings(opts []CallOption) callSettings {
	var c callSettings
	for _, opt := range opts {
		opt(&c)
	}
	if c.correlationID == "" {
		c.correlationID = uuid.NewString()
	}
	return c
}

// Registry is a concurrent store of entities keyed by K.
type Registry[K comparable, E Entity[K, E, B], B Builder[E]] struct {
	nodeID   string
	lock     *Coordinator
	entities map[K]E
	logger   zerolog.Logger
	recorder Recorder
	now      func() time.Time

	observers observers[E]

	vetoMu sync.RWMutex
	vetoes []VetoFunc[E]
}

// New creates a registry owned by the given node.
func New[K comparable, E Entity[K, E, B], B Builder[E]](nodeID string, opts ...Option) *Registry[K, E, B] {
	s := settings{
		logger: log.With().Str("component", "registry").Logger(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(&s)
	}
	if s.lock == nil {
		s.lock = NewCoordinator(DefaultLockTimeout)
	}

	return &Registry[K, E, B]{
		nodeID:   nodeID,
		lock:     s.lock,
		entities: make(map[K]E),
		logger:   s.logger.With().Str("node_id", nodeID).Logger(),
		recorder: s.recorder,
		now:      s.now,
	}
}

// NodeID returns the id of the node owning the registry.
func (r *Registry[K, E, B]) NodeID() string {
	return r.nodeID
}

// Coordinator returns the serialization primitive guarding the registry.
func (r *Registry[K, E, B]) Coordinator() *Coordinator {
	return r.lock
}

// Subscribe registers an observer. Observers run in registration order.
// The returned function removes the subscription.
func (r *Registry[K, E, B]) Subscribe(fn Observer[E]) func() {
	return r.observers.add(fn)
}

// AddDeleteVeto registers a veto predicate evaluated by Delete.
func (r *Registry[K, E, B]) AddDeleteVeto(fn VetoFunc[E]) {
	r.vetoMu.Lock()
	defer r.vetoMu.Unlock()
	r.vetoes = append(r.vetoes, fn)
}

// Do runs fn inside the registry critical section. It is the composition point for callers
// that need several registry steps to appear atomic.
func (r *Registry[K, E, B]) Do(fn func(tx *Tx[K, E, B]) error) (err error) {
	release, ok := r.lock.Acquire()
	if !ok {
		return fmt.Errorf("%w after %s", ErrLockTimeout, r.lock.Timeout())
	}
	defer release()
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("%w: panic: %v", ErrInternal, rec)
		}
	}()

	return fn(&Tx[K, E, B]{r: r})
}

// Add admits a new entity.
func (r *Registry[K, E, B]) Add(entity E, onAdded Callback[E], opts ...CallOption) Result[E] {
	call := newCallSettings(opts)
	return r.locked("add", entity, call, func(tx *Tx[K, E, B]) Result[E] {
		return tx.add(entity, onAdded, call)
	})
}

// AddIfNotExists admits an entity unless its id is already registered, in which case the
// stored entity is returned with OutcomeNoOperation.
func (r *Registry[K, E, B]) AddIfNotExists(entity E, onAdded Callback[E], opts ...CallOption) Result[E] {
	call := newCallSettings(opts)
	return r.locked("add_if_not_exists", entity, call, func(tx *Tx[K, E, B]) Result[E] {
		return tx.addIfNotExists(entity, onAdded, call)
	})
}

// AddOrUpdate admits the entity or replaces the stored one with the same id.
func (r *Registry[K, E, B]) AddOrUpdate(entity E, onAdded Callback[E], onUpdated UpdateCallback[E], opts ...CallOption) Result[E] {
	call := newCallSettings(opts)
	return r.locked("add_or_update", entity, call, func(tx *Tx[K, E, B]) Result[E] {
		return tx.addOrUpdate(entity, onAdded, onUpdated, call)
	})
}

// Update replaces a stored entity with the given one.
func (r *Registry[K, E, B]) Update(entity E, onUpdated UpdateCallback[E], opts ...CallOption) Result[E] {
	call := newCallSettings(opts)
	return r.locked("update", entity, call, func(tx *Tx[K, E, B]) Result[E] {
		return tx.update(entity, onUpdated, call)
	})
}

// UpdateWith applies mutate to a working copy of the stored entity and installs the result.
func (r *Registry[K, E, B]) UpdateWith(id K, mutate func(B), onUpdated UpdateCallback[E], opts ...CallOption) Result[E] {
	call := newCallSettings(opts)
	var zero E
	if mutate == nil {
		return r.finish("update_with", r.argumentError(zero, call, "mutator must not be nil"))
	}
	return r.locked("update_with", zero, call, func(tx *Tx[K, E, B]) Result[E] {
		return tx.updateWith(id, mutate, onUpdated, call)
	})
}

// Delete removes an entity unless a veto predicate blocks it.
func (r *Registry[K, E, B]) Delete(entity E, onDeleted Callback[E], opts ...CallOption) Result[E] {
	call := newCallSettings(opts)
	return r.locked("delete", entity, call, func(tx *Tx[K, E, B]) Result[E] {
		return tx.delete(entity, onDeleted, call)
	})
}

// DeleteByID removes the entity stored under id.
func (r *Registry[K, E, B]) DeleteByID(id K, onDeleted Callback[E], opts ...CallOption) Result[E] {
	call := newCallSettings(opts)
	var zero E
	return r.locked("delete", zero, call, func(tx *Tx[K, E, B]) Result[E] {
		stored, ok := r.entities[id]
		if !ok {
			return r.argumentError(zero, call, fmt.Sprintf("unknown id %v", id))
		}
		return tx.delete(stored, onDeleted, call)
	})
}

// Exists reports whether id is registered. A lock timeout reports false.
func (r *Registry[K, E, B]) Exists(id K) bool {
	_, ok := r.TryGet(id)
	return ok
}

// Get returns the entity stored under id, or the zero value.
func (r *Registry[K, E, B]) Get(id K) E {
	e, _ := r.TryGet(id)
	return e
}

// TryGet returns the entity stored under id. A lock timeout reports false.
func (r *Registry[K, E, B]) TryGet(id K) (E, bool) {
	var zero E
	release, ok := r.lock.Acquire()
	if !ok {
		r.logger.Warn().Interface("id", id).Dur("timeout", r.lock.Timeout()).Msg("Lookup lock timeout")
		return zero, false
	}
	defer release()

	e, found := r.entities[id]
	return e, found
}

// All returns a snapshot of every stored entity ordered by id.
func (r *Registry[K, E, B]) All() []E {
	release, ok := r.lock.Acquire()
	if !ok {
		r.logger.Warn().Dur("timeout", r.lock.Timeout()).Msg("Listing lock timeout")
		return nil
	}
	defer release()

	return (&Tx[K, E, B]{r: r}).All()
}

// Count returns the number of stored entities, or -1 on lock timeout.
func (r *Registry[K, E, B]) Count() int {
	release, ok := r.lock.Acquire()
	if !ok {
		return -1
	}
	defer release()
	return len(r.entities)
}

// locked runs body inside the critical section and converts panics into OutcomeError.
func (r *Registry[K, E, B]) locked(op string, subject E, call callSettings, body func(tx *Tx[K, E, B]) Result[E]) (res Result[E]) {
	if owner := ownerOf(subject); owner != nil && owner != Owner(r) {
		return r.finish(op, r.argumentError(subject, call, "entity belongs to a different registry"))
	}

	release, ok := r.lock.Acquire()
	if !ok {
		res = r.result(OutcomeLockTimeout, subject, call)
		res.Timeout = r.lock.Timeout()
		return r.finish(op, res)
	}
	defer release()
	defer func() {
		if rec := recover(); rec != nil {
			res = r.result(OutcomeError, subject, call)
			res.Err = fmt.Errorf("panic in %s: %v", op, rec)
		}
		res = r.finish(op, res)
	}()

	return body(&Tx[K, E, B]{r: r})
}

func (r *Registry[K, E, B]) finish(op string, res Result[E]) Result[E] {
	if r.recorder != nil {
		r.recorder.RecordOperation(op, res.Outcome.String())
	}

	ev := r.logger.Debug()
	if !res.IsSuccess() {
		ev = r.logger.Warn()
	}
	ev.Str("operation", op).
		Str("outcome", res.Outcome.String()).
		Str("correlation_id", res.CorrelationID).
		Str("reason", res.Reason).
		Err(res.Err).
		Msg("Registry operation completed")

	return res
}

func (r *Registry[K, E, B]) result(outcome Outcome, entity E, call callSettings) Result[E] {
	return Result[E]{
		Outcome:       outcome,
		Entity:        entity,
		CorrelationID: call.correlationID,
		NodeID:        r.nodeID,
		Registry:      r,
	}
}

func (r *Registry[K, E, B]) argumentError(entity E, call callSettings, reason string) Result[E] {
	res := r.result(OutcomeArgumentError, entity, call)
	res.Reason = reason
	return res
}

func (r *Registry[K, E, B]) veto(entity E) string {
	r.vetoMu.RLock()
	defer r.vetoMu.RUnlock()

	for _, fn := range r.vetoes {
		if reason := fn(entity); reason != "" {
			return reason
		}
	}
	return ""
}

func (r *Registry[K, E, B]) notify(ev Event[E]) {
	ctx := context.Background()
	for _, fn := range r.observers.snapshot() {
		if err := fn(ctx, ev); err != nil {
			r.logger.Warn().
				Err(err).
				Str("event", ev.Kind.String()).
				Str("correlation_id", ev.CorrelationID).
				Msg("Registry observer failed")
		}
	}
}

// ownerOf returns the entity's owner, tolerating nil pointer entities.
func ownerOf[E interface{ Owner() Owner }](e E) Owner {
	if isNil(e) {
		return nil
	}
	return e.Owner()
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return rv.IsNil()
	default:
		return false
	}
}
