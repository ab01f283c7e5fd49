package registry

import (
	"fmt"
	"sort"
)

// Tx exposes the registry operations to code that already holds the registry lock.
// A Tx is only valid inside the function passed to Registry.Do. Mutations made through a Tx
// are recorded and logged like their Registry counterparts.
type Tx[K comparable, E Entity[K, E, B], B Builder[E]] struct {
	r *Registry[K, E, B]
}

// Add is the lock-held body of Registry.Add.
func (tx *Tx[K, E, B]) Add(entity E, onAdded Callback[E], opts ...CallOption) Result[E] {
	return tx.r.finish("add", tx.add(entity, onAdded, newCallSettings(opts)))
}

// AddIfNotExists is the lock-held body of Registry.AddIfNotExists.
func (tx *Tx[K, E, B]) AddIfNotExists(entity E, onAdded Callback[E], opts ...CallOption) Result[E] {
	return tx.r.finish("add_if_not_exists", tx.addIfNotExists(entity, onAdded, newCallSettings(opts)))
}

// AddOrUpdate is the lock-held body of Registry.AddOrUpdate.
func (tx *Tx[K, E, B]) AddOrUpdate(entity E, onAdded Callback[E], onUpdated UpdateCallback[E], opts ...CallOption) Result[E] {
	return tx.r.finish("add_or_update", tx.addOrUpdate(entity, onAdded, onUpdated, newCallSettings(opts)))
}

// Update is the lock-held body of Registry.Update.
func (tx *Tx[K, E, B]) Update(entity E, onUpdated UpdateCallback[E], opts ...CallOption) Result[E] {
	return tx.r.finish("update", tx.update(entity, onUpdated, newCallSettings(opts)))
}

// UpdateWith is the lock-held body of Registry.UpdateWith.
func (tx *Tx[K, E, B]) UpdateWith(id K, mutate func(B), onUpdated UpdateCallback[E], opts ...CallOption) Result[E] {
	call := newCallSettings(opts)
	if mutate == nil {
		var zero E
		return tx.r.finish("update_with", tx.r.argumentError(zero, call, "mutator must not be nil"))
	}
	return tx.r.finish("update_with", tx.updateWith(id, mutate, onUpdated, call))
}

// Delete is the lock-held body of Registry.Delete.
func (tx *Tx[K, E, B]) Delete(entity E, onDeleted Callback[E], opts ...CallOption) Result[E] {
	return tx.r.finish("delete", tx.delete(entity, onDeleted, newCallSettings(opts)))
}

// TryGet is the lock-held body of Registry.TryGet.
func (tx *Tx[K, E, B]) TryGet(id K) (E, bool) {
	e, ok := tx.r.entities[id]
	return e, ok
}

// Exists is the lock-held body of Registry.Exists.
func (tx *Tx[K, E, B]) Exists(id K) bool {
	_, ok := tx.r.entities[id]
	return ok
}

// All is the lock-held body of Registry.All. Entities are ordered by the string form of their id.
func (tx *Tx[K, E, B]) All() []E {
	out := make([]E, 0, len(tx.r.entities))
	for _, e := range tx.r.entities {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		return fmt.Sprint(out[i].EntityID()) < fmt.Sprint(out[j].EntityID())
	})
	return out
}

func (tx *Tx[K, E, B]) add(entity E, onAdded Callback[E], call callSettings) Result[E] {
	r := tx.r
	if res, ok := tx.checkAdmissible(entity, call); !ok {
		return res
	}

	id := entity.EntityID()
	if _, exists := r.entities[id]; exists {
		return r.argumentError(entity, call, fmt.Sprintf("id %v already exists", id))
	}

	if !entity.AttachOwner(r) {
		return r.argumentError(entity, call, "entity belongs to a different registry")
	}
	tx.install(entity, onAdded, call)
	return r.result(OutcomeSuccess, entity, call)
}

func (tx *Tx[K, E, B]) addIfNotExists(entity E, onAdded Callback[E], call callSettings) Result[E] {
	r := tx.r
	if res, ok := tx.checkAdmissible(entity, call); !ok {
		return res
	}

	if stored, exists := r.entities[entity.EntityID()]; exists {
		return r.result(OutcomeNoOperation, stored, call)
	}
	if !entity.AttachOwner(r) {
		return r.argumentError(entity, call, "entity belongs to a different registry")
	}

	tx.install(entity, onAdded, call)
	return r.result(OutcomeSuccess, entity, call)
}

func (tx *Tx[K, E, B]) addOrUpdate(entity E, onAdded Callback[E], onUpdated UpdateCallback[E], call callSettings) Result[E] {
	r := tx.r
	if res, ok := tx.checkAdmissible(entity, call); !ok {
		return res
	}

	if !entity.AttachOwner(r) {
		return r.argumentError(entity, call, "entity belongs to a different registry")
	}

	previous, exists := r.entities[entity.EntityID()]
	if !exists {
		tx.install(entity, onAdded, call)
		return r.result(OutcomeAdded, entity, call)
	}
	tx.replace(previous, entity, onUpdated, call)
	return r.result(OutcomeUpdated, entity, call)
}

func (tx *Tx[K, E, B]) update(entity E, onUpdated UpdateCallback[E], call callSettings) Result[E] {
	r := tx.r
	if res, ok := tx.checkAdmissible(entity, call); !ok {
		return res
	}

	id := entity.EntityID()
	previous, exists := r.entities[id]
	if !exists {
		return r.argumentError(entity, call, fmt.Sprintf("unknown id %v", id))
	}
	if !entity.AttachOwner(r) {
		return r.argumentError(entity, call, "entity belongs to a different registry")
	}

	tx.replace(previous, entity, onUpdated, call)
	return r.result(OutcomeSuccess, entity, call)
}

func (tx *Tx[K, E, B]) updateWith(id K, mutate func(B), onUpdated UpdateCallback[E], call callSettings) Result[E] {
	r := tx.r
	var zero E

	previous, exists := r.entities[id]
	if !exists {
		return r.argumentError(zero, call, fmt.Sprintf("unknown id %v", id))
	}
	if previous.Owner() != Owner(r) {
		return r.argumentError(previous, call, "entity belongs to a different registry")
	}

	builder := previous.ToBuilder()
	mutate(builder)

	updated, err := builder.Build()
	if err != nil {
		return r.argumentError(previous, call, err.Error())
	}
	if isNil(updated) {
		return r.argumentError(previous, call, "builder produced no entity")
	}
	if updated.EntityID() != id {
		return r.argumentError(previous, call, fmt.Sprintf("mutator changed id %v to %v", id, updated.EntityID()))
	}
	if !updated.AttachOwner(r) {
		return r.argumentError(previous, call, "entity belongs to a different registry")
	}

	tx.replace(previous, updated, onUpdated, call)
	return r.result(OutcomeSuccess, updated, call)
}

func (tx *Tx[K, E, B]) delete(entity E, onDeleted Callback[E], call callSettings) Result[E] {
	r := tx.r
	if isNil(entity) {
		return r.argumentError(entity, call, "entity must not be nil")
	}
	if entity.Owner() != Owner(r) {
		return r.argumentError(entity, call, "entity is not owned by this registry")
	}

	id := entity.EntityID()
	stored, exists := r.entities[id]
	if !exists {
		return r.argumentError(entity, call, fmt.Sprintf("unknown id %v", id))
	}

	if reason := r.veto(stored); reason != "" {
		res := r.result(OutcomeCanNotBeRemoved, stored, call)
		res.Reason = reason
		return res
	}

	delete(r.entities, id)

	ts := r.now()
	if onDeleted != nil {
		onDeleted(ts, stored, call.correlationID)
	}
	r.notify(Event[E]{
		Kind:          EventDeleted,
		Timestamp:     ts,
		Entity:        stored,
		CorrelationID: call.correlationID,
		ActorID:       call.actorID,
		NodeID:        r.nodeID,
	})

	return r.result(OutcomeSuccess, stored, call)
}

// checkAdmissible rejects nil entities and entities owned by another registry.
func (tx *Tx[K, E, B]) checkAdmissible(entity E, call callSettings) (Result[E], bool) {
	r := tx.r
	if isNil(entity) {
		return r.argumentError(entity, call, "entity must not be nil"), false
	}
	if owner := entity.Owner(); owner != nil && owner != Owner(r) {
		return r.argumentError(entity, call, "entity belongs to a different registry"), false
	}
	return Result[E]{}, true
}

// install stores an entity whose owner is already attached.
func (tx *Tx[K, E, B]) install(entity E, onAdded Callback[E], call callSettings) {
	r := tx.r
	r.entities[entity.EntityID()] = entity

	ts := r.now()
	if onAdded != nil {
		onAdded(ts, entity, call.correlationID)
	}
	r.notify(Event[E]{
		Kind:          EventAdded,
		Timestamp:     ts,
		Entity:        entity,
		CorrelationID: call.correlationID,
		ActorID:       call.actorID,
		NodeID:        r.nodeID,
	})
}

// replace swaps previous for updated after moving the linked data across.
func (tx *Tx[K, E, B]) replace(previous, updated E, onUpdated UpdateCallback[E], call callSettings) {
	r := tx.r
	id := previous.EntityID()

	delete(r.entities, id)
	updated.CarryForward(previous)
	r.entities[id] = updated

	ts := r.now()
	if onUpdated != nil {
		onUpdated(ts, updated, previous, call.correlationID)
	}
	r.notify(Event[E]{
		Kind:          EventUpdated,
		Timestamp:     ts,
		Entity:        updated,
		Previous:      previous,
		CorrelationID: call.correlationID,
		ActorID:       call.actorID,
		NodeID:        r.nodeID,
	})
}
