package store

import (
	"encoding/json"

	"github.com/digital-stage/client-go/internal/domain"
)

// Entity is anything the store can hold.
type Entity interface {
	EntityID() domain.ID
}

// Override is an entity scoped to one (listening device, target) pair.
type Override interface {
	Entity
	OverrideKey() (device, target domain.ID)
}

// Collection is the byId/allIds core every kind shares. Values are never
// mutated in place; every write copies the map and returns a new value,
// so snapshots handed out earlier stay consistent.
type Collection[T Entity] struct {
	ByID   map[domain.ID]T
	AllIDs []domain.ID
}

func newCollection[T Entity]() Collection[T] {
	return Collection[T]{ByID: map[domain.ID]T{}}
}

func (c Collection[T]) Get(id domain.ID) (T, bool) {
	e, ok := c.ByID[id]
	return e, ok
}

func (c Collection[T]) Len() int { return len(c.ByID) }

func (c Collection[T]) upsert(e T) Collection[T] {
	id := e.EntityID()
	byID := make(map[domain.ID]T, len(c.ByID)+1)
	for k, v := range c.ByID {
		byID[k] = v
	}
	_, existed := byID[id]
	byID[id] = e
	allIDs := c.AllIDs
	if !existed {
		allIDs = appendID(c.AllIDs, id)
	}
	return Collection[T]{ByID: byID, AllIDs: allIDs}
}

// patch shallow-merges the partial JSON payload over a copy of the
// existing record. Unknown ids and malformed payloads are no-ops.
func (c Collection[T]) patch(id domain.ID, partial json.RawMessage) (Collection[T], bool) {
	existing, ok := c.ByID[id]
	if !ok {
		return c, false
	}
	merged := existing
	if err := json.Unmarshal(partial, &merged); err != nil {
		return c, false
	}
	byID := make(map[domain.ID]T, len(c.ByID))
	for k, v := range c.ByID {
		byID[k] = v
	}
	byID[id] = merged
	return Collection[T]{ByID: byID, AllIDs: c.AllIDs}, true
}

func (c Collection[T]) remove(id domain.ID) (T, Collection[T], bool) {
	existing, ok := c.ByID[id]
	if !ok {
		var zero T
		return zero, c, false
	}
	byID := make(map[domain.ID]T, len(c.ByID)-1)
	for k, v := range c.ByID {
		if k != id {
			byID[k] = v
		}
	}
	return existing, Collection[T]{ByID: byID, AllIDs: removeID(c.AllIDs, id)}, true
}

// appendID adds id to the ordered set unless it is already present.
func appendID(ids []domain.ID, id domain.ID) []domain.ID {
	for _, existing := range ids {
		if existing == id {
			return ids
		}
	}
	out := make([]domain.ID, len(ids), len(ids)+1)
	copy(out, ids)
	return append(out, id)
}

func removeID(ids []domain.ID, id domain.ID) []domain.ID {
	out := make([]domain.ID, 0, len(ids))
	for _, existing := range ids {
		if existing != id {
			out = append(out, existing)
		}
	}
	return out
}
