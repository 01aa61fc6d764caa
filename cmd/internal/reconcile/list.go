// Package reconcile folds realtime update events into view-local entity lists.
//
// The server echoes the user's own actions back over the broker. Policy:
//   - CREATE appends unless the id is already present.
//   - UPDATE replaces the entry with the same id; unknown ids are ignored.
//   - DELETE removes the entry with the same id; unknown ids are ignored.
//
// Events must be applied in arrival order. List is not safe for concurrent use;
// owners serialize access.
package reconcile

import v1 "talkwire/shared/contracts/realtime/v1"

// Keyed is implemented by every entity that can live in a List.
type Keyed interface {
	Key() int64
}

// Outcome describes the effect of applying one event.
type Outcome struct {
	// Changed is true when the list contents changed.
	Changed bool
	// Deleted is true when an existing entry was removed.
	Deleted bool
}

// List is an ordered collection with at most one entry per id.
type List[T Keyed] struct {
	items []T
	index map[int64]int
}

// New returns an empty list.
func New[T Keyed]() *List[T] {
	return &List[T]{index: make(map[int64]int)}
}

// Seed replaces the contents with items, keeping the first occurrence of each id.
func (l *List[T]) Seed(items []T) {
	l.items = make([]T, 0, len(items))
	l.index = make(map[int64]int, len(items))
	for _, it := range items {
		k := it.Key()
		if _, ok := l.index[k]; ok {
			continue
		}
		l.index[k] = len(l.items)
		l.items = append(l.items, it)
	}
}

// Apply folds one action into the list.
// Unrecognised actions leave the list untouched.
func (l *List[T]) Apply(action v1.Action, entity T) Outcome {
	switch action {
	case v1.ActionCreate:
		if l.Add(entity) {
			return Outcome{Changed: true}
		}
	case v1.ActionUpdate:
		if l.Replace(entity) {
			return Outcome{Changed: true}
		}
	case v1.ActionDelete:
		if l.Remove(entity.Key()) {
			return Outcome{Changed: true, Deleted: true}
		}
	}
	return Outcome{}
}

// ApplyEvent is Apply for a typed event.
func ApplyEvent[T Keyed, E v1.Event[T]](l *List[T], e E) Outcome {
	return l.Apply(e.EventAction(), e.Entity())
}

// Add appends entity unless its id is present. It reports whether the list changed.
func (l *List[T]) Add(entity T) bool {
	l.ensure()
	k := entity.Key()
	if _, ok := l.index[k]; ok {
		return false
	}
	l.index[k] = len(l.items)
	l.items = append(l.items, entity)
	return true
}

// Replace swaps the entry with entity's id. It reports whether an entry was found.
func (l *List[T]) Replace(entity T) bool {
	l.ensure()
	i, ok := l.index[entity.Key()]
	if !ok {
		return false
	}
	l.items[i] = entity
	return true
}

// Remove deletes the entry with id. It reports whether an entry was found.
func (l *List[T]) Remove(id int64) bool {
	l.ensure()
	i, ok := l.index[id]
	if !ok {
		return false
	}
	l.items = append(l.items[:i], l.items[i+1:]...)
	delete(l.index, id)
	for j := i; j < len(l.items); j++ {
		l.index[l.items[j].Key()] = j
	}
	return true
}

// Get returns the entry with id.
func (l *List[T]) Get(id int64) (T, bool) {
	var zero T
	if l == nil || l.index == nil {
		return zero, false
	}
	i, ok := l.index[id]
	if !ok {
		return zero, false
	}
	return l.items[i], true
}

// Has reports whether id is present.
func (l *List[T]) Has(id int64) bool {
	_, ok := l.Get(id)
	return ok
}

// Len returns the number of entries.
func (l *List[T]) Len() int {
	if l == nil {
		return 0
	}
	return len(l.items)
}

// Items returns a copy of the entries in order.
func (l *List[T]) Items() []T {
	if l == nil {
		return nil
	}
	return append([]T(nil), l.items...)
}

func (l *List[T]) ensure() {
	if l.index == nil {
		l.index = make(map[int64]int)
	}
}
