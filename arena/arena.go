// Package arena provides a generation-checked slot arena.
//
// Components that need to refer to a state-machine instance they do not own
// hold a Handle instead of a pointer. When the owning component frees the
// slot, the slot's generation is bumped and every outstanding Handle to the
// old instance resolves to "not found" instead of aliasing a new occupant.
package arena

import (
	"fmt"
	"sync"
)

// Handle identifies one occupant of an Arena slot.
// The zero Handle is never issued and always fails to resolve.
type Handle struct {
	Index      uint32
	Generation uint32
}

// IsZero reports whether h is the zero Handle.
func (h Handle) IsZero() bool {
	return h.Generation == 0
}

// String returns a compact representation used in logs and event keys.
func (h Handle) String() string {
	return fmt.Sprintf("%d#%d", h.Index, h.Generation)
}

type slot[T any] struct {
	generation uint32
	occupied   bool
	value      T
}

// Arena stores values of type T addressed by generation-checked handles.
// It is safe for concurrent use.
type Arena[T any] struct {
	mu    sync.RWMutex
	slots []slot[T]
	free  []uint32
	live  int
}

// New creates an empty arena.
func New[T any]() *Arena[T] {
	return &Arena[T]{}
}

// Insert stores value in a free slot and returns its handle.
func (a *Arena[T]) Insert(value T) Handle {
	a.mu.Lock()
	defer a.mu.Unlock()

	var idx uint32
	if n := len(a.free); n > 0 {
		idx = a.free[n-1]
		a.free = a.free[:n-1]
	} else {
		a.slots = append(a.slots, slot[T]{})
		idx = uint32(len(a.slots) - 1)
	}

	s := &a.slots[idx]
	s.generation++
	if s.generation == 0 {
		// skip the reserved zero generation on wrap-around
		s.generation = 1
	}
	s.occupied = true
	s.value = value
	a.live++

	return Handle{Index: idx, Generation: s.generation}
}

// Get resolves h. The boolean is false for stale or unknown handles.
func (a *Arena[T]) Get(h Handle) (T, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	var zero T
	s, ok := a.lookup(h)
	if !ok {
		return zero, false
	}
	return s.value, true
}

// Remove frees the slot addressed by h and returns the value it held.
func (a *Arena[T]) Remove(h Handle) (T, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	var zero T
	s, ok := a.lookup(h)
	if !ok {
		return zero, false
	}
	value := s.value
	s.value = zero
	s.occupied = false
	a.free = append(a.free, h.Index)
	a.live--
	return value, true
}

// Len returns the number of live values.
func (a *Arena[T]) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.live
}

// Each calls fn for every live value. fn must not call back into the arena.
func (a *Arena[T]) Each(fn func(Handle, T)) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	for i := range a.slots {
		s := &a.slots[i]
		if s.occupied {
			fn(Handle{Index: uint32(i), Generation: s.generation}, s.value)
		}
	}
}

func (a *Arena[T]) lookup(h Handle) (*slot[T], bool) {
	if h.IsZero() || int(h.Index) >= len(a.slots) {
		return nil, false
	}
	s := &a.slots[h.Index]
	if !s.occupied || s.generation != h.Generation {
		return nil, false
	}
	return s, true
}
