package relay

import (
	"sync"
	"sync/atomic"
)

// Subscription identifies one handler registration.
type Subscription uint64

type entry[T any] struct {
	id      Subscription
	handler T
}

// subscribers is a copy-on-write handler list. Readers load the current
// slice without locking; writers serialize on mu and swap in a new slice.
type subscribers[T any] struct {
	mu   sync.Mutex
	list atomic.Pointer[[]entry[T]]
}

func (s *subscribers[T]) add(id Subscription, h T) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var next []entry[T]
	if cur := s.list.Load(); cur != nil {
		next = make([]entry[T], len(*cur), len(*cur)+1)
		copy(next, *cur)
	}
	next = append(next, entry[T]{id: id, handler: h})
	s.list.Store(&next)
}

func (s *subscribers[T]) remove(id Subscription) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.list.Load()
	if cur == nil {
		return false
	}
	next := make([]entry[T], 0, len(*cur))
	for _, e := range *cur {
		if e.id != id {
			next = append(next, e)
		}
	}
	if len(next) == len(*cur) {
		return false
	}
	s.list.Store(&next)
	return true
}

func (s *subscribers[T]) snapshot() []entry[T] {
	if cur := s.list.Load(); cur != nil {
		return *cur
	}
	return nil
}

func (s *subscribers[T]) len() int {
	return len(s.snapshot())
}
