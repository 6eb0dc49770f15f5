package state

import "sync"

// subscribers fans a change notification out to registered listeners. Stores
// notify after releasing their state lock, so listeners may read the store.
type subscribers struct {
	mu     sync.Mutex
	nextID int
	fns    map[int]func()
}

func (s *subscribers) add(fn func()) (unsubscribe func()) {
	s.mu.Lock()
	if s.fns == nil {
		s.fns = map[int]func(){}
	}
	s.nextID++
	id := s.nextID
	s.fns[id] = fn
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.fns, id)
		s.mu.Unlock()
	}
}

func (s *subscribers) notify() {
	s.mu.Lock()
	fns := make([]func(), 0, len(s.fns))
	for _, fn := range s.fns {
		fns = append(fns, fn)
	}
	s.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}
