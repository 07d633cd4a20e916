package browser

import (
	"slices"
	"sync"
	"sync/atomic"
)

// Registry is the ordered set of live sessions of a Client. Insertion order
// is creation order and the first entry is the active session.
//
// Writers replace the whole slice under a mutex; readers load the current
// slice without locking and may keep iterating it after a write.
type Registry struct {
	mu       sync.Mutex
	sessions atomic.Pointer[[]*Session]
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	r := &Registry{}
	empty := []*Session{}
	r.sessions.Store(&empty)
	return r
}

// Sessions returns the current snapshot. Callers must not modify it.
func (r *Registry) Sessions() []*Session {
	return *r.sessions.Load()
}

// Active returns the first registered session, or nil.
func (r *Registry) Active() *Session {
	list := r.Sessions()
	if len(list) == 0 {
		return nil
	}
	return list[0]
}

// Contains reports whether s is registered.
func (r *Registry) Contains(s *Session) bool {
	return slices.Contains(r.Sessions(), s)
}

// Len returns the number of registered sessions.
func (r *Registry) Len() int {
	return len(r.Sessions())
}

func (r *Registry) add(s *Session) {
	r.update(func(old []*Session) []*Session {
		return append(slices.Clone(old), s)
	})
}

func (r *Registry) remove(s *Session) {
	r.update(func(old []*Session) []*Session {
		return slices.DeleteFunc(slices.Clone(old), func(x *Session) bool { return x == s })
	})
}

// replace drops old and appends s in a single write.
func (r *Registry) replace(old, s *Session) {
	r.update(func(list []*Session) []*Session {
		next := slices.DeleteFunc(slices.Clone(list), func(x *Session) bool { return x == old })
		return append(next, s)
	})
}

func (r *Registry) update(fn func([]*Session) []*Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	next := fn(r.Sessions())
	r.sessions.Store(&next)
}
