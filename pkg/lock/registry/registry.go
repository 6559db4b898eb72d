// Package registry hands out shared lock instances by name.
//
// A Registry is an explicit, caller-owned object: callers that want
// process-wide sharing hold one Registry in a long-lived struct and pass it
// around, rather than relying on a hidden global. Locks are created lazily
// with the registry's configuration on first lookup and live for as long as
// the registry does.
package registry

import (
	"sync"

	"github.com/kalbasit/prwlock/pkg/lock"
)

// Registry is a name-keyed collection of singleton locks.
type Registry struct {
	mu    sync.Mutex
	cfg   lock.Config
	locks map[string]*lock.Lock
}

// New creates an empty registry. Every lock it hands out is constructed with
// the given configuration.
func New(cfg lock.Config) *Registry {
	return &Registry{
		cfg:   cfg,
		locks: make(map[string]*lock.Lock),
	}
}

// Get returns the lock registered under name, creating it on first use. The
// empty string is a valid name: it designates the registry's unnamed lock.
// Calls with the same name always return the same instance.
func (r *Registry) Get(name string) *lock.Lock {
	r.mu.Lock()
	defer r.mu.Unlock()

	l, ok := r.locks[name]
	if !ok {
		l = lock.New(r.cfg)
		r.locks[name] = l
	}

	return l
}

// Len returns the number of locks created so far.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.locks)
}
