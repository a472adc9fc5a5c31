package task

import (
	"cascade/kernel"
	"cascade/kernel/sync"
	"unsafe"
)

// ErrAlreadyPresent is returned by Registry.Insert when a task with the
// same identity is already registered; spec.md §7 treats this as fatal at
// the call site, not recoverable by the registry itself.
var ErrAlreadyPresent = &kernel.Error{Module: "task", Message: "task already present in registry"}

// taskKey orders tasks by identity (their address) rather than by any
// field a caller might mutate, since spec.md §5 only requires the global
// kernel-tasks set to support create/destroy, not range queries by name.
type taskKey uintptr

func keyOf(t *Task) taskKey {
	return taskKey(uintptr(unsafe.Pointer(t)))
}

// Registry is the global kernel-tasks set spec.md §5 describes: writer-
// locked on create/destroy, read-locked only by Len. Backed by the
// same generic red-black tree that the rest of the kernel uses for
// ordered, allocation-light lookup structures.
type Registry struct {
	lock sync.RWLock
	tree *sync.RBTree[taskKey, *Task]
}

// NewRegistry returns an empty task registry.
func NewRegistry() *Registry {
	return &Registry{
		tree: sync.NewRBTree[taskKey, *Task](func(a, b taskKey) bool { return a < b }),
	}
}

// Insert adds t to the registry, failing with ErrAlreadyPresent if a task
// with the same identity is already registered.
func (r *Registry) Insert(t *Task) *kernel.Error {
	r.lock.Lock()
	defer r.lock.Unlock()

	k := keyOf(t)
	if _, ok := r.tree.Get(k); ok {
		return ErrAlreadyPresent
	}
	r.tree.Insert(k, t)
	return nil
}

// Remove removes t from the registry. It is a no-op if t is not present,
// matching the cleanup service's use: by the time it removes a task it has
// already re-validated under this same write lock that the task still
// belongs here.
func (r *Registry) Remove(t *Task) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.tree.Delete(keyOf(t))
}

// Len reports the number of tasks currently registered.
func (r *Registry) Len() int {
	r.lock.RLock()
	defer r.lock.RUnlock()
	return r.tree.Len()
}

// WithWriteLock runs fn with the registry's write lock held, giving the
// cleanup service a place to atomically re-check ref_count/
// queued_for_cleanup and remove the task in one critical section
// (spec.md §4.6). fn receives the registry so it can call RemoveLocked.
func (r *Registry) WithWriteLock(fn func(*Registry)) {
	r.lock.Lock()
	defer r.lock.Unlock()
	fn(r)
}

// RemoveLocked removes t assuming the caller already holds the write lock
// (called from inside a WithWriteLock callback).
func (r *Registry) RemoveLocked(t *Task) {
	r.tree.Delete(keyOf(t))
}
