package sync

import (
	"sync/atomic"
	"unsafe"
)

// LIFONode is the intrusive link embedded inside values that participate
// in an AtomicLIFO, such as the task-cleanup service's inbox.
type LIFONode[T any] struct {
	next  unsafe.Pointer // *LIFONode[T]
	owner *T
}

// Next returns the node pushed immediately before this one, or nil if this
// was the first node pushed. It is only meaningful once a node has been
// removed from the LIFO via PopAll — walking next pointers on a node still
// linked into a concurrently-mutated LIFO is not safe.
func (n *LIFONode[T]) Next() *LIFONode[T] {
	return (*LIFONode[T])(atomic.LoadPointer(&n.next))
}

// Owner returns the value this node is embedded in.
func (n *LIFONode[T]) Owner() *T {
	return n.owner
}

// AtomicLIFO is a lock-free, singly-linked LIFO (treiber stack) used for
// the task-cleanup service's inbox (spec.md §4.6): many executors may push
// a dropped task's node concurrently via CompareAndSwap, while the single
// cleanup task periodically calls PopAll to drain every pending entry in
// one atomic step.
//
// This container intentionally does not support removing an arbitrary
// interior node — spec.md §9 flags a historical bug in a doubly-linked
// LIFO's node-removal path that only worked when the removed node was the
// sole element, and explicitly asks implementations not to reproduce it.
// PopAll sidesteps the entire class of bug by only ever detaching the whole
// chain at once.
type AtomicLIFO[T any] struct {
	head unsafe.Pointer // *LIFONode[T]
}

// Push links node (which must own owner) onto the top of the stack. Safe
// for concurrent use by any number of callers.
func (l *AtomicLIFO[T]) Push(node *LIFONode[T], owner *T) {
	node.owner = owner
	for {
		old := atomic.LoadPointer(&l.head)
		atomic.StorePointer(&node.next, old)
		if atomic.CompareAndSwapPointer(&l.head, old, unsafe.Pointer(node)) {
			return
		}
	}
}

// PopAll atomically detaches every node currently on the stack and returns
// the head of the resulting chain (most-recently-pushed first), or nil if
// the stack was empty. Call Next() on the result to walk the rest of the
// chain.
func (l *AtomicLIFO[T]) PopAll() *LIFONode[T] {
	old := atomic.SwapPointer(&l.head, nil)
	return (*LIFONode[T])(old)
}

// Empty reports whether the stack is currently empty. The result is only a
// snapshot in the presence of concurrent pushes.
func (l *AtomicLIFO[T]) Empty() bool {
	return atomic.LoadPointer(&l.head) == nil
}
