package cleanup

import (
	"cascade/kernel/sync"
	"cascade/kernel/task"
)

// inboxEntry wraps a *task.Task with the LIFO node the cleanup service's
// inbox threads through. Task does not carry a LIFO node of its own (only
// the scheduler's FIFO link_node, per spec.md §3), so this service keeps
// its own intrusive node alongside the task it refers to.
type inboxEntry struct {
	sync.LIFONode[inboxEntry]
	task *task.Task
}

// Service is the dedicated kernel task spec.md §4.6 describes: an
// AtomicSinglyLinkedLIFO inbox and a parker. Any task whose ref_count
// drops to 0 is pushed here exactly once and the parker is unparked.
type Service struct {
	inbox  sync.AtomicLIFO[inboxEntry]
	parker sync.Parker

	registry *task.Registry

	// destroyFn frees a task's resources (its stack, ultimately the slab
	// slot it came from) once the registry has confirmed it is safe to
	// reclaim. kernel/cleanup has no allocator of its own to free back
	// into, so this is a collaborator seam, analogous to
	// kernel/vmm.SetFrameAllocator.
	destroyFn func(*task.Task)
}

// NewService constructs a cleanup service backed by registry, destroying
// reclaimed tasks through destroyFn.
func NewService(registry *task.Registry, destroyFn func(*task.Task)) *Service {
	return &Service{registry: registry, destroyFn: destroyFn}
}

// Enqueue is the callback a task's DecRefCount invokes on its 1->0
// transition: CAS-guard against double-queueing, push an inbox entry, and
// unpark the cleanup task.
func (s *Service) Enqueue(t *task.Task) {
	if !t.MarkQueuedForCleanup() {
		return
	}
	entry := &inboxEntry{task: t}
	s.inbox.Push(&entry.LIFONode, entry)
	s.parker.Unpark()
}

// Run is the cleanup task's loop body: pop every pending inbox entry,
// re-validate and reclaim each, then park until more arrive. Intended to
// run forever as the body of a dedicated kernel task; tests call
// runOnce directly instead of Run so they can assert on a bounded batch.
func (s *Service) Run() {
	for {
		s.runOnce()
		s.parker.Park()
	}
}

// runOnce pops the entire inbox and processes it. Returns the number of
// tasks actually reclaimed, for tests.
func (s *Service) runOnce() int {
	reclaimed := 0
	node := s.inbox.PopAll()
	for node != nil {
		entry := node.Owner()
		node = node.Next()
		if s.process(entry.task) {
			reclaimed++
		}
	}
	return reclaimed
}

// process re-checks, under the registry's write lock, that the task is
// still a legitimate cleanup candidate before removing and destroying it
// (spec.md §4.6: "re-check under the appropriate write lock ... that (a)
// ref_count is still 0 and (b) queued_for_cleanup has not been flipped").
// A task can legitimately fail this re-check if it gained a new reference
// between being queued and being processed.
func (s *Service) process(t *task.Task) bool {
	destroyed := false
	s.registry.WithWriteLock(func(reg *task.Registry) {
		if t.RefCount() != 0 || !t.QueuedForCleanup() {
			return
		}
		reg.RemoveLocked(t)
		destroyed = true
	})

	if destroyed {
		t.ClearQueuedForCleanup()
		if s.destroyFn != nil {
			s.destroyFn(t)
		}
	}
	return destroyed
}
