// Package sync provides the lock-free and spin-based synchronization
// primitives used throughout the kernel: a ticket spinlock, a
// reader/writer spinlock, intrusive FIFO/LIFO containers, a red-black
// tree, and a one-bit park/unpark primitive. None of these block a
// goroutine in the hosted-Go sense, so every primitive here is either
// lock-free or busy-waits rather than parking on a channel or mutex.
package sync

import "sync/atomic"

var (
	// yieldFn is invoked from every busy-wait loop in this package between
	// polls. In the kernel it resolves to a PAUSE instruction (see
	// archPause in spinlock_amd64.s); tests substitute runtime.Gosched so
	// that contended-lock tests don't starve the Go scheduler.
	yieldFn = archPause
)

// TicketSpinlock implements a FIFO-fair spinlock: each task trying to
// acquire it receives a ticket and busy-waits until its ticket is being
// served. Unlike a bare test-and-set lock, waiters are guaranteed to
// acquire the lock in the order they called Acquire, which is the
// fairness property the scheduler's run-queue lock depends on.
type TicketSpinlock struct {
	nowServing uint32
	nextTicket uint32
}

// Acquire blocks until the lock can be acquired by the currently active
// task. Re-acquiring a lock already held by the caller deadlocks.
func (l *TicketSpinlock) Acquire() {
	ticket := atomic.AddUint32(&l.nextTicket, 1) - 1
	for atomic.LoadUint32(&l.nowServing) != ticket {
		yieldFn()
	}
}

// TryToAcquire attempts to acquire the lock without waiting. It only
// succeeds if the lock was free and no other ticket was outstanding,
// returning true if the lock could be acquired or false otherwise.
func (l *TicketSpinlock) TryToAcquire() bool {
	cur := atomic.LoadUint32(&l.nowServing)
	return atomic.CompareAndSwapUint32(&l.nextTicket, cur, cur+1)
}

// Release relinquishes a held lock, allowing the next ticket holder to
// proceed. Callers must only release locks they actually hold.
func (l *TicketSpinlock) Release() {
	atomic.AddUint32(&l.nowServing, 1)
}

// Held reports whether the lock is currently owned by anyone. It is a
// best-effort snapshot used by invariant assertions (e.g. the scheduler
// lock invariant in spec.md §3), not a substitute for proper locking.
func (l *TicketSpinlock) Held() bool {
	return atomic.LoadUint32(&l.nowServing) != atomic.LoadUint32(&l.nextTicket)
}

// archPause is implemented in spinlock_amd64.s as a PAUSE instruction; it
// hints to the CPU that this is a spin-wait loop.
func archPause()
