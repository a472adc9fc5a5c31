package sync

import "sync/atomic"

// Parker is a one-bit park/unpark primitive. It decouples kernel/sync from
// kernel/sched: the scheduler wires Block and Wake to the real task-suspend
// and task-ready-queue operations, while tests can leave them nil (in which
// case Park does not wait: it consumes the permit if one is available and
// returns either way).
//
// The permit semantics match Go runtime's own park/unpark and Java's
// LockSupport: Unpark before Park is remembered, so a wakeup can never be
// lost to a race between the unparking and parking goroutines.
type Parker struct {
	permit int32

	// Block is called when Park must actually wait. It should return once
	// Unpark has been (or is concurrently being) called.
	Block func()

	// Wake is called by Unpark after the permit has been granted, to rouse
	// whatever is blocked in Block.
	Wake func()
}

// Park blocks until a matching Unpark has been observed, consuming the
// permit. If a permit is already available (Unpark ran first) Park
// returns immediately. With Block nil, Park returns without waiting.
func (p *Parker) Park() {
	if atomic.CompareAndSwapInt32(&p.permit, 1, 0) {
		return
	}
	if p.Block != nil {
		p.Block()
	}
	atomic.StoreInt32(&p.permit, 0)
}

// Unpark grants a permit and wakes any blocked Park call. Calling Unpark
// multiple times before a matching Park is idempotent: at most one permit
// is outstanding at a time.
func (p *Parker) Unpark() {
	if atomic.SwapInt32(&p.permit, 1) == 1 {
		return
	}
	if p.Wake != nil {
		p.Wake()
	}
}
