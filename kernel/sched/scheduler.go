package sched

import (
	"cascade/kernel"
	"cascade/kernel/cpu"
	"cascade/kernel/sync"
	"cascade/kernel/task"
)

// readyQueue is the single global ticket-spinlocked intrusive FIFO of
// ready tasks spec.md §4.5 describes, acknowledging in-source (per
// spec.md §9) that a per-executor split is the natural next step; this
// implementation keeps the single-queue seam explicit so that future
// extension point is a single variable, not a scattered refactor.
var readyQueue sync.FIFO[task.Task]

// Lock is the scheduler's ticket spinlock. QueueTask, Yield, Drop and
// DropWithDeferredAction document the lock discipline they require as a
// precondition rather than acquiring the lock themselves, mirroring
// spec.md §4.5's own phrasing ("precondition: scheduler lock held");
// MaybePreempt and the idle loop acquire and release it themselves.
var Lock sync.TicketSpinlock

// ErrNotRunning and ErrSchedulerTask name the scheduler's precondition
// violations as kernel errors. The operations in this file do not check
// their preconditions, and none of them returns either error.
var (
	ErrNotRunning    = &kernel.Error{Module: "sched", Message: "task is not running"}
	ErrSchedulerTask = &kernel.Error{Module: "sched", Message: "operation not valid for the scheduler task"}
)

// QueueTask appends t to the ready FIFO's tail. Preconditions (spec.md
// §4.5): the scheduler lock is held, t.State() == Ready, and t is not a
// scheduler/idle task.
func QueueTask(t *task.Task) {
	readyQueue.PushBack(&t.LinkNode, t)
}

// DeferredAction is the closure the deferred-action protocol runs on the
// scheduler task's stack, after the outgoing task has been switched away
// from but before the incoming task resumes. spec.md §9 warns against
// relying on heap-closures for this in the original source (pass a
// function-pointer/argument pair through registers); a hosted Go kernel
// has no such constraint; the protocol's essential property — the action
// must not touch the old task's stack — is preserved by construction
// here, since the action only ever receives schedulerTask/old/arg values,
// never a stack address.
type DeferredAction func(schedulerTask, old *task.Task, arg interface{})

// Yield implements spec.md §4.5's core scheduling step. Precondition: the
// scheduler lock is held, and e.CurrentTask() holds exactly one spinlock
// (the scheduler lock itself).
func Yield(e *Executor) {
	next := readyQueue.PopFront()
	if next == nil {
		return
	}

	current := e.currentTask

	if current == e.schedulerTask {
		next.SetState(task.Running)
		next.SetExecutor(e)
		e.currentTask = next
		beforeSwitchTaskFn(current, next)
		// The idle call chain is abandoned here and never resumed, so
		// restore the count idle holds on every entry before leaving it.
		current.InterruptDisableCount = 1
		switchTaskNoSaveFn(next)
		return
	}

	readyQueue.PushBack(&current.LinkNode, current)
	current.SetState(task.Ready)

	next.SetState(task.Running)
	next.SetExecutor(e)
	e.currentTask = next

	beforeSwitchTaskFn(current, next)
	switchTaskFn(current, next)
}

// pendingDrop carries a Drop call's arguments across the archCallOnStackFn
// hop, from the dropped task's stack onto the scheduler task's stack.
// Reading and writing it is safe unsynchronized: Drop's own precondition
// (the scheduler lock held) already serializes every caller across every
// executor, exactly as it does for readyQueue.
var pendingDrop struct {
	schedulerTask *task.Task
	old           *task.Task
	action        DeferredAction
	arg           interface{}
	next          *task.Task
}

// runDeferredAction is archCallOnStack's fixed call target (switch_amd64.s):
// it runs once execution has moved onto the scheduler task's stack, reads
// the arguments Drop stashed in pendingDrop, invokes the deferred action,
// and switches to whatever was chosen to run next. It never returns:
// switchTaskNoSaveFn abandons this call chain exactly as Yield's idle
// branch abandons its own.
func runDeferredAction() {
	p := pendingDrop
	p.action(p.schedulerTask, p.old, p.arg)
	switchTaskNoSaveFn(p.next)
}

// cleanupEnqueueFn is the seam kernel/cleanup's service installs through
// SetCleanupEnqueueFn, so Drop's default action can hand a zero-refcount
// task to the cleanup service without kernel/sched importing kernel/cleanup
// directly, matching the SetYieldFn/SetCurrentExecutorFn idiom used for
// every other cross-package wiring point in this kernel.
var cleanupEnqueueFn func(*task.Task)

// SetCleanupEnqueueFn installs the cleanup service's enqueue callback.
// Called once during boot, after the cleanup service has been constructed.
func SetCleanupEnqueueFn(fn func(*task.Task)) {
	cleanupEnqueueFn = fn
}

// Drop implements spec.md §4.4's drop(current): current is marked dropped
// and its implicit self-reference released, via DropWithDeferredAction's
// fixed default action. This is the API production code calls (runTaskEntry
// ends every task this way); the generic, caller-supplied-action primitive
// exists separately as DropWithDeferredAction for the cases spec.md §5
// lists it for.
func Drop(e *Executor) {
	DropWithDeferredAction(e, func(schedulerTask, old *task.Task, arg interface{}) {
		old.SetState(task.Dropped)
		old.DecRefCount(cleanupEnqueueFn)
	}, nil)
}

// DropWithDeferredAction implements spec.md §4.5: switch current away (to
// the next ready task, or to the idle task if none is ready) via the
// deferred-action protocol. The old task's registers are never resumed, so
// nothing of its context is worth saving; instead, execution hops directly
// onto the scheduler task's stack (reused here as scratch space, since this
// kernel's scheduler task is itself never resumed from a saved
// suspension point — see archSwitchTaskNoSave) and runs action there,
// between having switched away from current and resuming whatever runs
// next. This is the property the protocol exists to guarantee: action may
// free current's stack (by driving its ref count to zero and queueing it
// for cleanup) without that ever happening while current's own stack is
// still the one in use. Preconditions: scheduler lock held, current is
// not the scheduler task, current.State() == Running.
func DropWithDeferredAction(e *Executor, action DeferredAction, arg interface{}) {
	next := readyQueue.PopFront()
	current := e.currentTask

	if next == nil {
		next = e.schedulerTask
	} else {
		next.SetState(task.Running)
	}
	next.SetExecutor(e)
	e.currentTask = next

	beforeSwitchTaskFn(current, next)

	pendingDrop.schedulerTask = e.schedulerTask
	pendingDrop.old = current
	pendingDrop.action = action
	pendingDrop.arg = arg
	pendingDrop.next = next

	archCallOnStackFn(e.schedulerTask.Stack.TopSP())
}

// MaybePreempt is invoked at interrupt return in preemptible states
// (spec.md §4.5). Preconditions: the scheduler lock is NOT held,
// current.SpinlocksHeld == 0, current.State() == Running.
func MaybePreempt(e *Executor) {
	Lock.Acquire()
	if !readyQueue.Empty() {
		Yield(e)
	}
	Lock.Release()
}

// haltFn is HLT's seam for the idle loop (cpu.Halt); tests substitute a
// bounded stub so IdleLoop can be driven for a fixed number of
// iterations instead of looping forever.
var haltFn = cpu.Halt

// idleStep runs one iteration of the idle loop's body: acquire the lock,
// yield away if there is ready work, release, halt. Factored out of
// IdleLoop so tests can drive a single iteration deterministically.
func idleStep(e *Executor) {
	Lock.Acquire()
	if !readyQueue.Empty() {
		Yield(e)
	}
	Lock.Release()
	haltFn()
}

// IdleLoop is the body of the per-executor scheduler task: on entry the
// scheduler lock is already held (a fresh task starts with
// SchedulerLocked=true), so the first thing it does is release it; each
// pass of idleStep then acquires and releases it again.
func IdleLoop(e *Executor) {
	Lock.Release()
	for {
		idleStep(e)
	}
}
