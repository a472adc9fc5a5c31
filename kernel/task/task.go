package task

import (
	"cascade/kernel"
	"cascade/kernel/cpu"
	"cascade/kernel/mem"
	"cascade/kernel/sync"
	"cascade/kernel/vmm"
	"sync/atomic"
)

// Type distinguishes a kernel task, which never touches user-accessible
// memory, from a user task, which runs with a process address space.
type Type uint8

const (
	Kernel Type = iota
	User
)

// State names where in the lifecycle a task currently is. Only one of
// these is "live" at a time; Executor is only meaningful for Running, and
// QueuedForCleanup only for Dropped.
type State uint8

const (
	Ready State = iota
	Running
	Blocked
	Dropped
)

// Executor is the minimal view of a CPU-local scheduling context that
// kernel/task needs: just enough to satisfy the known_executor invariant
// without importing kernel/sched (which itself imports kernel/task).
type Executor interface {
	ID() int
}

// Task is a schedulable unit of execution: a kernel or user task with its
// own stack, reference count and scheduling bookkeeping. Field layout and
// invariants mirror spec.md §3 exactly.
type Task struct {
	Name            string
	Type            Type
	IsSchedulerTask bool

	state    State
	executor Executor // valid when state == Running

	refCount int32 // atomic; the implicit self-reference starts at 1

	Stack *Stack

	// AddressSpace is the process page table a User task runs under; nil
	// for Kernel tasks. beforeSwitchTask (kernel/sched) reloads CR3 from
	// this field on a kernel<->user or cross-process transition.
	AddressSpace *vmm.AddressSpace

	// LinkNode is the intrusive FIFO node the scheduler's ready queue
	// threads through; embedding it here (spec.md's link_node) means
	// queueing a task never allocates.
	LinkNode sync.FIFONode[Task]

	knownExecutor Executor // non-nil iff InterruptDisableCount > 0

	InterruptDisableCount uint32
	UserMemAccessCount    uint32
	SpinlocksHeld         uint32
	SchedulerLocked       bool

	queuedForCleanup int32 // atomic bool, CAS-guarded exactly-once latch

	// entry is primed by SetTaskEntry and run by the architecture glue
	// the first time this task is scheduled.
	entry func()
}

// The interrupt-disable and user-memory-access seams are package
// variables rather than direct cpu.* calls so tests drive the counters'
// 0<->1 transitions without executing real CLI/STI/CLAC/STAC
// instructions on the host.
var (
	enableInterruptsFn  = cpu.EnableInterrupts
	disableInterruptsFn = cpu.DisableInterrupts

	enableUserMemAccessFn  = cpu.EnableUserMemoryAccess
	disableUserMemAccessFn = cpu.DisableUserMemoryAccess
)

// New allocates a fresh task with the invariants spec.md §3 requires of a
// freshly constructed task: ready, a single held spinlock (the scheduler
// lock), the scheduler lock marked held, and a single self-reference.
// Callers are expected to come from a slab-style cache (kernel/task does
// not itself provide one, avoiding a generic allocator this early in
// boot); New only establishes field invariants.
func New(name string, typ Type, stack *Stack) *Task {
	return &Task{
		Name:                  name,
		Type:                  typ,
		Stack:                 stack,
		state:                 Ready,
		refCount:              1,
		InterruptDisableCount: 1,
		SpinlocksHeld:         1,
		SchedulerLocked:       true,
	}
}

// CreateKernelTask implements spec.md §4.4's createKernelTask: allocates a
// kernel task with a freshly created stack and registers it in registry,
// failing with ErrAlreadyPresent in the (practically impossible, since
// keys are object identity) case of a collision.
func CreateKernelTask(name string, kernelStackSize mem.Size, registry *Registry) (*Task, *kernel.Error) {
	t := New(name, Kernel, NewStack(kernelStackSize))
	if err := registry.Insert(t); err != nil {
		return nil, err
	}
	return t, nil
}

// State returns the task's current lifecycle state.
func (t *Task) State() State { return t.state }

// SetState transitions the task to s. Callers are responsible for holding
// whatever lock the transition requires (the scheduler lock for most
// transitions); SetState itself performs no synchronization beyond the
// plain field write spec.md's single-writer discipline assumes.
func (t *Task) SetState(s State) { t.state = s }

// Executor returns the executor this task is running on, valid only while
// State() == Running.
func (t *Task) Executor() Executor { return t.executor }

// SetExecutor records the executor a task is now running on (or clears it
// when the task stops running).
func (t *Task) SetExecutor(e Executor) { t.executor = e }

// KnownExecutor returns the task's current executor if
// InterruptDisableCount > 0, or nil otherwise, per spec.md §3's invariant.
func (t *Task) KnownExecutor() Executor {
	if t.InterruptDisableCount > 0 {
		return t.knownExecutor
	}
	return nil
}

// SetTaskEntry primes call to run the first time this task is scheduled.
// The architecture glue that actually dispatches into it is responsible
// for unlocking the scheduler before calling entry and relocking (then
// dropping the task) after it returns, per spec.md §4.4.
func (t *Task) SetTaskEntry(call func()) {
	t.entry = call
}

// RunEntry invokes the primed entry point, if any. Exposed so
// kernel/sched's architecture glue can call into it without kernel/task
// needing to know anything about context switching.
func (t *Task) RunEntry() {
	if t.entry != nil {
		t.entry()
	}
}

// IncRefCount atomically increments the task's reference count.
func (t *Task) IncRefCount() {
	atomic.AddInt32(&t.refCount, 1)
}

// DecRefCount atomically decrements the task's reference count. When the
// count reaches zero, onZero is invoked exactly once, even under
// concurrent decrements racing to be the one that hits zero — callers pass
// the cleanup-service enqueue as onZero.
func (t *Task) DecRefCount(onZero func(*Task)) {
	if atomic.AddInt32(&t.refCount, -1) == 0 && onZero != nil {
		onZero(t)
	}
}

// RefCount returns the current reference count. Used by the cleanup
// service's re-check under the registry write lock.
func (t *Task) RefCount() int32 {
	return atomic.LoadInt32(&t.refCount)
}

// MarkQueuedForCleanup atomically flips queuedForCleanup from false to
// true, returning whether this call was the one that performed the flip.
// DecRefCount's caller uses this to guarantee exactly-once enqueueing onto
// the cleanup service's inbox even if two CPUs observe refCount hit zero
// at close to the same time (which cannot actually happen for a single
// monotonically-decreasing counter, but the CAS keeps the invariant true
// by construction rather than by argument).
func (t *Task) MarkQueuedForCleanup() bool {
	return atomic.CompareAndSwapInt32(&t.queuedForCleanup, 0, 1)
}

// QueuedForCleanup reports whether MarkQueuedForCleanup has succeeded for
// this task.
func (t *Task) QueuedForCleanup() bool {
	return atomic.LoadInt32(&t.queuedForCleanup) != 0
}

// ClearQueuedForCleanup resets the latch, used by the cleanup service if a
// re-check finds the task has gained a new reference since it was queued.
func (t *Task) ClearQueuedForCleanup() {
	atomic.StoreInt32(&t.queuedForCleanup, 0)
}

// SchedulerLockHeld reports whether the scheduler lock is held according
// to spec.md §3's invariant: SchedulerLocked && SpinlocksHeld >= 1.
func (t *Task) SchedulerLockHeld() bool {
	return t.SchedulerLocked && t.SpinlocksHeld >= 1
}

// IncrementInterruptDisableCount bumps InterruptDisableCount, executing
// CLI on the 0->1 transition (spec.md §5's "interrupt disable discipline":
// increment* CLI-gates when transitioning 0->1).
func (t *Task) IncrementInterruptDisableCount() {
	if t.InterruptDisableCount == 0 {
		disableInterruptsFn()
	}
	t.InterruptDisableCount++
}

// DecrementInterruptDisableCount drops InterruptDisableCount, executing STI
// on the 1->0 transition.
func (t *Task) DecrementInterruptDisableCount() {
	t.InterruptDisableCount--
	if t.InterruptDisableCount == 0 {
		enableInterruptsFn()
	}
}

// IncrementUserMemAccessCount bumps UserMemAccessCount, enabling the SMAP
// AC bit on the 0->1 transition so nested enables compose safely.
func (t *Task) IncrementUserMemAccessCount() {
	if t.UserMemAccessCount == 0 {
		enableUserMemAccessFn()
	}
	t.UserMemAccessCount++
}

// DecrementUserMemAccessCount drops UserMemAccessCount, disabling the AC
// bit on the 1->0 transition.
func (t *Task) DecrementUserMemAccessCount() {
	t.UserMemAccessCount--
	if t.UserMemAccessCount == 0 {
		disableUserMemAccessFn()
	}
}

// OnInterruptEntry implements spec.md §4.3's dispatcher step 1 for the
// currently running task: bump InterruptDisableCount (CLI-gating on the
// 0->1 transition, though the CPU has already cleared IF by the time an
// interrupt gate runs), then snapshot and zero UserMemAccessCount,
// disabling the AC bit if it was on. Returns the pre-interrupt counters so
// OnInterruptExit can restore them.
func (t *Task) OnInterruptEntry() (prevInterruptDisableCount, prevUserMemAccessCount uint32) {
	prevInterruptDisableCount = t.InterruptDisableCount
	t.IncrementInterruptDisableCount()

	prevUserMemAccessCount = t.UserMemAccessCount
	if prevUserMemAccessCount != 0 {
		disableUserMemAccessFn()
	}
	t.UserMemAccessCount = 0

	return prevInterruptDisableCount, prevUserMemAccessCount
}

// OnInterruptExit restores the counters OnInterruptEntry snapshotted,
// toggling the AC bit only if UserMemAccessCount actually differs from the
// zero it was forced to (spec.md §4.3 step 3).
func (t *Task) OnInterruptExit(prevInterruptDisableCount, prevUserMemAccessCount uint32) {
	t.InterruptDisableCount = prevInterruptDisableCount
	if prevInterruptDisableCount == 0 {
		enableInterruptsFn()
	}

	if prevUserMemAccessCount != 0 {
		enableUserMemAccessFn()
	}
	t.UserMemAccessCount = prevUserMemAccessCount
}
