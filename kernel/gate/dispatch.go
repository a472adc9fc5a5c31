package gate

// InterruptEntryState is the pair of per-task counters Task.OnInterruptEntry
// snapshots and Task.OnInterruptExit restores (spec.md §4.3's dispatcher
// steps 1 and 3): the pre-interrupt interrupt_disable_count and
// user_mem_access_count.
type InterruptEntryState struct {
	PrevInterruptDisableCount uint32
	PrevUserMemAccessCount    uint32
}

// taskInterruptHooks lets kernel/sched register itself without kernel/gate
// importing kernel/sched (which would create an import cycle, since sched
// installs handlers on this package). A freshly booted kernel with no
// scheduler yet installed runs with the zero value, under which every
// hook is a no-op and OnEntry/OnExit degrade to "do nothing, dispatch
// unconditionally".
type taskInterruptHooks struct {
	// OnEntry is invoked before the vector's handler runs. It returns the
	// current task's pre-interrupt counters, which OnExit uses to restore
	// them once the handler has returned.
	OnEntry func() InterruptEntryState

	// OnExit restores the current task's counters to the state OnEntry
	// returned.
	OnExit func(InterruptEntryState)
}

var currentTask taskInterruptHooks

// SetTaskInterruptHooks installs the callbacks kernel/sched uses to track
// per-task interrupt nesting across dispatchInterrupt. Passing the zero
// value restores the no-op defaults.
func SetTaskInterruptHooks(onEntry func() InterruptEntryState, onExit func(InterruptEntryState)) {
	currentTask = taskInterruptHooks{OnEntry: onEntry, OnExit: onExit}
}

// dispatchInterruptFromASM is the symbol trampolineCommon calls directly;
// it exists only to give dispatchInterrupt a name assembly can reference,
// keeping the actual dispatch logic in an ordinary, unit-testable Go
// function.
//
//go:nosplit
func dispatchInterruptFromASM(frame *InterruptFrame) {
	dispatchInterrupt(frame)
}

// dispatchInterrupt implements the dispatcher spec.md §4.3 describes:
// bump the current task's interrupt-disable count for the duration of the
// handler, invoke the vector's installed handler (unhandledInterrupt by
// default), then restore the previous count. Interrupts are already
// disabled on entry (the CPU clears IF when it takes an interrupt gate)
// and must remain disabled across the call into the handler table.
func dispatchInterrupt(frame *InterruptFrame) {
	var prevState InterruptEntryState
	if currentTask.OnEntry != nil {
		prevState = currentTask.OnEntry()
	}

	handler := handlers[frame.VectorNumber()]
	if handler == nil {
		handler = unhandledInterrupt
	}
	handler(frame)

	if currentTask.OnExit != nil {
		currentTask.OnExit(prevState)
	}
}
